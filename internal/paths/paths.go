package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

const appName = "srafetch"

type Paths struct {
	ConfigDir string
	DataDir   string
	CacheDir  string
	StateDir  string
}

// GetPaths returns all base paths respecting environment variables
func GetPaths() Paths {
	return Paths{
		ConfigDir: getDir("SRAFETCH_CONFIG_HOME", "XDG_CONFIG_HOME", ".config"),
		DataDir:   getDir("SRAFETCH_DATA_HOME", "XDG_DATA_HOME", ".local/share"),
		CacheDir:  getDir("SRAFETCH_CACHE_HOME", "XDG_CACHE_HOME", ".cache"),
		StateDir:  getDir("SRAFETCH_STATE_HOME", "XDG_STATE_HOME", ".local/state"),
	}
}

func getDir(appEnv, xdgEnv, defaultBase string) string {
	// 1. Check srafetch-specific env
	if dir := os.Getenv(appEnv); dir != "" {
		return dir
	}

	// 2. Check XDG env
	if xdgBase := os.Getenv(xdgEnv); xdgBase != "" {
		return filepath.Join(xdgBase, appName)
	}

	// 3. Use default
	home, _ := os.UserHomeDir()
	return filepath.Join(home, defaultBase, appName)
}

// GetDatabasePath returns the path to the batch history database
func GetDatabasePath() string {
	if path := os.Getenv("SRAFETCH_DB_PATH"); path != "" {
		return path
	}
	return filepath.Join(GetPaths().DataDir, "history.db")
}

// GetEnvFilePath returns the per-user .env file read at startup
func GetEnvFilePath() string {
	return filepath.Join(GetPaths().ConfigDir, ".env")
}

// EnsureDirectories creates the config and data directories
func EnsureDirectories() error {
	p := GetPaths()
	for _, dir := range []string{p.ConfigDir, p.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
