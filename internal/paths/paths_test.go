package paths

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGetPaths(t *testing.T) {
	p := GetPaths()

	if p.ConfigDir == "" {
		t.Error("ConfigDir should not be empty")
	}
	if p.DataDir == "" {
		t.Error("DataDir should not be empty")
	}
	if p.CacheDir == "" {
		t.Error("CacheDir should not be empty")
	}
	if p.StateDir == "" {
		t.Error("StateDir should not be empty")
	}

	if !strings.Contains(p.ConfigDir, "srafetch") {
		t.Errorf("ConfigDir should contain 'srafetch', got %q", p.ConfigDir)
	}
	if !strings.Contains(p.DataDir, "srafetch") {
		t.Errorf("DataDir should contain 'srafetch', got %q", p.DataDir)
	}
}

func TestGetPathsWithAppEnv(t *testing.T) {
	t.Setenv("SRAFETCH_CONFIG_HOME", "/custom/config")
	t.Setenv("SRAFETCH_DATA_HOME", "/custom/data")
	t.Setenv("SRAFETCH_CACHE_HOME", "/custom/cache")
	t.Setenv("SRAFETCH_STATE_HOME", "/custom/state")

	p := GetPaths()

	if p.ConfigDir != "/custom/config" {
		t.Errorf("expected ConfigDir '/custom/config', got %q", p.ConfigDir)
	}
	if p.DataDir != "/custom/data" {
		t.Errorf("expected DataDir '/custom/data', got %q", p.DataDir)
	}
	if p.CacheDir != "/custom/cache" {
		t.Errorf("expected CacheDir '/custom/cache', got %q", p.CacheDir)
	}
	if p.StateDir != "/custom/state" {
		t.Errorf("expected StateDir '/custom/state', got %q", p.StateDir)
	}
}

func TestGetPathsWithXDGEnv(t *testing.T) {
	t.Setenv("SRAFETCH_CONFIG_HOME", "")
	t.Setenv("XDG_CONFIG_HOME", "/xdg/config")

	p := GetPaths()
	if p.ConfigDir != "/xdg/config/srafetch" {
		t.Errorf("expected ConfigDir '/xdg/config/srafetch', got %q", p.ConfigDir)
	}
}

func TestGetDatabasePath(t *testing.T) {
	t.Setenv("SRAFETCH_DB_PATH", "")
	t.Setenv("SRAFETCH_DATA_HOME", "/data")
	if path := GetDatabasePath(); path != "/data/history.db" {
		t.Errorf("expected '/data/history.db', got %q", path)
	}
}

func TestGetDatabasePathWithEnv(t *testing.T) {
	t.Setenv("SRAFETCH_DB_PATH", "/custom/path/custom.db")
	if path := GetDatabasePath(); path != "/custom/path/custom.db" {
		t.Errorf("expected '/custom/path/custom.db', got %q", path)
	}
}

func TestGetEnvFilePath(t *testing.T) {
	t.Setenv("SRAFETCH_CONFIG_HOME", "/cfg")
	if path := GetEnvFilePath(); path != "/cfg/.env" {
		t.Errorf("expected '/cfg/.env', got %q", path)
	}
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()

	t.Setenv("SRAFETCH_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("SRAFETCH_DATA_HOME", filepath.Join(dir, "data"))

	if err := EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}

	for _, d := range []string{filepath.Join(dir, "config"), filepath.Join(dir, "data")} {
		if _, err := os.Stat(d); os.IsNotExist(err) {
			t.Errorf("expected directory %q to be created", d)
		}
	}
}
