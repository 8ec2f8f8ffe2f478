package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/nishad/srafetch/internal/config"
	"github.com/nishad/srafetch/internal/paths"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage srafetch configuration",
	Long:  `Manage srafetch configuration including endpoints, pacing and paths.`,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Show all active paths",
	Long: `Display the paths used by srafetch: the config file, the .env file, the
history database and the base directories, along with any environment
variable overrides.`,
	Args: cobra.NoArgs,
	RunE: runConfigPath,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after defaults, the config file and environment overrides.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration",
	Long: `Create a default configuration file in the user config directory.

If a config file already exists, use --force to overwrite it.`,
	Example: `  # Create default config
  srafetch config init

  # Force overwrite existing config
  srafetch config init --force`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var (
	configForce bool
)

func init() {
	configInitCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite existing configuration")

	configCmd.AddCommand(configPathCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

func activeConfigPath() string {
	if configPath != "" {
		return configPath
	}
	return config.GetConfigPath()
}

func runConfigPath(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	p := paths.GetPaths()

	fmt.Fprintf(out, "%s\n", colorize(boldStyle, "Base Directories:"))
	fmt.Fprintf(out, "  Config:   %s\n", colorize(keyStyle, p.ConfigDir))
	fmt.Fprintf(out, "  Data:     %s\n", colorize(keyStyle, p.DataDir))
	fmt.Fprintf(out, "  Cache:    %s\n", colorize(keyStyle, p.CacheDir))
	fmt.Fprintf(out, "  State:    %s\n", colorize(keyStyle, p.StateDir))

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s\n", colorize(boldStyle, "Files:"))
	fmt.Fprintf(out, "  Config:   %s\n", colorize(keyStyle, activeConfigPath()))
	fmt.Fprintf(out, "  Env file: %s\n", colorize(keyStyle, paths.GetEnvFilePath()))
	fmt.Fprintf(out, "  History:  %s\n", colorize(keyStyle, paths.GetDatabasePath()))

	envVars := []struct {
		name string
		desc string
	}{
		{"SRAFETCH_CONFIG", "Override config file"},
		{"SRAFETCH_CONFIG_HOME", "Override config directory"},
		{"SRAFETCH_DATA_HOME", "Override data directory"},
		{"SRAFETCH_CACHE_HOME", "Override cache directory"},
		{"SRAFETCH_STATE_HOME", "Override state directory"},
		{"SRAFETCH_DB_PATH", "Override history database path"},
		{"SRAFETCH_INTERVAL_MS", "Override launch interval"},
		{"SRAFETCH_TIMEOUT_SECONDS", "Override request timeout"},
		{"SRAFETCH_GEO_URL", "Override GEO endpoint"},
		{"SRAFETCH_ENA_URL", "Override ENA endpoint"},
	}

	printed := false
	for _, env := range envVars {
		val := os.Getenv(env.name)
		if val == "" {
			continue
		}
		if !printed {
			fmt.Fprintln(out)
			fmt.Fprintf(out, "%s\n", colorize(boldStyle, "Environment Variables:"))
			printed = true
		}
		fmt.Fprintf(out, "  %s = %s\n", colorize(warningStyle, env.name), colorize(keyStyle, val))
		if verbose {
			fmt.Fprintf(out, "    %s\n", colorize(dimStyle, env.desc))
		}
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "%s\n", colorize(boldStyle, "Path Status:"))
	for _, check := range []struct {
		name string
		path string
	}{
		{"Config", activeConfigPath()},
		{"Data Dir", p.DataDir},
		{"History", paths.GetDatabasePath()},
	} {
		if _, err := os.Stat(check.path); err == nil {
			fmt.Fprintf(out, "  %-10s %s\n", check.name+":", colorize(successStyle, "✓ exists"))
		} else {
			fmt.Fprintf(out, "  %-10s %s\n", check.name+":", colorize(dimStyle, "✗ not found"))
		}
	}

	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	path := activeConfigPath()

	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s %s\n", colorize(boldStyle, "Config File:"), path)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		fmt.Fprintln(out, colorize(warningStyle, "  (using defaults - no config file found)"))
	}
	fmt.Fprintln(out)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to format config: %w", err)
	}
	printYAML(out, string(data))
	return nil
}

// printYAML highlights keys and values of a marshalled config
func printYAML(out io.Writer, data string) {
	for _, line := range strings.Split(strings.TrimRight(data, "\n"), "\n") {
		switch {
		case strings.HasSuffix(line, ":") && !strings.Contains(line, " "):
			fmt.Fprintln(out, colorize(boldStyle, line))
		case strings.Contains(line, ": "):
			parts := strings.SplitN(line, ": ", 2)
			indent := len(line) - len(strings.TrimLeft(line, " "))
			fmt.Fprintf(out, "%s%s: %s\n",
				strings.Repeat(" ", indent),
				colorize(keyStyle, strings.TrimSpace(parts[0])),
				colorize(successStyle, parts[1]))
		default:
			fmt.Fprintln(out, line)
		}
	}
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		path = filepath.Join(paths.GetPaths().ConfigDir, "config.yaml")
	}

	if _, err := os.Stat(path); err == nil && !configForce {
		printWarning("Configuration already exists at %s", path)
		printInfo("Use --force to overwrite")
		return nil
	}

	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	if err := config.DefaultConfig().Save(path); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	printSuccess("Configuration created at %s", path)
	return nil
}
