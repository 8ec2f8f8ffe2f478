package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/nishad/srafetch/internal/ena"
	"github.com/nishad/srafetch/internal/errors"
	"github.com/nishad/srafetch/internal/export"
	"github.com/nishad/srafetch/internal/paths"
	"github.com/nishad/srafetch/internal/resolver"
	"gopkg.in/yaml.v3"
)

// Config represents the srafetch configuration
type Config struct {
	Endpoints EndpointsConfig `yaml:"endpoints"`
	Request   RequestConfig   `yaml:"request"`
	Output    OutputConfig    `yaml:"output"`
	History   HistoryConfig   `yaml:"history"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
}

// EndpointsConfig holds the archive base URLs
type EndpointsConfig struct {
	GEO string `yaml:"geo"` // GEO acc.cgi endpoint
	ENA string `yaml:"ena"` // ENA portal filereport endpoint
}

// RequestConfig controls pacing and HTTP behaviour
type RequestConfig struct {
	IntervalMS     int    `yaml:"interval_ms"`     // spacing between pipeline launches
	TimeoutSeconds int    `yaml:"timeout_seconds"` // per archive request
	MaxInFlight    int    `yaml:"max_in_flight"`   // 0 = unbounded
	UserAgent      string `yaml:"user_agent"`
}

// OutputConfig contains output defaults
type OutputConfig struct {
	Format string `yaml:"format"` // aria2, json, jsonl, yaml, tsv
	Path   string `yaml:"path"`   // "" or "-" for stdout, a file, or s3://bucket/key
}

// HistoryConfig contains batch history settings
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig contains HTTP API settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig contains remote output settings
type StorageConfig struct {
	S3 S3Config `yaml:"s3"`
}

// S3Config configures uploads to s3:// outputs
type S3Config struct {
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"` // for S3-compatible stores
	UsePathStyle bool   `yaml:"use_path_style"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Endpoints: EndpointsConfig{
			GEO: resolver.DefaultGEOURL,
			ENA: ena.DefaultFileReportURL,
		},
		Request: RequestConfig{
			IntervalMS:     200,
			TimeoutSeconds: 30,
			UserAgent:      "srafetch",
		},
		Output: OutputConfig{
			Format: string(export.FormatAria2),
		},
		History: HistoryConfig{
			Enabled: false,
			Path:    paths.GetDatabasePath(),
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
	}
}

// Load loads configuration from a file, then applies environment overrides
func Load(path string) (*Config, error) {
	const op errors.Op = "config.Load"

	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// defaults
		case err != nil:
			return nil, errors.E(op, errors.KindConfig, fmt.Errorf("failed to read config file: %w", err))
		default:
			if err := yaml.Unmarshal(data, config); err != nil {
				return nil, errors.E(op, errors.KindConfig, fmt.Errorf("failed to parse config file: %w", err))
			}
		}
	}

	if err := config.ApplyEnv(); err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}

	config.History.Path = expandPath(config.History.Path)
	config.Output.Path = expandPath(config.Output.Path)

	if err := config.Validate(); err != nil {
		return nil, errors.E(op, errors.KindConfig, err)
	}
	return config, nil
}

// LoadEnvFiles loads ./.env and the per-user .env file into the process
// environment. Variables already set are not overridden; missing files
// are ignored.
func LoadEnvFiles() error {
	for _, f := range []string{".env", paths.GetEnvFilePath()} {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("failed to load %s: %w", f, err)
		}
	}
	return nil
}

// ApplyEnv overrides settings from SRAFETCH_* environment variables
func (c *Config) ApplyEnv() error {
	if v := os.Getenv("SRAFETCH_INTERVAL_MS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SRAFETCH_INTERVAL_MS: %w", err)
		}
		c.Request.IntervalMS = n
	}
	if v := os.Getenv("SRAFETCH_TIMEOUT_SECONDS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SRAFETCH_TIMEOUT_SECONDS: %w", err)
		}
		c.Request.TimeoutSeconds = n
	}
	if v := os.Getenv("SRAFETCH_ENA_URL"); v != "" {
		c.Endpoints.ENA = v
	}
	if v := os.Getenv("SRAFETCH_GEO_URL"); v != "" {
		c.Endpoints.GEO = v
	}
	if v := os.Getenv("SRAFETCH_DB_PATH"); v != "" {
		c.History.Path = v
	}
	return nil
}

// Validate checks value ranges
func (c *Config) Validate() error {
	if c.Request.IntervalMS < 0 {
		return fmt.Errorf("request.interval_ms must not be negative, got %d", c.Request.IntervalMS)
	}
	if c.Request.TimeoutSeconds < 0 {
		return fmt.Errorf("request.timeout_seconds must not be negative, got %d", c.Request.TimeoutSeconds)
	}
	if c.Request.MaxInFlight < 0 {
		return fmt.Errorf("request.max_in_flight must not be negative, got %d", c.Request.MaxInFlight)
	}
	if _, err := export.ParseFormat(c.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Endpoints.GEO == "" || c.Endpoints.ENA == "" {
		return fmt.Errorf("endpoints.geo and endpoints.ena must be set")
	}
	return nil
}

// Interval returns the launch interval as a duration
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Request.IntervalMS) * time.Millisecond
}

// Timeout returns the per-request timeout; zero means none
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.Request.TimeoutSeconds) * time.Second
}

// Addr returns the API listen address
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetConfigPath returns the default config file path
func GetConfigPath() string {
	if path := os.Getenv("SRAFETCH_CONFIG"); path != "" {
		return path
	}

	if _, err := os.Stat("srafetch.yaml"); err == nil {
		return "srafetch.yaml"
	}

	p := paths.GetPaths()
	return filepath.Join(p.ConfigDir, "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}
