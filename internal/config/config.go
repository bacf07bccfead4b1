// Package config loads the observatory server configuration from YAML with
// ${VAR} environment expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the observatory API configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Store       StoreConfig       `yaml:"store"`
	Download    DownloadConfig    `yaml:"download"`
	ConfigStore ConfigStoreConfig `yaml:"config_store"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// StoreConfig holds document-store transport settings. Mode "direct" talks
// to the store URL with the index appended per call; "passthrough" posts to
// a templated endpoint with an {INDEX} placeholder.
type StoreConfig struct {
	Mode     string `yaml:"mode"` // direct, passthrough (default: passthrough)
	URL      string `yaml:"url"`
	Endpoint string `yaml:"endpoint"`
	Index    string `yaml:"index"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	// DefaultTake is the initial result-window size.
	DefaultTake int `yaml:"default_take"`
	// AggregationAlerts surfaces a consolidated warning when aggregation
	// chunks are skipped.
	AggregationAlerts bool `yaml:"aggregation_alerts"`
}

// DownloadConfig holds download path resolution settings.
type DownloadConfig struct {
	Mode        string `yaml:"mode"` // api, s3, local
	API         string `yaml:"api"`
	PathField   string `yaml:"path_field"`
	RawFileRoot string `yaml:"raw_file_root"`
	S3Bucket    string `yaml:"s3_bucket"`
}

// ConfigStoreConfig holds FullConfig persistence settings.
type ConfigStoreConfig struct {
	Backend  string   `yaml:"backend"` // file, redis (default: file)
	Path     string   `yaml:"path"`
	Addrs    []string `yaml:"addrs"`
	Password string   `yaml:"password"`
	Key      string   `yaml:"key"`
}

// Load reads configuration from a YAML file by environment name (local,
// dev, prod).
func Load(env string) (Config, error) {
	path := filepath.Join("config", fmt.Sprintf("%s.yaml", env))

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting
// to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Store.Mode == "" {
		c.Store.Mode = "passthrough"
	}
	if c.Store.DefaultTake <= 0 {
		c.Store.DefaultTake = 250
	}
	if c.Download.Mode == "" {
		c.Download.Mode = "api"
	}
	if c.ConfigStore.Backend == "" {
		c.ConfigStore.Backend = "file"
	}
	if c.ConfigStore.Path == "" {
		c.ConfigStore.Path = "observatory-config.json"
	}
	if c.ConfigStore.Key == "" {
		c.ConfigStore.Key = "observatory:config"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Store.Mode {
	case "direct":
		if c.Store.URL == "" {
			return fmt.Errorf("store.url is required in direct mode")
		}
	case "passthrough":
		if c.Store.Endpoint == "" {
			return fmt.Errorf("store.endpoint is required in passthrough mode")
		}
		if !strings.Contains(c.Store.Endpoint, "{INDEX}") {
			return fmt.Errorf("store.endpoint must contain an {INDEX} placeholder")
		}
	default:
		return fmt.Errorf("store.mode must be \"direct\" or \"passthrough\", got %q", c.Store.Mode)
	}
	switch c.Download.Mode {
	case "api", "s3", "local":
		// ok
	default:
		return fmt.Errorf("download.mode must be \"api\", \"s3\" or \"local\", got %q", c.Download.Mode)
	}
	switch c.ConfigStore.Backend {
	case "file":
		// ok
	case "redis":
		if len(c.ConfigStore.Addrs) == 0 {
			return fmt.Errorf("config_store.addrs is required for the redis backend")
		}
	default:
		return fmt.Errorf("config_store.backend must be \"file\" or \"redis\", got %q", c.ConfigStore.Backend)
	}
	return nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment
// variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
