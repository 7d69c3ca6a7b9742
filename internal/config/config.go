// internal/config/config.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the downloader session shared read-only by every component:
// credential, network policy, destination layout, and concurrency limits.
// It is effectively immutable after Load returns.
type Config struct {
	// Cookie is the session credential sent with detail-page requests.
	// Its absence is a warning at startup, not an error; authenticated
	// fetches will fail with an auth error at request time.
	Cookie    string `yaml:"cookie"`
	UserAgent string `yaml:"user_agent"`

	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
	RetryDelay time.Duration `yaml:"retry_delay"`
	Proxy      string        `yaml:"proxy"`

	RateLimit float64 `yaml:"rate_limit"` // requests per second against the platform
	RateBurst int     `yaml:"rate_burst"`

	DownloadDir string `yaml:"download_dir"`
	TempDir     string `yaml:"temp_dir"`
	HistoryDB   string `yaml:"history_db"`

	ChunkSize  int `yaml:"chunk_size"`
	MaxWorkers int `yaml:"max_workers"`

	ListenAddress string `yaml:"listen_address"`
	LogLevel      string `yaml:"log_level"`
}

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Load builds the process configuration. A .env file next to the working
// directory is loaded first (missing file is fine), then the optional YAML
// file with ${ENV} expansion, then direct environment overrides, then
// defaults and validation.
func Load(filename string) (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read configuration file: %w", err)
		}
		expanded := expandEnvironmentVariables(string(data))
		if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML configuration: %w", err)
		}
	}

	applyEnvironment(&cfg)
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// expandEnvironmentVariables substitutes ${VAR} references in the raw file.
func expandEnvironmentVariables(content string) string {
	return os.ExpandEnv(content)
}

// applyEnvironment overrides file values with KUAIGRAB_* environment
// variables so deployments can avoid writing secrets into the YAML file.
func applyEnvironment(cfg *Config) {
	if v := os.Getenv("KUAIGRAB_COOKIE"); v != "" {
		cfg.Cookie = v
	}
	if v := os.Getenv("KUAIGRAB_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("KUAIGRAB_DOWNLOAD_DIR"); v != "" {
		cfg.DownloadDir = v
	}
	if v := os.Getenv("KUAIGRAB_LISTEN_ADDRESS"); v != "" {
		cfg.ListenAddress = v
	}
	if v := os.Getenv("KUAIGRAB_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("KUAIGRAB_MAX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxWorkers = n
		}
	}
	if v := os.Getenv("KUAIGRAB_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
}

// applyDefaults fills every unset field with its documented default.
func applyDefaults(cfg *Config) {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 2
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 2.0
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = 5
	}
	if cfg.DownloadDir == "" {
		cfg.DownloadDir = "downloads"
	}
	if cfg.TempDir == "" {
		cfg.TempDir = filepath.Join(cfg.DownloadDir, ".tmp")
	}
	if cfg.HistoryDB == "" {
		cfg.HistoryDB = "kuaigrab.db"
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = 2 * 1024 * 1024
	}
	if cfg.MaxWorkers == 0 {
		cfg.MaxWorkers = 4
	}
	if cfg.ListenAddress == "" {
		cfg.ListenAddress = ":9000"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

// Validate checks the configuration for values that cannot work at runtime.
func (c *Config) Validate() error {
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	if c.ChunkSize < 1024 {
		return fmt.Errorf("chunk_size must be at least 1024 bytes")
	}
	if c.MaxWorkers < 1 {
		return fmt.Errorf("max_workers must be at least 1")
	}
	if c.RateLimit <= 0 {
		return fmt.Errorf("rate_limit must be positive")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download_dir is required")
	}
	return nil
}

// EnsureDirs creates the download and temp directories.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.DownloadDir, c.TempDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	if dir := filepath.Dir(c.HistoryDB); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}
