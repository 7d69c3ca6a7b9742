// internal/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.UserAgent == "" {
		t.Error("default user agent missing")
	}
	if cfg.Timeout != 15*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 2 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RateLimit != 2.0 || cfg.RateBurst != 5 {
		t.Errorf("rate policy = %v/%d", cfg.RateLimit, cfg.RateBurst)
	}
	if cfg.DownloadDir != "downloads" {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	if cfg.TempDir != filepath.Join("downloads", ".tmp") {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if cfg.MaxWorkers != 4 {
		t.Errorf("MaxWorkers = %d", cfg.MaxWorkers)
	}
	if cfg.ListenAddress != ":9000" {
		t.Errorf("ListenAddress = %q", cfg.ListenAddress)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
}

func TestLoadYAMLFile(t *testing.T) {
	path := writeConfigFile(t, `
cookie: "did=web_abc"
timeout: 30s
max_retries: 5
rate_limit: 0.5
download_dir: /data/media
listen_address: ":8080"
log_level: debug
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.Cookie != "did=web_abc" {
		t.Errorf("Cookie = %q", cfg.Cookie)
	}
	if cfg.Timeout != 30*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
	if cfg.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", cfg.MaxRetries)
	}
	if cfg.RateLimit != 0.5 {
		t.Errorf("RateLimit = %v", cfg.RateLimit)
	}
	if cfg.DownloadDir != "/data/media" {
		t.Errorf("DownloadDir = %q", cfg.DownloadDir)
	}
	// Temp dir follows the configured download dir.
	if cfg.TempDir != filepath.Join("/data/media", ".tmp") {
		t.Errorf("TempDir = %q", cfg.TempDir)
	}
	if cfg.ListenAddress != ":8080" || cfg.LogLevel != "debug" {
		t.Errorf("server settings = %q/%q", cfg.ListenAddress, cfg.LogLevel)
	}
}

func TestLoadExpandsEnvironmentReferences(t *testing.T) {
	t.Setenv("TEST_KUAIGRAB_SECRET", "did=web_env")
	path := writeConfigFile(t, "cookie: \"${TEST_KUAIGRAB_SECRET}\"\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cookie != "did=web_env" {
		t.Fatalf("Cookie = %q, want the expanded value", cfg.Cookie)
	}
}

func TestLoadEnvironmentOverridesFile(t *testing.T) {
	t.Setenv("KUAIGRAB_COOKIE", "did=override")
	t.Setenv("KUAIGRAB_LISTEN_ADDRESS", ":7000")
	t.Setenv("KUAIGRAB_MAX_WORKERS", "8")
	t.Setenv("KUAIGRAB_TIMEOUT", "45s")
	path := writeConfigFile(t, `
cookie: "did=file"
listen_address: ":8080"
max_workers: 2
timeout: 10s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Cookie != "did=override" {
		t.Errorf("Cookie = %q", cfg.Cookie)
	}
	if cfg.ListenAddress != ":7000" {
		t.Errorf("ListenAddress = %q", cfg.ListenAddress)
	}
	if cfg.MaxWorkers != 8 {
		t.Errorf("MaxWorkers = %d", cfg.MaxWorkers)
	}
	if cfg.Timeout != 45*time.Second {
		t.Errorf("Timeout = %v", cfg.Timeout)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for a missing configuration file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	path := writeConfigFile(t, "cookie: [unterminated\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative timeout", func(c *Config) { c.Timeout = -time.Second }},
		{"negative retries", func(c *Config) { c.MaxRetries = -1 }},
		{"tiny chunk size", func(c *Config) { c.ChunkSize = 100 }},
		{"zero workers", func(c *Config) { c.MaxWorkers = 0 }},
		{"zero rate limit", func(c *Config) { c.RateLimit = 0 }},
		{"missing download dir", func(c *Config) { c.DownloadDir = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var cfg Config
			applyDefaults(&cfg)
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	base := t.TempDir()
	cfg := &Config{
		DownloadDir: filepath.Join(base, "downloads"),
		TempDir:     filepath.Join(base, "downloads", ".tmp"),
		HistoryDB:   filepath.Join(base, "state", "kuaigrab.db"),
	}

	if err := cfg.EnsureDirs(); err != nil {
		t.Fatalf("EnsureDirs: %v", err)
	}
	for _, dir := range []string{cfg.DownloadDir, cfg.TempDir, filepath.Join(base, "state")} {
		info, err := os.Stat(dir)
		if err != nil || !info.IsDir() {
			t.Errorf("directory %s missing: %v", dir, err)
		}
	}
}
