package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: 9090
  base_url: https://img.example.com
store:
  type: sqlite
  sqlite:
    path: /var/lib/imageshare/links.db
blob:
  type: file
  dir: /var/lib/imageshare/blobs
links:
  max_upload_bytes: 1048576
  default_duration: 7d
  sweep_interval: 30s
log:
  level: debug
  format: text
`
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 || cfg.Server.BaseURL != "https://img.example.com" {
		t.Errorf("server = %+v", cfg.Server)
	}
	if cfg.Store.Type != "sqlite" || cfg.Store.SQLite.Path != "/var/lib/imageshare/links.db" {
		t.Errorf("store = %+v", cfg.Store)
	}
	if cfg.Blob.Type != "file" || cfg.Blob.Dir != "/var/lib/imageshare/blobs" {
		t.Errorf("blob = %+v", cfg.Blob)
	}
	if cfg.Links.MaxUploadBytes != 1<<20 || cfg.Links.DefaultDuration != "7d" || cfg.Links.SweepInterval != 30*time.Second {
		t.Errorf("links = %+v", cfg.Links)
	}
	if lvl, _ := cfg.LogLevel(); lvl != slog.LevelDebug {
		t.Errorf("log level = %v", lvl)
	}
	// Untouched keys keep their defaults.
	if cfg.Server.Host != "0.0.0.0" || cfg.Links.MaxDimension != 10000 {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 || cfg.Store.Type != "memory" {
		t.Fatalf("cfg = %+v", cfg)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("STORE_TYPE", "redis")
	t.Setenv("BLOB_TYPE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SWEEP_INTERVAL", "1m")
	t.Setenv("METRICS_ENABLED", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 7070 || cfg.Store.Type != "redis" || cfg.Blob.Type != "redis" || cfg.Store.Redis.Addr != "redis:6379" {
		t.Fatalf("cfg = %+v", cfg)
	}
	if cfg.Links.SweepInterval != time.Minute || cfg.Metrics.Enabled {
		t.Fatalf("links/metrics = %+v %+v", cfg.Links, cfg.Metrics)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		errSub string
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }, "invalid port"},
		{"no base url", func(c *Config) { c.Server.BaseURL = "" }, "base_url"},
		{"bad store", func(c *Config) { c.Store.Type = "mongo" }, "invalid store type"},
		{"bad blob", func(c *Config) { c.Blob.Type = "s3" }, "invalid blob type"},
		{"mixed memory", func(c *Config) { c.Store.Type = "sqlite" }, "must be used together"},
		{"no upload limit", func(c *Config) { c.Links.MaxUploadBytes = 0 }, "max_upload_bytes"},
		{"bad duration", func(c *Config) { c.Links.DefaultDuration = "2w" }, "default_duration"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, "log level"},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }, "log format"},
		{"sqlite without path", func(c *Config) {
			c.Store.Type = "sqlite"
			c.Store.SQLite.Path = ""
			c.Blob.Type = "file"
		}, "sqlite path"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.errSub) {
				t.Fatalf("Validate() = %v, want error containing %q", err, tt.errSub)
			}
		})
	}
}
