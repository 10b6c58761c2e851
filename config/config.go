// config/config.go
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"image.share/internal/expiry"
)

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Blob    BlobConfig    `yaml:"blob"`
	Links   LinksConfig   `yaml:"links"`
	Log     LogConfig     `yaml:"log"`
	Metrics MetricsConfig `yaml:"metrics"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	BaseURL         string        `yaml:"base_url"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type StoreConfig struct {
	Type   string       `yaml:"type"`
	Redis  RedisConfig  `yaml:"redis"`
	SQLite SQLiteConfig `yaml:"sqlite"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type SQLiteConfig struct {
	Path string `yaml:"path"`
}

type BlobConfig struct {
	Type string `yaml:"type"`
	Dir  string `yaml:"dir"`
}

type LinksConfig struct {
	MaxUploadBytes  int64         `yaml:"max_upload_bytes"`
	MaxDimension    int           `yaml:"max_dimension"`
	DefaultDuration string        `yaml:"default_duration"`
	SweepInterval   time.Duration `yaml:"sweep_interval"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			BaseURL:         "http://localhost:8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Store: StoreConfig{
			Type: "memory",
			Redis: RedisConfig{
				Addr:     "localhost:6379",
				Password: "",
				DB:       0,
			},
			SQLite: SQLiteConfig{
				Path: "data/links.db",
			},
		},
		Blob: BlobConfig{
			Type: "memory",
			Dir:  "data/temp_images",
		},
		Links: LinksConfig{
			MaxUploadBytes:  5 << 20,
			MaxDimension:    10000,
			DefaultDuration: string(expiry.Day),
			SweepInterval:   10 * time.Minute,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
		},
	}
}

func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFromFile(path); err != nil {
			return nil, err
		}
	}

	// A missing .env is fine; real environment variables still win.
	_ = godotenv.Load(".env")
	cfg.loadFromEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File not found is OK, use defaults
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	return nil
}

func (c *Config) loadFromEnv() {
	// Server
	if v := os.Getenv("HOST"); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("BASE_URL"); v != "" {
		c.Server.BaseURL = v
	}
	setDuration("SHUTDOWN_TIMEOUT", &c.Server.ShutdownTimeout)

	if v := os.Getenv("STORE_TYPE"); v != "" {
		c.Store.Type = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		c.Store.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		c.Store.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			c.Store.Redis.DB = db
		}
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		c.Store.SQLite.Path = v
	}

	if v := os.Getenv("BLOB_TYPE"); v != "" {
		c.Blob.Type = v
	}
	if v := os.Getenv("BLOB_DIR"); v != "" {
		c.Blob.Dir = v
	}

	if v := os.Getenv("MAX_UPLOAD_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Links.MaxUploadBytes = n
		}
	}
	if v := os.Getenv("DEFAULT_DURATION"); v != "" {
		c.Links.DefaultDuration = v
	}
	setDuration("SWEEP_INTERVAL", &c.Links.SweepInterval)

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = v
	}

	if v := os.Getenv("METRICS_ENABLED"); v != "" {
		c.Metrics.Enabled = v == "true" || v == "1"
	}
}

func setDuration(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.BaseURL == "" {
		return fmt.Errorf("base_url is required")
	}

	switch c.Store.Type {
	case "memory":
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when store type is 'redis'")
		}
	case "sqlite":
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required when store type is 'sqlite'")
		}
	default:
		return fmt.Errorf("invalid store type: %s (must be 'memory', 'redis' or 'sqlite')", c.Store.Type)
	}

	switch c.Blob.Type {
	case "memory":
	case "file":
		if c.Blob.Dir == "" {
			return fmt.Errorf("blob dir is required when blob type is 'file'")
		}
	case "redis":
		if c.Store.Redis.Addr == "" {
			return fmt.Errorf("redis addr is required when blob type is 'redis'")
		}
	default:
		return fmt.Errorf("invalid blob type: %s (must be 'memory', 'file' or 'redis')", c.Blob.Type)
	}

	// Records and payloads must live and die together.
	if (c.Store.Type == "memory") != (c.Blob.Type == "memory") {
		return fmt.Errorf("memory store and memory blobs must be used together")
	}

	if c.Links.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive")
	}

	if c.Links.MaxDimension < 0 {
		return fmt.Errorf("max_dimension must not be negative")
	}

	if !expiry.Class(c.Links.DefaultDuration).Valid() {
		return fmt.Errorf("invalid default_duration: %s", c.Links.DefaultDuration)
	}

	if c.Links.SweepInterval < 0 {
		return fmt.Errorf("sweep_interval must not be negative")
	}

	if _, err := c.LogLevel(); err != nil {
		return err
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("invalid log format: %s (must be 'json' or 'text')", c.Log.Format)
	}

	return nil
}

func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", c.Log.Level)
	}
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
