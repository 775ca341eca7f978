package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Gateway kinds understood by the application.
const (
	GatewayHTTP    = "http"
	GatewayMailbox = "mailbox"
)

// GatewayConfig selects and configures the remote source of truth.
type GatewayConfig struct {
	// Kind is either "http" or "mailbox".
	Kind string `mapstructure:"kind" yaml:"kind" validate:"required,oneof=http mailbox"`

	// BaseURL is the root of the notification REST API (http kind only).
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`

	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout" validate:"gt=0"`
	MaxRetries int           `mapstructure:"max_retries" yaml:"max_retries" validate:"gte=0,lte=10"`
}

// MailboxConfig holds IMAP settings for the mailbox gateway.
type MailboxConfig struct {
	Host     string `mapstructure:"host" yaml:"host" validate:"omitempty,hostname|ip"`
	Port     int    `mapstructure:"port" yaml:"port" validate:"gte=0,lte=65535"`
	Username string `mapstructure:"username" yaml:"username"`
	Folder   string `mapstructure:"folder" yaml:"folder"`
	TLS      bool   `mapstructure:"tls" yaml:"tls"`
}

// CacheConfig controls the in-memory snapshot and its on-disk mirror.
type CacheConfig struct {
	StaleAfter time.Duration `mapstructure:"stale_after" yaml:"stale_after" validate:"gt=0"`

	// DBPath is the SQLite file used to persist the last snapshot.
	// Empty disables persistence.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// SyncConfig controls background refreshing.
type SyncConfig struct {
	Interval time.Duration `mapstructure:"interval" yaml:"interval" validate:"gt=0"`
}

// ServerConfig holds settings for the JSON API used by the web dashboard.
type ServerConfig struct {
	Addr           string   `mapstructure:"addr" yaml:"addr" validate:"required"`
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins"`

	// RateLimit is the per-client request rate in requests per second.
	// Zero disables limiting.
	RateLimit float64 `mapstructure:"rate_limit" yaml:"rate_limit" validate:"gte=0"`
	Burst     int     `mapstructure:"burst" yaml:"burst" validate:"gte=0"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`

	// File receives log output. Empty means stdout.
	File string `mapstructure:"file" yaml:"file"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Gateway GatewayConfig `mapstructure:"gateway" yaml:"gateway"`
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox"`
	Cache   CacheConfig   `mapstructure:"cache" yaml:"cache"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

// envPrefix is prepended to every environment override, so
// gateway.base_url becomes NOTIFCENTER_GATEWAY_BASE_URL.
const envPrefix = "NOTIFCENTER"

var validate = validator.New()

// DefaultConfigDir returns ~/.config/notifcenter.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "notifcenter")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/notifcenter/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.kind", GatewayHTTP)
	v.SetDefault("gateway.base_url", "http://localhost:8080")
	v.SetDefault("gateway.timeout", 30*time.Second)
	v.SetDefault("gateway.max_retries", 3)
	v.SetDefault("mailbox.host", "")
	v.SetDefault("mailbox.port", 993)
	v.SetDefault("mailbox.username", "")
	v.SetDefault("mailbox.folder", "INBOX")
	v.SetDefault("mailbox.tls", true)
	v.SetDefault("cache.stale_after", 30*time.Second)
	v.SetDefault("cache.db_path", filepath.Join(DefaultConfigDir(), "cache.db"))
	v.SetDefault("sync.interval", 5*time.Second)
	v.SetDefault("server.addr", ":8090")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.burst", 40)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// A missing file is not an error: defaults and environment overrides still
// apply. A .env file in the working directory is loaded first if present.
func LoadConfig(path string) (*AppConfig, error) {
	// .env is optional; real environment variables take precedence.
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate checks field-level constraints on the configuration.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Gateway.Kind == GatewayHTTP && c.Gateway.BaseURL == "" {
		return errors.New("gateway.base_url is required when gateway.kind is http")
	}
	if c.Gateway.Kind == GatewayMailbox && c.Mailbox.Host == "" {
		return errors.New("mailbox.host is required when gateway.kind is mailbox")
	}
	return nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("gateway", map[string]any{
		"kind":        cfg.Gateway.Kind,
		"base_url":    cfg.Gateway.BaseURL,
		"timeout":     cfg.Gateway.Timeout.String(),
		"max_retries": cfg.Gateway.MaxRetries,
	})
	v.Set("mailbox", map[string]any{
		"host":     cfg.Mailbox.Host,
		"port":     cfg.Mailbox.Port,
		"username": cfg.Mailbox.Username,
		"folder":   cfg.Mailbox.Folder,
		"tls":      cfg.Mailbox.TLS,
	})
	v.Set("cache", map[string]any{
		"stale_after": cfg.Cache.StaleAfter.String(),
		"db_path":     cfg.Cache.DBPath,
	})
	v.Set("sync", map[string]any{"interval": cfg.Sync.Interval.String()})
	v.Set("server", map[string]any{
		"addr":            cfg.Server.Addr,
		"allowed_origins": cfg.Server.AllowedOrigins,
		"rate_limit":      cfg.Server.RateLimit,
		"burst":           cfg.Server.Burst,
	})
	v.Set("log", map[string]any{"level": cfg.Log.Level, "file": cfg.Log.File})

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}
