package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	envPrefix           = "SLATED"
	defaultHTTPAddress  = "0.0.0.0:8080"
	defaultDatabasePath = "slated.db"
	defaultLogLevel     = "info"
	defaultAccessTTL    = 30
	defaultRefreshTTL   = 168
	defaultNotifyBuffer = 256
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPAddress   string
	DatabasePath  string
	LogLevel      string
	SigningSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	RedisURL      string
	NotifyBuffer  int
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()

	configViper.SetDefault("http.address", defaultHTTPAddress)
	configViper.SetDefault("database.path", defaultDatabasePath)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("auth.access_ttl_minutes", defaultAccessTTL)
	configViper.SetDefault("auth.refresh_ttl_hours", defaultRefreshTTL)
	configViper.SetDefault("notify.buffer", defaultNotifyBuffer)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPAddress:   configViper.GetString("http.address"),
		DatabasePath:  configViper.GetString("database.path"),
		LogLevel:      configViper.GetString("log.level"),
		SigningSecret: configViper.GetString("auth.signing_secret"),
		AccessTTL:     time.Duration(configViper.GetInt("auth.access_ttl_minutes")) * time.Minute,
		RefreshTTL:    time.Duration(configViper.GetInt("auth.refresh_ttl_hours")) * time.Hour,
		RedisURL:      configViper.GetString("redis.url"),
		NotifyBuffer:  configViper.GetInt("notify.buffer"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}
	return cfg, nil
}

func (c AppConfig) validate() error {
	if strings.TrimSpace(c.SigningSecret) == "" {
		return fmt.Errorf("auth.signing_secret is required")
	}
	if strings.TrimSpace(c.DatabasePath) == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.AccessTTL <= 0 {
		return fmt.Errorf("auth.access_ttl_minutes must be positive")
	}
	if c.RefreshTTL <= 0 {
		return fmt.Errorf("auth.refresh_ttl_hours must be positive")
	}
	return nil
}
