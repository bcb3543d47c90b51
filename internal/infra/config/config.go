package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	API       APISettings       `mapstructure:"api"`
	Broadcast BroadcastSettings `mapstructure:"broadcast"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Storage   StorageSettings   `mapstructure:"storage"`
	Logging   LoggingSettings   `mapstructure:"logging"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
}

// APISettings configures the request engine.
type APISettings struct {
	BaseURL                string        `mapstructure:"base_url"`
	Timeout                time.Duration `mapstructure:"timeout"`
	MaxAttempts            int           `mapstructure:"max_attempts"`
	RetryBaseDelay         time.Duration `mapstructure:"retry_base_delay"`
	UnauthorizedRetryDelay time.Duration `mapstructure:"unauthorized_retry_delay"`
	LoginPath              string        `mapstructure:"login_path"`
}

// BroadcastSettings configures the inter-context broadcast channel.
type BroadcastSettings struct {
	Backend        string        `mapstructure:"backend"` // "redis" or "local"
	Channel        string        `mapstructure:"channel"`
	CollectWindow  time.Duration `mapstructure:"collect_window"`
	RedirectDelay  time.Duration `mapstructure:"redirect_delay"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout"`
}

// RedisSettings configures Redis connection and TLS for the broadcast
// backend.
type RedisSettings struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	DB         int    `mapstructure:"db"`
	Password   string `mapstructure:"password"`
	TLSEnabled bool   `mapstructure:"tls_enabled"`
}

// StorageSettings locates the legacy shared credential store.
type StorageSettings struct {
	LegacyCredentialsPath string `mapstructure:"legacy_credentials_path"`
}

// LoggingSettings configures the optional rotating log file.
type LoggingSettings struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

func Load() (*AppConfig, error) {
	v := viper.New()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("EQUIPTRACK")

	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"api.base_url",
		"api.timeout",
		"api.max_attempts",
		"api.retry_base_delay",
		"api.unauthorized_retry_delay",
		"api.login_path",
		"broadcast.backend",
		"broadcast.channel",
		"broadcast.collect_window",
		"broadcast.redirect_delay",
		"broadcast.publish_timeout",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"storage.legacy_credentials_path",
		"logging.file",
		"logging.max_size_mb",
		"logging.max_backups",
		"logging.max_age_days",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "equiptrack")
	v.SetDefault("app.env", "development")

	v.SetDefault("api.base_url", "http://localhost:8000")
	v.SetDefault("api.timeout", "30s")
	v.SetDefault("api.max_attempts", 3)
	v.SetDefault("api.retry_base_delay", "1s")
	v.SetDefault("api.unauthorized_retry_delay", "500ms")
	v.SetDefault("api.login_path", "/api/auth/login")

	v.SetDefault("broadcast.backend", "local")
	v.SetDefault("broadcast.channel", "equiptrack:tab-session")
	v.SetDefault("broadcast.collect_window", "1s")
	v.SetDefault("broadcast.redirect_delay", "2s")
	v.SetDefault("broadcast.publish_timeout", "3s")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)

	v.SetDefault("storage.legacy_credentials_path", "")

	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size_mb", 10)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age_days", 14)
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, "EQUIPTRACK_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}
