package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Tracking TrackingConfig `mapstructure:"tracking"`
	Fetcher  FetcherConfig  `mapstructure:"fetcher"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Alert    AlertConfig    `mapstructure:"alert"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port         int      `mapstructure:"port"`
	JWTSecret    string   `mapstructure:"jwt_secret"`
	APIKeyHashes []string `mapstructure:"api_key_hashes"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite or postgres
	Path   string `mapstructure:"path"`   // sqlite database file
	DSN    string `mapstructure:"dsn"`    // postgres connection string
}

// TrackingConfig configures the external tracking API client.
type TrackingConfig struct {
	BaseURL              string        `mapstructure:"base_url"`
	APIKey               string        `mapstructure:"api_key"`
	Timeout              time.Duration `mapstructure:"timeout"`
	CacheTTL             time.Duration `mapstructure:"cache_ttl"`
	NegativeCacheTTL     time.Duration `mapstructure:"negative_cache_ttl"`
	HistoryWindowMinutes int           `mapstructure:"history_window_minutes"`
	HistoryLimit         int           `mapstructure:"history_limit"`
	VesselPageLimit      int           `mapstructure:"vessel_page_limit"`
}

type FetcherConfig struct {
	PollingIntervalMinutes int           `mapstructure:"polling_interval_minutes"`
	VesselDelay            time.Duration `mapstructure:"vessel_delay"`
	Autostart              bool          `mapstructure:"autostart"`
	EvaluateGeofences      bool          `mapstructure:"evaluate_geofences"`
}

type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
	IdentityCache bool   `mapstructure:"identity_cache"`
}

type AlertConfig struct {
	Slack struct {
		Token      string `mapstructure:"token"`
		Channel    string `mapstructure:"channel"`
		WebhookURL string `mapstructure:"webhook_url"`
	} `mapstructure:"slack"`
	Email struct {
		SMTPHost    string   `mapstructure:"smtp_host"`
		SMTPPort    int      `mapstructure:"smtp_port"`
		From        string   `mapstructure:"from"`
		Password    string   `mapstructure:"password"`
		ToReceivers []string `mapstructure:"to_receivers"`
	} `mapstructure:"email"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// PollingInterval returns the fetch cycle interval as a duration.
func (c FetcherConfig) PollingInterval() time.Duration {
	return time.Duration(c.PollingIntervalMinutes) * time.Minute
}

// setDefaults registers every key, including empty ones, so that
// AutomaticEnv overrides reach Unmarshal for keys absent from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.jwt_secret", "")
	v.SetDefault("server.api_key_hashes", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "data/vesseleye.db")
	v.SetDefault("database.dsn", "")

	v.SetDefault("tracking.base_url", "https://mission.oshendata.com/papi")
	v.SetDefault("tracking.api_key", "")
	v.SetDefault("tracking.timeout", 10*time.Second)
	v.SetDefault("tracking.cache_ttl", time.Hour)
	v.SetDefault("tracking.negative_cache_ttl", 5*time.Minute)
	v.SetDefault("tracking.history_window_minutes", 60)
	v.SetDefault("tracking.history_limit", 10)
	v.SetDefault("tracking.vessel_page_limit", 100)

	v.SetDefault("fetcher.polling_interval_minutes", 5)
	v.SetDefault("fetcher.vessel_delay", time.Second)
	v.SetDefault("fetcher.autostart", true)
	v.SetDefault("fetcher.evaluate_geofences", false)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "vesseleye")
	v.SetDefault("redis.identity_cache", false)

	v.SetDefault("alert.slack.token", "")
	v.SetDefault("alert.slack.channel", "")
	v.SetDefault("alert.slack.webhook_url", "")
	v.SetDefault("alert.email.smtp_host", "")
	v.SetDefault("alert.email.smtp_port", 587)
	v.SetDefault("alert.email.from", "")
	v.SetDefault("alert.email.password", "")
	v.SetDefault("alert.email.to_receivers", []string{})

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Load reads configuration from the given file (or config.yaml in the
// working directory when path is empty), overlays VESSELEYE_* environment
// variables and validates the result. A missing config file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("VESSELEYE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite driver")
		}
	case "postgres":
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for the postgres driver")
		}
	default:
		errs = append(errs, fmt.Sprintf("database.driver must be sqlite or postgres, got %q", c.Database.Driver))
	}

	if c.Tracking.BaseURL == "" {
		errs = append(errs, "tracking.base_url is required")
	}
	if c.Tracking.Timeout <= 0 {
		errs = append(errs, "tracking.timeout must be positive")
	}
	if c.Tracking.CacheTTL <= 0 || c.Tracking.NegativeCacheTTL <= 0 {
		errs = append(errs, "tracking cache TTLs must be positive")
	}
	if c.Tracking.HistoryLimit <= 0 {
		errs = append(errs, "tracking.history_limit must be positive")
	}
	if c.Fetcher.PollingIntervalMinutes <= 0 {
		errs = append(errs, "fetcher.polling_interval_minutes must be positive")
	}
	if c.Fetcher.VesselDelay < 0 {
		errs = append(errs, "fetcher.vessel_delay must not be negative")
	}
	if c.Redis.IdentityCache && c.Redis.Addr == "" {
		errs = append(errs, "redis.addr is required when redis.identity_cache is enabled")
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	levelValid := false
	for _, level := range validLevels {
		if strings.ToLower(c.Log.Level) == level {
			levelValid = true
			break
		}
	}
	if !levelValid {
		errs = append(errs, fmt.Sprintf("log.level must be one of: %s", strings.Join(validLevels, ", ")))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation errors:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
