package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"riskwatch/internal/logging"
)

// Config materialises application configuration.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Logging  logging.Config `mapstructure:"logging"`
	API      APIConfig      `mapstructure:"api"`
	Clock    ClockConfig    `mapstructure:"clock"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Watch    WatchConfig    `mapstructure:"watch"`
	Database DatabaseConfig `mapstructure:"database"`
	Stub     StubConfig     `mapstructure:"stub"`
}

// AppConfig general metadata.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
}

// APIConfig covers connectivity to the risk-evaluation service.
type APIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`
	Limit             int           `mapstructure:"limit"`
	UserAgent         string        `mapstructure:"user_agent"`
	BreakerEnabled    bool          `mapstructure:"breaker_enabled"`
	TriggerRatePerMin int           `mapstructure:"trigger_rate_per_min"`
}

// ClockConfig bounds simulated-time handling.
type ClockConfig struct {
	MaxFutureDrift time.Duration `mapstructure:"max_future_drift"`
	UntilSlack     time.Duration `mapstructure:"until_slack"`
	SimulatedNow   string        `mapstructure:"simulated_now"`
}

// FetchConfig governs window planning and empty-result recovery.
type FetchConfig struct {
	Interval           string          `mapstructure:"interval"`
	LookbackHours      int             `mapstructure:"lookback_hours"`
	WidenLookbackHours int             `mapstructure:"widen_lookback_hours"`
	RetryDelays        []time.Duration `mapstructure:"retry_delays"`
	TriggerPriority    int             `mapstructure:"trigger_priority"`
}

// WatchConfig tunes the long-running watch command.
type WatchConfig struct {
	RefreshEvery time.Duration `mapstructure:"refresh_every"`
	IncludeRaw   bool          `mapstructure:"include_raw"`
}

// DatabaseConfig encapsulates PostgreSQL connectivity for the stub server.
type DatabaseConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// StubConfig configures the development evaluation API stub.
type StubConfig struct {
	ListenAddr     string `mapstructure:"listen_addr"`
	SeedComponents bool   `mapstructure:"seed_components"`
}

// Load builds configuration from file, environment, and defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RISKWATCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := readConfig(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, decodeHook()); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func readConfig(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "riskwatch")
	v.SetDefault("app.environment", "development")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("api.base_url", "http://localhost:8787")
	v.SetDefault("api.request_timeout", "10s")
	v.SetDefault("api.limit", 1000)
	v.SetDefault("api.user_agent", "riskwatch/1.0")
	v.SetDefault("api.breaker_enabled", true)
	v.SetDefault("api.trigger_rate_per_min", 6)

	v.SetDefault("clock.max_future_drift", "5m")
	v.SetDefault("clock.until_slack", "5s")

	v.SetDefault("fetch.interval", "1h")
	v.SetDefault("fetch.lookback_hours", 48)
	v.SetDefault("fetch.widen_lookback_hours", 24)
	v.SetDefault("fetch.retry_delays", []string{"1200ms", "3200ms"})
	v.SetDefault("fetch.trigger_priority", 5)

	v.SetDefault("watch.refresh_every", "60s")
	v.SetDefault("watch.include_raw", false)

	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("stub.listen_addr", ":8787")
	v.SetDefault("stub.seed_components", true)
}

func decodeHook() viper.DecoderConfigOption {
	return func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "mapstructure"
		dc.DecodeHook = mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		)
	}
}

// Validate performs basic sanity checks on the configuration values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.API.Limit <= 0 {
		return fmt.Errorf("api.limit must be greater than zero")
	}
	switch c.Fetch.Interval {
	case "30m", "1h", "1d":
	default:
		return fmt.Errorf("fetch.interval must be one of 30m, 1h, 1d")
	}
	if c.Fetch.LookbackHours <= 0 {
		return fmt.Errorf("fetch.lookback_hours must be greater than zero")
	}
	if c.Fetch.WidenLookbackHours <= 0 {
		return fmt.Errorf("fetch.widen_lookback_hours must be greater than zero")
	}
	if len(c.Fetch.RetryDelays) > 2 {
		return fmt.Errorf("fetch.retry_delays supports at most two delays")
	}
	if c.Clock.MaxFutureDrift <= 0 {
		return fmt.Errorf("clock.max_future_drift must be greater than zero")
	}
	if c.Watch.RefreshEvery <= 0 {
		return fmt.Errorf("watch.refresh_every must be greater than zero")
	}
	return nil
}
