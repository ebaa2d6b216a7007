package app

import (
	"errors"
	"fmt"
	"strings"
	"time"

	mapstructure "github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"go.uber.org/multierr"
)

// Config represents the runtime configuration for the ClassPulse server.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Session    SessionConfig    `mapstructure:"session"`
	Limits     LimitConfig      `mapstructure:"limits"`
	Sweeper    SweeperConfig    `mapstructure:"sweeper"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
}

// ServerConfig configures the HTTP/websocket listener.
type ServerConfig struct {
	Port     int    `mapstructure:"port"`
	LogLevel string `mapstructure:"log_level"`
}

// SessionConfig controls session lifecycle parameters.
type SessionConfig struct {
	CodeLength        int           `mapstructure:"code_length"`
	MaxParticipants   int           `mapstructure:"max_participants"`
	MaxRooms          int           `mapstructure:"max_rooms"`
	HostGracePeriod   time.Duration `mapstructure:"host_grace_period"`
	MaxAge            time.Duration `mapstructure:"max_age"`
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout"`
}

// LimitConfig bounds inbound payloads and per-connection event rates. The
// validation layer consumes these instead of hard-coding caps per handler.
type LimitConfig struct {
	ContentMaxLen     int           `mapstructure:"content_max_len"`
	DisplayNameMaxLen int           `mapstructure:"display_name_max_len"`
	MinPollOptions    int           `mapstructure:"min_poll_options"`
	MaxPollOptions    int           `mapstructure:"max_poll_options"`
	MaxSubmissions    int           `mapstructure:"max_submissions"`
	RateLimitEvents   int           `mapstructure:"rate_limit_events"`
	RateLimitWindow   time.Duration `mapstructure:"rate_limit_window"`
}

// SweeperConfig controls the expiry sweep schedule.
type SweeperConfig struct {
	Schedule string `mapstructure:"schedule"`
}

// MonitoringConfig enables health checks and metrics.
type MonitoringConfig struct {
	PrometheusEnabled  bool   `mapstructure:"prometheus_enabled"`
	PrometheusEndpoint string `mapstructure:"prometheus_endpoint"`
	HealthEnabled      bool   `mapstructure:"health_enabled"`
}

// LoadConfig initialises application configuration using Viper with sensible defaults.
func LoadConfig(paths ...string) (*Config, error) {
	v := viper.NewWithOptions(viper.ExperimentalBindStruct())
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.AddConfigPath("./config")
	for _, path := range paths {
		v.AddConfigPath(path)
	}

	setDefaults(v)

	v.SetEnvPrefix("CLASSPULSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var cfgErr viper.ConfigFileNotFoundError
		if !errors.As(err, &cfgErr) {
			return nil, fmt.Errorf("config: read file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config, decodeHook()); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate rejects configurations that would break session invariants. All
// violations are reported at once rather than first-wins.
func (c *Config) Validate() error {
	var errs error

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = multierr.Append(errs, fmt.Errorf("config: server.port %d out of range", c.Server.Port))
	}
	if c.Session.CodeLength < 4 || c.Session.CodeLength > 8 {
		errs = multierr.Append(errs, fmt.Errorf("config: session.code_length %d out of range [4,8]", c.Session.CodeLength))
	}
	if c.Session.MaxParticipants <= 0 {
		errs = multierr.Append(errs, errors.New("config: session.max_participants must be positive"))
	}
	if c.Session.MaxRooms <= 0 {
		errs = multierr.Append(errs, errors.New("config: session.max_rooms must be positive"))
	}
	if c.Session.HostGracePeriod <= 0 {
		errs = multierr.Append(errs, errors.New("config: session.host_grace_period must be positive"))
	}
	if c.Limits.MinPollOptions < 2 || c.Limits.MaxPollOptions < c.Limits.MinPollOptions {
		errs = multierr.Append(errs, errors.New("config: poll option bounds are inconsistent"))
	}
	if c.Limits.RateLimitEvents <= 0 || c.Limits.RateLimitWindow <= 0 {
		errs = multierr.Append(errs, errors.New("config: rate limit settings must be positive"))
	}
	if strings.TrimSpace(c.Sweeper.Schedule) == "" {
		errs = multierr.Append(errs, errors.New("config: sweeper.schedule must be set"))
	}

	return errs
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.log_level", "info")

	v.SetDefault("session.code_length", 6)
	v.SetDefault("session.max_participants", 200)
	v.SetDefault("session.max_rooms", 12)
	v.SetDefault("session.host_grace_period", "60s")
	v.SetDefault("session.max_age", "12h")
	v.SetDefault("session.inactivity_timeout", "2h")

	v.SetDefault("limits.content_max_len", 500)
	v.SetDefault("limits.display_name_max_len", 64)
	v.SetDefault("limits.min_poll_options", 2)
	v.SetDefault("limits.max_poll_options", 12)
	v.SetDefault("limits.max_submissions", 500)
	v.SetDefault("limits.rate_limit_events", 20)
	v.SetDefault("limits.rate_limit_window", "10s")

	v.SetDefault("sweeper.schedule", "@every 1m")

	v.SetDefault("monitoring.prometheus_enabled", true)
	v.SetDefault("monitoring.prometheus_endpoint", "/metrics")
	v.SetDefault("monitoring.health_enabled", true)
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
