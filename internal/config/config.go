// Package config loads runtime settings from an optional YAML file and
// LOCKED_* environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/eliteGoblin/locked/internal/infra"
	"github.com/eliteGoblin/locked/internal/usecase"
)

// EnvPrefix prefixes every environment override (paths.data_dir -> LOCKED_PATHS_DATA_DIR).
const EnvPrefix = "LOCKED"

// Config is the complete runtime configuration.
type Config struct {
	Paths       PathsConfig       `mapstructure:"paths"`
	Snooze      SnoozeConfig      `mapstructure:"snooze"`
	Schedule    ScheduleConfig    `mapstructure:"schedule"`
	Relay       RelayConfig       `mapstructure:"relay"`
	Timer       TimerConfig       `mapstructure:"timer"`
	Enforcement EnforcementConfig `mapstructure:"enforcement"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Tag         TagConfig         `mapstructure:"tag"`
	Log         LogConfig         `mapstructure:"log"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`

	// Path is the config file that was read, empty when none.
	Path string `mapstructure:"-"`
}

type PathsConfig struct {
	DataDir   string `mapstructure:"data_dir" validate:"required"`
	SharedDir string `mapstructure:"shared_dir" validate:"required"`
	SignalDir string `mapstructure:"signal_dir" validate:"required"`
	TagFile   string `mapstructure:"tag_file" validate:"required"`
}

type SnoozeConfig struct {
	MaxPerDay int           `mapstructure:"max_per_day" validate:"min=1,max=20"`
	Duration  time.Duration `mapstructure:"duration" validate:"min=1m,max=30m"`
}

type ScheduleConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=1s"`
}

type RelayConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval" validate:"min=100ms"`
	Freshness    time.Duration `mapstructure:"freshness" validate:"min=1s"`
}

type TimerConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval" validate:"min=100ms"`
}

type EnforcementConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval" validate:"min=0"`
}

type RegistryConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval" validate:"min=1s"`
}

type TagConfig struct {
	Phrase string `mapstructure:"phrase" validate:"required"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Output string `mapstructure:"output" validate:"required"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen" validate:"omitempty,hostname_port"`
}

// StaleAfter is how old a heartbeat may be before the main process counts as dead.
func (r RegistryConfig) StaleAfter() time.Duration {
	return 3 * r.HeartbeatInterval
}

// SetDefaults registers every key with its default value.
func SetDefaults(v *viper.Viper) {
	paths := infra.DetectPaths()
	v.SetDefault("paths.data_dir", paths.DataDir)
	v.SetDefault("paths.shared_dir", paths.SharedDir)
	v.SetDefault("paths.signal_dir", paths.SignalDir)
	v.SetDefault("paths.tag_file", paths.TagFile)

	v.SetDefault("snooze.max_per_day", usecase.DefaultMaxSnoozesPerDay)
	v.SetDefault("snooze.duration", usecase.DefaultSnoozeDuration)
	v.SetDefault("schedule.poll_interval", 60*time.Second)
	v.SetDefault("relay.poll_interval", time.Second)
	v.SetDefault("relay.freshness", usecase.DefaultRequestFreshness)
	v.SetDefault("timer.tick_interval", time.Second)
	v.SetDefault("enforcement.enabled", false)
	v.SetDefault("enforcement.interval", 10*time.Second)
	v.SetDefault("registry.heartbeat_interval", 30*time.Second)
	v.SetDefault("tag.phrase", usecase.DefaultTagPhrase)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stderr")
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.listen", "127.0.0.1:9477")
}

// Load reads path (optional), applies environment overrides and validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into config struct: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	cfg.Path = path
	return &cfg, nil
}

// Validate checks ranges and required fields.
func Validate(cfg *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ParseLevel converts the configured level name to a zap level.
func (l LogConfig) ParseLevel() zapcore.Level {
	level, err := zapcore.ParseLevel(l.Level)
	if err != nil {
		return zapcore.InfoLevel
	}
	return level
}

// NewLogger builds the daemon logger: JSON lines with ISO8601 timestamps.
func (l LogConfig) NewLogger() (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	config.Level = zap.NewAtomicLevelAt(l.ParseLevel())
	config.OutputPaths = []string{l.Output}
	config.ErrorOutputPaths = []string{"stderr"}
	config.EncoderConfig.TimeKey = "time"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return config.Build()
}

// NewConsoleLogger builds the logger for one-shot commands.
func (l LogConfig) NewConsoleLogger() (*zap.Logger, error) {
	config := zap.NewDevelopmentConfig()
	config.Level = zap.NewAtomicLevelAt(l.ParseLevel())
	config.DisableStacktrace = true
	return config.Build()
}
