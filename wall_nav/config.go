package wall_nav

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrInvalidConfig marks configuration that must stop the process at startup.
var ErrInvalidConfig = errors.New("invalid config")

// NavigationConfig holds the wall-detection policy of the controller.
type NavigationConfig struct {
	WallDistanceThreshold float64       `mapstructure:"wall_distance_threshold" yaml:"wall_distance_threshold"`
	ForwardSpeed          float64       `mapstructure:"forward_speed" yaml:"forward_speed"`
	RotationAngle         float64       `mapstructure:"rotation_angle" yaml:"rotation_angle"`
	GoalResultTimeout     time.Duration `mapstructure:"goal_result_timeout" yaml:"goal_result_timeout"`
}

// RotationConfig holds the executor's actuation settings.
type RotationConfig struct {
	RotationSpeed float64       `mapstructure:"rotation_speed" yaml:"rotation_speed"` // rad/s
	TickPeriod    time.Duration `mapstructure:"tick_period" yaml:"tick_period"`
}

// LiveConfig controls UDP input settings for ranging frames.
type LiveConfig struct {
	UDPAddr    string `mapstructure:"udp_addr" yaml:"udp_addr"`
	ReadBuffer int    `mapstructure:"read_buffer" yaml:"read_buffer"`
	QueueSize  int    `mapstructure:"queue_size" yaml:"queue_size"`
}

// OutputConfig controls UDP output settings for velocity commands.
type OutputConfig struct {
	UDPAddr string `mapstructure:"udp_addr" yaml:"udp_addr"`
}

// HTTPConfig controls the request/response and goal protocol endpoints.
type HTTPConfig struct {
	Addr         string `mapstructure:"addr" yaml:"addr"`
	RotationAddr string `mapstructure:"rotation_addr" yaml:"rotation_addr"` // served by the rotate command
	RotationURL  string `mapstructure:"rotation_url" yaml:"rotation_url"`
}

// LogConfig controls the event log. Enabled turns on per-tick debug lines.
type LogConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	File       string `mapstructure:"file" yaml:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
}

// HistoryConfig controls the SQLite goal history. An empty path disables it.
type HistoryConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// AppConfig aggregates all configuration sections.
type AppConfig struct {
	Navigation NavigationConfig `mapstructure:"navigation" yaml:"navigation"`
	Rotation   RotationConfig   `mapstructure:"rotation" yaml:"rotation"`
	Live       LiveConfig       `mapstructure:"live" yaml:"live"`
	Output     OutputConfig     `mapstructure:"output" yaml:"output"`
	HTTP       HTTPConfig       `mapstructure:"http" yaml:"http"`
	Log        LogConfig        `mapstructure:"log" yaml:"log"`
	History    HistoryConfig    `mapstructure:"history" yaml:"history"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("navigation.wall_distance_threshold", 0.5)
	v.SetDefault("navigation.forward_speed", 0.2)
	v.SetDefault("navigation.rotation_angle", 90.0)
	v.SetDefault("navigation.goal_result_timeout", "30s")
	v.SetDefault("rotation.rotation_speed", 0.5)
	v.SetDefault("rotation.tick_period", "100ms")
	v.SetDefault("live.udp_addr", "127.0.0.1:9870")
	v.SetDefault("live.read_buffer", 65535)
	v.SetDefault("live.queue_size", 16)
	v.SetDefault("output.udp_addr", "127.0.0.1:9871")
	v.SetDefault("http.addr", "127.0.0.1:8080")
	v.SetDefault("http.rotation_addr", "127.0.0.1:8081")
	v.SetDefault("http.rotation_url", "http://127.0.0.1:8081")
	v.SetDefault("log.enabled", false)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 7)
	v.SetDefault("history.path", "")
}

// DefaultConfig returns the configuration with no file or environment applied.
func DefaultConfig() AppConfig {
	v := viper.New()
	SetDefaults(v)
	var cfg AppConfig
	// Defaults are static and always decode.
	_ = v.Unmarshal(&cfg)
	return cfg
}

// NewViper returns a viper instance with defaults and WALLNAV_* environment binding.
func NewViper() *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix("wallnav")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads an optional YAML/JSON config file over the defaults and environment.
func LoadConfig(path string) (AppConfig, error) {
	v := NewViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return AppConfig{}, fmt.Errorf("read config %q: %w", path, err)
		}
	}
	return DecodeConfig(v)
}

// DecodeConfig unmarshals v into an AppConfig without validating it.
func DecodeConfig(v *viper.Viper) (AppConfig, error) {
	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// Validate checks the controller settings.
func (c NavigationConfig) Validate() error {
	if c.WallDistanceThreshold <= 0 {
		return fmt.Errorf("%w: navigation.wall_distance_threshold must be > 0, got %v", ErrInvalidConfig, c.WallDistanceThreshold)
	}
	if c.GoalResultTimeout < 0 {
		return fmt.Errorf("%w: navigation.goal_result_timeout must be >= 0, got %v", ErrInvalidConfig, c.GoalResultTimeout)
	}
	return nil
}

// Validate checks the executor settings.
func (c RotationConfig) Validate() error {
	if c.RotationSpeed <= 0 {
		return fmt.Errorf("%w: rotation.rotation_speed must be > 0, got %v", ErrInvalidConfig, c.RotationSpeed)
	}
	if c.TickPeriod <= 0 {
		return fmt.Errorf("%w: rotation.tick_period must be > 0, got %v", ErrInvalidConfig, c.TickPeriod)
	}
	return nil
}

// Validate checks every section used at startup, then checks that the configured
// rotation fits inside the result watchdog at the configured speed.
func (c AppConfig) Validate() error {
	if err := errors.Join(c.Navigation.Validate(), c.Rotation.Validate()); err != nil {
		return err
	}
	return c.validateRotationBudget()
}

// watchdogSlack is the margin, in executor ticks, a rotation must leave before goal_result_timeout.
const watchdogSlack = 2

func (c AppConfig) validateRotationBudget() error {
	angle, speed := c.Navigation.RotationAngle, c.Rotation.RotationSpeed
	if err := CheckGoalAngle(angle, speed); err != nil {
		return fmt.Errorf("%w: navigation.rotation_angle: %v", ErrInvalidConfig, err)
	}
	timeout := c.Navigation.GoalResultTimeout
	if timeout == 0 {
		return nil
	}
	planned := PlanRotation(angle, speed).Duration
	if planned >= timeout-watchdogSlack*c.Rotation.TickPeriod {
		return fmt.Errorf("%w: navigation.goal_result_timeout %v does not cover a %v degree rotation at %v rad/s (%v)",
			ErrInvalidConfig, timeout, angle, speed, planned)
	}
	return nil
}
