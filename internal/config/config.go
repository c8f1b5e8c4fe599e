// Package config loads dtsynth settings from flags, environment and an
// optional config file through viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/jward/dtsynth/internal/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. DTSYNTH_STRATEGY.
const EnvPrefix = "DTSYNTH"

// Config holds every tunable of the CLI.
type Config struct {
	Strategy         string        `mapstructure:"strategy"`
	ClassifierScript string        `mapstructure:"classifier_script"`
	IgnoreFunctions  []string      `mapstructure:"ignore_functions"`
	Parallel         bool          `mapstructure:"parallel"`
	Workers          int           `mapstructure:"workers"`
	Export           bool          `mapstructure:"export"`
	MarkOptional     bool          `mapstructure:"mark_optional"`
	DB               string        `mapstructure:"db"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
	TestTimeout      time.Duration `mapstructure:"test_timeout"`
	OutputDir        string        `mapstructure:"output_dir"`
}

// Defaults returns the built-in configuration.
func Defaults() Config {
	return Config{
		Strategy:        "simple",
		IgnoreFunctions: []string{"[Anonymous]"},
		Parallel:        true,
		LogLevel:        "info",
		LogFormat:       "text",
		TestTimeout:     60 * time.Second,
	}
}

// SetDefaults registers Defaults on v so unset keys fall back to them.
func SetDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("strategy", d.Strategy)
	v.SetDefault("classifier_script", d.ClassifierScript)
	v.SetDefault("ignore_functions", d.IgnoreFunctions)
	v.SetDefault("parallel", d.Parallel)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("export", d.Export)
	v.SetDefault("mark_optional", d.MarkOptional)
	v.SetDefault("db", d.DB)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("test_timeout", d.TestTimeout)
	v.SetDefault("output_dir", d.OutputDir)
}

// Load reads configFile (if non-empty) and the environment into v, then
// decodes the result. Flags bound to v with BindPFlag take precedence.
func Load(v *viper.Viper, configFile string) (Config, error) {
	SetDefaults(v)
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Validate checks field combinations. Strategy names are checked by the
// engine, which owns the registry.
func (c Config) Validate() error {
	if c.Strategy == "" {
		return fmt.Errorf("strategy must not be empty")
	}
	if c.Strategy == "script" && c.ClassifierScript == "" {
		return fmt.Errorf("strategy \"script\" requires classifier_script")
	}
	if c.Workers < 0 {
		return fmt.Errorf("workers must not be negative")
	}
	if c.TestTimeout < 0 {
		return fmt.Errorf("test_timeout must not be negative")
	}
	return c.Logging().Validate()
}

// Logging returns the logger options implied by c.
func (c Config) Logging() logging.Options {
	return logging.Options{Level: c.LogLevel, Format: logging.Format(c.LogFormat)}
}
