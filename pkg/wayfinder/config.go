package wayfinder

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Config is the file-level configuration for a wayfinder host. It can be
// written as TOML or YAML; the decoder is picked by file extension.
type Config struct {
	LogLevel        string        `toml:"log_level" yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=debug info warn error"`
	LogPath         string        `toml:"log_path" yaml:"log_path" mapstructure:"log_path"`
	LogFormat       string        `toml:"log_format" yaml:"log_format" mapstructure:"log_format" validate:"omitempty,oneof=json text"`
	DisposeOnRemove bool          `toml:"dispose_on_remove" yaml:"dispose_on_remove" mapstructure:"dispose_on_remove"`
	DefaultLifetime string        `toml:"default_lifetime" yaml:"default_lifetime" mapstructure:"default_lifetime" validate:"omitempty,oneof=fresh cached"`
	Locale          string        `toml:"locale" yaml:"locale" mapstructure:"locale" validate:"omitempty,bcp47"`
	Metrics         MetricsConfig `toml:"metrics" yaml:"metrics" mapstructure:"metrics"`
	Inspect         InspectConfig `toml:"inspect" yaml:"inspect" mapstructure:"inspect"`
}

// MetricsConfig toggles the prometheus transition collector.
type MetricsConfig struct {
	Enabled   bool   `toml:"enabled" yaml:"enabled" mapstructure:"enabled"`
	Namespace string `toml:"namespace" yaml:"namespace" mapstructure:"namespace" validate:"required_if=Enabled true"`
}

// InspectConfig configures the read-only HTTP inspector.
type InspectConfig struct {
	Addr string `toml:"addr" yaml:"addr" mapstructure:"addr" validate:"omitempty,hostname_port"`
}

// Config defaults.
const (
	DefaultLogLevel    = "info"
	DefaultLifetime    = "fresh"
	DefaultLocale      = "en"
	DefaultNamespace   = "wayfinder"
	DefaultInspectAddr = "127.0.0.1:8089"
)

// ErrUnsupportedConfigFormat is returned for config files that are neither TOML nor YAML.
var ErrUnsupportedConfigFormat = errors.New("unsupported config file format")

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		LogLevel:        DefaultLogLevel,
		LogFormat:       "json",
		DisposeOnRemove: true,
		DefaultLifetime: DefaultLifetime,
		Locale:          DefaultLocale,
		Metrics:         MetricsConfig{Namespace: DefaultNamespace},
		Inspect:         InspectConfig{Addr: DefaultInspectAddr},
	}
}

// LoadConfig reads a TOML (.toml) or YAML (.yaml, .yml) file on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if _, err := toml.NewDecoder(bytes.NewReader(data)).Decode(&cfg); err != nil {
			return cfg, fmt.Errorf("decode toml config: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("decode yaml config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("%w: %s", ErrUnsupportedConfigFormat, path)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var configValidator = newConfigValidator()

func newConfigValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("bcp47", func(fl validator.FieldLevel) bool {
		_, err := language.Parse(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks field values against their rules.
func (c Config) Validate() error {
	if err := configValidator.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// LanguageTag returns the configured locale, falling back to English.
func (c Config) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Locale)
	if err != nil {
		return language.English
	}
	return tag
}

// Options converts the logging part of the config into Init options.
func (c Config) Options() Options {
	return Options{
		LogPath:   c.LogPath,
		LogFormat: c.LogFormat,
		LogLevel:  c.LogLevel,
	}
}
