package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/BrandonKowalski/wayfinder/pkg/wayfinder"
)

const envPrefix = "WAYFINDER"

// Config keys, matching the mapstructure tags of wayfinder.Config.
const (
	cfgKeyLogLevel        = "log_level"
	cfgKeyLogPath         = "log_path"
	cfgKeyLogFormat       = "log_format"
	cfgKeyDisposeOnRemove = "dispose_on_remove"
	cfgKeyDefaultLifetime = "default_lifetime"
	cfgKeyLocale          = "locale"
	cfgKeyMetricsEnabled  = "metrics.enabled"
	cfgKeyMetricsNS       = "metrics.namespace"
	cfgKeyInspectAddr     = "inspect.addr"
)

// flagKeys binds command line flags to config keys.
var flagKeys = map[string]string{
	"log-level": cfgKeyLogLevel,
	"locale":    cfgKeyLocale,
	"metrics":   cfgKeyMetricsEnabled,
	"addr":      cfgKeyInspectAddr,
}

// loadConfig resolves the configuration of one invocation. Values come from,
// lowest first: built-in defaults, the config file, WAYFINDER_* environment
// variables and flags.
func loadConfig(cmd *cobra.Command, path string) (wayfinder.Config, error) {
	base := wayfinder.DefaultConfig()
	if path != "" {
		cfg, err := wayfinder.LoadConfig(path)
		if err != nil {
			return cfg, fmt.Errorf("load config: %w", err)
		}
		base = cfg
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault(cfgKeyLogLevel, base.LogLevel)
	v.SetDefault(cfgKeyLogPath, base.LogPath)
	v.SetDefault(cfgKeyLogFormat, base.LogFormat)
	v.SetDefault(cfgKeyDisposeOnRemove, base.DisposeOnRemove)
	v.SetDefault(cfgKeyDefaultLifetime, base.DefaultLifetime)
	v.SetDefault(cfgKeyLocale, base.Locale)
	v.SetDefault(cfgKeyMetricsEnabled, base.Metrics.Enabled)
	v.SetDefault(cfgKeyMetricsNS, base.Metrics.Namespace)
	v.SetDefault(cfgKeyInspectAddr, base.Inspect.Addr)

	for name, key := range flagKeys {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return base, fmt.Errorf("bind flag %s: %w", name, err)
		}
	}

	var cfg wayfinder.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return base, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return base, err
	}
	return cfg, nil
}
