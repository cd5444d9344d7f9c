package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/OpenTraceLab/OpenTraceAHB/pkg/bridge"
)

// EnvPrefix is prepended to every environment variable, e.g.
// AHB_BRIDGES_DISABLE=ilpc,p2a.
const EnvPrefix = "AHB"

// Config is the complete tool configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Bridges BridgesConfig `mapstructure:"bridges"`
	Reset   ResetConfig   `mapstructure:"reset"`
}

// LogConfig controls diagnostic output.
type LogConfig struct {
	// Level is one of "debug", "info", "warn", "error" (default: "info")
	Level string `mapstructure:"level"`
}

// BridgesConfig adjusts which bridge drivers are probed.
type BridgesConfig struct {
	// Disable lists drivers that must not be probed
	Disable []string `mapstructure:"disable"`
	// Enable lists drivers to probe even if disabled by default (e.g. "sim")
	Enable []string `mapstructure:"enable"`
}

// ResetConfig controls the reset command.
type ResetConfig struct {
	// Settle, when non-zero, replaces the settle time reported by the watchdog
	Settle time.Duration `mapstructure:"settle"`
}

// New returns a viper instance reading defaults and the environment.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("bridges.disable", []string{})
	v.SetDefault("bridges.enable", []string{})
	v.SetDefault("reset.settle", time.Duration(0))
}

// Load decodes the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Reset.Settle < 0 {
		return nil, fmt.Errorf("reset.settle must not be negative, got %s", cfg.Reset.Settle)
	}
	return &cfg, nil
}

// Apply sets driver enablement on r. Enable wins over Disable for a driver
// named in both. Any earlier overrides are discarded first.
func (c *Config) Apply(r *bridge.Registry) error {
	r.ResetOverrides()
	for _, name := range c.Bridges.Disable {
		if err := r.SetEnabled(name, false); err != nil {
			return err
		}
	}
	for _, name := range c.Bridges.Enable {
		if err := r.SetEnabled(name, true); err != nil {
			return err
		}
	}
	return nil
}
