package config

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

// EngineConfig holds the tunable limits of the sensor read paths.
type EngineConfig struct {
	MaxRadiusKm      float64 `mapstructure:"max_radius_km"`
	DefaultListLimit int     `mapstructure:"default_list_limit"`
	MaxListLimit     int     `mapstructure:"max_list_limit"`
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxRadiusKm:      500,
		DefaultListLimit: 100,
		MaxListLimit:     1000,
	}
}

type EngineConfigHolder struct {
	current atomic.Value // holds EngineConfig
}

// NewStaticEngineConfigHolder returns a holder that never reloads.
func NewStaticEngineConfigHolder(cfg EngineConfig) *EngineConfigHolder {
	holder := &EngineConfigHolder{}
	holder.current.Store(cfg)
	return holder
}

func NewEngineConfigHolder(cfg Config) (*EngineConfigHolder, error) {
	v := viper.New()

	if path := strings.TrimSpace(cfg.EngineConfigPath); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("sensorhub")
		v.SetConfigType("yml")
		v.AddConfigPath("/etc/sensorhub")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("SENSORHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultEngineConfig()
	v.SetDefault("engine.max_radius_km", defaults.MaxRadiusKm)
	v.SetDefault("engine.default_list_limit", defaults.DefaultListLimit)
	v.SetDefault("engine.max_list_limit", defaults.MaxListLimit)

	watch := true
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
		watch = false
	}

	var engineCfg EngineConfig
	if err := v.UnmarshalKey("engine", &engineCfg); err != nil {
		return nil, err
	}
	if err := validateEngineConfig(engineCfg); err != nil {
		return nil, err
	}

	holder := NewStaticEngineConfigHolder(engineCfg)
	if !watch {
		return holder, nil
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		var updated EngineConfig
		if err := v.UnmarshalKey("engine", &updated); err != nil {
			zap.L().Warn("engine config reload failed", zap.Error(err))
			return
		}
		if err := validateEngineConfig(updated); err != nil {
			zap.L().Warn("invalid engine config ignored", zap.Error(err))
			return
		}
		holder.current.Store(updated)
		zap.L().Info("engine config reloaded", zap.String("file", e.Name))
	})

	return holder, nil
}

func (h *EngineConfigHolder) Get() EngineConfig {
	if h == nil {
		return DefaultEngineConfig()
	}
	return h.current.Load().(EngineConfig)
}

func validateEngineConfig(cfg EngineConfig) error {
	if cfg.MaxRadiusKm <= 0 {
		return errors.New("engine.max_radius_km must be positive")
	}
	if cfg.DefaultListLimit <= 0 {
		return errors.New("engine.default_list_limit must be positive")
	}
	if cfg.MaxListLimit < cfg.DefaultListLimit {
		return errors.New("engine.max_list_limit must be >= engine.default_list_limit")
	}
	return nil
}
