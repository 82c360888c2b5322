package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// SettingsFolder is the settings directory under $HOME.
	SettingsFolder = ".converge"
	// SettingsName is the settings file name without extension.
	SettingsName = "settings"
	// EnvPrefix prefixes environment overrides, e.g. CONVERGE_PARALLELISM.
	EnvPrefix = "CONVERGE"
)

// Settings are engine options that are not part of a stack.
type Settings struct {
	Parallelism int
	Log         LogSettings
	Retry       RetrySettings
	Timeouts    Timeouts
	MetricsFile string
	LockTimeout time.Duration
}

// LogSettings configures the console logger.
type LogSettings struct {
	Level  string
	Format string
}

// RetrySettings configures backoff for throttled provider calls.
type RetrySettings struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Timeouts bound a single provider call per action.
type Timeouts struct {
	Read   time.Duration
	Create time.Duration
	Update time.Duration
	Delete time.Duration
}

// flagKeys maps command-line flags to the settings they override.
var flagKeys = map[string]string{
	"parallelism":  "parallelism",
	"log-level":    "log.level",
	"log-format":   "log.format",
	"lock-timeout": "lock.timeout",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("parallelism", 10)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("retry.max_attempts", 5)
	v.SetDefault("retry.initial_delay", time.Second)
	v.SetDefault("retry.max_delay", 30*time.Second)
	v.SetDefault("timeouts.read", 5*time.Minute)
	v.SetDefault("timeouts.create", 30*time.Minute)
	v.SetDefault("timeouts.update", 30*time.Minute)
	v.SetDefault("timeouts.delete", 20*time.Minute)
	v.SetDefault("metrics.file", "")
	v.SetDefault("lock.timeout", time.Duration(0))
}

// LoadSettings reads settings from path (or $HOME/.converge/settings.* when
// path is empty and such a file exists), then the environment, then any
// changed flags in fs. fs may be nil.
func LoadSettings(path string, fs *pflag.FlagSet) (*Settings, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("failed to check if settings file exists: %w", err)
		}
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read settings: %w", err)
		}
	} else if home, err := os.UserHomeDir(); err == nil {
		v.SetConfigName(SettingsName)
		v.AddConfigPath(filepath.Join(home, SettingsFolder))
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read settings: %w", err)
			}
		}
	}

	if fs != nil {
		for flag, key := range flagKeys {
			if f := fs.Lookup(flag); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", flag, err)
				}
			}
		}
	}

	s := settingsFrom(v)
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// DefaultSettings returns the built-in defaults.
func DefaultSettings() *Settings {
	v := viper.New()
	setDefaults(v)
	return settingsFrom(v)
}

func settingsFrom(v *viper.Viper) *Settings {
	return &Settings{
		Parallelism: v.GetInt("parallelism"),
		Log: LogSettings{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
		Retry: RetrySettings{
			MaxAttempts:  v.GetInt("retry.max_attempts"),
			InitialDelay: v.GetDuration("retry.initial_delay"),
			MaxDelay:     v.GetDuration("retry.max_delay"),
		},
		Timeouts: Timeouts{
			Read:   v.GetDuration("timeouts.read"),
			Create: v.GetDuration("timeouts.create"),
			Update: v.GetDuration("timeouts.update"),
			Delete: v.GetDuration("timeouts.delete"),
		},
		MetricsFile: v.GetString("metrics.file"),
		LockTimeout: v.GetDuration("lock.timeout"),
	}
}

// Validate checks ranges.
func (s *Settings) Validate() error {
	if s.Parallelism < 1 {
		return fmt.Errorf("parallelism must be at least 1, got %d", s.Parallelism)
	}
	if s.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", s.Retry.MaxAttempts)
	}
	switch s.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format must be console or json, got %q", s.Log.Format)
	}
	return nil
}
