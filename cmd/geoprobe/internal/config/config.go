// Package config loads geoprobe settings from geoprobe.yaml, a .env file and
// GEOPROBE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/geolocator/pkg/platform"
)

// FileName is the optional configuration file read from the working directory.
const FileName = "geoprobe.yaml"

// Config represents the optional geoprobe.yaml configuration.
type Config struct {
	Track      string       `yaml:"track,omitempty"`
	Step       string       `yaml:"step,omitempty"`
	Loop       bool         `yaml:"loop,omitempty"`
	Permission string       `yaml:"permission,omitempty"`
	Listen     ListenConfig `yaml:"listen"`
	Log        LogConfig    `yaml:"log"`
}

// ListenConfig holds the StartListening arguments.
type ListenConfig struct {
	MinimumTime     string  `yaml:"minimum_time,omitempty"`
	MinimumDistance float64 `yaml:"minimum_distance,omitempty"`
	IncludeHeading  bool    `yaml:"include_heading,omitempty"`
	DesiredAccuracy float64 `yaml:"desired_accuracy,omitempty"`
	Timeout         string  `yaml:"timeout,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level,omitempty"`
}

// Resolved contains resolved configuration values.
type Resolved struct {
	Track           string
	Step            time.Duration
	Loop            bool
	Permission      platform.PermissionStatus
	MinimumTime     time.Duration
	MinimumDistance float64
	IncludeHeading  bool
	DesiredAccuracy float64
	Timeout         time.Duration
	LogLevel        slog.Level
}

// Defaults for values absent from every source.
const (
	DefaultMinimumTime = time.Second
	DefaultTimeout     = 30 * time.Second
)

// LoadOptional reads geoprobe.yaml if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// loadEnv reads dir/.env if present. Process environment variables take
// precedence over the file.
func loadEnv(dir string) (map[string]string, error) {
	env, err := godotenv.Read(filepath.Join(dir, ".env"))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			env = map[string]string{}
		} else {
			return nil, fmt.Errorf("failed to read .env: %w", err)
		}
	}
	for _, kv := range os.Environ() {
		key, value, ok := strings.Cut(kv, "=")
		if ok && strings.HasPrefix(key, "GEOPROBE_") {
			env[key] = value
		}
	}
	return env, nil
}

// Resolve loads geoprobe.yaml and .env (if present), applies GEOPROBE_*
// overrides and resolves defaults.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	env, err := loadEnv(dir)
	if err != nil {
		return nil, err
	}
	if err := cfg.applyEnv(env); err != nil {
		return nil, err
	}

	r := &Resolved{
		Track:           strings.TrimSpace(cfg.Track),
		Loop:            cfg.Loop,
		Permission:      platform.PermissionStatus(strings.TrimSpace(cfg.Permission)),
		MinimumDistance: cfg.Listen.MinimumDistance,
		IncludeHeading:  cfg.Listen.IncludeHeading,
		DesiredAccuracy: cfg.Listen.DesiredAccuracy,
		LogLevel:        parseLevel(cfg.Log.Level),
	}
	if r.Track != "" && !filepath.IsAbs(r.Track) {
		r.Track = filepath.Join(dir, r.Track)
	}
	if r.Step, err = parseDuration("step", cfg.Step, 0); err != nil {
		return nil, err
	}
	if r.MinimumTime, err = parseDuration("listen.minimum_time", cfg.Listen.MinimumTime, DefaultMinimumTime); err != nil {
		return nil, err
	}
	if r.Timeout, err = parseDuration("listen.timeout", cfg.Listen.Timeout, DefaultTimeout); err != nil {
		return nil, err
	}
	if r.MinimumDistance < 0 {
		return nil, fmt.Errorf("listen.minimum_distance must not be negative")
	}
	return r, nil
}

func (c *Config) applyEnv(env map[string]string) error {
	if v, ok := env["GEOPROBE_TRACK"]; ok {
		c.Track = v
	}
	if v, ok := env["GEOPROBE_STEP"]; ok {
		c.Step = v
	}
	if v, ok := env["GEOPROBE_PERMISSION"]; ok {
		c.Permission = v
	}
	if v, ok := env["GEOPROBE_LOG_LEVEL"]; ok {
		c.Log.Level = v
	}
	if v, ok := env["GEOPROBE_MINIMUM_TIME"]; ok {
		c.Listen.MinimumTime = v
	}
	if v, ok := env["GEOPROBE_TIMEOUT"]; ok {
		c.Listen.Timeout = v
	}
	if v, ok := env["GEOPROBE_LOOP"]; ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("GEOPROBE_LOOP: %w", err)
		}
		c.Loop = b
	}
	if v, ok := env["GEOPROBE_MINIMUM_DISTANCE"]; ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("GEOPROBE_MINIMUM_DISTANCE: %w", err)
		}
		c.Listen.MinimumDistance = f
	}
	return nil
}

func parseDuration(name, value string, def time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	return d, nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
