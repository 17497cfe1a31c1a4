// Package config loads persistcache settings from HuJSON files and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/tailscale/hujson"

	"github.com/jonwraymond/persistcache/codec"
	"github.com/jonwraymond/persistcache/fsys"
	"github.com/jonwraymond/persistcache/observe"
)

// Environment variables read by [Load].
const (
	EnvRoot     = fsys.EnvRoot
	EnvLogLevel = "PERSISTCACHE_LOG"
)

// Sentinel errors.
var (
	ErrInvalid      = errors.New("config: invalid configuration")
	ErrFileNotFound = errors.New("config: file not found")
	ErrFileRead     = errors.New("config: cannot read file")
	ErrMissingEnv   = errors.New("config: missing environment variables")
)

// Config holds all configuration options.
type Config struct {
	// Root is the cache directory. ${VAR} references are expanded.
	Root string `json:"root,omitempty"`
	// LogLevel enables structured logging at debug|info|warn|error.
	LogLevel string `json:"log_level,omitempty"` //nolint:tagliatelle // snake_case for config file
	// Codec names the value codec used for new slots.
	Codec string `json:"codec,omitempty"`
	// Compression is none|lz4|zstd.
	Compression string `json:"compression,omitempty"`
	// Telemetry selects trace and metric exporters.
	Telemetry Telemetry `json:"telemetry"`
}

// Telemetry configures OpenTelemetry export for memoized calls and clears.
// OTLP endpoints come from the standard OTEL_EXPORTER_OTLP_* variables.
type Telemetry struct {
	ServiceName string  `json:"service_name,omitempty"` //nolint:tagliatelle // snake_case for config file
	Traces      string  `json:"traces,omitempty"`
	Metrics     string  `json:"metrics,omitempty"`
	SampleRate  float64 `json:"sample_rate,omitempty"` //nolint:tagliatelle // snake_case for config file
}

// Observe returns the telemetry settings of c, including its log level.
func (c Config) Observe() observe.Config {
	return observe.Config{
		ServiceName: c.Telemetry.ServiceName,
		Traces:      c.Telemetry.Traces,
		Metrics:     c.Telemetry.Metrics,
		SampleRate:  c.Telemetry.SampleRate,
		LogLevel:    c.LogLevel,
	}
}

// Sources tracks which config files were loaded.
type Sources struct {
	Global   string // Path to global config if loaded, empty otherwise
	Explicit string // Path to explicit config if loaded, empty otherwise
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Codec:       codec.Default.Name(),
		Compression: codec.CompressionNone.String(),
	}
}

// Load resolves configuration with the following precedence (highest wins):
//  1. Defaults
//  2. Global config ($XDG_CONFIG_HOME/persistcache/config.json)
//  3. Explicit config file via configPath (if non-empty, must exist)
//  4. PERSISTCACHE_DIR and PERSISTCACHE_LOG
//
// env is a list of KEY=value pairs; nil means the process environment.
// An unset root resolves to [fsys.DefaultRoot].
func Load(configPath string, env []string) (Config, Sources, error) {
	if env == nil {
		env = os.Environ()
	}
	lookup := lookupIn(env)

	cfg := DefaultConfig()
	var sources Sources

	if path := globalConfigPath(lookup); path != "" {
		global, loaded, err := loadFile(path, false)
		if err != nil {
			return Config{}, Sources{}, err
		}
		if loaded {
			sources.Global = path
			cfg = merge(cfg, global)
		}
	}

	if configPath != "" {
		explicit, _, err := loadFile(configPath, true)
		if err != nil {
			return Config{}, Sources{}, err
		}
		sources.Explicit = configPath
		cfg = merge(cfg, explicit)
	}

	if v, ok := lookup(EnvRoot); ok && v != "" {
		cfg.Root = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		cfg.LogLevel = v
	}

	if cfg.Root != "" {
		root, err := ExpandEnvStrict(cfg.Root, lookup)
		if err != nil {
			return Config{}, Sources{}, err
		}
		cfg.Root = root
	} else {
		root, err := fsys.DefaultRoot()
		if err != nil {
			return Config{}, Sources{}, err
		}
		cfg.Root = root
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, Sources{}, err
	}
	return cfg, sources, nil
}

// Validate checks option values.
func (c Config) Validate() error {
	if err := c.Observe().Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if _, ok := codec.ByName(c.Codec); !ok {
		return fmt.Errorf("%w: unknown codec %q", ErrInvalid, c.Codec)
	}
	if _, err := codec.ParseCompression(c.Compression); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

// globalConfigPath uses $XDG_CONFIG_HOME/persistcache/config.json if set,
// otherwise ~/.config/persistcache/config.json.
func globalConfigPath(lookup func(string) (string, bool)) string {
	if xdg, ok := lookup("XDG_CONFIG_HOME"); ok && xdg != "" {
		return filepath.Join(xdg, "persistcache", "config.json")
	}
	home, ok := lookup("HOME")
	if !ok || home == "" {
		return ""
	}
	return filepath.Join(home, ".config", "persistcache", "config.json")
}

func loadFile(path string, mustExist bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is intentionally user-controlled
	if err != nil {
		if !mustExist {
			return Config{}, false, nil
		}
		if os.IsNotExist(err) {
			return Config{}, false, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return Config{}, false, fmt.Errorf("%w: %s: %w", ErrFileRead, path, err)
	}

	cfg, err := parse(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("%w %s: %w", ErrInvalid, path, err)
	}
	return cfg, true, nil
}

func parse(data []byte) (Config, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, fmt.Errorf("invalid HuJSON: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, fmt.Errorf("invalid JSON: %w", err)
	}
	return cfg, nil
}

func merge(base, over Config) Config {
	if over.Root != "" {
		base.Root = over.Root
	}
	if over.LogLevel != "" {
		base.LogLevel = over.LogLevel
	}
	if over.Codec != "" {
		base.Codec = over.Codec
	}
	if over.Compression != "" {
		base.Compression = over.Compression
	}
	t := over.Telemetry
	if t.ServiceName != "" {
		base.Telemetry.ServiceName = t.ServiceName
	}
	if t.Traces != "" {
		base.Telemetry.Traces = t.Traces
	}
	if t.Metrics != "" {
		base.Telemetry.Metrics = t.Metrics
	}
	if t.SampleRate != 0 {
		base.Telemetry.SampleRate = t.SampleRate
	}
	return base
}

// lookupIn returns a lookup over env; later entries win like in os/exec.
func lookupIn(env []string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		for i := len(env) - 1; i >= 0; i-- {
			if v, ok := strings.CutPrefix(env[i], key+"="); ok {
				return v, true
			}
		}
		return "", false
	}
}
