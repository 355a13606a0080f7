// Package config loads the optional surfacekit.yaml configuration.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"

	"github.com/go-drift/surfacekit/pkg/logx"
)

// FileName is the config file looked up by LoadOptional.
const FileName = "surfacekit.yaml"

// Backend names accepted in the config file.
const (
	BackendAuto     = "auto"
	BackendSoftware = "software"
	BackendGL       = "gl"
	BackendMetal    = "metal"
)

// Config represents the optional surfacekit.yaml configuration.
type Config struct {
	Backend string      `yaml:"backend,omitempty"`
	GL      GLConfig    `yaml:"gl"`
	Metal   MetalConfig `yaml:"metal"`
	Video   VideoConfig `yaml:"video"`
	Log     LogConfig   `yaml:"log"`
}

// GLConfig contains OpenGL ES / EGL settings.
type GLConfig struct {
	// MinVersion is the lowest acceptable GL ES version, e.g. "3.0".
	MinVersion   string `yaml:"min_version,omitempty"`
	SwapInterval *int   `yaml:"swap_interval,omitempty"`
	SRGB         *bool  `yaml:"srgb,omitempty"`
}

// MetalConfig contains Metal settings.
type MetalConfig struct {
	PixelFormat string `yaml:"pixel_format,omitempty"`
	MaxInflight int    `yaml:"max_inflight,omitempty"`
}

// VideoConfig contains video import settings.
type VideoConfig struct {
	TextureCache  *bool `yaml:"texture_cache,omitempty"`
	CacheCapacity int   `yaml:"cache_capacity,omitempty"`
	PreferNV12    bool  `yaml:"prefer_nv12,omitempty"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level   string `yaml:"level,omitempty"`
	Verbose bool   `yaml:"verbose,omitempty"`
}

// Resolved contains configuration with defaults applied.
type Resolved struct {
	Backend       string
	GLMinVersion  string
	SwapInterval  int
	SRGB          bool
	PixelFormat   string
	MaxInflight   int
	TextureCache  bool
	CacheCapacity int
	PreferNV12    bool
	LogLevel      slog.Level
	Verbose       bool
}

// LoadOptional reads surfacekit.yaml from dir if present.
func LoadOptional(dir string) (*Config, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", FileName, err)
	}
	return Parse(data)
}

// Parse decodes a config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", FileName, err)
	}
	return &cfg, nil
}

// Resolve loads surfacekit.yaml (if present), applies defaults and validates.
func Resolve(dir string) (*Resolved, error) {
	cfg, err := LoadOptional(dir)
	if err != nil {
		return nil, err
	}
	return cfg.Resolve()
}

// Resolve applies defaults and validates the config.
func (c *Config) Resolve() (*Resolved, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	r := &Resolved{
		Backend:       strings.ToLower(strings.TrimSpace(c.Backend)),
		GLMinVersion:  NormalizeVersion(c.GL.MinVersion),
		SwapInterval:  1,
		SRGB:          true,
		PixelFormat:   c.Metal.PixelFormat,
		MaxInflight:   c.Metal.MaxInflight,
		TextureCache:  true,
		CacheCapacity: c.Video.CacheCapacity,
		PreferNV12:    c.Video.PreferNV12,
		Verbose:       c.Log.Verbose,
	}
	if r.Backend == "" {
		r.Backend = BackendAuto
	}
	if r.GLMinVersion == "" {
		r.GLMinVersion = "v2.0"
	}
	if c.GL.SwapInterval != nil {
		r.SwapInterval = *c.GL.SwapInterval
	}
	if c.GL.SRGB != nil {
		r.SRGB = *c.GL.SRGB
	}
	if r.PixelFormat == "" {
		r.PixelFormat = "bgra8unorm"
	}
	if r.MaxInflight == 0 {
		r.MaxInflight = 3
	}
	if c.Video.TextureCache != nil {
		r.TextureCache = *c.Video.TextureCache
	}
	if r.CacheCapacity == 0 {
		r.CacheCapacity = 8
	}
	r.LogLevel, _ = logx.ParseLevel(c.Log.Level)
	return r, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Backend)) {
	case "", BackendAuto, BackendSoftware, BackendGL, BackendMetal:
	default:
		return fmt.Errorf("config: unknown backend %q", c.Backend)
	}
	if c.GL.MinVersion != "" && !semver.IsValid(NormalizeVersion(c.GL.MinVersion)) {
		return fmt.Errorf("config: invalid gl.min_version %q", c.GL.MinVersion)
	}
	if c.GL.SwapInterval != nil && *c.GL.SwapInterval < 0 {
		return fmt.Errorf("config: gl.swap_interval must be >= 0, got %d", *c.GL.SwapInterval)
	}
	switch strings.ToLower(c.Metal.PixelFormat) {
	case "", "bgra8unorm", "bgra8unorm_srgb", "rgba8unorm":
	default:
		return fmt.Errorf("config: unknown metal.pixel_format %q", c.Metal.PixelFormat)
	}
	if c.Metal.MaxInflight < 0 {
		return fmt.Errorf("config: metal.max_inflight must be >= 0, got %d", c.Metal.MaxInflight)
	}
	if c.Video.CacheCapacity < 0 {
		return fmt.Errorf("config: video.cache_capacity must be >= 0, got %d", c.Video.CacheCapacity)
	}
	if _, err := logx.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NormalizeVersion turns "3", "3.1" or "v3.1" into the "vMAJOR.MINOR" form
// semver understands. Empty input stays empty.
func NormalizeVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return ""
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if strings.Count(v, ".") == 0 {
		v += ".0"
	}
	return v
}
