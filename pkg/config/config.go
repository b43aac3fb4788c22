// Package config loads the optional covertower.toml configuration file.
//
// The file carries site-level settings that would otherwise need repeating
// on every invocation: default theme and view, column-alias overrides for
// schemas the built-in alias lists have never seen, palette overrides, and
// cache backend selection for server deployments.
//
// Lookup order: an explicit --config path, then ./covertower.toml, then
// $XDG_CONFIG_HOME/covertower/covertower.toml (~/.config fallback). A
// missing file is not an error; every setting has a working default.
package config

import (
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"

	"github.com/rawp123/covertower/pkg/errors"
	"github.com/rawp123/covertower/pkg/pipeline"
)

// FileName is the config file's well-known name.
const FileName = "covertower.toml"

// Cache backend names accepted in [cache] backend.
const (
	BackendFile  = "file"
	BackendNull  = "null"
	BackendRedis = "redis"
	BackendMongo = "mongo"
)

// Config is the parsed configuration file.
type Config struct {
	// Theme is the default color theme (light or dark).
	Theme string `toml:"theme"`

	// View is the default grouping view (carrier, carrierGroup, availability).
	View string `toml:"view"`

	// Aliases maps site-specific source column names to the canonical
	// column names the normalizer understands.
	Aliases map[string]string `toml:"aliases"`

	Palette PaletteConfig `toml:"palette"`
	Cache   CacheConfig   `toml:"cache"`
}

// PaletteConfig overrides the curated color palettes. Both lists must be
// present and the same length; slot indexes stay aligned between themes.
type PaletteConfig struct {
	Light []string `toml:"light"`
	Dark  []string `toml:"dark"`
}

// CacheConfig selects and configures the cache backend.
type CacheConfig struct {
	// Backend is one of file (default), null, redis, mongo.
	Backend string `toml:"backend"`

	// Dir overrides the file backend's XDG cache directory.
	Dir string `toml:"dir"`

	// RedisURL configures the redis backend (redis://host:port/db).
	RedisURL string `toml:"redis_url"`

	// Mongo settings for the mongo backend.
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// Load parses and validates the config file at path.
func Load(path string) (Config, error) {
	var c Config
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return Config{}, errors.Wrap(errors.ErrCodeInvalidConfig, err, "parse config %s", path)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadDefault searches the standard locations and loads the first config
// file found. A zero Config with no error means no file exists.
func LoadDefault() (Config, error) {
	path := Find()
	if path == "" {
		return Config{}, nil
	}
	return Load(path)
}

// Find returns the path of the first config file in the standard lookup
// order, or "" when none exists.
func Find() string {
	candidates := []string{FileName}
	if dir, err := configDir(); err == nil {
		candidates = append(candidates, filepath.Join(dir, FileName))
	}
	for _, p := range candidates {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

// configDir returns the XDG config directory for the application.
func configDir() (string, error) {
	if configHome := os.Getenv("XDG_CONFIG_HOME"); configHome != "" {
		return filepath.Join(configHome, "covertower"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "covertower"), nil
}

func (c Config) validate() error {
	if c.Theme != "" && !pipeline.ValidThemes[c.Theme] {
		return errors.New(errors.ErrCodeInvalidConfig,
			"config theme %q: must be light or dark", c.Theme)
	}
	if c.View != "" {
		if err := pipeline.ValidateView(c.View); err != nil {
			return errors.Wrap(errors.ErrCodeInvalidConfig, err, "config view")
		}
	}
	switch c.Cache.Backend {
	case "", BackendFile, BackendNull, BackendRedis, BackendMongo:
	default:
		return errors.New(errors.ErrCodeInvalidConfig,
			"config cache backend %q: must be file, null, redis or mongo", c.Cache.Backend)
	}
	if len(c.Palette.Light) != len(c.Palette.Dark) {
		return errors.New(errors.ErrCodeInvalidConfig,
			"config palette: light (%d) and dark (%d) must be the same length",
			len(c.Palette.Light), len(c.Palette.Dark))
	}
	return nil
}

// Apply fills unset pipeline options from the config. Flags always win:
// only zero-valued fields are touched.
func (c Config) Apply(opts *pipeline.Options) {
	if opts.Theme == "" && c.Theme != "" {
		opts.Theme = c.Theme
	}
	if opts.View == "" && c.View != "" {
		opts.View = c.View
	}
	if len(c.Aliases) > 0 {
		merged := make(map[string]string, len(c.Aliases)+len(opts.Aliases))
		for src, dst := range c.Aliases {
			merged[src] = dst
		}
		for src, dst := range opts.Aliases {
			merged[src] = dst
		}
		opts.Aliases = merged
	}
	if len(opts.PaletteLight) == 0 && len(c.Palette.Light) > 0 {
		opts.PaletteLight = c.Palette.Light
		opts.PaletteDark = c.Palette.Dark
	}
}
