// Package config provides the YAML-backed application configuration with
// first-run creation and atomic saves.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API server.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA timezone used to interpret dataset timestamps
	// that carry no offset (e.g. "America/Los_Angeles").
	Timezone string `yaml:"timezone" json:"timezone"`

	// Year selects the dataset partition to load.
	Year int `yaml:"year" json:"year"`

	// DataBaseURL is the dataset API root.
	DataBaseURL string `yaml:"data_base_url" json:"data_base_url"`

	// CacheDir holds the conditional-request disk cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// FavoritesPath is the favorites store file.
	FavoritesPath string `yaml:"favorites_path" json:"favorites_path"`

	// DefaultRadiusMeters caps how far away listed events may be when the
	// caller supplies a viewer location but no radius.
	DefaultRadiusMeters float64 `yaml:"default_radius_meters" json:"default_radius_meters"`

	// DefaultWindowMinutes is the default look-ahead window.
	DefaultWindowMinutes int `yaml:"default_window_minutes" json:"default_window_minutes"`

	// RefreshCron is a cron-style schedule for dataset refresh in serve
	// mode (e.g. "*/30 * * * *").
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CORSOrigins lists origins allowed to call the API.
	CORSOrigins []string `yaml:"cors_origins" json:"cors_origins"`

	// RateLimitRPS is the per-client request rate limit; zero disables
	// limiting.
	RateLimitRPS float64 `yaml:"rate_limit_rps" json:"rate_limit_rps"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:               "127.0.0.1:8080",
		Timezone:             "America/Los_Angeles",
		Year:                 2026,
		DataBaseURL:          "https://playaevents.burningman.org",
		CacheDir:             "./cache/dataset",
		FavoritesPath:        "./cache/favorites.json",
		DefaultRadiusMeters:  5000,
		DefaultWindowMinutes: 240,
		RefreshCron:          "*/30 * * * *",
		CORSOrigins:          []string{"*"},
		RateLimitRPS:         10,
	}
}

// Normalize fills in missing/zero values so partially-filled configs still
// behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if c.Timezone == "" {
		c.Timezone = def.Timezone
	}
	if c.Year <= 0 {
		c.Year = def.Year
	}
	if c.DataBaseURL == "" {
		c.DataBaseURL = def.DataBaseURL
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
	if c.FavoritesPath == "" {
		c.FavoritesPath = def.FavoritesPath
	}
	if c.DefaultRadiusMeters <= 0 {
		c.DefaultRadiusMeters = def.DefaultRadiusMeters
	}
	if c.DefaultWindowMinutes <= 0 {
		c.DefaultWindowMinutes = def.DefaultWindowMinutes
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.CORSOrigins == nil {
		c.CORSOrigins = def.CORSOrigins
	}
	if c.RateLimitRPS < 0 {
		c.RateLimitRPS = 0
	}
}

// Load loads configuration from the given YAML path. A missing file is
// created with defaults (0600) on first run.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				return cfg, err
			}
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return &cfg, nil
}

// Save writes cfg to path atomically (temp file + rename, 0600).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".playafind-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
