package config

import "github.com/bianoble/dtsm/internal/repo"

// Config represents one layer of dtsm's YAML configuration.
type Config struct {
	Version  int         `yaml:"version"`
	Repos    []repo.Spec `yaml:"repos,omitempty"`
	CacheDir string      `yaml:"cache_dir,omitempty"`
	Include  string      `yaml:"include,omitempty"`

	// Offline is a pointer so a higher layer can switch it back off.
	Offline *bool `yaml:"offline,omitempty"`
}

// IsOffline reports whether the config enables offline mode.
func (c *Config) IsOffline() bool {
	return c != nil && c.Offline != nil && *c.Offline
}
