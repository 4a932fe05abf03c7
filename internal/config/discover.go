package config

import (
	"cmp"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
)

// Every level stores its file as <dir>/dtsm/config.yaml.
const (
	configDirName  = "dtsm"
	configFileName = "config.yaml"
)

// Environment variables consulted while discovering configuration.
const (
	// EnvConfig names an extra config file loaded above the user layer.
	EnvConfig = "DTSM_CONFIG"

	// EnvNoInheritVar disables config file discovery entirely.
	EnvNoInheritVar = "DTSM_NO_INHERIT"
)

// ConfigLevel represents the precedence level of a configuration file.
type ConfigLevel string

const (
	LevelSystem ConfigLevel = "system"
	LevelUser   ConfigLevel = "user"
	LevelEnv    ConfigLevel = "env"
)

// ConfigLayerInfo describes a discovered config file and its load status.
type ConfigLayerInfo struct {
	Err    error // non-nil if the file exists but failed to load
	Path   string
	Level  ConfigLevel
	Loaded bool
}

// Required reports whether a missing file at this layer is an error.
// Only a file the user named explicitly is required.
func (l ConfigLayerInfo) Required() bool {
	return l.Level == LevelEnv
}

// DiscoverOptions overrides the discovered paths, mostly for tests.
// An empty field falls back to the platform default (or $DTSM_CONFIG for
// ExplicitPath); a path that does not exist is simply skipped at load time.
type DiscoverOptions struct {
	SystemConfigPath string
	UserConfigPath   string
	ExplicitPath     string
}

// DiscoverPaths lists the config layers from lowest to highest precedence.
// Layers without a path are dropped, and a file reachable from two levels
// is kept only at the lower one.
func DiscoverPaths(opts DiscoverOptions) []ConfigLayerInfo {
	candidates := []ConfigLayerInfo{
		{Level: LevelSystem, Path: cmp.Or(opts.SystemConfigPath, defaultSystemConfigPath())},
		{Level: LevelUser, Path: cmp.Or(opts.UserConfigPath, defaultUserConfigPath())},
		{Level: LevelEnv, Path: cmp.Or(opts.ExplicitPath, os.Getenv(EnvConfig))},
	}

	layers := make([]ConfigLayerInfo, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if c.Path == "" {
			continue
		}
		key := c.Path
		if abs, err := filepath.Abs(c.Path); err == nil {
			key = abs
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		layers = append(layers, c)
	}
	return layers
}

func defaultSystemConfigPath() string {
	if runtime.GOOS == "windows" {
		return filepath.Join(cmp.Or(os.Getenv("ProgramData"), `C:\ProgramData`), configDirName, configFileName)
	}
	return filepath.Join("/etc", configDirName, configFileName)
}

// defaultUserConfigPath honors XDG_CONFIG_HOME through os.UserConfigDir and
// is empty when no home directory is known.
func defaultUserConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configDirName, configFileName)
}

// EnvNoInherit reports whether DTSM_NO_INHERIT is set to a true value.
func EnvNoInherit() bool {
	return envBool(EnvNoInheritVar)
}

// envBool parses key with strconv.ParseBool; unset or unparsable is false.
func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}
