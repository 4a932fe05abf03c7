package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// Load reads and validates a single config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if errs := Validate(&cfg); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}

	return &cfg, nil
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Config for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(cfg *Config) []string {
	var errs []string

	if cfg.Version != 0 && cfg.Version != 1 {
		errs = append(errs, fmt.Sprintf("unsupported version %d, only version 1 is supported", cfg.Version))
	}

	seen := make(map[string]bool)
	for i, r := range cfg.Repos {
		prefix := fmt.Sprintf("repos[%d]", i)
		switch {
		case r.URL == "":
			errs = append(errs, fmt.Sprintf("%s: 'url' is required", prefix))
		case seen[r.URL]:
			errs = append(errs, fmt.Sprintf("%s: duplicate repo url '%s'", prefix, r.URL))
		default:
			seen[r.URL] = true
		}
	}

	if cfg.Include != "" && !doublestar.ValidatePattern(cfg.Include) {
		errs = append(errs, fmt.Sprintf("include: invalid glob pattern '%s'", cfg.Include))
	}

	return errs
}

// HierarchicalResult is the outcome of loading every config layer.
type HierarchicalResult struct {
	Config *Config
	Layers []ConfigLayerInfo
}

// LoadHierarchical loads the discovered layers, lowest precedence first, and
// merges them. Missing files are skipped unless the layer is Required; a
// file that exists but fails to load is an error. With no layers present the result is an empty Config.
func LoadHierarchical(opts DiscoverOptions) (*HierarchicalResult, error) {
	layers := DiscoverPaths(opts)
	var configs []*Config

	for i := range layers {
		cfg, err := Load(layers[i].Path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && !layers[i].Required() {
				continue
			}
			layers[i].Err = err
			return &HierarchicalResult{Layers: layers}, fmt.Errorf("%s config: %w", layers[i].Level, err)
		}
		layers[i].Loaded = true
		configs = append(configs, cfg)
	}

	if len(configs) == 0 {
		return &HierarchicalResult{Config: &Config{}, Layers: layers}, nil
	}

	merged, err := MergeAll(configs)
	if err != nil {
		return &HierarchicalResult{Layers: layers}, err
	}
	return &HierarchicalResult{Config: merged, Layers: layers}, nil
}
