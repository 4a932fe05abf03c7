package config

import (
	"fmt"

	"github.com/bianoble/dtsm/internal/repo"
)

// Merge combines two configs where overlay takes precedence over base:
//   - version: must agree if both declare it (non-zero)
//   - repos: merge by url, an overlay entry replaces the base entry in place
//   - cache_dir, include, offline: overlay wins when set
func Merge(base, overlay *Config) (*Config, error) {
	if base == nil {
		return overlay, nil
	}
	if overlay == nil {
		return base, nil
	}

	result := &Config{
		CacheDir: base.CacheDir,
		Include:  base.Include,
		Offline:  base.Offline,
	}

	if err := mergeVersion(base.Version, overlay.Version, &result.Version); err != nil {
		return nil, err
	}

	result.Repos = mergeRepos(base.Repos, overlay.Repos)

	if overlay.CacheDir != "" {
		result.CacheDir = overlay.CacheDir
	}
	if overlay.Include != "" {
		result.Include = overlay.Include
	}
	if overlay.Offline != nil {
		result.Offline = overlay.Offline
	}

	return result, nil
}

// MergeAll merges multiple configs in order (lowest precedence first).
func MergeAll(configs []*Config) (*Config, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("no configs to merge")
	}

	result := configs[0]
	for i := 1; i < len(configs); i++ {
		var err error
		result, err = Merge(result, configs[i])
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func mergeVersion(base, overlay int, out *int) error {
	switch {
	case base == 0:
		*out = overlay
	case overlay == 0, base == overlay:
		*out = base
	default:
		return fmt.Errorf("config version mismatch: one layer declares version %d, another declares version %d", base, overlay)
	}
	return nil
}

// mergeRepos keeps base order, so search precedence stays stable when a
// higher layer only changes a repo's local path. New overlay repos follow.
func mergeRepos(base, overlay []repo.Spec) []repo.Spec {
	if len(base) == 0 {
		return overlay
	}
	if len(overlay) == 0 {
		return base
	}

	byURL := make(map[string]repo.Spec, len(overlay))
	for _, r := range overlay {
		byURL[r.URL] = r
	}

	result := make([]repo.Spec, 0, len(base)+len(overlay))
	used := make(map[string]bool)
	for _, r := range base {
		if o, ok := byURL[r.URL]; ok {
			result = append(result, o)
			used[r.URL] = true
			continue
		}
		result = append(result, r)
	}
	for _, r := range overlay {
		if !used[r.URL] {
			result = append(result, r)
		}
	}
	return result
}
