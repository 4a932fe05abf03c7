package lock

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/repo"
)

// Load reads and validates a dtsm.json file.
func Load(path string) (*Lockfile, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, dterrors.Wrap(dterrors.ErrCodeNotFound, err, "lockfile %s does not exist", path)
	}
	if err != nil {
		return nil, dterrors.Wrap(dterrors.ErrCodeIO, err, "reading lockfile %s", path)
	}

	var lf Lockfile
	if err := json.Unmarshal(data, &lf); err != nil {
		return nil, dterrors.Wrap(dterrors.ErrCodeLockfileMalformed, err, "parsing lockfile %s", path)
	}

	if errs := Validate(&lf); len(errs) > 0 {
		return nil, dterrors.Wrap(dterrors.ErrCodeLockfileMalformed, &ValidationError{Errors: errs}, "lockfile %s", path)
	}

	Normalize(&lf)
	return &lf, nil
}

// Marshal returns the canonical encoding of lf: normalized, two-space
// indented JSON with a trailing newline. Equal lockfiles always produce
// identical bytes.
func Marshal(lf *Lockfile) ([]byte, error) {
	Normalize(lf)
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling lockfile: %w", err)
	}
	return append(data, '\n'), nil
}

// Save writes a lockfile atomically using a temp file and rename.
func Save(path string, lf *Lockfile) error {
	data, err := Marshal(lf)
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return dterrors.Wrap(dterrors.ErrCodeIO, err, "writing temp lockfile %s", tmp)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return dterrors.Wrap(dterrors.ErrCodeIO, err, "renaming temp lockfile to %s", path)
	}
	return nil
}

// Initialize writes lf to path, refusing to replace an existing file unless
// force is set. It returns the bytes written.
func Initialize(path string, lf *Lockfile, force bool) ([]byte, error) {
	if _, err := os.Stat(path); err == nil && !force {
		return nil, dterrors.New(dterrors.ErrCodeAlreadyExists, "lockfile %s already exists", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, dterrors.Wrap(dterrors.ErrCodeIO, err, "creating directory for %s", path)
	}
	if err := Save(path, lf); err != nil {
		return nil, err
	}
	return Marshal(lf)
}

// ValidationError holds multiple validation failures.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lockfile validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

// Validate checks a Lockfile for semantic correctness.
// Returns a list of validation error messages (empty if valid).
func Validate(lf *Lockfile) []string {
	var errs []string

	if lf.Path == "" {
		errs = append(errs, "'path' is required")
	}

	for i, r := range lf.Repos {
		if r.URL == "" {
			errs = append(errs, fmt.Sprintf("repos[%d]: 'url' is required", i))
		}
	}

	names := make([]string, 0, len(lf.Dependencies))
	for name := range lf.Dependencies {
		names = append(names, name)
	}
	slices.Sort(names)

	for _, name := range names {
		dep := lf.Dependencies[name]
		prefix := fmt.Sprintf("dependency '%s'", name)
		if !isInstallPath(name) {
			errs = append(errs, fmt.Sprintf("%s: must be a relative path without '..'", prefix))
		}
		if dep.Ref == "" {
			errs = append(errs, fmt.Sprintf("%s: 'ref' is required", prefix))
		}
		for _, d := range dep.Dependencies {
			if !isInstallPath(d) {
				errs = append(errs, fmt.Sprintf("%s: invalid dependency path '%s'", prefix, d))
			}
		}
	}

	return errs
}

func isInstallPath(p string) bool {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return false
	}
	return path.Clean(p) == p && p != "." && p != ".." && !strings.HasPrefix(p, "../")
}

// Normalize puts lf in canonical form: non-nil collections, repositories
// de-duplicated by URL in first-seen order, dependency lists sorted and
// de-duplicated.
func Normalize(lf *Lockfile) {
	if lf.Dependencies == nil {
		lf.Dependencies = make(map[string]Dependency)
	}

	repos := make([]repo.Spec, 0, len(lf.Repos))
	seen := make(map[string]bool)
	for _, r := range lf.Repos {
		if seen[r.URL] {
			continue
		}
		seen[r.URL] = true
		repos = append(repos, r)
	}
	lf.Repos = repos

	for name, dep := range lf.Dependencies {
		deps := slices.Clone(dep.Dependencies)
		slices.Sort(deps)
		deps = slices.Compact(deps)
		if deps == nil {
			deps = []string{}
		}
		dep.Dependencies = deps
		lf.Dependencies[name] = dep
	}
}

// Merge adds or overwrites entries and appends repositories lf does not
// list yet. Entries not named in entries are left untouched.
func Merge(lf *Lockfile, entries map[string]Dependency, repos []repo.Spec) {
	if lf.Dependencies == nil {
		lf.Dependencies = make(map[string]Dependency)
	}
	for name, dep := range entries {
		lf.Dependencies[name] = dep
	}

	known := make(map[string]bool, len(lf.Repos))
	for _, r := range lf.Repos {
		known[r.URL] = true
	}
	for _, r := range repos {
		if !known[r.URL] {
			known[r.URL] = true
			lf.Repos = append(lf.Repos, repo.Spec{URL: r.URL})
		}
	}
}

// Remove deletes the entry for name and returns it.
func Remove(lf *Lockfile, name string) (Dependency, bool) {
	dep, ok := lf.Dependencies[name]
	if ok {
		delete(lf.Dependencies, name)
	}
	return dep, ok
}

// Match returns the sorted entry names selected by pattern: the exact path,
// every entry whose first path segment equals pattern ("atom" selects
// "atom/atom.d.ts"), or every entry matching pattern as a doublestar glob.
func Match(lf *Lockfile, pattern string) []string {
	if _, ok := lf.Dependencies[pattern]; ok {
		return []string{pattern}
	}

	var matched []string
	for name := range lf.Dependencies {
		first, _, _ := strings.Cut(name, "/")
		if first == pattern {
			matched = append(matched, name)
			continue
		}
		if ok, _ := doublestar.Match(pattern, name); ok {
			matched = append(matched, name)
		}
	}
	slices.Sort(matched)
	return matched
}
