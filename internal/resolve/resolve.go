// Package resolve turns specifiers into files and computes the transitive
// closure of the files they reference.
package resolve

import (
	"context"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/charmbracelet/log"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/lock"
	"github.com/bianoble/dtsm/internal/repo"
)

// Source is the catalog the resolver reads from.
type Source interface {
	Search(ctx context.Context, phrase string) ([]index.SearchResult, error)
	Has(ctx context.Context, fi index.FileInfo) (bool, error)
	ReadFile(ctx context.Context, fi index.FileInfo) ([]byte, error)
}

// LocateFunc finds the repository holding path at ref.
type LocateFunc func(ctx context.Context, path, ref string) (index.FileInfo, error)

// Node is one file of a closure and the paths it directly references.
// DependsOn is sorted and free of duplicates.
type Node struct {
	index.FileInfo
	DependsOn []string
}

// Closure maps each path to its node. Every path named in a DependsOn list
// has its own node.
type Closure map[string]*Node

// Paths returns the closure's paths in sorted order.
func (c Closure) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	slices.Sort(paths)
	return paths
}

// Entries converts the closure into lock file entries.
func (c Closure) Entries() map[string]lock.Dependency {
	entries := make(map[string]lock.Dependency, len(c))
	for p, n := range c {
		entries[p] = lock.Dependency{Ref: n.Ref, Dependencies: slices.Clone(n.DependsOn)}
	}
	return entries
}

// Repos returns the repositories the closure draws from, in path order.
func (c Closure) Repos() []repo.Spec {
	var specs []repo.Spec
	seen := make(map[string]bool)
	for _, p := range c.Paths() {
		spec := c[p].Repo
		if !seen[spec.URL] {
			seen[spec.URL] = true
			specs = append(specs, spec)
		}
	}
	return specs
}

// Resolver resolves specifiers against a Source.
type Resolver struct {
	Source Source
	Logger *log.Logger
}

func (r *Resolver) logger() *log.Logger {
	if r.Logger == nil {
		return log.NewWithOptions(io.Discard, log.Options{})
	}
	return r.Logger
}

// ResolveOne returns the single file whose path contains specifier. Zero
// matches is NOT_FOUND and more than one is AMBIGUOUS_SPECIFIER; partial
// specifiers must identify exactly one file.
func (r *Resolver) ResolveOne(ctx context.Context, specifier string) (index.FileInfo, error) {
	results, err := r.Source.Search(ctx, specifier)
	if err != nil {
		return index.FileInfo{}, err
	}

	switch len(results) {
	case 0:
		return index.FileInfo{}, dterrors.New(dterrors.ErrCodeNotFound, "no file matches %q", specifier)
	case 1:
		r.logger().Debug("resolved specifier", "specifier", specifier, "path", results[0].Path, "ref", results[0].Ref)
		return results[0].FileInfo, nil
	}

	const shown = 10
	var candidates []string
	for i, res := range results {
		if i == shown {
			candidates = append(candidates, fmt.Sprintf("... and %d more", len(results)-shown))
			break
		}
		candidates = append(candidates, res.Path)
	}
	return index.FileInfo{}, dterrors.New(dterrors.ErrCodeAmbiguous,
		"%q matches %d files: %s", specifier, len(results), strings.Join(candidates, ", "))
}

// ResolveExact returns the file at exactly path. It is NOT_FOUND when no
// repository has the path and AMBIGUOUS_SPECIFIER when more than one does.
func (r *Resolver) ResolveExact(ctx context.Context, path string) (index.FileInfo, error) {
	results, err := r.Source.Search(ctx, path)
	if err != nil {
		return index.FileInfo{}, err
	}

	var found []index.FileInfo
	for _, res := range results {
		if res.Path == path {
			found = append(found, res.FileInfo)
		}
	}
	switch len(found) {
	case 0:
		return index.FileInfo{}, dterrors.New(dterrors.ErrCodeNotFound, "%s does not exist in any repository", path)
	case 1:
		return found[0], nil
	}
	urls := make([]string, len(found))
	for i, fi := range found {
		urls[i] = fi.Repo.URL
	}
	return index.FileInfo{}, dterrors.New(dterrors.ErrCodeAmbiguous,
		"%s exists in %d repositories: %s", path, len(found), strings.Join(urls, ", "))
}

// ComputeClosure walks the references of seeds breadth first. References
// resolve relative to the referencing file, in the same repository at the
// same commit. Each path is visited once, so reference cycles terminate.
// A reference that escapes the repository or names a missing file fails
// the whole walk with DEPENDENCY_UNRESOLVABLE. Two files that share a path
// but come from different repositories or commits cannot both be installed
// and fail it with AMBIGUOUS_SPECIFIER.
func (r *Resolver) ComputeClosure(ctx context.Context, seeds []index.FileInfo) (Closure, error) {
	closure := make(Closure)
	queue := make([]index.FileInfo, 0, len(seeds))
	for _, s := range seeds {
		if n, ok := closure[s.Path]; ok {
			if err := conflict(n.FileInfo, s); err != nil {
				return nil, err
			}
			continue
		}
		closure[s.Path] = &Node{FileInfo: s}
		queue = append(queue, s)
	}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fi := queue[0]
		queue = queue[1:]

		content, err := r.Source.ReadFile(ctx, fi)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", fi.Path, err)
		}

		var deps []string
		for _, ref := range References(content) {
			target, ok := resolveReference(fi.Path, ref)
			if !ok {
				return nil, dterrors.New(dterrors.ErrCodeDependencyUnresolvable,
					"%s references %q outside the repository", fi.Path, ref)
			}
			dep := index.FileInfo{Path: target, Repo: fi.Repo, Ref: fi.Ref}
			exists, err := r.Source.Has(ctx, dep)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, dterrors.New(dterrors.ErrCodeDependencyUnresolvable,
					"%s references %s, which does not exist in %s", fi.Path, target, fi.Repo.URL)
			}
			deps = append(deps, target)

			if n, seen := closure[target]; seen {
				if err := conflict(n.FileInfo, dep); err != nil {
					return nil, err
				}
				continue
			}
			closure[target] = &Node{FileInfo: dep}
			queue = append(queue, dep)
		}

		slices.Sort(deps)
		closure[fi.Path].DependsOn = slices.Compact(deps)
		r.logger().Debug("resolved dependencies", "path", fi.Path, "count", len(deps))
	}

	return closure, nil
}

// conflict reports two different files claiming the same install path.
func conflict(have, want index.FileInfo) error {
	if have.Repo.URL == want.Repo.URL && have.Ref == want.Ref {
		return nil
	}
	return dterrors.New(dterrors.ErrCodeAmbiguous,
		"%s is required from both %s@%s and %s@%s",
		have.Path, have.Repo.URL, shortRef(have.Ref), want.Repo.URL, shortRef(want.Ref))
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}

// ClosureFromLock rebuilds a closure from recorded lock entries without
// reading file contents. Every recorded dependency must itself be an entry.
func ClosureFromLock(ctx context.Context, entries map[string]lock.Dependency, locate LocateFunc) (Closure, error) {
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)

	closure := make(Closure, len(entries))
	for _, name := range names {
		dep := entries[name]
		for _, d := range dep.Dependencies {
			if _, ok := entries[d]; !ok {
				return nil, dterrors.New(dterrors.ErrCodeDependencyUnresolvable,
					"%s depends on %s, which is not recorded in the lockfile", name, d)
			}
		}

		fi, err := locate(ctx, name, dep.Ref)
		if err != nil {
			if dterrors.Is(err, dterrors.ErrCodeNotFound) {
				return nil, dterrors.Wrap(dterrors.ErrCodeDependencyUnresolvable, err, "locating %s", name)
			}
			return nil, err
		}

		deps := slices.Clone(dep.Dependencies)
		slices.Sort(deps)
		closure[name] = &Node{FileInfo: fi, DependsOn: slices.Compact(deps)}
	}
	return closure, nil
}
