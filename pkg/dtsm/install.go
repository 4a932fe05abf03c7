package dtsm

import (
	"context"
	"errors"
	"slices"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/fetcher"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/lock"
	"github.com/bianoble/dtsm/internal/resolve"
)

// Install resolves every specifier, computes the closure of the resolved
// files and installs it. Any resolution failure aborts before a file is
// written. With opts.Save the closure is merged into the lock file.
//
// If any file fails to install, the full result is returned together with
// an IO_FAILURE error and the lock file is left unchanged.
func (m *Manager) Install(ctx context.Context, opts InstallOptions, specifiers []string) (*InstallResult, error) {
	if len(specifiers) == 0 {
		return nil, dterrors.New(dterrors.ErrCodeInvalidInput, "no files to install")
	}

	lf, err := m.loadOrNew(m.lockPath)
	if err != nil {
		return nil, err
	}

	seeds := make([]index.FileInfo, 0, len(specifiers))
	for _, spec := range specifiers {
		fi, err := m.resolver.ResolveOne(ctx, spec)
		if err != nil {
			return nil, err
		}
		seeds = append(seeds, fi)
	}

	closure, err := m.resolver.ComputeClosure(ctx, seeds)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return fetcher.Plan(closure), nil
	}

	res, err := m.materialize(ctx, closure, m.targetDir(m.lockPath, lf))
	if err != nil {
		return res, err
	}

	if opts.Save {
		err := m.updateLock(func(lf *lock.Lockfile) error {
			lock.Merge(lf, closure.Entries(), closure.Repos())
			return nil
		})
		if err != nil {
			return res, err
		}
	}
	return res, nil
}

// InstallFromFile installs exactly what the lock file records: each entry
// at its pinned ref, with the recorded dependencies, and never anything
// newer. The lock file is not modified.
func (m *Manager) InstallFromFile(ctx context.Context, opts InstallFromFileOptions) (*InstallResult, error) {
	path := firstNonEmpty(opts.Path, m.lockPath)
	lf, err := lock.Load(path)
	if err != nil {
		return nil, err
	}

	// Offline, this only verifies the mirrors exist.
	if m.offline {
		if err := m.index.EnsureSynced(ctx); err != nil {
			return nil, err
		}
	}

	closure, err := resolve.ClosureFromLock(ctx, lf.Dependencies, m.locate)
	if err != nil {
		return nil, err
	}
	if opts.DryRun {
		return fetcher.Plan(closure), nil
	}
	return m.materialize(ctx, closure, m.targetDir(path, lf))
}

// locate finds a pinned file in the existing mirrors and syncs once when it
// is missing, since the ref may be newer than the last fetch.
func (m *Manager) locate(ctx context.Context, path, ref string) (index.FileInfo, error) {
	fi, err := m.index.Locate(ctx, path, ref)
	if err == nil || m.offline || !dterrors.Is(err, dterrors.ErrCodeNotFound) {
		return fi, err
	}
	if err := m.index.EnsureSynced(ctx); err != nil {
		return index.FileInfo{}, err
	}
	return m.index.Locate(ctx, path, ref)
}

// Update re-resolves the selected lock entries against the latest state of
// the repositories, installs the new closure and rewrites the lock file.
// Root entries, those no other entry depends on, are searched for again
// and must still resolve to exactly one file. Dependencies follow from
// the roots' references; a selected dependency the roots no longer reach
// is looked up by its exact path. A file whose content did not change
// keeps its pinned ref, so refs only move when content does.
func (m *Manager) Update(ctx context.Context, opts UpdateOptions) (*InstallResult, error) {
	lf, err := lock.Load(m.lockPath)
	if err != nil {
		return nil, err
	}

	names, err := selectEntries(lf, opts.Targets)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return &InstallResult{Dependencies: map[string]*DependencyResult{}}, nil
	}

	if _, err := m.index.Fetch(ctx); err != nil {
		return nil, err
	}

	dependedOn := make(map[string]bool)
	for _, dep := range lf.Dependencies {
		for _, d := range dep.Dependencies {
			dependedOn[d] = true
		}
	}

	var seeds []index.FileInfo
	for _, name := range names {
		if dependedOn[name] {
			continue
		}
		fi, err := m.resolver.ResolveOne(ctx, name)
		if err != nil {
			return nil, err
		}
		if fi.Path != name {
			return nil, dterrors.New(dterrors.ErrCodeNotFound, "%s no longer exists (only %s matches)", name, fi.Path)
		}
		seeds = append(seeds, fi)
	}

	closure, err := m.resolver.ComputeClosure(ctx, seeds)
	if err != nil {
		return nil, err
	}

	var orphans []index.FileInfo
	for _, name := range names {
		if _, ok := closure[name]; ok || !dependedOn[name] {
			continue
		}
		fi, err := m.resolver.ResolveExact(ctx, name)
		if err != nil {
			return nil, err
		}
		orphans = append(orphans, fi)
	}
	if len(orphans) > 0 {
		closure, err = m.resolver.ComputeClosure(ctx, append(seeds, orphans...))
		if err != nil {
			return nil, err
		}
	}
	m.keepUnchangedRefs(ctx, closure, lf)

	if opts.DryRun {
		return fetcher.Plan(closure), nil
	}

	res, err := m.materialize(ctx, closure, m.targetDir(m.lockPath, lf))
	if err != nil {
		return res, err
	}

	err = m.updateLock(func(lf *lock.Lockfile) error {
		lock.Merge(lf, closure.Entries(), closure.Repos())
		return nil
	})
	return res, err
}

// keepUnchangedRefs restores the pinned ref of every node whose blob is
// identical at the pinned ref and at the new one.
func (m *Manager) keepUnchangedRefs(ctx context.Context, closure resolve.Closure, lf *lock.Lockfile) {
	for p, node := range closure {
		old, ok := lf.Dependencies[p]
		if !ok || old.Ref == node.Ref {
			continue
		}
		pinned := node.FileInfo
		pinned.Ref = old.Ref

		oldID, err := m.index.BlobID(ctx, pinned)
		if err != nil {
			continue
		}
		newID, err := m.index.BlobID(ctx, node.FileInfo)
		if err != nil || oldID != newID {
			continue
		}
		m.logger.Debug("content unchanged, keeping pinned ref", "path", p, "ref", old.Ref)
		node.Ref = old.Ref
	}
}

// Uninstall removes the lock entries selected by names together with their
// installed files. Names are matched as in lock.Match. Dependencies of the
// removed entries are kept. If any name selects nothing, nothing is removed.
//
// The lock file is saved before any file is deleted. A file that cannot be
// deleted is reported in its result's Err and the call returns IO_FAILURE,
// but its entry stays removed.
func (m *Manager) Uninstall(_ context.Context, _ UninstallOptions, names []string) ([]UninstallResult, error) {
	if len(names) == 0 {
		return nil, dterrors.New(dterrors.ErrCodeInvalidInput, "no files to uninstall")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	lf, err := lock.Load(m.lockPath)
	if err != nil {
		return nil, err
	}
	paths, err := selectEntries(lf, names)
	if err != nil {
		return nil, err
	}

	targetDir := m.targetDir(m.lockPath, lf)
	results := make([]UninstallResult, 0, len(paths))
	for _, p := range paths {
		dep, _ := lock.Remove(lf, p)
		results = append(results, UninstallResult{Path: p, Ref: dep.Ref})
	}
	if err := lock.Save(m.lockPath, lf); err != nil {
		return nil, err
	}

	var errs []error
	for i := range results {
		r := &results[i]
		r.Removed, r.Err = fetcher.Remove(targetDir, r.Path)
		if r.Err != nil {
			errs = append(errs, r.Err)
			continue
		}
		m.logger.Debug("uninstalled", "path", r.Path, "removed", r.Removed)
	}
	if len(errs) > 0 {
		return results, dterrors.Wrap(dterrors.ErrCodeIO, errors.Join(errs...),
			"%d of %d files could not be removed", len(errs), len(results))
	}
	return results, nil
}

// selectEntries expands patterns into lock entry names, in pattern order
// without duplicates. No patterns selects every entry.
func selectEntries(lf *lock.Lockfile, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		names := make([]string, 0, len(lf.Dependencies))
		for name := range lf.Dependencies {
			names = append(names, name)
		}
		slices.Sort(names)
		return names, nil
	}

	var names []string
	for _, pattern := range patterns {
		matched := lock.Match(lf, pattern)
		if len(matched) == 0 {
			return nil, dterrors.New(dterrors.ErrCodeNotFound, "%s is not installed", pattern)
		}
		for _, name := range matched {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names, nil
}

// materialize installs closure and turns per-file failures into a single
// IO_FAILURE error alongside the full result.
func (m *Manager) materialize(ctx context.Context, closure resolve.Closure, targetDir string) (*InstallResult, error) {
	res, err := m.fetcher.Materialize(ctx, closure, targetDir, false)
	if err != nil {
		return res, err
	}

	failed := res.Failed()
	if len(failed) == 0 {
		return res, nil
	}
	errs := make([]error, len(failed))
	for i, d := range failed {
		errs[i] = d.Err
	}
	return res, dterrors.Wrap(dterrors.ErrCodeIO, errors.Join(errs...),
		"%d of %d files failed to install", len(failed), len(res.DependenciesList))
}
