// Package fetcher writes resolved files into the install directory.
package fetcher

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"sync"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/resolve"
	"github.com/bianoble/dtsm/internal/sandbox"
)

// Reader supplies file content.
type Reader interface {
	ReadFile(ctx context.Context, fi index.FileInfo) ([]byte, error)
}

// DependencyResult is the outcome for one file. Err is nil on success.
type DependencyResult struct {
	index.FileInfo
	Err error
}

// InstallResult holds one result per file, by path and as a path-sorted list.
type InstallResult struct {
	Dependencies     map[string]*DependencyResult
	DependenciesList []*DependencyResult
}

// Failed returns the results that carry an error.
func (r *InstallResult) Failed() []*DependencyResult {
	var failed []*DependencyResult
	for _, d := range r.DependenciesList {
		if d.Err != nil {
			failed = append(failed, d)
		}
	}
	return failed
}

// Fetcher materializes closures.
type Fetcher struct {
	Reader      Reader
	Concurrency int
	Logger      *log.Logger

	// OnWritten, if set, is called after each file is processed.
	OnWritten func(res *DependencyResult)
}

func newResult(closure resolve.Closure) *InstallResult {
	res := &InstallResult{Dependencies: make(map[string]*DependencyResult, len(closure))}
	for _, p := range closure.Paths() {
		d := &DependencyResult{FileInfo: closure[p].FileInfo}
		res.Dependencies[p] = d
		res.DependenciesList = append(res.DependenciesList, d)
	}
	return res
}

// Plan describes what Materialize would do without reading or writing.
func Plan(closure resolve.Closure) *InstallResult {
	return newResult(closure)
}

// Materialize writes every node of closure to targetDir/<path> with the
// content pinned by its ref. Failures are recorded per file and never stop
// the other files. An error is returned only when targetDir itself cannot
// be prepared or ctx is cancelled.
func (f *Fetcher) Materialize(ctx context.Context, closure resolve.Closure, targetDir string, dryRun bool) (*InstallResult, error) {
	res := newResult(closure)
	if dryRun {
		return res, nil
	}

	root, err := sandbox.Open(targetDir)
	if err != nil {
		return res, dterrors.Wrap(dterrors.ErrCodeIO, err, "preparing install directory")
	}

	logger := f.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	limit := f.Concurrency
	if limit <= 0 {
		limit = index.DefaultConcurrency
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for _, d := range res.DependenciesList {
		g.Go(func() error {
			err := f.materialize(gctx, root, d.FileInfo)

			mu.Lock()
			d.Err = err
			if f.OnWritten != nil {
				f.OnWritten(d)
			}
			mu.Unlock()

			if err != nil {
				logger.Warn("install failed", "path", d.Path, "err", err)
			} else {
				logger.Debug("installed", "path", d.Path, "ref", d.Ref)
			}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return res, err
	}
	return res, nil
}

func (f *Fetcher) materialize(ctx context.Context, root *sandbox.Root, fi index.FileInfo) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	content, err := f.Reader.ReadFile(ctx, fi)
	if err != nil {
		return err
	}
	if err := root.Write(fi.Path, content, 0644); err != nil {
		return dterrors.Wrap(dterrors.ErrCodeIO, err, "writing %s", fi.Path)
	}
	return nil
}

// Remove deletes an installed file and prunes parent directories left empty.
// It reports whether a file was deleted.
func Remove(targetDir, path string) (bool, error) {
	if _, err := os.Stat(targetDir); errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	root, err := sandbox.Open(targetDir)
	if err != nil {
		return false, dterrors.Wrap(dterrors.ErrCodeIO, err, "opening install directory")
	}
	removed, err := root.Remove(path)
	if err != nil {
		return false, dterrors.Wrap(dterrors.ErrCodeIO, err, "removing %s", path)
	}
	return removed, nil
}

// Paths returns the result paths in sorted order.
func (r *InstallResult) Paths() []string {
	paths := make([]string, 0, len(r.DependenciesList))
	for _, d := range r.DependenciesList {
		paths = append(paths, d.Path)
	}
	return paths
}
