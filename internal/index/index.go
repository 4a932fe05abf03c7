// Package index catalogs the declaration files available across the
// configured repositories and reads their content through the blob cache.
package index

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/bianoble/dtsm/internal/cache"
	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/repo"
)

// DefaultInclude selects declaration files anywhere in a repository.
const DefaultInclude = "**/*.d.ts"

// DefaultConcurrency bounds parallel repository syncs and file writes.
const DefaultConcurrency = 4

// FileInfo addresses one file: a path in a repository at a commit.
type FileInfo struct {
	Path string
	Repo repo.Spec
	Ref  string
}

// SearchResult is one search match.
type SearchResult struct {
	FileInfo
}

// FetchReport lists the outcome of syncing every repository.
type FetchReport struct {
	Synced []string
	Failed map[string]error
}

// Options configures an Index.
type Options struct {
	Repos       []repo.Spec
	Cache       *cache.Cache
	Include     string
	Offline     bool
	Concurrency int
	Logger      *log.Logger

	// OnSynced, if set, is called once per repository after each sync attempt.
	OnSynced func(url string, err error)
}

// Index is the path catalog over an ordered list of repositories.
type Index struct {
	repos    []*repo.Repository
	cache    *cache.Cache
	include  string
	limit    int
	logger   *log.Logger
	onSynced func(url string, err error)

	// mu is held for a whole sync so two callers never clone the same
	// mirror at once.
	mu     sync.Mutex
	synced bool
}

// New builds an Index. Repository order is preserved and determines scan order.
func New(opts Options) *Index {
	idx := &Index{
		cache:    opts.Cache,
		include:  opts.Include,
		limit:    opts.Concurrency,
		logger:   opts.Logger,
		onSynced: opts.OnSynced,
	}
	if idx.include == "" {
		idx.include = DefaultInclude
	}
	if idx.limit <= 0 {
		idx.limit = DefaultConcurrency
	}
	if idx.logger == nil {
		idx.logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	for _, spec := range opts.Repos {
		idx.repos = append(idx.repos, repo.New(spec, opts.Offline))
	}
	return idx
}

// Repos returns the specs of the indexed repositories in scan order.
func (idx *Index) Repos() []repo.Spec {
	specs := make([]repo.Spec, len(idx.repos))
	for i, r := range idx.repos {
		specs[i] = r.Spec()
	}
	return specs
}

// Repository returns the repository with the given URL, or nil.
func (idx *Index) Repository(url string) *repo.Repository {
	for _, r := range idx.repos {
		if r.URL() == url {
			return r
		}
	}
	return nil
}

// Fetch syncs every repository concurrently. A failing repository does not
// stop the others; all failures are joined into the returned error and also
// listed in the report.
func (idx *Index) Fetch(ctx context.Context) (*FetchReport, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	return idx.fetch(ctx)
}

func (idx *Index) fetch(ctx context.Context) (*FetchReport, error) {
	errs := make([]error, len(idx.repos))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.limit)
	for i, r := range idx.repos {
		g.Go(func() error {
			idx.logger.Debug("syncing repository", "url", r.URL(), "path", r.Spec().LocalPath)
			errs[i] = r.Sync(gctx)
			if idx.onSynced != nil {
				idx.onSynced(r.URL(), errs[i])
			}
			return nil
		})
	}
	_ = g.Wait()

	report := &FetchReport{Failed: make(map[string]error)}
	for i, r := range idx.repos {
		if errs[i] != nil {
			idx.logger.Warn("repository sync failed", "url", r.URL(), "err", errs[i])
			report.Failed[r.URL()] = errs[i]
			continue
		}
		report.Synced = append(report.Synced, r.URL())
	}

	if err := errors.Join(errs...); err != nil {
		return report, err
	}
	idx.synced = true
	return report, nil
}

// EnsureSynced syncs the repositories once per Index. In offline mode this
// only checks that every mirror exists.
func (idx *Index) EnsureSynced(ctx context.Context) error {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.synced {
		return nil
	}
	_, err := idx.fetch(ctx)
	return err
}

// Paths yields every catalogued file, repository by repository, in git's path
// order. An empty ref means each repository's HEAD; otherwise repositories
// that do not know ref are skipped. The sequence can be ranged over again.
func (idx *Index) Paths(ctx context.Context, ref string) iter.Seq2[FileInfo, error] {
	return func(yield func(FileInfo, error) bool) {
		for _, r := range idx.repos {
			var commit string
			var err error
			if ref == "" {
				commit, err = r.Head(ctx)
			} else {
				commit, err = r.ResolveRef(ctx, ref)
				if dterrors.Is(err, dterrors.ErrCodeNotFound) {
					continue
				}
			}
			if err != nil {
				if !yield(FileInfo{Repo: r.Spec()}, err) {
					return
				}
				continue
			}

			paths, err := r.ListPaths(ctx, commit)
			if err != nil {
				if !yield(FileInfo{Repo: r.Spec(), Ref: commit}, err) {
					return
				}
				continue
			}
			for _, p := range paths {
				if ok, _ := doublestar.Match(idx.include, p); !ok {
					continue
				}
				if !yield(FileInfo{Path: p, Repo: r.Spec(), Ref: commit}, nil) {
					return
				}
			}
		}
	}
}

// Search returns every catalogued path containing phrase, in scan order.
// The empty phrase matches everything.
func (idx *Index) Search(ctx context.Context, phrase string) ([]SearchResult, error) {
	if err := idx.EnsureSynced(ctx); err != nil {
		return nil, err
	}

	var results []SearchResult
	for fi, err := range idx.Paths(ctx, "") {
		if err != nil {
			return nil, err
		}
		if strings.Contains(fi.Path, phrase) {
			results = append(results, SearchResult{FileInfo: fi})
		}
	}
	return results, nil
}

// Locate finds the first repository that has p at ref and returns its
// address with ref expanded to a full commit id.
func (idx *Index) Locate(ctx context.Context, p, ref string) (FileInfo, error) {
	for _, r := range idx.repos {
		if !r.Exists() {
			continue
		}
		commit, err := r.ResolveRef(ctx, ref)
		if dterrors.Is(err, dterrors.ErrCodeNotFound) {
			continue
		}
		if err != nil {
			return FileInfo{}, err
		}
		ok, err := r.HasPath(ctx, commit, p)
		if err != nil {
			return FileInfo{}, err
		}
		if ok {
			return FileInfo{Path: p, Repo: r.Spec(), Ref: commit}, nil
		}
	}
	return FileInfo{}, dterrors.New(dterrors.ErrCodeNotFound, "%s at %s not found in any repository", p, ref)
}

// Has reports whether fi names an existing file in its repository.
func (idx *Index) Has(ctx context.Context, fi FileInfo) (bool, error) {
	r := idx.Repository(fi.Repo.URL)
	if r == nil {
		return false, nil
	}
	return r.HasPath(ctx, fi.Ref, fi.Path)
}

// BlobID returns the git object id of fi's content.
func (idx *Index) BlobID(ctx context.Context, fi FileInfo) (string, error) {
	r := idx.Repository(fi.Repo.URL)
	if r == nil {
		return "", dterrors.New(dterrors.ErrCodeNotFound, "repository %s is not configured", fi.Repo.URL)
	}
	return r.BlobID(ctx, fi.Ref, fi.Path)
}

// ReadFile returns fi's content, served from the blob cache when possible.
func (idx *Index) ReadFile(ctx context.Context, fi FileInfo) ([]byte, error) {
	oid, err := idx.BlobID(ctx, fi)
	if err != nil {
		return nil, err
	}

	if idx.cache != nil {
		data, ok, err := idx.cache.Get(oid)
		if err != nil {
			idx.logger.Warn("blob cache read failed", "oid", oid, "err", err)
		}
		if ok {
			idx.logger.Debug("blob cache hit", "path", fi.Path, "oid", oid)
			return data, nil
		}
	}

	data, err := idx.Repository(fi.Repo.URL).ReadBlob(ctx, oid)
	if err != nil {
		return nil, err
	}
	if idx.cache != nil {
		if err := idx.cache.Put(oid, data); err != nil {
			idx.logger.Warn("blob cache write failed", "oid", oid, "err", err)
		}
	}
	return data, nil
}
