// Package dtsm provides the public Go library API for dtsm, a dependency
// manager for TypeScript declaration files.
//
// A Manager resolves short specifiers such as "jquery/jquery.d.ts" against
// git repositories of declaration files, installs the files together with
// everything they reference, and records the resolved commits in a dtsm.json
// lock file so the same files can be installed again later.
//
// # Basic Usage
//
//	m, err := dtsm.New(dtsm.Options{ConfigPath: "dtsm.json"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Install a file and record it in dtsm.json
//	result, err := m.Install(ctx, dtsm.InstallOptions{Save: true}, []string{"jquery/jquery.d.ts"})
//
//	// Reinstall exactly what dtsm.json records
//	result, err = m.InstallFromFile(ctx, dtsm.InstallFromFileOptions{})
package dtsm

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/bianoble/dtsm/internal/cache"
	"github.com/bianoble/dtsm/internal/config"
	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/fetcher"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/lock"
	"github.com/bianoble/dtsm/internal/repo"
	"github.com/bianoble/dtsm/internal/resolve"
)

// DefaultRepository is used when no repository is configured anywhere.
const DefaultRepository = "https://github.com/DefinitelyTyped/DefinitelyTyped.git"

// Options configures a Manager.
type Options struct {
	// ConfigPath is the lock file path. Default: "dtsm.json".
	ConfigPath string

	// Repos overrides every other source of repository configuration.
	Repos []RepositorySpec

	// Offline forbids network access; only existing mirrors are used.
	Offline bool

	// InsightOptout records the user's usage-statistics choice. The Manager
	// stores it for callers and does not act on it.
	InsightOptout *bool

	// CacheDir holds repository mirrors and the blob cache.
	// If empty, uses the config value or the default (~/.cache/dtsm).
	CacheDir string

	// Include is the doublestar pattern selecting catalogued files.
	// Default: "**/*.d.ts".
	Include string

	// Concurrency bounds parallel syncs and file writes. Default: 4.
	Concurrency int

	// NoInherit skips every config file layer.
	NoInherit bool

	Logger *log.Logger

	// OnSynced is called after each repository sync attempt.
	OnSynced func(url string, err error)

	// OnInstalled is called after each file is written (or fails to be).
	OnInstalled func(res *DependencyResult)
}

// Manager is the main entry point for the dtsm library.
type Manager struct {
	lockPath      string
	offline       bool
	insightOptout *bool
	logger        *log.Logger

	cache    *cache.Cache
	index    *index.Index
	resolver *resolve.Resolver
	fetcher  *fetcher.Fetcher

	// mu serializes lock file read-modify-write cycles.
	mu sync.Mutex
}

// New creates a Manager. Repositories are taken from the first non-empty of
// opts.Repos, the lock file's repos, the layered config, and finally
// DefaultRepository.
func New(opts Options) (*Manager, error) {
	if opts.ConfigPath == "" {
		opts.ConfigPath = lock.FileName
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}

	cfg := &config.Config{}
	if !opts.NoInherit && !config.EnvNoInherit() {
		hr, err := config.LoadHierarchical(config.DiscoverOptions{})
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		cfg = hr.Config
		for _, l := range hr.Layers {
			if l.Loaded {
				logger.Debug("loaded config layer", "level", l.Level, "path", l.Path)
			}
		}
	}

	cacheDir := firstNonEmpty(opts.CacheDir, cfg.CacheDir, cache.DefaultDir())
	c, err := cache.New(cacheDir)
	if err != nil {
		return nil, dterrors.Wrap(dterrors.ErrCodeIO, err, "initializing cache")
	}

	repos := selectRepos(opts, cfg, logger)
	localPaths := make(map[string]string)
	for _, r := range cfg.Repos {
		if r.LocalPath != "" {
			localPaths[r.URL] = r.LocalPath
		}
	}
	for i := range repos {
		if repos[i].LocalPath == "" {
			repos[i].LocalPath = localPaths[repos[i].URL]
		}
		if repos[i].LocalPath == "" {
			repos[i].LocalPath = repo.DefaultLocalPath(cacheDir, repos[i].URL)
		}
	}

	offline := opts.Offline || cfg.IsOffline()
	idx := index.New(index.Options{
		Repos:       repos,
		Cache:       c,
		Include:     firstNonEmpty(opts.Include, cfg.Include),
		Offline:     offline,
		Concurrency: opts.Concurrency,
		Logger:      logger,
		OnSynced:    opts.OnSynced,
	})

	return &Manager{
		lockPath:      opts.ConfigPath,
		offline:       offline,
		insightOptout: opts.InsightOptout,
		logger:        logger,
		cache:         c,
		index:         idx,
		resolver:      &resolve.Resolver{Source: idx, Logger: logger},
		fetcher: &fetcher.Fetcher{
			Reader:      idx,
			Concurrency: opts.Concurrency,
			Logger:      logger,
			OnWritten:   opts.OnInstalled,
		},
	}, nil
}

func selectRepos(opts Options, cfg *config.Config, logger *log.Logger) []RepositorySpec {
	if len(opts.Repos) > 0 {
		return slices.Clone(opts.Repos)
	}
	lf, err := lock.Load(opts.ConfigPath)
	switch {
	case err == nil && len(lf.Repos) > 0:
		return slices.Clone(lf.Repos)
	case err != nil && !dterrors.Is(err, dterrors.ErrCodeNotFound):
		logger.Debug("ignoring lockfile repos", "path", opts.ConfigPath, "err", err)
	}
	if len(cfg.Repos) > 0 {
		return slices.Clone(cfg.Repos)
	}
	return []RepositorySpec{{URL: DefaultRepository}}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// LockPath returns the lock file path the Manager reads and writes.
func (m *Manager) LockPath() string {
	return m.lockPath
}

// Repos returns the repositories in resolution order.
func (m *Manager) Repos() []RepositorySpec {
	return m.index.Repos()
}

// Offline reports whether the Manager is in offline mode.
func (m *Manager) Offline() bool {
	return m.offline
}

// InsightOptout returns the recorded usage-statistics choice, nil if unset.
func (m *Manager) InsightOptout() *bool {
	return m.insightOptout
}

// CacheDir returns the directory holding mirrors and cached blobs.
func (m *Manager) CacheDir() string {
	return m.cache.Path()
}

// CacheSize returns the total size of the cache directory in bytes.
func (m *Manager) CacheSize() (int64, error) {
	return m.cache.Size()
}

// Init writes a new lock file listing the configured repositories and
// returns its content. An existing file is ALREADY_EXISTS unless opts.Force.
func (m *Manager) Init(_ context.Context, opts InitOptions) (string, error) {
	path := firstNonEmpty(opts.Path, m.lockPath)

	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := lock.Initialize(path, lock.New(m.index.Repos()), opts.Force)
	if err != nil {
		return "", err
	}
	m.logger.Debug("initialized lockfile", "path", path)
	return string(data), nil
}

// Search returns every catalogued path containing phrase, in repository
// order then path order. The empty phrase matches everything.
func (m *Manager) Search(ctx context.Context, phrase string) ([]SearchResult, error) {
	return m.index.Search(ctx, phrase)
}

// Fetch syncs every repository. Failures of individual repositories are
// listed in the report and joined into the returned error.
func (m *Manager) Fetch(ctx context.Context) (*FetchReport, error) {
	return m.index.Fetch(ctx)
}

// targetDir returns the install directory for lf, which is relative to the
// lock file's own directory.
func (m *Manager) targetDir(lockPath string, lf *lock.Lockfile) string {
	p := lock.DefaultInstallPath
	if lf != nil && lf.Path != "" {
		p = lf.Path
	}
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(filepath.Dir(lockPath), filepath.FromSlash(p))
}

// loadOrNew returns the lock file at path, or a fresh one when it does not
// exist yet.
func (m *Manager) loadOrNew(path string) (*lock.Lockfile, error) {
	lf, err := lock.Load(path)
	if dterrors.Is(err, dterrors.ErrCodeNotFound) {
		return lock.New(m.index.Repos()), nil
	}
	return lf, err
}

// updateLock applies fn to the current lock file and saves it, all under mu
// so concurrent callers never lose each other's entries.
func (m *Manager) updateLock(fn func(lf *lock.Lockfile) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	lf, err := m.loadOrNew(m.lockPath)
	if err != nil {
		return err
	}
	if err := fn(lf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(m.lockPath), 0755); err != nil {
		return dterrors.Wrap(dterrors.ErrCodeIO, err, "creating directory for %s", m.lockPath)
	}
	if err := lock.Save(m.lockPath, lf); err != nil {
		return err
	}
	m.logger.Debug("saved lockfile", "path", m.lockPath, "entries", len(lf.Dependencies))
	return nil
}
