// Package repo maintains local mirrors of remote declaration-file repositories
// and reads blob content from them at arbitrary commits without a working tree.
package repo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	dterrors "github.com/bianoble/dtsm/internal/errors"
)

// Spec identifies a remote repository and the location of its local mirror.
type Spec struct {
	URL       string `json:"url" yaml:"url"`
	LocalPath string `json:"-" yaml:"local_path,omitempty"`
}

// DefaultLocalPath returns the mirror directory used for url under cacheDir.
func DefaultLocalPath(cacheDir, url string) string {
	sum := sha256.Sum256([]byte(url))
	base := strings.TrimSuffix(path.Base(strings.TrimRight(url, "/")), ".git")
	if base == "" || base == "." || base == "/" {
		base = "repo"
	}
	return filepath.Join(cacheDir, "repos", hex.EncodeToString(sum[:])[:12]+"-"+base)
}

// Repository is a bare mirror of one remote. It is safe for concurrent use.
type Repository struct {
	spec    Spec
	offline bool

	mu    sync.Mutex
	trees map[string]*tree // commit -> listing; commits are immutable
}

type tree struct {
	paths []string
	set   map[string]bool
}

// New returns a Repository for spec. spec.LocalPath must be set.
func New(spec Spec, offline bool) *Repository {
	return &Repository{
		spec:    spec,
		offline: offline,
		trees:   make(map[string]*tree),
	}
}

// Spec returns the repository's spec.
func (r *Repository) Spec() Spec {
	return r.spec
}

// URL returns the remote URL.
func (r *Repository) URL() string {
	return r.spec.URL
}

// Exists reports whether the local mirror has been created.
func (r *Repository) Exists() bool {
	_, err := os.Stat(filepath.Join(r.spec.LocalPath, "HEAD"))
	return err == nil
}

// Sync brings the mirror up to date with the remote, cloning it on first use.
// In offline mode it never touches the network: an existing mirror is left as
// is and a missing one is an OFFLINE_MODE_VIOLATION.
func (r *Repository) Sync(ctx context.Context) error {
	if r.offline {
		if !r.Exists() {
			return dterrors.New(dterrors.ErrCodeOffline, "repository %s is not cached and offline mode is set", r.spec.URL)
		}
		return nil
	}

	if !r.Exists() {
		if err := os.MkdirAll(filepath.Dir(r.spec.LocalPath), 0755); err != nil {
			return dterrors.Wrap(dterrors.ErrCodeIO, err, "creating mirror parent for %s", r.spec.URL)
		}
		// A failed clone can leave a partial directory behind.
		if err := gitClone(ctx, r.spec.URL, r.spec.LocalPath); err != nil {
			_ = os.RemoveAll(r.spec.LocalPath)
			return dterrors.Wrap(dterrors.ErrCodeRemoteUnavailable, err, "cloning %s", r.spec.URL)
		}
		return nil
	}

	if err := gitFetch(ctx, r.spec.LocalPath); err != nil {
		return dterrors.Wrap(dterrors.ErrCodeRemoteUnavailable, err, "fetching %s", r.spec.URL)
	}
	return nil
}

// Head returns the commit the remote's default branch pointed at when last synced.
func (r *Repository) Head(ctx context.Context) (string, error) {
	return r.ResolveRef(ctx, "HEAD")
}

// ResolveRef resolves a branch, tag or (abbreviated) commit to a full commit id.
func (r *Repository) ResolveRef(ctx context.Context, ref string) (string, error) {
	if !r.Exists() {
		return "", dterrors.New(dterrors.ErrCodeNotFound, "repository %s has not been fetched", r.spec.URL)
	}
	commit, err := gitRevParse(ctx, r.spec.LocalPath, ref+"^{commit}")
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", dterrors.Wrap(dterrors.ErrCodeNotFound, err, "ref %s not found in %s", ref, r.spec.URL)
	}
	return commit, nil
}

// ListPaths returns every file path at commit, sorted the way git stores them.
// The returned slice is shared and must not be modified.
func (r *Repository) ListPaths(ctx context.Context, commit string) ([]string, error) {
	t, err := r.tree(ctx, commit)
	if err != nil {
		return nil, err
	}
	return t.paths, nil
}

// HasPath reports whether p exists as a file at commit.
func (r *Repository) HasPath(ctx context.Context, commit, p string) (bool, error) {
	t, err := r.tree(ctx, commit)
	if err != nil {
		return false, err
	}
	return t.set[p], nil
}

func (r *Repository) tree(ctx context.Context, commit string) (*tree, error) {
	r.mu.Lock()
	t, ok := r.trees[commit]
	r.mu.Unlock()
	if ok {
		return t, nil
	}

	paths, err := gitLsTree(ctx, r.spec.LocalPath, commit)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dterrors.Wrap(dterrors.ErrCodeNotFound, err, "listing %s at %s", r.spec.URL, shortRef(commit))
	}
	t = &tree{paths: paths, set: make(map[string]bool, len(paths))}
	for _, p := range paths {
		t.set[p] = true
	}

	r.mu.Lock()
	r.trees[commit] = t
	r.mu.Unlock()
	return t, nil
}

// BlobID returns the git object id of the file p at commit.
func (r *Repository) BlobID(ctx context.Context, commit, p string) (string, error) {
	ok, err := r.HasPath(ctx, commit, p)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", dterrors.New(dterrors.ErrCodeNotFound, "%s does not exist at %s in %s", p, shortRef(commit), r.spec.URL)
	}
	oid, err := gitRevParse(ctx, r.spec.LocalPath, commit+":"+p)
	if err != nil {
		return "", dterrors.Wrap(dterrors.ErrCodeIO, err, "resolving %s at %s", p, shortRef(commit))
	}
	return oid, nil
}

// ReadBlob returns the content of a blob object.
func (r *Repository) ReadBlob(ctx context.Context, oid string) ([]byte, error) {
	data, err := gitCatBlob(ctx, r.spec.LocalPath, oid)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dterrors.Wrap(dterrors.ErrCodeIO, err, "reading blob %s from %s", oid, r.spec.URL)
	}
	return data, nil
}

// ReadFile returns the content of p at commit.
func (r *Repository) ReadFile(ctx context.Context, commit, p string) ([]byte, error) {
	oid, err := r.BlobID(ctx, commit, p)
	if err != nil {
		return nil, err
	}
	return r.ReadBlob(ctx, oid)
}

func (r *Repository) String() string {
	return fmt.Sprintf("%s (%s)", r.spec.URL, r.spec.LocalPath)
}

func shortRef(ref string) string {
	if len(ref) > 8 {
		return ref[:8]
	}
	return ref
}
