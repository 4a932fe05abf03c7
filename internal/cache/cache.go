package cache

import (
	"crypto/sha1" //nolint:gosec // git object ids, not a security boundary
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
)

// Cache stores blob contents by git object id. Entries are verified against
// their id on every read, so a corrupt entry is never served.
type Cache struct {
	dir string
}

// New creates a Cache at the given directory, creating it if needed.
func New(dir string) (*Cache, error) {
	objDir := filepath.Join(dir, "objects")
	if err := os.MkdirAll(objDir, 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory %s: %w", objDir, err)
	}
	return &Cache{dir: dir}, nil
}

// DefaultDir returns the platform cache directory plus "dtsm"
// ($XDG_CACHE_HOME or ~/.cache on Linux), or a temp directory when the
// platform has none.
func DefaultDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "dtsm")
	}
	return filepath.Join(os.TempDir(), "dtsm-cache")
}

// Get returns the blob stored under oid.
// A missing entry is a miss; an entry whose content no longer hashes to oid
// is removed and also reported as a miss.
func (c *Cache) Get(oid string) ([]byte, bool, error) {
	path := c.objectPath(oid)
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading cache entry %s: %w", oid, err)
	}

	if BlobID(data, len(oid)) != oid {
		_ = os.Remove(path)
		return nil, false, nil
	}
	return data, true, nil
}

// Put stores content under oid after checking that it hashes to oid.
// Entries are immutable; storing an existing oid is a no-op.
func (c *Cache) Put(oid string, content []byte) error {
	if actual := BlobID(content, len(oid)); actual != oid {
		return fmt.Errorf("cache put: content hashes to %s, not %s", actual, oid)
	}
	if c.Has(oid) {
		return nil
	}

	path := c.objectPath(oid)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating cache subdirectory: %w", err)
	}
	return writeAtomic(path, content)
}

// writeAtomic writes content to a temp file beside path and renames it into
// place, so readers never see a partial entry.
func writeAtomic(path string, content []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("creating cache temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("writing cache temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("closing cache temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming cache temp file: %w", err)
	}
	return nil
}

// Has checks if oid is cached without reading or verifying it.
func (c *Cache) Has(oid string) bool {
	_, err := os.Stat(c.objectPath(oid))
	return err == nil
}

// Size returns the total size of the cache directory in bytes, including
// repository mirrors stored beneath it.
func (c *Cache) Size() (int64, error) {
	var total int64
	err := filepath.WalkDir(c.dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		total += info.Size()
		return nil
	})
	return total, err
}

// Path returns the cache directory path.
func (c *Cache) Path() string {
	return c.dir
}

func (c *Cache) objectPath(oid string) string {
	if len(oid) < 2 {
		return filepath.Join(c.dir, "objects", oid)
	}
	return filepath.Join(c.dir, "objects", oid[:2], oid)
}

// BlobID computes the git object id of content stored as a blob.
// idLen selects the object format: 64 for SHA-256 repositories, SHA-1 otherwise.
func BlobID(content []byte, idLen int) string {
	var h hash.Hash
	if idLen == sha256.Size*2 {
		h = sha256.New()
	} else {
		h = sha1.New() //nolint:gosec
	}
	h.Write([]byte("blob " + strconv.Itoa(len(content)) + "\x00"))
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}
