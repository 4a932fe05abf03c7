// Package sandbox confines file writes and removals to an install directory.
package sandbox

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Root is an install directory whose real path has been resolved once.
// Every path handed to its methods is relative to it and must stay inside
// it after symlinks are followed.
type Root struct {
	dir string
}

// Open creates dir if needed and returns it as a Root.
func Open(dir string) (*Root, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating install directory %s: %w", dir, err)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving install directory: %w", err)
	}
	realDir, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("resolving install directory symlinks: %w", err)
	}
	return &Root{dir: realDir}, nil
}

// Path returns the resolved absolute path of the root.
func (r *Root) Path() string {
	return r.dir
}

// Resolve returns the absolute location of rel, following any symlinks that
// already exist along it, and fails if that location is outside the root.
func (r *Root) Resolve(rel string) (string, error) {
	candidate := filepath.Clean(filepath.Join(r.dir, filepath.FromSlash(rel)))

	resolved, err := resolveExistingPath(candidate)
	if err != nil {
		return "", fmt.Errorf("resolving %s: %w", rel, err)
	}

	// The trailing separator keeps "typings2" from matching "typings".
	if resolved != r.dir && !strings.HasPrefix(resolved, r.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("path '%s' resolves to '%s' which is outside the install directory '%s'", rel, resolved, r.dir)
	}
	return resolved, nil
}

// resolveExistingPath resolves symlinks for the longest existing prefix of
// path and appends the part that does not exist yet.
func resolveExistingPath(path string) (string, error) {
	resolved, err := filepath.EvalSymlinks(path)
	if err == nil {
		return resolved, nil
	}

	dir := filepath.Dir(path)
	if dir == path {
		return path, nil
	}

	resolvedDir, err := resolveExistingPath(dir)
	if err != nil {
		return "", err
	}
	return filepath.Join(resolvedDir, filepath.Base(path)), nil
}

// Write atomically replaces rel with content, creating parent directories.
func (r *Root) Write(rel string, content []byte, perm os.FileMode) error {
	resolved, err := r.Resolve(rel)
	if err != nil {
		return err
	}
	if resolved == r.dir {
		return fmt.Errorf("cannot write to the install directory itself")
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating directory %s: %w", dir, err)
	}

	// Same directory keeps the rename on one filesystem.
	tmp, err := os.CreateTemp(dir, ".dtsm-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, resolved); err != nil {
		return fmt.Errorf("renaming temp file to %s: %w", resolved, err)
	}

	success = true
	return nil
}

// Remove deletes rel and then every parent directory, up to but excluding
// the root, that has become empty. A missing file is not an error; removed
// reports whether a file was actually deleted.
func (r *Root) Remove(rel string) (removed bool, err error) {
	resolved, err := r.Resolve(rel)
	if err != nil {
		return false, err
	}
	if resolved == r.dir {
		return false, fmt.Errorf("cannot remove the install directory itself")
	}

	if err := os.Remove(resolved); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("removing %s: %w", rel, err)
		}
	} else {
		removed = true
	}

	for dir := filepath.Dir(resolved); dir != r.dir && strings.HasPrefix(dir, r.dir); dir = filepath.Dir(dir) {
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			break
		}
		if err := os.Remove(dir); err != nil {
			break
		}
	}
	return removed, nil
}
