package sandbox

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func openRoot(t *testing.T) *Root {
	t.Helper()
	r, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return r
}

func TestOpenCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "typings")
	r, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		t.Fatalf("install directory not created: %v", err)
	}
	if !filepath.IsAbs(r.Path()) {
		t.Errorf("Path = %q, want absolute", r.Path())
	}
}

func TestResolveWithinRoot(t *testing.T) {
	r := openRoot(t)

	resolved, err := r.Resolve("jquery/jquery.d.ts")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if want := filepath.Join(r.Path(), "jquery", "jquery.d.ts"); resolved != want {
		t.Errorf("got %q, want %q", resolved, want)
	}
}

func TestResolveRejectsEscape(t *testing.T) {
	r := openRoot(t)

	for _, rel := range []string{"../escape.d.ts", "jquery/../../escape.d.ts"} {
		_, err := r.Resolve(rel)
		if err == nil {
			t.Fatalf("Resolve(%q): expected error", rel)
		}
		if !strings.Contains(err.Error(), "outside the install directory") {
			t.Errorf("Resolve(%q): unexpected error: %v", rel, err)
		}
	}
}

func TestResolveRejectsSymlinkEscape(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	r := openRoot(t)
	if err := os.Symlink(t.TempDir(), filepath.Join(r.Path(), "escape-link")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	_, err := r.Resolve("escape-link/file.d.ts")
	if err == nil || !strings.Contains(err.Error(), "outside the install directory") {
		t.Fatalf("expected escape error, got %v", err)
	}
}

func TestResolveAllowsInternalSymlink(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink test not reliable on Windows")
	}

	r := openRoot(t)
	realDir := filepath.Join(r.Path(), "real")
	if err := os.MkdirAll(realDir, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.Symlink(realDir, filepath.Join(r.Path(), "link")); err != nil {
		t.Fatal(err)
	}

	resolved, err := r.Resolve("link/file.d.ts")
	if err != nil {
		t.Fatalf("Resolve should allow internal symlinks: %v", err)
	}
	if want := filepath.Join(realDir, "file.d.ts"); resolved != want {
		t.Errorf("got %q, want %q", resolved, want)
	}
}

func TestWriteCreatesFile(t *testing.T) {
	r := openRoot(t)

	if err := r.Write("a/b/c.d.ts", []byte("declare var c: any;"), 0644); err != nil {
		t.Fatalf("Write: %v", err)
	}

	written, err := os.ReadFile(filepath.Join(r.Path(), "a", "b", "c.d.ts"))
	if err != nil {
		t.Fatalf("reading written file: %v", err)
	}
	if string(written) != "declare var c: any;" {
		t.Errorf("content = %q", written)
	}

	entries, _ := os.ReadDir(filepath.Join(r.Path(), "a", "b"))
	if len(entries) != 1 {
		t.Errorf("temp files left behind: %v", entries)
	}
}

func TestWriteOverwritesExisting(t *testing.T) {
	r := openRoot(t)

	if err := r.Write("file.d.ts", []byte("original"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Write("file.d.ts", []byte("updated"), 0644); err != nil {
		t.Fatal(err)
	}

	data, _ := os.ReadFile(filepath.Join(r.Path(), "file.d.ts"))
	if string(data) != "updated" {
		t.Errorf("content = %q, want %q", data, "updated")
	}
}

func TestWritePermissions(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}

	r := openRoot(t)
	if err := r.Write("x.d.ts", []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(r.Path(), "x.d.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestWriteRejectsEscapeAndRoot(t *testing.T) {
	r := openRoot(t)
	if err := r.Write("../escape.d.ts", []byte("bad"), 0644); err == nil {
		t.Error("expected error for escape attempt")
	}
	if err := r.Write(".", []byte("bad"), 0644); err == nil {
		t.Error("expected error writing the root itself")
	}
}

func TestRemovePrunesEmptyParents(t *testing.T) {
	r := openRoot(t)
	if err := r.Write("atom/atom.d.ts", []byte("a"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := r.Write("node/node.d.ts", []byte("n"), 0644); err != nil {
		t.Fatal(err)
	}

	removed, err := r.Remove("atom/atom.d.ts")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Error("removed should be true")
	}
	if _, err := os.Stat(filepath.Join(r.Path(), "atom")); !os.IsNotExist(err) {
		t.Error("empty parent directory should be pruned")
	}
	if _, err := os.Stat(filepath.Join(r.Path(), "node", "node.d.ts")); err != nil {
		t.Error("sibling files must be untouched")
	}
	if _, err := os.Stat(r.Path()); err != nil {
		t.Error("the install directory itself must be kept")
	}
}

func TestRemoveKeepsNonEmptyParents(t *testing.T) {
	r := openRoot(t)
	for _, p := range []string{"atom/atom.d.ts", "atom/atom-keymap.d.ts"} {
		if err := r.Write(p, []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := r.Remove("atom/atom.d.ts"); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(filepath.Join(r.Path(), "atom", "atom-keymap.d.ts")); err != nil {
		t.Error("directory with remaining files must be kept")
	}
}

func TestRemoveNonexistent(t *testing.T) {
	r := openRoot(t)
	removed, err := r.Remove("missing/missing.d.ts")
	if err != nil {
		t.Fatalf("Remove of a missing file should succeed: %v", err)
	}
	if removed {
		t.Error("removed should be false for a missing file")
	}
}

func TestRemoveRejectsEscape(t *testing.T) {
	r := openRoot(t)
	if _, err := r.Remove("../escape.d.ts"); err == nil {
		t.Fatal("expected error for escape attempt")
	}
}

func TestResolveExistingPathPartiallyExists(t *testing.T) {
	dir := t.TempDir()
	realDir, _ := filepath.EvalSymlinks(dir)

	got, err := resolveExistingPath(filepath.Join(dir, "does", "not", "exist.d.ts"))
	if err != nil {
		t.Fatal(err)
	}
	if want := filepath.Join(realDir, "does", "not", "exist.d.ts"); got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}
