// Package gittest builds throwaway git repositories for tests.
package gittest

import (
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// Remote is a bare repository plus the work tree used to produce its commits.
type Remote struct {
	t    testing.TB
	work string

	// URL is the bare repository path, usable as a clone URL.
	URL string
}

// RequireGit skips the test when no git executable is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git not available")
	}
}

// NewRemote creates a repository whose first commit contains files
// (repo-relative path -> content) and returns it as a bare remote.
func NewRemote(t testing.TB, files map[string]string) *Remote {
	t.Helper()
	RequireGit(t)

	r := &Remote{
		t:    t,
		work: t.TempDir(),
		URL:  filepath.Join(t.TempDir(), "remote.git"),
	}
	r.run(r.work, "init", "-b", "main")
	r.Commit("initial", files)
	r.run(r.work, "clone", "--bare", "--quiet", r.work, r.URL)
	return r
}

// Commit writes files into the work tree, commits them and pushes to the bare
// remote (when it exists). An empty content deletes the file. It returns the
// new commit id.
func (r *Remote) Commit(message string, files map[string]string) string {
	r.t.Helper()
	for rel, content := range files {
		abs := filepath.Join(r.work, filepath.FromSlash(rel))
		if content == "" {
			if err := os.Remove(abs); err != nil && !os.IsNotExist(err) {
				r.t.Fatal(err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(abs), 0755); err != nil {
			r.t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0644); err != nil {
			r.t.Fatal(err)
		}
	}
	r.run(r.work, "add", "-A")
	r.run(r.work, "commit", "--quiet", "--allow-empty", "-m", message)
	if _, err := os.Stat(r.URL); err == nil {
		r.run(r.work, "push", "--quiet", r.URL, "main")
	}
	return r.Head()
}

// Head returns the work tree's current commit id.
func (r *Remote) Head() string {
	r.t.Helper()
	return strings.TrimSpace(r.run(r.work, "rev-parse", "HEAD"))
}

func (r *Remote) run(dir string, args ...string) string {
	r.t.Helper()
	cmd := exec.Command("git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(),
		"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@test.com",
		"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@test.com",
		"GIT_CONFIG_NOSYSTEM=1",
	)
	out, err := cmd.CombinedOutput()
	if err != nil {
		r.t.Fatalf("git %v: %s: %v", args, out, err)
	}
	return string(out)
}
