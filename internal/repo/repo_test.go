package repo

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/gittest"
)

func newMirror(t *testing.T, remote *gittest.Remote, offline bool) *Repository {
	t.Helper()
	return New(Spec{URL: remote.URL, LocalPath: filepath.Join(t.TempDir(), "mirror")}, offline)
}

func TestSyncClonesAndReads(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{
		"jquery/jquery.d.ts": "declare var $: any;\n",
		"README.md":          "# types\n",
	})
	r := newMirror(t, remote, false)
	ctx := context.Background()

	if r.Exists() {
		t.Fatal("mirror should not exist before Sync")
	}
	if err := r.Sync(ctx); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if !r.Exists() {
		t.Fatal("mirror should exist after Sync")
	}

	head, err := r.Head(ctx)
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head != remote.Head() {
		t.Errorf("head = %s, want %s", head, remote.Head())
	}

	paths, err := r.ListPaths(ctx, head)
	if err != nil {
		t.Fatalf("ListPaths: %v", err)
	}
	if strings.Join(paths, ",") != "README.md,jquery/jquery.d.ts" {
		t.Errorf("paths = %v", paths)
	}

	data, err := r.ReadFile(ctx, head, "jquery/jquery.d.ts")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(data) != "declare var $: any;\n" {
		t.Errorf("content = %q", data)
	}
}

func TestSyncPicksUpNewCommits(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a/a.d.ts": "v1\n"})
	r := newMirror(t, remote, false)
	ctx := context.Background()

	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	first, _ := r.Head(ctx)

	second := remote.Commit("v2", map[string]string{"a/a.d.ts": "v2\n"})
	if err := r.Sync(ctx); err != nil {
		t.Fatalf("second Sync: %v", err)
	}
	head, _ := r.Head(ctx)
	if head != second {
		t.Errorf("head = %s, want %s", head, second)
	}

	// The old commit stays readable.
	old, err := r.ReadFile(ctx, first, "a/a.d.ts")
	if err != nil {
		t.Fatalf("ReadFile old: %v", err)
	}
	if string(old) != "v1\n" {
		t.Errorf("old content = %q", old)
	}
}

func TestOfflineWithoutMirror(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.d.ts": "x"})
	r := newMirror(t, remote, true)

	err := r.Sync(context.Background())
	if !dterrors.Is(err, dterrors.ErrCodeOffline) {
		t.Fatalf("expected OFFLINE_MODE_VIOLATION, got %v", err)
	}
	if r.Exists() {
		t.Error("offline Sync must not create a mirror")
	}
}

func TestOfflineUsesExistingMirror(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.d.ts": "x"})
	local := filepath.Join(t.TempDir(), "mirror")
	ctx := context.Background()

	if err := New(Spec{URL: remote.URL, LocalPath: local}, false).Sync(ctx); err != nil {
		t.Fatal(err)
	}
	remote.Commit("later", map[string]string{"b.d.ts": "y"})

	r := New(Spec{URL: remote.URL, LocalPath: local}, true)
	if err := r.Sync(ctx); err != nil {
		t.Fatalf("offline Sync: %v", err)
	}
	head, _ := r.Head(ctx)
	ok, err := r.HasPath(ctx, head, "b.d.ts")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("offline Sync must not fetch new commits")
	}
}

func TestSyncUnreachableRemote(t *testing.T) {
	gittest.RequireGit(t)
	r := New(Spec{URL: filepath.Join(t.TempDir(), "missing.git"), LocalPath: filepath.Join(t.TempDir(), "m")}, false)

	err := r.Sync(context.Background())
	if !dterrors.Is(err, dterrors.ErrCodeRemoteUnavailable) {
		t.Fatalf("expected REMOTE_UNAVAILABLE, got %v", err)
	}
	if r.Exists() {
		t.Error("failed clone should not leave a mirror behind")
	}
}

func TestResolveRefUnknown(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.d.ts": "x"})
	r := newMirror(t, remote, false)
	ctx := context.Background()
	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := r.ResolveRef(ctx, "0123456789abcdef0123456789abcdef01234567")
	if !dterrors.Is(err, dterrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestBlobIDMissingPath(t *testing.T) {
	remote := gittest.NewRemote(t, map[string]string{"a.d.ts": "x"})
	r := newMirror(t, remote, false)
	ctx := context.Background()
	if err := r.Sync(ctx); err != nil {
		t.Fatal(err)
	}
	head, _ := r.Head(ctx)

	_, err := r.BlobID(ctx, head, "nope.d.ts")
	if !dterrors.Is(err, dterrors.ErrCodeNotFound) {
		t.Fatalf("expected NOT_FOUND, got %v", err)
	}
}

func TestDefaultLocalPath(t *testing.T) {
	got := DefaultLocalPath("/cache", "https://github.com/DefinitelyTyped/DefinitelyTyped.git")
	if filepath.Dir(got) != filepath.Join("/cache", "repos") {
		t.Errorf("dir = %q", filepath.Dir(got))
	}
	if !strings.HasSuffix(got, "-DefinitelyTyped") {
		t.Errorf("path = %q, want -DefinitelyTyped suffix", got)
	}
	if got == DefaultLocalPath("/cache", "https://example.com/other/DefinitelyTyped.git") {
		t.Error("different URLs must not share a mirror")
	}
}
