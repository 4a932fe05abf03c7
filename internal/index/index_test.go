package index_test

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bianoble/dtsm/internal/cache"
	dterrors "github.com/bianoble/dtsm/internal/errors"
	"github.com/bianoble/dtsm/internal/gittest"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/repo"
)

func spec(t *testing.T, remote *gittest.Remote) repo.Spec {
	t.Helper()
	return repo.Spec{URL: remote.URL, LocalPath: filepath.Join(t.TempDir(), "mirror")}
}

func twoRepos(t *testing.T) (*gittest.Remote, *gittest.Remote) {
	first := gittest.NewRemote(t, map[string]string{
		"jquery/jquery.d.ts":   "declare var $: any;\n",
		"angular/angular.d.ts": "declare module ng {}\n",
		"README.md":            "# types\n",
	})
	second := gittest.NewRemote(t, map[string]string{
		"node/node.d.ts":                   "declare var process: any;\n",
		"angular-mocks/angular-mocks.d.ts": "/// <reference path=\"../angular/angular.d.ts\" />\n",
	})
	return first, second
}

func paths(results []index.SearchResult) []string {
	var out []string
	for _, r := range results {
		out = append(out, r.Path)
	}
	return out
}

func TestSearchScanOrder(t *testing.T) {
	first, second := twoRepos(t)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first), spec(t, second)}})

	results, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"angular/angular.d.ts",
		"jquery/jquery.d.ts",
		"angular-mocks/angular-mocks.d.ts",
		"node/node.d.ts",
	}, paths(results))

	assert.Equal(t, first.URL, results[0].Repo.URL)
	assert.Equal(t, first.Head(), results[0].Ref)
	assert.Equal(t, second.URL, results[3].Repo.URL)
}

func TestSearchSubstring(t *testing.T) {
	first, second := twoRepos(t)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first), spec(t, second)}})
	ctx := context.Background()

	results, err := idx.Search(ctx, "angul")
	require.NoError(t, err)
	assert.Equal(t, []string{"angular/angular.d.ts", "angular-mocks/angular-mocks.d.ts"}, paths(results))

	results, err = idx.Search(ctx, "Angular")
	require.NoError(t, err)
	assert.Empty(t, results, "matching is case-sensitive")

	results, err = idx.Search(ctx, "README")
	require.NoError(t, err)
	assert.Empty(t, results, "non-declaration files are not catalogued")
}

func TestSearchCustomInclude(t *testing.T) {
	first, _ := twoRepos(t)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first)}, Include: "*.md"})

	results, err := idx.Search(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md"}, paths(results))
}

func TestFetchPartialFailure(t *testing.T) {
	first, _ := twoRepos(t)
	bad := repo.Spec{URL: filepath.Join(t.TempDir(), "missing.git"), LocalPath: filepath.Join(t.TempDir(), "m")}

	var mu sync.Mutex
	seen := map[string]error{}
	idx := index.New(index.Options{
		Repos: []repo.Spec{bad, spec(t, first)},
		OnSynced: func(url string, err error) {
			mu.Lock()
			defer mu.Unlock()
			seen[url] = err
		},
	})

	report, err := idx.Fetch(context.Background())
	require.Error(t, err)
	assert.True(t, dterrors.Is(err, dterrors.ErrCodeRemoteUnavailable))
	assert.Equal(t, []string{first.URL}, report.Synced)
	assert.Contains(t, report.Failed, bad.URL)

	require.Len(t, seen, 2)
	assert.NoError(t, seen[first.URL])
	assert.Error(t, seen[bad.URL])
}

func TestOfflineWithoutMirror(t *testing.T) {
	first, _ := twoRepos(t)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first)}, Offline: true})

	_, err := idx.Search(context.Background(), "")
	assert.True(t, dterrors.Is(err, dterrors.ErrCodeOffline), "got %v", err)
}

func TestReadFileUsesBlobCache(t *testing.T) {
	first, _ := twoRepos(t)
	c, err := cache.New(t.TempDir())
	require.NoError(t, err)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first)}, Cache: c})
	ctx := context.Background()
	require.NoError(t, idx.EnsureSynced(ctx))

	fi, err := idx.Locate(ctx, "jquery/jquery.d.ts", "HEAD")
	require.NoError(t, err)
	oid, err := idx.BlobID(ctx, fi)
	require.NoError(t, err)
	assert.False(t, c.Has(oid))

	data, err := idx.ReadFile(ctx, fi)
	require.NoError(t, err)
	assert.Equal(t, "declare var $: any;\n", string(data))
	assert.True(t, c.Has(oid), "content should be cached after the first read")

	again, err := idx.ReadFile(ctx, fi)
	require.NoError(t, err)
	assert.Equal(t, data, again)
}

func TestLocatePinnedRef(t *testing.T) {
	first, second := twoRepos(t)
	pinned := first.Head()
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, second), spec(t, first)}})
	ctx := context.Background()

	first.Commit("drop jquery", map[string]string{"jquery/jquery.d.ts": ""})
	require.NoError(t, idx.EnsureSynced(ctx))

	fi, err := idx.Locate(ctx, "jquery/jquery.d.ts", pinned)
	require.NoError(t, err)
	assert.Equal(t, first.URL, fi.Repo.URL)
	assert.Equal(t, pinned, fi.Ref)

	_, err = idx.Locate(ctx, "jquery/jquery.d.ts", first.Head())
	assert.True(t, dterrors.Is(err, dterrors.ErrCodeNotFound), "got %v", err)
}

func TestPathsStopsEarly(t *testing.T) {
	first, second := twoRepos(t)
	idx := index.New(index.Options{Repos: []repo.Spec{spec(t, first), spec(t, second)}})
	ctx := context.Background()
	require.NoError(t, idx.EnsureSynced(ctx))

	n := 0
	for _, err := range idx.Paths(ctx, "") {
		require.NoError(t, err)
		n++
		if n == 2 {
			break
		}
	}
	assert.Equal(t, 2, n)
}
