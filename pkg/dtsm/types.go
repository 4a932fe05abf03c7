package dtsm

import (
	"github.com/bianoble/dtsm/internal/fetcher"
	"github.com/bianoble/dtsm/internal/index"
	"github.com/bianoble/dtsm/internal/lock"
	"github.com/bianoble/dtsm/internal/repo"
)

// Type aliases re-export internal types as the public API.

type RepositorySpec = repo.Spec
type FileInfo = index.FileInfo
type SearchResult = index.SearchResult
type FetchReport = index.FetchReport
type DependencyResult = fetcher.DependencyResult
type InstallResult = fetcher.InstallResult
type Lockfile = lock.Lockfile
type LockedDependency = lock.Dependency

// InitOptions configures Init.
type InitOptions struct {
	Path  string // default: the Manager's lock path
	Force bool   // replace an existing file
}

// InstallOptions configures Install.
type InstallOptions struct {
	Save   bool
	DryRun bool
}

// InstallFromFileOptions configures InstallFromFile.
type InstallFromFileOptions struct {
	Path   string // default: the Manager's lock path
	DryRun bool
}

// UpdateOptions configures Update.
type UpdateOptions struct {
	Targets []string // empty = every entry; same matching as Uninstall
	DryRun  bool
}

// UninstallOptions configures Uninstall.
type UninstallOptions struct{}

// UninstallResult records one removed lock entry.
type UninstallResult struct {
	Path    string
	Ref     string
	Removed bool  // false when the file was already gone from disk
	Err     error // set when the entry was dropped but the file could not be deleted
}
