package lock

import "github.com/bianoble/dtsm/internal/repo"

// FileName is the conventional lock file name.
const FileName = "dtsm.json"

// DefaultInstallPath is the install directory recorded by a new lock file.
const DefaultInstallPath = "typings"

// Lockfile represents dtsm.json: where files are installed, which
// repositories they came from, and the commit each file is pinned to.
type Lockfile struct {
	Path         string                `json:"path"`
	Repos        []repo.Spec           `json:"repos"`
	Dependencies map[string]Dependency `json:"dependencies"`
}

// Dependency is one installed file. Dependencies lists the paths it
// references, each of which has its own entry.
type Dependency struct {
	Ref          string   `json:"ref"`
	Dependencies []string `json:"dependencies"`
}

// New returns an empty Lockfile installing into DefaultInstallPath.
func New(repos []repo.Spec) *Lockfile {
	lf := &Lockfile{
		Path:         DefaultInstallPath,
		Dependencies: make(map[string]Dependency),
	}
	for _, r := range repos {
		lf.Repos = append(lf.Repos, repo.Spec{URL: r.URL})
	}
	return lf
}
