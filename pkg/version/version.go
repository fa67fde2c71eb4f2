// Package version carries build metadata injected with -ldflags.
package version

// Set at build time, e.g.
//
//	-ldflags "-X frameworks/pkg/version.Version=v1.2.3 -X frameworks/pkg/version.GitCommit=$(git rev-parse HEAD)"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info is the build metadata reported by health endpoints and the CLI.
type Info struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
}

func GetInfo() Info {
	return Info{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// GetShortCommit returns the first 7 characters of the commit hash.
func GetShortCommit() string {
	if len(GitCommit) >= 7 {
		return GitCommit[:7]
	}
	return GitCommit
}
