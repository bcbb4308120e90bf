package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"

	toml "github.com/pelletier/go-toml/v2"
)

// Build metadata, set with -ldflags "-X github.com/bobmcallan/stacker/internal/common.Version=..."
var (
	Version   = "dev"
	Build     = "unknown"
	GitCommit = "unknown"
)

// BuildInfo describes the running binary.
type BuildInfo struct {
	Version string `json:"version" toml:"version"`
	Build   string `json:"build" toml:"build"`
	Commit  string `json:"commit" toml:"commit"`
}

// CurrentBuild returns the build metadata of the running binary.
func CurrentBuild() BuildInfo {
	return BuildInfo{Version: Version, Build: Build, Commit: GitCommit}
}

func (b BuildInfo) String() string {
	return fmt.Sprintf("%s (build: %s, commit: %s)", b.Version, b.Build, b.Commit)
}

// GetVersion returns the semantic version string
func GetVersion() string {
	return Version
}

// GetFullVersion returns the version with build and commit.
func GetFullVersion() string {
	return CurrentBuild().String()
}

// LoadVersionFromFile fills build metadata left at its defaults, first from a
// stacker.version TOML file next to the binary, then from the VCS stamp the
// Go toolchain embeds.
func LoadVersionFromFile() {
	exe, err := os.Executable()
	if err == nil {
		applyVersionFile(filepath.Join(filepath.Dir(exe), "stacker.version"))
	}
	applyVCSInfo()
}

func applyVersionFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	var info BuildInfo
	if err := toml.Unmarshal(data, &info); err != nil {
		return
	}
	mergeBuild(info)
}

func applyVCSInfo() {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	var info BuildInfo
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			info.Commit = s.Value
			if len(info.Commit) > 8 {
				info.Commit = info.Commit[:8]
			}
		case "vcs.time":
			info.Build = s.Value
		}
	}
	mergeBuild(info)
}

// mergeBuild copies non-empty fields of info over values still at defaults.
func mergeBuild(info BuildInfo) {
	if Version == "dev" && info.Version != "" {
		Version = info.Version
	}
	if Build == "unknown" && info.Build != "" {
		Build = info.Build
	}
	if GitCommit == "unknown" && info.Commit != "" {
		GitCommit = info.Commit
	}
}
