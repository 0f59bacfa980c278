package version

import (
	"fmt"
	"runtime/debug"
	"time"
)

// Set at build time using -ldflags.
var (
	Version   = "dev"
	GitCommit = ""
	BuildTime = ""
)

// Info describes the running build.
type Info struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit,omitempty"`
	GoVersion string    `json:"go_version,omitempty"`
	BuildDate time.Time `json:"build_date,omitempty"`
	Dirty     bool      `json:"dirty,omitempty"`
}

// Get returns the build information.
func Get() Info {
	info := Info{Version: Version, GitCommit: shortCommit(GitCommit)}
	if t, err := time.Parse(time.RFC3339, BuildTime); err == nil {
		info.BuildDate = t
	}

	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return info
	}
	info.GoVersion = bi.GoVersion
	for _, s := range bi.Settings {
		switch s.Key {
		case "vcs.revision":
			if info.GitCommit == "" {
				info.GitCommit = shortCommit(s.Value)
			}
		case "vcs.modified":
			info.Dirty = s.Value == "true"
		case "vcs.time":
			if info.BuildDate.IsZero() {
				if t, err := time.Parse(time.RFC3339, s.Value); err == nil {
					info.BuildDate = t
				}
			}
		}
	}
	return info
}

func shortCommit(c string) string {
	if len(c) > 7 {
		return c[:7]
	}
	return c
}

// String renders the version as "v (commit[-dirty], built date)".
func (i Info) String() string {
	s := i.Version
	if i.GitCommit == "" && i.BuildDate.IsZero() {
		return s
	}
	s += " ("
	if i.GitCommit != "" {
		s += i.GitCommit
		if i.Dirty {
			s += "-dirty"
		}
	}
	if !i.BuildDate.IsZero() {
		if i.GitCommit != "" {
			s += ", "
		}
		s += "built " + i.BuildDate.UTC().Format("2006-01-02")
	}
	return s + ")"
}

// Fields returns the build as structured log fields.
func (i Info) Fields() map[string]interface{} {
	f := map[string]interface{}{"version": i.Version}
	if i.GitCommit != "" {
		f["commit"] = i.GitCommit
	}
	if i.GoVersion != "" {
		f["go_version"] = i.GoVersion
	}
	return f
}

// Banner is the one-line "name version" string printed by -version.
func Banner(name string) string {
	return fmt.Sprintf("%s %s", name, Get())
}
