package version

import "runtime/debug"

// AppName is the service name used in logs, metrics, traces and profiles
const AppName = "linnemanlabs-gate"

// set via -ldflags -X at release build time
var (
	Version    = "dev"
	Commit     = "none"
	CommitDate string
	BuildDate  string
	BuildId    string
	GoVersion  string
	VCSDirty   *bool
)

type Info struct {
	AppName    string `json:"app_name"`
	Version    string `json:"version"`
	Commit     string `json:"commit"`
	CommitDate string `json:"commit_date"`
	BuildDate  string `json:"build_date"`
	BuildId    string `json:"build_id"`
	GoVersion  string `json:"go_version"`
	VCSDirty   *bool  `json:"vcs_dirty,omitempty"`
}

// IsRelease reports whether ldflags stamped a real version into the binary
func (i Info) IsRelease() bool {
	return i.Version != "" && i.Version != "dev" && i.BuildId != ""
}

// Get returns the ldflags values, filling gaps from the Go toolchain's
// embedded VCS stamp for local builds.
func Get() Info {
	out := Info{
		AppName:    AppName,
		Version:    Version,
		Commit:     Commit,
		CommitDate: CommitDate,
		BuildDate:  BuildDate,
		BuildId:    BuildId,
		GoVersion:  GoVersion,
		VCSDirty:   VCSDirty,
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		out.GoVersion = bi.GoVersion
		out.fillVCS(bi.Settings)
	}
	return out
}

// fillVCS only sets fields ldflags left at their defaults.
func (i *Info) fillVCS(settings []debug.BuildSetting) {
	for _, s := range settings {
		if s.Value == "" {
			continue
		}
		switch s.Key {
		case "vcs.revision":
			if i.Commit == "" || i.Commit == "none" {
				i.Commit = s.Value
			}
		case "vcs.time":
			if i.CommitDate == "" {
				i.CommitDate = s.Value
			}
			if i.BuildDate == "" {
				i.BuildDate = s.Value
			}
		case "vcs.modified":
			if i.VCSDirty == nil {
				dirty := s.Value == "true"
				i.VCSDirty = &dirty
			}
		}
	}
}
