package version

import (
	"runtime/debug"
	"testing"
)

func TestFillVCS(t *testing.T) {
	settings := []debug.BuildSetting{
		{Key: "vcs.revision", Value: "0123abcd"},
		{Key: "vcs.time", Value: "2026-10-01T12:00:00Z"},
		{Key: "vcs.modified", Value: "true"},
		{Key: "GOARCH", Value: "amd64"},
	}

	var local Info
	local.Commit = "none"
	local.fillVCS(settings)
	if local.Commit != "0123abcd" || local.CommitDate != "2026-10-01T12:00:00Z" || local.BuildDate != local.CommitDate {
		t.Fatalf("local build = %+v", local)
	}
	if local.VCSDirty == nil || !*local.VCSDirty {
		t.Fatal("vcs.modified=true should mark dirty")
	}

	clean := false
	stamped := Info{Commit: "release1", CommitDate: "2026-09-30", BuildDate: "2026-10-02", VCSDirty: &clean}
	stamped.fillVCS(settings)
	if stamped.Commit != "release1" || stamped.CommitDate != "2026-09-30" || stamped.BuildDate != "2026-10-02" {
		t.Fatalf("ldflags values were overwritten: %+v", stamped)
	}
	if *stamped.VCSDirty {
		t.Fatal("stamped dirty flag was overwritten")
	}
}

func TestFillVCS_EmptyValues(t *testing.T) {
	var i Info
	i.fillVCS([]debug.BuildSetting{{Key: "vcs.revision"}, {Key: "vcs.modified"}})
	if i.Commit != "" || i.VCSDirty != nil {
		t.Fatalf("empty settings should be ignored: %+v", i)
	}
}
