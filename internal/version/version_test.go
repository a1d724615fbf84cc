package version

import (
	"runtime/debug"
	"testing"
)

func TestFromBuildInfo(t *testing.T) {
	t.Parallel()

	bi := &debug.BuildInfo{
		Main: debug.Module{Version: "v1.2.3"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
		},
	}
	var info Info
	fromBuildInfo(&info, bi)
	if info.Version != "v1.2.3" || info.Commit != "0123456789abcdef0123" || info.BuildTime != "2026-01-02T03:04:05Z" || !info.Modified {
		t.Fatalf("unexpected info: %+v", info)
	}

	pinned := Info{Version: "v9", Commit: "abc"}
	fromBuildInfo(&pinned, bi)
	if pinned.Version != "v9" || pinned.Commit != "abc" {
		t.Fatalf("ldflags values overwritten: %+v", pinned)
	}
}

func TestFromBuildInfoDevel(t *testing.T) {
	t.Parallel()

	var info Info
	fromBuildInfo(&info, &debug.BuildInfo{Main: debug.Module{Version: "(devel)"}})
	if info.Version != "" {
		t.Fatalf("devel version should be ignored, got %q", info.Version)
	}
}

func TestShortCommit(t *testing.T) {
	t.Parallel()
	if got := shortCommit("0123456789abcdef"); got != "0123456789ab" {
		t.Fatalf("got %q", got)
	}
	if got := shortCommit("abc"); got != "abc" {
		t.Fatalf("got %q", got)
	}
}

func TestResolveNeverEmpty(t *testing.T) {
	t.Parallel()
	if info := Resolve(); info.Version == "" || info.GoVersion == "" {
		t.Fatalf("incomplete info: %+v", info)
	}
}
