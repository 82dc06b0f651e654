package prof

import (
	"context"
	"strings"
	"testing"

	"github.com/grafana/pyroscope-go"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

func TestStart_Disabled(t *testing.T) {
	stop, err := Start(context.Background(), Options{
		ServerAddress:        "",
		AuthToken:            "secret",
		ProfileMutexFraction: 999,
	})
	if err != nil {
		t.Fatalf("disabled must never fail: %v", err)
	}
	stop()
	stop()
}

func TestStart_EmptyServerAddress(t *testing.T) {
	rec := &recordingLogger{Logger: log.Nop()}
	ctx := log.WithContext(context.Background(), rec)

	stop, err := Start(ctx, Options{Enabled: true, AppName: "linnemanlabs-gate"})
	if err == nil || !strings.Contains(err.Error(), "invalid server address") {
		t.Fatalf("err = %v", err)
	}
	if stop == nil {
		t.Fatal("stop must be usable on error")
	}
	stop()
	if len(rec.errs) != 1 {
		t.Fatalf("error logs = %v", rec.errs)
	}
}

func TestStart_UnreachableServer(t *testing.T) {
	// pyroscope connects lazily in some versions, so only the stop contract is checked
	stop, _ := Start(context.Background(), Options{
		Enabled:       true,
		AppName:       "linnemanlabs-gate",
		ServerAddress: "http://127.0.0.1:1",
	})
	if stop == nil {
		t.Fatal("stop must never be nil")
	}
	stop()
	stop()
}

func TestProfileTypes_IncludeContention(t *testing.T) {
	want := map[string]bool{
		string(pyroscope.ProfileMutexDuration): false,
		string(pyroscope.ProfileBlockDuration): false,
		string(pyroscope.ProfileCPU):           false,
	}
	for _, p := range profileTypes {
		if _, ok := want[string(p)]; ok {
			want[string(p)] = true
		}
	}
	for p, seen := range want {
		if !seen {
			t.Errorf("missing profile type %s", p)
		}
	}
}

// Tags and logger adapter

func TestTags_MergesAndDropsEmpty(t *testing.T) {
	base := map[string]string{"go_version": "go1.24", "region": ""}
	extra := map[string]string{"component": "server", "go_version": "override", "empty": ""}

	got := tags(base, extra)

	if got["go_version"] != "override" {
		t.Fatalf("go_version = %q, want override", got["go_version"])
	}
	if got["component"] != "server" {
		t.Fatalf("component = %q", got["component"])
	}
	if _, ok := got["region"]; ok {
		t.Fatal("empty base value should be dropped")
	}
	if _, ok := got["empty"]; ok {
		t.Fatal("empty extra value should be dropped")
	}

	// result is a copy
	got["component"] = "mutated"
	if extra["component"] != "server" {
		t.Fatal("tags must not alias the input map")
	}
}

func TestTags_NilInputs(t *testing.T) {
	got := tags(nil, nil)
	if got == nil || len(got) != 0 {
		t.Fatalf("tags(nil, nil) = %v, want empty map", got)
	}
}

type recordingLogger struct {
	log.Logger
	debug []string
	errs  []string
}

func (r *recordingLogger) With(...any) log.Logger { return r }

func (r *recordingLogger) Debug(_ context.Context, msg string, _ ...any) {
	r.debug = append(r.debug, msg)
}

func (r *recordingLogger) Error(_ context.Context, err error, msg string, _ ...any) {
	r.errs = append(r.errs, msg+": "+err.Error())
}

func TestPyroLogger_Levels(t *testing.T) {
	rec := &recordingLogger{Logger: log.Nop()}
	pl := pyroLogger{L: rec}

	pl.Infof("uploading %d profiles", 3)
	pl.Debugf("tick")
	pl.Errorf("upload failed: %s", "timeout")

	if len(rec.debug) != 2 || rec.debug[0] != "uploading 3 profiles" {
		t.Fatalf("debug = %v", rec.debug)
	}
	if len(rec.errs) != 1 || !strings.Contains(rec.errs[0], "upload failed: timeout") {
		t.Fatalf("errs = %v", rec.errs)
	}
}
