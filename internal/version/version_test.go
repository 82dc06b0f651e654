package version_test

import (
	"testing"

	v "github.com/keithlinneman/linnemanlabs-gate/internal/version"
)

func TestGet_AppName(t *testing.T) {
	if got := v.Get().AppName; got != v.AppName {
		t.Fatalf("AppName = %q, want %q", got, v.AppName)
	}
}

func TestGet_GoVersionPopulated(t *testing.T) {
	if v.Get().GoVersion == "" {
		t.Fatal("GoVersion should be filled from build info")
	}
}

func TestIsRelease(t *testing.T) {
	if (v.Info{Version: "dev", BuildId: "abc"}).IsRelease() {
		t.Fatal("dev build should not be a release")
	}
	if (v.Info{Version: "1.2.3"}).IsRelease() {
		t.Fatal("missing build id should not be a release")
	}
	if !(v.Info{Version: "1.2.3", BuildId: "b-42"}).IsRelease() {
		t.Fatal("stamped build should be a release")
	}
}
