package xerrors

import (
	"errors"
	"fmt"
	"io/fs"
	"runtime"
	"strings"
	"testing"
)

var errWindowFull = errors.New("window full")

type stacker interface{ StackPCs() []uintptr }

type pcer interface{ PC() uintptr }

func topFunc(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	fr, _ := runtime.CallersFrames(pcs).Next()
	return fr.Function
}

func pcFunc(pc uintptr) string {
	fr, _ := runtime.CallersFrames([]uintptr{pc}).Next()
	return fr.Function
}

func TestConstructors_StackStartsAtCaller(t *testing.T) {
	tests := []struct {
		name string
		err  error
		msg  string
	}{
		{"New", New("limiter not initialized"), "limiter not initialized"},
		{"Newf", Newf("invalid limit %d", 0), "invalid limit 0"},
		{"WithStack", WithStack(errWindowFull), "window full"},
		{"EnsureTrace", EnsureTrace(errWindowFull), "window full"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.Error() != tt.msg {
				t.Fatalf("Error() = %q, want %q", tt.err.Error(), tt.msg)
			}
			var s stacker
			if !errors.As(tt.err, &s) {
				t.Fatal("missing StackPCs")
			}
			if fn := topFunc(s.StackPCs()); !strings.HasSuffix(fn, "TestConstructors_StackStartsAtCaller") {
				t.Fatalf("top frame = %q, want the test function", fn)
			}
		})
	}
}

func TestWrap(t *testing.T) {
	err := Wrap(errWindowFull, "allow")
	if err.Error() != "allow: window full" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, errWindowFull) {
		t.Fatal("errors.Is should see the cause")
	}
	var p pcer
	if !errors.As(err, &p) {
		t.Fatal("missing PC")
	}
	if fn := pcFunc(p.PC()); !strings.HasSuffix(fn, "TestWrap") {
		t.Fatalf("PC func = %q", fn)
	}
}

func TestWrapf(t *testing.T) {
	err := Wrapf(fs.ErrNotExist, "open %s", ".env")
	if err.Error() != "open .env: file does not exist" {
		t.Fatalf("Error() = %q", err.Error())
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatal("errors.Is should see fs.ErrNotExist")
	}
}

func TestNilPassthrough(t *testing.T) {
	for name, err := range map[string]error{
		"Wrap":        Wrap(nil, "x"),
		"Wrapf":       Wrapf(nil, "x %d", 1),
		"WithStack":   WithStack(nil),
		"EnsureTrace": EnsureTrace(nil),
	} {
		if err != nil {
			t.Fatalf("%s(nil) = %v, want nil", name, err)
		}
	}
}

func TestEnsureTrace_KeepsExistingStack(t *testing.T) {
	orig := New("inner")
	wrapped := fmt.Errorf("outer: %w", orig)

	if got := EnsureTrace(wrapped); got != wrapped {
		t.Fatal("EnsureTrace should return err unchanged when a stack exists")
	}
	if got := EnsureTrace(orig); got != orig {
		t.Fatal("EnsureTrace should not double wrap")
	}
}

func TestEnsureTrace_WrapOnlyHasNoStack(t *testing.T) {
	// a PC from Wrap is not a stack
	err := EnsureTrace(Wrap(errWindowFull, "ctx"))
	var s stacker
	if !errors.As(err, &s) {
		t.Fatal("EnsureTrace should add a stack over Wrap")
	}
}

func TestChain_UnwrapsThroughEveryLayer(t *testing.T) {
	err := Wrap(WithStack(fmt.Errorf("decide: %w", errWindowFull)), "request")

	if !errors.Is(err, errWindowFull) {
		t.Fatal("errors.Is lost the sentinel")
	}
	depth := 0
	for e := err; e != nil; e = errors.Unwrap(e) {
		depth++
	}
	if depth != 4 {
		t.Fatalf("depth = %d, want 4", depth)
	}
}

func TestMarkers(t *testing.T) {
	type marker interface{ IsXerrorsWrapper() }
	for _, err := range []error{New("a"), Wrap(errWindowFull, "b")} {
		if _, ok := err.(marker); !ok {
			t.Fatalf("%T should be marked as an xerrors wrapper", err)
		}
	}
}

func TestStack_Bounded(t *testing.T) {
	var deep func(n int) error
	deep = func(n int) error {
		if n == 0 {
			return New("deep")
		}
		return deep(n - 1)
	}
	var s stacker
	errors.As(deep(200), &s)
	if got := len(s.StackPCs()); got != maxDepth {
		t.Fatalf("stack depth = %d, want %d", got, maxDepth)
	}
}
