// Package xerrors records where errors are created and wrapped so the
// logger can point at the call site instead of the log line.
package xerrors

import (
	"errors"
	"fmt"
	"runtime"
)

const maxDepth = 64

// stackErr carries the stack captured where the error entered our code.
type stackErr struct {
	cause error
	pcs   []uintptr
}

func (e *stackErr) Error() string       { return e.cause.Error() }
func (e *stackErr) Unwrap() error       { return e.cause }
func (e *stackErr) StackPCs() []uintptr { return e.pcs }
func (e *stackErr) IsXerrorsWrapper()   {}

// wrapErr adds context and the single frame that added it.
type wrapErr struct {
	cause error
	msg   string
	pc    uintptr
}

func (e *wrapErr) Error() string     { return e.msg + ": " + e.cause.Error() }
func (e *wrapErr) Unwrap() error     { return e.cause }
func (e *wrapErr) PC() uintptr       { return e.pc }
func (e *wrapErr) IsXerrorsWrapper() {}

// stack returns the callers of the exported function that called it.
func stack() []uintptr {
	pcs := make([]uintptr, maxDepth)
	// runtime.Callers, stack, exported constructor
	n := runtime.Callers(3, pcs)
	return pcs[:n]
}

func caller() uintptr {
	var pc [1]uintptr
	if runtime.Callers(3, pc[:]) == 0 {
		return 0
	}
	return pc[0]
}

// New returns an error with msg and the current stack.
func New(msg string) error {
	return &stackErr{cause: errors.New(msg), pcs: stack()}
}

func Newf(format string, args ...any) error {
	return &stackErr{cause: fmt.Errorf(format, args...), pcs: stack()}
}

// WithStack attaches the current stack to err. nil stays nil.
func WithStack(err error) error {
	if err == nil {
		return nil
	}
	return &stackErr{cause: err, pcs: stack()}
}

// EnsureTrace is WithStack unless something in err's chain already has a stack.
func EnsureTrace(err error) error {
	if err == nil {
		return nil
	}
	var se interface{ StackPCs() []uintptr }
	if errors.As(err, &se) && len(se.StackPCs()) > 0 {
		return err
	}
	return &stackErr{cause: err, pcs: stack()}
}

// Wrap prefixes err with msg and records the caller. nil stays nil.
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &wrapErr{cause: err, msg: msg, pc: caller()}
}

func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &wrapErr{cause: err, msg: fmt.Sprintf(format, args...), pc: caller()}
}
