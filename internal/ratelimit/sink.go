package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

type Outcome string

const (
	OutcomeAllowed Outcome = "allowed"
	OutcomeDenied  Outcome = "denied"
)

// Event describes a single admission decision.
type Event struct {
	Time    time.Time
	Outcome Outcome
	// Client is the caller-supplied identifier (usually the client ip), annotation only
	Client string
	// InWindow is the number of accepted requests in the window after this decision
	InWindow int
	Limit    int
	Window   time.Duration
}

// Sink receives one Event per decision. Emit is called outside the limiter lock
// and must not block for long.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

// SinkFunc adapts a function into a Sink.
type SinkFunc func(ctx context.Context, ev Event)

func (f SinkFunc) Emit(ctx context.Context, ev Event) { f(ctx, ev) }

// MultiSink fans each event out to every non-nil sink in order.
func MultiSink(sinks ...Sink) Sink {
	return SinkFunc(func(ctx context.Context, ev Event) {
		for _, s := range sinks {
			if s == nil {
				continue
			}
			safeCall(func() { s.Emit(ctx, ev) })
		}
	})
}

type LogSinkOptions struct {
	// DeniedLogInterval limits "rate limit exceeded" lines to one per interval.
	// 0 logs every denial.
	DeniedLogInterval time.Duration
	// LogAllowed emits "request allowed" at info, otherwise at debug
	LogAllowed bool
}

type logSink struct {
	L          log.Logger
	logAllowed bool
	denied     *rate.Sometimes
}

// LogSink writes decision events through the app logger.
// Allowed requests log at info (or debug), denials at warn.
func LogSink(L log.Logger, opts LogSinkOptions) Sink {
	if L == nil {
		L = log.Nop()
	}
	s := &logSink{L: L, logAllowed: opts.LogAllowed}
	if opts.DeniedLogInterval > 0 {
		// First: 1 so the first denial of a burst is always visible
		s.denied = &rate.Sometimes{First: 1, Interval: opts.DeniedLogInterval}
	}
	return s
}

func (s *logSink) Emit(ctx context.Context, ev Event) {
	kv := []any{
		"client", ev.Client,
		"outcome", string(ev.Outcome),
		"in_window", ev.InWindow,
		"limit", ev.Limit,
		"window", ev.Window.String(),
		"decided_at", ev.Time,
	}
	switch ev.Outcome {
	case OutcomeAllowed:
		if s.logAllowed {
			s.L.Info(ctx, "request allowed", kv...)
		} else {
			s.L.Debug(ctx, "request allowed", kv...)
		}
	case OutcomeDenied:
		if s.denied == nil {
			s.L.Warn(ctx, "rate limit exceeded", kv...)
			return
		}
		s.denied.Do(func() {
			s.L.Warn(ctx, "rate limit exceeded", kv...)
		})
	}
}
