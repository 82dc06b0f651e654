package ratelimit

import (
	"context"
	"sync"
	"time"
)

// SlidingWindow admits at most limit requests inside any trailing window.
// Construct once at startup, call Initialize, then share it with every request path.
type SlidingWindow struct {
	mu sync.Mutex
	// timestamps of accepted requests, oldest first
	timestamps  []time.Time
	initialized bool

	limit  int
	window time.Duration

	now func() time.Time

	sink Sink

	// OnAllowed is called after every allowed decision, used for prometheus counters
	OnAllowed func(ev Event)

	// OnDenied is called after every denied decision, used for prometheus counters
	OnDenied func(ev Event)
}

type Option func(*SlidingWindow)

// WithClock replaces time.Now, tests use it to land exactly on window edges.
func WithClock(now func() time.Time) Option {
	return func(l *SlidingWindow) {
		if now != nil {
			l.now = now
		}
	}
}

// WithSink sets where decision events are sent. Without one events are dropped.
func WithSink(s Sink) Option {
	return func(l *SlidingWindow) {
		l.sink = s
	}
}

// WithOnAllowed sets a callback for every allowed request
func WithOnAllowed(fn func(ev Event)) Option {
	return func(l *SlidingWindow) {
		l.OnAllowed = fn
	}
}

// WithOnDenied sets a callback for every denied request
func WithOnDenied(fn func(ev Event)) Option {
	return func(l *SlidingWindow) {
		l.OnDenied = fn
	}
}

// NewSlidingWindow returns an uninitialized limiter. Allow fails with
// ErrUninitialized until Initialize is called.
func NewSlidingWindow(limit int, window time.Duration, opts ...Option) (*SlidingWindow, error) {
	if limit <= 0 {
		return nil, &ConfigError{Field: "limit", Value: limit}
	}
	if window <= 0 {
		return nil, &ConfigError{Field: "window", Value: window}
	}
	l := &SlidingWindow{
		limit:      limit,
		window:     window,
		now:        time.Now,
		timestamps: make([]time.Time, 0, limit),
	}
	for _, o := range opts {
		o(l)
	}
	return l, nil
}

// Initialize clears all recorded requests and marks the limiter ready.
// Safe to call again at any time, each call starts a fresh window.
func (l *SlidingWindow) Initialize() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timestamps = l.timestamps[:0]
	l.initialized = true
}

// Allow decides whether one request may proceed. client is only attached to the
// emitted event, every caller shares the same window.
//
// Returns ErrUninitialized (and records nothing) if Initialize was never called.
func (l *SlidingWindow) Allow(ctx context.Context, client string) (bool, error) {
	ev, err := l.decide(client)
	if err != nil {
		return false, err
	}
	// hooks run outside the lock so a slow sink cannot hold up other requests
	l.emit(ctx, ev)
	return ev.Outcome == OutcomeAllowed, nil
}

func (l *SlidingWindow) decide(client string) (Event, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.initialized {
		return Event{}, ErrUninitialized
	}

	now := l.now()
	l.prune(now)

	ev := Event{
		Time:   now,
		Client: client,
		Limit:  l.limit,
		Window: l.window,
	}
	if len(l.timestamps) < l.limit {
		l.timestamps = append(l.timestamps, now)
		ev.Outcome = OutcomeAllowed
	} else {
		ev.Outcome = OutcomeDenied
	}
	ev.InWindow = len(l.timestamps)
	return ev, nil
}

// prune drops entries older than the window. An entry exactly window old is kept.
// Caller must hold l.mu.
func (l *SlidingWindow) prune(now time.Time) {
	kept := l.timestamps[:0]
	for _, t := range l.timestamps {
		if now.Sub(t) <= l.window {
			kept = append(kept, t)
		}
	}
	// zero the tail so the backing array does not pin stale values
	for i := len(kept); i < len(l.timestamps); i++ {
		l.timestamps[i] = time.Time{}
	}
	l.timestamps = kept
}

func (l *SlidingWindow) emit(ctx context.Context, ev Event) {
	if l.sink != nil {
		safeCall(func() { l.sink.Emit(ctx, ev) })
	}
	switch ev.Outcome {
	case OutcomeAllowed:
		if l.OnAllowed != nil {
			safeCall(func() { l.OnAllowed(ev) })
		}
	case OutcomeDenied:
		if l.OnDenied != nil {
			safeCall(func() { l.OnDenied(ev) })
		}
	}
}

// safeCall runs an observability hook, a panicking hook must never turn a decision into a crash
func safeCall(fn func()) {
	defer func() { _ = recover() }()
	fn()
}

// Initialized reports whether Initialize has been called.
func (l *SlidingWindow) Initialized() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.initialized
}

// Len returns the number of recorded requests as of the last decision.
// Entries are only pruned by Allow, so this may include requests that have since aged out.
func (l *SlidingWindow) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timestamps)
}

func (l *SlidingWindow) Limit() int { return l.limit }

func (l *SlidingWindow) Window() time.Duration { return l.window }

// Check reports readiness so the limiter can be composed with health probes.
// It fails until Initialize has run.
func (l *SlidingWindow) Check(context.Context) error {
	if !l.Initialized() {
		return ErrUninitialized
	}
	return nil
}
