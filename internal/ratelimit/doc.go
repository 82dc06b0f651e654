// Package ratelimit provides a sliding window log rate limiter for admission control.
//
// # Simple in-memory implementation, not shared between instances or distributed
//
// One limiter holds the timestamps of every request it accepted inside the
// trailing window. Each decision prunes entries older than the window and
// admits the request only if fewer than limit entries remain.
//
// What this does protect against:
//   - the whole service being pushed past a fixed request budget
//   - gives observability insight into every decision (one event per call)
//
// What this does NOT protect against:
//   - a single client using the entire budget, the window is shared by every caller
//   - limits across multiple processes, each instance keeps its own window
//
// The client identifier passed to Allow is used to annotate events only.
package ratelimit
