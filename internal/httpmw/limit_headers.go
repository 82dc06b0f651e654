package httpmw

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// LimitInfo describes the admission policy in front of a route.
type LimitInfo interface {
	Limit() int
	Window() time.Duration
}

// LimitHeaders advertises the configured policy as X-RateLimit-Limit and
// X-RateLimit-Window (seconds), and tags the current span with it.
// Remaining budget is deliberately not exposed.
func LimitHeaders(info LimitInfo) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if info == nil {
			return next
		}
		limit := info.Limit()
		window := info.Window()
		limitHdr := strconv.Itoa(limit)
		windowHdr := strconv.FormatInt(int64(window/time.Second), 10)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", limitHdr)
			w.Header().Set("X-RateLimit-Window", windowHdr)
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.Int("ratelimit.limit", limit),
					attribute.String("ratelimit.window", window.String()),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
