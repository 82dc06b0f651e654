package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

type MiddlewareOptions struct {
	// Denied renders the rejection. Retry-After and Cache-Control are already set when it
	// runs; it must call WriteHeader(http.StatusTooManyRequests) itself.
	// nil writes a small JSON error.
	Denied func(w http.ResponseWriter, r *http.Request)
	// OnError is called when the limiter cannot decide (uninitialized), used for prometheus counters
	OnError func(err error)
}

// Middleware returns middleware that rejects requests over the shared window with 429
func (l *SlidingWindow) Middleware(next http.Handler) http.Handler {
	return l.MiddlewareWith(MiddlewareOptions{})(next)
}

// MiddlewareWith is Middleware with a custom denied page and error callback.
func (l *SlidingWindow) MiddlewareWith(opts MiddlewareOptions) func(http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(l.window.Seconds())))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			// resolved by httpmw.ClientIPWithOptions, empty if that middleware is not in the chain
			ip := httpmw.ClientIPFromContext(ctx)

			allowed, err := l.Allow(ctx, ip)
			if err != nil {
				log.FromContext(ctx).Error(ctx, err, "rate limiter failed", "client", ip)
				if opts.OnError != nil {
					opts.OnError(err)
				}
				w.Header().Set("Cache-Control", "no-store")
				writeJSONError(w, http.StatusInternalServerError, "rate limiter error: "+err.Error())
				return
			}

			if !allowed {
				w.Header().Set("Retry-After", retryAfter)
				w.Header().Set("Cache-Control", "no-store")
				if opts.Denied != nil {
					opts.Denied(w, r)
					return
				}
				// intentionally not including detail about limits or remaining budget
				writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(struct {
		Error string `json:"error"`
	}{msg})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
