// Package httpmw holds the HTTP middleware shared by the public and ops
// listeners.
//
// httpserver.NewHandler composes them outermost first: SecurityHeaders,
// Recover, RequestID, ClientIPWithOptions, otelhttp,
// TraceResponseHeaders, metrics, WithLogger, then the chi router with
// AnnotateHTTPRoute, AccessLog and MaxBody. The sliding window limiter and
// [LimitHeaders] wrap only the gated page route, so probes and assets never
// touch the window.
package httpmw
