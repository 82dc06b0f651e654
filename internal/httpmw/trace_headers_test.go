package httpmw

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTraceResponseHeaders_ValidSpan(t *testing.T) {
	ctx, span, _ := tracedContext(t)
	defer span.End()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(ctx)
	TraceResponseHeaders("", "")(noContent).ServeHTTP(rec, req)

	sc := span.SpanContext()
	if got := rec.Header().Get(DefaultTraceHeader); got != sc.TraceID().String() {
		t.Fatalf("%s = %q, want %q", DefaultTraceHeader, got, sc.TraceID())
	}
	if got := rec.Header().Get(DefaultSpanHeader); got != sc.SpanID().String() {
		t.Fatalf("%s = %q, want %q", DefaultSpanHeader, got, sc.SpanID())
	}
}

func TestTraceResponseHeaders_CustomNames(t *testing.T) {
	ctx, span, _ := tracedContext(t)
	defer span.End()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody).WithContext(ctx)
	TraceResponseHeaders("Trace", "Span")(noContent).ServeHTTP(rec, req)

	if rec.Header().Get("Trace") == "" || rec.Header().Get("Span") == "" {
		t.Fatalf("custom headers missing: %v", rec.Header())
	}
}

func TestTraceResponseHeaders_NoSpan(t *testing.T) {
	rec := httptest.NewRecorder()
	TraceResponseHeaders("", "")(noContent).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", http.NoBody))

	if rec.Header().Get(DefaultTraceHeader) != "" || rec.Header().Get(DefaultSpanHeader) != "" {
		t.Fatalf("trace headers set without a span: %v", rec.Header())
	}
}
