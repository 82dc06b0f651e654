package httpmw

import (
	"context"
	"net/http"
	"sync"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

var noContent = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
})

type logLine struct {
	level string
	msg   string
	err   error
	kv    []any
}

// memLogger records every call. With returns a child that shares the
// backing store and prepends its fields.
type memLogger struct {
	mu     *sync.Mutex
	lines  *[]logLine
	fields []any
}

func newMemLogger() *memLogger {
	return &memLogger{mu: &sync.Mutex{}, lines: &[]logLine{}}
}

func (m *memLogger) add(level string, err error, msg string, kv []any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	all := append(append([]any{}, m.fields...), kv...)
	*m.lines = append(*m.lines, logLine{level: level, msg: msg, err: err, kv: all})
}

func (m *memLogger) With(kv ...any) log.Logger {
	return &memLogger{mu: m.mu, lines: m.lines, fields: append(append([]any{}, m.fields...), kv...)}
}

func (m *memLogger) Debug(_ context.Context, msg string, kv ...any) { m.add("debug", nil, msg, kv) }
func (m *memLogger) Info(_ context.Context, msg string, kv ...any)  { m.add("info", nil, msg, kv) }
func (m *memLogger) Warn(_ context.Context, msg string, kv ...any)  { m.add("warn", nil, msg, kv) }
func (m *memLogger) Error(_ context.Context, err error, msg string, kv ...any) {
	m.add("error", err, msg, kv)
}
func (m *memLogger) Sync() error { return nil }

func (m *memLogger) all() []logLine {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]logLine(nil), *m.lines...)
}

func field(kv []any, key string) (any, bool) {
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok && k == key {
			return kv[i+1], true
		}
	}
	return nil, false
}

// tracedContext starts a recording span; end it and read rec.Ended() to
// inspect what middleware did to it.
func tracedContext(t *testing.T) (context.Context, trace.Span, *tracetest.SpanRecorder) {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	ctx, span := tp.Tracer("test").Start(context.Background(), "initial")
	return ctx, span, rec
}

func spanAttr(s sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range s.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}
