package log

import (
	"context"
	"log/slog"
	"os"
	"runtime"
	"time"

	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

type slogLogger struct {
	h     slog.Handler
	attrs []slog.Attr

	errorLinks    bool
	maxErrorLinks int
}

func newSlog(opts Options) (Logger, error) {
	stackLvl := slog.LevelError
	if opts.StacktraceLevel != "" {
		lvl, err := ParseLevel(opts.StacktraceLevel)
		if err != nil {
			return nil, xerrors.Wrap(err, "stacktrace level")
		}
		stackLvl = lvl
	}
	w := opts.Writer
	if w == nil {
		w = os.Stdout
	}
	ho := &slog.HandlerOptions{Level: opts.Level, AddSource: true}

	var h slog.Handler
	if opts.JsonFormat {
		h = slog.NewJSONHandler(w, ho)
	} else {
		h = slog.NewTextHandler(w, ho)
	}
	// stack runs first so it sees the record before trace ids are added
	h = stackHandler{next: traceHandler{next: h}, level: stackLvl}

	base := []slog.Attr{slog.String("app", opts.App)}
	if opts.Version != "" {
		base = append(base, slog.String("version", opts.Version))
	}
	if opts.BuildId != "" {
		base = append(base, slog.String("build_id", opts.BuildId))
	}

	maxLinks := opts.MaxErrorLinks
	if maxLinks <= 0 {
		maxLinks = 8
	}
	return &slogLogger{
		h:             h,
		attrs:         base,
		errorLinks:    opts.IncludeErrorLinks,
		maxErrorLinks: maxLinks,
	}, nil
}

// kvAttrs converts alternating key/values, dropping non-string keys and a
// trailing key without a value.
func kvAttrs(kv []any) []slog.Attr {
	out := make([]slog.Attr, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		if k, ok := kv[i].(string); ok {
			out = append(out, slog.Any(k, kv[i+1]))
		}
	}
	return out
}

// With never mutates s, so loggers can be shared across goroutines.
func (s *slogLogger) With(kv ...any) Logger {
	add := kvAttrs(kv)
	attrs := make([]slog.Attr, 0, len(s.attrs)+len(add))
	attrs = append(append(attrs, s.attrs...), add...)
	next := *s
	next.attrs = attrs
	return &next
}

func (s *slogLogger) Debug(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelDebug, msg, kv)
}

func (s *slogLogger) Info(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelInfo, msg, kv)
}

func (s *slogLogger) Warn(ctx context.Context, msg string, kv ...any) {
	s.log(ctx, slog.LevelWarn, msg, kv)
}

func (s *slogLogger) Error(ctx context.Context, err error, msg string, kv ...any) {
	if err != nil {
		kv = append(kv, s.errorFields(err)...)
	}
	s.log(ctx, slog.LevelError, msg, kv)
}

func (s *slogLogger) Sync() error { return nil }

func (s *slogLogger) errorFields(err error) []any {
	surface, root := classifyTypes(err)
	kv := []any{"err", err, "error_type", surface, "cause_type", root}
	if chain := errorChain(err); len(chain) > 0 {
		kv = append(kv, "error_chain", chain)
	}
	if s.errorLinks {
		kv = append(kv, "error_links", chainLinks(err, s.maxErrorLinks))
	}
	return kv
}

// log is called from exactly one exported method, so the source PC is
// three frames up: runtime.Callers, log, Debug/Info/Warn/Error.
func (s *slogLogger) log(ctx context.Context, lvl slog.Level, msg string, kv []any) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !s.h.Enabled(ctx, lvl) {
		return
	}
	var pcs [1]uintptr
	runtime.Callers(3, pcs[:])

	r := slog.NewRecord(time.Now(), lvl, msg, pcs[0])
	r.AddAttrs(s.attrs...)
	r.AddAttrs(kvAttrs(kv)...)
	_ = s.h.Handle(ctx, r)
}
