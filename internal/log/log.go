package log

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

// Logger is the structured logger passed through the app and stored in
// request contexts. kv is alternating string keys and values.
type Logger interface {
	With(kv ...any) Logger

	Debug(ctx context.Context, msg string, kv ...any)
	Info(ctx context.Context, msg string, kv ...any)
	Warn(ctx context.Context, msg string, kv ...any)
	Error(ctx context.Context, err error, msg string, kv ...any)

	Sync() error
}

type Options struct {
	App     string
	Version string
	BuildId string

	Level slog.Level
	// StacktraceLevel is the lowest level that gets a "stack" attribute,
	// as accepted by ParseLevel. Empty means error.
	StacktraceLevel string
	JsonFormat      bool

	IncludeErrorLinks bool
	// MaxErrorLinks bounds error_links depth, defaults to 8
	MaxErrorLinks int

	// Writer defaults to stdout
	Writer io.Writer
}

// New builds the slog backed Logger.
func New(opts Options) (Logger, error) { return newSlog(opts) }

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func ParseLevel(s string) (slog.Level, error) {
	if lvl, ok := levels[strings.ToLower(strings.TrimSpace(s))]; ok {
		return lvl, nil
	}
	return 0, xerrors.Newf("unknown log level %q (valid levels are debug|info|warn|error)", s)
}
