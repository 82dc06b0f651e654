package cfg

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

type App struct {
	LogJSON           bool
	LogLevel          string
	HTTPPort          int
	AdminPort         int
	EnablePprof       bool
	EnablePyroscope   bool
	EnableTracing     bool
	PyroServer        string
	PyroTenantID      string
	OTLPEndpoint      string
	TraceSample       float64
	StacktraceLevel   string
	IncludeErrorLinks bool
	MaxErrorLinks     int
	EnvFile           string
	TrustedHops       int
	DrainPeriod       time.Duration

	// admission control, read once at startup
	RateLimit         int
	RateWindow        time.Duration
	LogAllowed        bool
	DeniedLogInterval time.Duration
}

// Register binds every field to fs. Defaults live here and nowhere else.
func Register(fs *flag.FlagSet, c *App) {
	fs.BoolVar(&c.LogJSON, "log-json", true, "JSON logs (true) or logfmt (false)")
	fs.StringVar(&c.LogLevel, "log-level", "info", "debug|info|warn|error")
	fs.IntVar(&c.HTTPPort, "http-port", 8080, "listen TCP port (1..65535)")
	fs.IntVar(&c.AdminPort, "admin-port", 9000, "admin listen TCP port (1..65535)")
	fs.BoolVar(&c.EnablePprof, "enable-pprof", true, "Enable pprof profiling (on admin port only)")
	fs.BoolVar(&c.EnableTracing, "enable-tracing", false, "Enable OTLP tracing and push to otlp-endpoint")
	fs.BoolVar(&c.EnablePyroscope, "enable-pyroscope", false, "Enable pushing Pyroscope data to server set in -pyro-server")
	fs.BoolVar(&c.IncludeErrorLinks, "include-error-links", true, "Include error links in log messages")
	fs.IntVar(&c.MaxErrorLinks, "max-error-links", 5, "max error chain depth (1..64)")
	fs.Float64Var(&c.TraceSample, "trace-sample", 0.0, "trace sampling ratio (0..1)")
	fs.StringVar(&c.StacktraceLevel, "stacktrace-level", "error", "debug|info|warn|error")
	fs.StringVar(&c.PyroServer, "pyro-server", "", "pyroscope server url to push to")
	fs.StringVar(&c.PyroTenantID, "pyro-tenant", "", "tenant (x-scope-orgid) to use for pyro-server")
	fs.StringVar(&c.OTLPEndpoint, "otlp-endpoint", "", "OTLP endpoint to push to (gRPC) (host:port)")
	fs.StringVar(&c.EnvFile, "env-file", ".env", "dotenv file loaded before env vars are applied (empty to skip)")
	fs.IntVar(&c.TrustedHops, "trusted-hops", 0, "number of trusted reverse proxies in front of the server (0..8)")
	fs.DurationVar(&c.DrainPeriod, "drain-period", 60*time.Second, "how long to fail readiness before shutting down listeners")
	fs.IntVar(&c.RateLimit, "rate-limit", 5, "max accepted requests per window, shared by all clients (>=1)")
	fs.DurationVar(&c.RateWindow, "rate-window", 60*time.Second, "sliding window length (>0)")
	fs.BoolVar(&c.LogAllowed, "log-allowed", true, "log allowed decisions at info (false logs them at debug)")
	fs.DurationVar(&c.DeniedLogInterval, "denied-log-interval", 0, "log at most one rate limit denial per interval (0 logs every denial)")
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment.
// Variables already set win over the file. A missing file is not an error.
func LoadDotEnv(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return xerrors.Wrapf(err, "load env file %s", path)
}

// FillFromEnv sets every flag not passed on the command line from
// PREFIX_FLAG_NAME ("rate-window" with prefix GATE_ is GATE_RATE_WINDOW).
// Precedence is cli flag, then env, then default. Invalid env values are
// reported through logf and leave the flag untouched.
func FillFromEnv(set *flag.FlagSet, prefix string, logf func(string, ...any)) {
	if logf == nil {
		logf = func(string, ...any) {}
	}
	explicit := map[string]bool{}
	set.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	set.VisitAll(func(f *flag.Flag) {
		key := EnvKey(prefix, f.Name)
		val, ok := os.LookupEnv(key)
		switch {
		case !ok:
		case explicit[f.Name]:
			logf("flag -%s: cli value %q overrides env %s=%q", f.Name, f.Value.String(), key, val)
		default:
			prev := f.Value.String()
			if err := set.Set(f.Name, val); err != nil {
				_ = set.Set(f.Name, prev)
				logf("flag -%s: ignoring invalid env %s=%q: %v", f.Name, key, val, err)
			}
		}
	})
}

// EnvKey maps a flag name to its environment variable.
func EnvKey(prefix, flagName string) string {
	return prefix + strings.ToUpper(strings.ReplaceAll(flagName, "-", "_"))
}

type problems []error

func (p *problems) add(bad bool, format string, args ...any) {
	if bad {
		*p = append(*p, fmt.Errorf(format, args...))
	}
}

func validPort(p int) bool { return p >= 1 && p <= 65535 }

// Validate reports every out of range or inconsistent field at once.
func Validate(c App) error {
	var p problems

	p.add(!validPort(c.HTTPPort), "invalid HTTP_PORT %d (must be 1..65535)", c.HTTPPort)
	p.add(!validPort(c.AdminPort), "invalid ADMIN_PORT %d (must be 1..65535)", c.AdminPort)
	p.add(c.AdminPort == c.HTTPPort, "ADMIN_PORT and HTTP_PORT must differ (both %d)", c.HTTPPort)

	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		p.add(true, "invalid LOG_LEVEL %q: %w", c.LogLevel, err)
	}
	if c.StacktraceLevel != "" {
		if _, err := log.ParseLevel(c.StacktraceLevel); err != nil {
			p.add(true, "invalid STACKTRACE_LEVEL %q: %w", c.StacktraceLevel, err)
		}
	}
	p.add(c.IncludeErrorLinks && (c.MaxErrorLinks < 1 || c.MaxErrorLinks > 64),
		"MAX_ERROR_LINKS must be 1..64 (got %d)", c.MaxErrorLinks)

	p.add(c.TraceSample < 0 || c.TraceSample > 1, "invalid TRACE_SAMPLE %.3f (must be 0..1)", c.TraceSample)
	if c.EnableTracing {
		// the grpc exporter wants host:port without a scheme
		_, _, err := net.SplitHostPort(c.OTLPEndpoint)
		p.add(c.OTLPEndpoint == "", "OTLP_ENDPOINT required when ENABLE_TRACING=true")
		p.add(c.OTLPEndpoint != "" && err != nil, "OTLP_ENDPOINT must be host:port (got %q)", c.OTLPEndpoint)
	}
	if c.EnablePyroscope {
		u, err := url.Parse(c.PyroServer)
		p.add(c.PyroServer == "", "PYRO_SERVER required when ENABLE_PYROSCOPE=true")
		p.add(c.PyroServer != "" && (err != nil || u.Scheme == "" || u.Host == ""),
			"PYRO_SERVER must be a URL (got %q)", c.PyroServer)
		p.add(c.PyroTenantID == "", "PYRO_TENANT required when ENABLE_PYROSCOPE=true")
	}

	p.add(c.TrustedHops < 0 || c.TrustedHops > 8, "invalid TRUSTED_HOPS %d (must be 0..8)", c.TrustedHops)
	p.add(c.DrainPeriod < 0, "invalid DRAIN_PERIOD %s (must be >= 0)", c.DrainPeriod)

	// the limiter rejects these too, but failing here names the env var
	p.add(c.RateLimit < 1, "invalid RATE_LIMIT %d (must be >= 1)", c.RateLimit)
	p.add(c.RateWindow <= 0, "invalid RATE_WINDOW %s (must be > 0)", c.RateWindow)
	p.add(c.DeniedLogInterval < 0, "invalid DENIED_LOG_INTERVAL %s (must be >= 0)", c.DeniedLogInterval)

	return errors.Join(p...)
}
