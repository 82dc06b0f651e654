// Command server runs linnemanlabs-gate: a single landing page behind a
// sliding window limit shared by every client, plus an ops listener for
// metrics, probes and pprof.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/keithlinneman/linnemanlabs-gate/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-gate/internal/health"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-gate/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-gate/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-gate/internal/sitehttp"
	v "github.com/keithlinneman/linnemanlabs-gate/internal/version"
	"github.com/keithlinneman/linnemanlabs-gate/internal/webassets"
	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

const (
	envPrefix = "GATE_"
	component = "server"
)

// errVersionPrinted ends run early without a failure exit code.
var errVersionPrinted = errors.New("version printed")

func main() {
	err := run()
	if err == nil || errors.Is(err, errVersionPrinted) {
		return
	}
	fmt.Fprintln(os.Stderr, v.AppName+":", err)
	os.Exit(1)
}

// loadConfig applies flags, then the dotenv file, then GATE_* variables.
func loadConfig(vi v.Info) (cfg.App, error) {
	var conf cfg.App
	cfg.Register(flag.CommandLine, &conf)
	showVersion := flag.Bool("V", false, "print version and build information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.AppName, vi.Version, vi.Commit, vi.CommitDate, vi.BuildId, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty)
		return conf, errVersionPrinted
	}
	if err := cfg.LoadDotEnv(conf.EnvFile); err != nil {
		return conf, xerrors.Wrap(err, "config")
	}
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})
	if err := cfg.Validate(conf); err != nil {
		return conf, xerrors.Wrap(err, "config")
	}
	return conf, nil
}

func newLogger(conf cfg.App) (log.Logger, error) {
	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		return nil, err
	}
	return log.New(log.Options{
		App:               v.AppName,
		Version:           v.Version,
		BuildId:           v.BuildId,
		Level:             lvl,
		StacktraceLevel:   conf.StacktraceLevel,
		JsonFormat:        conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
}

func run() error {
	vi := v.Get()
	conf, err := loadConfig(vi)
	if err != nil {
		return err
	}

	ctx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	lg, err := newLogger(conf)
	if err != nil {
		return xerrors.Wrap(err, "logger")
	}
	defer func() { _ = lg.Sync() }()
	L := lg.With("component", component)
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildId,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"rate_limit", conf.RateLimit,
		"rate_window", conf.RateWindow.String(),
		"trusted_hops", conf.TrustedHops,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
		"enable_pprof", conf.EnablePprof,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion(v.AppName, component, vi)
	m.SetRateLimitConfig(conf.RateLimit, conf.RateWindow)

	stopTelemetry := startTelemetry(ctx, L, conf, vi, m)

	limiter, err := newLimiter(conf, L, m)
	if err != nil {
		return err
	}

	site, err := sitehandler.New(sitehandler.Options{Logger: L, Pages: webassets.PagesFS()})
	if err != nil {
		return xerrors.Wrap(err, "site handler")
	}
	routes := sitehttp.New(site, gate(limiter, site, m))

	// ready once the limiter can decide, and until draining starts
	var draining health.ShutdownGate
	readiness := health.All(
		health.Named("shutdown", draining.Probe()),
		health.Named("ratelimit", limiter),
	)

	stopSite, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		Routes:       routes.RegisterRoutes,
	})
	if err != nil {
		stopTelemetry(context.Background())
		return xerrors.Wrap(err, "site listener")
	}

	stopOps, err := opshttp.Start(ctx, L, &opshttp.Options{
		Port:         conf.AdminPort,
		Metrics:      m.Handler(),
		EnablePprof:  conf.EnablePprof,
		Health:       health.Fixed(true, ""),
		Readiness:    readiness,
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
	})
	if err != nil {
		_ = stopSite(context.Background())
		stopTelemetry(context.Background())
		return xerrors.Wrap(err, "ops listener")
	}

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd readiness notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stopSignals()
	L.Info(context.Background(), "shutdown signal received")

	draining.Set("draining")
	drain(L, conf.DrainPeriod)
	shutdown(L, stopSite, stopOps, stopTelemetry)
	return nil
}
