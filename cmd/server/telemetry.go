package main

import (
	"context"

	"github.com/keithlinneman/linnemanlabs-gate/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-gate/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-gate/internal/prof"
	v "github.com/keithlinneman/linnemanlabs-gate/internal/version"
)

// startTelemetry starts profiling and tracing. Either failing is logged and
// the server runs without it; the returned stop flushes both.
func startTelemetry(ctx context.Context, L log.Logger, conf cfg.App, vi v.Info, m *metrics.ServerMetrics) func(context.Context) {
	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       v.AppName,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component": component,
			"version":   vi.Version,
			"commit":    vi.Commit,
			"build_id":  vi.BuildId,
		},
	})
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)

	// the collector runs on localhost, so plaintext grpc
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Compress:  true,
		Sample:    conf.TraceSample,
		Service:   v.AppName,
		Component: component,
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed, continuing without tracing")
		shutdownOTEL = func(context.Context) error { return nil }
	}

	return func(sctx context.Context) {
		if err := shutdownOTEL(sctx); err != nil {
			L.Error(sctx, err, "otel shutdown")
		}
		stopProf()
	}
}
