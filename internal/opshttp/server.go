// Package opshttp serves the admin listener: metrics, probes and pprof,
// only to peers on loopback or private networks.
package opshttp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/keithlinneman/linnemanlabs-gate/internal/health"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

const (
	defaultPort = 9000
	// pprof profile and trace capture for 30s by default
	writeTimeout    = 45 * time.Second
	shutdownTimeout = 5 * time.Second
)

// NewHandler builds the ops mux behind the network guard.
func NewHandler(L log.Logger, opts Options) http.Handler {
	if L == nil {
		L = log.Nop()
	}
	mux := http.NewServeMux()
	mux.Handle("GET /-/healthy", health.HealthzHandler(opts.Health))
	mux.Handle("GET /-/ready", health.ReadyzHandler(opts.Readiness))
	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}
	if opts.EnablePprof {
		RegisterPprof(mux)
	} else {
		// shadow the prefix so a disabled profiler is a plain 404
		mux.Handle("/debug/pprof/", http.NotFoundHandler())
	}

	var recoverMW func(http.Handler) http.Handler
	if opts.UseRecoverMW {
		recoverMW = httpmw.Recover(L, opts.OnPanic)
	}
	return httpmw.Chain(mux, recoverMW, func(next http.Handler) http.Handler {
		return requireNonPublicNetwork(L, next)
	})
}

// Start serves NewHandler on opts.Port and returns an idempotent stop.
func Start(ctx context.Context, L log.Logger, opts *Options) (func(context.Context) error, error) {
	if L == nil {
		L = log.Nop()
	}
	o := *opts
	if o.Port == 0 {
		o.Port = defaultPort
	}
	addr := fmt.Sprintf(":%d", o.Port)

	ln, err := (&net.ListenConfig{}).Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, xerrors.Wrapf(err, "listen ops %s", addr)
	}
	srv := httpserver.NewServer(addr, NewHandler(L, o))
	srv.WriteTimeout = writeTimeout
	L = L.With("listener", "ops", "addr", addr)

	go func() {
		L.Info(ctx, "ops http server listening", "pprof", o.EnablePprof)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			L.Error(ctx, err, "ops http server error")
		}
	}()

	var (
		once    sync.Once
		stopErr error
	)
	return func(sctx context.Context) error {
		once.Do(func() {
			L.Info(sctx, "ops http server shutting down")
			c, cancel := context.WithTimeout(sctx, shutdownTimeout)
			defer cancel()
			stopErr = srv.Shutdown(c)
		})
		return stopErr
	}, nil
}
