package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

const shutdownTimeout = 10 * time.Second

// drain keeps serving with readiness failed so the load balancer moves
// traffic away first. A second signal cuts it short.
func drain(L log.Logger, period time.Duration) {
	if period <= 0 {
		return
	}
	ctx := context.Background()
	L.Info(ctx, "draining before closing listeners", "drain_period", period.String())

	again := make(chan os.Signal, 1)
	signal.Notify(again, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(again)

	t := time.NewTimer(period)
	defer t.Stop()
	select {
	case <-t.C:
		L.Info(ctx, "drain period complete")
	case <-again:
		L.Warn(ctx, "second signal received, skipping drain")
	}
}

func shutdown(L log.Logger, stopSite, stopOps func(context.Context) error, stopTelemetry func(context.Context)) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := stopSite(ctx); err != nil {
		L.Error(ctx, err, "site http server shutdown")
	}
	if err := stopOps(ctx); err != nil {
		L.Error(ctx, err, "ops http server shutdown")
	}
	stopTelemetry(ctx)
	L.Info(context.Background(), "shutdown complete")
}

// notifySystemd sends READY=1 when running as a Type=notify unit.
func notifySystemd() error {
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return xerrors.New("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return xerrors.Wrap(err, "systemd notify dial")
	}
	defer conn.Close()
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		return xerrors.Wrap(err, "systemd notify write")
	}
	return nil
}
