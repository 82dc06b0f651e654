package main

import (
	"context"
	"net/http"

	"github.com/keithlinneman/linnemanlabs-gate/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
	"github.com/keithlinneman/linnemanlabs-gate/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-gate/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-gate/internal/sitehandler"
	"github.com/keithlinneman/linnemanlabs-gate/internal/xerrors"
)

// newLimiter builds the one window shared by every client and initializes it.
func newLimiter(conf cfg.App, L log.Logger, m *metrics.ServerMetrics) (*ratelimit.SlidingWindow, error) {
	observe := func(ev ratelimit.Event) { m.ObserveRateLimitDecision(string(ev.Outcome)) }

	limiter, err := ratelimit.NewSlidingWindow(conf.RateLimit, conf.RateWindow,
		ratelimit.WithSink(ratelimit.LogSink(L.With("subsystem", "ratelimit"), ratelimit.LogSinkOptions{
			DeniedLogInterval: conf.DeniedLogInterval,
			LogAllowed:        conf.LogAllowed,
		})),
		ratelimit.WithOnAllowed(observe),
		ratelimit.WithOnDenied(func(ev ratelimit.Event) {
			observe(ev)
			m.IncRateLimitDenied()
		}),
	)
	if err != nil {
		return nil, xerrors.Wrap(err, "rate limiter")
	}
	limiter.Initialize()
	m.SetRateLimitEntries(limiter.Len)
	L.Info(context.Background(), "rate limiter initialized",
		"limit", limiter.Limit(), "window", limiter.Window().String())
	return limiter, nil
}

// gate is the middleware in front of the landing page: budget headers, then
// the admission decision with the HTML denied page.
func gate(limiter *ratelimit.SlidingWindow, site *sitehandler.Handler, m *metrics.ServerMetrics) func(http.Handler) http.Handler {
	admit := limiter.MiddlewareWith(ratelimit.MiddlewareOptions{
		Denied:  site.ServeDenied,
		OnError: func(error) { m.IncRateLimitUninitialized() },
	})
	return func(next http.Handler) http.Handler {
		return httpmw.Chain(next, httpmw.LimitHeaders(limiter), admit)
	}
}
