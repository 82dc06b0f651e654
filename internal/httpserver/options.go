package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-gate/internal/health"
	"github.com/keithlinneman/linnemanlabs-gate/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-gate/internal/log"
)

type Options struct {
	Logger       log.Logger
	Port         int
	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler
	ClientIPOpts httpmw.ClientIPOptions
	Health       health.Probe
	Readiness    health.Probe

	// Routes registers application routes, including the rate limited page.
	// Admission control lives here rather than in the global chain so health
	// checks and assets never consume the window.
	Routes func(chi.Router)
	// SiteHandler handles unmatched routes and methods (chi default when nil).
	SiteHandler http.Handler
}
