package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-gate/internal/health"
)

type Options struct {
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe

	UseRecoverMW bool
	// OnPanic runs after a recovered panic, used for the panic counter
	OnPanic func()
}
