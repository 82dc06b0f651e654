// Package health serves liveness and readiness.
//
// A [Probe] is checked on every request to /-/healthy or /-/ready. Probes
// compose with [All] and are labelled with [Named] so a 503 body says which
// dependency failed. [ShutdownGate] fails readiness while the server drains.
package health
