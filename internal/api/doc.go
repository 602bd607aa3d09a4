// Package api serves the optional status endpoints of a pipeline run:
// liveness, a JSON snapshot of the supervisor and Prometheus metrics.
// Everything it exposes is read-only except the stop endpoint, which ends
// the run window early.
package api
