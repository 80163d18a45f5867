// Package monitoring provides Prometheus metrics for the capture
// pipeline and the HTTP API.
package monitoring
