// Package httpserver provides the observability HTTP server for nox.
//
// It uses the Go standard library net/http and exposes the Prometheus
// metrics endpoint and a health check. It never serves key-value
// traffic; that stays on the wire protocol port.
package httpserver
