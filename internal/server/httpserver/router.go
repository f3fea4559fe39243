// Package httpserver provides the observability HTTP server.
package httpserver

import (
	"encoding/json"
	"net/http"

	"github.com/noxkv/nox-go/internal/infra/buildinfo"
	"github.com/noxkv/nox-go/internal/telemetry/metric"
)

// NewRouter builds the observability handler: Prometheus metrics on
// /metrics and a health probe on /healthz.
func NewRouter(metrics *metric.Registry) http.Handler {
	mux := http.NewServeMux()

	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/healthz", handleHealthz)

	return mux
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":  "ok",
		"version": buildinfo.Get().Version,
	})
}
