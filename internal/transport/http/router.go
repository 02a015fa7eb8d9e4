package httptransport

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"campusid/internal/transport/http/shared"
)

// Registrar is implemented by feature handlers that mount their own routes.
type Registrar interface {
	Register(r chi.Router)
}

// HealthChecker reports liveness of one dependency.
type HealthChecker func(ctx context.Context) error

// NewRouter assembles the public router: health, metrics, and every feature
// handler. Feature handlers carry their own middleware chains.
func NewRouter(health map[string]HealthChecker, features ...Registrar) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		statuses := make(map[string]string, len(health))
		healthy := true
		for name, check := range health {
			if err := check(req.Context()); err != nil {
				statuses[name] = err.Error()
				healthy = false
				continue
			}
			statuses[name] = "ok"
		}
		status := http.StatusOK
		message := "ok"
		if !healthy {
			status = http.StatusServiceUnavailable
			message = "degraded"
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(shared.Envelope{Success: healthy, Message: message, Data: statuses})
	})

	r.Handle("/metrics", promhttp.Handler())

	for _, feature := range features {
		feature.Register(r)
	}
	return r
}
