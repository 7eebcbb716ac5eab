package metrics

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/snarg/call-dossier/internal/store"
)

// HealthResponse reports liveness of the process and its database dependency.
type HealthResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptimeSeconds"`
	Database      string `json:"database"`
}

type HealthHandler struct {
	store     *store.Store
	startTime time.Time
}

func NewHealthHandler(st *store.Store) *HealthHandler {
	return &HealthHandler{store: st, startTime: time.Now()}
}

func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := "healthy"
	dbStatus := "ok"
	httpStatus := http.StatusOK

	if err := h.store.HealthCheck(r.Context()); err != nil {
		status = "unhealthy"
		dbStatus = "error"
		httpStatus = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(httpStatus)
	json.NewEncoder(w).Encode(HealthResponse{
		Status:        status,
		UptimeSeconds: int64(time.Since(h.startTime).Seconds()),
		Database:      dbStatus,
	})
}

// Mux builds the admin HTTP surface: /healthz and /metrics.
func Mux(st *store.Store) http.Handler {
	r := chi.NewRouter()
	r.Handle("/healthz", NewHealthHandler(st))
	r.Handle("/metrics", promhttp.Handler())
	return r
}
