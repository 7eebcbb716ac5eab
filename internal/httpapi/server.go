package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/ingestion"
	"github.com/snarg/call-dossier/internal/metrics"
	"github.com/snarg/call-dossier/internal/store"
)

// NewServer builds the ingestion stage's HTTP server: the call-upload
// endpoint plus the shared /healthz and /metrics admin surface.
func NewServer(addr string, ingestor *ingestion.Ingestor, st *store.Store, log zerolog.Logger) *http.Server {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)

	NewUploadHandler(ingestor, log).Routes(r)
	r.Mount("/", metrics.Mux(st))

	return &http.Server{Addr: addr, Handler: r}
}
