package httpapi

import (
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/ingestion"
)

// UploadHandler accepts a new call recording over HTTP and hands it to
// the ingestion stage.
type UploadHandler struct {
	ingestor *ingestion.Ingestor
	log      zerolog.Logger
}

func NewUploadHandler(ingestor *ingestion.Ingestor, log zerolog.Logger) *UploadHandler {
	return &UploadHandler{ingestor: ingestor, log: log.With().Str("handler", "upload").Logger()}
}

// Routes registers the call-upload endpoint.
func (h *UploadHandler) Routes(r chi.Router) {
	r.Post("/calls", h.Upload)
}

// Upload handles POST /calls, a multipart form carrying the recording and
// its call metadata (callerId, agentId, channel, duration, startTime).
func (h *UploadHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("audio")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing audio file field")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		WriteError(w, http.StatusBadRequest, "failed to read audio file")
		return
	}

	duration, _ := strconv.ParseFloat(r.FormValue("duration"), 64)
	startTime := time.Now().UTC()
	if raw := r.FormValue("startTime"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			startTime = parsed
		}
	}

	format := strings.TrimPrefix(filepath.Ext(header.Filename), ".")
	if format == "" {
		format = "wav"
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	callID, err := h.ingestor.Ingest(r.Context(), ingestion.NewCallRequest{
		CallerID:    r.FormValue("callerId"),
		AgentID:     r.FormValue("agentId"),
		Channel:     r.FormValue("channel"),
		AudioData:   data,
		FileFormat:  format,
		ContentType: contentType,
		Duration:    duration,
		StartTime:   startTime,
	})
	if err != nil {
		h.log.Error().Err(err).Msg("ingestion failed")
		WriteError(w, http.StatusInternalServerError, "ingestion failed")
		return
	}

	WriteJSON(w, http.StatusCreated, map[string]string{"callId": callID})
}
