// Package ingestion implements the ingestion stage (C8): accepts a new
// call recording, stores the audio, and emits CallReceived — the only
// place a fresh correlationId is minted for the whole pipeline.
package ingestion

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/storage"
	"github.com/snarg/call-dossier/internal/store"
)

// NewCallRequest is the caller-supplied description of a freshly recorded call.
type NewCallRequest struct {
	CallerID      string
	AgentID       string
	Channel       string
	AudioData     []byte
	FileFormat    string
	ContentType   string
	Duration      float64
	StartTime     time.Time
}

type Ingestor struct {
	audio    storage.AudioStore
	store    *store.Store
	producer *broker.Producer
	log      zerolog.Logger
}

func NewIngestor(audio storage.AudioStore, st *store.Store, producer *broker.Producer, log zerolog.Logger) *Ingestor {
	return &Ingestor{audio: audio, store: st, producer: producer, log: log}
}

// Ingest stores req's audio, inserts the calls row, and produces
// CallReceived with RequiredAcks=RequireAll before returning, so the
// caller is not acknowledged until the event is durably accepted (spec
// §4.8).
func (ig *Ingestor) Ingest(ctx context.Context, req NewCallRequest) (string, error) {
	callID := uuid.NewString()
	fileHandle := fmt.Sprintf("%s/%s.%s", callID, callID, req.FileFormat)

	if err := ig.audio.Save(ctx, fileHandle, req.AudioData, req.ContentType); err != nil {
		return "", fmt.Errorf("store audio: %w", err)
	}

	if err := ig.store.InsertCall(ctx, callID, req.CallerID, req.AgentID, req.Channel); err != nil {
		return "", fmt.Errorf("insert call: %w", err)
	}

	payload := event.CallReceivedPayload{
		CallID:        callID,
		CallerID:      req.CallerID,
		AgentID:       req.AgentID,
		Channel:       req.Channel,
		FileHandle:    fileHandle,
		FileFormat:    req.FileFormat,
		FileSizeBytes: int64(len(req.AudioData)),
		Duration:      req.Duration,
		StartTime:     req.StartTime.UTC().Format(time.RFC3339),
	}

	env, err := event.New(event.TypeCallReceived, callID, payload, map[string]string{"agentId": req.AgentID})
	if err != nil {
		return "", fmt.Errorf("build envelope: %w", err)
	}

	if err := ig.producer.Produce(ctx, event.TopicCallsReceived, env); err != nil {
		return "", fmt.Errorf("produce CallReceived: %w", err)
	}

	ig.log.Info().Str("callId", callID).Str("agentId", req.AgentID).Msg("call ingested")
	return callID, nil
}
