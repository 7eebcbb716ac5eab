// Package transcriptproj projects CallTranscribed events into the
// transcription read model (C3): one conditional insert per call plus its
// ordered segments, idempotent under replay (I-once-per-call).
package transcriptproj

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/store"
)

type Projector struct {
	store *store.Store
	log   zerolog.Logger
}

func NewProjector(st *store.Store, log zerolog.Logger) *Projector {
	return &Projector{store: st, log: log}
}

func (p *Projector) Handler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var payload event.CallTranscribedPayload
		if err := env.Decode(&payload); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}

		exists, err := p.store.ExistsTranscription(ctx, payload.CallID)
		if err != nil {
			return broker.Retry("check existing: " + err.Error())
		}
		if exists {
			p.log.Debug().Str("callId", payload.CallID).Msg("transcription already processed")
			return broker.Ack()
		}

		if err := p.store.InsertTranscription(ctx, store.Transcription{
			CallID:     payload.CallID,
			FullText:   payload.FullText,
			Language:   payload.Language,
			Confidence: payload.Confidence,
			WordCount:  payload.WordCount,
		}, payload.Segments); err != nil {
			return broker.Retry("insert transcription: " + err.Error())
		}
		return broker.Ack()
	})
}
