// Package sentimentproj projects SentimentAnalyzed events into the
// sentiment read model (C3), idempotent under replay (I-once-per-call).
package sentimentproj

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
		var payload event.SentimentAnalyzedPayload
		if err := env.Decode(&payload); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}

		exists, err := p.store.ExistsSentiment(ctx, payload.CallID)
		if err != nil {
			return broker.Retry("check existing: " + err.Error())
		}
		if exists {
			p.log.Debug().Str("callId", payload.CallID).Msg("sentiment already processed")
			return broker.Ack()
		}

		if err := p.store.InsertSentiment(ctx, store.Sentiment{
			CallID:             payload.CallID,
			OverallSentiment:   payload.OverallSentiment,
			SentimentScore:     payload.SentimentScore,
			EscalationDetected: payload.EscalationDetected,
			EscalationDetails:  payload.EscalationDetails,
			ProcessingTimeMs:   payload.ProcessingTimeMs,
		}, payload.SegmentSentiments); err != nil {
			return broker.Retry("insert sentiment: " + err.Error())
		}
		return broker.Ack()
	})
}
