// Package vocproj projects VocAnalyzed events into the VoC insight read
// model (C3), idempotent under replay (I-once-per-call).
package vocproj

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
		var payload event.VocAnalyzedPayload
		if err := env.Decode(&payload); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}

		exists, err := p.store.ExistsVoc(ctx, payload.CallID)
		if err != nil {
			return broker.Retry("check existing: " + err.Error())
		}
		if exists {
			p.log.Debug().Str("callId", payload.CallID).Msg("voc insight already processed")
			return broker.Ack()
		}

		if err := p.store.InsertVoc(ctx, store.VocInsight{
			CallID:               payload.CallID,
			PrimaryIntent:        payload.PrimaryIntent,
			Topics:               payload.Topics,
			Keywords:             payload.Keywords,
			CustomerSatisfaction: payload.CustomerSatisfaction,
			PredictedChurnRisk:   payload.PredictedChurnRisk,
			ActionableItems:      payload.ActionableItems,
			Summary:              payload.Summary,
		}); err != nil {
			return broker.Retry("insert voc: " + err.Error())
		}
		return broker.Ack()
	})
}
