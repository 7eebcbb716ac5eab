package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/metrics"
	"github.com/snarg/call-dossier/internal/store"
)

// Stage wires the correlator and scorer into three broker.Handlers, one
// per upstream topic, implementing the audit stage described in spec §4.4
// and §4.5.
type Stage struct {
	correlator correlate.Engine
	scorer     *Scorer
	store      *store.Store
	producer   *broker.Producer
	log        zerolog.Logger
}

func NewStage(correlator correlate.Engine, scorer *Scorer, st *store.Store, producer *broker.Producer, log zerolog.Logger) *Stage {
	return &Stage{correlator: correlator, scorer: scorer, store: st, producer: producer, log: log}
}

// TranscriptHandler handles CallTranscribed envelopes for correlation.
func (s *Stage) TranscriptHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.CallTranscribedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		fused, ready, err := s.correlator.ObserveTranscript(ctx, p.CallID, env.CorrelationID, env.Metadata["agentId"], p)
		if err != nil {
			return broker.Retry("correlate: " + err.Error())
		}
		return s.maybeScore(ctx, fused, ready)
	})
}

// SentimentHandler handles SentimentAnalyzed envelopes for correlation.
func (s *Stage) SentimentHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.SentimentAnalyzedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		fused, ready, err := s.correlator.ObserveSentiment(ctx, p.CallID, env.CorrelationID, env.Metadata["agentId"], p)
		if err != nil {
			return broker.Retry("correlate: " + err.Error())
		}
		return s.maybeScore(ctx, fused, ready)
	})
}

// VocHandler handles VocAnalyzed envelopes for correlation.
func (s *Stage) VocHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.VocAnalyzedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		fused, ready, err := s.correlator.ObserveVoc(ctx, p.CallID, env.CorrelationID, env.Metadata["agentId"], p)
		if err != nil {
			return broker.Retry("correlate: " + err.Error())
		}
		return s.maybeScore(ctx, fused, ready)
	})
}

func (s *Stage) maybeScore(ctx context.Context, fused correlate.Fused, ready bool) broker.Outcome {
	if !ready {
		return broker.Ack()
	}

	exists, err := s.store.ExistsAudit(ctx, fused.CallID)
	if err != nil {
		return broker.Retry("check existing audit: " + err.Error())
	}
	if exists {
		s.log.Debug().Str("call_id", fused.CallID).Msg("already processed")
		return broker.Ack()
	}

	result, err := s.scorer.Score(ctx, fused)
	if err != nil {
		return broker.Retry("score: " + err.Error())
	}

	agentID := fused.AgentID
	auditID := uuid.NewString()
	row := store.AuditResult{
		ID:                      auditID,
		CallID:                  fused.CallID,
		AgentID:                 agentID,
		OverallScore:            result.OverallScore,
		ComplianceStatus:        result.ComplianceStatus,
		ScriptAdherence:         result.ScriptAdherence,
		CustomerService:         result.CustomerService,
		ResolutionEffectiveness: result.ResolutionEffectiveness,
		FlagsForReview:          result.FlagsForReview,
		ReviewReason:            result.ReviewReason,
		ProcessingTimeMs:        result.ProcessingTimeMs,
	}

	insertedID, inserted, err := s.store.InsertAuditResult(ctx, row, result.Violations)
	if err != nil {
		return broker.Retry("persist audit result: " + err.Error())
	}
	if !inserted {
		s.log.Debug().Str("call_id", fused.CallID).Msg("already processed (race)")
		return broker.Ack()
	}
	metrics.AuditScoredTotal.WithLabelValues(result.ComplianceStatus).Inc()

	payload := event.CallAuditedPayload{
		CallID:                  fused.CallID,
		OverallScore:            result.OverallScore,
		ComplianceStatus:        result.ComplianceStatus,
		ScriptAdherence:         result.ScriptAdherence,
		CustomerService:         result.CustomerService,
		ResolutionEffectiveness: result.ResolutionEffectiveness,
		FlagsForReview:          result.FlagsForReview,
		ReviewReason:            result.ReviewReason,
		Violations:              result.Violations,
		ProcessingTimeMs:        result.ProcessingTimeMs,
	}

	raw, _ := json.Marshal(payload)
	out := event.Envelope{
		EventID:       uuid.NewString(),
		EventType:     event.TypeCallAudited,
		AggregateID:   fused.CallID,
		AggregateType: event.AggregateTypeCall,
		Version:       event.CurrentVersion,
		CorrelationID: fused.CorrelationID,
		Metadata:      map[string]string{"auditResultId": insertedID, "agentId": agentID},
		Timestamp:     time.Now().UTC(),
		Payload:       raw,
	}

	// The row is already committed (outbox-style): emission is retried
	// until acked, per spec's open-question resolution. If this handler
	// never returns Ack, the audit row remains authoritative and a later
	// operator action may republish from it.
	if err := s.producer.Produce(ctx, event.TopicCallsAudited, out); err != nil {
		return broker.Retry("produce CallAudited: " + err.Error())
	}

	return broker.Ack()
}
