package aggregate

import (
	"context"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
)

// Observer is the common shape BufferedAggregator and DirectAggregator
// both satisfy, letting Stage wire the same handlers to either mode.
type Observer interface {
	recordSentiment(ctx context.Context, env event.Envelope, p event.SentimentAnalyzedPayload) error
	recordVoc(ctx context.Context, env event.Envelope, p event.VocAnalyzedPayload) error
	recordAudit(ctx context.Context, env event.Envelope, p event.CallAuditedPayload) error
}

func satisfactionScore(level string) *float64 {
	var v float64
	switch level {
	case "high":
		v = 1.0
	case "medium":
		v = 0.5
	case "low":
		v = 0.0
	default:
		return nil
	}
	return &v
}

func complianceScore(status string) *float64 {
	var v float64
	switch status {
	case "passed":
		v = 1.0
	case "review_required":
		v = 0.5
	case "failed":
		v = 0.0
	default:
		return nil
	}
	return &v
}

func (a *BufferedAggregator) recordSentiment(ctx context.Context, env event.Envelope, p event.SentimentAnalyzedPayload) error {
	score := p.SentimentScore
	return a.Buffer(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{Sentiment: &score})
}

func (a *BufferedAggregator) recordVoc(ctx context.Context, env event.Envelope, p event.VocAnalyzedPayload) error {
	churn := p.PredictedChurnRisk
	return a.Buffer(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{
		Satisfaction: satisfactionScore(p.CustomerSatisfaction),
		ChurnRisk:    &churn,
	})
}

func (a *BufferedAggregator) recordAudit(ctx context.Context, env event.Envelope, p event.CallAuditedPayload) error {
	quality := float64(p.OverallScore) / 100.0
	return a.Buffer(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{
		Quality:            &quality,
		CompliancePassRate: complianceScore(p.ComplianceStatus),
	})
}

func (a *DirectAggregator) recordSentiment(ctx context.Context, env event.Envelope, p event.SentimentAnalyzedPayload) error {
	score := p.SentimentScore
	return a.Observe(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{Sentiment: &score})
}

func (a *DirectAggregator) recordVoc(ctx context.Context, env event.Envelope, p event.VocAnalyzedPayload) error {
	churn := p.PredictedChurnRisk
	return a.Observe(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{
		Satisfaction: satisfactionScore(p.CustomerSatisfaction),
		ChurnRisk:    &churn,
	})
}

func (a *DirectAggregator) recordAudit(ctx context.Context, env event.Envelope, p event.CallAuditedPayload) error {
	quality := float64(p.OverallScore) / 100.0
	return a.Observe(ctx, env.EventID, env.Metadata["agentId"], env.Timestamp, Observation{
		Quality:            &quality,
		CompliancePassRate: complianceScore(p.ComplianceStatus),
	})
}

// Stage wires an Observer into the three broker.Handlers the aggregator
// consumes (sentiment, VoC, audited).
type Stage struct {
	obs Observer
}

func NewStage(obs Observer) *Stage {
	return &Stage{obs: obs}
}

func (s *Stage) SentimentHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.SentimentAnalyzedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		if err := s.obs.recordSentiment(ctx, env, p); err != nil {
			return broker.Retry("record sentiment: " + err.Error())
		}
		return broker.Ack()
	})
}

func (s *Stage) VocHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.VocAnalyzedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		if err := s.obs.recordVoc(ctx, env, p); err != nil {
			return broker.Retry("record voc: " + err.Error())
		}
		return broker.Ack()
	})
}

func (s *Stage) AuditHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.CallAuditedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		if err := s.obs.recordAudit(ctx, env, p); err != nil {
			return broker.Retry("record audit: " + err.Error())
		}
		return broker.Ack()
	})
}
