package alert

import (
	"context"
	"fmt"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
)

// Stage wires a Dispatcher into the three broker.Handlers the alert engine
// consumes (sentiment, VoC, audited), classifying each event and
// dispatching one notification per resulting candidate.
type Stage struct {
	dispatcher *Dispatcher
	cfg        Config
	criticalTopics []string
}

func NewStage(dispatcher *Dispatcher, cfg Config, criticalTopics []string) *Stage {
	return &Stage{dispatcher: dispatcher, cfg: cfg, criticalTopics: criticalTopics}
}

func (s *Stage) SentimentHandler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.SentimentAnalyzedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}
		for _, c := range ClassifySentiment(s.cfg, p.CallID, p) {
			subject := fmt.Sprintf("Call %s: %s", c.CallID, c.NotificationType)
			body := fmt.Sprintf("%s\nsentiment score: %.2f\nescalation detected: %v\npredicted churn risk: %.2f",
				c.Reason, p.SentimentScore, p.EscalationDetected, p.PredictedChurnRisk)
			if err := s.dispatcher.Dispatch(ctx, c, subject, body); err != nil {
				return broker.Retry("dispatch: " + err.Error())
			}
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
		for _, c := range ClassifyVoc(p.CallID, p, s.criticalTopics) {
			subject := fmt.Sprintf("Call %s: %s", c.CallID, c.NotificationType)
			body := fmt.Sprintf("%s\nprimary intent: %s\ncustomer satisfaction: %s\nsummary: %s",
				c.Reason, p.PrimaryIntent, p.CustomerSatisfaction, p.Summary)
			if err := s.dispatcher.Dispatch(ctx, c, subject, body); err != nil {
				return broker.Retry("dispatch: " + err.Error())
			}
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
		for _, c := range ClassifyAudit(s.cfg, p.CallID, p) {
			subject := fmt.Sprintf("Call %s: %s", c.CallID, c.NotificationType)
			body := fmt.Sprintf("%s\noverall score: %d\ncompliance status: %s\nreview reason: %s",
				c.Reason, p.OverallScore, p.ComplianceStatus, p.ReviewReason)
			if err := s.dispatcher.Dispatch(ctx, c, subject, body); err != nil {
				return broker.Retry("dispatch: " + err.Error())
			}
		}
		return broker.Ack()
	})
}
