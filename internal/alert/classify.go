// Package alert implements the alert rule engine and dispatcher (C7):
// classification of post-analysis events into notification candidates,
// priority/recipient/channel resolution, and delivery with a per-channel
// Dispatcher.
package alert

import "github.com/snarg/call-dossier/internal/event"

// Priority levels, highest first.
const (
	PriorityUrgent = "urgent"
	PriorityHigh   = "high"
	PriorityNormal = "normal"
)

// Candidate is one notification the classifier decided should fire for an
// event. Prioritize/Recipients/Channel turn it into concrete delivery
// parameters.
type Candidate struct {
	CallID           string
	NotificationType string
	Priority         string
	Reason           string
}

// Config holds the configured thresholds the classifier applies.
type Config struct {
	ChurnThreshold     float64
	ChurnHighThreshold float64
	ComplianceFloor    float64
	EscalationAlerts   bool
}

// ClassifySentiment answers "should we alert" for a SentimentAnalyzed
// event per spec §4.7: escalation (if enabled) or churn risk at/above the
// configured threshold. A single event may produce more than one
// candidate (escalation AND high churn both fire).
func ClassifySentiment(cfg Config, callID string, p event.SentimentAnalyzedPayload) []Candidate {
	var out []Candidate
	if p.EscalationDetected && cfg.EscalationAlerts {
		out = append(out, Candidate{
			CallID:           callID,
			NotificationType: "escalation",
			Priority:         PriorityUrgent,
			Reason:           "escalation detected",
		})
	}
	if p.PredictedChurnRisk >= cfg.ChurnThreshold {
		priority := PriorityNormal
		if p.PredictedChurnRisk >= cfg.ChurnHighThreshold {
			priority = PriorityHigh
		}
		out = append(out, Candidate{
			CallID:           callID,
			NotificationType: "high_churn",
			Priority:         priority,
			Reason:           "predicted churn risk at or above threshold",
		})
	}
	return out
}

// ClassifyVoc answers "should we alert" for a VocAnalyzed event: flagged
// for review, or a non-empty critical-themes set. The spec names
// "flagsForReview" on VoC analysis generically; this implementation
// treats a non-empty set of critical topics as that flag.
func ClassifyVoc(callID string, p event.VocAnalyzedPayload, criticalTopics []string) []Candidate {
	flagged, count := vocFlagged(p, criticalTopics)
	if !flagged {
		return nil
	}
	priority := PriorityNormal
	if count >= 3 {
		priority = PriorityHigh
	}
	return []Candidate{{
		CallID:           callID,
		NotificationType: "voc_review",
		Priority:         priority,
		Reason:           "voice-of-customer review flagged",
	}}
}

func vocFlagged(p event.VocAnalyzedPayload, criticalTopics []string) (bool, int) {
	count := 0
	critical := make(map[string]bool, len(criticalTopics))
	for _, t := range criticalTopics {
		critical[t] = true
	}
	for _, t := range p.Topics {
		if critical[t] {
			count++
		}
	}
	return count > 0, count
}

// ClassifyAudit answers "should we alert" for a CallAudited event per
// spec §4.7: score below the configured floor, any high/critical
// violation, or flagsForReview.
func ClassifyAudit(cfg Config, callID string, p event.CallAuditedPayload) []Candidate {
	scoreFraction := float64(p.OverallScore) / 100.0
	hasCriticalViolation := false
	hasHighOrCritical := false
	for _, v := range p.Violations {
		if v.Severity == "critical" {
			hasCriticalViolation = true
		}
		if v.Severity == "high" || v.Severity == "critical" {
			hasHighOrCritical = true
		}
	}

	if scoreFraction >= cfg.ComplianceFloor && !hasHighOrCritical && !p.FlagsForReview {
		return nil
	}

	priority := PriorityNormal
	switch {
	case scoreFraction < 0.5 || hasCriticalViolation:
		priority = PriorityUrgent
	case scoreFraction < cfg.ComplianceFloor:
		priority = PriorityHigh
	}

	return []Candidate{{
		CallID:           callID,
		NotificationType: "compliance_violation",
		Priority:         priority,
		Reason:           "compliance score or violation severity requires review",
	}}
}
