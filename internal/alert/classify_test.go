package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/event"
)

func TestClassifySentiment_EscalationAndChurnBothFire(t *testing.T) {
	cfg := Config{ChurnThreshold: 0.7, ChurnHighThreshold: 0.8, EscalationAlerts: true}
	p := event.SentimentAnalyzedPayload{EscalationDetected: true, PredictedChurnRisk: 0.9}

	out := ClassifySentiment(cfg, "call-1", p)

	require.Len(t, out, 2)
	assert.Equal(t, "escalation", out[0].NotificationType)
	assert.Equal(t, PriorityUrgent, out[0].Priority)
	assert.Equal(t, "high_churn", out[1].NotificationType)
	assert.Equal(t, PriorityHigh, out[1].Priority)
}

func TestClassifySentiment_EscalationDisabledByConfig(t *testing.T) {
	cfg := Config{ChurnThreshold: 0.7, ChurnHighThreshold: 0.8, EscalationAlerts: false}
	p := event.SentimentAnalyzedPayload{EscalationDetected: true, PredictedChurnRisk: 0.1}

	out := ClassifySentiment(cfg, "call-1", p)

	assert.Empty(t, out)
}

func TestClassifySentiment_ChurnBelowThresholdNoAlert(t *testing.T) {
	cfg := Config{ChurnThreshold: 0.7, ChurnHighThreshold: 0.8, EscalationAlerts: true}
	p := event.SentimentAnalyzedPayload{PredictedChurnRisk: 0.5}

	out := ClassifySentiment(cfg, "call-1", p)

	assert.Empty(t, out)
}

func TestClassifySentiment_ChurnBetweenThresholdsIsNormalPriority(t *testing.T) {
	cfg := Config{ChurnThreshold: 0.7, ChurnHighThreshold: 0.8, EscalationAlerts: true}
	p := event.SentimentAnalyzedPayload{PredictedChurnRisk: 0.72}

	out := ClassifySentiment(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, "high_churn", out[0].NotificationType)
	assert.Equal(t, PriorityNormal, out[0].Priority)
}

func TestClassifySentiment_ChurnAtHighThresholdIsHighPriority(t *testing.T) {
	cfg := Config{ChurnThreshold: 0.7, ChurnHighThreshold: 0.8, EscalationAlerts: true}
	p := event.SentimentAnalyzedPayload{PredictedChurnRisk: 0.8}

	out := ClassifySentiment(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityHigh, out[0].Priority)
}

func TestClassifyVoc_NoCriticalTopicsNoAlert(t *testing.T) {
	out := ClassifyVoc("call-1", event.VocAnalyzedPayload{Topics: []string{"billing"}}, []string{"cancel", "lawyer"})
	assert.Nil(t, out)
}

func TestClassifyVoc_OneCriticalTopicIsNormalPriority(t *testing.T) {
	out := ClassifyVoc("call-1", event.VocAnalyzedPayload{Topics: []string{"cancel"}}, []string{"cancel", "lawyer", "sue"})

	require.Len(t, out, 1)
	assert.Equal(t, PriorityNormal, out[0].Priority)
}

func TestClassifyVoc_ThreeCriticalTopicsIsHighPriority(t *testing.T) {
	out := ClassifyVoc("call-1", event.VocAnalyzedPayload{Topics: []string{"cancel", "lawyer", "sue"}}, []string{"cancel", "lawyer", "sue"})

	require.Len(t, out, 1)
	assert.Equal(t, PriorityHigh, out[0].Priority)
}

func TestClassifyAudit_PassingScoreNoViolationsNoAlert(t *testing.T) {
	cfg := Config{ComplianceFloor: 0.8}
	p := event.CallAuditedPayload{OverallScore: 90}

	out := ClassifyAudit(cfg, "call-1", p)

	assert.Nil(t, out)
}

func TestClassifyAudit_CriticalViolationIsUrgentRegardlessOfScore(t *testing.T) {
	cfg := Config{ComplianceFloor: 0.8}
	p := event.CallAuditedPayload{
		OverallScore: 95,
		Violations:   []event.ComplianceViolation{{Severity: "critical"}},
	}

	out := ClassifyAudit(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityUrgent, out[0].Priority)
}

func TestClassifyAudit_LowScoreIsUrgent(t *testing.T) {
	cfg := Config{ComplianceFloor: 0.8}
	p := event.CallAuditedPayload{OverallScore: 40}

	out := ClassifyAudit(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityUrgent, out[0].Priority)
}

func TestClassifyAudit_BelowFloorAboveHalfIsHigh(t *testing.T) {
	cfg := Config{ComplianceFloor: 0.8}
	p := event.CallAuditedPayload{OverallScore: 65}

	out := ClassifyAudit(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityHigh, out[0].Priority)
}

func TestClassifyAudit_FlagsForReviewAlonePassesThreshold(t *testing.T) {
	cfg := Config{ComplianceFloor: 0.8}
	p := event.CallAuditedPayload{OverallScore: 90, FlagsForReview: true}

	out := ClassifyAudit(cfg, "call-1", p)

	require.Len(t, out, 1)
	assert.Equal(t, PriorityNormal, out[0].Priority)
}

func TestRecipients_AlwaysIncludesSupervisor(t *testing.T) {
	cfg := RecipientsConfig{Supervisor: "sup@example.com"}
	out := Recipients(cfg, Candidate{Priority: PriorityNormal, NotificationType: "voc_review"})

	assert.Equal(t, []string{"sup@example.com"}, out)
}

func TestRecipients_EscalatesToManagerOnHighPriority(t *testing.T) {
	cfg := RecipientsConfig{Supervisor: "sup@example.com", Manager: "mgr@example.com"}
	out := Recipients(cfg, Candidate{Priority: PriorityHigh, NotificationType: "high_churn"})

	assert.Equal(t, []string{"sup@example.com", "mgr@example.com"}, out)
}

func TestRecipients_EscalatesToManagerOnEscalationTypeEvenAtNormalPriority(t *testing.T) {
	cfg := RecipientsConfig{Supervisor: "sup@example.com", Manager: "mgr@example.com"}
	out := Recipients(cfg, Candidate{Priority: PriorityNormal, NotificationType: "escalation"})

	assert.Equal(t, []string{"sup@example.com", "mgr@example.com"}, out)
}

func TestRecipients_NormalPriorityHighChurnDoesNotEscalateToManager(t *testing.T) {
	cfg := RecipientsConfig{Supervisor: "sup@example.com", Manager: "mgr@example.com"}
	out := Recipients(cfg, Candidate{Priority: PriorityNormal, NotificationType: "high_churn"})

	assert.Equal(t, []string{"sup@example.com"}, out)
}

func TestRecipients_NoManagerConfiguredIsOmitted(t *testing.T) {
	cfg := RecipientsConfig{Supervisor: "sup@example.com"}
	out := Recipients(cfg, Candidate{Priority: PriorityUrgent})

	assert.Equal(t, []string{"sup@example.com"}, out)
}

func TestResolveChannel(t *testing.T) {
	assert.Equal(t, ChannelChat, ResolveChannel(Candidate{NotificationType: "escalation"}))
	assert.Equal(t, ChannelEmail, ResolveChannel(Candidate{NotificationType: "compliance_violation"}))
	assert.Equal(t, ChannelEmail, ResolveChannel(Candidate{NotificationType: "voc_review"}))
	assert.Equal(t, ChannelEmail, ResolveChannel(Candidate{NotificationType: "high_churn"}))
}
