package audit

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
)

func noRules(ctx context.Context) ([]Rule, error) { return nil, nil }

func baseConfig() ScorerConfig {
	return ScorerConfig{
		EmpathyCues: []string{"i understand", "i apologize"},
		Weights:     Weights{Script: 0.3, Service: 0.4, Resolution: 0.3},
		Thresholds:  Thresholds{Pass: 80, Fail: 50},
	}
}

func happyPathFused() correlate.Fused {
	return correlate.Fused{
		CallID: "call-1",
		Transcript: event.CallTranscribedPayload{
			FullText: "thank you for calling, i understand your concern and will help resolve it",
		},
		Sentiment: event.SentimentAnalyzedPayload{
			SentimentScore:     0.4,
			EscalationDetected: false,
		},
		Voc: event.VocAnalyzedPayload{
			CustomerSatisfaction: "high",
			PrimaryIntent:        "inquiry",
			PredictedChurnRisk:   0.1,
		},
	}
}

func TestScore_HappyPathPasses(t *testing.T) {
	scorer := NewScorer(baseConfig(), noRules, zerolog.Nop())

	result, err := scorer.Score(context.Background(), happyPathFused())

	require.NoError(t, err)
	assert.Equal(t, StatusPassed, result.ComplianceStatus)
	assert.False(t, result.FlagsForReview)
	assert.Empty(t, result.Violations)
}

func TestScore_CriticalViolationForcesFailedRegardlessOfScore(t *testing.T) {
	criticalRule := func(ctx context.Context) ([]Rule, error) {
		return []Rule{{
			ID: "r-critical", Name: "no guarantees", Severity: "critical",
			Def: RuleDefinition{Type: KindProhibitedWords, Words: []string{"guaranteed"}},
		}}, nil
	}
	fused := happyPathFused()
	fused.Transcript.Segments = []event.Segment{
		{Speaker: "agent", Text: "this is guaranteed to resolve your issue"},
	}

	scorer := NewScorer(baseConfig(), criticalRule, zerolog.Nop())
	result, err := scorer.Score(context.Background(), fused)

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.ComplianceStatus)
	assert.True(t, result.FlagsForReview)
	assert.Contains(t, result.ReviewReason, "critical violation")
	require.Len(t, result.Violations, 1)
}

func TestScore_BelowFailThresholdIsFailed(t *testing.T) {
	fused := correlate.Fused{
		Transcript: event.CallTranscribedPayload{FullText: "i cannot help you"},
		Sentiment:  event.SentimentAnalyzedPayload{SentimentScore: -0.9, EscalationDetected: true},
		Voc: event.VocAnalyzedPayload{
			CustomerSatisfaction: "low",
			PrimaryIntent:        "complaint",
			PredictedChurnRisk:   0.95,
		},
	}

	scorer := NewScorer(baseConfig(), noRules, zerolog.Nop())
	result, err := scorer.Score(context.Background(), fused)

	require.NoError(t, err)
	assert.Equal(t, StatusFailed, result.ComplianceStatus)
	assert.True(t, result.FlagsForReview)
}

func TestScore_MiddleBandIsReviewRequired(t *testing.T) {
	fused := correlate.Fused{
		Transcript: event.CallTranscribedPayload{FullText: "ok let's see what we can do"},
		Sentiment:  event.SentimentAnalyzedPayload{SentimentScore: -0.2},
		Voc: event.VocAnalyzedPayload{
			CustomerSatisfaction: "medium",
			PrimaryIntent:        "complaint",
			PredictedChurnRisk:   0.2,
		},
	}

	scorer := NewScorer(baseConfig(), noRules, zerolog.Nop())
	result, err := scorer.Score(context.Background(), fused)

	require.NoError(t, err)
	assert.Equal(t, StatusReviewRequired, result.ComplianceStatus)
	assert.True(t, result.FlagsForReview)
}

func TestScore_RulesErrorPropagates(t *testing.T) {
	failing := func(ctx context.Context) ([]Rule, error) { return nil, assertErr }

	scorer := NewScorer(baseConfig(), failing, zerolog.Nop())
	_, err := scorer.Score(context.Background(), happyPathFused())

	assert.Error(t, err)
}

func TestScriptAdherence_PenalizesMissingPhrase(t *testing.T) {
	phrases := []ExpectedPhrase{{Phrase: "recorded for quality", Weight: 20}}
	got := scriptAdherence(event.CallTranscribedPayload{FullText: "hello there"}, phrases)
	assert.Equal(t, 80.0, got)
}

func TestScriptAdherence_NoPenaltyWhenPresent(t *testing.T) {
	phrases := []ExpectedPhrase{{Phrase: "recorded for quality", Weight: 20}}
	got := scriptAdherence(event.CallTranscribedPayload{FullText: "this call is recorded for quality purposes"}, phrases)
	assert.Equal(t, 100.0, got)
}

func TestCustomerService_EscalationAndNegativeSentimentPenalized(t *testing.T) {
	got := customerService(
		event.SentimentAnalyzedPayload{SentimentScore: -0.5, EscalationDetected: true},
		[]string{"i understand"},
		event.CallTranscribedPayload{FullText: "no empathy here"},
	)
	assert.InDelta(t, 80-15-15, got, 1e-9)
}

func TestResolutionEffectiveness_ComplaintWithoutActionItemsPenalized(t *testing.T) {
	got := resolutionEffectiveness(event.VocAnalyzedPayload{
		CustomerSatisfaction: "medium",
		PrimaryIntent:        "complaint",
		ActionableItems:      nil,
	})
	assert.Equal(t, 55.0, got)
}

func TestResolutionEffectiveness_HighChurnRiskPenalized(t *testing.T) {
	got := resolutionEffectiveness(event.VocAnalyzedPayload{
		CustomerSatisfaction: "high",
		PredictedChurnRisk:   0.9,
	})
	assert.InDelta(t, 90-20, got, 1e-9)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, 0, clamp(-5))
	assert.Equal(t, 100, clamp(150))
	assert.Equal(t, 42, clamp(42.9))
}

type testError string

func (e testError) Error() string { return string(e) }

var assertErr = testError("rule lookup failed")
