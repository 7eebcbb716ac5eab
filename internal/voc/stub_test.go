package voc

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/event"
)

func TestAnalyze_ComplaintWithMultipleCriticalTopicsRaisesChurn(t *testing.T) {
	a := NewStubAnalyzer()
	transcript := event.CallTranscribedPayload{
		FullText: "this is unacceptable, I am angry and I want to cancel and get a refund",
	}

	p, err := a.Analyze(context.Background(), "call-1", transcript)

	require.NoError(t, err)
	assert.Equal(t, "call-1", p.CallID)
	assert.Equal(t, "complaint", p.PrimaryIntent)
	assert.Equal(t, "low", p.CustomerSatisfaction)
	assert.ElementsMatch(t, []string{"cancel", "refund", "unacceptable"}, p.Topics)
	assert.InDelta(t, 0.85, p.PredictedChurnRisk, 1e-9)
	require.Len(t, p.ActionableItems, 1)
	assert.Contains(t, p.ActionableItems[0], "follow up")
}

func TestAnalyze_ComplimentIsHighSatisfaction(t *testing.T) {
	a := NewStubAnalyzer()
	transcript := event.CallTranscribedPayload{
		FullText: "thank you so much, great job, I really appreciate it",
	}

	p, err := a.Analyze(context.Background(), "call-1", transcript)

	require.NoError(t, err)
	assert.Equal(t, "compliment", p.PrimaryIntent)
	assert.Equal(t, "high", p.CustomerSatisfaction)
	assert.Empty(t, p.Topics)
	assert.Empty(t, p.ActionableItems)
	assert.InDelta(t, 0.3, p.PredictedChurnRisk, 1e-9)
}

func TestAnalyze_NoKeywordsIsOtherIntent(t *testing.T) {
	a := NewStubAnalyzer()
	p, err := a.Analyze(context.Background(), "call-1", event.CallTranscribedPayload{FullText: "the weather was nice today"})

	require.NoError(t, err)
	assert.Equal(t, "other", p.PrimaryIntent)
	assert.Equal(t, "medium", p.CustomerSatisfaction)
}

func TestSummarize_ShortTextIsUnchanged(t *testing.T) {
	assert.Equal(t, "hello there", summarize("  hello there  "))
}

func TestSummarize_LongTextIsTruncatedWithEllipsis(t *testing.T) {
	text := strings.Repeat("a", 250)
	got := summarize(text)

	assert.Len(t, got, 203)
	assert.True(t, strings.HasSuffix(got, "..."))
}
