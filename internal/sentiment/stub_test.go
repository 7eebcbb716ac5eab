package sentiment

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/event"
)

func TestSegmentScore_ClipsNegativeAtFloor(t *testing.T) {
	// four negative words: -0.3 each, well past the -1 floor.
	got := segmentScore("angry, frustrated, unacceptable, terrible call")
	assert.Equal(t, -1.0, got)
}

func TestSegmentScore_ClipsPositiveAtCeiling(t *testing.T) {
	got := segmentScore("thank you, great, appreciate, helpful, resolved, perfect")
	assert.Equal(t, 1.0, got)
}

func TestSegmentScore_Neutral(t *testing.T) {
	assert.Equal(t, 0.0, segmentScore("let me check the account details"))
}

func TestSentimentLabel(t *testing.T) {
	assert.Equal(t, "positive", sentimentLabel(0.5))
	assert.Equal(t, "negative", sentimentLabel(-0.5))
	assert.Equal(t, "neutral", sentimentLabel(0.1))
	assert.Equal(t, "neutral", sentimentLabel(-0.1))
}

func TestChurnRisk_EscalationAddsRiskAndClips(t *testing.T) {
	assert.InDelta(t, 0.5, churnRisk(0, false), 1e-9)
	assert.InDelta(t, 0.7, churnRisk(0, true), 1e-9)
	assert.Equal(t, 1.0, churnRisk(-1, true)) // (1 - -1)/2 + 0.2 = 1.2, clipped to 1
}

func TestAnalyze_EmptyTranscriptIsNeutral(t *testing.T) {
	a := NewStubAnalyzer()
	p, err := a.Analyze(context.Background(), "call-1", event.CallTranscribedPayload{})

	require.NoError(t, err)
	assert.Equal(t, "neutral", p.OverallSentiment)
	assert.Equal(t, 0.0, p.SentimentScore)
	assert.False(t, p.EscalationDetected)
	assert.Nil(t, p.EscalationDetails)
	assert.InDelta(t, 0.5, p.PredictedChurnRisk, 1e-9)
}

func TestAnalyze_DetectsEscalationAndRaisesChurnRisk(t *testing.T) {
	a := NewStubAnalyzer()
	transcript := event.CallTranscribedPayload{
		CallID: "call-1",
		Segments: []event.Segment{
			{Speaker: "agent", StartTime: 0, EndTime: 5, Text: "thank you for calling support today"},
			{Speaker: "customer", StartTime: 5, EndTime: 12, Text: "this is terrible, totally unacceptable, I want a refund"},
		},
	}

	p, err := a.Analyze(context.Background(), "call-1", transcript)

	require.NoError(t, err)
	require.Len(t, p.SegmentSentiments, 2)
	assert.Equal(t, "call-1", p.CallID)
	assert.True(t, p.EscalationDetected)
	require.NotNil(t, p.EscalationDetails)
	assert.InDelta(t, 0.25, p.EscalationDetails.FromScore, 1e-9)
	assert.InDelta(t, -1.0, p.EscalationDetails.ToScore, 1e-9)
	assert.InDelta(t, 1.25, p.EscalationDetails.MaxDrop, 1e-9)
	assert.Equal(t, "negative", p.OverallSentiment)
	assert.InDelta(t, -0.375, p.SentimentScore, 1e-9)
	assert.InDelta(t, 0.8875, p.PredictedChurnRisk, 1e-9)
}

func TestAnalyze_NoEscalationWhenSentimentStaysPositive(t *testing.T) {
	a := NewStubAnalyzer()
	transcript := event.CallTranscribedPayload{
		Segments: []event.Segment{
			{Speaker: "agent", Text: "thank you for your patience"},
			{Speaker: "customer", Text: "great, I really appreciate the help, that's perfect"},
		},
	}

	p, err := a.Analyze(context.Background(), "call-1", transcript)

	require.NoError(t, err)
	assert.False(t, p.EscalationDetected)
	assert.Nil(t, p.EscalationDetails)
	assert.Equal(t, "positive", p.OverallSentiment)
}
