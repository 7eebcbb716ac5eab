package audit

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
)

func fusedWithSegments(segs ...event.Segment) correlate.Fused {
	return correlate.Fused{
		CallID:     "call-1",
		Transcript: event.CallTranscribedPayload{Segments: segs},
	}
}

func TestEvaluate_UnknownKindIsNoViolation(t *testing.T) {
	rule := Rule{ID: "r1", Def: RuleDefinition{Type: "something_else"}}
	assert.Nil(t, Evaluate(rule, correlate.Fused{}))
}

func TestEvalKeywordCheck_PresentIsNoViolation(t *testing.T) {
	rule := Rule{ID: "r1", Name: "disclosure", Def: RuleDefinition{
		Type: KindKeywordCheck, Words: []string{"recorded for quality"},
	}}
	fused := fusedWithSegments(event.Segment{Speaker: "agent", Text: "this call may be recorded for quality assurance"})

	assert.Nil(t, Evaluate(rule, fused))
}

func TestEvalKeywordCheck_MissingIsViolation(t *testing.T) {
	rule := Rule{ID: "r1", Name: "disclosure", Severity: "medium", Def: RuleDefinition{
		Type: KindKeywordCheck, Words: []string{"recorded for quality"},
	}}
	fused := fusedWithSegments(event.Segment{Speaker: "agent", Text: "hello, how can I help you today"})

	v := Evaluate(rule, fused)
	require.NotNil(t, v)
	assert.Equal(t, "r1", v.RuleID)
	assert.Equal(t, "medium", v.Severity)
}

func TestEvalKeywordCheck_SpeakerFilter(t *testing.T) {
	rule := Rule{ID: "r1", Def: RuleDefinition{
		Type: KindKeywordCheck, Words: []string{"policy number"}, Speaker: "agent",
	}}
	// the keyword appears, but only from the customer, so it doesn't count
	fused := fusedWithSegments(
		event.Segment{Speaker: "customer", Text: "my policy number is 12345"},
		event.Segment{Speaker: "agent", Text: "let me pull that up"},
	)

	v := Evaluate(rule, fused)
	require.NotNil(t, v)
}

func TestEvalKeywordCheck_TimeWindow(t *testing.T) {
	t0 := 10.0
	t1 := 30.0
	rule := Rule{ID: "r1", Def: RuleDefinition{
		Type: KindKeywordCheck, Words: []string{"verify your identity"}, T0: &t0, T1: &t1,
	}}
	// the keyword is present but outside the window, so it's still a violation
	fused := fusedWithSegments(event.Segment{Speaker: "agent", StartTime: 40, Text: "let me verify your identity"})

	v := Evaluate(rule, fused)
	require.NotNil(t, v)
}

func TestEvalProhibitedWords_FoundIsViolation(t *testing.T) {
	rule := Rule{ID: "r2", Name: "no guarantees", Severity: "critical", Def: RuleDefinition{
		Type: KindProhibitedWords, Words: []string{"guaranteed"},
	}}
	fused := fusedWithSegments(event.Segment{Speaker: "agent", StartTime: 12, Text: "this is guaranteed to work"})

	v := Evaluate(rule, fused)
	require.NotNil(t, v)
	assert.Equal(t, "critical", v.Severity)
	assert.Equal(t, 12.0, v.TimestampInCall)
	assert.Contains(t, v.Evidence, "guaranteed")
}

func TestEvalProhibitedWords_AbsentIsNoViolation(t *testing.T) {
	rule := Rule{ID: "r2", Def: RuleDefinition{
		Type: KindProhibitedWords, Words: []string{"guaranteed"},
	}}
	fused := fusedWithSegments(event.Segment{Speaker: "agent", Text: "this should help resolve the issue"})

	assert.Nil(t, Evaluate(rule, fused))
}

func TestEvalSentimentResponse_MissingEmpathyIsViolation(t *testing.T) {
	rule := Rule{ID: "r3", Name: "empathy required", Def: RuleDefinition{
		Type: KindSentimentResponse, TriggerSentiment: "negative", TargetSpeaker: "agent",
		RequiredCues: []string{"i understand", "i apologize"},
	}}
	fused := correlate.Fused{
		Transcript: event.CallTranscribedPayload{Segments: []event.Segment{
			{Speaker: "customer", StartTime: 0, EndTime: 5, Text: "this is unacceptable"},
			{Speaker: "agent", StartTime: 5, EndTime: 10, Text: "let's move on to the next step"},
		}},
		Sentiment: event.SentimentAnalyzedPayload{SegmentSentiments: []event.SegmentSentiment{
			{Speaker: "customer", StartTime: 0, EndTime: 5, Sentiment: "negative"},
			{Speaker: "agent", StartTime: 5, EndTime: 10, Sentiment: "neutral"},
		}},
	}

	v := Evaluate(rule, fused)
	require.NotNil(t, v)
	assert.Equal(t, "r3", v.RuleID)
}

func TestEvalSentimentResponse_EmpathyPresentIsNoViolation(t *testing.T) {
	rule := Rule{ID: "r3", Def: RuleDefinition{
		Type: KindSentimentResponse, TriggerSentiment: "negative", TargetSpeaker: "agent",
		RequiredCues: []string{"i understand", "i apologize"},
	}}
	fused := correlate.Fused{
		Transcript: event.CallTranscribedPayload{Segments: []event.Segment{
			{Speaker: "customer", StartTime: 0, EndTime: 5, Text: "this is unacceptable"},
			{Speaker: "agent", StartTime: 5, EndTime: 10, Text: "i understand your frustration"},
		}},
		Sentiment: event.SentimentAnalyzedPayload{SegmentSentiments: []event.SegmentSentiment{
			{Speaker: "customer", StartTime: 0, EndTime: 5, Sentiment: "negative"},
			{Speaker: "agent", StartTime: 5, EndTime: 10, Sentiment: "neutral"},
		}},
	}

	assert.Nil(t, Evaluate(rule, fused))
}

func TestParseDefinition_Malformed(t *testing.T) {
	_, err := ParseDefinition([]byte(`{not json`))
	assert.Error(t, err)
}
