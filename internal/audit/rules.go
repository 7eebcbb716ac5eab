// Package audit implements the compliance scorer and rule engine (C5):
// pure rule evaluation over a fused call context, plus the weighted
// composite score and status/tie-break rule.
package audit

import (
	"encoding/json"
	"strings"

	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
)

// Rule kinds, the tagged-union discriminator in a rule's JSON definition.
const (
	KindKeywordCheck      = "keyword_check"
	KindProhibitedWords   = "prohibited_words"
	KindSentimentResponse = "sentiment_response"
)

// RuleDefinition is the discriminated union decoded from a rule's raw JSON.
// Only the fields relevant to Type are populated by the other kinds.
type RuleDefinition struct {
	Type string `json:"type"`

	// keyword_check / prohibited_words
	Words   []string `json:"words,omitempty"`
	Speaker string   `json:"speaker,omitempty"` // agent | customer | "" (any)
	T0      *float64 `json:"t0,omitempty"`
	T1      *float64 `json:"t1,omitempty"`

	// sentiment_response
	TriggerSentiment string   `json:"triggerSentiment,omitempty"`
	TargetSpeaker    string   `json:"targetSpeaker,omitempty"`
	RequiredCues     []string `json:"requiredCues,omitempty"`
}

// Rule pairs a rule's identity with its parsed definition.
type Rule struct {
	ID       string
	Name     string
	Severity string
	Def      RuleDefinition
}

// ParseDefinition decodes a rule's raw JSON definition and returns the
// decode error for malformed JSON. RuleLoader drops a rule whose
// definition fails to parse, so such a rule never produces a violation.
func ParseDefinition(raw json.RawMessage) (RuleDefinition, error) {
	var def RuleDefinition
	err := json.Unmarshal(raw, &def)
	return def, err
}

func speakerMatches(want, got string) bool {
	return want == "" || want == got
}

func inWindow(def RuleDefinition, t float64) bool {
	if def.T0 != nil && t < *def.T0 {
		return false
	}
	if def.T1 != nil && t > *def.T1 {
		return false
	}
	return true
}

func containsAny(text string, words []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range words {
		if strings.Contains(lower, strings.ToLower(w)) {
			return w, true
		}
	}
	return "", false
}

// Evaluate runs one rule against a fused call context. Evaluation is pure
// and never errors to the caller: unknown kinds and malformed definitions
// evaluate to "no violation," matching spec §4.5.
func Evaluate(rule Rule, fused correlate.Fused) *event.ComplianceViolation {
	switch rule.Def.Type {
	case KindKeywordCheck:
		return evalKeywordCheck(rule, fused)
	case KindProhibitedWords:
		return evalProhibitedWords(rule, fused)
	case KindSentimentResponse:
		return evalSentimentResponse(rule, fused)
	default:
		return nil
	}
}

func evalKeywordCheck(rule Rule, fused correlate.Fused) *event.ComplianceViolation {
	def := rule.Def
	for _, seg := range fused.Transcript.Segments {
		if !speakerMatches(def.Speaker, seg.Speaker) {
			continue
		}
		if !inWindow(def, seg.StartTime) {
			continue
		}
		if _, ok := containsAny(seg.Text, def.Words); ok {
			return nil // keyword present: no violation
		}
	}
	return &event.ComplianceViolation{
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		Severity:    rule.Severity,
		Description: "required keyword was not found in any matching segment",
	}
}

func evalProhibitedWords(rule Rule, fused correlate.Fused) *event.ComplianceViolation {
	def := rule.Def
	for _, seg := range fused.Transcript.Segments {
		if !speakerMatches(def.Speaker, seg.Speaker) {
			continue
		}
		if word, ok := containsAny(seg.Text, def.Words); ok {
			return &event.ComplianceViolation{
				RuleID:          rule.ID,
				RuleName:        rule.Name,
				Severity:        rule.Severity,
				Description:     "prohibited word \"" + word + "\" found",
				TimestampInCall: seg.StartTime,
				Evidence:        seg.Text,
			}
		}
	}
	return nil
}

func evalSentimentResponse(rule Rule, fused correlate.Fused) *event.ComplianceViolation {
	def := rule.Def
	sentiments := fused.Sentiment.SegmentSentiments
	for i, s := range sentiments {
		if s.Sentiment != def.TriggerSentiment {
			continue
		}
		// Look at the following segment(s) by the target speaker for a
		// required empathy cue.
		found := false
		for j := i + 1; j < len(sentiments); j++ {
			next := sentiments[j]
			if !speakerMatches(def.TargetSpeaker, next.Speaker) {
				continue
			}
			text := segmentTextAt(fused, next.StartTime, next.EndTime)
			if _, ok := containsAny(text, def.RequiredCues); ok {
				found = true
			}
			break
		}
		if !found {
			return &event.ComplianceViolation{
				RuleID:          rule.ID,
				RuleName:        rule.Name,
				Severity:        rule.Severity,
				Description:     "negative sentiment occurred without a required empathy response",
				TimestampInCall: s.StartTime,
			}
		}
	}
	return nil
}

func segmentTextAt(fused correlate.Fused, start, end float64) string {
	for _, seg := range fused.Transcript.Segments {
		if seg.StartTime == start && seg.EndTime == end {
			return seg.Text
		}
	}
	return ""
}
