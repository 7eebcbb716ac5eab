package voc

import (
	"context"
	"strings"

	"github.com/snarg/call-dossier/internal/event"
)

var intentKeywords = map[string][]string{
	"complaint": {"complaint", "unacceptable", "angry", "refund", "cancel"},
	"compliment": {"thank", "great job", "appreciate", "wonderful"},
	"request":   {"could you", "please", "i need", "i want"},
	"inquiry":   {"how do", "what is", "can you tell"},
}

var criticalKeywords = []string{"cancel", "lawyer", "sue", "refund", "unacceptable"}

// StubAnalyzer derives intent, topics, and satisfaction from lexical
// keyword matches against the full transcript. Stands in for a real NLU
// service.
type StubAnalyzer struct{}

func NewStubAnalyzer() *StubAnalyzer { return &StubAnalyzer{} }

func (StubAnalyzer) Name() string { return "stub-lexical-v1" }

func (a StubAnalyzer) Analyze(ctx context.Context, callID string, transcript event.CallTranscribedPayload) (event.VocAnalyzedPayload, error) {
	lower := strings.ToLower(transcript.FullText)

	intent := "other"
	bestHits := 0
	for candidate, words := range intentKeywords {
		hits := countHits(lower, words)
		if hits > bestHits {
			bestHits = hits
			intent = candidate
		}
	}

	var topics, keywords, actionable []string
	for _, w := range criticalKeywords {
		if strings.Contains(lower, w) {
			topics = append(topics, w)
		}
	}
	for _, words := range intentKeywords {
		for _, w := range words {
			if strings.Contains(lower, w) {
				keywords = append(keywords, w)
			}
		}
	}

	satisfaction := "medium"
	switch intent {
	case "complaint":
		satisfaction = "low"
		actionable = append(actionable, "follow up with customer on unresolved complaint")
	case "compliment":
		satisfaction = "high"
	}

	churn := 0.3
	if intent == "complaint" {
		churn = 0.6
	}
	if len(topics) >= 2 {
		churn = 0.85
	}

	return event.VocAnalyzedPayload{
		CallID:               callID,
		PrimaryIntent:        intent,
		Topics:               topics,
		Keywords:             keywords,
		CustomerSatisfaction: satisfaction,
		PredictedChurnRisk:   churn,
		ActionableItems:      actionable,
		Summary:              summarize(transcript.FullText),
	}, nil
}

func countHits(lower string, words []string) int {
	n := 0
	for _, w := range words {
		if strings.Contains(lower, w) {
			n++
		}
	}
	return n
}

func summarize(text string) string {
	const maxLen = 200
	text = strings.TrimSpace(text)
	if len(text) <= maxLen {
		return text
	}
	return text[:maxLen] + "..."
}
