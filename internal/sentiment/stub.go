package sentiment

import (
	"context"
	"strings"

	"github.com/snarg/call-dossier/internal/event"
)

var negativeWords = []string{"angry", "frustrated", "cancel", "unacceptable", "terrible", "worst", "refund", "complaint"}
var positiveWords = []string{"thank", "great", "appreciate", "helpful", "resolved", "perfect"}

// StubAnalyzer produces a deterministic sentiment reading from lexical
// keyword counts per segment. It stands in for a real ML sentiment model.
type StubAnalyzer struct{}

func NewStubAnalyzer() *StubAnalyzer { return &StubAnalyzer{} }

func (StubAnalyzer) Name() string { return "stub-lexical-v1" }

func (a StubAnalyzer) Analyze(ctx context.Context, callID string, transcript event.CallTranscribedPayload) (event.SentimentAnalyzedPayload, error) {
	segments := make([]event.SegmentSentiment, 0, len(transcript.Segments))
	var minScore, maxScoreBeforeMin float64
	var running float64
	sawFirst := false

	for _, seg := range transcript.Segments {
		score := segmentScore(seg.Text)
		segments = append(segments, event.SegmentSentiment{
			StartTime: seg.StartTime,
			EndTime:   seg.EndTime,
			Sentiment: sentimentLabel(score),
			Score:     score,
			Speaker:   seg.Speaker,
		})

		if !sawFirst {
			minScore, maxScoreBeforeMin, running = score, score, score
			sawFirst = true
			continue
		}
		if score < minScore {
			minScore = score
		}
		if running > maxScoreBeforeMin && running > minScore {
			maxScoreBeforeMin = running
		}
		running = score
	}

	overall := averageScore(segments)
	drop := maxScoreBeforeMin - minScore
	escalated := drop >= 0.6

	p := event.SentimentAnalyzedPayload{
		CallID:             callID,
		OverallSentiment:   sentimentLabel(overall),
		SentimentScore:     overall,
		EscalationDetected: escalated,
		SegmentSentiments:  segments,
	}
	if escalated {
		p.EscalationDetails = &event.EscalationDetails{
			MaxDrop:   drop,
			FromScore: maxScoreBeforeMin,
			ToScore:   minScore,
		}
	}
	p.PredictedChurnRisk = churnRisk(overall, escalated)
	return p, nil
}

func segmentScore(text string) float64 {
	lower := strings.ToLower(text)
	score := 0.0
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			score -= 0.3
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			score += 0.25
		}
	}
	if score > 1 {
		score = 1
	}
	if score < -1 {
		score = -1
	}
	return score
}

func sentimentLabel(score float64) string {
	switch {
	case score > 0.2:
		return "positive"
	case score < -0.2:
		return "negative"
	default:
		return "neutral"
	}
}

func averageScore(segs []event.SegmentSentiment) float64 {
	if len(segs) == 0 {
		return 0
	}
	var sum float64
	for _, s := range segs {
		sum += s.Score
	}
	return sum / float64(len(segs))
}

func churnRisk(overall float64, escalated bool) float64 {
	risk := (1 - overall) / 2
	if escalated {
		risk += 0.2
	}
	if risk > 1 {
		risk = 1
	}
	if risk < 0 {
		risk = 0
	}
	return risk
}
