package audit

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/correlate"
	"github.com/snarg/call-dossier/internal/event"
)

// Compliance status values.
const (
	StatusPassed         = "passed"
	StatusReviewRequired = "review_required"
	StatusFailed         = "failed"
)

// ExpectedPhrase is one configured phrase the script-adherence subscore
// checks for, with its penalty weight if absent. The exact list and
// weights are deployment configuration (spec's §9 open question); tests
// pin a fixture.
type ExpectedPhrase struct {
	Phrase string
	Weight float64
}

// Weights are the configured weighted-average coefficients for the three
// subscores. Must sum to 1.0 (enforced by config.Validate).
type Weights struct {
	Script     float64
	Service    float64
	Resolution float64
}

// Thresholds are the configured pass/fail cut points.
type Thresholds struct {
	Pass float64
	Fail float64
}

// ScorerConfig bundles everything the scorer needs beyond the fused
// context and the active rule set.
type ScorerConfig struct {
	ExpectedPhrases []ExpectedPhrase
	EmpathyCues     []string
	Weights         Weights
	Thresholds      Thresholds
}

// Result is the computed audit outcome before persistence.
type Result struct {
	OverallScore            int
	ScriptAdherence         int
	CustomerService         int
	ResolutionEffectiveness int
	ComplianceStatus        string
	FlagsForReview          bool
	ReviewReason            string
	Violations              []event.ComplianceViolation
	ProcessingTimeMs        int64
}

// Scorer evaluates the active rule set and computes the weighted
// composite score for a fused call context.
type Scorer struct {
	cfg   ScorerConfig
	rules func(ctx context.Context) ([]Rule, error)
	log   zerolog.Logger
}

func NewScorer(cfg ScorerConfig, rules func(ctx context.Context) ([]Rule, error), log zerolog.Logger) *Scorer {
	return &Scorer{cfg: cfg, rules: rules, log: log}
}

// Score computes the audit result for a fused triple. Pure given the same
// rule set and configuration (spec's idempotence law): the same inputs
// always produce the same score, status, and violation set.
func (s *Scorer) Score(ctx context.Context, fused correlate.Fused) (Result, error) {
	start := time.Now()

	rules, err := s.rules(ctx)
	if err != nil {
		return Result{}, err
	}

	var violations []event.ComplianceViolation
	for _, r := range rules {
		if v := Evaluate(r, fused); v != nil {
			violations = append(violations, *v)
		}
	}

	scriptScore := clamp(scriptAdherence(fused.Transcript, s.cfg.ExpectedPhrases))
	serviceScore := clamp(customerService(fused.Sentiment, s.cfg.EmpathyCues, fused.Transcript))
	resolutionScore := clamp(resolutionEffectiveness(fused.Voc))

	overall := s.cfg.Weights.Script*float64(scriptScore) +
		s.cfg.Weights.Service*float64(serviceScore) +
		s.cfg.Weights.Resolution*float64(resolutionScore)
	overallScore := clamp(overall + 0.5)

	status, reason := s.status(overallScore, violations)
	flags := status == StatusReviewRequired || status == StatusFailed

	return Result{
		OverallScore:            overallScore,
		ScriptAdherence:         scriptScore,
		CustomerService:         serviceScore,
		ResolutionEffectiveness: resolutionScore,
		ComplianceStatus:        status,
		FlagsForReview:          flags,
		ReviewReason:            reason,
		Violations:              violations,
		ProcessingTimeMs:        time.Since(start).Milliseconds(),
	}, nil
}

// status applies the §4.5 mapping, with the stricter status always
// winning a tie: failed beats review_required beats passed.
func (s *Scorer) status(overallScore int, violations []event.ComplianceViolation) (string, string) {
	for _, v := range violations {
		if v.Severity == "critical" {
			return StatusFailed, "critical violation: " + v.RuleName
		}
	}
	if float64(overallScore) < s.cfg.Thresholds.Fail {
		return StatusFailed, "overall score below fail threshold"
	}
	if float64(overallScore) >= s.cfg.Thresholds.Pass {
		return StatusPassed, ""
	}
	return StatusReviewRequired, "overall score between fail and pass thresholds"
}

func clamp(v float64) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return int(v)
}

func scriptAdherence(t event.CallTranscribedPayload, phrases []ExpectedPhrase) float64 {
	score := 100.0
	lower := strings.ToLower(t.FullText)
	for _, p := range phrases {
		if !strings.Contains(lower, strings.ToLower(p.Phrase)) {
			score -= p.Weight
		}
	}
	return score
}

func customerService(sent event.SentimentAnalyzedPayload, empathyCues []string, t event.CallTranscribedPayload) float64 {
	score := 80.0
	lower := strings.ToLower(t.FullText)
	for _, cue := range empathyCues {
		if strings.Contains(lower, strings.ToLower(cue)) {
			score += 5
			break
		}
	}
	if sent.SentimentScore < 0 {
		score -= (-sent.SentimentScore) * 30
	}
	if sent.EscalationDetected {
		score -= 15
	}
	return score
}

func resolutionEffectiveness(v event.VocAnalyzedPayload) float64 {
	var base float64
	switch v.CustomerSatisfaction {
	case "high":
		base = 90
	case "medium":
		base = 70
	case "low":
		base = 40
	default:
		base = 70
	}

	switch v.PrimaryIntent {
	case "compliment":
		base += 10
	case "complaint":
		if len(v.ActionableItems) == 0 {
			base -= 15
		}
	}

	if v.PredictedChurnRisk > 0.7 {
		base -= (v.PredictedChurnRisk - 0.7) * 100
	}

	return base
}
