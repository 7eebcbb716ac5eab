package store

import (
	"context"
	"time"
)

// AgentPerformancePartial is one flush's worth of locally-aggregated
// observations for one (agentId, hourSlot) bucket, ready to merge into the
// durable row. Each metric carries its own sample count: a bucket mixes
// sentiment, voc, and audit events, and each of those populates a disjoint
// subset of the five metrics, so the merge weight for avg_quality is not
// the same as the merge weight for avg_sentiment.
type AgentPerformancePartial struct {
	AgentID               string
	HourSlot              time.Time
	Count                 int
	AvgQuality            *float64
	NQuality              int
	AvgSentiment          *float64
	NSentiment            int
	AvgSatisfaction       *float64
	NSatisfaction         int
	AvgCompliancePassRate *float64
	NCompliancePassRate   int
	AvgChurnRisk          *float64
	NChurnRisk            int
}

// AgentPerformance is the durable time-bucketed row.
type AgentPerformance struct {
	AgentID               string
	HourSlot              time.Time
	Count                 int
	AvgQuality            *float64
	NQuality              int
	AvgSentiment          *float64
	NSentiment            int
	AvgSatisfaction       *float64
	NSatisfaction         int
	AvgCompliancePassRate *float64
	NCompliancePassRate   int
	AvgChurnRisk          *float64
	NChurnRisk            int
}

// MergeAgentPerformance merges a flush's partial bucket into the durable
// row with Invariant A2's running-average merge formula, expressed as a
// single atomic UPSERT so concurrent flushes for the same bucket serialize
// on the row rather than needing an application-level lock. Each metric is
// merged against its own n_* weight, not the shared event count, since the
// events that populate one metric are not the events that populate
// another.
func (s *Store) MergeAgentPerformance(ctx context.Context, p AgentPerformancePartial) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO agent_performance (agent_id, hour_slot, count,
			avg_quality, n_quality, avg_sentiment, n_sentiment,
			avg_satisfaction, n_satisfaction, avg_compliance_pass_rate, n_compliance_pass_rate,
			avg_churn_risk, n_churn_risk)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (agent_id, hour_slot) DO UPDATE SET
			avg_quality = CASE WHEN agent_performance.n_quality + EXCLUDED.n_quality = 0 THEN NULL ELSE
				(COALESCE(agent_performance.avg_quality, 0) * agent_performance.n_quality +
				 COALESCE(EXCLUDED.avg_quality, 0) * EXCLUDED.n_quality)
				/ (agent_performance.n_quality + EXCLUDED.n_quality) END,
			n_quality = agent_performance.n_quality + EXCLUDED.n_quality,
			avg_sentiment = CASE WHEN agent_performance.n_sentiment + EXCLUDED.n_sentiment = 0 THEN NULL ELSE
				(COALESCE(agent_performance.avg_sentiment, 0) * agent_performance.n_sentiment +
				 COALESCE(EXCLUDED.avg_sentiment, 0) * EXCLUDED.n_sentiment)
				/ (agent_performance.n_sentiment + EXCLUDED.n_sentiment) END,
			n_sentiment = agent_performance.n_sentiment + EXCLUDED.n_sentiment,
			avg_satisfaction = CASE WHEN agent_performance.n_satisfaction + EXCLUDED.n_satisfaction = 0 THEN NULL ELSE
				(COALESCE(agent_performance.avg_satisfaction, 0) * agent_performance.n_satisfaction +
				 COALESCE(EXCLUDED.avg_satisfaction, 0) * EXCLUDED.n_satisfaction)
				/ (agent_performance.n_satisfaction + EXCLUDED.n_satisfaction) END,
			n_satisfaction = agent_performance.n_satisfaction + EXCLUDED.n_satisfaction,
			avg_compliance_pass_rate = CASE WHEN agent_performance.n_compliance_pass_rate + EXCLUDED.n_compliance_pass_rate = 0 THEN NULL ELSE
				(COALESCE(agent_performance.avg_compliance_pass_rate, 0) * agent_performance.n_compliance_pass_rate +
				 COALESCE(EXCLUDED.avg_compliance_pass_rate, 0) * EXCLUDED.n_compliance_pass_rate)
				/ (agent_performance.n_compliance_pass_rate + EXCLUDED.n_compliance_pass_rate) END,
			n_compliance_pass_rate = agent_performance.n_compliance_pass_rate + EXCLUDED.n_compliance_pass_rate,
			avg_churn_risk = CASE WHEN agent_performance.n_churn_risk + EXCLUDED.n_churn_risk = 0 THEN NULL ELSE
				(COALESCE(agent_performance.avg_churn_risk, 0) * agent_performance.n_churn_risk +
				 COALESCE(EXCLUDED.avg_churn_risk, 0) * EXCLUDED.n_churn_risk)
				/ (agent_performance.n_churn_risk + EXCLUDED.n_churn_risk) END,
			n_churn_risk = agent_performance.n_churn_risk + EXCLUDED.n_churn_risk,
			count = agent_performance.count + EXCLUDED.count`,
		p.AgentID, p.HourSlot, p.Count,
		p.AvgQuality, p.NQuality, p.AvgSentiment, p.NSentiment,
		p.AvgSatisfaction, p.NSatisfaction, p.AvgCompliancePassRate, p.NCompliancePassRate,
		p.AvgChurnRisk, p.NChurnRisk,
	)
	return err
}

// GetAgentPerformance returns the durable bucket for (agentId, hourSlot),
// or nil if no observation has ever been merged into it.
func (s *Store) GetAgentPerformance(ctx context.Context, agentID string, hourSlot time.Time) (*AgentPerformance, error) {
	var a AgentPerformance
	a.AgentID = agentID
	a.HourSlot = hourSlot
	err := s.Pool.QueryRow(ctx, `
		SELECT count, avg_quality, n_quality, avg_sentiment, n_sentiment,
			avg_satisfaction, n_satisfaction, avg_compliance_pass_rate, n_compliance_pass_rate,
			avg_churn_risk, n_churn_risk
		FROM agent_performance WHERE agent_id = $1 AND hour_slot = $2`, agentID, hourSlot,
	).Scan(&a.Count, &a.AvgQuality, &a.NQuality, &a.AvgSentiment, &a.NSentiment,
		&a.AvgSatisfaction, &a.NSatisfaction, &a.AvgCompliancePassRate, &a.NCompliancePassRate,
		&a.AvgChurnRisk, &a.NChurnRisk)
	if err != nil {
		return nil, noRowsToNil(err)
	}
	return &a, nil
}
