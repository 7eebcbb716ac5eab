package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
)

// VocInsight is the once-per-call projection of VocAnalyzed.
type VocInsight struct {
	CallID               string
	PrimaryIntent        string
	Topics               []string
	Keywords             []string
	CustomerSatisfaction string
	PredictedChurnRisk   float64
	ActionableItems      []string
	Summary              string
}

func (s *Store) ExistsVoc(ctx context.Context, callID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM voc_insights WHERE call_id = $1)`, callID,
	).Scan(&exists)
	return exists, err
}

// InsertVoc writes the VoC insight row, conditional on no existing row for
// callID.
func (s *Store) InsertVoc(ctx context.Context, v VocInsight) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO voc_insights (call_id, primary_intent, topics, keywords, customer_satisfaction,
			predicted_churn_risk, actionable_items, summary)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_id) DO NOTHING`,
		v.CallID, v.PrimaryIntent, v.Topics, v.Keywords, v.CustomerSatisfaction,
		v.PredictedChurnRisk, v.ActionableItems, v.Summary,
	)
	return err
}

// GetVoc returns the projected VoC insight for a call.
func (s *Store) GetVoc(ctx context.Context, callID string) (*VocInsight, error) {
	var v VocInsight
	v.CallID = callID
	err := s.Pool.QueryRow(ctx, `
		SELECT primary_intent, topics, keywords, customer_satisfaction, predicted_churn_risk,
			actionable_items, summary
		FROM voc_insights WHERE call_id = $1`, callID,
	).Scan(&v.PrimaryIntent, &v.Topics, &v.Keywords, &v.CustomerSatisfaction,
		&v.PredictedChurnRisk, &v.ActionableItems, &v.Summary)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}
