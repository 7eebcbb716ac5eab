package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/snarg/call-dossier/internal/event"
)

// Sentiment is the once-per-call projection of SentimentAnalyzed.
type Sentiment struct {
	CallID             string
	OverallSentiment   string
	SentimentScore     float64
	EscalationDetected bool
	EscalationDetails  *event.EscalationDetails
	ProcessingTimeMs   int64
}

func (s *Store) ExistsSentiment(ctx context.Context, callID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM sentiments WHERE call_id = $1)`, callID,
	).Scan(&exists)
	return exists, err
}

// InsertSentiment writes the sentiment row and its per-segment readings,
// conditional on no existing row for callID.
func (s *Store) InsertSentiment(ctx context.Context, sent Sentiment, segments []event.SegmentSentiment) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var maxDrop, fromScore, toScore *float64
	if sent.EscalationDetails != nil {
		maxDrop = &sent.EscalationDetails.MaxDrop
		fromScore = &sent.EscalationDetails.FromScore
		toScore = &sent.EscalationDetails.ToScore
	}

	tag, err := tx.Exec(ctx, `
		INSERT INTO sentiments (call_id, overall_sentiment, sentiment_score, escalation_detected,
			escalation_max_drop, escalation_from_score, escalation_to_score, processing_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (call_id) DO NOTHING`,
		sent.CallID, sent.OverallSentiment, sent.SentimentScore, sent.EscalationDetected,
		maxDrop, fromScore, toScore, sent.ProcessingTimeMs,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tx.Commit(ctx)
	}

	for _, seg := range segments {
		emotions, _ := json.Marshal(seg.Emotions)
		if _, err := tx.Exec(ctx, `
			INSERT INTO segment_sentiments (call_id, start_time, end_time, sentiment, score, speaker, emotions)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			sent.CallID, seg.StartTime, seg.EndTime, seg.Sentiment, seg.Score, seg.Speaker, emotions,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetSentiment returns the projected sentiment for a call.
func (s *Store) GetSentiment(ctx context.Context, callID string) (*Sentiment, error) {
	var sent Sentiment
	sent.CallID = callID
	var maxDrop, fromScore, toScore *float64
	err := s.Pool.QueryRow(ctx, `
		SELECT overall_sentiment, sentiment_score, escalation_detected,
			escalation_max_drop, escalation_from_score, escalation_to_score, processing_time_ms
		FROM sentiments WHERE call_id = $1`, callID,
	).Scan(&sent.OverallSentiment, &sent.SentimentScore, &sent.EscalationDetected,
		&maxDrop, &fromScore, &toScore, &sent.ProcessingTimeMs)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if maxDrop != nil {
		sent.EscalationDetails = &event.EscalationDetails{MaxDrop: *maxDrop, FromScore: *fromScore, ToScore: *toScore}
	}
	return &sent, nil
}
