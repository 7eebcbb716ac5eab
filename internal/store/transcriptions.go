package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/snarg/call-dossier/internal/event"
)

// Transcription is the once-per-call projection of CallTranscribed.
type Transcription struct {
	CallID     string
	FullText   string
	Language   string
	Confidence float64
	WordCount  int
}

// ExistsTranscription reports whether a transcription has already been
// projected for callID, backing the I-once-per-call idempotency rule.
func (s *Store) ExistsTranscription(ctx context.Context, callID string) (bool, error) {
	var exists bool
	err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM transcriptions WHERE call_id = $1)`, callID,
	).Scan(&exists)
	return exists, err
}

// InsertTranscription writes the transcription and its segments in one
// transaction, conditional on no existing row for callID (ON CONFLICT DO
// NOTHING), so replay of the same event is a clean no-op.
func (s *Store) InsertTranscription(ctx context.Context, t Transcription, segments []event.Segment) error {
	tx, err := s.Pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO transcriptions (call_id, full_text, language, confidence, word_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id) DO NOTHING`,
		t.CallID, t.FullText, t.Language, t.Confidence, t.WordCount,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Already processed: nothing to do, commit the no-op transaction.
		return tx.Commit(ctx)
	}

	for _, seg := range segments {
		if _, err := tx.Exec(ctx, `
			INSERT INTO segments (call_id, speaker, start_time, end_time, text, confidence)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			t.CallID, seg.Speaker, seg.StartTime, seg.EndTime, seg.Text, seg.Confidence,
		); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// GetTranscription returns the projected transcription for a call.
func (s *Store) GetTranscription(ctx context.Context, callID string) (*Transcription, error) {
	var t Transcription
	t.CallID = callID
	err := s.Pool.QueryRow(ctx,
		`SELECT full_text, language, confidence, word_count FROM transcriptions WHERE call_id = $1`,
		callID,
	).Scan(&t.FullText, &t.Language, &t.Confidence, &t.WordCount)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// GetSegments returns the ordered segments for a call.
func (s *Store) GetSegments(ctx context.Context, callID string) ([]event.Segment, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT speaker, start_time, end_time, text, confidence FROM segments
		 WHERE call_id = $1 ORDER BY start_time`, callID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segs []event.Segment
	for rows.Next() {
		var seg event.Segment
		if err := rows.Scan(&seg.Speaker, &seg.StartTime, &seg.EndTime, &seg.Text, &seg.Confidence); err != nil {
			return nil, err
		}
		segs = append(segs, seg)
	}
	return segs, rows.Err()
}
