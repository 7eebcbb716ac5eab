package store

import (
	"context"

	"github.com/snarg/call-dossier/internal/event"
)

// AppendEvent writes an optional audit-log row per envelope, by eventId
// (Invariant E3). Not on the hot path of any projector; used where an
// operator wants a durable record of everything the pipeline has seen.
func (s *Store) AppendEvent(ctx context.Context, env event.Envelope) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO events (event_id, event_type, aggregate_id, timestamp, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (event_id) DO NOTHING`,
		env.EventID, env.EventType, env.AggregateID, env.Timestamp, env.Payload,
	)
	return err
}
