package store

import "context"

// Call status values.
const (
	CallStatusReceived = "received"
)

// InsertCall records a newly ingested call before CallReceived is produced.
func (s *Store) InsertCall(ctx context.Context, callID, callerID, agentID, channel string) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO calls (call_id, caller_id, agent_id, channel, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (call_id) DO NOTHING`,
		callID, callerID, agentID, channel, CallStatusReceived,
	)
	return err
}
