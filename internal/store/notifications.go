package store

import (
	"context"
	"time"
)

// Notification status values, matching the §4.7 state machine.
const (
	NotificationPending = "pending"
	NotificationSent    = "sent"
	NotificationFailed  = "failed"
)

// Notification is one recipient's delivery attempt for one alert.
type Notification struct {
	ID               string
	CallID           string
	NotificationType string
	Recipient        string
	Channel          string
	Subject          string
	Body             string
	Priority         string
	Status           string
	SentAt           *time.Time
	ErrorMessage     string
	CreatedAt        time.Time
}

// InsertNotification creates a notification row in pending status.
func (s *Store) InsertNotification(ctx context.Context, n Notification) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO notifications (id, call_id, notification_type, recipient, channel,
			subject, body, priority, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		n.ID, n.CallID, n.NotificationType, n.Recipient, n.Channel,
		n.Subject, n.Body, n.Priority, NotificationPending,
	)
	return err
}

// MarkSent transitions a notification to sent.
func (s *Store) MarkSent(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE notifications SET status = $2, sent_at = now(), error_message = NULL WHERE id = $1`,
		id, NotificationSent,
	)
	return err
}

// MarkFailed transitions a notification to failed with a reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE notifications SET status = $2, error_message = $3 WHERE id = $1`,
		id, NotificationFailed, reason,
	)
	return err
}

// Resend resets a failed notification back to pending for re-attempt.
func (s *Store) Resend(ctx context.Context, id string) error {
	_, err := s.Pool.Exec(ctx,
		`UPDATE notifications SET status = $2, error_message = NULL WHERE id = $1 AND status = $3`,
		id, NotificationPending, NotificationFailed,
	)
	return err
}

// GetNotification returns a single notification by id.
func (s *Store) GetNotification(ctx context.Context, id string) (*Notification, error) {
	var n Notification
	n.ID = id
	err := s.Pool.QueryRow(ctx, `
		SELECT call_id, notification_type, recipient, channel, subject, body, priority,
			status, sent_at, error_message, created_at
		FROM notifications WHERE id = $1`, id,
	).Scan(&n.CallID, &n.NotificationType, &n.Recipient, &n.Channel, &n.Subject, &n.Body,
		&n.Priority, &n.Status, &n.SentAt, &n.ErrorMessage, &n.CreatedAt)
	if err != nil {
		return nil, noRowsToNil(err)
	}
	return &n, nil
}
