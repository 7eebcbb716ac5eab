package alert

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/metrics"
	"github.com/snarg/call-dossier/internal/store"
)

// Dispatcher persists one notification row per (candidate, recipient) and
// attempts delivery through the Channel registered for that candidate's
// type, transitioning the row per the §4.7 state machine.
type Dispatcher struct {
	store      *store.Store
	recipients RecipientsConfig
	channels   map[string]Channel
	log        zerolog.Logger
}

func NewDispatcher(st *store.Store, recipients RecipientsConfig, channels map[string]Channel, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{store: st, recipients: recipients, channels: channels, log: log}
}

// Dispatch enqueues and attempts delivery for every recipient of c.
func (d *Dispatcher) Dispatch(ctx context.Context, c Candidate, subject, body string) error {
	channelName := ResolveChannel(c)
	ch, ok := d.channels[channelName]
	if !ok {
		d.log.Error().Str("channel", channelName).Msg("no channel implementation registered")
		return nil
	}

	for _, recipient := range Recipients(d.recipients, c) {
		id := uuid.NewString()
		if err := d.store.InsertNotification(ctx, store.Notification{
			ID:               id,
			CallID:           c.CallID,
			NotificationType: c.NotificationType,
			Recipient:        recipient,
			Channel:          channelName,
			Subject:          subject,
			Body:             body,
			Priority:         c.Priority,
		}); err != nil {
			return err
		}

		if err := ch.Send(ctx, Delivery{Recipient: recipient, Subject: subject, Body: body}); err != nil {
			reason := err.Error()
			if err == ErrInvalidRecipient {
				reason = "invalid_recipient"
			}
			metrics.AlertsDispatchedTotal.WithLabelValues(channelName, "failed").Inc()
			if markErr := d.store.MarkFailed(ctx, id, reason); markErr != nil {
				return markErr
			}
			continue
		}
		metrics.AlertsDispatchedTotal.WithLabelValues(channelName, "sent").Inc()
		if err := d.store.MarkSent(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Resend resets a failed notification to pending and re-attempts delivery
// through its original channel.
func (d *Dispatcher) Resend(ctx context.Context, notificationID string) error {
	n, err := d.store.GetNotification(ctx, notificationID)
	if err != nil {
		return err
	}
	if n == nil {
		return nil
	}
	if err := d.store.Resend(ctx, notificationID); err != nil {
		return err
	}

	ch, ok := d.channels[n.Channel]
	if !ok {
		return nil
	}
	if err := ch.Send(ctx, Delivery{Recipient: n.Recipient, Subject: n.Subject, Body: n.Body}); err != nil {
		reason := err.Error()
		if err == ErrInvalidRecipient {
			reason = "invalid_recipient"
		}
		return d.store.MarkFailed(ctx, notificationID, reason)
	}
	return d.store.MarkSent(ctx, notificationID)
}
