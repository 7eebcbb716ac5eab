package alert

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
)

// EmailChannel logs the rendered message instead of relaying through SMTP.
// An actual mail relay is external infrastructure (spec §1's "out of
// scope: infrastructure wiring"); this stub gives the dispatcher a
// complete, testable channel in its place.
type EmailChannel struct {
	log zerolog.Logger
}

func NewEmailChannel(log zerolog.Logger) *EmailChannel {
	return &EmailChannel{log: log}
}

func (c *EmailChannel) Send(ctx context.Context, d Delivery) error {
	if !strings.Contains(d.Recipient, "@") {
		return ErrInvalidRecipient
	}
	c.log.Info().
		Str("recipient", d.Recipient).
		Str("subject", d.Subject).
		Msg("email notification sent")
	return nil
}
