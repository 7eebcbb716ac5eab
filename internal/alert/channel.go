package alert

import "context"

// Delivery is one rendered notification ready to hand to a Channel.
type Delivery struct {
	Recipient string
	Subject   string
	Body      string
}

// Channel delivers one notification. An implementation validates its
// channel-specific recipient format (email address, URL) in Send and
// returns ErrInvalidRecipient when it fails; the Dispatcher then marks the
// already-inserted row failed with reason invalid_recipient and does not
// retry it.
type Channel interface {
	Send(ctx context.Context, d Delivery) error
}
