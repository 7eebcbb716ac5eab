package broker

import (
	"context"

	"github.com/snarg/call-dossier/internal/event"
)

// Handler processes one envelope off a partition and reports how the
// runtime should acknowledge it. Implementations MUST be idempotent:
// the runtime guarantees at-least-once delivery, not exactly-once.
type Handler interface {
	Handle(ctx context.Context, env event.Envelope) Outcome
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, env event.Envelope) Outcome

func (f HandlerFunc) Handle(ctx context.Context, env event.Envelope) Outcome {
	return f(ctx, env)
}
