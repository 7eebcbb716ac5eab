// Package voc defines the collaborator interface the Voice-of-Customer
// analysis stage consumes. Mirrors internal/sentiment's seam: one
// deterministic stub backs local runs and tests; a real NLU service is
// wired by implementing the same interface.
package voc

import (
	"context"

	"github.com/snarg/call-dossier/internal/event"
)

// Analyzer extracts intent, topics, and actionable items from a call's transcript.
type Analyzer interface {
	Analyze(ctx context.Context, callID string, transcript event.CallTranscribedPayload) (event.VocAnalyzedPayload, error)
	Name() string
}
