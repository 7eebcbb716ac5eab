// Package sentiment defines the collaborator interface the sentiment
// analysis stage consumes. Real ML backends are external infrastructure
// (spec §1); this package ships one deterministic stub used by tests and
// local runs, mirroring the teacher's transcribe.Provider seam.
package sentiment

import (
	"context"

	"github.com/snarg/call-dossier/internal/event"
)

// Analyzer scores one transcribed call for sentiment.
type Analyzer interface {
	Analyze(ctx context.Context, callID string, transcript event.CallTranscribedPayload) (event.SentimentAnalyzedPayload, error)
	Name() string
}
