package sentiment

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
)

// Stage consumes CallTranscribed, runs an Analyzer, and produces
// SentimentAnalyzed. It is the "Sentiment" box in the pipeline diagram,
// distinct from the read-model projector that later persists the result.
type Stage struct {
	analyzer Analyzer
	producer *broker.Producer
	log      zerolog.Logger
}

func NewStage(analyzer Analyzer, producer *broker.Producer, log zerolog.Logger) *Stage {
	return &Stage{analyzer: analyzer, producer: producer, log: log}
}

func (s *Stage) Handler() broker.Handler {
	return broker.HandlerFunc(func(ctx context.Context, env event.Envelope) broker.Outcome {
		var p event.CallTranscribedPayload
		if err := env.Decode(&p); err != nil {
			return broker.Permanent("decode: " + err.Error())
		}

		start := time.Now()
		result, err := s.analyzer.Analyze(ctx, p.CallID, p)
		if err != nil {
			return broker.Retry("analyze: " + err.Error())
		}
		result.ProcessingTimeMs = time.Since(start).Milliseconds()

		out, err := event.Derive(env, event.TypeSentimentAnalyzed, result, map[string]string{"agentId": env.Metadata["agentId"]})
		if err != nil {
			return broker.Permanent("encode: " + err.Error())
		}
		if err := s.producer.Produce(ctx, event.TopicCallsSentimentAnalyzed, out); err != nil {
			return broker.Retry("produce: " + err.Error())
		}
		return broker.Ack()
	})
}
