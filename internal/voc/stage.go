package voc

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/broker"
	"github.com/snarg/call-dossier/internal/event"
)

// Stage consumes CallTranscribed, runs an Analyzer, and produces
// VocAnalyzed. Parallels internal/sentiment's Stage; the two read the
// same input topic and run independently (spec §4.4's three-way fan-in).
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

		result, err := s.analyzer.Analyze(ctx, p.CallID, p)
		if err != nil {
			return broker.Retry("analyze: " + err.Error())
		}

		out, err := event.Derive(env, event.TypeVocAnalyzed, result, map[string]string{"agentId": env.Metadata["agentId"]})
		if err != nil {
			return broker.Permanent("encode: " + err.Error())
		}
		if err := s.producer.Produce(ctx, event.TopicCallsVocAnalyzed, out); err != nil {
			return broker.Retry("produce: " + err.Error())
		}
		return broker.Ack()
	})
}
