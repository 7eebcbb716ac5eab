package broker

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/metrics"
)

// Producer wraps a kafka.Writer configured for durable accept:
// RequiredAcks=RequireAll so a caller's Produce does not return until the
// broker has durably accepted the message.
type Producer struct {
	writer *kafka.Writer
	log    zerolog.Logger
}

// NewProducer builds a Producer bound to the given brokers. Topic is left
// unset on the writer so one Producer can write to any topic (DLQ siblings
// included) by specifying it per-message.
func NewProducer(brokers []string, log zerolog.Logger) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
		},
		log: log,
	}
}

// Produce marshals env and writes it to topic, keyed by the envelope's
// partition key (the callId), satisfying Invariant E2.
func (p *Producer) Produce(ctx context.Context, topic string, env event.Envelope) error {
	payload, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(env.PartitionKey()),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "correlationId", Value: []byte(env.CorrelationID)},
		},
	}); err != nil {
		return err
	}
	metrics.EventsProducedTotal.WithLabelValues(topic).Inc()
	return nil
}

// WriteRaw writes an already-serialized message verbatim to topic (used
// by the consumer runtime to forward unparseable or exhausted-retry
// payloads to a DLQ topic unchanged).
func (p *Producer) WriteRaw(ctx context.Context, topic string, key, value []byte, headers map[string]string) error {
	kh := make([]kafka.Header, 0, len(headers))
	for k, v := range headers {
		kh = append(kh, kafka.Header{Key: k, Value: []byte(v)})
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic:   topic,
		Key:     key,
		Value:   value,
		Headers: kh,
	})
}

// Close flushes and closes the underlying writer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
