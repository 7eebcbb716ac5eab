// Package event defines the canonical event envelope and topic contract
// shared by every stage of the call quality dossier pipeline.
package event

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Schema version of the envelope payloads this build understands.
const CurrentVersion = 1

// Event type tags. These are the values carried in Envelope.EventType.
const (
	TypeCallReceived      = "CallReceived"
	TypeCallTranscribed   = "CallTranscribed"
	TypeSentimentAnalyzed = "SentimentAnalyzed"
	TypeVocAnalyzed       = "VocAnalyzed"
	TypeCallAudited       = "CallAudited"
)

// Topic names. Fixed by the contract in spec §4.1; never derived or
// templated so every producer/consumer agrees on them at compile time.
const (
	TopicCallsReceived          = "calls.received"
	TopicCallsTranscribed       = "calls.transcribed"
	TopicCallsSentimentAnalyzed = "calls.sentiment-analyzed"
	TopicCallsVocAnalyzed       = "calls.voc-analyzed"
	TopicCallsAudited           = "calls.audited"
)

// DLQSuffix is appended to a topic name to derive its dead-letter topic.
const DLQSuffix = ".dlq"

// DLQTopic returns the dead-letter topic name for a given topic.
func DLQTopic(topic string) string {
	return topic + DLQSuffix
}

// Envelope is the immutable record carried on every topic. AggregateID is
// always the callId and doubles as the partition key (Invariant E2).
type Envelope struct {
	EventID       string            `json:"eventId"`
	EventType     string            `json:"eventType"`
	AggregateID   string            `json:"aggregateId"`
	AggregateType string            `json:"aggregateType"`
	Timestamp     time.Time         `json:"timestamp"`
	Version       int               `json:"version"`
	CausationID   string            `json:"causationId,omitempty"`
	CorrelationID string            `json:"correlationId"`
	Metadata      map[string]string `json:"metadata,omitempty"`
	Payload       json.RawMessage   `json:"payload"`
}

// AggregateTypeCall is the only aggregate type this pipeline produces today.
const AggregateTypeCall = "call"

// New creates a fresh envelope at the origin of a pipeline — Ingestion. It
// mints a new correlationId since nothing caused this event.
func New(eventType, aggregateID string, payload any, metadata map[string]string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   aggregateID,
		AggregateType: AggregateTypeCall,
		Timestamp:     time.Now().UTC(),
		Version:       CurrentVersion,
		CorrelationID: uuid.NewString(),
		Metadata:      metadata,
		Payload:       raw,
	}, nil
}

// Derive creates a new envelope caused by an existing one. It propagates
// correlationId and stamps causationId to the parent's eventId (Invariant E1).
func Derive(parent Envelope, eventType string, payload any, metadata map[string]string) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateID:   parent.AggregateID,
		AggregateType: parent.AggregateType,
		Timestamp:     time.Now().UTC(),
		Version:       CurrentVersion,
		CausationID:   parent.EventID,
		CorrelationID: parent.CorrelationID,
		Metadata:      metadata,
		Payload:       raw,
	}, nil
}

// Decode unmarshals the envelope's payload into dst.
func (e Envelope) Decode(dst any) error {
	return json.Unmarshal(e.Payload, dst)
}

// PartitionKey returns the string used as the broker partition key.
// Always the aggregateId per Invariant E2.
func (e Envelope) PartitionKey() string {
	return e.AggregateID
}
