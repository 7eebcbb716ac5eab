// Package correlate implements the audit stage's join engine (C4): it
// buffers partial per-call triples of {transcription, sentiment, voc} and
// releases a fused context to the scorer once all three have arrived.
package correlate

import (
	"context"
	"sync"
	"time"

	"github.com/snarg/call-dossier/internal/event"
	"github.com/snarg/call-dossier/internal/metrics"
)

// Engine is the join-engine seam the audit stage depends on, letting a
// deployment pick the in-memory Correlator or the durable RedisCorrelator
// (spec §4.4's alternative strategy / §9's restart-survival open question)
// without the stage caring which.
type Engine interface {
	ObserveTranscript(ctx context.Context, callID, correlationID, agentID string, p event.CallTranscribedPayload) (Fused, bool, error)
	ObserveSentiment(ctx context.Context, callID, correlationID, agentID string, p event.SentimentAnalyzedPayload) (Fused, bool, error)
	ObserveVoc(ctx context.Context, callID, correlationID, agentID string, p event.VocAnalyzedPayload) (Fused, bool, error)
}

// Fused is the complete triple the scorer needs for one call.
type Fused struct {
	CallID        string
	CorrelationID string
	AgentID       string
	Transcript    event.CallTranscribedPayload
	Sentiment     event.SentimentAnalyzedPayload
	Voc           event.VocAnalyzedPayload
}

type partial struct {
	transcript    *event.CallTranscribedPayload
	sentiment     *event.SentimentAnalyzedPayload
	voc           *event.VocAnalyzedPayload
	correlationID string
	agentID       string
	deadline      time.Time
}

func (p *partial) complete() bool {
	return p.transcript != nil && p.sentiment != nil && p.voc != nil
}

// Correlator is the in-memory partial-triple map, mirroring the shape of
// the teacher's mutex-guarded activeCallMap.
type Correlator struct {
	mu       sync.Mutex
	partials map[string]*partial
	released map[string]time.Time // callId -> when we released, guards against a late duplicate re-releasing

	partialTTL      time.Duration
	releasedTTL     time.Duration
	onGap           func(callID string)
}

// New builds a Correlator. partialTTL is the deadline past which an
// incomplete entry is evicted and reported as a pipeline gap (spec
// recommends 2x expected pipeline latency).
func New(partialTTL time.Duration, onGap func(callID string)) *Correlator {
	if onGap == nil {
		onGap = func(string) {}
	}
	return &Correlator{
		partials:    make(map[string]*partial),
		released:    make(map[string]time.Time),
		partialTTL:  partialTTL,
		releasedTTL: partialTTL,
		onGap:       onGap,
	}
}

// ObserveTranscript stores a CallTranscribed payload in its slot. If this
// completes the triple and the call hasn't already been released, it
// returns the fused context and the entry is deleted (C4.1). agentID comes
// from the envelope's metadata map, not the payload. ctx is unused by the
// in-memory implementation; it exists so Correlator satisfies Engine
// alongside the redis-backed alternative.
func (c *Correlator) ObserveTranscript(ctx context.Context, callID, correlationID, agentID string, p event.CallTranscribedPayload) (Fused, bool, error) {
	fused, ready := c.observe(callID, correlationID, agentID, func(e *partial) { e.transcript = &p })
	return fused, ready, nil
}

// ObserveSentiment stores a SentimentAnalyzed payload in its slot.
func (c *Correlator) ObserveSentiment(ctx context.Context, callID, correlationID, agentID string, p event.SentimentAnalyzedPayload) (Fused, bool, error) {
	fused, ready := c.observe(callID, correlationID, agentID, func(e *partial) { e.sentiment = &p })
	return fused, ready, nil
}

// ObserveVoc stores a VocAnalyzed payload in its slot.
func (c *Correlator) ObserveVoc(ctx context.Context, callID, correlationID, agentID string, p event.VocAnalyzedPayload) (Fused, bool, error) {
	fused, ready := c.observe(callID, correlationID, agentID, func(e *partial) { e.voc = &p })
	return fused, ready, nil
}

func (c *Correlator) observe(callID, correlationID, agentID string, set func(*partial)) (Fused, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, already := c.released[callID]; already {
		// Audit already produced for this call; a redelivered upstream
		// event is a late duplicate. Idempotency downstream handles it too,
		// but we avoid re-fusing or leaking a partial here.
		return Fused{}, false
	}

	e, ok := c.partials[callID]
	if !ok {
		e = &partial{correlationID: correlationID, deadline: time.Now().Add(c.partialTTL)}
		c.partials[callID] = e
	}
	if agentID != "" {
		e.agentID = agentID
	}
	set(e)

	if !e.complete() {
		metrics.CorrelatorPartialsOpen.Set(float64(len(c.partials)))
		return Fused{}, false
	}

	delete(c.partials, callID)
	c.released[callID] = time.Now()
	metrics.CorrelatorPartialsOpen.Set(float64(len(c.partials)))

	return Fused{
		CallID:        callID,
		CorrelationID: e.correlationID,
		AgentID:       e.agentID,
		Transcript:    *e.transcript,
		Sentiment:     *e.sentiment,
		Voc:           *e.voc,
	}, true
}

// EvictStale scans for partial entries past their deadline, removes them,
// and reports each as a pipeline gap (C4.2). Returns the number evicted.
func (c *Correlator) EvictStale() int {
	c.mu.Lock()
	now := time.Now()
	var expired []string
	for callID, e := range c.partials {
		if now.After(e.deadline) {
			expired = append(expired, callID)
		}
	}
	for _, callID := range expired {
		delete(c.partials, callID)
	}
	var releasedExpired []string
	for callID, at := range c.released {
		if now.Sub(at) > c.releasedTTL {
			releasedExpired = append(releasedExpired, callID)
		}
	}
	for _, callID := range releasedExpired {
		delete(c.released, callID)
	}
	metrics.CorrelatorPartialsOpen.Set(float64(len(c.partials)))
	c.mu.Unlock()

	for _, callID := range expired {
		metrics.CorrelatorGapsTotal.Inc()
		c.onGap(callID)
	}
	return len(expired)
}

// RunEvictionLoop runs EvictStale on a ticker until stop is closed,
// mirroring the teacher's affiliationEvictionLoop/dedupCleanupLoop shape.
func (c *Correlator) RunEvictionLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.EvictStale()
		case <-stop:
			return
		}
	}
}

// Len reports the number of in-flight partial entries (observability).
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.partials)
}
