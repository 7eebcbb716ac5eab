package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/store"
)

type liveBucket struct {
	agentID string
	slot    time.Time
}

// BufferedAggregator accumulates observations in Redis, keyed by
// (agentId, hourKey), and periodically folds + merges them into the
// durable agent_performance row. Per-eventId dedup uses a Redis
// SET key EX ttl NX so a redelivered event is a no-op (spec §4.6).
//
// It tracks which (agentId,hourSlot) buckets currently have buffered
// observations in a small in-memory set, so a periodic flush can target
// exactly those buckets instead of a Redis KEYS/SCAN sweep.
type BufferedAggregator struct {
	redis    *redis.Client
	store    *store.Store
	dedupTTL time.Duration
	log      zerolog.Logger

	mu   sync.Mutex
	live map[string]liveBucket
}

func NewBufferedAggregator(r *redis.Client, st *store.Store, dedupTTL time.Duration, log zerolog.Logger) *BufferedAggregator {
	return &BufferedAggregator{redis: r, store: st, dedupTTL: dedupTTL, log: log, live: make(map[string]liveBucket)}
}

func bufferKey(agentID string, hourSlot time.Time) string {
	return fmt.Sprintf("aggregate:buffer:%s:%s", agentID, hourSlot.Format("2006-01-02T15"))
}

func dedupKey(eventID string) string {
	return "aggregate:dedup:" + eventID
}

// hourSlot truncates t to hour granularity.
func hourSlot(t time.Time) time.Time {
	return t.Truncate(time.Hour)
}

// Buffer records one observation for (agentId, hourSlot derived from at),
// skipping cleanly if eventID has already been counted (duplicate
// suppression) or if agentId is empty (spec's "missing agentId... skips
// the observation cleanly" boundary case).
func (a *BufferedAggregator) Buffer(ctx context.Context, eventID, agentID string, at time.Time, obs Observation) error {
	if agentID == "" {
		a.log.Debug().Str("event_id", eventID).Msg("missing agentId, skipping observation")
		return nil
	}

	set, err := a.redis.SetNX(ctx, dedupKey(eventID), "1", a.dedupTTL).Result()
	if err != nil {
		return err
	}
	if !set {
		a.log.Debug().Str("event_id", eventID).Msg("duplicate event, skipping observation")
		return nil
	}

	raw, err := json.Marshal(obs)
	if err != nil {
		return err
	}
	slot := hourSlot(at)
	if err := a.redis.RPush(ctx, bufferKey(agentID, slot), raw).Err(); err != nil {
		// Not counted: drop the dedup marker so a redelivery is buffered.
		a.redis.Del(ctx, dedupKey(eventID))
		return err
	}

	a.mu.Lock()
	a.live[bufferKey(agentID, slot)] = liveBucket{agentID: agentID, slot: slot}
	a.mu.Unlock()
	return nil
}

// FlushAll flushes every bucket currently tracked as live, clearing each
// from the live set once flushed.
func (a *BufferedAggregator) FlushAll(ctx context.Context) error {
	a.mu.Lock()
	targets := make([]liveBucket, 0, len(a.live))
	for k, b := range a.live {
		targets = append(targets, b)
		delete(a.live, k)
	}
	a.mu.Unlock()

	var firstErr error
	for _, b := range targets {
		if err := a.Flush(ctx, b.agentID, b.slot); err != nil {
			a.log.Error().Err(err).Str("agent_id", b.agentID).Msg("flush failed")
			// Keep the bucket live so the next flush retries it.
			a.mu.Lock()
			a.live[bufferKey(b.agentID, b.slot)] = b
			a.mu.Unlock()
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// RunFlushLoop calls FlushAll on a ticker until stop is closed.
func (a *BufferedAggregator) RunFlushLoop(ctx context.Context, period time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := a.FlushAll(ctx); err != nil {
				a.log.Error().Err(err).Msg("periodic flush encountered errors")
			}
		case <-stop:
			return
		}
	}
}

// Flush folds and merges the buffered observations for one bucket.
func (a *BufferedAggregator) Flush(ctx context.Context, agentID string, slot time.Time) error {
	key := bufferKey(agentID, slot)

	raws, err := a.redis.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}
	if len(raws) == 0 {
		return nil
	}

	obs := make([]Observation, 0, len(raws))
	for _, raw := range raws {
		var o Observation
		if err := json.Unmarshal([]byte(raw), &o); err != nil {
			a.log.Warn().Err(err).Msg("malformed buffered observation, skipping")
			continue
		}
		obs = append(obs, o)
	}

	bucket := Fold(obs)
	if err := a.store.MergeAgentPerformance(ctx, store.AgentPerformancePartial{
		AgentID:               agentID,
		HourSlot:              slot,
		Count:                 bucket.Count,
		AvgQuality:            bucket.AvgQuality,
		NQuality:              bucket.NQuality,
		AvgSentiment:          bucket.AvgSentiment,
		NSentiment:            bucket.NSentiment,
		AvgSatisfaction:       bucket.AvgSatisfaction,
		NSatisfaction:         bucket.NSatisfaction,
		AvgCompliancePassRate: bucket.AvgCompliancePassRate,
		NCompliancePassRate:   bucket.NCompliancePassRate,
		AvgChurnRisk:          bucket.AvgChurnRisk,
		NChurnRisk:            bucket.NChurnRisk,
	}); err != nil {
		return err
	}

	return a.redis.Del(ctx, key).Err()
}
