package aggregate

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/snarg/call-dossier/internal/store"
)

// DirectAggregator updates the agent_performance row inline per event,
// with no buffer — the simpler alternative path spec §4.6 permits.
// A deployment picks buffered or direct per metric, never both
// (config.Validate enforces a single mode for the whole deployment).
type DirectAggregator struct {
	redis    *redis.Client
	store    *store.Store
	dedupTTL time.Duration
	log      zerolog.Logger
}

func NewDirectAggregator(r *redis.Client, st *store.Store, dedupTTL time.Duration, log zerolog.Logger) *DirectAggregator {
	return &DirectAggregator{redis: r, store: st, dedupTTL: dedupTTL, log: log}
}

// Observe merges a single observation into the durable row immediately,
// after the same eventId dedup check the buffered path uses.
func (a *DirectAggregator) Observe(ctx context.Context, eventID, agentID string, at time.Time, obs Observation) error {
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

	bucket := Fold([]Observation{obs})
	err = a.store.MergeAgentPerformance(ctx, store.AgentPerformancePartial{
		AgentID:               agentID,
		HourSlot:              hourSlot(at),
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
	})
	if err != nil {
		// Not counted: drop the dedup marker so a redelivery is merged.
		a.redis.Del(ctx, dedupKey(eventID))
	}
	return err
}
