package correlate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/snarg/call-dossier/internal/event"
)

// RedisCorrelator is the durable-store alternative to Correlator (spec
// §4.4's "Alternative strategy" / §9's "back the map with a durable
// key-value store so restarts do not re-wait a TTL"). It stores each
// partial as a Redis hash under a per-call key with a TTL, so a process
// restart rebuilds from what's already observed instead of starting over.
//
// A deployment picks exactly one of Correlator or RedisCorrelator; the two
// are never mixed for the same consumer group.
type RedisCorrelator struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCorrelator(client *redis.Client, ttl time.Duration) *RedisCorrelator {
	return &RedisCorrelator{client: client, ttl: ttl}
}

func (c *RedisCorrelator) key(callID string) string {
	return fmt.Sprintf("correlate:%s", callID)
}

func (c *RedisCorrelator) releasedKey(callID string) string {
	return fmt.Sprintf("correlate:released:%s", callID)
}

// Observe stores payload under field (one of "transcript", "sentiment",
// "voc") and returns the fused triple once all three fields are present.
func (c *RedisCorrelator) Observe(ctx context.Context, callID, correlationID, agentID, field string, payload any) (Fused, bool, error) {
	released, err := c.client.Exists(ctx, c.releasedKey(callID)).Result()
	if err != nil {
		return Fused{}, false, err
	}
	if released == 1 {
		return Fused{}, false, nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return Fused{}, false, err
	}

	key := c.key(callID)
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, field, raw, "correlationId", correlationID)
	if agentID != "" {
		pipe.HSet(ctx, key, "agentId", agentID)
	}
	pipe.Expire(ctx, key, c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Fused{}, false, err
	}

	vals, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return Fused{}, false, err
	}
	tRaw, hasT := vals["transcript"]
	sRaw, hasS := vals["sentiment"]
	vRaw, hasV := vals["voc"]
	if !hasT || !hasS || !hasV {
		return Fused{}, false, nil
	}

	var fused Fused
	fused.CallID = callID
	fused.CorrelationID = vals["correlationId"]
	fused.AgentID = vals["agentId"]
	if err := json.Unmarshal([]byte(tRaw), &fused.Transcript); err != nil {
		return Fused{}, false, err
	}
	if err := json.Unmarshal([]byte(sRaw), &fused.Sentiment); err != nil {
		return Fused{}, false, err
	}
	if err := json.Unmarshal([]byte(vRaw), &fused.Voc); err != nil {
		return Fused{}, false, err
	}

	pipe = c.client.TxPipeline()
	pipe.Del(ctx, key)
	pipe.Set(ctx, c.releasedKey(callID), "1", c.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return Fused{}, false, err
	}

	return fused, true, nil
}

func (c *RedisCorrelator) ObserveTranscript(ctx context.Context, callID, correlationID, agentID string, p event.CallTranscribedPayload) (Fused, bool, error) {
	return c.Observe(ctx, callID, correlationID, agentID, "transcript", p)
}

func (c *RedisCorrelator) ObserveSentiment(ctx context.Context, callID, correlationID, agentID string, p event.SentimentAnalyzedPayload) (Fused, bool, error) {
	return c.Observe(ctx, callID, correlationID, agentID, "sentiment", p)
}

func (c *RedisCorrelator) ObserveVoc(ctx context.Context, callID, correlationID, agentID string, p event.VocAnalyzedPayload) (Fused, bool, error) {
	return c.Observe(ctx, callID, correlationID, agentID, "voc", p)
}
