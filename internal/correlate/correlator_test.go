package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snarg/call-dossier/internal/event"
)

func TestCorrelator_ReleasesOnThirdObservation(t *testing.T) {
	c := New(time.Minute, nil)
	ctx := context.Background()

	_, ready, err := c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{CallID: "call-1"})
	require.NoError(t, err)
	assert.False(t, ready)

	_, ready, err = c.ObserveSentiment(ctx, "call-1", "corr-1", "agent-1", event.SentimentAnalyzedPayload{CallID: "call-1"})
	require.NoError(t, err)
	assert.False(t, ready)

	fused, ready, err := c.ObserveVoc(ctx, "call-1", "corr-1", "agent-1", event.VocAnalyzedPayload{CallID: "call-1"})
	require.NoError(t, err)
	require.True(t, ready)
	assert.Equal(t, "call-1", fused.CallID)
	assert.Equal(t, "corr-1", fused.CorrelationID)
	assert.Equal(t, "agent-1", fused.AgentID)
	assert.Equal(t, 0, c.Len())
}

func TestCorrelator_OrderIndependent(t *testing.T) {
	c := New(time.Minute, nil)
	ctx := context.Background()

	_, ready, _ := c.ObserveVoc(ctx, "call-1", "corr-1", "agent-1", event.VocAnalyzedPayload{CallID: "call-1"})
	assert.False(t, ready)
	_, ready, _ = c.ObserveSentiment(ctx, "call-1", "corr-1", "agent-1", event.SentimentAnalyzedPayload{CallID: "call-1"})
	assert.False(t, ready)
	fused, ready, _ := c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{CallID: "call-1"})
	require.True(t, ready)
	assert.Equal(t, "call-1", fused.CallID)
}

func TestCorrelator_LateDuplicateAfterReleaseDoesNotRefuse(t *testing.T) {
	c := New(time.Minute, nil)
	ctx := context.Background()

	c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{})
	c.ObserveSentiment(ctx, "call-1", "corr-1", "agent-1", event.SentimentAnalyzedPayload{})
	_, ready, _ := c.ObserveVoc(ctx, "call-1", "corr-1", "agent-1", event.VocAnalyzedPayload{})
	require.True(t, ready)

	// A redelivered transcript for the same call after release must not
	// re-fuse or leak a new partial entry.
	fused, ready, err := c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{})
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Equal(t, Fused{}, fused)
	assert.Equal(t, 0, c.Len())
}

func TestCorrelator_EvictStaleReportsGap(t *testing.T) {
	var evicted []string
	c := New(time.Millisecond, func(callID string) { evicted = append(evicted, callID) })
	ctx := context.Background()

	c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{})
	time.Sleep(5 * time.Millisecond)

	n := c.EvictStale()

	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"call-1"}, evicted)
	assert.Equal(t, 0, c.Len())
}

func TestCorrelator_EvictStaleIgnoresFreshPartials(t *testing.T) {
	c := New(time.Minute, nil)
	ctx := context.Background()

	c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{})

	n := c.EvictStale()

	assert.Equal(t, 0, n)
	assert.Equal(t, 1, c.Len())
}

func TestCorrelator_DifferentCallsAreIndependent(t *testing.T) {
	c := New(time.Minute, nil)
	ctx := context.Background()

	c.ObserveTranscript(ctx, "call-1", "corr-1", "agent-1", event.CallTranscribedPayload{})
	c.ObserveTranscript(ctx, "call-2", "corr-2", "agent-2", event.CallTranscribedPayload{})

	assert.Equal(t, 2, c.Len())
}
