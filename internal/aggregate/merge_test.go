package aggregate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestMergeAvg_BothPopulated(t *testing.T) {
	merged, n := MergeAvg(floatPtr(0.8), 4, floatPtr(0.4), 2)
	require.NotNil(t, merged)
	assert.InDelta(t, (0.8*4+0.4*2)/6, *merged, 1e-9)
	assert.Equal(t, 6, n)
}

func TestMergeAvg_FirstEmpty(t *testing.T) {
	merged, n := MergeAvg(nil, 0, floatPtr(0.5), 3)
	require.NotNil(t, merged)
	assert.Equal(t, 0.5, *merged)
	assert.Equal(t, 3, n)
}

func TestMergeAvg_SecondEmpty(t *testing.T) {
	merged, n := MergeAvg(floatPtr(0.5), 3, nil, 0)
	require.NotNil(t, merged)
	assert.Equal(t, 0.5, *merged)
	assert.Equal(t, 3, n)
}

func TestMergeAvg_BothEmpty(t *testing.T) {
	merged, n := MergeAvg(nil, 0, nil, 0)
	assert.Nil(t, merged)
	assert.Equal(t, 0, n)
}

func TestFold_MixedObservations(t *testing.T) {
	obs := []Observation{
		{Quality: floatPtr(0.9), Sentiment: floatPtr(0.5)},
		{Quality: floatPtr(0.7), ChurnRisk: floatPtr(0.3)},
		{Satisfaction: floatPtr(1.0)},
	}

	b := Fold(obs)

	assert.Equal(t, 3, b.Count)
	require.NotNil(t, b.AvgQuality)
	assert.InDelta(t, 0.8, *b.AvgQuality, 1e-9)
	assert.Equal(t, 2, b.NQuality)
	require.NotNil(t, b.AvgSentiment)
	assert.Equal(t, 0.5, *b.AvgSentiment)
	assert.Equal(t, 1, b.NSentiment)
	require.NotNil(t, b.AvgSatisfaction)
	assert.Equal(t, 1.0, *b.AvgSatisfaction)
	assert.Equal(t, 1, b.NSatisfaction)
	require.NotNil(t, b.AvgChurnRisk)
	assert.Equal(t, 0.3, *b.AvgChurnRisk)
	assert.Equal(t, 1, b.NChurnRisk)
	assert.Nil(t, b.AvgCompliancePassRate)
	assert.Equal(t, 0, b.NCompliancePassRate)
}

func TestFold_PerMetricCountsAreIndependentOfSharedCount(t *testing.T) {
	obs := []Observation{
		{Quality: floatPtr(0.9)},
		{Quality: floatPtr(0.7)},
		{Sentiment: floatPtr(-0.2)},
	}

	b := Fold(obs)

	assert.Equal(t, 3, b.Count)
	assert.Equal(t, 2, b.NQuality)
	assert.InDelta(t, 0.8, *b.AvgQuality, 1e-9)
	assert.Equal(t, 1, b.NSentiment)
	assert.InDelta(t, -0.2, *b.AvgSentiment, 1e-9)
}

func TestFold_Empty(t *testing.T) {
	b := Fold(nil)
	assert.Equal(t, 0, b.Count)
	assert.Nil(t, b.AvgQuality)
	assert.Equal(t, 0, b.NQuality)
}
