package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap-dashboard/sigap-api/internal/repository"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

func newTestCache(t *testing.T, ttl time.Duration) (*repository.AnalyticsCache, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return repository.NewAnalyticsCache(client, ttl), mr
}

func sampleResult() model.AnalyticsResult {
	ts := time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)
	inc := model.FlatIncident{
		Incident:     model.Incident{ID: "a", Category: "Theft", Status: "resolved", Timestamp: &ts},
		DistrictID:   "d1",
		DistrictName: "Sumbersari",
	}
	return model.AnalyticsResult{
		TotalIncidents:         1,
		RecentIncidents:        []model.FlatIncident{inc},
		FilteredIncidents:      []model.FlatIncident{inc},
		CategoryCounts:         map[string]int{"Theft": 1},
		Districts:              map[string]int{"Sumbersari": 1},
		IncidentsByMonth:       [12]int{2: 1},
		ClearanceRate:          100,
		IncidentsByMonthDetail: map[string][]model.FlatIncident{"2024-3": {inc}},
		AvailableMonths:        []string{"2024-3"},
	}
}

func TestAnalyticsCache_RoundTrip(t *testing.T) {
	cache, _ := newTestCache(t, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Set(ctx, "k1", sampleResult()))

	got, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 1, got.TotalIncidents)
	assert.Equal(t, 100, got.ClearanceRate)
	assert.Equal(t, [12]int{2: 1}, got.IncidentsByMonth)
	assert.Equal(t, []string{"2024-3"}, got.AvailableMonths)
	require.Len(t, got.IncidentsByMonthDetail["2024-3"], 1)
	assert.Equal(t, "d1", got.IncidentsByMonthDetail["2024-3"][0].DistrictID)
}

func TestAnalyticsCache_Expires(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "k1", sampleResult()))
	mr.FastForward(2 * time.Minute)

	_, ok, err := cache.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAnalyticsCache_InvalidateAll(t *testing.T) {
	cache, mr := newTestCache(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))
	for _, k := range []string{"k1", "k2", "k3"} {
		require.NoError(t, cache.Set(ctx, k, sampleResult()))
	}

	require.NoError(t, cache.InvalidateAll(ctx))

	for _, k := range []string{"k1", "k2", "k3"} {
		_, ok, err := cache.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok, k)
	}
	assert.True(t, mr.Exists("other:key"))
}
