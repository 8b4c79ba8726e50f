package analytics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

type fakeSource struct {
	groups []model.CrimeGroup
	err    error
	calls  int
	last   model.CrimeQuery
}

func (f *fakeSource) List(ctx context.Context, q model.CrimeQuery) ([]model.CrimeGroup, error) {
	f.calls++
	f.last = q
	return f.groups, f.err
}

type fakeCache struct {
	entries     map[string]model.AnalyticsResult
	gets, sets  int
	invalidated int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: map[string]model.AnalyticsResult{}}
}

func (f *fakeCache) Get(ctx context.Context, key string) (model.AnalyticsResult, bool, error) {
	f.gets++
	r, ok := f.entries[key]
	return r, ok, nil
}

func (f *fakeCache) Set(ctx context.Context, key string, r model.AnalyticsResult) error {
	f.sets++
	f.entries[key] = r
	return nil
}

func (f *fakeCache) InvalidateAll(ctx context.Context) error {
	f.invalidated++
	f.entries = map[string]model.AnalyticsResult{}
	return nil
}

type fakeSnapshots struct {
	saved []model.DashboardSnapshot
}

func (f *fakeSnapshots) SaveSnapshot(ctx context.Context, snap model.DashboardSnapshot) error {
	f.saved = append(f.saved, snap)
	return nil
}

func (f *fakeSnapshots) GetSnapshot(ctx context.Context) (model.DashboardSnapshot, error) {
	if len(f.saved) == 0 {
		return model.DashboardSnapshot{}, errors.New("no snapshot")
	}
	return f.saved[len(f.saved)-1], nil
}

type countingRecorder struct {
	hits, misses map[string]int
	aggregations int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{hits: map[string]int{}, misses: map[string]int{}}
}

func (r *countingRecorder) ObserveAggregation(string, time.Duration, int) { r.aggregations++ }
func (r *countingRecorder) CacheLookup(layer string, hit bool) {
	if hit {
		r.hits[layer]++
		return
	}
	r.misses[layer]++
}

func serviceFixture() []model.CrimeGroup {
	return []model.CrimeGroup{{
		DistrictID:    "d1",
		DistrictName:  "Sumbersari",
		NumberOfCrime: 2,
		Incidents: []model.Incident{
			{ID: "a", Category: "Theft", Status: "resolved", Timestamp: at("2024-03-20T00:00:00Z")},
			{ID: "b", Category: "Assault", Status: "open", Timestamp: at("2024-02-01T00:00:00Z")},
		},
	}}
}

func newTestService(src CrimeSource, cache ResultCache, snaps SnapshotStore, rec Recorder) *Service {
	cfg := Config{Recorder: rec, Location: time.UTC, Clock: func() time.Time { return fixedNow }}
	if cache != nil {
		cfg.Cache = cache
	}
	if snaps != nil {
		cfg.Snapshots = snaps
	}
	return NewService(src, cfg)
}

func TestService_AnalyticsMemoizesOnContent(t *testing.T) {
	src := &fakeSource{groups: serviceFixture()}
	rec := newCountingRecorder()
	svc := newTestService(src, nil, nil, rec)
	ctx := context.Background()

	first, err := svc.Analytics(ctx, model.CrimeQuery{DistrictID: "d1"}, "")
	require.NoError(t, err)
	second, err := svc.Analytics(ctx, model.CrimeQuery{DistrictID: "d1"}, "")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, rec.aggregations)
	assert.Equal(t, 1, rec.hits["memo"])
	assert.Equal(t, 2, src.calls)
	assert.Equal(t, "d1", src.last.DistrictID)
	assert.Equal(t, 50, first.ClearanceRate)

	// A different filter is a different input.
	_, err = svc.Analytics(ctx, model.CrimeQuery{}, "Theft")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.aggregations)
}

func TestService_AnalyticsRecomputesWhenContentChanges(t *testing.T) {
	src := &fakeSource{groups: serviceFixture()}
	rec := newCountingRecorder()
	svc := newTestService(src, nil, nil, rec)

	r1, err := svc.Analytics(context.Background(), model.CrimeQuery{}, "")
	require.NoError(t, err)

	src.groups = append(serviceFixture(), model.CrimeGroup{DistrictName: "Patrang", Incidents: []model.Incident{{ID: "c"}}})
	r2, err := svc.Analytics(context.Background(), model.CrimeQuery{}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, r1.TotalIncidents)
	assert.Equal(t, 3, r2.TotalIncidents)
	assert.Equal(t, 2, rec.aggregations)
}

func TestService_AnalyticsKeepsCategoryCase(t *testing.T) {
	src := &fakeSource{groups: []model.CrimeGroup{{
		DistrictName: "Kaliwates",
		Incidents: []model.Incident{
			{ID: "a", Category: "Theft"},
			{ID: "b", Category: "theft"},
			{ID: "c", Category: "theft"},
		},
	}}}
	cache := newFakeCache()
	svc := newTestService(src, cache, nil, nil)
	ctx := context.Background()

	upper, err := svc.Analytics(ctx, model.CrimeQuery{}, "Theft")
	require.NoError(t, err)
	lower, err := svc.Analytics(ctx, model.CrimeQuery{}, "theft")
	require.NoError(t, err)

	assert.Equal(t, 1, upper.TotalIncidents)
	assert.Equal(t, 2, lower.TotalIncidents)
	assert.Len(t, cache.entries, 2)
}

func TestService_AnalyticsRecomputesOnNewDay(t *testing.T) {
	src := &fakeSource{groups: serviceFixture()}
	rec := newCountingRecorder()
	now := time.Date(2024, 3, 20, 23, 0, 0, 0, time.UTC)
	svc := NewService(src, Config{Recorder: rec, Location: time.UTC, Clock: func() time.Time { return now }})
	ctx := context.Background()

	first, err := svc.Analytics(ctx, model.CrimeQuery{}, "")
	require.NoError(t, err)
	_, err = svc.Analytics(ctx, model.CrimeQuery{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, rec.aggregations)
	assert.Equal(t, 1, first.TodaysIncidents)

	now = now.Add(2 * time.Hour)
	next, err := svc.Analytics(ctx, model.CrimeQuery{}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, rec.aggregations)
	assert.Equal(t, 0, next.TodaysIncidents)
}

func TestService_AnalyticsUsesSharedCache(t *testing.T) {
	src := &fakeSource{groups: serviceFixture()}
	cache := newFakeCache()
	rec := newCountingRecorder()

	warm := newTestService(src, cache, nil, nil)
	_, err := warm.Analytics(context.Background(), model.CrimeQuery{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	cold := newTestService(src, cache, nil, rec)
	r, err := cold.Analytics(context.Background(), model.CrimeQuery{}, "")
	require.NoError(t, err)

	assert.Equal(t, 2, r.TotalIncidents)
	assert.Equal(t, 0, rec.aggregations)
	assert.Equal(t, 1, rec.hits["redis"])
}

func TestService_InvalidateForcesRecompute(t *testing.T) {
	src := &fakeSource{groups: serviceFixture()}
	cache := newFakeCache()
	rec := newCountingRecorder()
	svc := newTestService(src, cache, nil, rec)
	ctx := context.Background()

	_, err := svc.Analytics(ctx, model.CrimeQuery{}, "")
	require.NoError(t, err)
	require.NoError(t, svc.Invalidate(ctx))
	_, err = svc.Analytics(ctx, model.CrimeQuery{}, "")
	require.NoError(t, err)

	assert.Equal(t, 1, cache.invalidated)
	assert.Equal(t, 2, rec.aggregations)
}

func TestService_SourceErrorIsWrapped(t *testing.T) {
	boom := errors.New("firestore unavailable")
	svc := newTestService(&fakeSource{err: boom}, nil, nil, nil)

	_, err := svc.Analytics(context.Background(), model.CrimeQuery{}, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)

	_, err = svc.Stats(context.Background(), model.CrimeQuery{}, "")
	assert.ErrorIs(t, err, boom)
}

func TestService_Stats(t *testing.T) {
	svc := newTestService(&fakeSource{groups: serviceFixture()}, nil, nil, nil)

	s, err := svc.Stats(context.Background(), model.CrimeQuery{}, "Theft")
	require.NoError(t, err)

	assert.Equal(t, 1, s.TotalIncidents)
	assert.Equal(t, map[string]int{"Sumbersari": 1}, s.Districts)
}

func TestService_RefreshSnapshot(t *testing.T) {
	snaps := &fakeSnapshots{}
	svc := newTestService(&fakeSource{groups: serviceFixture()}, nil, snaps, nil)

	snap, err := svc.RefreshSnapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snaps.saved, 1)
	assert.Equal(t, 2, snap.TotalIncidents)
	assert.Equal(t, 50, snap.ClearanceRate)
	assert.Len(t, snap.IncidentsByMonth, 12)
	assert.Equal(t, []string{"2024-3", "2024-2"}, snap.AvailableMonths)

	got, err := svc.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, snap, got)
}

func TestService_SnapshotWithoutStore(t *testing.T) {
	svc := newTestService(&fakeSource{}, nil, nil, nil)

	_, err := svc.RefreshSnapshot(context.Background())
	assert.Error(t, err)
	_, err = svc.Snapshot(context.Background())
	assert.Error(t, err)
}

func TestMemo_DoAndInvalidate(t *testing.T) {
	var m Memo
	calls := 0
	compute := func() model.AnalyticsResult {
		calls++
		return model.AnalyticsResult{TotalIncidents: calls}
	}

	r, hit := m.Do("k1", compute)
	assert.False(t, hit)
	assert.Equal(t, 1, r.TotalIncidents)

	r, hit = m.Do("k1", compute)
	assert.True(t, hit)
	assert.Equal(t, 1, r.TotalIncidents)

	r, hit = m.Do("k2", compute)
	assert.False(t, hit)
	assert.Equal(t, 2, r.TotalIncidents)

	m.Invalidate()
	_, ok := m.Get("k2")
	assert.False(t, ok)
}

func TestMemoKey(t *testing.T) {
	assert.Equal(t, MemoKey(serviceFixture(), ""), MemoKey(serviceFixture(), AllCategories))
	assert.NotEqual(t, MemoKey(serviceFixture(), "Theft"), MemoKey(serviceFixture(), AllCategories))
}
