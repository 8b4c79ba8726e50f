package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// CrimeSource loads crime groups from the data-access layer.
type CrimeSource interface {
	List(ctx context.Context, q model.CrimeQuery) ([]model.CrimeGroup, error)
}

// ResultCache shares computed analytics across API instances.
type ResultCache interface {
	Get(ctx context.Context, key string) (model.AnalyticsResult, bool, error)
	Set(ctx context.Context, key string, result model.AnalyticsResult) error
	InvalidateAll(ctx context.Context) error
}

// SnapshotStore persists the pre-aggregated dashboard snapshot.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, snap model.DashboardSnapshot) error
	GetSnapshot(ctx context.Context) (model.DashboardSnapshot, error)
}

// Recorder receives aggregation metrics.
type Recorder interface {
	ObserveAggregation(kind string, d time.Duration, incidents int)
	CacheLookup(layer string, hit bool)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAggregation(string, time.Duration, int) {}
func (nopRecorder) CacheLookup(string, bool)                      {}

// Service serves dashboard analytics over a crime source.
type Service struct {
	source    CrimeSource
	cache     ResultCache
	snapshots SnapshotStore
	recorder  Recorder
	log       logger.Logger
	memo      Memo
	opts      []Option
}

// Config wires the optional collaborators of Service.
type Config struct {
	Cache     ResultCache   // nil disables the shared cache
	Snapshots SnapshotStore // nil disables snapshots
	Recorder  Recorder
	Logger    logger.Logger
	Location  *time.Location
	Clock     func() time.Time
}

func NewService(source CrimeSource, cfg Config) *Service {
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Service{
		source:    source,
		cache:     cfg.Cache,
		snapshots: cfg.Snapshots,
		recorder:  cfg.Recorder,
		log:       cfg.Logger,
		opts:      []Option{WithLocation(cfg.Location), WithClock(cfg.Clock)},
	}
}

// Analytics loads the groups matching q and returns their aggregate, reusing the memo
// or the shared cache when the content, category and local calendar day are unchanged.
// The day is part of the key so today's count and the recent list roll over at midnight.
func (s *Service) Analytics(ctx context.Context, q model.CrimeQuery, category string) (model.AnalyticsResult, error) {
	groups, err := s.source.List(ctx, q)
	if err != nil {
		return model.AnalyticsResult{}, fmt.Errorf("load crime groups: %w", err)
	}

	key := MemoKey(groups, category) + ":" + s.today()
	if r, ok := s.memo.Get(key); ok {
		s.recorder.CacheLookup("memo", true)
		return r, nil
	}
	s.recorder.CacheLookup("memo", false)

	if s.cache != nil {
		r, ok, err := s.cache.Get(ctx, key)
		if err != nil {
			s.log.Warn("analytics cache read failed", logger.Error(err))
		}
		s.recorder.CacheLookup("redis", ok)
		if ok {
			s.memo.Put(key, r)
			return r, nil
		}
	}

	start := time.Now()
	r := Aggregate(groups, append(s.opts, WithCategory(category))...)
	s.recorder.ObserveAggregation("analytics", time.Since(start), r.TotalIncidents)
	s.memo.Put(key, r)

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, r); err != nil {
			s.log.Warn("analytics cache write failed", logger.Error(err))
		}
	}
	return r, nil
}

// today formats the current local date with the service's clock and zone.
func (s *Service) today() string {
	o := newOptions(s.opts)
	return o.now().In(o.loc).Format("2006-01-02")
}

// Stats returns the category-filtered stats for the groups matching q.
func (s *Service) Stats(ctx context.Context, q model.CrimeQuery, category string) (model.CrimeStats, error) {
	groups, err := s.source.List(ctx, q)
	if err != nil {
		return model.CrimeStats{}, fmt.Errorf("load crime groups: %w", err)
	}
	start := time.Now()
	stats := CalculateCrimeStats(groups, category, s.opts...)
	s.recorder.ObserveAggregation("stats", time.Since(start), stats.TotalIncidents)
	return stats, nil
}

// RefreshSnapshot recomputes the dashboard snapshot over every crime group and saves it.
func (s *Service) RefreshSnapshot(ctx context.Context) (model.DashboardSnapshot, error) {
	if s.snapshots == nil {
		return model.DashboardSnapshot{}, fmt.Errorf("snapshot store not configured")
	}
	r, err := s.Analytics(ctx, model.CrimeQuery{}, AllCategories)
	if err != nil {
		return model.DashboardSnapshot{}, err
	}
	snap := SnapshotFrom(r)
	if err := s.snapshots.SaveSnapshot(ctx, snap); err != nil {
		return model.DashboardSnapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	s.log.Info("dashboard snapshot refreshed",
		logger.Int("total_incidents", snap.TotalIncidents),
		logger.Int("clearance_rate", snap.ClearanceRate),
	)
	return snap, nil
}

// Snapshot returns the last saved dashboard snapshot.
func (s *Service) Snapshot(ctx context.Context) (model.DashboardSnapshot, error) {
	if s.snapshots == nil {
		return model.DashboardSnapshot{}, fmt.Errorf("snapshot store not configured")
	}
	return s.snapshots.GetSnapshot(ctx)
}

// Invalidate drops memoized and cached results after the underlying data changed.
func (s *Service) Invalidate(ctx context.Context) error {
	s.memo.Invalidate()
	if s.cache == nil {
		return nil
	}
	if err := s.cache.InvalidateAll(ctx); err != nil {
		return fmt.Errorf("invalidate analytics cache: %w", err)
	}
	return nil
}

// SnapshotFrom reduces an analytics result into the persisted snapshot shape.
func SnapshotFrom(r model.AnalyticsResult) model.DashboardSnapshot {
	return model.DashboardSnapshot{
		TotalIncidents:   r.TotalIncidents,
		TodaysIncidents:  r.TodaysIncidents,
		ClearanceRate:    r.ClearanceRate,
		CategoryCounts:   r.CategoryCounts,
		Districts:        r.Districts,
		IncidentsByMonth: r.IncidentsByMonth[:],
		AvailableMonths:  r.AvailableMonths,
	}
}
