// Package clustering classifies districts into risk levels and archives the
// classification month by month.
package clustering

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sigap-dashboard/sigap-api/internal/business/analytics"
	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/platform/realtime"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// DefaultK is the number of risk levels computed by Refresh.
const DefaultK = 3

// ErrMigrationRunning is returned when the requested period is already being migrated.
var ErrMigrationRunning = errors.New("migration already running for period")

// AnalyticsSource provides the per-district incident counts.
type AnalyticsSource interface {
	Analytics(ctx context.Context, q model.CrimeQuery, category string) (model.AnalyticsResult, error)
}

// Store persists live and historical clusters.
type Store interface {
	ListLive(ctx context.Context) ([]model.DistrictCluster, error)
	ReplaceLive(ctx context.Context, clusters []model.DistrictCluster, flaggedBefore time.Time) error
	MarkNeedsUpdate(ctx context.Context, districtID string) error
	AnyNeedsUpdate(ctx context.Context) (bool, error)
	SaveHistorical(ctx context.Context, period string, clusters []model.DistrictCluster) (int, error)
}

// RunStore persists migration run metadata.
type RunStore interface {
	CreateRun(ctx context.Context, run model.MigrationRun) error
	UpdateRun(ctx context.Context, run model.MigrationRun) error
	ListRuns(ctx context.Context, limit int) ([]model.MigrationRun, error)
	GetRun(ctx context.Context, runID string) (model.MigrationRun, error)
}

// Notifier pushes events to connected dashboards.
type Notifier interface {
	Broadcast(msgType string, data interface{})
}

// Recorder receives clustering metrics.
type Recorder interface {
	ClusterRefresh(outcome string)
	MigrationRun(status string)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(string, interface{}) {}

type nopRecorder struct{}

func (nopRecorder) ClusterRefresh(string) {}
func (nopRecorder) MigrationRun(string)   {}

// Service keeps district clusters in step with incident data.
type Service struct {
	analytics AnalyticsSource
	store     Store
	runs      RunStore
	jobs      *JobManager
	notifier  Notifier
	recorder  Recorder
	log       logger.Logger
	now       func() time.Time
}

// Config wires the optional collaborators of Service.
type Config struct {
	Notifier Notifier
	Recorder Recorder
	Logger   logger.Logger
	Clock    func() time.Time
}

func NewService(src AnalyticsSource, store Store, runs RunStore, jobs *JobManager, cfg Config) *Service {
	if jobs == nil {
		jobs = NewJobManager()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}
	if cfg.Recorder == nil {
		cfg.Recorder = nopRecorder{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		analytics: src,
		store:     store,
		runs:      runs,
		jobs:      jobs,
		notifier:  cfg.Notifier,
		recorder:  cfg.Recorder,
		log:       cfg.Logger.With(logger.String("component", "clustering")),
		now:       cfg.Clock,
	}
}

// Jobs exposes the running-migration registry.
func (s *Service) Jobs() *JobManager { return s.jobs }

// Live returns the current district clusters.
func (s *Service) Live(ctx context.Context) ([]model.DistrictCluster, error) {
	return s.store.ListLive(ctx)
}

// Runs returns recent migration runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]model.MigrationRun, error) {
	return s.runs.ListRuns(ctx, limit)
}

// Run returns one migration run by ID.
func (s *Service) Run(ctx context.Context, runID string) (model.MigrationRun, error) {
	return s.runs.GetRun(ctx, runID)
}

// CancelMigration stops the running migration for period. It reports whether one was running.
func (s *Service) CancelMigration(period string) bool {
	if !s.jobs.Cancel(period) {
		return false
	}
	s.log.Info("migration cancel requested", logger.String("period", period))
	return true
}

// MarkNeedsUpdate flags districtID so the next RefreshIfNeeded recomputes clusters.
func (s *Service) MarkNeedsUpdate(ctx context.Context, districtID string) error {
	if districtID == "" {
		return errors.New("district id is required")
	}
	return s.store.MarkNeedsUpdate(ctx, districtID)
}

// RefreshIfNeeded recomputes clusters when at least one district is flagged.
// It reports whether a refresh happened.
func (s *Service) RefreshIfNeeded(ctx context.Context) (bool, error) {
	flagged, err := s.store.AnyNeedsUpdate(ctx)
	if err != nil {
		s.recorder.ClusterRefresh("error")
		return false, err
	}
	if !flagged {
		s.recorder.ClusterRefresh("skipped")
		return false, nil
	}
	if _, err := s.Refresh(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Refresh recomputes the live clusters from all incidents. Districts flagged after the
// read started stay flagged.
func (s *Service) Refresh(ctx context.Context) ([]model.DistrictCluster, error) {
	started := s.now().UTC()
	result, err := s.analytics.Analytics(ctx, model.CrimeQuery{}, analytics.AllCategories)
	if err != nil {
		s.recorder.ClusterRefresh("error")
		return nil, fmt.Errorf("load district counts: %w", err)
	}

	ids := make(map[string]string)
	for _, inc := range result.FilteredIncidents {
		ids[util.LabelOrUnknown(inc.DistrictName)] = inc.DistrictID
	}

	clusters := KMeans(result.Districts, DefaultK)
	for i := range clusters {
		clusters[i].DistrictID = ids[clusters[i].DistrictName]
		clusters[i].UpdatedAt = s.now().UTC()
	}

	if err := s.store.ReplaceLive(ctx, clusters, started); err != nil {
		s.recorder.ClusterRefresh("error")
		return nil, fmt.Errorf("save clusters: %w", err)
	}
	s.recorder.ClusterRefresh("refreshed")
	s.notifier.Broadcast(realtime.MessageClustersUpdated, clusters)
	s.log.Info("district clusters refreshed", logger.Int("districts", len(clusters)))
	return clusters, nil
}

// Migrate archives the live clusters under period and records the run.
func (s *Service) Migrate(ctx context.Context, period string) (model.MigrationRun, error) {
	if _, _, err := analytics.ParseMonthKey(period); err != nil {
		return model.MigrationRun{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	if !s.jobs.Register(period, cancel) {
		return model.MigrationRun{}, fmt.Errorf("%w %s", ErrMigrationRunning, period)
	}
	defer s.jobs.Unregister(period)

	run := model.MigrationRun{
		RunID:     "MIG_" + uuid.NewString(),
		Period:    period,
		Status:    StatusRunning,
		StartedAt: s.now().UTC(),
	}
	if err := s.runs.CreateRun(ctx, run); err != nil {
		return model.MigrationRun{}, fmt.Errorf("create migration run: %w", err)
	}
	log := s.log.With(logger.String("run_id", run.RunID), logger.String("period", period))
	log.Info("cluster migration started")

	runErr := s.migrate(ctx, &run)
	switch {
	case runErr == nil:
		run.Status = StatusSuccess
	case errors.Is(runErr, context.Canceled):
		run.Status = StatusCancelled
		run.Error = runErr.Error()
	default:
		run.Status = StatusFailed
		run.Error = runErr.Error()
	}
	run.FinishedAt = s.now().UTC()

	// the run record is finalized even when ctx was cancelled
	if err := s.runs.UpdateRun(context.WithoutCancel(ctx), run); err != nil {
		log.Error("failed to finalize migration run", logger.Error(err))
	}
	s.recorder.MigrationRun(run.Status)
	log.Info("cluster migration finished",
		logger.String("status", run.Status),
		logger.Int("migrated", run.Stats.Migrated),
	)
	return run, runErr
}

func (s *Service) migrate(ctx context.Context, run *model.MigrationRun) error {
	clusters, err := s.store.ListLive(ctx)
	if err != nil {
		return fmt.Errorf("list live clusters: %w", err)
	}
	run.Stats.Found = len(clusters)
	if err := ctx.Err(); err != nil {
		return err
	}
	n, err := s.store.SaveHistorical(ctx, run.Period, clusters)
	run.Stats.Migrated = n
	if err != nil {
		run.Stats.Failed = len(clusters) - n
		return err
	}
	return nil
}

// PreviousPeriod returns the month key of the month before now.
func PreviousPeriod(now time.Time) string {
	firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return analytics.MonthKey(firstOfMonth.AddDate(0, 0, -1))
}
