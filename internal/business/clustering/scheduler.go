package clustering

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
)

// Scheduler runs cluster refresh and monthly migration on cron schedules.
type Scheduler struct {
	cron *cron.Cron
	svc  *Service
	log  logger.Logger
	ctx  context.Context
	stop context.CancelFunc
}

// NewScheduler registers the refresh and migration jobs. An empty schedule disables that job.
func NewScheduler(svc *Service, log logger.Logger, refreshSchedule, migrateSchedule string) (*Scheduler, error) {
	if log == nil {
		log = logger.NewNop()
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	c := cron.New(cron.WithParser(parser), cron.WithChain(cron.Recover(cron.DefaultLogger)))
	ctx, cancel := context.WithCancel(context.Background())

	s := &Scheduler{
		cron: c,
		svc:  svc,
		log:  log.With(logger.String("component", "cluster-scheduler")),
		ctx:  ctx,
		stop: cancel,
	}

	if refreshSchedule != "" {
		if _, err := c.AddFunc(refreshSchedule, s.refresh); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule cluster refresh %q: %w", refreshSchedule, err)
		}
	}
	if migrateSchedule != "" {
		if _, err := c.AddFunc(migrateSchedule, s.migratePrevious); err != nil {
			cancel()
			return nil, fmt.Errorf("schedule cluster migration %q: %w", migrateSchedule, err)
		}
	}
	return s, nil
}

// Start begins running scheduled jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("cluster scheduler started", logger.Int("jobs", len(s.cron.Entries())))
}

// Stop cancels running migrations and waits for in-flight jobs or ctx, whichever ends first.
func (s *Scheduler) Stop(ctx context.Context) {
	s.stop()
	if n := s.svc.Jobs().CancelAll(); n > 0 {
		s.log.Info("cancelled running migrations", logger.Int("count", n))
	}
	select {
	case <-s.cron.Stop().Done():
	case <-ctx.Done():
	}
	s.log.Info("cluster scheduler stopped")
}

func (s *Scheduler) refresh() {
	refreshed, err := s.svc.RefreshIfNeeded(s.ctx)
	if err != nil {
		s.log.Error("scheduled cluster refresh failed", logger.Error(err))
		return
	}
	if refreshed {
		s.log.Debug("scheduled cluster refresh done")
	}
}

func (s *Scheduler) migratePrevious() {
	period := PreviousPeriod(s.svc.now())
	if _, err := s.svc.Migrate(s.ctx, period); err != nil {
		s.log.Error("scheduled cluster migration failed", logger.String("period", period), logger.Error(err))
	}
}
