// Package incident records new incidents and verifies existing ones.
package incident

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/internal/platform/realtime"
	"github.com/sigap-dashboard/sigap-api/internal/repository"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

// Incident statuses accepted by Verify.
const (
	StatusOpen          = "open"
	StatusInvestigating = "investigating"
	StatusResolved      = "resolved"
	StatusRejected      = "rejected"
)

var validStatuses = map[string]bool{
	StatusOpen:          true,
	StatusInvestigating: true,
	StatusResolved:      true,
	StatusRejected:      true,
}

var (
	ErrInvalidStatus   = errors.New("invalid incident status")
	ErrInvalidIncident = errors.New("invalid incident")
)

// Store writes incidents into crime groups.
type Store interface {
	AppendIncident(ctx context.Context, target model.CrimeGroup, inc model.Incident) (model.CrimeGroup, error)
	UpdateIncidentStatus(ctx context.Context, groupID, incidentID, status string) (model.CrimeGroup, model.Incident, error)
}

// Invalidator drops derived analytics after a write.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// ClusterMarker flags a district for cluster recomputation.
type ClusterMarker interface {
	MarkNeedsUpdate(ctx context.Context, districtID string) error
}

// Notifier pushes events to connected dashboards.
type Notifier interface {
	Broadcast(msgType string, data interface{})
}

// Verification is the payload broadcast after a status change.
type Verification struct {
	GroupID    string `json:"groupId"`
	IncidentID string `json:"incidentId"`
	DistrictID string `json:"districtId"`
	Status     string `json:"status"`
}

type Service struct {
	store     Store
	analytics Invalidator
	clusters  ClusterMarker
	notifier  Notifier
	log       logger.Logger
	loc       *time.Location
	now       func() time.Time
}

// Config wires the optional collaborators of Service.
type Config struct {
	Notifier Notifier
	Logger   logger.Logger
	Location *time.Location
	Clock    func() time.Time
}

func NewService(store Store, analytics Invalidator, clusters ClusterMarker, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	return &Service{
		store:     store,
		analytics: analytics,
		clusters:  clusters,
		notifier:  cfg.Notifier,
		log:       cfg.Logger.With(logger.String("component", "incident")),
		loc:       cfg.Location,
		now:       cfg.Clock,
	}
}

// Create stores inc under the crime group of districtID for the incident's month.
// A missing timestamp means now; a missing status means open.
func (s *Service) Create(ctx context.Context, districtID, districtName string, inc model.Incident) (model.CrimeGroup, model.Incident, error) {
	districtID = strings.TrimSpace(districtID)
	if districtID == "" {
		return model.CrimeGroup{}, model.Incident{}, fmt.Errorf("%w: district is required", ErrInvalidIncident)
	}

	inc.ID = uuid.NewString()
	if !inc.HasTimestamp() {
		ts := s.now()
		inc.Timestamp = &ts
	}
	inc = util.NormalizeIncident(inc)
	if inc.Status == "" {
		inc.Status = StatusOpen
	}
	if err := repository.ValidateNewIncident(inc); err != nil {
		return model.CrimeGroup{}, model.Incident{}, fmt.Errorf("%w: %v", ErrInvalidIncident, err)
	}

	local := inc.Timestamp.In(s.loc)
	target := model.CrimeGroup{
		DistrictID:   districtID,
		DistrictName: strings.TrimSpace(districtName),
		Year:         local.Year(),
		Month:        int(local.Month()),
	}
	group, err := s.store.AppendIncident(ctx, target, inc)
	if err != nil {
		return model.CrimeGroup{}, model.Incident{}, err
	}

	s.afterWrite(ctx, districtID)
	s.log.Info("incident created",
		logger.String("incident_id", inc.ID),
		logger.String("group_id", group.ID),
	)
	return group, inc, nil
}

// Verify sets the status of an incident and notifies dashboards.
func (s *Service) Verify(ctx context.Context, groupID, incidentID, status string) (model.Incident, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if !validStatuses[status] {
		return model.Incident{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	group, updated, err := s.store.UpdateIncidentStatus(ctx, groupID, incidentID, status)
	if err != nil {
		return model.Incident{}, err
	}

	s.afterWrite(ctx, group.DistrictID)
	if s.notifier != nil {
		s.notifier.Broadcast(realtime.MessageIncidentVerified, Verification{
			GroupID:    group.ID,
			IncidentID: updated.ID,
			DistrictID: group.DistrictID,
			Status:     updated.Status,
		})
	}
	s.log.Info("incident verified",
		logger.String("incident_id", incidentID),
		logger.String("status", status),
	)
	return updated, nil
}

// afterWrite refreshes derived state. Failures are logged; the write itself succeeded.
func (s *Service) afterWrite(ctx context.Context, districtID string) {
	if err := s.analytics.Invalidate(ctx); err != nil {
		s.log.Warn("failed to invalidate analytics", logger.Error(err))
	}
	if districtID == "" {
		return
	}
	if err := s.clusters.MarkNeedsUpdate(ctx, districtID); err != nil {
		s.log.Warn("failed to flag district cluster",
			logger.String("district_id", districtID),
			logger.Error(err),
		)
	}
}
