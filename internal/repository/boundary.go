package repository

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

// ErrNotFound is returned when a requested document or incident does not exist.
var ErrNotFound = errors.New("not found")

var validate = validator.New()

// ValidateIncident checks an incident against its structural contract. Stored records
// only need an ID; everything else has a default reading in the aggregator.
func ValidateIncident(inc model.Incident) error {
	return validate.Struct(inc)
}

// ValidateNewIncident applies the stricter rules for incidents written through the API.
func ValidateNewIncident(inc model.Incident) error {
	if err := ValidateIncident(inc); err != nil {
		return err
	}
	return errors.Join(
		validate.Var(inc.Status, "max=64"),
		validate.Var(inc.Category, "max=128"),
		validate.Var(inc.Latitude, "gte=-90,lte=90"),
		validate.Var(inc.Longitude, "gte=-180,lte=180"),
	)
}

// prepareGroup normalizes a group read from storage and drops incidents without an ID.
// Out-of-range coordinates or long labels are kept and counted.
func prepareGroup(g model.CrimeGroup, log logger.Logger) model.CrimeGroup {
	kept := make([]model.Incident, 0, len(g.Incidents))
	cleaned := 0
	for _, inc := range g.Incidents {
		if util.NeedsCleanup(inc) {
			cleaned++
		}
		inc = util.NormalizeIncident(inc)
		if err := ValidateIncident(inc); err != nil {
			log.Warn("skipping invalid incident",
				logger.String("group_id", g.ID),
				logger.String("incident_id", inc.ID),
				logger.Error(err),
			)
			continue
		}
		kept = append(kept, inc)
	}
	if cleaned > 0 {
		log.Debug("cleaned incident markup",
			logger.String("group_id", g.ID),
			logger.Int("count", cleaned),
		)
	}
	g.Incidents = kept
	return g
}
