package repository

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

func TestPrepareGroup(t *testing.T) {
	zero := time.Time{}
	g := model.CrimeGroup{
		ID:         "g1",
		DistrictID: "d1",
		Incidents: []model.Incident{
			{ID: " a ", Category: "<b>Theft</b>", Status: " resolved "},
			{ID: "", Category: "Theft"},
			{ID: "b", Latitude: -91},
			{ID: "c", Timestamp: &zero},
		},
	}

	out := prepareGroup(g, logger.NewNop())

	require.Len(t, out.Incidents, 3)
	assert.Equal(t, "a", out.Incidents[0].ID)
	assert.Equal(t, "Theft", out.Incidents[0].Category)
	assert.Equal(t, "resolved", out.Incidents[0].Status)
	assert.Equal(t, "b", out.Incidents[1].ID)
	assert.Equal(t, -91.0, out.Incidents[1].Latitude)
	assert.Equal(t, "c", out.Incidents[2].ID)
	assert.Nil(t, out.Incidents[2].Timestamp)

	// input is left untouched
	assert.Len(t, g.Incidents, 4)
	assert.Equal(t, " a ", g.Incidents[0].ID)
}

func TestPrepareGroup_KeepsLongCategory(t *testing.T) {
	long := strings.Repeat("Pencurian kendaraan bermotor ", 10)
	g := model.CrimeGroup{ID: "g1", Incidents: []model.Incident{{ID: "a", Category: long}}}

	out := prepareGroup(g, logger.NewNop())

	require.Len(t, out.Incidents, 1)
	assert.Greater(t, len(out.Incidents[0].Category), 128)
}

func TestValidateIncident(t *testing.T) {
	assert.NoError(t, ValidateIncident(model.Incident{ID: "x", Latitude: -8.17, Longitude: 113.7}))
	assert.NoError(t, ValidateIncident(model.Incident{ID: "x", Longitude: 181}))
	assert.Error(t, ValidateIncident(model.Incident{}))
}

func TestValidateNewIncident(t *testing.T) {
	assert.NoError(t, ValidateNewIncident(model.Incident{ID: "x", Latitude: -8.17, Longitude: 113.7}))
	assert.Error(t, ValidateNewIncident(model.Incident{ID: "x", Longitude: 181}))
	assert.Error(t, ValidateNewIncident(model.Incident{ID: "x", Latitude: 95}))
	assert.Error(t, ValidateNewIncident(model.Incident{ID: "x", Category: strings.Repeat("x", 129)}))
	assert.Error(t, ValidateNewIncident(model.Incident{Category: "Theft"}))
}

func TestGroupDocumentID(t *testing.T) {
	assert.Equal(t, "d7_2024_03", GroupDocumentID(model.CrimeGroup{DistrictID: "d7", Year: 2024, Month: 3}))
	assert.Equal(t, "custom", GroupDocumentID(model.CrimeGroup{ID: "custom", DistrictID: "d7"}))
}
