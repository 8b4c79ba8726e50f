package analytics

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

var fixedNow = time.Date(2024, 3, 25, 12, 0, 0, 0, time.UTC)

func testOpts() []Option {
	return []Option{WithClock(func() time.Time { return fixedNow }), WithLocation(time.UTC)}
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func ids(incidents []model.FlatIncident) []string {
	out := make([]string, len(incidents))
	for i, inc := range incidents {
		out[i] = inc.ID
	}
	return out
}

func TestAggregate_EmptyInput(t *testing.T) {
	for name, groups := range map[string][]model.CrimeGroup{"nil": nil, "empty": {}} {
		t.Run(name, func(t *testing.T) {
			r := Aggregate(groups, testOpts()...)

			assert.Equal(t, 0, r.TotalIncidents)
			assert.Equal(t, 0, r.TodaysIncidents)
			assert.Equal(t, 0, r.ClearanceRate)
			assert.Equal(t, [12]int{}, r.IncidentsByMonth)
			assert.NotNil(t, r.RecentIncidents)
			assert.Empty(t, r.RecentIncidents)
			assert.NotNil(t, r.FilteredIncidents)
			assert.Empty(t, r.FilteredIncidents)
			assert.Empty(t, r.CategoryCounts)
			assert.Empty(t, r.Districts)
			assert.Empty(t, r.IncidentsByMonthDetail)
			assert.NotNil(t, r.AvailableMonths)
			assert.Empty(t, r.AvailableMonths)
		})
	}
}

func TestAggregate_ConcreteScenario(t *testing.T) {
	groups := []model.CrimeGroup{{
		DistrictID:   "d1",
		DistrictName: "Sumbersari",
		Incidents: []model.Incident{
			{ID: "a", Timestamp: at("2024-03-05T08:00:00Z"), Category: "Theft", Status: "Open"},
			{ID: "b", Timestamp: at("2024-03-20T08:00:00Z"), Category: "Assault", Status: "Resolved"},
			{ID: "c", Timestamp: nil, Category: "Theft", Status: "Open"},
		},
	}}

	r := Aggregate(groups, testOpts()...)

	assert.Equal(t, 3, r.TotalIncidents)
	assert.Equal(t, 2, r.IncidentsByMonth[2])
	assert.Equal(t, map[string]int{"Theft": 2, "Assault": 1}, r.CategoryCounts)
	assert.Equal(t, map[string]int{"Sumbersari": 3}, r.Districts)
	assert.Equal(t, 33, r.ClearanceRate)
	assert.Equal(t, []string{"2024-3"}, r.AvailableMonths)
	assert.Equal(t, []string{"b", "a"}, ids(r.IncidentsByMonthDetail["2024-3"]))
	assert.Equal(t, []string{"b", "a", "c"}, ids(r.FilteredIncidents))
}

func TestAggregate_FlattenCarriesDistrict(t *testing.T) {
	groups := []model.CrimeGroup{
		{DistrictID: "d1", DistrictName: "Kaliwates", Incidents: []model.Incident{{ID: "1"}}},
		{DistrictID: "d2", DistrictName: "", Incidents: []model.Incident{{ID: "2"}, {ID: "3"}}},
	}

	r := Aggregate(groups, testOpts()...)

	require.Len(t, r.FilteredIncidents, 3)
	// All timestamps missing: ties keep flattening order.
	assert.Equal(t, []string{"1", "2", "3"}, ids(r.FilteredIncidents))
	assert.Equal(t, "d1", r.FilteredIncidents[0].DistrictID)
	assert.Equal(t, "Kaliwates", r.FilteredIncidents[0].DistrictName)
	assert.Equal(t, "d2", r.FilteredIncidents[2].DistrictID)
	assert.Equal(t, map[string]int{"Kaliwates": 1, "Unknown": 2}, r.Districts)
	assert.Equal(t, map[string]int{"Unknown": 3}, r.CategoryCounts)
}

func TestAggregate_RecentWindowAndToday(t *testing.T) {
	groups := []model.CrimeGroup{{
		DistrictName: "Patrang",
		Incidents: []model.Incident{
			{ID: "today-early", Timestamp: at("2024-03-25T01:00:00Z")},
			{ID: "today-late", Timestamp: at("2024-03-25T11:00:00Z")},
			{ID: "yesterday", Timestamp: at("2024-03-24T23:00:00Z")},
			{ID: "edge", Timestamp: at("2024-02-24T12:00:00Z")}, // exactly now - 30 days
			{ID: "old", Timestamp: at("2024-02-24T11:59:59Z")},
			{ID: "missing"},
		},
	}}

	r := Aggregate(groups, testOpts()...)

	assert.Equal(t, []string{"today-late", "today-early", "yesterday", "edge"}, ids(r.RecentIncidents))
	assert.Equal(t, 2, r.TodaysIncidents)
	assert.Len(t, r.FilteredIncidents, 6)
	assert.Equal(t, "missing", r.FilteredIncidents[5].ID)
}

func TestAggregate_TodayUsesConfiguredLocation(t *testing.T) {
	jakarta := time.FixedZone("WIB", 7*60*60)
	// 2024-03-25T18:00Z is already 2024-03-26 01:00 in WIB.
	now := time.Date(2024, 3, 26, 2, 0, 0, 0, jakarta)
	groups := []model.CrimeGroup{{Incidents: []model.Incident{
		{ID: "wib-today", Timestamp: at("2024-03-25T18:00:00Z")},
		{ID: "wib-yesterday", Timestamp: at("2024-03-25T16:00:00Z")},
	}}}

	r := Aggregate(groups, WithClock(func() time.Time { return now }), WithLocation(jakarta))

	assert.Equal(t, 1, r.TodaysIncidents)
	assert.Contains(t, r.IncidentsByMonthDetail, "2024-3")
}

func TestAggregate_RecentCappedAtTen(t *testing.T) {
	var incidents []model.Incident
	for i := 0; i < 15; i++ {
		ts := fixedNow.Add(-time.Duration(i) * time.Hour)
		incidents = append(incidents, model.Incident{ID: fmt.Sprintf("i%02d", i), Timestamp: &ts})
	}

	r := Aggregate([]model.CrimeGroup{{Incidents: incidents}}, testOpts()...)

	require.Len(t, r.RecentIncidents, 10)
	assert.Equal(t, "i00", r.RecentIncidents[0].ID)
	assert.Equal(t, "i09", r.RecentIncidents[9].ID)
	assert.Len(t, r.FilteredIncidents, 15)
}

func TestAggregate_HistogramAcrossYears(t *testing.T) {
	groups := []model.CrimeGroup{{Incidents: []model.Incident{
		{ID: "1", Timestamp: at("2022-01-10T00:00:00Z")},
		{ID: "2", Timestamp: at("2023-01-10T00:00:00Z")},
		{ID: "3", Timestamp: at("2023-12-31T10:00:00Z")},
		{ID: "4"},
	}}}

	r := Aggregate(groups, testOpts()...)

	assert.Equal(t, 2, r.IncidentsByMonth[0])
	assert.Equal(t, 1, r.IncidentsByMonth[11])
	assert.Equal(t, []string{"2023-12", "2023-1", "2022-1"}, r.AvailableMonths)

	sum := 0
	for _, n := range r.IncidentsByMonth {
		sum += n
	}
	assert.Equal(t, r.TotalIncidents-1, sum)
}

func TestAggregate_AvailableMonthsOrdering(t *testing.T) {
	groups := []model.CrimeGroup{{Incidents: []model.Incident{
		{ID: "1", Timestamp: at("2023-02-01T00:00:00Z")},
		{ID: "2", Timestamp: at("2024-01-01T00:00:00Z")},
		{ID: "3", Timestamp: at("2023-11-01T00:00:00Z")},
		{ID: "4", Timestamp: at("2023-09-01T00:00:00Z")},
		{ID: "5", Timestamp: at("2024-10-01T00:00:00Z")},
	}}}

	r := Aggregate(groups, testOpts()...)

	// "2023-11" sorts before "2023-9" numerically, not lexically.
	assert.Equal(t, []string{"2024-10", "2024-1", "2023-11", "2023-9", "2023-2"}, r.AvailableMonths)
	for i := 1; i < len(r.AvailableMonths); i++ {
		y1, m1, err := ParseMonthKey(r.AvailableMonths[i-1])
		require.NoError(t, err)
		y2, m2, err := ParseMonthKey(r.AvailableMonths[i])
		require.NoError(t, err)
		assert.True(t, y1 > y2 || (y1 == y2 && m1 >= m2))
	}
}

func TestAggregate_MonthDetailHoldsEveryTimedIncidentOnce(t *testing.T) {
	groups := []model.CrimeGroup{
		{DistrictName: "A", Incidents: []model.Incident{
			{ID: "1", Timestamp: at("2024-03-01T00:00:00Z")},
			{ID: "2", Timestamp: at("2024-02-01T00:00:00Z")},
		}},
		{DistrictName: "B", Incidents: []model.Incident{
			{ID: "3", Timestamp: at("2024-03-15T00:00:00Z")},
			{ID: "4"},
		}},
	}

	r := Aggregate(groups, testOpts()...)

	seen := map[string]int{}
	for key, bucket := range r.IncidentsByMonthDetail {
		for _, inc := range bucket {
			seen[inc.ID]++
			assert.Equal(t, MonthKey(inc.Timestamp.UTC()), key)
		}
	}
	assert.Equal(t, map[string]int{"1": 1, "2": 1, "3": 1}, seen)
	assert.Equal(t, []string{"3", "1"}, ids(r.IncidentsByMonthDetail["2024-3"]))
}

func TestAggregate_SortIsDescendingAndStable(t *testing.T) {
	same := at("2024-03-10T00:00:00Z")
	groups := []model.CrimeGroup{{Incidents: []model.Incident{
		{ID: "x", Timestamp: same},
		{ID: "old", Timestamp: at("2024-01-01T00:00:00Z")},
		{ID: "y", Timestamp: same},
		{ID: "none"},
		{ID: "new", Timestamp: at("2024-03-20T00:00:00Z")},
	}}}

	r := Aggregate(groups, testOpts()...)

	assert.Equal(t, []string{"new", "x", "y", "old", "none"}, ids(r.FilteredIncidents))
	for i := 1; i < len(r.FilteredIncidents); i++ {
		a, b := r.FilteredIncidents[i-1], r.FilteredIncidents[i]
		if a.HasTimestamp() && b.HasTimestamp() {
			assert.False(t, a.Timestamp.Before(*b.Timestamp))
		}
	}
}

func TestAggregate_ClearanceRate(t *testing.T) {
	tests := []struct {
		name     string
		statuses []string
		want     int
	}{
		{"all resolved", []string{"resolved", "RESOLVED"}, 100},
		{"none resolved", []string{"open", "unresolved", ""}, 0},
		{"two of three rounds up", []string{"Resolved", "resolved", "open"}, 67},
		{"half", []string{"resolved", "open"}, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var incidents []model.Incident
			for i, s := range tt.statuses {
				incidents = append(incidents, model.Incident{ID: fmt.Sprint(i), Status: s})
			}
			r := Aggregate([]model.CrimeGroup{{Incidents: incidents}}, testOpts()...)
			assert.Equal(t, tt.want, r.ClearanceRate)
			assert.GreaterOrEqual(t, r.ClearanceRate, 0)
			assert.LessOrEqual(t, r.ClearanceRate, 100)
		})
	}
}

func TestAggregate_CategoryFilter(t *testing.T) {
	groups := []model.CrimeGroup{{DistrictName: "A", Incidents: []model.Incident{
		{ID: "1", Category: "Theft", Timestamp: at("2024-03-01T00:00:00Z")},
		{ID: "2", Category: "Assault", Timestamp: at("2024-03-02T00:00:00Z")},
		{ID: "3", Category: "Theft"},
	}}}

	r := Aggregate(groups, append(testOpts(), WithCategory("Theft"))...)

	assert.Equal(t, 2, r.TotalIncidents)
	assert.Equal(t, map[string]int{"Theft": 2}, r.CategoryCounts)
	assert.Equal(t, 1, r.IncidentsByMonth[2])

	all := Aggregate(groups, append(testOpts(), WithCategory(AllCategories))...)
	assert.Equal(t, 3, all.TotalIncidents)
}

func TestAggregate_DoesNotMutateInput(t *testing.T) {
	groups := []model.CrimeGroup{{DistrictName: "A", Incidents: []model.Incident{
		{ID: "old", Timestamp: at("2024-01-01T00:00:00Z")},
		{ID: "new", Timestamp: at("2024-03-01T00:00:00Z")},
	}}}

	_ = Aggregate(groups, testOpts()...)

	assert.Equal(t, "old", groups[0].Incidents[0].ID)
	assert.Equal(t, "new", groups[0].Incidents[1].ID)
}

func TestAggregate_Deterministic(t *testing.T) {
	build := func() []model.CrimeGroup {
		return []model.CrimeGroup{{DistrictName: "A", Incidents: []model.Incident{
			{ID: "1", Category: "Theft", Timestamp: at("2024-03-01T00:00:00Z")},
			{ID: "2", Category: "Theft", Timestamp: at("2024-03-01T00:00:00Z")},
			{ID: "3", Category: "Fraud", Timestamp: at("2023-07-01T00:00:00Z")},
		}}}
	}
	assert.Equal(t, Aggregate(build(), testOpts()...), Aggregate(build(), testOpts()...))
}

func TestParseMonthKey(t *testing.T) {
	y, m, err := ParseMonthKey("2024-3")
	require.NoError(t, err)
	assert.Equal(t, 2024, y)
	assert.Equal(t, 3, m)

	for _, bad := range []string{"", "2024", "x-3", "2024-y", "2024-0", "2024-13", "2024--1"} {
		_, _, err := ParseMonthKey(bad)
		assert.Error(t, err, bad)
	}
}
