package analytics

import (
	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

// CalculateCrimeStats reduces crime groups into the category-filtered dashboard stats.
//
// District totals come from two places on purpose: with no filter they trust the
// upstream NumberOfCrime of each group, with a filter they count matching incidents
// per group. The two can disagree when NumberOfCrime drifts from the stored incidents.
func CalculateCrimeStats(groups []model.CrimeGroup, category string, opts ...Option) model.CrimeStats {
	if category == "" {
		category = AllCategories
	}
	o := newOptions(append(opts, WithCategory(category)))
	now := o.now().In(o.loc)

	flat := flatten(groups, o.category)
	base := summarize(flat, now, o.loc)

	districts := make(map[string]int)
	for _, g := range groups {
		name := util.LabelOrUnknown(g.DistrictName)
		if o.category == AllCategories {
			districts[name] += g.NumberOfCrime
			continue
		}
		districts[name] += countCategory(g.Incidents, o.category)
	}

	return model.CrimeStats{
		TotalIncidents:    len(flat),
		TodaysIncidents:   base.today,
		RecentIncidents:   base.recent,
		FilteredIncidents: base.sorted,
		CategoryCounts:    base.categories,
		Districts:         districts,
		IncidentsByMonth:  base.byMonth,
	}
}

func countCategory(incidents []model.Incident, category string) int {
	n := 0
	for _, inc := range incidents {
		if inc.Category == category {
			n++
		}
	}
	return n
}
