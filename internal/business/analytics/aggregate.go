package analytics

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

const (
	// AllCategories disables the category filter.
	AllCategories = "all"

	recentWindow = 30 * 24 * time.Hour
	recentLimit  = 10
)

type options struct {
	now      func() time.Time
	loc      *time.Location
	category string
}

// Option tunes an aggregation call.
type Option func(*options)

// WithClock overrides the wall clock read once at the start of each call.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLocation sets the zone used for calendar dates and month buckets.
func WithLocation(loc *time.Location) Option {
	return func(o *options) {
		if loc != nil {
			o.loc = loc
		}
	}
}

// WithCategory keeps only incidents whose category equals c. "all" or "" keeps everything.
func WithCategory(c string) Option {
	return func(o *options) { o.category = c }
}

func newOptions(opts []Option) options {
	o := options{now: time.Now, loc: time.Local, category: AllCategories}
	for _, opt := range opts {
		opt(&o)
	}
	if o.category == "" {
		o.category = AllCategories
	}
	return o
}

// Aggregate computes the dashboard analytics for the given crime groups.
// The result is rebuilt from scratch on every call and the input is never modified.
func Aggregate(groups []model.CrimeGroup, opts ...Option) model.AnalyticsResult {
	o := newOptions(opts)
	now := o.now().In(o.loc)

	flat := flatten(groups, o.category)
	base := summarize(flat, now, o.loc)

	result := model.AnalyticsResult{
		TotalIncidents:         len(flat),
		TodaysIncidents:        base.today,
		RecentIncidents:        base.recent,
		FilteredIncidents:      base.sorted,
		CategoryCounts:         base.categories,
		Districts:              make(map[string]int),
		IncidentsByMonth:       base.byMonth,
		IncidentsByMonthDetail: make(map[string][]model.FlatIncident),
		AvailableMonths:        []string{},
	}

	resolved := 0
	for _, inc := range flat {
		result.Districts[util.LabelOrUnknown(inc.DistrictName)]++
		if util.IsResolved(inc.Status) {
			resolved++
		}
		if !inc.HasTimestamp() {
			continue
		}
		key := MonthKey(inc.Timestamp.In(o.loc))
		if _, seen := result.IncidentsByMonthDetail[key]; !seen {
			result.AvailableMonths = append(result.AvailableMonths, key)
		}
		result.IncidentsByMonthDetail[key] = append(result.IncidentsByMonthDetail[key], inc)
	}

	for _, bucket := range result.IncidentsByMonthDetail {
		sortNewestFirst(bucket)
	}
	SortMonthKeys(result.AvailableMonths)

	if len(flat) > 0 {
		result.ClearanceRate = int(math.Round(float64(resolved) / float64(len(flat)) * 100))
	}
	return result
}

// summary holds the aggregates shared by Aggregate and CalculateCrimeStats.
type summary struct {
	today      int
	recent     []model.FlatIncident
	sorted     []model.FlatIncident
	categories map[string]int
	byMonth    [12]int
}

func summarize(flat []model.FlatIncident, now time.Time, loc *time.Location) summary {
	s := summary{
		recent:     []model.FlatIncident{},
		sorted:     make([]model.FlatIncident, len(flat)),
		categories: make(map[string]int),
	}
	copy(s.sorted, flat)
	sortNewestFirst(s.sorted)

	cutoff := now.Add(-recentWindow)
	for _, inc := range flat {
		s.categories[util.LabelOrUnknown(inc.Category)]++
		if !inc.HasTimestamp() {
			continue
		}
		ts := inc.Timestamp.In(loc)
		s.byMonth[ts.Month()-1]++
		if ts.Before(cutoff) {
			continue
		}
		s.recent = append(s.recent, inc)
		if sameDay(ts, now) {
			s.today++
		}
	}

	sortNewestFirst(s.recent)
	if len(s.recent) > recentLimit {
		s.recent = s.recent[:recentLimit]
	}
	return s
}

// flatten denormalizes incidents with their group's district, keeping input order.
func flatten(groups []model.CrimeGroup, category string) []model.FlatIncident {
	flat := []model.FlatIncident{}
	for _, g := range groups {
		for _, inc := range g.Incidents {
			if category != AllCategories && inc.Category != category {
				continue
			}
			flat = append(flat, model.FlatIncident{
				Incident:     inc,
				DistrictID:   g.DistrictID,
				DistrictName: g.DistrictName,
			})
		}
	}
	return flat
}

// sortNewestFirst orders incidents by descending timestamp. Missing timestamps sort as
// the Unix epoch; ties keep their existing order.
func sortNewestFirst(incidents []model.FlatIncident) {
	sort.SliceStable(incidents, func(i, j int) bool {
		return sortKey(incidents[i]) > sortKey(incidents[j])
	})
}

func sortKey(inc model.FlatIncident) int64 {
	if !inc.HasTimestamp() {
		return 0
	}
	return inc.Timestamp.UnixMilli()
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// MonthKey formats the bucket key for t as "{year}-{month}" with a 1-based month.
func MonthKey(t time.Time) string {
	return fmt.Sprintf("%d-%d", t.Year(), int(t.Month()))
}

// ParseMonthKey splits a key produced by MonthKey.
func ParseMonthKey(key string) (year, month int, err error) {
	y, m, ok := strings.Cut(key, "-")
	if !ok {
		return 0, 0, fmt.Errorf("invalid month key %q", key)
	}
	if year, err = strconv.Atoi(y); err != nil {
		return 0, 0, fmt.Errorf("invalid year in month key %q: %w", key, err)
	}
	if month, err = strconv.Atoi(m); err != nil {
		return 0, 0, fmt.Errorf("invalid month in month key %q: %w", key, err)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("month out of range in month key %q", key)
	}
	return year, month, nil
}

// SortMonthKeys orders keys newest first by year, then month.
func SortMonthKeys(keys []string) {
	sort.SliceStable(keys, func(i, j int) bool {
		yi, mi, _ := ParseMonthKey(keys[i])
		yj, mj, _ := ParseMonthKey(keys[j])
		if yi != yj {
			return yi > yj
		}
		return mi > mj
	})
}
