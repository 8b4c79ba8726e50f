package model

import "time"

// Incident is a single reported crime event as stored under a crime group.
type Incident struct {
	ID          string     `json:"id" firestore:"id" db:"id" validate:"required"`
	Timestamp   *time.Time `json:"timestamp" firestore:"timestamp" db:"timestamp"`
	Description string     `json:"description,omitempty" firestore:"description,omitempty" db:"description"`
	Status      string     `json:"status,omitempty" firestore:"status,omitempty" db:"status"`
	Category    string     `json:"category,omitempty" firestore:"category,omitempty" db:"category"`
	Address     string     `json:"address,omitempty" firestore:"address,omitempty" db:"address"`
	Latitude    float64    `json:"latitude,omitempty" firestore:"latitude,omitempty" db:"latitude"`
	Longitude   float64    `json:"longitude,omitempty" firestore:"longitude,omitempty" db:"longitude"`
}

// CrimeGroup is one district's crime record for a period, stored in the `crimes` collection.
type CrimeGroup struct {
	ID            string     `json:"id,omitempty" firestore:"id,omitempty"`
	DistrictID    string     `json:"districtId" firestore:"districtId" validate:"required"`
	DistrictName  string     `json:"districtName,omitempty" firestore:"districtName,omitempty"`
	Year          int        `json:"year,omitempty" firestore:"year,omitempty"`
	Month         int        `json:"month,omitempty" firestore:"month,omitempty" validate:"gte=0,lte=12"`
	NumberOfCrime int        `json:"numberOfCrime" firestore:"numberOfCrime"` // Upstream-maintained incident count
	Incidents     []Incident `json:"incidents" firestore:"incidents" validate:"dive"`
	UpdatedAt     time.Time  `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// FlatIncident is an Incident denormalized with its owning district.
type FlatIncident struct {
	Incident
	DistrictID   string `json:"district_id"`
	DistrictName string `json:"district_name"`
}

// AnalyticsResult is the derived dashboard view over a set of crime groups.
type AnalyticsResult struct {
	TotalIncidents         int                       `json:"totalIncidents"`
	TodaysIncidents        int                       `json:"todaysIncidents"`
	RecentIncidents        []FlatIncident            `json:"recentIncidents"`
	FilteredIncidents      []FlatIncident            `json:"filteredIncidents"`
	CategoryCounts         map[string]int            `json:"categoryCounts"`
	Districts              map[string]int            `json:"districts"`
	IncidentsByMonth       [12]int                   `json:"incidentsByMonth"`
	ClearanceRate          int                       `json:"clearanceRate"`
	IncidentsByMonthDetail map[string][]FlatIncident `json:"incidentsByMonthDetail"`
	AvailableMonths        []string                  `json:"availableMonths"`
}

// CrimeStats is the category-filtered variant of AnalyticsResult.
type CrimeStats struct {
	TotalIncidents    int            `json:"totalIncidents"`
	TodaysIncidents   int            `json:"todaysIncidents"`
	RecentIncidents   []FlatIncident `json:"recentIncidents"`
	FilteredIncidents []FlatIncident `json:"filteredIncidents"`
	CategoryCounts    map[string]int `json:"categoryCounts"`
	Districts         map[string]int `json:"districts"`
	IncidentsByMonth  [12]int        `json:"incidentsByMonth"`
}

// DashboardSnapshot is a singleton document that pre-aggregates dashboard metrics.
type DashboardSnapshot struct {
	LastUpdated      time.Time      `json:"lastUpdated,omitempty" firestore:"lastUpdated,omitempty"`
	TotalIncidents   int            `json:"totalIncidents" firestore:"totalIncidents"`
	TodaysIncidents  int            `json:"todaysIncidents" firestore:"todaysIncidents"`
	ClearanceRate    int            `json:"clearanceRate" firestore:"clearanceRate"`
	CategoryCounts   map[string]int `json:"categoryCounts,omitempty" firestore:"categoryCounts,omitempty"`
	Districts        map[string]int `json:"districts,omitempty" firestore:"districts,omitempty"`
	IncidentsByMonth []int          `json:"incidentsByMonth,omitempty" firestore:"incidentsByMonth,omitempty"`
	AvailableMonths  []string       `json:"availableMonths,omitempty" firestore:"availableMonths,omitempty"`
}

// Risk levels assigned by district clustering.
const (
	RiskLow    = "low"
	RiskMedium = "medium"
	RiskHigh   = "high"
)

// DistrictCluster is a district's current risk classification.
type DistrictCluster struct {
	DistrictID   string    `json:"districtId,omitempty" firestore:"districtId,omitempty"`
	DistrictName string    `json:"districtName" firestore:"districtName"`
	Count        int       `json:"count" firestore:"count"`
	Level        string    `json:"level" firestore:"level"`
	Centroid     float64   `json:"centroid" firestore:"centroid"`
	NeedsUpdate  bool      `json:"needsUpdate" firestore:"needsUpdate"`
	FlaggedAt    time.Time `json:"flaggedAt,omitempty" firestore:"flaggedAt,omitempty"`
	Period       string    `json:"period,omitempty" firestore:"period,omitempty"` // Set on historical copies, e.g. "2024-3"
	UpdatedAt    time.Time `json:"updatedAt,omitempty" firestore:"updatedAt,omitempty"`
}

// MigrationRunStats stores counters for a cluster migration run.
type MigrationRunStats struct {
	Found    int `json:"found,omitempty" firestore:"found,omitempty"`
	Migrated int `json:"migrated,omitempty" firestore:"migrated,omitempty"`
	Failed   int `json:"failed,omitempty" firestore:"failed,omitempty"`
}

// MigrationRun tracks the lifecycle of a live-to-historical cluster migration.
type MigrationRun struct {
	RunID      string            `json:"runId,omitempty" firestore:"runId,omitempty"`
	Period     string            `json:"period,omitempty" firestore:"period,omitempty"`
	Status     string            `json:"status,omitempty" firestore:"status,omitempty"`
	Stats      MigrationRunStats `json:"stats,omitempty" firestore:"stats,omitempty"`
	StartedAt  time.Time         `json:"startedAt,omitempty" firestore:"startedAt,omitempty"`
	FinishedAt time.Time         `json:"finishedAt,omitempty" firestore:"finishedAt,omitempty"`
	Error      string            `json:"error,omitempty" firestore:"error,omitempty"`
}

// CrimeQuery scopes which crime groups are loaded. Zero values mean "any".
type CrimeQuery struct {
	DistrictID string
	Year       int
	Month      int
	Limit      int
}
