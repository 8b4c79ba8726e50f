package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/sigap-dashboard/sigap-api/internal/platform/logger"
	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// PostgresCrimeRepository reads crime groups from the relational schema.
type PostgresCrimeRepository struct {
	db  *sqlx.DB
	log logger.Logger
}

func NewPostgresCrimeRepository(db *sqlx.DB, log logger.Logger) *PostgresCrimeRepository {
	if log == nil {
		log = logger.NewNop()
	}
	return &PostgresCrimeRepository{db: db, log: log}
}

// crimeRow is one incident joined with its owning crime group.
type crimeRow struct {
	GroupID       string          `db:"group_id"`
	DistrictID    string          `db:"district_id"`
	DistrictName  sql.NullString  `db:"district_name"`
	Year          int             `db:"year"`
	Month         int             `db:"month"`
	NumberOfCrime int             `db:"number_of_crime"`
	IncidentID    sql.NullString  `db:"incident_id"`
	Timestamp     sql.NullTime    `db:"timestamp"`
	Description   sql.NullString  `db:"description"`
	Status        sql.NullString  `db:"status"`
	Category      sql.NullString  `db:"category"`
	Address       sql.NullString  `db:"address"`
	Latitude      sql.NullFloat64 `db:"latitude"`
	Longitude     sql.NullFloat64 `db:"longitude"`
}

// crimeSelect joins a subquery of crime groups with their incidents.
const crimeSelect = `
SELECT
	c.id AS group_id,
	c.district_id,
	d.name AS district_name,
	c.year,
	c.month,
	c.number_of_crime,
	ci.id AS incident_id,
	ci.timestamp,
	ci.description,
	ci.status,
	cc.name AS category,
	l.address,
	l.latitude,
	l.longitude
FROM (%s) c
LEFT JOIN districts d ON d.id = c.district_id
LEFT JOIN crime_incidents ci ON ci.crime_id = c.id
LEFT JOIN crime_categories cc ON cc.id = ci.crime_category_id
LEFT JOIN locations l ON l.id = ci.location_id
ORDER BY c.id, ci.timestamp NULLS LAST, ci.id`

var (
	listCrimesQuery = fmt.Sprintf(crimeSelect, `
	SELECT id, district_id, year, month, number_of_crime
	FROM crimes
	WHERE ($1 = '' OR district_id = $1)
	  AND ($2 = 0 OR year = $2)
	  AND ($3 = 0 OR month = $3)
	ORDER BY id
	LIMIT $4
`)
	getCrimeQuery = fmt.Sprintf(crimeSelect, `
	SELECT id, district_id, year, month, number_of_crime
	FROM crimes
	WHERE id = $1
`)
)

// List loads the crime groups matching q. Incidents keep the order the query returns.
func (r *PostgresCrimeRepository) List(ctx context.Context, q model.CrimeQuery) ([]model.CrimeGroup, error) {
	limit := sql.NullInt64{Int64: int64(q.Limit), Valid: q.Limit > 0}

	var rows []crimeRow
	if err := r.db.SelectContext(ctx, &rows, listCrimesQuery, q.DistrictID, q.Year, q.Month, limit); err != nil {
		return nil, fmt.Errorf("query crimes: %w", err)
	}
	return r.regroup(rows), nil
}

// Get loads a single crime group by ID.
func (r *PostgresCrimeRepository) Get(ctx context.Context, id string) (model.CrimeGroup, error) {
	var rows []crimeRow
	if err := r.db.SelectContext(ctx, &rows, getCrimeQuery, id); err != nil {
		return model.CrimeGroup{}, fmt.Errorf("query crime group %s: %w", id, err)
	}
	groups := r.regroup(rows)
	if len(groups) == 0 {
		return model.CrimeGroup{}, fmt.Errorf("crime group %s: %w", id, ErrNotFound)
	}
	return groups[0], nil
}

// regroup folds joined rows back into groups, preserving row order.
func (r *PostgresCrimeRepository) regroup(rows []crimeRow) []model.CrimeGroup {
	groups := []model.CrimeGroup{}
	index := make(map[string]int)
	for _, row := range rows {
		i, ok := index[row.GroupID]
		if !ok {
			groups = append(groups, model.CrimeGroup{
				ID:            row.GroupID,
				DistrictID:    row.DistrictID,
				DistrictName:  row.DistrictName.String,
				Year:          row.Year,
				Month:         row.Month,
				NumberOfCrime: row.NumberOfCrime,
				Incidents:     []model.Incident{},
			})
			i = len(groups) - 1
			index[row.GroupID] = i
		}
		if !row.IncidentID.Valid {
			continue
		}
		groups[i].Incidents = append(groups[i].Incidents, row.incident())
	}

	for i := range groups {
		groups[i] = prepareGroup(groups[i], r.log)
	}
	return groups
}

func (row crimeRow) incident() model.Incident {
	inc := model.Incident{
		ID:          row.IncidentID.String,
		Description: row.Description.String,
		Status:      row.Status.String,
		Category:    row.Category.String,
		Address:     row.Address.String,
		Latitude:    row.Latitude.Float64,
		Longitude:   row.Longitude.Float64,
	}
	if row.Timestamp.Valid {
		ts := row.Timestamp.Time
		inc.Timestamp = &ts
	}
	return inc
}
