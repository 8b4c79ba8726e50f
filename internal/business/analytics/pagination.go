package analytics

import (
	"fmt"
	"sync"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
)

// Direction moves a month cursor.
type Direction string

const (
	Next Direction = "next"
	Prev Direction = "prev"
)

// ParseDirection validates a direction coming from a request path.
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Next, Prev:
		return Direction(s), nil
	default:
		return "", fmt.Errorf("invalid direction %q (want %q or %q)", s, Next, Prev)
	}
}

// Cursor tracks a zero-based page index per month key.
// It is not safe for concurrent use; CursorStore serializes access.
type Cursor struct {
	months []string
	pages  map[string]int
}

// NewCursor returns a cursor seeded with months.
func NewCursor(months []string) *Cursor {
	c := &Cursor{}
	c.SetMonths(months)
	return c
}

// SetMonths resets every page to 0 when months differs from the last list seen.
// Keys that disappear are dropped and keys that stay are reset too.
func (c *Cursor) SetMonths(months []string) bool {
	if c.pages != nil && equalKeys(c.months, months) {
		return false
	}
	c.months = append([]string(nil), months...)
	c.pages = make(map[string]int, len(months))
	for _, m := range months {
		c.pages[m] = 0
	}
	return true
}

// Advance moves the page for key. Next has no upper bound; the caller caps it
// against the real page count. Prev stops at 0.
func (c *Cursor) Advance(key string, dir Direction) int {
	if c.pages == nil {
		c.pages = make(map[string]int)
	}
	switch dir {
	case Next:
		c.pages[key]++
	case Prev:
		if c.pages[key] > 0 {
			c.pages[key]--
		}
	}
	return c.pages[key]
}

// Page returns the current page for key.
func (c *Cursor) Page(key string) int {
	return c.pages[key]
}

// Pages returns a copy of the whole mapping.
func (c *Cursor) Pages() map[string]int {
	out := make(map[string]int, len(c.pages))
	for k, v := range c.pages {
		out[k] = v
	}
	return out
}

func equalKeys(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// CursorStore owns one Cursor per dashboard session.
type CursorStore struct {
	mu      sync.Mutex
	cursors map[string]*Cursor
}

// NewCursorStore creates an empty store.
func NewCursorStore() *CursorStore {
	return &CursorStore{cursors: make(map[string]*Cursor)}
}

// Sync applies the latest month list to the session's cursor and returns its pages.
func (s *CursorStore) Sync(session string, months []string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.cursorLocked(session)
	c.SetMonths(months)
	return c.Pages()
}

// Advance moves the session's cursor for key and returns the new page.
func (s *CursorStore) Advance(session, key string, dir Direction) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorLocked(session).Advance(key, dir)
}

// Page returns the session's current page for key.
func (s *CursorStore) Page(session, key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursorLocked(session).Page(key)
}

// Forget drops a session's cursor.
func (s *CursorStore) Forget(session string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, session)
}

func (s *CursorStore) cursorLocked(session string) *Cursor {
	c, ok := s.cursors[session]
	if !ok {
		c = &Cursor{pages: make(map[string]int)}
		s.cursors[session] = c
	}
	return c
}

// MonthPage is one page of a month bucket.
type MonthPage struct {
	Month      string               `json:"month"`
	Page       int                  `json:"page"`
	PageSize   int                  `json:"pageSize"`
	TotalPages int                  `json:"totalPages"`
	Total      int                  `json:"total"`
	Items      []model.FlatIncident `json:"items"`
}

// PageIncidents slices the bucket for month. A page past the end yields no items.
func PageIncidents(result model.AnalyticsResult, month string, page, pageSize int) MonthPage {
	if pageSize <= 0 {
		pageSize = 10
	}
	if page < 0 {
		page = 0
	}
	bucket := result.IncidentsByMonthDetail[month]
	out := MonthPage{
		Month:    month,
		Page:     page,
		PageSize: pageSize,
		Total:    len(bucket),
		Items:    []model.FlatIncident{},
	}
	if len(bucket) == 0 {
		return out
	}
	out.TotalPages = (len(bucket)-1)/pageSize + 1
	if page >= out.TotalPages {
		return out
	}
	start := page * pageSize
	end := len(bucket)
	if pageSize < end-start {
		end = start + pageSize
	}
	out.Items = bucket[start:end]
	return out
}
