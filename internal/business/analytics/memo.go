package analytics

import (
	"sync"

	"github.com/sigap-dashboard/sigap-api/pkg/model"
	"github.com/sigap-dashboard/sigap-api/pkg/util"
)

// MemoKey identifies an aggregation input by content and category filter. The category
// is matched exactly, like the filter itself.
func MemoKey(groups []model.CrimeGroup, category string) string {
	if category == "" {
		category = AllCategories
	}
	return util.HashCrimeGroups(groups) + ":" + util.HashString(category)
}

// Memo keeps the last computed result and reuses it while the input key is unchanged.
// Results are shared between callers and must be treated as read-only.
type Memo struct {
	mu     sync.Mutex
	key    string
	result model.AnalyticsResult
	valid  bool
}

// Get returns the memoized result when key matches the last stored input.
func (m *Memo) Get(key string) (model.AnalyticsResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.valid || m.key != key {
		return model.AnalyticsResult{}, false
	}
	return m.result, true
}

// Put replaces the memoized entry.
func (m *Memo) Put(key string, result model.AnalyticsResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = key
	m.result = result
	m.valid = true
}

// Do returns the memoized result for key or computes and stores a new one.
func (m *Memo) Do(key string, compute func() model.AnalyticsResult) (model.AnalyticsResult, bool) {
	if r, ok := m.Get(key); ok {
		return r, true
	}
	r := compute()
	m.Put(key, r)
	return r, false
}

// Invalidate drops the memoized entry so the next call recomputes.
func (m *Memo) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.key = ""
	m.result = model.AnalyticsResult{}
	m.valid = false
}
