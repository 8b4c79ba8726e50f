package clustering

import (
	"context"
	"sync"
)

// JobManager tracks running migrations by period so a period is never migrated twice
// at once and running migrations can be cancelled on shutdown.
type JobManager struct {
	mu      sync.RWMutex
	cancels map[string]context.CancelFunc
}

func NewJobManager() *JobManager {
	return &JobManager{
		cancels: make(map[string]context.CancelFunc),
	}
}

// Register stores the cancel function for period. It returns false when a migration
// for period is already running.
func (jm *JobManager) Register(period string, cancel context.CancelFunc) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if _, ok := jm.cancels[period]; ok {
		return false
	}
	jm.cancels[period] = cancel
	return true
}

// Cancel invokes the cancel function for period if it exists.
func (jm *JobManager) Cancel(period string) bool {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if cancel, ok := jm.cancels[period]; ok {
		cancel()
		delete(jm.cancels, period)
		return true
	}
	return false
}

// CancelAll cancels every running migration.
func (jm *JobManager) CancelAll() int {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	n := len(jm.cancels)
	for period, cancel := range jm.cancels {
		cancel()
		delete(jm.cancels, period)
	}
	return n
}

// Unregister removes period once its migration finished.
func (jm *JobManager) Unregister(period string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	delete(jm.cancels, period)
}

func (jm *JobManager) IsRunning(period string) bool {
	jm.mu.RLock()
	defer jm.mu.RUnlock()
	_, ok := jm.cancels[period]
	return ok
}
