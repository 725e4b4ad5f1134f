package storage

import (
	"sync"
	"time"

	"github.com/veranemoloko/clipfetch/internal/domain"
)

// JobRecord is the last known state of one tracked job.
type JobRecord struct {
	Key        string
	Handle     domain.JobHandle
	Submission domain.Submission
	State      domain.DownloadState
	UpdatedAt  time.Time
}

// JobRegistry keeps the DownloadState of several jobs in memory. Records are
// keyed by a caller-chosen key; the JobHandle is stored once the server
// assigns one.
type JobRegistry struct {
	mu      sync.RWMutex
	records map[string]*JobRecord
	order   []string
}

// NewJobRegistry creates an empty registry.
func NewJobRegistry() *JobRegistry {
	return &JobRegistry{
		records: make(map[string]*JobRecord),
	}
}

// Track registers a submission under key in the Idle state.
func (r *JobRegistry) Track(key string, sub domain.Submission) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[key]; !exists {
		r.order = append(r.order, key)
	}
	r.records[key] = &JobRecord{
		Key:        key,
		Submission: sub,
		State:      domain.Idle{},
		UpdatedAt:  time.Now(),
	}
}

// SetHandle records the server handle for key.
func (r *JobRegistry) SetHandle(key string, h domain.JobHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[key]; ok {
		rec.Handle = h
		rec.UpdatedAt = time.Now()
	}
}

// Update stores a new state for key. Unknown keys are ignored.
func (r *JobRegistry) Update(key string, state domain.DownloadState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec, ok := r.records[key]; ok {
		rec.State = state
		rec.UpdatedAt = time.Now()
	}
}

// Get returns a copy of the record for key.
func (r *JobRegistry) Get(key string) (JobRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.records[key]
	if !ok {
		return JobRecord{}, false
	}
	return *rec, true
}

// GetAll returns copies of all records in registration order.
func (r *JobRegistry) GetAll() []JobRecord {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]JobRecord, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, *r.records[key])
	}
	return out
}

// CountByPhase returns how many records are in each phase.
func (r *JobRegistry) CountByPhase() map[domain.Phase]int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[domain.Phase]int)
	for _, rec := range r.records {
		counts[rec.State.Phase()]++
	}
	return counts
}
