package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/dvloznov/smart-finance/internal/domain"
	"github.com/dvloznov/smart-finance/internal/jobs"
)

// Store keeps sync jobs in process memory, keyed by job id. Callers always
// get copies. Nothing survives a restart.
type Store struct {
	mu   sync.RWMutex
	byID map[string]jobs.SyncJob
}

// NewStore returns an empty job store.
func NewStore() *Store {
	return &Store{byID: make(map[string]jobs.SyncJob)}
}

var _ jobs.JobStore = (*Store)(nil)

// SaveJob inserts or replaces job.
func (s *Store) SaveJob(ctx context.Context, job *jobs.SyncJob) error {
	if job == nil || job.JobID == "" {
		return fmt.Errorf("SaveJob: job id: %w", domain.ErrInputMissing)
	}

	s.mu.Lock()
	s.byID[job.JobID] = *job
	s.mu.Unlock()
	return nil
}

// GetJob returns the job with jobID or domain.ErrNotFound.
func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.SyncJob, error) {
	s.mu.RLock()
	job, ok := s.byID[jobID]
	s.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("GetJob: %s: %w", jobID, domain.ErrNotFound)
	}
	return &job, nil
}

// ListJobs returns the jobs matching filter, newest first. Jobs created at
// the same instant are ordered by id.
func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.SyncJob, error) {
	s.mu.RLock()
	matched := make([]*jobs.SyncJob, 0, len(s.byID))
	for _, job := range s.byID {
		if matches(filter, job) {
			job := job
			matched = append(matched, &job)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.CreatedAt.Equal(b.CreatedAt) {
			return a.JobID < b.JobID
		}
		return a.CreatedAt.After(b.CreatedAt)
	})
	return page(matched, filter.Offset, filter.Limit), nil
}

// UpdateJobStatus sets the status of jobID. A non-empty errorMsg replaces
// the recorded error; an empty one keeps it.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.byID[jobID]
	if !ok {
		return fmt.Errorf("UpdateJobStatus: %s: %w", jobID, domain.ErrNotFound)
	}
	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	s.byID[jobID] = job
	return nil
}

func matches(f jobs.JobFilter, job jobs.SyncJob) bool {
	if f.UserID != "" && job.UserID != f.UserID {
		return false
	}
	return f.Status == "" || job.Status == f.Status
}

// page applies offset then limit. Zero values mean no bound.
func page(list []*jobs.SyncJob, offset, limit int) []*jobs.SyncJob {
	if offset >= len(list) {
		return []*jobs.SyncJob{}
	}
	if offset > 0 {
		list = list[offset:]
	}
	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}
	return list
}
