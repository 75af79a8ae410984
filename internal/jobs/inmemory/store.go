package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
)

// DefaultCapacity bounds how many jobs a Store keeps.
const DefaultCapacity = 1000

// Store keeps job state in memory. Once more than capacity jobs are held,
// the oldest finished ones are dropped; pending and running jobs are never
// evicted.
type Store struct {
	mu       sync.RWMutex
	jobs     map[string]*jobs.Job
	capacity int
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithCapacity sets the retention bound. Non-positive values keep every job.
func WithCapacity(n int) StoreOption {
	return func(s *Store) {
		s.capacity = n
	}
}

// NewStore creates an empty Store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		jobs:     make(map[string]*jobs.Job),
		capacity: DefaultCapacity,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) SaveJob(ctx context.Context, job *jobs.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("SaveJob: job ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.jobs[job.JobID] = job.Clone()
	s.evictLocked()
	return nil
}

func (s *Store) GetJob(ctx context.Context, jobID string) (*jobs.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}
	return job.Clone(), nil
}

func (s *Store) ListJobs(ctx context.Context, filter jobs.JobFilter) ([]*jobs.Job, error) {
	s.mu.RLock()
	result := []*jobs.Job{}
	for _, job := range s.jobs {
		if filter.Matches(job) {
			result = append(result, job.Clone())
		}
	}
	s.mu.RUnlock()

	sortNewestFirst(result)

	if filter.Offset >= len(result) {
		return []*jobs.Job{}, nil
	}
	if filter.Offset > 0 {
		result = result[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (s *Store) UpdateJobStatus(ctx context.Context, jobID string, status jobs.JobStatus, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, common.ErrNotFound)
	}

	job.Status = status
	if errorMsg != "" {
		job.Error = errorMsg
	}
	return nil
}

// Len returns the number of jobs held.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.jobs)
}

func (s *Store) evictLocked() {
	if s.capacity <= 0 || len(s.jobs) <= s.capacity {
		return
	}

	var finished []*jobs.Job
	for _, job := range s.jobs {
		if job.Status.Finished() {
			finished = append(finished, job)
		}
	}
	sortNewestFirst(finished)

	for i := len(finished) - 1; i >= 0 && len(s.jobs) > s.capacity; i-- {
		delete(s.jobs, finished[i].JobID)
	}
}

func sortNewestFirst(list []*jobs.Job) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].JobID < list[j].JobID
		}
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
}

var _ jobs.JobStore = (*Store)(nil)
