package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
)

// resetJobStore is written by the scheduler goroutine and read by pollers.
type resetJobStore struct {
	mu   sync.RWMutex
	jobs map[uuid.UUID]*models.ResetJob
}

func newResetJobStore() *resetJobStore {
	return &resetJobStore{jobs: make(map[uuid.UUID]*models.ResetJob)}
}

// pendingWithScope returns a pending job with an identical scope.
func (s *resetJobStore) pendingWithScope(scope models.ResetScope) (*models.ResetJob, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.Status == models.ResetJobPending && j.Scope == scope {
			return j.Clone(), true
		}
	}

	return nil, false
}

func (s *resetJobStore) create(scope models.ResetScope, now time.Time) *models.ResetJob {
	job := &models.ResetJob{
		ID:        uuid.New(),
		Scope:     scope,
		Status:    models.ResetJobPending,
		CreatedAt: now,
	}

	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()

	return job.Clone()
}

func (s *resetJobStore) finish(id uuid.UUID, counts map[string]int64, err error, now time.Time) *models.ResetJob {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.jobs[id]
	job.DeletedCounts = counts
	job.FinishedAt = &now
	if err != nil {
		job.Status = models.ResetJobFailed
		job.Error = err.Error()
	} else {
		job.Status = models.ResetJobCompleted
	}

	return job.Clone()
}

func (s *resetJobStore) get(id uuid.UUID) (*models.ResetJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("reset job %s: %w", id, models.ErrResetJobNotFound)
	}

	return job.Clone(), nil
}
