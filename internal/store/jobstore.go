// Package store implements ports.JobStore and ports.ChatStore as in-memory,
// non-durable maps guarded by a mutex. Grounded on original_source/backend/
// app/core/storage.py's InMemoryJobStore and app/core/chat_storage.py's
// InMemoryChatStore; a mutex replaces Python's single-threaded MVP
// assumption since Go jobs genuinely run on concurrent goroutines.
// Non-durable by design (Non-goal: persistent storage) — process restart
// loses all jobs and sessions.
package store

import (
	"fmt"
	"sync"

	"github.com/veridoc-ai/compliance-rag/internal/domain/entities"
)

// JobStore is an in-memory implementation of ports.JobStore.
type JobStore struct {
	mu   sync.RWMutex
	jobs map[string]*entities.Job
}

// NewJobStore builds an empty JobStore.
func NewJobStore() *JobStore {
	return &JobStore{jobs: make(map[string]*entities.Job)}
}

// Create registers a new job. Returns an error if a job with the same ID
// already exists.
func (s *JobStore) Create(job *entities.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("store: job %q already exists", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(id string) (*entities.Job, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	return job, ok
}

// Update replaces the stored job's state. Returns an error if the job was
// never created.
func (s *JobStore) Update(job *entities.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; !exists {
		return fmt.Errorf("store: job %q not found", job.ID)
	}
	s.jobs[job.ID] = job
	return nil
}

// Count returns the number of stored jobs, optionally filtered by status.
// status == "" counts every job.
func (s *JobStore) Count(status entities.JobStatus) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if status == "" {
		return len(s.jobs)
	}
	n := 0
	for _, j := range s.jobs {
		if j.Status == status {
			n++
		}
	}
	return n
}
