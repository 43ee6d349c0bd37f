// Package jobs tracks asynchronous pipeline runs started over the API.
package jobs

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one tracked pipeline run.
type Job struct {
	ID         string     `json:"id"`
	CampaignID string     `json:"campaign_id"`
	Status     Status     `json:"status"`
	Error      string     `json:"error,omitempty"`
	Result     any        `json:"result,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Store is an in-memory job registry. Jobs live for the life of the
// process; the durable record of a run is the pipeline_runs table.
type Store struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a queued job for a campaign and returns it.
func (s *Store) Create(campaignID string) *Job {
	job := &Job{
		ID:         uuid.New().String(),
		CampaignID: campaignID,
		Status:     StatusQueued,
		CreatedAt:  time.Now().UTC(),
	}
	s.mu.Lock()
	s.jobs[job.ID] = job
	s.mu.Unlock()
	return job
}

// Get returns a copy of the job, or nil when it does not exist.
func (s *Store) Get(id string) *Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil
	}
	cp := *job
	return &cp
}

// List returns all jobs, newest first.
func (s *Store) List() []Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		out = append(out, *job)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Start marks the job running.
func (s *Store) Start(id string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusRunning
		job.StartedAt = &now
	}
}

// Complete marks the job finished with a result.
func (s *Store) Complete(id string, result any) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusCompleted
		job.Result = result
		job.FinishedAt = &now
	}
}

// Delete removes a finished job. Running jobs are kept so pollers do
// not lose track of in-flight work; it reports whether the job was
// removed.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok || job.Status == StatusQueued || job.Status == StatusRunning {
		return false
	}
	delete(s.jobs, id)
	return true
}

// Fail marks the job failed with an error message.
func (s *Store) Fail(id string, errMsg string) {
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobs[id]; ok {
		job.Status = StatusFailed
		job.Error = errMsg
		job.FinishedAt = &now
	}
}
