package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwbudde/soilfit/internal/fit"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether the state is final
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobConfig is the body of POST /api/v1/jobs. Exactly one of Curve and
// DataPath selects the measured data; empty fields use the server defaults.
type JobConfig struct {
	Method   string     `json:"method,omitempty"`
	LSQ      string     `json:"lsq,omitempty"`
	Curve    *fit.Curve `json:"curve,omitempty"`
	DataPath string     `json:"dataPath,omitempty"`

	// Starts is grid, random or fixed
	Starts string       `json:"starts,omitempty"`
	Fixed  []fit.Params `json:"fixed,omitempty"`
	Limit  int          `json:"limit,omitempty"`

	Seed    int64 `json:"seed,omitempty"`
	Workers int   `json:"workers,omitempty"`
}

// Job represents a fitting job
type Job struct {
	ID        string      `json:"id"`
	State     JobState    `json:"state"`
	Config    JobConfig   `json:"config"`
	Method    string      `json:"method"`
	Curve     fit.Curve   `json:"curve"`
	Completed int         `json:"completed"`
	Total     int         `json:"total"`
	Best      *fit.Trial  `json:"best,omitempty"`
	Result    *fit.Result `json:"result,omitempty"`
	StartTime time.Time   `json:"startTime"`
	EndTime   *time.Time  `json:"endTime,omitempty"`
	Error     string      `json:"error,omitempty"`

	session *fit.Session
	cancel  context.CancelFunc
}

// elapsed is the run time so far, or the total run time of a finished job
func (j *Job) elapsed() time.Duration {
	if j.EndTime != nil {
		return j.EndTime.Sub(j.StartTime)
	}
	return time.Since(j.StartTime)
}

// JobManager manages the lifecycle of jobs
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob registers a pending job for the given session
func (jm *JobManager) CreateJob(config JobConfig, session *fit.Session) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		StartTime: time.Now(),
		session:   session,
	}
	if session != nil {
		job.Curve = session.Curve
		if session.Method != nil {
			job.Method = session.Method.Name()
		}
	}

	jm.jobs[job.ID] = job
	snapshot := *job
	return &snapshot
}

// GetJob returns a snapshot of a job by ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	snapshot := *job
	return &snapshot, true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		snapshot := *job
		jobs = append(jobs, &snapshot)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].StartTime.Before(jobs[j].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			snapshot := *job
			runningJobs = append(runningJobs, &snapshot)
		}
	}
	return runningJobs
}

// Cancel requests cancellation of a pending or running job. It reports
// false when the job has already finished.
func (jm *JobManager) Cancel(id string) (bool, error) {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return false, fmt.Errorf("job not found: %s", id)
	}
	if job.State.Terminal() {
		return false, nil
	}
	job.requestCancel()
	return true, nil
}

// CancelAll cancels every unfinished job
func (jm *JobManager) CancelAll() {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	for _, job := range jm.jobs {
		if !job.State.Terminal() {
			job.requestCancel()
		}
	}
}

// requestCancel stops a running job through its context. A job not picked
// up by a worker yet is cancelled on the spot. Callers hold the lock.
func (j *Job) requestCancel() {
	if j.cancel != nil {
		j.cancel()
		return
	}
	now := time.Now()
	j.State = StateCancelled
	j.EndTime = &now
}
