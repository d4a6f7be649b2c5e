package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/musicatlas/api/internal/model"
)

// DefaultJobTTL bounds how long a finished or abandoned job record survives.
const DefaultJobTTL = 60 * time.Minute

// JobRegistry is the in-memory job table. One mutex guards the whole map;
// its critical sections cover map access only, never external I/O, so
// concurrent jobs do not serialize each other's network work.
//
// Expired records are removed by a lazy sweep at the start of every lookup.
// A background task finishing after its record was swept writes into a
// missing key, which every mutator treats as a no-op.
type JobRegistry struct {
	mu   sync.Mutex
	jobs map[string]*model.Job
	ttl  time.Duration
	now  func() time.Time
}

func NewJobRegistry(ttl time.Duration) *JobRegistry {
	if ttl <= 0 {
		ttl = DefaultJobTTL
	}
	return &JobRegistry{
		jobs: make(map[string]*model.Job),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Create inserts a fresh queued job and returns a snapshot of it.
func (r *JobRegistry) Create() model.Job {
	now := r.now()
	job := &model.Job{
		ID:        uuid.New().String(),
		Status:    model.JobStatusQueued,
		Progress:  model.JobProgress{Stage: model.StageQueued, Counts: map[string]int{}},
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.sweepLocked()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	return snapshot(job)
}

// Get sweeps expired records first and returns a snapshot of the job.
func (r *JobRegistry) Get(id string) (model.Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sweepLocked()
	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	return snapshot(job), true
}

// Delete removes a record outright (used when dispatch fails after insert).
func (r *JobRegistry) Delete(id string) {
	r.mu.Lock()
	delete(r.jobs, id)
	r.mu.Unlock()
}

// Len reports the current registry size, expired records included.
func (r *JobRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// MarkRunning flips a queued job to running. Returns false when the record
// no longer exists.
func (r *JobRegistry) MarkRunning(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return false
	}
	job.Status = model.JobStatusRunning
	job.Progress = model.JobProgress{Stage: model.StageResolvingSeeds, Counts: map[string]int{}}
	r.touchLocked(job)
	return true
}

// UpdateProgress replaces the job's progress and refreshes its expiry.
func (r *JobRegistry) UpdateProgress(id, stage string, counts map[string]int) {
	if counts == nil {
		counts = map[string]int{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Progress = model.JobProgress{Stage: stage, Counts: counts}
	r.touchLocked(job)
}

// Complete stores the result and terminates the job in the done state.
func (r *JobRegistry) Complete(id string, result []model.Album) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Status = model.JobStatusDone
	job.Result = result
	job.Progress = model.JobProgress{
		Stage:  model.StageDone,
		Counts: map[string]int{"albums": len(result)},
	}
	r.touchLocked(job)
}

// Fail terminates the job in the error state with a human-readable message.
func (r *JobRegistry) Fail(id, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return
	}
	job.Status = model.JobStatusError
	job.Error = message
	job.Progress = model.JobProgress{Stage: model.StageError, Counts: map[string]int{}}
	r.touchLocked(job)
}

// touchLocked refreshes the mutation timestamps. Callers hold r.mu.
func (r *JobRegistry) touchLocked(job *model.Job) {
	now := r.now()
	job.UpdatedAt = now
	job.ExpiresAt = now.Add(r.ttl)
}

// sweepLocked deletes all expired records. Callers hold r.mu.
func (r *JobRegistry) sweepLocked() {
	now := r.now()
	for id, job := range r.jobs {
		if !job.ExpiresAt.After(now) {
			delete(r.jobs, id)
		}
	}
}

// snapshot copies a job so callers never alias registry-owned state. The
// result slice is shared; stored results are treated as immutable.
func snapshot(job *model.Job) model.Job {
	copied := *job
	counts := make(map[string]int, len(job.Progress.Counts))
	for k, v := range job.Progress.Counts {
		counts[k] = v
	}
	copied.Progress.Counts = counts
	return copied
}
