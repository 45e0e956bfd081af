// Package registry holds the Job Registry: an in-memory, mutex-guarded
// map from job id to Job record. It is constructed once at startup and
// passed into the Orchestrator and every collaborator that needs to read
// or mutate job state, replacing the process-global mutable dictionary
// pattern the teacher used for its own job store.
package registry

import (
	"sync"

	"github.com/texforge/texforge/internal/domain"
	texerrors "github.com/texforge/texforge/pkg/errors"
	"github.com/texforge/texforge/pkg/logger"
)

// Filter narrows List results. A zero-value Filter matches every Job.
type Filter struct {
	Status domain.Status // empty matches any status
}

func (f Filter) matches(j *domain.Job) bool {
	if f.Status != "" && j.Status != f.Status {
		return false
	}
	return true
}

// Registry is the single shared mutable store in the engine. One
// mutex (a plain sync.Mutex, not reentrant) guards both the job map and the
// admission counter (active count is derived from the map on read, so
// no separate counter can drift from it).
type Registry struct {
	mu     sync.Mutex
	jobs   map[string]*domain.Job
	logger *logger.Logger
}

// New creates an empty Registry.
func New(log *logger.Logger) *Registry {
	return &Registry{
		jobs:   make(map[string]*domain.Job),
		logger: log.WithField("component", "job-registry"),
	}
}

// Insert adds a new Job under its ID. Fails with ErrJobAlreadyExists if
// the ID is already present, preserving the invariant that admission
// never silently overwrites an existing record.
func (r *Registry) Insert(job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return texerrors.ErrJobAlreadyExists
	}
	r.jobs[job.ID] = job
	return nil
}

// Get returns a deep copy of the Job for the given id, safe for the
// caller to read without holding the Registry lock. Mutations must go
// through Mutate.
func (r *Registry) Get(id string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[id]
	if !exists {
		return nil, texerrors.NewJobNotFoundError(id)
	}
	return job.DeepCopy(), nil
}

// Mutate applies fn to the live Job record under the Registry lock,
// the only sanctioned path for changing Job state after insertion. fn
// must not block or call back into the Registry.
func (r *Registry) Mutate(id string, fn func(*domain.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, exists := r.jobs[id]
	if !exists {
		return texerrors.NewJobNotFoundError(id)
	}
	fn(job)
	return nil
}

// List returns deep copies of every Job matching filter.
func (r *Registry) List(filter Filter) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.matches(job) {
			out = append(out, job.DeepCopy())
		}
	}
	return out
}

// Remove deletes the Job record entirely. Callers must have already
// reclaimed its directories; Remove only drops the in-memory entry.
func (r *Registry) Remove(id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[id]; !exists {
		return texerrors.NewJobNotFoundError(id)
	}
	delete(r.jobs, id)
	return nil
}

// ActiveCount returns the number of Jobs currently in status pending or
// running — the quantity admission control compares against
// MaxConcurrent.
func (r *Registry) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.activeCountLocked()
}

func (r *Registry) activeCountLocked() int {
	n := 0
	for _, job := range r.jobs {
		if job.Status == domain.StatusPending || job.Status == domain.StatusRunning {
			n++
		}
	}
	return n
}

// InsertIfUnderCapacity atomically checks the active count against max
// and, if still below it, inserts job. This is the single lock
// covering both the admission-count check and the registry insertion
// that spec §4.1 requires; Submit must not observe a TOCTOU window
// between counting and inserting.
func (r *Registry) InsertIfUnderCapacity(job *domain.Job, max int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.ID]; exists {
		return texerrors.ErrJobAlreadyExists
	}
	if r.activeCountLocked() >= max {
		return texerrors.ErrCapacityExceeded
	}
	r.jobs[job.ID] = job
	return nil
}

// TerminalBefore returns deep copies of every Job whose status is
// terminal (but not already cleaned) and for which isEligible returns
// true, for the sweeper to act on outside the lock.
func (r *Registry) TerminalBefore(isEligible func(*domain.Job) bool) []*domain.Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*domain.Job
	for _, job := range r.jobs {
		if job.Status.IsTerminal() && job.Status != domain.StatusCleaned && isEligible(job) {
			out = append(out, job.DeepCopy())
		}
	}
	return out
}
