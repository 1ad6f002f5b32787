package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	// ErrNotFound is returned when no job exists for an id.
	ErrNotFound = errors.New("job not found")
	// ErrDuplicateID is returned by Create when the id is already taken.
	ErrDuplicateID = errors.New("duplicate job id")
)

// OrderDesc selects descending startTime order in ListOptions.
const OrderDesc = "desc"

// ListOptions narrows and orders a List call.
type ListOptions struct {
	// Status keeps only jobs with exactly this status when non-empty.
	Status Status
	// Order is "desc" for descending startTime; anything else is ascending.
	Order string
}

type entry struct {
	job    Job
	seq    uint64
	cancel context.CancelFunc
	done   chan struct{}
	// events is set for jobs whose transitions are observed.
	events *outbox
}

// Registry is the in-memory store of script jobs. Every read returns a
// copy and every write is applied to a copy that replaces the stored
// record under the lock, so readers never see a half-applied update.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
	seq     uint64
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Create inserts a new queued job.
func (r *Registry) Create(id, code string) (Job, error) {
	job, _, err := r.create(id, code, nil)
	return job, err
}

// create inserts a new queued job with its cancellation handle attached
// in the same critical section, so the job is never visible without it.
// When cancel is set the job also gets an outbox holding the creation
// event and every later transition applied through update.
func (r *Registry) create(id, code string, cancel context.CancelFunc) (Job, *outbox, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.entries[id]; exists {
		return Job{}, nil, fmt.Errorf("create %s: %w", id, ErrDuplicateID)
	}
	r.seq++
	e := &entry{
		job:    Job{ID: id, Code: code, Status: StatusQueued},
		seq:    r.seq,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	if cancel != nil {
		e.events = &outbox{}
		e.events.push(Event{Job: e.job.Clone()})
	}
	r.entries[id] = e
	return e.job.Clone(), e.events, nil
}

// Get returns a snapshot of the job or ErrNotFound.
func (r *Registry) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return Job{}, fmt.Errorf("get %s: %w", id, ErrNotFound)
	}
	return e.job.Clone(), nil
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// List returns snapshots filtered by status and ordered by startTime.
//
// Jobs that have not started yet sort first in ascending order and last
// in descending order. Jobs with equal start times keep submission order.
func (r *Registry) List(opts ListOptions) []Job {
	r.mu.RLock()
	type item struct {
		job Job
		seq uint64
	}
	items := make([]item, 0, len(r.entries))
	for _, e := range r.entries {
		if opts.Status != "" && e.job.Status != opts.Status {
			continue
		}
		items = append(items, item{job: e.job.Clone(), seq: e.seq})
	}
	r.mu.RUnlock()

	desc := opts.Order == OrderDesc
	sort.Slice(items, func(i, j int) bool {
		a, b := items[i].job.StartTime, items[j].job.StartTime
		switch {
		case a == nil && b == nil:
		case a == nil:
			return !desc
		case b == nil:
			return desc
		case !a.Equal(*b):
			if desc {
				return a.After(*b)
			}
			return a.Before(*b)
		}
		return items[i].seq < items[j].seq
	})

	out := make([]Job, len(items))
	for i := range items {
		out[i] = items[i].job
	}
	return out
}

// Update applies fn to a copy of the job and stores the result when fn
// returns true. It is a no-op when the job is absent, already terminal,
// or when fn produced an illegal change (status transition, identity or
// a timestamp that was already set). It returns the resulting snapshot
// and whether the change was applied.
func (r *Registry) Update(id string, fn func(*Job) bool) (Job, bool) {
	job, _, ok := r.update(id, fn)
	return job, ok
}

// update is Update that also queues the applied change on the job's
// outbox, under the same lock, and returns that outbox.
func (r *Registry) update(id string, fn func(*Job) bool) (Job, *outbox, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return Job{}, nil, false
	}
	if e.job.Status.Terminal() {
		return e.job.Clone(), nil, false
	}

	next := e.job.Clone()
	if !fn(&next) {
		return e.job.Clone(), nil, false
	}
	if next.ID != e.job.ID || next.Code != e.job.Code ||
		!CanTransition(e.job.Status, next.Status) ||
		!setOnce(e.job.StartTime, next.StartTime) ||
		!setOnce(e.job.EndTime, next.EndTime) {
		return e.job.Clone(), nil, false
	}

	from := e.job.Status
	e.job = next
	if next.Status.Terminal() {
		close(e.done)
	}
	if e.events != nil {
		e.events.push(Event{Job: next.Clone(), From: from})
	}
	return next.Clone(), e.events, true
}

func setOnce(prev, next *time.Time) bool {
	if prev == nil {
		return true
	}
	return next != nil && next.Equal(*prev)
}

// Remove deletes the job and releases its cancellation handle.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	e, ok := r.entries[id]
	if ok {
		delete(r.entries, id)
	}
	r.mu.Unlock()

	if !ok {
		return
	}
	if e.cancel != nil {
		e.cancel()
	}
	if !e.job.Status.Terminal() {
		close(e.done)
	}
}

// Cancel signals the job's handle, if any, and reports whether one was
// present. The handle stays attached until Release or Remove.
func (r *Registry) Cancel(id string) bool {
	r.mu.RLock()
	var cancel context.CancelFunc
	if e, ok := r.entries[id]; ok {
		cancel = e.cancel
	}
	r.mu.RUnlock()

	if cancel == nil {
		return false
	}
	cancel()
	return true
}

// Release drops the job's cancellation handle once its work has ended.
func (r *Registry) Release(id string) {
	r.mu.Lock()
	var cancel context.CancelFunc
	if e, ok := r.entries[id]; ok {
		cancel = e.cancel
		e.cancel = nil
	}
	r.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done returns a channel closed once the job is terminal or removed.
func (r *Registry) Done(id string) (<-chan struct{}, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("done %s: %w", id, ErrNotFound)
	}
	return e.done, nil
}

// Sweep removes terminal jobs that ended before cutoff and returns how
// many were removed.
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for id, e := range r.entries {
		if !e.job.Status.Terminal() || e.job.EndTime == nil {
			continue
		}
		if e.job.EndTime.Before(cutoff) {
			if e.cancel != nil {
				e.cancel()
			}
			delete(r.entries, id)
			n++
		}
	}
	return n
}
