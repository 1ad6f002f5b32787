package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"scriptd/internal/backend"
)

// Event describes one applied status transition. From is empty for the
// creation of a job.
type Event struct {
	Job  Job
	From Status
}

// Notifier observes job transitions. Events of one job are delivered one
// at a time, in the order the transitions were applied, after the
// registry lock has been released. Delivery may happen on the goroutine
// of a later transition of the same job.
type Notifier interface {
	Notify(ctx context.Context, ev Event)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, ev Event)

func (f NotifierFunc) Notify(ctx context.Context, ev Event) { f(ctx, ev) }

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrent bounds how many backend runs execute at once. Values
// of zero or less mean unbounded.
func WithMaxConcurrent(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.sem = make(chan struct{}, n)
		} else {
			d.sem = nil
		}
	}
}

// WithLogger sets the dispatcher logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithNotifiers registers transition observers.
func WithNotifiers(ns ...Notifier) Option {
	return func(d *Dispatcher) { d.notifiers = append(d.notifiers, ns...) }
}

// WithIDGenerator overrides job id generation.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dispatcher) { d.newID = fn }
}

// WithClock overrides the time source used for start/end timestamps.
func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

// Dispatcher turns submissions into running work and publishes each
// outcome back to the Registry.
type Dispatcher struct {
	registry  *Registry
	backend   backend.Backend
	logger    *slog.Logger
	notifiers []Notifier
	sem       chan struct{}
	newID     func() string
	now       func() time.Time

	baseCtx  context.Context
	shutdown context.CancelFunc
	wg       sync.WaitGroup
}

func NewDispatcher(reg *Registry, be backend.Backend, opts ...Option) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		registry: reg,
		backend:  be,
		newID:    newJobID,
		now:      func() time.Time { return time.Now().UTC() },
		baseCtx:  ctx,
		shutdown: cancel,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// newJobID prefers time-ordered uuidv7 ids when available.
func newJobID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.New().String()
}

func (d *Dispatcher) logInfo(msg string, args ...any) {
	if d.logger != nil {
		d.logger.Info(msg, args...)
	}
}

// Registry exposes the underlying job registry.
func (d *Dispatcher) Registry() *Registry { return d.registry }

// Submit registers code as a new job and schedules it. Non-blocking
// submissions return the queued snapshot immediately. Blocking ones wait
// until the job is terminal; if ctx ends first the job is failed with an
// interruption error and its work is cancelled.
func (d *Dispatcher) Submit(ctx context.Context, code string, blocking bool) (Job, error) {
	id := d.newID()
	workCtx, cancel := context.WithCancel(d.baseCtx)
	job, events, err := d.registry.create(id, code, cancel)
	if err != nil {
		cancel()
		return Job{}, err
	}
	d.deliver(events)

	d.wg.Add(1)
	go d.run(workCtx, id, code)

	d.logInfo("script_enqueued",
		"script_id", id,
		"blocking", blocking,
		"code_bytes", len(code),
	)

	if !blocking {
		return job, nil
	}
	return d.wait(ctx, id)
}

func (d *Dispatcher) wait(ctx context.Context, id string) (Job, error) {
	done, err := d.registry.Done(id)
	if err != nil {
		return Job{}, err
	}

	select {
	case <-done:
	case <-ctx.Done():
		msg := fmt.Sprintf("interrupted while waiting for result: %v", context.Cause(ctx))
		if _, ok := d.transition(id, markFailed(msg, d.now())); ok {
			d.registry.Cancel(id)
			d.logInfo("script_wait_interrupted", "script_id", id, "error", msg)
		}
	}
	return d.registry.Get(id)
}

func (d *Dispatcher) run(ctx context.Context, id, code string) {
	defer d.wg.Done()
	defer d.registry.Release(id)

	if d.sem != nil {
		select {
		case d.sem <- struct{}{}:
			defer func() { <-d.sem }()
		case <-ctx.Done():
		}
	}
	if ctx.Err() != nil {
		// Stopped (or shut down) before a worker slot was free: the
		// backend is never invoked.
		d.transition(id, markStopped(d.now()))
		return
	}

	if _, ok := d.transition(id, markExecuting(d.now())); !ok {
		return
	}
	d.logInfo("script_started", "script_id", id)

	output, err := d.invoke(ctx, code)
	now := d.now()

	var (
		job     Job
		applied bool
	)
	switch {
	case err == nil:
		job, applied = d.transition(id, markCompleted(output, now))
	case errors.Is(err, backend.ErrAborted) || ctx.Err() != nil:
		job, applied = d.transition(id, markStopped(now))
	default:
		job, applied = d.transition(id, markFailed(err.Error(), now))
	}
	if applied {
		d.logInfo("script_finished",
			"script_id", id,
			"status", string(job.Status),
			"duration_ms", job.EndTime.Sub(*job.StartTime).Milliseconds(),
		)
	}
}

// invoke runs the backend, turning a panic into an execution error so a
// misbehaving backend never takes the worker down.
func (d *Dispatcher) invoke(ctx context.Context, code string) (out string, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = "", fmt.Errorf("backend panic: %v", r)
		}
	}()
	return d.backend.Run(ctx, code)
}

// Stop requests cancellation of a queued or executing job and marks it
// stopped. It reports whether this call stopped the job. Cancellation is
// best-effort: the backend may still be unwinding when Stop returns.
func (d *Dispatcher) Stop(id string) bool {
	job, err := d.registry.Get(id)
	if err != nil || job.Status.Terminal() {
		return false
	}
	if !d.registry.Cancel(id) {
		return false
	}
	if _, ok := d.transition(id, markStopped(d.now())); !ok {
		return false
	}
	d.logInfo("script_stopped", "script_id", id, "previous_status", string(job.Status))
	return true
}

// Remove discards the job and its cancellation handle.
func (d *Dispatcher) Remove(id string) {
	d.registry.Remove(id)
}

// Get returns a snapshot of one job.
func (d *Dispatcher) Get(id string) (Job, error) {
	return d.registry.Get(id)
}

// List returns job snapshots; see Registry.List.
func (d *Dispatcher) List(opts ListOptions) []Job {
	return d.registry.List(opts)
}

// Shutdown cancels all outstanding work and waits for the workers to
// return, or for ctx to end.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.shutdown()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) transition(id string, fn func(*Job) bool) (Job, bool) {
	job, events, ok := d.registry.update(id, fn)
	if ok {
		d.deliver(events)
	}
	return job, ok
}

func (d *Dispatcher) deliver(events *outbox) {
	if events == nil {
		return
	}
	// Transitions applied during shutdown are still reported.
	ctx := context.WithoutCancel(d.baseCtx)
	events.drain(func(ev Event) {
		for _, n := range d.notifiers {
			n.Notify(ctx, ev)
		}
	})
}
