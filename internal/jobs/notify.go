package jobs

import (
	"context"
	"sync"

	"scriptd/internal/metrics"
)

// MetricsNotifier feeds job transitions into the metrics package.
var MetricsNotifier = NotifierFunc(func(_ context.Context, ev Event) {
	switch {
	case ev.From == "":
		metrics.RecordJobSubmitted()
	case ev.Job.Status == StatusExecuting:
		metrics.RecordJobStarted()
	case ev.Job.Status.Terminal():
		metrics.RecordJobFinished(string(ev.Job.Status), ev.From == StatusExecuting)
	}
})

// outbox holds one job's pending events. Events are pushed under the
// registry lock, so their order is the order the transitions were
// applied. At most one goroutine drains an outbox at a time.
type outbox struct {
	mu       sync.Mutex
	pending  []Event
	draining bool
}

func (b *outbox) push(ev Event) {
	b.mu.Lock()
	b.pending = append(b.pending, ev)
	b.mu.Unlock()
}

// drain delivers pending events in order. If another goroutine is
// already draining, it returns at once and that goroutine delivers the
// events pushed meanwhile.
func (b *outbox) drain(deliver func(Event)) {
	b.mu.Lock()
	if b.draining {
		b.mu.Unlock()
		return
	}
	b.draining = true
	for len(b.pending) > 0 {
		ev := b.pending[0]
		b.pending[0] = Event{}
		b.pending = b.pending[1:]
		b.mu.Unlock()

		deliver(ev)

		b.mu.Lock()
	}
	b.pending = nil
	b.draining = false
	b.mu.Unlock()
}
