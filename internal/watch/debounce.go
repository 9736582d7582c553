package watch

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the per-event debounce window (§4.13 default 30ms).
const DefaultQuietPeriod = 30 * time.Millisecond

// DefaultMaxBatchTimeout is the hard cap on how long a batch can keep
// growing before it's forced out (§4.13 default 200ms).
const DefaultMaxBatchTimeout = 200 * time.Millisecond

// Batcher coalesces rapid file events per path and flushes a batch when
// either the quiet period or the max batch timeout elapses, whichever
// comes first (§4.13 "collect events into batches with two timers... flush
// when either fires"). Adapted from the teacher's single-window Debouncer
// (internal/watcher/debouncer.go) generalized to the two-timer model and
// the daemon's own Event/EventKind.
type Batcher struct {
	quietPeriod     time.Duration
	maxBatchTimeout time.Duration

	mu          sync.Mutex
	pending     map[string]Event
	batchOpened time.Time
	quietTimer  *time.Timer
	maxTimer    *time.Timer
	output      chan []Event
	stopped     bool
}

// NewBatcher builds a Batcher with the given timers. Zero values fall back
// to the spec defaults.
func NewBatcher(quietPeriod, maxBatchTimeout time.Duration) *Batcher {
	if quietPeriod <= 0 {
		quietPeriod = DefaultQuietPeriod
	}
	if maxBatchTimeout <= 0 {
		maxBatchTimeout = DefaultMaxBatchTimeout
	}
	return &Batcher{
		quietPeriod:     quietPeriod,
		maxBatchTimeout: maxBatchTimeout,
		pending:         make(map[string]Event),
		output:          make(chan []Event, 16),
	}
}

// Add coalesces event into the current batch, keyed by path (a Renamed
// event is keyed by its new Path so a rapid rename-then-edit still
// coalesces onto one entry).
func (b *Batcher) Add(event Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}

	if len(b.pending) == 0 {
		b.batchOpened = time.Now()
		b.maxTimer = time.AfterFunc(b.maxBatchTimeout, b.flush)
	}

	b.pending[event.Path] = coalesce(b.pending[event.Path], event)

	if b.quietTimer != nil {
		b.quietTimer.Stop()
	}
	b.quietTimer = time.AfterFunc(b.quietPeriod, b.flush)
}

// coalesce merges a new event onto an existing pending one for the same
// path: Renamed always wins, Created+Modified collapses to Created,
// anything else takes the latest event as-is.
func coalesce(existing Event, next Event) Event {
	if existing.Path == "" {
		return next
	}
	if next.Kind == EventRenamed {
		return next
	}
	merged := next
	if existing.Kind == EventCreated && next.Kind == EventModified {
		merged.Kind = EventCreated
	}
	return merged
}

// flush emits the pending batch, if any, and resets both timers.
func (b *Batcher) flush() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped || len(b.pending) == 0 {
		return
	}

	if b.quietTimer != nil {
		b.quietTimer.Stop()
	}
	if b.maxTimer != nil {
		b.maxTimer.Stop()
	}

	batch := make([]Event, 0, len(b.pending))
	for _, e := range b.pending {
		batch = append(batch, e)
	}
	b.pending = make(map[string]Event)

	select {
	case b.output <- batch:
	default:
	}
}

// Output returns the channel of flushed batches.
func (b *Batcher) Output() <-chan []Event {
	return b.output
}

// Stop stops any pending timers and closes Output.
func (b *Batcher) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	if b.quietTimer != nil {
		b.quietTimer.Stop()
	}
	if b.maxTimer != nil {
		b.maxTimer.Stop()
	}
	close(b.output)
}
