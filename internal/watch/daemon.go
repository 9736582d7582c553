package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/codegraph-dev/codegraph/internal/errors"
)

// DefaultGracePeriod bounds shutdown (§4.13 default 5s).
const DefaultGracePeriod = 5 * time.Second

// RawWatcher is the narrow slice of the underlying file-system watcher the
// daemon depends on — the shape FSWatcher implements (rawwatcher.go),
// batched raw events plus a separate error channel for non-fatal watcher
// errors.
type RawWatcher interface {
	Start(ctx context.Context, path string) error
	Stop() error
	Events() <-chan []FileEvent
	Errors() <-chan error
}

// Indexer is the normal write pipeline a batch is replayed through (§4.13
// "re-indexing uses the normal write pipeline and is idempotent"),
// grounded on internal/index/coordinator.go's indexFile/removeFile split.
type Indexer interface {
	ReindexFile(ctx context.Context, path string) error
	RemoveFile(ctx context.Context, path string) error
}

// Config parameterizes a Daemon; zero values fall back to spec defaults.
type Config struct {
	QuietPeriod     time.Duration
	MaxBatchTimeout time.Duration
	GracePeriod     time.Duration
	Breaker         CircuitBreakerConfig
	Reconnect       errors.RetryConfig
}

// DefaultConfig returns the spec's default timers and thresholds.
func DefaultConfig() Config {
	return Config{
		QuietPeriod:     DefaultQuietPeriod,
		MaxBatchTimeout: DefaultMaxBatchTimeout,
		GracePeriod:     DefaultGracePeriod,
		Breaker:         DefaultCircuitBreakerConfig(),
		Reconnect: errors.RetryConfig{
			MaxRetries:   10,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     30 * time.Second,
			Multiplier:   2.0,
			Jitter:       true,
		},
	}
}

// Daemon is the Watch Daemon (C13): lifecycle state machine, debounce/
// batch stage, circuit-breaker-guarded batch processing, and PID file.
type Daemon struct {
	root    string
	watcher RawWatcher
	indexer Indexer
	cfg     Config

	state   stateMachine
	batcher *Batcher
	breaker *CircuitBreaker
	pidfile *PIDFile

	hashMu sync.Mutex
	hashes map[string]string

	inFlight sync.WaitGroup

	stopCh chan struct{}
	doneCh chan struct{}
}

// New builds a Daemon rooted at root, watching via w and replaying batches
// through indexer.
func New(root string, w RawWatcher, indexer Indexer, cfg Config) *Daemon {
	if cfg.QuietPeriod <= 0 {
		cfg.QuietPeriod = DefaultQuietPeriod
	}
	if cfg.MaxBatchTimeout <= 0 {
		cfg.MaxBatchTimeout = DefaultMaxBatchTimeout
	}
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	return &Daemon{
		root:    root,
		watcher: w,
		indexer: indexer,
		cfg:     cfg,
		batcher: NewBatcher(cfg.QuietPeriod, cfg.MaxBatchTimeout),
		breaker: NewCircuitBreaker(cfg.Breaker),
		pidfile: NewPIDFile(root),
		hashes:  make(map[string]string),
		stopCh:  make(chan struct{}),
		doneCh:  make(chan struct{}),
	}
}

// State returns the daemon's current lifecycle state.
func (d *Daemon) State() State { return d.state.Current() }

// Start transitions Stopped → Starting → Running, acquires the PID file,
// and begins converting raw watcher events into debounced batches fed
// through the indexer. It returns once the daemon is Running; Run exits
// when ctx is cancelled or a fatal error moves the daemon to Failed.
func (d *Daemon) Start(ctx context.Context) error {
	if err := d.state.transition(StateStarting); err != nil {
		return err
	}

	if err := d.pidfile.Acquire(); err != nil {
		_ = d.state.transition(StateFailed)
		return fmt.Errorf("acquire pid file: %w", err)
	}

	// Reconnect backoff (§4.13 "exponential with jitter, capped") covers the
	// underlying watcher's own initialization, which can transiently fail
	// (e.g. an inotify instance limit that clears once other processes exit).
	if err := errors.Retry(ctx, d.cfg.Reconnect, func() error {
		return d.watcher.Start(ctx, d.root)
	}); err != nil {
		_ = d.pidfile.Release()
		_ = d.state.transition(StateFailed)
		return fmt.Errorf("start watcher: %w", err)
	}

	if err := d.state.transition(StateRunning); err != nil {
		_ = d.pidfile.Release()
		return err
	}

	go d.pumpRawEvents(ctx)
	go d.run(ctx)

	return nil
}

// pumpRawEvents converts the underlying watcher's batched raw FileEvents
// into hashed watch.Events fed to the Batcher, and forwards watcher errors
// to the log (non-fatal per §4.13 — the watcher itself owns fsnotify
// reconnection, rawwatcher.go).
func (d *Daemon) pumpRawEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.stopCh:
			return
		case batch, ok := <-d.watcher.Events():
			if !ok {
				return
			}
			for _, raw := range batch {
				if raw.IsDir {
					continue
				}
				d.batcher.Add(d.toEvent(raw))
			}
		case err, ok := <-d.watcher.Errors():
			if !ok {
				return
			}
			slog.Warn("watch daemon: underlying watcher error", slog.String("error", err.Error()))
		}
	}
}

// toEvent converts a raw FileEvent into a watch.Event, attaching the
// per-file content hash §4.13 requires.
func (d *Daemon) toEvent(raw FileEvent) Event {
	e := Event{Path: raw.Path, OldPath: raw.OldPath, Timestamp: raw.Timestamp}

	switch raw.Operation {
	case OpCreate:
		e.Kind = EventCreated
		e.NewHash = d.hashAndRemember(raw.Path)
	case OpModify:
		e.Kind = EventModified
		e.OldHash = d.lastHash(raw.Path)
		e.NewHash = d.hashAndRemember(raw.Path)
	case OpDelete:
		e.Kind = EventDeleted
		e.OldHash = d.forgetHash(raw.Path)
	case OpRename:
		e.Kind = EventRenamed
		e.NewHash = d.hashAndRemember(raw.Path)
	default:
		e.Kind = EventModified
		e.NewHash = d.hashAndRemember(raw.Path)
	}
	return e
}

func (d *Daemon) hashAndRemember(relPath string) string {
	h := hashFile(d.root, relPath)
	d.hashMu.Lock()
	d.hashes[relPath] = h
	d.hashMu.Unlock()
	return h
}

func (d *Daemon) lastHash(relPath string) string {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	return d.hashes[relPath]
}

func (d *Daemon) forgetHash(relPath string) string {
	d.hashMu.Lock()
	defer d.hashMu.Unlock()
	old := d.hashes[relPath]
	delete(d.hashes, relPath)
	return old
}

func hashFile(root, relPath string) string {
	content, err := os.ReadFile(filepath.Join(root, relPath))
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// run drains debounced batches and replays each through the indexer
// behind the circuit breaker until ctx is cancelled, then performs a
// bounded-grace-period shutdown. Each batch runs in its own tracked
// goroutine so shutdown can wait on in-flight work without blocking the
// dispatch loop itself.
func (d *Daemon) run(ctx context.Context) {
	defer close(d.doneCh)

	for {
		select {
		case <-ctx.Done():
			d.shutdown()
			return
		case batch, ok := <-d.batcher.Output():
			if !ok {
				return
			}
			d.inFlight.Add(1)
			go func(b []Event) {
				defer d.inFlight.Done()
				d.processBatch(ctx, b)
			}(batch)
		}
	}
}

// processBatch replays one debounced batch through the indexer. While the
// breaker is open, the whole batch is dropped with a warning (§4.13).
func (d *Daemon) processBatch(ctx context.Context, batch []Event) {
	if !d.breaker.Allow() {
		slog.Warn("watch daemon: circuit breaker open, dropping batch", slog.Int("batch_size", len(batch)))
		return
	}

	for _, event := range batch {
		var err error
		switch event.Kind {
		case EventCreated, EventModified:
			err = d.indexer.ReindexFile(ctx, event.Path)
		case EventDeleted:
			err = d.indexer.RemoveFile(ctx, event.Path)
		case EventRenamed:
			if event.OldPath != "" {
				_ = d.indexer.RemoveFile(ctx, event.OldPath)
			}
			err = d.indexer.ReindexFile(ctx, event.Path)
		}

		if err != nil {
			d.breaker.RecordFailure()
			slog.Warn("watch daemon: failed to process event",
				slog.String("path", event.Path),
				slog.String("kind", event.Kind.String()),
				slog.String("error", err.Error()))
			continue
		}
		d.breaker.RecordSuccess()
	}
}

// shutdown transitions Running → Stopping, stops the watcher and batcher,
// waits up to GracePeriod for the in-flight batch to finish, and always
// removes the PID file (§4.13 "respond to a cancellation signal within a
// bounded grace period... and remove the PID file regardless").
func (d *Daemon) shutdown() {
	if err := d.state.transition(StateStopping); err != nil {
		return
	}

	close(d.stopCh)
	_ = d.watcher.Stop()
	d.batcher.Stop()

	waited := make(chan struct{})
	go func() {
		d.inFlight.Wait()
		close(waited)
	}()

	select {
	case <-waited:
	case <-time.After(d.cfg.GracePeriod):
		slog.Warn("watch daemon: grace period elapsed with batches still in flight")
	}

	_ = d.pidfile.Release()
	_ = d.state.transition(StateStopped)
}

// Wait blocks until the daemon's run loop has exited.
func (d *Daemon) Wait() {
	<-d.doneCh
}

// Reset clears a Failed state back to Stopped so the daemon can be
// restarted (§4.13 "Failed is terminal until reset").
func (d *Daemon) Reset() {
	d.state.reset()
}
