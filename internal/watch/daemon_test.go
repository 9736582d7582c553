package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type stubRawWatcher struct {
	events chan []FileEvent
	errs   chan error
	started bool
	stopped bool
}

func newStubRawWatcher() *stubRawWatcher {
	return &stubRawWatcher{
		events: make(chan []FileEvent, 4),
		errs:   make(chan error, 4),
	}
}

func (s *stubRawWatcher) Start(ctx context.Context, path string) error {
	s.started = true
	return nil
}

func (s *stubRawWatcher) Stop() error {
	if s.stopped {
		return nil
	}
	s.stopped = true
	close(s.events)
	close(s.errs)
	return nil
}

func (s *stubRawWatcher) Events() <-chan []FileEvent { return s.events }
func (s *stubRawWatcher) Errors() <-chan error        { return s.errs }

type recordingIndexer struct {
	mu        sync.Mutex
	reindexed []string
	removed   []string
	failNext  bool
}

func (r *recordingIndexer) ReindexFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failNext {
		r.failNext = false
		return context.DeadlineExceeded
	}
	r.reindexed = append(r.reindexed, path)
	return nil
}

func (r *recordingIndexer) RemoveFile(ctx context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, path)
	return nil
}

func (r *recordingIndexer) snapshot() (reindexed, removed []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.reindexed...), append([]string(nil), r.removed...)
}

func fastTestConfig() Config {
	cfg := DefaultConfig()
	cfg.QuietPeriod = 5 * time.Millisecond
	cfg.MaxBatchTimeout = 20 * time.Millisecond
	cfg.GracePeriod = 200 * time.Millisecond
	return cfg
}

func TestDaemonStartTransitionsToRunningAndAcquiresPIDFile(t *testing.T) {
	root := t.TempDir()
	w := newStubRawWatcher()
	idx := &recordingIndexer{}
	d := New(root, w, idx, fastTestConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.State() != StateRunning {
		t.Fatalf("expected StateRunning, got %v", d.State())
	}
	if _, err := os.Stat(filepath.Join(root, PIDFilePath)); err != nil {
		t.Fatalf("expected pid file to exist: %v", err)
	}

	cancel()
	d.Wait()

	if d.State() != StateStopped {
		t.Fatalf("expected StateStopped after shutdown, got %v", d.State())
	}
	if _, err := os.Stat(filepath.Join(root, PIDFilePath)); !os.IsNotExist(err) {
		t.Fatalf("expected pid file to be removed after shutdown")
	}
}

func TestDaemonRefusesStartWhenPIDFileHeldByLiveProcess(t *testing.T) {
	root := t.TempDir()
	pf := NewPIDFile(root)
	if err := pf.Acquire(); err != nil {
		t.Fatalf("unexpected error acquiring first pid file: %v", err)
	}
	defer pf.Release()

	w := newStubRawWatcher()
	idx := &recordingIndexer{}
	d := New(root, w, idx, fastTestConfig())

	if err := d.Start(context.Background()); err == nil {
		t.Fatalf("expected Start to refuse while pid file is held")
	}
	if d.State() != StateFailed {
		t.Fatalf("expected StateFailed, got %v", d.State())
	}
}

func TestDaemonReindexesCreatedFileWithContentHash(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "a.go"), []byte("package a"), 0644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	w := newStubRawWatcher()
	idx := &recordingIndexer{}
	d := New(root, w, idx, fastTestConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.events <- []FileEvent{{Path: "a.go", Operation: OpCreate, Timestamp: time.Now()}}

	deadline := time.After(2 * time.Second)
	for {
		reindexed, _ := idx.snapshot()
		if len(reindexed) == 1 && reindexed[0] == "a.go" {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for reindex, got %v", reindexed)
		case <-time.After(5 * time.Millisecond):
		}
	}

	hash := d.lastHash("a.go")
	if hash == "" {
		t.Fatalf("expected a remembered content hash for a.go")
	}

	cancel()
	d.Wait()
}

func TestDaemonDropsBatchesWhileCircuitBreakerOpen(t *testing.T) {
	root := t.TempDir()
	w := newStubRawWatcher()
	idx := &recordingIndexer{}
	cfg := fastTestConfig()
	cfg.Breaker = CircuitBreakerConfig{FailureThreshold: 1, SuccessThreshold: 1, Timeout: time.Hour}
	d := New(root, w, idx, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d.breaker.RecordFailure()
	if d.breaker.State() != CircuitOpen {
		t.Fatalf("expected breaker to open after one failure with threshold 1")
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	w.events <- []FileEvent{{Path: "b.go", Operation: OpCreate, Timestamp: time.Now()}}
	time.Sleep(100 * time.Millisecond)

	reindexed, _ := idx.snapshot()
	if len(reindexed) != 0 {
		t.Fatalf("expected no files reindexed while breaker is open, got %v", reindexed)
	}

	cancel()
	d.Wait()
}

func TestDaemonResetClearsFailedState(t *testing.T) {
	root := t.TempDir()
	pf := NewPIDFile(root)
	if err := pf.Acquire(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer pf.Release()

	w := newStubRawWatcher()
	idx := &recordingIndexer{}
	d := New(root, w, idx, fastTestConfig())

	if err := d.Start(context.Background()); err == nil {
		t.Fatalf("expected Start to fail")
	}
	if d.State() != StateFailed {
		t.Fatalf("expected StateFailed, got %v", d.State())
	}

	d.Reset()
	if d.State() != StateStopped {
		t.Fatalf("expected StateStopped after Reset, got %v", d.State())
	}
}
