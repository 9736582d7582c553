package watch

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/gofrs/flock"
)

// PIDFilePath is the fixed location §4.13 names: ".codegraph/watch.pid" in
// the project root.
const PIDFilePath = ".codegraph/watch.pid"

// PIDFile manages the daemon's cross-process PID file, combining the
// teacher's PID read/write/signal shape (internal/daemon/pidfile.go) with
// its own flock-based advisory lock (internal/embed/lock.go) so "start
// refuses if a process with that PID is alive" (§4.13) is backed by an
// actual OS lock rather than only a liveness probe of the stored PID.
type PIDFile struct {
	path  string
	flock *flock.Flock
}

// NewPIDFile builds a PIDFile rooted at projectRoot/.codegraph/watch.pid.
func NewPIDFile(projectRoot string) *PIDFile {
	path := filepath.Join(projectRoot, PIDFilePath)
	return &PIDFile{path: path, flock: flock.New(path)}
}

func (p *PIDFile) Path() string { return p.path }

// Acquire cleans up a stale PID file (one whose process no longer exists),
// refuses to start if a live process already holds it, then writes the
// current PID (§4.13 "start refuses if a process with that PID is alive;
// stale PID files are cleaned automatically").
func (p *PIDFile) Acquire() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0755); err != nil {
		return fmt.Errorf("create pid file directory: %w", err)
	}

	if pid, err := p.read(); err == nil && processAlive(pid) {
		return fmt.Errorf("watch daemon already running with pid %d", pid)
	}
	_ = os.Remove(p.path)

	acquired, err := p.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire pid file lock: %w", err)
	}
	if !acquired {
		return fmt.Errorf("watch daemon pid file %s is locked by another process", p.path)
	}

	if err := os.WriteFile(p.path, []byte(strconv.Itoa(os.Getpid())), 0644); err != nil {
		_ = p.flock.Unlock()
		return fmt.Errorf("write pid file: %w", err)
	}
	return nil
}

// Release unlocks and removes the PID file (§4.13 "stop removes it...
// remove the PID file regardless" on shutdown).
func (p *PIDFile) Release() error {
	_ = p.flock.Unlock()
	if err := os.Remove(p.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove pid file: %w", err)
	}
	return nil
}

func (p *PIDFile) read() (int, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(string(data))
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
