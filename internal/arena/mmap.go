package arena

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Advice is a best-effort OS hint for how a memory-mapped file will be
// accessed. Hints never fail the caller — any error applying one is
// swallowed (§4.1: "hints are best-effort and must never fail the caller").
type Advice int

const (
	AdviceSequential Advice = iota
	AdviceRandom
	AdviceWillNeed
	AdviceDontNeed
)

// MappedFile is a read-only memory map of a file, used by the Walker/AST
// Extractor for files above a size threshold instead of reading the whole
// file into a []byte (SPEC_FULL.md §C.1).
type MappedFile struct {
	data []byte
	f    *os.File
}

// OpenMapped memory-maps path read-only.
func OpenMapped(path string) (*MappedFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("arena: open %s: %w", path, err)
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: stat %s: %w", path, err)
	}
	if fi.Size() == 0 {
		// mmap of a zero-length file is invalid on most platforms; return an
		// empty, valid MappedFile instead of failing the caller.
		f.Close()
		return &MappedFile{data: []byte{}}, nil
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(fi.Size()), unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("arena: mmap %s: %w", path, err)
	}
	return &MappedFile{data: data, f: f}, nil
}

// Bytes returns the mapped content.
func (m *MappedFile) Bytes() []byte { return m.data }

// Advise applies a best-effort access-pattern hint. Errors are swallowed.
func (m *MappedFile) Advise(a Advice) {
	if len(m.data) == 0 {
		return
	}
	var advice int
	switch a {
	case AdviceSequential:
		advice = unix.MADV_SEQUENTIAL
	case AdviceRandom:
		advice = unix.MADV_RANDOM
	case AdviceWillNeed:
		advice = unix.MADV_WILLNEED
	case AdviceDontNeed:
		advice = unix.MADV_DONTNEED
	default:
		return
	}
	_ = unix.Madvise(m.data, advice)
}

// Prefetch is an alias for Advise(AdviceWillNeed), matching the spec's
// {sequential, random, will-need, dont-need, prefetch} hint set (§4.1) —
// "prefetch" and "will-need" are the same underlying madvise call.
func (m *MappedFile) Prefetch() { m.Advise(AdviceWillNeed) }

// Close unmaps the file and releases the underlying descriptor. Safe to
// call multiple times.
func (m *MappedFile) Close() error {
	if m.data != nil && len(m.data) > 0 {
		_ = unix.Munmap(m.data)
		m.data = nil
	}
	if m.f != nil {
		err := m.f.Close()
		m.f = nil
		return err
	}
	return nil
}
