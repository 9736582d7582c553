// Package arena provides paged bump arenas for the short-lived node/edge
// batches produced per file during parsing, grounded on the teacher repo's
// memory layer conventions and on codegraph-core::memory::arena in the
// original Rust implementation (see SPEC_FULL.md §C.2).
package arena

// Index is a compact 64-bit handle (page, offset) into a PagedArena.
type Index uint64

// NewIndex packs a page and offset into an Index.
func NewIndex(page, offset uint32) Index {
	return Index(uint64(page)<<32 | uint64(offset))
}

// Page returns the page component.
func (i Index) Page() uint32 { return uint32(i >> 32) }

// Offset returns the offset component.
func (i Index) Offset() uint32 { return uint32(i) }

const (
	// DefaultNodePageCapacity is the default number of items per page for
	// node arenas (§4.1).
	DefaultNodePageCapacity = 4096
	// DefaultEdgePageCapacity is the default number of items per page for
	// edge arenas (§4.1).
	DefaultEdgePageCapacity = 8192
)

// Paged is a paged arena over homogeneous items. Allocation is amortized
// O(1) (push into the current page until full); indexed access is O(1);
// iteration preserves insertion order. There is no explicit free for
// individual items — the whole arena is released at once when dropped
// (Reset, or letting it become garbage).
type Paged[T any] struct {
	pages       [][]T
	pageCap     int
	len         int
}

// NewPaged creates a paged arena with the given page capacity (minimum 1).
func NewPaged[T any](pageCapacity int) *Paged[T] {
	if pageCapacity < 1 {
		pageCapacity = 1
	}
	return &Paged[T]{pageCap: pageCapacity}
}

// NewNodePaged returns a Paged arena sized for Node batches.
func NewNodePaged[T any]() *Paged[T] { return NewPaged[T](DefaultNodePageCapacity) }

// NewEdgePaged returns a Paged arena sized for Edge batches.
func NewEdgePaged[T any]() *Paged[T] { return NewPaged[T](DefaultEdgePageCapacity) }

func (a *Paged[T]) ensurePage() {
	if n := len(a.pages); n > 0 && len(a.pages[n-1]) < a.pageCap {
		return
	}
	a.pages = append(a.pages, make([]T, 0, a.pageCap))
}

// Alloc appends value into the arena and returns its handle.
func (a *Paged[T]) Alloc(value T) Index {
	a.ensurePage()
	pageIdx := len(a.pages) - 1
	page := a.pages[pageIdx]
	offset := len(page)
	a.pages[pageIdx] = append(page, value)
	a.len++
	return NewIndex(uint32(pageIdx), uint32(offset))
}

// Len returns the total number of items allocated.
func (a *Paged[T]) Len() int { return a.len }

// IsEmpty reports whether the arena holds no items.
func (a *Paged[T]) IsEmpty() bool { return a.len == 0 }

// Get returns the item at idx and whether it was in range.
func (a *Paged[T]) Get(idx Index) (T, bool) {
	var zero T
	page := idx.Page()
	if int(page) >= len(a.pages) {
		return zero, false
	}
	offset := idx.Offset()
	p := a.pages[page]
	if int(offset) >= len(p) {
		return zero, false
	}
	return p[offset], true
}

// Set overwrites the item at idx, reporting false if out of range.
func (a *Paged[T]) Set(idx Index, value T) bool {
	page := idx.Page()
	if int(page) >= len(a.pages) {
		return false
	}
	offset := idx.Offset()
	p := a.pages[page]
	if int(offset) >= len(p) {
		return false
	}
	p[offset] = value
	return true
}

// ForEach iterates all items in insertion order.
func (a *Paged[T]) ForEach(fn func(Index, T)) {
	for pageIdx, page := range a.pages {
		for offset, item := range page {
			fn(NewIndex(uint32(pageIdx), uint32(offset)), item)
		}
	}
}

// ToSlice copies all items into a flat slice in insertion order.
func (a *Paged[T]) ToSlice() []T {
	out := make([]T, 0, a.len)
	for _, page := range a.pages {
		out = append(out, page...)
	}
	return out
}

// Reset frees all pages at once, as if the arena had just been created.
func (a *Paged[T]) Reset() {
	a.pages = nil
	a.len = 0
}
