// Package childsize holds the user-declared main-axis extents of list
// children. Values are addressed by child index and mutated only through
// ordered splice operations; every mutation is reported to subscribers as a
// Change so dependent indexes can be repaired incrementally.
package childsize

import (
	"sync"
)

// Unknown is the sentinel stored for entries that have no declared extent.
// Get returns the store default for them.
const Unknown = -1.0

// ChangeKind classifies a Change.
type ChangeKind int

const (
	// ChangeUpdate means values were overwritten in place.
	ChangeUpdate ChangeKind = iota
	// ChangeInsert means the index space grew at Start.
	ChangeInsert
	// ChangeDelete means the index space shrank at Start.
	ChangeDelete
	// ChangeReset means every entry may be different (default or bulk resize).
	ChangeReset
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeUpdate:
		return "update"
	case ChangeInsert:
		return "insert"
	case ChangeDelete:
		return "delete"
	case ChangeReset:
		return "reset"
	default:
		return "unknown"
	}
}

// Change describes the affected index range [Start, End) of a mutation.
type Change struct {
	Start int
	End   int
	Kind  ChangeKind
}

// Store is a sparse, index-addressable table of declared extents.
// It is safe for concurrent use. The zero value is an empty store with a
// zero default.
type Store struct {
	mu          sync.RWMutex
	sizes       []float64
	defaultSize float64

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// New creates a store with the given fallback extent and initial values.
// The sizes slice is copied.
func New(defaultSize float64, sizes []float64) *Store {
	s := &Store{
		defaultSize: sanitizeDefault(defaultSize),
		subs:        make(map[int]func(Change)),
	}
	if len(sizes) > 0 {
		s.sizes = make([]float64, len(sizes))
		for i, v := range sizes {
			s.sizes[i] = sanitize(v)
		}
	}
	return s
}

// Get returns the declared extent at index, or the default when the entry
// is unknown or the index is out of range.
func (s *Store) Get(index int) float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if index < 0 || index >= len(s.sizes) {
		return s.defaultSize
	}
	if v := s.sizes[index]; v >= 0 {
		return v
	}
	return s.defaultSize
}

// IsDeclared reports whether index holds an explicit extent.
func (s *Store) IsDeclared(index int) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return index >= 0 && index < len(s.sizes) && s.sizes[index] >= 0
}

// Default returns the fallback extent.
func (s *Store) Default() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.defaultSize
}

// Len returns the number of entries, declared or not.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sizes)
}

// Values returns a copy of up to n raw entries starting at start, with
// Unknown for undeclared entries. It is the inverse input for Replace.
func (s *Store) Values(start, n int) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	start = clampInt(start, 0, len(s.sizes))
	end := clampInt(start+max(n, 0), start, len(s.sizes))
	out := make([]float64, end-start)
	copy(out, s.sizes[start:end])
	return out
}

// Snapshot returns a copy of all raw entries.
func (s *Store) Snapshot() []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]float64, len(s.sizes))
	copy(out, s.sizes)
	return out
}

// Replace splices values into the table at start, removing deleteCount
// entries first. A deleteCount of -1 truncates everything from start.
// Indices beyond the current bounds are clamped. It returns the entries
// that were removed or overwritten.
func (s *Store) Replace(start, deleteCount int, values []float64) []float64 {
	s.mu.Lock()
	n := len(s.sizes)
	start = clampInt(start, 0, n)
	if deleteCount < 0 {
		deleteCount = n - start
	}
	deleteCount = min(deleteCount, n-start)

	removed := make([]float64, deleteCount)
	copy(removed, s.sizes[start:start+deleteCount])

	overlap := min(deleteCount, len(values))
	for i := 0; i < overlap; i++ {
		s.sizes[start+i] = sanitize(values[i])
	}

	var change Change
	switch {
	case deleteCount > len(values):
		// trim the remainder
		cut := start + overlap
		s.sizes = append(s.sizes[:cut], s.sizes[start+deleteCount:]...)
		change = Change{Start: start, End: len(s.sizes), Kind: ChangeDelete}
	case deleteCount < len(values):
		rest := values[overlap:]
		at := start + overlap
		grown := make([]float64, 0, len(s.sizes)+len(rest))
		grown = append(grown, s.sizes[:at]...)
		for _, v := range rest {
			grown = append(grown, sanitize(v))
		}
		grown = append(grown, s.sizes[at:]...)
		s.sizes = grown
		change = Change{Start: start, End: len(s.sizes), Kind: ChangeInsert}
	default:
		change = Change{Start: start, End: start + overlap, Kind: ChangeUpdate}
	}
	s.mu.Unlock()

	if change.End > change.Start || change.Kind != ChangeUpdate {
		s.notify(change)
	}
	return removed
}

// SetDefault changes the fallback extent used for undeclared entries.
func (s *Store) SetDefault(v float64) {
	s.mu.Lock()
	v = sanitizeDefault(v)
	if v == s.defaultSize {
		s.mu.Unlock()
		return
	}
	s.defaultSize = v
	n := len(s.sizes)
	s.mu.Unlock()
	s.notify(Change{Start: 0, End: n, Kind: ChangeReset})
}

// Resize grows (with Unknown entries) or shrinks the table to n entries.
func (s *Store) Resize(n int) {
	n = max(n, 0)
	s.mu.Lock()
	old := len(s.sizes)
	if n == old {
		s.mu.Unlock()
		return
	}
	if n < old {
		s.sizes = s.sizes[:n]
	} else {
		for len(s.sizes) < n {
			s.sizes = append(s.sizes, Unknown)
		}
	}
	s.mu.Unlock()
	s.notify(Change{Start: min(n, old), End: n, Kind: ChangeReset})
}

// Subscribe registers fn to receive every subsequent Change. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Change)) (cancel func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	if s.subs == nil {
		s.subs = make(map[int]func(Change))
	}
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	fns := make([]func(Change), 0, len(s.subs))
	for i := 0; i < s.nextSub; i++ {
		if fn, ok := s.subs[i]; ok {
			fns = append(fns, fn)
		}
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(c)
	}
}

func sanitize(v float64) float64 {
	if v != v || v < 0 {
		return Unknown
	}
	return v
}

func sanitizeDefault(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
