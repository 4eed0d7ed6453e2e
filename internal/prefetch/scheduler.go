// Package prefetch runs deadline-bounded background measurement of list
// items outside the visible window.
//
// Work is modelled as a resumable queue of Items. Each scheduling slice is
// posted to the host's idle queue and processes items in order until the
// supplied deadline passes, then re-posts whatever remains. A slice never
// stops part way through an item.
package prefetch

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Item is one unit of prefetch work: a child index plus, for groups, how
// many of its own items to cache on either side.
type Item struct {
	Index         int
	ForwardCache  int
	BackwardCache int
	// Show attaches the realized child to the render tree when true.
	Show bool
}

// IdleQueue is the host's background task queue. The task is invoked with
// the deadline of the idle period it runs in.
type IdleQueue interface {
	PostIdleTask(task func(deadline time.Time))
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// SystemClock reads time.Now.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Builder performs the work for a single item. It reports whether the item
// produced new layout information.
type Builder interface {
	Prefetch(item Item) bool
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(item Item) bool

// Prefetch implements Builder.
func (f BuilderFunc) Prefetch(item Item) bool { return f(item) }

// Stats counts scheduler activity.
type Stats struct {
	Submitted int
	Slices    int
	Built     int
	Yields    int
}

// Scheduler owns at most one pending work list and at most one posted task.
type Scheduler struct {
	queue   IdleQueue
	clock   Clock
	builder Builder
	logger  *slog.Logger

	// onProgress is called after a slice that built at least one item.
	onProgress func()

	mu      sync.Mutex
	id      string
	pending []Item
	posted  bool
	stats   Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock overrides the clock used for deadline checks.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithProgress registers a callback fired after any slice that built items.
func WithProgress(fn func()) Option {
	return func(s *Scheduler) { s.onProgress = fn }
}

// New creates a scheduler. The builder may be nil and set later with
// SetBuilder, before the first Submit.
func New(queue IdleQueue, builder Builder, opts ...Option) *Scheduler {
	s := &Scheduler{
		queue:   queue,
		clock:   SystemClock{},
		builder: builder,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetBuilder replaces the builder.
func (s *Scheduler) SetBuilder(b Builder) {
	s.mu.Lock()
	s.builder = b
	s.mu.Unlock()
}

// SetProgress replaces the progress callback.
func (s *Scheduler) SetProgress(fn func()) {
	s.mu.Lock()
	s.onProgress = fn
	s.mu.Unlock()
}

// Submit replaces the pending work with items. A task is posted unless one
// is already outstanding, in which case it will pick up the new list.
func (s *Scheduler) Submit(items []Item) {
	s.mu.Lock()
	if len(items) == 0 {
		s.pending = nil
		s.mu.Unlock()
		return
	}
	s.pending = append(s.pending[:0:0], items...)
	s.id = uuid.NewString()
	s.stats.Submitted++
	id := s.id
	post := !s.posted
	s.posted = true
	s.mu.Unlock()

	s.logger.Debug("[Prefetch] submitted",
		slog.String("work", id),
		slog.Int("items", len(items)))
	if post {
		s.queue.PostIdleTask(s.run)
	}
}

// Pending returns a copy of the items still waiting to be built.
func (s *Scheduler) Pending() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Item(nil), s.pending...)
}

// Cancel drops all pending work. An outstanding task becomes a no-op.
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
}

// Stats returns a snapshot of the counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// run is one scheduling slice.
func (s *Scheduler) run(deadline time.Time) {
	s.mu.Lock()
	s.stats.Slices++
	id := s.id
	builder := s.builder
	s.mu.Unlock()

	built := 0
	for {
		s.mu.Lock()
		if len(s.pending) == 0 || builder == nil {
			s.posted = false
			s.mu.Unlock()
			break
		}
		if !s.clock.Now().Before(deadline) {
			s.stats.Yields++
			remaining := len(s.pending)
			s.mu.Unlock()
			s.logger.Debug("[Prefetch] deadline reached, yielding",
				slog.String("work", id),
				slog.Int("remaining", remaining))
			s.queue.PostIdleTask(s.run)
			break
		}
		item := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		if builder.Prefetch(item) {
			built++
		}
	}

	if built > 0 {
		s.mu.Lock()
		s.stats.Built += built
		onProgress := s.onProgress
		s.mu.Unlock()
		if onProgress != nil {
			onProgress()
		}
	}
}
