package memhost

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/posmap"
	"github.com/joeycumines/vlist/internal/prefetch"
)

// Session wires a Host to a layout.List together with the shared position
// index, declared sizes and, when an idle queue is supplied, a prefetch
// scheduler.
type Session struct {
	Host      *Host
	List      *layout.List
	Index     *posmap.Index
	Scheduler *prefetch.Scheduler

	invalidations atomic.Int64
	onInvalidate  atomic.Pointer[func()]
}

// SessionOptions configures NewSession. The zero value is usable.
type SessionOptions struct {
	Logger *slog.Logger
	// Queue runs prefetch slices. Nil disables prefetching.
	Queue prefetch.IdleQueue
	Clock prefetch.Clock
	// DeclaredPrefix is passed to WithDeclaredPrefix.
	DeclaredPrefix int
	GroupSpacing   float64
}

// NewSession builds a host from dc and a list over it.
func NewSession(dc config.DataConfig, cfg layout.Config, opts SessionOptions) (*Session, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := &Session{Index: posmap.New()}

	host, err := New(dc,
		WithLogger(logger),
		WithDeclaredPrefix(opts.DeclaredPrefix),
		WithGroupSpacing(opts.GroupSpacing),
		WithInvalidate(s.invalidate),
	)
	if err != nil {
		return nil, err
	}
	s.Host = host

	listOpts := []layout.Option{
		layout.WithLogger(logger),
		layout.WithPositionIndex(s.Index),
	}
	if opts.Clock != nil {
		listOpts = append(listOpts, layout.WithClock(opts.Clock))
	}
	if opts.Queue != nil {
		schedOpts := []prefetch.Option{prefetch.WithLogger(logger)}
		if opts.Clock != nil {
			schedOpts = append(schedOpts, prefetch.WithClock(opts.Clock))
		}
		s.Scheduler = prefetch.New(opts.Queue, nil, schedOpts...)
		listOpts = append(listOpts, layout.WithScheduler(s.Scheduler))
	}
	if sizes := host.DeclaredSizes(); sizes != nil {
		listOpts = append(listOpts, layout.WithDeclaredSizes(sizes))
	}
	s.List = layout.New(host, cfg, listOpts...)
	host.OnDataChanged(s.dataChanged)
	return s, nil
}

// OnInvalidate registers fn to run whenever the host asks for another pass.
// fn may run on the prefetch queue's goroutine.
func (s *Session) OnInvalidate(fn func()) {
	if fn == nil {
		s.onInvalidate.Store(nil)
		return
	}
	s.onInvalidate.Store(&fn)
}

// Invalidations counts layout requests since the session was created.
func (s *Session) Invalidations() int64 { return s.invalidations.Load() }

func (s *Session) invalidate() {
	s.invalidations.Add(1)
	if fn := s.onInvalidate.Load(); fn != nil {
		(*fn)()
	}
}

// dataChanged forwards a host mutation. The declared store was already
// spliced by the host, which marked the position index dirty.
func (s *Session) dataChanged(index, count int) {
	s.List.NotifyDataChanged(index, count)
}

// Pass runs Measure then Layout.
func (s *Session) Pass(mainSize, crossSize float64) layout.PassResult {
	res := s.List.Measure(layout.Constraint{MainSize: mainSize, CrossSize: crossSize})
	s.List.Layout()
	return res
}

// PassWithin is Pass with a cooperative deadline budget from now.
func (s *Session) PassWithin(mainSize, crossSize float64, budget time.Duration) layout.PassResult {
	c := layout.Constraint{MainSize: mainSize, CrossSize: crossSize}
	if budget > 0 {
		c.Deadline = time.Now().Add(budget)
	}
	res := s.List.Measure(c)
	s.List.Layout()
	return res
}

// Close releases the list and cancels pending prefetch work.
func (s *Session) Close() {
	s.List.Close()
}
