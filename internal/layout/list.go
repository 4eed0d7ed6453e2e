package layout

import (
	"log/slog"
	"sync"
	"time"

	"github.com/joeycumines/vlist/internal/childsize"
	"github.com/joeycumines/vlist/internal/posmap"
	"github.com/joeycumines/vlist/internal/prefetch"
)

// List is the top-level incremental layout orchestrator. A pass is one
// Measure followed by one Layout; queries observe the result of the last
// completed Layout.
type List struct {
	mu sync.Mutex

	host   Host
	cfg    Config
	logger *slog.Logger
	clock  prefetch.Clock
	sched  *prefetch.Scheduler

	index       *posmap.Index
	sizes       *childsize.Store
	unsubscribe func()

	state     State
	items     window
	groups    map[uint64]*GroupEngine
	groupAt   map[int]uint64
	sizeCache map[int]float64
	touched   map[int]struct{}
	recycled  []int

	cacheBefore window
	cacheAfter  window

	totalOffset        float64
	contentMainSize    float64
	contentStartOffset float64
	contentEndOffset   float64
	mainSize           float64
	crossSize          float64
	laneCross          float64
	lanes              int
	count              int
	unbounded          bool

	delta        float64
	jump         *jumpRequest
	target       *jumpRequest
	needEstimate bool
	gesture      *snapGesture

	// per-pass state
	currentOffset float64
	startMainPos  float64
	endMainPos    float64
	deadline      time.Time
	incomplete    bool
	jumped        bool
	groupJump     *jumpRequest

	pub snapshot
}

type jumpRequest struct {
	index   int
	inGroup int
	align   ScrollAlign
	extra   float64
}

// Option configures a List.
type Option func(*List)

// WithLogger sets the logger used for pass traces and diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(l *List) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the clock used for deadline checks.
func WithClock(clock prefetch.Clock) Option {
	return func(l *List) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// WithScheduler attaches a prefetch scheduler. The list registers itself as
// the scheduler's builder.
func WithScheduler(s *prefetch.Scheduler) Option {
	return func(l *List) { l.sched = s }
}

// WithPositionIndex wires a shared position index.
func WithPositionIndex(x *posmap.Index) Option {
	return func(l *List) { l.index = x }
}

// WithDeclaredSizes wires a shared declared-size store.
func WithDeclaredSizes(s *childsize.Store) Option {
	return func(l *List) { l.sizes = s }
}

// New creates an orchestrator over host.
func New(host Host, cfg Config, opts ...Option) *List {
	l := &List{
		host:      host,
		cfg:       cfg,
		logger:    slog.Default(),
		clock:     prefetch.SystemClock{},
		groups:    make(map[uint64]*GroupEngine),
		groupAt:   make(map[int]uint64),
		sizeCache: make(map[int]float64),
		lanes:     max(cfg.Lanes, 1),
		pub:       snapshot{start: -1, end: -1, mid: -1},
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.sched != nil {
		l.sched.SetBuilder(l)
		l.sched.SetProgress(l.requestLayout)
	}
	if l.index != nil {
		l.index.SetLogger(l.logger)
	}
	l.wireSizes()
	return l
}

// Config returns the current configuration.
func (l *List) Config() Config {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cfg
}

// SetConfig replaces the configuration. It takes effect on the next pass.
func (l *List) SetConfig(cfg Config) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cfg.Lanes != l.cfg.Lanes || cfg.Spacing != l.cfg.Spacing {
		if l.index != nil {
			l.index.MarkDirty(posmap.FlagLanes | posmap.FlagSpacing)
		}
	}
	l.cfg = cfg
}

// SetPositionIndex wires the shared position index, replacing any previous.
func (l *List) SetPositionIndex(x *posmap.Index) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	l.index = x
	if x != nil {
		x.SetLogger(l.logger)
	}
	l.wireSizes()
}

// SetChildrenDeclaredSizes wires the declared-size store. A nil store
// returns the list to measuring every child.
func (l *List) SetChildrenDeclaredSizes(s *childsize.Store) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	l.sizes = s
	l.wireSizes()
}

func (l *List) wireSizes() {
	if l.index == nil || l.sizes == nil {
		return
	}
	l.unsubscribe = l.index.Subscribe(l.sizes)
	l.index.MarkDirty(posmap.FlagCount)
}

// Close detaches the list from the shared stores and cancels prefetch work.
func (l *List) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		l.unsubscribe()
		l.unsubscribe = nil
	}
	if l.sched != nil {
		l.sched.Cancel()
	}
}

// ScrollBy records a main-axis scroll delta for the next pass. Positive
// values move the viewport toward higher indices.
func (l *List) ScrollBy(delta float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delta += delta
}

// ScrollTo requests an absolute scroll offset, resolved against the
// current estimate.
func (l *List) ScrollTo(offset float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.delta = offset - l.pub.offset
}

// ScrollToIndex requests that index be brought into view under align.
// LastItem names the final child. extraOffset shifts the final position
// further toward higher indices.
func (l *List) ScrollToIndex(index int, align ScrollAlign, extraOffset float64) {
	l.requestJump(&jumpRequest{index: index, inGroup: -1, align: align, extra: extraOffset})
}

// ScrollToItemInGroup requests that item indexInGroup of the group at
// index be brought into view.
func (l *List) ScrollToItemInGroup(index, indexInGroup int, align ScrollAlign) {
	l.requestJump(&jumpRequest{index: index, inGroup: indexInGroup, align: align})
}

func (l *List) requestJump(req *jumpRequest) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.jump = req
	l.target = nil
	l.delta = 0
}

// SetTarget asks subsequent passes to extend the layout toward index
// without recycling until it has been realized, as an animated scroll does.
func (l *List) SetTarget(index int, align ScrollAlign) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = &jumpRequest{index: index, inGroup: -1, align: align}
}

// NotifyDataChanged reports that count children were inserted (positive)
// or deleted (negative) at index. Windows at or after the change shift;
// a change inside the realized window re-anchors the next pass.
func (l *List) NotifyDataChanged(index, count int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if count == 0 {
		return
	}
	l.needEstimate = true
	if l.index != nil {
		l.index.MarkDirty(posmap.FlagCount)
	}

	if !l.items.empty() {
		switch {
		case index <= l.items.first():
			if count < 0 && index-count > l.items.first() {
				// the deletion swallowed the head of the window
				l.logger.Debug("[Layout] window head deleted, re-anchoring",
					slog.Int("index", index), slog.Int("count", count))
				anchor := l.items.firstSlot().StartPos
				l.items.clear()
				l.reanchor(index, anchor)
			} else {
				l.items.shiftIndices(count)
			}
		case index <= l.items.last():
			l.items.truncate(index)
		}
	}
	l.cacheBefore.clear()
	l.cacheAfter.clear()
	l.shiftIndexMaps(index, count)
}

// reanchor seeds an empty window so the next pass restarts at index.
func (l *List) reanchor(index int, pos float64) {
	l.jump = &jumpRequest{index: max(index, 0), inGroup: -1, align: AlignStart, extra: l.contentStartOffset - pos}
}

func (l *List) shiftIndexMaps(index, count int) {
	shift := func(i int) (int, bool) {
		switch {
		case i < index:
			return i, true
		case count < 0 && i < index-count:
			return 0, false
		default:
			return i + count, true
		}
	}
	sizes := make(map[int]float64, len(l.sizeCache))
	for i, v := range l.sizeCache {
		if j, ok := shift(i); ok {
			sizes[j] = v
		}
	}
	l.sizeCache = sizes
	groups := make(map[int]uint64, len(l.groupAt))
	for i, id := range l.groupAt {
		if j, ok := shift(i); ok {
			groups[j] = id
		} else {
			delete(l.groups, id)
		}
	}
	l.groupAt = groups
}

// Group returns the sub-engine of the realized group at index.
func (l *List) Group(index int) (*GroupEngine, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	g := l.groupEngineAt(index)
	return g, g != nil
}

func (l *List) groupEngineAt(index int) *GroupEngine {
	id, ok := l.groupAt[index]
	if !ok {
		return nil
	}
	return l.groups[id]
}

func (l *List) groupEngine(id uint64) *GroupEngine {
	g, ok := l.groups[id]
	if !ok {
		g = newGroupEngine(id, l.logger)
		l.groups[id] = g
	}
	return g
}

// State returns the state reached by the last pass.
func (l *List) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}
