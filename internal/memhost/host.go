// Package memhost is an in-memory host for the layout orchestrator: a
// synthetic child sequence of rows, wrapped text blocks and groups, with a
// recycle pool for realized children.
package memhost

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/joeycumines/vlist/internal/childsize"
	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
)

// maxDeclared bounds how many top-level sizes DeclaredSizes materializes.
const maxDeclared = 1 << 20

// Stats counts pool activity.
type Stats struct {
	Live     int
	Pooled   int
	Created  int
	Reused   int
	Recycled int
	Requests int
}

// Host is a synthetic layout.Host. It also implements layout.GroupClassifier,
// layout.Segmented and layout.Invalidator.
type Host struct {
	mu sync.Mutex

	count        int
	defaultSize  float64
	formula      *SizeFormula
	groupEvery   int
	groupSize    int
	groupLanes   int
	groupSpacing float64
	header       float64
	footer       float64
	text         string
	declared     int
	sizes        *childsize.Store

	live    map[int]*Row
	groups  map[int]*Group
	pool    []*Row
	pressed map[int]bool
	nextID  uint64
	stats   Stats

	logger       *slog.Logger
	onInvalidate func()
	onChange     func(index, count int)
	formulaErr   bool
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the logger for formula diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithInvalidate registers fn to run on every RequestLayout.
func WithInvalidate(fn func()) Option {
	return func(h *Host) { h.onInvalidate = fn }
}

// WithDeclaredPrefix marks the first n children as directly declared and
// the remainder as a lazily generated range.
func WithDeclaredPrefix(n int) Option {
	return func(h *Host) { h.declared = max(n, 0) }
}

// WithGroupSpacing sets the spacing between rows inside groups.
func WithGroupSpacing(v float64) Option {
	return func(h *Host) { h.groupSpacing = v }
}

// New builds a host from a [data] section.
func New(dc config.DataConfig, opts ...Option) (*Host, error) {
	h := &Host{
		count:       dc.Count,
		defaultSize: dc.DefaultSize,
		groupEvery:  dc.GroupEvery,
		groupSize:   dc.GroupSize,
		groupLanes:  dc.GroupLanes,
		header:      dc.Header,
		footer:      dc.Footer,
		text:        dc.Text,
		live:        make(map[int]*Row),
		groups:      make(map[int]*Group),
		pressed:     make(map[int]bool),
		logger:      slog.Default(),
	}
	if dc.SizeExpr != "" {
		f, err := CompileSizeFormula(dc.SizeExpr)
		if err != nil {
			return nil, err
		}
		h.formula = f
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// OnDataChanged registers fn to receive Insert and Delete notifications,
// in the form layout.List.NotifyDataChanged expects.
func (h *Host) OnDataChanged(fn func(index, count int)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onChange = fn
}

func (h *Host) ChildCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

// IsGroup reports whether index holds a group: every groupEvery-th child
// when grouping is enabled.
func (h *Host) IsGroup(index int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.isGroupLocked(index)
}

func (h *Host) isGroupLocked(index int) bool {
	return h.groupEvery > 0 && index >= 0 && index%h.groupEvery == h.groupEvery-1
}

func (h *Host) Child(index int, _, _ bool) (layout.Child, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if index < 0 || index >= h.count {
		return layout.Child{}, false
	}
	if h.isGroupLocked(index) {
		g, ok := h.groups[index]
		if !ok {
			h.nextID++
			g = &Group{host: h, id: h.nextID, index: index, count: h.groupSize, live: make(map[int]*Row)}
			h.groups[index] = g
		}
		return layout.Child{ID: g.id, Group: g}, true
	}
	if r, ok := h.live[index]; ok {
		r.pressed = h.pressed[index]
		return layout.Child{ID: uint64(index), Item: r}, true
	}
	if h.text != "" {
		// text items are sized by wrapping and are not pooled
		return layout.Child{ID: uint64(index), Item: &TextItem{
			Index:      index,
			Text:       h.textFor(index),
			LineHeight: h.sizeOf(index, h.count, -1),
		}}, true
	}
	r := h.acquireLocked()
	r.Index = index
	r.Label = fmt.Sprintf("item %d", index)
	r.Size = h.itemSizeLocked(index)
	r.pressed = h.pressed[index]
	h.live[index] = r
	return layout.Child{ID: uint64(index), Item: r}, true
}

// Recycle returns the child at index to the pool. Groups keep their
// identity and release their realized items.
func (h *Host) Recycle(index int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats.Recycled++
	if g, ok := h.groups[index]; ok {
		g.releaseAllLocked()
		return
	}
	if r, ok := h.live[index]; ok {
		delete(h.live, index)
		h.releaseLocked(r)
	}
}

func (h *Host) acquireLocked() *Row {
	if n := len(h.pool); n > 0 {
		r := h.pool[n-1]
		h.pool = h.pool[:n-1]
		h.stats.Reused++
		return r
	}
	h.stats.Created++
	return &Row{}
}

func (h *Host) releaseLocked(r *Row) {
	*r = Row{}
	h.pool = append(h.pool, r)
}

// sizeOf evaluates the formula, falling back to the default size. The
// first evaluation failure is logged.
func (h *Host) sizeOf(index, count, group int) float64 {
	if h.formula == nil {
		return h.defaultSize
	}
	v, err := h.formula.Eval(index, count, group)
	if err != nil {
		if !h.formulaErr {
			h.formulaErr = true
			h.logger.Warn("[Host] size formula failed, using default size",
				slog.String("formula", h.formula.String()),
				slog.Any("error", err))
		}
		return h.defaultSize
	}
	return v
}

// textFor expands a %d verb in the configured text with the index.
func (h *Host) textFor(index int) string {
	if strings.Contains(h.text, "%d") {
		return fmt.Sprintf(h.text, index)
	}
	return h.text
}

// Segments reports the declared prefix and the lazy remainder.
func (h *Host) Segments() []layout.Segment {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.declared <= 0 || h.declared >= h.count {
		return nil
	}
	return []layout.Segment{
		{Kind: layout.SegmentItems, Start: 0, Count: h.declared},
		{Kind: layout.SegmentLazy, Start: h.declared, Count: h.count - h.declared},
	}
}

// RequestLayout counts the request and forwards it to the invalidate hook.
func (h *Host) RequestLayout() {
	h.mu.Lock()
	h.stats.Requests++
	fn := h.onInvalidate
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// DeclaredSizes returns the top-level size store, materializing it on the
// first call. Without a formula, or with too many children, the store holds
// only the default. Text items are measured, never declared, so they get
// nil. Insert and Delete splice the same store, so existing children keep
// their sizes.
func (h *Host) DeclaredSizes() *childsize.Store {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.text != "" {
		return nil
	}
	if h.sizes != nil {
		return h.sizes
	}
	if h.formula == nil || h.count > maxDeclared {
		h.sizes = childsize.New(h.defaultSize, nil)
		return h.sizes
	}
	sizes := make([]float64, h.count)
	for i := range sizes {
		sizes[i] = h.sizeOf(i, h.count, -1)
	}
	h.sizes = childsize.New(h.defaultSize, sizes)
	return h.sizes
}

// SetDefaultSize changes the extent of children without a declared size,
// and requests another pass.
func (h *Host) SetDefaultSize(v float64) {
	h.mu.Lock()
	h.defaultSize = v
	sizes := h.sizes
	h.mu.Unlock()
	if sizes != nil {
		sizes.SetDefault(v)
	}
	h.RequestLayout()
}

// itemSizeLocked prefers the spliced store over the formula, which is
// positional and would resize every child after an insert.
func (h *Host) itemSizeLocked(index int) float64 {
	if h.sizes != nil && h.sizes.IsDeclared(index) {
		return h.sizes.Get(index)
	}
	return h.sizeOf(index, h.count, -1)
}

// SetPressed marks the child at index as pressed. It is observed the next
// time the child is realized.
func (h *Host) SetPressed(index int, pressed bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if pressed {
		h.pressed[index] = true
	} else {
		delete(h.pressed, index)
	}
}

// Label describes the child at index for display.
func (h *Host) Label(index int) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	switch {
	case index < 0 || index >= h.count:
		return ""
	case h.isGroupLocked(index):
		return fmt.Sprintf("group %d (%d items)", index, h.groupSize)
	case h.text != "":
		return h.textFor(index)
	default:
		return fmt.Sprintf("item %d", index)
	}
}

// Group returns the realized group at index.
func (h *Host) Group(index int) (*Group, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g, ok := h.groups[index]
	return g, ok
}

// Insert adds n children before index and notifies the change hook.
func (h *Host) Insert(index, n int) error {
	h.mu.Lock()
	if index < 0 || index > h.count || n <= 0 {
		h.mu.Unlock()
		return fmt.Errorf("insert %d at %d: out of range [0, %d]", n, index, h.count)
	}
	h.count += n
	h.shiftLocked(index, n)
	var values []float64
	sizes := h.sizes
	if sizes != nil && sizes.Len() > 0 {
		values = make([]float64, n)
		for i := range values {
			values[i] = h.sizeOf(index+i, h.count, -1)
		}
	}
	fn := h.onChange
	h.mu.Unlock()
	if values != nil {
		sizes.Replace(index, 0, values)
	}
	if fn != nil {
		fn(index, n)
	}
	return nil
}

// Delete removes n children starting at index and notifies the change hook.
func (h *Host) Delete(index, n int) error {
	h.mu.Lock()
	if index < 0 || n <= 0 || index+n > h.count {
		h.mu.Unlock()
		return fmt.Errorf("delete %d at %d: out of range [0, %d)", n, index, h.count)
	}
	for i := index; i < index+n; i++ {
		if r, ok := h.live[i]; ok {
			delete(h.live, i)
			h.releaseLocked(r)
		}
		if g, ok := h.groups[i]; ok {
			g.releaseAllLocked()
			delete(h.groups, i)
		}
		delete(h.pressed, i)
	}
	h.count -= n
	h.shiftLocked(index+n, -n)
	sizes := h.sizes
	fn := h.onChange
	h.mu.Unlock()
	switch {
	case sizes == nil || sizes.Len() == 0:
	case index == sizes.Len()-n:
		// dropping the tail
		sizes.Resize(index)
	default:
		sizes.Replace(index, n, nil)
	}
	if fn != nil {
		fn(index, -n)
	}
	return nil
}

// shiftLocked moves realized state at or after from by delta. Groups are
// positional, so any group whose index no longer qualifies is dropped.
func (h *Host) shiftLocked(from, delta int) {
	live := make(map[int]*Row, len(h.live))
	for i, r := range h.live {
		if i >= from {
			i += delta
			r.Index = i
		}
		live[i] = r
	}
	h.live = live

	groups := make(map[int]*Group, len(h.groups))
	for i, g := range h.groups {
		if i >= from {
			i += delta
		}
		if !h.isGroupLocked(i) {
			g.releaseAllLocked()
			continue
		}
		g.index = i
		groups[i] = g
	}
	h.groups = groups

	pressed := make(map[int]bool, len(h.pressed))
	for i := range h.pressed {
		if i >= from {
			i += delta
		}
		pressed[i] = true
	}
	h.pressed = pressed
}

// Stats returns a snapshot of pool counters.
func (h *Host) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := h.stats
	s.Live = len(h.live)
	for _, g := range h.groups {
		s.Live += len(g.live)
	}
	s.Pooled = len(h.pool)
	return s
}
