package layout

import (
	"log/slog"
	"slices"

	"github.com/joeycumines/vlist/internal/posmap"
)

// snapshot is what queries observe between passes.
type snapshot struct {
	start, end      int
	slots           []Slot
	cached          []Slot
	recycled        []int
	height, offset  float64
	contentMainSize float64
	totalOffset     float64
	mid             int
	snap            *SnapTarget
}

// Layout converts the measured window to viewport coordinates, releases
// recycled children, places the cache window and publishes the result.
func (l *List) Layout() {
	l.mu.Lock()
	off := l.currentOffset
	l.items.shiftPositions(-off)
	l.totalOffset += off
	l.currentOffset, l.startMainPos, l.endMainPos = 0, 0, l.viewExtent()
	if l.touched == nil {
		l.touched = make(map[int]struct{})
	}

	work := l.layoutCache()
	l.recycled = l.collectRecycled()
	for _, i := range l.recycled {
		l.host.Recycle(i)
	}

	est := l.estimate()
	if l.jumped || l.needEstimate {
		l.totalOffset = est.Offset
		l.needEstimate = false
	}
	l.recordPositions(est)
	relayout := l.resolveTarget()
	l.publish(est)
	l.state = StateSettled
	l.touched = nil
	sched := l.sched
	l.mu.Unlock()

	if sched != nil {
		sched.Submit(work)
	}
	if relayout {
		l.requestLayout()
	}
}

func (l *List) collectRecycled() []int {
	var out []int
	for i := range l.touched {
		if l.items.has(i) {
			continue
		}
		if l.cfg.ShowCachedItems && (l.cacheBefore.has(i) || l.cacheAfter.has(i)) {
			continue
		}
		out = append(out, i)
	}
	slices.Sort(out)
	return out
}

func (l *List) estimate() Estimate {
	e := l.estimator()
	return e.Estimate()
}

func (l *List) estimator() *Estimator {
	e := &Estimator{
		Slots:       l.items.slots,
		Count:       l.count,
		Spacing:     l.spacing(),
		Lanes:       l.lanes,
		Axis:        l.cfg.Axis,
		StartOffset: l.contentStartOffset,
		EndOffset:   l.contentEndOffset,
		Index:       l.index,
		Sizes:       l.sizes,
		IsGroup:     l.isGroupIndex,
		GroupAt:     l.groupEngineAt,
	}
	if seg, ok := l.host.(Segmented); ok {
		e.Segments = seg.Segments()
	}
	return e
}

// recordPositions feeds measured extents back into the position index when
// sizes are not declared.
func (l *List) recordPositions(est Estimate) {
	if l.index == nil || l.sizes != nil {
		return
	}
	for _, s := range l.items.slots {
		pos := max(est.Offset-l.contentStartOffset+s.StartPos, 0)
		l.index.UpdateWithCheck(s.Index, posmap.Info{MainPos: pos, MainSize: s.Extent(), IsGroup: s.IsGroup})
	}
}

// resolveTarget turns a realized target into a final alignment jump.
func (l *List) resolveTarget() bool {
	if l.target == nil || !l.items.has(l.target.index) {
		return false
	}
	l.logger.Debug("[Layout] target realized",
		slog.Int("index", l.target.index),
		slog.String("align", l.target.align.String()))
	l.jump = l.target
	l.target = nil
	return true
}

func (l *List) publish(est Estimate) {
	p := snapshot{
		start:           l.items.first(),
		end:             l.items.last(),
		slots:           append([]Slot(nil), l.items.slots...),
		recycled:        l.recycled,
		height:          est.Height,
		offset:          est.Offset,
		contentMainSize: l.contentMainSize,
		totalOffset:     l.totalOffset,
		mid:             -1,
	}
	p.cached = append(p.cached, l.cacheBefore.slots...)
	p.cached = append(p.cached, l.cacheAfter.slots...)
	if s, ok := l.slotAt(l.mainSize / 2); ok {
		p.mid = s.Index
	} else if !l.items.empty() {
		p.mid = l.items.first() + l.items.len()/2
	}
	if l.cfg.Snap != SnapNone {
		g := snapGesture{}
		if l.gesture != nil {
			g = *l.gesture
		}
		if t, ok := l.predictSnap(g.offset, g.velocity); ok {
			p.snap = &t
		}
	}
	if l.cfg.StackFromEnd {
		size := l.contentMainSize
		mirror(p.slots, size)
		mirror(p.cached, size)
	}
	// readers of the position index see the same orientation as the slots
	if l.index != nil && l.index.Reversed() != l.cfg.StackFromEnd {
		l.index.Reverse()
	}
	l.pub = p
}

// mirror maps forward positions into the stack-from-end coordinate system.
func mirror(slots []Slot, size float64) {
	for i := range slots {
		slots[i].StartPos, slots[i].EndPos = size-slots[i].EndPos, size-slots[i].StartPos
	}
}

// Window returns the realized index range, or -1, -1 when empty.
func (l *List) Window() (start, end int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pub.start, l.pub.end
}

// Slots returns a copy of the realized slots in index order.
func (l *List) Slots() []Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Slot(nil), l.pub.slots...)
}

// Slot returns the realized slot for index.
func (l *List) Slot(index int) (Slot, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pub.start < 0 || index < l.pub.start || index > l.pub.end {
		return Slot{}, false
	}
	return l.pub.slots[index-l.pub.start], true
}

// CacheWindow returns the index range covered by the cache window and the
// realized window together, or -1, -1 when nothing is cached.
func (l *List) CacheWindow() (start, end int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.pub.cached) == 0 {
		return -1, -1
	}
	start, end = l.pub.start, l.pub.end
	for _, s := range l.pub.cached {
		start = min(start, s.Index)
		end = max(end, s.Index)
	}
	return start, end
}

// CachedSlots returns the cache window placements in index order.
func (l *List) CachedSlots() []Slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Slot(nil), l.pub.cached...)
}

// Recycled returns the indices released by the last pass.
func (l *List) Recycled() []int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]int(nil), l.pub.recycled...)
}

// EstimatedHeightAndOffset returns the estimated content extent and the
// scroll offset of the viewport start, for scrollbars and jump previews.
func (l *List) EstimatedHeightAndOffset() (height, offset float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pub.height, l.pub.offset
}

// OffsetOf returns the estimated content offset of the row holding index,
// relative to the same origin as EstimatedHeightAndOffset.
func (l *List) OffsetOf(index int) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.estimator().OffsetOf(index)
}

// IndexAtOffset returns the estimated index at a content offset, or -1 when
// the list is empty.
func (l *List) IndexAtOffset(offset float64) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.estimator().IndexAt(offset)
}

// MidIndex returns the index at the viewport's midpoint.
func (l *List) MidIndex() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pub.mid
}

// TotalOffset returns the accumulated scroll offset.
func (l *List) TotalOffset() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pub.totalOffset
}

// ContentMainSize returns the main size the last pass settled on.
func (l *List) ContentMainSize() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pub.contentMainSize
}

// SnapTarget returns the settle point computed by the last pass.
func (l *List) SnapTarget() (SnapTarget, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.pub.snap == nil {
		return SnapTarget{}, false
	}
	return *l.pub.snap, true
}
