package layout

import (
	"log/slog"
	"math"

	"github.com/joeycumines/vlist/internal/childsize"
)

// GroupState is the sub-engine's pass state.
type GroupState int

const (
	GroupIdle GroupState = iota
	GroupMeasuringForward
	GroupMeasuringBackward
	GroupJumpResolving
	GroupSettled
)

func (s GroupState) String() string {
	switch s {
	case GroupIdle:
		return "idle"
	case GroupMeasuringForward:
		return "measuring-forward"
	case GroupMeasuringBackward:
		return "measuring-backward"
	case GroupJumpResolving:
		return "jump-resolving"
	case GroupSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// LayoutedItemInfo records the last realized window of a group in group
// coordinates.
type LayoutedItemInfo struct {
	StartIndex int
	StartPos   float64
	EndIndex   int
	EndPos     float64
}

// autoScroll is the outcome of an auto-alignment judgement.
type autoScroll int

const (
	autoNotChange autoScroll = iota
	autoStart
	autoEnd
)

type groupMode int

const (
	groupForward groupMode = iota
	groupBackward
	groupJump
)

type groupParams struct {
	mode groupMode
	// refPos is the group's leading edge (forward), trailing edge
	// (backward), or the jump anchor, in list pass coordinates.
	refPos    float64
	viewStart float64
	viewEnd   float64

	jumpIndex int
	jumpAlign ScrollAlign
	needAll   bool

	containerLanes int
	crossSize      float64
	laneGutter     float64
	mainSize       float64
	sticky         StickyStyle
	// fallbackAvg is used when the group has never realized an item.
	fallbackAvg float64
}

type groupResult struct {
	start float64
	end   float64
	// refDelta is how far the reference edge moved once the group reached
	// its first (forward) or last (backward) item.
	refDelta float64
	info     GroupLayoutInfo
}

// GroupEngine lays out one group's own items. Item positions are kept in
// group coordinates, where zero is the group's leading edge.
type GroupEngine struct {
	id     uint64
	logger *slog.Logger
	state  GroupState

	items        window
	cached       window
	cachedBefore window

	header    float64
	footer    float64
	spacing   float64
	lanes     int
	laneCross float64
	gutter    float64
	count     int
	size      float64
	avg       float64
	measured  bool

	fullyMeasured bool
	layouted      *LayoutedItemInfo

	store *childsize.Store
	src   GroupSource
}

func newGroupEngine(id uint64, logger *slog.Logger) *GroupEngine {
	return &GroupEngine{id: id, logger: logger, lanes: 1}
}

// State returns the last pass state.
func (g *GroupEngine) State() GroupState { return g.state }

// ItemPosition returns the realized items in group coordinates.
func (g *GroupEngine) ItemPosition() []Slot {
	return append([]Slot(nil), g.items.slots...)
}

// CachedPosition returns the cached items in group coordinates, in index
// order.
func (g *GroupEngine) CachedPosition() []Slot {
	out := append([]Slot(nil), g.cachedBefore.slots...)
	return append(out, g.cached.slots...)
}

// FullyMeasured reports whether every item of the group has been realized
// in a single pass at some point.
func (g *GroupEngine) FullyMeasured() bool { return g.fullyMeasured }

// LayoutedItemInfo returns the persisted realized window, if any.
func (g *GroupEngine) LayoutedItemInfo() (LayoutedItemInfo, bool) {
	if g.layouted == nil {
		return LayoutedItemInfo{}, false
	}
	return *g.layouted, true
}

// MainSize returns the extent computed by the last measure.
func (g *GroupEngine) MainSize() float64 { return g.size }

// HeaderExtent and FooterExtent return the last measured decorations.
func (g *GroupEngine) HeaderExtent() float64 { return g.header }
func (g *GroupEngine) FooterExtent() float64 { return g.footer }

// ClearItemPosition forgets the realized window.
func (g *GroupEngine) ClearItemPosition() {
	g.items.clear()
	g.cached.clear()
	g.cachedBefore.clear()
	g.state = GroupIdle
}

func (g *GroupEngine) prepare(src GroupSource, p groupParams) {
	c := Constraint{MainSize: p.mainSize, CrossSize: p.crossSize}
	g.header, g.footer = 0, 0
	if h := src.Header(); h != nil {
		g.header = sanitizeExtent(h.MainSize(c))
	}
	if f := src.Footer(); f != nil {
		g.footer = sanitizeExtent(f.MainSize(c))
	}
	g.spacing = sanitizeExtent(src.Spacing())
	g.store = src.DeclaredSizes()
	g.src = src

	lanes := src.Lanes()
	containerLanes := max(p.containerLanes, 1)
	switch {
	case lanes <= 0:
		lanes = containerLanes
	case containerLanes > 1 && lanes != containerLanes:
		g.logger.Warn("[Layout] conflicting group lanes, using a single lane",
			slog.Uint64("group", g.id),
			slog.Int("groupLanes", lanes),
			slog.Int("containerLanes", containerLanes))
		lanes = 1
	}
	if lanes != g.lanes {
		g.items.clear()
		g.cached.clear()
	}
	g.lanes = lanes
	g.gutter = sanitizeExtent(p.laneGutter)
	g.laneCross = max((p.crossSize-g.gutter*float64(lanes-1))/float64(lanes), 0)

	count := max(src.ItemCount(), 0)
	if count != g.count {
		g.items.clear()
		g.cached.clear()
		g.fullyMeasured = false
		g.layouted = nil
	}
	g.count = count
	if g.store != nil && g.avg == 0 {
		g.avg = g.store.Default()
	}
	if g.avg == 0 {
		g.avg = p.fallbackAvg
	}
	g.measured = true
}

func (g *GroupEngine) crossPos(lane int) float64 {
	return float64(lane) * (g.laneCross + g.gutter)
}

func (g *GroupEngine) rowStart(index int) int { return index - index%g.lanes }

func (g *GroupEngine) rowEnd(index int) int {
	return min(g.rowStart(index)+g.lanes-1, g.count-1)
}

func (g *GroupEngine) totalRows() int {
	return (g.count + g.lanes - 1) / g.lanes
}

// rowsExtent returns the extent of rows [fromRow, toRow) including the
// spacing after each of them.
func (g *GroupEngine) rowsExtent(fromRow, toRow int) float64 {
	if toRow <= fromRow {
		return 0
	}
	if g.store != nil {
		total := 0.0
		for r := fromRow; r < toRow; r++ {
			h := 0.0
			for i := r * g.lanes; i < min((r+1)*g.lanes, g.count); i++ {
				h = max(h, g.store.Get(i))
			}
			total += h + g.spacing
		}
		return total
	}
	return float64(toRow-fromRow) * (g.avg + g.spacing)
}

func (g *GroupEngine) itemExtent(src GroupSource, index int, it Item, c Constraint) float64 {
	if g.store != nil && g.store.IsDeclared(index) {
		return g.store.Get(index)
	}
	return sanitizeExtent(it.MainSize(c))
}

func (g *GroupEngine) itemConstraint(p groupParams) Constraint {
	return Constraint{MainSize: p.mainSize, CrossSize: g.laneCross}
}

// layoutRowForward places the row beginning at rowStart with its leading
// edge at pos and returns the last index placed and the row's trailing edge.
func (g *GroupEngine) layoutRowForward(src GroupSource, rowStart int, pos float64, c Constraint, w *window, isCache bool, show bool) (int, float64) {
	end := pos
	last := rowStart
	for k := 0; k < g.lanes && rowStart+k < g.count; k++ {
		i := rowStart + k
		it := src.Item(i, !isCache || show, isCache)
		if it == nil {
			g.logger.Warn("[Layout] group item not produced",
				slog.Uint64("group", g.id), slog.Int("index", i))
			w.set(Slot{Index: i, StartPos: pos, EndPos: pos, Lane: k, CrossPos: g.crossPos(k)})
			last = i
			break
		}
		size := g.itemExtent(src, i, it, c)
		s := Slot{Index: i, StartPos: pos, EndPos: pos + size, Lane: k, CrossPos: g.crossPos(k)}
		if p, ok := it.(Pressable); ok {
			s.IsPressed = p.Pressed()
		}
		w.set(s)
		end = max(end, pos+size)
		last = i
	}
	return last, end
}

// layoutRowBackward places the row that ends at rowEndIdx with its trailing
// edge at endPos and returns the row's first index and leading edge.
func (g *GroupEngine) layoutRowBackward(src GroupSource, rowEndIdx int, endPos float64, c Constraint) (int, float64) {
	start := g.rowStart(rowEndIdx)
	sizes := make([]float64, rowEndIdx-start+1)
	h := 0.0
	for i := start; i <= rowEndIdx; i++ {
		it := src.Item(i, true, false)
		if it == nil {
			g.logger.Warn("[Layout] group item not produced",
				slog.Uint64("group", g.id), slog.Int("index", i))
			continue
		}
		sizes[i-start] = g.itemExtent(src, i, it, c)
		h = max(h, sizes[i-start])
	}
	rowPos := endPos - h
	for i := rowEndIdx; i >= start; i-- {
		g.items.set(Slot{Index: i, StartPos: rowPos, EndPos: rowPos + sizes[i-start], Lane: i - start, CrossPos: g.crossPos(i - start)})
	}
	return start, rowPos
}

func (g *GroupEngine) fillForward(src GroupSource, from int, pos, limit float64, c Constraint) {
	i := g.rowStart(from)
	for i < g.count {
		last, rowEnd := g.layoutRowForward(src, i, pos, c, &g.items, false, false)
		i = last + 1
		pos = rowEnd
		if i < g.count {
			pos += g.spacing
		}
		if !lessOrEqual(pos, limit) {
			break
		}
	}
}

func (g *GroupEngine) fillBackward(src GroupSource, from int, pos, limit float64, c Constraint) {
	i := from
	for i >= 0 {
		start, rowPos := g.layoutRowBackward(src, g.rowEnd(i), pos, c)
		i = start - 1
		pos = rowPos
		if i >= 0 {
			pos -= g.spacing
		}
		if !greatNotEqual(pos, limit) {
			break
		}
	}
}

// measureRow measures the row containing index without placing it.
func (g *GroupEngine) measureRow(src GroupSource, index int, c Constraint) float64 {
	h := 0.0
	for i := g.rowStart(index); i <= g.rowEnd(index); i++ {
		if it := src.Item(i, true, false); it != nil {
			h = max(h, g.itemExtent(src, i, it, c))
		}
	}
	return h
}

// measure lays out the group for one list pass.
func (g *GroupEngine) measure(src GroupSource, p groupParams) groupResult {
	g.prepare(src, p)
	c := g.itemConstraint(p)

	prev := g.items.clone()
	prevSize := g.size
	g.items.clear()
	g.cached.clear()
	g.cachedBefore.clear()

	if g.count == 0 {
		g.size = g.header + g.footer
		g.fullyMeasured = true
		g.state = GroupSettled
		start := p.refPos
		if p.mode == groupBackward {
			start = p.refPos - g.size
		}
		return g.finish(start, start+g.size, 0)
	}

	var start, end float64
	switch {
	case p.needAll:
		g.state = GroupMeasuringForward
		g.fillForward(src, 0, p.refPos+g.header, math.Inf(1), c)
		start = p.refPos

	case p.mode == groupJump:
		g.state = GroupJumpResolving
		k := clampInt(p.jumpIndex, 0, g.count-1)
		h := g.measureRow(src, k, c)
		var itemStart float64
		switch p.jumpAlign {
		case AlignEnd:
			itemStart = p.refPos - h
			if p.sticky&StickyFooter != 0 {
				itemStart -= g.footer
			}
		case AlignCenter:
			itemStart = p.refPos - h/2
		default:
			itemStart = p.refPos
			if p.sticky&StickyHeader != 0 {
				itemStart += g.header
			}
		}
		rk := g.rowStart(k)
		g.fillForward(src, rk, itemStart, p.viewEnd, c)
		if rk > 0 && greatNotEqual(itemStart, p.viewStart) {
			g.fillBackward(src, rk-1, itemStart-g.spacing, p.viewStart, c)
		}
		start = g.leadingEdge()

	case p.mode == groupForward:
		g.state = GroupMeasuringForward
		if lessOrEqual(p.viewStart, p.refPos+g.header) {
			g.fillForward(src, 0, p.refPos+g.header, p.viewEnd, c)
			start = p.refPos
			break
		}
		a, apos := g.anchorForward(prev, p)
		g.fillForward(src, a, apos, p.viewEnd, c)
		if a > 0 && greatNotEqual(apos, p.viewStart) {
			g.fillBackward(src, a-1, apos-g.spacing, p.viewStart, c)
		}
		start = p.refPos
		if g.items.first() == 0 {
			start = g.items.startPos() - g.header
		}

	default:
		g.state = GroupMeasuringBackward
		footTop := p.refPos - g.footer
		if greatOrEqual(p.viewEnd, footTop) {
			g.fillBackward(src, g.count-1, footTop, p.viewStart, c)
			end = p.refPos
		} else {
			a, apos := g.anchorBackward(prev, prevSize, p)
			g.fillBackward(src, a, apos, p.viewStart, c)
			if last := g.items.last(); last < g.count-1 && lessNotEqual(g.items.endPos(), p.viewEnd) {
				g.fillForward(src, last+1, g.items.endPos()+g.spacing, p.viewEnd, c)
			}
			end = p.refPos
			if g.items.last() == g.count-1 {
				end = g.items.endPos() + g.footer
			}
		}
		start = g.leadingEdge()
		g.updateAverage()
		g.items.shiftPositions(-start)
		g.size = end - start
		g.settle(prev)
		return g.finish(start, end, end-p.refPos)
	}

	var refDelta float64
	if p.mode == groupForward || p.needAll {
		refDelta = start - p.refPos
	}
	g.updateAverage()
	end = g.trailingEdge()
	g.items.shiftPositions(-start)
	g.size = end - start
	g.settle(prev)
	return g.finish(start, end, refDelta)
}

// leadingEdge derives the group's leading edge from its first realized row.
func (g *GroupEngine) leadingEdge() float64 {
	first := g.items.first()
	return g.items.startPos() - g.header - g.rowsExtent(0, first/g.lanes)
}

// trailingEdge derives the group's trailing edge from its last realized row.
func (g *GroupEngine) trailingEdge() float64 {
	last := g.items.last()
	after := g.rowsExtent(last/g.lanes+1, g.totalRows())
	return g.items.endPos() + after + g.footer
}

// anchorForward picks the first row to lay out when the group's leading
// edge is above the viewport, preferring continuity with the last pass.
func (g *GroupEngine) anchorForward(prev window, p groupParams) (int, float64) {
	if !prev.empty() {
		for _, s := range prev.slots {
			if greatNotEqual(p.refPos+s.EndPos, p.viewStart) {
				return g.rowStart(s.Index), p.refPos + s.StartPos
			}
		}
		last := prev.lastSlot()
		if next := g.rowEnd(last.Index) + 1; next < g.count {
			return next, p.refPos + prev.endPos() + g.spacing
		}
	}
	step := g.avg + g.spacing
	row := 0
	if step > 0 {
		row = int((p.viewStart - p.refPos - g.header) / step)
	}
	row = clampInt(row, 0, g.totalRows()-1)
	return row * g.lanes, p.refPos + g.header + g.rowsExtent(0, row)
}

// anchorBackward picks the last row to lay out when the group's trailing
// edge is below the viewport.
func (g *GroupEngine) anchorBackward(prev window, prevSize float64, p groupParams) (int, float64) {
	origin := p.refPos - prevSize
	if !prev.empty() {
		for i := len(prev.slots) - 1; i >= 0; i-- {
			s := prev.slots[i]
			if lessNotEqual(origin+s.StartPos, p.viewEnd) {
				return g.rowEnd(s.Index), origin + s.EndPos
			}
		}
		first := prev.firstSlot()
		if rs := g.rowStart(first.Index); rs > 0 {
			return rs - 1, origin + first.StartPos - g.spacing
		}
	}
	step := g.avg + g.spacing
	fromEnd := 0
	if step > 0 {
		fromEnd = int((p.refPos - g.footer - p.viewEnd) / step)
	}
	rows := g.totalRows()
	fromEnd = clampInt(fromEnd, 0, rows-1)
	row := rows - 1 - fromEnd
	return g.rowEnd(row * g.lanes), p.refPos - g.footer - g.rowsExtent(row+1, rows)
}

func (g *GroupEngine) updateAverage() {
	if g.items.empty() {
		return
	}
	total, rows := 0.0, 0
	rowPos := math.NaN()
	rowMax := 0.0
	for _, s := range g.items.slots {
		if s.StartPos != rowPos {
			if rows > 0 {
				total += rowMax
			}
			rows++
			rowPos = s.StartPos
			rowMax = 0
		}
		rowMax = max(rowMax, s.Extent())
	}
	total += rowMax
	if g.store == nil || !g.store.IsDeclared(g.items.first()) {
		g.avg = total / float64(rows)
	}
}

func (g *GroupEngine) settle(prev window) {
	var dropped []int
	for _, s := range prev.slots {
		if !g.items.has(s.Index) {
			dropped = append(dropped, s.Index)
		}
	}
	g.recycle(dropped)
	if !g.items.empty() {
		g.layouted = &LayoutedItemInfo{
			StartIndex: g.items.first(),
			StartPos:   g.items.startPos(),
			EndIndex:   g.items.last(),
			EndPos:     g.items.endPos(),
		}
		if g.items.first() == 0 && g.items.last() == g.count-1 {
			g.fullyMeasured = true
		}
	}
	g.state = GroupSettled
}

func (g *GroupEngine) finish(start, end, refDelta float64) groupResult {
	return groupResult{
		start:    start,
		end:      end,
		refDelta: refDelta,
		info:     g.info(),
	}
}

func (g *GroupEngine) info() GroupLayoutInfo {
	return GroupLayoutInfo{
		AverageItemExtent: g.avg,
		HeaderExtent:      g.header,
		FooterExtent:      g.footer,
		Spacing:           g.spacing,
		AtStart:           g.count == 0 || g.items.first() == 0,
		AtEnd:             g.count == 0 || g.items.last() == g.count-1,
	}
}

// CheckRecycle releases realized items outside [viewStart, viewEnd), given
// in group coordinates, always keeping at least one. It returns the
// recycled indices.
func (g *GroupEngine) CheckRecycle(viewStart, viewEnd float64) []int {
	var out []int
	for g.items.len() > 1 {
		s := g.items.firstSlot()
		if !lessOrEqual(s.EndPos, viewStart) {
			break
		}
		out = append(out, g.items.popFront().Index)
	}
	for g.items.len() > 1 {
		s := g.items.lastSlot()
		if !greatOrEqual(s.StartPos, viewEnd) {
			break
		}
		out = append(out, g.items.popBack().Index)
	}
	g.recycle(out)
	return out
}

// recycleAll releases every realized item, used when the whole group left
// the list's window.
func (g *GroupEngine) recycleAll() {
	out := make([]int, 0, g.items.len())
	for _, s := range g.items.slots {
		out = append(out, s.Index)
	}
	g.recycle(out)
	g.ClearItemPosition()
}

func (g *GroupEngine) recycle(indices []int) {
	if len(indices) == 0 {
		return
	}
	if r, ok := g.src.(GroupRecycler); ok {
		for _, i := range indices {
			r.RecycleItem(i)
		}
	}
}

// LayoutCache extends the group's cache window by up to forward items after
// and backward items before the realized window. Items already realized
// are not measured again. It returns how many items were cached.
func (g *GroupEngine) LayoutCache(forward, backward int, show bool, c Constraint) int {
	src := g.src
	if g.items.empty() || src == nil {
		return 0
	}
	c.CrossSize = g.laneCross
	g.cached.clear()
	g.cachedBefore.clear()
	n := 0
	pos := g.items.endPos() + g.spacing
	for i := g.items.last() + 1; i < g.count && n < forward; {
		last, rowEnd := g.layoutRowForward(src, i, pos, c, &g.cached, true, show)
		n += last - i + 1
		i = last + 1
		pos = rowEnd + g.spacing
	}
	pos = g.items.startPos() - g.spacing
	for i := g.items.first() - 1; i >= 0 && backward > 0; {
		rs := g.rowStart(i)
		h := 0.0
		sizes := make([]float64, i-rs+1)
		for j := rs; j <= i; j++ {
			if it := src.Item(j, show, true); it != nil {
				sizes[j-rs] = g.itemExtent(src, j, it, c)
				h = max(h, sizes[j-rs])
			}
		}
		for j := i; j >= rs; j-- {
			g.cachedBefore.set(Slot{Index: j, StartPos: pos - h, EndPos: pos - h + sizes[j-rs], Lane: j - rs, CrossPos: g.crossPos(j - rs)})
		}
		backward -= i - rs + 1
		n += i - rs + 1
		pos -= h + g.spacing
		i = rs - 1
	}
	return n
}

// EstimateHeight returns the exact extent once the group has been fully
// measured, otherwise an average-based estimate.
func (g *GroupEngine) EstimateHeight(averageItemExtent, headerExtent, footerExtent, spacing float64) float64 {
	if g.fullyMeasured && g.measured {
		return g.size
	}
	if g.measured {
		headerExtent, footerExtent, spacing = g.header, g.footer, g.spacing
		if g.avg > 0 {
			averageItemExtent = g.avg
		}
	}
	lanes := max(g.lanes, 1)
	rows := (g.count + lanes - 1) / lanes
	if rows == 0 {
		return headerExtent + footerExtent
	}
	return headerExtent + footerExtent + float64(rows)*averageItemExtent + float64(rows-1)*spacing
}

// EstimateOffset returns the estimated group-coordinate position of the
// first realized item, and its actual position. height is the group's
// estimated extent and is used to keep the estimate inside it.
func (g *GroupEngine) EstimateOffset(height float64, headerExtent, footerExtent float64) (estimated, actual float64) {
	if g.items.empty() {
		return 0, 0
	}
	actual = g.items.startPos()
	if g.fullyMeasured || g.items.first() == 0 {
		return actual, actual
	}
	if g.measured {
		headerExtent, footerExtent = g.header, g.footer
	}
	estimated = headerExtent + g.rowsExtent(0, g.items.first()/max(g.lanes, 1))
	estimated = min(estimated, max(height-footerExtent, 0))
	return estimated, actual
}

// judgeInScreen decides how the list should move so item k becomes fully
// visible, given the group's leading edge and the visible range.
func (g *GroupEngine) judgeInScreen(k int, groupStart, viewStart, viewEnd float64, sticky StickyStyle) autoScroll {
	top, bottom := viewStart, viewEnd
	if sticky&StickyHeader != 0 {
		top += g.header
	}
	if sticky&StickyFooter != 0 {
		bottom -= g.footer
	}
	s, ok := g.items.get(k)
	if !ok {
		if g.items.empty() || k < g.items.first() {
			return autoStart
		}
		return autoEnd
	}
	is, ie := groupStart+s.StartPos, groupStart+s.EndPos
	if greatOrEqual(is, top) && lessOrEqual(ie, bottom) {
		return autoNotChange
	}
	if lessOrEqual(is, top) && greatOrEqual(ie, bottom) {
		// the item already covers the whole visible range
		return autoNotChange
	}
	if lessNotEqual(is, top) {
		return autoStart
	}
	return autoEnd
}

// judgeOutOfScreen decides the alignment for an item of a group that is
// outside the realized window.
func judgeOutOfScreen(before bool, itemExtent, visibleExtent float64) autoScroll {
	fits := lessOrEqual(itemExtent, visibleExtent)
	if before == fits {
		return autoStart
	}
	return autoEnd
}
