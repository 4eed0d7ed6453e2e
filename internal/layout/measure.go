package layout

import (
	"log/slog"
	"math"

	"github.com/joeycumines/vlist/internal/posmap"
)

// Measure runs the anchoring, row layout and recycling stages of a pass.
// The result becomes visible to queries once Layout has run.
func (l *List) Measure(c Constraint) PassResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.state = StateIdle
	l.deadline = c.Deadline
	l.incomplete, l.jumped = false, false
	l.groupJump = nil
	l.touched = make(map[int]struct{}, l.items.len())
	for _, w := range []*window{&l.items, &l.cacheBefore, &l.cacheAfter} {
		for _, s := range w.slots {
			l.touched[s.Index] = struct{}{}
		}
	}
	l.prepare(c)

	if l.count == 0 {
		for _, s := range l.items.slots {
			l.dropGroup(s)
		}
		l.items.clear()
		l.jump, l.target = nil, nil
		l.delta, l.currentOffset = 0, 0
		l.startMainPos, l.endMainPos = 0, l.viewExtent()
		l.contentMainSize = l.mainSize
		if l.unbounded {
			l.contentMainSize = l.contentStartOffset + l.contentEndOffset
		}
		l.state = StateSettled
		return PassResult{Start: -1, End: -1, ContentMainSize: l.contentMainSize}
	}

	if l.sizes != nil && l.index != nil {
		l.index.Sync(listSource{l}, l.lanes, l.spacing())
	}

	l.state = StateAnchoring
	l.checkJumpValid()
	l.checkJumpToIndex()

	l.currentOffset = l.delta
	l.startMainPos = l.delta
	l.endMainPos = l.delta + l.viewExtent()
	l.delta = 0

	l.measureList()
	l.clampOverscroll()

	l.state = StateRecycling
	l.recycleOutside()

	l.contentMainSize = l.mainSize
	if l.unbounded {
		l.contentMainSize = l.items.endPos() - l.items.startPos() + l.contentStartOffset + l.contentEndOffset
	}
	l.logger.Debug("[Layout] measured",
		slog.Int("start", l.items.first()),
		slog.Int("end", l.items.last()),
		slog.Float64("offset", l.currentOffset),
		slog.Bool("jumped", l.jumped),
		slog.Bool("incomplete", l.incomplete))
	return PassResult{
		Start:           l.items.first(),
		End:             l.items.last(),
		ContentMainSize: l.contentMainSize,
		Jumped:          l.jumped,
		Incomplete:      l.incomplete,
	}
}

func (l *List) prepare(c Constraint) {
	l.crossSize = sanitizeExtent(c.CrossSize)
	l.unbounded = math.IsNaN(c.MainSize) || c.MainSize <= 0 || math.IsInf(c.MainSize, 1)
	l.mainSize = 0
	if !l.unbounded {
		l.mainSize = c.MainSize
	}

	lanes := max(l.cfg.Lanes, 1)
	if lanes != l.lanes && !l.items.empty() {
		first, pos := l.items.first(), l.items.startPos()
		l.items.clear()
		l.reanchor(first, pos)
	}
	l.lanes = lanes
	gutter := sanitizeExtent(l.cfg.LaneGutter)
	l.laneCross = max((l.crossSize-gutter*float64(lanes-1))/float64(lanes), 0)

	count := l.host.ChildCount()
	if count > MaxSafeCount {
		l.logger.Debug("[Layout] clamping child count",
			slog.Int("count", count), slog.Int("max", MaxSafeCount))
		count = MaxSafeCount
	}
	l.count = max(count, 0)
	l.fitWindowToCount()

	l.contentStartOffset = sanitizeExtent(l.cfg.StartOffset)
	l.contentEndOffset = sanitizeExtent(l.cfg.EndOffset)
	if l.cfg.Snap == SnapCenter ||
		(!l.unbounded && greatOrEqual(l.contentStartOffset+l.contentEndOffset, l.mainSize)) {
		l.contentStartOffset, l.contentEndOffset = 0, 0
	}
}

// fitWindowToCount repairs a window left behind by a host that shrank
// without NotifyDataChanged. Slots past the last child are dropped. When
// nothing of the window survives, the pass jumps to the last child.
func (l *List) fitWindowToCount() {
	if l.items.empty() || l.items.last() < l.count {
		return
	}
	l.cacheBefore.clear()
	l.cacheAfter.clear()
	if l.count == 0 || l.items.first() < l.count {
		for _, s := range l.items.truncate(l.count) {
			l.dropGroup(s)
		}
		return
	}
	l.logger.Debug("[Layout] window past the last child, jumping to it",
		slog.Int("first", l.items.first()),
		slog.Int("count", l.count))
	for _, s := range l.items.slots {
		l.dropGroup(s)
	}
	l.items.clear()
	if l.jump == nil {
		l.jump = &jumpRequest{index: l.count - 1, inGroup: -1, align: AlignEnd}
		l.target = nil
		l.delta = 0
	}
}

func (l *List) spacing() float64 { return sanitizeExtent(l.cfg.Spacing) }

func (l *List) viewExtent() float64 {
	if l.unbounded {
		return math.Inf(1)
	}
	return l.mainSize
}

func (l *List) deadlinePassed() bool {
	return !l.items.empty() && !l.deadline.IsZero() && !l.clock.Now().Before(l.deadline)
}

func (l *List) measureList() {
	if req := l.jump; req != nil {
		l.jump = nil
		if l.resolveJump(req) {
			return
		}
	}
	if l.items.empty() {
		l.layoutForward(0, l.startMainPos+l.contentStartOffset)
		l.fillBackward()
		return
	}

	if l.cfg.Snap == SnapCenter {
		if mid, ok := l.slotAt((l.startMainPos + l.endMainPos) / 2); ok {
			begin := l.rowStartOf(mid.Index)
			pos := mid.StartPos
			l.items.clear()
			l.layoutForward(begin, pos)
			l.fillBackward()
			return
		}
	}

	if greatOrEqual(l.currentOffset, 0) {
		begin, pos := l.items.first(), l.items.startPos()
		if l.sizes != nil && l.index != nil {
			l.index.OptimizeBeforeMeasure(&begin, &pos, l.startMainPos, l.viewExtent())
		}
		l.items.clear()
		l.layoutForward(begin, pos)
		l.fillBackward()
		return
	}
	if l.sizes != nil && l.index != nil && greatNotEqual(l.items.startPos(), l.endMainPos) {
		// the whole window is below the viewport: skip the rows in between
		first, start := l.items.first(), l.items.startPos()
		begin, pos := first, start
		l.index.OptimizeBeforeMeasure(&begin, &pos, l.startMainPos, l.viewExtent())
		if begin != first {
			l.items.clear()
			l.layoutForward(begin, pos)
			l.fillBackward()
			return
		}
	}
	end, pos := l.items.last(), l.items.endPos()
	l.items.clear()
	l.layoutBackward(end, pos)
	l.fillForward()
}

// slotAt returns the realized slot covering pos.
func (l *List) slotAt(pos float64) (Slot, bool) {
	for _, s := range l.items.slots {
		if lessOrEqual(s.StartPos, pos) && greatNotEqual(s.EndPos, pos) {
			return s, true
		}
	}
	return Slot{}, false
}

func (l *List) fillBackward() {
	if l.items.empty() || l.items.first() == 0 {
		return
	}
	if greatNotEqual(l.items.startPos(), l.startMainPos) || l.targetBefore() {
		l.layoutBackward(l.items.first()-1, l.items.startPos()-l.spacing())
	}
}

func (l *List) fillForward() {
	if l.items.empty() || l.items.last() >= l.count-1 {
		return
	}
	if lessNotEqual(l.items.endPos(), l.endMainPos) || l.targetAfter() {
		l.layoutForward(l.items.last()+1, l.items.endPos()+l.spacing())
	}
}

func (l *List) targetAfter() bool {
	return l.target != nil && !l.items.empty() && l.target.index > l.items.last()
}

func (l *List) targetBefore() bool {
	return l.target != nil && !l.items.empty() && l.target.index < l.items.first()
}

// layoutForward lays out rows from the row starting at from, whose leading
// edge is pos, until the viewport end is reached.
func (l *List) layoutForward(from int, pos float64) {
	l.state = StateForward
	for i := from; i < l.count; {
		if l.deadlinePassed() {
			l.incomplete = true
			break
		}
		last, end := l.layoutRowForward(i, pos)
		i = last + 1
		pos = end
		if i < l.count {
			pos += l.spacing()
		}
		if !lessNotEqual(pos, l.endMainPos) && !l.targetAfter() {
			break
		}
	}
}

// layoutBackward lays out rows ending at index from, whose trailing edge is
// pos, until the viewport start is reached.
func (l *List) layoutBackward(from int, pos float64) {
	l.state = StateBackward
	for i := from; i >= 0; {
		if l.deadlinePassed() {
			l.incomplete = true
			break
		}
		first, start := l.layoutRowBackward(i, pos)
		i = first - 1
		pos = start
		if i >= 0 {
			pos -= l.spacing()
		}
		if !greatNotEqual(pos, l.startMainPos) && !l.targetBefore() {
			break
		}
	}
}

func (l *List) realize(index int) (Child, bool) {
	l.touched[index] = struct{}{}
	child, ok := l.host.Child(index, true, false)
	if !ok || child.Kind() == KindNone {
		l.logger.Warn("[Layout] child not produced, treating row as empty",
			slog.Int("index", index),
			slog.String("reason", "nil child"))
		return Child{}, false
	}
	if child.Kind() == KindGroup {
		l.groupAt[index] = child.ID
	} else {
		delete(l.groupAt, index)
	}
	return child, true
}

func (l *List) itemConstraint() Constraint {
	return Constraint{MainSize: l.mainSize, CrossSize: l.laneCross}
}

func (l *List) itemExtent(index int, it Item) float64 {
	if l.sizes != nil {
		return l.sizes.Get(index)
	}
	size := sanitizeExtent(it.MainSize(l.itemConstraint()))
	l.sizeCache[index] = size
	return size
}

func (l *List) crossPos(lane int) float64 {
	return float64(lane) * (l.laneCross + sanitizeExtent(l.cfg.LaneGutter))
}

func (l *List) itemSlot(index, lane int, child Child, start, size float64) Slot {
	s := Slot{
		Index:    index,
		ID:       child.ID,
		StartPos: start,
		EndPos:   start + size,
		CrossPos: l.crossPos(lane),
		Lane:     lane,
	}
	if p, ok := child.Item.(Pressable); ok {
		s.IsPressed = p.Pressed()
	}
	return s
}

func (l *List) placeEmpty(index int, pos float64) {
	l.items.set(Slot{Index: index, StartPos: pos, EndPos: pos})
}

// layoutRowForward places one row and returns its last index and trailing
// edge.
func (l *List) layoutRowForward(i int, pos float64) (int, float64) {
	child, ok := l.realize(i)
	if !ok {
		l.placeEmpty(i, pos)
		return i, pos
	}
	if child.Kind() == KindGroup {
		res := l.measureGroup(i, child, groupForward, pos)
		return i, res.end
	}
	size := l.itemExtent(i, child.Item)
	l.items.set(l.itemSlot(i, 0, child, pos, size))
	end, last := pos+size, i
	for k := 1; k < l.lanes && i+k < l.count; k++ {
		j := i + k
		if l.isGroupIndex(j) {
			break
		}
		child, ok := l.realize(j)
		if !ok {
			l.placeEmpty(j, pos)
			return j, end
		}
		if child.Kind() == KindGroup {
			break
		}
		size := l.itemExtent(j, child.Item)
		l.items.set(l.itemSlot(j, k, child, pos, size))
		end = max(end, pos+size)
		last = j
	}
	return last, end
}

// layoutRowBackward places the row ending at index i and returns its first
// index and leading edge.
func (l *List) layoutRowBackward(i int, endPos float64) (int, float64) {
	child, ok := l.realize(i)
	if !ok {
		l.placeEmpty(i, endPos)
		return i, endPos
	}
	if child.Kind() == KindGroup {
		res := l.measureGroup(i, child, groupBackward, endPos)
		return i, res.start
	}
	rs := l.rowStartOf(i)
	type member struct {
		child Child
		size  float64
		empty bool
	}
	members := make([]member, 0, i-rs+1)
	members = append(members, member{child: child, size: l.itemExtent(i, child.Item)})
	h := members[0].size
	first := i
	for j := i - 1; j >= rs; j-- {
		if l.isGroupIndex(j) {
			break
		}
		c, ok := l.realize(j)
		if ok && c.Kind() == KindGroup {
			break
		}
		m := member{child: c, empty: !ok}
		if ok {
			m.size = l.itemExtent(j, c.Item)
		}
		members = append(members, m)
		h = max(h, m.size)
		first = j
	}
	start := endPos - h
	for k, m := range members {
		j := i - k
		if m.empty {
			l.items.set(Slot{Index: j, StartPos: start, EndPos: start, Lane: j - first, CrossPos: l.crossPos(j - first)})
			continue
		}
		l.items.set(l.itemSlot(j, j-first, m.child, start, m.size))
	}
	return first, start
}

func (l *List) groupParams(mode groupMode, refPos float64) groupParams {
	return groupParams{
		mode:           mode,
		refPos:         refPos,
		viewStart:      l.startMainPos,
		viewEnd:        l.endMainPos,
		jumpIndex:      -1,
		containerLanes: l.lanes,
		crossSize:      l.crossSize,
		laneGutter:     l.cfg.LaneGutter,
		mainSize:       l.mainSize,
		sticky:         l.cfg.Sticky,
		fallbackAvg:    l.averageExtent(),
		needAll:        l.unbounded && mode == groupForward,
	}
}

func (l *List) measureGroup(index int, child Child, mode groupMode, refPos float64) groupResult {
	g := l.groupEngine(child.ID)
	p := l.groupParams(mode, refPos)
	if gj := l.groupJump; gj != nil && gj.index == index {
		p.mode = groupJump
		p.jumpIndex = gj.inGroup
		p.jumpAlign = gj.align
		p.needAll = false
		l.groupJump = nil
	}
	res := g.measure(child.Group, p)
	info := res.info
	l.items.set(Slot{
		Index:    index,
		ID:       child.ID,
		StartPos: res.start,
		EndPos:   res.end,
		IsGroup:  true,
		Group:    &info,
	})
	if res.refDelta != 0 {
		l.applyGroupDelta(index, p.mode, res.refDelta)
	}
	return res
}

// applyGroupDelta keeps the window contiguous after a group's reference
// edge moved. The group's realized items stay where they are, so the
// children on the reference side move instead. A forward delta also
// changes the content above the viewport, which the scroll offset absorbs.
func (l *List) applyGroupDelta(index int, mode groupMode, delta float64) {
	l.logger.Debug("[Layout] group edge moved",
		slog.Int("index", index),
		slog.Float64("delta", delta))
	for i := range l.items.slots {
		s := &l.items.slots[i]
		if (mode == groupForward && s.Index < index) || (mode == groupBackward && s.Index > index) {
			s.StartPos += delta
			s.EndPos += delta
		}
	}
	if mode == groupForward {
		l.totalOffset -= delta
	}
}

// isGroupIndex answers without realizing the child where possible.
func (l *List) isGroupIndex(i int) bool {
	if gc, ok := l.host.(GroupClassifier); ok {
		return gc.IsGroup(i)
	}
	if l.index != nil {
		if info := l.index.ForwardPositionInfo(i); info.Known() {
			return info.IsGroup
		}
	}
	_, ok := l.groupAt[i]
	return ok
}

// rowStartOf returns the first index of the row containing i.
func (l *List) rowStartOf(i int) int {
	if l.lanes <= 1 || l.isGroupIndex(i) {
		return i
	}
	return l.cfg.Strategy.laneRule()(i, l.segmentStart(i), l.lanes)
}

// rowEndOf returns the last index of the row containing i.
func (l *List) rowEndOf(i int) int {
	rs := l.rowStartOf(i)
	end := i
	for j := i + 1; j < rs+l.lanes && j < l.count; j++ {
		if l.isGroupIndex(j) {
			break
		}
		end = j
	}
	return end
}

// segmentStart returns the first index after the nearest group before i.
func (l *List) segmentStart(i int) int {
	if l.index != nil && l.sizes != nil {
		if info := l.index.ForwardPositionInfo(i); info.Known() {
			return l.index.RowStart(i)
		}
	}
	if _, ok := l.host.(GroupClassifier); !ok && len(l.groupAt) == 0 {
		return 0
	}
	for j := i - 1; j >= 0; j-- {
		if l.isGroupIndex(j) {
			return j + 1
		}
	}
	return 0
}

// averageExtent is the mean extent of the realized plain items, falling
// back to declared and previously measured sizes.
func (l *List) averageExtent() float64 {
	total, n := 0.0, 0
	for _, s := range l.items.slots {
		if !s.IsGroup {
			total += s.Extent()
			n++
		}
	}
	if n > 0 {
		return total / float64(n)
	}
	if l.sizes != nil {
		return l.sizes.Default()
	}
	for _, v := range l.sizeCache {
		total += v
		n++
	}
	if n > 0 {
		return total / float64(n)
	}
	return 0
}

// clampOverscroll keeps content from leaving a gap at either edge of the
// viewport, then refills the edges the correction exposed.
func (l *List) clampOverscroll() {
	if l.items.empty() {
		return
	}
	first, last := l.items.first(), l.items.last()
	start, end := l.items.startPos(), l.items.endPos()
	if l.unbounded {
		l.currentOffset = start - l.contentStartOffset
		l.startMainPos = l.currentOffset
		return
	}
	switch {
	case first == 0 && last == l.count-1 &&
		lessOrEqual(end-start+l.contentStartOffset+l.contentEndOffset, l.mainSize):
		l.currentOffset = start - l.contentStartOffset
	case last == l.count-1 && lessNotEqual(end, l.endMainPos-l.contentEndOffset):
		l.currentOffset = end + l.contentEndOffset - l.mainSize
	case first == 0 && greatNotEqual(start, l.startMainPos+l.contentStartOffset):
		l.currentOffset = start - l.contentStartOffset
	default:
		return
	}
	l.startMainPos = l.currentOffset
	l.endMainPos = l.currentOffset + l.mainSize
	if l.hasGroup() {
		// groups realized their items against the old viewport
		first, pos := l.items.first(), l.items.startPos()
		l.items.clear()
		l.layoutForward(first, pos)
	}
	l.fillBackward()
	l.fillForward()
}

func (l *List) hasGroup() bool {
	for _, s := range l.items.slots {
		if s.IsGroup {
			return true
		}
	}
	return false
}

// recycleOutside drops whole rows that lie outside the viewport. Nothing is
// recycled while a target request is extending the layout.
func (l *List) recycleOutside() {
	if l.target != nil || l.unbounded || l.items.empty() {
		return
	}
	rule := l.cfg.Strategy.recycleRule()
	vs, ve := l.startMainPos, l.endMainPos
	for {
		n := l.headRowLen()
		if n == 0 || n >= l.items.len() || !l.rowRecyclable(l.items.slots[:n], rule, vs, ve) {
			break
		}
		for range n {
			l.dropGroup(l.items.popFront())
		}
	}
	for {
		n := l.tailRowLen()
		if n == 0 || n >= l.items.len() || !l.rowRecyclable(l.items.slots[l.items.len()-n:], rule, vs, ve) {
			break
		}
		for range n {
			l.dropGroup(l.items.popBack())
		}
	}
	for _, s := range []*Slot{l.items.firstSlot(), l.items.lastSlot()} {
		if !s.IsGroup {
			continue
		}
		if g := l.groups[s.ID]; g != nil {
			g.CheckRecycle(vs-s.StartPos, ve-s.StartPos)
		}
	}
}

func (l *List) headRowLen() int {
	slots := l.items.slots
	if len(slots) == 0 {
		return 0
	}
	n := 1
	for n < len(slots) && !slots[0].IsGroup && !slots[n].IsGroup && slots[n].Lane > slots[n-1].Lane {
		n++
	}
	return n
}

func (l *List) tailRowLen() int {
	slots := l.items.slots
	if len(slots) == 0 {
		return 0
	}
	n := 1
	for n < len(slots) && !slots[len(slots)-1].IsGroup && slots[len(slots)-n].Lane > 0 && !slots[len(slots)-n-1].IsGroup {
		n++
	}
	return n
}

func (l *List) rowRecyclable(row []Slot, rule func(Slot, float64, float64) bool, vs, ve float64) bool {
	for _, s := range row {
		if !rule(s, vs, ve) {
			return false
		}
		if s.IsGroup {
			if g := l.groups[s.ID]; g != nil && g.State() != GroupSettled {
				return false
			}
		}
	}
	return true
}

func (l *List) dropGroup(s Slot) {
	if !s.IsGroup {
		return
	}
	if g := l.groups[s.ID]; g != nil {
		g.recycleAll()
	}
}

// listSource adapts the list to posmap.Source. It is only used while the
// list's lock is held.
type listSource struct{ l *List }

var _ posmap.Source = listSource{}

func (s listSource) Count() int { return s.l.count }

// IsGroup must not consult the index, which is locked while it rebuilds.
func (s listSource) IsGroup(index int) bool {
	if gc, ok := s.l.host.(GroupClassifier); ok {
		return gc.IsGroup(index)
	}
	_, ok := s.l.groupAt[index]
	return ok
}

func (s listSource) ItemSize(index int) float64 { return s.l.sizes.Get(index) }

func (s listSource) GroupSize(index int, spacing float64) float64 {
	if g := s.l.groupEngineAt(index); g != nil {
		return g.EstimateHeight(s.l.sizes.Default(), 0, 0, spacing)
	}
	return s.l.sizes.Default()
}
