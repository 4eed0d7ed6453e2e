package layout

import (
	"math"

	"github.com/joeycumines/vlist/internal/childsize"
	"github.com/joeycumines/vlist/internal/posmap"
)

// estimateWalkLimit bounds the per-index walk over an undivided child
// sequence; longer sequences are treated as one lazy range.
const estimateWalkLimit = 1 << 16

// Estimate is the result of an Estimator.
type Estimate struct {
	// Height is the estimated total content extent, offsets included.
	Height float64
	// Offset is the scroll distance from the content origin to the
	// viewport start.
	Offset float64
	// Average is the running average item extent the estimate settled on.
	Average float64
}

// Estimator answers extent and offset questions for one realized window.
// It is built per query and not reused.
type Estimator struct {
	Slots       []Slot
	Count       int
	Spacing     float64
	Lanes       int
	Axis        Axis
	StartOffset float64
	EndOffset   float64
	// Segments describes the child sequence; nil means one run.
	Segments []Segment
	Index    *posmap.Index
	Sizes    *childsize.Store
	IsGroup  func(index int) bool
	GroupAt  func(index int) *GroupEngine

	accHeight float64
	accCount  int
}

// Estimate walks the sequence once.
func (e *Estimator) Estimate() Estimate {
	if e.Count <= 0 {
		return Estimate{}
	}
	e.Lanes = max(e.Lanes, 1)
	e.seed()

	if len(e.Slots) > 0 && e.indexed() {
		first := e.Slots[0]
		if info := e.Index.ForwardPositionInfo(first.Index); info.Known() {
			return Estimate{
				Height:  e.Index.TotalHeight() + e.StartOffset + e.EndOffset,
				Offset:  info.MainPos + e.StartOffset - first.StartPos,
				Average: e.average(),
			}
		}
	}

	if len(e.Slots) == 0 {
		h := e.rangeExtent(0, e.Count) - e.Spacing
		return Estimate{Height: max(h, 0) + e.StartOffset + e.EndOffset, Average: e.average()}
	}

	first, last := e.Slots[0], e.Slots[len(e.Slots)-1]
	windowStart, windowEnd := first.StartPos, slotsEnd(e.Slots)
	before := e.rangeExtent(0, first.Index)
	after := e.rangeExtent(last.Index+1, e.Count)
	// the trailing spacing of the last estimated row stands in for the gap
	// after the window
	height := before + (windowEnd - windowStart) + after + e.StartOffset + e.EndOffset
	offset := before + e.StartOffset - windowStart

	if first.IsGroup && e.GroupAt != nil && first.Group != nil && !first.Group.AtStart {
		if g := e.GroupAt(first.Index); g != nil {
			groupHeight := g.EstimateHeight(e.average(), first.Group.HeaderExtent, first.Group.FooterExtent, first.Group.Spacing)
			est, act := g.EstimateOffset(groupHeight, first.Group.HeaderExtent, first.Group.FooterExtent)
			offset += est - act
		}
	}
	return Estimate{Height: height, Offset: offset, Average: e.average()}
}

// OffsetOf returns the estimated content offset of the row holding index,
// in the same coordinates as Estimate().Offset. Indices are clamped to the
// child range.
func (e *Estimator) OffsetOf(index int) float64 {
	if e.Count <= 0 {
		return 0
	}
	e.Lanes = max(e.Lanes, 1)
	index = min(max(index, 0), e.Count-1)
	if e.indexed() {
		if info := e.Index.ForwardPositionInfo(index); info.Known() {
			return info.MainPos + e.StartOffset
		}
	}
	if len(e.Slots) == 0 {
		e.seed()
		return e.rangeExtent(0, e.rowStart(index)) + e.StartOffset
	}
	for _, s := range e.Slots {
		if s.Index == index {
			return e.Estimate().Offset + s.StartPos
		}
	}
	est := e.Estimate()
	first, last := e.Slots[0], e.Slots[len(e.Slots)-1]
	if index < first.Index {
		return e.rangeExtent(0, e.rowStart(index)) + e.StartOffset
	}
	after := slotsEnd(e.Slots) + e.Spacing
	return est.Offset + after + e.rangeExtent(last.Index+1, e.rowStart(index))
}

// IndexAt returns the estimated index whose row covers the content offset.
func (e *Estimator) IndexAt(offset float64) int {
	if e.Count <= 0 {
		return -1
	}
	e.Lanes = max(e.Lanes, 1)
	pos := offset - e.StartOffset
	if e.indexed() {
		if i, ok := e.Index.ForwardIndexAt(pos); ok {
			return min(i, e.Count-1)
		}
	}
	est := e.Estimate()
	if len(e.Slots) > 0 {
		first := e.Slots[0]
		view := offset - est.Offset
		if view >= first.StartPos && view < slotsEnd(e.Slots) {
			found := first.Index
			for _, s := range e.Slots {
				if s.StartPos <= view {
					found = s.Index
				}
			}
			return found
		}
	}
	row := e.average() + e.Spacing
	if row <= 0 {
		return 0
	}
	i := int(math.Floor(max(pos, 0)/row)) * e.Lanes
	return min(i, e.Count-1)
}

// indexed reports whether the position index is complete for the current
// child count and can answer directly.
func (e *Estimator) indexed() bool {
	return e.Sizes != nil && e.Index != nil && e.Index.Count() == e.Count
}

// rowStart aligns index down to the first lane of its row, ignoring groups.
func (e *Estimator) rowStart(index int) int {
	return index - index%e.Lanes
}

func (e *Estimator) seed() {
	e.accHeight, e.accCount = 0, 0
	for _, s := range e.Slots {
		if !s.IsGroup {
			e.accHeight += s.Extent()
			e.accCount++
		}
	}
	if e.accCount == 0 && e.Sizes != nil {
		e.accHeight, e.accCount = e.Sizes.Default(), 1
	}
}

func (e *Estimator) average() float64 {
	if e.accCount == 0 {
		return 0
	}
	return e.accHeight / float64(e.accCount)
}

func (e *Estimator) segments() []Segment {
	if len(e.Segments) > 0 {
		return e.Segments
	}
	kind := SegmentLazy
	if e.IsGroup != nil && e.Count <= estimateWalkLimit {
		kind = SegmentItems
	}
	return []Segment{{Kind: kind, Start: 0, Count: e.Count}}
}

// rangeExtent estimates rows [a, b) including the spacing after each row.
func (e *Estimator) rangeExtent(a, b int) float64 {
	if a >= b {
		return 0
	}
	total := 0.0
	for _, seg := range e.segments() {
		s, t := max(seg.Start, a), min(seg.Start+seg.Count, b)
		if s >= t {
			continue
		}
		if seg.Kind == SegmentLazy {
			total += e.lazyExtent(s, t)
		} else {
			total += e.walkExtent(s, t)
		}
	}
	return total
}

// lazyExtent uses the position index when both boundary rows are known,
// otherwise the running average.
func (e *Estimator) lazyExtent(s, t int) float64 {
	if e.Index != nil {
		from, to := e.Index.ForwardPositionInfo(s), e.Index.ForwardPositionInfo(t-1)
		if from.Known() && to.Known() && to.End() >= from.MainPos {
			return to.End() - from.MainPos + e.Spacing
		}
	}
	rows := math.Ceil(float64(t-s) / float64(e.Lanes))
	return rows * (e.average() + e.Spacing)
}

func (e *Estimator) walkExtent(s, t int) float64 {
	total, rowMax := 0.0, 0.0
	lane := 0
	for i := s; i < t; i++ {
		if e.IsGroup != nil && e.IsGroup(i) {
			if lane > 0 {
				total += rowMax + e.Spacing
				lane, rowMax = 0, 0
			}
			total += e.groupExtent(i) + e.Spacing
			continue
		}
		size := e.average()
		if e.Sizes != nil {
			size = e.Sizes.Get(i)
			e.accHeight += size
			e.accCount++
		}
		rowMax = max(rowMax, size)
		lane++
		if lane == e.Lanes {
			total += rowMax + e.Spacing
			lane, rowMax = 0, 0
		}
	}
	if lane > 0 {
		total += rowMax + e.Spacing
	}
	return total
}

func (e *Estimator) groupExtent(i int) float64 {
	if e.GroupAt != nil {
		if g := e.GroupAt(i); g != nil {
			return g.EstimateHeight(e.average(), 0, 0, e.Spacing)
		}
	}
	return e.average()
}

func slotsEnd(slots []Slot) float64 {
	end := math.Inf(-1)
	for _, s := range slots {
		end = max(end, s.EndPos)
	}
	return end
}
