package layout

import (
	"math"
)

// SetSnapGesture records the predicted scroll distance and velocity of the
// gesture in progress. Each Layout then publishes the snap target the
// viewport should settle on when the gesture ends.
func (l *List) SetSnapGesture(predictOffset, velocity float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gesture = &snapGesture{offset: predictOffset, velocity: velocity}
}

// ClearSnapGesture forgets the recorded gesture.
func (l *List) ClearSnapGesture() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.gesture = nil
}

type snapGesture struct {
	offset   float64
	velocity float64
}

// PredictSnap returns the index the viewport settles on after scrolling by
// offset, and the scroll distance from the current position to that point.
// ok is false when snapping is disabled or nothing is realized.
func (l *List) PredictSnap(offset, velocity float64) (SnapTarget, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.predictSnap(offset, velocity)
}

// StopOnScreenOffset returns the distance to scroll so the item nearest
// the snap line becomes aligned, or zero when snapping is disabled.
func (l *List) StopOnScreenOffset() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.predictSnap(0, 0)
	if !ok {
		return 0
	}
	return t.Offset
}

func (l *List) snapLine() float64 {
	switch l.cfg.Snap {
	case SnapCenter:
		return l.mainSize / 2
	case SnapEnd:
		return l.mainSize - l.contentEndOffset
	default:
		return l.contentStartOffset
	}
}

func (l *List) snapEdge(s Slot) float64 {
	switch l.cfg.Snap {
	case SnapCenter:
		return (s.StartPos + s.EndPos) / 2
	case SnapEnd:
		return s.EndPos
	default:
		return s.StartPos
	}
}

func (l *List) predictSnap(offset, velocity float64) (SnapTarget, bool) {
	if l.cfg.Snap == SnapNone || l.items.empty() {
		return SnapTarget{}, false
	}
	line := l.snapLine()
	point := offset + line

	if step, ok := l.uniformStep(); ok {
		first := l.items.firstSlot()
		firstRow := l.rowStartOf(first.Index)
		r := (point - l.snapEdge(*first)) / step
		k := math.Floor(r)
		switch frac := r - k; {
		case nearEqual(frac, 0.5):
			if velocity > 0 {
				k++
			}
		case frac > 0.5:
			k++
		}
		index := clampInt(firstRow+int(k)*l.lanes, 0, l.count-1)
		k = float64((l.rowStartOf(index) - firstRow) / l.lanes)
		edge := l.snapEdge(*first) + k*step
		return SnapTarget{Index: index, Offset: edge - line}, true
	}

	best := -1
	bestDist := math.Inf(1)
	for i, s := range l.items.slots {
		if s.Lane != 0 {
			continue
		}
		d := math.Abs(l.snapEdge(s) - point)
		switch {
		case best < 0 || lessNotEqual(d, bestDist):
			best, bestDist = i, d
		case nearEqual(d, bestDist) && velocity > 0:
			// equidistant rows: the gesture direction decides
			best = i
		}
	}
	s := l.items.slots[best]
	return SnapTarget{Index: s.Index, Offset: l.snapEdge(s) - line}, true
}

// uniformStep reports the row pitch when every realized row is a plain row
// of the same extent, which lets prediction extrapolate past the window.
func (l *List) uniformStep() (float64, bool) {
	var h float64
	for i, s := range l.items.slots {
		if s.IsGroup {
			return 0, false
		}
		if i == 0 {
			h = s.Extent()
			continue
		}
		if !nearEqual(s.Extent(), h) {
			return 0, false
		}
	}
	if h <= 0 {
		return 0, false
	}
	return h + l.spacing(), true
}
