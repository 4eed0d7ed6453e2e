package layout

// Strategy bundles the pluggable rules of the orchestrator. A nil field
// selects the list default.
type Strategy struct {
	// LaneRule returns the first index of the row containing index, where
	// segmentStart is the first index after the nearest preceding group.
	LaneRule func(index, segmentStart, lanes int) int
	// AlignRule returns the viewport position a jump target is aligned to.
	AlignRule func(align ScrollAlign, viewport, startOffset, endOffset float64) float64
	// RecycleRule reports whether a realized slot may be released given the
	// visible range [viewStart, viewEnd].
	RecycleRule func(s Slot, viewStart, viewEnd float64) bool
}

// DefaultLaneRule packs items into rows of lanes, restarting after groups.
func DefaultLaneRule(index, segmentStart, lanes int) int {
	if lanes <= 1 || index <= segmentStart {
		return index
	}
	return segmentStart + (index-segmentStart)/lanes*lanes
}

// DefaultAlignRule places start targets after the start offset, end targets
// before the end offset and center targets in the middle of the viewport.
func DefaultAlignRule(align ScrollAlign, viewport, startOffset, endOffset float64) float64 {
	switch align {
	case AlignEnd:
		return viewport - endOffset
	case AlignCenter:
		return viewport / 2
	default:
		return startOffset
	}
}

// DefaultRecycleRule releases slots that lie entirely outside the visible
// range.
func DefaultRecycleRule(s Slot, viewStart, viewEnd float64) bool {
	return lessOrEqual(s.EndPos, viewStart) || greatOrEqual(s.StartPos, viewEnd)
}

func (s Strategy) laneRule() func(int, int, int) int {
	if s.LaneRule != nil {
		return s.LaneRule
	}
	return DefaultLaneRule
}

func (s Strategy) alignRule() func(ScrollAlign, float64, float64, float64) float64 {
	if s.AlignRule != nil {
		return s.AlignRule
	}
	return DefaultAlignRule
}

func (s Strategy) recycleRule() func(Slot, float64, float64) bool {
	if s.RecycleRule != nil {
		return s.RecycleRule
	}
	return DefaultRecycleRule
}
