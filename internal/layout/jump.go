package layout

import (
	"log/slog"
	"math"
)

// checkJumpValid resolves LastItem and clamps request indices into range.
func (l *List) checkJumpValid() {
	l.jump = l.validRequest(l.jump, "jump")
	l.target = l.validRequest(l.target, "target")
}

func (l *List) validRequest(r *jumpRequest, kind string) *jumpRequest {
	if r == nil {
		return nil
	}
	if r.index == LastItem {
		r.index = l.count - 1
	}
	if r.index < 0 || r.index >= l.count {
		clamped := clampInt(r.index, 0, l.count-1)
		l.logger.Debug("[Layout] clamping request index",
			slog.String("kind", kind),
			slog.Int("index", r.index),
			slog.Int("clamped", clamped))
		r.index = clamped
	}
	if r.inGroup >= 0 {
		if _, classifies := l.host.(GroupClassifier); classifies && !l.isGroupIndex(r.index) {
			l.logger.Warn("[Layout] item-in-group request on a plain item",
				slog.Int("index", r.index),
				slog.Int("indexInGroup", r.inGroup))
			r.inGroup = -1
		}
	}
	return r
}

// checkJumpToIndex turns a scroll delta larger than twice the viewport into
// an average-based jump, so the pass does not lay out every row in between.
func (l *List) checkJumpToIndex() {
	if l.jump != nil || l.sizes != nil || l.items.empty() || l.unbounded {
		return
	}
	if !greatNotEqual(math.Abs(l.delta), 2*l.mainSize) {
		return
	}
	step := l.averageExtent() + l.spacing()
	if step <= 0 {
		return
	}
	first := l.rowStartOf(l.items.first())
	dist := l.delta - l.items.startPos()
	rows := int(math.Floor(dist / step))
	index := first + rows*l.lanes
	rem := dist - float64(rows)*step
	if index < 0 || index >= l.count {
		index = clampInt(index, 0, l.count-1)
		rem = 0
	}
	l.logger.Debug("[Layout] large delta converted to jump",
		slog.Float64("delta", l.delta),
		slog.Int("index", index),
		slog.Float64("remainder", rem))
	l.jump = &jumpRequest{index: index, inGroup: -1, align: AlignStart, extra: rem + l.contentStartOffset}
	l.delta = 0
}

func (l *List) alignPosition(align ScrollAlign, extra float64) float64 {
	return l.cfg.Strategy.alignRule()(align, l.mainSize, l.contentStartOffset, l.contentEndOffset) - extra
}

// resolveJump lays out around the request. It returns false when the
// request was already satisfied and the pass should continue normally.
func (l *List) resolveJump(req *jumpRequest) bool {
	l.currentOffset, l.startMainPos, l.endMainPos = 0, 0, l.viewExtent()

	align := req.align
	if l.noNeedJump(req) {
		l.logger.Debug("[Layout] jump already satisfied",
			slog.Int("index", req.index), slog.String("align", align.String()))
		return false
	}
	if align == AlignAuto {
		var ok bool
		if align, ok = l.decideAuto(req); !ok {
			return false
		}
	}

	l.jumped = true
	idx := req.index
	anchor := l.alignPosition(align, req.extra)
	l.state = StateAnchoring
	for _, s := range l.items.slots {
		if s.IsGroup && s.Index != idx {
			l.dropGroup(s)
		}
	}
	l.items.clear()

	if req.inGroup >= 0 && l.isGroupIndex(idx) {
		l.groupJump = &jumpRequest{index: idx, inGroup: req.inGroup, align: align}
		l.layoutRowForward(idx, anchor)
		// left over when the child turned out not to be a group
		l.groupJump = nil
		l.fillForward()
		l.fillBackward()
		return true
	}

	switch align {
	case AlignEnd:
		l.layoutBackward(l.rowEndOf(idx), anchor)
		l.fillForward()
	case AlignCenter:
		rs := l.rowStartOf(idx)
		if l.isGroupIndex(idx) {
			est := l.averageExtent()
			if g := l.groupEngineAt(idx); g != nil {
				est = g.EstimateHeight(est, 0, 0, l.spacing())
			}
			l.layoutRowForward(idx, anchor-est/2)
		} else {
			l.layoutRowForward(rs, 0)
			if s, ok := l.items.get(idx); ok {
				l.items.shiftPositions(anchor - (s.StartPos+s.EndPos)/2)
			}
		}
		l.fillForward()
		l.fillBackward()
	default:
		l.layoutForward(l.rowStartOf(idx), anchor)
		l.fillBackward()
	}
	return true
}

// noNeedJump reports whether the realized window already shows the request
// the way it asks. Repeated identical requests then cost no re-layout.
func (l *List) noNeedJump(req *jumpRequest) bool {
	s, ok := l.items.get(req.index)
	if !ok {
		return false
	}
	vs, ve := l.contentStartOffset, l.mainSize-l.contentEndOffset
	if req.inGroup >= 0 && s.IsGroup {
		g := l.groups[s.ID]
		if g == nil || req.align != AlignAuto {
			return false
		}
		return g.judgeInScreen(req.inGroup, s.StartPos, vs, ve, l.cfg.Sticky) == autoNotChange
	}
	// rows share a leading edge, so compare the row's first slot
	if r, ok := l.items.get(l.rowStartOf(req.index)); ok && !s.IsGroup {
		s = r
	}
	anchor := l.alignPosition(req.align, req.extra)
	switch req.align {
	case AlignAuto:
		return greatOrEqual(s.StartPos, vs) && lessOrEqual(s.EndPos, ve)
	case AlignStart:
		return nearEqual(s.StartPos, anchor)
	case AlignEnd:
		return nearEqual(s.EndPos, anchor)
	case AlignCenter:
		return nearEqual((s.StartPos+s.EndPos)/2, anchor)
	}
	return false
}

// decideAuto picks start or end for an auto request. ok is false when the
// target is already fully visible.
func (l *List) decideAuto(req *jumpRequest) (ScrollAlign, bool) {
	vs, ve := l.contentStartOffset, l.mainSize-l.contentEndOffset
	if s, ok := l.items.get(req.index); ok {
		if req.inGroup >= 0 && s.IsGroup {
			if g := l.groups[s.ID]; g != nil {
				switch g.judgeInScreen(req.inGroup, s.StartPos, vs, ve, l.cfg.Sticky) {
				case autoStart:
					return AlignStart, true
				case autoEnd:
					return AlignEnd, true
				default:
					return AlignAuto, false
				}
			}
		}
		if greatOrEqual(s.StartPos, vs) && lessOrEqual(s.EndPos, ve) {
			return AlignAuto, false
		}
		if lessNotEqual(s.StartPos, vs) || greatNotEqual(s.Extent(), ve-vs) {
			return AlignStart, true
		}
		return AlignEnd, true
	}

	before := l.items.empty() || req.index < l.items.first()
	extent := l.measureTarget(req)
	if judgeOutOfScreen(before, extent, ve-vs) == autoStart {
		return AlignStart, true
	}
	return AlignEnd, true
}

// measureTarget measures the target row once so an auto request can tell
// whether it fits the viewport. A group target with an item index is
// judged by its items' average extent.
func (l *List) measureTarget(req *jumpRequest) float64 {
	if l.sizes != nil && !l.isGroupIndex(req.index) {
		return l.sizes.Get(req.index)
	}
	if v, ok := l.sizeCache[req.index]; ok {
		return v
	}
	child, ok := l.realize(req.index)
	if !ok {
		return 0
	}
	if child.Kind() == KindGroup {
		g := l.groupEngine(child.ID)
		if req.inGroup >= 0 {
			if g.avg > 0 {
				return g.avg
			}
			return l.averageExtent()
		}
		return g.EstimateHeight(l.averageExtent(), 0, 0, l.spacing())
	}
	return l.itemExtent(req.index, child.Item)
}
