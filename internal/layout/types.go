package layout

import (
	"math"
	"time"
)

// MaxSafeCount bounds the child count reported by a host.
const MaxSafeCount = math.MaxInt32

// LastItem may be passed as a jump index to mean the final child.
const LastItem = -1

// Axis is the main-axis orientation.
type Axis int

const (
	Vertical Axis = iota
	Horizontal
)

func (a Axis) String() string {
	if a == Horizontal {
		return "horizontal"
	}
	return "vertical"
}

// ParseAxis parses vertical or horizontal.
func ParseAxis(s string) (Axis, bool) {
	switch s {
	case "vertical":
		return Vertical, true
	case "horizontal":
		return Horizontal, true
	}
	return Vertical, false
}

// ScrollAlign selects where a jump target lands in the viewport.
type ScrollAlign int

const (
	AlignStart ScrollAlign = iota
	AlignCenter
	AlignEnd
	AlignAuto
)

func (a ScrollAlign) String() string {
	switch a {
	case AlignStart:
		return "start"
	case AlignCenter:
		return "center"
	case AlignEnd:
		return "end"
	case AlignAuto:
		return "auto"
	default:
		return "unknown"
	}
}

// ParseScrollAlign parses start, center, end or auto.
func ParseScrollAlign(s string) (ScrollAlign, bool) {
	switch s {
	case "start":
		return AlignStart, true
	case "center":
		return AlignCenter, true
	case "end":
		return AlignEnd, true
	case "auto":
		return AlignAuto, true
	}
	return AlignStart, false
}

// SnapAlign selects the scroll-snap mode.
type SnapAlign int

const (
	SnapNone SnapAlign = iota
	SnapStart
	SnapCenter
	SnapEnd
)

func (s SnapAlign) String() string {
	switch s {
	case SnapStart:
		return "start"
	case SnapCenter:
		return "center"
	case SnapEnd:
		return "end"
	default:
		return "none"
	}
}

// ParseSnapAlign parses none, start, center or end.
func ParseSnapAlign(s string) (SnapAlign, bool) {
	switch s {
	case "none", "":
		return SnapNone, true
	case "start":
		return SnapStart, true
	case "center":
		return SnapCenter, true
	case "end":
		return SnapEnd, true
	}
	return SnapNone, false
}

// StickyStyle selects which group decorations stay pinned while the group
// scrolls through the viewport.
type StickyStyle uint8

const (
	StickyNone   StickyStyle = 0
	StickyHeader StickyStyle = 1 << 0
	StickyFooter StickyStyle = 1 << 1
	StickyBoth               = StickyHeader | StickyFooter
)

func (s StickyStyle) String() string {
	switch s {
	case StickyNone:
		return "none"
	case StickyHeader:
		return "header"
	case StickyFooter:
		return "footer"
	case StickyBoth:
		return "both"
	default:
		return "unknown"
	}
}

// ParseStickyStyle parses none, header, footer or both.
func ParseStickyStyle(s string) (StickyStyle, bool) {
	for _, v := range []StickyStyle{StickyNone, StickyHeader, StickyFooter, StickyBoth} {
		if v.String() == s {
			return v, true
		}
	}
	return StickyNone, false
}

// Config is the list configuration surface.
type Config struct {
	Axis            Axis
	Lanes           int
	LaneGutter      float64
	Spacing         float64
	StartOffset     float64
	EndOffset       float64
	Snap            SnapAlign
	StackFromEnd    bool
	CachedCount     int
	ShowCachedItems bool
	Sticky          StickyStyle
	// Strategy overrides the row, alignment and recycling rules. The zero
	// value selects the list defaults.
	Strategy Strategy
}

// Constraint is the input of one layout pass.
type Constraint struct {
	// MainSize is the viewport extent. Zero, negative or +Inf means the
	// list sizes itself to its content.
	MainSize float64
	// CrossSize is the extent across the main axis, shared between lanes.
	CrossSize float64
	// Deadline, when non-zero, stops row layout cooperatively once passed.
	Deadline time.Time
}

// GroupLayoutInfo is attached to slots of group children.
type GroupLayoutInfo struct {
	AverageItemExtent float64
	HeaderExtent      float64
	FooterExtent      float64
	Spacing           float64
	// AtStart and AtEnd report whether the group's realized window reaches
	// its first and last item.
	AtStart bool
	AtEnd   bool
}

// Slot is the placement of one realized child. Positions are relative to
// the viewport start after Layout.
type Slot struct {
	Index     int
	ID        uint64
	StartPos  float64
	EndPos    float64
	CrossPos  float64
	Lane      int
	IsGroup   bool
	Group     *GroupLayoutInfo
	IsPressed bool
}

// Extent returns EndPos-StartPos.
func (s Slot) Extent() float64 { return s.EndPos - s.StartPos }

// State is the orchestrator's pass state.
type State int

const (
	StateIdle State = iota
	StateAnchoring
	StateForward
	StateBackward
	StateRecycling
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnchoring:
		return "anchoring"
	case StateForward:
		return "forward-layout"
	case StateBackward:
		return "backward-layout"
	case StateRecycling:
		return "recycling"
	case StateSettled:
		return "settled"
	default:
		return "unknown"
	}
}

// PassResult summarises a Measure call.
type PassResult struct {
	Start           int
	End             int
	ContentMainSize float64
	// Jumped is true when a jump request was resolved by this pass.
	Jumped bool
	// Incomplete is true when the deadline stopped row layout early.
	Incomplete bool
}

// SnapTarget is the predicted settle point of a scroll gesture.
type SnapTarget struct {
	Index int
	// Offset is the scroll distance from the current position to the
	// settle point.
	Offset float64
}

func nearEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-3
}

func lessNotEqual(a, b float64) bool { return a < b && !nearEqual(a, b) }

func greatNotEqual(a, b float64) bool { return a > b && !nearEqual(a, b) }

func lessOrEqual(a, b float64) bool { return a < b || nearEqual(a, b) }

func greatOrEqual(a, b float64) bool { return a > b || nearEqual(a, b) }

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func sanitizeExtent(v float64) float64 {
	if math.IsNaN(v) || v < 0 || math.IsInf(v, 0) {
		return 0
	}
	return v
}
