package layout

import (
	"github.com/joeycumines/vlist/internal/childsize"
)

// Item is a measurable leaf child.
type Item interface {
	// MainSize measures the item under c and returns its main-axis extent.
	MainSize(c Constraint) float64
}

// Pressable is implemented by items that can report a pressed state.
type Pressable interface {
	Pressed() bool
}

// GroupSource is a composite child: an optional header, an ordered run of
// items and an optional footer.
type GroupSource interface {
	ItemCount() int
	// Item realizes the item at index, or returns nil when the data source
	// has not produced it.
	Item(index int, addToRenderTree, isCache bool) Item
	// Header and Footer return nil when absent.
	Header() Item
	Footer() Item
	// Lanes is the group's own lane count; zero or less inherits the
	// container's.
	Lanes() int
	Spacing() float64
	// DeclaredSizes may return nil.
	DeclaredSizes() *childsize.Store
}

// GroupRecycler is implemented by groups that pool their own items.
type GroupRecycler interface {
	RecycleItem(index int)
}

// ChildKind discriminates Child.
type ChildKind int

const (
	KindNone ChildKind = iota
	KindItem
	KindGroup
)

func (k ChildKind) String() string {
	switch k {
	case KindItem:
		return "item"
	case KindGroup:
		return "group"
	default:
		return "none"
	}
}

// Child is a realized child of the list: exactly one of Item or Group is
// set. ID must be stable for the lifetime of the underlying node; group
// sub-engine state is keyed by it.
type Child struct {
	ID    uint64
	Item  Item
	Group GroupSource
}

// Kind reports which variant is populated.
func (c Child) Kind() ChildKind {
	switch {
	case c.Group != nil:
		return KindGroup
	case c.Item != nil:
		return KindItem
	default:
		return KindNone
	}
}

// Host is the tree that owns the list's children.
type Host interface {
	// ChildCount may exceed MaxSafeCount; the orchestrator clamps it.
	ChildCount() int
	// Child returns the child at index, realizing it if needed. ok is false
	// when the data source has not produced that index.
	Child(index int, addToRenderTree, isCache bool) (child Child, ok bool)
	// Recycle returns a child that left the realized window to the host's
	// pool.
	Recycle(index int)
}

// GroupClassifier answers whether an index holds a group without realizing it.
// Hosts that never contain groups need not implement it.
type GroupClassifier interface {
	IsGroup(index int) bool
}

// SegmentKind classifies a Segment.
type SegmentKind int

const (
	// SegmentItems is a run of directly declared children.
	SegmentItems SegmentKind = iota
	// SegmentLazy is a run generated on demand from a data source.
	SegmentLazy
)

// Segment is a contiguous run of the logical child sequence.
type Segment struct {
	Kind  SegmentKind
	Start int
	Count int
}

// Segmented is implemented by hosts whose child sequence mixes declared
// children and lazily generated ranges.
type Segmented interface {
	Segments() []Segment
}

// Invalidator is implemented by hosts that can schedule another pass, for
// example after background prefetch produced new sizes.
type Invalidator interface {
	RequestLayout()
}
