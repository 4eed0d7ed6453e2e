// Package posmap implements an approximate spatial index over list children.
//
// An Index maps a child index to its main-axis position and extent. Entries
// are computed from declared sizes (see package childsize) and the lane
// configuration, and are repaired incrementally as those inputs change.
// Indices that were never computed report Unknown, which callers treat as
// "estimate instead".
package posmap

import (
	"log/slog"
	"math"
	"sync"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/joeycumines/vlist/internal/childsize"
)

// Info is a single position entry.
type Info struct {
	MainPos  float64
	MainSize float64
	IsGroup  bool
}

// Unknown is returned for indices the index has never computed.
var Unknown = Info{MainPos: -1, MainSize: -1}

// Known reports whether the entry carries real data.
func (i Info) Known() bool {
	return i.MainSize >= 0 && i.MainPos >= 0
}

// End returns the trailing edge of the entry.
func (i Info) End() float64 {
	return i.MainPos + i.MainSize
}

// Flag marks a reason the index needs recomputation.
type Flag uint8

const (
	// FlagChildSize is set when individual declared sizes were overwritten.
	FlagChildSize Flag = 1 << iota
	// FlagLanes is set when the lane count changed.
	FlagLanes
	// FlagSpacing is set when inter-item spacing changed.
	FlagSpacing
	// FlagCount is set when the child count changed or indices shifted.
	FlagCount
	// FlagHeaderFooter is set when a group header or footer extent changed.
	FlagHeaderFooter
	// FlagDefault is set when the fallback declared size changed.
	FlagDefault
)

// Rule is the recomputation strategy selected from the pending flags.
type Rule int

const (
	RuleNoChange Rule = iota
	RuleResizeOnly
	RuleFullRebuild
)

func (r Rule) String() string {
	switch r {
	case RuleNoChange:
		return "no-change"
	case RuleResizeOnly:
		return "resize-only"
	case RuleFullRebuild:
		return "full-rebuild"
	default:
		return "unknown"
	}
}

// Source describes the logical child sequence without realizing items.
type Source interface {
	Count() int
	IsGroup(index int) bool
	// ItemSize returns the declared extent of a plain item.
	ItemSize(index int) float64
	// GroupSize returns the declared extent of a whole group, header and
	// footer included.
	GroupSize(index int, spacing float64) float64
}

// Index is the position table. It is safe for concurrent use.
type Index struct {
	mu      sync.RWMutex
	entries *treemap.Map
	total   float64
	lanes   int
	spacing float64
	count   int

	dirty        Flag
	firstChanged int
	// reversed presents entries in stack-from-end coordinates. Storage
	// stays forward.
	reversed bool

	logger *slog.Logger
}

// New returns an empty index with a single lane.
func New() *Index {
	return &Index{
		entries:      treemap.NewWithIntComparator(),
		lanes:        1,
		firstChanged: -1,
		logger:       slog.Default(),
	}
}

// SetLogger replaces the logger used for recomputation traces.
func (x *Index) SetLogger(logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	x.mu.Lock()
	x.logger = logger
	x.mu.Unlock()
}

// Subscribe wires declared-size changes into the dirty flags. The returned
// function detaches the index from the store.
func (x *Index) Subscribe(store *childsize.Store) (cancel func()) {
	return store.Subscribe(x.OnChange)
}

// OnChange classifies a declared-size change.
func (x *Index) OnChange(c childsize.Change) {
	x.mu.Lock()
	defer x.mu.Unlock()
	switch c.Kind {
	case childsize.ChangeUpdate:
		x.dirty |= FlagChildSize
		if x.firstChanged < 0 || c.Start < x.firstChanged {
			x.firstChanged = c.Start
		}
	case childsize.ChangeInsert, childsize.ChangeDelete:
		x.dirty |= FlagCount
	default:
		x.dirty |= FlagDefault
	}
}

// MarkDirty adds flags to the pending set.
func (x *Index) MarkDirty(flags Flag) {
	x.mu.Lock()
	x.dirty |= flags
	if flags&FlagChildSize != 0 && x.firstChanged < 0 {
		x.firstChanged = 0
	}
	x.mu.Unlock()
}

// Dirty returns the pending flags.
func (x *Index) Dirty() Flag {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.dirty
}

// Classify maps the pending flags to a recomputation rule.
func (x *Index) Classify() Rule {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.classifyLocked()
}

func (x *Index) classifyLocked() Rule {
	switch {
	case x.dirty == 0:
		return RuleNoChange
	case x.dirty == FlagChildSize && x.firstChanged >= 0 && x.entries.Size() > 0:
		return RuleResizeOnly
	default:
		return RuleFullRebuild
	}
}

// Sync records lane, spacing and count changes against the previous
// recomputation, then recalculates. It reports the rule that was applied.
func (x *Index) Sync(src Source, lanes int, spacing float64) Rule {
	lanes = max(lanes, 1)
	x.mu.Lock()
	if lanes != x.lanes {
		x.dirty |= FlagLanes
	}
	if spacing != x.spacing {
		x.dirty |= FlagSpacing
	}
	if n := src.Count(); n != x.count || (n > 0 && x.entries.Size() == 0) {
		x.dirty |= FlagCount
	}
	x.lanes = lanes
	x.spacing = spacing
	x.mu.Unlock()
	return x.Recalculate(src)
}

// Recalculate applies the pending flags using src.
func (x *Index) Recalculate(src Source) Rule {
	x.mu.Lock()
	defer x.mu.Unlock()
	rule := x.classifyLocked()
	switch rule {
	case RuleNoChange:
		return rule
	case RuleResizeOnly:
		from := x.rowSegmentStartLocked(x.firstChanged)
		x.rebuildLocked(src, from)
	default:
		x.rebuildLocked(src, 0)
	}
	x.logger.Debug("[PosMap] recalculated",
		slog.String("rule", rule.String()),
		slog.Int("count", x.count),
		slog.Float64("total", x.total))
	x.dirty = 0
	x.firstChanged = -1
	return rule
}

// rowSegmentStartLocked returns an index from which a partial rebuild can
// restart without disturbing any row that ends before it.
func (x *Index) rowSegmentStartLocked(index int) int {
	if index <= 0 {
		return 0
	}
	if index >= x.count {
		index = x.count - 1
	}
	if x.lanes == 1 {
		return index
	}
	// restart at the first index after the nearest preceding group so that
	// lane counting stays aligned
	for j := index - 1; j >= 0; j-- {
		info, ok := x.getLocked(j)
		if !ok {
			return 0
		}
		if info.IsGroup {
			return j + 1
		}
	}
	return 0
}

func (x *Index) rebuildLocked(src Source, from int) {
	count := src.Count()
	x.count = count
	if from <= 0 || from >= count {
		from = 0
		x.entries.Clear()
	} else {
		// drop entries at and after the restart point
		for _, k := range x.entries.Keys() {
			if k.(int) >= from {
				x.entries.Remove(k)
			}
		}
	}

	pos := 0.0
	if from > 0 {
		if info, ok := x.getLocked(from - 1); ok {
			pos = info.End() + x.spacing
		}
	}

	var (
		rowStart  = from
		rowHeight = 0.0
		inRow     = 0
	)
	commit := func(end int) {
		x.updateRangeLocked(rowStart, end, Info{MainPos: pos, MainSize: rowHeight}, x.spacing, x.lanes)
		pos += rowHeight + x.spacing
		rowHeight = 0
		inRow = 0
	}
	for i := from; i < count; i++ {
		if src.IsGroup(i) {
			if inRow > 0 {
				commit(i)
			}
			size := src.GroupSize(i, x.spacing)
			x.entries.Put(i, Info{MainPos: pos, MainSize: size, IsGroup: true})
			pos += size + x.spacing
			rowStart = i + 1
			continue
		}
		if inRow == 0 {
			rowStart = i
		}
		rowHeight = max(rowHeight, src.ItemSize(i))
		inRow++
		if inRow == x.lanes {
			commit(i + 1)
		}
	}
	if inRow > 0 {
		commit(count)
	}
	if count > 0 {
		x.total = pos - x.spacing
	} else {
		x.total = 0
	}
}

// GetPositionInfo returns the entry for index, or Unknown. While the index
// is reversed the position is mirrored around the total extent.
func (x *Index) GetPositionInfo(index int) Info {
	x.mu.RLock()
	defer x.mu.RUnlock()
	info, ok := x.getLocked(index)
	if !ok {
		return Unknown
	}
	if x.reversed {
		info.MainPos = max(x.total-info.End(), 0)
	}
	return info
}

// ForwardPositionInfo returns the entry for index in forward coordinates,
// whatever the presentation, or Unknown.
func (x *Index) ForwardPositionInfo(index int) Info {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if info, ok := x.getLocked(index); ok {
		return info
	}
	return Unknown
}

func (x *Index) getLocked(index int) (Info, bool) {
	v, ok := x.entries.Get(index)
	if !ok {
		return Info{}, false
	}
	return v.(Info), true
}

// Update stores info for index, in forward coordinates.
func (x *Index) Update(index int, info Info) {
	if index < 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries.Put(index, info)
	x.extendTotalLocked(index, info)
}

// UpdateWithCheck stores info for index only if it grows the known extent.
// It is used for partial information that must never shrink an entry.
func (x *Index) UpdateWithCheck(index int, info Info) {
	if index < 0 {
		return
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	if old, ok := x.getLocked(index); ok && old.MainSize >= info.MainSize {
		return
	}
	x.entries.Put(index, info)
	x.extendTotalLocked(index, info)
}

// UpdateRange writes a uniform row pattern over [start, end): every lanes
// indices the position advances by info.MainSize+spacing.
func (x *Index) UpdateRange(start, end int, info Info, spacing float64, lanes int) {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.updateRangeLocked(start, end, info, spacing, lanes)
}

func (x *Index) updateRangeLocked(start, end int, info Info, spacing float64, lanes int) {
	lanes = max(lanes, 1)
	start = max(start, 0)
	pos := info.MainPos
	for i := start; i < end; i++ {
		entry := Info{MainPos: pos, MainSize: info.MainSize, IsGroup: info.IsGroup}
		x.entries.Put(i, entry)
		x.extendTotalLocked(i, entry)
		if (i-start)%lanes == lanes-1 {
			pos += info.MainSize + spacing
		}
	}
}

func (x *Index) extendTotalLocked(index int, info Info) {
	if index >= x.count {
		x.count = index + 1
	}
	if index == x.count-1 {
		x.total = info.End()
	}
}

// TotalHeight returns the extent of all computed rows.
func (x *Index) TotalHeight() float64 {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.total
}

// Count returns the child count of the last recomputation.
func (x *Index) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.count
}

// Len returns the number of computed entries.
func (x *Index) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.entries.Size()
}

// Clear drops all entries and pending flags.
func (x *Index) Clear() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.entries.Clear()
	x.total = 0
	x.count = 0
	x.dirty = 0
	x.firstChanged = -1
}

// Reverse toggles the stack-from-end presentation of GetPositionInfo and
// IndexAt: positions are mirrored around the total extent. Calling it twice
// restores the forward view. Rebuilds and OptimizeBeforeMeasure always work
// in forward coordinates.
func (x *Index) Reverse() {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.reversed = !x.reversed
}

// Reversed reports whether positions are presented stack-from-end.
func (x *Index) Reversed() bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.reversed
}

// RowStart returns the first index of the row containing index, using the
// computed entries. Unknown indices return themselves.
func (x *Index) RowStart(index int) int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.rowStartLocked(index)
}

func (x *Index) rowStartLocked(index int) int {
	info, ok := x.getLocked(index)
	if !ok || info.IsGroup {
		return index
	}
	start := index
	for j := index - 1; j >= 0 && index-j < x.lanes; j-- {
		prev, ok := x.getLocked(j)
		if !ok || prev.IsGroup || prev.MainPos != info.MainPos {
			break
		}
		start = j
	}
	return start
}

// IndexAt returns the first index of the row covering pos, found by binary
// search over the monotonic table. While the index is reversed pos is a
// stack-from-end position.
func (x *Index) IndexAt(pos float64) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.reversed {
		// the mirrored row covering pos holds the forward position just
		// below total-pos
		pos = math.Nextafter(x.total-pos, math.Inf(-1))
	}
	return x.indexAtLocked(pos)
}

// ForwardIndexAt is IndexAt in forward coordinates, whatever the
// presentation.
func (x *Index) ForwardIndexAt(pos float64) (int, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.indexAtLocked(pos)
}

func (x *Index) indexAtLocked(pos float64) (int, bool) {
	if x.entries.Size() == 0 {
		return 0, false
	}
	minKey, _ := x.entries.Min()
	maxKey, _ := x.entries.Max()
	lo, hi := minKey.(int), maxKey.(int)
	found := -1
	for lo <= hi {
		mid := lo + (hi-lo)/2
		key := mid
		info, ok := x.getLocked(mid)
		if !ok {
			// sparse hole: fall back to the nearest computed key below
			k, v := x.entries.Floor(mid)
			if k == nil || k.(int) < lo {
				lo = mid + 1
				continue
			}
			key = k.(int)
			info = v.(Info)
		}
		if info.MainPos <= pos {
			found = key
			lo = mid + 1
		} else {
			hi = key - 1
		}
	}
	if found < 0 {
		return 0, false
	}
	return x.rowStartLocked(found), true
}

// OptimizeBeforeMeasure moves a layout anchor closer to the requested
// viewport. beginIndex and beginPos describe the current anchor in pass
// coordinates, where the viewport spans [offset, offset+viewport]. On return
// they name the row that covers the viewport start, with its pass position.
// The anchor is left untouched when the table cannot answer.
func (x *Index) OptimizeBeforeMeasure(beginIndex *int, beginPos *float64, offset, viewport float64) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if beginIndex == nil || beginPos == nil {
		return
	}
	anchor, ok := x.getLocked(*beginIndex)
	if !ok {
		return
	}
	// nothing to gain while the anchor row still intersects the viewport
	anchorEnd := *beginPos + anchor.MainSize
	if *beginPos <= offset && anchorEnd > offset {
		return
	}
	target := anchor.MainPos + (offset - *beginPos)
	if target < 0 {
		target = 0
	}
	idx, ok := x.indexAtLocked(target)
	if !ok {
		return
	}
	info, ok := x.getLocked(idx)
	if !ok {
		return
	}
	*beginPos += info.MainPos - anchor.MainPos
	*beginIndex = idx
}
