package layout

import (
	"log/slog"

	"github.com/joeycumines/vlist/internal/prefetch"
)

// layoutCache places up to CachedCount items on either side of the realized
// window using sizes that are already known, without measuring. The first
// unknown size ends that side; it and the rest of the quota are returned as
// prefetch work. Positions are in viewport coordinates.
func (l *List) layoutCache() []prefetch.Item {
	l.cacheBefore.clear()
	l.cacheAfter.clear()
	n := l.cfg.CachedCount
	if n <= 0 || l.items.empty() {
		return nil
	}
	show := l.cfg.ShowCachedItems
	var work []prefetch.Item

	// groups at the window edges cache their own items first
	if s := l.items.lastSlot(); s.IsGroup && s.Group != nil && !s.Group.AtEnd {
		work = append(work, prefetch.Item{Index: s.Index, ForwardCache: n, Show: show})
	}
	if s := l.items.firstSlot(); s.IsGroup && s.Group != nil && !s.Group.AtStart {
		work = append(work, prefetch.Item{Index: s.Index, BackwardCache: n, Show: show})
	}

	spacing := l.spacing()
	pos := l.items.endPos() + spacing
	for i, placed := l.items.last()+1, 0; i < l.count && placed < n; {
		sizes, ok := l.knownRow(i, n-placed)
		if !ok {
			work = append(work, l.prefetchRange(i, min(l.count, i+n-placed), show)...)
			break
		}
		h := 0.0
		for k, size := range sizes {
			l.cacheAfter.set(l.cacheSlot(i+k, k, pos, size))
			h = max(h, size)
		}
		pos += h + spacing
		placed += len(sizes)
		i += len(sizes)
	}

	pos = l.items.startPos() - spacing
	for i, placed := l.items.first()-1, 0; i >= 0 && placed < n; {
		rs := max(l.rowStartOf(i), i-(n-placed)+1)
		sizes, ok := l.knownRow(rs, i-rs+1)
		if !ok || len(sizes) != i-rs+1 {
			work = append(work, l.prefetchRange(max(0, i-(n-placed)+1), i+1, show)...)
			break
		}
		h := 0.0
		for _, size := range sizes {
			h = max(h, size)
		}
		for k := len(sizes) - 1; k >= 0; k-- {
			l.cacheBefore.set(l.cacheSlot(rs+k, k, pos-h, sizes[k]))
		}
		pos -= h + spacing
		placed += len(sizes)
		i = rs - 1
	}

	if show {
		for _, w := range []*window{&l.cacheBefore, &l.cacheAfter} {
			for _, s := range w.slots {
				l.host.Child(s.Index, true, true)
				l.touched[s.Index] = struct{}{}
			}
		}
	}
	if len(work) > 0 {
		l.logger.Debug("[Layout] cache needs prefetch",
			slog.Int("items", len(work)),
			slog.Int("placedBefore", l.cacheBefore.len()),
			slog.Int("placedAfter", l.cacheAfter.len()))
	}
	return work
}

// knownRow returns the known extents of the row starting at i, limited to
// quota items. ok is false when any of them is unknown.
func (l *List) knownRow(i, quota int) ([]float64, bool) {
	if l.isGroupIndex(i) {
		size, ok := l.knownExtent(i)
		if !ok {
			return nil, false
		}
		return []float64{size}, true
	}
	sizes := make([]float64, 0, l.lanes)
	for j := i; j < l.count && j < i+l.lanes && len(sizes) < quota; j++ {
		if j > i && l.isGroupIndex(j) {
			break
		}
		size, ok := l.knownExtent(j)
		if !ok {
			return nil, false
		}
		sizes = append(sizes, size)
	}
	return sizes, len(sizes) > 0
}

func (l *List) knownExtent(i int) (float64, bool) {
	if l.isGroupIndex(i) {
		if g := l.groupEngineAt(i); g != nil && g.FullyMeasured() {
			return g.MainSize(), true
		}
		if l.index != nil {
			if info := l.index.ForwardPositionInfo(i); info.Known() && l.sizes != nil {
				return info.MainSize, true
			}
		}
		return 0, false
	}
	if l.sizes != nil {
		return l.sizes.Get(i), true
	}
	if v, ok := l.sizeCache[i]; ok {
		return v, true
	}
	return 0, false
}

func (l *List) cacheSlot(index, lane int, start, size float64) Slot {
	s := Slot{
		Index:    index,
		StartPos: start,
		EndPos:   start + size,
		CrossPos: l.crossPos(lane),
		Lane:     lane,
		IsGroup:  l.isGroupIndex(index),
	}
	if s.IsGroup {
		s.Lane, s.CrossPos = 0, 0
		s.ID = l.groupAt[index]
	}
	return s
}

func (l *List) prefetchRange(from, to int, show bool) []prefetch.Item {
	out := make([]prefetch.Item, 0, max(to-from, 0))
	for i := from; i < to; i++ {
		it := prefetch.Item{Index: i, Show: show}
		if l.isGroupIndex(i) {
			it.ForwardCache = l.cfg.CachedCount
		}
		out = append(out, it)
	}
	return out
}

// Prefetch realizes and measures one cache item. It implements
// prefetch.Builder and runs on the host's idle queue.
func (l *List) Prefetch(item prefetch.Item) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if item.Index < 0 || item.Index >= l.count {
		return false
	}
	child, ok := l.host.Child(item.Index, item.Show, true)
	if !ok || child.Kind() == KindNone {
		l.logger.Debug("[Prefetch] child not produced", slog.Int("index", item.Index))
		return false
	}
	c := l.itemConstraint()
	if child.Kind() == KindItem {
		size := sanitizeExtent(child.Item.MainSize(c))
		l.sizeCache[item.Index] = size
		return true
	}

	l.groupAt[item.Index] = child.ID
	g := l.groupEngine(child.ID)
	if l.items.has(item.Index) && len(g.ItemPosition()) > 0 {
		return g.LayoutCache(item.ForwardCache, item.BackwardCache, item.Show, c) > 0
	}
	p := l.groupParams(groupForward, 0)
	p.viewStart, p.viewEnd = 0, l.viewExtent()
	res := g.measure(child.Group, p)
	return res.end > res.start
}

func (l *List) requestLayout() {
	if inv, ok := l.host.(Invalidator); ok {
		inv.RequestLayout()
	}
}
