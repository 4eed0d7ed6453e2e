package layout

// window is a contiguous, index-ordered run of slots.
type window struct {
	base  int
	slots []Slot
}

func (w *window) empty() bool { return len(w.slots) == 0 }

func (w *window) len() int { return len(w.slots) }

// first returns the lowest index, or -1 when empty.
func (w *window) first() int {
	if w.empty() {
		return -1
	}
	return w.base
}

// last returns the highest index, or -1 when empty.
func (w *window) last() int {
	if w.empty() {
		return -1
	}
	return w.base + len(w.slots) - 1
}

func (w *window) firstSlot() *Slot { return &w.slots[0] }

func (w *window) lastSlot() *Slot { return &w.slots[len(w.slots)-1] }

func (w *window) get(index int) (*Slot, bool) {
	i := index - w.base
	if i < 0 || i >= len(w.slots) {
		return nil, false
	}
	return &w.slots[i], true
}

func (w *window) has(index int) bool {
	_, ok := w.get(index)
	return ok
}

// set stores s, growing the window at either end. A slot that is not
// adjacent to the current run replaces it.
func (w *window) set(s Slot) {
	switch {
	case w.empty():
		w.base = s.Index
		w.slots = append(w.slots[:0], s)
	case s.Index == w.last()+1:
		w.slots = append(w.slots, s)
	case s.Index == w.base-1:
		w.slots = append(w.slots, Slot{})
		copy(w.slots[1:], w.slots)
		w.slots[0] = s
		w.base = s.Index
	default:
		if p, ok := w.get(s.Index); ok {
			*p = s
			return
		}
		w.base = s.Index
		w.slots = append(w.slots[:0], s)
	}
}

func (w *window) popFront() Slot {
	s := w.slots[0]
	w.slots = w.slots[1:]
	w.base++
	return s
}

func (w *window) popBack() Slot {
	s := w.slots[len(w.slots)-1]
	w.slots = w.slots[:len(w.slots)-1]
	return s
}

func (w *window) clear() {
	w.slots = w.slots[:0]
	w.base = 0
}

// truncate drops every slot at or beyond index and returns them.
func (w *window) truncate(index int) []Slot {
	var out []Slot
	for !w.empty() && w.last() >= index {
		out = append(out, w.popBack())
	}
	return out
}

func (w *window) shiftPositions(delta float64) {
	for i := range w.slots {
		w.slots[i].StartPos += delta
		w.slots[i].EndPos += delta
	}
}

func (w *window) shiftIndices(by int) {
	w.base += by
	for i := range w.slots {
		w.slots[i].Index += by
	}
}

func (w *window) clone() window {
	return window{base: w.base, slots: append([]Slot(nil), w.slots...)}
}

func (w *window) indices() map[int]uint64 {
	out := make(map[int]uint64, len(w.slots))
	for _, s := range w.slots {
		out[s.Index] = s.ID
	}
	return out
}

// startPos returns the leading edge of the first slot.
func (w *window) startPos() float64 {
	if w.empty() {
		return 0
	}
	return w.slots[0].StartPos
}

// endPos returns the furthest trailing edge among the slots of the last
// row, which may be shorter than its lane neighbours.
func (w *window) endPos() float64 {
	if w.empty() {
		return 0
	}
	last := w.lastSlot()
	end := last.EndPos
	for i := len(w.slots) - 2; i >= 0 && w.slots[i].StartPos == last.StartPos && !w.slots[i].IsGroup && !last.IsGroup; i-- {
		end = max(end, w.slots[i].EndPos)
	}
	return end
}
