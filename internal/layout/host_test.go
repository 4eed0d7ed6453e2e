package layout

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/joeycumines/vlist/internal/childsize"
)

type fakeItem struct {
	size    float64
	pressed bool
}

func (f fakeItem) MainSize(Constraint) float64 { return f.size }

func (f fakeItem) Pressed() bool { return f.pressed }

type fakeGroup struct {
	sizes    []float64
	header   float64
	footer   float64
	lanes    int
	spacing  float64
	declared *childsize.Store
	recycled []int
}

func (g *fakeGroup) ItemCount() int { return len(g.sizes) }

func (g *fakeGroup) Item(index int, _, _ bool) Item {
	if index < 0 || index >= len(g.sizes) {
		return nil
	}
	return fakeItem{size: g.sizes[index]}
}

func (g *fakeGroup) Header() Item {
	if g.header <= 0 {
		return nil
	}
	return fakeItem{size: g.header}
}

func (g *fakeGroup) Footer() Item {
	if g.footer <= 0 {
		return nil
	}
	return fakeItem{size: g.footer}
}

func (g *fakeGroup) Lanes() int                      { return g.lanes }
func (g *fakeGroup) Spacing() float64                { return g.spacing }
func (g *fakeGroup) DeclaredSizes() *childsize.Store { return g.declared }
func (g *fakeGroup) RecycleItem(index int)           { g.recycled = append(g.recycled, index) }

type fakeHost struct {
	sizes    []float64
	count    int // overrides len(sizes) when non-zero
	fallback float64
	groups   map[int]*fakeGroup
	missing  map[int]bool
	recycled []int
	pressed  map[int]bool
	requests int
	realized map[int]int
}

func newFakeHost(n int, size float64) *fakeHost {
	h := &fakeHost{sizes: make([]float64, n)}
	for i := range h.sizes {
		h.sizes[i] = size
	}
	return h
}

func (h *fakeHost) ChildCount() int {
	if h.count != 0 {
		return h.count
	}
	return len(h.sizes)
}

func (h *fakeHost) Child(index int, _, _ bool) (Child, bool) {
	if h.realized == nil {
		h.realized = make(map[int]int)
	}
	h.realized[index]++
	if h.missing[index] {
		return Child{}, false
	}
	if g, ok := h.groups[index]; ok {
		return Child{ID: uint64(index) + 1_000_000, Group: g}, true
	}
	size := h.fallback
	if index < len(h.sizes) {
		size = h.sizes[index]
	}
	return Child{ID: uint64(index) + 1, Item: fakeItem{size: size, pressed: h.pressed[index]}}, true
}

func (h *fakeHost) Recycle(index int) { h.recycled = append(h.recycled, index) }

func (h *fakeHost) RequestLayout() { h.requests++ }

// classifyingHost also answers group membership without realizing.
type classifyingHost struct{ *fakeHost }

func (h classifyingHost) IsGroup(index int) bool {
	_, ok := h.groups[index]
	return ok
}

type stepClock struct {
	now  time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	t := c.now
	c.now = c.now.Add(c.step)
	return t
}

func captureLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})), &buf
}

// pass runs one Measure and Layout.
func pass(l *List, mainSize float64) PassResult {
	r := l.Measure(Constraint{MainSize: mainSize, CrossSize: 300})
	l.Layout()
	return r
}

// children returns how many Child calls the host has answered.
func (h *fakeHost) children() int {
	n := 0
	for _, c := range h.realized {
		n += c
	}
	return n
}
