package layout

import (
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/joeycumines/vlist/internal/childsize"
	"github.com/joeycumines/vlist/internal/posmap"
	"github.com/joeycumines/vlist/internal/prefetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestList(t *testing.T, h Host, cfg Config, opts ...Option) *List {
	t.Helper()
	logger, _ := captureLogger()
	l := New(h, cfg, append([]Option{WithLogger(logger)}, opts...)...)
	t.Cleanup(l.Close)
	return l
}

func TestList_InitialFill(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	r := pass(l, 300)

	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 5, r.End)
	assert.False(t, r.Jumped)
	assert.Equal(t, 300.0, r.ContentMainSize)
	assert.Equal(t, StateSettled, l.State())

	s, ok := l.Slot(5)
	require.True(t, ok)
	assert.Equal(t, 250.0, s.StartPos)
	assert.Equal(t, 300.0, s.EndPos)

	height, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 5000.0, height)
	assert.Equal(t, 0.0, offset)
}

func TestList_ScrollBy(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollBy(10)
	pass(l, 300)

	start, end := l.Window()
	assert.Equal(t, 0, start)
	assert.Equal(t, 6, end)
	s, _ := l.Slot(0)
	assert.Equal(t, -10.0, s.StartPos)
	assert.Equal(t, 40.0, s.EndPos)
	_, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 10.0, offset)
	assert.Equal(t, 10.0, l.TotalOffset())
}

func TestList_ScrollByRecyclesRows(t *testing.T) {
	h := newFakeHost(100, 50)
	l := newTestList(t, h, Config{})
	pass(l, 300)

	l.ScrollBy(120)
	pass(l, 300)

	start, end := l.Window()
	assert.Equal(t, 2, start)
	assert.Equal(t, 8, end)
	assert.Equal(t, []int{0, 1}, l.Recycled())
	assert.Equal(t, []int{0, 1}, h.recycled)
}

func TestList_ScrollTo(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollTo(100)
	pass(l, 300)

	start, _ := l.Window()
	assert.Equal(t, 2, start)
	s, _ := l.Slot(2)
	assert.Equal(t, 0.0, s.StartPos)
	_, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 100.0, offset)
}

func TestList_ScrollToIndex(t *testing.T) {
	for _, tc := range []struct {
		name       string
		index      int
		align      ScrollAlign
		start, end int
		slotIndex  int
		slotStart  float64
	}{
		{name: "start", index: 40, align: AlignStart, start: 40, end: 45, slotIndex: 40, slotStart: 0},
		{name: "center", index: 50, align: AlignCenter, start: 47, end: 53, slotIndex: 50, slotStart: 125},
		{name: "end", index: 40, align: AlignEnd, start: 35, end: 40, slotIndex: 40, slotStart: 250},
		{name: "last item", index: LastItem, align: AlignEnd, start: 94, end: 99, slotIndex: 99, slotStart: 250},
		{name: "start near end is clamped", index: 98, align: AlignStart, start: 94, end: 99, slotIndex: 94, slotStart: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			l := newTestList(t, newFakeHost(100, 50), Config{})
			pass(l, 300)

			l.ScrollToIndex(tc.index, tc.align, 0)
			r := pass(l, 300)

			assert.True(t, r.Jumped)
			assert.Equal(t, tc.start, r.Start)
			assert.Equal(t, tc.end, r.End)
			s, ok := l.Slot(tc.slotIndex)
			require.True(t, ok)
			assert.Equal(t, tc.slotStart, s.StartPos)
		})
	}
}

func TestList_CenterJumpEstimate(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollToIndex(50, AlignCenter, 0)
	pass(l, 300)

	height, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 5000.0, height)
	assert.Equal(t, 2375.0, offset)
	assert.Equal(t, 2375.0, l.TotalOffset())
	assert.Equal(t, 50, l.MidIndex())
}

func TestList_JumpAlreadySatisfied(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)
	l.ScrollToIndex(50, AlignCenter, 0)
	pass(l, 300)

	l.ScrollToIndex(50, AlignCenter, 0)
	r := pass(l, 300)

	assert.False(t, r.Jumped)
	assert.Equal(t, 47, r.Start)
	s, _ := l.Slot(50)
	assert.Equal(t, 125.0, s.StartPos)
}

func TestList_JumpExtraOffset(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollToIndex(40, AlignStart, 10)
	pass(l, 300)

	s, ok := l.Slot(40)
	require.True(t, ok)
	assert.Equal(t, -10.0, s.StartPos)
}

func TestList_JumpAuto(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollToIndex(3, AlignAuto, 0)
	r := pass(l, 300)
	assert.False(t, r.Jumped, "visible item needs no jump")
	assert.Equal(t, 0, r.Start)

	l.ScrollToIndex(20, AlignAuto, 0)
	r = pass(l, 300)
	assert.True(t, r.Jumped)
	assert.Equal(t, 15, r.Start)
	assert.Equal(t, 20, r.End)
	s, _ := l.Slot(20)
	assert.Equal(t, 300.0, s.EndPos)

	l.ScrollToIndex(2, AlignAuto, 0)
	r = pass(l, 300)
	assert.True(t, r.Jumped)
	assert.Equal(t, 2, r.Start)
	s, _ = l.Slot(2)
	assert.Equal(t, 0.0, s.StartPos)
}

func TestList_JumpOutOfRangeIsClamped(t *testing.T) {
	logger, buf := captureLogger()
	l := New(newFakeHost(10, 50), Config{}, WithLogger(logger))
	pass(l, 300)

	l.ScrollToIndex(500, AlignStart, 0)
	r := pass(l, 300)

	assert.True(t, r.Jumped)
	assert.Equal(t, 9, r.End)
	assert.Contains(t, buf.String(), "clamping request index")
}

func TestList_LargeDeltaBecomesJump(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)

	l.ScrollBy(1010)
	r := pass(l, 300)

	assert.True(t, r.Jumped)
	assert.Equal(t, 20, r.Start)
	s, _ := l.Slot(20)
	assert.Equal(t, -10.0, s.StartPos)
	_, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 1010.0, offset)
}

func TestList_StackFromEnd(t *testing.T) {
	t.Run("unbounded", func(t *testing.T) {
		l := newTestList(t, newFakeHost(5, 10), Config{StackFromEnd: true})
		pass(l, 0)

		first, _ := l.Slot(0)
		last, _ := l.Slot(4)
		assert.Equal(t, 40.0, first.StartPos)
		assert.Equal(t, 50.0, first.EndPos)
		assert.Equal(t, 0.0, last.StartPos)
		assert.Equal(t, 10.0, last.EndPos)
	})
	t.Run("position index follows the orientation", func(t *testing.T) {
		index := posmap.New()
		l := newTestList(t, newFakeHost(5, 10), Config{StackFromEnd: true},
			WithDeclaredSizes(childsize.New(10, nil)), WithPositionIndex(index))
		pass(l, 0)

		require.True(t, index.Reversed())
		first, _ := l.Slot(0)
		info := index.GetPositionInfo(0)
		assert.Equal(t, first.StartPos, info.MainPos)
		assert.Equal(t, first.EndPos, info.End())
		assert.Equal(t, posmap.Info{MainPos: 0, MainSize: 10}, index.ForwardPositionInfo(0))
		idx, ok := index.IndexAt(45)
		assert.True(t, ok)
		assert.Equal(t, 0, idx)
		assert.Equal(t, 40.0, l.OffsetOf(4), "offsets stay forward")

		other := newTestList(t, newFakeHost(5, 10), Config{},
			WithDeclaredSizes(childsize.New(10, nil)), WithPositionIndex(index))
		pass(other, 0)
		assert.False(t, index.Reversed())
	})
	t.Run("bounded", func(t *testing.T) {
		l := newTestList(t, newFakeHost(5, 10), Config{StackFromEnd: true})
		pass(l, 100)

		first, _ := l.Slot(0)
		assert.Equal(t, 90.0, first.StartPos)
		assert.Equal(t, 100.0, first.EndPos)
	})
}

func TestList_Unbounded(t *testing.T) {
	l := newTestList(t, newFakeHost(10, 10), Config{Spacing: 1})
	r := pass(l, math.Inf(1))

	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 9, r.End)
	assert.Equal(t, 109.0, r.ContentMainSize)
	assert.Equal(t, 109.0, l.ContentMainSize())
	assert.Empty(t, l.Recycled())
}

func TestList_Empty(t *testing.T) {
	l := newTestList(t, newFakeHost(0, 10), Config{})
	r := pass(l, 300)

	assert.Equal(t, -1, r.Start)
	assert.Equal(t, -1, r.End)
	assert.Equal(t, 300.0, r.ContentMainSize)
	height, offset := l.EstimatedHeightAndOffset()
	assert.Zero(t, height)
	assert.Zero(t, offset)
	assert.Equal(t, -1, l.MidIndex())
}

func TestList_Lanes(t *testing.T) {
	h := newFakeHost(10, 50)
	l := newTestList(t, h, Config{Lanes: 2})
	pass(l, 100)

	start, end := l.Window()
	assert.Equal(t, 0, start)
	assert.Equal(t, 3, end)
	s0, _ := l.Slot(0)
	s1, _ := l.Slot(1)
	assert.Equal(t, 0, s0.Lane)
	assert.Equal(t, 1, s1.Lane)
	assert.Equal(t, 0.0, s0.CrossPos)
	assert.Equal(t, 150.0, s1.CrossPos)
	assert.Equal(t, s0.StartPos, s1.StartPos)

	l.ScrollBy(60)
	pass(l, 100)

	start, end = l.Window()
	assert.Equal(t, 2, start, "whole rows are recycled")
	assert.Equal(t, 7, end)
	assert.Equal(t, []int{0, 1}, l.Recycled())
}

func TestList_LaneGutter(t *testing.T) {
	l := newTestList(t, newFakeHost(10, 50), Config{Lanes: 3, LaneGutter: 15})
	pass(l, 100)

	s2, _ := l.Slot(2)
	assert.Equal(t, 2, s2.Lane)
	assert.Equal(t, 2*(90.0+15), s2.CrossPos)
}

func TestList_MissingChild(t *testing.T) {
	logger, buf := captureLogger()
	h := newFakeHost(5, 50)
	h.missing = map[int]bool{2: true}
	l := New(h, Config{}, WithLogger(logger))
	pass(l, 300)

	s2, ok := l.Slot(2)
	require.True(t, ok)
	assert.Zero(t, s2.Extent())
	s3, _ := l.Slot(3)
	assert.Equal(t, 100.0, s3.StartPos)
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "child not produced")
}

func TestList_HugeCountIsClamped(t *testing.T) {
	logger, buf := captureLogger()
	h := &fakeHost{count: MaxSafeCount + 10, fallback: 50}
	l := New(h, Config{}, WithLogger(logger))
	pass(l, 300)

	height, _ := l.EstimatedHeightAndOffset()
	assert.Equal(t, float64(MaxSafeCount)*50, height)
	assert.Contains(t, buf.String(), "clamping child count")

	l.ScrollToIndex(LastItem, AlignEnd, 0)
	r := pass(l, 300)
	assert.Equal(t, MaxSafeCount-1, r.End)
}

func TestList_Pressed(t *testing.T) {
	h := newFakeHost(5, 50)
	h.pressed = map[int]bool{1: true}
	l := newTestList(t, h, Config{})
	pass(l, 300)

	s1, _ := l.Slot(1)
	s0, _ := l.Slot(0)
	assert.True(t, s1.IsPressed)
	assert.False(t, s0.IsPressed)
}

func TestList_ContentOffsets(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{StartOffset: 20, EndOffset: 10})
	pass(l, 300)

	s0, _ := l.Slot(0)
	assert.Equal(t, 20.0, s0.StartPos)
	height, _ := l.EstimatedHeightAndOffset()
	assert.Equal(t, 5030.0, height)

	l.ScrollToIndex(LastItem, AlignEnd, 0)
	pass(l, 300)
	last, _ := l.Slot(99)
	assert.Equal(t, 290.0, last.EndPos)
}

func TestList_ContentOffsetsZeroed(t *testing.T) {
	for _, cfg := range []Config{
		{StartOffset: 200, EndOffset: 150},
		{StartOffset: 20, EndOffset: 10, Snap: SnapCenter},
	} {
		l := newTestList(t, newFakeHost(100, 50), cfg)
		pass(l, 300)
		s0, _ := l.Slot(0)
		assert.Equal(t, 0.0, s0.StartPos)
	}
}

func TestList_NotifyDataChanged(t *testing.T) {
	t.Run("insert before window", func(t *testing.T) {
		h := newFakeHost(100, 50)
		l := newTestList(t, h, Config{})
		pass(l, 300)

		h.sizes = append([]float64{50, 50, 50}, h.sizes...)
		l.NotifyDataChanged(0, 3)
		pass(l, 300)

		start, end := l.Window()
		assert.Equal(t, 3, start)
		assert.Equal(t, 8, end)
		assert.Equal(t, 150.0, l.TotalOffset())
	})
	t.Run("delete inside window", func(t *testing.T) {
		h := newFakeHost(100, 50)
		l := newTestList(t, h, Config{})
		pass(l, 300)

		h.sizes = h.sizes[1:]
		l.NotifyDataChanged(2, -1)
		pass(l, 300)

		start, end := l.Window()
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	t.Run("delete head of window", func(t *testing.T) {
		h := newFakeHost(100, 50)
		l := newTestList(t, h, Config{})
		pass(l, 300)
		l.ScrollToIndex(10, AlignStart, 0)
		pass(l, 300)

		h.sizes = h.sizes[5:]
		l.NotifyDataChanged(8, -5)
		r := pass(l, 300)

		assert.True(t, r.Jumped)
		assert.Equal(t, 8, r.Start)
		s, _ := l.Slot(8)
		assert.Equal(t, 0.0, s.StartPos)
	})
}

func TestList_DeclaredSizes(t *testing.T) {
	store := childsize.New(20, nil)
	index := posmap.New()
	l := newTestList(t, newFakeHost(1000, 99), Config{}, WithDeclaredSizes(store), WithPositionIndex(index))
	r := pass(l, 300)
	assert.Equal(t, 14, r.End, "declared sizes win over measured ones")

	l.ScrollBy(5010)
	r = pass(l, 300)

	assert.False(t, r.Jumped)
	assert.Equal(t, 250, r.Start)
	s, _ := l.Slot(250)
	assert.Equal(t, -10.0, s.StartPos)
	height, offset := l.EstimatedHeightAndOffset()
	assert.Equal(t, 20000.0, height)
	assert.Equal(t, 5010.0, offset)
	assert.Equal(t, 1000, index.Count())
}

func TestList_SetChildrenDeclaredSizesNil(t *testing.T) {
	store := childsize.New(20, nil)
	l := newTestList(t, newFakeHost(100, 50), Config{}, WithDeclaredSizes(store), WithPositionIndex(posmap.New()))
	pass(l, 300)
	s, _ := l.Slot(0)
	assert.Equal(t, 20.0, s.Extent())

	l.SetChildrenDeclaredSizes(nil)
	pass(l, 300)
	s, _ = l.Slot(0)
	assert.Equal(t, 50.0, s.Extent())
}

func TestList_MeasuredPositionsRecorded(t *testing.T) {
	index := posmap.New()
	l := newTestList(t, newFakeHost(100, 50), Config{}, WithPositionIndex(index))
	pass(l, 300)

	info := index.GetPositionInfo(3)
	require.True(t, info.Known())
	assert.Equal(t, 150.0, info.MainPos)
	assert.Equal(t, 50.0, info.MainSize)
}

func TestList_Target(t *testing.T) {
	h := newFakeHost(100, 50)
	l := newTestList(t, h, Config{})
	pass(l, 300)

	l.SetTarget(30, AlignStart)
	r := pass(l, 300)
	assert.Equal(t, 0, r.Start)
	assert.Equal(t, 30, r.End, "layout extends to the target without recycling")
	assert.Empty(t, l.Recycled())
	assert.Positive(t, h.requests)

	r = pass(l, 300)
	assert.True(t, r.Jumped)
	assert.Equal(t, 30, r.Start)
	s, _ := l.Slot(30)
	assert.Equal(t, 0.0, s.StartPos)
	assert.Len(t, l.Recycled(), 30)
}

func TestList_Deadline(t *testing.T) {
	clock := &stepClock{now: time.Unix(1000, 0), step: time.Millisecond}
	l := newTestList(t, newFakeHost(100, 50), Config{}, WithClock(clock))

	r := l.Measure(Constraint{MainSize: 300, CrossSize: 300, Deadline: clock.now.Add(3 * time.Millisecond)})
	l.Layout()

	assert.True(t, r.Incomplete)
	assert.Less(t, r.End, 5)
	assert.GreaterOrEqual(t, r.End, 0)

	r = pass(l, 300)
	assert.False(t, r.Incomplete)
	assert.Equal(t, 5, r.End)
}

func TestList_SetConfigLanes(t *testing.T) {
	l := newTestList(t, newFakeHost(100, 50), Config{})
	pass(l, 300)
	l.ScrollToIndex(10, AlignStart, 0)
	pass(l, 300)

	l.SetConfig(Config{Lanes: 2})
	assert.Equal(t, 2, l.Config().Lanes)
	pass(l, 300)

	start, end := l.Window()
	assert.Equal(t, 10, start)
	assert.Equal(t, 21, end)
	s, _ := l.Slot(11)
	assert.Equal(t, 1, s.Lane)
}

func TestList_RandomScrollKeepsLayoutConsistent(t *testing.T) {
	const (
		viewport = 300.0
		spacing  = 2.0
	)
	for _, tt := range []struct {
		name     string
		lanes    int
		declared bool
	}{
		{name: "measured"},
		{name: "declared sizes", declared: true},
		{name: "lanes", lanes: 2},
		{name: "lanes with declared sizes", lanes: 3, declared: true},
	} {
		t.Run(tt.name, func(t *testing.T) {
			rng := rand.New(rand.NewPCG(1, 2))
			h := &fakeHost{sizes: make([]float64, 500)}
			for i := range h.sizes {
				h.sizes[i] = float64(10 + rng.IntN(50))
			}
			var opts []Option
			if tt.declared {
				opts = append(opts,
					WithDeclaredSizes(childsize.New(20, append([]float64(nil), h.sizes...))),
					WithPositionIndex(posmap.New()))
			}
			l := newTestList(t, h, Config{Spacing: spacing, Lanes: tt.lanes}, opts...)
			pass(l, viewport)

			for step := range 200 {
				l.ScrollBy(float64(rng.IntN(800) - 400))
				pass(l, viewport)

				rows := slotRows(l.Slots())
				require.NotEmpty(t, rows, "step %d", step)
				next := rows[0][0].Index
				for k, row := range rows {
					for _, s := range row {
						require.Equal(t, next, s.Index, "step %d", step)
						next++
					}
					if k > 0 {
						require.InDelta(t, spacing, row[0].StartPos-rowEnd(rows[k-1]), 1e-6, "step %d", step)
					}
				}
				first, last := rows[0], rows[len(rows)-1]
				require.LessOrEqual(t, first[0].StartPos, 1e-6, "step %d: gap at viewport start", step)
				require.GreaterOrEqual(t, rowEnd(last), viewport-1e-6, "step %d: gap at viewport end", step)
				if len(rows) > 1 {
					require.Greater(t, rowEnd(first), 0.0, "step %d: stale head row", step)
					require.Less(t, last[0].StartPos, viewport, "step %d: stale tail row", step)
				}
			}
		})
	}
}

// slotRows splits index-ordered slots into rows sharing a start position.
func slotRows(slots []Slot) [][]Slot {
	var rows [][]Slot
	for _, s := range slots {
		if n := len(rows); n > 0 && rows[n-1][0].StartPos == s.StartPos {
			rows[n-1] = append(rows[n-1], s)
			continue
		}
		rows = append(rows, []Slot{s})
	}
	return rows
}

func rowEnd(row []Slot) float64 {
	end := row[0].EndPos
	for _, s := range row[1:] {
		end = max(end, s.EndPos)
	}
	return end
}

func TestList_WindowRepair(t *testing.T) {
	for _, tt := range []struct {
		name        string
		run         func(t *testing.T) (*fakeHost, *List, PassResult)
		start, end  int
		maxRealized int
	}{
		{
			name: "large backward scroll over declared sizes",
			run: func(t *testing.T) (*fakeHost, *List, PassResult) {
				h := newFakeHost(100_000, 99)
				l := newTestList(t, h, Config{},
					WithDeclaredSizes(childsize.New(20, nil)),
					WithPositionIndex(posmap.New()))
				pass(l, 300)
				l.ScrollToIndex(90_000, AlignStart, 0)
				pass(l, 300)
				h.realized = nil
				l.ScrollBy(-1_000_000)
				return h, l, pass(l, 300)
			},
			start: 40_000, end: 40_014, maxRealized: 16,
		},
		{
			name: "large backward scroll after overscrolling the end",
			run: func(t *testing.T) (*fakeHost, *List, PassResult) {
				h := newFakeHost(100_000, 99)
				l := newTestList(t, h, Config{},
					WithDeclaredSizes(childsize.New(20, nil)),
					WithPositionIndex(posmap.New()))
				pass(l, 300)
				l.ScrollToIndex(90_000, AlignStart, 0)
				pass(l, 300)
				l.ScrollBy(200_000)
				pass(l, 300)
				h.realized = nil
				l.ScrollBy(-1_000_000)
				return h, l, pass(l, 300)
			},
			// the end clamp leaves 99985 at 0; 1e6 back lands on 49985
			start: 49_985, end: 49_999, maxRealized: 16,
		},
		{
			name: "count shrinks below the window without notify",
			run: func(t *testing.T) (*fakeHost, *List, PassResult) {
				h := newFakeHost(100, 50)
				l := newTestList(t, h, Config{})
				pass(l, 300)
				l.ScrollToIndex(90, AlignStart, 0)
				pass(l, 300)
				h.sizes = h.sizes[:50]
				return h, l, pass(l, 300)
			},
			start: 44, end: 49, maxRealized: 100,
		},
		{
			name: "count shrinks into the window without notify",
			run: func(t *testing.T) (*fakeHost, *List, PassResult) {
				h := newFakeHost(100, 50)
				l := newTestList(t, h, Config{})
				pass(l, 300)
				l.ScrollToIndex(90, AlignStart, 0)
				pass(l, 300)
				h.sizes = h.sizes[:93]
				return h, l, pass(l, 300)
			},
			start: 87, end: 92, maxRealized: 100,
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			h, l, r := tt.run(t)
			assert.Equal(t, tt.start, r.Start)
			assert.Equal(t, tt.end, r.End)
			assert.LessOrEqual(t, h.children(), tt.maxRealized)

			slots := l.Slots()
			require.NotEmpty(t, slots)
			assert.Equal(t, 0.0, slots[0].StartPos)
			assert.Equal(t, 300.0, slots[len(slots)-1].EndPos)
		})
	}
}

type fakeQueue struct{ tasks []func(time.Time) }

func (q *fakeQueue) PostIdleTask(task func(deadline time.Time)) { q.tasks = append(q.tasks, task) }

func (q *fakeQueue) drain() {
	for len(q.tasks) > 0 {
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		task(time.Now().Add(time.Hour))
	}
}

func TestList_CacheWindowAndPrefetch(t *testing.T) {
	h := newFakeHost(100, 50)
	q := &fakeQueue{}
	sched := prefetch.New(q, nil)
	l := newTestList(t, h, Config{CachedCount: 2}, WithScheduler(sched))
	pass(l, 300)

	assert.Equal(t, []prefetch.Item{{Index: 6}, {Index: 7}}, sched.Pending())
	start, end := l.CacheWindow()
	assert.Equal(t, -1, start)
	assert.Equal(t, -1, end)

	q.drain()
	assert.Positive(t, h.requests, "progress asks for another pass")
	assert.Empty(t, sched.Pending())

	pass(l, 300)
	cached := l.CachedSlots()
	require.Len(t, cached, 2)
	assert.Equal(t, 6, cached[0].Index)
	assert.Equal(t, 300.0, cached[0].StartPos)
	assert.Equal(t, 350.0, cached[1].StartPos)
	start, end = l.CacheWindow()
	assert.Equal(t, 0, start)
	assert.Equal(t, 7, end)
}

func TestList_ShowCachedItemsAreNotRecycled(t *testing.T) {
	h := newFakeHost(100, 50)
	l := newTestList(t, h, Config{CachedCount: 2, ShowCachedItems: true})
	pass(l, 300)
	l.ScrollBy(60)
	pass(l, 300)

	// item 0 left the window but is held in the before-cache
	start, _ := l.Window()
	assert.Equal(t, 1, start)
	assert.NotContains(t, l.Recycled(), 0)
	cached := l.CachedSlots()
	require.NotEmpty(t, cached)
	assert.Equal(t, 0, cached[0].Index)
	assert.Equal(t, -60.0, cached[0].StartPos)
}

func TestList_JumpSupersedesPendingPrefetch(t *testing.T) {
	h := newFakeHost(100, 50)
	q := &fakeQueue{}
	sched := prefetch.New(q, nil)
	l := newTestList(t, h, Config{CachedCount: 2}, WithScheduler(sched))
	pass(l, 300)
	require.Equal(t, []prefetch.Item{{Index: 6}, {Index: 7}}, sched.Pending())

	l.ScrollToIndex(50, AlignStart, 0)
	pass(l, 300)
	for _, it := range sched.Pending() {
		assert.GreaterOrEqual(t, it.Index, 48, "items of the old window were dropped")
	}

	q.drain()
	assert.Zero(t, h.realized[6])
	assert.Zero(t, h.realized[7])
	assert.Positive(t, h.realized[56])
	assert.Positive(t, h.realized[57])
}

func TestList_PrefetchOutOfRange(t *testing.T) {
	l := newTestList(t, newFakeHost(10, 50), Config{})
	pass(l, 300)
	assert.False(t, l.Prefetch(prefetch.Item{Index: 10}))
	assert.False(t, l.Prefetch(prefetch.Item{Index: -1}))
	assert.True(t, l.Prefetch(prefetch.Item{Index: 8}))
}

func TestList_Strategy(t *testing.T) {
	cfg := Config{Strategy: Strategy{
		AlignRule: func(ScrollAlign, float64, float64, float64) float64 { return 100 },
		RecycleRule: func(Slot, float64, float64) bool {
			return false
		},
	}}
	l := newTestList(t, newFakeHost(100, 50), cfg)
	pass(l, 300)

	l.ScrollToIndex(40, AlignStart, 0)
	pass(l, 300)
	s, _ := l.Slot(40)
	assert.Equal(t, 100.0, s.StartPos)

	l.ScrollBy(200)
	pass(l, 300)
	assert.Empty(t, l.Recycled())
}

func TestList_OffsetOfIndex(t *testing.T) {
	t.Run("measured", func(t *testing.T) {
		l := newTestList(t, newFakeHost(100, 50), Config{})
		pass(l, 300)
		l.ScrollBy(120)
		pass(l, 300)

		_, offset := l.EstimatedHeightAndOffset()
		assert.Equal(t, 120.0, offset)
		assert.Equal(t, 0.0, l.OffsetOf(0))
		assert.Equal(t, 100.0, l.OffsetOf(2))
		assert.Equal(t, 2500.0, l.OffsetOf(50))
		assert.Equal(t, 2, l.IndexAtOffset(130))
		assert.Equal(t, 50, l.IndexAtOffset(2510))
	})
	t.Run("declared sizes", func(t *testing.T) {
		l := newTestList(t, newFakeHost(1000, 99), Config{},
			WithDeclaredSizes(childsize.New(20, nil)),
			WithPositionIndex(posmap.New()))
		pass(l, 300)
		l.ScrollToIndex(500, AlignStart, 0)
		pass(l, 300)

		_, offset := l.EstimatedHeightAndOffset()
		assert.Equal(t, 10_000.0, offset)
		assert.Equal(t, offset, l.OffsetOf(500))
		assert.Equal(t, 0.0, l.OffsetOf(-5))
		assert.Equal(t, 19_980.0, l.OffsetOf(5000))
		assert.Equal(t, 500, l.IndexAtOffset(10_010))
	})
	t.Run("empty", func(t *testing.T) {
		l := newTestList(t, newFakeHost(0, 50), Config{})
		pass(l, 300)
		assert.Zero(t, l.OffsetOf(3))
		assert.Equal(t, -1, l.IndexAtOffset(0))
	})
}
