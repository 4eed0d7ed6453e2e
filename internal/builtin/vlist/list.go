package vlist

import (
	"time"

	"github.com/dop251/goja"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/memhost"
)

func newListObject(runtime *goja.Runtime, s *memhost.Session, loop Loop) *goja.Object {
	obj := runtime.NewObject()
	l := s.List
	num := func(call goja.FunctionCall, i int) float64 { return call.Argument(i).ToFloat() }
	integer := func(call goja.FunctionCall, i int) int { return int(call.Argument(i).ToInteger()) }
	must := func(err error) {
		if err != nil {
			panic(runtime.NewGoError(err))
		}
	}
	passResult := func(r layout.PassResult) goja.Value {
		return runtime.ToValue(map[string]any{
			"start":           r.Start,
			"end":             r.End,
			"contentMainSize": r.ContentMainSize,
			"jumped":          r.Jumped,
			"incomplete":      r.Incomplete,
		})
	}

	// pass(mainSize, crossSize): measure then layout
	_ = obj.Set("pass", func(call goja.FunctionCall) goja.Value {
		return passResult(s.Pass(num(call, 0), num(call, 1)))
	})
	// measure(mainSize, crossSize, budgetMs?)
	_ = obj.Set("measure", func(call goja.FunctionCall) goja.Value {
		c := layout.Constraint{MainSize: num(call, 0), CrossSize: num(call, 1)}
		if ms := call.Argument(2); !goja.IsUndefined(ms) {
			c.Deadline = time.Now().Add(time.Duration(ms.ToFloat() * float64(time.Millisecond)))
		}
		return passResult(l.Measure(c))
	})
	_ = obj.Set("layout", func() { l.Layout() })

	_ = obj.Set("scrollBy", func(call goja.FunctionCall) goja.Value {
		l.ScrollBy(num(call, 0))
		return goja.Undefined()
	})
	_ = obj.Set("scrollTo", func(call goja.FunctionCall) goja.Value {
		l.ScrollTo(num(call, 0))
		return goja.Undefined()
	})
	// scrollToIndex(index, align?, extraOffset?)
	_ = obj.Set("scrollToIndex", func(call goja.FunctionCall) goja.Value {
		l.ScrollToIndex(integer(call, 0), parseAlign(runtime, call.Argument(1)), num(call, 2))
		return goja.Undefined()
	})
	_ = obj.Set("scrollToItemInGroup", func(call goja.FunctionCall) goja.Value {
		l.ScrollToItemInGroup(integer(call, 0), integer(call, 1), parseAlign(runtime, call.Argument(2)))
		return goja.Undefined()
	})
	_ = obj.Set("setTarget", func(call goja.FunctionCall) goja.Value {
		l.SetTarget(integer(call, 0), parseAlign(runtime, call.Argument(1)))
		return goja.Undefined()
	})

	_ = obj.Set("window", func() map[string]any {
		start, end := l.Window()
		return map[string]any{"start": start, "end": end}
	})
	_ = obj.Set("cacheWindow", func() map[string]any {
		start, end := l.CacheWindow()
		return map[string]any{"start": start, "end": end}
	})
	_ = obj.Set("slots", func() []any { return slotsToJS(l.Slots()) })
	_ = obj.Set("cached", func() []any { return slotsToJS(l.CachedSlots()) })
	_ = obj.Set("recycled", func() []int { return l.Recycled() })
	_ = obj.Set("estimate", func() map[string]any {
		h, o := l.EstimatedHeightAndOffset()
		return map[string]any{"height": h, "offset": o}
	})
	_ = obj.Set("offsetOf", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(l.OffsetOf(integer(call, 0)))
	})
	_ = obj.Set("indexAtOffset", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(l.IndexAtOffset(num(call, 0)))
	})
	_ = obj.Set("midIndex", func() int { return l.MidIndex() })
	_ = obj.Set("totalOffset", func() float64 { return l.TotalOffset() })
	_ = obj.Set("contentMainSize", func() float64 { return l.ContentMainSize() })
	_ = obj.Set("state", func() string { return l.State().String() })

	// predictSnap(offset, velocity): {index, offset} | null
	_ = obj.Set("predictSnap", func(call goja.FunctionCall) goja.Value {
		t, ok := l.PredictSnap(num(call, 0), num(call, 1))
		if !ok {
			return goja.Null()
		}
		return runtime.ToValue(map[string]any{"index": t.Index, "offset": t.Offset})
	})
	_ = obj.Set("snapTarget", func() goja.Value {
		t, ok := l.SnapTarget()
		if !ok {
			return goja.Null()
		}
		return runtime.ToValue(map[string]any{"index": t.Index, "offset": t.Offset})
	})

	_ = obj.Set("insert", func(call goja.FunctionCall) goja.Value {
		must(s.Host.Insert(integer(call, 0), integer(call, 1)))
		return goja.Undefined()
	})
	_ = obj.Set("remove", func(call goja.FunctionCall) goja.Value {
		must(s.Host.Delete(integer(call, 0), integer(call, 1)))
		return goja.Undefined()
	})
	_ = obj.Set("press", func(call goja.FunctionCall) goja.Value {
		s.Host.SetPressed(integer(call, 0), call.Argument(1).ToBoolean())
		return goja.Undefined()
	})
	_ = obj.Set("label", func(call goja.FunctionCall) goja.Value {
		return runtime.ToValue(s.Host.Label(integer(call, 0)))
	})
	_ = obj.Set("count", func() int { return s.Host.ChildCount() })

	_ = obj.Set("stats", func() map[string]any {
		hs := s.Host.Stats()
		m := map[string]any{
			"live":          hs.Live,
			"pooled":        hs.Pooled,
			"created":       hs.Created,
			"reused":        hs.Reused,
			"recycled":      hs.Recycled,
			"invalidations": s.Invalidations(),
		}
		if s.Scheduler != nil {
			ps := s.Scheduler.Stats()
			m["prefetch"] = map[string]any{
				"submitted": ps.Submitted,
				"slices":    ps.Slices,
				"built":     ps.Built,
				"yields":    ps.Yields,
				"pending":   len(s.Scheduler.Pending()),
			}
		}
		return m
	})

	// onInvalidate(fn): fn runs on the loop after prefetch produced sizes.
	_ = obj.Set("onInvalidate", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok || loop == nil {
			s.OnInvalidate(nil)
			return goja.Undefined()
		}
		s.OnInvalidate(func() {
			loop.RunOnLoop(func(*goja.Runtime) { _, _ = fn(goja.Undefined()) })
		})
		return goja.Undefined()
	})
	_ = obj.Set("close", func() { s.Close() })
	return obj
}
