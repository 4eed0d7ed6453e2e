// Package vlist exposes the list-layout engine to scripts as the "vlist"
// CommonJS module.
//
//	const vlist = require('vlist');
//	const list = vlist.newList({count: 1000, sizeExpr: 'index % 3 + 1'}, {lanes: 2, cachedCount: 4});
//	list.pass(24, 80);             // measure + layout a 24x80 viewport
//	list.scrollToIndex(vlist.LAST_ITEM, 'end');
//	list.pass(24, 80);
//	const {start, end} = list.window();
//	list.close();
package vlist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/dop251/goja"
	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/memhost"
	"github.com/joeycumines/vlist/internal/prefetch"
)

// Loop is the event loop the module runs on. Prefetch slices are posted to
// it and invalidation callbacks are delivered through it.
type Loop interface {
	prefetch.IdleQueue
	RunOnLoop(fn func(*goja.Runtime)) bool
}

// Require returns the module loader. loop may be nil, in which case lists
// never prefetch and onInvalidate callbacks never fire.
func Require(ctx context.Context, loop Loop, logger *slog.Logger) func(runtime *goja.Runtime, module *goja.Object) {
	if logger == nil {
		logger = slog.Default()
	}
	return func(runtime *goja.Runtime, module *goja.Object) {
		exportsVal := module.Get("exports")
		var exports *goja.Object
		if exportsVal == nil || goja.IsUndefined(exportsVal) || goja.IsNull(exportsVal) {
			exports = runtime.NewObject()
			_ = module.Set("exports", exports)
		} else {
			exports = exportsVal.ToObject(runtime)
		}

		_ = exports.Set("LAST_ITEM", layout.LastItem)

		// newList(data?: object, options?: object): List
		_ = exports.Set("newList", func(call goja.FunctionCall) goja.Value {
			dc, err := dataFromJS(runtime, call.Argument(0))
			if err != nil {
				panic(runtime.NewTypeError(err.Error()))
			}
			cfg, err := layoutFromJS(runtime, call.Argument(1))
			if err != nil {
				panic(runtime.NewTypeError(err.Error()))
			}
			opts := memhost.SessionOptions{Logger: logger}
			if loop != nil {
				opts.Queue = loop
			}
			s, err := memhost.NewSession(dc, cfg, opts)
			if err != nil {
				panic(runtime.NewGoError(err))
			}
			context.AfterFunc(ctx, s.Close)
			logger.Debug("[Script] list created", slog.Int("count", dc.Count), slog.Int("lanes", cfg.Lanes))
			return newListObject(runtime, s, loop)
		})
	}
}

// toConfigKey maps a camelCase JS key to the config file spelling.
func toConfigKey(k string) string {
	var b strings.Builder
	for _, r := range k {
		if unicode.IsUpper(r) {
			b.WriteByte('-')
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func dataFromJS(runtime *goja.Runtime, v goja.Value) (config.DataConfig, error) {
	dc := config.DefaultData()
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return dc, nil
	}
	obj := v.ToObject(runtime)
	for _, k := range obj.Keys() {
		if err := dc.Set(toConfigKey(k), obj.Get(k).String()); err != nil {
			return dc, fmt.Errorf("data.%s: %w", k, err)
		}
	}
	return dc, nil
}

func layoutFromJS(runtime *goja.Runtime, v goja.Value) (layout.Config, error) {
	c := config.NewConfig()
	if !goja.IsUndefined(v) && !goja.IsNull(v) {
		obj := v.ToObject(runtime)
		schema := config.DefaultSchema()
		for _, k := range obj.Keys() {
			key := "layout." + toConfigKey(k)
			if schema.Lookup("", key) == nil {
				return layout.Config{}, fmt.Errorf("unknown layout option %q", k)
			}
			c.SetGlobalOption(key, obj.Get(k).String())
		}
	}
	return c.Layout()
}

func parseAlign(runtime *goja.Runtime, v goja.Value) layout.ScrollAlign {
	if goja.IsUndefined(v) || goja.IsNull(v) {
		return layout.AlignStart
	}
	a, ok := layout.ParseScrollAlign(v.String())
	if !ok {
		panic(runtime.NewTypeError(fmt.Sprintf("invalid align %q", v.String())))
	}
	return a
}

func slotToJS(s layout.Slot) map[string]any {
	m := map[string]any{
		"index":   s.Index,
		"id":      s.ID,
		"start":   s.StartPos,
		"end":     s.EndPos,
		"cross":   s.CrossPos,
		"lane":    s.Lane,
		"isGroup": s.IsGroup,
		"pressed": s.IsPressed,
	}
	if g := s.Group; g != nil {
		m["group"] = map[string]any{
			"averageItemExtent": g.AverageItemExtent,
			"header":            g.HeaderExtent,
			"footer":            g.FooterExtent,
			"atStart":           g.AtStart,
			"atEnd":             g.AtEnd,
		}
	}
	return m
}

func slotsToJS(slots []layout.Slot) []any {
	out := make([]any, len(slots))
	for i, s := range slots {
		out[i] = slotToJS(s)
	}
	return out
}
