package unicodetext

import (
	"context"
	"fmt"
	"strings"

	"github.com/dop251/goja"
	"github.com/joeycumines/vlist/internal/memhost"
	"github.com/rivo/uniseg"
)

// Require returns the "vlist:unicodetext" module. It gives scripts the
// same width rules the text items are measured with.
//
//	const text = require('vlist:unicodetext');
//	text.width("日本");               // 4
//	text.truncate("Long string", 5);  // "Lo..."
//	text.wrap("hello world", 5);      // ["hello", " worl", "d"]
//	text.lines("hello world", 5);     // 3
func Require(baseCtx context.Context) func(runtime *goja.Runtime, module *goja.Object) {
	return func(runtime *goja.Runtime, module *goja.Object) {
		exportsVal := module.Get("exports")
		var exports *goja.Object
		if exportsVal == nil || goja.IsUndefined(exportsVal) || goja.IsNull(exportsVal) {
			exports = runtime.NewObject()
			_ = module.Set("exports", exports)
		} else {
			exports = exportsVal.ToObject(runtime)
		}

		_ = exports.Set("width", func(call goja.FunctionCall) goja.Value {
			return runtime.ToValue(uniseg.StringWidth(call.Argument(0).String()))
		})

		// truncate(s, maxWidth, tail = "...")
		// The result may exceed maxWidth when tail alone is wider.
		_ = exports.Set("truncate", func(call goja.FunctionCall) goja.Value {
			if len(call.Arguments) < 2 {
				panic(runtime.NewGoError(fmt.Errorf("truncate requires at least 2 arguments (string, maxWidth)")))
			}
			tail := "..."
			if len(call.Arguments) > 2 {
				tail = call.Argument(2).String()
			}
			return runtime.ToValue(Truncate(call.Argument(0).String(), int(call.Argument(1).ToInteger()), tail))
		})

		_ = exports.Set("wrap", func(call goja.FunctionCall) goja.Value {
			return runtime.ToValue(memhost.Wrap(call.Argument(0).String(), int(call.Argument(1).ToInteger())))
		})
		_ = exports.Set("lines", func(call goja.FunctionCall) goja.Value {
			return runtime.ToValue(memhost.WrappedLines(call.Argument(0).String(), int(call.Argument(1).ToInteger())))
		})
	}
}

// Truncate cuts s at a grapheme boundary so that it fits maxWidth cells
// with tail appended. s is returned unchanged when it already fits.
func Truncate(s string, maxWidth int, tail string) string {
	if uniseg.StringWidth(s) <= maxWidth {
		return s
	}
	tailWidth := uniseg.StringWidth(tail)
	if tailWidth > maxWidth {
		return tail
	}
	target := maxWidth - tailWidth

	var sb strings.Builder
	cur, state := 0, -1
	var cluster string
	var w int
	for len(s) > 0 {
		cluster, s, w, state = uniseg.FirstGraphemeClusterInString(s, state)
		if cur+w > target {
			break
		}
		cur += w
		sb.WriteString(cluster)
	}
	sb.WriteString(tail)
	return sb.String()
}
