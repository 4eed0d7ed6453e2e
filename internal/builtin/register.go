package builtin

import (
	"context"
	"log/slog"

	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/vlist/internal/builtin/unicodetext"
	"github.com/joeycumines/vlist/internal/builtin/vlist"
)

// Register registers the native modules with registry:
//
//	vlist              list-layout engine over a synthetic data source
//	vlist:unicodetext  display width, truncation and wrapping helpers
//
// loop may be nil, which disables prefetching for lists created by scripts.
func Register(ctx context.Context, registry *require.Registry, loop vlist.Loop, logger *slog.Logger) {
	registry.RegisterNativeModule("vlist", vlist.Require(ctx, loop, logger))
	registry.RegisterNativeModule("vlist:unicodetext", unicodetext.Require(ctx))
}
