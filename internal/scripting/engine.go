package scripting

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/require"
)

// Engine runs scenario scripts. It owns a Runtime, captures script and
// engine logs in a LogBuffer, and exposes them to scripts as the `log`
// global.
type Engine struct {
	rt     *Runtime
	logs   *LogBuffer
	logger *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

// EngineOptions configures NewEngine.
type EngineOptions struct {
	// Logs receives every record. When nil a buffer of 1000 entries at
	// debug level is created.
	Logs *LogBuffer
	// IdleBudget is the per-slice prefetch deadline.
	IdleBudget time.Duration
	// ModulePaths are extra folders searched by require.
	ModulePaths []string
	// Args is exposed to scripts as the `args` global.
	Args []string
	// Modules are registered on the require registry before any script
	// runs. The loader receives the engine so it can reach the runtime.
	Modules func(e *Engine, registry *require.Registry)
}

// NewEngine starts a runtime and installs the script globals.
func NewEngine(ctx context.Context, stdout, stderr io.Writer, opts EngineOptions) (*Engine, error) {
	logs := opts.Logs
	if logs == nil {
		logs = NewLogBuffer(1000, slog.LevelDebug, nil)
	}
	e := &Engine{
		logs:   logs,
		logger: slog.New(logs),
		stdout: stdout,
		stderr: stderr,
	}

	var regOpts []require.Option
	if len(opts.ModulePaths) > 0 {
		regOpts = append(regOpts, require.WithGlobalFolders(opts.ModulePaths...))
	}
	registry := require.NewRegistry(regOpts...)

	rt, err := NewRuntime(ctx,
		WithRegistry(registry),
		WithLogger(e.logger),
		WithIdleBudget(opts.IdleBudget),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start runtime: %w", err)
	}
	e.rt = rt
	if opts.Modules != nil {
		opts.Modules(e, registry)
	}

	if err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return e.installGlobals(vm, opts.Args)
	}); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("failed to install globals: %w", err)
	}
	return e, nil
}

// Runtime returns the engine's runtime.
func (e *Engine) Runtime() *Runtime { return e.rt }

// Logs returns the engine's log buffer.
func (e *Engine) Logs() *LogBuffer { return e.logs }

// Logger returns a logger writing to the engine's log buffer.
func (e *Engine) Logger() *slog.Logger { return e.logger }

// Close stops the runtime.
func (e *Engine) Close() error { return e.rt.Close() }

// RunFile runs the script at path.
func (e *Engine) RunFile(path string) error {
	code, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read script: %w", err)
	}
	return e.Run(filepath.Base(path), string(code))
}

// Run runs code under name.
func (e *Engine) Run(name, code string) error {
	e.logger.Debug("[Script] run", slog.String("name", name), slog.Int("bytes", len(code)))
	if err := e.rt.RunScript(name, code); err != nil {
		e.logger.Error("[Script] failed", slog.String("name", name), slog.Any("error", err))
		return err
	}
	return nil
}

// Settle waits for queued prefetch slices to finish, or for timeout.
func (e *Engine) Settle(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return e.rt.WaitIdle(ctx)
}

func (e *Engine) installGlobals(vm *goja.Runtime, args []string) error {
	if args == nil {
		args = []string{}
	}
	if err := vm.Set("args", args); err != nil {
		return err
	}

	output := vm.NewObject()
	_ = output.Set("print", func(call goja.FunctionCall) goja.Value {
		for i, a := range call.Arguments {
			if i > 0 {
				_, _ = io.WriteString(e.stdout, " ")
			}
			_, _ = io.WriteString(e.stdout, a.String())
		}
		_, _ = io.WriteString(e.stdout, "\n")
		return goja.Undefined()
	})
	_ = output.Set("printf", func(format string, a ...any) {
		_, _ = fmt.Fprintf(e.stdout, format, a...)
	})
	if err := vm.Set("output", output); err != nil {
		return err
	}
	return vm.Set("log", e.logAPI(vm))
}

// logAPI builds the `log` global:
//
//	log.info(msg, attrs?)  // also debug, warn, error
//	log.printf(format, ...args)
//	log.entries(n?)        // newest n, or all
//	log.search(query)
//	log.clear()
func (e *Engine) logAPI(vm *goja.Runtime) *goja.Object {
	obj := vm.NewObject()
	level := func(l slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			var attrs []slog.Attr
			if a := call.Argument(1); !goja.IsUndefined(a) && !goja.IsNull(a) {
				o := a.ToObject(vm)
				for _, k := range o.Keys() {
					attrs = append(attrs, slog.Any(k, o.Get(k).Export()))
				}
			}
			e.logger.LogAttrs(context.Background(), l, call.Argument(0).String(), attrs...)
			return goja.Undefined()
		}
	}
	_ = obj.Set("debug", level(slog.LevelDebug))
	_ = obj.Set("info", level(slog.LevelInfo))
	_ = obj.Set("warn", level(slog.LevelWarn))
	_ = obj.Set("error", level(slog.LevelError))
	_ = obj.Set("printf", func(format string, a ...any) {
		e.logger.Info(fmt.Sprintf(format, a...))
	})
	_ = obj.Set("entries", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(entriesToJS(e.logs.Recent(int(call.Argument(0).ToInteger()))))
	})
	_ = obj.Set("search", func(q string) []any { return entriesToJS(e.logs.Search(q)) })
	_ = obj.Set("clear", func() { e.logs.Clear() })
	return obj
}

func entriesToJS(entries []LogEntry) []any {
	out := make([]any, len(entries))
	for i, en := range entries {
		attrs := make(map[string]any, len(en.Attrs))
		for k, v := range en.Attrs {
			attrs[k] = v
		}
		out[i] = map[string]any{
			"time":    en.Time.Format(time.RFC3339Nano),
			"level":   en.Level.String(),
			"message": en.Message,
			"attrs":   attrs,
		}
	}
	return out
}
