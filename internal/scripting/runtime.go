package scripting

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/vlist/internal/goroutineid"
	"github.com/joeycumines/vlist/internal/prefetch"
)

// ErrLoopNotRunning is returned when work is submitted to a stopped runtime.
var ErrLoopNotRunning = errors.New("event loop not running")

// Runtime owns a goja runtime and the event loop that serializes access to
// it. goja.Runtime is not goroutine-safe, so every interaction goes through
// RunOnLoop or RunOnLoopSync.
//
// Runtime doubles as the idle queue of layout prefetching: tasks posted via
// PostIdleTask run on the loop with a deadline of now+budget, which keeps
// prefetch work interleaved with script callbacks.
//
//	rt, err := NewRuntime(ctx)
//	if err != nil { ... }
//	defer rt.Close()
//
//	err = rt.RunOnLoopSync(func(vm *goja.Runtime) error {
//	    _, err := vm.RunString("console.log('hello')")
//	    return err
//	})
type Runtime struct {
	loop     *eventloop.EventLoop
	registry *require.Registry
	logger   *slog.Logger

	// loopID is the goroutine id of the event loop, captured once at start.
	loopID atomic.Int64

	// idle counts posted idle tasks that have not finished yet.
	idle      atomic.Int64
	idleTasks atomic.Int64

	mu      sync.RWMutex
	timeout time.Duration
	budget  time.Duration
	started bool
	stopped bool

	ctx    context.Context
	cancel context.CancelFunc
}

// DefaultSyncTimeout bounds RunOnLoopSync.
const DefaultSyncTimeout = 5 * time.Second

// DefaultIdleBudget is the deadline given to each idle task.
const DefaultIdleBudget = 4 * time.Millisecond

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRegistry shares an existing require registry.
func WithRegistry(r *require.Registry) RuntimeOption {
	return func(rt *Runtime) {
		if r != nil {
			rt.registry = r
		}
	}
}

// WithLogger sets the runtime's logger.
func WithLogger(l *slog.Logger) RuntimeOption {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithIdleBudget sets the per-task idle deadline. Non-positive values keep
// the default.
func WithIdleBudget(d time.Duration) RuntimeOption {
	return func(rt *Runtime) {
		if d > 0 {
			rt.budget = d
		}
	}
}

// WithTimeout sets the RunOnLoopSync timeout. Zero disables it.
func WithTimeout(d time.Duration) RuntimeOption {
	return func(rt *Runtime) { rt.timeout = d }
}

var _ prefetch.IdleQueue = (*Runtime)(nil)

// NewRuntime starts an event loop. The runtime stops when ctx is canceled or
// Close is called.
func NewRuntime(ctx context.Context, opts ...RuntimeOption) (*Runtime, error) {
	childCtx, cancel := context.WithCancel(context.Background())
	rt := &Runtime{
		logger:  slog.Default(),
		timeout: DefaultSyncTimeout,
		budget:  DefaultIdleBudget,
		ctx:     childCtx,
		cancel:  cancel,
	}
	for _, opt := range opts {
		opt(rt)
	}
	if rt.registry == nil {
		rt.registry = require.NewRegistry()
	}

	rt.loop = eventloop.NewEventLoop(
		eventloop.WithRegistry(rt.registry),
		eventloop.EnableConsole(true),
	)
	rt.loop.Start()
	rt.mu.Lock()
	rt.started = true
	rt.mu.Unlock()

	ready := make(chan struct{})
	if !rt.loop.RunOnLoop(func(*goja.Runtime) {
		rt.loopID.Store(goroutineid.Get())
		close(ready)
	}) {
		cancel()
		return nil, fmt.Errorf("failed to initialize: %w", ErrLoopNotRunning)
	}
	<-ready

	if ctx.Done() != nil {
		context.AfterFunc(ctx, func() { _ = rt.Close() })
	}
	rt.logger.Debug("[Runtime] started", slog.Int64("loop", rt.loopID.Load()))
	return rt, nil
}

// Registry returns the require registry. Modules must be registered before
// a script requires them.
func (rt *Runtime) Registry() *require.Registry { return rt.registry }

// Close stops the event loop. It is safe to call more than once.
func (rt *Runtime) Close() error {
	rt.mu.Lock()
	if rt.stopped {
		rt.mu.Unlock()
		return nil
	}
	rt.stopped = true
	rt.mu.Unlock()

	rt.cancel()
	rt.loop.Stop()
	rt.logger.Debug("[Runtime] stopped", slog.Int64("idleTasks", rt.idleTasks.Load()))
	return nil
}

// Done is closed once the runtime has stopped.
func (rt *Runtime) Done() <-chan struct{} { return rt.ctx.Done() }

// IsRunning reports whether the loop accepts work.
func (rt *Runtime) IsRunning() bool {
	rt.mu.RLock()
	defer rt.mu.RUnlock()
	return rt.started && !rt.stopped
}

// SetTimeout changes the RunOnLoopSync timeout.
func (rt *Runtime) SetTimeout(timeout time.Duration) {
	rt.mu.Lock()
	rt.timeout = timeout
	rt.mu.Unlock()
}

// RunOnLoop schedules fn on the loop. It returns false if the loop is not
// running.
func (rt *Runtime) RunOnLoop(fn func(*goja.Runtime)) bool {
	if !rt.IsRunning() {
		return false
	}
	return rt.loop.RunOnLoop(fn)
}

// RunOnLoopSync runs fn on the loop and waits for it.
func (rt *Runtime) RunOnLoopSync(fn func(*goja.Runtime) error) error {
	rt.mu.RLock()
	if !rt.started || rt.stopped {
		rt.mu.RUnlock()
		return ErrLoopNotRunning
	}
	timeout := rt.timeout
	rt.mu.RUnlock()

	errCh := make(chan error, 1)
	if !rt.loop.RunOnLoop(func(vm *goja.Runtime) { errCh <- fn(vm) }) {
		return ErrLoopNotRunning
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}
	select {
	case err := <-errCh:
		return err
	case <-rt.Done():
		return errors.New("runtime stopped before completion")
	case <-timer:
		return fmt.Errorf("operation timed out after %v", timeout)
	}
}

// TryRunOnLoopSync runs fn directly when called from the loop goroutine,
// and otherwise behaves like RunOnLoopSync. vm is used for the direct case.
func (rt *Runtime) TryRunOnLoopSync(vm *goja.Runtime, fn func(*goja.Runtime) error) error {
	if !rt.IsRunning() {
		return ErrLoopNotRunning
	}
	if id := rt.loopID.Load(); id > 0 && goroutineid.Get() == id {
		return fn(vm)
	}
	return rt.RunOnLoopSync(fn)
}

// RunScript compiles and runs code under name.
func (rt *Runtime) RunScript(name, code string) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		prg, err := goja.Compile(name, code, true)
		if err != nil {
			return fmt.Errorf("failed to compile %s: %w", name, err)
		}
		if _, err := vm.RunProgram(prg); err != nil {
			return fmt.Errorf("failed to run %s: %w", name, err)
		}
		return nil
	})
}

// SetGlobal sets a global variable.
func (rt *Runtime) SetGlobal(name string, value any) error {
	return rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		return vm.Set(name, value)
	})
}

// GetGlobal exports a global variable, or nil if it is unset.
func (rt *Runtime) GetGlobal(name string) (any, error) {
	var result any
	err := rt.RunOnLoopSync(func(vm *goja.Runtime) error {
		v := vm.Get(name)
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return nil
		}
		result = v.Export()
		return nil
	})
	return result, err
}

// PostIdleTask queues task on the loop. The task receives a deadline one
// idle budget after it starts. Tasks posted to a stopped runtime are
// dropped.
func (rt *Runtime) PostIdleTask(task func(deadline time.Time)) {
	rt.mu.RLock()
	budget := rt.budget
	rt.mu.RUnlock()

	rt.idle.Add(1)
	ok := rt.RunOnLoop(func(*goja.Runtime) {
		defer rt.idle.Add(-1)
		rt.idleTasks.Add(1)
		task(time.Now().Add(budget))
	})
	if !ok {
		rt.idle.Add(-1)
		rt.logger.Debug("[Runtime] idle task dropped, loop not running")
	}
}

// IdleTasks returns how many idle tasks have run.
func (rt *Runtime) IdleTasks() int64 { return rt.idleTasks.Load() }

// WaitIdle blocks until no idle task is queued or running. A task that
// re-posts itself keeps the runtime busy.
func (rt *Runtime) WaitIdle(ctx context.Context) error {
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	for rt.idle.Load() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.Done():
			return ErrLoopNotRunning
		case <-ticker.C:
		}
	}
	return nil
}
