package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/dop251/goja_nodejs/require"
	"github.com/joeycumines/vlist/internal/builtin"
	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/scripting"
)

// ScriptCommand runs a JavaScript scenario against the list engine.
type ScriptCommand struct {
	*BaseCommand
	config *config.Config
	logs   logFlags
	eval   string
	settle time.Duration
	dump   bool
}

// NewScriptCommand creates a new script command.
func NewScriptCommand(cfg *config.Config) *ScriptCommand {
	return &ScriptCommand{
		BaseCommand: NewBaseCommand(
			"script",
			"Run a JavaScript scenario with the vlist module",
			"script [options] <file.js> [args...]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the script command.
func (c *ScriptCommand) SetupFlags(fs *flag.FlagSet) {
	c.logs.setup(fs)
	fs.StringVar(&c.eval, "e", "", "Evaluate this code instead of reading a file")
	fs.DurationVar(&c.settle, "settle", 5*time.Second, "Maximum time to wait for prefetch work after the script")
	fs.BoolVar(&c.dump, "dump-logs", false, "Print the captured log entries to stderr on exit")
}

// Execute runs the scenario.
func (c *ScriptCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if c.eval == "" && len(args) == 0 {
		_, _ = fmt.Fprintf(stderr, "Usage: %s\n", c.Usage())
		return fmt.Errorf("no script given")
	}

	lc, err := c.logs.resolve(c.config)
	if err != nil {
		return err
	}
	defer lc.close()
	logs := lc.buffer()

	var scriptArgs []string
	if c.eval == "" {
		scriptArgs = args[1:]
	} else {
		scriptArgs = args
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	budget := time.Duration(0)
	if c.config != nil {
		budget = c.config.PrefetchBudget()
	}
	engine, err := scripting.NewEngine(ctx, stdout, stderr, scripting.EngineOptions{
		Logs:        logs,
		IdleBudget:  budget,
		ModulePaths: c.modulePaths(),
		Args:        scriptArgs,
		Modules: func(e *scripting.Engine, registry *require.Registry) {
			builtin.Register(ctx, registry, e.Runtime(), e.Logger())
		},
	})
	if err != nil {
		return err
	}
	defer engine.Close()
	if c.dump {
		defer dumpLogs(logs, stderr)
	}

	if c.eval != "" {
		err = engine.Run("<eval>", c.eval)
	} else {
		err = engine.RunFile(args[0])
	}
	if err != nil {
		return err
	}
	if err := engine.Settle(c.settle); err != nil {
		return fmt.Errorf("script did not settle: %w", err)
	}
	return nil
}

func dumpLogs(logs *scripting.LogBuffer, w io.Writer) {
	for _, e := range logs.Entries() {
		_, _ = fmt.Fprintf(w, "%s %-5s %s", e.Time.Format("15:04:05.000"), e.Level, e.Message)
		for _, k := range sortedKeys(e.Attrs) {
			_, _ = fmt.Fprintf(w, " %s=%s", k, e.Attrs[k])
		}
		_, _ = fmt.Fprintln(w)
	}
}

// modulePaths resolves script.module-paths against the config file's
// directory.
func (c *ScriptCommand) modulePaths() []string {
	paths := parsePathList(c.option(c.config, "module-paths"))
	for i, p := range paths {
		paths[i] = c.config.ResolvePath(p)
	}
	return paths
}

// parsePathList splits a list of paths separated by commas or the OS path
// list separator. Blank entries are dropped.
func parsePathList(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	parts := strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == filepath.ListSeparator
	})
	paths := parts[:0]
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			paths = append(paths, trimmed)
		}
	}
	if len(paths) == 0 {
		return nil
	}
	return paths
}
