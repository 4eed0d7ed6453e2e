package command

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/memhost"
	"github.com/joeycumines/vlist/internal/viewer"
)

// ViewCommand opens the interactive list viewer.
type ViewCommand struct {
	*BaseCommand
	config    *config.Config
	scenario  scenarioFlags
	logs      logFlags
	inline    bool
	showLogs  bool
	input     io.Reader
	programFn func(m tea.Model, opts ...tea.ProgramOption) *tea.Program
}

// NewViewCommand creates a new view command.
func NewViewCommand(cfg *config.Config) *ViewCommand {
	return &ViewCommand{
		BaseCommand: NewBaseCommand(
			"view",
			"Scroll through the configured list interactively",
			"view [options]",
		),
		config:    cfg,
		input:     os.Stdin,
		programFn: tea.NewProgram,
	}
}

// SetupFlags configures the flags for the view command.
func (c *ViewCommand) SetupFlags(fs *flag.FlagSet) {
	c.scenario.setup(fs)
	c.logs.setup(fs)
	fs.BoolVar(&c.inline, "inline", false, "Render inline instead of on the alternate screen")
	fs.BoolVar(&c.showLogs, "logs", false, "Show the log pane on start")
}

// Execute runs the viewer until it is quit.
func (c *ViewCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := c.rejectArgs(args, stderr); err != nil {
		return err
	}
	cfg, err := c.scenario.apply(c.config)
	if err != nil {
		return err
	}
	lc, err := c.logs.resolve(cfg)
	if err != nil {
		return err
	}
	defer lc.close()
	logs := lc.buffer()
	logger := slog.New(logs)

	lcfg, err := cfg.Layout()
	if err != nil {
		return err
	}

	queue := viewer.NewIdleQueue(cfg.PrefetchBudget())
	defer queue.Close()
	s, err := memhost.NewSession(cfg.Data, lcfg, memhost.SessionOptions{Logger: logger, Queue: queue})
	if err != nil {
		return fmt.Errorf("failed to build data source: %w", err)
	}
	defer s.Close()

	m := viewer.New(s, viewer.Options{
		Queue:         queue,
		Logs:          logs,
		Logger:        logger,
		PageStep:      c.optionFloat(cfg, "page-step"),
		ShowScrollbar: c.optionBool(cfg, "show-scrollbar"),
		ShowLogs:      c.showLogs,
	})

	opts := []tea.ProgramOption{tea.WithInput(c.input), tea.WithOutput(stdout)}
	if !c.inline {
		opts = append(opts, tea.WithAltScreen())
	}
	if _, err := c.programFn(m, opts...).Run(); err != nil {
		return fmt.Errorf("viewer: %w", err)
	}
	logger.Debug("[Viewer] closed", slog.Int64("invalidations", s.Invalidations()))
	return nil
}
