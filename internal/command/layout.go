package command

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/memhost"
	"github.com/joeycumines/vlist/internal/scripting"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// LayoutCommand runs layout passes over the configured data source and
// prints the resulting window.
type LayoutCommand struct {
	*BaseCommand
	config   *config.Config
	scenario scenarioFlags
	logs     logFlags
	jump     string
	align    string
	scroll   float64
	format   string
	settle   time.Duration
}

// NewLayoutCommand creates a new layout command.
func NewLayoutCommand(cfg *config.Config) *LayoutCommand {
	return &LayoutCommand{
		BaseCommand: NewBaseCommand(
			"layout",
			"Lay out the configured list once and report the realized window",
			"layout [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the layout command.
func (c *LayoutCommand) SetupFlags(fs *flag.FlagSet) {
	c.scenario.setup(fs)
	c.logs.setup(fs)
	fs.StringVar(&c.jump, "jump", "", "Jump to this index before reporting (\"last\" for the last child)")
	fs.StringVar(&c.align, "align", "start", "Jump alignment: start, center, end, auto")
	fs.Float64Var(&c.scroll, "scroll", 0, "Scroll by this distance before reporting")
	fs.StringVar(&c.format, "format", "", "Report format: text or json (default from [layout] format)")
	fs.DurationVar(&c.settle, "settle", 2*time.Second, "Maximum time to wait for prefetching to finish")
}

// Execute runs the layout passes.
func (c *LayoutCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := c.rejectArgs(args, stderr); err != nil {
		return err
	}
	cfg, err := c.scenario.apply(c.config)
	if err != nil {
		return err
	}
	format := c.format
	if format == "" {
		format = c.option(cfg, "format")
	}
	if format != "text" && format != "json" {
		return fmt.Errorf("invalid format %q: expected text or json", format)
	}
	align, ok := layout.ParseScrollAlign(c.align)
	if !ok {
		return fmt.Errorf("invalid align %q", c.align)
	}
	jump, hasJump, err := parseJump(c.jump)
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
	mainSize, crossSize := c.scenario.viewportSize(cfg, stdout)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	rt, err := scripting.NewRuntime(ctx,
		scripting.WithLogger(logger),
		scripting.WithIdleBudget(cfg.PrefetchBudget()),
	)
	if err != nil {
		return fmt.Errorf("failed to start idle queue: %w", err)
	}
	defer rt.Close()

	s, err := memhost.NewSession(cfg.Data, lcfg, memhost.SessionOptions{Logger: logger, Queue: rt})
	if err != nil {
		return fmt.Errorf("failed to build data source: %w", err)
	}
	defer s.Close()

	s.Pass(mainSize, crossSize)
	if hasJump {
		s.List.ScrollToIndex(jump, align, 0)
	}
	if c.scroll != 0 {
		s.List.ScrollBy(c.scroll)
	}
	s.Pass(mainSize, crossSize)

	settleCtx, stop := context.WithTimeout(ctx, c.settle)
	err = rt.WaitIdle(settleCtx)
	stop()
	if err != nil {
		logger.Warn("[Layout] prefetch did not settle", slog.Any("error", err))
	}
	s.Pass(mainSize, crossSize)

	rep := newLayoutReport(s, mainSize, crossSize, logs)
	if format == "json" {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	}
	rep.writeText(stdout)
	return nil
}

// parseJump accepts an index, "last", or the empty string for no jump.
func parseJump(s string) (int, bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return 0, false, nil
	case "last":
		return layout.LastItem, true, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false, fmt.Errorf("invalid jump index %q: %w", s, err)
	}
	return n, true, nil
}

type slotReport struct {
	Index int     `json:"index"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Cross float64 `json:"cross"`
	Lane  int     `json:"lane"`
	Group bool    `json:"group,omitempty"`
	Label string  `json:"label"`
}

type layoutReport struct {
	Children   int          `json:"children"`
	Viewport   float64      `json:"viewport"`
	Cross      float64      `json:"cross"`
	Start      int          `json:"start"`
	End        int          `json:"end"`
	CacheStart int          `json:"cacheStart"`
	CacheEnd   int          `json:"cacheEnd"`
	Estimate   float64      `json:"estimate"`
	Offset     float64      `json:"offset"`
	Content    float64      `json:"contentMainSize"`
	MidIndex   int          `json:"midIndex"`
	State      string       `json:"state"`
	Prefetched int          `json:"prefetched"`
	Slots      []slotReport `json:"slots"`
	Warnings   []string     `json:"warnings,omitempty"`
}

func newLayoutReport(s *memhost.Session, mainSize, crossSize float64, logs *scripting.LogBuffer) layoutReport {
	rep := layoutReport{
		Children: s.Host.ChildCount(),
		Viewport: mainSize,
		Cross:    crossSize,
		MidIndex: s.List.MidIndex(),
		State:    s.List.State().String(),
		Content:  s.List.ContentMainSize(),
		Slots:    []slotReport{},
	}
	rep.Start, rep.End = s.List.Window()
	rep.CacheStart, rep.CacheEnd = s.List.CacheWindow()
	rep.Estimate, rep.Offset = s.List.EstimatedHeightAndOffset()
	if s.Scheduler != nil {
		rep.Prefetched = s.Scheduler.Stats().Built
	}
	for _, slot := range s.List.Slots() {
		rep.Slots = append(rep.Slots, slotReport{
			Index: slot.Index,
			Start: slot.StartPos,
			End:   slot.EndPos,
			Cross: slot.CrossPos,
			Lane:  slot.Lane,
			Group: slot.IsGroup,
			Label: s.Host.Label(slot.Index),
		})
	}
	for _, e := range logs.Entries() {
		if e.Level >= slog.LevelWarn {
			rep.Warnings = append(rep.Warnings, e.Message)
		}
	}
	return rep
}

func (r layoutReport) writeText(out io.Writer) {
	p := message.NewPrinter(language.English)
	title := cases.Title(language.English)

	_, _ = fmt.Fprintln(out, title.String("layout report"))
	w := tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = p.Fprintf(w, "  children\t%d\n", r.Children)
	_, _ = fmt.Fprintf(w, "  viewport\t%s x %s\n", formatSize(r.Viewport), formatSize(r.Cross))
	_, _ = fmt.Fprintf(w, "  window\t%s\n", formatRange(r.Start, r.End))
	_, _ = fmt.Fprintf(w, "  cache\t%s\n", formatRange(r.CacheStart, r.CacheEnd))
	_, _ = fmt.Fprintf(w, "  estimate\t%s (offset %s)\n", formatSize(r.Estimate), formatSize(r.Offset))
	_, _ = fmt.Fprintf(w, "  mid index\t%d\n", r.MidIndex)
	_, _ = fmt.Fprintf(w, "  state\t%s\n", r.State)
	_, _ = p.Fprintf(w, "  prefetched\t%d\n", r.Prefetched)
	_ = w.Flush()

	_, _ = fmt.Fprintln(out, "")
	_, _ = fmt.Fprintln(out, title.String("slots"))
	w = tabwriter.NewWriter(out, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "  index\tstart\tend\tlane\tlabel")
	for _, s := range r.Slots {
		_, _ = fmt.Fprintf(w, "  %d\t%s\t%s\t%d\t%s\n", s.Index, formatSize(s.Start), formatSize(s.End), s.Lane, s.Label)
	}
	_ = w.Flush()

	if len(r.Warnings) > 0 {
		_, _ = fmt.Fprintln(out, "")
		_, _ = p.Fprintf(out, "%s (%d)\n", title.String("warnings"), len(r.Warnings))
		for _, msg := range r.Warnings {
			_, _ = fmt.Fprintf(out, "  - %s\n", msg)
		}
	}
}

func formatRange(start, end int) string {
	if start < 0 || end < start {
		return "none"
	}
	return fmt.Sprintf("[%d, %d]", start, end)
}

func formatSize(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
