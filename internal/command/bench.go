package command

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"runtime"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/joeycumines/vlist/internal/config"
	"github.com/joeycumines/vlist/internal/layout"
	"github.com/joeycumines/vlist/internal/memhost"
	"golang.org/x/sync/errgroup"
)

// benchScenario drives one session for a number of passes.
type benchScenario struct {
	name string
	step func(s *memhost.Session, pass int, mainSize float64)
}

var benchScenarios = []benchScenario{
	{name: "scroll-forward", step: func(s *memhost.Session, _ int, mainSize float64) {
		s.List.ScrollBy(mainSize / 3)
	}},
	{name: "scroll-backward", step: func(s *memhost.Session, pass int, mainSize float64) {
		if pass == 0 {
			s.List.ScrollToIndex(layout.LastItem, layout.AlignEnd, 0)
			return
		}
		s.List.ScrollBy(-mainSize / 3)
	}},
	{name: "jump", step: func(s *memhost.Session, pass int, _ float64) {
		if n := s.Host.ChildCount(); n > 0 {
			s.List.ScrollToIndex((pass*7919)%n, layout.AlignCenter, 0)
		}
	}},
	{name: "fling", step: func(s *memhost.Session, pass int, mainSize float64) {
		// Alternating long flings exercise the delta-to-jump conversion.
		d := mainSize * 40
		if pass%2 == 1 {
			d = -d / 2
		}
		s.List.ScrollBy(d)
	}},
}

// BenchCommand times scroll scenarios against the configured data source.
type BenchCommand struct {
	*BaseCommand
	config   *config.Config
	scenario scenarioFlags
	logs     logFlags
	passes   int
	parallel int
	only     string
}

// NewBenchCommand creates a new bench command.
func NewBenchCommand(cfg *config.Config) *BenchCommand {
	return &BenchCommand{
		BaseCommand: NewBaseCommand(
			"bench",
			"Time layout passes for scroll, jump and fling scenarios",
			"bench [options]",
		),
		config: cfg,
	}
}

// SetupFlags configures the flags for the bench command.
func (c *BenchCommand) SetupFlags(fs *flag.FlagSet) {
	c.scenario.setup(fs)
	c.logs.setup(fs)
	fs.IntVar(&c.passes, "passes", 0, "Passes per scenario (0 uses [bench] passes)")
	fs.IntVar(&c.parallel, "parallel", 0, "Scenarios run concurrently (0 uses [bench] parallel, then GOMAXPROCS)")
	fs.StringVar(&c.only, "scenario", "", "Run only this scenario")
}

type benchResult struct {
	name     string
	passes   int
	elapsed  time.Duration
	start    int
	end      int
	jumps    int
	partials int
}

// Execute runs the scenarios.
func (c *BenchCommand) Execute(args []string, stdout, stderr io.Writer) error {
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
	logger := slog.New(lc.buffer())

	lcfg, err := cfg.Layout()
	if err != nil {
		return err
	}
	mainSize, crossSize := c.scenario.viewportSize(cfg, nil)

	passes := c.passes
	if passes <= 0 {
		passes = max(c.optionInt(cfg, "passes"), 1)
	}
	parallel := c.parallel
	if parallel <= 0 {
		parallel = c.optionInt(cfg, "parallel")
	}
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}

	scenarios := benchScenarios
	if c.only != "" {
		i := slices.IndexFunc(scenarios, func(s benchScenario) bool { return s.name == c.only })
		if i < 0 {
			return fmt.Errorf("unknown scenario %q", c.only)
		}
		scenarios = scenarios[i : i+1]
	}

	results := make([]benchResult, len(scenarios))
	g, ctx := errgroup.WithContext(context.Background())
	g.SetLimit(parallel)
	for i, sc := range scenarios {
		g.Go(func() error {
			res, err := runBenchScenario(ctx, sc, cfg.Data, lcfg, mainSize, crossSize, passes, logger)
			if err != nil {
				return fmt.Errorf("scenario %s: %w", sc.name, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "scenario\tpasses\ttotal\tper pass\tjumps\tpartial\twindow")
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%d\t%d\t%s\n",
			r.name, r.passes, r.elapsed.Round(time.Microsecond),
			(r.elapsed / time.Duration(max(r.passes, 1))).Round(time.Nanosecond),
			r.jumps, r.partials, formatRange(r.start, r.end))
	}
	return w.Flush()
}

func runBenchScenario(ctx context.Context, sc benchScenario, dc config.DataConfig, lcfg layout.Config, mainSize, crossSize float64, passes int, logger *slog.Logger) (benchResult, error) {
	s, err := memhost.NewSession(dc, lcfg, memhost.SessionOptions{Logger: logger})
	if err != nil {
		return benchResult{}, err
	}
	defer s.Close()

	res := benchResult{name: sc.name}
	s.Pass(mainSize, crossSize)
	begin := time.Now()
	for i := 0; i < passes; i++ {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		sc.step(s, i, mainSize)
		r := s.Pass(mainSize, crossSize)
		if r.Jumped {
			res.jumps++
		}
		if r.Incomplete {
			res.partials++
		}
		res.passes++
	}
	res.elapsed = time.Since(begin)
	res.start, res.end = s.List.Window()
	logger.Debug("[Bench] scenario done", slog.String("scenario", sc.name), slog.Duration("elapsed", res.elapsed))
	return res, nil
}
