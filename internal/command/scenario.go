package command

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"strconv"
	"strings"

	"github.com/joeycumines/vlist/internal/config"
	"golang.org/x/term"
)

// overrides collects repeated -set key=value flags. Keys prefixed with
// "data." target the [data] section; everything else is a global option.
type overrides []string

func (o *overrides) String() string { return strings.Join(*o, ",") }

func (o *overrides) Set(v string) error {
	if _, _, ok := strings.Cut(v, "="); !ok {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	*o = append(*o, v)
	return nil
}

// scenarioFlags are shared by the commands that build a list from config.
type scenarioFlags struct {
	set      overrides
	viewport float64
	cross    float64
}

func (f *scenarioFlags) setup(fs *flag.FlagSet) {
	fs.Var(&f.set, "set", "Override an option, e.g. -set layout.lanes=3 or -set data.count=500 (repeatable)")
	fs.Float64Var(&f.viewport, "viewport", 0, "Viewport main size (0 uses the terminal or [layout] viewport)")
	fs.Float64Var(&f.cross, "cross", 0, "Cross size (0 uses the terminal or [layout] cross)")
}

// apply returns a copy of cfg with the overrides applied. cfg itself is
// never modified.
func (f *scenarioFlags) apply(cfg *config.Config) (*config.Config, error) {
	out := config.NewConfig()
	if cfg != nil {
		out.Global = maps.Clone(cfg.Global)
		out.Data = cfg.Data
		out.Path = cfg.Path
		for name, opts := range cfg.Commands {
			out.Commands[name] = maps.Clone(opts)
		}
	}
	schema := config.DefaultSchema()
	for _, kv := range f.set {
		key, value, _ := strings.Cut(kv, "=")
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)
		if name, ok := strings.CutPrefix(key, "data."); ok {
			if err := out.Data.Set(name, value); err != nil {
				return nil, fmt.Errorf("invalid override %q: %w", kv, err)
			}
			continue
		}
		if !schema.IsKnown("", key) {
			return nil, fmt.Errorf("invalid override %q: unknown option", kv)
		}
		out.SetGlobalOption(key, value)
	}
	return out, nil
}

// viewportSize resolves the main and cross sizes: flag, then the size of
// the terminal behind out, then the [layout] section, then its defaults.
func (f *scenarioFlags) viewportSize(cfg *config.Config, out io.Writer) (mainSize, crossSize float64) {
	mainSize, crossSize = f.viewport, f.cross
	if mainSize > 0 && crossSize > 0 {
		return mainSize, crossSize
	}
	if w, h, ok := terminalSize(out); ok {
		if mainSize <= 0 {
			mainSize = float64(h)
		}
		if crossSize <= 0 {
			crossSize = float64(w)
		}
		return mainSize, crossSize
	}
	if mainSize <= 0 {
		mainSize = sectionFloat(cfg, "layout", "viewport")
	}
	if crossSize <= 0 {
		crossSize = sectionFloat(cfg, "layout", "cross")
	}
	return mainSize, crossSize
}

func terminalSize(out io.Writer) (width, height int, ok bool) {
	f, isFile := out.(*os.File)
	if !isFile || !term.IsTerminal(int(f.Fd())) {
		return 0, 0, false
	}
	width, height, err := term.GetSize(int(f.Fd()))
	if err != nil || width <= 0 || height <= 0 {
		return 0, 0, false
	}
	return width, height, true
}

// sectionString returns a [section] option, falling back to the schema
// default.
func sectionString(cfg *config.Config, section, key string) string {
	if cfg != nil {
		if v, ok := cfg.GetCommandOption(section, key); ok {
			return v
		}
	}
	if opt := config.DefaultSchema().Lookup(section, key); opt != nil {
		return opt.Default
	}
	return ""
}

func sectionFloat(cfg *config.Config, section, key string) float64 {
	v, err := strconv.ParseFloat(sectionString(cfg, section, key), 64)
	if err != nil {
		return 0
	}
	return v
}

func sectionInt(cfg *config.Config, section, key string) int {
	v, err := strconv.Atoi(sectionString(cfg, section, key))
	if err != nil {
		return 0
	}
	return v
}

func sectionBool(cfg *config.Config, section, key string) bool {
	v, err := strconv.ParseBool(sectionString(cfg, section, key))
	return err == nil && v
}
