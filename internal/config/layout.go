package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joeycumines/vlist/internal/layout"
)

// Set applies one [data] option, as if it appeared in the config file.
func (dc *DataConfig) Set(name, value string) error {
	return parseDataOption(dc, name, value)
}

// Layout resolves the layout.* options (environment, then config file,
// then schema default) into a layout.Config. Every malformed option is
// reported.
func (c *Config) Layout() (layout.Config, error) {
	s := DefaultSchema()
	var (
		cfg  layout.Config
		errs []error
		ok   bool
	)
	key := func(name string) string { return "layout." + name }
	num := func(name string) float64 {
		v, err := s.ResolveFloat(c, key(name))
		errs = append(errs, err)
		return v
	}
	integer := func(name string) int {
		v, err := s.ResolveInt(c, key(name))
		errs = append(errs, err)
		return v
	}
	flag := func(name string) bool {
		v, err := s.ResolveBool(c, key(name))
		errs = append(errs, err)
		return v
	}
	enum := func(name string, parse func(string) bool) {
		if v := s.Resolve(c, key(name)); !parse(v) {
			errs = append(errs, fmt.Errorf("%s: invalid value %q", key(name), v))
		}
	}

	cfg.Lanes = integer("lanes")
	cfg.LaneGutter = num("lane-gutter")
	cfg.Spacing = num("spacing")
	cfg.StartOffset = num("start-offset")
	cfg.EndOffset = num("end-offset")
	cfg.StackFromEnd = flag("stack-from-end")
	cfg.CachedCount = integer("cached-count")
	cfg.ShowCachedItems = flag("show-cached")
	enum("axis", func(v string) bool { cfg.Axis, ok = layout.ParseAxis(v); return ok })
	enum("snap", func(v string) bool { cfg.Snap, ok = layout.ParseSnapAlign(v); return ok })
	enum("sticky", func(v string) bool { cfg.Sticky, ok = layout.ParseStickyStyle(v); return ok })
	if err := errors.Join(errs...); err != nil {
		return layout.Config{}, err
	}
	return cfg, nil
}

// PrefetchBudget resolves prefetch.budget, falling back to 4ms when the
// value is malformed or not positive.
func (c *Config) PrefetchBudget() time.Duration {
	d, err := DefaultSchema().ResolveDuration(c, "prefetch.budget")
	if err != nil || d <= 0 {
		return 4 * time.Millisecond
	}
	return d
}
