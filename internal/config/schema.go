package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// OptionType represents the expected type of a configuration option value.
type OptionType string

const (
	// TypeString is a plain string value (the default for all config values).
	TypeString OptionType = "string"
	// TypeBool is a boolean value (true/false/yes/no/1/0/on/off).
	TypeBool OptionType = "bool"
	// TypeInt is an integer value.
	TypeInt OptionType = "int"
	// TypeFloat is a decimal value.
	TypeFloat OptionType = "float"
	// TypeDuration is a Go time.Duration value (e.g. "30s", "5m", "1h").
	TypeDuration OptionType = "duration"
	// TypePathList is a colon-separated (or semicolon on Windows) list of paths.
	TypePathList OptionType = "path-list"
)

// ConfigOption declares a single configuration option with its type, default,
// documentation, and environment variable override.
type ConfigOption struct {
	// Key is the option name as it appears in the config file (kebab-case).
	Key string
	// Type is the expected value type for validation.
	Type OptionType
	// Default is the default value as a string, or "" for no default.
	Default string
	// Description is a human-readable description of the option.
	Description string
	// Section is "" for global options, or a command/section name.
	Section string
	// EnvVar is the environment variable that overrides this option, or "".
	EnvVar string
}

// ConfigSchema declares the expected configuration options for the application.
// It is used for validation, documentation, typed getters, and env var mapping.
type ConfigSchema struct {
	options []*ConfigOption
	// byKey indexes global options by key for fast lookup.
	byKey map[string]*ConfigOption
	// bySection indexes command/section options by section then key.
	bySection map[string]map[string]*ConfigOption
}

// NewSchema creates a new empty ConfigSchema.
func NewSchema() *ConfigSchema {
	return &ConfigSchema{
		byKey:     make(map[string]*ConfigOption),
		bySection: make(map[string]map[string]*ConfigOption),
	}
}

// Register adds a ConfigOption to the schema. Duplicate keys within the same
// section are silently overwritten (last registration wins).
func (s *ConfigSchema) Register(opt ConfigOption) {
	ref := new(ConfigOption)
	*ref = opt
	s.options = append(s.options, ref)
	if opt.Section == "" {
		s.byKey[opt.Key] = ref
	} else {
		if s.bySection[opt.Section] == nil {
			s.bySection[opt.Section] = make(map[string]*ConfigOption)
		}
		s.bySection[opt.Section][opt.Key] = ref
	}
}

// RegisterAll adds multiple ConfigOptions to the schema.
func (s *ConfigSchema) RegisterAll(opts []ConfigOption) {
	for _, opt := range opts {
		s.Register(opt)
	}
}

// Lookup returns the ConfigOption for a key in a given section ("" for global).
// Returns nil if the key is not registered.
func (s *ConfigSchema) Lookup(section, key string) *ConfigOption {
	if section == "" {
		return s.byKey[key]
	}
	if sec, ok := s.bySection[section]; ok {
		return sec[key]
	}
	return nil
}

// IsKnown returns true if the key is registered in the given section.
// For command sections, global keys are also considered known (they can
// appear in command sections and fall back to the global value).
func (s *ConfigSchema) IsKnown(section, key string) bool {
	if section == "" {
		return s.byKey[key] != nil
	}
	// Command section: check section-specific, then global.
	if sec, ok := s.bySection[section]; ok {
		if sec[key] != nil {
			return true
		}
	}
	return s.byKey[key] != nil
}

// Options returns a copy of every registered option in registration order.
func (s *ConfigSchema) Options() []ConfigOption {
	out := make([]ConfigOption, len(s.options))
	for i, o := range s.options {
		out[i] = *o
	}
	return out
}

// GlobalOptions returns all registered global options (Section == "").
func (s *ConfigSchema) GlobalOptions() []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == "" {
			out = append(out, *o)
		}
	}
	return out
}

// SectionOptions returns all registered options for a specific section.
func (s *ConfigSchema) SectionOptions(section string) []ConfigOption {
	var out []ConfigOption
	for _, o := range s.options {
		if o.Section == section {
			out = append(out, *o)
		}
	}
	return out
}

// Sections returns a sorted list of all registered non-empty section names.
func (s *ConfigSchema) Sections() []string {
	seen := make(map[string]bool)
	for sec := range s.bySection {
		seen[sec] = true
	}
	out := make([]string, 0, len(seen))
	for sec := range seen {
		out = append(out, sec)
	}
	sort.Strings(out)
	return out
}

// Resolve returns the effective value for a global config key by checking,
// in order: (1) the environment variable declared in the schema for this key,
// (2) the config value, (3) the schema default. Returns "" if the key is not
// found anywhere.
func (s *ConfigSchema) Resolve(c *Config, key string) string {
	opt := s.Lookup("", key)
	// Check env var override from schema.
	if opt != nil && opt.EnvVar != "" {
		if v, ok := os.LookupEnv(opt.EnvVar); ok {
			return v
		}
	}
	// Check config value.
	v, ok := c.GetGlobalOption(key)
	if ok {
		return v
	}
	// Fall back to schema default.
	if opt != nil {
		return opt.Default
	}
	return ""
}

// ValidateConfig checks a loaded Config against the schema and returns a list
// of human-readable issues (empty if the config is valid). Validation includes:
//   - Unknown global options (not in schema)
//   - Unknown command options (not in schema for that section, and not global)
//   - Type mismatches for options with declared types
func ValidateConfig(c *Config, s *ConfigSchema) []string {
	var issues []string

	// Validate global options.
	for key, value := range c.Global {
		opt := s.Lookup("", key)
		if opt == nil {
			issues = append(issues, fmt.Sprintf("unknown global option: %q (value: %q)", key, value))
			continue
		}
		if err := validateType(opt.Type, value); err != nil {
			issues = append(issues, fmt.Sprintf("global option %q: %v", key, err))
		}
	}

	// Validate command-section options.
	for section, opts := range c.Commands {
		for key, value := range opts {
			if !s.IsKnown(section, key) {
				issues = append(issues, fmt.Sprintf("unknown option for command %q: %q (value: %q)", section, key, value))
				continue
			}
			// Find the option definition (section-specific or global fallback).
			opt := s.Lookup(section, key)
			if opt == nil {
				opt = s.Lookup("", key)
			}
			if opt != nil {
				if err := validateType(opt.Type, value); err != nil {
					issues = append(issues, fmt.Sprintf("option %q in [%s]: %v", key, section, err))
				}
			}
		}
	}

	sort.Strings(issues)
	return issues
}

// validateType checks that a string value matches the expected OptionType.
func validateType(t OptionType, value string) error {
	switch t {
	case TypeString, TypePathList, "":
		// Anything is valid for string and path-list.
		return nil
	case TypeBool:
		if _, err := parseBool(value); err != nil {
			return fmt.Errorf("expected bool, got %q", value)
		}
	case TypeInt:
		if _, err := strconv.Atoi(value); err != nil {
			return fmt.Errorf("expected int, got %q", value)
		}
	case TypeFloat:
		if _, err := strconv.ParseFloat(value, 64); err != nil {
			return fmt.Errorf("expected float, got %q", value)
		}
	case TypeDuration:
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("expected duration, got %q", value)
		}
	default:
		return fmt.Errorf("unknown option type %q", t)
	}
	return nil
}

// --- Typed resolution ---

// ResolveInt resolves key like Resolve and parses the result as an int.
func (s *ConfigSchema) ResolveInt(c *Config, key string) (int, error) {
	return resolveAs(s, c, key, strconv.Atoi)
}

// ResolveFloat resolves key like Resolve and parses the result as a float64.
func (s *ConfigSchema) ResolveFloat(c *Config, key string) (float64, error) {
	return resolveAs(s, c, key, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

// ResolveBool resolves key like Resolve and parses the result with the same
// rules as the config file (true/false/yes/no/1/0/on/off).
func (s *ConfigSchema) ResolveBool(c *Config, key string) (bool, error) {
	return resolveAs(s, c, key, parseBool)
}

// ResolveDuration resolves key like Resolve and parses the result as a
// time.Duration.
func (s *ConfigSchema) ResolveDuration(c *Config, key string) (time.Duration, error) {
	return resolveAs(s, c, key, time.ParseDuration)
}

func resolveAs[T any](s *ConfigSchema, c *Config, key string, parse func(string) (T, error)) (T, error) {
	v := s.Resolve(c, key)
	out, err := parse(v)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s: invalid value %q", key, v)
	}
	return out, nil
}

// --- Help text generation ---

// FormatHelp returns a formatted, human-readable reference of all registered
// options in the schema, grouped by section.
func (s *ConfigSchema) FormatHelp() string {
	var b strings.Builder

	// Global options first.
	globals := s.GlobalOptions()
	if len(globals) > 0 {
		b.WriteString("Global Options:\n")
		for _, o := range globals {
			writeOptionHelp(&b, o)
		}
	}

	// Section options.
	for _, sec := range s.Sections() {
		opts := s.SectionOptions(sec)
		if len(opts) == 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("\n[%s] Options:\n", sec))
		for _, o := range opts {
			writeOptionHelp(&b, o)
		}
	}

	return b.String()
}

func writeOptionHelp(b *strings.Builder, o ConfigOption) {
	b.WriteString(fmt.Sprintf("  %-35s %s", o.Key, o.Description))
	parts := make([]string, 0, 3)
	if o.Type != "" && o.Type != TypeString {
		parts = append(parts, fmt.Sprintf("type: %s", o.Type))
	}
	if o.Default != "" {
		parts = append(parts, fmt.Sprintf("default: %s", o.Default))
	}
	if o.EnvVar != "" {
		parts = append(parts, fmt.Sprintf("env: %s", o.EnvVar))
	}
	if len(parts) > 0 {
		b.WriteString(fmt.Sprintf(" (%s)", strings.Join(parts, ", ")))
	}
	b.WriteString("\n")
}

// --- Default schema for vlist ---

// DefaultSchema returns the canonical schema declaring all known vlist
// configuration options. This is the single source of truth for option names,
// types, defaults, descriptions, and environment variable overrides.
func DefaultSchema() *ConfigSchema {
	s := NewSchema()
	s.RegisterAll(defaultGlobalOptions())
	s.RegisterAll(defaultCommandOptions())
	return s
}

func defaultGlobalOptions() []ConfigOption {
	return []ConfigOption{
		// Layout surface
		{Key: "layout.axis", Type: TypeString, Default: "vertical", Description: "Main axis: vertical or horizontal"},
		{Key: "layout.lanes", Type: TypeInt, Default: "1", Description: "Number of lanes (columns across the main axis)"},
		{Key: "layout.lane-gutter", Type: TypeFloat, Default: "0", Description: "Gap between lanes"},
		{Key: "layout.spacing", Type: TypeFloat, Default: "0", Description: "Spacing between consecutive rows"},
		{Key: "layout.start-offset", Type: TypeFloat, Default: "0", Description: "Padding before the first child"},
		{Key: "layout.end-offset", Type: TypeFloat, Default: "0", Description: "Padding after the last child"},
		{Key: "layout.snap", Type: TypeString, Default: "none", Description: "Scroll snap: none, start, center, end"},
		{Key: "layout.stack-from-end", Type: TypeBool, Default: "false", Description: "Lay out from the trailing edge"},
		{Key: "layout.cached-count", Type: TypeInt, Default: "0", Description: "Rows prefetched beyond each edge of the viewport"},
		{Key: "layout.show-cached", Type: TypeBool, Default: "false", Description: "Attach prefetched children to the render tree"},
		{Key: "layout.sticky", Type: TypeString, Default: "none", Description: "Sticky group decorations: none, header, footer, both"},

		// Prefetch
		{Key: "prefetch.budget", Type: TypeDuration, Default: "4ms", Description: "Time budget of one idle prefetch slice", EnvVar: "VLIST_PREFETCH_BUDGET"},

		// Logging options
		{Key: "log.file", Type: TypeString, Default: "", Description: "Default log file path (JSON output)", EnvVar: "VLIST_LOG_FILE"},
		{Key: "log.level", Type: TypeString, Default: "info", Description: "Default log level: debug, info, warn, error", EnvVar: "VLIST_LOG_LEVEL"},
		{Key: "log.max-size-mb", Type: TypeInt, Default: "10", Description: "Max log file size in MB before rotation"},
		{Key: "log.max-files", Type: TypeInt, Default: "5", Description: "Max number of rotated log backup files"},
		{Key: "log.buffer-size", Type: TypeInt, Default: "1000", Description: "In-memory log buffer size (entries)"},
	}
}

func defaultCommandOptions() []ConfigOption {
	return []ConfigOption{
		// [data] section. Parsed by parseDataOption into DataConfig; the
		// schema entries document it.
		{Key: "count", Section: "data", Type: TypeInt, Default: "1000", Description: "Number of children"},
		{Key: "default-size", Section: "data", Type: TypeFloat, Default: "1", Description: "Main size of children without a formula"},
		{Key: "size-expr", Section: "data", Type: TypeString, Default: "", Description: "Per-index size expression over index and count"},
		{Key: "groups", Section: "data", Type: TypeInt, Default: "0", Description: "Insert a group every N children"},
		{Key: "group-size", Section: "data", Type: TypeInt, Default: "8", Description: "Items per group"},
		{Key: "group-lanes", Section: "data", Type: TypeInt, Default: "0", Description: "Lanes inside groups (0 inherits)"},
		{Key: "header", Section: "data", Type: TypeFloat, Default: "1", Description: "Group header size"},
		{Key: "footer", Section: "data", Type: TypeFloat, Default: "0", Description: "Group footer size"},
		{Key: "text", Section: "data", Type: TypeString, Default: "", Description: "Wrapped text content for every item"},

		// [layout] section
		{Key: "viewport", Section: "layout", Type: TypeFloat, Default: "24", Description: "Viewport main size when not attached to a terminal"},
		{Key: "cross", Section: "layout", Type: TypeFloat, Default: "80", Description: "Cross size when not attached to a terminal"},
		{Key: "format", Section: "layout", Type: TypeString, Default: "text", Description: "Report format: text or json"},

		// [bench] section
		{Key: "passes", Section: "bench", Type: TypeInt, Default: "1000", Description: "Scroll passes per scenario"},
		{Key: "parallel", Section: "bench", Type: TypeInt, Default: "0", Description: "Concurrent scenarios (0 means GOMAXPROCS)"},

		// [view] section
		{Key: "page-step", Section: "view", Type: TypeFloat, Default: "0", Description: "Page scroll distance (0 means the viewport size)"},
		{Key: "show-scrollbar", Section: "view", Type: TypeBool, Default: "true", Description: "Render the scrollbar"},

		// [script] section
		{Key: "module-paths", Section: "script", Type: TypePathList, Default: "", Description: "Module search paths for require()"},
	}
}
