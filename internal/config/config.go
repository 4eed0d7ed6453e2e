package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// ErrSymlink is returned when the config path is a symbolic link.
var ErrSymlink = errors.New("symlink not allowed in config path")

// Config represents the application configuration.
type Config struct {
	// Global options that apply to all commands
	Global map[string]string
	// Command-specific options
	Commands map[string]map[string]string
	// Data describes the synthetic data source, parsed from the [data]
	// section.
	Data DataConfig
	// Warnings contains any warnings generated during config loading
	Warnings []string
	// Path is the file the config was loaded from, if any.
	Path string
}

// DataConfig declares a synthetic list: Count children whose main sizes
// come from SizeExpr (or DefaultSize), with a group inserted every
// GroupEvery children when GroupEvery is positive.
type DataConfig struct {
	Count       int     `json:"count" default:"1000"`
	DefaultSize float64 `json:"defaultSize" default:"1"`
	// SizeExpr is an expression over `index` (and `count`) evaluated per
	// child. Empty means every child uses DefaultSize.
	SizeExpr   string  `json:"sizeExpr,omitempty"`
	GroupEvery int     `json:"groups,omitempty"`
	GroupSize  int     `json:"groupSize" default:"8"`
	GroupLanes int     `json:"groupLanes,omitempty"`
	Header     float64 `json:"header" default:"1"`
	Footer     float64 `json:"footer,omitempty"`
	// Text, when set, makes every item a wrapped text block instead of a
	// fixed-size row.
	Text string `json:"text,omitempty"`
}

// DefaultData returns the [data] defaults.
func DefaultData() DataConfig {
	return DataConfig{
		Count:       1000,
		DefaultSize: 1,
		GroupSize:   8,
		Header:      1,
	}
}

// NewConfig creates a new empty configuration.
func NewConfig() *Config {
	return &Config{
		Global:   make(map[string]string),
		Commands: make(map[string]map[string]string),
		Data:     DefaultData(),
		Warnings: make([]string, 0),
	}
}

// Load loads configuration from the default config file path.
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	return LoadFromPath(configPath)
}

// LoadFromPath loads configuration from the specified file path.
// The file uses dnsmasq-style format: optionName remainingLineIsTheValue
//
// Symlinks are rejected with ErrSymlink. Only the final path component is
// checked.
func LoadFromPath(path string) (*Config, error) {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewConfig(), nil
		}
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}

	if fi.Mode()&os.ModeSymlink != 0 {
		return nil, fmt.Errorf("%w: %s", ErrSymlink, path)
	}

	file, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	cfg, err := LoadFromReader(file)
	if err != nil {
		return nil, err
	}
	cfg.Path = path
	return cfg, nil
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	config := NewConfig()
	scanner := bufio.NewScanner(r)

	var currentCommand string
	var inDataSection bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			sectionName := strings.Trim(line, "[]")
			switch sectionName {
			case "data":
				inDataSection = true
				currentCommand = ""
			default:
				inDataSection = false
				currentCommand = sectionName
				if config.Commands[currentCommand] == nil {
					config.Commands[currentCommand] = make(map[string]string)
				}
			}
			continue
		}

		optionName, value, _ := strings.Cut(line, " ")
		value = strings.TrimSpace(value)

		switch {
		case inDataSection:
			if err := parseDataOption(&config.Data, optionName, value); err != nil {
				return nil, fmt.Errorf("invalid data option %q: %w", optionName, err)
			}
		case currentCommand == "":
			config.Global[optionName] = value
		default:
			config.Commands[currentCommand][optionName] = value
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	for _, issue := range ValidateConfig(config, DefaultSchema()) {
		config.addWarning("%s", issue)
	}

	return config, nil
}

// addWarning adds a warning to the config's warnings list.
func (c *Config) addWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	c.Warnings = append(c.Warnings, msg)
	slog.Warn("[Config] " + msg)
}

// parseDataOption parses one [data] line.
// Supported options:
//   - count <int>: number of children (default: 1000)
//   - default-size <float>: main size of children without a formula (default: 1)
//   - size-expr <expr>: per-index size formula, e.g. `index % 3 + 1`
//   - groups <int>: insert a group every N children (default: 0, none)
//   - group-size <int>: items per group (default: 8)
//   - group-lanes <int>: lanes inside groups, 0 inherits (default: 0)
//   - header <float>, footer <float>: group decoration sizes
//   - text <string>: lay out wrapped text items instead of fixed rows
func parseDataOption(dc *DataConfig, name, value string) error {
	switch name {
	case "count":
		n, err := parseNonNegativeInt(value)
		if err != nil {
			return err
		}
		dc.Count = n
	case "default-size":
		f, err := parseNonNegativeFloat(value)
		if err != nil {
			return err
		}
		dc.DefaultSize = f
	case "size-expr":
		dc.SizeExpr = value
	case "groups":
		n, err := parseNonNegativeInt(value)
		if err != nil {
			return err
		}
		dc.GroupEvery = n
	case "group-size":
		n, err := parseNonNegativeInt(value)
		if err != nil {
			return err
		}
		dc.GroupSize = n
	case "group-lanes":
		n, err := parseNonNegativeInt(value)
		if err != nil {
			return err
		}
		dc.GroupLanes = n
	case "header":
		f, err := parseNonNegativeFloat(value)
		if err != nil {
			return err
		}
		dc.Header = f
	case "footer":
		f, err := parseNonNegativeFloat(value)
		if err != nil {
			return err
		}
		dc.Footer = f
	case "text":
		dc.Text = strings.ReplaceAll(value, `\n`, "\n")
	default:
		return fmt.Errorf("unknown data option: %s", name)
	}
	return nil
}

func parseNonNegativeInt(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid integer value %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("value cannot be negative: %d", n)
	}
	return n, nil
}

func parseNonNegativeFloat(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q: %w", s, err)
	}
	if f < 0 {
		return 0, fmt.Errorf("value cannot be negative: %v", f)
	}
	return f, nil
}

// parseBool parses a boolean value from string.
// Accepts: true, false, 1, 0, yes, no, on, off (case-insensitive)
func parseBool(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "true", "1", "yes", "on":
		return true, nil
	case "false", "0", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

// GetGlobalOption returns a global configuration option.
func (c *Config) GetGlobalOption(name string) (string, bool) {
	value, exists := c.Global[name]
	return value, exists
}

// GetCommandOption returns a command-specific configuration option.
// It first checks command-specific options, then falls back to global options.
func (c *Config) GetCommandOption(command, name string) (string, bool) {
	if cmdOptions, exists := c.Commands[command]; exists {
		if value, exists := cmdOptions[name]; exists {
			return value, true
		}
	}
	return c.GetGlobalOption(name)
}

// SetGlobalOption sets a global configuration option.
func (c *Config) SetGlobalOption(name, value string) {
	c.Global[name] = value
}

// SetCommandOption sets a command-specific configuration option.
func (c *Config) SetCommandOption(command, name, value string) {
	if c.Commands[command] == nil {
		c.Commands[command] = make(map[string]string)
	}
	c.Commands[command][name] = value
}

// GetWarnings returns any warnings generated during config loading.
func (c *Config) GetWarnings() []string {
	return c.Warnings
}

// HasWarnings returns true if there are any warnings.
func (c *Config) HasWarnings() bool {
	return len(c.Warnings) > 0
}
