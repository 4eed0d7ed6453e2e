package command

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"

	"github.com/joeycumines/vlist/internal/config"
)

// HelpCommand displays help information for commands.
type HelpCommand struct {
	*BaseCommand
	registry *Registry
}

// NewHelpCommand creates a new help command.
func NewHelpCommand(registry *Registry) *HelpCommand {
	return &HelpCommand{
		BaseCommand: NewBaseCommand(
			"help",
			"Display help information for commands",
			"help [command]",
		),
		registry: registry,
	}
}

// Execute displays help information.
func (c *HelpCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		_, _ = fmt.Fprintln(stdout, "vlist - lay out, scroll and inspect virtualized lists")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Usage: vlist <command> [options] [args...]")
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Available commands:")

		w := tabwriter.NewWriter(stdout, 0, 8, 2, ' ', 0)
		for _, name := range c.registry.List() {
			if cmd, err := c.registry.Get(name); err == nil {
				_, _ = fmt.Fprintf(w, "  %s\t%s\n", name, cmd.Description())
			}
		}
		_ = w.Flush()

		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Use 'vlist help <command>' for more information about a specific command (includes flags).")
		return nil
	}

	cmdName := args[0]
	cmd, err := c.registry.Get(cmdName)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Unknown command: %s\n", cmdName)
		return err
	}

	_, _ = fmt.Fprintf(stdout, "Command: %s\n", cmd.Name())
	_, _ = fmt.Fprintf(stdout, "Description: %s\n", cmd.Description())
	_, _ = fmt.Fprintf(stdout, "Usage: %s\n", cmd.Usage())

	// Flags are listed by running SetupFlags against a scratch FlagSet.
	fs := flag.NewFlagSet(cmd.Name(), flag.ContinueOnError)
	buf := &bytes.Buffer{}
	fs.SetOutput(buf)
	cmd.SetupFlags(fs)
	fs.PrintDefaults()
	if buf.Len() > 0 {
		_, _ = fmt.Fprintln(stdout, "")
		_, _ = fmt.Fprintln(stdout, "Flags:")
		_, _ = fmt.Fprint(stdout, buf.String())
	}
	return nil
}

// VersionCommand displays version information.
type VersionCommand struct {
	*BaseCommand
	version string
}

// NewVersionCommand creates a new version command.
func NewVersionCommand(version string) *VersionCommand {
	return &VersionCommand{
		BaseCommand: NewBaseCommand(
			"version",
			"Display version information",
			"version",
		),
		version: version,
	}
}

// Execute displays version information.
func (c *VersionCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if err := c.rejectArgs(args, stderr); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(stdout, "vlist version %s\n", c.version)
	return nil
}

// ConfigCommand manages configuration.
type ConfigCommand struct {
	*BaseCommand
	config     *config.Config
	configPath string
	showGlobal bool
	showAll    bool
	section    string
}

// NewConfigCommand creates a new config command.
// If configPath is empty, the default config path is resolved when a value
// is set, and persistence is skipped when that fails.
func NewConfigCommand(cfg *config.Config, configPath ...string) *ConfigCommand {
	var path string
	if len(configPath) > 0 {
		path = configPath[0]
	}
	return &ConfigCommand{
		BaseCommand: NewBaseCommand(
			"config",
			"Manage configuration settings",
			"config [options] [key] [value]",
		),
		config:     cfg,
		configPath: path,
	}
}

// SetupFlags configures the flags for the config command.
func (c *ConfigCommand) SetupFlags(fs *flag.FlagSet) {
	fs.BoolVar(&c.showGlobal, "global", false, "Show only global configuration")
	fs.BoolVar(&c.showAll, "all", false, "Show all configuration (global, data and command sections)")
	fs.StringVar(&c.section, "section", "", "Read or write a key in this [section] instead of the global options")
}

// Execute manages configuration.
func (c *ConfigCommand) Execute(args []string, stdout, stderr io.Writer) error {
	if len(args) == 0 {
		switch {
		case c.showAll:
			c.printGlobal(stdout)
			_, _ = fmt.Fprintln(stdout, "\nData source:")
			d := c.config.Data
			_, _ = fmt.Fprintf(stdout, "  count: %d\n  default-size: %g\n", d.Count, d.DefaultSize)
			if d.SizeExpr != "" {
				_, _ = fmt.Fprintf(stdout, "  size-expr: %s\n", d.SizeExpr)
			}
			if d.GroupEvery > 0 {
				_, _ = fmt.Fprintf(stdout, "  groups: %d (size %d, header %g, footer %g)\n", d.GroupEvery, d.GroupSize, d.Header, d.Footer)
			}
			if d.Text != "" {
				_, _ = fmt.Fprintf(stdout, "  text: %s\n", d.Text)
			}
			_, _ = fmt.Fprintln(stdout, "\nCommand-specific configuration:")
			for _, cmd := range sortedKeys(c.config.Commands) {
				_, _ = fmt.Fprintf(stdout, "  [%s]\n", cmd)
				options := c.config.Commands[cmd]
				for _, key := range sortedKeys(options) {
					_, _ = fmt.Fprintf(stdout, "    %s: %s\n", key, options[key])
				}
			}
		case c.showGlobal:
			c.printGlobal(stdout)
		default:
			_, _ = fmt.Fprintln(stdout, "Configuration management:")
			_, _ = fmt.Fprintln(stdout, "  config <key>                    - Get configuration value")
			_, _ = fmt.Fprintln(stdout, "  config <key> <value>            - Set configuration value")
			_, _ = fmt.Fprintln(stdout, "  config -section data <key> ...  - Get or set a [section] value")
			_, _ = fmt.Fprintln(stdout, "  config --global                 - Show global configuration")
			_, _ = fmt.Fprintln(stdout, "  config --all                    - Show all configuration")
			_, _ = fmt.Fprintln(stdout, "  config validate                 - Validate configuration")
			_, _ = fmt.Fprintln(stdout, "  config schema                   - Show configuration schema")
		}
		return nil
	}

	switch args[0] {
	case "validate":
		return c.executeValidate(stdout)
	case "schema":
		_, _ = fmt.Fprint(stdout, config.DefaultSchema().FormatHelp())
		return nil
	}

	switch len(args) {
	case 1:
		key := args[0]
		if value, ok := c.lookup(key); ok {
			_, _ = fmt.Fprintf(stdout, "%s: %s\n", key, value)
		} else {
			_, _ = fmt.Fprintf(stdout, "Configuration key '%s' not found\n", key)
		}
		return nil
	case 2:
		return c.set(args[0], args[1], stdout, stderr)
	}

	_, _ = fmt.Fprintln(stderr, "Invalid number of arguments")
	return fmt.Errorf("invalid arguments")
}

func (c *ConfigCommand) printGlobal(stdout io.Writer) {
	_, _ = fmt.Fprintln(stdout, "Global configuration:")
	for _, key := range sortedKeys(c.config.Global) {
		_, _ = fmt.Fprintf(stdout, "  %s: %s\n", key, c.config.Global[key])
	}
}

// lookup resolves a key. Global keys go through the schema (env, config,
// default); section keys check the section and then the schema default.
func (c *ConfigCommand) lookup(key string) (string, bool) {
	schema := config.DefaultSchema()
	if c.section == "" {
		if v := schema.Resolve(c.config, key); v != "" {
			return v, true
		}
		_, exists := c.config.GetGlobalOption(key)
		return "", exists
	}
	if v, ok := c.config.GetCommandOption(c.section, key); ok {
		return v, true
	}
	if opt := schema.Lookup(c.section, key); opt != nil {
		return opt.Default, true
	}
	return "", false
}

func (c *ConfigCommand) set(key, value string, stdout, stderr io.Writer) error {
	switch c.section {
	case "":
		c.config.SetGlobalOption(key, value)
	case "data":
		if err := c.config.Data.Set(key, value); err != nil {
			_, _ = fmt.Fprintf(stderr, "Invalid data option: %v\n", err)
			return fmt.Errorf("invalid data option %q: %w", key, err)
		}
	default:
		c.config.SetCommandOption(c.section, key, value)
	}
	if !config.DefaultSchema().IsKnown(c.section, key) {
		_, _ = fmt.Fprintf(stderr, "Warning: %q is not a known option\n", key)
	}

	configPath := c.configPath
	if configPath == "" {
		configPath, _ = config.GetConfigPath()
	}
	if configPath != "" {
		if err := config.SetKeyInFile(configPath, c.section, key, value); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: failed to persist config to disk: %v\n", err)
		}
	}

	if c.section != "" {
		_, _ = fmt.Fprintf(stdout, "Set configuration: [%s] %s = %s\n", c.section, key, value)
	} else {
		_, _ = fmt.Fprintf(stdout, "Set configuration: %s = %s\n", key, value)
	}
	return nil
}

// executeValidate validates the current config against the schema.
func (c *ConfigCommand) executeValidate(stdout io.Writer) error {
	issues := config.ValidateConfig(c.config, config.DefaultSchema())
	if len(issues) == 0 {
		_, _ = fmt.Fprintln(stdout, "Configuration is valid.")
		return nil
	}
	_, _ = fmt.Fprintf(stdout, "Configuration has %d issue(s):\n", len(issues))
	for _, issue := range issues {
		_, _ = fmt.Fprintf(stdout, "  - %s\n", issue)
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
