package command

import (
	"flag"
	"fmt"
	"io"

	"github.com/joeycumines/vlist/internal/config"
)

// Command represents a command that can be executed.
type Command interface {
	// Name returns the command name.
	Name() string

	// Description returns a short description of the command.
	Description() string

	// Usage returns the usage string for the command.
	Usage() string

	// SetupFlags configures the flag.FlagSet for this command.
	// The FlagSet will be used to parse command-specific arguments.
	SetupFlags(fs *flag.FlagSet)

	// Execute runs the command with the given arguments.
	// args contains the arguments after flags have been parsed.
	Execute(args []string, stdout, stderr io.Writer) error
}

// BaseCommand provides a basic implementation that other commands can embed.
// A command's name doubles as its config section, so [bench] configures the
// bench command.
type BaseCommand struct {
	name        string
	description string
	usage       string
}

// NewBaseCommand creates a new BaseCommand.
func NewBaseCommand(name, description, usage string) *BaseCommand {
	return &BaseCommand{
		name:        name,
		description: description,
		usage:       usage,
	}
}

// Name returns the command name.
func (c *BaseCommand) Name() string {
	return c.name
}

// Description returns the command description.
func (c *BaseCommand) Description() string {
	return c.description
}

// Usage returns the command usage.
func (c *BaseCommand) Usage() string {
	return c.usage
}

// SetupFlags is a default implementation that does nothing.
func (c *BaseCommand) SetupFlags(fs *flag.FlagSet) {}

// rejectArgs reports unexpected positional arguments on stderr.
func (c *BaseCommand) rejectArgs(args []string, stderr io.Writer) error {
	if len(args) == 0 {
		return nil
	}
	_, _ = fmt.Fprintf(stderr, "unexpected arguments: %v\n", args)
	return fmt.Errorf("%s: unexpected arguments", c.name)
}

// option returns key from the command's own config section, falling back
// to the schema default.
func (c *BaseCommand) option(cfg *config.Config, key string) string {
	return sectionString(cfg, c.name, key)
}

func (c *BaseCommand) optionInt(cfg *config.Config, key string) int {
	return sectionInt(cfg, c.name, key)
}

func (c *BaseCommand) optionFloat(cfg *config.Config, key string) float64 {
	return sectionFloat(cfg, c.name, key)
}

func (c *BaseCommand) optionBool(cfg *config.Config, key string) bool {
	return sectionBool(cfg, c.name, key)
}
