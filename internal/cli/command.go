package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"

	flag "github.com/spf13/pflag"
)

// errUsage marks command line mistakes. Help goes to stderr after the error.
var errUsage = errors.New("usage")

// Command is a single flag-driven command with generated help.
type Command struct {
	Flags *flag.FlagSet

	// Usage follows "Usage:" in help.
	Usage string
	Short string
	// Long replaces Short in help when set.
	Long string
	// Examples are printed verbatim, one per line, under "Examples:".
	Examples []string

	// NoArgs rejects positional arguments.
	NoArgs bool

	Exec func(ctx context.Context, o *IO, args []string) error
}

// PrintHelp writes usage, description, examples and flag defaults to o.
func (c *Command) PrintHelp(o *IO) {
	o.Println("Usage:", c.Usage)
	o.Println()

	if c.Long != "" {
		o.Println(c.Long)
	} else {
		o.Println(c.Short)
	}

	if len(c.Examples) > 0 {
		o.Println()
		o.Println("Examples:")
		for _, ex := range c.Examples {
			o.Println("  " + ex)
		}
	}

	if c.Flags != nil && c.Flags.HasFlags() {
		o.Println()
		o.Println("Flags:")
		o.Printf("%s", c.Flags.FlagUsages())
	}
}

// Run parses args, executes the command and returns the exit code: 0 on
// success, 1 on any failure. An interrupted run reports "interrupted".
func (c *Command) Run(ctx context.Context, o *IO, args []string) int {
	err := c.parse(args)
	switch {
	case errors.Is(err, flag.ErrHelp):
		c.PrintHelp(o)
		return 0
	case err != nil:
		o.ErrPrintln("error:", err)
		o.ErrPrintln()
		c.PrintHelp(NewIO(o.errOut, o.errOut))
		return 1
	}

	if err := c.Exec(ctx, o, c.Flags.Args()); err != nil {
		if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			o.ErrPrintln("error: interrupted")
			return 1
		}
		o.ErrPrintln("error:", err)
		return 1
	}
	return 0
}

func (c *Command) parse(args []string) error {
	c.Flags.SetOutput(&strings.Builder{})
	if err := c.Flags.Parse(args); err != nil {
		return err
	}
	if c.NoArgs && c.Flags.NArg() > 0 {
		return fmt.Errorf("%w: unexpected argument %q", errUsage, c.Flags.Arg(0))
	}
	return nil
}
