// Package cli implements the mobius-counter command line.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
}

// NewRootCommand creates the root command for the mobius-counter CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "mobius-counter",
		Short: "A counter driven by a mobius loop",
		Long: `mobius-counter runs a bounded counter as a unidirectional loop.

Commands are read from standard input, one per line: "+" increments,
"-" decrements, "reset" zeroes the counter, "save" writes the model file and
"quit" exits. Settings can be reloaded from a watched file.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log every transition to stderr")

	cmd.AddCommand(NewRunCommand(opts))

	return cmd
}

// logLevel returns the slog level selected by the verbose flag.
func (o *RootOptions) logLevel() slog.Level {
	if o.Verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}
