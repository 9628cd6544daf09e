package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const (
	logLevelEnv = "DWARFX86_LOG_LEVEL"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cmd := newRootCommand()
	err := cmd.ExecuteContext(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		cancel()
		os.Exit(1)
	}
}

type globalOptions struct {
	verbose bool
	color   string

	logger *slog.Logger
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}

	cmd := &cobra.Command{
		Use:   "dwarf-args",
		Short: "extract function arguments from x86-64 elf debug information",
		Long: `dwarf-args reads the dwarf debug information of x86-64 elf executables
and reports, for every function, where each argument lives at function entry
(a general purpose register or an offset from the frame base).`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch opts.color {
			case "auto":
			case "always":
				color.NoColor = false
			case "never":
				color.NoColor = true
			default:
				return fmt.Errorf(
					"invalid --color value (%s). expected auto, always or never",
					opts.color)
			}

			logger, err := newLogger(cmd.ErrOrStderr(), opts.verbose)
			if err != nil {
				return err
			}
			opts.logger = logger
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(
		&opts.verbose,
		"verbose",
		"v",
		false,
		"enable debug logging (overrides "+logLevelEnv+")")
	cmd.PersistentFlags().StringVar(
		&opts.color,
		"color",
		"auto",
		"colorize output: auto, always or never")

	cmd.AddCommand(
		newFunctionsCommand(opts),
		newShowCommand(opts),
		newDumpCommand(opts),
		newShellCommand(opts),
	)

	return cmd
}

// newLogger returns a text logger on stderr.  The level defaults to WARN and
// may be set via DWARFX86_LOG_LEVEL.  verbose forces DEBUG.
func newLogger(stderr io.Writer, verbose bool) (*slog.Logger, error) {
	level := slog.LevelWarn

	value := strings.TrimSpace(os.Getenv(logLevelEnv))
	if value != "" {
		err := level.UnmarshalText([]byte(value))
		if err != nil {
			return nil, fmt.Errorf("invalid %s (%s): %w", logLevelEnv, value, err)
		}
	}

	if verbose {
		level = slog.LevelDebug
	}

	handler := slog.NewTextHandler(
		stderr,
		&slog.HandlerOptions{
			Level: level,
		})
	return slog.New(handler), nil
}
