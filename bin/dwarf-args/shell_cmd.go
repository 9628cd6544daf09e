package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/pattyshack/dwarfx86"
)

const (
	defaultNumInstructions = 10
)

var (
	errQuit = errors.New("quit")
)

type shellCommand struct {
	name  string
	usage string
	run   func(*shell, []string) error
}

var (
	shellCommands []shellCommand
)

func init() {
	// Assigned in init since help references shellCommands.
	shellCommands = []shellCommand{
		{
			name:  "list",
			usage: "list",
			run:   (*shell).list,
		},
		{
			name:  "show",
			usage: "show <name>",
			run:   (*shell).show,
		},
		{
			name:  "disassemble",
			usage: "disassemble <name> [<num instructions>]",
			run:   (*shell).disassemble,
		},
		{
			name:  "help",
			usage: "help",
			run:   (*shell).help,
		},
		{
			name:  "quit",
			usage: "quit",
			run:   (*shell).quit,
		},
	}
}

func newShellCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell PATH",
		Short: "interactively query an executable's functions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := loadExecutable(opts, args[0])
			if err != nil {
				return err
			}

			rl, err := readline.NewEx(
				&readline.Config{
					Prompt: "dwarf-args > ",
					Stdout: cmd.OutOrStdout(),
					Stderr: cmd.ErrOrStderr(),
				})
			if err != nil {
				return err
			}
			defer rl.Close()

			sh := newShell(exec, cmd.OutOrStdout())

			for {
				line, err := rl.Readline()
				if err != nil {
					if err == io.EOF || err == readline.ErrInterrupt {
						return nil
					}
					return err
				}

				err = sh.execute(line)
				if err == errQuit {
					return nil
				} else if err != nil {
					opts.logger.Debug("command failed", "line", line, "error", err)
					fmt.Fprintln(cmd.OutOrStdout(), errorColor.Sprint("error: ")+err.Error())
				}
			}
		},
	}
}

type shell struct {
	exec *dwarfx86.Executable
	out  io.Writer

	lastLine string
}

func newShell(exec *dwarfx86.Executable, out io.Writer) *shell {
	return &shell{
		exec: exec,
		out:  out,
	}
}

// execute runs a single command line.  An empty line repeats the previous
// command.  Commands may be abbreviated to any unique prefix.
func (sh *shell) execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		line = sh.lastLine
	}
	sh.lastLine = line

	if line == "" {
		return nil
	}

	args := strings.Fields(line)

	var matched *shellCommand
	for idx, cmd := range shellCommands {
		if !strings.HasPrefix(cmd.name, args[0]) {
			continue
		}

		if matched != nil {
			return fmt.Errorf("ambiguous command: %s", args[0])
		}
		matched = &shellCommands[idx]
	}

	if matched == nil {
		return fmt.Errorf("invalid command: %s", args[0])
	}

	return matched.run(sh, args[1:])
}

func (sh *shell) list(args []string) error {
	if len(args) != 0 {
		return fmt.Errorf("unexpected arguments: %v", args)
	}

	functions, err := sh.exec.GetFunctions()
	if err != nil {
		return err
	}

	for _, fn := range functions {
		fmt.Fprintln(sh.out, formatFunction(fn))
	}
	return nil
}

func (sh *shell) show(args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("expected exactly one function name")
	}

	return showFunction(sh.out, sh.exec, args[0], 0)
}

func (sh *shell) disassemble(args []string) error {
	numInstructions := defaultNumInstructions
	switch len(args) {
	case 1:
	case 2:
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("invalid number of instructions (%s): %w", args[1], err)
		}
		numInstructions = value
	default:
		return fmt.Errorf("expected function name and optional instruction count")
	}

	return showFunction(sh.out, sh.exec, args[0], numInstructions)
}

func (sh *shell) help(args []string) error {
	fmt.Fprintln(sh.out, "commands:")
	for _, cmd := range shellCommands {
		fmt.Fprintln(sh.out, "  "+cmd.usage)
	}
	return nil
}

func (sh *shell) quit(args []string) error {
	return errQuit
}
