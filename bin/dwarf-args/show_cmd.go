package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pattyshack/dwarfx86"
)

func newShowCommand(opts *globalOptions) *cobra.Command {
	numInstructions := 0

	cmd := &cobra.Command{
		Use:   "show PATH NAME",
		Short: "print a single function, optionally followed by its disassembly",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := loadExecutable(opts, args[0])
			if err != nil {
				return err
			}

			return showFunction(cmd.OutOrStdout(), exec, args[1], numInstructions)
		},
	}

	cmd.Flags().IntVarP(
		&numInstructions,
		"disassemble",
		"d",
		0,
		"number of instructions to disassemble from the function's entry")

	return cmd
}

func loadExecutable(
	opts *globalOptions,
	path string,
) (
	*dwarfx86.Executable,
	error,
) {
	exec, err := dwarfx86.LoadExecutable(path)
	if err != nil {
		return nil, err
	}

	opts.logger.Debug(
		"loaded executable",
		"path", path,
		"compile units", len(exec.CompileUnits))
	return exec, nil
}

func showFunction(
	out io.Writer,
	exec *dwarfx86.Executable,
	name string,
	numInstructions int,
) error {
	fn, ok, err := exec.FunctionByName(name)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("function %s not found", name)
	}

	fmt.Fprintln(out, formatFunction(fn))
	if fn.LinkageName != "" {
		fmt.Fprintln(out, "  linkage name:", fn.LinkageName)
	}
	if fn.DemangledName != "" {
		fmt.Fprintln(out, "  demangled name:", fn.DemangledName)
	}

	if numInstructions == 0 {
		return nil
	}

	instructions, err := exec.Disassemble(fn, numInstructions)
	if err != nil {
		return err
	}

	for _, inst := range instructions {
		fmt.Fprintln(out, "  "+inst.String())
	}
	return nil
}
