package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/pattyshack/dwarfx86/dwarf"
)

func newDumpCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dump PATH",
		Short: "print the compile units and their debug info entry trees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			exec, err := loadExecutable(opts, args[0])
			if err != nil {
				return err
			}

			return dumpFile(cmd.OutOrStdout(), exec.File)
		},
	}
}

func dumpFile(out io.Writer, file *dwarf.File) error {
	fmt.Fprintln(out, ".debug_info:")
	for _, unit := range file.CompileUnits {
		fmt.Fprintf(
			out,
			"  CompileUnit: Start = %d Version = %d NumEntries = %d\n",
			unit.Start,
			unit.Version,
			len(unit.DebugInfoEntries()))

		root := unit.Root()
		if root == nil {
			continue
		}

		err := dumpDebugInfoEntry(out, root, 0)
		if err != nil {
			return err
		}
	}

	return nil
}

func dumpDebugInfoEntry(
	out io.Writer,
	entry *dwarf.DebugInfoEntry,
	level int,
) error {
	indent := ""
	for i := 0; i < level; i++ {
		indent += "| "
	}

	name, found, err := entry.Name()
	if err != nil {
		return err
	}

	if found {
		name = " (" + name + ")"
	}

	fmt.Fprintf(
		out,
		"    %s%08x: %s%s\n",
		indent,
		int(entry.SectionOffset),
		entry.Tag,
		name)
	for _, attr := range entry.Attributes() {
		fmt.Fprintf(
			out,
			"    %s    %s (%s):\t%s\n",
			indent,
			attr.Attribute,
			attr.Format,
			entry.FormatValue(attr.Value))
	}

	for _, child := range entry.Children {
		err := dumpDebugInfoEntry(out, child, level+1)
		if err != nil {
			return err
		}
	}

	return nil
}
