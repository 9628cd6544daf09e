package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/pattyshack/dwarfx86"
)

var (
	functionColor = color.New(color.FgGreen, color.Bold)
	addressColor  = color.New(color.FgCyan)
	locationColor = color.New(color.FgYellow)
	pathColor     = color.New(color.Bold)
	errorColor    = color.New(color.FgRed)
)

type argumentDocument struct {
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"`
	Register string `json:"register,omitempty" yaml:"register,omitempty"`
	Offset   *int64 `json:"offset,omitempty" yaml:"offset,omitempty"`
}

type functionDocument struct {
	Name          string             `json:"name" yaml:"name"`
	LinkageName   string             `json:"linkage_name,omitempty" yaml:"linkage_name,omitempty"`
	DemangledName string             `json:"demangled_name,omitempty" yaml:"demangled_name,omitempty"`
	StartAddress  string             `json:"start_address" yaml:"start_address"`
	Arguments     []argumentDocument `json:"arguments" yaml:"arguments"`
}

type fileDocument struct {
	Path      string             `json:"path" yaml:"path"`
	Functions []functionDocument `json:"functions" yaml:"functions"`
	Error     string             `json:"error,omitempty" yaml:"error,omitempty"`
	Skipped   []string           `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

func newFunctionDocument(fn dwarfx86.Function) functionDocument {
	args := make([]argumentDocument, 0, len(fn.Arguments))
	for _, arg := range fn.Arguments {
		doc := argumentDocument{
			Name: arg.Name,
		}

		switch arg.Location.Kind {
		case dwarfx86.RegisterLocation:
			doc.Kind = "register"
			doc.Register = arg.Location.Register.String()
		case dwarfx86.FrameOffsetLocation:
			doc.Kind = "frame_offset"
			offset := arg.Location.Offset
			doc.Offset = &offset
		default:
			doc.Kind = arg.Location.Kind.String()
		}

		args = append(args, doc)
	}

	return functionDocument{
		Name:          fn.Name,
		LinkageName:   fn.LinkageName,
		DemangledName: fn.DemangledName,
		StartAddress:  fmt.Sprintf("%#x", fn.StartAddress),
		Arguments:     args,
	}
}

func newFileDocument(result dwarfx86.BatchResult) fileDocument {
	doc := fileDocument{
		Path:      result.Path,
		Functions: []functionDocument{},
	}

	for _, fn := range result.Functions {
		doc.Functions = append(doc.Functions, newFunctionDocument(fn))
	}

	if result.Err != nil {
		doc.Error = result.Err.Error()
	}

	for _, err := range result.Skipped {
		doc.Skipped = append(doc.Skipped, err.Error())
	}

	return doc
}

func formatFunction(fn dwarfx86.Function) string {
	result := functionColor.Sprint(fn.Name) +
		" " +
		addressColor.Sprintf("@%#x", fn.StartAddress) +
		"("
	for idx, arg := range fn.Arguments {
		if idx > 0 {
			result += ", "
		}
		result += arg.Name + ": " + locationColor.Sprint(arg.Location)
	}
	return result + ")"
}

func writeText(out io.Writer, results []dwarfx86.BatchResult) {
	for _, result := range results {
		if len(results) > 1 {
			fmt.Fprintln(out, pathColor.Sprint(result.Path+":"))
		}

		if result.Err != nil {
			fmt.Fprintln(out, "  "+errorColor.Sprint("error: ")+result.Err.Error())
			continue
		}

		for _, fn := range result.Functions {
			fmt.Fprintln(out, "  "+formatFunction(fn))
		}

		for _, err := range result.Skipped {
			fmt.Fprintln(out, "  "+errorColor.Sprint("skipped: ")+err.Error())
		}
	}
}

func writeDocuments(
	out io.Writer,
	format string,
	results []dwarfx86.BatchResult,
) error {
	docs := make([]fileDocument, 0, len(results))
	for _, result := range results {
		docs = append(docs, newFileDocument(result))
	}

	switch format {
	case "json":
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(docs)
	case "yaml":
		encoder := yaml.NewEncoder(out)
		encoder.SetIndent(2)
		err := encoder.Encode(docs)
		if err != nil {
			return err
		}
		return encoder.Close()
	default:
		return fmt.Errorf("unsupported output format (%s)", format)
	}
}
