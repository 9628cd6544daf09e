package dwarfx86

import (
	"fmt"

	"github.com/ianlancetaylor/demangle"

	"github.com/pattyshack/dwarfx86/dwarf"
	"github.com/pattyshack/dwarfx86/elf"
)

type Argument struct {
	Name     string
	Location ArgumentLocation
}

type Function struct {
	Name string

	// Only set when the subprogram carries a linkage name (e.g., c++ / rust
	// functions).  DemangledName is empty when the linkage name is not
	// mangled.
	LinkageName   string
	DemangledName string

	StartAddress uint64

	// In declaration order.
	Arguments []Argument
}

// PrettyName returns the human readable name.
func (fn Function) PrettyName() string {
	if fn.DemangledName != "" {
		return fn.DemangledName
	}
	return fn.Name
}

func (fn Function) String() string {
	result := fmt.Sprintf("%s @%#x(", fn.Name, fn.StartAddress)
	for idx, arg := range fn.Arguments {
		if idx > 0 {
			result += ", "
		}
		result += arg.Name + ": " + arg.Location.String()
	}
	return result + ")"
}

type extractor struct {
	bestEffort bool

	functions []Function
	errs      []*ExtractionError
}

// extractFunctions walks the direct children of each compile unit's root
// entry.  Subprograms nested in other scopes are never visited.
//
// When bestEffort is false, extraction stops at the first error and no
// functions are returned.  Otherwise, failed subprograms are skipped and
// every error is returned alongside the successfully extracted functions.
func extractFunctions(
	units []*dwarf.CompileUnit,
	bestEffort bool,
) (
	[]Function,
	[]*ExtractionError,
) {
	ext := &extractor{
		bestEffort: bestEffort,
		functions:  []Function{},
	}

	for _, unit := range units {
		root := unit.Root()
		if root == nil {
			continue
		}

		for _, entry := range root.Children {
			if entry.Tag != dwarf.DW_TAG_subprogram {
				continue
			}

			fn, err := extractFunction(entry)
			if err != nil {
				ext.errs = append(ext.errs, err)
				if !ext.bestEffort {
					return nil, ext.errs
				}
				continue
			}

			ext.functions = append(ext.functions, fn)
		}
	}

	return ext.functions, ext.errs
}

func extractFunction(entry *dwarf.DebugInfoEntry) (Function, *ExtractionError) {
	fn := Function{
		Arguments: []Argument{},
	}

	hasName := false
	hasLowPc := false

	newError := func(kind ExtractionErrorKind) *ExtractionError {
		return &ExtractionError{
			Kind:     kind,
			Function: fn.Name,
			Entry:    entry.SectionOffset,
		}
	}

	for _, attr := range entry.Attributes() {
		switch attr.Attribute {
		case dwarf.DW_AT_name:
			name, err := resolveName(entry, attr)
			if err != nil {
				extractErr := newError(UnexpectedAttributeType)
				extractErr.Attribute = attr.Attribute
				extractErr.Format = attr.Format
				extractErr.Err = err
				return Function{}, extractErr
			}
			fn.Name = name
			hasName = true

		case dwarf.DW_AT_linkage_name, dwarf.DW_AT_MIPS_linkage_name:
			name, err := resolveName(entry, attr)
			if err != nil {
				extractErr := newError(UnexpectedAttributeType)
				extractErr.Attribute = attr.Attribute
				extractErr.Format = attr.Format
				extractErr.Err = err
				return Function{}, extractErr
			}
			fn.LinkageName = name

		case dwarf.DW_AT_low_pc:
			addr, err := resolveAddress(entry, attr)
			if err != nil {
				extractErr := newError(UnexpectedAttributeType)
				extractErr.Attribute = attr.Attribute
				extractErr.Format = attr.Format
				extractErr.Err = err
				return Function{}, extractErr
			}
			fn.StartAddress = uint64(addr)
			hasLowPc = true
		}
	}

	if !hasName {
		extractErr := newError(MissingAttribute)
		extractErr.Attribute = dwarf.DW_AT_name
		extractErr.Err = fmt.Errorf("%s not found", dwarf.DW_AT_name)
		return Function{}, extractErr
	}

	if !hasLowPc {
		extractErr := newError(MissingAttribute)
		extractErr.Attribute = dwarf.DW_AT_low_pc
		extractErr.Err = fmt.Errorf("%s not found", dwarf.DW_AT_low_pc)
		return Function{}, extractErr
	}

	if fn.LinkageName != "" {
		demangled, err := demangle.ToString(fn.LinkageName)
		if err == nil {
			fn.DemangledName = demangled
		}
	}

	for _, child := range entry.Children {
		if child.Tag != dwarf.DW_TAG_formal_parameter {
			continue
		}

		arg, err := extractArgument(child)
		if err != nil {
			err.Function = fn.Name
			err.Entry = entry.SectionOffset
			err.ParameterEntry = child.SectionOffset
			return Function{}, err
		}

		fn.Arguments = append(fn.Arguments, arg)
	}

	return fn, nil
}

func extractArgument(entry *dwarf.DebugInfoEntry) (Argument, *ExtractionError) {
	arg := Argument{}

	hasName := false
	var location []byte

	for _, attr := range entry.Attributes() {
		switch attr.Attribute {
		case dwarf.DW_AT_name:
			name, err := resolveName(entry, attr)
			if err != nil {
				return Argument{}, &ExtractionError{
					Kind:      UnexpectedAttributeType,
					Attribute: attr.Attribute,
					Format:    attr.Format,
					Err:       err,
				}
			}
			arg.Name = name
			hasName = true

		case dwarf.DW_AT_location:
			content, ok := attr.Value.([]byte)
			if !ok {
				return Argument{}, &ExtractionError{
					Kind:      UnexpectedAttributeType,
					Attribute: attr.Attribute,
					Format:    attr.Format,
					Err: fmt.Errorf(
						"%s is not an expression (%s)",
						attr.Attribute,
						attr.Format),
				}
			}
			location = content
		}
	}

	if !hasName {
		return Argument{}, &ExtractionError{
			Kind:      MissingAttribute,
			Attribute: dwarf.DW_AT_name,
			Err:       fmt.Errorf("%s not found", dwarf.DW_AT_name),
		}
	}

	if location == nil {
		return Argument{}, &ExtractionError{
			Kind:      MissingAttribute,
			Parameter: arg.Name,
			Attribute: dwarf.DW_AT_location,
			Err:       fmt.Errorf("%s not found", dwarf.DW_AT_location),
		}
	}

	loc, err := DecodeLocation(location)
	if err != nil {
		extractErr := err.(*ExtractionError)
		extractErr.Parameter = arg.Name
		extractErr.Attribute = dwarf.DW_AT_location
		return Argument{}, extractErr
	}

	arg.Location = loc
	return arg, nil
}

func resolveName(
	entry *dwarf.DebugInfoEntry,
	attr dwarf.AttributeValue,
) (
	string,
	error,
) {
	name, ok, err := entry.CompileUnit.ResolveString(attr.Value)
	if !ok {
		return "", fmt.Errorf(
			"%s is not a string (%s)",
			attr.Attribute,
			attr.Format)
	}
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", attr.Attribute, err)
	}
	return name, nil
}

func resolveAddress(
	entry *dwarf.DebugInfoEntry,
	attr dwarf.AttributeValue,
) (
	elf.FileAddress,
	error,
) {
	switch val := attr.Value.(type) {
	case elf.FileAddress:
		return val, nil
	case dwarf.AddressIndex:
		addr, err := entry.CompileUnit.IndexedAddress(val)
		if err != nil {
			return 0, fmt.Errorf("failed to resolve %s: %w", attr.Attribute, err)
		}
		return addr, nil
	default:
		return 0, fmt.Errorf(
			"%s is not an address (%s)",
			attr.Attribute,
			attr.Format)
	}
}
