package dwarfx86

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pattyshack/dwarfx86/dwarf"
)

var (
	ErrParse          = errors.New("parse failure")
	ErrInvalidFile    = errors.New("invalid file")
	ErrMissingSection = errors.New("missing section")
	ErrIO             = errors.New("io failure")

	ErrMissingAttribute        = errors.New("missing attribute")
	ErrUnexpectedAttributeType = errors.New("unexpected attribute type")
	ErrInvalidLocation         = errors.New("invalid location")
	ErrInvalidRegister         = errors.New("invalid register")
)

type LoadErrorKind int

const (
	ParseFailure = LoadErrorKind(iota)
	InvalidFile
	MissingSection
	IOFailure
)

func (kind LoadErrorKind) sentinel() error {
	switch kind {
	case ParseFailure:
		return ErrParse
	case InvalidFile:
		return ErrInvalidFile
	case MissingSection:
		return ErrMissingSection
	case IOFailure:
		return ErrIO
	default:
		return nil
	}
}

func (kind LoadErrorKind) String() string {
	sentinel := kind.sentinel()
	if sentinel == nil {
		return fmt.Sprintf("LoadErrorKindUnknown(%d)", int(kind))
	}
	return sentinel.Error()
}

// LoadError is returned by LoadExecutable and LoadExecutableBytes.
type LoadError struct {
	Kind LoadErrorKind
	Path string

	// Only set for MissingSection.
	Section string

	Err error
}

func (err *LoadError) Error() string {
	builder := &strings.Builder{}
	fmt.Fprintf(builder, "failed to load %s: %s", err.Path, err.Kind)
	if err.Section != "" {
		fmt.Fprintf(builder, " (%s)", err.Section)
	}
	if err.Err != nil {
		fmt.Fprintf(builder, ": %s", err.Err)
	}
	return builder.String()
}

func (err *LoadError) Unwrap() error {
	return err.Err
}

func (err *LoadError) Is(target error) bool {
	return target != nil && target == err.Kind.sentinel()
}

type ExtractionErrorKind int

const (
	MissingAttribute = ExtractionErrorKind(iota)
	UnexpectedAttributeType
	InvalidLocation
	InvalidRegister
)

func (kind ExtractionErrorKind) sentinel() error {
	switch kind {
	case MissingAttribute:
		return ErrMissingAttribute
	case UnexpectedAttributeType:
		return ErrUnexpectedAttributeType
	case InvalidLocation:
		return ErrInvalidLocation
	case InvalidRegister:
		return ErrInvalidRegister
	default:
		return nil
	}
}

func (kind ExtractionErrorKind) String() string {
	sentinel := kind.sentinel()
	if sentinel == nil {
		return fmt.Sprintf("ExtractionErrorKindUnknown(%d)", int(kind))
	}
	return sentinel.Error()
}

// ExtractionError is returned by GetFunctions (and collected by
// GetFunctionsBestEffort).  Fields that do not apply to the error kind are
// left zeroed.
type ExtractionError struct {
	Kind ExtractionErrorKind

	// The offending subprogram / formal parameter entries.  Names are empty
	// when unknown (e.g., the name attribute itself is missing).
	// ParameterEntry is zero for subprogram level errors.
	Function       string
	Parameter      string
	Entry          dwarf.SectionOffset
	ParameterEntry dwarf.SectionOffset

	// Set for MissingAttribute and UnexpectedAttributeType.
	Attribute dwarf.Attribute
	Format    dwarf.Format

	// Set for InvalidLocation and InvalidRegister.
	Opcode   uint8
	Register uint64

	Err error
}

func (err *ExtractionError) Error() string {
	builder := &strings.Builder{}

	if err.Function != "" {
		fmt.Fprintf(builder, "function %s", err.Function)
	} else {
		fmt.Fprintf(builder, "subprogram (%#x)", int(err.Entry))
	}

	if err.Parameter != "" {
		fmt.Fprintf(builder, ", parameter %s", err.Parameter)
	} else if err.ParameterEntry != 0 {
		fmt.Fprintf(builder, ", parameter (%#x)", int(err.ParameterEntry))
	}

	fmt.Fprintf(builder, ": %s", err.Kind)
	if err.Err != nil {
		fmt.Fprintf(builder, ": %s", err.Err)
	}
	return builder.String()
}

func (err *ExtractionError) Unwrap() error {
	return err.Err
}

func (err *ExtractionError) Is(target error) bool {
	return target != nil && target == err.Kind.sentinel()
}
