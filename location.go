package dwarfx86

import (
	"encoding/binary"
	"fmt"

	"github.com/pattyshack/dwarfx86/dwarf"
)

type LocationKind int

const (
	RegisterLocation = LocationKind(iota)
	FrameOffsetLocation
)

func (kind LocationKind) String() string {
	switch kind {
	case RegisterLocation:
		return "register"
	case FrameOffsetLocation:
		return "frame offset"
	default:
		return fmt.Sprintf("LocationKindUnknown(%d)", int(kind))
	}
}

// ArgumentLocation is where an argument lives at function entry.  Register
// is only meaningful for RegisterLocation, and Offset is only meaningful for
// FrameOffsetLocation.
type ArgumentLocation struct {
	Kind     LocationKind
	Register X86Register
	Offset   int64
}

func NewRegisterLocation(reg X86Register) ArgumentLocation {
	return ArgumentLocation{
		Kind:     RegisterLocation,
		Register: reg,
	}
}

func NewFrameOffsetLocation(offset int64) ArgumentLocation {
	return ArgumentLocation{
		Kind:   FrameOffsetLocation,
		Offset: offset,
	}
}

func (loc ArgumentLocation) String() string {
	switch loc.Kind {
	case RegisterLocation:
		return fmt.Sprintf("register %s", loc.Register)
	case FrameOffsetLocation:
		return fmt.Sprintf("frame offset %d", loc.Offset)
	default:
		return loc.Kind.String()
	}
}

// DecodeLocation decodes a single DW_OP_reg*, DW_OP_regx or DW_OP_fbreg
// location expression.  Bytes following the first operation are ignored.
//
// Errors are *ExtractionError with kind InvalidLocation or InvalidRegister.
// The function and parameter fields are left for the caller to fill in.
func DecodeLocation(expression []byte) (ArgumentLocation, error) {
	if len(expression) == 0 {
		return ArgumentLocation{}, &ExtractionError{
			Kind: InvalidLocation,
			Err:  fmt.Errorf("empty location expression"),
		}
	}

	opByte := expression[0]
	op := dwarf.Operation(opByte)

	// LEB128 operands have no byte order.  The cursor requires one anyway.
	decode := dwarf.NewCursor(binary.LittleEndian, expression[1:])

	switch {
	case dwarf.DW_OP_reg0 <= op && op <= dwarf.DW_OP_reg31:
		return registerLocation(op, uint64(op-dwarf.DW_OP_reg0))

	case op == dwarf.DW_OP_regx:
		id, err := decode.ULEB128(64)
		if err != nil {
			return ArgumentLocation{}, &ExtractionError{
				Kind:   InvalidLocation,
				Opcode: opByte,
				Err:    fmt.Errorf("invalid %s operand: %w", op, err),
			}
		}
		return registerLocation(op, id)

	case op == dwarf.DW_OP_fbreg:
		offset, err := decode.SLEB128(64)
		if err != nil {
			return ArgumentLocation{}, &ExtractionError{
				Kind:   InvalidLocation,
				Opcode: opByte,
				Err:    fmt.Errorf("invalid %s operand: %w", op, err),
			}
		}
		return NewFrameOffsetLocation(offset), nil

	default:
		return ArgumentLocation{}, &ExtractionError{
			Kind:   InvalidLocation,
			Opcode: opByte,
			Err:    fmt.Errorf("unsupported location opcode %#02x", opByte),
		}
	}
}

func registerLocation(
	op dwarf.Operation,
	id uint64,
) (
	ArgumentLocation,
	error,
) {
	reg, ok := RegisterFromDwarfId(id)
	if !ok {
		return ArgumentLocation{}, &ExtractionError{
			Kind:     InvalidRegister,
			Opcode:   uint8(op),
			Register: id,
			Err: fmt.Errorf(
				"%s register number %d is not a general purpose register",
				op,
				id),
		}
	}

	return NewRegisterLocation(reg), nil
}
