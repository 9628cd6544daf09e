package dwarf

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/pattyshack/dwarfx86/elf"
)

const (
	signExtensionMask = ^uint64(0)
)

var (
	ErrLEB128Truncated = errors.New("LEB128 not terminated")
	ErrLEB128Overflow  = errors.New("LEB128 overflow")
)

type Cursor struct {
	binary.ByteOrder

	Content  []byte
	Position int
}

func NewCursor(
	byteOrder binary.ByteOrder,
	content []byte,
) *Cursor {
	return &Cursor{
		ByteOrder: byteOrder,
		Content:   content,
		Position:  0,
	}
}

func (cursor *Cursor) remaining() []byte {
	return cursor.Content[cursor.Position:]
}

func (cursor *Cursor) HasReachedEnd() bool {
	return len(cursor.remaining()) == 0
}

func (cursor *Cursor) Seek(offset int, whence int) (int, error) {
	pos := 0
	switch whence {
	case io.SeekStart:
		pos = offset
	case io.SeekCurrent:
		pos = cursor.Position + offset
	case io.SeekEnd:
		pos = len(cursor.Content) + offset
	}

	if pos < 0 || len(cursor.Content) < pos {
		return 0, fmt.Errorf("out of bound seek (%d)", pos)
	}

	cursor.Position = pos
	return pos, nil
}

func (cursor *Cursor) Bytes(size int) ([]byte, error) {
	content := cursor.remaining()
	if size < 0 || len(content) < size {
		return nil, fmt.Errorf(
			"out of bound slice %d [%d:%d+%d]",
			len(content),
			cursor.Position,
			cursor.Position,
			size)
	}

	// Copy so that decoded values never alias the section buffer.
	result := make([]byte, size)
	copy(result, content[:size])
	cursor.Position += size
	return result, nil
}

func (cursor *Cursor) String() (string, error) {
	content := cursor.remaining()
	if len(content) == 0 {
		return "", fmt.Errorf("cannot decode string: %w", io.EOF)
	}

	for idx, char := range content {
		if char == 0 {
			cursor.Position += idx + 1 // +1 for trailing \0
			return string(content[:idx]), nil
		}
	}

	return "", fmt.Errorf("string not terminated (%d)", cursor.Position)
}

func (cursor *Cursor) decode(out interface{}, name string) error {
	n, err := binary.Decode(cursor.remaining(), cursor.ByteOrder, out)
	if err != nil {
		return fmt.Errorf(
			"failed to decode %s (%d): %w",
			name,
			cursor.Position,
			err)
	}

	cursor.Position += n
	return nil
}

func (cursor *Cursor) U8() (uint8, error) {
	var result uint8
	err := cursor.decode(&result, "U8")
	return result, err
}

func (cursor *Cursor) U16() (uint16, error) {
	var result uint16
	err := cursor.decode(&result, "U16")
	return result, err
}

// U24 is only used by DW_FORM_strx3 / DW_FORM_addrx3.
func (cursor *Cursor) U24() (uint32, error) {
	content, err := cursor.Bytes(3)
	if err != nil {
		return 0, fmt.Errorf("failed to decode U24: %w", err)
	}

	if cursor.ByteOrder == binary.BigEndian {
		return uint32(content[0])<<16 | uint32(content[1])<<8 | uint32(content[2]), nil
	}
	return uint32(content[2])<<16 | uint32(content[1])<<8 | uint32(content[0]), nil
}

func (cursor *Cursor) U32() (uint32, error) {
	var result uint32
	err := cursor.decode(&result, "U32")
	return result, err
}

func (cursor *Cursor) U64() (uint64, error) {
	var result uint64
	err := cursor.decode(&result, "U64")
	return result, err
}

// uleb128 decodes the raw 7-bit chunks.  The cursor only advances on
// success.
func (cursor *Cursor) uleb128(
	bitSize int,
) (
	uint64, // decoded uint
	int, // shift
	byte, // upper byte
	error,
) {
	content := cursor.remaining()
	if len(content) == 0 {
		return 0, 0, 0, fmt.Errorf("cannot decode LEB128: %w", io.EOF)
	}

	result := uint64(0)
	shift := 0
	for idx, current := range content {
		if shift >= bitSize {
			return 0, 0, 0, fmt.Errorf(
				"%w: more than %d bits (%d)",
				ErrLEB128Overflow,
				bitSize,
				cursor.Position)
		}

		result |= uint64(current&0x7f) << shift
		shift += 7

		if (current & 0x80) == 0 {
			cursor.Position += idx + 1
			return result, shift, current, nil
		}
	}

	return 0, 0, 0, fmt.Errorf("%w (%d)", ErrLEB128Truncated, cursor.Position)
}

func (cursor *Cursor) ULEB128(bitSize int) (uint64, error) {
	start := cursor.Position
	result, shift, upper, err := cursor.uleb128(bitSize)
	if err != nil {
		return 0, err
	}

	if shift > bitSize {
		// Only the lowest (bitSize - (shift - 7)) bits of the final chunk are
		// usable.  The rest must be zero.
		usable := uint(bitSize - (shift - 7))
		if (upper&0x7f)>>usable != 0 {
			cursor.Position = start
			return 0, fmt.Errorf(
				"%w: unsigned value exceeds %d bits (%d)",
				ErrLEB128Overflow,
				bitSize,
				start)
		}
	}

	return result, nil
}

func (cursor *Cursor) SLEB128(bitSize int) (int64, error) {
	start := cursor.Position
	result, shift, upper, err := cursor.uleb128(bitSize)
	if err != nil {
		return 0, err
	}

	if shift > bitSize {
		// The unusable bits of the final chunk, together with the sign bit,
		// must all be equal.
		usable := uint(bitSize - (shift - 7))
		mask := byte(0x7f) &^ (byte(1)<<(usable-1) - 1)
		bits := upper & mask
		if bits != 0 && bits != mask {
			cursor.Position = start
			return 0, fmt.Errorf(
				"%w: signed value exceeds %d bits (%d)",
				ErrLEB128Overflow,
				bitSize,
				start)
		}
	}

	if shift < 64 && (upper&0x40) != 0 {
		result |= signExtensionMask << shift
	}

	return int64(result), nil
}

func (cursor *Cursor) Value(
	unit *CompileUnit,
	spec AttributeSpec,
) (
	interface{},
	error,
) {
	val, err := cursor.value(unit, spec, spec.Format)
	if err != nil {
		return nil, fmt.Errorf("failed to decode value (%s): %w", spec.Format, err)
	}

	return val, nil
}

func (cursor *Cursor) value(
	unit *CompileUnit,
	spec AttributeSpec,
	format Format,
) (
	interface{},
	error,
) {
	switch format {
	case DW_FORM_flag_present: // NOTE: this has no encoded value bytes
		return true, nil

	case DW_FORM_implicit_const: // value is stored in the abbreviation
		return spec.ImplicitConst, nil

	case DW_FORM_sdata:
		return cursor.SLEB128(64)

	case DW_FORM_string:
		return cursor.String()

	case DW_FORM_data16:
		return cursor.Bytes(16)

	case DW_FORM_ref_sig8:
		val, err := cursor.U64()
		return TypeSignature(val), err
	}

	uintField, err := cursor.uintField(format, unit.AddressSize)
	if err != nil {
		return nil, err
	}

	switch format {
	case DW_FORM_addr:
		return elf.FileAddress(uintField), nil

	case DW_FORM_addrx,
		DW_FORM_addrx1,
		DW_FORM_addrx2,
		DW_FORM_addrx3,
		DW_FORM_addrx4:

		return AddressIndex(uintField), nil

	case DW_FORM_sec_offset:
		return SectionOffset(uintField), nil

	case DW_FORM_flag:
		return uintField != 0, nil

	case DW_FORM_data1,
		DW_FORM_data2,
		DW_FORM_data4,
		DW_FORM_data8,
		DW_FORM_udata,
		DW_FORM_loclistx,
		DW_FORM_rnglistx:

		return uintField, nil

	case DW_FORM_block1,
		DW_FORM_block2,
		DW_FORM_block4,
		DW_FORM_block,
		DW_FORM_exprloc:

		return cursor.Bytes(int(uintField))

	case DW_FORM_strp:
		return StringOffset(uintField), nil

	case DW_FORM_line_strp:
		return LineStringOffset(uintField), nil

	case DW_FORM_strx,
		DW_FORM_strx1,
		DW_FORM_strx2,
		DW_FORM_strx3,
		DW_FORM_strx4:

		return StringIndex(uintField), nil

	case DW_FORM_ref1,
		DW_FORM_ref2,
		DW_FORM_ref4,
		DW_FORM_ref8,
		DW_FORM_ref_udata:

		return Reference(unit.Start + SectionOffset(uintField)), nil

	case DW_FORM_ref_addr:
		return Reference(uintField), nil

	case DW_FORM_indirect:
		return cursor.value(unit, spec, Format(uintField))

	default:
		return nil, fmt.Errorf("unsupported format (%s)", format)
	}
}

// This return 0 if the format's first field does not involve uint.
func (cursor *Cursor) uintField(format Format, addressSize int) (uint64, error) {
	switch format {

	case DW_FORM_flag,
		DW_FORM_data1,
		DW_FORM_block1,
		DW_FORM_ref1,
		DW_FORM_strx1,
		DW_FORM_addrx1:

		val, err := cursor.U8()
		return uint64(val), err

	case DW_FORM_data2,
		DW_FORM_block2,
		DW_FORM_ref2,
		DW_FORM_strx2,
		DW_FORM_addrx2:

		val, err := cursor.U16()
		return uint64(val), err

	case DW_FORM_strx3,
		DW_FORM_addrx3:

		val, err := cursor.U24()
		return uint64(val), err

	case DW_FORM_sec_offset,
		DW_FORM_data4,
		DW_FORM_block4,
		DW_FORM_strp,
		DW_FORM_line_strp,
		DW_FORM_ref4,
		DW_FORM_ref_addr,
		DW_FORM_strx4,
		DW_FORM_addrx4:

		val, err := cursor.U32()
		return uint64(val), err

	case DW_FORM_addr:
		if addressSize == 4 {
			val, err := cursor.U32()
			return uint64(val), err
		}
		return cursor.U64()

	case DW_FORM_data8,
		DW_FORM_ref8:

		return cursor.U64()

	case DW_FORM_block,
		DW_FORM_exprloc,
		DW_FORM_ref_udata,
		DW_FORM_strx,
		DW_FORM_addrx:

		return cursor.ULEB128(32)

	case DW_FORM_udata,
		DW_FORM_loclistx,
		DW_FORM_rnglistx,
		DW_FORM_indirect:

		return cursor.ULEB128(64)
	}

	return 0, nil
}
