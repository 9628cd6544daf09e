// Package dwarftest synthesizes dwarf sections and minimal x86-64 elf
// executables for tests.
package dwarftest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-delve/delve/pkg/dwarf/leb128"

	"github.com/pattyshack/dwarfx86/dwarf"
)

const (
	// Size of the .debug_str_offsets / .debug_addr table headers.  Indexed
	// entries start right after the header, which matches the default base
	// used when a unit has no DW_AT_str_offsets_base / DW_AT_addr_base.
	tableHeaderSize = 8
)

type Attribute struct {
	dwarf.Attribute
	dwarf.Format

	// Value encoding depends on the format:
	//  - string forms (string, strp, line_strp, strx*): string.  strp also
	//    accepts a raw uint32 offset.
	//  - addr / addrx*: address (uint64).  addrx* appends the address to
	//    .debug_addr.
	//  - exprloc / block*: []byte.
	//  - sdata / implicit_const: int64 (or int).
	//  - everything else: unsigned integer.
	Value interface{}
}

type Entry struct {
	dwarf.Tag
	Attributes []Attribute
	Children   []*Entry

	// Emit DW_CHILDREN_yes even when there are no children.
	ForceHasChildren bool
}

func (entry *Entry) hasChildren() bool {
	return entry.ForceHasChildren || len(entry.Children) > 0
}

type Unit struct {
	Version int // defaults to 4
	Root    *Entry
}

// Sections holds the synthesized dwarf section content.  Optional sections
// are nil when unused.
type Sections struct {
	Abbreviation  []byte
	Information   []byte
	Strings       []byte
	LineStrings   []byte
	StringOffsets []byte
	Addresses     []byte
}

type builder struct {
	abbrev     *bytes.Buffer
	info       *bytes.Buffer
	strs       *bytes.Buffer
	lineStrs   *bytes.Buffer
	strOffsets *bytes.Buffer
	addrs      *bytes.Buffer

	strOffsetMap     map[string]uint32
	lineStrOffsetMap map[string]uint32

	numStrIndices  uint64
	numAddrIndices uint64
}

// BuildSections encodes the units (in order) into dwarf sections.  Each unit
// gets its own abbreviation table with one abbreviation per entry.
func BuildSections(units ...*Unit) (*Sections, error) {
	b := &builder{
		abbrev:           &bytes.Buffer{},
		info:             &bytes.Buffer{},
		strs:             &bytes.Buffer{},
		lineStrs:         &bytes.Buffer{},
		strOffsets:       &bytes.Buffer{},
		addrs:            &bytes.Buffer{},
		strOffsetMap:     map[string]uint32{},
		lineStrOffsetMap: map[string]uint32{},
	}

	// Offset 0 is conventionally the empty string.
	b.strs.WriteByte(0)
	b.strOffsetMap[""] = 0

	for idx, unit := range units {
		err := b.writeUnit(unit)
		if err != nil {
			return nil, fmt.Errorf("failed to build unit (%d): %w", idx, err)
		}
	}

	sections := &Sections{
		Abbreviation: b.abbrev.Bytes(),
		Information:  b.info.Bytes(),
		Strings:      b.strs.Bytes(),
	}

	if b.lineStrs.Len() > 0 {
		sections.LineStrings = b.lineStrs.Bytes()
	}

	if b.numStrIndices > 0 {
		sections.StringOffsets = tableWithHeader(
			b.strOffsets.Bytes(),
			0)
	}

	if b.numAddrIndices > 0 {
		sections.Addresses = tableWithHeader(b.addrs.Bytes(), 8)
	}

	return sections, nil
}

func tableWithHeader(entries []byte, addressSize byte) []byte {
	result := binary.LittleEndian.AppendUint32(
		nil,
		uint32(len(entries)+tableHeaderSize-4))
	result = binary.LittleEndian.AppendUint16(result, 5)
	result = append(result, addressSize, 0)
	return append(result, entries...)
}

func (b *builder) writeUnit(unit *Unit) error {
	version := unit.Version
	if version == 0 {
		version = 4
	}

	if unit.Root == nil {
		return fmt.Errorf("unit has no root entry")
	}

	abbrevOffset := uint32(b.abbrev.Len())
	nextCode := uint64(1)

	content := &bytes.Buffer{}
	err := b.writeEntry(content, unit.Root, &nextCode)
	if err != nil {
		return err
	}
	b.abbrev.WriteByte(0) // end of table

	header := &bytes.Buffer{}
	writeU16(header, uint16(version))
	switch version {
	case 2, 3, 4:
		writeU32(header, abbrevOffset)
		header.WriteByte(8)
	case 5:
		header.WriteByte(dwarf.DW_UT_compile)
		header.WriteByte(8)
		writeU32(header, abbrevOffset)
	default:
		return fmt.Errorf("unsupported version (%d)", version)
	}

	writeU32(b.info, uint32(header.Len()+content.Len()))
	b.info.Write(header.Bytes())
	b.info.Write(content.Bytes())
	return nil
}

func (b *builder) writeEntry(
	content *bytes.Buffer,
	entry *Entry,
	nextCode *uint64,
) error {
	code := *nextCode
	*nextCode++

	leb128.EncodeUnsigned(b.abbrev, code)
	leb128.EncodeUnsigned(b.abbrev, uint64(entry.Tag))
	if entry.hasChildren() {
		b.abbrev.WriteByte(dwarf.DW_CHILDREN_yes)
	} else {
		b.abbrev.WriteByte(dwarf.DW_CHILDREN_no)
	}

	for _, attr := range entry.Attributes {
		leb128.EncodeUnsigned(b.abbrev, uint64(attr.Attribute))
		leb128.EncodeUnsigned(b.abbrev, uint64(attr.Format))
		if attr.Format == dwarf.DW_FORM_implicit_const {
			value, err := toInt(attr.Value)
			if err != nil {
				return fmt.Errorf("invalid %s value: %w", attr.Attribute, err)
			}
			leb128.EncodeSigned(b.abbrev, value)
		}
	}
	b.abbrev.Write([]byte{0, 0})

	leb128.EncodeUnsigned(content, code)
	for _, attr := range entry.Attributes {
		err := b.writeValue(content, attr)
		if err != nil {
			return fmt.Errorf(
				"failed to write %s (%s): %w",
				attr.Attribute,
				attr.Format,
				err)
		}
	}

	if !entry.hasChildren() {
		return nil
	}

	for _, child := range entry.Children {
		err := b.writeEntry(content, child, nextCode)
		if err != nil {
			return err
		}
	}

	content.WriteByte(0) // end of children
	return nil
}

func (b *builder) writeValue(content *bytes.Buffer, attr Attribute) error {
	switch attr.Format {
	case dwarf.DW_FORM_flag_present, dwarf.DW_FORM_implicit_const:
		return nil

	case dwarf.DW_FORM_string:
		str, ok := attr.Value.(string)
		if !ok {
			return fmt.Errorf("expected string, found %T", attr.Value)
		}
		content.WriteString(str)
		content.WriteByte(0)
		return nil

	case dwarf.DW_FORM_strp:
		switch val := attr.Value.(type) {
		case string:
			writeU32(content, b.internString(val))
		case uint32:
			writeU32(content, val)
		default:
			return fmt.Errorf("expected string or uint32, found %T", attr.Value)
		}
		return nil

	case dwarf.DW_FORM_line_strp:
		str, ok := attr.Value.(string)
		if !ok {
			return fmt.Errorf("expected string, found %T", attr.Value)
		}
		writeU32(content, b.internLineString(str))
		return nil

	case dwarf.DW_FORM_strx,
		dwarf.DW_FORM_strx1,
		dwarf.DW_FORM_strx2,
		dwarf.DW_FORM_strx3,
		dwarf.DW_FORM_strx4:

		str, ok := attr.Value.(string)
		if !ok {
			return fmt.Errorf("expected string, found %T", attr.Value)
		}

		writeU32(b.strOffsets, b.internString(str))
		index := b.numStrIndices
		b.numStrIndices++

		return writeIndex(content, attr.Format, index)

	case dwarf.DW_FORM_addrx,
		dwarf.DW_FORM_addrx1,
		dwarf.DW_FORM_addrx2,
		dwarf.DW_FORM_addrx3,
		dwarf.DW_FORM_addrx4:

		addr, err := toUint(attr.Value)
		if err != nil {
			return err
		}

		writeU64(b.addrs, addr)
		index := b.numAddrIndices
		b.numAddrIndices++

		return writeIndex(content, attr.Format, index)

	case dwarf.DW_FORM_exprloc,
		dwarf.DW_FORM_block,
		dwarf.DW_FORM_block1:

		block, ok := attr.Value.([]byte)
		if !ok {
			return fmt.Errorf("expected []byte, found %T", attr.Value)
		}

		if attr.Format == dwarf.DW_FORM_block1 {
			if len(block) > 0xff {
				return fmt.Errorf("block too large (%d)", len(block))
			}
			content.WriteByte(byte(len(block)))
		} else {
			leb128.EncodeUnsigned(content, uint64(len(block)))
		}
		content.Write(block)
		return nil

	case dwarf.DW_FORM_sdata:
		value, err := toInt(attr.Value)
		if err != nil {
			return err
		}
		leb128.EncodeSigned(content, value)
		return nil
	}

	value, err := toUint(attr.Value)
	if err != nil {
		return err
	}

	switch attr.Format {
	case dwarf.DW_FORM_flag, dwarf.DW_FORM_data1, dwarf.DW_FORM_ref1:
		content.WriteByte(byte(value))
	case dwarf.DW_FORM_data2, dwarf.DW_FORM_ref2:
		writeU16(content, uint16(value))
	case dwarf.DW_FORM_data4,
		dwarf.DW_FORM_ref4,
		dwarf.DW_FORM_sec_offset,
		dwarf.DW_FORM_ref_addr:

		writeU32(content, uint32(value))
	case dwarf.DW_FORM_addr, dwarf.DW_FORM_data8, dwarf.DW_FORM_ref8:
		writeU64(content, value)
	case dwarf.DW_FORM_udata, dwarf.DW_FORM_ref_udata:
		leb128.EncodeUnsigned(content, value)
	default:
		return fmt.Errorf("unsupported format")
	}

	return nil
}

func (b *builder) internString(str string) uint32 {
	offset, ok := b.strOffsetMap[str]
	if ok {
		return offset
	}

	offset = uint32(b.strs.Len())
	b.strs.WriteString(str)
	b.strs.WriteByte(0)
	b.strOffsetMap[str] = offset
	return offset
}

func (b *builder) internLineString(str string) uint32 {
	offset, ok := b.lineStrOffsetMap[str]
	if ok {
		return offset
	}

	offset = uint32(b.lineStrs.Len())
	b.lineStrs.WriteString(str)
	b.lineStrs.WriteByte(0)
	b.lineStrOffsetMap[str] = offset
	return offset
}

func writeIndex(content *bytes.Buffer, format dwarf.Format, index uint64) error {
	switch format {
	case dwarf.DW_FORM_strx, dwarf.DW_FORM_addrx:
		leb128.EncodeUnsigned(content, index)
	case dwarf.DW_FORM_strx1, dwarf.DW_FORM_addrx1:
		if index > 0xff {
			return fmt.Errorf("index (%d) too large", index)
		}
		content.WriteByte(byte(index))
	case dwarf.DW_FORM_strx2, dwarf.DW_FORM_addrx2:
		writeU16(content, uint16(index))
	case dwarf.DW_FORM_strx3, dwarf.DW_FORM_addrx3:
		content.Write([]byte{byte(index), byte(index >> 8), byte(index >> 16)})
	case dwarf.DW_FORM_strx4, dwarf.DW_FORM_addrx4:
		writeU32(content, uint32(index))
	}
	return nil
}

func writeU16(buffer *bytes.Buffer, value uint16) {
	buffer.Write(binary.LittleEndian.AppendUint16(nil, value))
}

func writeU32(buffer *bytes.Buffer, value uint32) {
	buffer.Write(binary.LittleEndian.AppendUint32(nil, value))
}

func writeU64(buffer *bytes.Buffer, value uint64) {
	buffer.Write(binary.LittleEndian.AppendUint64(nil, value))
}

func toUint(value interface{}) (uint64, error) {
	switch val := value.(type) {
	case int:
		return uint64(val), nil
	case uint8:
		return uint64(val), nil
	case uint16:
		return uint64(val), nil
	case uint32:
		return uint64(val), nil
	case uint64:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	default:
		return 0, fmt.Errorf("expected unsigned integer, found %T", value)
	}
}

func toInt(value interface{}) (int64, error) {
	switch val := value.(type) {
	case int:
		return int64(val), nil
	case int64:
		return val, nil
	default:
		return 0, fmt.Errorf("expected signed integer, found %T", value)
	}
}
