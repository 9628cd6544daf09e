package dwarf

import (
	"encoding/binary"
	"fmt"

	"github.com/pattyshack/dwarfx86/elf"
)

const (
	defaultStringOffsetsBase = SectionOffset(8)
	defaultAddressBase       = SectionOffset(8)
)

type ProcessFunc func(*DebugInfoEntry) error

type CompileUnit struct {
	*File
	Start        SectionOffset
	ContentStart SectionOffset
	End          SectionOffset

	Version     int
	UnitType    uint8
	AddressSize int

	AbbreviationIndex SectionOffset
	Content           []byte

	root    *DebugInfoEntry
	entries []*DebugInfoEntry
}

func parseCompileUnit(
	decode *Cursor,
) (
	*CompileUnit,
	error,
) {
	start := SectionOffset(decode.Position)

	size, err := decode.U32()
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). invalid size: %w",
			start,
			err)
	}
	if size == ^uint32(0) {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). 64-bit dwarf format not supported",
			start)
	}
	if size >= 0xfffffff0 {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). reserved unit length (%#x)",
			start,
			size)
	}

	// NOTE: size does not include the size field itself (4-bytes), but
	// include other header fields.
	headerStart := decode.Position

	version, err := decode.U16()
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). invalid version: %w",
			start,
			err)
	}

	unit := &CompileUnit{
		Start:    start,
		Version:  int(version),
		UnitType: DW_UT_compile,
	}

	switch version {
	case 2, 3, 4:
		err = unit.parseHeader(decode)
	case 5:
		err = unit.parseVersion5Header(decode)
	default:
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). dwarf version %d not supported",
			start,
			version)
	}
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). %w",
			start,
			err)
	}

	if unit.AddressSize != 4 && unit.AddressSize != 8 {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). address size %d not supported",
			start,
			unit.AddressSize)
	}

	contentLength := int(size) - (decode.Position - headerStart)
	if contentLength < 0 {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). invalid content length (%d)",
			start,
			contentLength)
	}

	unit.ContentStart = SectionOffset(decode.Position)

	unit.Content, err = decode.Bytes(contentLength)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to parse compile unit (%d). invalid content: %w",
			start,
			err)
	}

	unit.End = SectionOffset(decode.Position)
	return unit, nil
}

func (unit *CompileUnit) parseHeader(decode *Cursor) error {
	abbrevIndex, err := decode.U32()
	if err != nil {
		return fmt.Errorf("invalid abbreviation index: %w", err)
	}

	addrSize, err := decode.U8()
	if err != nil {
		return fmt.Errorf("invalid address size: %w", err)
	}

	unit.AbbreviationIndex = SectionOffset(abbrevIndex)
	unit.AddressSize = int(addrSize)
	return nil
}

func (unit *CompileUnit) parseVersion5Header(decode *Cursor) error {
	unitType, err := decode.U8()
	if err != nil {
		return fmt.Errorf("invalid unit type: %w", err)
	}

	addrSize, err := decode.U8()
	if err != nil {
		return fmt.Errorf("invalid address size: %w", err)
	}

	abbrevIndex, err := decode.U32()
	if err != nil {
		return fmt.Errorf("invalid abbreviation index: %w", err)
	}

	extraHeaderSize := 0
	switch unitType {
	case DW_UT_compile, DW_UT_partial:
	case DW_UT_skeleton, DW_UT_split_compile:
		extraHeaderSize = 8 // dwo id
	case DW_UT_type, DW_UT_split_type:
		extraHeaderSize = 12 // type signature + type offset
	default:
		return fmt.Errorf("unit type (%#x) not supported", unitType)
	}

	_, err = decode.Bytes(extraHeaderSize)
	if err != nil {
		return fmt.Errorf("invalid unit header: %w", err)
	}

	unit.UnitType = unitType
	unit.AddressSize = int(addrSize)
	unit.AbbreviationIndex = SectionOffset(abbrevIndex)
	return nil
}

func (unit *CompileUnit) Contains(offset SectionOffset) bool {
	return unit.Start <= offset && offset < unit.End
}

func (unit *CompileUnit) Root() *DebugInfoEntry {
	return unit.root
}

func (unit *CompileUnit) DebugInfoEntries() []*DebugInfoEntry {
	return unit.entries
}

func (unit *CompileUnit) ForEach(process ProcessFunc) error {
	for _, entry := range unit.entries {
		err := process(entry)
		if err != nil {
			return err
		}
	}

	return nil
}

func (unit *CompileUnit) Visit(enter ProcessFunc, exit ProcessFunc) error {
	if unit.root == nil {
		return nil
	}

	return unit.root.Visit(enter, exit)
}

func (unit *CompileUnit) StringAt(offset StringOffset) (string, error) {
	return unit.File.DebugStrings.StringAt(SectionOffset(offset))
}

func (unit *CompileUnit) LineStringAt(offset LineStringOffset) (string, error) {
	return unit.File.LineStrings.StringAt(SectionOffset(offset))
}

func (unit *CompileUnit) IndexedString(index StringIndex) (string, error) {
	base := defaultStringOffsetsBase
	if unit.root != nil {
		if val, ok := unit.root.Offset(DW_AT_str_offsets_base); ok {
			base = val
		}
	}

	offset, err := unit.File.StringOffsets.EntryAt(base, uint64(index), 4)
	if err != nil {
		return "", err
	}

	return unit.File.DebugStrings.StringAt(SectionOffset(offset))
}

func (unit *CompileUnit) IndexedAddress(
	index AddressIndex,
) (
	elf.FileAddress,
	error,
) {
	base := defaultAddressBase
	if unit.root != nil {
		if val, ok := unit.root.Offset(DW_AT_addr_base); ok {
			base = val
		}
	}

	addr, err := unit.File.Addresses.EntryAt(
		base,
		uint64(index),
		unit.AddressSize)
	if err != nil {
		return 0, err
	}

	return elf.FileAddress(addr), nil
}

// ResolveString resolves any of the string forms (DW_FORM_string, strp,
// line_strp, strx*).  ok is false when the value is not a string form.
func (unit *CompileUnit) ResolveString(
	value interface{},
) (
	string,
	bool,
	error,
) {
	switch val := value.(type) {
	case string:
		return val, true, nil
	case StringOffset:
		str, err := unit.StringAt(val)
		return str, true, err
	case LineStringOffset:
		str, err := unit.LineStringAt(val)
		return str, true, err
	case StringIndex:
		str, err := unit.IndexedString(val)
		return str, true, err
	default:
		return "", false, nil
	}
}

func (unit *CompileUnit) parseDebugInfoEntries(
	abbrevTables map[SectionOffset]AbbreviationTable,
) error {
	abbrevTable, ok := abbrevTables[unit.AbbreviationIndex]
	if !ok {
		return fmt.Errorf(
			"failed to parse DIEs. abbreviation table (%d) not found",
			unit.AbbreviationIndex)
	}

	var root *DebugInfoEntry
	entries := []*DebugInfoEntry{}
	scope := []*DebugInfoEntry{}

	decode := NewCursor(unit.ByteOrder(), unit.Content)
	for !decode.HasReachedEnd() {
		code, entry, err := parseDebugInfoEntry(unit, abbrevTable, decode)
		if err != nil {
			return err
		}

		if code == 0 { // end of scope
			if len(scope) == 0 {
				// Trailing padding after the root DIE is allowed.
				if root != nil {
					continue
				}
				return fmt.Errorf("failed to parse DIEs. too many null DIEs")
			}

			scope = scope[:len(scope)-1]
			continue
		}

		entries = append(entries, entry)

		if root == nil {
			root = entry
		} else if len(scope) > 0 {
			parent := scope[len(scope)-1]
			parent.Children = append(parent.Children, entry)
		} else {
			return fmt.Errorf("failed to parse DIEs. DIE not rooted")
		}

		if entry.HasChildren {
			scope = append(scope, entry)
		}
	}

	if len(scope) != 0 {
		return fmt.Errorf("failed to parse DIEs. not enough null DIEs")
	}

	unit.root = root
	unit.entries = entries

	return nil
}

type InformationSection struct {
	*File

	CompileUnits []*CompileUnit
}

func NewInformationSection(file *elf.File) (*InformationSection, error) {
	content, err := requiredSectionContent(file, ElfDebugInformationSection)
	if err != nil {
		return nil, err
	}

	return NewInformationSectionFromBytes(file.ByteOrder(), content)
}

func NewInformationSectionFromBytes(
	byteOrder binary.ByteOrder,
	content []byte,
) (
	*InformationSection,
	error,
) {
	units := []*CompileUnit{}

	decode := NewCursor(byteOrder, content)
	for !decode.HasReachedEnd() {
		unit, err := parseCompileUnit(decode)
		if err != nil {
			return nil, err
		}

		units = append(units, unit)
	}

	return &InformationSection{
		CompileUnits: units,
	}, nil
}

func (section *InformationSection) SetParent(file *File) {
	section.File = file
	for _, unit := range section.CompileUnits {
		unit.File = file
	}
}

func (section *InformationSection) EntryAt(
	offset SectionOffset,
) (
	*DebugInfoEntry,
	error,
) {
	for _, unit := range section.CompileUnits {
		if !unit.Contains(offset) {
			continue
		}

		entries := unit.entries
		// entries are in section order.
		low, high := 0, len(entries)
		for low < high {
			mid := (low + high) / 2
			if entries[mid].SectionOffset < offset {
				low = mid + 1
			} else {
				high = mid
			}
		}

		if low < len(entries) && entries[low].SectionOffset == offset {
			return entries[low], nil
		}
		break
	}

	return nil, fmt.Errorf("invalid debug info entry location (%d)", offset)
}

func (section *InformationSection) ForEach(process ProcessFunc) error {
	for _, unit := range section.CompileUnits {
		err := unit.ForEach(process)
		if err != nil {
			return err
		}
	}
	return nil
}

func (section *InformationSection) Visit(
	enter ProcessFunc,
	exit ProcessFunc,
) error {
	for _, unit := range section.CompileUnits {
		err := unit.Visit(enter, exit)
		if err != nil {
			return err
		}
	}
	return nil
}
