package dwarf

import (
	"encoding/binary"
	"fmt"
	"io"
)

// IndexedSection is a dwarf 5 table section (.debug_str_offsets or
// .debug_addr).  Entries are addressed relative to a per compile unit base
// offset (DW_AT_str_offsets_base / DW_AT_addr_base), which points just past
// the table's header.
type IndexedSection struct {
	name      string
	byteOrder binary.ByteOrder
	found     bool
	content   []byte
}

func NewIndexedSectionFromBytes(
	name string,
	byteOrder binary.ByteOrder,
	content []byte,
) *IndexedSection {
	return &IndexedSection{
		name:      name,
		byteOrder: byteOrder,
		found:     content != nil,
		content:   content,
	}
}

func (section *IndexedSection) EntryAt(
	base SectionOffset,
	index uint64,
	entrySize int,
) (
	uint64,
	error,
) {
	if !section.found {
		return 0, fmt.Errorf("elf %s section not found", section.name)
	}

	if index >= uint64(len(section.content)) {
		return 0, fmt.Errorf(
			"out of bound %s index (%d, base %d)",
			section.name,
			index,
			base)
	}

	decode := NewCursor(section.byteOrder, section.content)
	_, err := decode.Seek(int(base)+int(index)*entrySize, io.SeekStart)
	if err != nil {
		return 0, fmt.Errorf(
			"invalid %s index (%d, base %d): %w",
			section.name,
			index,
			base,
			err)
	}

	var value uint64
	switch entrySize {
	case 4:
		var val uint32
		val, err = decode.U32()
		value = uint64(val)
	case 8:
		value, err = decode.U64()
	default:
		return 0, fmt.Errorf("unsupported %s entry size (%d)", section.name, entrySize)
	}

	if err != nil {
		return 0, fmt.Errorf(
			"invalid %s index (%d, base %d): %w",
			section.name,
			index,
			base,
			err)
	}

	return value, nil
}
