package dwarf

import (
	"fmt"

	"github.com/pattyshack/dwarfx86/elf"
)

type SectionOffset int

// Attribute value types.  Values that must be resolved through another
// section keep their raw form until the caller asks for them.
type (
	StringOffset     SectionOffset // DW_FORM_strp, offset into .debug_str
	LineStringOffset SectionOffset // DW_FORM_line_strp, offset into .debug_line_str
	StringIndex      uint64        // DW_FORM_strx*, index into .debug_str_offsets
	AddressIndex     uint64        // DW_FORM_addrx*, index into .debug_addr
	Reference        SectionOffset // DW_FORM_ref*, offset into .debug_info
	TypeSignature    uint64        // DW_FORM_ref_sig8
)

func (ref Reference) String() string {
	return fmt.Sprintf("DIE@%08x", int(ref))
}

type File struct {
	*elf.File

	*AbbreviationSection
	*InformationSection

	DebugStrings  *StringSection  // .debug_str
	LineStrings   *StringSection  // .debug_line_str
	StringOffsets *IndexedSection // .debug_str_offsets
	Addresses     *IndexedSection // .debug_addr
}

// NewFile parses the dwarf sections of the elf file, including every compile
// unit's debug info entry tree.  .debug_info, .debug_abbrev and .debug_str
// are required; missing sections are reported as *SectionNotFoundError.
func NewFile(elfFile *elf.File) (*File, error) {
	infoSection, err := NewInformationSection(elfFile)
	if err != nil {
		return nil, err
	}

	abbrevSection, err := NewAbbreviationSection(elfFile)
	if err != nil {
		return nil, err
	}

	strContent, err := requiredSectionContent(elfFile, ElfDebugStringSection)
	if err != nil {
		return nil, err
	}

	lineStrContent, _, err := optionalSectionContent(
		elfFile,
		ElfDebugLineStringSection)
	if err != nil {
		return nil, err
	}

	strOffsetsContent, _, err := optionalSectionContent(
		elfFile,
		ElfDebugStringOffsetsSection)
	if err != nil {
		return nil, err
	}

	addrContent, _, err := optionalSectionContent(
		elfFile,
		ElfDebugAddressSection)
	if err != nil {
		return nil, err
	}

	file := &File{
		File:                elfFile,
		AbbreviationSection: abbrevSection,
		InformationSection:  infoSection,
		DebugStrings: NewStringSectionFromBytes(
			ElfDebugStringSection,
			nonNil(strContent)),
		LineStrings: NewStringSectionFromBytes(
			ElfDebugLineStringSection,
			lineStrContent),
		StringOffsets: NewIndexedSectionFromBytes(
			ElfDebugStringOffsetsSection,
			elfFile.ByteOrder(),
			strOffsetsContent),
		Addresses: NewIndexedSectionFromBytes(
			ElfDebugAddressSection,
			elfFile.ByteOrder(),
			addrContent),
	}
	infoSection.SetParent(file)

	for _, unit := range infoSection.CompileUnits {
		err := unit.parseDebugInfoEntries(abbrevSection.AbbreviationTables)
		if err != nil {
			return nil, fmt.Errorf(
				"failed to parse compile unit (%d): %w",
				unit.Start,
				err)
		}
	}

	return file, nil
}

// An empty (but present) section is still a found section.
func nonNil(content []byte) []byte {
	if content == nil {
		return []byte{}
	}
	return content
}
