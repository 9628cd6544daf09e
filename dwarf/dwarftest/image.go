package dwarftest

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"

	"github.com/pattyshack/dwarfx86/dwarf"
	"github.com/pattyshack/dwarfx86/elf"
)

const (
	TextAddress = uint64(0x401000)

	sectionAlignment = 8
)

type Section struct {
	Name    string
	Type    elf.SectionType
	Flags   elf.SectionFlags
	Address uint64
	Content []byte

	// When set, the content is compressed and prefixed by an Elf64_Chdr.
	Compression elf.CompressionType
}

// DebugSections returns the non-empty dwarf sections as elf sections.
func (sections *Sections) DebugSections() []Section {
	named := []struct {
		name    string
		content []byte
	}{
		{dwarf.ElfDebugAbbreviationSection, sections.Abbreviation},
		{dwarf.ElfDebugInformationSection, sections.Information},
		{dwarf.ElfDebugStringSection, sections.Strings},
		{dwarf.ElfDebugLineStringSection, sections.LineStrings},
		{dwarf.ElfDebugStringOffsetsSection, sections.StringOffsets},
		{dwarf.ElfDebugAddressSection, sections.Addresses},
	}

	result := []Section{}
	for _, section := range named {
		if section.content == nil {
			continue
		}

		result = append(
			result,
			Section{
				Name:    section.name,
				Type:    elf.SectionTypeProgramDefinedInfo,
				Content: section.content,
			})
	}
	return result
}

// TextSection returns an executable .text section loaded at TextAddress.
func TextSection(code []byte) Section {
	return Section{
		Name: ".text",
		Type: elf.SectionTypeProgramDefinedInfo,
		Flags: elf.SectionOccupiesMemory |
			elf.SectionContainsInstructions,
		Address: TextAddress,
		Content: code,
	}
}

// BuildImage lays out a little endian x86-64 executable containing the
// given sections (plus the null section and .shstrtab).  There are no
// program headers.
func BuildImage(sections ...Section) ([]byte, error) {
	names := &bytes.Buffer{}
	names.WriteByte(0)

	nameIndex := func(name string) uint32 {
		idx := uint32(names.Len())
		names.WriteString(name)
		names.WriteByte(0)
		return idx
	}

	headers := []elf.SectionHeaderEntry{{}} // index 0 is always undefined
	contents := [][]byte{nil}

	for _, section := range sections {
		content := section.Content
		flags := section.Flags
		if section.Compression != 0 {
			compressed, err := compress(section.Compression, content)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to compress %s: %w",
					section.Name,
					err)
			}
			content = compressed
			flags |= elf.SectionIsCompressed
		}

		headers = append(
			headers,
			elf.SectionHeaderEntry{
				NameIndex:        nameIndex(section.Name),
				SectionType:      section.Type,
				SectionFlags:     flags,
				Address:          section.Address,
				Size:             uint64(len(content)),
				AddressAlignment: 1,
			})
		contents = append(contents, content)
	}

	shstrtabIndex := len(headers)
	shstrtabName := nameIndex(elf.SectionStringTableName)
	headers = append(
		headers,
		elf.SectionHeaderEntry{
			NameIndex:        shstrtabName,
			SectionType:      elf.SectionTypeStringTable,
			Size:             uint64(names.Len()),
			AddressAlignment: 1,
		})
	contents = append(contents, names.Bytes())

	body := &bytes.Buffer{}
	offset := uint64(elf.Elf64HeaderSize)
	for idx, content := range contents {
		if idx == 0 {
			continue
		}

		headers[idx].Offset = offset
		body.Write(content)
		offset += uint64(len(content))

		for offset%sectionAlignment != 0 {
			body.WriteByte(0)
			offset++
		}
	}

	header := elf.ElfHeader{
		Identifier: elf.Identifier{
			Class:              elf.Class64,
			DataEncoding:       elf.DataEncodingTwosComplementLittleEndian,
			IdentifierVersion:  elf.IdentifierVersion,
			OperatingSystemABI: elf.OperatingSystemABIUnixSystemV,
			ABIVersion:         elf.ABIVersion,
		},
		FileType:                elf.FileTypeExecutable,
		MachineArchitecture:     elf.MachineArchitectureX86_64,
		FormatVersion:           elf.FormatVersion,
		EntryPointAddress:       TextAddress,
		SectionHeaderOffset:     offset,
		ElfHeaderSize:           elf.Elf64HeaderSize,
		SectionHeaderEntrySize:  elf.Elf64SectionHeaderEntrySize,
		NumSectionHeaderEntries: uint16(len(headers)),
		SectionStringTableIndex: elf.SectionIndex(shstrtabIndex),
	}
	copy(header.Magic[:], elf.IdentifierMagic)

	image := &bytes.Buffer{}
	err := binary.Write(image, binary.LittleEndian, header)
	if err != nil {
		return nil, err
	}

	image.Write(body.Bytes())

	err = binary.Write(image, binary.LittleEndian, headers)
	if err != nil {
		return nil, err
	}

	return image.Bytes(), nil
}

func compress(ctype elf.CompressionType, content []byte) ([]byte, error) {
	header := elf.CompressionHeader{
		CompressionType:  ctype,
		Size:             uint64(len(content)),
		AddressAlignment: 1,
	}

	buffer := &bytes.Buffer{}
	err := binary.Write(buffer, binary.LittleEndian, header)
	if err != nil {
		return nil, err
	}

	switch ctype {
	case elf.CompressionTypeZlib:
		writer := zlib.NewWriter(buffer)
		_, err = writer.Write(content)
		if err != nil {
			return nil, err
		}
		err = writer.Close()
		if err != nil {
			return nil, err
		}

	case elf.CompressionTypeZstd:
		encoder, err := zstd.NewWriter(nil)
		if err != nil {
			return nil, err
		}
		buffer.Write(encoder.EncodeAll(content, nil))
		err = encoder.Close()
		if err != nil {
			return nil, err
		}

	default:
		return nil, fmt.Errorf("unsupported compression type: %s", ctype)
	}

	return buffer.Bytes(), nil
}

// BuildExecutable builds the dwarf sections for the units and wraps them,
// together with a .text section holding code, into an executable image.
func BuildExecutable(code []byte, units ...*Unit) ([]byte, error) {
	sections, err := BuildSections(units...)
	if err != nil {
		return nil, err
	}

	return BuildImage(
		append([]Section{TextSection(code)}, sections.DebugSections()...)...)
}
