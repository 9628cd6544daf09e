package elf

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Resources:
// https://refspecs.linuxfoundation.org/

var (
	ErrUnsupportedDataEncoding = errors.New("unsupported data encoding")
)

type machineSpec struct {
	MachineArchitecture
	DataEncoding
}

var (
	supportedArchitecture = map[MachineArchitecture]machineSpec{
		MachineArchitectureX86_64: machineSpec{
			MachineArchitecture: MachineArchitectureX86_64,
			DataEncoding:        DataEncodingTwosComplementLittleEndian,
		},
	}

	// Linux binaries are usually tagged as system v, but gnu tools tag
	// binaries that use gnu extensions (e.g., ifunc) as linux.
	supportedOperatingSystemABI = map[OperatingSystemABI]struct{}{
		OperatingSystemABIUnixSystemV: struct{}{},
		OperatingSystemABILinux:       struct{}{},
	}
)

type File struct {
	ElfHeader
	Sections []Section

	byteOrder binary.ByteOrder
}

func (file *File) ByteOrder() binary.ByteOrder {
	return file.byteOrder
}

// GetSection returns the first section with the given name, or nil.
func (file *File) GetSection(name string) Section {
	for _, section := range file.Sections {
		if section.Name() == name {
			return section
		}
	}

	return nil
}

// SectionContaining returns the loaded section with content that spans the
// given address, or nil.
func (file *File) SectionContaining(address FileAddress) *RawSection {
	for _, section := range file.Sections {
		raw, ok := section.(*RawSection)
		if ok && raw.Contains(address) {
			return raw
		}
	}

	return nil
}

type parser struct {
	content []byte

	File
}

func Parse(reader io.Reader) (*File, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read elf file: %w", err)
	}

	return ParseBytes(content)
}

// ParseBytes parses the elf file.  All section content is copied out of the
// given buffer.
func ParseBytes(content []byte) (*File, error) {
	p := parser{
		content: content,
	}

	err := p.parse()
	if err != nil {
		return nil, err
	}

	return &p.File, nil
}

func (p *parser) parse() error {
	// NOTE: identifier (e_ident) has no endian-ness.  We must parse identifier
	// to determine the elf file's endian-ness (including the elf header).
	err := p.parseIdentifier()
	if err != nil {
		return err
	}

	err = p.parseHeader()
	if err != nil {
		return err
	}

	return p.parseSectionHeaders()
}

func (p *parser) parseIdentifier() error {
	id := &Identifier{}

	n, err := binary.Decode(p.content, binary.NativeEndian, id)
	if err != nil {
		return fmt.Errorf("failed to parse identifier: %w", err)
	}

	if n != ElfIdentifierSize {
		panic("should never happen")
	}

	if !bytes.Equal(id.Magic[:], IdentifierMagic) {
		return fmt.Errorf("invalid elf magic number")
	}

	// An unknown byte order takes precedence over every other identifier
	// failure.
	switch id.DataEncoding {
	case DataEncodingTwosComplementLittleEndian:
		p.byteOrder = binary.LittleEndian
	case DataEncodingTwosComplementBigEndian:
		p.byteOrder = binary.BigEndian
	default:
		return fmt.Errorf("%w: %s", ErrUnsupportedDataEncoding, id.DataEncoding)
	}

	if id.Class != Class64 {
		return fmt.Errorf("unsupported elf class: %s", id.Class)
	}

	if id.IdentifierVersion != IdentifierVersion {
		return fmt.Errorf(
			"unsupported identifier version: %d",
			id.IdentifierVersion)
	}

	_, ok := supportedOperatingSystemABI[id.OperatingSystemABI]
	if !ok {
		return fmt.Errorf("unsupported os/abi: %s", id.OperatingSystemABI)
	}

	if id.ABIVersion != ABIVersion {
		return fmt.Errorf("unsupported abi verison: %d", id.ABIVersion)
	}

	for _, padding := range id.Padding {
		if padding != 0 {
			return fmt.Errorf("invalid identifier padding")
		}
	}

	return nil
}

func (p *parser) parseHeader() error {
	n, err := binary.Decode(p.content, p.byteOrder, &p.ElfHeader)
	if err != nil {
		return fmt.Errorf("failed to parse header: %w", err)
	}

	if n != Elf64HeaderSize {
		panic("should never happen")
	}

	spec, ok := supportedArchitecture[p.MachineArchitecture]
	if !ok {
		return fmt.Errorf(
			"unsupported machine architecture: %s",
			p.MachineArchitecture)
	}

	if spec.DataEncoding != p.DataEncoding {
		return fmt.Errorf(
			"invalid data encoding (%s) for machine architecture (%s)",
			p.DataEncoding,
			p.MachineArchitecture)
	}

	switch p.FileType {
	case FileTypeExecutable, FileTypeSharedObject:
	case FileTypeRelocatable:
		// .debug_info in object files requires relocation processing.
		return fmt.Errorf("relocatable elf file not supported")
	default:
		return fmt.Errorf("unsupported file type: %s", p.FileType)
	}

	if p.FormatVersion != FormatVersion {
		return fmt.Errorf("unsupported format version: %d", p.FormatVersion)
	}

	if p.ArchitectureFlags != 0 {
		return fmt.Errorf("unexpected architecture flags: %x", p.ArchitectureFlags)
	}

	if p.ElfHeaderSize != Elf64HeaderSize {
		return fmt.Errorf("unexpected elf64 header size: %d", p.ElfHeaderSize)
	}

	// Some linkers leave e_phentsize zeroed when there are no program headers.
	if p.NumProgramHeaderEntries > 0 &&
		p.ProgramHeaderEntrySize != Elf64ProgramHeaderEntrySize {

		return fmt.Errorf(
			"unexpected elf64 program header entry size: %d",
			p.ProgramHeaderEntrySize)
	}

	if p.SectionHeaderEntrySize != Elf64SectionHeaderEntrySize {
		return fmt.Errorf(
			"unexpected elf64 section header entry size: %d",
			p.SectionHeaderEntrySize)
	}

	// For simplicity, we'll disallow extended section header.
	//
	// https://docs.oracle.com/en/operating-systems/solaris/oracle-solaris/11.4/linkers-libraries/extended-section-header.html
	if p.SectionHeaderOffset > 0 && p.NumSectionHeaderEntries == 0 {
		return fmt.Errorf("extended section header not supported")
	}

	return nil
}

func (p *parser) parseSectionHeaders() error {
	if p.NumSectionHeaderEntries == 0 {
		return nil
	}

	if p.SectionHeaderOffset >= uint64(len(p.content)) {
		return fmt.Errorf(
			"out of bound section header offset (%d)",
			p.SectionHeaderOffset)
	}

	sectionHeaders := make([]SectionHeaderEntry, p.NumSectionHeaderEntries)
	n, err := binary.Decode(
		p.content[p.SectionHeaderOffset:],
		p.byteOrder,
		sectionHeaders)
	if err != nil {
		return fmt.Errorf("failed to read section header entries: %w", err)
	}
	if n != int(p.NumSectionHeaderEntries)*Elf64SectionHeaderEntrySize {
		panic("should never happen")
	}

	for idx, header := range sectionHeaders {
		if header.SectionType == SectionTypeNoSpace {
			p.Sections = append(
				p.Sections,
				&NoSpaceSection{BaseSection: newBaseSection(header)})
			continue
		}

		start := header.Offset
		end := start + header.Size
		if end < start || end > uint64(len(p.content)) {
			return fmt.Errorf(
				"out of bound section (%d). (%d > %d)",
				idx,
				end,
				len(p.content))
		}

		sectionContent := p.content[start:end]

		if header.SectionType == SectionTypeStringTable &&
			header.SectionFlags&SectionIsCompressed == 0 {

			p.Sections = append(
				p.Sections,
				NewStringTableSection(header, sectionContent))
			continue
		}

		p.Sections = append(
			p.Sections,
			newRawSection(header, p.byteOrder, sectionContent))
	}

	// Bind section names
	if p.SectionStringTableIndex != SectionIndexUndefined {
		idx := int(p.SectionStringTableIndex)
		if idx >= len(p.Sections) {
			return fmt.Errorf(
				"section name index out of bound (%d >= %d)",
				idx,
				len(p.Sections))
		}

		table, ok := p.Sections[idx].(*StringTableSection)
		if !ok {
			return fmt.Errorf("section name index does not point to a string table")
		}

		for _, section := range p.Sections {
			section.BindSectionNameTable(table)
		}
	}

	return nil
}
