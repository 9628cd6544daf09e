package elf

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
	"github.com/klauspost/compress/zstd"
)

type FileAddress uint64

type Section interface {
	Header() SectionHeaderEntry

	BindSectionNameTable(sectionNames *StringTableSection)
	Name() string

	// RawContent returns the section's (decompressed) content.
	RawContent() ([]byte, error)
}

type BaseSection struct {
	SectionHeaderEntry

	name string
}

func newBaseSection(header SectionHeaderEntry) BaseSection {
	return BaseSection{
		SectionHeaderEntry: header,
	}
}

func (base *BaseSection) Header() SectionHeaderEntry {
	return base.SectionHeaderEntry
}

func (base *BaseSection) Name() string {
	return base.name
}

func (base *BaseSection) BindSectionNameTable(
	sectionNames *StringTableSection,
) {
	base.name = sectionNames.Get(base.NameIndex)
}

// Contains reports whether the section is loaded at the given address.
func (base *BaseSection) Contains(address FileAddress) bool {
	if base.SectionFlags&SectionOccupiesMemory == 0 {
		return false
	}

	start := FileAddress(base.Address)
	return start <= address && address < start+FileAddress(base.Size)
}

type RawSection struct {
	BaseSection

	byteOrder binary.ByteOrder

	// The section's bytes as stored in the file.  For SHF_COMPRESSED sections,
	// this includes the compression header.
	Content []byte

	inflateOnce sync.Once
	inflated    []byte
	inflateErr  error
}

func newRawSection(
	header SectionHeaderEntry,
	byteOrder binary.ByteOrder,
	buffer []byte,
) *RawSection {
	content := make([]byte, len(buffer))
	copy(content, buffer)

	return &RawSection{
		BaseSection: newBaseSection(header),
		byteOrder:   byteOrder,
		Content:     content,
	}
}

func (section *RawSection) IsCompressed() bool {
	return section.SectionFlags&SectionIsCompressed != 0
}

func (section *RawSection) RawContent() ([]byte, error) {
	if !section.IsCompressed() {
		return section.Content, nil
	}

	section.inflateOnce.Do(func() {
		section.inflated, section.inflateErr = section.inflate()
	})
	return section.inflated, section.inflateErr
}

func (section *RawSection) inflate() ([]byte, error) {
	header := CompressionHeader{}
	n, err := binary.Decode(section.Content, section.byteOrder, &header)
	if err != nil {
		return nil, fmt.Errorf(
			"failed to inflate %s section. invalid compression header: %w",
			section.name,
			err)
	}
	if n != Elf64CompressionHeaderSize {
		panic("should never happen")
	}

	compressed := section.Content[n:]

	var content []byte
	switch header.CompressionType {
	case CompressionTypeZlib:
		content, err = inflateZlib(compressed, header.Size)
	case CompressionTypeZstd:
		content, err = inflateZstd(compressed, header.Size)
	default:
		return nil, fmt.Errorf(
			"failed to inflate %s section. unsupported compression type: %s",
			section.name,
			header.CompressionType)
	}
	if err != nil {
		return nil, fmt.Errorf(
			"failed to inflate %s section (%s): %w",
			section.name,
			header.CompressionType,
			err)
	}

	if uint64(len(content)) != header.Size {
		return nil, fmt.Errorf(
			"failed to inflate %s section. size mismatch (%d != %d)",
			section.name,
			len(content),
			header.Size)
	}

	return content, nil
}

func inflateZlib(compressed []byte, size uint64) ([]byte, error) {
	reader, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	// Read one byte past the declared size so that oversized content is
	// detected by the caller's size check.
	return io.ReadAll(io.LimitReader(reader, int64(size)+1))
}

func inflateZstd(compressed []byte, size uint64) ([]byte, error) {
	// Frames declaring a window (or content size) beyond the section size are
	// rejected before any history buffer is allocated.
	maxMemory := size + 1
	if maxMemory < zstd.MinWindowSize {
		maxMemory = zstd.MinWindowSize
	}

	decoder, err := zstd.NewReader(
		bytes.NewReader(compressed),
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderMaxMemory(maxMemory))
	if err != nil {
		return nil, err
	}
	defer decoder.Close()

	return io.ReadAll(io.LimitReader(decoder, int64(size)+1))
}

type StringTableSection struct {
	BaseSection

	Content []byte
}

func NewStringTableSection(
	header SectionHeaderEntry,
	buffer []byte,
) *StringTableSection {
	content := make([]byte, len(buffer))
	copy(content, buffer)

	return &StringTableSection{
		BaseSection: newBaseSection(header),
		Content:     content,
	}
}

func (table *StringTableSection) RawContent() ([]byte, error) {
	return table.Content, nil
}

func (table *StringTableSection) Get(index uint32) string {
	if index >= uint32(len(table.Content)) {
		return ""
	}

	chunk := table.Content[index:]
	end := bytes.IndexByte(chunk, 0)
	if end == -1 {
		return ""
	}

	return string(chunk[:end])
}

// NoSpaceSection is a SHT_NOBITS section (e.g., .bss).  It occupies no file
// space.
type NoSpaceSection struct {
	BaseSection
}

func (NoSpaceSection) RawContent() ([]byte, error) {
	return nil, fmt.Errorf("cannot get raw content of no space section")
}
