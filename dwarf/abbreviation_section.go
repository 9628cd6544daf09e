package dwarf

import (
	"encoding/binary"
	"fmt"

	"github.com/pattyshack/dwarfx86/elf"
)

type AttributeSpec struct {
	Attribute
	Format

	// Only set for DW_FORM_implicit_const
	ImplicitConst int64
}

type Abbreviation struct {
	Code uint64
	Tag
	HasChildren    bool
	AttributeSpecs []AttributeSpec
}

type AbbreviationTable map[uint64]*Abbreviation

type AbbreviationSection struct {
	AbbreviationTables map[SectionOffset]AbbreviationTable
}

func NewAbbreviationSection(file *elf.File) (*AbbreviationSection, error) {
	content, err := requiredSectionContent(file, ElfDebugAbbreviationSection)
	if err != nil {
		return nil, err
	}

	return NewAbbreviationSectionFromBytes(file.ByteOrder(), content)
}

func NewAbbreviationSectionFromBytes(
	byteOrder binary.ByteOrder,
	content []byte,
) (
	*AbbreviationSection,
	error,
) {
	tables := map[SectionOffset]AbbreviationTable{}

	decode := NewCursor(byteOrder, content)
	for !decode.HasReachedEnd() {
		tableId := SectionOffset(decode.Position)
		table := AbbreviationTable{}

		for {
			code, err := decode.ULEB128(64)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse abbreviation. invalid code: %w",
					err)
			}

			if code == 0 {
				break
			}

			tag, err := decode.ULEB128(64)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse abbreviation (%d). invalid tag: %w",
					code,
					err)
			}

			hasChildren, err := decode.U8()
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse abbreviation (%d). invalid hasChildren: %w",
					code,
					err)
			}

			specs, err := parseAttributeSpecs(decode)
			if err != nil {
				return nil, fmt.Errorf(
					"failed to parse abbreviation (%d). %w",
					code,
					err)
			}

			if _, ok := table[code]; ok {
				return nil, fmt.Errorf(
					"failed to parse abbreviation. duplicate code (%d) in table (%d)",
					code,
					tableId)
			}

			table[code] = &Abbreviation{
				Code:           code,
				Tag:            Tag(tag),
				HasChildren:    hasChildren == DW_CHILDREN_yes,
				AttributeSpecs: specs,
			}
		}

		tables[tableId] = table
	}

	return &AbbreviationSection{
		AbbreviationTables: tables,
	}, nil
}

func parseAttributeSpecs(decode *Cursor) ([]AttributeSpec, error) {
	var specs []AttributeSpec
	for {
		attribute, err := decode.ULEB128(64)
		if err != nil {
			return nil, fmt.Errorf("invalid attribute: %w", err)
		}

		format, err := decode.ULEB128(64)
		if err != nil {
			return nil, fmt.Errorf("invalid format: %w", err)
		}

		if attribute == 0 && format == 0 {
			return specs, nil
		}

		spec := AttributeSpec{
			Attribute: Attribute(attribute),
			Format:    Format(format),
		}

		if spec.Format == DW_FORM_implicit_const {
			spec.ImplicitConst, err = decode.SLEB128(64)
			if err != nil {
				return nil, fmt.Errorf("invalid implicit const: %w", err)
			}
		}

		specs = append(specs, spec)
	}
}
