package dwarftest

import (
	"bytes"

	"github.com/go-delve/delve/pkg/dwarf/leb128"

	"github.com/pattyshack/dwarfx86/dwarf"
)

func CompileUnit(name string, children ...*Entry) *Entry {
	return &Entry{
		Tag: dwarf.DW_TAG_compile_unit,
		Attributes: []Attribute{
			{dwarf.DW_AT_producer, dwarf.DW_FORM_strp, "dwarftest"},
			{dwarf.DW_AT_language, dwarf.DW_FORM_data1, dwarf.DW_LANG_C11},
			{dwarf.DW_AT_name, dwarf.DW_FORM_strp, name},
		},
		Children:         children,
		ForceHasChildren: true,
	}
}

// Subprogram returns a function definition entry with strp name and addr
// low_pc, in the shape gcc emits.
func Subprogram(name string, lowPc uint64, children ...*Entry) *Entry {
	return &Entry{
		Tag: dwarf.DW_TAG_subprogram,
		Attributes: []Attribute{
			{dwarf.DW_AT_external, dwarf.DW_FORM_flag_present, nil},
			{dwarf.DW_AT_name, dwarf.DW_FORM_strp, name},
			{dwarf.DW_AT_decl_file, dwarf.DW_FORM_data1, 1},
			{dwarf.DW_AT_decl_line, dwarf.DW_FORM_data1, 1},
			{dwarf.DW_AT_prototyped, dwarf.DW_FORM_flag_present, nil},
			{dwarf.DW_AT_low_pc, dwarf.DW_FORM_addr, lowPc},
			{dwarf.DW_AT_high_pc, dwarf.DW_FORM_data8, 0x20},
			{dwarf.DW_AT_frame_base, dwarf.DW_FORM_exprloc, CallFrameCFA()},
		},
		Children: children,
	}
}

// Parameter returns a formal parameter entry with strp name and exprloc
// location.
func Parameter(name string, location []byte) *Entry {
	return &Entry{
		Tag: dwarf.DW_TAG_formal_parameter,
		Attributes: []Attribute{
			{dwarf.DW_AT_name, dwarf.DW_FORM_strp, name},
			{dwarf.DW_AT_decl_file, dwarf.DW_FORM_data1, 1},
			{dwarf.DW_AT_decl_line, dwarf.DW_FORM_data1, 1},
			{dwarf.DW_AT_location, dwarf.DW_FORM_exprloc, location},
		},
	}
}

func BaseType(name string, size int) *Entry {
	return &Entry{
		Tag: dwarf.DW_TAG_base_type,
		Attributes: []Attribute{
			{dwarf.DW_AT_byte_size, dwarf.DW_FORM_data1, size},
			{dwarf.DW_AT_encoding, dwarf.DW_FORM_data1, 5},
			{dwarf.DW_AT_name, dwarf.DW_FORM_string, name},
		},
	}
}

func LexicalBlock(lowPc uint64, children ...*Entry) *Entry {
	return &Entry{
		Tag: dwarf.DW_TAG_lexical_block,
		Attributes: []Attribute{
			{dwarf.DW_AT_low_pc, dwarf.DW_FORM_addr, lowPc},
			{dwarf.DW_AT_high_pc, dwarf.DW_FORM_data8, 0x10},
		},
		Children: children,
	}
}

// Without returns a copy of the entry without the given attribute.
func (entry *Entry) Without(attr dwarf.Attribute) *Entry {
	result := *entry
	result.Attributes = nil
	for _, a := range entry.Attributes {
		if a.Attribute != attr {
			result.Attributes = append(result.Attributes, a)
		}
	}
	return &result
}

// With returns a copy of the entry with the given attribute appended.
func (entry *Entry) With(
	attr dwarf.Attribute,
	format dwarf.Format,
	value interface{},
) *Entry {
	result := *entry
	result.Attributes = append(
		append([]Attribute{}, entry.Attributes...),
		Attribute{attr, format, value})
	return &result
}

// Replace returns a copy of the entry with every occurrence of the attribute
// replaced by the given format / value.
func (entry *Entry) Replace(
	attr dwarf.Attribute,
	format dwarf.Format,
	value interface{},
) *Entry {
	result := *entry
	result.Attributes = make([]Attribute, 0, len(entry.Attributes))
	for _, a := range entry.Attributes {
		if a.Attribute == attr {
			a = Attribute{attr, format, value}
		}
		result.Attributes = append(result.Attributes, a)
	}
	return &result
}

// Location expression helpers.

func Reg(id byte) []byte {
	return []byte{byte(dwarf.DW_OP_reg0) + id}
}

func Regx(id uint64) []byte {
	buffer := &bytes.Buffer{}
	buffer.WriteByte(byte(dwarf.DW_OP_regx))
	leb128.EncodeUnsigned(buffer, id)
	return buffer.Bytes()
}

func Fbreg(offset int64) []byte {
	buffer := &bytes.Buffer{}
	buffer.WriteByte(byte(dwarf.DW_OP_fbreg))
	leb128.EncodeSigned(buffer, offset)
	return buffer.Bytes()
}

func CallFrameCFA() []byte {
	return []byte{byte(dwarf.DW_OP_call_frame_cfa)}
}
