// NOTE: This is based on based on dwarf.h from github.com/TartanLlama/sdb

package dwarf

import (
	"fmt"
)

// See dwarf 5 table 7.5 for full list
type Attribute uint64

const (
	DW_AT_sibling            = Attribute(0x01)
	DW_AT_location           = Attribute(0x02)
	DW_AT_name               = Attribute(0x03)
	DW_AT_byte_size          = Attribute(0x0b)
	DW_AT_stmt_list          = Attribute(0x10)
	DW_AT_low_pc             = Attribute(0x11)
	DW_AT_high_pc            = Attribute(0x12)
	DW_AT_language           = Attribute(0x13)
	DW_AT_comp_dir           = Attribute(0x1b)
	DW_AT_const_value        = Attribute(0x1c)
	DW_AT_inline             = Attribute(0x20)
	DW_AT_producer           = Attribute(0x25)
	DW_AT_prototyped         = Attribute(0x27)
	DW_AT_abstract_origin    = Attribute(0x31)
	DW_AT_artificial         = Attribute(0x34)
	DW_AT_decl_column        = Attribute(0x39)
	DW_AT_decl_file          = Attribute(0x3a)
	DW_AT_decl_line          = Attribute(0x3b)
	DW_AT_declaration        = Attribute(0x3c)
	DW_AT_encoding           = Attribute(0x3e)
	DW_AT_external           = Attribute(0x3f)
	DW_AT_frame_base         = Attribute(0x40)
	DW_AT_specification      = Attribute(0x47)
	DW_AT_type               = Attribute(0x49)
	DW_AT_ranges             = Attribute(0x55)
	DW_AT_linkage_name       = Attribute(0x6e)
	DW_AT_str_offsets_base   = Attribute(0x72)
	DW_AT_addr_base          = Attribute(0x73)
	DW_AT_call_all_calls     = Attribute(0x7a)
	DW_AT_MIPS_linkage_name  = Attribute(0x2007)
	DW_AT_GNU_all_call_sites = Attribute(0x2117)
)

var attributeNames = map[Attribute]string{
	DW_AT_sibling:            "DW_AT_sibling",
	DW_AT_location:           "DW_AT_location",
	DW_AT_name:               "DW_AT_name",
	DW_AT_byte_size:          "DW_AT_byte_size",
	DW_AT_stmt_list:          "DW_AT_stmt_list",
	DW_AT_low_pc:             "DW_AT_low_pc",
	DW_AT_high_pc:            "DW_AT_high_pc",
	DW_AT_language:           "DW_AT_language",
	DW_AT_comp_dir:           "DW_AT_comp_dir",
	DW_AT_const_value:        "DW_AT_const_value",
	DW_AT_inline:             "DW_AT_inline",
	DW_AT_producer:           "DW_AT_producer",
	DW_AT_prototyped:         "DW_AT_prototyped",
	DW_AT_abstract_origin:    "DW_AT_abstract_origin",
	DW_AT_artificial:         "DW_AT_artificial",
	DW_AT_decl_column:        "DW_AT_decl_column",
	DW_AT_decl_file:          "DW_AT_decl_file",
	DW_AT_decl_line:          "DW_AT_decl_line",
	DW_AT_declaration:        "DW_AT_declaration",
	DW_AT_encoding:           "DW_AT_encoding",
	DW_AT_external:           "DW_AT_external",
	DW_AT_frame_base:         "DW_AT_frame_base",
	DW_AT_specification:      "DW_AT_specification",
	DW_AT_type:               "DW_AT_type",
	DW_AT_ranges:             "DW_AT_ranges",
	DW_AT_linkage_name:       "DW_AT_linkage_name",
	DW_AT_str_offsets_base:   "DW_AT_str_offsets_base",
	DW_AT_addr_base:          "DW_AT_addr_base",
	DW_AT_call_all_calls:     "DW_AT_call_all_calls",
	DW_AT_MIPS_linkage_name:  "DW_AT_MIPS_linkage_name",
	DW_AT_GNU_all_call_sites: "DW_AT_GNU_all_call_sites",
}

func (attribute Attribute) String() string {
	name, ok := attributeNames[attribute]
	if ok {
		return name
	}
	return fmt.Sprintf("DW_AT_unknown_%#x", uint64(attribute))
}
