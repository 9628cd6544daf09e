// NOTE: This is based on based on dwarf.h from github.com/TartanLlama/sdb

package dwarf

import (
	"fmt"
)

// See dwarf 5 table 7.3 for full list.  Only tags that show up in c / c++
// function definitions are named here.
type Tag uint64

const (
	DW_TAG_formal_parameter       = Tag(0x05)
	DW_TAG_label                  = Tag(0x0a)
	DW_TAG_lexical_block          = Tag(0x0b)
	DW_TAG_pointer_type           = Tag(0x0f)
	DW_TAG_compile_unit           = Tag(0x11)
	DW_TAG_structure_type         = Tag(0x13)
	DW_TAG_subroutine_type        = Tag(0x15)
	DW_TAG_typedef                = Tag(0x16)
	DW_TAG_unspecified_parameters = Tag(0x18)
	DW_TAG_inlined_subroutine     = Tag(0x1d)
	DW_TAG_base_type              = Tag(0x24)
	DW_TAG_const_type             = Tag(0x26)
	DW_TAG_subprogram             = Tag(0x2e)
	DW_TAG_variable               = Tag(0x34)
	DW_TAG_namespace              = Tag(0x39)
	DW_TAG_partial_unit           = Tag(0x3c)
	DW_TAG_call_site              = Tag(0x48)
	DW_TAG_call_site_parameter    = Tag(0x49)
	DW_TAG_skeleton_unit          = Tag(0x4a)
	DW_TAG_GNU_call_site          = Tag(0x4109)
)

var tagNames = map[Tag]string{
	DW_TAG_formal_parameter:       "DW_TAG_formal_parameter",
	DW_TAG_label:                  "DW_TAG_label",
	DW_TAG_lexical_block:          "DW_TAG_lexical_block",
	DW_TAG_pointer_type:           "DW_TAG_pointer_type",
	DW_TAG_compile_unit:           "DW_TAG_compile_unit",
	DW_TAG_structure_type:         "DW_TAG_structure_type",
	DW_TAG_subroutine_type:        "DW_TAG_subroutine_type",
	DW_TAG_typedef:                "DW_TAG_typedef",
	DW_TAG_unspecified_parameters: "DW_TAG_unspecified_parameters",
	DW_TAG_inlined_subroutine:     "DW_TAG_inlined_subroutine",
	DW_TAG_base_type:              "DW_TAG_base_type",
	DW_TAG_const_type:             "DW_TAG_const_type",
	DW_TAG_subprogram:             "DW_TAG_subprogram",
	DW_TAG_variable:               "DW_TAG_variable",
	DW_TAG_namespace:              "DW_TAG_namespace",
	DW_TAG_partial_unit:           "DW_TAG_partial_unit",
	DW_TAG_call_site:              "DW_TAG_call_site",
	DW_TAG_call_site_parameter:    "DW_TAG_call_site_parameter",
	DW_TAG_skeleton_unit:          "DW_TAG_skeleton_unit",
	DW_TAG_GNU_call_site:          "DW_TAG_GNU_call_site",
}

func (tag Tag) String() string {
	name, ok := tagNames[tag]
	if ok {
		return name
	}
	return fmt.Sprintf("DW_TAG_unknown_%#x", uint64(tag))
}
