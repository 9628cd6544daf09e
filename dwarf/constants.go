// NOTE: This is based on based on dwarf.h from github.com/TartanLlama/sdb

package dwarf

const (
	DW_CHILDREN_no  = 0x00
	DW_CHILDREN_yes = 0x01

	// dwarf 5 unit header types (table 7.2)
	DW_UT_compile       = 0x01
	DW_UT_type          = 0x02
	DW_UT_partial       = 0x03
	DW_UT_skeleton      = 0x04
	DW_UT_split_compile = 0x05
	DW_UT_split_type    = 0x06

	DW_LANG_C89            = 0x0001
	DW_LANG_C              = 0x0002
	DW_LANG_C_plus_plus    = 0x0004
	DW_LANG_C99            = 0x000c
	DW_LANG_Rust           = 0x001c
	DW_LANG_C11            = 0x001d
	DW_LANG_C_plus_plus_14 = 0x0021
)