// NOTE: This is based on based on dwarf.h from github.com/TartanLlama/sdb

package dwarf

import (
	"fmt"
)

// See dwarf 5 table 7.6 for full list
type Format uint64

const (
	DW_FORM_addr           = Format(0x01)
	DW_FORM_block2         = Format(0x03)
	DW_FORM_block4         = Format(0x04)
	DW_FORM_data2          = Format(0x05)
	DW_FORM_data4          = Format(0x06)
	DW_FORM_data8          = Format(0x07)
	DW_FORM_string         = Format(0x08)
	DW_FORM_block          = Format(0x09)
	DW_FORM_block1         = Format(0x0a)
	DW_FORM_data1          = Format(0x0b)
	DW_FORM_flag           = Format(0x0c)
	DW_FORM_sdata          = Format(0x0d)
	DW_FORM_strp           = Format(0x0e)
	DW_FORM_udata          = Format(0x0f)
	DW_FORM_ref_addr       = Format(0x10)
	DW_FORM_ref1           = Format(0x11)
	DW_FORM_ref2           = Format(0x12)
	DW_FORM_ref4           = Format(0x13)
	DW_FORM_ref8           = Format(0x14)
	DW_FORM_ref_udata      = Format(0x15)
	DW_FORM_indirect       = Format(0x16)
	DW_FORM_sec_offset     = Format(0x17)
	DW_FORM_exprloc        = Format(0x18)
	DW_FORM_flag_present   = Format(0x19)
	DW_FORM_strx           = Format(0x1a)
	DW_FORM_addrx          = Format(0x1b)
	DW_FORM_data16         = Format(0x1e)
	DW_FORM_line_strp      = Format(0x1f)
	DW_FORM_ref_sig8       = Format(0x20)
	DW_FORM_implicit_const = Format(0x21)
	DW_FORM_loclistx       = Format(0x22)
	DW_FORM_rnglistx       = Format(0x23)
	DW_FORM_strx1          = Format(0x25)
	DW_FORM_strx2          = Format(0x26)
	DW_FORM_strx3          = Format(0x27)
	DW_FORM_strx4          = Format(0x28)
	DW_FORM_addrx1         = Format(0x29)
	DW_FORM_addrx2         = Format(0x2a)
	DW_FORM_addrx3         = Format(0x2b)
	DW_FORM_addrx4         = Format(0x2c)
)

var formatNames = map[Format]string{
	DW_FORM_addr:           "DW_FORM_addr",
	DW_FORM_block2:         "DW_FORM_block2",
	DW_FORM_block4:         "DW_FORM_block4",
	DW_FORM_data2:          "DW_FORM_data2",
	DW_FORM_data4:          "DW_FORM_data4",
	DW_FORM_data8:          "DW_FORM_data8",
	DW_FORM_string:         "DW_FORM_string",
	DW_FORM_block:          "DW_FORM_block",
	DW_FORM_block1:         "DW_FORM_block1",
	DW_FORM_data1:          "DW_FORM_data1",
	DW_FORM_flag:           "DW_FORM_flag",
	DW_FORM_sdata:          "DW_FORM_sdata",
	DW_FORM_strp:           "DW_FORM_strp",
	DW_FORM_udata:          "DW_FORM_udata",
	DW_FORM_ref_addr:       "DW_FORM_ref_addr",
	DW_FORM_ref1:           "DW_FORM_ref1",
	DW_FORM_ref2:           "DW_FORM_ref2",
	DW_FORM_ref4:           "DW_FORM_ref4",
	DW_FORM_ref8:           "DW_FORM_ref8",
	DW_FORM_ref_udata:      "DW_FORM_ref_udata",
	DW_FORM_indirect:       "DW_FORM_indirect",
	DW_FORM_sec_offset:     "DW_FORM_sec_offset",
	DW_FORM_exprloc:        "DW_FORM_exprloc",
	DW_FORM_flag_present:   "DW_FORM_flag_present",
	DW_FORM_strx:           "DW_FORM_strx",
	DW_FORM_addrx:          "DW_FORM_addrx",
	DW_FORM_data16:         "DW_FORM_data16",
	DW_FORM_line_strp:      "DW_FORM_line_strp",
	DW_FORM_ref_sig8:       "DW_FORM_ref_sig8",
	DW_FORM_implicit_const: "DW_FORM_implicit_const",
	DW_FORM_loclistx:       "DW_FORM_loclistx",
	DW_FORM_rnglistx:       "DW_FORM_rnglistx",
	DW_FORM_strx1:          "DW_FORM_strx1",
	DW_FORM_strx2:          "DW_FORM_strx2",
	DW_FORM_strx3:          "DW_FORM_strx3",
	DW_FORM_strx4:          "DW_FORM_strx4",
	DW_FORM_addrx1:         "DW_FORM_addrx1",
	DW_FORM_addrx2:         "DW_FORM_addrx2",
	DW_FORM_addrx3:         "DW_FORM_addrx3",
	DW_FORM_addrx4:         "DW_FORM_addrx4",
}

func (format Format) String() string {
	name, ok := formatNames[format]
	if ok {
		return name
	}
	return fmt.Sprintf("DW_FORM_unknown_%d", uint64(format))
}
