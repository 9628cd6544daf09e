// NOTE: This is based on based on dwarf.h from github.com/TartanLlama/sdb

package dwarf

import (
	"fmt"
)

// See dwarf 5 table 7.9 for full list.  Only the simple location
// descriptions are named.
type Operation uint8

const (
	DW_OP_addr           = Operation(0x03)
	DW_OP_reg0           = Operation(0x50)
	DW_OP_reg31          = Operation(0x6f)
	DW_OP_breg0          = Operation(0x70)
	DW_OP_breg31         = Operation(0x8f)
	DW_OP_regx           = Operation(0x90)
	DW_OP_fbreg          = Operation(0x91)
	DW_OP_bregx          = Operation(0x92)
	DW_OP_piece          = Operation(0x93)
	DW_OP_call_frame_cfa = Operation(0x9c)
	DW_OP_stack_value    = Operation(0x9f)
	DW_OP_entry_value    = Operation(0xa3)
)

func (op Operation) String() string {
	switch {
	case DW_OP_reg0 <= op && op <= DW_OP_reg31:
		return fmt.Sprintf("DW_OP_reg%d", op-DW_OP_reg0)
	case DW_OP_breg0 <= op && op <= DW_OP_breg31:
		return fmt.Sprintf("DW_OP_breg%d", op-DW_OP_breg0)
	}

	switch op {
	case DW_OP_addr:
		return "DW_OP_addr"
	case DW_OP_regx:
		return "DW_OP_regx"
	case DW_OP_fbreg:
		return "DW_OP_fbreg"
	case DW_OP_bregx:
		return "DW_OP_bregx"
	case DW_OP_piece:
		return "DW_OP_piece"
	case DW_OP_call_frame_cfa:
		return "DW_OP_call_frame_cfa"
	case DW_OP_stack_value:
		return "DW_OP_stack_value"
	case DW_OP_entry_value:
		return "DW_OP_entry_value"
	default:
		return fmt.Sprintf("DW_OP_unknown_%#02x", uint8(op))
	}
}
