package dwarfx86

import (
	"fmt"
	"strings"
)

// X86Register is a general purpose register identified by its dwarf x86-64
// register number (System V psABI, figure 3.36).
type X86Register uint8

const (
	RAX = X86Register(0)
	RDX = X86Register(1)
	RCX = X86Register(2)
	RBX = X86Register(3)
	RSI = X86Register(4)
	RDI = X86Register(5)
	RBP = X86Register(6)
	RSP = X86Register(7)
	R8  = X86Register(8)
	R9  = X86Register(9)
	R10 = X86Register(10)
	R11 = X86Register(11)
	R12 = X86Register(12)
	R13 = X86Register(13)
	R14 = X86Register(14)
	R15 = X86Register(15)

	NumX86Registers = 16
)

var (
	// Indexed by dwarf register number.
	registerNames = strings.Split(
		"rax rdx rcx rbx rsi rdi rbp rsp "+
			"r8 r9 r10 r11 r12 r13 r14 r15",
		" ")

	registersByName = func() map[string]X86Register {
		result := make(map[string]X86Register, len(registerNames))
		for idx, name := range registerNames {
			result[name] = X86Register(idx)
		}
		return result
	}()
)

// RegisterFromDwarfId maps a dwarf register number to a general purpose
// register.  Returns false for numbers outside 0-15.
func RegisterFromDwarfId(id uint64) (X86Register, bool) {
	if id >= NumX86Registers {
		return 0, false
	}
	return X86Register(id), true
}

func RegisterByName(name string) (X86Register, bool) {
	reg, ok := registersByName[strings.ToLower(name)]
	return reg, ok
}

func (reg X86Register) IsValid() bool {
	return reg < NumX86Registers
}

func (reg X86Register) String() string {
	if !reg.IsValid() {
		return fmt.Sprintf("X86RegisterUnknown(%d)", uint8(reg))
	}
	return registerNames[reg]
}
