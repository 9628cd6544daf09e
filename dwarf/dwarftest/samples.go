package dwarftest

const (
	MainAddress          = TextAddress
	SomeFuncAddress      = TextAddress + 0x20
	SomeOtherFuncAddress = TextAddress + 0x40
)

// SampleCode is the .text content for SampleProgram.  Every function starts
// with the same prologue:
//
//	push %rbp
//	mov %rsp,%rbp
//	mov %edi,-0x14(%rbp)
//	pop %rbp
//	ret
//
// padded to 0x20 bytes with int3.
func SampleCode() []byte {
	prologue := []byte{
		0x55,             // push %rbp
		0x48, 0x89, 0xe5, // mov %rsp,%rbp
		0x89, 0x7d, 0xec, // mov %edi,-0x14(%rbp)
		0x5d,             // pop %rbp
		0xc3,             // ret
	}

	code := []byte{}
	for i := 0; i < 3; i++ {
		fn := make([]byte, 0x20)
		for idx := range fn {
			fn[idx] = 0xcc
		}
		copy(fn, prologue)
		code = append(code, fn...)
	}
	return code
}

// SampleProgram models gcc -O0 output for:
//
//	int somefunc(int a, int b);
//	int someOtherFunc(int a, long b, char *c);
//	int main(int argc, char **argv);
//
// At -O0 gcc spills arguments to the stack, so most locations are frame
// base offsets.  main's argc is kept in rdi.
func SampleProgram() *Unit {
	return &Unit{
		Version: 4,
		Root: CompileUnit(
			"sample.c",
			BaseType("int", 4),
			Subprogram(
				"main",
				MainAddress,
				Parameter("argc", Reg(5)),
				Parameter("argv", Fbreg(-32)),
			),
			Subprogram(
				"somefunc",
				SomeFuncAddress,
				Parameter("a", Fbreg(-20)),
				Parameter("b", Fbreg(-24)),
			),
			Subprogram(
				"someOtherFunc",
				SomeOtherFuncAddress,
				Parameter("a", Fbreg(-20)),
				Parameter("b", Fbreg(-32)),
				Parameter("c", Regx(1)),
			),
		),
	}
}

// SampleExecutable returns the executable image for SampleProgram.
func SampleExecutable() ([]byte, error) {
	return BuildExecutable(SampleCode(), SampleProgram())
}
