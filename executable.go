package dwarfx86

import (
	"errors"
	"fmt"
	"os"

	"golang.org/x/arch/x86/x86asm"
	"golang.org/x/sys/unix"

	"github.com/pattyshack/dwarfx86/dwarf"
	"github.com/pattyshack/dwarfx86/elf"
)

const (
	maxX64InstructionLength = 15
)

// Executable holds an executable's parsed dwarf debug information.  All
// section content is copied out of the file on load.  An Executable is
// read-only after load and is safe for concurrent use.
type Executable struct {
	Path string

	*dwarf.File
}

// LoadExecutable maps the file read-only and parses its elf / dwarf
// sections.  Errors are *LoadError.
func LoadExecutable(path string) (*Executable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &LoadError{Kind: IOFailure, Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, &LoadError{Kind: IOFailure, Path: path, Err: err}
	}

	if !info.Mode().IsRegular() {
		return nil, &LoadError{
			Kind: IOFailure,
			Path: path,
			Err:  fmt.Errorf("not a regular file (%s)", info.Mode()),
		}
	}

	// mmap rejects zero length mappings.
	if info.Size() == 0 {
		return LoadExecutableBytes(path, nil)
	}

	content, err := unix.Mmap(
		int(file.Fd()),
		0,
		int(info.Size()),
		unix.PROT_READ,
		unix.MAP_PRIVATE)
	if err != nil {
		return nil, &LoadError{
			Kind: IOFailure,
			Path: path,
			Err:  fmt.Errorf("failed to mmap file: %w", err),
		}
	}

	exec, loadErr := LoadExecutableBytes(path, content)

	err = unix.Munmap(content)
	if err != nil && loadErr == nil {
		return nil, &LoadError{
			Kind: IOFailure,
			Path: path,
			Err:  fmt.Errorf("failed to munmap file: %w", err),
		}
	}

	return exec, loadErr
}

// LoadExecutableBytes parses the executable's content.  path is only used
// for diagnostics.  The content buffer is not retained.
func LoadExecutableBytes(path string, content []byte) (*Executable, error) {
	elfFile, err := elf.ParseBytes(content)
	if err != nil {
		kind := ParseFailure
		if errors.Is(err, elf.ErrUnsupportedDataEncoding) {
			kind = InvalidFile
		}
		return nil, &LoadError{
			Kind: kind,
			Path: path,
			Err:  fmt.Errorf("failed to parse elf file: %w", err),
		}
	}

	dwarfFile, err := dwarf.NewFile(elfFile)
	if err != nil {
		notFound := &dwarf.SectionNotFoundError{}
		if errors.As(err, &notFound) {
			return nil, &LoadError{
				Kind:    MissingSection,
				Path:    path,
				Section: notFound.Name,
				Err:     err,
			}
		}

		return nil, &LoadError{
			Kind: ParseFailure,
			Path: path,
			Err:  fmt.Errorf("failed to parse dwarf sections: %w", err),
		}
	}

	return &Executable{
		Path: path,
		File: dwarfFile,
	}, nil
}

// GetFunctions extracts every function defined directly in a compile unit,
// in compile unit then declaration order.  The first failure aborts
// extraction.  The error is an *ExtractionError.
func (exec *Executable) GetFunctions() ([]Function, error) {
	functions, errs := extractFunctions(exec.CompileUnits, false)
	if len(errs) > 0 {
		return nil, errs[0]
	}
	return functions, nil
}

// GetFunctionsBestEffort is similar to GetFunctions, but skips functions that
// fail to extract.  One error is returned per skipped function.
func (exec *Executable) GetFunctionsBestEffort() (
	[]Function,
	[]*ExtractionError,
) {
	return extractFunctions(exec.CompileUnits, true)
}

// FunctionByName returns the first function whose name, linkage name or
// demangled name matches.
func (exec *Executable) FunctionByName(name string) (Function, bool, error) {
	functions, err := exec.GetFunctions()
	if err != nil {
		return Function{}, false, err
	}

	for _, fn := range functions {
		if fn.Name == name ||
			(fn.LinkageName != "" && fn.LinkageName == name) ||
			(fn.DemangledName != "" && fn.DemangledName == name) {

			return fn, true, nil
		}
	}

	return Function{}, false, nil
}

type Instruction struct {
	Address uint64
	x86asm.Inst
}

func (inst Instruction) String() string {
	return fmt.Sprintf(
		"0x%016x: %s",
		inst.Address,
		x86asm.GNUSyntax(inst.Inst, inst.Address, nil))
}

// Disassemble decodes up to numInstructions instructions starting at the
// function's entry address.  Decoding stops early at the end of the
// containing section or at the first undecodable instruction.
func (exec *Executable) Disassemble(
	fn Function,
	numInstructions int,
) (
	[]Instruction,
	error,
) {
	if numInstructions < 0 {
		return nil, fmt.Errorf(
			"invalid number of instructions to disassemble: %d",
			numInstructions)
	} else if numInstructions == 0 {
		return nil, nil
	}

	section := exec.SectionContaining(elf.FileAddress(fn.StartAddress))
	if section == nil {
		return nil, fmt.Errorf(
			"no loaded section contains %s's address (%#x)",
			fn.Name,
			fn.StartAddress)
	}

	content, err := section.RawContent()
	if err != nil {
		return nil, err
	}

	offset := fn.StartAddress - section.Address
	if offset >= uint64(len(content)) {
		return nil, fmt.Errorf(
			"%s's address (%#x) is outside of %s's content",
			fn.Name,
			fn.StartAddress,
			section.Name())
	}

	data := content[offset:]

	// Every instruction is at least one byte long.
	if numInstructions > len(data) {
		numInstructions = len(data)
	}

	maxLength := numInstructions * maxX64InstructionLength
	if len(data) > maxLength {
		data = data[:maxLength]
	}

	address := fn.StartAddress
	result := []Instruction{}
	for len(data) > 0 && len(result) < numInstructions {
		inst, err := x86asm.Decode(data, 64)
		if err != nil {
			break
		}

		result = append(
			result,
			Instruction{
				Address: address,
				Inst:    inst,
			})

		data = data[inst.Len:]
		address += uint64(inst.Len)
	}

	return result, nil
}
