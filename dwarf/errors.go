package dwarf

import (
	"errors"
	"fmt"

	"github.com/pattyshack/dwarfx86/elf"
)

const (
	ElfDebugAbbreviationSection  = ".debug_abbrev"
	ElfDebugInformationSection   = ".debug_info"
	ElfDebugStringSection        = ".debug_str"
	ElfDebugLineStringSection    = ".debug_line_str"
	ElfDebugStringOffsetsSection = ".debug_str_offsets"
	ElfDebugAddressSection       = ".debug_addr"
)

var (
	ErrSectionNotFound = errors.New("section not found")
)

type SectionNotFoundError struct {
	Name string
}

func (err *SectionNotFoundError) Error() string {
	return fmt.Sprintf("elf %s %s", err.Name, ErrSectionNotFound)
}

func (err *SectionNotFoundError) Unwrap() error {
	return ErrSectionNotFound
}

func requiredSectionContent(file *elf.File, name string) ([]byte, error) {
	section := file.GetSection(name)
	if section == nil {
		return nil, &SectionNotFoundError{Name: name}
	}

	content, err := section.RawContent()
	if err != nil {
		return nil, fmt.Errorf("failed to read elf %s section: %w", name, err)
	}

	return content, nil
}

// Returns nil content (and no error) when the section is absent.
func optionalSectionContent(file *elf.File, name string) ([]byte, bool, error) {
	section := file.GetSection(name)
	if section == nil {
		return nil, false, nil
	}

	content, err := section.RawContent()
	if err != nil {
		return nil, false, fmt.Errorf(
			"failed to read elf %s section: %w",
			name,
			err)
	}

	return content, true, nil
}
