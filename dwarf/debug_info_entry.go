package dwarf

import (
	"errors"
	"fmt"

	"github.com/pattyshack/dwarfx86/elf"
)

var (
	ErrSkipVisitingChildren = errors.New("skip visiting children")
)

type DebugInfoEntry struct {
	*CompileUnit
	SectionOffset

	*Abbreviation
	Values []interface{}

	Children []*DebugInfoEntry
}

type AttributeValue struct {
	AttributeSpec
	Value interface{}
}

func parseDebugInfoEntry(
	unit *CompileUnit,
	abbrevTable AbbreviationTable,
	decode *Cursor,
) (
	uint64,
	*DebugInfoEntry,
	error,
) {
	startAddr := unit.ContentStart + SectionOffset(decode.Position)

	code, err := decode.ULEB128(64)
	if err != nil {
		return 0, nil, fmt.Errorf(
			"failed to parse DIE (%d). invalid code: %w",
			startAddr,
			err)
	}

	if code == 0 {
		return 0, nil, nil
	}

	abbrev, ok := abbrevTable[code]
	if !ok {
		return 0, nil, fmt.Errorf(
			"failed to parse DIE (%d). abbreviation (%d) not found",
			startAddr,
			code)
	}

	values := make([]interface{}, 0, len(abbrev.AttributeSpecs))
	for _, spec := range abbrev.AttributeSpecs {
		value, err := decode.Value(unit, spec)
		if err != nil {
			return 0, nil, fmt.Errorf(
				"failed to parse DIE (%d). invalid %s: %w",
				startAddr,
				spec.Attribute,
				err)
		}
		values = append(values, value)
	}

	entry := &DebugInfoEntry{
		CompileUnit:   unit,
		SectionOffset: startAddr,
		Abbreviation:  abbrev,
		Values:        values,
	}

	return code, entry, nil
}

// Attributes returns the entry's attributes in abbreviation order.
// Duplicated attributes are returned as is.
func (entry *DebugInfoEntry) Attributes() []AttributeValue {
	result := make([]AttributeValue, 0, len(entry.AttributeSpecs))
	for idx, spec := range entry.AttributeSpecs {
		result = append(
			result,
			AttributeValue{
				AttributeSpec: spec,
				Value:         entry.Values[idx],
			})
	}
	return result
}

// SpecIndex returns the index of the last spec matching attr, or -1.
func (entry *DebugInfoEntry) SpecIndex(attr Attribute) int {
	for idx := len(entry.AttributeSpecs) - 1; idx >= 0; idx-- {
		if attr == entry.AttributeSpecs[idx].Attribute {
			return idx
		}
	}
	return -1
}

func (entry *DebugInfoEntry) Any(attr Attribute) (interface{}, bool) {
	idx := entry.SpecIndex(attr)
	if idx == -1 {
		return nil, false
	}
	return entry.Values[idx], true
}

func (entry *DebugInfoEntry) Address(
	attr Attribute,
) (
	elf.FileAddress,
	bool,
) {
	val, ok := entry.Any(attr)
	if !ok {
		return 0, false
	}
	addr, ok := val.(elf.FileAddress)
	return addr, ok
}

func (entry *DebugInfoEntry) Offset(attr Attribute) (SectionOffset, bool) {
	val, ok := entry.Any(attr)
	if !ok {
		return 0, false
	}
	offset, ok := val.(SectionOffset)
	return offset, ok
}

func (entry *DebugInfoEntry) Uint(attr Attribute) (uint64, bool) {
	val, ok := entry.Any(attr)
	if !ok {
		return 0, false
	}
	result, ok := val.(uint64)
	return result, ok
}

func (entry *DebugInfoEntry) Bytes(attr Attribute) ([]byte, bool) {
	val, ok := entry.Any(attr)
	if !ok {
		return nil, false
	}
	result, ok := val.([]byte)
	return result, ok
}

// String returns the attribute's value if it is encoded in one of the string
// forms.
func (entry *DebugInfoEntry) String(attr Attribute) (string, bool, error) {
	val, ok := entry.Any(attr)
	if !ok {
		return "", false, nil
	}
	return entry.CompileUnit.ResolveString(val)
}

func (entry *DebugInfoEntry) Name() (
	string,
	bool, // false if not found
	error,
) {
	return entry.String(DW_AT_name)
}

func (entry *DebugInfoEntry) FormatValue(value interface{}) string {
	switch val := value.(type) {
	case elf.FileAddress:
		return fmt.Sprintf("%#x", uint64(val))
	case []byte:
		return fmt.Sprintf("% x", val)
	case StringOffset, LineStringOffset, StringIndex:
		str, _, err := entry.CompileUnit.ResolveString(val)
		if err != nil {
			return fmt.Sprintf("%v (%s)", val, err)
		}
		return fmt.Sprintf("%q", str)
	case string:
		return fmt.Sprintf("%q", val)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func (entry *DebugInfoEntry) Visit(enter ProcessFunc, exit ProcessFunc) error {
	skipVisitingChildren := false
	if enter != nil {
		err := enter(entry)
		if err != nil {
			if errors.Is(err, ErrSkipVisitingChildren) {
				skipVisitingChildren = true
			} else {
				return err
			}
		}
	}

	if !skipVisitingChildren {
		for _, child := range entry.Children {
			err := child.Visit(enter, exit)
			if err != nil {
				return err
			}
		}
	}

	if exit != nil {
		err := exit(entry)
		if err != nil {
			return err
		}
	}

	return nil
}
