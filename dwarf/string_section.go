package dwarf

import (
	"bytes"
	"fmt"
)

// StringSection is used for both .debug_str and .debug_line_str.
type StringSection struct {
	name    string
	found   bool
	content []byte
}

func NewStringSectionFromBytes(name string, content []byte) *StringSection {
	return &StringSection{
		name:    name,
		found:   content != nil,
		content: content,
	}
}

func (table *StringSection) StringAt(offset SectionOffset) (string, error) {
	value, _, err := table.getStringAt(int(offset))
	return value, err
}

func (table *StringSection) getStringAt(offset int) (string, int, error) {
	if !table.found {
		return "", 0, fmt.Errorf("elf %s section not found", table.name)
	}

	if offset < 0 || len(table.content) <= offset {
		return "", 0, fmt.Errorf(
			"out of bound %s string reference (%d)",
			table.name,
			offset)
	}

	content := table.content[offset:]
	end := bytes.IndexByte(content, 0)
	if end == -1 {
		return "", 0, fmt.Errorf(
			"%s string reference (%d) not terminated",
			table.name,
			offset)
	}

	return string(content[:end]), offset + end + 1, nil
}

func (table *StringSection) StringEntries() ([]string, error) {
	result := []string{}
	offset := 0
	for len(table.content) > offset {
		value, next, err := table.getStringAt(offset)
		if err != nil {
			return nil, err
		}

		result = append(result, value)
		offset = next
	}

	return result, nil
}
