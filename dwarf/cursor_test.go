package dwarf_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/go-delve/delve/pkg/dwarf/leb128"
	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/pattyshack/dwarfx86/dwarf"
)

type CursorSuite struct{}

func TestCursor(t *testing.T) {
	suite.RunTests(t, &CursorSuite{})
}

func newCursor(content ...byte) *dwarf.Cursor {
	return dwarf.NewCursor(binary.LittleEndian, content)
}

func repeat(b byte, count int, last ...byte) []byte {
	return append(bytes.Repeat([]byte{b}, count), last...)
}

func (CursorSuite) TestFixedWidth(t *testing.T) {
	cursor := newCursor(
		0x01,
		0x02, 0x03,
		0x04, 0x05, 0x06,
		0x07, 0x08, 0x09, 0x0a,
		'h', 'i', 0,
		0xff)

	u8, err := cursor.U8()
	expect.Nil(t, err)
	expect.Equal(t, uint8(0x01), u8)

	u16, err := cursor.U16()
	expect.Nil(t, err)
	expect.Equal(t, uint16(0x0302), u16)

	u24, err := cursor.U24()
	expect.Nil(t, err)
	expect.Equal(t, uint32(0x060504), u24)

	u32, err := cursor.U32()
	expect.Nil(t, err)
	expect.Equal(t, uint32(0x0a090807), u32)

	str, err := cursor.String()
	expect.Nil(t, err)
	expect.Equal(t, "hi", str)

	_, err = cursor.U16()
	expect.NotNil(t, err)
	expect.Equal(t, 13, cursor.Position)

	_, err = cursor.String()
	expect.Error(t, err, "string not terminated")
}

func (CursorSuite) TestBigEndianU24(t *testing.T) {
	cursor := dwarf.NewCursor(binary.BigEndian, []byte{0x01, 0x02, 0x03})

	value, err := cursor.U24()
	expect.Nil(t, err)
	expect.Equal(t, uint32(0x010203), value)
}

func (CursorSuite) TestBytesAreCopied(t *testing.T) {
	content := []byte{1, 2, 3}
	cursor := newCursor(content...)

	result, err := cursor.Bytes(2)
	expect.Nil(t, err)
	expect.Equal(t, []byte{1, 2}, result)

	result[0] = 42
	expect.Equal(t, byte(1), cursor.Content[0])

	_, err = cursor.Bytes(2)
	expect.Error(t, err, "out of bound slice")
	expect.Equal(t, 2, cursor.Position)
}

func (CursorSuite) TestULEB128(t *testing.T) {
	type testCase struct {
		content []byte
		value   uint64
	}

	for _, test := range []testCase{
		{[]byte{0x00}, 0},
		{[]byte{0x07}, 7},
		{[]byte{0x7f}, 127},
		{[]byte{0x80, 0x01}, 128},
		{[]byte{0xe5, 0x8e, 0x26}, 624485},
		// Redundant padding is allowed.
		{[]byte{0x80, 0x80, 0x00}, 0},
		{repeat(0xff, 9, 0x01), math.MaxUint64},
	} {
		cursor := newCursor(test.content...)
		value, err := cursor.ULEB128(64)
		expect.Nil(t, err)
		expect.Equal(t, test.value, value)
		expect.True(t, cursor.HasReachedEnd())
	}
}

func (CursorSuite) TestSLEB128(t *testing.T) {
	type testCase struct {
		content []byte
		value   int64
	}

	for _, test := range []testCase{
		{[]byte{0x00}, 0},
		{[]byte{0x02}, 2},
		{[]byte{0x7e}, -2},
		{[]byte{0x7f}, -1},
		{[]byte{0x40}, -64},
		{[]byte{0xff, 0x00}, 127},
		{[]byte{0x80, 0x7f}, -128},
		{[]byte{0xc0, 0xbb, 0x78}, -123456},
		{repeat(0xff, 9, 0x00), math.MaxInt64},
		{repeat(0x80, 9, 0x7f), math.MinInt64},
	} {
		cursor := newCursor(test.content...)
		value, err := cursor.SLEB128(64)
		expect.Nil(t, err)
		expect.Equal(t, test.value, value)
		expect.True(t, cursor.HasReachedEnd())
	}
}

func (CursorSuite) TestULEB128Failures(t *testing.T) {
	cursor := newCursor()
	_, err := cursor.ULEB128(64)
	expect.NotNil(t, err)

	cursor = newCursor(0x80, 0x80)
	_, err = cursor.ULEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Truncated))
	expect.Equal(t, 0, cursor.Position)

	// 11 bytes
	cursor = newCursor(repeat(0x80, 10, 0x00)...)
	_, err = cursor.ULEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))
	expect.Equal(t, 0, cursor.Position)

	// The tenth byte can only carry 1 bit.
	cursor = newCursor(repeat(0xff, 9, 0x02)...)
	_, err = cursor.ULEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))
	expect.Equal(t, 0, cursor.Position)

	cursor = newCursor(0xff, 0xff, 0xff, 0xff, 0x0f)
	value, err := cursor.ULEB128(32)
	expect.Nil(t, err)
	expect.Equal(t, uint64(math.MaxUint32), value)

	cursor = newCursor(0xff, 0xff, 0xff, 0xff, 0x1f)
	_, err = cursor.ULEB128(32)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))
}

func (CursorSuite) TestSLEB128Failures(t *testing.T) {
	cursor := newCursor()
	_, err := cursor.SLEB128(64)
	expect.NotNil(t, err)

	cursor = newCursor(0xff)
	_, err = cursor.SLEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Truncated))

	cursor = newCursor(repeat(0x80, 10, 0x7f)...)
	_, err = cursor.SLEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))

	// The tenth byte's bits must all match the sign bit.
	cursor = newCursor(repeat(0xff, 9, 0x01)...)
	_, err = cursor.SLEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))
	expect.Equal(t, 0, cursor.Position)

	cursor = newCursor(repeat(0x80, 9, 0x7e)...)
	_, err = cursor.SLEB128(64)
	expect.True(t, errors.Is(err, dwarf.ErrLEB128Overflow))
}

func (CursorSuite) TestLEB128RoundTrip(t *testing.T) {
	unsigned := []uint64{
		0,
		1,
		127,
		128,
		math.MaxUint32,
		math.MaxUint64 >> 1,
		math.MaxUint64 - 1,
		math.MaxUint64,
	}

	signed := []int64{
		0,
		1,
		-1,
		63,
		-64,
		64,
		-65,
		math.MaxInt32,
		math.MinInt32,
		math.MaxInt64,
		math.MinInt64,
	}

	random := rand.New(rand.NewSource(0))
	for i := 0; i < 1000; i++ {
		value := random.Uint64() >> uint(random.Intn(64))
		unsigned = append(unsigned, value)
		signed = append(signed, int64(value), -int64(value))
	}

	for _, value := range unsigned {
		buffer := &bytes.Buffer{}
		leb128.EncodeUnsigned(buffer, value)

		cursor := newCursor(buffer.Bytes()...)
		decoded, err := cursor.ULEB128(64)
		expect.Nil(t, err)
		expect.Equal(t, value, decoded)
		expect.True(t, cursor.HasReachedEnd())
	}

	for _, value := range signed {
		buffer := &bytes.Buffer{}
		leb128.EncodeSigned(buffer, value)

		cursor := newCursor(buffer.Bytes()...)
		decoded, err := cursor.SLEB128(64)
		expect.Nil(t, err)
		expect.Equal(t, value, decoded)
		expect.True(t, cursor.HasReachedEnd())
	}
}
