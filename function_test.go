package dwarfx86

import (
	"errors"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"

	"github.com/pattyshack/dwarfx86/dwarf"
	"github.com/pattyshack/dwarfx86/dwarf/dwarftest"
)

type FunctionSuite struct{}

func TestFunction(t *testing.T) {
	suite.RunTests(t, &FunctionSuite{})
}

func loadUnits(t *testing.T, units ...*dwarftest.Unit) *Executable {
	image, err := dwarftest.BuildExecutable(dwarftest.SampleCode(), units...)
	expect.Nil(t, err)

	exec, err := LoadExecutableBytes("test", image)
	expect.Nil(t, err)
	return exec
}

func unitWith(children ...*dwarftest.Entry) *dwarftest.Unit {
	return &dwarftest.Unit{
		Root: dwarftest.CompileUnit("test.c", children...),
	}
}

func expectExtractionError(
	t *testing.T,
	err error,
	kind ExtractionErrorKind,
) *ExtractionError {
	extractErr := &ExtractionError{}
	expect.True(t, errors.As(err, &extractErr))
	expect.Equal(t, kind, extractErr.Kind)
	return extractErr
}

func (FunctionSuite) TestSampleProgram(t *testing.T) {
	exec := loadUnits(t, dwarftest.SampleProgram())

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)

	expect.Equal(
		t,
		[]Function{
			{
				Name:         "main",
				StartAddress: dwarftest.MainAddress,
				Arguments: []Argument{
					{"argc", NewRegisterLocation(RDI)},
					{"argv", NewFrameOffsetLocation(-32)},
				},
			},
			{
				Name:         "somefunc",
				StartAddress: dwarftest.SomeFuncAddress,
				Arguments: []Argument{
					{"a", NewFrameOffsetLocation(-20)},
					{"b", NewFrameOffsetLocation(-24)},
				},
			},
			{
				Name:         "someOtherFunc",
				StartAddress: dwarftest.SomeOtherFuncAddress,
				Arguments: []Argument{
					{"a", NewFrameOffsetLocation(-20)},
					{"b", NewFrameOffsetLocation(-32)},
					{"c", NewRegisterLocation(RDX)},
				},
			},
		},
		functions)

	expect.Equal(
		t,
		"main @0x401000(argc: register rdi, argv: frame offset -32)",
		functions[0].String())
}

func (FunctionSuite) TestIdempotent(t *testing.T) {
	exec := loadUnits(t, dwarftest.SampleProgram())

	first, err := exec.GetFunctions()
	expect.Nil(t, err)

	second, err := exec.GetFunctions()
	expect.Nil(t, err)

	expect.Equal(t, first, second)

	// Results are owned by the caller.
	first[0].Arguments[0].Name = "modified"
	third, err := exec.GetFunctions()
	expect.Nil(t, err)
	expect.Equal(t, second, third)
}

func (FunctionSuite) TestMultipleUnits(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(dwarftest.Subprogram("a", 0x1000)),
		unitWith(),
		unitWith(
			dwarftest.Subprogram("b", 0x2000),
			dwarftest.Subprogram("c", 0x3000)))

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)

	names := []string{}
	for _, fn := range functions {
		names = append(names, fn.Name)
		expect.Equal(t, 0, len(fn.Arguments))
	}
	expect.Equal(t, []string{"a", "b", "c"}, names)
}

func (FunctionSuite) TestNoFunctions(t *testing.T) {
	exec := loadUnits(t, unitWith(dwarftest.BaseType("int", 4)))

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)
	expect.Equal(t, 0, len(functions))
}

func (FunctionSuite) TestNestedEntriesNotVisited(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			&dwarftest.Entry{
				Tag: dwarf.DW_TAG_namespace,
				Children: []*dwarftest.Entry{
					dwarftest.Subprogram("namespaced", 0x1000),
				},
			},
			dwarftest.Subprogram(
				"outer",
				0x2000,
				dwarftest.Parameter("x", dwarftest.Reg(4)),
				dwarftest.LexicalBlock(
					0x2010,
					dwarftest.Subprogram("nested", 0x3000),
					dwarftest.Parameter("hidden", []byte{0xff})),
				&dwarftest.Entry{
					Tag: dwarf.DW_TAG_variable,
					Attributes: []dwarftest.Attribute{
						{dwarf.DW_AT_name, dwarf.DW_FORM_string, "local"},
						{dwarf.DW_AT_location, dwarf.DW_FORM_exprloc, []byte{0xff}},
					},
				},
				dwarftest.Parameter("y", dwarftest.Reg(1)))))

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)

	expect.Equal(
		t,
		[]Function{
			{
				Name:         "outer",
				StartAddress: 0x2000,
				Arguments: []Argument{
					{"x", NewRegisterLocation(RSI)},
					{"y", NewRegisterLocation(RDX)},
				},
			},
		},
		functions)
}

func (FunctionSuite) TestNameForms(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram(
				"inline",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Reg(0)).Replace(
					dwarf.DW_AT_name,
					dwarf.DW_FORM_string,
					"q"),
			).Replace(dwarf.DW_AT_name, dwarf.DW_FORM_string, "inline")),
		&dwarftest.Unit{
			Version: 5,
			Root: &dwarftest.Entry{
				Tag: dwarf.DW_TAG_compile_unit,
				Children: []*dwarftest.Entry{
					dwarftest.Subprogram(
						"indexed",
						0,
						dwarftest.Parameter("r", dwarftest.Fbreg(-8)).Replace(
							dwarf.DW_AT_name,
							dwarf.DW_FORM_line_strp,
							"r"),
					).Replace(
						dwarf.DW_AT_name,
						dwarf.DW_FORM_strx1,
						"indexed",
					).Replace(
						dwarf.DW_AT_low_pc,
						dwarf.DW_FORM_addrx,
						uint64(0x5000)),
				},
			},
		})

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)

	expect.Equal(
		t,
		[]Function{
			{
				Name:         "inline",
				StartAddress: 0x1000,
				Arguments: []Argument{
					{"q", NewRegisterLocation(RAX)},
				},
			},
			{
				Name:         "indexed",
				StartAddress: 0x5000,
				Arguments: []Argument{
					{"r", NewFrameOffsetLocation(-8)},
				},
			},
		},
		functions)
}

func (FunctionSuite) TestLinkageName(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram("add", 0x1000).With(
				dwarf.DW_AT_linkage_name,
				dwarf.DW_FORM_strp,
				"_ZN4math3addEii"),
			dwarftest.Subprogram("plain", 0x2000).With(
				dwarf.DW_AT_MIPS_linkage_name,
				dwarf.DW_FORM_string,
				"plain")))

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)
	expect.Equal(t, 2, len(functions))

	expect.Equal(t, "add", functions[0].Name)
	expect.Equal(t, "_ZN4math3addEii", functions[0].LinkageName)
	expect.Equal(t, "math::add(int, int)", functions[0].DemangledName)
	expect.Equal(t, "math::add(int, int)", functions[0].PrettyName())

	expect.Equal(t, "plain", functions[1].LinkageName)
	expect.Equal(t, "", functions[1].DemangledName)
	expect.Equal(t, "plain", functions[1].PrettyName())

	fn, ok, err := exec.FunctionByName("math::add(int, int)")
	expect.Nil(t, err)
	expect.True(t, ok)
	expect.Equal(t, "add", fn.Name)

	fn, ok, err = exec.FunctionByName("_ZN4math3addEii")
	expect.Nil(t, err)
	expect.True(t, ok)
	expect.Equal(t, uint64(0x1000), fn.StartAddress)

	_, ok, err = exec.FunctionByName("missing")
	expect.Nil(t, err)
	expect.False(t, ok)
}

func (FunctionSuite) TestDuplicateAttributeLastWins(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram(
				"first",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Reg(0)).With(
					dwarf.DW_AT_location,
					dwarf.DW_FORM_exprloc,
					dwarftest.Reg(5)),
			).With(
				dwarf.DW_AT_name,
				dwarf.DW_FORM_string,
				"second",
			).With(
				dwarf.DW_AT_low_pc,
				dwarf.DW_FORM_addr,
				uint64(0x2000))))

	functions, err := exec.GetFunctions()
	expect.Nil(t, err)

	expect.Equal(
		t,
		[]Function{
			{
				Name:         "second",
				StartAddress: 0x2000,
				Arguments: []Argument{
					{"p", NewRegisterLocation(RDI)},
				},
			},
		},
		functions)
}

func (FunctionSuite) TestMissingAttributes(t *testing.T) {
	type testCase struct {
		entry     *dwarftest.Entry
		attribute dwarf.Attribute
		function  string
		parameter string
		message   string
	}

	for _, test := range []testCase{
		{
			entry:     dwarftest.Subprogram("f", 0x1000).Without(dwarf.DW_AT_name),
			attribute: dwarf.DW_AT_name,
			message:   "missing attribute: DW_AT_name not found",
		},
		{
			entry:     dwarftest.Subprogram("f", 0x1000).Without(dwarf.DW_AT_low_pc),
			attribute: dwarf.DW_AT_low_pc,
			function:  "f",
			message:   "function f: missing attribute: DW_AT_low_pc not found",
		},
		{
			entry: dwarftest.Subprogram(
				"f",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Reg(0)).Without(
					dwarf.DW_AT_name)),
			attribute: dwarf.DW_AT_name,
			function:  "f",
			message:   "missing attribute: DW_AT_name not found",
		},
		{
			entry: dwarftest.Subprogram(
				"f",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Reg(0)).Without(
					dwarf.DW_AT_location)),
			attribute: dwarf.DW_AT_location,
			function:  "f",
			parameter: "p",
			message:   "function f, parameter p: missing attribute: DW_AT_location not found",
		},
	} {
		exec := loadUnits(t, unitWith(test.entry))

		functions, err := exec.GetFunctions()
		expect.True(t, functions == nil)
		expect.True(t, errors.Is(err, ErrMissingAttribute))
		expect.Error(t, err, test.message)

		extractErr := expectExtractionError(t, err, MissingAttribute)
		expect.Equal(t, test.attribute, extractErr.Attribute)
		expect.Equal(t, test.function, extractErr.Function)
		expect.Equal(t, test.parameter, extractErr.Parameter)
	}
}

func (FunctionSuite) TestUnexpectedAttributeTypes(t *testing.T) {
	type testCase struct {
		entry     *dwarftest.Entry
		attribute dwarf.Attribute
		format    dwarf.Format
	}

	for _, test := range []testCase{
		{
			entry: dwarftest.Subprogram("f", 0x1000).Replace(
				dwarf.DW_AT_name,
				dwarf.DW_FORM_data4,
				42),
			attribute: dwarf.DW_AT_name,
			format:    dwarf.DW_FORM_data4,
		},
		{
			entry: dwarftest.Subprogram("f", 0x1000).Replace(
				dwarf.DW_AT_low_pc,
				dwarf.DW_FORM_data8,
				0x1000),
			attribute: dwarf.DW_AT_low_pc,
			format:    dwarf.DW_FORM_data8,
		},
		{
			entry: dwarftest.Subprogram("f", 0x1000).Replace(
				dwarf.DW_AT_name,
				dwarf.DW_FORM_strp,
				uint32(0xffffff)),
			attribute: dwarf.DW_AT_name,
			format:    dwarf.DW_FORM_strp,
		},
		{
			entry: dwarftest.Subprogram(
				"f",
				0x1000,
				dwarftest.Parameter("p", nil).Replace(
					dwarf.DW_AT_location,
					dwarf.DW_FORM_sec_offset,
					0x100)),
			attribute: dwarf.DW_AT_location,
			format:    dwarf.DW_FORM_sec_offset,
		},
		{
			entry: dwarftest.Subprogram(
				"f",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Reg(0)).Replace(
					dwarf.DW_AT_name,
					dwarf.DW_FORM_udata,
					7)),
			attribute: dwarf.DW_AT_name,
			format:    dwarf.DW_FORM_udata,
		},
	} {
		exec := loadUnits(t, unitWith(test.entry))

		_, err := exec.GetFunctions()
		expect.True(t, errors.Is(err, ErrUnexpectedAttributeType))

		extractErr := expectExtractionError(t, err, UnexpectedAttributeType)
		expect.Equal(t, test.attribute, extractErr.Attribute)
		expect.Equal(t, test.format, extractErr.Format)
	}
}

func (FunctionSuite) TestLocationErrors(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram(
				"f",
				0x1000,
				dwarftest.Parameter("ok", dwarftest.Reg(0)),
				dwarftest.Parameter("p", []byte{0x3f}))))

	_, err := exec.GetFunctions()
	expect.True(t, errors.Is(err, ErrInvalidLocation))
	expect.Equal(
		t,
		"function f, parameter p: invalid location: "+
			"unsupported location opcode 0x3f",
		err.Error())

	extractErr := expectExtractionError(t, err, InvalidLocation)
	expect.Equal(t, "f", extractErr.Function)
	expect.Equal(t, "p", extractErr.Parameter)
	expect.Equal(t, uint8(0x3f), extractErr.Opcode)
	expect.Equal(t, dwarf.DW_AT_location, extractErr.Attribute)

	exec = loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram(
				"g",
				0x1000,
				dwarftest.Parameter("p", dwarftest.Regx(20)))))

	_, err = exec.GetFunctions()
	expect.True(t, errors.Is(err, ErrInvalidRegister))
	expect.Error(t, err, "function g, parameter p: invalid register")

	extractErr = expectExtractionError(t, err, InvalidRegister)
	expect.Equal(t, uint64(20), extractErr.Register)

	exec = loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram(
				"h",
				0x1000,
				dwarftest.Parameter("p", []byte{}))))

	_, err = exec.GetFunctions()
	expect.True(t, errors.Is(err, ErrInvalidLocation))
}

func (FunctionSuite) TestAllOrNothing(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram("good", 0x1000),
			dwarftest.Subprogram(
				"bad",
				0x2000,
				dwarftest.Parameter("p", []byte{0x3f})),
			dwarftest.Subprogram("unnamed", 0x3000).Without(dwarf.DW_AT_name)))

	functions, err := exec.GetFunctions()
	expect.True(t, functions == nil)
	expect.True(t, errors.Is(err, ErrInvalidLocation))

	_, _, err = exec.FunctionByName("good")
	expect.True(t, errors.Is(err, ErrInvalidLocation))
}

func (FunctionSuite) TestBestEffort(t *testing.T) {
	exec := loadUnits(
		t,
		unitWith(
			dwarftest.Subprogram("good", 0x1000),
			dwarftest.Subprogram(
				"bad",
				0x2000,
				dwarftest.Parameter("p", []byte{0x3f})),
			dwarftest.Subprogram("unnamed", 0x3000).Without(dwarf.DW_AT_name)),
		dwarftest.SampleProgram())

	functions, errs := exec.GetFunctionsBestEffort()

	names := []string{}
	for _, fn := range functions {
		names = append(names, fn.Name)
	}
	expect.Equal(
		t,
		[]string{"good", "main", "somefunc", "someOtherFunc"},
		names)

	expect.Equal(t, 2, len(errs))
	expect.Equal(t, InvalidLocation, errs[0].Kind)
	expect.Equal(t, "bad", errs[0].Function)
	expect.Equal(t, MissingAttribute, errs[1].Kind)
	expect.Equal(t, "", errs[1].Function)
	expect.Error(t, errs[1], "subprogram (0x")

	exec = loadUnits(t, dwarftest.SampleProgram())
	functions, errs = exec.GetFunctionsBestEffort()
	expect.Equal(t, 3, len(functions))
	expect.Equal(t, 0, len(errs))
}
