package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pattyshack/gt/testing/expect"
	"github.com/pattyshack/gt/testing/suite"
	"gopkg.in/yaml.v3"

	"github.com/pattyshack/dwarfx86"
	"github.com/pattyshack/dwarfx86/dwarf/dwarftest"
)

type CLISuite struct{}

func TestCLI(t *testing.T) {
	suite.RunTests(t, &CLISuite{})
}

func writeSample(t *testing.T) string {
	image, err := dwarftest.SampleExecutable()
	expect.Nil(t, err)

	path := filepath.Join(t.TempDir(), "sample")
	err = os.WriteFile(path, image, 0755)
	expect.Nil(t, err)

	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}

	cmd := newRootCommand()
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetArgs(append([]string{"--color", "never"}, args...))

	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func (CLISuite) TestFunctionsText(t *testing.T) {
	path := writeSample(t)

	stdout, _, err := run(t, "functions", path)
	expect.Nil(t, err)
	expect.Equal(
		t,
		"  main @0x401000(argc: register rdi, argv: frame offset -32)\n"+
			"  somefunc @0x401020(a: frame offset -20, b: frame offset -24)\n"+
			"  someOtherFunc @0x401040(a: frame offset -20, b: frame offset -32, "+
			"c: register rdx)\n",
		stdout)
}

func (CLISuite) TestFunctionsJSON(t *testing.T) {
	path := writeSample(t)

	stdout, _, err := run(t, "functions", "--format", "json", path)
	expect.Nil(t, err)

	docs := []fileDocument{}
	err = json.Unmarshal([]byte(stdout), &docs)
	expect.Nil(t, err)

	expect.Equal(t, 1, len(docs))
	expect.Equal(t, path, docs[0].Path)
	expect.Equal(t, "", docs[0].Error)
	expect.Equal(t, 3, len(docs[0].Functions))

	mainFn := docs[0].Functions[0]
	expect.Equal(t, "main", mainFn.Name)
	expect.Equal(t, "0x401000", mainFn.StartAddress)
	expect.Equal(t, 2, len(mainFn.Arguments))
	expect.Equal(t, "register", mainFn.Arguments[0].Kind)
	expect.Equal(t, "rdi", mainFn.Arguments[0].Register)
	expect.True(t, mainFn.Arguments[0].Offset == nil)
	expect.Equal(t, "frame_offset", mainFn.Arguments[1].Kind)
	expect.Equal(t, int64(-32), *mainFn.Arguments[1].Offset)
}

func (CLISuite) TestFunctionsYAML(t *testing.T) {
	path := writeSample(t)
	missing := filepath.Join(t.TempDir(), "missing")

	stdout, _, err := run(t, "functions", "-f", "yaml", "-j", "1", path, missing)
	expect.Error(t, err, "failed to extract 1 of 2 files")

	docs := []fileDocument{}
	err = yaml.Unmarshal([]byte(stdout), &docs)
	expect.Nil(t, err)

	expect.Equal(t, 2, len(docs))
	expect.Equal(t, 3, len(docs[0].Functions))
	expect.Equal(t, "somefunc", docs[0].Functions[1].Name)
	expect.Equal(t, "0x401020", docs[0].Functions[1].StartAddress)

	expect.Equal(t, missing, docs[1].Path)
	expect.Equal(t, 0, len(docs[1].Functions))
	expect.True(t, strings.Contains(docs[1].Error, "io failure"))
}

func (CLISuite) TestFunctionsFailures(t *testing.T) {
	path := writeSample(t)

	_, _, err := run(t, "functions", "--format", "xml", path)
	expect.Error(t, err, "invalid --format value (xml)")

	_, _, err = run(t, "functions")
	expect.NotNil(t, err)

	_, _, err = run(t, "--color", "sometimes", "functions", path)
	expect.Error(t, err, "invalid --color value (sometimes)")

	garbage := filepath.Join(t.TempDir(), "garbage")
	err = os.WriteFile(garbage, []byte("garbage"), 0644)
	expect.Nil(t, err)

	stdout, stderr, err := run(t, "functions", path, garbage)
	expect.Error(t, err, "failed to extract 1 of 2 files")
	expect.True(t, strings.Contains(stdout, path+":\n  main @0x401000"))
	expect.True(t, strings.Contains(stdout, garbage+":\n  error: failed to load"))
	expect.True(t, strings.Contains(stderr, "extraction failed"))
}

func (CLISuite) TestFunctionsBestEffort(t *testing.T) {
	image, err := dwarftest.BuildExecutable(
		dwarftest.SampleCode(),
		&dwarftest.Unit{
			Root: dwarftest.CompileUnit(
				"partial.c",
				dwarftest.Subprogram(
					"good",
					dwarftest.MainAddress,
					dwarftest.Parameter("a", dwarftest.Reg(4))),
				dwarftest.Subprogram(
					"bad",
					dwarftest.SomeFuncAddress,
					dwarftest.Parameter("b", dwarftest.Regx(42)))),
		})
	expect.Nil(t, err)

	path := filepath.Join(t.TempDir(), "partial")
	err = os.WriteFile(path, image, 0755)
	expect.Nil(t, err)

	stdout, _, err := run(t, "functions", path)
	expect.Error(t, err, "failed to extract 1 of 1 files")
	expect.True(t, strings.Contains(stdout, "error: function bad, parameter b"))

	stdout, _, err = run(t, "functions", "--best-effort", path)
	expect.Nil(t, err)
	expect.Equal(
		t,
		"  good @0x401000(a: register rsi)\n"+
			"  skipped: function bad, parameter b: invalid register: "+
			"DW_OP_regx register number 42 is not a general purpose register\n",
		stdout)
}

func (CLISuite) TestShow(t *testing.T) {
	path := writeSample(t)

	stdout, _, err := run(t, "show", path, "somefunc")
	expect.Nil(t, err)
	expect.Equal(
		t,
		"somefunc @0x401020(a: frame offset -20, b: frame offset -24)\n",
		stdout)

	stdout, _, err = run(t, "show", "--disassemble", "2", path, "main")
	expect.Nil(t, err)
	expect.Equal(
		t,
		"main @0x401000(argc: register rdi, argv: frame offset -32)\n"+
			"  0x0000000000401000: push %rbp\n"+
			"  0x0000000000401001: mov %rsp,%rbp\n",
		stdout)

	_, _, err = run(t, "show", path, "nope")
	expect.Error(t, err, "function nope not found")

	_, _, err = run(t, "show", path)
	expect.NotNil(t, err)
}

func (CLISuite) TestDump(t *testing.T) {
	path := writeSample(t)

	stdout, _, err := run(t, "dump", path)
	expect.Nil(t, err)

	expect.True(t, strings.HasPrefix(stdout, ".debug_info:\n"))
	expect.True(
		t,
		strings.Contains(
			stdout,
			"CompileUnit: Start = 0 Version = 4 NumEntries = 12\n"))
	expect.True(t, strings.Contains(stdout, ": DW_TAG_compile_unit (sample.c)\n"))
	expect.True(t, strings.Contains(stdout, "| 000000"))
	expect.True(t, strings.Contains(stdout, ": DW_TAG_subprogram (main)\n"))
	expect.True(t, strings.Contains(stdout, "| | 000000"))
	expect.True(
		t,
		strings.Contains(stdout, ": DW_TAG_formal_parameter (argc)\n"))
	expect.True(
		t,
		strings.Contains(stdout, "DW_AT_name (DW_FORM_strp):\t\"main\"\n"))
	expect.True(
		t,
		strings.Contains(stdout, "DW_AT_location (DW_FORM_exprloc):\t55\n"))
	expect.True(
		t,
		strings.Contains(stdout, "DW_AT_low_pc (DW_FORM_addr):\t0x401020\n"))
}

func (CLISuite) TestShellCommands(t *testing.T) {
	image, err := dwarftest.SampleExecutable()
	expect.Nil(t, err)

	exec, err := dwarfx86.LoadExecutableBytes("sample", image)
	expect.Nil(t, err)

	out := &bytes.Buffer{}
	sh := newShell(exec, out)

	// empty line with no history is a no-op
	err = sh.execute("   ")
	expect.Nil(t, err)
	expect.Equal(t, "", out.String())

	err = sh.execute("list")
	expect.Nil(t, err)
	expect.Equal(t, 3, strings.Count(out.String(), "\n"))
	expect.True(t, strings.HasPrefix(out.String(), "main @0x401000("))

	out.Reset()
	err = sh.execute("sh someOtherFunc")
	expect.Nil(t, err)
	expect.Equal(
		t,
		"someOtherFunc @0x401040(a: frame offset -20, b: frame offset -32, "+
			"c: register rdx)\n",
		out.String())

	// repeats the last command
	out.Reset()
	err = sh.execute("")
	expect.Nil(t, err)
	expect.True(t, strings.HasPrefix(out.String(), "someOtherFunc @0x401040("))

	out.Reset()
	err = sh.execute("d somefunc 5")
	expect.Nil(t, err)
	lines := strings.Split(strings.TrimSuffix(out.String(), "\n"), "\n")
	expect.Equal(t, 6, len(lines))
	expect.Equal(t, "  0x0000000000401020: push %rbp", lines[1])
	expect.Equal(t, "  0x0000000000401028: ret", lines[5])

	out.Reset()
	err = sh.execute("disassemble main")
	expect.Nil(t, err)
	expect.Equal(
		t,
		1+defaultNumInstructions,
		strings.Count(out.String(), "\n"))

	err = sh.execute("disassemble main many")
	expect.Error(t, err, "invalid number of instructions (many)")

	err = sh.execute("show")
	expect.Error(t, err, "expected exactly one function name")

	err = sh.execute("show missing")
	expect.Error(t, err, "function missing not found")

	err = sh.execute("list extra")
	expect.Error(t, err, "unexpected arguments")

	err = sh.execute("frobnicate")
	expect.Error(t, err, "invalid command: frobnicate")

	out.Reset()
	err = sh.execute("help")
	expect.Nil(t, err)
	expect.True(t, strings.Contains(out.String(), "  disassemble <name>"))

	err = sh.execute("q")
	expect.True(t, err == errQuit)
}

func (CLISuite) TestLogLevel(t *testing.T) {
	stderr := &bytes.Buffer{}

	logger, err := newLogger(stderr, false)
	expect.Nil(t, err)
	logger.Info("hidden")
	logger.Warn("shown")
	expect.False(t, strings.Contains(stderr.String(), "hidden"))
	expect.True(t, strings.Contains(stderr.String(), "shown"))

	stderr.Reset()
	logger, err = newLogger(stderr, true)
	expect.Nil(t, err)
	logger.Debug("debugging")
	expect.True(t, strings.Contains(stderr.String(), "level=DEBUG"))

	t.Setenv(logLevelEnv, "info")
	stderr.Reset()
	logger, err = newLogger(stderr, false)
	expect.Nil(t, err)
	logger.Info("informational")
	logger.Debug("hidden")
	expect.True(t, strings.Contains(stderr.String(), "informational"))
	expect.False(t, strings.Contains(stderr.String(), "hidden"))

	t.Setenv(logLevelEnv, "loud")
	_, err = newLogger(stderr, false)
	expect.Error(t, err, "invalid DWARFX86_LOG_LEVEL (loud)")
}
