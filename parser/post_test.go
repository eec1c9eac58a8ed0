package parser

import (
	"strings"
	"testing"

	"github.com/picojs/picojs/bytecode"
)

// Branch rewriting across page boundaries: the scratch stream holds
// the body on a dozen pages and the loop branches need two-byte
// offsets after compression.

func TestWideBackwardBranch(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("var i = 0; while (i < 1000) { ")
	for j := 0; j < 120; j++ {
		sb.WriteString("i = i + 1; ")
	}
	sb.WriteString("}")

	code, _ := compile(t, sb.String())
	if err := bytecode.Verify(code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	instructions, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}

	var backward *bytecode.Instruction
	for i := range instructions {
		if strings.HasPrefix(instructions[i].Name(), "BRANCH_IF_TRUE_BACKWARD") {
			backward = &instructions[i]
		}
	}
	if backward == nil {
		t.Fatal("loop-closing branch missing")
	}
	if backward.BranchOffset <= 255 {
		t.Errorf("expected a wide backward offset, got %d", backward.BranchOffset)
	}
	if backward.Name() != "BRANCH_IF_TRUE_BACKWARD_2" {
		t.Errorf("expected the two-byte branch form, got %s", backward.Name())
	}
}

func TestWideForwardBranch(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("if (x) { ")
	for j := 0; j < 120; j++ {
		sb.WriteString("a = a + 1; ")
	}
	sb.WriteString("} else { b = 1; }")

	code, _ := compile(t, sb.String())
	if err := bytecode.Verify(code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}

	in, err := code.DecodeInstruction(2) // after PUSH_IDENT x
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(in.Name(), "BRANCH_IF_FALSE_FORWARD") {
		t.Fatalf("expected the condition branch, got %s", in.Name())
	}
	if in.BranchOffset <= 255 {
		t.Errorf("expected a wide forward offset, got %d", in.BranchOffset)
	}
}

func TestNarrowBranchCompression(t *testing.T) {
	code, _ := compile(t, "if (x) { y; }")

	instructions, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	for _, in := range instructions {
		if strings.HasPrefix(in.Name(), "BRANCH_IF_FALSE_FORWARD") {
			// The placeholder was two bytes; the short distance must
			// compress to the one-byte form.
			if in.Name() != "BRANCH_IF_FALSE_FORWARD" {
				t.Errorf("leading zero not dropped: %s", in.Name())
			}
			return
		}
	}
	t.Fatal("condition branch missing")
}

func TestManyFunctionDeclarationsUseBulkInitializer(t *testing.T) {
	source := `
function a() { }
function b() { }
function c() { }
function d() { }
`
	code, _ := compile(t, source)

	names := baseNames(opcodeNames(t, code))
	if !containsName(names, "INITIALIZE_VARS") {
		t.Errorf("expected a bulk INITIALIZE_VARS prologue: %v", names)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
	if len(code.Functions) != 4 {
		t.Errorf("expected 4 nested functions, got %d", len(code.Functions))
	}
}

func TestUninitializedVarsPrologue(t *testing.T) {
	code, _ := compile(t, "var a, b, c;")

	instructions, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	if instructions[0].Name() != "DEFINE_VARS" {
		t.Fatalf("expected DEFINE_VARS first, got %s", instructions[0].Name())
	}
	// The operand is the last uninitialized slot.
	if instructions[0].Literal != 2 {
		t.Errorf("DEFINE_VARS operand = %d, want 2", instructions[0].Literal)
	}
	if code.IdentEnd != 3 {
		t.Errorf("ident end = %d, want 3", code.IdentEnd)
	}
}
