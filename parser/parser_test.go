package parser

import (
	"strings"
	"testing"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// compile parses source and fails the test on a parse error.
func compile(t *testing.T, source string) (*bytecode.CompiledCode, *lit.Store) {
	t.Helper()
	store := lit.NewStore()
	code, err := ParseScript(store, []byte(source), nil)
	if err != nil {
		t.Fatalf("ParseScript(%q) failed: %v", source, err)
	}
	return code, store
}

// opcodeNames decodes the byte code into a list of opcode names.
func opcodeNames(t *testing.T, code *bytecode.CompiledCode) []string {
	t.Helper()
	instructions, err := code.Instructions()
	if err != nil {
		t.Fatalf("decoding failed: %v", err)
	}
	names := make([]string, len(instructions))
	for i, in := range instructions {
		names[i] = in.Name()
	}
	return names
}

// baseNames strips branch width suffixes so tests stay independent of
// offset compression.
func baseNames(names []string) []string {
	out := make([]string, len(names))
	for i, name := range names {
		out[i] = strings.TrimSuffix(strings.TrimSuffix(name, "_2"), "_3")
	}
	return out
}

func expectNames(t *testing.T, code *bytecode.CompiledCode, want ...string) {
	t.Helper()
	got := baseNames(opcodeNames(t, code))
	if len(got) != len(want) {
		t.Fatalf("opcode sequence mismatch:\n got %v\nwant %v", got, want)
	}
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("opcode %d: got %s, want %s\nfull: %v", i, got[i], want[i], got)
		}
	}
}

func containsName(names []string, want string) bool {
	for _, name := range names {
		if name == want {
			return true
		}
	}
	return false
}

func TestEmptySource(t *testing.T) {
	code, _ := compile(t, "")

	if code.StackLimit != 0 || code.ArgumentEnd != 0 || code.RegisterEnd != 0 ||
		code.IdentEnd != 0 || code.ConstLiteralEnd != 0 || code.LiteralEnd != 0 {
		t.Errorf("empty source header not empty: %+v", code)
	}
	if len(code.Code) != 1 || bytecode.Opcode(code.Code[0]) != bytecode.OpReturnWithUndefined {
		t.Errorf("empty source byte code = %v, want single RETURN_WITH_UNDEFINED", code.Code)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestVarStatement(t *testing.T) {
	code, store := compile(t, "var x = 1; x;")

	expectNames(t, code,
		"DEFINE_VARS", "ASSIGN_IDENT_LITERAL", "PUSH_IDENT", "POP", "RETURN_WITH_UNDEFINED")

	if code.LiteralEnd != 2 {
		t.Fatalf("literal pool size = %d, want 2", code.LiteralEnd)
	}
	name := store.Decompress(code.LiteralPool[0].CP())
	if !name.EqualsUTF8([]byte("x")) {
		t.Errorf("pool[0] is not the identifier x")
	}
	value := store.Decompress(code.LiteralPool[1].CP())
	if !value.EqualsNumber(1) {
		t.Errorf("pool[1] is not the number 1")
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestFunctionDeclaration(t *testing.T) {
	code, _ := compile(t, "function f(a, b) { return a + b; }")

	expectNames(t, code, "INITIALIZE_VAR", "RETURN_WITH_UNDEFINED")

	if len(code.Functions) != 1 {
		t.Fatalf("expected one nested function, got %d", len(code.Functions))
	}
	fn := code.Functions[0]
	if fn.ArgumentEnd != 2 || fn.RegisterEnd != 2 {
		t.Errorf("argument/register ends = %d/%d, want 2/2", fn.ArgumentEnd, fn.RegisterEnd)
	}
	expectNames(t, fn, "ADD_TWO_LITERALS", "RETURN")

	instructions, err := fn.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	if instructions[0].Literal != 0 || instructions[0].Literal2 != 1 {
		t.Errorf("ADD_TWO_LITERALS arguments = %d,%d, want the two argument slots",
			instructions[0].Literal, instructions[0].Literal2)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestForLoop(t *testing.T) {
	code, _ := compile(t, "for (var i = 0; i < 10; i++) {}")

	expectNames(t, code,
		"DEFINE_VARS", "ASSIGN_IDENT_LITERAL", "JUMP_FORWARD", "POST_INCR_IDENT",
		"LESS_TWO_LITERALS", "BRANCH_IF_TRUE_BACKWARD", "RETURN_WITH_UNDEFINED")

	instructions, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	// The forward jump lands on the condition; the backward branch
	// lands on the loop body start.
	var jump, backward bytecode.Instruction
	for _, in := range instructions {
		switch {
		case strings.HasPrefix(in.Name(), "JUMP_FORWARD"):
			jump = in
		case strings.HasPrefix(in.Name(), "BRANCH_IF_TRUE_BACKWARD"):
			backward = in
		}
	}
	condOffset := jump.Target()
	bodyOffset := jump.Offset + jump.Size
	if backward.Target() != bodyOffset {
		t.Errorf("backward branch targets %d, want body start %d", backward.Target(), bodyOffset)
	}
	found := false
	for _, in := range instructions {
		if in.Offset == condOffset && strings.HasPrefix(in.Name(), "LESS_TWO_LITERALS") {
			found = true
		}
	}
	if !found {
		t.Errorf("forward jump target %d is not the condition", condOffset)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestTryCatchFinally(t *testing.T) {
	code, _ := compile(t, "try { throw x; } catch (e) { } finally { }")

	names := baseNames(opcodeNames(t, code))
	for _, want := range []string{
		"TRY_CREATE_CONTEXT", "PUSH_IDENT", "THROW", "CATCH",
		"ASSIGN_IDENT", "FINALLY", "END_TRY_CATCH_FINALLY",
	} {
		if !containsName(names, want) {
			t.Errorf("byte code misses %s: %v", want, names)
		}
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestLexicalError(t *testing.T) {
	store := lit.NewStore()
	code, err := ParseScript(store, []byte("var 1x;"), nil)
	if code != nil {
		t.Error("expected nil compiled code")
	}
	if err == nil {
		t.Fatal("expected a parse error")
	}
	if err.Kind != ErrIdentifierExpected {
		t.Errorf("error kind = %s, want %s", err.Kind, ErrIdentifierExpected)
	}
	if err.Line != 1 || err.Column != 5 {
		t.Errorf("error position = %d:%d, want 1:5", err.Line, err.Column)
	}
	if got := err.Error(); got != "Parse error 'identifier_expected' at line: 1 col: 5" {
		t.Errorf("error text = %q", got)
	}
}

func TestConstantFolding(t *testing.T) {
	tests := []struct {
		source string
		check  func(t *testing.T, code *bytecode.CompiledCode, store *lit.Store)
	}{
		{"1 + 2;", expectFoldedNumber(3)},
		{"0x10 | 1;", expectFoldedNumber(17)},
		{"3 << 2;", expectFoldedNumber(12)},
		{"10 / 4;", expectFoldedNumber(2.5)},
		{"7 % 4;", expectFoldedNumber(3)},
		{"2 - 5;", expectFoldedNumber(-3)},
		{"\"a\" + \"b\";", expectFoldedString("ab")},
		{"-8;", expectFoldedNumber(-8)},
		{"~0;", expectFoldedNumber(-1)},
	}
	for _, tt := range tests {
		code, store := compile(t, tt.source)
		expectNames(t, code, "PUSH_LITERAL", "POP", "RETURN_WITH_UNDEFINED")
		tt.check(t, code, store)
	}
}

func expectFoldedNumber(want float64) func(*testing.T, *bytecode.CompiledCode, *lit.Store) {
	return func(t *testing.T, code *bytecode.CompiledCode, store *lit.Store) {
		t.Helper()
		instructions, err := code.Instructions()
		if err != nil {
			t.Fatal(err)
		}
		record := store.Decompress(code.LiteralPool[instructions[0].Literal].CP())
		if !record.EqualsNumber(want) {
			t.Errorf("folded constant = %v, want %v", record, want)
		}
	}
}

func expectFoldedString(want string) func(*testing.T, *bytecode.CompiledCode, *lit.Store) {
	return func(t *testing.T, code *bytecode.CompiledCode, store *lit.Store) {
		t.Helper()
		instructions, err := code.Instructions()
		if err != nil {
			t.Fatal(err)
		}
		record := store.Decompress(code.LiteralPool[instructions[0].Literal].CP())
		if !record.EqualsUTF8([]byte(want)) {
			t.Errorf("folded constant is not %q", want)
		}
	}
}

func TestFoldingToBooleans(t *testing.T) {
	tests := []struct {
		source string
		want   string
	}{
		{"!false;", "PUSH_TRUE"},
		{"!true;", "PUSH_FALSE"},
		{"1 < 2;", "PUSH_TRUE"},
		{"2 <= 1;", "PUSH_FALSE"},
		{"3 === 3;", "PUSH_TRUE"},
		{"3 !== 3;", "PUSH_FALSE"},
		{"\"a\" === \"a\";", "PUSH_TRUE"},
		{"!0;", "PUSH_TRUE"},
	}
	for _, tt := range tests {
		code, _ := compile(t, tt.source)
		expectNames(t, code, tt.want, "POP", "RETURN_WITH_UNDEFINED")
	}
}

func TestEmptyElseJumpDeleted(t *testing.T) {
	code, _ := compile(t, "if (x) {} else {}")

	names := baseNames(opcodeNames(t, code))
	if containsName(names, "JUMP_FORWARD") {
		t.Errorf("zero-distance jump not deleted: %v", names)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestDirectEvalOpcode(t *testing.T) {
	code, _ := compile(t, "eval(\"1\");")

	names := baseNames(opcodeNames(t, code))
	if !containsName(names, "CALL_EVAL") {
		t.Errorf("direct eval call not recognized: %v", names)
	}
}

func TestStrictModeAssignments(t *testing.T) {
	tests := []struct {
		source string
		kind   ErrorKind
	}{
		{"\"use strict\"; eval = 1;", ErrEvalCannotBeAssigned},
		{"\"use strict\"; arguments = 1;", ErrArgumentsCannotBeAssigned},
		{"\"use strict\"; eval++;", ErrEvalCannotBeAssigned},
	}
	for _, tt := range tests {
		store := lit.NewStore()
		_, err := ParseScript(store, []byte(tt.source), nil)
		if err == nil || err.Kind != tt.kind {
			t.Errorf("%q: error = %v, want kind %s", tt.source, err, tt.kind)
		}
	}

	// The same assignments compile outside strict mode.
	compile(t, "eval = 1;")
	compile(t, "arguments = 1;")
}

func TestGetterSetterArgumentCounts(t *testing.T) {
	store := lit.NewStore()
	_, err := ParseScript(store, []byte("var o = { get p(x) { return 1; } };"), nil)
	if err == nil || err.Kind != ErrNoArgumentsExpected {
		t.Errorf("getter with argument: error = %v, want %s", err, ErrNoArgumentsExpected)
	}

	_, err = ParseScript(store, []byte("var o = { set p() { } };"), nil)
	if err == nil || err.Kind != ErrOneArgumentExpected {
		t.Errorf("setter without argument: error = %v, want %s", err, ErrOneArgumentExpected)
	}

	compile(t, "var o = { get p() { return 1; }, set p(v) { } };")
}

func TestControlFlowErrors(t *testing.T) {
	tests := []struct {
		source string
		kind   ErrorKind
	}{
		{"break;", ErrBreakNotInLoopOrSwitch},
		{"continue;", ErrContinueNotInLoop},
		{"while (x) { break missing; }", ErrTargetLabelNotFound},
		{"a: a: ;", ErrDuplicateLabel},
		{"switch (x) { default: ; default: ; }", ErrMultipleDefault},
		{"x = ;", ErrPrimaryExprExpected},
		{"f(1;", ErrRightParenExpected},
		{"a[1;", ErrRightSquareExpected},
		{"var o = {a 1};", ErrColonExpected},
		{"x = y ? 1;", ErrColonForConditionalExpected},
		{"function f() return;", ErrLeftBraceExpected},
		{"var o = {a: 1 b: 2};", ErrObjectItemSeparatorExpected},
		{"var a = [1 2];", ErrArrayItemSeparatorExpected},
		{"function f { }", ErrArgumentListExpected},
	}
	for _, tt := range tests {
		store := lit.NewStore()
		_, err := ParseScript(store, []byte(tt.source), nil)
		if err == nil || err.Kind != tt.kind {
			t.Errorf("%q: error = %v, want kind %s", tt.source, err, tt.kind)
		}
	}
}

func TestRegisterLimit(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("function f(")
	for i := 0; i < 140; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("p")
		sb.WriteByte(byte('0' + i/100))
		sb.WriteByte(byte('0' + i/10%10))
		sb.WriteByte(byte('0' + i%10))
	}
	sb.WriteString(") { }")

	store := lit.NewStore()
	_, err := ParseScript(store, []byte(sb.String()), nil)
	if err == nil || err.Kind != ErrRegisterLimitReached {
		t.Errorf("error = %v, want %s", err, ErrRegisterLimitReached)
	}
}

func TestVerifyCorpus(t *testing.T) {
	sources := []string{
		"var a, b, c; a = b + c;",
		"x = a ? b : c;",
		"x = a && b || c;",
		"var s = 'hello' + \"world\";",
		"var n = 1e3 + 0x1f + 017 + .5;",
		"if (a > 1) { b = 2; } else if (a < 1) { b = 3; } else { b = 4; }",
		"while (a) { a = a - 1; }",
		"do { a++; } while (a < 10);",
		"for (i = 0; i < 10; i += 2) { total += i; }",
		"for (var k in obj) { count++; }",
		"outer: for (var i = 0; i < 3; i++) { for (var j = 0; j < 3; j++) { if (j) { continue outer; } break; } }",
		"switch (v) { case 1: a(); break; case 2: b(); break; default: c(); }",
		"switch (v) { case f(x): break; }",
		"try { risky(); } catch (e) { log(e); }",
		"try { risky(); } finally { cleanup(); }",
		"try { risky(); } catch (e) { rethrow(e); } finally { cleanup(); }",
		"with (settings) { color = defaultColor; }",
		"var o = { a: 1, b: 'two', get c() { return 3; }, set c(v) { } };",
		"var arr = [1, 2, , 4, [5, 6]];",
		"f(); g(1); h(1, 2, 3); obj.m(); obj['m']();",
		"var inst = new Ctor(); var other = new ns.Ctor(1);",
		"delete obj.prop; typeof x; void 0; !done; -x; +y; ~mask;",
		"a.b.c.d = a['b']['c'];",
		"x = function named() { return named; };",
		"function outer() { function inner() { return 1; } return inner(); }",
		"var re = /ab+c/gi;",
		"i++; --j; obj.count++; obj['count']--;",
		"a = b = c = 1;",
		"a += 1; a -= 2; a *= 3; a /= 4; a %= 5; a <<= 1; a >>= 1; a >>>= 1; a &= 1; a |= 2; a ^= 3;",
		"throw new Error('boom');",
		"debugger;",
		"var x = (1, 2, 3);",
		"\"use strict\"; var tight = 1;",
		"while (x) { if (y) { break; } else { continue; } }",
		"for (;;) { break; }",
		"lab: { break lab; }",
		"try { for (var p in o) { if (p) { break; } } } catch (e) { }",
	}

	for _, source := range sources {
		code, _ := compile(t, source)
		if err := bytecode.Verify(code); err != nil {
			t.Errorf("Verify(%q) failed: %v", source, err)
		}
	}
}

func TestStackLimitMatchesSimulation(t *testing.T) {
	code, _ := compile(t, "f(1, 2, g(3, h(4, 5)), [6, 7, 8], {a: 9});")
	if err := bytecode.Verify(code); err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if code.StackLimit == 0 {
		t.Error("expected a non-zero stack limit")
	}
}

func TestLiteralEncodingSmallRoundTrip(t *testing.T) {
	// More than 254 distinct literals force two-byte small encodings.
	var sb strings.Builder
	for i := 0; i < 300; i++ {
		sb.WriteString("x")
		sb.WriteByte(byte('0' + i/100))
		sb.WriteByte(byte('0' + i/10%10))
		sb.WriteByte(byte('0' + i%10))
		sb.WriteString(";\n")
	}
	code, _ := compile(t, sb.String())

	if code.FullLiteralEncoding() {
		t.Error("expected small literal encoding for 300 literals")
	}
	if code.LiteralEnd != 300 {
		t.Errorf("literal count = %d, want 300", code.LiteralEnd)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}

	// Every literal index must decode back below the pool size.
	instructions, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	pushes := 0
	for _, in := range instructions {
		if in.Flags&bytecode.FlagLiteralArg != 0 {
			pushes++
		}
	}
	if pushes != 300 {
		t.Errorf("decoded %d literal-carrying instructions, want 300", pushes)
	}
}

func TestFullLiteralEncoding(t *testing.T) {
	limits := DefaultLimits()
	limits.MaxLiterals = 2000

	var sb strings.Builder
	for i := 0; i < 600; i++ {
		sb.WriteString("y")
		sb.WriteByte(byte('0' + i/100))
		sb.WriteByte(byte('0' + i/10%10))
		sb.WriteByte(byte('0' + i%10))
		sb.WriteString(";\n")
	}

	store := lit.NewStore()
	code, perr := ParseScript(store, []byte(sb.String()), &Options{Limits: &limits})
	if perr != nil {
		t.Fatalf("ParseScript failed: %v", perr)
	}
	if !code.FullLiteralEncoding() {
		t.Error("expected full literal encoding for 600 literals")
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}

func TestParseEval(t *testing.T) {
	store := lit.NewStore()
	code, direct, err := ParseEval(store, []byte("1 + 2;"), false, nil)
	if err != nil {
		t.Fatalf("ParseEval failed: %v", err)
	}
	if !direct {
		t.Error("expected direct-eval context to be recorded")
	}
	// Eval code keeps statement values as the block result.
	names := baseNames(opcodeNames(t, code))
	if !containsName(names, "POP_BLOCK") {
		t.Errorf("eval code should use POP_BLOCK: %v", names)
	}

	strictCode, _, err := ParseEval(store, []byte("x;"), true, nil)
	if err != nil {
		t.Fatalf("ParseEval failed: %v", err)
	}
	if !strictCode.IsStrict() {
		t.Error("caller strictness not inherited")
	}
}

func TestNamedFunctionExpressionSelfSlot(t *testing.T) {
	code, _ := compile(t, "x = function named() { return named; };")

	fn := code.Functions[0]
	// The self-reference binding occupies the extra slot past the
	// const literals and is wired by an initializer instruction.
	names := baseNames(opcodeNames(t, fn))
	if !containsName(names, "INITIALIZE_VAR") {
		t.Errorf("self binding missing: %v", names)
	}
	if fn.LiteralEnd == fn.ConstLiteralEnd {
		t.Errorf("expected a literal past const_literal_end for the self reference")
	}
}

func TestHeaderInvariant(t *testing.T) {
	sources := []string{
		"",
		"var x = 1; x;",
		"function f(a, b) { var local = a; return local + b; }",
		"for (var i = 0; i < 10; i++) {}",
	}
	for _, source := range sources {
		code, _ := compile(t, source)
		check := func(c *bytecode.CompiledCode) {
			if !(c.ArgumentEnd <= c.RegisterEnd && c.RegisterEnd <= c.IdentEnd &&
				c.IdentEnd <= c.ConstLiteralEnd && c.ConstLiteralEnd <= c.LiteralEnd) {
				t.Errorf("%q: header groups not monotonic: %+v", source, c)
			}
		}
		check(code)
		for _, fn := range code.Functions {
			check(fn)
		}
	}
}

func TestFunctionArgumentsInRegisters(t *testing.T) {
	code, _ := compile(t, "function f(a) { var b = a; return b; }")
	fn := code.Functions[0]

	if fn.ArgumentEnd != 1 {
		t.Fatalf("argument end = %d, want 1", fn.ArgumentEnd)
	}
	// The local b is register allocated inside a function.
	if fn.RegisterEnd != 2 {
		t.Errorf("register end = %d, want 2 (argument + register local)", fn.RegisterEnd)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Errorf("Verify failed: %v", err)
	}
}
