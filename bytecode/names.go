package bytecode

import "fmt"

// Opcode names for the disassembler and debug output. The tables are
// generated the same way the flag tables are, so family members always
// stay aligned with their base opcode.
var opNames [OpEnd + 1]string
var extNames [ExtEnd + 1]string

func name(op Opcode, s string) {
	opNames[op] = s
}

func nameExt(op ExtOpcode, s string) {
	extNames[op] = s
}

func nameBranch(set func(int, string), base int, s string) {
	set(base, s)
	set(base+1, s+"_2")
	set(base+2, s+"_3")
}

func nameUnary(op Opcode, s string) {
	name(op, s)
	name(op+UnaryWithLiteral, s+"_LITERAL")
}

func nameBinary(op Opcode, s string) {
	name(op, s)
	name(op+BinaryWithRightLiteral, s+"_RIGHT_LITERAL")
	name(op+BinaryWithTwoLiterals, s+"_TWO_LITERALS")
}

func nameUnaryLValue(op Opcode, s string) {
	name(op, s)
	name(op+1, s+"_PUSH_RESULT")
	name(op+UnaryLValueWithIdent, s+"_IDENT")
	name(op+UnaryLValueWithIdent+1, s+"_IDENT_PUSH_RESULT")
	name(op+UnaryLValueWithPropString, s+"_PROP_STRING")
	name(op+UnaryLValueWithPropString+1, s+"_PROP_STRING_PUSH_RESULT")
}

func nameBinaryLValue(op Opcode, s string) {
	name(op, s)
	name(op+BinaryLValueWithIdent, s+"_IDENT")
	name(op+BinaryLValueWithIdentLit, s+"_IDENT_LITERAL")
	name(op+BinaryLValueWithPropStr, s+"_PROP_STRING")
}

func nameExtBinaryLValue(op ExtOpcode, s, suffix string) {
	nameExt(op, s+suffix)
	nameExt(op+1, s+"_IDENT"+suffix)
	nameExt(op+2, s+"_IDENT_LITERAL"+suffix)
	nameExt(op+3, s+"_PROP_STRING"+suffix)
}

var assignNames = []string{
	"ASSIGN", "ASSIGN_ADD", "ASSIGN_SUBTRACT", "ASSIGN_MULTIPLY",
	"ASSIGN_DIVIDE", "ASSIGN_MODULO", "ASSIGN_LEFT_SHIFT",
	"ASSIGN_RIGHT_SHIFT", "ASSIGN_UNS_RIGHT_SHIFT", "ASSIGN_BIT_AND",
	"ASSIGN_BIT_OR", "ASSIGN_BIT_XOR",
}

func init() {
	setOp := func(i int, s string) { opNames[i] = s }
	setExt := func(i int, s string) { extNames[i] = s }

	name(OpExtOpcode, "EXT_OPCODE")
	nameBranch(setOp, int(OpJumpForward), "JUMP_FORWARD")
	name(OpPop, "POP")
	nameBranch(setOp, int(OpJumpBackward), "JUMP_BACKWARD")
	name(OpPopBlock, "POP_BLOCK")
	nameBranch(setOp, int(OpBranchIfTrueForward), "BRANCH_IF_TRUE_FORWARD")
	name(OpReturn, "RETURN")
	nameBranch(setOp, int(OpBranchIfTrueBackward), "BRANCH_IF_TRUE_BACKWARD")
	name(OpReturnWithUndefined, "RETURN_WITH_UNDEFINED")
	nameBranch(setOp, int(OpBranchIfFalseForward), "BRANCH_IF_FALSE_FORWARD")
	name(OpCreateObject, "CREATE_OBJECT")
	nameBranch(setOp, int(OpBranchIfFalseBackward), "BRANCH_IF_FALSE_BACKWARD")
	name(OpSetProperty, "SET_PROPERTY")
	nameBranch(setOp, int(OpJumpForwardExitContext), "JUMP_FORWARD_EXIT_CONTEXT")
	name(OpCreateArray, "CREATE_ARRAY")
	nameBranch(setOp, int(OpBranchIfLogicalTrue), "BRANCH_IF_LOGICAL_TRUE")
	name(OpArrayAppend, "ARRAY_APPEND")
	nameBranch(setOp, int(OpBranchIfLogicalFalse), "BRANCH_IF_LOGICAL_FALSE")
	name(OpPushElision, "PUSH_ELISION")
	nameBranch(setOp, int(OpBranchIfStrictEqual), "BRANCH_IF_STRICT_EQUAL")

	name(OpPushIdent, "PUSH_IDENT")
	name(OpPushLiteral, "PUSH_LITERAL")
	name(OpPushTwoLiterals, "PUSH_TWO_LITERALS")
	name(OpPushUndefined, "PUSH_UNDEFINED")
	name(OpPushTrue, "PUSH_TRUE")
	name(OpPushFalse, "PUSH_FALSE")
	name(OpPushNull, "PUSH_NULL")
	name(OpPushThis, "PUSH_THIS")
	name(OpPropGet, "PROP_GET")
	name(OpPropStringGet, "PROP_STRING_GET")
	name(OpNew, "NEW")
	name(OpNewIdent, "NEW_IDENT")
	name(OpDefineVars, "DEFINE_VARS")
	name(OpInitializeVars, "INITIALIZE_VARS")
	name(OpInitializeVar, "INITIALIZE_VAR")
	name(OpEndWith, "END_WITH")
	name(OpEndTryCatchFinally, "END_TRY_CATCH_FINALLY")
	name(OpThrow, "THROW")

	nameUnary(OpPlus, "PLUS")
	nameUnary(OpNegate, "NEGATE")
	nameUnary(OpLogicalNot, "LOGICAL_NOT")
	nameUnary(OpBitNot, "BIT_NOT")
	nameUnary(OpVoid, "VOID")
	nameUnary(OpTypeof, "TYPEOF")

	binaryNames := []string{
		"BIT_OR", "BIT_XOR", "BIT_AND", "EQUAL", "NOT_EQUAL",
		"STRICT_EQUAL", "STRICT_NOT_EQUAL", "LESS", "GREATER",
		"LESS_EQUAL", "GREATER_EQUAL", "IN", "INSTANCEOF",
		"LEFT_SHIFT", "RIGHT_SHIFT", "UNS_RIGHT_SHIFT", "ADD",
		"SUBTRACT", "MULTIPLY", "DIVIDE", "MODULO",
	}
	for i, s := range binaryNames {
		nameBinary(OpBitOr+Opcode(i*3), s)
	}

	unaryLValueNames := []string{"DELETE", "PRE_INCR", "PRE_DECR", "POST_INCR", "POST_DECR"}
	for i, s := range unaryLValueNames {
		nameUnaryLValue(OpDelete+Opcode(i*6), s)
	}

	name(OpCall, "CALL")
	name(OpCallPushResult, "CALL_PUSH_RESULT")
	name(OpCallIdent, "CALL_IDENT")
	name(OpCallIdentPushResult, "CALL_IDENT_PUSH_RESULT")
	name(OpCallProp, "CALL_PROP")
	name(OpCallPropPushResult, "CALL_PROP_PUSH_RESULT")
	name(OpCallPropString, "CALL_PROP_STRING")
	name(OpCallPropStringPushResult, "CALL_PROP_STRING_PUSH_RESULT")

	for i, s := range assignNames {
		nameBinaryLValue(OpAssign+Opcode(i*4), s)
	}

	name(OpEnd, "END")

	nameExt(ExtNop, "NOP")
	nameBranch(setExt, int(ExtWithCreateContext), "WITH_CREATE_CONTEXT")
	nameExt(ExtForInGetNext, "FOR_IN_GET_NEXT")
	nameBranch(setExt, int(ExtForInCreateContext), "FOR_IN_CREATE_CONTEXT")
	nameExt(ExtSetGetter, "SET_GETTER")
	nameBranch(setExt, int(ExtBranchIfForInHasNext), "BRANCH_IF_FOR_IN_HAS_NEXT")
	nameExt(ExtSetSetter, "SET_SETTER")
	nameBranch(setExt, int(ExtTryCreateContext), "TRY_CREATE_CONTEXT")
	nameExt(ExtPushUndefinedBase, "PUSH_UNDEFINED_BASE")
	nameBranch(setExt, int(ExtCatch), "CATCH")
	nameExt(ExtDebugger, "DEBUGGER")
	nameBranch(setExt, int(ExtFinally), "FINALLY")
	nameExt(ExtEndForIn, "END_FOR_IN")
	nameExt(ExtCallEval, "CALL_EVAL")
	nameExt(ExtCallEvalPushResult, "CALL_EVAL_PUSH_RESULT")

	for i, s := range assignNames {
		nameExtBinaryLValue(ExtAssignPushResult+ExtOpcode(i*4), s, "_PUSH_RESULT")
	}
	for i, s := range assignNames {
		nameExtBinaryLValue(ExtAssignBlock+ExtOpcode(i*4), s, "_BLOCK")
	}

	nameExt(ExtEnd, "EXT_END")
}

// String returns the opcode's name.
func (op Opcode) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// String returns the extended opcode's name.
func (op ExtOpcode) String() string {
	if int(op) < len(extNames) && extNames[op] != "" {
		return extNames[op]
	}
	return fmt.Sprintf("ExtOpcode(%d)", int(op))
}
