package parser

import "github.com/picojs/picojs/bytecode"

// Statement frame types. The order groups break targets (switch
// through for-in) and continue targets (do-while through for-in).
type stmtType uint8

const (
	stmtStart stmtType = iota
	stmtBlock
	stmtLabel
	stmtIf
	stmtElse
	stmtWith
	stmtSwitch
	stmtSwitchNoDefault
	stmtDoWhile
	stmtWhile
	stmtFor
	stmtForIn
	stmtTry
)

// Phases of a try statement region.
const (
	tryPhaseTry uint8 = iota
	tryPhaseCatch
	tryPhaseFinally
)

// stmtFrame is one record on the statement stack: an in-progress
// syntactic construct and the patch-ups its end requires.
type stmtFrame struct {
	typ stmtType

	// Forward branch to the end of the construct (if, else, with,
	// try, for-in create-context) or to the condition (while, for).
	branch branchRef

	// Break and continue placeholders of loops and switches; break
	// placeholders of labels.
	branchList *branchItem

	label []byte

	condRange srcRange // while / for condition
	exprRange srcRange // for update expression

	startOffset int // backward branch target

	// Switch bookkeeping.
	defaultBranch branchRef
	caseBranches  []branchRef
	nextCase      int

	// Second pending branch of a try region: the catch marker while
	// frame.branch holds the jump over the handler.
	branch2    branchRef
	hasBranch2 bool
	tryPhase   uint8
}

func (ctx *context) stmtTop() *stmtFrame {
	return &ctx.stmtStack[len(ctx.stmtStack)-1]
}

func (ctx *context) stmtPush(frame stmtFrame) {
	ctx.stmtStack = append(ctx.stmtStack, frame)
}

func (ctx *context) stmtPop() stmtFrame {
	frame := ctx.stmtStack[len(ctx.stmtStack)-1]
	ctx.stmtStack = ctx.stmtStack[:len(ctx.stmtStack)-1]
	return frame
}

// isLoopFrame reports whether the frame accepts continue.
func isLoopFrame(typ stmtType) bool {
	return typ == stmtDoWhile || typ == stmtWhile || typ == stmtFor || typ == stmtForIn
}

// isBreakFrame reports whether the frame accepts an unlabeled break.
func isBreakFrame(typ stmtType) bool {
	return typ == stmtSwitch || typ == stmtSwitchNoDefault || isLoopFrame(typ)
}

// exitContext emits the context-terminating instruction of a frame a
// break or continue jumps out of. Plain frames need nothing.
func (ctx *context) exitContext(frame *stmtFrame) {
	switch frame.typ {
	case stmtWith:
		ctx.emitCBC(uint16(bytecode.OpEndWith))
	case stmtTry:
		// The context is already gone once the finally block runs.
		if frame.tryPhase != tryPhaseFinally {
			ctx.emitCBC(uint16(bytecode.OpEndTryCatchFinally))
		}
	case stmtForIn:
		ctx.emitCBCExt(bytecode.ExtEndForIn)
	}
}

// parseVarStatement compiles a var declaration list. Declared names
// are var-flagged literals; initializers compile to assignments.
func (ctx *context) parseVarStatement() {
	for {
		ctx.expectIdentifier(literalIdent)
		ctx.litObject.literal.flags |= litFlagVar

		ctx.emitLiteralFromToken(uint16(bytecode.OpPushIdent))

		ctx.nextToken()

		if ctx.token.typ == tokAssign {
			ctx.parseExpression(exprFlagStatement | exprFlagNoComma | exprFlagHasLiteral)
		} else {
			// Nothing is assigned to this variable here.
			ctx.lastOpcode = opcodeUnavailable
		}

		if ctx.token.typ != tokComma {
			break
		}
	}
}

// parseFunctionStatement compiles a function declaration: the nested
// function is bound to its name by the initializer prologue, so no
// code is emitted in place.
func (ctx *context) parseFunctionStatement() {
	ctx.flushCBC()
	ctx.expectIdentifier(literalIdent)
	nameIndex := ctx.litObject.index
	ctx.litObject.literal.flags |= litFlagVar | litFlagInitialized

	ctx.constructFunctionObject(nameIndex, flagIsFunction|flagIsClosure)
	ctx.nextToken()
}

// parseIfStatementStart compiles the condition of an if statement.
func (ctx *context) parseIfStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	ctx.parseExpression(exprFlagNone)
	branch := ctx.emitForwardBranch(uint16(bytecode.OpBranchIfFalseForward))

	ctx.stmtPush(stmtFrame{typ: stmtIf, branch: branch})
}

// parseIfStatementEnd finishes an if statement, converting the frame
// into an else frame when an else branch follows.
func (ctx *context) parseIfStatementEnd() bool {
	if ctx.token.typ != tokKeywElse {
		frame := ctx.stmtPop()
		ctx.setBranchToCurrentPosition(frame.branch)
		return false
	}

	frame := ctx.stmtTop()
	frame.typ = stmtElse

	elseBranch := ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))
	ctx.setBranchToCurrentPosition(frame.branch)
	frame.branch = elseBranch

	ctx.nextToken()
	return true
}

// parseWithStatementStart compiles the head of a with statement.
func (ctx *context) parseWithStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	ctx.parseExpression(exprFlagNone)
	branch := ctx.emitExtForwardBranch(bytecode.ExtWithCreateContext)

	ctx.stmtPush(stmtFrame{typ: stmtWith, branch: branch})
}

// emitExtForwardBranch emits an extended forward branch.
func (ctx *context) emitExtForwardBranch(op bytecode.ExtOpcode) branchRef {
	return ctx.emitForwardBranch(toExtOpcode(op))
}

// parseWhileStatementStart jumps to the condition and captures its
// source range; the condition compiles after the body so only the
// fall-through path branches.
func (ctx *context) parseWhileStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	branch := ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))
	startOffset := ctx.byteCodeSize

	condRange := ctx.scanUntil(tokRightParen, tokRightParen)
	ctx.nextToken()

	ctx.stmtPush(stmtFrame{
		typ:         stmtWhile,
		branch:      branch,
		condRange:   condRange,
		startOffset: startOffset,
	})
}

// backwardBranchOpcode picks the loop-closing branch opcode from the
// compiled condition, turning constant-true conditions into plain
// jumps and dropping a trailing logical not.
func (ctx *context) backwardBranchOpcode() (uint16, bool) {
	if ctx.lastOpcode == uint16(bytecode.OpPushFalse) {
		ctx.lastOpcode = opcodeUnavailable
		return 0, false
	}
	opcode := uint16(bytecode.OpBranchIfTrueBackward)
	if ctx.lastOpcode == uint16(bytecode.OpLogicalNot) {
		ctx.lastOpcode = opcodeUnavailable
		opcode = uint16(bytecode.OpBranchIfFalseBackward)
	} else if ctx.lastOpcode == uint16(bytecode.OpPushTrue) {
		ctx.lastOpcode = opcodeUnavailable
		opcode = uint16(bytecode.OpJumpBackward)
	}
	return opcode, true
}

// parseWhileStatementEnd re-parses the saved condition at the loop
// bottom and closes the loop with a backward branch.
func (ctx *context) parseWhileStatementEnd() {
	frame := ctx.stmtPop()

	savedRange := ctx.saveRange(ctx.sourceEnd)
	savedToken := ctx.token

	ctx.setBranchToCurrentPosition(frame.branch)
	ctx.setContinuesToCurrentPosition(frame.branchList)

	ctx.setRange(frame.condRange)
	ctx.nextToken()

	ctx.parseExpression(exprFlagNone)
	if ctx.token.typ != tokEOS {
		ctx.raise(ErrInvalidExpression)
	}

	if opcode, ok := ctx.backwardBranchOpcode(); ok {
		ctx.emitBackwardBranch(opcode, frame.startOffset)
	}
	ctx.setBreaksToCurrentPosition(frame.branchList)

	ctx.setRange(savedRange)
	ctx.token = savedToken
}

// parseForStatementStart compiles a for or for-in head.
func (ctx *context) parseForStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	startRange := ctx.scanUntil(tokSemicolon, tokKeywIn)

	if ctx.token.typ == tokKeywIn {
		ctx.parseForInStatementStart(startRange)
		return
	}

	startRange.end = ctx.sourceEnd
	savedEnd := ctx.sourceEnd
	ctx.setRange(startRange)
	ctx.sourceEnd = savedEnd
	ctx.nextToken()

	if ctx.token.typ != tokSemicolon {
		if ctx.token.typ == tokKeywVar {
			ctx.parseVarStatement()
		} else {
			ctx.parseExpression(exprFlagStatement)
		}

		if ctx.token.typ != tokSemicolon {
			ctx.raise(ErrSemicolonExpected)
		}
	}

	branch := ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))
	startOffset := ctx.byteCodeSize

	condRange := ctx.scanUntil(tokSemicolon, tokSemicolon)
	exprRange := ctx.scanUntil(tokRightParen, tokRightParen)
	ctx.nextToken()

	ctx.stmtPush(stmtFrame{
		typ:         stmtFor,
		branch:      branch,
		condRange:   condRange,
		exprRange:   exprRange,
		startOffset: startOffset,
	})
}

// parseForInStatementStart compiles a for-in head. The iteration
// target must be a plain identifier, optionally var-declared.
func (ctx *context) parseForInStatementStart(targetRange srcRange) {
	// Parse the saved target range first.
	savedPos, savedLine, savedColumn := ctx.pos, ctx.line, ctx.column
	savedEnd := ctx.sourceEnd

	ctx.setRange(targetRange)
	ctx.nextToken()

	if ctx.token.typ == tokKeywVar {
		ctx.expectIdentifier(literalIdent)
		ctx.litObject.literal.flags |= litFlagVar
		ctx.nextToken()
	} else if ctx.token.typ == tokLiteral && ctx.token.lit.kind == literalIdent {
		ctx.constructLiteralObject(ctx.token.lit, literalIdent)
		ctx.nextToken()
	} else {
		ctx.raise(ErrIdentifierExpected)
	}
	if ctx.token.typ != tokEOS {
		ctx.raise(ErrInvalidExpression)
	}
	targetIndex := ctx.litObject.index

	// Continue with the collection expression after the in keyword.
	ctx.pos, ctx.line, ctx.column = savedPos, savedLine, savedColumn
	ctx.sourceEnd = savedEnd
	ctx.nextToken()

	ctx.parseExpression(exprFlagNone)
	if ctx.token.typ != tokRightParen {
		ctx.raise(ErrRightParenExpected)
	}

	branch := ctx.emitExtForwardBranch(bytecode.ExtForInCreateContext)
	startOffset := ctx.byteCodeSize

	ctx.emitCBCExt(bytecode.ExtForInGetNext)
	ctx.emitLiteral(uint16(bytecode.OpAssignIdent), targetIndex)
	ctx.flushCBC()

	ctx.nextToken()

	ctx.stmtPush(stmtFrame{
		typ:         stmtForIn,
		branch:      branch,
		startOffset: startOffset,
	})
}

// parseForStatementEnd compiles the saved update and condition
// expressions at the loop bottom.
func (ctx *context) parseForStatementEnd() {
	frame := ctx.stmtPop()

	savedRange := ctx.saveRange(ctx.sourceEnd)
	savedToken := ctx.token

	ctx.setRange(frame.exprRange)
	ctx.nextToken()

	ctx.setContinuesToCurrentPosition(frame.branchList)

	if ctx.token.typ != tokEOS {
		ctx.parseExpression(exprFlagStatement)
		if ctx.token.typ != tokEOS {
			ctx.raise(ErrInvalidExpression)
		}
	}

	ctx.setBranchToCurrentPosition(frame.branch)

	ctx.setRange(frame.condRange)
	ctx.nextToken()

	opcode := uint16(bytecode.OpJumpBackward)
	emit := true
	if ctx.token.typ != tokEOS {
		ctx.parseExpression(exprFlagNone)
		if ctx.token.typ != tokEOS {
			ctx.raise(ErrInvalidExpression)
		}
		opcode, emit = ctx.backwardBranchOpcode()
	}

	if emit {
		ctx.emitBackwardBranch(opcode, frame.startOffset)
	}
	ctx.setBreaksToCurrentPosition(frame.branchList)

	ctx.setRange(savedRange)
	ctx.token = savedToken
}

// parseForInStatementEnd closes a for-in loop: the create-context
// branch and all continues land on the has-next check.
func (ctx *context) parseForInStatementEnd() {
	frame := ctx.stmtPop()

	ctx.setContinuesToCurrentPosition(frame.branchList)
	ctx.setBranchToCurrentPosition(frame.branch)

	ctx.emitBackwardBranch(toExtOpcode(bytecode.ExtBranchIfForInHasNext), frame.startOffset)
	ctx.emitCBCExt(bytecode.ExtEndForIn)
	ctx.flushCBC()

	ctx.setBreaksToCurrentPosition(frame.branchList)
}

// parseSwitchStatementStart compiles a switch head and its case
// comparisons. The body is scanned twice: the first pass compiles the
// case expressions and comparison branches in source order, the second
// pass compiles the statements and patches each case branch.
func (ctx *context) parseSwitchStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	ctx.parseExpression(exprFlagNone)

	if ctx.token.typ != tokLeftBrace {
		ctx.raise(ErrLeftBraceExpected)
	}

	bodyStart := ctx.saveRange(ctx.sourceEnd)
	ctx.nextToken()

	if ctx.token.typ == tokRightBrace {
		// Possible, if unlikely: a switch with no clauses just drops
		// the expression value.
		ctx.emitCBC(uint16(bytecode.OpPop))
		ctx.flushCBC()
		ctx.stmtPush(stmtFrame{typ: stmtBlock})
		return
	}

	if ctx.token.typ != tokKeywCase && ctx.token.typ != tokKeywDefault {
		ctx.raise(ErrInvalidSwitchBody)
	}

	frame := stmtFrame{typ: stmtSwitch}
	depth := 0
	defaultWasFound := false

	for {
		if ctx.token.typ == tokEOS {
			ctx.raise(ErrUnexpectedEnd)
		}

		if isLeftBracket(ctx.token.typ) {
			depth++
		} else if depth == 0 {
			if ctx.token.typ == tokKeywDefault {
				if defaultWasFound {
					ctx.raise(ErrMultipleDefault)
				}
				ctx.nextToken()
				if ctx.token.typ != tokColon {
					ctx.raise(ErrColonExpected)
				}
				defaultWasFound = true
			}

			if ctx.token.typ == tokKeywCase {
				ctx.nextToken()
				ctx.parseExpression(exprFlagNone)
				if ctx.token.typ != tokColon {
					ctx.raise(ErrColonExpected)
				}
				frame.caseBranches = append(frame.caseBranches,
					ctx.emitForwardBranch(uint16(bytecode.OpBranchIfStrictEqual)))
			} else if ctx.token.typ == tokRightBrace {
				break
			}
		}

		if isRightBracket(ctx.token.typ) {
			if depth == 0 {
				ctx.raise(ErrMisplacedRightBrace)
			}
			depth--
		}

		ctx.nextToken()
	}

	// The switch value survives every failed comparison and is
	// dropped before transferring to the default case or the end.
	ctx.emitCBC(uint16(bytecode.OpPop))
	frame.defaultBranch = ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))

	if !defaultWasFound {
		frame.typ = stmtSwitchNoDefault
	}

	ctx.stmtPush(frame)

	ctx.setRange(bodyStart)
	ctx.nextToken()
}

// findSwitchFrame returns the innermost switch frame, skipping label
// frames stacked directly on it.
func (ctx *context) findSwitchFrame() *stmtFrame {
	for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
		frame := &ctx.stmtStack[i]
		switch frame.typ {
		case stmtSwitch, stmtSwitchNoDefault:
			return frame
		case stmtLabel:
			continue
		default:
			return nil
		}
	}
	return nil
}

// parseDefaultStatement patches the default branch to the current
// position.
func (ctx *context) parseDefaultStatement() {
	frame := ctx.findSwitchFrame()
	if frame == nil {
		ctx.raise(ErrDefaultNotInSwitch)
	}

	ctx.nextToken()
	if ctx.token.typ != tokColon {
		ctx.raise(ErrColonExpected)
	}
	ctx.nextToken()

	ctx.setBranchToCurrentPosition(frame.defaultBranch)
}

// parseCaseStatement skips the already compiled case expression and
// patches the pending comparison branch to the current position.
func (ctx *context) parseCaseStatement() {
	frame := ctx.findSwitchFrame()
	if frame == nil {
		ctx.raise(ErrCaseNotInSwitch)
	}

	ctx.scanUntil(tokColon, tokColon)
	ctx.nextToken()

	ctx.setBranchToCurrentPosition(frame.caseBranches[frame.nextCase])
	frame.nextCase++
}

// breakTargetLabel reads the optional label of a break or continue.
func (ctx *context) breakTargetLabel() ([]byte, bool) {
	if !ctx.token.wasNewline && ctx.token.typ == tokLiteral &&
		ctx.token.lit.kind == literalIdent {
		return ctx.literalBytes(ctx.token.lit), true
	}
	return nil, false
}

// emitJumpOut emits the context-terminating instructions for every
// frame above target and appends a jump placeholder to the target
// frame's list. The terminators belong to the jump path only, so the
// linear depth bookkeeping is restored afterwards.
func (ctx *context) emitJumpOut(target int, exitTarget bool, isContinue bool) {
	savedDepth := ctx.stackDepth

	for i := len(ctx.stmtStack) - 1; i > target; i-- {
		ctx.exitContext(&ctx.stmtStack[i])
	}
	if exitTarget {
		ctx.exitContext(&ctx.stmtStack[target])
	}

	frame := &ctx.stmtStack[target]
	frame.branchList = ctx.emitForwardBranchItem(
		uint16(bytecode.OpJumpForward), frame.branchList, isContinue)

	ctx.stackDepth = savedDepth
}

// parseBreakStatement resolves a break to the innermost loop or
// switch, or to a labeled statement, terminating the contexts the
// jump leaves.
func (ctx *context) parseBreakStatement() {
	ctx.nextToken()

	if label, ok := ctx.breakTargetLabel(); ok {
		for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
			frame := &ctx.stmtStack[i]
			if frame.typ == stmtStart {
				break
			}
			if frame.typ == stmtLabel && string(frame.label) == string(label) {
				ctx.emitJumpOut(i, false, false)
				ctx.nextToken()
				return
			}
		}
		ctx.raise(ErrTargetLabelNotFound)
	}

	for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
		frame := &ctx.stmtStack[i]
		if frame.typ == stmtStart {
			break
		}
		if isBreakFrame(frame.typ) {
			// Breaking a for-in loop leaves its own context as well.
			ctx.emitJumpOut(i, frame.typ == stmtForIn, false)
			return
		}
	}
	ctx.raise(ErrBreakNotInLoopOrSwitch)
}

// continueTargetLoop returns the loop frame index a labeled continue
// targets: the label must wrap the loop with nothing but other labels
// in between.
func (ctx *context) continueTargetLoop(label []byte) int {
	labelIndex := -1
	for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
		frame := &ctx.stmtStack[i]
		if frame.typ == stmtStart {
			break
		}
		if frame.typ == stmtLabel && string(frame.label) == string(label) {
			labelIndex = i
			break
		}
	}
	if labelIndex < 0 {
		return -1
	}
	for i := labelIndex + 1; i < len(ctx.stmtStack); i++ {
		switch ctx.stmtStack[i].typ {
		case stmtLabel:
			continue
		case stmtDoWhile, stmtWhile, stmtFor, stmtForIn:
			return i
		default:
			return -1
		}
	}
	return -1
}

// parseContinueStatement resolves a continue to the innermost loop, or
// to a labeled loop.
func (ctx *context) parseContinueStatement() {
	ctx.nextToken()

	if label, ok := ctx.breakTargetLabel(); ok {
		target := ctx.continueTargetLoop(label)
		if target < 0 {
			ctx.raise(ErrTargetLabelNotFound)
		}
		ctx.emitJumpOut(target, false, true)
		ctx.nextToken()
		return
	}

	for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
		frame := &ctx.stmtStack[i]
		if frame.typ == stmtStart {
			break
		}
		if isLoopFrame(frame.typ) {
			ctx.emitJumpOut(i, false, true)
			return
		}
	}
	ctx.raise(ErrContinueNotInLoop)
}

// parseLabel pushes a label frame after checking for duplicates.
func (ctx *context) parseLabel(label []byte) {
	for i := len(ctx.stmtStack) - 1; i >= 0; i-- {
		frame := &ctx.stmtStack[i]
		if frame.typ == stmtStart {
			break
		}
		if frame.typ == stmtLabel && string(frame.label) == string(label) {
			ctx.raise(ErrDuplicateLabel)
		}
	}

	stored := make([]byte, len(label))
	copy(stored, label)
	ctx.stmtPush(stmtFrame{typ: stmtLabel, label: stored})
}

// parseTryStatementStart opens a try region.
func (ctx *context) parseTryStatementStart() {
	ctx.nextToken()
	if ctx.token.typ != tokLeftBrace {
		ctx.raise(ErrLeftBraceExpected)
	}

	branch := ctx.emitExtForwardBranch(bytecode.ExtTryCreateContext)
	ctx.stmtPush(stmtFrame{typ: stmtTry, branch: branch, tryPhase: tryPhaseTry})
	ctx.nextToken()
}

// enterFinally starts the finally block of a try region. The region
// branch collected so far lands on the finally marker, which every
// completion path of the region runs through.
func (ctx *context) enterFinally(frame *stmtFrame) {
	ctx.setBranchToCurrentPosition(frame.branch)
	if frame.hasBranch2 {
		ctx.setBranchToCurrentPosition(frame.branch2)
		frame.hasBranch2 = false
	}
	frame.branch = ctx.emitExtForwardBranch(bytecode.ExtFinally)
	frame.tryPhase = tryPhaseFinally

	ctx.nextToken()
	if ctx.token.typ != tokLeftBrace {
		ctx.raise(ErrLeftBraceExpected)
	}
	ctx.nextToken()
}

// parseTryStatementEnd handles the closing brace of a try, catch or
// finally block. It returns true while the region continues with
// another block.
//
// Each dynamic path through the region runs END_TRY_CATCH_FINALLY
// exactly once: the normal path at the end of the try block, the
// exception path at the end of the catch block. The finally block
// executes after the context is gone.
func (ctx *context) parseTryStatementEnd() bool {
	frame := ctx.stmtTop()
	ctx.nextToken()

	switch frame.tryPhase {
	case tryPhaseTry:
		ctx.emitCBC(uint16(bytecode.OpEndTryCatchFinally))
		ctx.flushCBC()

		switch ctx.token.typ {
		case tokKeywCatch:
			// Jump over the handler; the create-context branch names
			// the handler entry for the unwinder.
			overHandler := ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))
			ctx.setBranchToCurrentPosition(frame.branch)

			// The handler runs on the restored context with the
			// exception pushed; the depth bookkeeping follows.
			ctx.stackDepth += bytecode.TryContextStackAllocation
			catchMarker := ctx.emitExtForwardBranch(bytecode.ExtCatch)

			ctx.nextToken()
			if ctx.token.typ != tokLeftParen {
				ctx.raise(ErrLeftParenExpected)
			}
			ctx.expectIdentifier(literalIdent)
			ctx.emitLiteralFromToken(uint16(bytecode.OpAssignIdent))
			ctx.flushCBC()
			ctx.nextToken()
			if ctx.token.typ != tokRightParen {
				ctx.raise(ErrRightParenExpected)
			}
			ctx.nextToken()
			if ctx.token.typ != tokLeftBrace {
				ctx.raise(ErrLeftBraceExpected)
			}
			ctx.nextToken()

			frame.branch = overHandler
			frame.branch2 = catchMarker
			frame.hasBranch2 = true
			frame.tryPhase = tryPhaseCatch
			return true

		case tokKeywFinally:
			ctx.setBranchToCurrentPosition(frame.branch)
			ctx.enterFinally(frame)
			return true
		}
		ctx.raise(ErrCatchFinallyExpected)
		return false

	case tryPhaseCatch:
		ctx.emitCBC(uint16(bytecode.OpEndTryCatchFinally))
		ctx.flushCBC()

		if ctx.token.typ == tokKeywFinally {
			ctx.enterFinally(frame)
			return true
		}

		popped := ctx.stmtPop()
		ctx.setBranchToCurrentPosition(popped.branch)
		ctx.setBranchToCurrentPosition(popped.branch2)
		return false

	default:
		popped := ctx.stmtPop()
		ctx.setBranchToCurrentPosition(popped.branch)
		return false
	}
}

// parseStatements drives the statement parser until the source or the
// enclosing function body ends. Pending constructs live on an explicit
// statement stack rather than host recursion.
func (ctx *context) parseStatements() {
	ctx.stmtPush(stmtFrame{typ: stmtStart})

	// A directive prologue beginning with "use strict" switches the
	// whole compilation into strict mode; the directive itself then
	// parses as a plain expression statement.
	if ctx.token.typ == tokLiteral && ctx.token.lit.kind == literalString &&
		!ctx.token.lit.hasEscape &&
		string(ctx.tokenBytes(ctx.token.lit)) == "use strict" {
		ctx.statusFlags |= flagIsStrict
	}

	for ctx.token.typ != tokEOS || ctx.stmtTop().typ != stmtStart {
		// The closing brace of a function body ends the statement
		// list; the caller consumes it.
		if ctx.token.typ == tokRightBrace && ctx.stmtTop().typ == stmtStart &&
			ctx.statusFlags&flagIsFunction != 0 {
			break
		}

		switch ctx.token.typ {
		case tokSemicolon, tokRightBrace:
			// Handled by the terminator loop below.

		case tokLeftBrace:
			ctx.stmtPush(stmtFrame{typ: stmtBlock})
			ctx.nextToken()
			continue

		case tokKeywVar:
			ctx.parseVarStatement()

		case tokKeywFunction:
			ctx.parseFunctionStatement()
			continue

		case tokKeywIf:
			ctx.parseIfStatementStart()
			continue

		case tokKeywWith:
			ctx.parseWithStatementStart()
			continue

		case tokKeywDo:
			ctx.flushCBC()
			ctx.stmtPush(stmtFrame{typ: stmtDoWhile, startOffset: ctx.byteCodeSize})
			ctx.nextToken()
			continue

		case tokKeywWhile:
			ctx.parseWhileStatementStart()
			continue

		case tokKeywFor:
			ctx.parseForStatementStart()
			continue

		case tokKeywSwitch:
			ctx.parseSwitchStatementStart()
			continue

		case tokKeywDefault:
			ctx.parseDefaultStatement()
			continue

		case tokKeywCase:
			ctx.parseCaseStatement()
			continue

		case tokKeywTry:
			ctx.parseTryStatementStart()
			continue

		case tokKeywBreak:
			ctx.parseBreakStatement()

		case tokKeywContinue:
			ctx.parseContinueStatement()

		case tokKeywThrow:
			ctx.nextToken()
			if ctx.token.wasNewline {
				ctx.raise(ErrExpressionExpected)
			}
			ctx.parseExpression(exprFlagNone)
			ctx.emitCBC(uint16(bytecode.OpThrow))

		case tokKeywReturn:
			ctx.nextToken()
			if ctx.token.wasNewline || ctx.token.typ == tokSemicolon ||
				ctx.token.typ == tokRightBrace || ctx.token.typ == tokEOS {
				ctx.emitCBC(uint16(bytecode.OpReturnWithUndefined))
				break
			}

			ctx.parseExpression(exprFlagNone)
			ctx.emitCBC(uint16(bytecode.OpReturn))

		case tokKeywDebugger:
			ctx.emitCBCExt(bytecode.ExtDebugger)
			ctx.nextToken()

		case tokLiteral:
			if ctx.token.lit.kind == literalIdent {
				identLoc := ctx.token.lit

				ctx.nextToken()
				if ctx.token.typ == tokColon {
					ctx.parseLabel(ctx.source[identLoc.start:identLoc.end])
					ctx.nextToken()
					continue
				}

				ctx.constructLiteralObject(identLoc, literalIdent)
				ctx.emitLiteralFromToken(uint16(bytecode.OpPushIdent))
				ctx.parseExpression(ctx.statementExprFlags() | exprFlagHasLiteral)
				break
			}
			ctx.parseExpression(ctx.statementExprFlags())

		default:
			ctx.parseExpression(ctx.statementExprFlags())
		}

		ctx.flushCBC()

		terminatorRequired := true
	endings:
		for {
			if terminatorRequired {
				switch {
				case ctx.token.typ == tokRightBrace:
					switch top := ctx.stmtTop(); top.typ {
					case stmtStart:
						// Function body end; the brace stays for the
						// caller.
						if ctx.statusFlags&flagIsFunction == 0 {
							ctx.raise(ErrMisplacedRightBrace)
						}
					case stmtBlock:
						ctx.stmtPop()
						ctx.nextToken()
					case stmtTry:
						if ctx.parseTryStatementEnd() {
							break endings
						}
					case stmtSwitch, stmtSwitchNoDefault:
						frame := ctx.stmtPop()
						if frame.typ == stmtSwitchNoDefault {
							ctx.setBranchToCurrentPosition(frame.defaultBranch)
						}
						ctx.setBreaksToCurrentPosition(frame.branchList)
						ctx.nextToken()
					default:
						ctx.raise(ErrMisplacedRightBrace)
					}
				case ctx.token.typ == tokSemicolon:
					ctx.nextToken()
				case ctx.token.typ != tokEOS && !ctx.token.wasNewline:
					ctx.raise(ErrSemicolonExpected)
				}
			}

			terminatorRequired = false

			switch ctx.stmtTop().typ {
			case stmtLabel:
				frame := ctx.stmtPop()
				ctx.setBreaksToCurrentPosition(frame.branchList)
				continue

			case stmtIf:
				if ctx.parseIfStatementEnd() {
					break endings
				}
				continue

			case stmtElse:
				frame := ctx.stmtPop()
				ctx.setBranchToCurrentPosition(frame.branch)
				continue

			case stmtWith:
				frame := ctx.stmtPop()
				ctx.emitCBC(uint16(bytecode.OpEndWith))
				ctx.flushCBC()
				ctx.setBranchToCurrentPosition(frame.branch)
				continue

			case stmtDoWhile:
				ctx.parseDoWhileStatementEnd()
				terminatorRequired = true
				continue

			case stmtWhile:
				ctx.parseWhileStatementEnd()
				continue

			case stmtFor:
				ctx.parseForStatementEnd()
				continue

			case stmtForIn:
				ctx.parseForInStatementEnd()
				continue
			}
			break
		}
	}

	ctx.stmtPop()
}

// statementExprFlags selects how an expression statement treats its
// value: eval code keeps it as the block result.
func (ctx *context) statementExprFlags() int {
	if ctx.statusFlags&flagIsEval != 0 {
		return exprFlagBlock
	}
	return exprFlagStatement
}

// parseDoWhileStatementEnd compiles the trailing condition of a
// do-while loop.
func (ctx *context) parseDoWhileStatementEnd() {
	if ctx.token.typ != tokKeywWhile {
		ctx.raise(ErrWhileExpected)
	}

	ctx.nextToken()
	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrLeftParenExpected)
	}

	frame := ctx.stmtPop()

	ctx.setContinuesToCurrentPosition(frame.branchList)
	ctx.parseExpression(exprFlagNone)

	if opcode, ok := ctx.backwardBranchOpcode(); ok {
		ctx.emitBackwardBranch(opcode, frame.startOffset)
	}

	ctx.setBreaksToCurrentPosition(frame.branchList)
}
