package parser

import "github.com/picojs/picojs/bytecode"

// noResultOperation reports whether the cached opcode is the
// result-less form of an operation that also has a push-result form
// one past it (unary lvalue and call opcodes) or the direct eval call.
func noResultOperation(op uint16) bool {
	return (op >= uint16(bytecode.OpDelete) && op < uint16(bytecode.OpEnd)) ||
		op == toExtOpcode(bytecode.ExtCallEval)
}

// noResultBinaryOperation reports whether the cached opcode is a
// result-less binary lvalue operation.
func noResultBinaryOperation(op uint16) bool {
	return op >= uint16(bytecode.OpAssign) && op < uint16(bytecode.OpEnd)
}

// binaryOperationWithResult converts a binary lvalue opcode to its
// extended push-result form.
func binaryOperationWithResult(op uint16) uint16 {
	return toExtOpcode(bytecode.ExtAssignPushResult) + (op - uint16(bytecode.OpAssign))
}

// binaryOperationWithBlock converts a binary lvalue opcode to its
// extended block-result form.
func binaryOperationWithBlock(op uint16) uint16 {
	return toExtOpcode(bytecode.ExtAssignBlock) + (op - uint16(bytecode.OpAssign))
}

// adjustStack applies a stack delta and tracks the high-water mark.
func (ctx *context) adjustStack(delta int) {
	ctx.stackDepth += delta
	if ctx.stackDepth > ctx.stackLimit {
		ctx.stackLimit = ctx.stackDepth
	}
	if ctx.stackDepth > ctx.limits.MaxStackDepth {
		ctx.raise(ErrStackLimitReached)
	}
}

// checkCodeSize enforces the final code size ceiling while emitting.
func (ctx *context) checkCodeSize() {
	if ctx.byteCodeSize > ctx.limits.MaxCodeSize {
		ctx.raise(ErrCodeSizeLimitReached)
	}
}

// flushCBC appends the cached instruction to the byte-code stream.
// Literal arguments are written as two bytes carrying the parser-local
// pool index; post-processing rewrites them into their final
// variable-width encoding.
func (ctx *context) flushCBC() {
	if ctx.lastOpcode == opcodeUnavailable {
		return
	}

	var flags uint8
	if isBasicOpcode(ctx.lastOpcode) {
		flags = bytecode.Flags[ctx.lastOpcode]
		ctx.byteCode.appendByte(byte(ctx.lastOpcode))
		ctx.byteCodeSize++
	} else {
		flags = bytecode.ExtFlags[ctx.lastOpcode-256]
		ctx.byteCode.appendTwoBytes(byte(bytecode.OpExtOpcode), byte(ctx.lastOpcode-256))
		ctx.byteCodeSize += 2
	}

	ctx.adjustStack(bytecode.StackAdjust(flags))

	if flags&bytecode.FlagLiteralArg != 0 {
		ctx.byteCode.appendTwoBytes(byte(ctx.lastLiteral), byte(ctx.lastLiteral>>8))
		ctx.byteCodeSize += 2
	}
	if flags&bytecode.FlagLiteralArg2 != 0 {
		ctx.byteCode.appendTwoBytes(byte(ctx.lastValue), byte(ctx.lastValue>>8))
		ctx.byteCodeSize += 2
	}
	if flags&bytecode.FlagByteArg != 0 {
		byteArg := byte(ctx.lastValue)
		if flags&bytecode.FlagPopStackByte != 0 {
			ctx.adjustStack(-int(byteArg))
		}
		ctx.byteCode.appendByte(byteArg)
		ctx.byteCodeSize++
	}

	ctx.checkCodeSize()
	ctx.lastOpcode = opcodeUnavailable
}

// emitCBC caches an argument-less instruction.
func (ctx *context) emitCBC(op uint16) {
	ctx.flushCBC()
	ctx.lastOpcode = op
}

// emitCBCExt caches an argument-less extended instruction.
func (ctx *context) emitCBCExt(op bytecode.ExtOpcode) {
	ctx.emitCBC(toExtOpcode(op))
}

// emitLiteral caches an instruction with a literal argument. Two
// adjacent literal pushes fuse into a single two-operand push.
func (ctx *context) emitLiteral(op uint16, index uint16) {
	if op == uint16(bytecode.OpPushLiteral) &&
		ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
		ctx.lastOpcode = uint16(bytecode.OpPushTwoLiterals)
		ctx.lastValue = index
		ctx.lastLiteralKind = ctx.literalPool[index].kind
		ctx.lastObjType = identAny
		return
	}
	ctx.flushCBC()
	ctx.lastOpcode = op
	ctx.lastLiteral = index
	ctx.lastLiteralKind = ctx.literalPool[index].kind
	ctx.lastObjType = identAny
}

// emitLiteralFromToken caches an instruction pushing the literal most
// recently constructed from a token, keeping its classification for
// strict-mode checks and direct eval detection.
func (ctx *context) emitLiteralFromToken(op uint16) {
	if op == uint16(bytecode.OpPushLiteral) &&
		ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
		ctx.lastOpcode = uint16(bytecode.OpPushTwoLiterals)
		ctx.lastValue = ctx.litObject.index
		ctx.lastLiteralKind = ctx.litObject.literal.kind
		ctx.lastObjType = identAny
		return
	}
	ctx.flushCBC()
	ctx.lastOpcode = op
	ctx.lastLiteral = ctx.litObject.index
	ctx.lastLiteralKind = ctx.litObject.literal.kind
	ctx.lastObjType = ctx.litObject.objType
}

// emitCall caches a call-family instruction with its arity.
func (ctx *context) emitCall(op uint16, arguments int) {
	ctx.flushCBC()
	ctx.lastOpcode = op
	ctx.lastValue = uint16(arguments)
}

// pushResult converts the cached result-less operation into its
// push-result form and flushes it; no further rewrite is possible.
func (ctx *context) pushResult() {
	if noResultBinaryOperation(ctx.lastOpcode) {
		ctx.lastOpcode = binaryOperationWithResult(ctx.lastOpcode)
		ctx.flushCBC()
	} else if noResultOperation(ctx.lastOpcode) {
		ctx.lastOpcode++
		ctx.flushCBC()
	}
}

// emitForwardBranch writes a branch instruction with a placeholder
// offset and returns its patch location. The placeholder always uses
// the widest offset form the code size limit allows; post-processing
// drops leading zero bytes.
func (ctx *context) emitForwardBranch(op uint16) branchRef {
	ctx.flushCBC()

	flags := opcodeFlags(op)
	ctx.adjustStack(bytecode.StackAdjust(flags))

	opcodeByte := byte(op)
	instrStart := ctx.byteCodeSize
	if !isBasicOpcode(op) {
		ctx.byteCode.appendByte(byte(bytecode.OpExtOpcode))
		opcodeByte = byte(op - 256)
	}
	opcodeByte += byte(ctx.branchPlaceholderLen - 1)

	ctx.byteCode.appendTwoBytes(opcodeByte, 0)
	branch := branchRef{
		page:       ctx.byteCode.last,
		byteOffset: ctx.byteCode.lastPosition - 1,
		instrStart: instrStart,
	}
	if !isBasicOpcode(op) {
		ctx.byteCodeSize++
	}
	ctx.byteCodeSize += 2
	for i := 1; i < ctx.branchPlaceholderLen; i++ {
		ctx.byteCode.appendByte(0)
		ctx.byteCodeSize++
	}
	ctx.checkCodeSize()
	return branch
}

// emitForwardBranchItem emits a forward branch and prepends it to a
// placeholder list.
func (ctx *context) emitForwardBranchItem(op uint16, next *branchItem, isContinue bool) *branchItem {
	branch := ctx.emitForwardBranch(op)
	return &branchItem{next: next, branch: branch, isContinue: isContinue}
}

// emitBackwardBranch writes a backward branch to an already known
// target offset using the minimal offset width.
func (ctx *context) emitBackwardBranch(op uint16, targetOffset int) {
	ctx.flushCBC()

	flags := opcodeFlags(op)
	ctx.adjustStack(bytecode.StackAdjust(flags))

	offset := ctx.byteCodeSize - targetOffset
	opcodeByte := byte(op)
	if !isBasicOpcode(op) {
		ctx.byteCode.appendByte(byte(bytecode.OpExtOpcode))
		opcodeByte = byte(op - 256)
		ctx.byteCodeSize++
	}

	ctx.byteCodeSize += 2
	if offset > 65535 {
		opcodeByte += 2
		ctx.byteCodeSize += 2
	} else if offset > 255 {
		opcodeByte++
		ctx.byteCodeSize++
	}

	ctx.byteCode.appendByte(opcodeByte)
	if offset > 65535 {
		ctx.byteCode.appendByte(byte(offset >> 16))
	}
	if offset > 255 {
		ctx.byteCode.appendByte(byte(offset >> 8))
	}
	ctx.byteCode.appendByte(byte(offset))
	ctx.checkCodeSize()
}

// setBranchToCurrentPosition patches a forward-branch placeholder with
// the distance from the branch instruction to the current position.
func (ctx *context) setBranchToCurrentPosition(b branchRef) {
	ctx.flushCBC()
	ctx.patchBranch(b, ctx.byteCodeSize-b.instrStart)
}

// setBreaksToCurrentPosition patches the break placeholders of a loop
// frame's list.
func (ctx *context) setBreaksToCurrentPosition(list *branchItem) {
	for item := list; item != nil; item = item.next {
		if !item.isContinue {
			ctx.setBranchToCurrentPosition(item.branch)
		}
	}
}

// setContinuesToCurrentPosition patches the continue placeholders of a
// loop frame's list.
func (ctx *context) setContinuesToCurrentPosition(list *branchItem) {
	for item := list; item != nil; item = item.next {
		if item.isContinue {
			ctx.setBranchToCurrentPosition(item.branch)
		}
	}
}
