package parser

import "github.com/picojs/picojs/bytecode"

// Post-processing turns the parser scratch into the final compiled
// code in four phases: final literal index computation, a length pass
// over the page stream, initializer prologue synthesis, and a copy
// pass that applies the variable-width compressions followed by a
// branch-offset rewrite.

// computeIndices buckets the literal records into their final groups
// (arguments, registers, uninitialized vars, initialized vars,
// identifiers, const literals, other literals), assigns each record
// its final index, and returns the group boundaries plus the byte
// length of the initializer prologue.
func (ctx *context) computeIndices() (identEnd, uninitVarEnd, initVarEnd, constLiteralEnd, length int) {
	statusFlags := ctx.statusFlags
	unusedArgumentCount := ctx.argumentCount

	registerCount := ctx.registerCount
	uninitializedVarCount := 0
	initializedVarCount := 0
	identCount := 0
	constLiteralCount := 0

	// First phase: count the number of items in each group.
	for _, l := range ctx.literalPool {
		switch l.kind {
		case literalIdent:
			if l.flags&litFlagVar == 0 {
				identCount++
				break
			}
			if statusFlags&flagNoRegStore != 0 {
				l.flags |= litFlagNoRegStore
			}

			if l.flags&litFlagInitialized != 0 {
				switch l.initKind {
				case initFuncName:
					statusFlags |= flagNamedFunctionExp
					ctx.statusFlags = statusFlags
					ctx.literalCount++
				case initFuncArg:
					unusedArgumentCount--
					// Arguments are bound to their position, or move
					// to the initialized var section.
					if l.flags&litFlagNoRegStore != 0 {
						initializedVarCount++
						ctx.literalCount++
					}
				}
				if l.initKind == initNone || l.initKind == initFuncName {
					if l.flags&litFlagNoRegStore == 0 && registerCount < ctx.limits.MaxRegisters {
						registerCount++
					} else {
						l.flags |= litFlagNoRegStore
						initializedVarCount++
					}
				}
				if ctx.literalCount >= ctx.limits.MaxLiterals {
					ctx.raise(ErrLiteralLimitReached)
				}
			} else if l.flags&litFlagNoRegStore == 0 && registerCount < ctx.limits.MaxRegisters {
				registerCount++
			} else {
				l.flags |= litFlagNoRegStore
				uninitializedVarCount++
			}

		case literalString, literalNumber:
			constLiteralCount++
		}
	}

	if unusedArgumentCount > 0 {
		ctx.literalCount += unusedArgumentCount
		if ctx.literalCount >= ctx.limits.MaxLiterals {
			ctx.raise(ErrLiteralLimitReached)
		}
	}

	oneByteLimit := ctx.literalOneByteLimit()

	if uninitializedVarCount > 0 {
		// Opcode byte and a literal argument.
		length += 2
		if registerCount+uninitializedVarCount-1 > oneByteLimit {
			length++
		}
	}

	registerIndex := ctx.registerCount
	uninitializedVarIndex := registerCount
	initializedVarIndex := uninitializedVarIndex + uninitializedVarCount
	identIndex := initializedVarIndex + initializedVarCount
	constLiteralIndex := identIndex + identCount
	literalIndex := constLiteralIndex + constLiteralCount

	if initializedVarCount > 2 {
		statusFlags |= flagHasInitializedVars
		ctx.statusFlags = statusFlags

		// Opcode byte and two literal arguments.
		length += 3
		if initializedVarIndex > oneByteLimit {
			length++
		}
		if identIndex-1 > oneByteLimit {
			length++
		}
	}

	// encodedLength sizes one encoded literal index.
	encodedLength := func(index int) int {
		if index > oneByteLimit {
			return 2
		}
		return 1
	}
	// initializeVarLength sizes the INITIALIZE_VAR header emitted for
	// a binding outside the bulk INITIALIZE_VARS instruction.
	initializeVarLength := func(target int, bulk bool) int {
		if bulk {
			return 0
		}
		return 1 + encodedLength(target)
	}

	hasInitializedVars := statusFlags&flagHasInitializedVars != 0

	// Second phase: assign an index and initializer index to each
	// literal record.
	for _, l := range ctx.literalPool {
		if l.kind == literalIdent {
			if l.flags&litFlagVar != 0 {
				if l.flags&litFlagInitialized != 0 {
					if l.initKind == initFuncArg {
						if l.flags&litFlagNoRegStore != 0 {
							l.index = uint16(initializedVarIndex)
							l.initIndex = l.initValue

							bulk := hasInitializedVars
							length += initializeVarLength(initializedVarIndex, bulk)
							length += encodedLength(int(l.initIndex))

							initializedVarIndex++
						} else {
							// Bound to the argument position.
							l.index = l.initValue
							l.initIndex = l.initValue
						}
					} else if l.flags&litFlagNoRegStore == 0 {
						// This var literal can be stored in a register.
						l.index = uint16(registerIndex)
						registerIndex++
					} else {
						l.index = uint16(initializedVarIndex)
						initializedVarIndex++
					}

					if l.initKind == initFuncName {
						// The self reference occupies an extra slot
						// at the end of the pool.
						l.initIndex = uint16(literalIndex)
						literalIndex++

						bulk := hasInitializedVars && l.flags&litFlagNoRegStore != 0
						length += initializeVarLength(int(l.index), bulk)
						length += encodedLength(int(l.initIndex))
					}
				} else if l.flags&litFlagNoRegStore == 0 {
					// This var literal can be stored in a register.
					l.index = uint16(registerIndex)
					registerIndex++
				} else {
					l.index = uint16(uninitializedVarIndex)
					uninitializedVarIndex++
				}
			} else {
				l.index = uint16(identIndex)
				identIndex++
			}
			continue
		}

		// A function declaration binds its name to the function
		// literal through the initializer prologue.
		if l.kind == literalFunction && l.initKind == initFuncDecl {
			name := ctx.literalPool[l.initValue]
			name.initIndex = uint16(literalIndex)

			bulk := hasInitializedVars && name.flags&litFlagNoRegStore != 0
			length += initializeVarLength(int(name.index), bulk)
			length += encodedLength(literalIndex)
		}

		if l.kind == literalString || l.kind == literalNumber {
			l.index = uint16(constLiteralIndex)
			constLiteralIndex++
		} else {
			l.index = uint16(literalIndex)
			literalIndex++
		}
	}

	ctx.registerCount = registerIndex

	return identIndex, uninitializedVarIndex, initializedVarIndex, constLiteralIndex, length
}

// literalOneByteLimit returns the largest literal index encodable in
// one byte under the encoding the final literal count selects.
func (ctx *context) literalOneByteLimit() int {
	if ctx.literalCount <= bytecode.MaxSmallValue {
		return bytecode.MaxByteValue - 1
	}
	return bytecode.LowerSevenBitMask
}

// encodeLiteralIndex appends one variable-width literal index.
func (ctx *context) encodeLiteralIndex(dst []byte, index int, oneByteLimit int) []byte {
	if index <= oneByteLimit {
		return append(dst, byte(index))
	}
	if oneByteLimit == bytecode.MaxByteValue-1 {
		return append(dst, byte(bytecode.MaxByteValue), byte(index-bytecode.MaxByteValue))
	}
	return append(dst, byte(index>>8)|bytecode.HighestBitMask, byte(index&0xff))
}

// generateInitializers writes the synthetic prologue and materializes
// the literal pool: strings and numbers are interned into the literal
// store, identifiers become string values, nested functions become
// function references.
func (ctx *context) generateInitializers(code *bytecode.CompiledCode, dst []byte,
	uninitVarEnd, initVarEnd, oneByteLimit int) []byte {

	if uninitVarEnd > ctx.registerCount {
		dst = append(dst, byte(bytecode.OpDefineVars))
		dst = ctx.encodeLiteralIndex(dst, uninitVarEnd-1, oneByteLimit)
	}

	if ctx.statusFlags&flagHasInitializedVars != 0 {
		dst = append(dst, byte(bytecode.OpInitializeVars))
		dst = ctx.encodeLiteralIndex(dst, uninitVarEnd, oneByteLimit)
		dst = ctx.encodeLiteralIndex(dst, initVarEnd-1, oneByteLimit)

		const expected = litFlagVar | litFlagNoRegStore | litFlagInitialized
		for _, l := range ctx.literalPool {
			if l.kind == literalIdent && l.flags&expected == expected {
				l.flags &^= litFlagInitialized
				dst = ctx.encodeLiteralIndex(dst, int(l.initIndex), oneByteLimit)
			}
		}
	}

	functionIndex := 0
	for _, l := range ctx.literalPool {
		switch l.kind {
		case literalIdent, literalString, literalRegexp:
			record, err := ctx.store.FindOrCreateUTF8(l.bytes)
			if err != nil {
				ctx.raise(ErrOutOfMemory)
			}
			code.LiteralPool[l.index] = bytecode.MakeStringValue(record.CP())
		case literalNumber:
			record, err := ctx.store.FindOrCreateNumber(l.number)
			if err != nil {
				ctx.raise(ErrOutOfMemory)
			}
			code.LiteralPool[l.index] = bytecode.MakeNumberValue(record.CP())
		case literalFunction:
			code.Functions = append(code.Functions, l.fn)
			code.LiteralPool[l.index] = bytecode.MakeFunctionValue(functionIndex)
			functionIndex++
		}

		const expected = litFlagVar | litFlagInitialized
		if l.kind == literalIdent && l.flags&expected == expected && l.index != l.initIndex {
			dst = append(dst, byte(bytecode.OpInitializeVar))
			dst = ctx.encodeLiteralIndex(dst, int(l.index), oneByteLimit)
			dst = ctx.encodeLiteralIndex(dst, int(l.initIndex), oneByteLimit)
		}
	}
	return dst
}

// streamCursor walks the scratch byte-code page stream.
type streamCursor struct {
	pages   []*streamPage
	pageIdx int
	offset  int
	endIdx  int
	endPos  int
}

func (ctx *context) newStreamCursor() streamCursor {
	pages := ctx.byteCode.pages()
	endIdx := len(pages) - 1
	endPos := ctx.byteCode.lastPosition
	if endPos >= streamPageSize {
		endIdx = len(pages)
		endPos = 0
	}
	return streamCursor{pages: pages, endIdx: endIdx, endPos: endPos}
}

func (c *streamCursor) done() bool {
	return c.pageIdx == c.endIdx && c.offset >= c.endPos || c.pageIdx > c.endIdx
}

func (c *streamCursor) page() *streamPage {
	return c.pages[c.pageIdx]
}

func (c *streamCursor) peekByte() byte {
	return c.pages[c.pageIdx].bytes[c.offset]
}

func (c *streamCursor) next() {
	c.offset++
	if c.offset >= streamPageSize {
		c.offset = 0
		c.pageIdx++
	}
}

// pageCount returns the number of retained bytes recorded for a page
// by the copy pass.
func pageCount(page *streamPage) int {
	return int(page.bytes[streamPageSize-1] & bytecode.LowerSevenBitMask)
}

// postProcess assembles the final compiled-code object from the
// parser scratch.
func (ctx *context) postProcess() *bytecode.CompiledCode {
	if ctx.stackLimit+ctx.registerCount > ctx.limits.MaxStackDepth {
		ctx.raise(ErrStackLimitReached)
	}

	identEnd, uninitVarEnd, initVarEnd, constLiteralEnd, initializersLength := ctx.computeIndices()
	length := initializersLength
	oneByteLimit := ctx.literalOneByteLimit()

	// Length pass: walk the stream instruction by instruction,
	// rewriting literal arguments to their final encoding in place
	// and sizing the minimal branch encodings.
	cursor := ctx.newStreamCursor()
	lastOpcode := uint16(opcodeUnavailable)
	deletableJump := bytecode.OpJumpForward + bytecode.Opcode(ctx.branchPlaceholderLen-1)

	for !cursor.done() {
		opcodePage := cursor.page()
		opcodeOffset := cursor.offset
		opcodeByte := cursor.peekByte()
		lastOpcode = uint16(opcodeByte)
		cursor.next()
		branchLength := bytecode.BranchOffsetLength(opcodeByte)
		var flags uint8
		if bytecode.Opcode(opcodeByte) == bytecode.OpExtOpcode {
			extByte := cursor.peekByte()
			branchLength = bytecode.BranchOffsetLength(extByte)
			flags = bytecode.ExtFlags[extByte]
			lastOpcode = uint16(extByte) + 256
			cursor.next()
			length++
		} else {
			flags = bytecode.Flags[opcodeByte]
		}
		length++

		literalFlags := flags & (bytecode.FlagLiteralArg | bytecode.FlagLiteralArg2)
		for literalFlags != 0 {
			firstPage := cursor.page()
			firstOffset := cursor.offset
			literalIndex := int(cursor.peekByte())
			cursor.next()
			length++

			literalIndex |= int(cursor.peekByte()) << 8
			l := ctx.literalPool[literalIndex]

			if int(l.index) <= oneByteLimit {
				firstPage.bytes[firstOffset] = byte(l.index)
			} else if ctx.literalCount <= bytecode.MaxSmallValue {
				firstPage.bytes[firstOffset] = byte(bytecode.MaxByteValue)
				cursor.page().bytes[cursor.offset] = byte(int(l.index) - bytecode.MaxByteValue)
				length++
			} else {
				firstPage.bytes[firstOffset] = byte(l.index>>8) | bytecode.HighestBitMask
				cursor.page().bytes[cursor.offset] = byte(l.index & 0xff)
				length++
			}
			cursor.next()

			if literalFlags&bytecode.FlagLiteralArg != 0 {
				literalFlags &^= bytecode.FlagLiteralArg
			} else {
				break
			}
		}

		if flags&bytecode.FlagBranchArg == 0 && flags&bytecode.FlagByteArg != 0 {
			// Copied without modification.
			cursor.next()
			length++
		}

		if flags&bytecode.FlagBranchArg != 0 {
			// The leading zero bytes are dropped from the stream.
			// Dropping them for backward branches is unnecessary but
			// shares the code path.
			prefixZero := true
			for i := 0; i < branchLength-1; i++ {
				if cursor.peekByte() > 0 || !prefixZero {
					prefixZero = false
					length++
				}
				cursor.next()
			}

			if bytecode.Opcode(opcodeByte) == deletableJump && prefixZero &&
				int(cursor.peekByte()) == ctx.branchPlaceholderLen+1 {
				// Unconditional jumps landing right after themselves
				// are effectively no-ops and are removed. The one
				// byte JUMP_FORWARD form marks them, since it is
				// never emitted directly.
				opcodePage.bytes[opcodeOffset] = byte(bytecode.OpJumpForward)
				length--
			} else {
				// The last offset byte is always copied.
				length++
			}
			cursor.next()
		}
	}

	endLabelRequired := lastOpcode != uint16(bytecode.OpReturn) &&
		lastOpcode != uint16(bytecode.OpReturnWithUndefined)
	if endLabelRequired {
		length++
	}

	if length > ctx.limits.MaxCodeSize {
		ctx.raise(ErrCodeSizeLimitReached)
	}

	code := &bytecode.CompiledCode{
		StackLimit:      uint16(ctx.registerCount + ctx.stackLimit),
		ArgumentEnd:     uint16(ctx.argumentCount),
		RegisterEnd:     uint16(ctx.registerCount),
		IdentEnd:        uint16(identEnd),
		ConstLiteralEnd: uint16(constLiteralEnd),
		LiteralEnd:      uint16(ctx.literalCount),
		LiteralPool:     make([]bytecode.Value, ctx.literalCount),
	}
	if ctx.literalCount > bytecode.MaxSmallValue {
		code.StatusFlags |= bytecode.FlagFullLiteralEncoding
	}
	if ctx.isStrict() {
		code.StatusFlags |= bytecode.FlagStrictMode
	}

	dst := make([]byte, 0, length)
	dst = ctx.generateInitializers(code, dst, uninitVarEnd, initVarEnd, oneByteLimit)

	// Copy pass: apply the compressions computed above, replacing the
	// consumed scratch bytes with running per-page retained-byte
	// counts. Branch instructions are marked with the high bit of
	// their scratch opcode byte so the rewrite pass finds them
	// cheaply.
	cursor = ctx.newStreamCursor()
	realOffset := byte(0)

	update := func() {
		cursor.page().bytes[cursor.offset] = realOffset
		cursor.offset++
		if cursor.offset >= streamPageSize {
			cursor.offset = 0
			cursor.pageIdx++
			realOffset = 0
		}
	}

	for !cursor.done() {
		branchMarkPage := cursor.page()
		branchMarkOffset := cursor.offset
		opcodeByte := cursor.peekByte()
		branchLength := bytecode.BranchOffsetLength(opcodeByte)

		if bytecode.Opcode(opcodeByte) == bytecode.OpJumpForward {
			// Marked for deletion in the length pass.
			for i := 0; i < ctx.branchPlaceholderLen+1; i++ {
				update()
			}
			continue
		}

		opcodeDst := len(dst)
		dst = append(dst, opcodeByte)
		realOffset++
		update()
		var flags uint8
		if bytecode.Opcode(opcodeByte) == bytecode.OpExtOpcode {
			extByte := cursor.peekByte()
			flags = bytecode.ExtFlags[extByte]
			branchLength = bytecode.BranchOffsetLength(extByte)
			dst = append(dst, extByte)
			opcodeDst++
			realOffset++
			update()
		} else {
			flags = bytecode.Flags[opcodeByte]
		}

		if flags&bytecode.FlagBranchArg != 0 {
			branchMarkPage.bytes[branchMarkOffset] |= bytecode.HighestBitMask
		}

		literalFlags := flags & (bytecode.FlagLiteralArg | bytecode.FlagLiteralArg2)
		for literalFlags != 0 {
			firstByte := cursor.peekByte()
			dst = append(dst, firstByte)
			realOffset++
			update()

			if int(firstByte) > oneByteLimit {
				dst = append(dst, cursor.peekByte())
				realOffset++
			}
			update()

			if literalFlags&bytecode.FlagLiteralArg != 0 {
				literalFlags &^= bytecode.FlagLiteralArg
			} else {
				break
			}
		}

		if flags&bytecode.FlagBranchArg == 0 && flags&bytecode.FlagByteArg != 0 {
			dst = append(dst, cursor.peekByte())
			realOffset++
			update()
		}

		if flags&bytecode.FlagBranchArg != 0 {
			prefixZero := true
			for i := 0; i < branchLength-1; i++ {
				b := cursor.peekByte()
				if b > 0 || !prefixZero {
					prefixZero = false
					dst = append(dst, b)
					realOffset++
				} else {
					// A dropped leading zero shortens the encoded
					// offset width.
					dst[opcodeDst]--
				}
				update()
			}
			dst = append(dst, cursor.peekByte())
			realOffset++
			update()
		}
	}

	if endLabelRequired {
		dst = append(dst, byte(bytecode.OpReturnWithUndefined))
	}

	code.Code = dst
	ctx.updateBranches(dst[initializersLength:])

	return code
}

// updateBranches recomputes every branch offset against the final
// byte positions using the per-page retained-byte counts left behind
// by the copy pass. mapping[target] - mapping[source] gives the new
// forward distance; the equation reverses for backward branches.
func (ctx *context) updateBranches(byteCode []byte) {
	cursor := ctx.newStreamCursor()
	bytesCopied := 0

	for !cursor.done() {
		if cursor.peekByte()&bytecode.HighestBitMask != 0 {
			bytesCopiedBeforeJump := 0
			if cursor.offset > 0 {
				bytesCopiedBeforeJump = int(cursor.page().bytes[cursor.offset-1] & bytecode.LowerSevenBitMask)
			}
			pos := bytesCopied + bytesCopiedBeforeJump

			opcodeByte := byteCode[pos]
			var flags uint8
			argPos := pos + 1
			if bytecode.Opcode(opcodeByte) == bytecode.OpExtOpcode {
				opcodeByte = byteCode[pos+1]
				flags = bytecode.ExtFlags[opcodeByte]
				argPos = pos + 2
			} else {
				flags = bytecode.Flags[opcodeByte]
			}

			branchLength := bytecode.BranchOffsetLength(opcodeByte)
			targetDistance := 0
			for i := 0; i < branchLength; i++ {
				targetDistance = targetDistance<<8 | int(byteCode[argPos+i])
			}

			var newDistance int
			if bytecode.IsForwardBranch(flags) {
				newDistance = ctx.forwardBranchDistance(cursor, targetDistance, bytesCopiedBeforeJump)
			} else {
				newDistance = ctx.backwardBranchDistance(cursor, targetDistance, bytesCopiedBeforeJump)
			}

			for i := branchLength - 1; i >= 0; i-- {
				byteCode[argPos+i] = byte(newDistance)
				newDistance >>= 8
			}
		}

		prevPage := cursor.page()
		cursor.next()
		if cursor.offset == 0 {
			bytesCopied += pageCount(prevPage)
		}
	}
}

// forwardBranchDistance maps a scratch-relative forward distance to
// the final byte code.
func (ctx *context) forwardBranchDistance(cursor streamCursor, targetDistance, bytesCopiedBeforeJump int) int {
	fullDistance := cursor.offset + targetDistance
	pageIdx := cursor.pageIdx
	newDistance := 0

	for fullDistance > streamPageSize {
		newDistance += pageCount(cursor.pages[pageIdx])
		fullDistance -= streamPageSize
		pageIdx++
	}
	newDistance += int(cursor.pages[pageIdx].bytes[fullDistance-1] & bytecode.LowerSevenBitMask)
	return newDistance - bytesCopiedBeforeJump
}

// backwardBranchDistance maps a scratch-relative backward distance to
// the final byte code.
func (ctx *context) backwardBranchDistance(cursor streamCursor, targetDistance, bytesCopiedBeforeJump int) int {
	offset := cursor.offset
	if targetDistance < offset {
		before := int(cursor.page().bytes[offset-targetDistance-1] & bytecode.LowerSevenBitMask)
		return bytesCopiedBeforeJump - before
	}
	if targetDistance == offset {
		return bytesCopiedBeforeJump
	}

	fullDistance := targetDistance - offset
	pageIdx := cursor.pageIdx - 1
	newDistance := bytesCopiedBeforeJump

	for fullDistance >= streamPageSize {
		newDistance += pageCount(cursor.pages[pageIdx])
		fullDistance -= streamPageSize
		pageIdx--
	}
	if fullDistance > 0 {
		page := cursor.pages[pageIdx]
		newDistance += pageCount(page)
		newDistance -= int(page.bytes[streamPageSize-fullDistance-1] & bytecode.LowerSevenBitMask)
	}
	return newDistance
}
