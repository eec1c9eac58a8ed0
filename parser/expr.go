package parser

import "github.com/picojs/picojs/bytecode"

// Expression parsing option flags.
const (
	exprFlagNone       = 0
	exprFlagStatement  = 1 << 0 // discard the result
	exprFlagBlock      = 1 << 1 // save the result as the block result
	exprFlagNoComma    = 1 << 2 // stop at a comma
	exprFlagHasLiteral = 1 << 3 // a literal push is already cached
)

// opEntry is one pending item on the expression operator stack: a
// grouping paren, the new keyword, a unary operator, or a binary
// operator together with the byte code saved for it. Logical operators
// carry their short-circuit branch placeholder instead.
type opEntry struct {
	tok          tokenType
	opcode       uint16
	literalIndex uint16
	hasLiteral   bool
	branch       branchRef
}

func (ctx *context) opStackTop() *opEntry {
	return &ctx.opStack[len(ctx.opStack)-1]
}

func (ctx *context) opStackPush(entry opEntry) {
	ctx.opStack = append(ctx.opStack, entry)
}

func (ctx *context) opStackPop() opEntry {
	entry := ctx.opStack[len(ctx.opStack)-1]
	ctx.opStack = ctx.opStack[:len(ctx.opStack)-1]
	return entry
}

// checkAssignTarget raises the strict-mode errors for assignments to
// eval or arguments. Only meaningful when the cached instruction is a
// PUSH_IDENT.
func (ctx *context) checkAssignTarget() {
	if !ctx.isStrict() || ctx.lastObjType == identAny {
		return
	}
	if ctx.lastObjType == identEval {
		ctx.raise(ErrEvalCannotBeAssigned)
	}
	ctx.raise(ErrArgumentsCannotBeAssigned)
}

// emitUnaryLValueOpcode rewrites the cached lvalue access into the
// corresponding store-family opcode, or materializes an undefined base
// when there is no assignable reference.
func (ctx *context) emitUnaryLValueOpcode(opcode uint16) {
	switch ctx.lastOpcode {
	case uint16(bytecode.OpPushIdent):
		ctx.checkAssignTarget()
		ctx.lastOpcode = opcode + bytecode.UnaryLValueWithIdent
	case uint16(bytecode.OpPropGet):
		ctx.lastOpcode = opcode
	case uint16(bytecode.OpPropStringGet):
		ctx.lastOpcode = opcode + bytecode.UnaryLValueWithPropString
	default:
		// A runtime error will happen.
		ctx.emitCBCExt(bytecode.ExtPushUndefinedBase)
		ctx.emitCBC(opcode)
	}
}

// parseArrayLiteral compiles an array literal: elements are batched
// into ARRAY_APPEND groups of at most 64.
func (ctx *context) parseArrayLiteral() {
	pushedItems := 0

	ctx.emitCBC(uint16(bytecode.OpCreateArray))
	ctx.nextToken()

	for {
		if ctx.token.typ == tokRightSquare {
			if pushedItems > 0 {
				ctx.emitCall(uint16(bytecode.OpArrayAppend), pushedItems)
			}
			return
		}

		pushedItems++

		if ctx.token.typ == tokComma {
			ctx.emitCBC(uint16(bytecode.OpPushElision))
			ctx.nextToken()
		} else {
			ctx.parseExpression(exprFlagNoComma)
			if ctx.token.typ == tokComma {
				ctx.nextToken()
			} else if ctx.token.typ != tokRightSquare {
				ctx.raise(ErrArrayItemSeparatorExpected)
			}
		}

		if pushedItems >= 64 {
			ctx.emitCall(uint16(bytecode.OpArrayAppend), pushedItems)
			pushedItems = 0
		}
	}
}

// expectObjectLiteralID scans a property name: an identifier, string
// or number, recognizing get / set shorthand unless wantName is set.
func (ctx *context) expectObjectLiteralID(wantName bool) {
	ctx.nextToken()

	if ctx.token.typ == tokLiteral {
		switch ctx.token.lit.kind {
		case literalIdent:
			bytes := ctx.literalBytes(ctx.token.lit)
			if !wantName && (string(bytes) == "get" || string(bytes) == "set") {
				// Only shorthand when a property name follows.
				savedPos, savedLine, savedColumn := ctx.pos, ctx.line, ctx.column
				savedToken := ctx.token
				ctx.nextToken()
				isShorthand := ctx.token.typ == tokLiteral || isPropertyNameToken(ctx.token.typ)
				ctx.pos, ctx.line, ctx.column = savedPos, savedLine, savedColumn
				ctx.token = savedToken
				if isShorthand {
					if bytes[0] == 'g' {
						ctx.token.typ = tokPropertyGetter
					} else {
						ctx.token.typ = tokPropertySetter
					}
					return
				}
			}
			ctx.constructLiteralObject(ctx.token.lit, literalString)
		case literalString:
			ctx.constructLiteralObject(ctx.token.lit, literalString)
		case literalNumber:
			ctx.constructNumberObject()
		}
		return
	}

	// Keywords are valid property names in object literals.
	if isPropertyNameToken(ctx.token.typ) {
		ctx.constructLiteralObject(ctx.token.lit, literalString)
		return
	}

	if ctx.token.typ == tokRightBrace && !wantName {
		return
	}
	ctx.raise(ErrIdentifierExpected)
}

// isPropertyNameToken reports whether a keyword token may serve as a
// property name. The lexer records the raw range for every keyword.
func isPropertyNameToken(t tokenType) bool {
	return t == tokLitTrue || t == tokLitFalse || t == tokLitNull ||
		t == tokKeywThis || (t >= tokKeywBreak && t <= tokKeywTry) ||
		isFutureReservedWord(t) || isFutureStrictReservedWord(t) ||
		t == tokKeywVoid || t == tokKeywTypeof || t == tokKeywDelete ||
		t == tokKeywIn || t == tokKeywInstanceof
}

// parseObjectLiteral compiles an object literal with get / set
// shorthand support.
func (ctx *context) parseObjectLiteral() {
	ctx.emitCBC(uint16(bytecode.OpCreateObject))

	for {
		ctx.expectObjectLiteralID(false)

		if ctx.token.typ == tokRightBrace {
			return
		}

		if ctx.token.typ == tokPropertyGetter || ctx.token.typ == tokPropertySetter {
			var statusFlags uint32
			var opcode bytecode.ExtOpcode

			if ctx.token.typ == tokPropertyGetter {
				statusFlags = flagIsFunction | flagIsClosure | flagIsPropertyGetter
				opcode = bytecode.ExtSetGetter
			} else {
				statusFlags = flagIsFunction | flagIsClosure | flagIsPropertySetter
				opcode = bytecode.ExtSetSetter
			}

			ctx.expectObjectLiteralID(true)
			literalIndex := ctx.litObject.index

			ctx.flushCBC()
			ctx.constructFunctionObject(anonymousFunction, statusFlags)

			ctx.emitLiteral(uint16(bytecode.OpPushLiteral), uint16(len(ctx.literalPool)-1))
			ctx.flushCBC()
			ctx.emitLiteral(toExtOpcode(opcode), literalIndex)

			ctx.nextToken()
		} else {
			literalIndex := ctx.litObject.index

			ctx.nextToken()
			if ctx.token.typ != tokColon {
				ctx.raise(ErrColonExpected)
			}

			ctx.nextToken()
			ctx.parseExpression(exprFlagNoComma)

			ctx.emitLiteral(uint16(bytecode.OpSetProperty), literalIndex)
		}

		if ctx.token.typ == tokRightBrace {
			return
		} else if ctx.token.typ != tokComma {
			ctx.raise(ErrObjectItemSeparatorExpected)
		}
	}
}

// parseUnaryExpression collects the unary operators in front of a
// primary expression, then compiles the primary expression itself.
func (ctx *context) parseUnaryExpression(groupingLevel *int) {
	newWasSeen := false

	for {
		// Convert plus and minus binary operators to unary operators.
		if ctx.token.typ == tokAdd {
			ctx.token.typ = tokUnaryPlus
		} else if ctx.token.typ == tokSubtract {
			ctx.token.typ = tokUnaryNegate
		}

		if ctx.token.typ == tokLeftParen {
			// Bracketed expressions are primary expressions: the left
			// paren is pushed and matched when its close is reached.
			*groupingLevel++
			newWasSeen = false
		} else if ctx.token.typ == tokKeywNew {
			// After new, unary operators are not allowed.
			newWasSeen = true
		} else if newWasSeen || !isUnaryOpToken(ctx.token.typ) {
			break
		}

		ctx.opStackPush(opEntry{tok: ctx.token.typ})
		ctx.nextToken()
	}

	switch ctx.token.typ {
	case tokLiteral:
		opcode := uint16(bytecode.OpPushLiteral)
		switch ctx.token.lit.kind {
		case literalIdent:
			ctx.constructLiteralObject(ctx.token.lit, literalIdent)
			opcode = uint16(bytecode.OpPushIdent)
		case literalString:
			ctx.constructLiteralObject(ctx.token.lit, literalString)
		case literalNumber:
			ctx.constructNumberObject()
		}
		ctx.emitLiteralFromToken(opcode)

	case tokKeywFunction:
		ctx.flushCBC()
		ctx.constructFunctionObject(anonymousFunction,
			flagIsFunction|flagIsFuncExpression|flagIsClosure)
		ctx.emitLiteral(uint16(bytecode.OpPushLiteral), uint16(len(ctx.literalPool)-1))

	case tokLeftBrace:
		ctx.parseObjectLiteral()

	case tokLeftSquare:
		ctx.parseArrayLiteral()

	case tokDivide, tokAssignDivide:
		ctx.constructRegexpObject()
		ctx.emitLiteral(uint16(bytecode.OpPushLiteral), uint16(len(ctx.literalPool)-1))

	case tokKeywThis:
		ctx.emitCBC(uint16(bytecode.OpPushThis))

	case tokLitTrue:
		ctx.emitCBC(uint16(bytecode.OpPushTrue))

	case tokLitFalse:
		ctx.emitCBC(uint16(bytecode.OpPushFalse))

	case tokLitNull:
		ctx.emitCBC(uint16(bytecode.OpPushNull))

	default:
		ctx.raise(ErrPrimaryExprExpected)
	}
	ctx.nextToken()
}

// processUnaryExpression parses the postfix part of a primary
// expression, then generates byte code for the collected unary
// operators.
func (ctx *context) processUnaryExpression() {
	// Postfix part: property access, calls, new and post in/decrement.
postfix:
	for {
		switch ctx.token.typ {
		case tokDot:
			ctx.pushResult()
			ctx.expectIdentifier(literalString)
			ctx.emitLiteralFromToken(uint16(bytecode.OpPropStringGet))
			ctx.nextToken()

		case tokLeftSquare:
			ctx.pushResult()

			ctx.nextToken()
			ctx.parseExpression(exprFlagNone)
			if ctx.token.typ != tokRightSquare {
				ctx.raise(ErrRightSquareExpected)
			}
			ctx.nextToken()

			if ctx.lastOpcode == uint16(bytecode.OpPushLiteral) && ctx.lastLiteralKind == literalString {
				ctx.lastOpcode = uint16(bytecode.OpPropStringGet)
			} else {
				ctx.emitCBC(uint16(bytecode.OpPropGet))
			}

		case tokLeftParen:
			callArguments := 0
			literalIndex := ctx.lastLiteral
			var opcode uint16

			ctx.pushResult()

			if len(ctx.opStack) > 0 && ctx.opStackTop().tok == tokKeywNew {
				ctx.opStackPop()
				if ctx.lastOpcode == uint16(bytecode.OpPushIdent) {
					ctx.lastOpcode = opcodeUnavailable
					opcode = uint16(bytecode.OpNewIdent)
				} else {
					opcode = uint16(bytecode.OpNew)
				}
			} else {
				switch ctx.lastOpcode {
				case uint16(bytecode.OpPushIdent):
					if ctx.lastObjType == identEval {
						// Direct eval gets its own extended opcode so
						// the VM can recognize the caller's scope.
						opcode = toExtOpcode(bytecode.ExtCallEval)
					} else {
						opcode = uint16(bytecode.OpCallIdent)
					}
					ctx.lastOpcode = opcodeUnavailable
				case uint16(bytecode.OpPropGet):
					ctx.lastOpcode = opcodeUnavailable
					opcode = uint16(bytecode.OpCallProp)
				case uint16(bytecode.OpPropStringGet):
					ctx.lastOpcode = opcodeUnavailable
					opcode = uint16(bytecode.OpCallPropString)
				default:
					opcode = uint16(bytecode.OpCall)
				}
			}

			ctx.nextToken()

			if ctx.token.typ != tokRightParen {
				for {
					callArguments++
					if callArguments > bytecode.MaxByteValue {
						ctx.raise(ErrArgumentLimitReached)
					}

					ctx.parseExpression(exprFlagNoComma)

					if ctx.token.typ != tokComma {
						break
					}
					ctx.nextToken()
				}

				if ctx.token.typ != tokRightParen {
					ctx.raise(ErrRightParenExpected)
				}
			}

			ctx.nextToken()
			ctx.flushCBC()

			// Pushing the call instruction manually.
			ctx.lastOpcode = opcode
			ctx.lastLiteral = literalIndex
			ctx.lastValue = uint16(callArguments)
			ctx.lastObjType = identAny

		default:
			if len(ctx.opStack) > 0 && ctx.opStackTop().tok == tokKeywNew {
				// new without an argument list; push result is
				// unnecessary since new binds tighter than call.
				if ctx.lastOpcode == uint16(bytecode.OpPushIdent) {
					ctx.lastOpcode = uint16(bytecode.OpNewIdent)
					ctx.lastValue = 0
				} else {
					ctx.emitCall(uint16(bytecode.OpNew), 0)
				}
				ctx.opStackPop()
				continue
			}

			if !ctx.token.wasNewline &&
				(ctx.token.typ == tokIncrease || ctx.token.typ == tokDecrease) {
				opcode := uint16(bytecode.OpPostIncr)
				if ctx.token.typ == tokDecrease {
					opcode = uint16(bytecode.OpPostDecr)
				}
				ctx.pushResult()
				ctx.emitUnaryLValueOpcode(opcode)
				ctx.nextToken()
			}
			break postfix
		}
	}

	// Generate byte code for the collected unary operators.
	for len(ctx.opStack) > 0 {
		tok := ctx.opStackTop().tok
		if !isUnaryOpToken(tok) {
			break
		}

		ctx.pushResult()
		ctx.opStackPop()

		if isUnaryLValueOpToken(tok) {
			ctx.emitUnaryLValueOpcode(unaryLValueOpTokenToOpcode(tok))
			continue
		}

		opcode := unaryOpTokenToOpcode(tok)
		if ctx.foldUnary(opcode) {
			continue
		}
		if ctx.lastOpcode == uint16(bytecode.OpPushIdent) ||
			ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
			ctx.lastOpcode = opcode + bytecode.UnaryWithLiteral
		} else {
			ctx.emitCBC(opcode)
		}
	}
}

// appendBinaryToken saves a binary operator on the operator stack.
// Unlike unary tokens, the whole pending instruction is saved, since
// binary operators have multiple forms depending on the previous
// instruction.
func (ctx *context) appendBinaryToken() {
	tok := ctx.token.typ
	ctx.pushResult()

	if tok == tokLogicalOr || tok == tokLogicalAnd {
		// Short-circuit: branch over the right operand on the decided
		// value; the branch is patched when the operator is reduced.
		branchOpcode := uint16(bytecode.OpBranchIfLogicalTrue)
		if tok == tokLogicalAnd {
			branchOpcode = uint16(bytecode.OpBranchIfLogicalFalse)
		}
		branch := ctx.emitForwardBranch(branchOpcode)
		ctx.opStackPush(opEntry{tok: tok, branch: branch})
		return
	}

	if isBinaryLValueToken(tok) {
		opcode := binaryLValueOpTokenToOpcode(tok)

		switch ctx.lastOpcode {
		case uint16(bytecode.OpPushIdent):
			ctx.checkAssignTarget()
			ctx.opStackPush(opEntry{
				tok:          tok,
				opcode:       opcode + bytecode.BinaryLValueWithIdent,
				literalIndex: ctx.lastLiteral,
				hasLiteral:   true,
			})
			ctx.lastOpcode = opcodeUnavailable
		case uint16(bytecode.OpPropGet):
			ctx.opStackPush(opEntry{tok: tok, opcode: opcode})
			ctx.lastOpcode = opcodeUnavailable
		case uint16(bytecode.OpPropStringGet):
			ctx.opStackPush(opEntry{
				tok:          tok,
				opcode:       opcode + bytecode.BinaryLValueWithPropStr,
				literalIndex: ctx.lastLiteral,
				hasLiteral:   true,
			})
			ctx.lastOpcode = opcodeUnavailable
		default:
			// A runtime error will happen.
			ctx.emitCBCExt(bytecode.ExtPushUndefinedBase)
			ctx.opStackPush(opEntry{tok: tok, opcode: opcode})
		}
		return
	}

	opcode := binaryOpTokenToOpcode(tok)
	if ctx.lastOpcode == uint16(bytecode.OpPushIdent) ||
		ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
		ctx.opStackPush(opEntry{
			tok:          tok,
			opcode:       opcode + bytecode.BinaryWithRightLiteral,
			literalIndex: ctx.lastLiteral,
			hasLiteral:   true,
		})
		ctx.lastOpcode = opcodeUnavailable
	} else {
		ctx.opStackPush(opEntry{tok: tok, opcode: opcode})
	}
}

// processBinaryOpcodes reduces the operator stack down to the given
// precedence threshold, fusing literal operands and folding constants
// where possible.
func (ctx *context) processBinaryOpcodes(minPrecedence int) {
	for len(ctx.opStack) > 0 {
		tok := ctx.opStackTop().tok

		if !isBinaryOpToken(tok) ||
			int(binaryPrecedence[tok-firstBinaryOp]) < minPrecedence {
			return
		}

		ctx.pushResult()
		entry := ctx.opStackPop()

		if tok == tokLogicalOr || tok == tokLogicalAnd {
			// The decided-value branch lands after the right operand.
			ctx.flushCBC()
			ctx.setBranchToCurrentPosition(entry.branch)
			continue
		}

		if !isBinaryLValueToken(tok) {
			// Constant folding when both operands are literal
			// constants the parser has values for.
			if entry.hasLiteral &&
				ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
				left := ctx.literalPool[entry.literalIndex]
				right := ctx.literalPool[ctx.lastLiteral]
				if result, ok := ctx.foldBinary(tok, left, right); ok {
					ctx.applyFold(result)
					continue
				}
			}

			if !entry.hasLiteral {
				if ctx.lastOpcode == uint16(bytecode.OpPushIdent) ||
					ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
					ctx.lastOpcode = entry.opcode + bytecode.BinaryWithRightLiteral
					continue
				}
			} else {
				if ctx.lastOpcode == uint16(bytecode.OpPushIdent) ||
					ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
					// Both operands are literals: fuse into the
					// two-literal form.
					ctx.lastValue = ctx.lastLiteral
					ctx.lastLiteral = entry.literalIndex
					ctx.lastOpcode = entry.opcode - bytecode.BinaryWithRightLiteral +
						bytecode.BinaryWithTwoLiterals
					continue
				}
			}
		} else if entry.hasLiteral && entry.opcode ==
			binaryLValueOpTokenToOpcode(tok)+bytecode.BinaryLValueWithIdent {
			if ctx.lastOpcode == uint16(bytecode.OpPushIdent) ||
				ctx.lastOpcode == uint16(bytecode.OpPushLiteral) {
				// Ident target with a literal value: fuse.
				ctx.lastValue = ctx.lastLiteral
				ctx.lastLiteral = entry.literalIndex
				ctx.lastOpcode = entry.opcode - bytecode.BinaryLValueWithIdent +
					bytecode.BinaryLValueWithIdentLit
				continue
			}
		}

		if entry.hasLiteral {
			ctx.emitLiteral(entry.opcode, entry.literalIndex)
		} else {
			ctx.emitCBC(entry.opcode)
		}
	}
}

// parseExpression compiles one expression with the given options.
func (ctx *context) parseExpression(options int) {
	groupingLevel := 0
	base := len(ctx.opStack)
	ctx.opStackPush(opEntry{tok: tokExpressionStart})

	for {
		if options&exprFlagHasLiteral != 0 {
			// True only for the first expression.
			options &^= exprFlagHasLiteral
		} else {
			ctx.parseUnaryExpression(&groupingLevel)
		}

		for {
			ctx.processUnaryExpression()

			// Reduce binary operators above the precedence of the
			// incoming token; assignment adds one for right
			// associativity.
			minPrecedence := 0
			if isBinaryOpToken(ctx.token.typ) {
				minPrecedence = int(binaryPrecedence[ctx.token.typ-firstBinaryOp])
				if isBinaryLValueToken(ctx.token.typ) {
					minPrecedence++
				}
			}

			ctx.processBinaryOpcodes(minPrecedence)

			if ctx.token.typ == tokRightParen &&
				ctx.opStackTop().tok == tokLeftParen {
				groupingLevel--
				ctx.opStackPop()
				ctx.nextToken()
				continue
			}

			if ctx.token.typ == tokQuestionMark {
				opcode := uint16(bytecode.OpBranchIfFalseForward)

				ctx.pushResult()

				if ctx.lastOpcode == uint16(bytecode.OpLogicalNot) {
					ctx.lastOpcode = opcodeUnavailable
					opcode = uint16(bytecode.OpBranchIfTrueForward)
				}

				condBranch := ctx.emitForwardBranch(opcode)

				ctx.nextToken()
				ctx.parseExpression(exprFlagNoComma)
				ctx.flushCBC()
				uncondBranch := ctx.emitForwardBranch(uint16(bytecode.OpJumpForward))
				ctx.setBranchToCurrentPosition(condBranch)

				// Byte code exists for both arms but only one runs;
				// the depth bookkeeping is adjusted to match.
				ctx.stackDepth--

				if ctx.token.typ != tokColon {
					ctx.raise(ErrColonForConditionalExpected)
				}

				ctx.nextToken()
				ctx.parseExpression(exprFlagNoComma)
				ctx.setBranchToCurrentPosition(uncondBranch)

				// The result may come from either arm, so no rewrite
				// of the last instruction is allowed.
				ctx.flushCBC()
				continue
			}
			break
		}

		if ctx.token.typ == tokComma {
			if options&exprFlagNoComma == 0 || groupingLevel > 0 {
				if !noResultOperation(ctx.lastOpcode) {
					ctx.emitCBC(uint16(bytecode.OpPop))
				}
				ctx.nextToken()
				continue
			}
		} else if isBinaryOpToken(ctx.token.typ) {
			ctx.appendBinaryToken()
			ctx.nextToken()
			continue
		}
		break
	}

	if groupingLevel != 0 {
		ctx.raise(ErrRightParenExpected)
	}

	ctx.opStack = ctx.opStack[:base]

	if options&exprFlagStatement != 0 {
		if !noResultOperation(ctx.lastOpcode) {
			ctx.emitCBC(uint16(bytecode.OpPop))
		}
	} else if options&exprFlagBlock != 0 {
		if noResultBinaryOperation(ctx.lastOpcode) {
			ctx.lastOpcode = binaryOperationWithBlock(ctx.lastOpcode)
			ctx.flushCBC()
		} else {
			if noResultOperation(ctx.lastOpcode) {
				ctx.lastOpcode++
			}
			ctx.emitCBC(uint16(bytecode.OpPopBlock))
		}
	} else {
		ctx.pushResult()
	}
}
