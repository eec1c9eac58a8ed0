package parser

import (
	"math"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// Constant folding. When both operands of an arithmetic, bitwise,
// shift, comparison, equality or unary operation are literal constants
// the parser computes the result using the same rules the VM applies:
// IEEE-754 arithmetic, int32/uint32 coercion for bitwise and shift
// operations, strict equality semantics, natural NaN propagation.
// Folded results are re-materialized as fresh literal pushes.

// toUint32 applies the ECMAScript ToUint32 conversion.
func toUint32(x float64) uint32 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return 0
	}
	x = math.Mod(math.Trunc(x), 4294967296)
	if x < 0 {
		x += 4294967296
	}
	return uint32(x)
}

// toInt32 applies the ECMAScript ToInt32 conversion.
func toInt32(x float64) int32 {
	return int32(toUint32(x))
}

// foldResult carries the outcome of a fold: either a literal pool
// index to push or a boolean push opcode.
type foldResult struct {
	isBool  bool
	boolVal bool
	index   uint16
}

// findOrAddNumberLiteral interns a folded number into the pool list.
func (ctx *context) findOrAddNumberLiteral(value float64) uint16 {
	for i, l := range ctx.literalPool {
		if l.kind == literalNumber && l.number == value {
			return uint16(i)
		}
	}
	return ctx.addLiteral(literal{kind: literalNumber, number: value})
}

// findOrAddStringLiteral interns a folded string into the pool list.
func (ctx *context) findOrAddStringLiteral(bytes []byte) uint16 {
	for i, l := range ctx.literalPool {
		if l.kind == literalString && string(l.bytes) == string(bytes) {
			return uint16(i)
		}
	}
	return ctx.addLiteral(literal{kind: literalString, bytes: bytes})
}

// literalAsString stringifies a number or string literal.
func literalAsString(l *literal) []byte {
	if l.kind == literalNumber {
		return lit.NumberToUTF8(l.number)
	}
	return l.bytes
}

// foldBinary attempts to fold token applied to two constant literals.
func (ctx *context) foldBinary(tok tokenType, left, right *literal) (foldResult, bool) {
	if left.kind != literalNumber && left.kind != literalString {
		return foldResult{}, false
	}
	if right.kind != literalNumber && right.kind != literalString {
		return foldResult{}, false
	}

	bothNumbers := left.kind == literalNumber && right.kind == literalNumber

	if tok == tokAdd {
		if bothNumbers {
			return foldResult{index: ctx.findOrAddNumberLiteral(left.number + right.number)}, true
		}
		concat := append(append([]byte{}, literalAsString(left)...), literalAsString(right)...)
		return foldResult{index: ctx.findOrAddStringLiteral(concat)}, true
	}

	if tok == tokStrictEqual || tok == tokStrictNotEqual || tok == tokEqual || tok == tokNotEqual {
		if left.kind != right.kind {
			// Loose equality across types needs coercions the VM
			// owns; strict equality across types is constant false.
			if tok == tokStrictEqual {
				return foldResult{isBool: true, boolVal: false}, true
			}
			if tok == tokStrictNotEqual {
				return foldResult{isBool: true, boolVal: true}, true
			}
			return foldResult{}, false
		}
		var equal bool
		if bothNumbers {
			equal = left.number == right.number
		} else {
			equal = string(left.bytes) == string(right.bytes)
		}
		negate := tok == tokNotEqual || tok == tokStrictNotEqual
		return foldResult{isBool: true, boolVal: equal != negate}, true
	}

	if !bothNumbers {
		return foldResult{}, false
	}
	a, b := left.number, right.number

	switch tok {
	case tokSubtract:
		return foldResult{index: ctx.findOrAddNumberLiteral(a - b)}, true
	case tokMultiply:
		return foldResult{index: ctx.findOrAddNumberLiteral(a * b)}, true
	case tokDivide:
		return foldResult{index: ctx.findOrAddNumberLiteral(a / b)}, true
	case tokModulo:
		return foldResult{index: ctx.findOrAddNumberLiteral(math.Mod(a, b))}, true
	case tokBitOr:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toInt32(a) | toInt32(b)))}, true
	case tokBitXor:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toInt32(a) ^ toInt32(b)))}, true
	case tokBitAnd:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toInt32(a) & toInt32(b)))}, true
	case tokLeftShift:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toInt32(a) << (toUint32(b) & 31)))}, true
	case tokRightShift:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toInt32(a) >> (toUint32(b) & 31)))}, true
	case tokUnsRightShift:
		return foldResult{index: ctx.findOrAddNumberLiteral(float64(toUint32(a) >> (toUint32(b) & 31)))}, true
	case tokLess:
		return foldResult{isBool: true, boolVal: a < b}, true
	case tokGreater:
		return foldResult{isBool: true, boolVal: a > b}, true
	case tokLessEqual:
		return foldResult{isBool: true, boolVal: a <= b}, true
	case tokGreaterEqual:
		return foldResult{isBool: true, boolVal: a >= b}, true
	}
	return foldResult{}, false
}

// applyFold replaces the last-emit cache with the folded constant.
func (ctx *context) applyFold(result foldResult) {
	if result.isBool {
		if result.boolVal {
			ctx.lastOpcode = uint16(bytecode.OpPushTrue)
		} else {
			ctx.lastOpcode = uint16(bytecode.OpPushFalse)
		}
		return
	}
	ctx.lastOpcode = uint16(bytecode.OpPushLiteral)
	ctx.lastLiteral = result.index
	ctx.lastLiteralKind = ctx.literalPool[result.index].kind
	ctx.lastObjType = identAny
}

// foldUnary attempts to fold a unary operator over the cached push.
// Logical not additionally folds the boolean pushes.
func (ctx *context) foldUnary(opcode uint16) bool {
	if ctx.lastOpcode == uint16(bytecode.OpPushTrue) || ctx.lastOpcode == uint16(bytecode.OpPushFalse) {
		if opcode == uint16(bytecode.OpLogicalNot) {
			if ctx.lastOpcode == uint16(bytecode.OpPushTrue) {
				ctx.lastOpcode = uint16(bytecode.OpPushFalse)
			} else {
				ctx.lastOpcode = uint16(bytecode.OpPushTrue)
			}
			return true
		}
		return false
	}

	if ctx.lastOpcode != uint16(bytecode.OpPushLiteral) {
		return false
	}
	l := ctx.literalPool[ctx.lastLiteral]
	if l.kind != literalNumber {
		return false
	}

	switch bytecode.Opcode(opcode) {
	case bytecode.OpPlus:
		return true // identity on numbers
	case bytecode.OpNegate:
		ctx.applyFold(foldResult{index: ctx.findOrAddNumberLiteral(-l.number)})
		return true
	case bytecode.OpBitNot:
		ctx.applyFold(foldResult{index: ctx.findOrAddNumberLiteral(float64(^toInt32(l.number)))})
		return true
	case bytecode.OpLogicalNot:
		truthy := l.number != 0 && !math.IsNaN(l.number)
		ctx.applyFold(foldResult{isBool: true, boolVal: !truthy})
		return true
	}
	return false
}
