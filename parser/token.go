package parser

import "github.com/picojs/picojs/bytecode"

// tokenType enumerates lexer tokens. The ordering is load bearing: the
// unary, unary-lvalue, binary and binary-lvalue groups are mapped onto
// opcode families by fixed-stride arithmetic, and the precedence table
// is indexed from tokAssign.
type tokenType uint8

const (
	tokEOS tokenType = iota

	// Primary expressions.
	tokLiteral
	tokKeywThis
	tokLitTrue
	tokLitFalse
	tokLitNull

	// Unary operators.
	tokUnaryPlus
	tokUnaryNegate
	tokLogicalNot
	tokBitNot
	tokKeywVoid
	tokKeywTypeof
	tokKeywDelete
	tokIncrease
	tokDecrease

	// Binary operators, in precedence-table order.
	tokAssign
	tokAssignAdd
	tokAssignSubtract
	tokAssignMultiply
	tokAssignDivide
	tokAssignModulo
	tokAssignLeftShift
	tokAssignRightShift
	tokAssignUnsRightShift
	tokAssignBitAnd
	tokAssignBitOr
	tokAssignBitXor
	tokQuestionMark
	tokLogicalOr
	tokLogicalAnd
	tokBitOr
	tokBitXor
	tokBitAnd
	tokEqual
	tokNotEqual
	tokStrictEqual
	tokStrictNotEqual
	tokLess
	tokGreater
	tokLessEqual
	tokGreaterEqual
	tokKeywIn
	tokKeywInstanceof
	tokLeftShift
	tokRightShift
	tokUnsRightShift
	tokAdd
	tokSubtract
	tokMultiply
	tokDivide
	tokModulo

	// Brackets and punctuation.
	tokLeftBrace
	tokLeftParen
	tokLeftSquare
	tokRightBrace
	tokRightParen
	tokRightSquare
	tokDot
	tokSemicolon
	tokColon
	tokComma

	// Keywords.
	tokKeywBreak
	tokKeywDo
	tokKeywCase
	tokKeywElse
	tokKeywNew
	tokKeywVar
	tokKeywCatch
	tokKeywFinally
	tokKeywReturn
	tokKeywContinue
	tokKeywFor
	tokKeywSwitch
	tokKeywWhile
	tokKeywDebugger
	tokKeywFunction
	tokKeywWith
	tokKeywDefault
	tokKeywIf
	tokKeywThrow
	tokKeywTry

	// Virtual token marking the bottom of an expression.
	tokExpressionStart

	// Property shorthand pseudo tokens produced when scanning object
	// literal ids.
	tokPropertyGetter
	tokPropertySetter

	// Future reserved words.
	tokKeywClass
	tokKeywEnum
	tokKeywExtends
	tokKeywSuper
	tokKeywConst
	tokKeywExport
	tokKeywImport

	// Future strict reserved words.
	tokKeywImplements
	tokKeywLet
	tokKeywPrivate
	tokKeywPublic
	tokKeywYield
	tokKeywInterface
	tokKeywPackage
	tokKeywProtected
	tokKeywStatic
)

const firstBinaryOp = tokAssign

func isUnaryOpToken(t tokenType) bool {
	return t >= tokUnaryPlus && t <= tokDecrease
}

func isUnaryLValueOpToken(t tokenType) bool {
	return t >= tokKeywDelete && t <= tokDecrease
}

func isBinaryOpToken(t tokenType) bool {
	return t >= tokAssign && t <= tokModulo
}

func isBinaryLValueToken(t tokenType) bool {
	return t >= tokAssign && t <= tokAssignBitXor
}

func isLeftBracket(t tokenType) bool {
	return t == tokLeftBrace || t == tokLeftParen || t == tokLeftSquare
}

func isRightBracket(t tokenType) bool {
	return t == tokRightBrace || t == tokRightParen || t == tokRightSquare
}

func isFutureReservedWord(t tokenType) bool {
	return t >= tokKeywClass && t <= tokKeywImport
}

func isFutureStrictReservedWord(t tokenType) bool {
	return t >= tokKeywImplements
}

// Token-to-opcode mappings. The combined opcode space is uint16:
// basic opcodes below 256, extended opcodes offset by 256.
func unaryOpTokenToOpcode(t tokenType) uint16 {
	return uint16(t-tokUnaryPlus)*2 + uint16(bytecode.OpPlus)
}

func unaryLValueOpTokenToOpcode(t tokenType) uint16 {
	return uint16(t-tokKeywDelete)*6 + uint16(bytecode.OpDelete)
}

func binaryOpTokenToOpcode(t tokenType) uint16 {
	return uint16(t-tokBitOr)*3 + uint16(bytecode.OpBitOr)
}

func binaryLValueOpTokenToOpcode(t tokenType) uint16 {
	return uint16(t-tokAssign)*4 + uint16(bytecode.OpAssign)
}

// binaryPrecedence is indexed by token - tokAssign. Assignment
// operators share the lowest precedence; the parser adds one to the
// threshold for them to get right-to-left evaluation.
var binaryPrecedence = [36]uint8{
	3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3, 3,
	4, 5, 6, 7, 8, 9, 10, 10, 10, 10,
	11, 11, 11, 11, 11, 11, 12, 12, 12,
	13, 13, 14, 14, 14,
}

// keywords maps source spellings to token types. true, false and null
// are literal-like but tokenized here as well.
var keywords = map[string]tokenType{
	"this":       tokKeywThis,
	"true":       tokLitTrue,
	"false":      tokLitFalse,
	"null":       tokLitNull,
	"void":       tokKeywVoid,
	"typeof":     tokKeywTypeof,
	"delete":     tokKeywDelete,
	"in":         tokKeywIn,
	"instanceof": tokKeywInstanceof,
	"break":      tokKeywBreak,
	"do":         tokKeywDo,
	"case":       tokKeywCase,
	"else":       tokKeywElse,
	"new":        tokKeywNew,
	"var":        tokKeywVar,
	"catch":      tokKeywCatch,
	"finally":    tokKeywFinally,
	"return":     tokKeywReturn,
	"continue":   tokKeywContinue,
	"for":        tokKeywFor,
	"switch":     tokKeywSwitch,
	"while":      tokKeywWhile,
	"debugger":   tokKeywDebugger,
	"function":   tokKeywFunction,
	"with":       tokKeywWith,
	"default":    tokKeywDefault,
	"if":         tokKeywIf,
	"throw":      tokKeywThrow,
	"try":        tokKeywTry,
	"class":      tokKeywClass,
	"enum":       tokKeywEnum,
	"extends":    tokKeywExtends,
	"super":      tokKeywSuper,
	"const":      tokKeywConst,
	"export":     tokKeywExport,
	"import":     tokKeywImport,
	"implements": tokKeywImplements,
	"let":        tokKeywLet,
	"private":    tokKeywPrivate,
	"public":     tokKeywPublic,
	"yield":      tokKeywYield,
	"interface":  tokKeywInterface,
	"package":    tokKeywPackage,
	"protected":  tokKeywProtected,
	"static":     tokKeywStatic,
}

// litLocation records the raw byte range of an identifier, string or
// number token, plus whether any escape sequence occurred in it.
type litLocation struct {
	start     int
	end       int
	kind      uint8 // literalIdent, literalString or literalNumber
	hasEscape bool
}

// token is one lexical token with one-token look-ahead semantics: the
// parser always holds the next unconsumed token.
type token struct {
	typ        tokenType
	line       int
	column     int
	wasNewline bool
	lit        litLocation
}
