package parser

import (
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/picojs/picojs/bytecode"
)

// Additional literal kinds beyond the lexer's three. Function literals
// reference nested compiled code; regexp literals keep their source
// text and are materialized as strings.
const (
	literalFunction uint8 = 3
	literalRegexp   uint8 = 4
)

// Initializer binding kinds of a var-flagged identifier literal.
const (
	initNone uint8 = iota
	initFuncArg
	initFuncName
	initFuncDecl
)

// Literal status flags.
const (
	litFlagVar uint8 = 1 << iota
	litFlagInitialized
	litFlagNoRegStore
)

// literal is one record of the per-function literal pool list. The
// final pool index is assigned during post-processing; instructions
// emitted earlier carry the parser-local index and are rewritten.
type literal struct {
	kind   uint8
	bytes  []byte
	number float64
	fn     *bytecode.CompiledCode

	flags     uint8
	initKind  uint8
	initValue uint16 // argument position or pool index, by initKind
	index     uint16 // final literal index
	initIndex uint16 // final index of the initializer literal
}

// litObject describes the most recently constructed literal.
type litObject struct {
	index   uint16
	literal *literal
	objType uint8 // identAny, identEval or identArguments
}

// classifyIdent returns the strict-mode classification of an
// identifier's bytes.
func classifyIdent(bytes []byte) uint8 {
	switch string(bytes) {
	case "eval":
		return identEval
	case "arguments":
		return identArguments
	}
	return identAny
}

// decodeEscapes resolves the escape sequences of a string literal or
// escaped identifier. Unicode escapes forming a surrogate pair are
// combined into one code point.
func (ctx *context) decodeEscapes(raw []byte) []byte {
	out := make([]byte, 0, len(raw))
	var pendingHigh rune = -1

	flushPending := func() {
		if pendingHigh >= 0 {
			out = utf8.AppendRune(out, pendingHigh)
			pendingHigh = -1
		}
	}
	appendUnit := func(unit rune) {
		if utf16.IsSurrogate(unit) {
			if pendingHigh >= 0 {
				if combined := utf16.DecodeRune(pendingHigh, unit); combined != utf8.RuneError {
					pendingHigh = -1
					out = utf8.AppendRune(out, combined)
					return
				}
				flushPending()
			}
			pendingHigh = unit
			return
		}
		flushPending()
		out = utf8.AppendRune(out, unit)
	}

	for i := 0; i < len(raw); {
		if raw[i] != '\\' {
			flushPending()
			out = append(out, raw[i])
			i++
			continue
		}
		i++
		if i >= len(raw) {
			ctx.raise(ErrInvalidEscapeSequence)
		}
		switch raw[i] {
		case 'b':
			flushPending()
			out = append(out, '\b')
			i++
		case 't':
			flushPending()
			out = append(out, '\t')
			i++
		case 'n':
			flushPending()
			out = append(out, '\n')
			i++
		case 'v':
			flushPending()
			out = append(out, '\v')
			i++
		case 'f':
			flushPending()
			out = append(out, '\f')
			i++
		case 'r':
			flushPending()
			out = append(out, '\r')
			i++
		case 'x':
			if i+2 >= len(raw) || !isHexDigit(raw[i+1]) || !isHexDigit(raw[i+2]) {
				ctx.raise(ErrInvalidEscapeSequence)
			}
			value, _ := strconv.ParseUint(string(raw[i+1:i+3]), 16, 8)
			appendUnit(rune(value))
			i += 3
		case 'u':
			if i+4 >= len(raw) {
				ctx.raise(ErrInvalidEscapeSequence)
			}
			for j := i + 1; j <= i+4; j++ {
				if !isHexDigit(raw[j]) {
					ctx.raise(ErrInvalidEscapeSequence)
				}
			}
			value, _ := strconv.ParseUint(string(raw[i+1:i+5]), 16, 16)
			appendUnit(rune(value))
			i += 5
		case '\n':
			i++ // line continuation
		case '\r':
			i++
			if i < len(raw) && raw[i] == '\n' {
				i++
			}
		default:
			if isOctalDigit(raw[i]) {
				// Legacy octal escape, up to three digits.
				value := 0
				digits := 0
				for i < len(raw) && digits < 3 && isOctalDigit(raw[i]) && value*8+int(raw[i]-'0') < 256 {
					value = value*8 + int(raw[i]-'0')
					i++
					digits++
				}
				appendUnit(rune(value))
			} else {
				flushPending()
				out = append(out, raw[i])
				i++
			}
		}
	}
	flushPending()
	return out
}

// literalBytes resolves a token's raw range into its byte content,
// decoding escapes when the lexer saw any.
func (ctx *context) literalBytes(loc litLocation) []byte {
	raw := ctx.tokenBytes(loc)
	if !loc.hasEscape {
		return raw
	}
	return ctx.decodeEscapes(raw)
}

// addLiteral appends a record to the per-function literal pool,
// enforcing the literal count limit.
func (ctx *context) addLiteral(l literal) uint16 {
	if len(ctx.literalPool) >= ctx.limits.MaxLiterals {
		ctx.raise(ErrLiteralLimitReached)
	}
	ctx.literalPool = append(ctx.literalPool, &l)
	ctx.literalCount = len(ctx.literalPool)
	return uint16(len(ctx.literalPool) - 1)
}

// constructLiteralObject interns an identifier or string token into the
// per-function literal pool, reusing an existing record with the same
// kind and bytes.
func (ctx *context) constructLiteralObject(loc litLocation, kind uint8) {
	bytes := ctx.literalBytes(loc)

	for i, l := range ctx.literalPool {
		if l.kind == kind && string(l.bytes) == string(bytes) {
			ctx.litObject = litObject{index: uint16(i), literal: l, objType: identAny}
			if kind == literalIdent {
				ctx.litObject.objType = classifyIdent(bytes)
			}
			return
		}
	}

	stored := make([]byte, len(bytes))
	copy(stored, bytes)
	index := ctx.addLiteral(literal{kind: kind, bytes: stored})
	ctx.litObject = litObject{index: index, literal: ctx.literalPool[index], objType: identAny}
	if kind == literalIdent {
		ctx.litObject.objType = classifyIdent(stored)
	}
}

// constructNumberObject parses the current number token and interns its
// value, deduplicated by IEEE-754 equality.
func (ctx *context) constructNumberObject() {
	raw := string(ctx.tokenBytes(ctx.token.lit))
	var value float64

	switch {
	case len(raw) > 2 && raw[0] == '0' && (raw[1] == 'x' || raw[1] == 'X'):
		parsed, err := strconv.ParseUint(raw[2:], 16, 64)
		if err != nil {
			ctx.raise(ErrInvalidNumber)
		}
		value = float64(parsed)
	case len(raw) > 1 && raw[0] == '0' && isOctalDigit(raw[1]):
		parsed, err := strconv.ParseUint(raw[1:], 8, 64)
		if err != nil {
			ctx.raise(ErrInvalidNumber)
		}
		value = float64(parsed)
	default:
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			ctx.raise(ErrInvalidNumber)
		}
		value = parsed
	}

	for i, l := range ctx.literalPool {
		if l.kind == literalNumber && l.number == value {
			ctx.litObject = litObject{index: uint16(i), literal: l, objType: identAny}
			return
		}
	}
	index := ctx.addLiteral(literal{kind: literalNumber, number: value})
	ctx.litObject = litObject{index: index, literal: ctx.literalPool[index]}
}

// constructFunctionObject compiles a nested function and appends its
// literal. nameIndex links a function declaration to the identifier it
// initializes; anonymousFunction marks expressions without a binding.
func (ctx *context) constructFunctionObject(nameIndex uint16, statusFlags uint32) {
	compiled := ctx.parseFunction(statusFlags)
	index := ctx.addLiteral(literal{kind: literalFunction, fn: compiled, initKind: initNone})
	if nameIndex != anonymousFunction {
		ctx.literalPool[index].initKind = initFuncDecl
		ctx.literalPool[index].initValue = nameIndex
	}
	ctx.litObject = litObject{index: index, literal: ctx.literalPool[index]}
}

// constructRegexpObject re-scans the current divide token as a regular
// expression literal and interns its source text. Only the literal
// text is captured; matching semantics live in the VM's library.
func (ctx *context) constructRegexpObject() {
	// The current token is / or /=; rewind to its first character.
	begin := ctx.pos - 1
	if ctx.token.typ == tokAssignDivide {
		begin = ctx.pos - 2
	}
	ctx.pos = begin + 1
	inClass := false
	for {
		if ctx.pos >= ctx.sourceEnd {
			ctx.raise(ErrUnterminatedString)
		}
		b := ctx.source[ctx.pos]
		if b == '\\' {
			ctx.advance(2)
			continue
		}
		if b == '\n' || b == '\r' {
			ctx.raise(ErrUnterminatedString)
		}
		if b == '[' {
			inClass = true
		} else if b == ']' {
			inClass = false
		} else if b == '/' && !inClass {
			break
		}
		ctx.advance(1)
	}
	ctx.advance(1) // closing slash
	for isIdentPart(ctx.peek(0)) {
		ctx.advance(1) // flags
	}

	bytes := make([]byte, ctx.pos-begin)
	copy(bytes, ctx.source[begin:ctx.pos])
	index := ctx.addLiteral(literal{kind: literalRegexp, bytes: bytes})
	ctx.litObject = litObject{index: index, literal: ctx.literalPool[index]}
}
