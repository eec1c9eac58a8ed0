package parser

import (
	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// General parser status flags.
const (
	flagIsStrict uint32 = 1 << iota
	flagIsFunction
	flagIsClosure
	flagIsPropertyGetter
	flagIsPropertySetter
	flagIsFuncExpression
	flagHasNonStrictArg
	flagNoRegStore
	flagNoEndLabel
	flagHasInitializedVars
	flagNamedFunctionExp
	flagIsEval
)

// anonymousFunction marks function literals without a bound name.
const anonymousFunction = 0xffff

// opcodeUnavailable is the empty state of the last-emit cache. The
// extended-opcode escape can never stand alone, so its value is free.
const opcodeUnavailable = uint16(bytecode.OpExtOpcode)

// toExtOpcode folds an extended opcode into the combined uint16 opcode
// space used throughout the parser.
func toExtOpcode(op bytecode.ExtOpcode) uint16 {
	return uint16(op) + 256
}

func isBasicOpcode(op uint16) bool {
	return op < 256
}

// opcodeFlags returns the flag byte of a combined opcode.
func opcodeFlags(op uint16) uint8 {
	if isBasicOpcode(op) {
		return bytecode.Flags[op]
	}
	return bytecode.ExtFlags[op-256]
}

// Limits bounds the sizes a single compilation may reach. Exceeding
// one raises the corresponding limit error.
type Limits struct {
	MaxLiterals     int // per-function literal pool entries; limit 32767
	MaxRegisters    int // register-allocated locals, hard ceiling
	MaxStackDepth   int // operand stack slots
	MaxCodeSize     int // final byte-code bytes; 3-byte branches above 65535
	MaxIdentLength  int
	MaxStringLength int
}

// DefaultLimits mirrors a small embedded configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxLiterals:     511,
		MaxRegisters:    128,
		MaxStackDepth:   1024,
		MaxCodeSize:     65535,
		MaxIdentLength:  255,
		MaxStringLength: 65535,
	}
}

// savedContext holds the members of a parser context which must be
// saved while a nested function is compiled.
type savedContext struct {
	statusFlags   uint32
	stackDepth    int
	stackLimit    int
	argumentCount int
	registerCount int
	literalCount  int
	literalPool   []*literal
	byteCode      pageStream
	byteCodeSize  int
	stmtStack     []stmtFrame
	opStack       []opEntry
}

// context is the shared parser state: lexer position, the last-emit
// cache, the byte-code stream and the scratch stacks of the function
// being compiled.
type context struct {
	store  *lit.Store
	limits Limits

	statusFlags uint32
	stackDepth  int
	stackLimit  int

	// Lexer members.
	source      []byte
	pos         int
	sourceEnd   int
	line        int
	column      int
	newlineSeen bool
	token       token
	litObject   litObject

	// Last-emit cache. Only the most recent instruction may be
	// rewritten in place; once anything else is emitted it is
	// immutable. lastLiteralKind and lastObjType describe the literal
	// of a cached push for fusion, folding and strict-mode checks.
	lastOpcode      uint16
	lastLiteral     uint16
	lastValue       uint16
	lastLiteralKind uint8
	lastObjType     uint8

	// Literal bookkeeping.
	argumentCount int
	registerCount int
	literalCount  int
	literalPool   []*literal

	// Byte-code stream.
	byteCode             pageStream
	byteCodeSize         int
	branchPlaceholderLen int

	// Scratch stacks.
	stmtStack []stmtFrame
	opStack   []opEntry

	savedContexts []*savedContext
}

// newContext prepares a context for compiling top-level code.
func newContext(store *lit.Store, source []byte, limits Limits) *context {
	ctx := &context{
		store:      store,
		limits:     limits,
		source:     source,
		sourceEnd:  len(source),
		line:       1,
		column:     1,
		lastOpcode: opcodeUnavailable,
	}
	ctx.statusFlags = flagNoRegStore
	ctx.byteCode.init()
	ctx.branchPlaceholderLen = 2
	if limits.MaxCodeSize > 65535 {
		ctx.branchPlaceholderLen = 3
	}
	return ctx
}

// isStrict reports whether the current code is strict mode.
func (ctx *context) isStrict() bool {
	return ctx.statusFlags&flagIsStrict != 0
}

// saveContext stashes the per-function members before compiling a
// nested function and resets them.
func (ctx *context) saveContext(statusFlags uint32) *savedContext {
	saved := &savedContext{
		statusFlags:   ctx.statusFlags,
		stackDepth:    ctx.stackDepth,
		stackLimit:    ctx.stackLimit,
		argumentCount: ctx.argumentCount,
		registerCount: ctx.registerCount,
		literalCount:  ctx.literalCount,
		literalPool:   ctx.literalPool,
		byteCode:      ctx.byteCode,
		byteCodeSize:  ctx.byteCodeSize,
		stmtStack:     ctx.stmtStack,
		opStack:       ctx.opStack,
	}
	ctx.savedContexts = append(ctx.savedContexts, saved)

	ctx.statusFlags &= flagIsStrict
	ctx.statusFlags |= statusFlags
	ctx.stackDepth = 0
	ctx.stackLimit = 0
	ctx.argumentCount = 0
	ctx.registerCount = 0
	ctx.literalCount = 0
	ctx.literalPool = nil
	ctx.byteCode.init()
	ctx.byteCodeSize = 0
	ctx.stmtStack = nil
	ctx.opStack = nil
	return saved
}

// restoreContext reinstates the members saved by saveContext.
func (ctx *context) restoreContext(saved *savedContext) {
	ctx.savedContexts = ctx.savedContexts[:len(ctx.savedContexts)-1]

	ctx.statusFlags = saved.statusFlags
	ctx.stackDepth = saved.stackDepth
	ctx.stackLimit = saved.stackLimit
	ctx.argumentCount = saved.argumentCount
	ctx.registerCount = saved.registerCount
	ctx.literalCount = saved.literalCount
	ctx.literalPool = saved.literalPool
	ctx.byteCode = saved.byteCode
	ctx.byteCodeSize = saved.byteCodeSize
	ctx.stmtStack = saved.stmtStack
	ctx.opStack = saved.opStack
}
