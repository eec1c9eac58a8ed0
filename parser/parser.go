// Package parser compiles ECMAScript 5.1 source text into Compact
// Byte Code. It is a single-pass lexer plus recursive-descent parser
// that emits into a page-chunked scratch stream; a post-processing
// pass assigns literal indices, compresses the variable-width
// encodings and rewrites branch offsets.
//
// The whole compiler is single threaded. All parses share one literal
// store and the first error aborts the compilation.
package parser

import (
	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// Options configures one compilation.
type Options struct {
	// Strict compiles the source as strict mode code regardless of a
	// use strict directive.
	Strict bool

	// Limits bounds the compilation; nil means DefaultLimits.
	Limits *Limits
}

func (o *Options) limits() Limits {
	if o != nil && o.Limits != nil {
		return *o.Limits
	}
	return DefaultLimits()
}

// ParseScript compiles top-level source code against the given
// literal store. On a parse error the returned error carries the kind
// and the line and column of the offending token; the compiled code
// is nil.
func ParseScript(store *lit.Store, source []byte, opts *Options) (code *bytecode.CompiledCode, parseErr *Error) {
	ctx := newContext(store, source, opts.limits())
	if opts != nil && opts.Strict {
		ctx.statusFlags |= flagIsStrict
	}

	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(*Error); ok {
				code = nil
				parseErr = e
				return
			}
			panic(r)
		}
	}()

	ctx.nextToken()
	ctx.parseStatements()
	code = ctx.postProcess()
	return code, nil
}

// ParseEval compiles eval code. The parser is the same as for
// scripts; expression statements keep their value as the block result
// and the caller's strictness is inherited. The second result records
// that the code was compiled for a direct eval call site.
func ParseEval(store *lit.Store, source []byte, isStrictCaller bool, opts *Options) (*bytecode.CompiledCode, bool, *Error) {
	options := Options{}
	if opts != nil {
		options = *opts
	}
	options.Strict = options.Strict || isStrictCaller

	ctx := newContext(store, source, options.limits())
	ctx.statusFlags |= flagIsEval
	if options.Strict {
		ctx.statusFlags |= flagIsStrict
	}

	var code *bytecode.CompiledCode
	var parseErr *Error
	func() {
		defer func() {
			if r := recover(); r != nil {
				if e, ok := r.(*Error); ok {
					parseErr = e
					return
				}
				panic(r)
			}
		}()
		ctx.nextToken()
		ctx.parseStatements()
		code = ctx.postProcess()
	}()

	if parseErr != nil {
		return nil, false, parseErr
	}
	return code, true, nil
}

// parseFunction compiles a nested function starting at the function
// keyword. The surrounding context is saved and restored; the scratch
// of the nested compilation is released when it completes.
func (ctx *context) parseFunction(statusFlags uint32) *bytecode.CompiledCode {
	saved := ctx.saveContext(statusFlags)

	ctx.nextToken()

	if ctx.statusFlags&flagIsFuncExpression != 0 &&
		ctx.token.typ == tokLiteral && ctx.token.lit.kind == literalIdent {
		// A named function expression binds its own name inside the
		// function to a self reference.
		ctx.constructLiteralObject(ctx.token.lit, literalIdent)
		ctx.litObject.literal.flags = litFlagVar | litFlagInitialized
		ctx.litObject.literal.initKind = initFuncName

		ctx.nextToken()
	}

	if ctx.token.typ != tokLeftParen {
		ctx.raise(ErrArgumentListExpected)
	}

	ctx.nextToken()

	if ctx.token.typ != tokRightParen {
		for {
			literalCount := ctx.literalCount

			if ctx.token.typ != tokLiteral || ctx.token.lit.kind != literalIdent {
				ctx.raise(ErrIdentifierExpected)
			}

			ctx.constructLiteralObject(ctx.token.lit, literalIdent)

			if literalCount == ctx.literalCount || ctx.litObject.objType != identAny {
				// Duplicate names and eval / arguments parameters are
				// legacy definitions rejected by strict mode at call
				// time.
				ctx.statusFlags |= flagHasNonStrictArg
			}

			ctx.litObject.literal.flags = litFlagVar | litFlagInitialized
			ctx.litObject.literal.initKind = initFuncArg
			ctx.litObject.literal.initValue = uint16(ctx.argumentCount)

			ctx.argumentCount++
			if ctx.argumentCount >= ctx.limits.MaxRegisters {
				ctx.raise(ErrRegisterLimitReached)
			}

			ctx.nextToken()

			if ctx.token.typ != tokComma {
				break
			}

			ctx.nextToken()
		}
	}

	if ctx.token.typ != tokRightParen {
		ctx.raise(ErrRightParenExpected)
	}

	ctx.nextToken()

	ctx.registerCount = ctx.argumentCount

	if ctx.statusFlags&flagIsPropertyGetter != 0 && ctx.argumentCount != 0 {
		ctx.raise(ErrNoArgumentsExpected)
	}
	if ctx.statusFlags&flagIsPropertySetter != 0 && ctx.argumentCount != 1 {
		ctx.raise(ErrOneArgumentExpected)
	}

	if ctx.token.typ != tokLeftBrace {
		ctx.raise(ErrLeftBraceExpected)
	}

	ctx.nextToken()
	ctx.parseStatements()
	compiled := ctx.postProcess()

	ctx.restoreContext(saved)

	return compiled
}
