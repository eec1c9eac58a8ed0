package bytecode

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picojs/picojs/lit"
)

func TestDisassembleMinimal(t *testing.T) {
	store := lit.NewStore()
	defer store.Finalize()

	code := makeCode(0, 0, byte(OpReturnWithUndefined))
	out := Disassemble(code, store)

	assert.Contains(t, out, "RETURN_WITH_UNDEFINED")
	assert.Contains(t, out, "stack limit: 0")
	assert.Contains(t, out, "small_lit_enc")
}

func TestDisassembleLiteralsAndBranches(t *testing.T) {
	store := lit.NewStore()
	defer store.Finalize()

	name, err := store.FindOrCreateUTF8([]byte("counter"))
	require.NoError(t, err)
	value, err := store.FindOrCreateNumber(42)
	require.NoError(t, err)

	code := &CompiledCode{
		StackLimit:      1,
		IdentEnd:        1,
		ConstLiteralEnd: 2,
		LiteralEnd:      2,
		LiteralPool: []Value{
			MakeStringValue(name.CP()),
			MakeNumberValue(value.CP()),
		},
		Code: []byte{
			byte(OpPushLiteral), 1,
			byte(OpBranchIfFalseForward), 2,
			byte(OpPushIdent), 0,
			byte(OpReturnWithUndefined),
		},
	}
	require.NoError(t, Verify(code))

	out := Disassemble(code, store)
	assert.Contains(t, out, `"counter"`)
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "(ident)")
	assert.Contains(t, out, "(const)")
	assert.Contains(t, out, "offset:2")
	assert.Contains(t, out, "PUSH_IDENT")
}

func TestDisassembleStrictFlag(t *testing.T) {
	store := lit.NewStore()
	defer store.Finalize()

	code := makeCode(0, 0, byte(OpReturnWithUndefined))
	code.StatusFlags |= FlagStrictMode
	out := Disassemble(code, store)
	assert.Contains(t, out, "strict_mode")
}

func TestDisassembleNestedFunctions(t *testing.T) {
	store := lit.NewStore()
	defer store.Finalize()

	inner := makeCode(0, 0, byte(OpReturnWithUndefined))
	outer := &CompiledCode{
		ConstLiteralEnd: 0,
		LiteralEnd:      1,
		LiteralPool:     []Value{MakeFunctionValue(0)},
		Code:            []byte{byte(OpReturnWithUndefined)},
		Functions:       []*CompiledCode{inner},
	}
	outer.LiteralEnd = 1

	out := Disassemble(outer, store)
	assert.Equal(t, 2, strings.Count(out, "RETURN_WITH_UNDEFINED"))
	assert.Contains(t, out, "function#0")
}
