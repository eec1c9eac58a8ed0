package snapshot

import (
	"bytes"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
	"github.com/picojs/picojs/parser"
)

func compile(t *testing.T, source string) (*bytecode.CompiledCode, *lit.Store) {
	t.Helper()
	store := lit.NewStore()
	code, err := parser.ParseScript(store, []byte(source), nil)
	require.Nil(t, err, "ParseScript(%q)", source)
	return code, store
}

func TestRoundTrip(t *testing.T) {
	code, store := compile(t, "var total = 0; function add(n) { total = total + n; } add(41.5);")
	defer store.Finalize()

	image, err := Save(code, store, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, image)

	// Load into a completely fresh store, as a booting host would.
	freshStore := lit.NewStore()
	defer freshStore.Finalize()

	loaded, err := Load(image, freshStore)
	require.NoError(t, err)

	assert.Equal(t, code.StackLimit, loaded.StackLimit)
	assert.Equal(t, code.ArgumentEnd, loaded.ArgumentEnd)
	assert.Equal(t, code.RegisterEnd, loaded.RegisterEnd)
	assert.Equal(t, code.IdentEnd, loaded.IdentEnd)
	assert.Equal(t, code.ConstLiteralEnd, loaded.ConstLiteralEnd)
	assert.Equal(t, code.LiteralEnd, loaded.LiteralEnd)
	assert.Equal(t, code.StatusFlags, loaded.StatusFlags)
	assert.Equal(t, code.Code, loaded.Code)
	require.Len(t, loaded.Functions, len(code.Functions))

	// Literal contents survive the trip through fresh records.
	for i := range code.LiteralPool {
		original := code.LiteralPool[i]
		reloaded := loaded.LiteralPool[i]
		assert.Equal(t, original.Tag(), reloaded.Tag(), "pool entry %d", i)
		switch original.Tag() {
		case bytecode.TagString:
			a := store.Decompress(original.CP())
			b := freshStore.Decompress(reloaded.CP())
			assert.True(t, a.Equals(b), "pool entry %d differs", i)
		case bytecode.TagNumber:
			a := store.Decompress(original.CP())
			b := freshStore.Decompress(reloaded.CP())
			assert.Equal(t, a.Number(), b.Number(), "pool entry %d differs", i)
		case bytecode.TagFunction:
			assert.Equal(t, original.FunctionIndex(), reloaded.FunctionIndex())
		}
	}

	assert.NoError(t, bytecode.Verify(loaded))
}

func TestRoundTripNestedFunctions(t *testing.T) {
	code, store := compile(t, "function a() { function b() { return 'deep'; } return b; }")
	defer store.Finalize()

	image, err := Save(code, store, nil)
	require.NoError(t, err)

	freshStore := lit.NewStore()
	defer freshStore.Finalize()
	loaded, err := Load(image, freshStore)
	require.NoError(t, err)

	require.Len(t, loaded.Functions, 1)
	require.Len(t, loaded.Functions[0].Functions, 1)
	assert.Equal(t, code.Functions[0].Functions[0].Code, loaded.Functions[0].Functions[0].Code)
}

func TestCompressionLevels(t *testing.T) {
	code, store := compile(t, "var x = 'aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa';")
	defer store.Finalize()

	for level := 1; level <= 4; level++ {
		image, err := Save(code, store, &Options{CompressionLevel: level})
		require.NoError(t, err, "level %d", level)

		freshStore := lit.NewStore()
		loaded, err := Load(image, freshStore)
		require.NoError(t, err, "level %d", level)
		assert.Equal(t, code.Code, loaded.Code, "level %d", level)
		freshStore.Finalize()
	}
}

func TestBadInput(t *testing.T) {
	store := lit.NewStore()
	defer store.Finalize()

	_, err := Load([]byte("not a snapshot"), store)
	assert.Error(t, err)
}

func TestBadMagic(t *testing.T) {
	// A valid zstd frame holding something other than an image.
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	require.NoError(t, err)
	_, err = enc.Write([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	require.NoError(t, err)
	require.NoError(t, enc.Close())

	store := lit.NewStore()
	defer store.Finalize()
	_, err = Load(buf.Bytes(), store)
	assert.ErrorIs(t, err, ErrBadMagic)
}

func TestTruncatedImage(t *testing.T) {
	code, store := compile(t, "1;")
	defer store.Finalize()

	image, err := Save(code, store, nil)
	require.NoError(t, err)

	_, err = Load(image[:len(image)/2], store)
	assert.Error(t, err)
}
