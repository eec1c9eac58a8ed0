package lit

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUTF8Dedup(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	first, err := s.FindOrCreateUTF8([]byte("counter"))
	require.NoError(t, err)
	second, err := s.FindOrCreateUTF8([]byte("counter"))
	require.NoError(t, err)

	assert.Equal(t, first.CP(), second.CP(), "equal byte sequences must share a record")
	assert.Equal(t, TypeCharset, first.Type())

	other, err := s.FindOrCreateUTF8([]byte("counters"))
	require.NoError(t, err)
	assert.NotEqual(t, first.CP(), other.CP())
}

func TestFindOrCreateUTF8MagicString(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	r, err := s.FindOrCreateUTF8([]byte("length"))
	require.NoError(t, err)
	assert.Equal(t, TypeMagicString, r.Type(), "built-in names must not mint charset records")
	assert.Equal(t, []byte("length"), r.ToUTF8(nil))

	again, err := s.FindOrCreateUTF8([]byte("length"))
	require.NoError(t, err)
	assert.Equal(t, r.CP(), again.CP())
}

func TestFindOrCreateUTF8ExternalMagicString(t *testing.T) {
	s := NewStore()
	defer s.Finalize()
	s.SetExternalMagicStrings([][]byte{[]byte("gpioWrite"), []byte("gpioRead")})

	r, err := s.FindOrCreateUTF8([]byte("gpioRead"))
	require.NoError(t, err)
	assert.Equal(t, TypeMagicStringEx, r.Type())
	assert.Equal(t, []byte("gpioRead"), r.ToUTF8(nil))
}

func TestFindOrCreateNumber(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	a, err := s.FindOrCreateNumber(3.25)
	require.NoError(t, err)
	b, err := s.FindOrCreateNumber(3.25)
	require.NoError(t, err)
	assert.Equal(t, a.CP(), b.CP())
	assert.Equal(t, 3.25, a.Number())

	nan1, err := s.FindOrCreateNumber(math.NaN())
	require.NoError(t, err)
	nan2, err := s.FindOrCreateNumber(math.NaN())
	require.NoError(t, err)
	assert.NotEqual(t, nan1.CP(), nan2.CP(), "NaN is not deduplicated")
}

func TestHashAgreesWithEquality(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	a, err := s.createCharset([]byte("payload"))
	require.NoError(t, err)
	b, err := s.createCharset([]byte("payload"))
	require.NoError(t, err)
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestTypedEquality(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	str, err := s.FindOrCreateUTF8([]byte("12.5"))
	require.NoError(t, err)
	num, err := s.FindOrCreateNumber(12.5)
	require.NoError(t, err)

	assert.True(t, num.EqualsUTF8([]byte("12.5")), "number vs bytes compares stringified")
	assert.True(t, str.Equals(num))
	assert.True(t, num.Equals(str))
	assert.True(t, num.EqualsNumber(12.5))
	assert.False(t, num.EqualsNumber(12.6))

	nan, err := s.FindOrCreateNumber(math.NaN())
	require.NoError(t, err)
	assert.False(t, nan.EqualsNumber(math.NaN()))
}

func TestCodeUnitLength(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	tests := []struct {
		str   string
		units int
	}{
		{"", 0},
		{"abc", 3},
		{"café", 4},
		{"あい", 2},
		{"a\U0001F600b", 4}, // astral plane character counts twice
	}
	for _, tt := range tests {
		r, err := s.FindOrCreateUTF8([]byte(tt.str))
		require.NoError(t, err)
		assert.Equal(t, tt.units, r.CodeUnitLength(), "string %q", tt.str)
	}
}

func TestIterateInsertionOrder(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	want := []string{"alpha", "beta", "gamma"}
	for _, w := range want {
		_, err := s.FindOrCreateUTF8([]byte(w))
		require.NoError(t, err)
	}

	var got []string
	s.Iterate(func(r Record) bool {
		got = append(got, string(r.ToUTF8(nil)))
		return true
	})
	assert.Equal(t, want, got)
	assert.Equal(t, 3, s.Count())
}

func TestCleanupKeepsPagesEmptiesRecords(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	_, err := s.FindOrCreateUTF8([]byte("transient"))
	require.NoError(t, err)
	require.Equal(t, 1, s.Count())

	s.Cleanup()
	assert.Equal(t, 0, s.Count())

	r, err := s.FindOrCreateUTF8([]byte("fresh"))
	require.NoError(t, err)
	assert.Equal(t, []byte("fresh"), r.ToUTF8(nil))
}

func TestDecompressRoundTrip(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	r, err := s.FindOrCreateUTF8([]byte("handle"))
	require.NoError(t, err)
	back := s.Decompress(r.CP())
	assert.True(t, back.Equals(r))
	assert.True(t, s.Decompress(NullCP).IsNull())
}

func TestRecordsSpanChunks(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	// Enough distinct strings to spill past the first chunk.
	var records []Record
	for i := 0; i < 300; i++ {
		r, err := s.FindOrCreateUTF8([]byte(fmt.Sprintf("ident_%04d_padding", i)))
		require.NoError(t, err)
		records = append(records, r)
	}
	for i, r := range records {
		assert.Equal(t, fmt.Sprintf("ident_%04d_padding", i), string(r.ToUTF8(nil)))
	}
}

func TestOversizeStringRejected(t *testing.T) {
	s := NewStore()
	defer s.Finalize()

	_, err := s.FindOrCreateUTF8(make([]byte, MaxCharsetSize+1))
	assert.ErrorIs(t, err, ErrOutOfMemory)
}
