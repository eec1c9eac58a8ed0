// Package lit implements the process-wide literal storage shared by all
// compiled code: a deduplicating, append-only record set holding every
// distinct string and number a program mentions, addressed by 16-bit
// compressed pointers.
package lit

import (
	"encoding/binary"
	"errors"
	"math"

	"github.com/cespare/xxhash/v2"
)

// ErrOutOfMemory is returned when the 16-bit compressed address space
// is exhausted or a string exceeds the charset record capacity.
var ErrOutOfMemory = errors.New("literal storage exhausted")

// Store is a literal record set. All parses of a process share one
// store; concurrent use is not supported.
type Store struct {
	chunks   [][]byte
	curChunk int // chunk currently allocated from
	nextWord int // allocation position inside the current chunk
	last     CPointer
	extMagic [][]byte
}

// NewStore creates an empty literal store with one backing page.
func NewStore() *Store {
	s := &Store{}
	s.chunks = append(s.chunks, make([]byte, chunkSize))
	s.nextWord = 1 // word 0 is reserved so no record compresses to NullCP
	return s
}

// Cleanup empties the record set but keeps the backing pages for reuse.
func (s *Store) Cleanup() {
	for _, chunk := range s.chunks {
		for i := range chunk {
			chunk[i] = 0
		}
	}
	s.curChunk = 0
	s.nextWord = 1
	s.last = NullCP
}

// Finalize releases the backing pages. The store must not be used
// afterwards.
func (s *Store) Finalize() {
	s.chunks = nil
	s.nextWord = 0
	s.last = NullCP
}

// Decompress converts a compressed pointer into a record handle.
func (s *Store) Decompress(cp CPointer) Record {
	if cp != NullCP {
		chunk := cp.chunkOf()
		if chunk >= len(s.chunks) || cp.wordOf() >= chunkWords {
			panic("lit: dangling compressed pointer")
		}
	}
	return Record{store: s, cp: cp}
}

// alloc reserves words contiguous storage units and returns the new
// record's compressed pointer. Records never span chunks.
func (s *Store) alloc(words int) (CPointer, error) {
	if words > chunkWords {
		return NullCP, ErrOutOfMemory
	}
	if s.nextWord+words > chunkWords {
		if s.curChunk+1 >= maxChunks {
			return NullCP, ErrOutOfMemory
		}
		s.curChunk++
		if s.curChunk == len(s.chunks) {
			s.chunks = append(s.chunks, make([]byte, chunkSize))
		}
		s.nextWord = 0
	}
	cp := compress(s.curChunk, s.nextWord)
	s.nextWord += words
	return cp, nil
}

// link threads a freshly created record onto the insertion-order chain.
func (s *Store) link(r Record) {
	r.setPrev(s.last)
	s.last = r.cp
}

// hashUTF8 computes the 16-bit hash stored in charset record headers.
func hashUTF8(bytes []byte) uint16 {
	return uint16(xxhash.Sum64(bytes))
}

// createCharset appends a new charset record without a dedup check.
func (s *Store) createCharset(bytes []byte) (Record, error) {
	if len(bytes) > MaxCharsetSize {
		return Record{}, ErrOutOfMemory
	}
	payloadWords := (len(bytes) + StorageUnit - 1) / StorageUnit
	words := charsetHeaderSize/StorageUnit + payloadWords
	align := payloadWords*StorageUnit - len(bytes)

	cp, err := s.alloc(words)
	if err != nil {
		return Record{}, err
	}
	r := Record{store: s, cp: cp}

	header := uint32(TypeCharset)
	header = setField(header, uint32(align), charsetAlignPos, charsetAlignWidth)
	header = setField(header, uint32(words), charsetLengthPos, charsetLengthWidth)
	header = setField(header, uint32(hashUTF8(bytes)), charsetHashPos, charsetHashWidth)
	r.setHeader(header)

	chunk := s.chunks[cp.chunkOf()]
	copy(chunk[cp.byteOf()+charsetHeaderSize:], bytes)

	s.link(r)
	return r, nil
}

// createMagic appends a magic-string record referencing id.
func (s *Store) createMagic(typ RecordType, id int) (Record, error) {
	cp, err := s.alloc(1)
	if err != nil {
		return Record{}, err
	}
	r := Record{store: s, cp: cp}
	header := setField(uint32(typ), uint32(id), magicIDPos, magicIDWidth)
	r.setHeader(header)
	s.link(r)
	return r, nil
}

// createNumber appends a number record.
func (s *Store) createNumber(x float64) (Record, error) {
	cp, err := s.alloc(numberRecordSize / StorageUnit)
	if err != nil {
		return Record{}, err
	}
	r := Record{store: s, cp: cp}
	r.setHeader(uint32(TypeNumber))
	chunk := s.chunks[cp.chunkOf()]
	binary.LittleEndian.PutUint64(chunk[cp.byteOf()+numberHeaderSize:], math.Float64bits(x))
	s.link(r)
	return r, nil
}

// findUTF8 scans the record chain for a string record equal to bytes.
// Charset comparison is hash first, then length, then bytes.
func (s *Store) findUTF8(bytes []byte) Record {
	hash := hashUTF8(bytes)
	for cp := s.last; cp != NullCP; {
		r := Record{store: s, cp: cp}
		switch r.Type() {
		case TypeCharset:
			if r.Hash() == hash && string(r.charsetBytes()) == string(bytes) {
				return r
			}
		case TypeMagicString:
			if string(magicStrings[r.magicID()]) == string(bytes) {
				return r
			}
		case TypeMagicStringEx:
			if string(s.extMagic[r.magicID()]) == string(bytes) {
				return r
			}
		}
		cp = r.prev().cp
	}
	return Record{}
}

// FindOrCreateUTF8 interns a UTF-8 byte sequence. If the bytes match a
// built-in or external magic string, the magic-string variant is
// created instead of storing the bytes again. Records are never
// mutated after creation.
func (s *Store) FindOrCreateUTF8(bytes []byte) (Record, error) {
	if r := s.findUTF8(bytes); !r.IsNull() {
		return r, nil
	}
	if id := findMagicString(bytes); id >= 0 {
		return s.createMagic(TypeMagicString, id)
	}
	if id := s.findExternalMagicString(bytes); id >= 0 {
		return s.createMagic(TypeMagicStringEx, id)
	}
	return s.createCharset(bytes)
}

// FindOrCreateNumber interns a number. Lookup uses IEEE-754 value
// equality, so NaN is never found and NaN records are not deduplicated.
func (s *Store) FindOrCreateNumber(x float64) (Record, error) {
	for cp := s.last; cp != NullCP; {
		r := Record{store: s, cp: cp}
		if r.Type() == TypeNumber && r.Number() == x {
			return r, nil
		}
		cp = r.prev().cp
	}
	return s.createNumber(x)
}

// Iterate calls fn for every live record in insertion order, oldest
// first. Iteration stops early when fn returns false.
func (s *Store) Iterate(fn func(Record) bool) {
	var records []Record
	for cp := s.last; cp != NullCP; {
		r := Record{store: s, cp: cp}
		records = append(records, r)
		cp = r.prev().cp
	}
	for i := len(records) - 1; i >= 0; i-- {
		if !fn(records[i]) {
			return
		}
	}
}

// Count returns the number of live records.
func (s *Store) Count() int {
	n := 0
	for cp := s.last; cp != NullCP; {
		r := Record{store: s, cp: cp}
		n++
		cp = r.prev().cp
	}
	return n
}
