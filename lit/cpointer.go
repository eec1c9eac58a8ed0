package lit

// CPointer is a 16-bit compressed pointer into the literal storage.
// It encodes a chunk index in the high bits and a 4-byte-unit offset
// within the chunk in the low bits. Zero is the reserved null value.
type CPointer uint16

// NullCP is the reserved null compressed pointer.
const NullCP CPointer = 0

const (
	// storageUnitLog is the logarithm of the smallest addressable unit.
	storageUnitLog = 2
	// StorageUnit is the smallest addressable unit in bytes. All records
	// are aligned to it and record sizes are multiples of it.
	StorageUnit = 1 << storageUnitLog

	// chunkWordsLog is the logarithm of the number of storage units per chunk.
	chunkWordsLog = 10
	chunkWords    = 1 << chunkWordsLog
	chunkSize     = chunkWords * StorageUnit

	// maxChunks keeps every word index representable in 16 bits. The
	// first word of the first chunk is reserved so that no live record
	// ever compresses to NullCP.
	maxChunks = 1 << (16 - chunkWordsLog)
)

// compress converts a chunk index and an intra-chunk word offset into a
// compressed pointer.
func compress(chunk, word int) CPointer {
	return CPointer(chunk<<chunkWordsLog | word)
}

// chunkOf returns the chunk index addressed by cp.
func (cp CPointer) chunkOf() int {
	return int(cp) >> chunkWordsLog
}

// wordOf returns the word offset within the chunk addressed by cp.
func (cp CPointer) wordOf() int {
	return int(cp) & (chunkWords - 1)
}

// byteOf returns the byte offset within the chunk addressed by cp.
func (cp CPointer) byteOf() int {
	return cp.wordOf() << storageUnitLog
}
