package parser

// The byte-code scratch stream is a linked list of small fixed-size
// pages. Post-processing rewrites the page bytes in place with running
// retained-byte counts, which later serves as the offset map for
// branch rewriting, so the page size must stay below 128.

const streamPageSize = 56

type streamPage struct {
	next  *streamPage
	bytes [streamPageSize]byte
}

// pageStream is a bump-allocated byte stream over streamPages.
type pageStream struct {
	first        *streamPage
	last         *streamPage
	lastPosition int
}

func (s *pageStream) init() {
	page := &streamPage{}
	s.first = page
	s.last = page
	s.lastPosition = 0
}

func (s *pageStream) free() {
	s.first = nil
	s.last = nil
	s.lastPosition = 0
}

// allocPage grows the stream by one page.
func (s *pageStream) allocPage() {
	page := &streamPage{}
	s.last.next = page
	s.last = page
	s.lastPosition = 0
}

// appendByte writes one byte to the stream.
func (s *pageStream) appendByte(b byte) {
	if s.lastPosition >= streamPageSize {
		s.allocPage()
	}
	s.last.bytes[s.lastPosition] = b
	s.lastPosition++
}

// appendTwoBytes writes two bytes, possibly spanning a page boundary.
func (s *pageStream) appendTwoBytes(first, second byte) {
	s.appendByte(first)
	s.appendByte(second)
}

// pages collects the stream's pages front to back.
func (s *pageStream) pages() []*streamPage {
	var out []*streamPage
	for page := s.first; page != nil; page = page.next {
		out = append(out, page)
	}
	return out
}

// branchRef locates a forward-branch placeholder so it can be patched
// once the target position is known.
type branchRef struct {
	page       *streamPage
	byteOffset int // first placeholder byte within page
	instrStart int // byte-code offset of the branch instruction
}

// branchItem is a node of a break / continue placeholder list. The
// isContinue flag distinguishes continue placeholders threaded onto
// the same loop frame.
type branchItem struct {
	next       *branchItem
	branch     branchRef
	isContinue bool
}

// patchBranch writes delta into the placeholder bytes, big endian,
// following page links across boundaries.
func (ctx *context) patchBranch(b branchRef, delta int) {
	page := b.page
	offset := b.byteOffset
	for i := ctx.branchPlaceholderLen - 1; i >= 0; i-- {
		page.bytes[offset] = byte(delta >> (8 * i))
		offset++
		if offset >= streamPageSize {
			page = page.next
			offset = 0
		}
	}
}
