package bytecode

import (
	"errors"
	"fmt"

	"github.com/picojs/picojs/lit"
)

// Status flag bits of a compiled-code object.
const (
	// FlagFullLiteralEncoding selects the full literal encoding; when
	// clear the small encoding is in effect.
	FlagFullLiteralEncoding uint16 = 1 << iota
	// FlagStrictMode marks strict mode code.
	FlagStrictMode
)

// Literal encoding limits. With the small encoding indices up to 254
// fit in one byte and a 255 prefix introduces the two-byte form. With
// the full encoding indices up to 127 fit in one byte and a set top
// bit introduces the two-byte form.
const (
	MaxByteValue  = 255
	MaxSmallValue = 510
	MaxFullValue  = 32767

	HighestBitMask    = 0x80
	LowerSevenBitMask = 0x7f
)

// ValueTag distinguishes the variants of a literal pool entry.
type ValueTag uint32

const (
	// TagEmpty marks an unmaterialized slot (argument placeholders).
	TagEmpty ValueTag = iota
	// TagString holds a literal-store compressed pointer to a string.
	TagString
	// TagNumber holds a literal-store compressed pointer to a number.
	TagNumber
	// TagFunction holds an index into the Functions list.
	TagFunction
)

// Value is a 32-bit tagged literal pool entry: the tag lives in the
// low three bits, the payload above them.
type Value uint32

// MakeStringValue builds a pool entry referencing a string record.
func MakeStringValue(cp lit.CPointer) Value {
	return Value(uint32(cp)<<3 | uint32(TagString))
}

// MakeNumberValue builds a pool entry referencing a number record.
func MakeNumberValue(cp lit.CPointer) Value {
	return Value(uint32(cp)<<3 | uint32(TagNumber))
}

// MakeFunctionValue builds a pool entry referencing a nested function.
func MakeFunctionValue(index int) Value {
	return Value(uint32(index)<<3 | uint32(TagFunction))
}

// Tag returns the entry's variant.
func (v Value) Tag() ValueTag {
	return ValueTag(v & 0x7)
}

// CP returns the literal-store pointer of a string or number entry.
func (v Value) CP() lit.CPointer {
	return lit.CPointer(v >> 3)
}

// FunctionIndex returns the nested-function index of a function entry.
func (v Value) FunctionIndex() int {
	return int(v >> 3)
}

// CompiledCode is the result of compiling one function or script: a
// fixed header, the literal pool, and the byte code. The literal pool
// maps each local index to a literal-store record or to a nested
// compiled-code object.
//
// Literal indices belong to one of the following groups:
//
//	0 <= index < ArgumentEnd                   arguments
//	ArgumentEnd <= index < RegisterEnd         registers
//	RegisterEnd <= index < IdentEnd            identifiers
//	IdentEnd <= index < ConstLiteralEnd        constant literals
//	ConstLiteralEnd <= index < LiteralEnd      other literals
type CompiledCode struct {
	StackLimit      uint16
	ArgumentEnd     uint16
	RegisterEnd     uint16
	IdentEnd        uint16
	ConstLiteralEnd uint16
	LiteralEnd      uint16
	StatusFlags     uint16

	LiteralPool []Value
	Code        []byte

	// Functions holds the nested compiled-code objects referenced by
	// TagFunction pool entries.
	Functions []*CompiledCode
}

// HeaderSize is the encoded size of the compiled-code header in bytes:
// seven little-endian 16-bit fields.
const HeaderSize = 14

// IsStrict reports whether the code was compiled in strict mode.
func (c *CompiledCode) IsStrict() bool {
	return c.StatusFlags&FlagStrictMode != 0
}

// FullLiteralEncoding reports whether literal arguments use the full
// encoding.
func (c *CompiledCode) FullLiteralEncoding() bool {
	return c.StatusFlags&FlagFullLiteralEncoding != 0
}

// encodingLimits returns the one-byte limit and the two-byte decoding
// delta of the active literal encoding.
func (c *CompiledCode) encodingLimits() (limit, delta uint16) {
	if c.FullLiteralEncoding() {
		return 128, 0x8000
	}
	return 255, 0xfe01
}

// ErrTruncated is returned when the byte code ends in the middle of an
// instruction.
var ErrTruncated = errors.New("bytecode: truncated instruction")

// Instruction is one decoded CBC instruction.
type Instruction struct {
	Offset int
	Op     Opcode
	ExtOp  ExtOpcode // valid when Op == OpExtOpcode
	Flags  uint8

	Literal      uint16 // first literal argument
	Literal2     uint16 // second literal argument
	ByteArg      uint8
	BranchOffset int // decoded relative offset, always positive

	// InitLiterals carries the trailing per-slot initializer indices
	// of an INITIALIZE_VARS instruction.
	InitLiterals []uint16

	// Size is the encoded instruction length in bytes.
	Size int
}

// Name returns the decoded instruction's opcode name.
func (in Instruction) Name() string {
	if in.Op == OpExtOpcode {
		return in.ExtOp.String()
	}
	return in.Op.String()
}

// IsBranch reports whether the instruction carries a branch argument.
func (in Instruction) IsBranch() bool {
	return in.Flags&FlagBranchArg != 0
}

// Target returns the absolute byte-code offset a branch instruction
// transfers control to.
func (in Instruction) Target() int {
	if IsForwardBranch(in.Flags) {
		return in.Offset + in.BranchOffset
	}
	return in.Offset - in.BranchOffset
}

// decodeLiteral reads one variable-width literal index.
func (c *CompiledCode) decodeLiteral(pos int) (uint16, int, error) {
	limit, delta := c.encodingLimits()
	if pos >= len(c.Code) {
		return 0, 0, ErrTruncated
	}
	first := uint16(c.Code[pos])
	if first < limit {
		return first, 1, nil
	}
	if pos+1 >= len(c.Code) {
		return 0, 0, ErrTruncated
	}
	value := first<<8 | uint16(c.Code[pos+1])
	return value - delta, 2, nil
}

// DecodeInstruction decodes the instruction starting at offset.
func (c *CompiledCode) DecodeInstruction(offset int) (Instruction, error) {
	in := Instruction{Offset: offset}
	pos := offset
	if pos >= len(c.Code) {
		return in, ErrTruncated
	}

	in.Op = Opcode(c.Code[pos])
	branchByte := c.Code[pos]
	pos++
	if in.Op == OpExtOpcode {
		if pos >= len(c.Code) {
			return in, ErrTruncated
		}
		in.ExtOp = ExtOpcode(c.Code[pos])
		if in.ExtOp >= ExtEnd {
			return in, fmt.Errorf("bytecode: invalid extended opcode %d at offset %d", in.ExtOp, offset)
		}
		branchByte = c.Code[pos]
		in.Flags = ExtFlags[in.ExtOp]
		pos++
	} else {
		if in.Op >= OpEnd {
			return in, fmt.Errorf("bytecode: invalid opcode %d at offset %d", in.Op, offset)
		}
		in.Flags = Flags[in.Op]
	}

	if in.Flags&FlagLiteralArg != 0 {
		value, n, err := c.decodeLiteral(pos)
		if err != nil {
			return in, err
		}
		in.Literal = value
		pos += n
	}
	if in.Flags&FlagLiteralArg2 != 0 {
		value, n, err := c.decodeLiteral(pos)
		if err != nil {
			return in, err
		}
		in.Literal2 = value
		pos += n
	}

	if in.Op == OpInitializeVars {
		for i := in.Literal; i <= in.Literal2; i++ {
			value, n, err := c.decodeLiteral(pos)
			if err != nil {
				return in, err
			}
			in.InitLiterals = append(in.InitLiterals, value)
			pos += n
		}
	}

	if in.Flags&FlagBranchArg == 0 && in.Flags&FlagByteArg != 0 {
		if pos >= len(c.Code) {
			return in, ErrTruncated
		}
		in.ByteArg = c.Code[pos]
		pos++
	}

	if in.Flags&FlagBranchArg != 0 {
		length := BranchOffsetLength(branchByte)
		if length < 1 || length > 3 {
			return in, fmt.Errorf("bytecode: invalid branch width at offset %d", offset)
		}
		if pos+length > len(c.Code) {
			return in, ErrTruncated
		}
		value := 0
		for i := 0; i < length; i++ {
			value = value<<8 | int(c.Code[pos+i])
		}
		in.BranchOffset = value
		pos += length
	}

	in.Size = pos - offset
	return in, nil
}

// Instructions decodes the whole byte code front to back.
func (c *CompiledCode) Instructions() ([]Instruction, error) {
	var out []Instruction
	for pos := 0; pos < len(c.Code); {
		in, err := c.DecodeInstruction(pos)
		if err != nil {
			return out, err
		}
		out = append(out, in)
		pos += in.Size
	}
	return out, nil
}

// CodeSize returns the total encoded size of the compiled-code object:
// header, literal pool and byte code, including nested functions.
func (c *CompiledCode) CodeSize() int {
	size := HeaderSize + 4*len(c.LiteralPool) + len(c.Code)
	for _, fn := range c.Functions {
		size += fn.CodeSize()
	}
	return size
}
