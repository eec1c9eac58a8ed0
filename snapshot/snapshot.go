// Package snapshot serializes compiled-code trees into compact binary
// images so hosts can ship precompiled scripts and skip parsing at
// boot. Images are zstd compressed. String and number literals are
// inlined: loading re-interns them into the target literal store, so
// images are position independent.
package snapshot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/klauspost/compress/zstd"

	"github.com/picojs/picojs/bytecode"
	"github.com/picojs/picojs/lit"
)

// Image format constants.
const (
	magic   = 0x504a5353 // "PJSS"
	version = 1
)

// Pool entry tags in the serialized form.
const (
	entryEmpty uint8 = iota
	entryString
	entryNumber
	entryFunction
)

var (
	// ErrBadMagic is returned when the input is not a snapshot image.
	ErrBadMagic = errors.New("snapshot: bad magic")
	// ErrVersion is returned for images written by an incompatible
	// format version.
	ErrVersion = errors.New("snapshot: unsupported version")
)

// Options controls snapshot writing.
type Options struct {
	// CompressionLevel selects the zstd level, 1 (fastest) to 4
	// (best). Zero means 2.
	CompressionLevel int
}

func (o *Options) encoderLevel() zstd.EncoderLevel {
	level := 2
	if o != nil && o.CompressionLevel != 0 {
		level = o.CompressionLevel
	}
	switch level {
	case 1:
		return zstd.SpeedFastest
	case 3:
		return zstd.SpeedBetterCompression
	case 4:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

// Write serializes code into w.
func Write(w io.Writer, code *bytecode.CompiledCode, store *lit.Store, opts *Options) error {
	var raw bytes.Buffer

	writeU32(&raw, magic)
	writeU32(&raw, version)
	if err := writeCode(&raw, code, store); err != nil {
		return err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(opts.encoderLevel()))
	if err != nil {
		return err
	}
	if _, err := enc.Write(raw.Bytes()); err != nil {
		enc.Close()
		return err
	}
	return enc.Close()
}

// Save serializes code into a byte slice.
func Save(code *bytecode.CompiledCode, store *lit.Store, opts *Options) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, code, store, opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Read deserializes a snapshot, interning every literal into store.
func Read(r io.Reader, store *lit.Store) (*bytecode.CompiledCode, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}

	buf := bytes.NewReader(raw)
	if m, err := readU32(buf); err != nil || m != magic {
		if err != nil {
			return nil, err
		}
		return nil, ErrBadMagic
	}
	if v, err := readU32(buf); err != nil || v != version {
		if err != nil {
			return nil, err
		}
		return nil, ErrVersion
	}

	return readCode(buf, store)
}

// Load deserializes a snapshot from a byte slice.
func Load(image []byte, store *lit.Store) (*bytecode.CompiledCode, error) {
	return Read(bytes.NewReader(image), store)
}

func writeU16(buf *bytes.Buffer, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	buf.Write(b[:])
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func readU16(r *bytes.Reader) (uint16, error) {
	var b [2]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// writeCode serializes one compiled-code object and its nested
// functions: the seven header fields, the literal pool with payloads
// inlined, and the byte code.
func writeCode(buf *bytes.Buffer, code *bytecode.CompiledCode, store *lit.Store) error {
	for _, field := range [...]uint16{
		code.StackLimit, code.ArgumentEnd, code.RegisterEnd, code.IdentEnd,
		code.ConstLiteralEnd, code.LiteralEnd, code.StatusFlags,
	} {
		writeU16(buf, field)
	}

	for _, value := range code.LiteralPool {
		switch value.Tag() {
		case bytecode.TagString:
			record := store.Decompress(value.CP())
			payload := record.ToUTF8(nil)
			buf.WriteByte(entryString)
			writeU16(buf, uint16(len(payload)))
			buf.Write(payload)
		case bytecode.TagNumber:
			record := store.Decompress(value.CP())
			buf.WriteByte(entryNumber)
			var b [8]byte
			binary.LittleEndian.PutUint64(b[:], math.Float64bits(record.Number()))
			buf.Write(b[:])
		case bytecode.TagFunction:
			buf.WriteByte(entryFunction)
			writeU16(buf, uint16(value.FunctionIndex()))
		default:
			buf.WriteByte(entryEmpty)
		}
	}

	writeU32(buf, uint32(len(code.Code)))
	buf.Write(code.Code)

	writeU16(buf, uint16(len(code.Functions)))
	for _, fn := range code.Functions {
		if err := writeCode(buf, fn, store); err != nil {
			return err
		}
	}
	return nil
}

// readCode deserializes one compiled-code object, re-interning
// literals into the target store.
func readCode(r *bytes.Reader, store *lit.Store) (*bytecode.CompiledCode, error) {
	code := &bytecode.CompiledCode{}

	for _, field := range [...]*uint16{
		&code.StackLimit, &code.ArgumentEnd, &code.RegisterEnd, &code.IdentEnd,
		&code.ConstLiteralEnd, &code.LiteralEnd, &code.StatusFlags,
	} {
		v, err := readU16(r)
		if err != nil {
			return nil, err
		}
		*field = v
	}

	code.LiteralPool = make([]bytecode.Value, code.LiteralEnd)
	for i := range code.LiteralPool {
		tag, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		switch tag {
		case entryString:
			size, err := readU16(r)
			if err != nil {
				return nil, err
			}
			payload := make([]byte, size)
			if _, err := io.ReadFull(r, payload); err != nil {
				return nil, err
			}
			record, err := store.FindOrCreateUTF8(payload)
			if err != nil {
				return nil, err
			}
			code.LiteralPool[i] = bytecode.MakeStringValue(record.CP())
		case entryNumber:
			var b [8]byte
			if _, err := io.ReadFull(r, b[:]); err != nil {
				return nil, err
			}
			record, err := store.FindOrCreateNumber(math.Float64frombits(binary.LittleEndian.Uint64(b[:])))
			if err != nil {
				return nil, err
			}
			code.LiteralPool[i] = bytecode.MakeNumberValue(record.CP())
		case entryFunction:
			index, err := readU16(r)
			if err != nil {
				return nil, err
			}
			code.LiteralPool[i] = bytecode.MakeFunctionValue(int(index))
		case entryEmpty:
			// Unreferenced argument or self-reference slot.
		default:
			return nil, fmt.Errorf("snapshot: unknown pool entry tag %d", tag)
		}
	}

	size, err := readU32(r)
	if err != nil {
		return nil, err
	}
	code.Code = make([]byte, size)
	if _, err := io.ReadFull(r, code.Code); err != nil {
		return nil, err
	}

	functionCount, err := readU16(r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < int(functionCount); i++ {
		fn, err := readCode(r, store)
		if err != nil {
			return nil, err
		}
		code.Functions = append(code.Functions, fn)
	}

	for i := range code.LiteralPool {
		if code.LiteralPool[i].Tag() == bytecode.TagFunction &&
			code.LiteralPool[i].FunctionIndex() >= len(code.Functions) {
			return nil, fmt.Errorf("snapshot: function index %d out of range",
				code.LiteralPool[i].FunctionIndex())
		}
	}

	return code, nil
}
