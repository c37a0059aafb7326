// Package wire implements the binary wire contract for ipc-shm: the tagged
// primitive value variant, the Call Packet / Result Packet framing, and the
// encode/decode rules that turn a heterogeneous argument list into raw bytes
// and back.
//
// Encoding is strictly positional and non-self-describing (spec §4.3): the
// registered signature is the schema, not the wire bytes themselves.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// Type tags the primitive set P = {int32, float32, float64, bool, string}.
type Type byte

const (
	TypeVoid Type = iota
	TypeInt32
	TypeFloat32
	TypeFloat64
	TypeBool
	TypeString
)

func (t Type) String() string {
	switch t {
	case TypeVoid:
		return "void"
	case TypeInt32:
		return "int32"
	case TypeFloat32:
		return "float32"
	case TypeFloat64:
		return "float64"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	default:
		return fmt.Sprintf("Type(%d)", byte(t))
	}
}

// Errors raised while encoding/decoding values on the wire (spec §7, Marshal kind).
var (
	ErrEncodeUnsupportedType = errors.New("wire: argument is not a supported primitive type")
	ErrArgCountMismatch      = errors.New("wire: argument count does not match registered signature")
	ErrArgTypeMismatch       = errors.New("wire: argument type does not match registered signature")
	ErrDecodeError           = errors.New("wire: return bytes do not match declared return type")
)

// Value is the tagged variant carried by the wire: exactly one of the typed
// fields is meaningful, selected by Tag. This replaces the source's
// runtime-typed std::any argument list (spec §9, "Runtime-typed argument
// lists") with a closed Go sum type.
type Value struct {
	Tag Type
	I32 int32
	F32 float32
	F64 float64
	B   bool
	S   string
}

// Int32 wraps an int32 as a Value.
func Int32(v int32) Value { return Value{Tag: TypeInt32, I32: v} }

// Float32 wraps a float32 as a Value.
func Float32(v float32) Value { return Value{Tag: TypeFloat32, F32: v} }

// Float64 wraps a float64 as a Value.
func Float64(v float64) Value { return Value{Tag: TypeFloat64, F64: v} }

// Bool wraps a bool as a Value.
func Bool(v bool) Value { return Value{Tag: TypeBool, B: v} }

// String wraps a string as a Value.
func String(v string) Value { return Value{Tag: TypeString, S: v} }

// byteWidth returns the fixed encoded width of a scalar type, or -1 for
// string (whose width is the length of its UTF-8 bytes, supplied separately).
func byteWidth(t Type) int {
	switch t {
	case TypeInt32, TypeFloat32:
		return 4
	case TypeFloat64:
		return 8
	case TypeBool:
		return 1
	case TypeString:
		return -1
	default:
		return -1
	}
}

// Encode serializes v's raw payload per spec §3: little-endian fixed-width
// bytes for numeric/bool types, raw UTF-8 bytes (no trailing NUL) for string.
// The length prefix itself is written by the caller (Call/Result framing),
// not here — Encode returns only the value bytes.
func Encode(v Value) ([]byte, error) {
	switch v.Tag {
	case TypeInt32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, uint32(v.I32))
		return buf, nil
	case TypeFloat32:
		buf := make([]byte, 4)
		binary.LittleEndian.PutUint32(buf, math.Float32bits(v.F32))
		return buf, nil
	case TypeFloat64:
		buf := make([]byte, 8)
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.F64))
		return buf, nil
	case TypeBool:
		if v.B {
			return []byte{1}, nil
		}
		return []byte{0}, nil
	case TypeString:
		return []byte(v.S), nil
	default:
		return nil, fmt.Errorf("%w: tag %s", ErrEncodeUnsupportedType, v.Tag)
	}
}

// Decode parses raw bytes into a Value of the declared type. It is the
// inverse of Encode and is used both for decoding call arguments against a
// registered signature and for decoding a Result Packet against a declared
// return type.
func Decode(t Type, raw []byte) (Value, error) {
	width := byteWidth(t)
	if width >= 0 && len(raw) != width {
		return Value{}, fmt.Errorf("%w: %s wants %d bytes, got %d", ErrDecodeError, t, width, len(raw))
	}
	switch t {
	case TypeInt32:
		return Int32(int32(binary.LittleEndian.Uint32(raw))), nil
	case TypeFloat32:
		return Float32(math.Float32frombits(binary.LittleEndian.Uint32(raw))), nil
	case TypeFloat64:
		return Float64(math.Float64frombits(binary.LittleEndian.Uint64(raw))), nil
	case TypeBool:
		return Bool(raw[0] != 0), nil
	case TypeString:
		return String(string(raw)), nil
	default:
		return Value{}, fmt.Errorf("%w: tag %s", ErrDecodeError, t)
	}
}
