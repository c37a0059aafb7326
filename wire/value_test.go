package wire

import (
	"errors"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	cases := []Value{
		Int32(-42),
		Float32(3.5),
		Float64(-2.25),
		Bool(true),
		Bool(false),
		String("hello"),
		String(""),
	}

	for _, v := range cases {
		raw, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		got, err := Decode(v.Tag, raw)
		if err != nil {
			t.Fatalf("Decode(%v, %x): %v", v.Tag, raw, err)
		}
		if got != v {
			t.Fatalf("round trip mismatch: want %+v, got %+v", v, got)
		}
	}
}

func TestEncodeUnsupportedType(t *testing.T) {
	_, err := Encode(Value{Tag: TypeVoid})
	if !errors.Is(err, ErrEncodeUnsupportedType) {
		t.Fatalf("expect ErrEncodeUnsupportedType, got %v", err)
	}
}

func TestDecodeWidthMismatch(t *testing.T) {
	_, err := Decode(TypeInt32, []byte{1, 2, 3})
	if !errors.Is(err, ErrDecodeError) {
		t.Fatalf("expect ErrDecodeError, got %v", err)
	}
}

func TestByteWidth(t *testing.T) {
	cases := map[Type]int{
		TypeInt32:   4,
		TypeFloat32: 4,
		TypeFloat64: 8,
		TypeBool:    1,
		TypeString:  -1,
	}
	for typ, want := range cases {
		if got := byteWidth(typ); got != want {
			t.Fatalf("byteWidth(%s) = %d, want %d", typ, got, want)
		}
	}
}
