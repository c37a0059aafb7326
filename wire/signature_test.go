package wire

import (
	"errors"
	"testing"
)

func TestSignatureCheck(t *testing.T) {
	sig := Signature{Return: TypeInt32, Args: []Type{TypeInt32, TypeInt32}}

	if err := sig.Check([]Value{Int32(1), Int32(2)}); err != nil {
		t.Fatalf("expect valid args to pass, got %v", err)
	}

	if err := sig.Check([]Value{Int32(1)}); !errors.Is(err, ErrArgCountMismatch) {
		t.Fatalf("expect ErrArgCountMismatch, got %v", err)
	}

	if err := sig.Check([]Value{Int32(1), String("x")}); !errors.Is(err, ErrArgTypeMismatch) {
		t.Fatalf("expect ErrArgTypeMismatch, got %v", err)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusOk:               "Ok",
		StatusNotFound:         "NotFound",
		StatusBadArgs:          "BadArgs",
		StatusDispatcherFailed: "DispatcherFailed",
		StatusUnsupported:      "Unsupported",
	}
	for status, want := range cases {
		if got := status.String(); got != want {
			t.Fatalf("Status(%d).String() = %q, want %q", status, got, want)
		}
	}
}
