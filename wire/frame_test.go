package wire

import (
	"reflect"
	"testing"
)

func TestCallPacketRoundTrip(t *testing.T) {
	args := []Value{Int32(1), Int32(2)}
	buf, err := EncodeCallPacket("abc-123", "add", args)
	if err != nil {
		t.Fatalf("EncodeCallPacket: %v", err)
	}

	cp, err := DecodeCallPacket(buf)
	if err != nil {
		t.Fatalf("DecodeCallPacket: %v", err)
	}
	if cp.CallID != "abc-123" {
		t.Fatalf("CallID = %q, want abc-123", cp.CallID)
	}
	if cp.MethodName != "add" {
		t.Fatalf("MethodName = %q, want add", cp.MethodName)
	}
	if len(cp.RawArgs) != 2 {
		t.Fatalf("RawArgs len = %d, want 2", len(cp.RawArgs))
	}

	for i, a := range args {
		raw, _ := Encode(a)
		if !reflect.DeepEqual(cp.RawArgs[i], raw) {
			t.Fatalf("arg %d raw bytes mismatch: want %x, got %x", i, raw, cp.RawArgs[i])
		}
	}
}

func TestCallPacketNoArgs(t *testing.T) {
	buf, err := EncodeCallPacket("id", "ping", nil)
	if err != nil {
		t.Fatalf("EncodeCallPacket: %v", err)
	}
	cp, err := DecodeCallPacket(buf)
	if err != nil {
		t.Fatalf("DecodeCallPacket: %v", err)
	}
	if len(cp.RawArgs) != 0 {
		t.Fatalf("expect 0 args, got %d", len(cp.RawArgs))
	}
}

func TestDecodeCallPacketTruncated(t *testing.T) {
	buf, _ := EncodeCallPacket("id", "add", []Value{Int32(1)})
	_, err := DecodeCallPacket(buf[:len(buf)-2])
	if err == nil {
		t.Fatal("expect error decoding truncated buffer")
	}
}

func TestRetHeaderRoundTrip(t *testing.T) {
	for _, status := range []Status{StatusOk, StatusNotFound, StatusBadArgs, StatusDispatcherFailed, StatusUnsupported} {
		for _, n := range []int{0, 4, 8, 4096} {
			buf := EncodeRetHeader(status, n)
			gotStatus, gotSize, err := DecodeRetHeader(buf)
			if err != nil {
				t.Fatalf("DecodeRetHeader: %v", err)
			}
			if gotStatus != status {
				t.Fatalf("status round trip: want %s, got %s", status, gotStatus)
			}
			if gotSize != n {
				t.Fatalf("size round trip: want %d, got %d", n, gotSize)
			}
		}
	}
}

func TestDecodeRetHeaderTruncated(t *testing.T) {
	buf := EncodeRetHeader(StatusOk, 4)
	_, _, err := DecodeRetHeader(buf[:len(buf)-2])
	if err == nil {
		t.Fatal("expect error decoding truncated ret header")
	}
}
