package wire

// This file implements the Call Packet and Result Packet layouts from spec
// §3. Unlike the teacher's protocol.Header (a fixed 14-byte header framing a
// TCP byte stream), Call/Result Packets frame a single fixed-size shared
// memory segment: there is no sticky-packet problem to solve because each
// call gets its own uniquely-named segment, but the length-prefixed field
// layout that makes the teacher's frames self-delimiting is reused verbatim
// for the same reason — a reader must be able to find the next field's start
// without a schema beyond "size_t length, then that many bytes".

import (
	"encoding/binary"
	"fmt"
)

const sizeFieldWidth = 8 // size_t, fixed at 8 bytes (uint64) regardless of host word size

// putSize appends a size_t-width length prefix to buf.
func putSize(buf []byte, n int) []byte {
	tmp := make([]byte, sizeFieldWidth)
	binary.LittleEndian.PutUint64(tmp, uint64(n))
	return append(buf, tmp...)
}

// readSize reads a size_t-width length prefix starting at offset, returning
// the parsed value and the offset immediately after it.
func readSize(buf []byte, offset int) (uint64, int, error) {
	if offset+sizeFieldWidth > len(buf) {
		return 0, 0, fmt.Errorf("%w: truncated size_t field at offset %d", ErrDecodeError, offset)
	}
	return binary.LittleEndian.Uint64(buf[offset : offset+sizeFieldWidth]), offset + sizeFieldWidth, nil
}

// CallPacket is the decoded form of spec §3's Call Packet: method name plus
// a positional argument list, each argument still encoded as raw bytes (the
// receiver doesn't know the registered signature until it looks the method
// name up, so arguments are decoded into Values by the registry, not here).
type CallPacket struct {
	CallID     string
	MethodName string
	RawArgs    [][]byte
}

// EncodeCallPacket serializes a CallPacket per spec §3's Call Packet layout:
//
//	call_id_len | call_id | method_name_len | method_name | num_args | (arg_len_i | arg_bytes_i)*
func EncodeCallPacket(callID, methodName string, args []Value) ([]byte, error) {
	return EncodeCallPacketInto(nil, callID, methodName, args)
}

// EncodeCallPacketInto is EncodeCallPacket but appends into dst (typically a
// buffer borrowed from shm.BufferPool) instead of always allocating fresh,
// for invoke loops that want to cut allocation churn. dst may be nil.
func EncodeCallPacketInto(dst []byte, callID, methodName string, args []Value) ([]byte, error) {
	argBytes := make([][]byte, len(args))
	for i, a := range args {
		b, err := Encode(a)
		if err != nil {
			return nil, fmt.Errorf("encode arg %d: %w", i, err)
		}
		argBytes[i] = b
	}

	buf := dst[:0]
	buf = putSize(buf, len(callID))
	buf = append(buf, callID...)
	buf = putSize(buf, len(methodName))
	buf = append(buf, methodName...)
	buf = putSize(buf, len(argBytes))
	for _, b := range argBytes {
		buf = putSize(buf, len(b))
		buf = append(buf, b...)
	}
	return buf, nil
}

// DecodeCallPacket parses the raw bytes of a Call Packet segment back into a
// CallPacket. Argument bytes are returned raw; the caller decodes them
// against the registered signature (spec §4.2 step 3, §4.3).
func DecodeCallPacket(buf []byte) (*CallPacket, error) {
	offset := 0

	callIDLen, offset, err := readSize(buf, offset)
	if err != nil {
		return nil, err
	}
	if offset+int(callIDLen) > len(buf) {
		return nil, fmt.Errorf("%w: call_id overruns packet", ErrDecodeError)
	}
	callID := string(buf[offset : offset+int(callIDLen)])
	offset += int(callIDLen)

	methodNameLen, offset, err := readSize(buf, offset)
	if err != nil {
		return nil, err
	}
	if offset+int(methodNameLen) > len(buf) {
		return nil, fmt.Errorf("%w: method_name overruns packet", ErrDecodeError)
	}
	methodName := string(buf[offset : offset+int(methodNameLen)])
	offset += int(methodNameLen)

	numArgs, offset, err := readSize(buf, offset)
	if err != nil {
		return nil, err
	}

	rawArgs := make([][]byte, 0, numArgs)
	for i := uint64(0); i < numArgs; i++ {
		argLen, next, err := readSize(buf, offset)
		if err != nil {
			return nil, fmt.Errorf("arg %d: %w", i, err)
		}
		offset = next
		if offset+int(argLen) > len(buf) {
			return nil, fmt.Errorf("%w: arg %d overruns packet", ErrDecodeError, i)
		}
		rawArgs = append(rawArgs, buf[offset:offset+int(argLen)])
		offset += int(argLen)
	}

	return &CallPacket{CallID: callID, MethodName: methodName, RawArgs: rawArgs}, nil
}

// RetHeaderSize is the fixed size of the "<id>_ret_size" segment: 1 status
// byte plus a size_t length.
const RetHeaderSize = 1 + sizeFieldWidth

// EncodeRetHeader serializes the "<id>_ret_size" segment: a status byte
// followed by a size_t length (zero for void). Carrying status here, in a
// region private to one call, keeps it out of the CCR slot, which every
// waiting client re-reads after the slot returns to idle — a second call's
// WriteSlot can otherwise clobber a shared status byte before the first
// client gets to it (see registry.Listen / invoker.readResult).
func EncodeRetHeader(status Status, n int) []byte {
	buf := append([]byte{byte(status)}, putSize(nil, n)...)
	return buf
}

// DecodeRetHeader parses the "<id>_ret_size" segment.
func DecodeRetHeader(buf []byte) (Status, int, error) {
	if len(buf) < 1 {
		return 0, 0, fmt.Errorf("%w: truncated ret header", ErrDecodeError)
	}
	status := Status(buf[0])
	n, _, err := readSize(buf, 1)
	if err != nil {
		return 0, 0, err
	}
	return status, int(n), nil
}
