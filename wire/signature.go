package wire

import "fmt"

// Signature describes a registered function's wire shape: its return type
// (TypeVoid for no return) and its positional argument types (spec §3,
// "Registered function").
type Signature struct {
	Return Type
	Args   []Type
}

// Check validates that args conform to sig, returning ArgCountMismatch or
// ArgTypeMismatch per spec §4.3.
func (sig Signature) Check(args []Value) error {
	if len(args) != len(sig.Args) {
		return fmt.Errorf("%w: want %d, got %d", ErrArgCountMismatch, len(sig.Args), len(args))
	}
	for i, want := range sig.Args {
		if args[i].Tag != want {
			return fmt.Errorf("%w: arg %d want %s, got %s", ErrArgTypeMismatch, i, want, args[i].Tag)
		}
	}
	return nil
}

// Status is the one-byte result code the server writes into the "<id>_ret_size"
// Result Packet header (SPEC_FULL §3.1, per spec §9's "Result-channel missing
// error signal" design note). It lets the invoker distinguish a successful
// call from a server-side dispatch failure without guessing from implausible
// zero-valued results. It lives in the per-call Result Packet rather than the
// shared CCR slot so a second call can never clobber it before the first
// client has read it.
type Status byte

const (
	StatusOk Status = iota
	StatusNotFound
	StatusBadArgs
	StatusDispatcherFailed
	StatusUnsupported
)

func (s Status) String() string {
	switch s {
	case StatusOk:
		return "Ok"
	case StatusNotFound:
		return "NotFound"
	case StatusBadArgs:
		return "BadArgs"
	case StatusDispatcherFailed:
		return "DispatcherFailed"
	case StatusUnsupported:
		return "Unsupported"
	default:
		return fmt.Sprintf("Status(%d)", byte(s))
	}
}
