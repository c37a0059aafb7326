package invoker

import (
	"errors"
	"fmt"

	"github.com/moduluz-io/ipc-shm/wire"
)

// Errors raised by Invoke (spec §4.5, §7).
var (
	ErrChannelUnavailable = errors.New("invoker: channel unavailable")
	ErrEncodeError        = errors.New("invoker: argument is not a supported primitive type")
	ErrDecodeError        = errors.New("invoker: return bytes do not match declared return type")
	ErrProtocolError      = errors.New("invoker: malformed slot or missing result region")

	// ErrCallAbandoned is returned when a CallTimeout deadline expires during
	// step 5's wait (SPEC_FULL §5.1). The server-side dispatch outcome is
	// unknown: it may have completed concurrently with the invoker giving up.
	ErrCallAbandoned = errors.New("invoker: call abandoned after timeout, server outcome unknown")

	// The remainder translate the status byte extension (SPEC_FULL §3.1)
	// into distinguishable errors, rather than collapsing every non-Ok
	// status into ErrProtocolError the way a client ignorant of the
	// extension would (spec §9's "older clients treat a non-zero code as
	// ProtocolError").
	ErrRemoteNotFound       = errors.New("invoker: remote function not found")
	ErrRemoteBadArgs        = errors.New("invoker: remote rejected arguments")
	ErrRemoteDispatchFailed = errors.New("invoker: remote dispatcher failed")
	ErrRemoteUnsupported    = errors.New("invoker: remote does not support this operation")
)

// remoteError maps a non-Ok status byte to its corresponding sentinel.
func remoteError(status wire.Status) error {
	switch status {
	case wire.StatusNotFound:
		return ErrRemoteNotFound
	case wire.StatusBadArgs:
		return ErrRemoteBadArgs
	case wire.StatusDispatcherFailed:
		return ErrRemoteDispatchFailed
	case wire.StatusUnsupported:
		return ErrRemoteUnsupported
	default:
		return fmt.Errorf("%w: status %s", ErrProtocolError, status)
	}
}
