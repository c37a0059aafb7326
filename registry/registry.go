// Package registry implements the server side of the protocol (spec §4.4):
// the function table, the listen loop that runs the server half of §4.2's
// rendezvous, and the optional diagnostics-only etcd directory heartbeat.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"github.com/moduluz-io/ipc-shm/middleware"
	"github.com/moduluz-io/ipc-shm/rendezvous"
	"github.com/moduluz-io/ipc-shm/shm"
	"github.com/moduluz-io/ipc-shm/wire"
)

// Dispatcher is a registered function's server-side body: decoded arguments
// in, a decoded return value or error out. The caller builds this closure
// and hands it to Register, which stores it next to the signature; the
// registry does not wrap typed Go functions itself and does not re-derive
// argument shape by reflection on every call.
type Dispatcher func(args []wire.Value) (wire.Value, error)

type registeredFn struct {
	sig        wire.Signature
	dispatcher Dispatcher
}

// Registry is the server side of one channel: one Registry per channel name,
// per spec §6 ("a channel name uniquely identifies one server").
type Registry struct {
	channel string
	ccr     *rendezvous.CCR

	mu  sync.RWMutex
	fns map[string]*registeredFn

	log         *logrus.Logger
	middlewares []middleware.Middleware

	directoryEndpoints []string
	directoryTTL       int64
	directory          *EtcdDirectory
}

// NewRegistry creates CCR for channel (spec §4.2: "The server constructs CCR
// with create") and returns a Registry ready to accept Register calls before
// Listen begins.
func NewRegistry(channel string, opts ...Option) (*Registry, error) {
	ccr, err := rendezvous.CreateCCR(channel)
	if err != nil {
		return nil, fmt.Errorf("registry: %w", err)
	}

	r := &Registry{
		channel: channel,
		ccr:     ccr,
		fns:     make(map[string]*registeredFn),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(r)
	}

	if len(r.directoryEndpoints) > 0 {
		dir, err := NewEtcdDirectory(r.directoryEndpoints)
		if err != nil {
			r.log.WithError(err).Warn("registry: directory unavailable, continuing without it")
		} else if err := dir.Publish(channel, r.directoryTTL); err != nil {
			r.log.WithError(err).Warn("registry: directory publish failed, continuing without it")
		} else {
			r.directory = dir
		}
	}

	return r, nil
}

// Register inserts name into the function table (spec §4.4). Re-registering
// the same name is ErrAlreadyRegistered.
func (r *Registry) Register(name string, sig wire.Signature, dispatcher Dispatcher) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fns[name]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, name)
	}
	r.fns[name] = &registeredFn{sig: sig, dispatcher: dispatcher}
	return nil
}

// Introspect returns the registered signature for name, for diagnostics.
func (r *Registry) Introspect(name string) (wire.Signature, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.fns[name]
	if !ok {
		return wire.Signature{}, fmt.Errorf("%w: %s", ErrFunctionNotFound, name)
	}
	return fn.sig, nil
}

// lookup returns the registered function for name, or nil if absent.
func (r *Registry) lookup(name string) *registeredFn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.fns[name]
}

// decodeArgs turns a Call Packet's raw argument bytes into typed Values
// using sig's declared argument types (spec §4.2 step 3). A count mismatch
// is caught before any byte is decoded (spec §4.3); a width mismatch during
// decode is the detectable subset of ArgTypeMismatch (same-width type
// confusion, e.g. int32 vs float32, is undetectable on this wire by design).
func decodeArgs(sig wire.Signature, raw [][]byte) ([]wire.Value, error) {
	if len(raw) != len(sig.Args) {
		return nil, fmt.Errorf("%w: want %d, got %d", wire.ErrArgCountMismatch, len(sig.Args), len(raw))
	}
	vals := make([]wire.Value, len(raw))
	for i, t := range sig.Args {
		v, err := wire.Decode(t, raw[i])
		if err != nil {
			return nil, fmt.Errorf("%w: arg %d: %v", wire.ErrArgTypeMismatch, i, err)
		}
		vals[i] = v
	}
	return vals, nil
}

// Listen runs the server protocol of §4.2 in a loop with no exit path: it
// does not detect a corrupted channel and never returns, so it never
// returns rendezvous.ErrChannelCorrupted either. Registration after Listen
// begins is not required to be safe, per spec §4.4.
func (r *Registry) Listen() error {
	for {
		r.ccr.Mutex.Lock()
		for r.ccr.IsIdle() {
			r.ccr.Cond.Wait(r.ccr.Mutex)
		}

		id, size := r.ccr.ReadSlot()
		result, logMethod := r.handleCall(id, size)

		r.writeResultPackets(id, result)
		r.ccr.ClearSlot()
		r.ccr.Cond.Broadcast()
		r.ccr.Mutex.Unlock()

		// The server does NOT unlink the Result Packets here. Spec §5's
		// "unlink immediately after broadcast is safe because mapped regions
		// survive unlink" only holds for a reader that already mapped the
		// region before the unlink races it — the waking client hasn't: it
		// maps "<id>_ret_size"/"<id>_ret" for the first time in
		// invoker.readResult, strictly after this broadcast. Unlinking here
		// would race that first Open and could vanish the name out from
		// under it. Per spec §5's "exactly one unlinker per name", the
		// client owns and unlinks its own Result Packets once it has read
		// them (see invoker.readResult), the same way it already owns its
		// Call Packet.

		r.log.WithFields(logrus.Fields{
			"call_id": id,
			"method":  logMethod,
			"status":  result.Status.String(),
		}).Debug("registry: call completed")
	}
}

// handleCall runs steps 2-3-4 of the server protocol for one call: open and
// parse the Call Packet, look up the method, decode arguments, and invoke
// the (middleware-wrapped) dispatcher. It always returns a non-nil Result —
// every failure mode completes the call with a Status rather than aborting
// the listen loop (spec §7: registry/marshal errors are reported by
// completing the call, not by propagating an error across the protocol).
func (r *Registry) handleCall(id string, size uint64) (*middleware.Result, string) {
	seg, err := shm.Open(id, int(size))
	if err != nil {
		return &middleware.Result{Status: wire.StatusBadArgs, Err: fmt.Errorf("registry: open call packet %s: %w", id, err)}, ""
	}
	raw := seg.Read(0, int(size))
	seg.Close() // server only unmaps; the client unlinks its own Call Packet after step 5

	cp, err := wire.DecodeCallPacket(raw)
	if err != nil {
		return &middleware.Result{Status: wire.StatusBadArgs, Err: err}, ""
	}

	fn := r.lookup(cp.MethodName)
	if fn == nil {
		return &middleware.Result{Status: wire.StatusNotFound, Err: fmt.Errorf("%w: %s", ErrFunctionNotFound, cp.MethodName)}, cp.MethodName
	}

	args, err := decodeArgs(fn.sig, cp.RawArgs)
	if err != nil {
		return &middleware.Result{Status: wire.StatusBadArgs, Err: err}, cp.MethodName
	}

	handler := middleware.Chain(r.middlewares...)(func(ctx context.Context, call *middleware.Call) *middleware.Result {
		val, err := fn.dispatcher(call.Args)
		if err != nil {
			return &middleware.Result{Status: wire.StatusDispatcherFailed, Err: err}
		}
		return &middleware.Result{Value: val, Status: wire.StatusOk}
	})
	result := handler(context.Background(), &middleware.Call{MethodName: cp.MethodName, Args: args})
	return result, cp.MethodName
}

// writeResultPackets creates and populates the Result Packet regions for a
// completed call (spec §4.2 step 4): "<id>_ret_size" always (carrying the
// status byte per SPEC_FULL §3.1, see wire.EncodeRetHeader), and "<id>_ret"
// only when the result carries a non-void value.
func (r *Registry) writeResultPackets(id string, result *middleware.Result) {
	if result.Status != wire.StatusOk || result.Value.Tag == wire.TypeVoid {
		header := wire.EncodeRetHeader(result.Status, 0)
		sizeSeg, err := shm.Create(id+"_ret_size", len(header))
		if err != nil {
			r.log.WithError(err).WithField("call_id", id).Error("registry: failed to create ret_size region")
			return
		}
		sizeSeg.Write(0, header)
		sizeSeg.Close()
		return
	}

	payload, err := wire.Encode(result.Value)
	if err != nil {
		r.log.WithError(err).WithField("call_id", id).Error("registry: failed to encode return value")
		return
	}

	header := wire.EncodeRetHeader(result.Status, len(payload))
	sizeSeg, err := shm.Create(id+"_ret_size", len(header))
	if err != nil {
		r.log.WithError(err).WithField("call_id", id).Error("registry: failed to create ret_size region")
		return
	}
	sizeSeg.Write(0, header)
	sizeSeg.Close()

	if len(payload) == 0 {
		return
	}
	retSeg, err := shm.Create(id+"_ret", len(payload))
	if err != nil {
		r.log.WithError(err).WithField("call_id", id).Error("registry: failed to create ret region")
		return
	}
	retSeg.Write(0, payload)
	retSeg.Close()
}

// Close unlinks the CCR's sync and slot regions (spec §5: "server unlinks
// CCR at shutdown") and, if a directory heartbeat was started, stops it.
// Cleanup failures in either place are aggregated with multierr rather than
// only surfacing the first one.
func (r *Registry) Close() error {
	var err error
	err = multierr.Append(err, r.ccr.Close())
	if r.directory != nil {
		err = multierr.Append(err, r.directory.Close())
	}
	return err
}
