// Package invoker implements the client side of the protocol (spec §4.5):
// the call stub that runs the full client sequence of §4.2 against an
// already-listening Registry.
package invoker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/moduluz-io/ipc-shm/middleware"
	"github.com/moduluz-io/ipc-shm/rendezvous"
	"github.com/moduluz-io/ipc-shm/shm"
	"github.com/moduluz-io/ipc-shm/wire"
)

// Invoker is the client side of one channel. Multiple Invokers may attach to
// the same channel; the base protocol serializes their calls through the
// CCR mutex (spec §5).
type Invoker struct {
	channel string
	ccr     *rendezvous.CCR
	bufPool *shm.BufferPool

	log         *logrus.Logger
	callTimeout time.Duration
	middlewares []middleware.Middleware
}

// NewInvoker attaches to a channel a Registry has already created (spec
// §4.2: "clients attach with open"). The server must have finished
// NewRegistry first; start-order coordination is the caller's
// responsibility (spec §4.2).
func NewInvoker(channel string, opts ...Option) (*Invoker, error) {
	ccr, err := rendezvous.OpenCCR(channel)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChannelUnavailable, err)
	}

	inv := &Invoker{
		channel: channel,
		ccr:     ccr,
		bufPool: shm.NewBufferPool(8, 256),
		log:     logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(inv)
	}
	return inv, nil
}

// Invoke executes the client protocol of §4.2 and returns the decoded value
// on success (spec §4.5).
func (inv *Invoker) Invoke(name string, returnType wire.Type, args []wire.Value) (wire.Value, error) {
	handler := middleware.Chain(inv.middlewares...)(func(ctx context.Context, call *middleware.Call) *middleware.Result {
		return inv.doInvoke(call.MethodName, returnType, call.Args)
	})
	result := handler(context.Background(), &middleware.Call{MethodName: name, Args: args})
	if result.Err != nil {
		return wire.Value{}, result.Err
	}
	return result.Value, nil
}

func (inv *Invoker) doInvoke(name string, returnType wire.Type, args []wire.Value) *middleware.Result {
	// Step 1: wait on V for idle instead of spinning; the server broadcasts
	// on every transition back to idle, and Wait releases M while blocked.
	inv.ccr.Mutex.Lock()
	for !inv.ccr.IsIdle() {
		inv.ccr.Cond.Wait(inv.ccr.Mutex)
	}
	inv.ccr.Mutex.Unlock()

	// Step 2-3: allocate a fresh call id and serialize the Call Packet,
	// building it into a pooled scratch buffer to cut allocation churn on
	// hot invoke loops.
	id := uuid.New().String()
	scratch := inv.bufPool.Get()
	packet, err := wire.EncodeCallPacketInto(scratch, id, name, args)
	if err != nil {
		inv.bufPool.Put(scratch)
		return &middleware.Result{Err: fmt.Errorf("%w: %v", ErrEncodeError, err)}
	}
	seg, err := shm.Create(id, len(packet))
	if err != nil {
		inv.bufPool.Put(packet)
		return &middleware.Result{Err: fmt.Errorf("%w: create call packet: %v", ErrChannelUnavailable, err)}
	}
	seg.Write(0, packet)
	inv.bufPool.Put(packet)

	// Step 4: publish the call and wake the server. Another invoker may have
	// taken the slot since step 1 released M, so idle is re-checked here,
	// under the same hold of M as the write.
	inv.ccr.Mutex.Lock()
	for !inv.ccr.IsIdle() {
		inv.ccr.Cond.Wait(inv.ccr.Mutex)
	}
	inv.ccr.WriteSlot(id, uint64(len(packet)))
	inv.ccr.Cond.Broadcast()
	inv.ccr.Mutex.Unlock()

	// Step 5: wait for completion, optionally bounded by a claim timeout
	// (SPEC_FULL §5.1).
	if abandoned := inv.awaitCompletion(id); abandoned {
		seg.Close()
		shm.Unlink(id)
		return &middleware.Result{Err: ErrCallAbandoned}
	}

	val, status, err := inv.readResult(id, returnType)
	seg.Close()
	shm.Unlink(id) // the invoker owns and unlinks its own Call Packet (spec §5)
	if err != nil {
		return &middleware.Result{Status: status, Err: err}
	}
	return &middleware.Result{Value: val, Status: status}
}

// awaitCompletion re-acquires M and waits on V until the slot returns to
// idle, re-checking the predicate on every wakeup (spec §4.2 step 5). The
// outcome status itself is not read here — it travels in the per-call
// Result Packet (see readResult), not the shared slot, so there is nothing
// left to read off the slot once it's idle. If CallTimeout is set and
// expires first, it reclaims the slot per SPEC_FULL §5.1 and reports
// abandonment.
func (inv *Invoker) awaitCompletion(id string) (abandoned bool) {
	deadline := time.Time{}
	if inv.callTimeout > 0 {
		deadline = time.Now().Add(inv.callTimeout)
	}

	inv.ccr.Mutex.Lock()
	for !inv.ccr.IsIdle() {
		if deadline.IsZero() {
			inv.ccr.Cond.Wait(inv.ccr.Mutex)
			continue
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			slotID, _ := inv.ccr.ReadSlot()
			if slotID == id {
				inv.ccr.ClearSlot()
				inv.ccr.Cond.Broadcast()
			}
			inv.ccr.Mutex.Unlock()
			inv.log.WithField("call_id", id).Warn("invoker: call abandoned after timeout")
			return true
		}
		inv.ccr.Cond.WaitTimeout(inv.ccr.Mutex, remaining)
	}
	inv.ccr.Mutex.Unlock()
	return false
}

// readResult performs step 6: open "<id>_ret_size" (which carries the call's
// status per SPEC_FULL §3.1, see wire.DecodeRetHeader), and "<id>_ret" only
// if non-empty, decoding per the declared return type. returnType==TypeVoid
// with ret_size==0 is the expected void case; any fixed-width numeric/bool
// type with ret_size==0 is a decode error (ErrDecodeError), since those
// encodings are never empty (spec §4.2 step 6, SPEC_FULL's void/empty-string resolution).
//
// The invoker owns and unlinks both Result Packet names once it has read
// them (spec §5: "exactly one unlinker per name"). The server writes them
// but never unlinks them — see registry.Listen — since it broadcasts
// completion before the invoker has mapped either region for the first
// time, and unlinking first would race that first Open.
func (inv *Invoker) readResult(id string, returnType wire.Type) (wire.Value, wire.Status, error) {
	deadline := time.Now().Add(5 * time.Second)
	sizeSeg, err := shm.OpenWait(id+"_ret_size", wire.RetHeaderSize, deadline)
	if err != nil {
		return wire.Value{}, wire.StatusOk, fmt.Errorf("%w: open ret_size: %v", ErrProtocolError, err)
	}
	status, retSize, err := wire.DecodeRetHeader(sizeSeg.Read(0, wire.RetHeaderSize))
	sizeSeg.Close()
	shm.Unlink(id + "_ret_size")
	if err != nil {
		return wire.Value{}, wire.StatusOk, fmt.Errorf("%w: decode ret header: %v", ErrProtocolError, err)
	}

	if status != wire.StatusOk {
		return wire.Value{}, status, remoteError(status)
	}

	if retSize == 0 {
		switch returnType {
		case wire.TypeVoid:
			return wire.Value{Tag: wire.TypeVoid}, status, nil
		case wire.TypeString:
			return wire.String(""), status, nil
		default:
			return wire.Value{}, status, fmt.Errorf("%w: declared type %s never encodes to zero bytes", ErrDecodeError, returnType)
		}
	}

	retSeg, err := shm.OpenWait(id+"_ret", retSize, deadline)
	if err != nil {
		return wire.Value{}, status, fmt.Errorf("%w: open ret: %v", ErrProtocolError, err)
	}
	raw := retSeg.Read(0, retSize)
	retSeg.Close()
	shm.Unlink(id + "_ret")

	val, err := wire.Decode(returnType, raw)
	if err != nil {
		return wire.Value{}, status, fmt.Errorf("%w: %v", ErrDecodeError, err)
	}
	return val, status, nil
}

// Close unmaps the CCR. The invoker is not the channel's server, so it does
// not unlink CCR's names (spec §5: exactly one unlinker per name).
func (inv *Invoker) Close() error {
	return inv.ccr.Close()
}
