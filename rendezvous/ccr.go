package rendezvous

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/moduluz-io/ipc-shm/shm"
)

// Slot layout within the CCR's slot region (spec §3, "Slot region"):
//
//	offset 0:   slot.id   [128]byte, ASCII UUID left-aligned, zero-padded
//	offset 128: slot.size uint64 (size_t)
//
// The result status byte (SPEC_FULL §3.1) does NOT live here: the slot is
// shared across every call on the channel, and a second client's WriteSlot
// can reset it before the first client, woken by the same broadcast, gets a
// chance to read it (both contend for M after ClearSlot). Status instead
// travels in the per-call "<id>_ret_size" Result Packet, which only ever has
// one reader. See wire.EncodeRetHeader / invoker.readResult.
const (
	SlotIDSize     = 128
	slotSizeOffset = SlotIDSize
	slotSizeWidth  = 8
	SlotRegionSize = slotSizeOffset + slotSizeWidth
)

// ErrChannelCorrupted signals the sync primitives are unusable (spec §7,
// Fatal kind): the listen loop cannot continue.
var ErrChannelCorrupted = errors.New("rendezvous: channel control region corrupted")

// CCR is the Channel Control Region: the process-shared mutex/cond pair plus
// the single-cell call slot they guard (spec §4.2).
type CCR struct {
	channel  string
	syncSeg  *shm.Segment
	slotSeg  *shm.Segment
	Mutex    *Mutex
	Cond     *Cond
	isServer bool
}

func syncName(channel string) string { return channel + "_sync" }

// CreateCCR is called exactly once, by the server, before it begins
// listening (spec §4.2: "The server constructs CCR with create ... and only
// then begins listening"). It creates both named regions, zeros the slot,
// and initializes the mutex/cond words to their unlocked/zero state.
func CreateCCR(channel string) (*CCR, error) {
	syncSeg, err := shm.Create(syncName(channel), SyncRegionSize)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: create sync region: %w", err)
	}
	slotSeg, err := shm.Create(channel, SlotRegionSize)
	if err != nil {
		syncSeg.Close()
		shm.Unlink(syncName(channel))
		return nil, fmt.Errorf("rendezvous: create slot region: %w", err)
	}

	// Zero the mutex/cond words and the slot region explicitly: a freshly
	// ftruncate'd/mmap'd region is zero-filled by the kernel, but we zero it
	// ourselves so the invariant doesn't rest on an OS-specific guarantee.
	syncSeg.Write(0, make([]byte, SyncRegionSize))
	slotSeg.Write(0, make([]byte, SlotRegionSize))

	return &CCR{
		channel:  channel,
		syncSeg:  syncSeg,
		slotSeg:  slotSeg,
		Mutex:    NewMutex(syncSeg.Pointer(0), MutexOffset),
		Cond:     NewCond(syncSeg.Pointer(0), CondOffset),
		isServer: true,
	}, nil
}

// OpenCCR attaches to a channel a server has already initialized (spec §4.2:
// "clients attach with open"). Callers must ensure the server has finished
// CreateCCR first — start-order coordination is external to this package
// (spec §4.2).
func OpenCCR(channel string) (*CCR, error) {
	syncSeg, err := shm.Open(syncName(channel), SyncRegionSize)
	if err != nil {
		return nil, fmt.Errorf("rendezvous: open sync region: %w", err)
	}
	slotSeg, err := shm.Open(channel, SlotRegionSize)
	if err != nil {
		syncSeg.Close()
		return nil, fmt.Errorf("rendezvous: open slot region: %w", err)
	}
	return &CCR{
		channel: channel,
		syncSeg: syncSeg,
		slotSeg: slotSeg,
		Mutex:   NewMutex(syncSeg.Pointer(0), MutexOffset),
		Cond:    NewCond(syncSeg.Pointer(0), CondOffset),
	}, nil
}

// Close unmaps both regions. Only the server (the one that called
// CreateCCR) additionally unlinks their names — spec §5: "an implementation
// must pick and document exactly one unlinker per name", and here that's
// the server, at shutdown.
func (c *CCR) Close() error {
	err1 := c.slotSeg.Close()
	err2 := c.syncSeg.Close()
	if c.isServer {
		shm.Unlink(c.channel)
		shm.Unlink(syncName(c.channel))
	}
	if err1 != nil {
		return err1
	}
	return err2
}

// IsIdle reports whether the slot is idle: slot.id[0] == 0 (spec §3, I1).
// Must be called with Mutex held.
func (c *CCR) IsIdle() bool {
	return c.slotSeg.Read(0, 1)[0] == 0
}

// ReadSlot reads the full slot contents. Must be called with Mutex held.
func (c *CCR) ReadSlot() (id string, size uint64) {
	idRaw := c.slotSeg.Read(0, SlotIDSize)
	n := 0
	for n < len(idRaw) && idRaw[n] != 0 {
		n++
	}
	id = string(idRaw[:n])
	size = binary.LittleEndian.Uint64(c.slotSeg.Read(slotSizeOffset, slotSizeWidth))
	return
}

// WriteSlot publishes a call id and packet size into the slot, transitioning
// it out of idle. Must be called with Mutex held (spec §4.2 step 4).
func (c *CCR) WriteSlot(id string, size uint64) {
	idBuf := make([]byte, SlotIDSize)
	copy(idBuf, id) // left-aligned, zero-padded (spec §4.2 "Tie-breaks")
	c.slotSeg.Write(0, idBuf)
	sizeBuf := make([]byte, slotSizeWidth)
	binary.LittleEndian.PutUint64(sizeBuf, size)
	c.slotSeg.Write(slotSizeOffset, sizeBuf)
}

// ClearSlot resets the slot to idle by zeroing the whole slot region (spec
// §4.2 step 4: "write the raw value ... zero the slot, broadcast V"). Must
// be called with Mutex held.
func (c *CCR) ClearSlot() {
	c.slotSeg.Write(0, make([]byte, SlotRegionSize))
}
