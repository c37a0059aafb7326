// Package rendezvous implements the Channel Control Region (spec §4.2): the
// process-shared mutex and condition variable guarding the call slot, and
// the slot layout itself.
//
// Design Notes §9 offers two ways to re-architect the source's
// pthread_mutex_t/pthread_cond_t: an FFI binding to libpthread's
// process-shared primitives, or a hand-rolled futex-based mutex/cv placed in
// the shared region. This package takes the second path — no cgo, matching
// the teacher's all-Go dependency graph — using raw SYS_FUTEX syscalls via
// golang.org/x/sys/unix, the same technique the corpus's own Go-runtime port
// uses for futex-based sleep/wake, generalized here from per-process
// addresses to ones backed by MAP_SHARED memory: Linux futexes are keyed by
// the physical page and offset backing the address, so the same futex word
// wakes waiters regardless of which process's virtual address space it was
// reached through.
package rendezvous

import (
	"sync/atomic"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

func wordAt(mem []byte, offset int) *uint32 {
	return (*uint32)(unsafe.Pointer(&mem[offset]))
}

// futexWait blocks while *addr == val, per the futex(2) contract. It returns
// on a matching wake, a value mismatch (the caller re-checks its predicate),
// or a spurious return — all three are indistinguishable to the caller by
// design, which is why every wait site in this package re-checks its
// predicate in a loop (spec §5: "spurious wakeups must not return control").
func futexWait(addr *uint32, val uint32) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWaitOp, uintptr(val), 0, 0, 0)
}

// futexWaitTimeout behaves like futexWait but returns false if d elapses
// before a wake (real or spurious). It reports true in every other case,
// leaving predicate re-checking to the caller exactly as futexWait does.
func futexWaitTimeout(addr *uint32, val uint32, d time.Duration) bool {
	ts := unix.Timespec{
		Sec:  int64(d / time.Second),
		Nsec: int64(d % time.Second),
	}
	_, _, errno := unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWaitOp, uintptr(val), uintptr(unsafe.Pointer(&ts)), 0, 0)
	return errno != unix.ETIMEDOUT
}

// futexWake wakes up to n waiters blocked on addr.
func futexWake(addr *uint32, n int) {
	unix.Syscall6(unix.SYS_FUTEX, uintptr(unsafe.Pointer(addr)), futexWakeOp, uintptr(n), 0, 0, 0)
}

// Mutex is a process-shared mutual-exclusion lock backed by a single futex
// word living in shared memory. It implements the classic three-state
// futex mutex (0 = free, 1 = locked/uncontended, 2 = locked/contended).
type Mutex struct {
	state *uint32
}

// NewMutex wraps the 4-byte word at mem[offset:offset+4] as a Mutex. The
// word must be zeroed by the server before any client attaches (spec §4.2:
// "the server initializes M and V ... and only then begins listening").
func NewMutex(mem []byte, offset int) *Mutex {
	return &Mutex{state: wordAt(mem, offset)}
}

// Lock acquires the mutex, blocking across process boundaries if needed.
func (m *Mutex) Lock() {
	if atomic.CompareAndSwapUint32(m.state, 0, 1) {
		return
	}
	for atomic.SwapUint32(m.state, 2) != 0 {
		futexWait(m.state, 2)
	}
}

// Unlock releases the mutex, waking one waiter if any were contending.
func (m *Mutex) Unlock() {
	if atomic.AddUint32(m.state, ^uint32(0)) != 0 { // decrement; new value != 0 means it was contended (was 2)
		atomic.StoreUint32(m.state, 0)
		futexWake(m.state, 1)
	}
}

// Cond is a process-shared condition variable backed by a single futex
// word (a generation counter) living in shared memory. It must always be
// used together with a Mutex held by the caller, exactly like pthread_cond_t.
type Cond struct {
	seq *uint32
}

// NewCond wraps the 4-byte word at mem[offset:offset+4] as a Cond.
func NewCond(mem []byte, offset int) *Cond {
	return &Cond{seq: wordAt(mem, offset)}
}

// Wait atomically unlocks m, blocks until Broadcast is called (or a spurious
// wakeup occurs), then re-locks m before returning. As with pthread_cond_t,
// the caller must re-check its predicate after Wait returns.
func (c *Cond) Wait(m *Mutex) {
	gen := atomic.LoadUint32(c.seq)
	m.Unlock()
	futexWait(c.seq, gen)
	m.Lock()
}

// WaitTimeout behaves like Wait but returns false if d elapses with no
// Broadcast observed (SPEC_FULL §5.1's claim-timeout mechanism). As with
// Wait, the caller must re-check its predicate regardless of the return
// value — a false return means "stop waiting", not "nothing changed".
func (c *Cond) WaitTimeout(m *Mutex, d time.Duration) bool {
	gen := atomic.LoadUint32(c.seq)
	m.Unlock()
	woken := futexWaitTimeout(c.seq, gen, d)
	m.Lock()
	return woken
}

// Broadcast wakes every waiter blocked in Wait. Per spec §5, broadcasts may
// be observed by waiters with a different role (client vs. server) than the
// broadcaster; all waiters re-check their own predicate, so this is safe.
func (c *Cond) Broadcast() {
	atomic.AddUint32(c.seq, 1)
	futexWake(c.seq, int(^uint32(0)>>1)) // INT_MAX waiters
}

// SyncRegionSize is the number of bytes a Mutex + Cond pair occupies.
const SyncRegionSize = 8 // 4 bytes mutex state + 4 bytes cond generation

// MutexOffset and CondOffset locate the two futex words within a
// SyncRegionSize-byte region.
const (
	MutexOffset = 0
	CondOffset  = 4
)
