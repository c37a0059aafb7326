// Package shm implements the Shared Memory Segment (spec §4.1): a named,
// fixed-size, process-shared byte region with create-or-open, map,
// read/write-at-offset, pointer-at-offset, unmap/close, and unlink.
//
// POSIX exposes this as shm_open/ftruncate/mmap/munmap/close/shm_unlink. On
// Linux, shm_open's name mapping is a thin wrapper over a file under the
// tmpfs-backed /dev/shm namespace (the backing POSIX shared-memory mount
// point), so this package talks to /dev/shm directly via
// golang.org/x/sys/unix instead of cgo-binding libc's shm_open — the same
// syscall-level approach the corpus's own Go runtime port takes for other
// POSIX primitives it needs without cgo.
package shm

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// shmDir is the POSIX shared-memory namespace's backing directory on Linux.
const shmDir = "/dev/shm"

// Errors raised while creating or opening a segment (spec §7, Construction kind).
var (
	ErrAlreadyExists = errors.New("shm: segment already exists")
	ErrNotFound      = errors.New("shm: segment not found")
	ErrNoSpace       = errors.New("shm: failed to size segment")
	ErrMapFailed     = errors.New("shm: failed to map segment")
)

// Segment is a mapped, process-shared region of fixed size.
type Segment struct {
	name string
	size int
	fd   int
	data []byte
}

// pathFor turns a channel/call-scoped name into a filesystem path under the
// POSIX shared-memory namespace. Names must begin with "/" per spec §6
// ("Names must satisfy the host's SMS name rules, typically beginning with
// /"); pathFor accepts names with or without the leading slash for caller
// convenience and always anchors them under shmDir.
func pathFor(name string) string {
	return filepath.Join(shmDir, strings.TrimPrefix(name, "/"))
}

// Create creates a new segment, truncates it to size, and maps it read-write.
func Create(name string, size int) (*Segment, error) {
	path := pathFor(name)
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_EXCL|unix.O_RDWR, 0o666)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: %s", ErrAlreadyExists, name)
		}
		return nil, fmt.Errorf("shm: open %s: %w", name, err)
	}
	return finishCreate(name, fd, size)
}

func finishCreate(name string, fd, size int) (*Segment, error) {
	if err := unix.Ftruncate(fd, int64(size)); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %v", ErrNoSpace, name, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %v", ErrMapFailed, name, err)
	}
	return &Segment{name: name, size: size, fd: fd, data: data}, nil
}

// Open opens an existing segment and maps it read-write. It fails with
// ErrNotFound if the segment does not exist.
func Open(name string, size int) (*Segment, error) {
	path := pathFor(name)
	fd, err := unix.Open(path, unix.O_RDWR, 0o666)
	if err != nil {
		if errors.Is(err, unix.ENOENT) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("shm: open %s: %w", name, err)
	}
	data, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("%w: %s: %v", ErrMapFailed, name, err)
	}
	return &Segment{name: name, size: size, fd: fd, data: data}, nil
}

// OpenWait repeatedly calls Open until it succeeds or deadline elapses.
// Spec §4.1: "Open must retry on transient NotFound only when the caller is
// a client awaiting a server-created result region" — callers that want
// this retry loop for any other reason should not use OpenWait.
func OpenWait(name string, size int, deadline time.Time) (*Segment, error) {
	const pollInterval = 200 * time.Microsecond
	for {
		seg, err := Open(name, size)
		if err == nil {
			return seg, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, err
		}
		time.Sleep(pollInterval)
	}
}

// Name returns the segment's name.
func (s *Segment) Name() string { return s.name }

// Size returns the segment's fixed size in bytes.
func (s *Segment) Size() int { return s.size }

// boundsCheck is a fatal precondition violation per spec §4.1: out-of-bounds
// access on a shared memory region indicates a wire-format bug, not a
// recoverable runtime condition, so it panics rather than returning an error
// a caller might paper over.
func (s *Segment) boundsCheck(offset, n int) {
	if offset < 0 || n < 0 || offset+n > s.size {
		panic(fmt.Sprintf("shm: out-of-bounds access on %q: offset=%d n=%d size=%d", s.name, offset, n, s.size))
	}
}

// Write copies data into the segment at offset.
func (s *Segment) Write(offset int, data []byte) {
	s.boundsCheck(offset, len(data))
	copy(s.data[offset:], data)
}

// Read returns a copy of n bytes starting at offset.
func (s *Segment) Read(offset, n int) []byte {
	s.boundsCheck(offset, n)
	out := make([]byte, n)
	copy(out, s.data[offset:offset+n])
	return out
}

// Pointer returns the mapped byte slice starting at offset, aliasing the
// segment's backing memory directly (used by the rendezvous package to build
// process-shared sync primitives in place, where a copy would defeat the
// purpose).
func (s *Segment) Pointer(offset int) []byte {
	s.boundsCheck(offset, 0)
	return s.data[offset:]
}

// Close unmaps and closes the segment. It does not unlink the name from the
// shared-memory namespace (spec §4.1: "Destruction unmaps and closes; it
// does not unlink").
func (s *Segment) Close() error {
	var err error
	if s.data != nil {
		if e := unix.Munmap(s.data); e != nil {
			err = e
		}
		s.data = nil
	}
	if s.fd >= 0 {
		unix.Close(s.fd)
		s.fd = -1
	}
	return err
}

// Unlink removes name from the shared-memory namespace. Existing maps
// remain valid until unmapped (spec §4.1).
func Unlink(name string) error {
	if err := unix.Unlink(pathFor(name)); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("shm: unlink %s: %w", name, err)
	}
	return nil
}
