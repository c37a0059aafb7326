package shm

import "testing"

func TestBufferPoolGetGrowsToMinCap(t *testing.T) {
	p := NewBufferPool(2, 16)
	buf := p.Get()
	if cap(buf) < 16 {
		t.Fatalf("expect cap >= 16, got %d", cap(buf))
	}
	if len(buf) != 0 {
		t.Fatalf("expect len 0, got %d", len(buf))
	}
}

func TestBufferPoolReusesPutBuffers(t *testing.T) {
	p := NewBufferPool(1, 8)
	buf := make([]byte, 0, 32)
	p.Put(buf)

	got := p.Get()
	if cap(got) != 32 {
		t.Fatalf("expect reused buffer with cap 32, got %d", cap(got))
	}
}

func TestBufferPoolDropsBeyondCapacity(t *testing.T) {
	p := NewBufferPool(1, 8)
	p.Put(make([]byte, 0, 8))
	p.Put(make([]byte, 0, 8)) // dropped, pool already full

	<-p.bufs // drain the one slot
	select {
	case <-p.bufs:
		t.Fatal("expected only one buffer to have been retained")
	default:
	}
}
