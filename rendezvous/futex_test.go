package rendezvous

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestMutexMutualExclusion(t *testing.T) {
	mem := make([]byte, SyncRegionSize)
	m := NewMutex(mem, MutexOffset)

	var counter int64
	var wg sync.WaitGroup
	const goroutines = 20
	const incrementsEach = 200

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < incrementsEach; j++ {
				m.Lock()
				counter++
				m.Unlock()
			}
		}()
	}
	wg.Wait()

	if counter != goroutines*incrementsEach {
		t.Fatalf("counter = %d, want %d (lost updates indicate a broken mutex)", counter, goroutines*incrementsEach)
	}
}

func TestCondBroadcastWakesAllWaiters(t *testing.T) {
	mem := make([]byte, SyncRegionSize)
	m := NewMutex(mem, MutexOffset)
	c := NewCond(mem, CondOffset)

	const waiters = 5
	var awake int32
	var wg sync.WaitGroup
	ready := make(chan struct{}, waiters)

	for i := 0; i < waiters; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Lock()
			ready <- struct{}{}
			c.Wait(m)
			atomic.AddInt32(&awake, 1)
			m.Unlock()
		}()
	}

	for i := 0; i < waiters; i++ {
		<-ready
	}
	time.Sleep(5 * time.Millisecond) // let every goroutine reach futexWait

	m.Lock()
	c.Broadcast()
	m.Unlock()

	wg.Wait()
	if atomic.LoadInt32(&awake) != waiters {
		t.Fatalf("awake = %d, want %d", awake, waiters)
	}
}
