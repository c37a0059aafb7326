package rendezvous

import (
	"testing"
	"time"
)

func channelName(t *testing.T) string {
	return "/ipc-shm-test-" + t.Name()
}

func TestCreateCCRStartsIdle(t *testing.T) {
	ch := channelName(t)
	ccr, err := CreateCCR(ch)
	if err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	defer ccr.Close()

	ccr.Mutex.Lock()
	idle := ccr.IsIdle()
	ccr.Mutex.Unlock()
	if !idle {
		t.Fatal("freshly created CCR should start idle")
	}
}

func TestWriteSlotReadSlotClearSlot(t *testing.T) {
	ch := channelName(t)
	ccr, err := CreateCCR(ch)
	if err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	defer ccr.Close()

	ccr.Mutex.Lock()
	ccr.WriteSlot("call-id-1", 99)
	id, size := ccr.ReadSlot()
	ccr.Mutex.Unlock()

	if id != "call-id-1" {
		t.Fatalf("id = %q, want call-id-1", id)
	}
	if size != 99 {
		t.Fatalf("size = %d, want 99", size)
	}

	ccr.Mutex.Lock()
	ccr.ClearSlot()
	idAfter, _ := ccr.ReadSlot()
	ccr.Mutex.Unlock()

	if idAfter != "" {
		t.Fatalf("expect idle id after clear, got %q", idAfter)
	}
}

func TestOpenCCRAttachesToExisting(t *testing.T) {
	ch := channelName(t)
	server, err := CreateCCR(ch)
	if err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	defer server.Close()

	client, err := OpenCCR(ch)
	if err != nil {
		t.Fatalf("OpenCCR: %v", err)
	}
	defer client.Close()

	server.Mutex.Lock()
	server.WriteSlot("shared", 1)
	server.Mutex.Unlock()

	client.Mutex.Lock()
	id, _ := client.ReadSlot()
	client.Mutex.Unlock()
	if id != "shared" {
		t.Fatalf("client sees id %q, want shared", id)
	}
}

func TestBroadcastWakesWaiter(t *testing.T) {
	ch := channelName(t)
	ccr, err := CreateCCR(ch)
	if err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	defer ccr.Close()

	ccr.Mutex.Lock()
	ccr.WriteSlot("pending", 1)
	ccr.Mutex.Unlock()

	woken := make(chan struct{})
	go func() {
		ccr.Mutex.Lock()
		for !ccr.IsIdle() {
			ccr.Cond.Wait(ccr.Mutex)
		}
		ccr.Mutex.Unlock()
		close(woken)
	}()

	time.Sleep(2 * time.Millisecond)
	ccr.Mutex.Lock()
	ccr.ClearSlot()
	ccr.Cond.Broadcast()
	ccr.Mutex.Unlock()

	select {
	case <-woken:
	case <-time.After(time.Second):
		t.Fatal("waiter was not woken by Broadcast")
	}
}

func TestCondWaitTimeoutExpires(t *testing.T) {
	ch := channelName(t)
	ccr, err := CreateCCR(ch)
	if err != nil {
		t.Fatalf("CreateCCR: %v", err)
	}
	defer ccr.Close()

	ccr.Mutex.Lock()
	woken := ccr.Cond.WaitTimeout(ccr.Mutex, 5*time.Millisecond)
	ccr.Mutex.Unlock()

	if woken {
		t.Fatal("expect WaitTimeout to report false with no Broadcast")
	}
}
