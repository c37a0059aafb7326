package registry_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/moduluz-io/ipc-shm/invoker"
	"github.com/moduluz-io/ipc-shm/registry"
	"github.com/moduluz-io/ipc-shm/wire"
)

func channelName(t *testing.T) string {
	return "/ipc-shm-e2e-" + t.Name()
}

func startServer(t *testing.T, channel string, register func(*registry.Registry)) *registry.Registry {
	t.Helper()
	reg, err := registry.NewRegistry(channel)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	register(reg)
	go reg.Listen()
	t.Cleanup(func() { reg.Close() })
	return reg
}

func dialInvoker(t *testing.T, channel string) *invoker.Invoker {
	t.Helper()
	inv, err := invoker.NewInvoker(channel)
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	t.Cleanup(func() { inv.Close() })
	return inv
}

func TestInvokeAddReturnsSum(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("add", wire.Signature{Return: wire.TypeInt32, Args: []wire.Type{wire.TypeInt32, wire.TypeInt32}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Int32(args[0].I32 + args[1].I32), nil
			})
	})

	inv := dialInvoker(t, ch)
	result, err := inv.Invoke("add", wire.TypeInt32, []wire.Value{wire.Int32(1), wire.Int32(2)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.I32 != 3 {
		t.Fatalf("add(1,2) = %d, want 3", result.I32)
	}
}

func TestInvokeConcatReturnsStringNoTrailingNul(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("concat", wire.Signature{Return: wire.TypeString, Args: []wire.Type{wire.TypeString, wire.TypeString}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.String(args[0].S + args[1].S), nil
			})
	})

	inv := dialInvoker(t, ch)
	result, err := inv.Invoke("concat", wire.TypeString, []wire.Value{wire.String("foo"), wire.String("bar")})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.S != "foobar" {
		t.Fatalf("concat = %q, want %q", result.S, "foobar")
	}
	if len(result.S) != 6 {
		t.Fatalf("expect no trailing NUL, len = %d", len(result.S))
	}
}

func TestInvokeNegateBool(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("negate", wire.Signature{Return: wire.TypeBool, Args: []wire.Type{wire.TypeBool}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Bool(!args[0].B), nil
			})
	})

	inv := dialInvoker(t, ch)

	result, err := inv.Invoke("negate", wire.TypeBool, []wire.Value{wire.Bool(true)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.B != false {
		t.Fatalf("negate(true) = %v, want false", result.B)
	}

	result, err = inv.Invoke("negate", wire.TypeBool, []wire.Value{wire.Bool(false)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.B != true {
		t.Fatalf("negate(false) = %v, want true", result.B)
	}
}

func TestInvokeScaleFloat64ExactEquality(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("scale", wire.Signature{Return: wire.TypeFloat64, Args: []wire.Type{wire.TypeFloat64, wire.TypeFloat64}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Float64(args[0].F64 * args[1].F64), nil
			})
	})

	inv := dialInvoker(t, ch)
	result, err := inv.Invoke("scale", wire.TypeFloat64, []wire.Value{wire.Float64(2.5), wire.Float64(4.0)})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.F64 != 10.0 {
		t.Fatalf("scale(2.5, 4.0) = %v, want 10.0", result.F64)
	}
}

func TestInvokePingVoidReturn(t *testing.T) {
	ch := channelName(t)
	pinged := false
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("ping", wire.Signature{Return: wire.TypeVoid, Args: nil},
			func(args []wire.Value) (wire.Value, error) {
				pinged = true
				return wire.Value{Tag: wire.TypeVoid}, nil
			})
	})

	inv := dialInvoker(t, ch)
	result, err := inv.Invoke("ping", wire.TypeVoid, nil)
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.Tag != wire.TypeVoid {
		t.Fatalf("expect void return, got tag %v", result.Tag)
	}
	if !pinged {
		t.Fatal("expect dispatcher to have run")
	}
}

func TestTwoConcurrentClientsBothReturnSum(t *testing.T) {
	ch := channelName(t)
	seenIDs := make(map[string]struct{})
	var mu sync.Mutex

	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("add", wire.Signature{Return: wire.TypeInt32, Args: []wire.Type{wire.TypeInt32, wire.TypeInt32}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Int32(args[0].I32 + args[1].I32), nil
			})
	})

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			inv := dialInvoker(t, ch)
			result, err := inv.Invoke("add", wire.TypeInt32, []wire.Value{wire.Int32(1), wire.Int32(2)})
			if err != nil {
				t.Errorf("Invoke: %v", err)
				return
			}
			if result.I32 != 3 {
				t.Errorf("add(1,2) = %d, want 3", result.I32)
			}
			mu.Lock()
			seenIDs[fmt.Sprintf("%p", inv)] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(seenIDs) != 2 {
		t.Fatalf("expect 2 distinct invokers to have completed, got %d", len(seenIDs))
	}
}

func TestInvokeMissingFunctionNotFound(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {})

	inv := dialInvoker(t, ch)
	_, err := inv.Invoke("missing", wire.TypeVoid, nil)
	if !errors.Is(err, invoker.ErrRemoteNotFound) {
		t.Fatalf("expect ErrRemoteNotFound, got %v", err)
	}
}

func TestInvokeArgCountMismatch(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("add", wire.Signature{Return: wire.TypeInt32, Args: []wire.Type{wire.TypeInt32, wire.TypeInt32}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Int32(args[0].I32 + args[1].I32), nil
			})
	})

	inv := dialInvoker(t, ch)
	_, err := inv.Invoke("add", wire.TypeInt32, []wire.Value{wire.Int32(1)})
	if !errors.Is(err, invoker.ErrRemoteBadArgs) {
		t.Fatalf("expect ErrRemoteBadArgs, got %v", err)
	}
}

func TestInvokeDeclaringWrongReturnTypeIsDecodeError(t *testing.T) {
	ch := channelName(t)
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("add", wire.Signature{Return: wire.TypeInt32, Args: []wire.Type{wire.TypeInt32, wire.TypeInt32}},
			func(args []wire.Value) (wire.Value, error) {
				return wire.Int32(args[0].I32 + args[1].I32), nil
			})
	})

	inv := dialInvoker(t, ch)
	// add's registered return is int32 (4 bytes); declaring float32 here is
	// still 4 bytes so it decodes without a width mismatch — this is the
	// protocol's acknowledged undetectable same-width confusion. float64 (8
	// bytes) against a 4-byte payload is the detectable case.
	_, err := inv.Invoke("add", wire.TypeFloat64, []wire.Value{wire.Int32(1), wire.Int32(2)})
	if !errors.Is(err, invoker.ErrDecodeError) {
		t.Fatalf("expect ErrDecodeError, got %v", err)
	}
}

func TestCallTimeoutAbandonsCall(t *testing.T) {
	ch := channelName(t)
	block := make(chan struct{})
	startServer(t, ch, func(reg *registry.Registry) {
		reg.Register("slow", wire.Signature{Return: wire.TypeVoid, Args: nil},
			func(args []wire.Value) (wire.Value, error) {
				<-block
				return wire.Value{Tag: wire.TypeVoid}, nil
			})
	})
	defer close(block)

	inv, err := invoker.NewInvoker(ch, invoker.WithCallTimeout(20*time.Millisecond))
	if err != nil {
		t.Fatalf("NewInvoker: %v", err)
	}
	defer inv.Close()

	_, err = inv.Invoke("slow", wire.TypeVoid, nil)
	if !errors.Is(err, invoker.ErrCallAbandoned) {
		t.Fatalf("expect ErrCallAbandoned, got %v", err)
	}
}
