package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/moduluz-io/ipc-shm/wire"
)

// ErrTimedOut is returned when a call doesn't complete within TimeOutMiddleware's budget.
var ErrTimedOut = errors.New("middleware: call timed out")

// TimeOutMiddleware enforces a maximum duration for each call.
//
// Note: as in the teacher, the wrapped handler goroutine is NOT cancelled —
// on the server side this matters because the entire dispatch normally runs
// under the CCR mutex (spec §5: there are no suspension points inside
// dispatch besides the ones the base protocol already has), so this
// middleware only bounds how long the registry is willing to wait before
// giving up and marking the call DispatcherFailed; a runaway dispatcher
// still holds up the channel until it returns.
func TimeOutMiddleware(timeout time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) *Result {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			done := make(chan *Result, 1)
			go func() {
				done <- next(ctx, call)
			}()

			select {
			case result := <-done:
				return result
			case <-ctx.Done():
				return &Result{Status: wire.StatusDispatcherFailed, Err: ErrTimedOut}
			}
		}
	}
}
