package middleware

import (
	"context"
	"errors"

	"golang.org/x/time/rate"

	"github.com/moduluz-io/ipc-shm/wire"
)

// ErrRateLimited is returned when a call is rejected by RateLimitMiddleware.
var ErrRateLimited = errors.New("middleware: rate limit exceeded")

// RateLimitMiddleware admits calls using a token bucket: tokens refill at r
// per second up to burst, each call consumes one token, and a call arriving
// to an empty bucket is rejected without ever reaching the dispatcher.
//
// The limiter is constructed once in the outer closure and shared across
// every call through this middleware instance — constructing it per-call
// would hand every call a fresh bucket and defeat the limiting entirely.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) *Result {
			if !limiter.Allow() {
				return &Result{Status: wire.StatusDispatcherFailed, Err: ErrRateLimited}
			}
			return next(ctx, call)
		}
	}
}
