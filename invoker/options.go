package invoker

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moduluz-io/ipc-shm/middleware"
)

// Option configures an Invoker at construction time.
type Option func(*Invoker)

// WithLogger sets the logger used for call tracing. Defaults to
// logrus.StandardLogger() if not given.
func WithLogger(log *logrus.Logger) Option {
	return func(inv *Invoker) { inv.log = log }
}

// WithCallTimeout bounds the invoker's step-5 wait (SPEC_FULL §5.1). Zero
// (the default) reproduces the base protocol exactly: an unbounded wait.
func WithCallTimeout(d time.Duration) Option {
	return func(inv *Invoker) { inv.callTimeout = d }
}

// WithMiddleware wraps every Invoke call with the given middleware chain
// (logging, retry, etc.), applied in the order given.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(inv *Invoker) {
		inv.middlewares = append(inv.middlewares, mw...)
	}
}
