// Package middleware implements the onion-model middleware chain for
// ipc-shm, generalized from the teacher's TCP-request middleware to wrap a
// single shared-memory call (method name + decoded Values in, a Value/status
// result out) instead of a message.RPCMessage.
//
// Onion model execution order is unchanged from the teacher:
//
//	Chain(A, B, C)(handler)  →  A(B(C(handler)))
//
//	Call:    A.before → B.before → C.before → handler
//	Result:  handler → C.after → B.after → A.after
package middleware

import (
	"context"

	"github.com/moduluz-io/ipc-shm/wire"
)

// Call is the request side of a middleware-wrapped operation: a method name
// plus its decoded argument list. The registry uses this to wrap dispatch
// (MethodName + args decoded against the registered signature); the invoker
// uses it to wrap a single invoke attempt (MethodName + the caller's Values).
type Call struct {
	MethodName string
	Args       []wire.Value
}

// Result is the response side: either a decoded Value and Ok status, or a
// non-Ok status/error describing why the call didn't produce one.
type Result struct {
	Value  wire.Value
	Status wire.Status
	Err    error
}

// HandlerFunc is the function signature for both the business dispatch
// handler and every middleware-wrapped handler around it.
type HandlerFunc func(ctx context.Context, call *Call) *Result

// Middleware takes a handler and returns a new handler that wraps it.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain composes multiple middlewares into a single middleware. It builds
// the chain from right to left so the first middleware in the list is the
// outermost layer (executed first on call, last on result).
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
