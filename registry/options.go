package registry

import (
	"github.com/sirupsen/logrus"

	"github.com/moduluz-io/ipc-shm/middleware"
)

// Option configures a Registry at construction time (spec.md gives new(channel)
// no config surface; these are purely additive, per SPEC_FULL §6).
type Option func(*Registry)

// WithLogger sets the logger used for slot transitions and dispatch errors.
// Defaults to logrus.StandardLogger() if not given.
func WithLogger(log *logrus.Logger) Option {
	return func(r *Registry) { r.log = log }
}

// WithRateLimit wraps every dispatch in a token-bucket admission check
// (SPEC_FULL §2.1): calls arriving faster than r per second, beyond burst,
// complete immediately with StatusDispatcherFailed instead of reaching the
// registered function.
func WithRateLimit(r float64, burst int) Option {
	return func(reg *Registry) {
		reg.middlewares = append(reg.middlewares, middleware.RateLimitMiddleware(r, burst))
	}
}

// WithMiddleware appends arbitrary middleware around dispatch. WithMiddleware
// and WithRateLimit append to the same chain in the order the options are
// given, and the first entry is the outermost layer. WithLogger adds no
// middleware.
func WithMiddleware(mw ...middleware.Middleware) Option {
	return func(reg *Registry) {
		reg.middlewares = append(reg.middlewares, mw...)
	}
}

// WithDirectory wires the optional etcd liveness heartbeat (SPEC_FULL §2.1).
// Omitted, the Registry behaves exactly per spec.md with zero etcd
// configuration. ttl is the lease TTL in seconds.
func WithDirectory(endpoints []string, ttl int64) Option {
	return func(reg *Registry) {
		reg.directoryEndpoints = endpoints
		reg.directoryTTL = ttl
	}
}
