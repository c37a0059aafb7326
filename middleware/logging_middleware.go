package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// LoggingMiddleware records the method name, duration, and any status/error
// for each call, using structured fields instead of the teacher's
// log.Printf — the same elapsed-time-around-next shape, logged with logrus.
func LoggingMiddleware(log *logrus.Logger) Middleware {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) *Result {
			start := time.Now()

			result := next(ctx, call)

			entry := log.WithFields(logrus.Fields{
				"method":   call.MethodName,
				"duration": time.Since(start),
				"status":   result.Status.String(),
			})
			if result.Err != nil {
				entry.WithError(result.Err).Warn("call completed with error")
			} else {
				entry.Debug("call completed")
			}
			return result
		}
	}
}
