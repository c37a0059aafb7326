package middleware

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
)

// RetryMiddleware retries a call up to maxRetries times, with exponential
// backoff starting at baseDelay, as long as the failure is transient —
// a timed-out or rate-limited attempt is worth retrying, anything else
// (a bad-args or not-found result) is returned immediately since retrying
// it would only reproduce the same failure.
func RetryMiddleware(maxRetries int, baseDelay time.Duration) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, call *Call) *Result {
			result := next(ctx, call)
			for i := 0; i < maxRetries; i++ {
				if result.Err == nil {
					return result
				}
				if !isRetryable(result.Err) {
					return result
				}
				logrus.WithFields(logrus.Fields{
					"method":  call.MethodName,
					"attempt": i + 1,
					"error":   result.Err,
				}).Warn("retrying call")
				time.Sleep(baseDelay * time.Duration(uint(1)<<uint(i)))
				result = next(ctx, call)
			}
			return result
		}
	}
}

func isRetryable(err error) bool {
	return errors.Is(err, ErrTimedOut) || errors.Is(err, ErrRateLimited)
}
