// Package protector composes the circuit breaker, time limiter, and
// fallback into a single guarded call path, keyed by operation name.
//
// For every call the protector resolves the operation's breaker and limiter
// through its registry (created with defaults on first use), asks the
// breaker for admission, runs the operation under the limiter's deadline,
// records the outcome, and falls back when protection triggers:
//
//	value, err := protector.Do(ctx, p, "greet",
//	    func(ctx context.Context) (string, error) {
//	        return svc.Greet(ctx, name)
//	    },
//	    func(ctx context.Context, cause error) (string, error) {
//	        return "Hello world! this is fallback", nil
//	    })
//
// Rejections and failures never reach the caller while a fallback is
// available; a failing fallback always does.
package protector
