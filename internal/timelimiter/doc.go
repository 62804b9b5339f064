// Package timelimiter bounds how long a single call may run. It races the
// operation against a deadline and unblocks the caller with ErrTimeout as
// soon as the deadline fires, without waiting for the operation to finish.
// Cancellation on timeout is advisory: the operation keeps consuming
// resources until it observes its context.
package timelimiter
