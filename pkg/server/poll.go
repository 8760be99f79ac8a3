package server

import (
	"context"
	"errors"
	"time"
)

// ErrPollTimeout is returned by PollUntil when the condition never held.
var ErrPollTimeout = errors.New("server: poll timed out")

// PollUntil checks cond every interval until it returns true, ctx ends, or
// timeout elapses. The engine does no work while a caller waits; ending the
// session on timeout is up to the caller.
func PollUntil(ctx context.Context, interval, timeout time.Duration, cond func() bool) error {
	if cond() {
		return nil
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			if cond() {
				return nil
			}
			return ErrPollTimeout
		case <-tick.C:
			if cond() {
				return nil
			}
		}
	}
}
