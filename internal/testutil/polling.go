// Package testutil provides helpers for tests that wait on event-loop and
// idle-queue driven work.
package testutil

import (
	"context"
	"fmt"
	"time"
)

// PollingInterval is the default interval between condition checks.
const PollingInterval = 5 * time.Millisecond

// Poll repeatedly checks condition until it holds, the timeout expires or
// ctx is done.
func Poll(ctx context.Context, condition func() bool, timeout, interval time.Duration) error {
	_, err := WaitForState(ctx, condition, func(ok bool) bool { return ok }, timeout, interval)
	if err != nil {
		return fmt.Errorf("timeout waiting for condition (threshold: %v): %w", timeout, err)
	}
	return nil
}

// WaitForState waits until getter returns a value satisfying predicate,
// returning that value.
//
//	stats, err := WaitForState(ctx, sched.Stats,
//		func(s prefetch.Stats) bool { return s.Pending == 0 },
//		time.Second, PollingInterval)
func WaitForState[T any](ctx context.Context, getter func() T, predicate func(T) bool, timeout, interval time.Duration) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		state := getter()
		if predicate(state) {
			return state, nil
		}
		select {
		case <-ctx.Done():
			return state, fmt.Errorf("last state %+v: %w", state, ctx.Err())
		case <-ticker.C:
		}
	}
}
