package lock

import (
	"context"
	"time"

	appErrors "github.com/noah-isme/peerobs-api/pkg/errors"
)

// Guard is a process-wide mutual-exclusion lock with a bounded acquisition
// wait. Every mutating booking operation serializes on it; reads never touch
// it. The lock is whole-store on purpose: single-school booking rates make
// per-slot sharding unnecessary.
type Guard struct {
	sem     chan struct{}
	timeout time.Duration
}

// New builds a Guard with the given acquisition timeout.
func New(timeout time.Duration) *Guard {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	g := &Guard{
		sem:     make(chan struct{}, 1),
		timeout: timeout,
	}
	g.sem <- struct{}{}
	return g
}

// Acquire blocks until the lock is held, the timeout elapses, or ctx is
// canceled. On timeout it returns ErrBusy and the caller must not proceed.
func (g *Guard) Acquire(ctx context.Context) error {
	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case <-g.sem:
		return nil
	case <-timer.C:
		return appErrors.ErrBusy
	case <-ctx.Done():
		return appErrors.Wrap(ctx.Err(), appErrors.ErrBusy.Code, appErrors.ErrBusy.Status, "request canceled while waiting for booking lock")
	}
}

// Release returns the lock. It must only be called after a successful Acquire.
func (g *Guard) Release() {
	select {
	case g.sem <- struct{}{}:
	default:
		panic("lock: release without acquire")
	}
}
