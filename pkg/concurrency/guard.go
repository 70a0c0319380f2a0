package concurrency

import (
	"context"
	"errors"
	"sync"
)

var ErrBusy = errors.New("another transfer is already in progress")

// ConcurrencyGuard admits at most one task at a time. A second caller gets
// ErrBusy immediately instead of queueing.
type ConcurrencyGuard struct {
	mu     sync.Mutex
	isBusy bool
}

func NewConcurrencyGuard() *ConcurrencyGuard {
	return &ConcurrencyGuard{}
}

func (g *ConcurrencyGuard) tryAcquire() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.isBusy {
		return false
	}
	g.isBusy = true
	return true
}

func (g *ConcurrencyGuard) release() {
	g.mu.Lock()
	g.isBusy = false
	g.mu.Unlock()
}

func (g *ConcurrencyGuard) Execute(task func() error) error {
	if !g.tryAcquire() {
		return ErrBusy
	}
	defer g.release()
	return task()
}

// ExecuteWithContext behaves like Execute but also releases the slot when
// the task honors ctx cancellation.
func (g *ConcurrencyGuard) ExecuteWithContext(ctx context.Context, task func(context.Context) error) error {
	if !g.tryAcquire() {
		return ErrBusy
	}
	defer g.release()
	if err := ctx.Err(); err != nil {
		return err
	}
	return task(ctx)
}
