package appointment

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

var ErrProviderBusy = errors.New("provider is busy with another booking, request rejected")

// ProviderLocker serialises mutations of a single provider's calendar.
type ProviderLocker interface {
	WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error
}

// LocalLocker is an in-process ProviderLocker. Waiters queue per provider
// and give up with ErrProviderBusy when their context ends or the wait limit
// passes.
type LocalLocker struct {
	wait  time.Duration
	mu    sync.Mutex
	locks map[uuid.UUID]*localLock
}

type localLock struct {
	sem  chan struct{}
	refs int
}

func NewLocalLocker(wait time.Duration) *LocalLocker {
	return &LocalLocker{
		wait:  wait,
		locks: make(map[uuid.UUID]*localLock),
	}
}

func (l *LocalLocker) WithProviderLock(ctx context.Context, providerID uuid.UUID, fn func(ctx context.Context) error) error {
	lock := l.ref(providerID)
	defer l.unref(providerID)

	waitCtx := ctx
	if l.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, l.wait)
		defer cancel()
	}

	select {
	case lock.sem <- struct{}{}:
	case <-waitCtx.Done():
		return fmt.Errorf("%w: %v", ErrProviderBusy, waitCtx.Err())
	}
	defer func() { <-lock.sem }()

	return fn(ctx)
}

func (l *LocalLocker) ref(id uuid.UUID) *localLock {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[id]
	if !ok {
		lock = &localLock{sem: make(chan struct{}, 1)}
		l.locks[id] = lock
	}
	lock.refs++
	return lock
}

func (l *LocalLocker) unref(id uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock := l.locks[id]
	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, id)
	}
}
