package appointment

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestLocalLocker_SerialisesPerProvider(t *testing.T) {
	l := NewLocalLocker(time.Second)
	provider := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				if n > atomic.LoadInt32(&maxInside) {
					atomic.StoreInt32(&maxInside, n)
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected one holder at a time, saw %d", maxInside)
	}
	if len(l.locks) != 0 {
		t.Errorf("expected idle locks to be dropped, %d left", len(l.locks))
	}
}

func TestLocalLocker_IndependentProviders(t *testing.T) {
	l := NewLocalLocker(50 * time.Millisecond)
	a, b := uuid.New(), uuid.New()

	err := l.WithProviderLock(context.Background(), a, func(ctx context.Context) error {
		return l.WithProviderLock(ctx, b, func(ctx context.Context) error { return nil })
	})
	if err != nil {
		t.Fatalf("expected different providers not to block each other: %v", err)
	}
}

func TestLocalLocker_WaitTimeout(t *testing.T) {
	l := NewLocalLocker(20 * time.Millisecond)
	provider := uuid.New()

	held := make(chan struct{})
	release := make(chan struct{})
	go func() {
		_ = l.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held
	defer close(release)

	ran := false
	err := l.WithProviderLock(context.Background(), provider, func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrProviderBusy) {
		t.Fatalf("expected ErrProviderBusy, got %v", err)
	}
	if ran {
		t.Error("critical section ran without the lock")
	}
}

func TestLocalLocker_PropagatesError(t *testing.T) {
	l := NewLocalLocker(time.Second)
	want := errors.New("boom")
	if err := l.WithProviderLock(context.Background(), uuid.New(), func(ctx context.Context) error { return want }); !errors.Is(err, want) {
		t.Errorf("expected callback error, got %v", err)
	}
}
