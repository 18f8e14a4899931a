package redisclient

import (
	"context"
	"errors"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// testClient connects to the Redis named by SCHEDULER_TEST_REDIS_ADDR and
// skips the test otherwise.
func testClient(t *testing.T) *redis.Client {
	t.Helper()
	addr := os.Getenv("SCHEDULER_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("SCHEDULER_TEST_REDIS_ADDR not set, skipping redis integration test")
	}
	client, err := NewRedisClient(context.Background(), Options{Addr: addr})
	if err != nil {
		t.Fatalf("connect redis: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestLockKey(t *testing.T) {
	id := uuid.MustParse("6f1c2f4e-8a52-4a3e-9b7e-2d4f5a6b7c8d")
	if got := lockKey(id); got != "lock:provider:6f1c2f4e-8a52-4a3e-9b7e-2d4f5a6b7c8d" {
		t.Errorf("unexpected lock key %q", got)
	}
}

func TestProviderLocker_ExpiredContextIsNotAcquired(t *testing.T) {
	// nothing listens here; the expired context decides the outcome
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewProviderLocker(client, time.Second, time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	<-ctx.Done()

	ran := false
	err := locker.WithProviderLock(ctx, uuid.New(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
	if ran {
		t.Error("critical section ran without the lock")
	}
}

func TestProviderLocker_Serialises(t *testing.T) {
	client := testClient(t)
	locker := NewProviderLocker(client, 5*time.Second, 5*time.Second)
	providerID := uuid.New()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			if err != nil {
				t.Errorf("WithProviderLock: %v", err)
			}
		}()
	}
	wg.Wait()

	if maxInside != 1 {
		t.Errorf("expected at most one holder, saw %d", maxInside)
	}
}

func TestProviderLocker_WaitExpires(t *testing.T) {
	client := testClient(t)
	providerID := uuid.New()

	if err := client.Set(context.Background(), lockKey(providerID), "someone-else", 2*time.Second).Err(); err != nil {
		t.Fatalf("seed lock: %v", err)
	}
	t.Cleanup(func() { client.Del(context.Background(), lockKey(providerID)) })

	locker := NewProviderLocker(client, time.Second, 100*time.Millisecond)
	err := locker.WithProviderLock(context.Background(), providerID, func(ctx context.Context) error {
		t.Error("critical section should not run")
		return nil
	})
	if !errors.Is(err, ErrLockNotAcquired) {
		t.Fatalf("expected ErrLockNotAcquired, got %v", err)
	}
}

func TestReminderQueue_PopDue(t *testing.T) {
	client := testClient(t)
	q := &ReminderQueue{client: client, key: "reminders:test:" + uuid.NewString()}
	t.Cleanup(func() { client.Del(context.Background(), q.key) })

	ctx := context.Background()
	now := time.Now()
	due := uuid.New()
	later := uuid.New()

	if err := q.ScheduleReminder(ctx, due, now.Add(-time.Minute)); err != nil {
		t.Fatalf("schedule due: %v", err)
	}
	if err := q.ScheduleReminder(ctx, later, now.Add(time.Hour)); err != nil {
		t.Fatalf("schedule later: %v", err)
	}

	ids, err := q.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue: %v", err)
	}
	if len(ids) != 1 || ids[0] != due {
		t.Fatalf("expected only %s, got %v", due, ids)
	}

	ids, err = q.PopDue(ctx, now, 10)
	if err != nil {
		t.Fatalf("PopDue again: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("expected due reminder to be claimed once, got %v", ids)
	}

	pending, err := q.Pending(ctx)
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	if pending != 1 {
		t.Errorf("expected 1 pending reminder, got %d", pending)
	}
}
