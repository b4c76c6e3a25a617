package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/nimbusworks/taskgate/internal/core/ports"
)

// kvFake backs the limiter with an in-memory counter map. TTLs are evaluated
// against the injected clock so window and block expiry can be tested without
// sleeping.
type kvFake struct {
	mu       sync.Mutex
	counts   map[string]int64
	deadline map[string]time.Time
	now      func() time.Time
	fail     bool
}

func newKVFake(now func() time.Time) *kvFake {
	return &kvFake{
		counts:   make(map[string]int64),
		deadline: make(map[string]time.Time),
		now:      now,
	}
}

var errBackend = errors.New("backend unavailable")

func (f *kvFake) IncrementWindow(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if f.fail {
		return 0, 0, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	if f.counts[key] == 1 {
		f.deadline[key] = f.now().Add(window)
	}
	return f.counts[key], f.deadline[key].Sub(f.now()), nil
}

func (f *kvFake) Exists(ctx context.Context, key string) (bool, error) {
	if f.fail {
		return false, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dl, ok := f.deadline[key]
	if !ok {
		return false, nil
	}
	if f.now().After(dl) {
		delete(f.deadline, key)
		delete(f.counts, key)
		return false, nil
	}
	return true, nil
}

func (f *kvFake) TTL(ctx context.Context, key string) (time.Duration, error) {
	if f.fail {
		return 0, errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	dl, ok := f.deadline[key]
	if !ok || !f.now().Before(dl) {
		return 0, nil
	}
	return dl.Sub(f.now()), nil
}

func (f *kvFake) SetMarkerNX(ctx context.Context, key string, ttl time.Duration) error {
	if f.fail {
		return errBackend
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if dl, ok := f.deadline[key]; ok && f.now().Before(dl) {
		return nil // marker already live, keep its expiry
	}
	f.deadline[key] = f.now().Add(ttl)
	return nil
}

func (f *kvFake) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *kvFake) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return nil
}

func (f *kvFake) MSet(ctx context.Context, entries map[string][]byte, ttl time.Duration) error {
	return nil
}

func (f *kvFake) MGet(ctx context.Context, keys []string) ([][]byte, error) { return nil, nil }

func (f *kvFake) Delete(ctx context.Context, keys ...string) (int, error) { return 0, nil }

func (f *kvFake) Keys(ctx context.Context, pattern string) ([]string, error) { return nil, nil }

func (f *kvFake) Expire(ctx context.Context, key string, ttl time.Duration) error { return nil }

func (f *kvFake) FlushAll(ctx context.Context) error { return nil }

func (f *kvFake) Stats(ctx context.Context) (int64, int64, error) { return 0, 0, nil }

func (f *kvFake) Close() error { return nil }

// testClock is a settable wall clock shared between service and fake.
type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestService(t *testing.T) (*Service, *kvFake, *testClock) {
	t.Helper()
	clock := newTestClock()
	fake := newKVFake(clock.Now)
	svc := NewService(fake, "ratelimit", nil)
	svc.now = clock.Now
	return svc, fake, clock
}

func TestConsume_SequentialWithinWindow(t *testing.T) {
	svc, _, _ := newTestService(t)
	opts := ports.ConsumeOptions{Points: 3, Window: time.Minute}
	key := uuid.NewString()

	for i := 0; i < 3; i++ {
		res := svc.Consume(context.Background(), key, opts)
		if !res.Allowed {
			t.Fatalf("call %d: expected allowed", i+1)
		}
		if want := 3 - (i + 1); res.Remaining != want {
			t.Fatalf("call %d: remaining = %d, want %d", i+1, res.Remaining, want)
		}
	}

	res := svc.Consume(context.Background(), key, opts)
	if res.Allowed {
		t.Fatalf("4th call: expected rejection")
	}
	if res.Remaining != 0 {
		t.Fatalf("4th call: remaining = %d, want 0", res.Remaining)
	}
	if res.RetryAfter <= 0 || res.RetryAfter > time.Minute {
		t.Fatalf("4th call: retry after = %v, want within (0, 1m]", res.RetryAfter)
	}
}

func TestConsume_NewWindowStartsFresh(t *testing.T) {
	svc, _, clock := newTestService(t)
	opts := ports.ConsumeOptions{Points: 2, Window: time.Minute}
	key := uuid.NewString()

	svc.Consume(context.Background(), key, opts)
	svc.Consume(context.Background(), key, opts)
	if res := svc.Consume(context.Background(), key, opts); res.Allowed {
		t.Fatalf("expected rejection at end of window")
	}

	clock.Advance(time.Minute)

	res := svc.Consume(context.Background(), key, opts)
	if !res.Allowed {
		t.Fatalf("expected fresh window to allow")
	}
	if res.Remaining != 1 {
		t.Fatalf("fresh window remaining = %d, want 1", res.Remaining)
	}
}

func TestConsume_BlocksUntilExpiry(t *testing.T) {
	svc, _, clock := newTestService(t)
	opts := ports.ConsumeOptions{Points: 1, Window: time.Minute, BlockDuration: 5 * time.Minute}
	key := uuid.NewString()

	svc.Consume(context.Background(), key, opts)
	res := svc.Consume(context.Background(), key, opts)
	if res.Allowed {
		t.Fatalf("expected rejection")
	}
	if res.RetryAfter != 5*time.Minute {
		t.Fatalf("retry after = %v, want block duration", res.RetryAfter)
	}

	blocked, retry := svc.IsBlocked(context.Background(), key)
	if !blocked {
		t.Fatalf("expected key to be blocked")
	}
	if retry != 5*time.Minute {
		t.Fatalf("retry after = %v, want full cool-down of 5m", retry)
	}

	// Still blocked while the marker lives, even across window boundaries,
	// and the reported wait shrinks as the cool-down elapses.
	clock.Advance(2 * time.Minute)
	blocked, retry = svc.IsBlocked(context.Background(), key)
	if !blocked {
		t.Fatalf("expected key to stay blocked mid-cooldown")
	}
	if retry != 3*time.Minute {
		t.Fatalf("retry after = %v, want remaining cool-down of 3m", retry)
	}

	clock.Advance(4 * time.Minute)
	if blocked, _ := svc.IsBlocked(context.Background(), key); blocked {
		t.Fatalf("expected block to expire")
	}
}

func TestConsume_FailOpen(t *testing.T) {
	svc, fake, _ := newTestService(t)
	fake.fail = true

	res := svc.Consume(context.Background(), uuid.NewString(), ports.ConsumeOptions{Points: 1, Window: time.Minute})
	if !res.Allowed {
		t.Fatalf("backend outage must fail open")
	}
	if res.Remaining != 1 {
		t.Fatalf("fail-open remaining = %d, want 1", res.Remaining)
	}
	if res.RetryAfter != 0 {
		t.Fatalf("fail-open retry after = %v, want 0", res.RetryAfter)
	}
}

func TestIsBlocked_FailOpen(t *testing.T) {
	svc, fake, _ := newTestService(t)
	fake.fail = true

	if blocked, _ := svc.IsBlocked(context.Background(), uuid.NewString()); blocked {
		t.Fatalf("backend outage must read as not blocked")
	}
}

func TestConsume_ZeroWindowAllows(t *testing.T) {
	svc, fake, _ := newTestService(t)

	res := svc.Consume(context.Background(), uuid.NewString(), ports.ConsumeOptions{Points: 5})
	if !res.Allowed {
		t.Fatalf("misconfigured zero window must not reject")
	}
	if res.Remaining != 1 || res.RetryAfter != 0 {
		t.Fatalf("got %+v, want the fail-open result", res)
	}
	fake.mu.Lock()
	touched := len(fake.counts)
	fake.mu.Unlock()
	if touched != 0 {
		t.Fatalf("no window counter should be written, got %d", touched)
	}
}

func TestConsume_ConcurrentIncrementsAreExact(t *testing.T) {
	svc, fake, clock := newTestService(t)
	const n = 50
	key := uuid.NewString()
	opts := ports.ConsumeOptions{Points: n, Window: time.Minute}

	var wg sync.WaitGroup
	results := make([]ports.ConsumeResult, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = svc.Consume(context.Background(), key, opts)
		}(i)
	}
	wg.Wait()

	for i, res := range results {
		if !res.Allowed {
			t.Fatalf("call %d rejected; all %d should fit", i, n)
		}
	}

	windowKey := fmt.Sprintf("ratelimit:%s:%d", key, clock.Now().UnixMilli()/time.Minute.Milliseconds())
	fake.mu.Lock()
	count := fake.counts[windowKey]
	fake.mu.Unlock()
	if count != n {
		t.Fatalf("final window count = %d, want exactly %d", count, n)
	}
}
