package redisclient

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLocker(t *testing.T, wait time.Duration) (Locker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisLocker(client, 5*time.Second, wait), mr
}

func TestRedisLockerReleasesKey(t *testing.T) {
	locker, mr := newTestLocker(t, 0)

	err := locker.WithLock(context.Background(), "slot:Clinic-A:2026-10-16T09:00", func(ctx context.Context) error {
		assert.True(t, mr.Exists("lock:slot:Clinic-A:2026-10-16T09:00"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("lock:slot:Clinic-A:2026-10-16T09:00"))
}

func TestRedisLockerContendedWithoutWait(t *testing.T) {
	locker, mr := newTestLocker(t, 0)
	require.NoError(t, mr.Set("lock:busy", "someone-else"))

	called := false
	err := locker.WithLock(context.Background(), "busy", func(ctx context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrLockNotAcquired)
	assert.False(t, called)
	// a foreign token is never deleted
	got, _ := mr.Get("lock:busy")
	assert.Equal(t, "someone-else", got)
}

func TestRedisLockerPropagatesCallbackError(t *testing.T) {
	locker, mr := newTestLocker(t, 0)
	boom := errors.New("boom")

	err := locker.WithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.False(t, mr.Exists("lock:k"))
}

func TestRedisLockerWaitsForRelease(t *testing.T) {
	locker, _ := newTestLocker(t, 2*time.Second)

	var inside int32
	var maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := locker.WithLock(context.Background(), "shared", func(ctx context.Context) error {
				n := atomic.AddInt32(&inside, 1)
				for {
					m := atomic.LoadInt32(&maxInside)
					if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
						break
					}
				}
				time.Sleep(5 * time.Millisecond)
				atomic.AddInt32(&inside, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLocalLockerSerializes(t *testing.T) {
	locker := NewLocalLocker()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
				v := counter
				time.Sleep(time.Microsecond)
				counter = v + 1
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, counter)
	assert.Empty(t, locker.locks)
}

func TestLocalLockerHonoursContext(t *testing.T) {
	locker := NewLocalLocker()
	hold := make(chan struct{})
	entered := make(chan struct{})

	go func() {
		_ = locker.WithLock(context.Background(), "k", func(ctx context.Context) error {
			close(entered)
			<-hold
			return nil
		})
	}()
	<-entered

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := locker.WithLock(ctx, "k", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(hold)
}

func TestWithLocksSortsAndDedupes(t *testing.T) {
	rec := &recordingLocker{}
	err := WithLocks(context.Background(), rec, []string{"b", "a", "b"}, func(ctx context.Context) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, rec.order)
}

type recordingLocker struct {
	order []string
}

func (r *recordingLocker) WithLock(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	r.order = append(r.order, key)
	return fn(ctx)
}
