package lock

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lockers(t *testing.T) map[string]Locker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return map[string]Locker{
		"redis":  NewCached(cache.NewRedisFromClient(client), time.Second, 100*time.Millisecond),
		"memory": NewCached(cache.NewMemory(), time.Second, 100*time.Millisecond),
		"local":  NewLocal(100 * time.Millisecond),
	}
}

func TestAcquireTimesOutWhileHeld(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			release, err := l.Acquire(ctx, 7)
			require.NoError(t, err)

			_, err = l.Acquire(ctx, 7)
			assert.ErrorIs(t, err, ErrTimeout)

			other, err := l.Acquire(ctx, 8)
			require.NoError(t, err)
			other()

			release()
			release()

			again, err := l.Acquire(ctx, 7)
			require.NoError(t, err)
			again()
		})
	}
}

func TestAcquireSerializes(t *testing.T) {
	l := NewLocal(2 * time.Second)
	var inside, maxInside int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := l.Acquire(context.Background(), 1)
			if err != nil {
				t.Error(err)
				return
			}
			defer release()
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestAcquireReportsCancellation(t *testing.T) {
	for name, l := range lockers(t) {
		t.Run(name, func(t *testing.T) {
			release, err := l.Acquire(context.Background(), 9)
			require.NoError(t, err)
			defer release()

			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			_, err = l.Acquire(ctx, 9)
			assert.ErrorIs(t, err, context.Canceled)
			assert.NotErrorIs(t, err, ErrTimeout)
		})
	}
}

func TestLocalDropsIdleSlots(t *testing.T) {
	l := NewLocal(50 * time.Millisecond)
	ctx := context.Background()

	release, err := l.Acquire(ctx, 1)
	require.NoError(t, err)
	_, err = l.Acquire(ctx, 1)
	require.ErrorIs(t, err, ErrTimeout)
	assert.Len(t, l.slots, 1)

	release()
	assert.Empty(t, l.slots)

	for i := int64(0); i < 10; i++ {
		r, err := l.Acquire(ctx, i)
		require.NoError(t, err)
		r()
	}
	assert.Empty(t, l.slots)
}
