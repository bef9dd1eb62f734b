// Package lock serializes turn-mutating work per game session.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/avvvet/wordclash-services/internal/cache"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// ErrTimeout is returned when the lock could not be taken within the wait budget.
var ErrTimeout = errors.New("lock: timed out waiting for session lock")

// Locker grants exclusive access to one session at a time.
// The returned release func is safe to call more than once.
type Locker interface {
	Acquire(ctx context.Context, sessionID int64) (release func(), err error)
}

// Cached is an advisory lock held in the ephemeral cache, shared by every
// service instance. The lock key carries a TTL so a crashed holder cannot
// block a session forever.
type Cached struct {
	cache cache.Cache
	ttl   time.Duration
	wait  time.Duration
	retry time.Duration
}

func NewCached(c cache.Cache, ttl, wait time.Duration) *Cached {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &Cached{cache: c, ttl: ttl, wait: wait, retry: 10 * time.Millisecond}
}

func lockKey(sessionID int64) string {
	return "lock:session:" + strconv.FormatInt(sessionID, 10)
}

// Acquire returns ErrTimeout once the wait budget is spent, or the caller's
// context error when it is cancelled first.
func (l *Cached) Acquire(parent context.Context, sessionID int64) (func(), error) {
	key := lockKey(sessionID)
	token := uuid.New().String()

	ctx, cancel := context.WithTimeout(parent, l.wait)
	defer cancel()

	backoff := l.retry
	for {
		ok, err := l.cache.SetNX(ctx, key, token, l.ttl)
		if err != nil && ctx.Err() == nil {
			return nil, fmt.Errorf("acquire session lock %d: %w", sessionID, err)
		}
		if ok {
			return l.releaser(key, token), nil
		}

		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return nil, err
			}
			return nil, ErrTimeout
		case <-time.After(backoff):
		}
		if backoff < 200*time.Millisecond {
			backoff *= 2
		}
	}
}

func (l *Cached) releaser(key, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			released, err := l.cache.DeleteIfEquals(ctx, key, token)
			if err != nil {
				log.Warnf("release %s: %v", key, err)
				return
			}
			if !released {
				log.Warnf("release %s: lock expired before release", key)
			}
		})
	}
}

// Local is an in-process Locker for single-instance deployments and tests.
// A session's slot is dropped once nobody holds or waits for it.
type Local struct {
	mu    sync.Mutex
	slots map[int64]*slot
	wait  time.Duration
}

type slot struct {
	ch   chan struct{}
	refs int
}

func NewLocal(wait time.Duration) *Local {
	if wait <= 0 {
		wait = 3 * time.Second
	}
	return &Local{slots: make(map[int64]*slot), wait: wait}
}

func (l *Local) take(sessionID int64) *slot {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.slots[sessionID]
	if !ok {
		s = &slot{ch: make(chan struct{}, 1)}
		l.slots[sessionID] = s
	}
	s.refs++
	return s
}

func (l *Local) drop(sessionID int64, s *slot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s.refs--
	if s.refs == 0 {
		delete(l.slots, sessionID)
	}
}

func (l *Local) Acquire(ctx context.Context, sessionID int64) (func(), error) {
	s := l.take(sessionID)

	timer := time.NewTimer(l.wait)
	defer timer.Stop()

	select {
	case s.ch <- struct{}{}:
	case <-timer.C:
		l.drop(sessionID, s)
		return nil, ErrTimeout
	case <-ctx.Done():
		l.drop(sessionID, s)
		return nil, ctx.Err()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-s.ch
			l.drop(sessionID, s)
		})
	}, nil
}
