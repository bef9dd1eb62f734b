package cache

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"
)

type memEntry struct {
	str     string
	set     map[string]struct{}
	zset    map[string]float64
	hash    map[string]string
	expires time.Time
}

// Memory is a process-local Cache. It backs tests and single-instance setups.
type Memory struct {
	mu      sync.Mutex
	entries map[string]*memEntry
	now     func() time.Time
}

func NewMemory() *Memory {
	return NewMemoryWithClock(time.Now)
}

// NewMemoryWithClock evaluates TTLs against the given clock.
func NewMemoryWithClock(now func() time.Time) *Memory {
	return &Memory{
		entries: make(map[string]*memEntry),
		now:     now,
	}
}

// lookup returns the live entry for key; callers hold mu.
func (c *Memory) lookup(key string) *memEntry {
	e, ok := c.entries[key]
	if !ok {
		return nil
	}
	if !e.expires.IsZero() && !c.now().Before(e.expires) {
		delete(c.entries, key)
		return nil
	}
	return e
}

func (c *Memory) ensure(key string) *memEntry {
	e := c.lookup(key)
	if e == nil {
		e = &memEntry{}
		c.entries[key] = e
	}
	return e
}

func (c *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return c.now().Add(ttl)
}

func (c *Memory) Get(_ context.Context, key string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.set != nil || e.zset != nil || e.hash != nil {
		return "", ErrMiss
	}
	return e.str, nil
}

func (c *Memory) Set(_ context.Context, key, value string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = &memEntry{str: value, expires: c.expiry(ttl)}
	return nil
}

func (c *Memory) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookup(key) != nil {
		return false, nil
	}
	c.entries[key] = &memEntry{str: value, expires: c.expiry(ttl)}
	return true, nil
}

func (c *Memory) Delete(_ context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.entries, k)
	}
	return nil
}

func (c *Memory) DeleteIfEquals(_ context.Context, key, value string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.str != value {
		return false, nil
	}
	delete(c.entries, key)
	return true, nil
}

func (c *Memory) Expire(_ context.Context, key string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e := c.lookup(key); e != nil {
		e.expires = c.expiry(ttl)
	}
	return nil
}

func (c *Memory) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	n, _ := strconv.ParseInt(e.str, 10, 64)
	n++
	e.str = strconv.FormatInt(n, 10)
	if ttl > 0 {
		e.expires = c.expiry(ttl)
	}
	return n, nil
}

func (c *Memory) SAdd(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	if e.set == nil {
		e.set = make(map[string]struct{})
	}
	for _, m := range members {
		e.set[m] = struct{}{}
	}
	return nil
}

func (c *Memory) SRem(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.set == nil {
		return nil
	}
	for _, m := range members {
		delete(e.set, m)
	}
	if len(e.set) == 0 {
		delete(c.entries, key)
	}
	return nil
}

func (c *Memory) SIsMember(_ context.Context, key, member string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.set == nil {
		return false, nil
	}
	_, ok := e.set[member]
	return ok, nil
}

func (c *Memory) SMembers(_ context.Context, key string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.set == nil {
		return []string{}, nil
	}
	out := make([]string, 0, len(e.set))
	for m := range e.set {
		out = append(out, m)
	}
	sort.Strings(out)
	return out, nil
}

func (c *Memory) ZAdd(_ context.Context, key, member string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	if e.zset == nil {
		e.zset = make(map[string]float64)
	}
	e.zset[member] = score
	return nil
}

func (c *Memory) ZRem(_ context.Context, key string, members ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.zset == nil {
		return nil
	}
	for _, m := range members {
		delete(e.zset, m)
	}
	if len(e.zset) == 0 {
		delete(c.entries, key)
	}
	return nil
}

// sortedLocked returns the sorted set ordered by score then member, as redis does.
func (c *Memory) sortedLocked(key string) []ScoredMember {
	e := c.lookup(key)
	if e == nil || e.zset == nil {
		return nil
	}
	out := make([]ScoredMember, 0, len(e.zset))
	for m, s := range e.zset {
		out = append(out, ScoredMember{Member: m, Score: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score < out[j].Score
		}
		return out[i].Member < out[j].Member
	})
	return out
}

func (c *Memory) ZRangeByScore(_ context.Context, key string, min, max float64, limit int64) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []string{}
	for _, z := range c.sortedLocked(key) {
		if z.Score < min || z.Score > max {
			continue
		}
		out = append(out, z.Member)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (c *Memory) ZTopN(_ context.Context, key string, n int64) ([]ScoredMember, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	sorted := c.sortedLocked(key)
	out := []ScoredMember{}
	for i := len(sorted) - 1; i >= 0 && int64(len(out)) < n; i-- {
		out = append(out, sorted[i])
	}
	return out, nil
}

func (c *Memory) ZRank(_ context.Context, key, member string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, z := range c.sortedLocked(key) {
		if z.Member == member {
			return int64(i), nil
		}
	}
	return 0, ErrMiss
}

func (c *Memory) HSet(_ context.Context, key string, fields map[string]string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.ensure(key)
	if e.hash == nil {
		e.hash = make(map[string]string)
	}
	for f, v := range fields {
		e.hash[f] = v
	}
	if ttl > 0 {
		e.expires = c.expiry(ttl)
	}
	return nil
}

func (c *Memory) HGet(_ context.Context, key, field string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || e.hash == nil {
		return "", ErrMiss
	}
	v, ok := e.hash[field]
	if !ok {
		return "", ErrMiss
	}
	return v, nil
}

func (c *Memory) HGetAll(_ context.Context, key string) (map[string]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e := c.lookup(key)
	if e == nil || len(e.hash) == 0 {
		return nil, ErrMiss
	}
	out := make(map[string]string, len(e.hash))
	for f, v := range e.hash {
		out[f] = v
	}
	return out, nil
}

func (c *Memory) Close() error {
	return nil
}
