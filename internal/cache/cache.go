// Package cache is the ephemeral key-value layer shared by the game services.
//
// Nothing stored here is authoritative. A miss is reported as ErrMiss; every
// other error means the value is unknown and callers decide whether to fail
// open or closed.
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss is returned when a key, field or member does not exist.
var ErrMiss = errors.New("cache: miss")

// ScoredMember is a sorted-set member with its score.
type ScoredMember struct {
	Member string
	Score  float64
}

// Cache is the contract of the ephemeral store. A zero ttl means no expiry.
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, keys ...string) error
	DeleteIfEquals(ctx context.Context, key, value string) (bool, error)
	Expire(ctx context.Context, key string, ttl time.Duration) error
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)
	SMembers(ctx context.Context, key string) ([]string, error)

	ZAdd(ctx context.Context, key, member string, score float64) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRangeByScore returns members with min <= score <= max, lowest first.
	// A limit <= 0 returns every match.
	ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error)
	// ZTopN returns the n highest-scored members, highest first.
	ZTopN(ctx context.Context, key string, n int64) ([]ScoredMember, error)
	ZRank(ctx context.Context, key, member string) (int64, error)

	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)

	Close() error
}

// CacheKey generates a cache key from word and language
// Format: "word:language" (e.g., "apple:en")
func CacheKey(word, language string) string {
	return strings.ToLower(strings.TrimSpace(word)) + ":" + strings.ToLower(language)
}
