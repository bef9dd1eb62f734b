package cache

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// compare-and-delete, used to release locks owned by a token
var deleteIfEquals = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	client *redis.Client
}

func NewRedis(redisURL string) (*Redis, error) {
	// Parse redis URL (redis://host:port or redis://host:port/db)
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Infof("connected to redis at %s", opts.Addr)
	return &Redis{client: client}, nil
}

// NewRedisFromClient wraps an existing client.
func NewRedisFromClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (c *Redis) Close() error {
	return c.client.Close()
}

func (c *Redis) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	return val, miss(err)
}

func (c *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *Redis) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return c.client.SetNX(ctx, key, value, ttl).Result()
}

func (c *Redis) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Redis) DeleteIfEquals(ctx context.Context, key, value string) (bool, error) {
	n, err := deleteIfEquals.Run(ctx, c.client, []string{key}, value).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (c *Redis) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return c.client.Expire(ctx, key, ttl).Err()
}

func (c *Redis) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()

	incr := pipe.Incr(ctx, key)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}

	return incr.Val(), nil
}

func (c *Redis) SAdd(ctx context.Context, key string, members ...string) error {
	return c.client.SAdd(ctx, key, toArgs(members)...).Err()
}

func (c *Redis) SRem(ctx context.Context, key string, members ...string) error {
	return c.client.SRem(ctx, key, toArgs(members)...).Err()
}

func (c *Redis) SIsMember(ctx context.Context, key, member string) (bool, error) {
	return c.client.SIsMember(ctx, key, member).Result()
}

func (c *Redis) SMembers(ctx context.Context, key string) ([]string, error) {
	return c.client.SMembers(ctx, key).Result()
}

func (c *Redis) ZAdd(ctx context.Context, key, member string, score float64) error {
	return c.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err()
}

func (c *Redis) ZRem(ctx context.Context, key string, members ...string) error {
	return c.client.ZRem(ctx, key, toArgs(members)...).Err()
}

func (c *Redis) ZRangeByScore(ctx context.Context, key string, min, max float64, limit int64) ([]string, error) {
	by := &redis.ZRangeBy{Min: scoreBound(min), Max: scoreBound(max)}
	if limit > 0 {
		by.Count = limit
	}
	return c.client.ZRangeByScore(ctx, key, by).Result()
}

func (c *Redis) ZTopN(ctx context.Context, key string, n int64) ([]ScoredMember, error) {
	if n <= 0 {
		return nil, nil
	}
	zs, err := c.client.ZRevRangeWithScores(ctx, key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}
	out := make([]ScoredMember, 0, len(zs))
	for _, z := range zs {
		out = append(out, ScoredMember{Member: fmt.Sprint(z.Member), Score: z.Score})
	}
	return out, nil
}

func (c *Redis) ZRank(ctx context.Context, key, member string) (int64, error) {
	rank, err := c.client.ZRank(ctx, key, member).Result()
	return rank, miss(err)
}

func (c *Redis) HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if len(fields) == 0 {
		return nil
	}
	pipe := c.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (c *Redis) HGet(ctx context.Context, key, field string) (string, error) {
	val, err := c.client.HGet(ctx, key, field).Result()
	return val, miss(err)
}

func (c *Redis) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	vals, err := c.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, err
	}
	if len(vals) == 0 {
		return nil, ErrMiss
	}
	return vals, nil
}

func miss(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrMiss
	}
	return err
}

func toArgs(members []string) []interface{} {
	args := make([]interface{}, len(members))
	for i, m := range members {
		args[i] = m
	}
	return args
}

func scoreBound(v float64) string {
	switch {
	case math.IsInf(v, -1):
		return "-inf"
	case math.IsInf(v, 1):
		return "+inf"
	default:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
}
