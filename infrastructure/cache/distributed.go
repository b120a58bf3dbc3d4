package cache

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"
)

// DistributedCache stores JSON values in Redis, optionally fronted by a
// short-lived local copy. Every gateway instance shares the Redis side.
type DistributedCache struct {
	local     *Cache
	redis     redis.UniversalClient
	keyPrefix string
	localTTL  time.Duration
}

// NewDistributedCache wraps an existing Redis client. A zero localTTL
// disables the local layer so reads always reflect other instances' writes.
func NewDistributedCache(client redis.UniversalClient, keyPrefix string, localTTL time.Duration) *DistributedCache {
	dc := &DistributedCache{
		redis:     client,
		keyPrefix: keyPrefix,
		localTTL:  localTTL,
	}
	if localTTL > 0 {
		dc.local = NewCache(DefaultOptions())
	}
	return dc
}

func (dc *DistributedCache) key(k string) string {
	return dc.keyPrefix + k
}

// Set stores value under key. A zero ttl means no expiry.
func (dc *DistributedCache) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}

	if err := dc.redis.Set(ctx, dc.key(key), data, ttl).Err(); err != nil {
		return err
	}

	if dc.local != nil {
		dc.local.Set(key, data, dc.localTTL)
	}
	return nil
}

// Get decodes the value under key into valuePtr. It reports false when the
// key does not exist.
func (dc *DistributedCache) Get(ctx context.Context, key string, valuePtr any) (bool, error) {
	if dc.local != nil {
		if val, found := dc.local.Get(key); found {
			return true, json.Unmarshal(val.([]byte), valuePtr)
		}
	}

	data, err := dc.redis.Get(ctx, dc.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}

	if err := json.Unmarshal(data, valuePtr); err != nil {
		return false, err
	}

	if dc.local != nil {
		dc.local.Set(key, data, dc.localTTL)
	}
	return true, nil
}

func (dc *DistributedCache) Delete(ctx context.Context, key string) error {
	if dc.local != nil {
		dc.local.Delete(key)
	}
	return dc.redis.Del(ctx, dc.key(key)).Err()
}

func (dc *DistributedCache) SAdd(ctx context.Context, key string, members ...string) error {
	return dc.redis.SAdd(ctx, dc.key(key), toAny(members)...).Err()
}

func (dc *DistributedCache) SRem(ctx context.Context, key string, members ...string) error {
	return dc.redis.SRem(ctx, dc.key(key), toAny(members)...).Err()
}

// AddMember adds one member to the set at key and reports whether it was
// new. Concurrent adds of different members never lose each other.
func (dc *DistributedCache) AddMember(ctx context.Context, key, member string) (bool, error) {
	n, err := dc.redis.SAdd(ctx, dc.key(key), member).Result()
	return n == 1, err
}

// RemoveMember removes one member from the set at key and reports whether
// it was there.
func (dc *DistributedCache) RemoveMember(ctx context.Context, key, member string) (bool, error) {
	n, err := dc.redis.SRem(ctx, dc.key(key), member).Result()
	return n == 1, err
}

func (dc *DistributedCache) SMembers(ctx context.Context, key string) ([]string, error) {
	return dc.redis.SMembers(ctx, dc.key(key)).Result()
}

// Append pushes the JSON encoding of value onto the list at key.
func (dc *DistributedCache) Append(ctx context.Context, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return dc.redis.RPush(ctx, dc.key(key), data).Err()
}

// Tail decodes the last n entries of the list at key, oldest first. A
// non-positive n returns the whole list.
func (dc *DistributedCache) Tail(ctx context.Context, key string, n int64, decode func(data []byte) error) error {
	start := int64(0)
	if n > 0 {
		start = -n
	}
	items, err := dc.redis.LRange(ctx, dc.key(key), start, -1).Result()
	if err != nil {
		return err
	}
	for _, item := range items {
		if err := decode([]byte(item)); err != nil {
			return err
		}
	}
	return nil
}

// Touch records member in a sorted set scored by the given time, in
// milliseconds.
func (dc *DistributedCache) Touch(ctx context.Context, key, member string, at time.Time) error {
	return dc.redis.ZAdd(ctx, dc.key(key), redis.Z{Score: float64(at.UnixMilli()), Member: member}).Err()
}

// TouchedAt returns the time member was last touched. It reports false when
// member is not in the set.
func (dc *DistributedCache) TouchedAt(ctx context.Context, key, member string) (time.Time, bool, error) {
	score, err := dc.redis.ZScore(ctx, dc.key(key), member).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	return time.UnixMilli(int64(score)), true, nil
}

// Untouch removes member from a sorted set written by Touch.
func (dc *DistributedCache) Untouch(ctx context.Context, key, member string) error {
	return dc.redis.ZRem(ctx, dc.key(key), member).Err()
}

// TouchedBefore lists members of a sorted set whose score is older than cutoff.
func (dc *DistributedCache) TouchedBefore(ctx context.Context, key string, cutoff time.Time) ([]string, error) {
	return dc.redis.ZRangeByScore(ctx, dc.key(key), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
}

// Close releases the local layer. The Redis client is owned by the caller.
func (dc *DistributedCache) Close() {
	if dc.local != nil {
		dc.local.Close()
	}
}

func toAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
