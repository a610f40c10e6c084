package strategy

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"
)

// DefaultKeyPrefix namespaces matrix keys in Redis.
const DefaultKeyPrefix = "posture:matrix:"

const scanBatch = 100

// RedisCache stores matrices as JSON in Redis with a TTL.
type RedisCache struct {
	client redis.UniversalClient
	ttl    time.Duration
	prefix string
}

// NewRedisCache creates a RedisCache. An empty prefix uses DefaultKeyPrefix;
// a zero ttl stores keys without expiry.
func NewRedisCache(client redis.UniversalClient, ttl time.Duration, prefix string) *RedisCache {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &RedisCache{client: client, ttl: ttl, prefix: prefix}
}

func (c *RedisCache) key(assessmentID string) string {
	return c.prefix + assessmentID
}

// Get implements Cache. A missing key is a miss, not an error.
func (c *RedisCache) Get(ctx context.Context, assessmentID string) (*Matrix, bool, error) {
	data, err := c.client.Get(ctx, c.key(assessmentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "strategy: redis get %s", assessmentID)
	}
	m, err := decode(data)
	if err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, m *Matrix) error {
	data, err := encode(m)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, c.key(m.AssessmentID), data, c.ttl).Err(); err != nil {
		return eris.Wrapf(err, "strategy: redis set %s", m.AssessmentID)
	}
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, assessmentID string) error {
	if err := c.client.Del(ctx, c.key(assessmentID)).Err(); err != nil {
		return eris.Wrapf(err, "strategy: redis del %s", assessmentID)
	}
	return nil
}

// Clear removes every key under the prefix.
func (c *RedisCache) Clear(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, c.prefix+"*", scanBatch).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return eris.Wrap(err, "strategy: redis scan")
	}
	for start := 0; start < len(keys); start += scanBatch {
		end := min(start+scanBatch, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return eris.Wrap(err, "strategy: redis del")
		}
	}
	return nil
}

// Ping checks the connection.
func (c *RedisCache) Ping(ctx context.Context) error {
	return eris.Wrap(c.client.Ping(ctx).Err(), "strategy: redis ping")
}
