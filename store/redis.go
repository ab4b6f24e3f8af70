package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "metaspace:"

// RedisConfig describes the Redis connection shared by the space cache and presence store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// OpenRedis creates a client and pings it with a 3s timeout.
func OpenRedis(ctx context.Context, c RedisConfig) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
		PoolSize: c.PoolSize,
	})

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "ping redis %s", c.Addr)
	}
	return rdb, nil
}

func spaceKey(id string) string { return keyPrefix + "space:" + id }

// CachedSpaces is a read-through cache in front of another Finder. Entries expire after ttl so a
// space is never held indefinitely; misses are not cached. Redis errors degrade to a direct lookup.
type CachedSpaces struct {
	next Finder
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedSpaces(next Finder, rdb *redis.Client, ttl time.Duration) *CachedSpaces {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedSpaces{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedSpaces) Find(ctx context.Context, spaceID string) (Space, error) {
	key := spaceKey(spaceID)
	if raw, err := c.rdb.Get(ctx, key).Bytes(); err == nil {
		var s Space
		if json.Unmarshal(raw, &s) == nil && s.Valid() {
			return s, nil
		}
	}

	s, err := c.next.Find(ctx, spaceID)
	if err != nil {
		return Space{}, err
	}
	if raw, err := json.Marshal(s); err == nil {
		_ = c.rdb.Set(ctx, key, raw, c.ttl).Err()
	}
	return s, nil
}

// Invalidate drops a cached entry, e.g. after the space was resized.
func (c *CachedSpaces) Invalidate(ctx context.Context, spaceID string) error {
	return c.rdb.Del(ctx, spaceKey(spaceID)).Err()
}

func presenceKey(spaceID string) string { return keyPrefix + "presence:" + spaceID }

// RedisPresence keeps one set of online user ids per space. Each set expires after ttl unless
// refreshed, so a crashed process leaves no permanent entries.
type RedisPresence struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisPresence(rdb *redis.Client, ttl time.Duration) *RedisPresence {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisPresence{rdb: rdb, ttl: ttl}
}

func (p *RedisPresence) Online(ctx context.Context, spaceID, userID string) error {
	key := presenceKey(spaceID)
	_, err := p.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SAdd(ctx, key, userID)
		pipe.Expire(ctx, key, p.ttl)
		return nil
	})
	return errors.Wrapf(err, "presence online %s/%s", spaceID, userID)
}

func (p *RedisPresence) Offline(ctx context.Context, spaceID, userID string) error {
	err := p.rdb.SRem(ctx, presenceKey(spaceID), userID).Err()
	return errors.Wrapf(err, "presence offline %s/%s", spaceID, userID)
}

// Refresh extends the expiry of every listed space.
func (p *RedisPresence) Refresh(ctx context.Context, spaceIDs []string) error {
	if len(spaceIDs) == 0 {
		return nil
	}
	_, err := p.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range spaceIDs {
			pipe.Expire(ctx, presenceKey(id), p.ttl)
		}
		return nil
	})
	return errors.Wrap(err, "presence refresh")
}

// Members returns the online users of a space as last mirrored.
func (p *RedisPresence) Members(ctx context.Context, spaceID string) ([]string, error) {
	ids, err := p.rdb.SMembers(ctx, presenceKey(spaceID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return ids, errors.Wrapf(err, "presence members %s", spaceID)
}
