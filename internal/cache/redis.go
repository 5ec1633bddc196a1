package cache

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rotisserie/eris"
)

// RedisStore implements Store on Redis using SETEX semantics.
type RedisStore struct {
	rdb *redis.Client
}

// NewRedis connects to addr and verifies the connection with PING.
func NewRedis(ctx context.Context, addr, password string, db int) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, eris.Wrapf(err, "redis: ping %s", addr)
	}
	return &RedisStore{rdb: rdb}, nil
}

func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "redis: get")
	}
	return b, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return eris.Wrap(s.rdb.Set(ctx, key, value, ttl).Err(), "redis: set")
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return eris.Wrap(s.rdb.Del(ctx, key).Err(), "redis: del")
}

func (s *RedisStore) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.rdb.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, eris.Wrap(err, "redis: ttl")
	}
	// -2 means missing; -1 means no expiry, which this package never writes.
	if d < 0 {
		return 0, false, nil
	}
	return d, true, nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
