package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultNamespace = "km:"
	scanBatch        = 100
	connectTimeout   = 5 * time.Second
)

// RedisConfig locates a Redis server. URL wins over the discrete fields.
type RedisConfig struct {
	URL       string
	Addr      string
	Password  string
	DB        int
	PoolSize  int
	Namespace string
}

func (cfg RedisConfig) options() (*redis.Options, error) {
	if cfg.URL != "" {
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		if cfg.PoolSize > 0 {
			opts.PoolSize = cfg.PoolSize
		}
		return opts, nil
	}
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}
	return &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}, nil
}

// RedisClient keeps answers in Redis so several clients behind one gateway
// share them. Every key is stored under the namespace.
type RedisClient struct {
	rdb       *redis.Client
	namespace string
}

// NewRedisClient dials Redis and fails fast when it does not answer a PING.
func NewRedisClient(cfg RedisConfig) (*RedisClient, error) {
	opts, err := cfg.options()
	if err != nil {
		return nil, err
	}
	rdb := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", opts.Addr, err)
	}

	ns := cfg.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	return &RedisClient{rdb: rdb, namespace: ns}, nil
}

func (c *RedisClient) key(k string) string { return c.namespace + k }

// Get returns the value under key, or ErrCacheMiss when Redis has none.
func (c *RedisClient) Get(ctx context.Context, key string) ([]byte, error) {
	b, err := c.rdb.Get(ctx, c.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		return nil, ErrCacheMiss
	case err != nil:
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return b, nil
}

// Set stores value under key. Redis expires it after ttl.
func (c *RedisClient) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return wrapRedis("set", key, c.rdb.Set(ctx, c.key(key), value, ttl).Err())
}

// Delete unlinks key. A missing key is not an error.
func (c *RedisClient) Delete(ctx context.Context, key string) error {
	return wrapRedis("unlink", key, c.rdb.Unlink(ctx, c.key(key)).Err())
}

// DeleteByPrefix scans the namespace and unlinks matches in batches.
func (c *RedisClient) DeleteByPrefix(ctx context.Context, prefix string) error {
	var (
		cursor uint64
		batch  []string
	)
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, c.key(prefix)+"*", scanBatch).Result()
		if err != nil {
			return wrapRedis("scan", prefix, err)
		}
		batch = append(batch, keys...)
		if len(batch) >= scanBatch || (next == 0 && len(batch) > 0) {
			if err := c.rdb.Unlink(ctx, batch...).Err(); err != nil {
				return wrapRedis("unlink", prefix, err)
			}
			batch = batch[:0]
		}
		if next == 0 {
			return nil
		}
		cursor = next
	}
}

// Close releases the connection pool.
func (c *RedisClient) Close() error {
	return c.rdb.Close()
}

func wrapRedis(op, key string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("redis %s %s: %w", op, key, err)
}
