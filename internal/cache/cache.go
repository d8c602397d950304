// Package cache provides the live answer cache: an in-memory store for a
// single device and a Redis store for shared deployments.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrCacheMiss indicates a cache miss.
var ErrCacheMiss = errors.New("cache miss")

// Client defines the cache interface.
type Client interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	DeleteByPrefix(ctx context.Context, prefix string) error
	Close() error
}

// Options selects and configures a cache backend.
type Options struct {
	Driver     string // memory or redis
	MaxEntries int
	Redis      RedisConfig
}

// New creates the cache client selected by opts.Driver.
func New(opts Options) (Client, error) {
	switch opts.Driver {
	case "memory", "":
		return NewMemoryClient(opts.MaxEntries), nil
	case "redis":
		return NewRedisClient(opts.Redis)
	default:
		return nil, fmt.Errorf("unsupported cache driver: %s", opts.Driver)
	}
}

// Key joins key components with ':'.
func Key(parts ...string) string {
	return strings.Join(parts, ":")
}
