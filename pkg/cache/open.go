package cache

import (
	"context"
	"fmt"
	"strings"

	"cinodeharvest/pkg/config"

	"github.com/redis/go-redis/v9"
)

// OpenStore builds the store selected by the cache configuration. The
// returned close function releases backend connections.
func OpenStore(ctx context.Context, cfg config.CacheConfig) (Store, func() error, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "disk":
		store, err := NewDiskStore(cfg.Directory)
		if err != nil {
			return nil, nil, err
		}
		return store, func() error { return nil }, nil

	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr: cfg.RedisAddr,
			DB:   cfg.RedisDB,
		})
		store := NewRedisStore(client, cfg.KeyPrefix, cfg.TTL)
		if err := store.Ping(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil

	default:
		return nil, nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}
