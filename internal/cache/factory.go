package cache

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Options selects and configures the Store variant built by New.
type Options struct {
	Type          string // "memory", "file", "redis" or "disabled"
	FileDir       string
	MemoryTiles   int
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// New creates a cache store based on the configured cache type.
func New(opts Options, log *zap.Logger) (Store, error) {
	switch opts.Type {
	case "memory":
		log.Info("Using memory cache", zap.Int("max_tiles", opts.MemoryTiles))
		return NewMemoryCache(opts.MemoryTiles), nil
	case "file":
		log.Info("Using file cache", zap.String("cache_dir", opts.FileDir))
		return NewFileCache(opts.FileDir)
	case "redis":
		log.Info("Using redis cache", zap.String("addr", opts.RedisAddr), zap.Duration("ttl", opts.RedisTTL))
		return NewRedisCache(opts.RedisAddr, opts.RedisPassword, opts.RedisDB, opts.RedisTTL)
	case "disabled":
		log.Info("Cache disabled")
		return NewNoopCache(), nil
	default:
		return nil, fmt.Errorf("unknown cache type: %s (supported: memory, file, redis, disabled)", opts.Type)
	}
}
