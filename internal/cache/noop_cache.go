package cache

import "context"

// NoopCache is a Store that caches nothing: every Get misses and every Put is
// dropped. The loader behaves identically with or without it, aside from
// performance.
type NoopCache struct{}

func NewNoopCache() *NoopCache {
	return &NoopCache{}
}

func (c *NoopCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, nil
}

func (c *NoopCache) Put(ctx context.Context, key string, value []byte) error {
	return nil
}

func (c *NoopCache) Clear(ctx context.Context) error {
	return nil
}
