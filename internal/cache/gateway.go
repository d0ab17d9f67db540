package cache

import (
	"context"

	"go.uber.org/zap"

	"tilegate/internal/metrics"
)

// Gateway fronts an optional Store for one tile layer. Store failures are
// never fatal to a tile request: a failed lookup is served as a miss and a
// failed write leaves the freshly fetched tile unaffected. Failures are
// logged and counted so a degraded cache stays observable.
type Gateway struct {
	store   Store
	layer   string
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewGateway wraps store for the named layer. A nil store disables caching:
// every Lookup misses and every Store call is a no-op.
func NewGateway(store Store, layer string, logger *zap.Logger, m *metrics.Metrics) *Gateway {
	return &Gateway{
		store:   store,
		layer:   layer,
		logger:  logger,
		metrics: m,
	}
}

// Lookup returns the cached payload for key, reporting a miss when the key is
// absent or the underlying store fails.
func (g *Gateway) Lookup(ctx context.Context, key string) ([]byte, bool) {
	if g.store == nil {
		return nil, false
	}

	data, ok, err := g.store.Get(ctx, key)
	if err != nil {
		g.logger.Warn("cache lookup failed, treating as miss",
			zap.String("layer", g.layer),
			zap.String("key", key),
			zap.Error(err),
		)
		g.metrics.CacheErrors.WithLabelValues(g.layer, "lookup").Inc()
		return nil, false
	}

	return data, ok
}

// Store writes the payload for key, swallowing store failures.
func (g *Gateway) Store(ctx context.Context, key string, value []byte) {
	if g.store == nil {
		return
	}

	if err := g.store.Put(ctx, key, value); err != nil {
		g.logger.Warn("failed to write cache entry",
			zap.String("layer", g.layer),
			zap.String("key", key),
			zap.Error(err),
		)
		g.metrics.CacheErrors.WithLabelValues(g.layer, "store").Inc()
	}
}
