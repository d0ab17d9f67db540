package loader

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"tilegate/internal/cache"
	"tilegate/internal/decode"
	"tilegate/internal/fetch"
	"tilegate/internal/metrics"
	"tilegate/internal/source"
	"tilegate/internal/tile"
)

// ErrOffline is returned when offline mode is active and the requested tile
// is not in the cache. No network attempt is made in that case.
var ErrOffline = errors.New("tile unavailable offline")

const defaultUserAgent = "tilegate/1.0"

// Kind selects the decoder variant of a loader.
type Kind int

const (
	KindRaster Kind = iota
	KindVector
)

// Config describes a tile layer. Zero values give sane defaults: no cache,
// online, coalescing enabled, HTTP fetcher with a 30 second timeout.
type Config struct {
	// Layer names the loader in logs and metrics.
	Layer string
	// Kind selects raster (PNG/JPEG/WebP) or vector (MVT) decoding.
	Kind Kind
	// Template is the initial URL template, with {z}/{x}/{y} placeholders.
	Template string
	// Params is the initial ordered parameter set.
	Params []source.Param
	// Store is the persistent cache; nil disables caching.
	Store cache.Store
	// Offline starts the loader in offline mode.
	Offline bool
	// NoCoalesce disables deduplication of concurrent identical requests.
	NoCoalesce bool
	// Fetcher overrides the HTTP transport, mainly for tests.
	Fetcher fetch.Fetcher
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Metrics defaults to an unregistered (invisible) instrument set.
	Metrics *metrics.Metrics
}

// Loader resolves tile keys into decoded tiles: build URL from the current
// source snapshot, check the cache, fetch over the network, decode, store.
// The fetch target can be reconfigured at any time without disturbing
// requests already in flight.
type Loader struct {
	layer    string
	source   *source.Source
	cache    *cache.Gateway
	fetcher  fetch.Fetcher
	decoder  decode.Decoder
	offline  atomic.Bool
	coalesce bool
	flights  singleflight.Group
	logger   *zap.Logger
	metrics  *metrics.Metrics
}

func New(cfg Config) (*Loader, error) {
	var decoder decode.Decoder
	switch cfg.Kind {
	case KindRaster:
		decoder = decode.NewRasterDecoder()
	case KindVector:
		decoder = decode.NewVectorDecoder()
	default:
		return nil, fmt.Errorf("unknown loader kind: %d", cfg.Kind)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.New(prometheus.NewRegistry())
	}
	fetcher := cfg.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewHTTPFetcher(30*time.Second, defaultUserAgent)
	}

	src := source.New(cfg.Template)
	if len(cfg.Params) > 0 {
		src.SetParameters(cfg.Params)
	}

	l := &Loader{
		layer:    cfg.Layer,
		source:   src,
		cache:    cache.NewGateway(cfg.Store, cfg.Layer, logger, m),
		fetcher:  fetcher,
		decoder:  decoder,
		coalesce: !cfg.NoCoalesce,
		logger:   logger,
		metrics:  m,
	}
	l.offline.Store(cfg.Offline)
	return l, nil
}

// SetTemplate atomically replaces the URL template. In-flight requests keep
// the snapshot they started with.
func (l *Loader) SetTemplate(template string) {
	l.source.SetTemplate(template)
}

// AddParameter inserts or overwrites a single query parameter.
func (l *Loader) AddParameter(name, value string) {
	l.source.AddParameter(name, value)
}

// SetParameters replaces the whole parameter set.
func (l *Loader) SetParameters(params []source.Param) {
	l.source.SetParameters(params)
}

// RemoveParameter deletes a parameter; absent names are a no-op.
func (l *Loader) RemoveParameter(name string) {
	l.source.RemoveParameter(name)
}

// ClearParameters removes all parameters.
func (l *Loader) ClearParameters() {
	l.source.ClearParameters()
}

// SetOffline toggles offline mode. The flag is read fresh by every request
// before it would touch the network, so toggling only affects requests that
// have not yet passed their cache check.
func (l *Loader) SetOffline(offline bool) {
	l.offline.Store(offline)
}

func (l *Loader) Offline() bool {
	return l.offline.Load()
}

// Snapshot returns the current fetch configuration.
func (l *Loader) Snapshot() source.Snapshot {
	return l.source.Snapshot()
}

// URL builds the request URL a tile would be fetched from right now.
func (l *Loader) URL(key tile.Key) string {
	return l.source.Snapshot().URL(key)
}

// Load resolves a tile. The returned error is ErrOffline, a *fetch.Error or
// a *decode.Error; cache trouble never fails a request.
func (l *Loader) Load(ctx context.Context, key tile.Key) (decode.Tile, error) {
	start := time.Now()
	defer func() {
		l.metrics.LoadDuration.WithLabelValues(l.layer).Observe(time.Since(start).Seconds())
	}()

	// One snapshot covers both the cache key and the fetch target, so a
	// concurrent reconfiguration can never mix old and new state within a
	// single request.
	url := l.source.Snapshot().URL(key)

	if !l.coalesce {
		return l.load(ctx, key, url)
	}

	// Concurrent requests for the same URL share one pipeline pass. The
	// shared pass is detached from any single caller's context so one
	// cancelled tile does not abort the others; each caller still returns
	// as soon as its own context is done.
	ch := l.flights.DoChan(url, func() (interface{}, error) {
		return l.load(context.WithoutCancel(ctx), key, url)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(decode.Tile), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *Loader) load(ctx context.Context, key tile.Key, url string) (decode.Tile, error) {
	if data, ok := l.cache.Lookup(ctx, url); ok {
		l.metrics.CacheHits.WithLabelValues(l.layer).Inc()
		l.logger.Debug("cache hit",
			zap.String("layer", l.layer),
			zap.Stringer("tile", key),
			zap.String("url", url),
		)
		return l.decodeTile(key, data)
	}
	l.metrics.CacheMisses.WithLabelValues(l.layer).Inc()

	if l.offline.Load() {
		l.metrics.OfflineMisses.WithLabelValues(l.layer).Inc()
		return nil, ErrOffline
	}

	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		l.metrics.Fetches.WithLabelValues(l.layer, fetchOutcome(err)).Inc()
		return nil, err
	}
	l.metrics.Fetches.WithLabelValues(l.layer, "ok").Inc()
	l.logger.Info("loaded tile from network",
		zap.String("layer", l.layer),
		zap.Stringer("tile", key),
		zap.String("url", url),
		zap.Int("bytes", len(data)),
	)

	decoded, err := l.decodeTile(key, data)
	if err != nil {
		// Malformed payloads must not poison the cache
		return nil, err
	}

	// A store that has begun completes even if the request is cancelled,
	// so the cache never holds a half-written entry.
	l.cache.Store(context.WithoutCancel(ctx), url, data)

	return decoded, nil
}

func (l *Loader) decodeTile(key tile.Key, data []byte) (decode.Tile, error) {
	decoded, err := l.decoder.Decode(data)
	if err != nil {
		l.metrics.DecodeFailures.WithLabelValues(l.layer).Inc()
		l.logger.Warn("failed to decode tile",
			zap.String("layer", l.layer),
			zap.Stringer("tile", key),
			zap.Error(err),
		)
		return nil, err
	}
	return decoded, nil
}

func fetchOutcome(err error) string {
	var fe *fetch.Error
	if errors.As(err, &fe) && fe.NotFound() {
		return "not_found"
	}
	return "error"
}
