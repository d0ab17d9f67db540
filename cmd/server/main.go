package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"tilegate/internal/cache"
	"tilegate/internal/config"
	"tilegate/internal/fetch"
	httphandlers "tilegate/internal/http"
	"tilegate/internal/loader"
	"tilegate/internal/logger"
	"tilegate/internal/metrics"
	"tilegate/internal/tile"
)

func main() {
	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer log.Sync()

	log.Info("Starting tilegate server",
		zap.Int("port", cfg.Port),
		zap.String("cache", cfg.CacheType),
		zap.Bool("offline", cfg.Offline),
	)

	store, err := cache.New(cache.Options{
		Type:          cfg.CacheType,
		FileDir:       cfg.CacheFileDir,
		MemoryTiles:   cfg.CacheMemoryTiles,
		RedisAddr:     cfg.RedisAddr,
		RedisPassword: cfg.RedisPassword,
		RedisDB:       cfg.RedisDB,
		RedisTTL:      cfg.RedisTTL,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	fetcher := fetch.NewHTTPFetcher(cfg.FetchTimeout, cfg.UserAgent)

	registry := loader.NewRegistry()
	registerLayer(registry, "raster", loader.Config{
		Layer:      "raster",
		Kind:       loader.KindRaster,
		Template:   cfg.RasterTemplate,
		Store:      store,
		Offline:    cfg.Offline,
		NoCoalesce: cfg.NoCoalesce,
		Fetcher:    fetcher,
		Logger:     log,
		Metrics:    m,
	}, log)
	if cfg.VectorTemplate != "" {
		registerLayer(registry, "vector", loader.Config{
			Layer:      "vector",
			Kind:       loader.KindVector,
			Template:   cfg.VectorTemplate,
			Store:      store,
			Offline:    cfg.Offline,
			NoCoalesce: cfg.NoCoalesce,
			Fetcher:    fetcher,
			Logger:     log,
			Metrics:    m,
		}, log)
	}

	handlers := httphandlers.New(cfg, log, registry)

	mux := http.NewServeMux()

	mux.HandleFunc("/tiles/", handlers.HandleTiles)
	mux.HandleFunc("/api/layers", handlers.HandleLayers)
	mux.HandleFunc("/api/layers/", handlers.HandleLayerRoutes)
	mux.HandleFunc("/healthz", handlers.HandleHealthz)
	mux.Handle("/metrics", promhttp.Handler())

	handler := handlers.CORSMiddleware(handlers.RequestLoggingMiddleware(mux))

	if cfg.WarmupLevels > 0 && !cfg.Offline {
		go warmupTiles(cfg.WarmupLevels, cfg.WarmupWorkers, registry, log)
	}

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: handler,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Server failed", zap.Error(err))
		}
	}()

	log.Info("Server started", zap.Int("port", cfg.Port))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server stopped")
}

func registerLayer(registry *loader.Registry, name string, cfg loader.Config, log *zap.Logger) {
	l, err := loader.New(cfg)
	if err != nil {
		log.Fatal("Failed to create loader", zap.String("layer", name), zap.Error(err))
	}
	registry.Register(name, l)
	log.Info("Registered tile layer",
		zap.String("layer", name),
		zap.String("template", cfg.Template),
	)
}

// warmupTiles prefetches the top of the tile pyramid for every layer so the
// cache is hot before the first client request.
func warmupTiles(levels int, workerLimit int, registry *loader.Registry, log *zap.Logger) {
	names := registry.Names()
	if len(names) == 0 {
		return
	}

	log.Info("Starting tile warmup", zap.Int("levels", levels), zap.Strings("layers", names))

	if workerLimit <= 0 {
		workerLimit = 1
	}

	workerChan := make(chan struct{}, workerLimit)
	var wg sync.WaitGroup

	for _, name := range names {
		ldr, ok := registry.Get(name)
		if !ok {
			continue
		}

		for z := 0; z < levels; z++ {
			side := 1 << z
			for x := 0; x < side; x++ {
				for y := 0; y < side; y++ {
					wg.Add(1)
					workerChan <- struct{}{} // Acquire worker slot

					go func(layer string, ldr *loader.Loader, key tile.Key) {
						defer wg.Done()
						defer func() { <-workerChan }() // Release worker slot

						_, err := ldr.Load(context.Background(), key)
						if err != nil {
							log.Debug("Warmup tile failed",
								zap.String("layer", layer),
								zap.Stringer("tile", key),
								zap.Error(err),
							)
						}
					}(name, ldr, tile.NewKey(z, x, y))
				}
			}
		}
	}

	wg.Wait()
	log.Info("Tile warmup completed")
}
