package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port             int
	LogLevel         string
	CacheType        string
	CacheMemoryTiles int
	CacheFileDir     string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisTTL         time.Duration
	RasterTemplate   string
	VectorTemplate   string
	Offline          bool
	NoCoalesce       bool
	FetchTimeout     time.Duration
	UserAgent        string
	WarmupLevels     int
	WarmupWorkers    int
	AllowedOrigin    string
}

func Load() *Config {
	cfg := &Config{
		Port:             getEnvInt("PORT", 8080),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		CacheType:        getEnv("CACHE", "memory"),
		CacheMemoryTiles: getEnvInt("CACHE_MEMORY_TILES", 2000),
		CacheFileDir:     getEnv("CACHE_FILE_DIR", "/data/cache"),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisTTL:         getEnvDuration("REDIS_TTL", 0),
		RasterTemplate:   getEnv("RASTER_TEMPLATE", "https://tile.openstreetmap.org/{z}/{x}/{y}.png"),
		VectorTemplate:   getEnv("VECTOR_TEMPLATE", ""),
		Offline:          getEnvBool("OFFLINE", false),
		NoCoalesce:       getEnvBool("NO_COALESCE", false),
		FetchTimeout:     getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		UserAgent:        getEnv("USER_AGENT", "tilegate/1.0"),
		WarmupLevels:     getEnvInt("WARMUP_LEVELS", 0),
		WarmupWorkers:    getEnvInt("WARMUP_WORKERS", 4),
		AllowedOrigin:    getEnv("ALLOWED_ORIGIN", ""),
	}

	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
