package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// FileCache implements a file-based Store.
// Structure: {cacheDir}/{hash[0:2]}/{hash[2:4]}/{hash}, where hash is the
// SHA-256 of the cache key. Hashing keeps arbitrary URL keys filesystem-safe
// and the two-level fan-out keeps directories small.
type FileCache struct {
	cacheDir string
}

func NewFileCache(cacheDir string) (*FileCache, error) {
	if err := os.MkdirAll(cacheDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FileCache{cacheDir: cacheDir}, nil
}

func (c *FileCache) buildFilePath(key string) string {
	sum := sha256.Sum256([]byte(key))
	hash := hex.EncodeToString(sum[:])
	return filepath.Join(c.cacheDir, hash[0:2], hash[2:4], hash)
}

func (c *FileCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(c.buildFilePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("cache read failed: %w", err)
	}

	return data, true, nil
}

func (c *FileCache) Put(ctx context.Context, key string, value []byte) error {
	filePath := c.buildFilePath(key)
	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	// Write atomically so readers never observe a half-written tile
	tmpPath := filePath + ".tmp"
	if err := os.WriteFile(tmpPath, value, 0644); err != nil {
		return fmt.Errorf("cache write failed: %w", err)
	}

	if err := os.Rename(tmpPath, filePath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("cache write failed: %w", err)
	}

	return nil
}

func (c *FileCache) Clear(ctx context.Context) error {
	if err := os.RemoveAll(c.cacheDir); err != nil {
		return fmt.Errorf("cache clear failed: %w", err)
	}

	return os.MkdirAll(c.cacheDir, 0755)
}
