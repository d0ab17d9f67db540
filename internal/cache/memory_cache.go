package cache

import (
	"container/list"
	"context"
	"sync"
)

type entry struct {
	key   string
	value []byte
}

// MemoryCache implements an in-memory LRU Store. It survives nothing, but is
// useful for development and as the default when no cache directory is
// configured.
type MemoryCache struct {
	mu      sync.Mutex
	maxSize int
	items   map[string]*list.Element
	lruList *list.List
}

// NewMemoryCache creates an in-memory LRU cache holding at most maxSize tiles.
func NewMemoryCache(maxSize int) *MemoryCache {
	return &MemoryCache{
		maxSize: maxSize,
		items:   make(map[string]*list.Element),
		lruList: list.New(),
	}
}

func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return nil, false, nil
	}

	c.lruList.MoveToFront(elem)
	return elem.Value.(*entry).value, true, nil
}

func (c *MemoryCache) Put(ctx context.Context, key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		elem.Value.(*entry).value = value
		c.lruList.MoveToFront(elem)
		return nil
	}

	if c.lruList.Len() >= c.maxSize {
		oldest := c.lruList.Back()
		if oldest != nil {
			delete(c.items, oldest.Value.(*entry).key)
			c.lruList.Remove(oldest)
		}
	}

	ent := &entry{key: key, value: value}
	c.items[key] = c.lruList.PushFront(ent)
	return nil
}

func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items = make(map[string]*list.Element)
	c.lruList = list.New()
	return nil
}
