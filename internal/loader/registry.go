package loader

import (
	"sort"
	"sync"
)

// Registry maps layer names to their loaders. The HTTP surface resolves the
// layer segment of a tile path against it.
type Registry struct {
	mu      sync.RWMutex
	loaders map[string]*Loader
}

func NewRegistry() *Registry {
	return &Registry{loaders: make(map[string]*Loader)}
}

func (r *Registry) Register(name string, l *Loader) {
	r.mu.Lock()
	r.loaders[name] = l
	r.mu.Unlock()
}

func (r *Registry) Get(name string) (*Loader, bool) {
	r.mu.RLock()
	l, ok := r.loaders[name]
	r.mu.RUnlock()
	return l, ok
}

// Names returns the registered layer names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.loaders))
	for name := range r.loaders {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}
