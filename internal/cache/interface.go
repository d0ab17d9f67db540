package cache

import "context"

// Store is a pluggable persistent tile cache. Keys are the fully built tile
// URLs, so a layer whose template or parameters change at runtime can never
// serve payloads cached from the previous source.
//
// Implementations must tolerate concurrent calls for differing keys;
// concurrent Put calls for the same key may race (last writer wins).
type Store interface {
	// Get returns the cached payload for key. The second result reports
	// whether the key was present; a non-nil error means the store itself
	// failed and says nothing about presence.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores the payload under key, overwriting any previous entry.
	Put(ctx context.Context, key string, value []byte) error

	// Clear drops all entries.
	Clear(ctx context.Context) error
}
