package decode

import "fmt"

// Tile is a decoded tile. Concrete types expose the decoded form (Raster,
// Vector); Bytes returns the wire payload unchanged so the tile can be
// re-served or cached without re-encoding.
type Tile interface {
	Bytes() []byte
	ContentType() string
}

// Decoder turns a raw payload into a Tile. A failed decode returns *Error and
// marks the payload as malformed; the loader never caches such payloads.
type Decoder interface {
	Decode(data []byte) (Tile, error)
}

// Error reports a malformed tile payload.
type Error struct {
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("malformed tile payload: %v", e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
