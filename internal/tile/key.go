package tile

import "fmt"

// Key identifies a single map tile by zoom level and column/row position.
// It is a pure value type: two keys are equal iff all three fields are equal,
// so Key is usable directly as a map key.
type Key struct {
	Z int
	X int
	Y int
}

func NewKey(z, x, y int) Key {
	return Key{Z: z, X: x, Y: y}
}

// String returns the canonical "z/x/y" form of the key.
func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Z, k.X, k.Y)
}
