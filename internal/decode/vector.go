package decode

import (
	"github.com/paulmach/orb/encoding/mvt"
)

// Vector is a decoded Mapbox vector tile.
type Vector struct {
	Layers mvt.Layers

	raw []byte
}

func (v *Vector) Bytes() []byte {
	return v.raw
}

func (v *Vector) ContentType() string {
	return "application/vnd.mapbox-vector-tile"
}

// VectorDecoder parses Mapbox vector tile protobufs, gzip-compressed or not.
type VectorDecoder struct{}

func NewVectorDecoder() *VectorDecoder {
	return &VectorDecoder{}
}

func (d *VectorDecoder) Decode(data []byte) (Tile, error) {
	var (
		layers mvt.Layers
		err    error
	)
	if isGzipped(data) {
		layers, err = mvt.UnmarshalGzipped(data)
	} else {
		layers, err = mvt.Unmarshal(data)
	}
	if err != nil {
		return nil, &Error{Err: err}
	}

	return &Vector{Layers: layers, raw: data}, nil
}

func isGzipped(data []byte) bool {
	return len(data) > 2 && data[0] == 0x1f && data[1] == 0x8b
}
