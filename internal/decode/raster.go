package decode

import (
	"bytes"
	"image"

	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

// Raster is a decoded raster tile.
type Raster struct {
	Image  image.Image
	Format string // as registered by the image decoder: "png", "jpeg", "webp"

	raw []byte
}

func (r *Raster) Bytes() []byte {
	return r.raw
}

func (r *Raster) ContentType() string {
	return "image/" + r.Format
}

// RasterDecoder decodes PNG, JPEG and WebP tile images.
type RasterDecoder struct{}

func NewRasterDecoder() *RasterDecoder {
	return &RasterDecoder{}
}

func (d *RasterDecoder) Decode(data []byte) (Tile, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &Error{Err: err}
	}

	return &Raster{Image: img, Format: format, raw: data}, nil
}
