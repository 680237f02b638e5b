package canvas

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// DataURLPrefix starts every raster string DataURLCodec produces.
const DataURLPrefix = "data:image/png;base64,"

// ErrBadRaster is returned when an encoded raster cannot be decoded.
var ErrBadRaster = errors.New("canvas: invalid raster data")

// Codec converts a raster to and from its string form. The string form is
// what history snapshots and a note's canvas data hold.
type Codec interface {
	Encode(img image.Image) (string, error)
	Decode(data string) (image.Image, error)
}

// DataURLCodec encodes rasters as base64 PNG data URLs.
type DataURLCodec struct{}

var _ Codec = DataURLCodec{}

var pngEncoder = png.Encoder{CompressionLevel: png.BestSpeed}

// Encode returns img as a PNG data URL.
func (DataURLCodec) Encode(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := pngEncoder.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("encode png: %w", err)
	}
	return DataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// Decode parses a PNG data URL.
func (DataURLCodec) Decode(data string) (image.Image, error) {
	raw, err := DecodeDataURL(data)
	if err != nil {
		return nil, err
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRaster, err)
	}
	return img, nil
}

// DecodeDataURL returns the PNG bytes inside a data URL.
func DecodeDataURL(data string) ([]byte, error) {
	payload, ok := strings.CutPrefix(data, DataURLPrefix)
	if !ok {
		return nil, fmt.Errorf("%w: not a PNG data URL", ErrBadRaster)
	}
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadRaster, err)
	}
	return raw, nil
}
