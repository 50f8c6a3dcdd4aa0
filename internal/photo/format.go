// Package photo validates uploaded evidence images and fetches stored ones
// back for report rendering.
package photo

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/cockroachdb/errors"
)

type Format string

const (
	JPEG Format = "JPG"
	PNG  Format = "PNG"
)

var ErrUnsupportedFormat = errors.New("unsupported image format")

var (
	jpegMagic = []byte{0xFF, 0xD8, 0xFF}
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
)

func (f Format) ContentType() string {
	switch f {
	case JPEG:
		return "image/jpeg"
	case PNG:
		return "image/png"
	}
	return "application/octet-stream"
}

func (f Format) Extension() string {
	switch f {
	case JPEG:
		return ".jpg"
	case PNG:
		return ".png"
	}
	return ""
}

// Detect identifies data by its magic bytes and checks that the image header
// decodes. Only JPEG and PNG are accepted.
func Detect(data []byte) (Format, error) {
	var f Format
	switch {
	case bytes.HasPrefix(data, pngMagic):
		f = PNG
	case bytes.HasPrefix(data, jpegMagic):
		f = JPEG
	default:
		return "", ErrUnsupportedFormat
	}

	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); err != nil {
		return "", errors.Wrapf(err, "decode %s header", f)
	}
	return f, nil
}
