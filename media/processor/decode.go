package processor

import (
	"bytes"
	"image"
	"strings"

	// Formats a browser can decode are registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gabriel-vasile/mimetype"

	apperrors "github.com/leeforge/huddle-media/errors"
)

// supportedMIMETypes lists the raster formats with a registered decoder.
var supportedMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
	"image/bmp":  true,
	"image/tiff": true,
}

// SupportedMIMETypes returns the MIME types Decode accepts.
func SupportedMIMETypes() []string {
	out := make([]string, 0, len(supportedMIMETypes))
	for k := range supportedMIMETypes {
		out = append(out, k)
	}
	return out
}

// DetectMIMEType sniffs the content type of data.
func DetectMIMEType(data []byte) string {
	return mimetype.Detect(data).String()
}

// DefaultMaxPixels caps width×height of decoded images and of the canvases
// built from them.
const DefaultMaxPixels int64 = 50_000_000

// exceedsPixels reports whether a width×height raster holds more than max
// pixels, without overflowing.
func exceedsPixels(width, height int, max int64) bool {
	if width <= 0 || height <= 0 || max <= 0 {
		return false
	}
	return int64(width) > max/int64(height)
}

// Decode is DecodeLimited with DefaultMaxPixels.
func Decode(data []byte) (image.Image, string, error) {
	return DecodeLimited(data, DefaultMaxPixels)
}

// DecodeLimited turns raw bytes into an image. Content is sniffed first so
// that a non-image payload fails with a clear decode error instead of
// image.ErrFormat, and the header is read before the raster so that images
// over maxPixels are refused without allocating them.
func DecodeLimited(data []byte, maxPixels int64) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", apperrors.NewDecode(nil, "image data is empty").
			WithCode(apperrors.CodeNotAnImage)
	}

	mime := DetectMIMEType(data)
	if i := strings.IndexByte(mime, ';'); i >= 0 {
		mime = mime[:i]
	}
	if !supportedMIMETypes[mime] {
		return nil, "", apperrors.NewDecode(nil, "unsupported image format").
			WithCode(apperrors.CodeNotAnImage).
			WithDetail("mime", mime)
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewDecode(err, "failed to read image header").
			WithDetail("mime", mime)
	}
	if exceedsPixels(cfg.Width, cfg.Height, maxPixels) {
		return nil, "", apperrors.NewDecode(nil, "image dimensions exceed the pixel limit").
			WithCode(apperrors.CodeImageTooLarge).
			WithDetail("width", cfg.Width).
			WithDetail("height", cfg.Height).
			WithDetail("maxPixels", maxPixels)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", apperrors.NewDecode(err, "failed to decode image").
			WithDetail("mime", mime)
	}

	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, "", apperrors.NewDecode(nil, "image has no pixels").
			WithDetail("mime", mime)
	}

	return img, format, nil
}
