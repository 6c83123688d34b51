package processor

import (
	"bytes"
	"image"
	"image/jpeg"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/math/f64"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/media/geometry"
)

// Canvas is an RGBA drawing surface. A new or resized canvas is fully
// transparent.
type Canvas struct {
	img *image.RGBA

	// Interpolator resamples the source in DrawImage. Defaults to BiLinear.
	Interpolator xdraw.Interpolator
}

// NewCanvas allocates a transparent width×height canvas.
func NewCanvas(width, height int) *Canvas {
	return &Canvas{
		img:          image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0))),
		Interpolator: xdraw.BiLinear,
	}
}

// Size returns the canvas dimensions.
func (c *Canvas) Size() geometry.Size {
	b := c.img.Bounds()
	return geometry.Size{Width: b.Dx(), Height: b.Dy()}
}

// Image exposes the backing pixels.
func (c *Canvas) Image() *image.RGBA {
	return c.img
}

// Resize reallocates the canvas. Existing pixels are discarded.
func (c *Canvas) Resize(width, height int) {
	c.img = image.NewRGBA(image.Rect(0, 0, max(width, 0), max(height, 0)))
}

// DrawImage composites src over the canvas through m, which maps source
// coordinates (origin at the source's top-left corner) to canvas
// coordinates.
func (c *Canvas) DrawImage(src image.Image, m f64.Aff3) {
	sr := src.Bounds()
	if sr.Min != (image.Point{}) {
		// Shift so that sr.Min maps where the origin would have.
		mx, my := float64(sr.Min.X), float64(sr.Min.Y)
		m[2] -= m[0]*mx + m[1]*my
		m[5] -= m[3]*mx + m[4]*my
	}

	interp := c.Interpolator
	if interp == nil {
		interp = xdraw.BiLinear
	}
	interp.Transform(c.img, m, src, sr, xdraw.Over, nil)
}

// DrawScaled renders src stretched over the whole canvas.
func (c *Canvas) DrawScaled(src image.Image, scaler xdraw.Scaler) {
	if scaler == nil {
		scaler = xdraw.BiLinear
	}
	scaler.Scale(c.img, c.img.Bounds(), src, src.Bounds(), xdraw.Over, nil)
}

// Composite draws src over the canvas with its top-left corner at (x, y),
// without resampling.
func (c *Canvas) Composite(src image.Image, x, y int) {
	sr := src.Bounds()
	dr := image.Rect(x, y, x+sr.Dx(), y+sr.Dy())
	xdraw.Draw(c.img, dr, src, sr.Min, xdraw.Over)
}

// GetImageData copies the pixels of r. Parts of r outside the canvas read
// as transparent black.
func (c *Canvas) GetImageData(r image.Rectangle) *image.RGBA {
	out := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	xdraw.Draw(out, out.Bounds(), c.img, r.Min, xdraw.Src)
	return out
}

// PutImageData writes data with its top-left corner at (x, y), replacing
// the canvas pixels underneath without blending.
func (c *Canvas) PutImageData(data *image.RGBA, x, y int) {
	dr := image.Rect(x, y, x+data.Bounds().Dx(), y+data.Bounds().Dy())
	xdraw.Draw(c.img, dr, data, data.Bounds().Min, xdraw.Src)
}

// ToJPEG encodes the canvas. Transparent pixels come out black.
func (c *Canvas) ToJPEG(quality float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, c.img, &jpeg.Options{Quality: jpegQuality(quality)}); err != nil {
		return nil, apperrors.NewInternal(err, "failed to encode jpeg").
			WithCode(apperrors.CodeEncodeFailed)
	}
	return buf.Bytes(), nil
}

// ToDataURL encodes the canvas as a JPEG data URI.
func (c *Canvas) ToDataURL(quality float64) (EncodedImage, error) {
	raw, err := c.ToJPEG(quality)
	if err != nil {
		return "", err
	}
	return newEncodedImage(raw), nil
}
