// Package geometry holds the size and placement math of the image pipeline.
// Nothing here touches pixels, so every rule can be tested without a raster
// backend.
package geometry

import (
	"fmt"
	"math"

	"golang.org/x/image/math/f64"
)

// snapEpsilon absorbs trigonometric noise such as cos(90°) = 6.1e-17.
const snapEpsilon = 1e-9

// Size is an integer pixel size.
type Size struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (s Size) String() string {
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// Bounds is the axis-aligned bounding box of a rotated rectangle.
type Bounds struct {
	Width  float64
	Height float64
}

// Radians converts degrees to radians.
func Radians(deg float64) float64 {
	return deg * math.Pi / 180
}

// RotatedBounds returns the bounding box of a width×height rectangle rotated
// by rotationDeg degrees around its center.
func RotatedBounds(width, height, rotationDeg float64) Bounds {
	rad := Radians(rotationDeg)
	sin := math.Abs(math.Sin(rad))
	cos := math.Abs(math.Cos(rad))

	return Bounds{
		Width:  width*cos + height*sin,
		Height: width*sin + height*cos,
	}
}

// CanvasSize converts the bounding box into integer surface dimensions.
// Fractions are truncated, matching how a canvas dimension setter treats
// non-integer values.
func (b Bounds) CanvasSize() Size {
	return Size{Width: truncate(b.Width), Height: truncate(b.Height)}
}

func truncate(v float64) int {
	if r := math.Round(v); math.Abs(v-r) < snapEpsilon {
		return int(r)
	}
	return int(math.Floor(v))
}

// FitWithin computes the compressed output size of a width×height image.
//
// The branch is chosen by orientation, not by which bound is violated: a
// landscape image (width > height) is only checked against maxWidth and
// everything else only against maxHeight. Images are never upscaled.
func FitWithin(width, height, maxWidth, maxHeight int) Size {
	if width > height {
		if width > maxWidth {
			height = int(math.Round(float64(height) * float64(maxWidth) / float64(width)))
			width = maxWidth
		}
	} else {
		if height > maxHeight {
			width = int(math.Round(float64(width) * float64(maxHeight) / float64(height)))
			height = maxHeight
		}
	}
	return Size{Width: width, Height: height}
}

// Flip mirrors the image along one or both axes before it is placed.
type Flip struct {
	Horizontal bool `json:"horizontal" mapstructure:"horizontal"`
	Vertical   bool `json:"vertical" mapstructure:"vertical"`
}

// PlacementTransform returns the matrix that maps source pixel coordinates
// onto the bounding canvas. It is the composition
//
//	translate(b/2) · rotate(r) · scale(flip) · translate(-src/2)
//
// so the rotated and flipped image ends up centered on the canvas.
func PlacementTransform(srcWidth, srcHeight int, b Bounds, rotationDeg float64, flip Flip) f64.Aff3 {
	rad := Radians(rotationDeg)
	sin, cos := math.Sin(rad), math.Cos(rad)

	sx, sy := 1.0, 1.0
	if flip.Horizontal {
		sx = -1
	}
	if flip.Vertical {
		sy = -1
	}

	// Linear part: R·S
	a, bb := cos*sx, -sin*sy
	c, d := sin*sx, cos*sy

	// Translation part: b/2 + R·S·(-src/2)
	hw, hh := float64(srcWidth)/2, float64(srcHeight)/2
	tx := b.Width/2 - (a*hw + bb*hh)
	ty := b.Height/2 - (c*hw + d*hh)

	return f64.Aff3{
		a, bb, tx,
		c, d, ty,
	}
}

// Apply maps the point (x, y) through m.
func Apply(m f64.Aff3, x, y float64) (float64, float64) {
	return m[0]*x + m[1]*y + m[2], m[3]*x + m[4]*y + m[5]
}
