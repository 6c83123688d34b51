package geometry

import (
	"fmt"
	"image"
	"math"
)

// CoordinateSpace names the pixel space a CropRegion is expressed in.
type CoordinateSpace string

// SpaceBoundingCanvas is the rotated bounding canvas: the surface that holds
// the source image after rotation and flip, before any cropping. It is the
// only space the extractor accepts.
const SpaceBoundingCanvas CoordinateSpace = "bounding-canvas"

// CropRegion is the rectangle of the bounding canvas to extract.
type CropRegion struct {
	X      int             `json:"x"`
	Y      int             `json:"y"`
	Width  int             `json:"width"`
	Height int             `json:"height"`
	Space  CoordinateSpace `json:"space,omitempty"`
}

// NewCropRegion builds a region in bounding-canvas space.
func NewCropRegion(x, y, width, height int) CropRegion {
	return CropRegion{X: x, Y: y, Width: width, Height: height, Space: SpaceBoundingCanvas}
}

// Validate checks the region has a positive area, that its far edges fit in
// an int, and that its space is known. An empty Space is read as
// SpaceBoundingCanvas.
func (r CropRegion) Validate() error {
	if r.Width <= 0 || r.Height <= 0 {
		return fmt.Errorf("crop region must have a positive size, got %dx%d", r.Width, r.Height)
	}
	if r.X > math.MaxInt-r.Width || r.Y > math.MaxInt-r.Height {
		return fmt.Errorf("crop region %d,%d+%dx%d overflows the coordinate range", r.X, r.Y, r.Width, r.Height)
	}
	if r.Space != "" && r.Space != SpaceBoundingCanvas {
		return fmt.Errorf("crop region space %q is not %q", r.Space, SpaceBoundingCanvas)
	}
	return nil
}

// Rect returns the region as an image.Rectangle.
func (r CropRegion) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// Size returns the region's dimensions.
func (r CropRegion) Size() Size {
	return Size{Width: r.Width, Height: r.Height}
}

// Contained reports whether the region lies fully inside a canvas of the
// given size.
func (r CropRegion) Contained(canvas Size) bool {
	return r.Rect().In(image.Rect(0, 0, canvas.Width, canvas.Height))
}

// Clamp intersects the region with a canvas of the given size. The second
// result is false when the region was already contained. A region with no
// overlap clamps to an empty region.
func (r CropRegion) Clamp(canvas Size) (CropRegion, bool) {
	if r.Contained(canvas) {
		return r, false
	}
	in := r.Rect().Intersect(image.Rect(0, 0, canvas.Width, canvas.Height))
	return CropRegion{
		X:      in.Min.X,
		Y:      in.Min.Y,
		Width:  in.Dx(),
		Height: in.Dy(),
		Space:  r.Space,
	}, true
}
