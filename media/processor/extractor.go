package processor

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	xdraw "golang.org/x/image/draw"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/geometry"
)

// SourceLoader resolves an image reference into bytes.
type SourceLoader interface {
	Load(ctx context.Context, ref string) ([]byte, error)
}

// Extractor cuts a region out of a rotated and flipped image.
type Extractor struct {
	loader       SourceLoader
	logger       logging.Logger
	interpolator xdraw.Interpolator
	quality      float64
	clamp        bool
	maxPixels    int64
}

// ExtractorOption configures an Extractor.
type ExtractorOption func(*Extractor)

// WithExtractorLogger sets the logger.
func WithExtractorLogger(logger logging.Logger) ExtractorOption {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithInterpolator sets the filter used to draw the rotated image.
func WithInterpolator(interp xdraw.Interpolator) ExtractorOption {
	return func(e *Extractor) {
		if interp != nil {
			e.interpolator = interp
		}
	}
}

// WithCropQuality overrides CropQuality.
func WithCropQuality(q float64) ExtractorOption {
	return func(e *Extractor) {
		if q > 0 && q <= 1 {
			e.quality = q
		}
	}
}

// WithClampRegion intersects regions with the bounding canvas instead of
// reading the overhang as black.
func WithClampRegion(clamp bool) ExtractorOption {
	return func(e *Extractor) {
		e.clamp = clamp
	}
}

// WithExtractorMaxPixels caps width×height of the decoded source, of the
// rotated canvas and of the crop region. Non-positive values keep
// DefaultMaxPixels.
func WithExtractorMaxPixels(n int64) ExtractorOption {
	return func(e *Extractor) {
		if n > 0 {
			e.maxPixels = n
		}
	}
}

// NewExtractor creates an Extractor that resolves sources with loader.
func NewExtractor(loader SourceLoader, opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		loader:       loader,
		logger:       logging.Nop(),
		interpolator: xdraw.BiLinear,
		quality:      CropQuality,
		maxPixels:    DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract loads src, rotates it by rotation degrees around its center,
// applies flip, and returns the pixels of region as a JPEG data URI. The
// region is in bounding-canvas coordinates; a nil flip means no flip.
func (e *Extractor) Extract(ctx context.Context, src string, region geometry.CropRegion, rotation float64, flip *geometry.Flip) (EncodedImage, error) {
	if err := e.checkCrop(region, rotation); err != nil {
		return "", err
	}
	if e.loader == nil {
		return "", apperrors.NewInternal(nil, "extractor has no source loader")
	}

	data, err := e.loader.Load(ctx, src)
	if err != nil {
		return "", err
	}
	return e.extract(ctx, data, region, rotation, flip)
}

// ExtractBytes is Extract for an image already in memory.
func (e *Extractor) ExtractBytes(ctx context.Context, data []byte, region geometry.CropRegion, rotation float64, flip *geometry.Flip) (EncodedImage, error) {
	if err := e.checkCrop(region, rotation); err != nil {
		return "", err
	}
	return e.extract(ctx, data, region, rotation, flip)
}

func (e *Extractor) checkCrop(region geometry.CropRegion, rotation float64) error {
	if err := region.Validate(); err != nil {
		return apperrors.NewValidation(err.Error()).
			WithDetail("field", "crop")
	}
	if exceedsPixels(region.Width, region.Height, e.maxPixels) {
		return apperrors.NewInvalid("crop", region.Size().String(), "region exceeds the pixel limit").
			WithDetail("maxPixels", e.maxPixels)
	}
	if math.IsNaN(rotation) || math.IsInf(rotation, 0) {
		return apperrors.NewInvalid("rotation", rotation, "must be a finite number of degrees")
	}
	return nil
}

func (e *Extractor) extract(ctx context.Context, data []byte, region geometry.CropRegion, rotation float64, flip *geometry.Flip) (EncodedImage, error) {
	start := time.Now()

	img, format, err := DecodeLimited(data, e.maxPixels)
	if err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", apperrors.NewTimeout(err, "canceled before crop")
	}

	var f geometry.Flip
	if flip != nil {
		f = *flip
	}

	sb := img.Bounds()
	bounds := geometry.RotatedBounds(float64(sb.Dx()), float64(sb.Dy()), rotation)
	canvasSize := bounds.CanvasSize()
	if exceedsPixels(canvasSize.Width, canvasSize.Height, e.maxPixels) {
		return "", apperrors.NewDecode(nil, "rotated image exceeds the pixel limit").
			WithCode(apperrors.CodeImageTooLarge).
			WithDetail("canvas", canvasSize.String()).
			WithDetail("maxPixels", e.maxPixels)
	}

	canvas := NewCanvas(canvasSize.Width, canvasSize.Height)
	canvas.Interpolator = e.interpolator
	canvas.DrawImage(img, geometry.PlacementTransform(sb.Dx(), sb.Dy(), bounds, rotation, f))

	if e.clamp {
		clamped, changed := region.Clamp(canvasSize)
		if clamped.Width <= 0 || clamped.Height <= 0 {
			return "", apperrors.NewInvalid("crop", region.Rect().String(), "region does not overlap the image")
		}
		if changed {
			logging.WithContext(e.logger, ctx).Debug("image.crop.clamped",
				zap.Stringer("requested", region.Rect()),
				zap.Stringer("clamped", clamped.Rect()),
			)
		}
		region = clamped
	}

	pixels := canvas.GetImageData(region.Rect())
	canvas.Resize(region.Width, region.Height)
	canvas.PutImageData(pixels, 0, 0)

	out, err := canvas.ToDataURL(e.quality)
	if err != nil {
		return "", err
	}

	e.logger.Debug("image.cropped",
		zap.String("format", format),
		zap.Stringer("canvas", canvasSize),
		zap.Stringer("crop", region.Rect()),
		zap.Float64("rotation", rotation),
		zap.Bool("flip_horizontal", f.Horizontal),
		zap.Bool("flip_vertical", f.Vertical),
		zap.Int("output_bytes", out.Len()),
		zap.Duration("duration", time.Since(start)),
	)
	return out, nil
}
