package processor

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/geometry"
	"github.com/leeforge/huddle-media/media/source"
)

// Compressor shrinks images to fit within a bounding box and re-encodes
// them as JPEG data URIs.
type Compressor struct {
	resampler Resampler
	logger    logging.Logger
	maxBytes  int64
	maxPixels int64
}

// CompressorOption configures a Compressor.
type CompressorOption func(*Compressor)

// WithResampler selects the resampling filter.
func WithResampler(r Resampler) CompressorOption {
	return func(c *Compressor) {
		if r != nil {
			c.resampler = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) CompressorOption {
	return func(c *Compressor) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMaxBytes caps how many input bytes Compress reads.
func WithMaxBytes(n int64) CompressorOption {
	return func(c *Compressor) {
		c.maxBytes = n
	}
}

// WithMaxPixels caps width×height of the images Compress will decode.
// Non-positive values keep DefaultMaxPixels.
func WithMaxPixels(n int64) CompressorOption {
	return func(c *Compressor) {
		if n > 0 {
			c.maxPixels = n
		}
	}
}

// NewCompressor creates a Compressor.
func NewCompressor(opts ...CompressorOption) *Compressor {
	c := &Compressor{
		resampler: resamplers[DefaultResampler],
		logger:    logging.Nop(),
		maxBytes:  source.DefaultMaxBytes,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result describes a finished compression.
type Result struct {
	Image    EncodedImage  `json:"image"`
	Original geometry.Size `json:"original"`
	Size     geometry.Size `json:"size"`
	Format   string        `json:"format"`
}

// Compress reads an image from r and returns it resized to fit opts as a
// JPEG data URI. A nil opts takes DefaultCompressionOptions; a non-nil opts
// is used as given.
func (c *Compressor) Compress(ctx context.Context, r io.Reader, opts *CompressionOptions) (EncodedImage, error) {
	res, err := c.CompressWithInfo(ctx, r, opts)
	if err != nil {
		return "", err
	}
	return res.Image, nil
}

// CompressWithInfo is Compress plus the original and output dimensions.
func (c *Compressor) CompressWithInfo(ctx context.Context, r io.Reader, opts *CompressionOptions) (*Result, error) {
	o := opts.withDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	if r == nil {
		return nil, apperrors.NewValidation("no image given")
	}

	data, err := source.ReadAll(r, c.maxBytes)
	if err != nil {
		return nil, err
	}
	return c.compressBytes(ctx, data, o)
}

// CompressBytes compresses an in-memory image.
func (c *Compressor) CompressBytes(ctx context.Context, data []byte, opts *CompressionOptions) (*Result, error) {
	o := opts.withDefaults()
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return c.compressBytes(ctx, data, o)
}

// CompressFile compresses the image stored at path.
func (c *Compressor) CompressFile(ctx context.Context, path string, opts *CompressionOptions) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, apperrors.NewIO(err, "failed to open image file").WithDetail("path", path)
	}
	defer f.Close()
	return c.CompressWithInfo(ctx, f, opts)
}

func (c *Compressor) compressBytes(ctx context.Context, data []byte, opts CompressionOptions) (*Result, error) {
	start := time.Now()

	frame, err := NewCompressionPipeline(opts, c.resampler, c.maxPixels).Process(ctx, data)
	if err != nil {
		logging.WithContext(c.logger, ctx).Debug("image.compress.failed",
			zap.Int("input_bytes", len(data)),
			zap.String("error", apperrors.Format(err)),
		)
		return nil, err
	}

	c.logger.Debug("image.compressed",
		zap.String("format", frame.Format),
		zap.Stringer("original", frame.Original),
		zap.Stringer("size", frame.Target),
		zap.Int("input_bytes", len(data)),
		zap.Int("output_bytes", frame.Output.Len()),
		zap.String("resampler", c.resampler.Name()),
		zap.Duration("duration", time.Since(start)),
	)

	return &Result{
		Image:    frame.Output,
		Original: frame.Original,
		Size:     frame.Target,
		Format:   frame.Format,
	}, nil
}
