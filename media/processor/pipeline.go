package processor

import (
	"context"
	"fmt"
	"image"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/media/geometry"
)

// Frame carries one image through a Pipeline.
type Frame struct {
	Data     []byte
	Image    image.Image
	Format   string
	Original geometry.Size
	Target   geometry.Size
	Canvas   *Canvas
	Output   EncodedImage
}

// Step is one stage of a Pipeline.
type Step interface {
	Name() string
	Process(ctx context.Context, f *Frame) error
}

// Pipeline runs steps in order over a Frame.
type Pipeline struct {
	steps []Step
}

// NewPipeline creates a pipeline from steps.
func NewPipeline(steps ...Step) *Pipeline {
	return &Pipeline{steps: steps}
}

// NewCompressionPipeline builds decode → fit → render → encode. Images over
// maxPixels are refused at decode.
func NewCompressionPipeline(opts CompressionOptions, resampler Resampler, maxPixels int64) *Pipeline {
	return NewPipeline(
		DecodeStep{MaxPixels: maxPixels},
		FitStep{MaxWidth: opts.MaxWidth, MaxHeight: opts.MaxHeight},
		RenderStep{Resampler: resampler},
		EncodeStep{Quality: opts.Quality},
	)
}

// Process runs every step. The context is checked between steps; a step
// that has started always runs to completion.
func (p *Pipeline) Process(ctx context.Context, data []byte) (*Frame, error) {
	f := &Frame{Data: data}
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.NewTimeout(err, fmt.Sprintf("canceled before %s", step.Name()))
		}
		if err := step.Process(ctx, f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// DecodeStep decodes Frame.Data into Frame.Image. A zero MaxPixels means
// DefaultMaxPixels.
type DecodeStep struct {
	MaxPixels int64
}

func (DecodeStep) Name() string { return "decode" }

func (s DecodeStep) Process(_ context.Context, f *Frame) error {
	limit := s.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	img, format, err := DecodeLimited(f.Data, limit)
	if err != nil {
		return err
	}
	b := img.Bounds()
	f.Image = img
	f.Format = format
	f.Original = geometry.Size{Width: b.Dx(), Height: b.Dy()}
	return nil
}

// FitStep computes the output size from the bounds.
type FitStep struct {
	MaxWidth  int
	MaxHeight int
}

func (FitStep) Name() string { return "fit" }

func (s FitStep) Process(_ context.Context, f *Frame) error {
	target := geometry.FitWithin(f.Original.Width, f.Original.Height, s.MaxWidth, s.MaxHeight)
	// Extreme aspect ratios can round a side down to zero.
	f.Target = geometry.Size{Width: max(target.Width, 1), Height: max(target.Height, 1)}
	return nil
}

// RenderStep draws the image into a canvas of the target size.
type RenderStep struct {
	Resampler Resampler
}

func (RenderStep) Name() string { return "render" }

func (s RenderStep) Process(_ context.Context, f *Frame) error {
	canvas := NewCanvas(f.Target.Width, f.Target.Height)
	src := f.Image
	if f.Target != f.Original {
		resampler := s.Resampler
		if resampler == nil {
			resampler = resamplers[DefaultResampler]
		}
		src = resampler.Resample(f.Image, f.Target.Width, f.Target.Height)
	}
	canvas.Composite(src, 0, 0)
	f.Canvas = canvas
	return nil
}

// EncodeStep encodes the canvas as a JPEG data URI.
type EncodeStep struct {
	Quality float64
}

func (EncodeStep) Name() string { return "encode" }

func (s EncodeStep) Process(_ context.Context, f *Frame) error {
	out, err := f.Canvas.ToDataURL(s.Quality)
	if err != nil {
		return err
	}
	f.Output = out
	return nil
}
