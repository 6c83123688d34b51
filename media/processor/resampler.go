package processor

import (
	"fmt"
	"image"
	"sort"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// Resampler scales an image to an exact size.
type Resampler interface {
	// Resample returns src scaled to width×height.
	Resample(src image.Image, width, height int) image.Image
	// Name identifies the resampler in configuration and logs.
	Name() string
}

// DefaultResampler is the resampler used when none is configured. Bilinear
// is the closest match to a browser canvas downscale.
const DefaultResampler = "bilinear"

// nativeResampler uses pure Go nfnt/resize kernels.
type nativeResampler struct {
	name   string
	interp resize.InterpolationFunction
}

func (r nativeResampler) Name() string { return r.name }

func (r nativeResampler) Resample(src image.Image, width, height int) image.Image {
	return resize.Resize(uint(width), uint(height), src, r.interp)
}

// drawResampler uses golang.org/x/image/draw scalers.
type drawResampler struct {
	name   string
	scaler xdraw.Scaler
}

func (r drawResampler) Name() string { return r.name }

func (r drawResampler) Resample(src image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	r.scaler.Scale(dst, dst.Bounds(), src, src.Bounds(), xdraw.Src, nil)
	return dst
}

var resamplers = map[string]Resampler{
	"nearest":         nativeResampler{"nearest", resize.NearestNeighbor},
	"bilinear":        nativeResampler{"bilinear", resize.Bilinear},
	"bicubic":         nativeResampler{"bicubic", resize.Bicubic},
	"mitchell":        nativeResampler{"mitchell", resize.MitchellNetravali},
	"lanczos2":        nativeResampler{"lanczos2", resize.Lanczos2},
	"lanczos3":        nativeResampler{"lanczos3", resize.Lanczos3},
	"approx-bilinear": drawResampler{"approx-bilinear", xdraw.ApproxBiLinear},
	"catmull-rom":     drawResampler{"catmull-rom", xdraw.CatmullRom},
}

// NewResampler looks up a resampler by name. An empty name selects
// DefaultResampler.
func NewResampler(name string) (Resampler, error) {
	if name == "" {
		name = DefaultResampler
	}
	r, ok := resamplers[name]
	if !ok {
		return nil, fmt.Errorf("unknown resampler %q (known: %v)", name, ResamplerNames())
	}
	return r, nil
}

// ResamplerNames lists the registered resamplers.
func ResamplerNames() []string {
	names := make([]string, 0, len(resamplers))
	for name := range resamplers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
