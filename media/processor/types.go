package processor

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"math"
	"sort"
	"strings"

	"github.com/creasty/defaults"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/utils"
)

// CompressionOptions bounds the output of Compress. In configuration a
// missing or zero field takes its default tag; a value passed to Compress is
// used as given, so an explicit Quality of 0 encodes at the lowest quality.
type CompressionOptions struct {
	// MaxWidth caps the output width of landscape images.
	MaxWidth int `json:"maxWidth" mapstructure:"max-width" yaml:"max-width" default:"800" validate:"gte=0"`
	// MaxHeight caps the output height of portrait and square images.
	MaxHeight int `json:"maxHeight" mapstructure:"max-height" yaml:"max-height" default:"800" validate:"gte=0"`
	// Quality is the JPEG quality in [0,1].
	Quality float64 `json:"quality" mapstructure:"quality" yaml:"quality" default:"0.7" validate:"gte=0,lte=1"`
}

// DefaultCompressionOptions returns 800×800 at quality 0.7.
func DefaultCompressionOptions() CompressionOptions {
	var opts CompressionOptions
	_ = defaults.Set(&opts)
	return opts
}

// withDefaults resolves the options of one call. Only a nil receiver takes
// the defaults.
func (o *CompressionOptions) withDefaults() CompressionOptions {
	if o == nil {
		return DefaultCompressionOptions()
	}
	return *o
}

// Validate rejects non-positive bounds and qualities outside [0,1].
func (o CompressionOptions) Validate() error {
	if o.MaxWidth <= 0 {
		return apperrors.NewInvalid("maxWidth", o.MaxWidth, "must be positive")
	}
	if o.MaxHeight <= 0 {
		return apperrors.NewInvalid("maxHeight", o.MaxHeight, "must be positive")
	}
	if math.IsNaN(o.Quality) || o.Quality < 0 || o.Quality > 1 {
		return apperrors.NewInvalid("quality", o.Quality, "must be within [0,1]")
	}
	return nil
}

// jpegQuality maps a [0,1] quality onto the encoder's 1..100 scale.
func jpegQuality(q float64) int {
	v := int(math.Round(q * 100))
	if v < 1 {
		return 1
	}
	if v > 100 {
		return 100
	}
	return v
}

// CropQuality is the fixed JPEG quality of extracted crops. It matches the
// default a canvas uses when no quality is given.
const CropQuality = 0.92

// Preset names used by the Huddle forms.
const (
	PresetDefault              = "default"
	PresetVenueCover           = "venue-cover"
	PresetVerificationDocument = "verification-document"
	PresetEventMedia           = "event-media"
	PresetAvatar               = "avatar"
)

// Presets maps a preset name to its options.
type Presets map[string]CompressionOptions

// DefaultPresets returns the built-in presets.
func DefaultPresets() Presets {
	return Presets{
		PresetDefault:              {MaxWidth: 800, MaxHeight: 800, Quality: 0.7},
		PresetVenueCover:           {MaxWidth: 800, MaxHeight: 800, Quality: 0.6},
		PresetVerificationDocument: {MaxWidth: 1200, MaxHeight: 1200, Quality: 0.6},
		PresetEventMedia:           {MaxWidth: 800, MaxHeight: 800, Quality: 0.7},
		PresetAvatar:               {MaxWidth: 400, MaxHeight: 400, Quality: 0.8},
	}
}

// Lookup returns the named preset. An empty name resolves to PresetDefault;
// names are matched in kebab case, so "Venue Cover" finds "venue-cover".
func (p Presets) Lookup(name string) (CompressionOptions, error) {
	key := utils.KebabCase(name)
	if key == "" {
		key = PresetDefault
	}
	opts, ok := p[key]
	if !ok {
		return CompressionOptions{}, apperrors.NewInvalid("preset", name, "unknown preset").
			WithDetail("known", p.Names())
	}
	return opts, nil
}

// Names returns the preset names in sorted order.
func (p Presets) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Merge returns a copy of p with other's entries laid over it.
func (p Presets) Merge(other Presets) Presets {
	out := make(Presets, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

const jpegDataURIPrefix = "data:image/jpeg;base64,"

// EncodedImage is a Base64 JPEG data URI. It is the only image
// representation handed back to callers.
type EncodedImage string

func newEncodedImage(jpegBytes []byte) EncodedImage {
	return EncodedImage(jpegDataURIPrefix + base64.StdEncoding.EncodeToString(jpegBytes))
}

// MIMEType returns the media type declared by the data URI header.
func (e EncodedImage) MIMEType() string {
	s := strings.TrimPrefix(string(e), "data:")
	if i := strings.IndexAny(s, ";,"); i >= 0 {
		return s[:i]
	}
	return ""
}

// Bytes decodes the Base64 payload.
func (e EncodedImage) Bytes() ([]byte, error) {
	s := string(e)
	i := strings.Index(s, ";base64,")
	if !strings.HasPrefix(s, "data:") || i < 0 {
		return nil, fmt.Errorf("not a base64 data URI")
	}
	return base64.StdEncoding.DecodeString(s[i+len(";base64,"):])
}

// Config decodes the image header and returns its dimensions.
func (e EncodedImage) Config() (image.Config, error) {
	raw, err := e.Bytes()
	if err != nil {
		return image.Config{}, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	return cfg, err
}

// Len returns the length of the data URI string.
func (e EncodedImage) Len() int {
	return len(e)
}
