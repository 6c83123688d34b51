package config

import (
	"fmt"
	"sort"
	"time"

	"github.com/creasty/defaults"
	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/huddle-media/http/middleware"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/batch"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/source"
	"github.com/leeforge/huddle-media/media/storage"
	"github.com/leeforge/huddle-media/utils"
)

// AppConfig is the full huddle-media configuration.
type AppConfig struct {
	Server  ServerConfig   `mapstructure:"server" json:"server" yaml:"server"`
	Log     logging.Config `mapstructure:"log" json:"log" yaml:"log"`
	Media   MediaConfig    `mapstructure:"media" json:"media" yaml:"media"`
	Source  source.Config  `mapstructure:"source" json:"source" yaml:"source"`
	Batch   batch.Config   `mapstructure:"batch" json:"batch" yaml:"batch"`
	Storage storage.Config `mapstructure:"storage" json:"storage" yaml:"storage"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" json:"addr" yaml:"addr" default:":8080" validate:"required"`
	ReadTimeout     time.Duration `mapstructure:"read-timeout" json:"readTimeout" yaml:"read-timeout" default:"15s"`
	WriteTimeout    time.Duration `mapstructure:"write-timeout" json:"writeTimeout" yaml:"write-timeout" default:"60s"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown-timeout" json:"shutdownTimeout" yaml:"shutdown-timeout" default:"10s"`
	MaxBodyBytes    int64         `mapstructure:"max-body-bytes" json:"maxBodyBytes" yaml:"max-body-bytes" default:"20971520" validate:"gt=0"`
	// RateLimit is the sustained requests per second per client; zero
	// disables limiting.
	RateLimit float64 `mapstructure:"rate-limit" json:"rateLimit" yaml:"rate-limit" validate:"gte=0"`
	RateBurst int     `mapstructure:"rate-burst" json:"rateBurst" yaml:"rate-burst" default:"20" validate:"gte=1"`

	CORS middleware.CORSConfig `mapstructure:"cors" json:"cors" yaml:"cors"`
}

type MediaConfig struct {
	Resampler   string  `mapstructure:"resampler" json:"resampler" yaml:"resampler" default:"bilinear"`
	CropQuality float64 `mapstructure:"crop-quality" json:"cropQuality" yaml:"crop-quality" default:"0.92" validate:"gt=0,lte=1"`
	// MaxPixels caps width×height of decoded images, rotated canvases and
	// crop regions.
	MaxPixels int64                                   `mapstructure:"max-pixels" json:"maxPixels" yaml:"max-pixels" default:"50000000" validate:"gt=0"`
	Presets   map[string]processor.CompressionOptions `mapstructure:"presets" json:"presets" yaml:"presets" validate:"dive"`
}

// PresetTable returns the built-in presets overlaid with the configured
// ones. Names are normalized to kebab case and zero fields of a configured
// preset take the defaults.
func (m MediaConfig) PresetTable() processor.Presets {
	configured := make(processor.Presets, len(m.Presets))
	for name, opts := range m.Presets {
		_ = defaults.Set(&opts)
		configured[utils.KebabCase(name)] = opts
	}
	return processor.DefaultPresets().Merge(configured)
}

var validate = validatorV10.New()

// Validate checks struct tags and the cross-field rules tags cannot express.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := processor.NewResampler(c.Media.Resampler); err != nil {
		return err
	}
	if c.Storage.Type == storage.TypeOSS && (c.Storage.OSS.Endpoint == "" || c.Storage.OSS.Bucket == "") {
		return fmt.Errorf("storage.oss requires endpoint and bucket")
	}

	// Configured presets are checked after their defaults are applied.
	table := c.Media.PresetTable()
	names := make([]string, 0, len(c.Media.Presets))
	for name := range c.Media.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := table[utils.KebabCase(name)].Validate(); err != nil {
			return fmt.Errorf("media.presets.%s: %w", name, err)
		}
	}
	return nil
}

// Load reads the application config. A missing config directory yields the
// defaults.
func Load(optsArr ...ConfigOptions) (*AppConfig, *Config, error) {
	c, err := NewConfig(optsArr...)
	if err != nil {
		return nil, nil, err
	}

	app := &AppConfig{}
	if err := c.BindWithDefaults(app); err != nil {
		return nil, nil, err
	}
	return app, c, nil
}
