package server

import (
	"github.com/leeforge/huddle-media/config"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/source"
)

// NewDeps wires the pipeline components from the application config.
func NewDeps(app *config.AppConfig, logger logging.Logger) (Deps, error) {
	if logger == nil {
		logger = logging.Nop()
	}

	resampler, err := processor.NewResampler(app.Media.Resampler)
	if err != nil {
		return Deps{}, err
	}

	loader := source.NewLoader(app.Source, source.WithLogger(logger.Named("source")))
	return Deps{
		Compressor: processor.NewCompressor(
			processor.WithResampler(resampler),
			processor.WithMaxBytes(app.Source.MaxBytes),
			processor.WithMaxPixels(app.Media.MaxPixels),
			processor.WithLogger(logger.Named("compressor")),
		),
		Extractor: processor.NewExtractor(loader,
			processor.WithCropQuality(app.Media.CropQuality),
			processor.WithExtractorMaxPixels(app.Media.MaxPixels),
			processor.WithExtractorLogger(logger.Named("extractor")),
		),
		Loader:  loader,
		Presets: app.Media.PresetTable(),
		Logger:  logger,
	}, nil
}
