// Command huddle-media compresses and crops images from the command line or
// serves the same pipeline over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"

	"github.com/leeforge/huddle-media/config"
	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/batch"
	"github.com/leeforge/huddle-media/media/geometry"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/storage"
	"github.com/leeforge/huddle-media/server"
)

const usage = `usage: huddle-media <command> [flags]

commands:
  serve     run the HTTP API
  compress  compress one image to a JPEG data URI
  crop      crop a region out of a rotated, flipped image
  batch     compress several images concurrently
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1], os.Args[2:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "huddle-media: %s\n", apperrors.Format(err))
		os.Exit(1)
	}
}

// app bundles what every command needs.
type app struct {
	cfg    *config.AppConfig
	conf   *config.Config
	logger logging.Logger
	deps   server.Deps
}

func setup() (*app, error) {
	cfg, conf, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger := logging.Init(cfg.Log)

	deps, err := server.NewDeps(cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, conf: conf, logger: logger, deps: deps}, nil
}

func run(ctx context.Context, cmd string, args []string, stdout io.Writer) error {
	switch cmd {
	case "serve":
		return serve(ctx, args)
	case "compress":
		return compress(ctx, args, stdout)
	case "crop":
		return crop(ctx, args, stdout)
	case "batch":
		return runBatch(ctx, args, stdout)
	case "-h", "--help", "help":
		fmt.Fprint(stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (overrides server.addr)")
	watch := fs.Bool("watch", false, "reload presets when the config file changes")
	if err := fs.Parse(args); err != nil {
		return err
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if *addr != "" {
		a.cfg.Server.Addr = *addr
	}

	srv := server.New(a.cfg.Server, a.deps)
	if *watch {
		if err := srv.WatchPresets(a.conf); err != nil {
			a.logger.Warn("presets.watch.disabled", zap.Error(err))
		}
	}
	return srv.Run(ctx)
}

func compress(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("compress", flag.ContinueOnError)
	in := fs.String("in", "", "input image file")
	preset := fs.String("preset", "", "preset name")
	maxWidth := fs.Int("max-width", -1, "maximum width")
	maxHeight := fs.Int("max-height", -1, "maximum height")
	quality := fs.Float64("quality", -1, "JPEG quality in [0, 1]")
	out := fs.String("out", "", "write the data URI here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *in == "" {
		return apperrors.NewValidation("-in is required")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	opts, err := presetOptions(a.deps.Presets, *preset, *maxWidth, *maxHeight, *quality)
	if err != nil {
		return err
	}

	img, err := a.deps.Compressor.CompressFile(ctx, *in, &opts)
	if err != nil {
		return err
	}
	return writeOutput(*out, img.Image, stdout)
}

// presetOptions resolves name and applies the flags that were set.
// Negative values mean "not set".
func presetOptions(presets processor.Presets, name string, maxWidth, maxHeight int, quality float64) (processor.CompressionOptions, error) {
	opts, err := presets.Lookup(name)
	if err != nil {
		return opts, err
	}
	if maxWidth >= 0 {
		opts.MaxWidth = maxWidth
	}
	if maxHeight >= 0 {
		opts.MaxHeight = maxHeight
	}
	if quality >= 0 {
		opts.Quality = quality
	}
	return opts, opts.Validate()
}

func crop(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("crop", flag.ContinueOnError)
	src := fs.String("src", "", "image reference: file path, URL or data URI")
	x := fs.Int("x", 0, "crop x")
	y := fs.Int("y", 0, "crop y")
	w := fs.Int("w", 0, "crop width")
	h := fs.Int("h", 0, "crop height")
	rotation := fs.Float64("rotation", 0, "rotation in degrees")
	flipH := fs.Bool("flip-h", false, "mirror horizontally")
	flipV := fs.Bool("flip-v", false, "mirror vertically")
	out := fs.String("out", "", "write the data URI here instead of stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *src == "" {
		return apperrors.NewValidation("-src is required")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	flip := &geometry.Flip{Horizontal: *flipH, Vertical: *flipV}
	img, err := a.deps.Extractor.Extract(ctx, *src, geometry.NewCropRegion(*x, *y, *w, *h), *rotation, flip)
	if err != nil {
		return err
	}
	return writeOutput(*out, img, stdout)
}

func runBatch(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	outDir := fs.String("out", "", "directory for the results (default: configured storage)")
	preset := fs.String("preset", "", "preset name")
	workers := fs.Int("workers", 0, "concurrent workers (overrides batch.workers)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	files := fs.Args()
	if len(files) == 0 {
		return apperrors.NewValidation("no input files")
	}

	a, err := setup()
	if err != nil {
		return err
	}
	defer logging.Sync()

	if *workers > 0 {
		a.cfg.Batch.Workers = *workers
	}

	var provider storage.Provider
	if *outDir != "" {
		provider, err = storage.NewLocalProvider(*outDir, *outDir)
	} else {
		provider, err = storage.New(a.cfg.Storage)
	}
	if err != nil {
		return err
	}

	opts, err := a.deps.Presets.Lookup(*preset)
	if err != nil {
		return err
	}

	jobs := make([]batch.Job, 0, len(files))
	for i, file := range files {
		jobs = append(jobs, batch.FileJob(strconv.Itoa(i+1), file, &opts))
	}

	tracker := batch.NewProgressTracker(len(jobs), func(completed, failed, total int) {
		a.logger.Debug("batch.progress",
			zap.Int("completed", completed),
			zap.Int("failed", failed),
			zap.Int("total", total),
		)
	})

	p := batch.NewProcessor(a.cfg.Batch, a.deps.Compressor,
		batch.WithStorage(provider),
		batch.WithLogger(a.logger.Named("batch")),
	)
	results := p.Process(ctx, jobs, tracker)

	failed := 0
	for _, res := range results {
		if res.Err != nil {
			failed++
			fmt.Fprintf(stdout, "FAIL %s: %s\n", res.Name, apperrors.Format(res.Err))
			continue
		}
		fmt.Fprintf(stdout, "OK   %s -> %s (%d bytes)\n", res.Name, res.URL, res.Image.Len())
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d images failed", failed, len(results))
	}
	return nil
}

func writeOutput(path string, img processor.EncodedImage, stdout io.Writer) error {
	if path == "" {
		_, err := fmt.Fprintln(stdout, string(img))
		return err
	}
	return os.WriteFile(path, []byte(img), 0o644)
}
