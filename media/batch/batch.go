// Package batch compresses several images concurrently on a bounded worker
// pool.
package batch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/storage"
)

// Config configures a Processor.
type Config struct {
	Workers    int           `mapstructure:"workers" json:"workers" yaml:"workers" default:"4" validate:"gte=1"`
	Retries    int           `mapstructure:"retries" json:"retries" yaml:"retries" validate:"gte=0"`
	RetryDelay time.Duration `mapstructure:"retry-delay" json:"retryDelay" yaml:"retry-delay" default:"1s"`
	Folder     string        `mapstructure:"folder" json:"folder" yaml:"folder" default:"compressed"`
}

// Job is one image to compress.
type Job struct {
	ID      string
	Name    string
	Open    func() (io.ReadCloser, error)
	Options *processor.CompressionOptions
}

// FileJob builds a Job that reads path. The job name is the file's base
// name without its extension.
func FileJob(id, path string, opts *processor.CompressionOptions) Job {
	base := filepath.Base(path)
	return Job{
		ID:      id,
		Name:    strings.TrimSuffix(base, filepath.Ext(base)),
		Open:    func() (io.ReadCloser, error) { return os.Open(path) },
		Options: opts,
	}
}

// BytesJob builds a Job over an in-memory image.
func BytesJob(id, name string, data []byte, opts *processor.CompressionOptions) Job {
	return Job{
		ID:      id,
		Name:    name,
		Open:    func() (io.ReadCloser, error) { return io.NopCloser(bytes.NewReader(data)), nil },
		Options: opts,
	}
}

// Result is the outcome of one Job.
type Result struct {
	ID       string
	Name     string
	Image    processor.EncodedImage
	Info     *processor.Result
	URL      string
	Attempts int
	Err      error
}

// Processor runs Jobs through a Compressor.
type Processor struct {
	config     Config
	compressor *processor.Compressor
	store      storage.Provider
	logger     logging.Logger
}

// Option configures a Processor.
type Option func(*Processor)

// WithStorage uploads every successful result to provider.
func WithStorage(provider storage.Provider) Option {
	return func(p *Processor) {
		p.store = provider
	}
}

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor 创建批量处理器
func NewProcessor(config Config, compressor *processor.Compressor, opts ...Option) *Processor {
	if config.Workers < 1 {
		config.Workers = 1
	}
	if compressor == nil {
		compressor = processor.NewCompressor()
	}
	p := &Processor{
		config:     config,
		compressor: compressor,
		logger:     logging.Nop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process runs jobs with at most Config.Workers in flight and returns one
// Result per job, in submission order. A failing job never stops the
// others. Once ctx is done no further jobs are started; those jobs report a
// timeout error. tracker may be nil.
func (p *Processor) Process(ctx context.Context, jobs []Job, tracker *ProgressTracker) []Result {
	results := make([]Result, len(jobs))
	if len(jobs) == 0 {
		return results
	}

	workers := p.config.Workers
	if len(jobs) < workers {
		workers = len(jobs)
	}

	queue := make(chan int)
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for index := range queue {
				results[index] = p.processJob(ctx, jobs[index])
				tracker.record(results[index].Err)
			}
		}()
	}

	dispatched := 0
dispatch:
	for i := range jobs {
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
			break dispatch
		case queue <- i:
			dispatched++
		}
	}
	close(queue)
	wg.Wait()

	for i := dispatched; i < len(jobs); i++ {
		results[i] = Result{
			ID:   jobs[i].ID,
			Name: jobs[i].Name,
			Err:  apperrors.NewTimeout(ctx.Err(), "batch canceled before job started"),
		}
		tracker.record(results[i].Err)
	}

	return results
}

func (p *Processor) processJob(ctx context.Context, job Job) Result {
	result := Result{ID: job.ID, Name: job.Name}
	start := time.Now()

	for attempt := 0; attempt <= p.config.Retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return result
			case <-time.After(time.Duration(attempt) * p.config.RetryDelay):
			}
		}
		result.Attempts = attempt + 1

		info, err := p.compress(ctx, job)
		if err != nil {
			result.Err = err
			if apperrors.IsType(err, apperrors.ErrorTypeIO) {
				continue
			}
			break
		}

		result.Err = nil
		result.Info = info
		result.Image = info.Image

		if p.store != nil {
			url, err := p.upload(ctx, job, info.Image)
			if err != nil {
				result.Err = err
				continue
			}
			result.URL = url
		}
		break
	}

	log := logging.WithContext(p.logger, ctx).With(
		zap.String("job_id", job.ID),
		zap.String("name", job.Name),
		zap.Int("attempts", result.Attempts),
		zap.Duration("duration", time.Since(start)),
	)
	if result.Err != nil {
		log.Warn("batch.job.failed", zap.String("error", apperrors.Format(result.Err)))
	} else {
		log.Debug("batch.job.done", zap.Stringer("size", result.Info.Size))
	}
	return result
}

func (p *Processor) compress(ctx context.Context, job Job) (*processor.Result, error) {
	if job.Open == nil {
		return nil, apperrors.NewValidation(fmt.Sprintf("job %q has no input", job.ID))
	}
	rc, err := job.Open()
	if err != nil {
		return nil, apperrors.NewIO(err, "failed to open input")
	}
	defer rc.Close()
	return p.compressor.CompressWithInfo(ctx, rc, job.Options)
}

func (p *Processor) upload(ctx context.Context, job Job, img processor.EncodedImage) (string, error) {
	name := job.Name
	if name == "" {
		name = job.ID
	}
	out, err := p.store.Upload(ctx, storage.UploadInput{
		File:        strings.NewReader(string(img)),
		Filename:    name + ".b64",
		Folder:      p.config.Folder,
		ContentType: "text/plain",
		Metadata:    map[string]string{"job-id": job.ID},
	})
	if err != nil {
		return "", apperrors.NewIO(err, "upload failed").WithDetail("provider", p.store.Name())
	}
	return out.URL, nil
}

// ProgressTracker 进度追踪器
type ProgressTracker struct {
	total      int
	completed  int
	failed     int
	onProgress func(completed, failed, total int)
	mu         sync.RWMutex
}

// NewProgressTracker 创建进度追踪器. onProgress, if not nil, is called after
// every finished job, possibly from several goroutines at once.
func NewProgressTracker(total int, onProgress func(completed, failed, total int)) *ProgressTracker {
	return &ProgressTracker{
		total:      total,
		onProgress: onProgress,
	}
}

func (t *ProgressTracker) record(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	if err != nil {
		t.failed++
	} else {
		t.completed++
	}
	c, f, total := t.completed, t.failed, t.total
	t.mu.Unlock()

	if t.onProgress != nil {
		t.onProgress(c, f, total)
	}
}

// GetProgress 获取进度
func (t *ProgressTracker) GetProgress() (completed, failed, total int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.completed, t.failed, t.total
}

// GetPercentage 获取百分比
func (t *ProgressTracker) GetPercentage() float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.total == 0 {
		return 0
	}
	return float64(t.completed+t.failed) / float64(t.total) * 100
}
