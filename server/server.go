// Package server exposes the image pipeline over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/leeforge/huddle-media/config"
	"github.com/leeforge/huddle-media/http/middleware"
	"github.com/leeforge/huddle-media/http/responder"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/source"
	"github.com/leeforge/huddle-media/metrics"
	"github.com/leeforge/huddle-media/utils"
)

// Deps are the pipeline components the handlers call.
type Deps struct {
	Compressor *processor.Compressor
	Extractor  *processor.Extractor
	Loader     *source.Loader
	Presets    processor.Presets
	Logger     logging.Logger
	Metrics    *metrics.Collector
}

// Server serves the image API.
type Server struct {
	cfg        config.ServerConfig
	compressor *processor.Compressor
	extractor  *processor.Extractor
	loader     *source.Loader
	presets    atomic.Pointer[processor.Presets]
	logger     logging.Logger
	metrics    *metrics.Collector
	router     chi.Router
}

// New builds a Server and its routes. Missing dependencies fall back to
// default-configured components.
func New(cfg config.ServerConfig, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = logging.Nop()
	}
	if deps.Loader == nil {
		deps.Loader = source.NewLoader(source.Config{}, source.WithLogger(deps.Logger))
	}
	if deps.Compressor == nil {
		deps.Compressor = processor.NewCompressor(processor.WithLogger(deps.Logger))
	}
	if deps.Extractor == nil {
		deps.Extractor = processor.NewExtractor(deps.Loader, processor.WithExtractorLogger(deps.Logger))
	}
	if deps.Presets == nil {
		deps.Presets = processor.DefaultPresets()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewCollector()
	}

	s := &Server{
		cfg:        cfg,
		compressor: deps.Compressor,
		extractor:  deps.Extractor,
		loader:     deps.Loader,
		logger:     deps.Logger.Named("server"),
		metrics:    deps.Metrics,
	}
	s.SetPresets(deps.Presets)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.TraceIDMiddleware())
	r.Use(middleware.TimingMiddleware())
	r.Use(logging.HTTPMiddleware(s.logger))
	r.Use(logging.RecoveryMiddleware(s.logger))
	r.Use(s.metrics.Middleware)
	r.Use(middleware.SecureHeaders())
	r.Use(middleware.CORS(s.cfg.CORS))
	if s.cfg.RateLimit > 0 {
		limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{
			Rate:  s.cfg.RateLimit,
			Burst: s.cfg.RateBurst,
		})
		r.Use(limiter.Middleware)
	}
	r.Use(s.limitBody)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		responder.NotFound(w, r, middleware.ResponseMeta(r)...)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		responder.MethodNotAllowed(w, r, middleware.ResponseMeta(r)...)
	})

	r.Get("/healthz", s.health)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Route("/api/v1/images", func(r chi.Router) {
		r.Post("/compress", s.compress)
		r.Post("/crop", s.crop)
		r.Get("/presets", s.listPresets)
	})
	return r
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Presets returns the active preset table.
func (s *Server) Presets() processor.Presets {
	return *s.presets.Load()
}

// SetPresets swaps the preset table used by new requests.
func (s *Server) SetPresets(p processor.Presets) {
	s.presets.Store(&p)
}

// WatchPresets reloads the preset table whenever the config files change.
func (s *Server) WatchPresets(c *config.Config) error {
	return c.Watch(func() any { return &config.AppConfig{} }, func(instance any, e fsnotify.Event) {
		app, ok := instance.(*config.AppConfig)
		if !ok {
			return
		}
		presets := app.Media.PresetTable()
		s.SetPresets(presets)
		s.logger.Info("presets.reloaded",
			zap.String("file", e.Name),
			zap.Strings("presets", presets.Names()),
		)
	})
}

func (s *Server) limitBody(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.MaxBodyBytes > 0 && r.Body != nil {
			r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
		}
		next.ServeHTTP(w, r)
	})
}

// Run serves until ctx is canceled, then shuts down gracefully within the
// configured shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server.started",
			zap.String("addr", s.cfg.Addr),
			zap.Strings("routes", utils.Routes(s.router)),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	timeout := s.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.logger.Info("server.stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	s.logger.Info("server.stopped")
	return nil
}
