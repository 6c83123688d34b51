package server

import (
	"bytes"
	"io"
	"mime"
	"net/http"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/leeforge/huddle-media/errors"
	"github.com/leeforge/huddle-media/http/binding"
	"github.com/leeforge/huddle-media/http/middleware"
	"github.com/leeforge/huddle-media/http/responder"
	"github.com/leeforge/huddle-media/logging"
	"github.com/leeforge/huddle-media/media/geometry"
	"github.com/leeforge/huddle-media/media/processor"
	"github.com/leeforge/huddle-media/media/source"
	"github.com/leeforge/huddle-media/utils"
)

// multipartMemory is how much of a multipart upload is held in memory
// before spilling to disk.
const multipartMemory = 8 << 20

type compressRequest struct {
	Source    string   `form:"source" json:"source"`
	Preset    string   `form:"preset" json:"preset"`
	MaxWidth  *int     `form:"maxWidth" json:"maxWidth" validate:"omitempty,gt=0"`
	MaxHeight *int     `form:"maxHeight" json:"maxHeight" validate:"omitempty,gt=0"`
	Quality   *float64 `form:"quality" json:"quality" validate:"omitempty,gte=0,lte=1"`
}

// options resolves the preset and lays the explicit overrides over it.
func (req compressRequest) options(presets processor.Presets) (processor.CompressionOptions, error) {
	opts, err := presets.Lookup(req.Preset)
	if err != nil {
		return opts, err
	}
	if req.MaxWidth != nil {
		opts.MaxWidth = *req.MaxWidth
	}
	if req.MaxHeight != nil {
		opts.MaxHeight = *req.MaxHeight
	}
	if req.Quality != nil {
		opts.Quality = *req.Quality
	}
	return opts, nil
}

type cropBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width" validate:"gt=0"`
	Height int `json:"height" validate:"gt=0"`
}

type cropRequest struct {
	Source   string         `json:"source" validate:"required"`
	Crop     *cropBox       `json:"crop" validate:"required"`
	Rotation float64        `json:"rotation"`
	Flip     *geometry.Flip `json:"flip"`
}

type imageResponse struct {
	Image    processor.EncodedImage `json:"image"`
	Width    int                    `json:"width"`
	Height   int                    `json:"height"`
	Bytes    int                    `json:"bytes"`
	Original *geometry.Size         `json:"original,omitempty"`
}

type presetResponse struct {
	Name      string  `json:"name"`
	Label     string  `json:"label"`
	MaxWidth  int     `json:"maxWidth"`
	MaxHeight int     `json:"maxHeight"`
	Quality   float64 `json:"quality"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	responder.OK(w, r, map[string]string{"status": "ok"}, middleware.ResponseMeta(r)...)
}

func (s *Server) listPresets(w http.ResponseWriter, r *http.Request) {
	presets := s.Presets()
	out := make([]presetResponse, 0, len(presets))
	for _, name := range presets.Names() {
		p := presets[name]
		out = append(out, presetResponse{
			Name:      name,
			Label:     utils.TitleCase(name),
			MaxWidth:  p.MaxWidth,
			MaxHeight: p.MaxHeight,
			Quality:   p.Quality,
		})
	}
	responder.OK(w, r, out, middleware.ResponseMeta(r)...)
}

func (s *Server) compress(w http.ResponseWriter, r *http.Request) {
	var (
		req  compressRequest
		body io.Reader
		err  error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		body, err = s.readUpload(r, &req)
	} else {
		body, err = s.readSource(r, &req)
	}
	if err != nil {
		s.fail(w, r, err)
		return
	}

	opts, err := req.options(s.Presets())
	if err != nil {
		s.fail(w, r, err)
		return
	}

	start := time.Now()
	res, err := s.compressor.CompressWithInfo(r.Context(), body, &opts)
	s.record("compress", start, res, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	original := res.Original
	responder.OK(w, r, imageResponse{
		Image:    res.Image,
		Width:    res.Size.Width,
		Height:   res.Size.Height,
		Bytes:    res.Image.Len(),
		Original: &original,
	}, middleware.ResponseMeta(r)...)
}

// readUpload binds the multipart form fields into req and returns the
// uploaded file, or the referenced source when no file was sent.
func (s *Server) readUpload(r *http.Request, req *compressRequest) (io.Reader, error) {
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		if isMaxBytes(err) {
			return nil, &binding.BindError{Type: binding.TypeBodyTooLarge, Message: err.Error()}
		}
		return nil, &binding.BindError{Type: binding.TypeBindError, Message: err.Error()}
	}
	if err := binding.Form(r, req); err != nil {
		return nil, err
	}

	file, _, err := r.FormFile("file")
	if err == nil {
		defer file.Close()
		limit := s.cfg.MaxBodyBytes
		if limit <= 0 {
			limit = source.DefaultMaxBytes
		}
		data, err := source.ReadAll(file, limit)
		if err != nil {
			return nil, err
		}
		return bytes.NewReader(data), nil
	}
	if err != http.ErrMissingFile {
		return nil, &binding.BindError{Type: binding.TypeBindError, Field: "file", Message: err.Error()}
	}
	if req.Source == "" {
		return nil, binding.ValidationErrors{{
			Type:    binding.TypeValidationError,
			Field:   "file",
			Message: "is required when source is empty",
		}}
	}
	return s.load(r, req.Source)
}

func (s *Server) readSource(r *http.Request, req *compressRequest) (io.Reader, error) {
	if err := binding.JSON(r, req); err != nil {
		return nil, err
	}
	if req.Source == "" {
		return nil, binding.ValidationErrors{{
			Type:    binding.TypeValidationError,
			Field:   "source",
			Message: "is required",
		}}
	}
	return s.load(r, req.Source)
}

func checkSource(ref string) error {
	switch source.KindOf(ref) {
	case source.KindDataURI, source.KindURL:
		return nil
	}
	return apperrors.NewValidation("source must be a data URI or an http(s) URL").
		WithDetail("field", "source")
}

// load resolves a client supplied reference. Only inline data URIs and
// remote URLs are accepted; local paths would expose the server filesystem.
func (s *Server) load(r *http.Request, ref string) (io.Reader, error) {
	if err := checkSource(ref); err != nil {
		return nil, err
	}
	data, err := s.loader.Load(r.Context(), ref)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(data), nil
}

func (s *Server) crop(w http.ResponseWriter, r *http.Request) {
	var req cropRequest
	if err := binding.JSON(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := checkSource(req.Source); err != nil {
		s.fail(w, r, err)
		return
	}

	region := geometry.NewCropRegion(req.Crop.X, req.Crop.Y, req.Crop.Width, req.Crop.Height)
	start := time.Now()
	img, err := s.extractor.Extract(r.Context(), req.Source, region, req.Rotation, req.Flip)
	s.record("crop", start, &processor.Result{Image: img}, err)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	width, height := region.Width, region.Height
	if cfg, err := img.Config(); err == nil {
		width, height = cfg.Width, cfg.Height
	}
	responder.OK(w, r, imageResponse{
		Image:  img,
		Width:  width,
		Height: height,
		Bytes:  img.Len(),
	}, middleware.ResponseMeta(r)...)
}

func (s *Server) record(op string, start time.Time, res *processor.Result, err error) {
	if err != nil {
		s.metrics.RecordImage(op, time.Since(start), 0, string(apperrors.TypeOf(err)))
		return
	}
	s.metrics.RecordImage(op, time.Since(start), res.Image.Len(), "")
}

// fail writes err as an error envelope.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	meta := middleware.ResponseMeta(r)

	var verrs binding.ValidationErrors
	switch {
	case asValidation(err, &verrs):
		responder.ValidationError(w, r, verrs, meta...)
		return
	case binding.IsBodyTooLarge(err):
		responder.BodyTooLarge(w, r, "", meta...)
		return
	case isBindError(err):
		responder.BindError(w, r, err.Error(), meta...)
		return
	}

	status, payload := responder.FromAppError(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context()).Error("request.failed", zap.Error(err))
	} else {
		logging.FromContext(r.Context()).Debug("request.rejected",
			zap.Int("status", status),
			zap.String("type", string(apperrors.TypeOf(err))),
			zap.Error(err),
		)
	}
	responder.WriteError(w, r, status, payload, meta...)
}
