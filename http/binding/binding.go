package binding

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	validatorV10 "github.com/go-playground/validator/v10"

	"github.com/leeforge/huddle-media/json"
)

const (
	InvalidRequestBodyError = "invalid request body"
)

// BindError types.
const (
	TypeBindError       = "bind_error"
	TypeJSONError       = "json_error"
	TypeValidationError = "validation_error"
	TypeBodyTooLarge    = "body_too_large"
)

type BindError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e BindError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: field '%s' %s", e.Type, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

type ValidationErrors []BindError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", ve[0].Error())
}

// IsBodyTooLarge reports whether err came from a body over the server limit.
func IsBodyTooLarge(err error) bool {
	var be *BindError
	return stderrors.As(err, &be) && be.Type == TypeBodyTooLarge
}

// DecodeOptions JSON 解码选项配置
type DecodeOptions struct {
	// DisallowUnknownFields 不允许 JSON 中包含未知字段
	disallowUnknownFields bool
}

// Option 解码选项函数类型
type Option func(*DecodeOptions)

// WithDisallowUnknownFields 不允许 JSON 中包含结构体未定义的字段
func WithDisallowUnknownFields() Option {
	return func(opts *DecodeOptions) {
		opts.disallowUnknownFields = true
	}
}

// JSON decodes the request body into v, applying `default` tags first, and
// validates the result.
func JSON(r *http.Request, v any, opts ...Option) error {
	if r == nil || r.Body == nil {
		return &BindError{
			Type:    TypeBindError,
			Message: "request body is empty",
		}
	}

	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return &BindError{
				Type:    TypeBodyTooLarge,
				Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
			}
		}
		return &BindError{
			Type:    TypeBindError,
			Message: "failed to read request body: " + err.Error(),
		}
	}

	if len(body) == 0 {
		return &BindError{
			Type:    TypeBindError,
			Message: "request body is empty",
		}
	}

	options := &DecodeOptions{}
	for _, opt := range opts {
		opt(options)
	}

	if options.disallowUnknownFields {
		decoder := json.NewDecoder(bytes.NewReader(body))
		decoder.DisallowUnknownFields()
		err = decoder.Decode(v)
	} else {
		err = json.Unmarshal(body, v)
	}
	if err != nil {
		return &BindError{
			Type:    TypeJSONError,
			Message: "failed to unmarshal JSON: " + err.Error(),
		}
	}

	return Validate(v)
}

// Validate runs struct validation and converts failures into
// ValidationErrors.
func Validate(v any) error {
	if err := validator.Struct(v); err != nil {
		var validationErrors validatorV10.ValidationErrors
		if stderrors.As(err, &validationErrors) {
			var bindErrors ValidationErrors
			for _, ve := range validationErrors {
				bindErrors = append(bindErrors, BindError{
					Type:    TypeValidationError,
					Field:   ve.Field(),
					Message: getValidationMessage(ve),
				})
			}
			return bindErrors
		}
		return &BindError{
			Type:    TypeValidationError,
			Message: err.Error(),
		}
	}
	return nil
}
