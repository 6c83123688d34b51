package responder

import (
	"net/http"

	"github.com/leeforge/huddle-media/json"
)

// writeJSON is the internal helper for all response functions
func writeJSON(w http.ResponseWriter, status int, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		fallback := []byte("{\"error\":{\"code\":5000,\"message\":\"encode failed\"}}")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write(fallback)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(raw)
}

// Write sends a success response with data
func Write(w http.ResponseWriter, r *http.Request, status int, data any, opts ...Option) {
	meta := NewMeta(opts...)
	res := &Response{
		Data: data,
		Meta: *meta,
	}
	writeJSON(w, status, res)
}

// WriteError sends an error response
func WriteError(w http.ResponseWriter, r *http.Request, status int, err Error, opts ...Option) {
	meta := NewMeta(opts...)
	res := &Response{
		Error: &err,
		Meta:  *meta,
	}
	writeJSON(w, status, res)
}

// OK responds with 200 OK and data
func OK(w http.ResponseWriter, r *http.Request, data any, opts ...Option) {
	Write(w, r, http.StatusOK, data, opts...)
}

// BadRequest responds with 400 Bad Request
func BadRequest(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewError(ErrCodeBadRequest, message), opts...)
}

// NotFound responds with 404 for unknown routes
func NotFound(w http.ResponseWriter, r *http.Request, opts ...Option) {
	WriteError(w, r, http.StatusNotFound, NewError(ErrCodeRouteNotFound, ""), opts...)
}

// MethodNotAllowed responds with 405
func MethodNotAllowed(w http.ResponseWriter, r *http.Request, opts ...Option) {
	WriteError(w, r, http.StatusMethodNotAllowed, NewError(ErrCodeMethodNotAllowed, ""), opts...)
}

// ValidationError responds with 400 Bad Request and validation details
func ValidationError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeValidationFailed, "", details), opts...)
}

// BindError responds with 400 Bad Request for binding errors
func BindError(w http.ResponseWriter, r *http.Request, details any, opts ...Option) {
	WriteError(w, r, http.StatusBadRequest, NewErrorWithDetails(ErrCodeBindFailed, "", details), opts...)
}

// BodyTooLarge responds with 413
func BodyTooLarge(w http.ResponseWriter, r *http.Request, message string, opts ...Option) {
	WriteError(w, r, http.StatusRequestEntityTooLarge, NewError(ErrCodeBodyTooLarge, message), opts...)
}

// TooManyRequests responds with 429
func TooManyRequests(w http.ResponseWriter, r *http.Request, opts ...Option) {
	WriteError(w, r, http.StatusTooManyRequests, NewError(ErrCodeTooManyRequests, ""), opts...)
}

// AppError responds with the status and code derived from an application
// error.
func AppError(w http.ResponseWriter, r *http.Request, err error, opts ...Option) {
	status, payload := FromAppError(err)
	WriteError(w, r, status, payload, opts...)
}
