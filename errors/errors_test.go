package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewSetsStatusFromType(t *testing.T) {
	tests := []struct {
		errType ErrorType
		status  int
	}{
		{ErrorTypeValidation, http.StatusBadRequest},
		{ErrorTypeDecode, http.StatusUnprocessableEntity},
		{ErrorTypeSecurity, http.StatusForbidden},
		{ErrorTypeIO, http.StatusBadGateway},
		{ErrorTypeTimeout, http.StatusRequestTimeout},
		{ErrorTypeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.errType), func(t *testing.T) {
			err := New(tt.errType, "boom")
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.Equal(t, string(tt.errType), err.Code)
		})
	}
}

func TestWrapKeepsTypeAndChain(t *testing.T) {
	cause := fmt.Errorf("unexpected EOF")
	decodeErr := NewDecode(cause, "decode image")

	wrapped := Wrap(decodeErr, "compress")
	assert.Equal(t, ErrorTypeDecode, wrapped.Type)
	assert.True(t, errors.Is(wrapped, cause))
	assert.True(t, IsType(fmt.Errorf("outer: %w", wrapped), ErrorTypeDecode))
	assert.Equal(t, "compress: decode image: unexpected EOF", wrapped.Error())
}

func TestFromErrorPlainError(t *testing.T) {
	appErr := FromError(errors.New("plain"))
	assert.Equal(t, ErrorTypeUnknown, appErr.Type)
	assert.Equal(t, http.StatusInternalServerError, appErr.HTTPStatus)
	assert.Nil(t, FromError(nil))
}

func TestIsMatchesByType(t *testing.T) {
	err := NewSecurity("origin not allowed")
	assert.True(t, errors.Is(err, New(ErrorTypeSecurity, "")))
	assert.False(t, errors.Is(err, New(ErrorTypeIO, "")))
}

func TestFormat(t *testing.T) {
	err := NewInvalid("quality", 1.5, "must be within [0,1]")
	out := Format(err)
	assert.Contains(t, out, "[validation]")
	assert.Contains(t, out, "code=VALIDATION_FAILED")
	assert.Contains(t, out, "field=quality")
	assert.Empty(t, Format(nil))
}
