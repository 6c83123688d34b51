package server

import (
	stderrors "errors"
	"net/http"

	"github.com/leeforge/huddle-media/http/binding"
)

func asValidation(err error, target *binding.ValidationErrors) bool {
	return stderrors.As(err, target)
}

func isBindError(err error) bool {
	var be *binding.BindError
	return stderrors.As(err, &be)
}

func isMaxBytes(err error) bool {
	var mbe *http.MaxBytesError
	return stderrors.As(err, &mbe)
}
