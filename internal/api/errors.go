package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/samcharles93/cadence/internal/corpus"
	"github.com/samcharles93/cadence/internal/ensemble"
	"github.com/samcharles93/cadence/internal/generate"
	"github.com/samcharles93/cadence/internal/workspace"
)

var ErrInvalidRequest = errors.New("invalid_request")

type invalidRequestError struct {
	msg string
}

func (e invalidRequestError) Error() string {
	return e.msg
}

func (e invalidRequestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(msg string) error {
	return invalidRequestError{msg: msg}
}

// classify maps a composition error to a status code and error type.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, corpus.ErrCorpusTooShort):
		// Too few notes in the workspace to seed the model.
		return http.StatusServiceUnavailable, "unavailable_error"
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, generate.ErrInvalidArgument),
		errors.Is(err, generate.ErrInvalidContext),
		errors.Is(err, ensemble.ErrUnknownMode),
		errors.Is(err, ensemble.ErrUnknownInstrument),
		errors.Is(err, workspace.ErrInvalidName):
		return http.StatusBadRequest, "invalid_request_error"
	case errors.Is(err, workspace.ErrModelNotFound):
		return http.StatusNotFound, "not_found_error"
	case errors.Is(err, generate.ErrModelUnavailable),
		errors.Is(err, generate.ErrInvalidVocabulary),
		errors.Is(err, workspace.ErrNotPreprocessed):
		return http.StatusServiceUnavailable, "unavailable_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "timeout_error"
	}
	return http.StatusInternalServerError, "server_error"
}
