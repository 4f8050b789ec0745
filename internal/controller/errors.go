package controller

import (
	"context"
	"errors"
	"net/http"

	"github.com/signalsfoundry/rocketflight/internal/logging"
	"github.com/signalsfoundry/rocketflight/internal/service"
	"github.com/signalsfoundry/rocketflight/internal/store"
	"github.com/signalsfoundry/rocketflight/model"
)

const (
	unavailableDetail = "Service temporarily unavailable, please retry"
	internalDetail    = "Internal server error"
)

// HTTPError is a failure ready to be rendered as {"detail": ...}.
type HTTPError struct {
	Status int
	Detail string
	Err    error
}

func (e *HTTPError) Error() string { return e.Detail }
func (e *HTTPError) Unwrap() error { return e.Err }

// Translate maps domain errors onto HTTP statuses. Store failures and
// unexpected errors are logged and get a neutral detail.
func Translate(ctx context.Context, err error) *HTTPError {
	if err == nil {
		return nil
	}
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr
	}

	switch {
	case errors.Is(err, model.ErrValidation):
		return &HTTPError{Status: http.StatusUnprocessableEntity, Detail: err.Error(), Err: err}

	case errors.Is(err, model.ErrNotFound):
		return &HTTPError{Status: http.StatusNotFound, Detail: err.Error(), Err: err}

	case errors.Is(err, store.ErrUnavailable):
		logging.FromContext(ctx).Error(ctx, "store unavailable", logging.Err(err))
		return &HTTPError{Status: http.StatusServiceUnavailable, Detail: unavailableDetail, Err: err}

	case errors.Is(err, service.ErrSimulation):
		logging.FromContext(ctx).Error(ctx, "simulation failed", logging.Err(err))
		return &HTTPError{Status: http.StatusInternalServerError, Detail: err.Error(), Err: err}

	default:
		logging.FromContext(ctx).Error(ctx, "unhandled error", logging.Err(err))
		return &HTTPError{Status: http.StatusInternalServerError, Detail: internalDetail, Err: err}
	}
}
