package router

import (
	"errors"
	"net/http"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/eventmodels"
)

type errorResponse struct {
	Type string `json:"type"`
	Msg  string `json:"message"`
}

func NewErrorResponse(errType string, message string) *errorResponse {
	return &errorResponse{
		Type: errType,
		Msg:  message,
	}
}

// toWebError maps domain errors to HTTP status codes.
func toWebError(err error) *eventmodels.WebError {
	var webErr *eventmodels.WebError
	if errors.As(err, &webErr) {
		return webErr
	}

	switch {
	case errors.Is(err, models.ErrNotReady):
		return eventmodels.NewWebError(http.StatusConflict, "not_ready", err)
	case errors.Is(err, models.ErrBusy):
		return eventmodels.NewWebError(http.StatusConflict, "busy", err)
	case errors.Is(err, models.ErrNotRunning):
		return eventmodels.NewWebError(http.StatusConflict, "not_running", err)
	case errors.Is(err, models.ErrRunCompleted):
		return eventmodels.NewWebError(http.StatusConflict, "run_completed", err)
	case errors.Is(err, models.ErrBrokerInvariantViolation):
		return eventmodels.NewWebError(http.StatusConflict, "broker_invariant_violation", err)
	case errors.Is(err, models.ErrOpenPosition):
		return eventmodels.NewWebError(http.StatusConflict, "open_position", err)
	case errors.Is(err, models.ErrRunnerNotFound), errors.Is(err, models.ErrResetJobNotFound):
		return eventmodels.NewWebError(http.StatusNotFound, "not_found", err)
	case errors.Is(err, models.ErrBarFeed), errors.Is(err, models.ErrBarFeedTimeout):
		return eventmodels.NewWebError(http.StatusServiceUnavailable, "bar_feed_unavailable", err)
	case errors.Is(err, models.ErrInvalidRunner), errors.Is(err, models.ErrInvalidTimeframe), errors.Is(err, models.ErrUnknownStrategy):
		return eventmodels.NewWebError(http.StatusBadRequest, "invalid_request", err)
	default:
		return eventmodels.NewWebError(http.StatusInternalServerError, "internal_error", err)
	}
}
