package router

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jiaming2012/analytics-sim/src/analytics/models"
	"github.com/jiaming2012/analytics-sim/src/eventmodels"
)

func TestToWebError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"bar feed failure", fmt.Errorf("%w: 5m at 1704067200: connection refused", models.ErrBarFeed), http.StatusServiceUnavailable, "bar_feed_unavailable"},
		{"bar feed timeout", fmt.Errorf("%w: 5m at 1704067200: context deadline exceeded", models.ErrBarFeedTimeout), http.StatusServiceUnavailable, "bar_feed_unavailable"},
		{"busy", fmt.Errorf("RemoveRunner: %w", models.ErrBusy), http.StatusConflict, "busy"},
		{"missing runner", fmt.Errorf("runner 7: %w", models.ErrRunnerNotFound), http.StatusNotFound, "not_found"},
		{"invalid runner", models.ErrInvalidRunner, http.StatusBadRequest, "invalid_request"},
		{"unclassified", errors.New("disk full"), http.StatusInternalServerError, "internal_error"},
		{"already classified", eventmodels.NewWebError(http.StatusTeapot, "teapot", nil), http.StatusTeapot, "teapot"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			webErr := toWebError(tc.err)
			assert.Equal(t, tc.status, webErr.StatusCode)
			assert.Equal(t, tc.kind, webErr.Type())
		})
	}
}
