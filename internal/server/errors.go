package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	insightdomain "github.com/smallbiznis/pulse/internal/insight/domain"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	"github.com/smallbiznis/pulse/internal/pipeline"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
)

// ErrServiceUnavailable is returned when a handler's dependency is missing.
var ErrServiceUnavailable = errors.New("service_unavailable")

// AbortWithError maps domain errors to HTTP status codes.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, insightdomain.ErrAlertNotFound),
		errors.Is(err, metricsdomain.ErrEntityNotFound):
		status = http.StatusNotFound
	case errors.Is(err, insightdomain.ErrAlertResolved):
		status = http.StatusConflict
	case errors.Is(err, scoringdomain.ErrInvalidHorizon):
		status = http.StatusBadRequest
	case errors.Is(err, snapshotdomain.ErrNoSubscriptions),
		errors.Is(err, scoringdomain.ErrNoSnapshotHistory),
		errors.Is(err, pipeline.ErrSnapshotFailed):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, metricsdomain.ErrRepositoryUnavailable),
		errors.Is(err, ErrServiceUnavailable):
		status = http.StatusServiceUnavailable
	}
	c.AbortWithStatusJSON(status, gin.H{"error": err.Error()})
}
