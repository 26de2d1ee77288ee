package domain

import (
	"context"
	"errors"
	"time"

	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
)

var (
	ErrAlertNotFound = errors.New("alert_not_found")
	ErrAlertResolved = errors.New("alert_resolved")
)

// Service derives insights and alerts from snapshots and scores.
type Service interface {
	// GenerateInsights compares the latest snapshot pair and history
	// against fixed thresholds and persists what crosses them.
	GenerateInsights(ctx context.Context, asOf time.Time) (int, error)
	// GenerateAlerts evaluates the severity ladders and inserts alerts,
	// suppressing any key with an unresolved instance already stored.
	GenerateAlerts(ctx context.Context, asOf time.Time, predictions []scoringdomain.ChurnPrediction) (created, suppressed int, err error)
}
