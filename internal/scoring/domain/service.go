package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrNoSnapshotHistory = errors.New("no_snapshot_history")
	ErrInvalidHorizon    = errors.New("invalid_horizon")
)

// Service is the churn, forecast, and expansion scoring engine. Scoring is
// an explicit weighted-rule system: the same inputs always produce the
// same outputs, byte for byte.
type Service interface {
	PredictChurn(ctx context.Context, businessID snowflake.ID, horizonDays int, asOf time.Time) (ChurnPrediction, error)
	ForecastRevenue(ctx context.Context, horizonMonths int, asOf time.Time) (RevenueForecast, error)
	IdentifyExpansionOpportunities(ctx context.Context, businessID snowflake.ID, asOf time.Time) ([]ExpansionOpportunity, error)

	Assessor
}

// Assessor exposes the churn model's verdict for reuse by the LTV engine,
// so segmentation and churn scoring share one implementation.
type Assessor interface {
	AssessBusiness(ctx context.Context, businessID snowflake.ID, asOf time.Time) (Assessment, error)
}
