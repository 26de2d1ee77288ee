package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var ErrNoSubscriptions = errors.New("no_subscriptions")

// Service computes revenue snapshots, customer lifetime value, and cohorts.
type Service interface {
	// CalculateMRR decomposes MRR for the given date against the period one
	// month earlier. The result is a pure function of the two subscription
	// sets; recomputing with identical data yields identical output.
	CalculateMRR(ctx context.Context, date time.Time) (MRRSnapshot, error)
	// CalculateLTV builds the live value/risk record for one business.
	CalculateLTV(ctx context.Context, businessID snowflake.ID, asOf time.Time) (CustomerLTVRecord, error)
	// CohortAnalysis groups businesses by first-subscription month and
	// reports retention as of asOf, sorted by cohort month ascending.
	CohortAnalysis(ctx context.Context, asOf time.Time) ([]CohortEntry, error)
}
