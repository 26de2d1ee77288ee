// Package domain defines the plan catalog consumed by the pipeline.
package domain

import (
	"context"
	"errors"
)

// Well-known plan identifiers, ordered by tier rank.
const (
	PlanFree       = "free"
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanBusiness   = "business"
	PlanEnterprise = "enterprise"
)

// ErrInvalidPricing marks an unknown plan id. Callers treat the price as
// zero and log a data-quality warning; it is never fatal.
var ErrInvalidPricing = errors.New("invalid_pricing")

// Plan is one sellable tier.
type Plan struct {
	ID         string
	Name       string
	PriceCents int64
	TierRank   int
	UsageLimit int64
}

// Catalog resolves plan pricing and the upgrade ladder.
type Catalog interface {
	// PriceOf returns the monthly price in minor units. Unknown plans
	// return 0 together with ErrInvalidPricing.
	PriceOf(ctx context.Context, planID string) (int64, error)
	// TierRank returns the plan's position in the upgrade ladder, 0-based.
	TierRank(ctx context.Context, planID string) (int, error)
	// NextTier returns the next plan up the ladder, or ok=false at the top.
	NextTier(ctx context.Context, planID string) (Plan, bool, error)
	// UsageLimit returns the included monthly usage-event allowance.
	UsageLimit(ctx context.Context, planID string) (int64, error)
}
