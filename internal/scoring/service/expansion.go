package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
	"github.com/smallbiznis/pulse/internal/scoring/domain"
)

// Expansion trigger thresholds.
const (
	upgradeUtilization = 0.80
	upgradeGrowth      = 0.10
	upgradeReliability = 0.90
	urgentUtilization  = 0.95
	overageUtilization = 0.90
	overageGrowth      = 0.05
	addonEngagement    = 0.70
	addonUtilization   = 0.60
)

// identifyOpportunities evaluates the expansion triggers against one
// business's signals. The upgrade trigger takes precedence over the
// usage-increase trigger, which only fires when no plan upgrade applies;
// the addon trigger is independent and may co-fire.
func (s *Service) identifyOpportunities(ctx context.Context, businessID snowflake.ID, sig domain.BusinessSignals, asOf time.Time) ([]domain.ExpansionOpportunity, error) {
	currentPrice, err := s.catalog.PriceOf(ctx, sig.PlanID)
	if err != nil && !errors.Is(err, pricingdomain.ErrInvalidPricing) {
		return nil, err
	}

	var opportunities []domain.ExpansionOpportunity

	upgraded := false
	if sig.PlanUtilization > upgradeUtilization &&
		sig.UsageTrend30d > upgradeGrowth &&
		sig.PaymentReliability > upgradeReliability {
		next, ok, err := s.catalog.NextTier(ctx, sig.PlanID)
		if err != nil && !errors.Is(err, pricingdomain.ErrInvalidPricing) {
			return nil, err
		}
		if ok {
			urgency := 70
			if sig.PlanUtilization >= urgentUtilization {
				urgency = 90
			}
			opportunities = append(opportunities, domain.ExpansionOpportunity{
				ID:                       s.genID.Generate(),
				BusinessID:               businessID,
				Type:                     domain.OpportunityUpgrade,
				CurrentPlan:              sig.PlanID,
				RecommendedPlan:          next.ID,
				PotentialRevenueIncrease: next.PriceCents - currentPrice,
				ConversionProbability:    minFloat(0.8, sig.PlanUtilization*1.2),
				UrgencyScore:             urgency,
				Actions: []string{
					fmt.Sprintf("Recommend an upgrade to the %s plan", next.ID),
					"Share a usage report showing current plan pressure",
				},
				GeneratedAt: asOf,
			})
			upgraded = true
		}
	}

	if !upgraded && sig.PlanUtilization > overageUtilization && sig.UsageTrend30d > overageGrowth {
		opportunities = append(opportunities, domain.ExpansionOpportunity{
			ID:                       s.genID.Generate(),
			BusinessID:               businessID,
			Type:                     domain.OpportunityUsageIncrease,
			CurrentPlan:              sig.PlanID,
			PotentialRevenueIncrease: currentPrice / 5,
			ConversionProbability:    0.6,
			UrgencyScore:             60,
			Actions: []string{
				"Propose a higher usage allowance before overages hit",
			},
			GeneratedAt: asOf,
		})
	}

	if sig.FeatureAdoption > addonEngagement && sig.PlanUtilization > addonUtilization {
		opportunities = append(opportunities, domain.ExpansionOpportunity{
			ID:                       s.genID.Generate(),
			BusinessID:               businessID,
			Type:                     domain.OpportunityAddon,
			CurrentPlan:              sig.PlanID,
			PotentialRevenueIncrease: currentPrice / 4,
			ConversionProbability:    0.5,
			UrgencyScore:             50,
			Actions: []string{
				"Introduce add-on modules matching current feature engagement",
			},
			GeneratedAt: asOf,
		})
	}

	return opportunities, nil
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
