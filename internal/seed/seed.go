// Package seed bootstraps reference data on startup.
package seed

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
)

var defaultPlans = []pricingdomain.Plan{
	{ID: pricingdomain.PlanFree, Name: "Free", PriceCents: 0, TierRank: 0, UsageLimit: 100},
	{ID: pricingdomain.PlanStarter, Name: "Starter", PriceCents: 2900, TierRank: 1, UsageLimit: 1000},
	{ID: pricingdomain.PlanPro, Name: "Pro", PriceCents: 9900, TierRank: 2, UsageLimit: 10000},
	{ID: pricingdomain.PlanBusiness, Name: "Business", PriceCents: 24900, TierRank: 3, UsageLimit: 100000},
	{ID: pricingdomain.PlanEnterprise, Name: "Enterprise", PriceCents: 49900, TierRank: 4, UsageLimit: 1000000},
}

// EnsurePlanCatalog inserts the default plan tiers when they are missing.
// Existing rows are left untouched so operators can reprice plans.
func EnsurePlanCatalog(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	ctx := context.Background()
	now := time.Now().UTC()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, plan := range defaultPlans {
			err := tx.WithContext(ctx).Exec(
				`INSERT INTO plans (id, name, price_cents, tier_rank, usage_limit, created_at)
				 VALUES (?, ?, ?, ?, ?, ?)
				 ON CONFLICT (id) DO NOTHING`,
				plan.ID,
				plan.Name,
				plan.PriceCents,
				plan.TierRank,
				plan.UsageLimit,
				now,
			).Error
			if err != nil {
				return err
			}
		}
		return nil
	})
}
