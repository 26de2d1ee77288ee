// Package service implements the plan catalog on gorm with a TTL cache.
package service

import (
	"context"
	"time"

	"github.com/smallbiznis/pulse/internal/cache"
	"github.com/smallbiznis/pulse/internal/pricing/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const planCacheTTL = 5 * time.Minute

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	plans *cache.TTLCache[string, domain.Plan]
}

type Params struct {
	fx.In

	DB  *gorm.DB
	Log *zap.Logger
}

func New(p Params) domain.Catalog {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("pricing.catalog"),
		plans: cache.NewTTLCache[string, domain.Plan](),
	}
}

func (s *Service) PriceOf(ctx context.Context, planID string) (int64, error) {
	plan, err := s.lookup(ctx, planID)
	if err != nil {
		return 0, err
	}
	return plan.PriceCents, nil
}

func (s *Service) TierRank(ctx context.Context, planID string) (int, error) {
	plan, err := s.lookup(ctx, planID)
	if err != nil {
		return 0, err
	}
	return plan.TierRank, nil
}

func (s *Service) NextTier(ctx context.Context, planID string) (domain.Plan, bool, error) {
	plan, err := s.lookup(ctx, planID)
	if err != nil {
		return domain.Plan{}, false, err
	}

	var next domain.Plan
	result := s.db.WithContext(ctx).Raw(
		`SELECT id, name, price_cents, tier_rank, usage_limit
		 FROM plans
		 WHERE tier_rank > ?
		 ORDER BY tier_rank
		 LIMIT 1`,
		plan.TierRank,
	).Scan(&next)
	if result.Error != nil {
		return domain.Plan{}, false, result.Error
	}
	if next.ID == "" {
		return domain.Plan{}, false, nil
	}
	return next, true, nil
}

func (s *Service) UsageLimit(ctx context.Context, planID string) (int64, error) {
	plan, err := s.lookup(ctx, planID)
	if err != nil {
		return 0, err
	}
	return plan.UsageLimit, nil
}

func (s *Service) lookup(ctx context.Context, planID string) (domain.Plan, error) {
	if plan, ok := s.plans.Get(planID); ok {
		return plan, nil
	}

	var plan domain.Plan
	result := s.db.WithContext(ctx).Raw(
		`SELECT id, name, price_cents, tier_rank, usage_limit
		 FROM plans
		 WHERE id = ?`,
		planID,
	).Scan(&plan)
	if result.Error != nil {
		return domain.Plan{}, result.Error
	}
	if plan.ID == "" {
		s.log.Warn("unknown plan id, pricing as zero", zap.String("plan_id", planID))
		return domain.Plan{}, domain.ErrInvalidPricing
	}

	s.plans.Set(planID, plan, planCacheTTL)
	return plan, nil
}
