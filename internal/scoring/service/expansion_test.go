package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
	"github.com/smallbiznis/pulse/internal/scoring/domain"
	"go.uber.org/zap"
)

type testCatalog struct {
	plans map[string]pricingdomain.Plan
}

func newTestCatalog() *testCatalog {
	return &testCatalog{plans: map[string]pricingdomain.Plan{
		pricingdomain.PlanFree:       {ID: pricingdomain.PlanFree, PriceCents: 0, TierRank: 0, UsageLimit: 100},
		pricingdomain.PlanStarter:    {ID: pricingdomain.PlanStarter, PriceCents: 2900, TierRank: 1, UsageLimit: 1000},
		pricingdomain.PlanPro:        {ID: pricingdomain.PlanPro, PriceCents: 9900, TierRank: 2, UsageLimit: 10000},
		pricingdomain.PlanEnterprise: {ID: pricingdomain.PlanEnterprise, PriceCents: 49900, TierRank: 4, UsageLimit: 1000000},
	}}
}

func (c *testCatalog) PriceOf(_ context.Context, planID string) (int64, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return 0, pricingdomain.ErrInvalidPricing
	}
	return plan.PriceCents, nil
}

func (c *testCatalog) TierRank(_ context.Context, planID string) (int, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return 0, pricingdomain.ErrInvalidPricing
	}
	return plan.TierRank, nil
}

func (c *testCatalog) NextTier(_ context.Context, planID string) (pricingdomain.Plan, bool, error) {
	current, ok := c.plans[planID]
	if !ok {
		return pricingdomain.Plan{}, false, pricingdomain.ErrInvalidPricing
	}
	var next pricingdomain.Plan
	found := false
	for _, plan := range c.plans {
		if plan.TierRank > current.TierRank && (!found || plan.TierRank < next.TierRank) {
			next = plan
			found = true
		}
	}
	return next, found, nil
}

func (c *testCatalog) UsageLimit(_ context.Context, planID string) (int64, error) {
	plan, ok := c.plans[planID]
	if !ok {
		return 0, pricingdomain.ErrInvalidPricing
	}
	return plan.UsageLimit, nil
}

func newExpansionService(t *testing.T) *Service {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	return &Service{
		log:     zap.NewNop(),
		catalog: newTestCatalog(),
		genID:   node,
	}
}

func TestUpgradeOpportunityStarterToPro(t *testing.T) {
	svc := newExpansionService(t)
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)
	sig := domain.BusinessSignals{
		PlanID:             pricingdomain.PlanStarter,
		PlanUtilization:    0.95,
		UsageTrend30d:      0.15,
		PaymentReliability: 0.98,
	}

	opportunities, err := svc.identifyOpportunities(context.Background(), 42, sig, asOf)
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(opportunities) != 1 {
		t.Fatalf("opportunities = %d, want exactly one upgrade", len(opportunities))
	}

	opp := opportunities[0]
	if opp.Type != domain.OpportunityUpgrade {
		t.Fatalf("type = %s, want upgrade", opp.Type)
	}
	if opp.RecommendedPlan != pricingdomain.PlanPro {
		t.Fatalf("recommended plan = %s, want pro", opp.RecommendedPlan)
	}
	if opp.PotentialRevenueIncrease != 7000 {
		t.Fatalf("potential increase = %d, want 7000", opp.PotentialRevenueIncrease)
	}
	if opp.UrgencyScore != 90 {
		t.Fatalf("urgency = %d, want 90 at 95%% utilization", opp.UrgencyScore)
	}
	if opp.ConversionProbability != 0.8 {
		t.Fatalf("conversion = %v, want capped 0.8", opp.ConversionProbability)
	}
}

func TestUpgradeUrgencyBelowNinetyFive(t *testing.T) {
	svc := newExpansionService(t)
	sig := domain.BusinessSignals{
		PlanID:             pricingdomain.PlanStarter,
		PlanUtilization:    0.85,
		UsageTrend30d:      0.15,
		PaymentReliability: 0.98,
	}

	opportunities, err := svc.identifyOpportunities(context.Background(), 42, sig, time.Now().UTC())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(opportunities) != 1 || opportunities[0].UrgencyScore != 70 {
		t.Fatalf("expected one upgrade with urgency 70, got %+v", opportunities)
	}
}

func TestUsageIncreaseWhenNoHigherTier(t *testing.T) {
	svc := newExpansionService(t)
	sig := domain.BusinessSignals{
		PlanID:             pricingdomain.PlanEnterprise,
		PlanUtilization:    0.96,
		UsageTrend30d:      0.12,
		PaymentReliability: 0.99,
	}

	opportunities, err := svc.identifyOpportunities(context.Background(), 42, sig, time.Now().UTC())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(opportunities) != 1 {
		t.Fatalf("opportunities = %d, want one usage increase", len(opportunities))
	}
	opp := opportunities[0]
	if opp.Type != domain.OpportunityUsageIncrease {
		t.Fatalf("type = %s, want usage_increase", opp.Type)
	}
	if opp.PotentialRevenueIncrease != 49900/5 {
		t.Fatalf("potential increase = %d, want %d", opp.PotentialRevenueIncrease, 49900/5)
	}
}

func TestAddonOpportunityIndependent(t *testing.T) {
	svc := newExpansionService(t)
	sig := domain.BusinessSignals{
		PlanID:             pricingdomain.PlanPro,
		PlanUtilization:    0.65,
		FeatureAdoption:    0.8,
		UsageTrend30d:      0.02,
		PaymentReliability: 1,
	}

	opportunities, err := svc.identifyOpportunities(context.Background(), 42, sig, time.Now().UTC())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(opportunities) != 1 || opportunities[0].Type != domain.OpportunityAddon {
		t.Fatalf("expected lone addon opportunity, got %+v", opportunities)
	}
	if opportunities[0].PotentialRevenueIncrease != 9900/4 {
		t.Fatalf("potential increase = %d, want %d", opportunities[0].PotentialRevenueIncrease, 9900/4)
	}
}

func TestNoOpportunitiesWhenQuiet(t *testing.T) {
	svc := newExpansionService(t)
	sig := domain.BusinessSignals{
		PlanID:             pricingdomain.PlanStarter,
		PlanUtilization:    0.4,
		UsageTrend30d:      0.01,
		PaymentReliability: 1,
		FeatureAdoption:    0.3,
	}

	opportunities, err := svc.identifyOpportunities(context.Background(), 42, sig, time.Now().UTC())
	if err != nil {
		t.Fatalf("identify: %v", err)
	}
	if len(opportunities) != 0 {
		t.Fatalf("expected no opportunities, got %+v", opportunities)
	}
}
