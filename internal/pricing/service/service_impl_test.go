package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/pulse/internal/cache"
	"github.com/smallbiznis/pulse/internal/pricing/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupPricingTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price_cents BIGINT NOT NULL,
			tier_rank INTEGER NOT NULL,
			usage_limit BIGINT NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create plans: %v", err)
	}
	plans := []struct {
		id    string
		price int64
		rank  int
		limit int64
	}{
		{"free", 0, 0, 100},
		{"starter", 2900, 1, 1000},
		{"pro", 9900, 2, 10000},
	}
	for _, plan := range plans {
		if err := db.Exec(
			`INSERT INTO plans (id, name, price_cents, tier_rank, usage_limit)
			 VALUES (?, ?, ?, ?, ?)`,
			plan.id, plan.id, plan.price, plan.rank, plan.limit,
		).Error; err != nil {
			t.Fatalf("insert plan: %v", err)
		}
	}
	return db
}

func newPricingService(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		log:   zap.NewNop(),
		plans: cache.NewTTLCache[string, domain.Plan](),
	}
}

func TestPriceOf(t *testing.T) {
	svc := newPricingService(setupPricingTestDB(t))

	price, err := svc.PriceOf(context.Background(), "starter")
	if err != nil {
		t.Fatalf("price of starter: %v", err)
	}
	if price != 2900 {
		t.Fatalf("price = %d, want 2900", price)
	}
}

func TestPriceOfUnknownPlan(t *testing.T) {
	svc := newPricingService(setupPricingTestDB(t))

	_, err := svc.PriceOf(context.Background(), "legacy_gold")
	if !errors.Is(err, domain.ErrInvalidPricing) {
		t.Fatalf("expected ErrInvalidPricing, got %v", err)
	}
}

func TestNextTier(t *testing.T) {
	svc := newPricingService(setupPricingTestDB(t))

	next, ok, err := svc.NextTier(context.Background(), "starter")
	if err != nil {
		t.Fatalf("next tier: %v", err)
	}
	if !ok || next.ID != "pro" {
		t.Fatalf("next tier = %+v ok=%v, want pro", next, ok)
	}

	_, ok, err = svc.NextTier(context.Background(), "pro")
	if err != nil {
		t.Fatalf("next tier of top plan: %v", err)
	}
	if ok {
		t.Fatalf("top tier must have no upgrade target")
	}
}

func TestPlanLookupCached(t *testing.T) {
	db := setupPricingTestDB(t)
	svc := newPricingService(db)
	ctx := context.Background()

	if _, err := svc.PriceOf(ctx, "pro"); err != nil {
		t.Fatalf("warm cache: %v", err)
	}

	// A repricing within the TTL is not observed.
	if err := db.Exec(`UPDATE plans SET price_cents = 12900 WHERE id = 'pro'`).Error; err != nil {
		t.Fatalf("update plan: %v", err)
	}
	price, err := svc.PriceOf(ctx, "pro")
	if err != nil {
		t.Fatalf("cached lookup: %v", err)
	}
	if price != 9900 {
		t.Fatalf("price = %d, want cached 9900", price)
	}
}
