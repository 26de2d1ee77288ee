package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupMetricsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	for _, ddl := range []string{
		`CREATE TABLE IF NOT EXISTS subscriptions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id BIGINT NOT NULL,
			plan_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			period_start DATETIME NOT NULL,
			period_end DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS payment_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id BIGINT NOT NULL,
			amount BIGINT NOT NULL,
			status TEXT NOT NULL,
			processed_at DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS usage_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			business_id BIGINT NOT NULL,
			feature TEXT NOT NULL,
			outcome TEXT NOT NULL,
			occurred_at DATETIME NOT NULL
		)`,
	} {
		if err := db.Exec(ddl).Error; err != nil {
			t.Fatalf("ddl: %v", err)
		}
	}
	return db
}

func newMetricsRepo(db *gorm.DB) *Repository {
	return &Repository{
		db:  db,
		log: zap.NewNop(),
		cfg: Config{}.withDefaults(),
	}
}

func insertSubscription(t *testing.T, db *gorm.DB, biz int64, plan string, start, end time.Time) {
	t.Helper()
	if err := db.Exec(
		`INSERT INTO subscriptions (business_id, plan_id, created_at, period_start, period_end)
		 VALUES (?, ?, ?, ?, ?)`,
		biz, plan, start, start, end,
	).Error; err != nil {
		t.Fatalf("insert subscription: %v", err)
	}
}

func TestActiveSubscriptionsWindow(t *testing.T) {
	db := setupMetricsTestDB(t)
	repo := newMetricsRepo(db)
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	insertSubscription(t, db, 1, "starter", asOf.AddDate(0, -1, 0), asOf.AddDate(0, 1, 0))
	insertSubscription(t, db, 2, "pro", asOf.AddDate(0, -3, 0), asOf.AddDate(0, -1, 0)) // lapsed
	insertSubscription(t, db, 3, "pro", asOf, asOf.AddDate(0, 1, 0))                    // starts today

	subs, err := repo.ActiveSubscriptions(context.Background(), asOf)
	if err != nil {
		t.Fatalf("active subscriptions: %v", err)
	}
	if len(subs) != 2 {
		t.Fatalf("active = %d, want 2", len(subs))
	}
	for _, sub := range subs {
		if sub.BusinessID == 2 {
			t.Fatalf("lapsed subscription must not be active")
		}
	}
}

func TestBusinessSubscriptionsNotFound(t *testing.T) {
	db := setupMetricsTestDB(t)
	repo := newMetricsRepo(db)

	_, err := repo.BusinessSubscriptions(context.Background(), 999)
	if !errors.Is(err, domain.ErrEntityNotFound) {
		t.Fatalf("expected ErrEntityNotFound, got %v", err)
	}
}

func TestPaymentEventsWindowBounds(t *testing.T) {
	db := setupMetricsTestDB(t)
	repo := newMetricsRepo(db)
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	inWindow := asOf.AddDate(0, 0, -10)
	outside := asOf.AddDate(0, 0, -100)
	for _, at := range []time.Time{inWindow, outside} {
		if err := db.Exec(
			`INSERT INTO payment_events (business_id, amount, status, processed_at)
			 VALUES (?, ?, ?, ?)`,
			7, 2900, domain.PaymentStatusSucceeded, at,
		).Error; err != nil {
			t.Fatalf("insert payment: %v", err)
		}
	}

	events, err := repo.PaymentEvents(context.Background(), 7, domain.LastDays(asOf, 90))
	if err != nil {
		t.Fatalf("payment events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("events = %d, want 1 inside the window", len(events))
	}
}

func TestRevenueTotalsOnlySucceeded(t *testing.T) {
	db := setupMetricsTestDB(t)
	repo := newMetricsRepo(db)
	at := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	rows := []struct {
		biz    int64
		amount int64
		status string
	}{
		{1, 2900, domain.PaymentStatusSucceeded},
		{1, 2900, domain.PaymentStatusSucceeded},
		{1, 2900, domain.PaymentStatusFailed},
		{2, 9900, domain.PaymentStatusRefunded},
	}
	for _, row := range rows {
		if err := db.Exec(
			`INSERT INTO payment_events (business_id, amount, status, processed_at)
			 VALUES (?, ?, ?, ?)`,
			row.biz, row.amount, row.status, at,
		).Error; err != nil {
			t.Fatalf("insert payment: %v", err)
		}
	}

	totals, err := repo.RevenueTotals(context.Background())
	if err != nil {
		t.Fatalf("revenue totals: %v", err)
	}
	if len(totals) != 1 {
		t.Fatalf("totals = %d, want 1 (only succeeded payments count)", len(totals))
	}
	if totals[0].BusinessID != 1 || totals[0].Total != 5800 {
		t.Fatalf("total = %+v, want business 1 with 5800", totals[0])
	}
}

func TestSubscriptionStartsEarliestPerBusiness(t *testing.T) {
	db := setupMetricsTestDB(t)
	repo := newMetricsRepo(db)
	first := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)

	insertSubscription(t, db, 5, "starter", first, first.AddDate(0, 1, 0))
	insertSubscription(t, db, 5, "pro", first.AddDate(0, 2, 0), first.AddDate(0, 12, 0))

	starts, err := repo.SubscriptionStarts(context.Background())
	if err != nil {
		t.Fatalf("subscription starts: %v", err)
	}
	if len(starts) != 1 {
		t.Fatalf("starts = %d, want 1", len(starts))
	}
	if !starts[0].FirstAt.Equal(first) {
		t.Fatalf("first at = %v, want %v", starts[0].FirstAt, first)
	}
}
