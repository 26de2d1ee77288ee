package pipeline

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupRunsTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Exec(
		`CREATE TABLE IF NOT EXISTS pipeline_runs (
			id BIGINT PRIMARY KEY,
			as_of TIMESTAMP NOT NULL,
			started_at TIMESTAMP NOT NULL,
			duration_ms BIGINT NOT NULL,
			snapshot_ok BOOLEAN NOT NULL,
			forecast_ok BOOLEAN NOT NULL,
			ltv_ok BOOLEAN NOT NULL,
			churn_ok BOOLEAN NOT NULL,
			insights_ok BOOLEAN NOT NULL,
			alerts_ok BOOLEAN NOT NULL,
			businesses_total INTEGER NOT NULL,
			businesses_failed INTEGER NOT NULL,
			alerts_created INTEGER NOT NULL,
			alerts_suppressed INTEGER NOT NULL,
			insights_created INTEGER NOT NULL,
			failures TEXT NOT NULL
		)`,
	).Error; err != nil {
		t.Fatalf("create pipeline_runs: %v", err)
	}
	return db
}

func TestRunStoreRoundTrip(t *testing.T) {
	store := NewRunStore(setupRunsTestDB(t))
	ctx := context.Background()

	summary := RunSummary{
		RunID:            42,
		AsOf:             time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC),
		StartedAt:        time.Date(2025, 6, 15, 4, 0, 0, 0, time.UTC),
		Duration:         90 * time.Second,
		SnapshotOK:       true,
		ForecastOK:       true,
		LTVOK:            false,
		ChurnOK:          true,
		InsightsOK:       true,
		AlertsOK:         false,
		BusinessesTotal:  12,
		BusinessesFailed: 1,
		AlertsCreated:    3,
		AlertsSuppressed: 2,
		InsightsCreated:  4,
		Failures: []StepFailure{
			{Step: StepAlerts, Reason: "store unavailable"},
			{Step: StepLTV, BusinessID: 7, Reason: "ledger corrupted"},
		},
	}
	if err := store.Insert(ctx, summary); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := store.ListRecent(ctx, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("rows = %d, want 1", len(got))
	}
	round := got[0]
	if round.RunID != 42 || round.Duration != 90*time.Second || round.AlertsOK {
		t.Fatalf("round trip mismatch: %+v", round)
	}
	if round.LTVOK || !round.ChurnOK {
		t.Fatalf("per-step flags not preserved: %+v", round)
	}
	if round.BusinessesTotal != 12 || round.BusinessesFailed != 1 {
		t.Fatalf("business counts mismatch: %+v", round)
	}
	if len(round.Failures) != 2 || round.Failures[1].BusinessID != 7 {
		t.Fatalf("failures not preserved: %+v", round.Failures)
	}
	if round.Succeeded() {
		t.Fatalf("run with a failed step must not report success")
	}
}

func TestRunStoreListRecentOrder(t *testing.T) {
	store := NewRunStore(setupRunsTestDB(t))
	ctx := context.Background()

	base := time.Date(2025, 6, 10, 4, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		summary := RunSummary{
			RunID:     snowflake.ID(i + 1),
			AsOf:      base.AddDate(0, 0, i),
			StartedAt: base.AddDate(0, 0, i),
		}
		if err := store.Insert(ctx, summary); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	got, err := store.ListRecent(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("rows = %d, want 2", len(got))
	}
	if !got[0].StartedAt.After(got[1].StartedAt) {
		t.Fatalf("expected newest first, got %v then %v", got[0].StartedAt, got[1].StartedAt)
	}
}
