package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// RunStore persists run summaries for the admin API and postmortems.
type RunStore interface {
	Insert(ctx context.Context, summary RunSummary) error
	ListRecent(ctx context.Context, limit int) ([]RunSummary, error)
}

type runStore struct {
	db *gorm.DB
}

func NewRunStore(db *gorm.DB) RunStore {
	return &runStore{db: db}
}

func (r *runStore) Insert(ctx context.Context, summary RunSummary) error {
	failures, err := json.Marshal(summary.Failures)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO pipeline_runs
		   (id, as_of, started_at, duration_ms, snapshot_ok, forecast_ok, ltv_ok, churn_ok,
		    insights_ok, alerts_ok, businesses_total, businesses_failed, alerts_created,
		    alerts_suppressed, insights_created, failures)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		summary.RunID,
		summary.AsOf,
		summary.StartedAt,
		summary.Duration.Milliseconds(),
		summary.SnapshotOK,
		summary.ForecastOK,
		summary.LTVOK,
		summary.ChurnOK,
		summary.InsightsOK,
		summary.AlertsOK,
		summary.BusinessesTotal,
		summary.BusinessesFailed,
		summary.AlertsCreated,
		summary.AlertsSuppressed,
		summary.InsightsCreated,
		string(failures),
	).Error
}

func (r *runStore) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []struct {
		ID               int64
		AsOf             time.Time
		StartedAt        time.Time
		DurationMS       int64
		SnapshotOK       bool
		ForecastOK       bool
		LTVOK            bool `gorm:"column:ltv_ok"`
		ChurnOK          bool
		InsightsOK       bool
		AlertsOK         bool
		BusinessesTotal  int
		BusinessesFailed int
		AlertsCreated    int
		AlertsSuppressed int
		InsightsCreated  int
		Failures         string
	}
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, as_of, started_at, duration_ms AS duration_ms, snapshot_ok, forecast_ok,
		        ltv_ok, churn_ok, insights_ok, alerts_ok, businesses_total, businesses_failed,
		        alerts_created, alerts_suppressed, insights_created, failures
		 FROM pipeline_runs
		 ORDER BY started_at DESC
		 LIMIT ?`, limit,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	summaries := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		summary := RunSummary{
			RunID:            snowflake.ID(row.ID),
			AsOf:             row.AsOf,
			StartedAt:        row.StartedAt,
			Duration:         time.Duration(row.DurationMS) * time.Millisecond,
			SnapshotOK:       row.SnapshotOK,
			ForecastOK:       row.ForecastOK,
			LTVOK:            row.LTVOK,
			ChurnOK:          row.ChurnOK,
			InsightsOK:       row.InsightsOK,
			AlertsOK:         row.AlertsOK,
			BusinessesTotal:  row.BusinessesTotal,
			BusinessesFailed: row.BusinessesFailed,
			AlertsCreated:    row.AlertsCreated,
			AlertsSuppressed: row.AlertsSuppressed,
			InsightsCreated:  row.InsightsCreated,
		}
		if row.Failures != "" {
			if err := json.Unmarshal([]byte(row.Failures), &summary.Failures); err != nil {
				return nil, err
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
