// Package repository persists snapshots and LTV records on gorm.
package repository

import (
	"context"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pulse/internal/snapshot/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Store struct {
	db    *gorm.DB
	genID *snowflake.Node
}

type Params struct {
	fx.In

	DB    *gorm.DB
	GenID *snowflake.Node
}

func New(p Params) domain.Store {
	return &Store{db: p.DB, genID: p.GenID}
}

// UpsertMRR assigns row identity on insert; a conflicting date keeps the
// existing row's id and created_at, so recomputes never churn identity.
func (s *Store) UpsertMRR(ctx context.Context, snapshot domain.MRRSnapshot) error {
	if snapshot.ID == 0 {
		snapshot.ID = s.genID.Generate()
	}
	if snapshot.CreatedAt.IsZero() {
		snapshot.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO mrr_snapshots (
			id, snapshot_date, total_mrr, new_business_mrr, expansion_mrr,
			contraction_mrr, churned_mrr, net_new_mrr, total_customers,
			paying_customers, arpu, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (snapshot_date) DO UPDATE SET
			total_mrr = excluded.total_mrr,
			new_business_mrr = excluded.new_business_mrr,
			expansion_mrr = excluded.expansion_mrr,
			contraction_mrr = excluded.contraction_mrr,
			churned_mrr = excluded.churned_mrr,
			net_new_mrr = excluded.net_new_mrr,
			total_customers = excluded.total_customers,
			paying_customers = excluded.paying_customers,
			arpu = excluded.arpu`,
		snapshot.ID,
		snapshot.SnapshotDate,
		snapshot.TotalMRR,
		snapshot.NewBusinessMRR,
		snapshot.ExpansionMRR,
		snapshot.ContractionMRR,
		snapshot.ChurnedMRR,
		snapshot.NetNewMRR,
		snapshot.TotalCustomers,
		snapshot.PayingCustomers,
		snapshot.ARPU,
		snapshot.CreatedAt,
	).Error
}

func (s *Store) UpsertLTV(ctx context.Context, record domain.CustomerLTVRecord) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO customer_ltv_records (
			business_id, first_subscription_date, last_active_date,
			total_revenue, months_active, current_mrr, predicted_ltv,
			churn_probability, health_score, segment, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (business_id) DO UPDATE SET
			first_subscription_date = excluded.first_subscription_date,
			last_active_date = excluded.last_active_date,
			total_revenue = excluded.total_revenue,
			months_active = excluded.months_active,
			current_mrr = excluded.current_mrr,
			predicted_ltv = excluded.predicted_ltv,
			churn_probability = excluded.churn_probability,
			health_score = excluded.health_score,
			segment = excluded.segment,
			updated_at = excluded.updated_at`,
		record.BusinessID,
		record.FirstSubscriptionDate,
		record.LastActiveDate,
		record.TotalRevenue,
		record.MonthsActive,
		record.CurrentMRR,
		record.PredictedLTV,
		record.ChurnProbability,
		record.HealthScore,
		record.Segment,
		record.UpdatedAt,
	).Error
}

func (s *Store) LatestSnapshots(ctx context.Context, limit int) ([]domain.MRRSnapshot, error) {
	if limit <= 0 {
		limit = 12
	}
	var snapshots []domain.MRRSnapshot
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, snapshot_date, total_mrr, new_business_mrr, expansion_mrr,
		        contraction_mrr, churned_mrr, net_new_mrr, total_customers,
		        paying_customers, arpu, created_at
		 FROM mrr_snapshots
		 ORDER BY snapshot_date DESC
		 LIMIT ?`,
		limit,
	).Scan(&snapshots).Error
	if err != nil {
		return nil, err
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].SnapshotDate.Before(snapshots[j].SnapshotDate)
	})
	return snapshots, nil
}

func (s *Store) SnapshotByDate(ctx context.Context, date time.Time) (*domain.MRRSnapshot, error) {
	var snapshot domain.MRRSnapshot
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, snapshot_date, total_mrr, new_business_mrr, expansion_mrr,
		        contraction_mrr, churned_mrr, net_new_mrr, total_customers,
		        paying_customers, arpu, created_at
		 FROM mrr_snapshots
		 WHERE snapshot_date = ?`,
		date,
	).Scan(&snapshot).Error
	if err != nil {
		return nil, err
	}
	if snapshot.ID == 0 {
		return nil, nil
	}
	return &snapshot, nil
}
