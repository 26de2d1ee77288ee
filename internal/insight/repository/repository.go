// Package repository persists insights and alerts on gorm.
package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pulse/internal/insight/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type InsightStore struct {
	db *gorm.DB
}

type AlertStore struct {
	db *gorm.DB
}

type Params struct {
	fx.In

	DB *gorm.DB
}

func NewInsightStore(p Params) domain.InsightStore {
	return &InsightStore{db: p.DB}
}

func NewAlertStore(p Params) domain.AlertStore {
	return &AlertStore{db: p.DB}
}

func (s *InsightStore) Insert(ctx context.Context, insight domain.Insight) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO insights (
			id, insight_type, category, title, description, impact_score,
			confidence, actionable, actions, data, generated_at, expires_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		insight.ID,
		insight.Type,
		insight.Category,
		insight.Title,
		insight.Description,
		insight.ImpactScore,
		insight.Confidence,
		insight.Actionable,
		insight.Actions,
		insight.Data,
		insight.GeneratedAt,
		insight.ExpiresAt,
	).Error
}

func (s *InsightStore) ListRecent(ctx context.Context, limit int) ([]domain.Insight, error) {
	if limit <= 0 {
		limit = 50
	}
	var insights []domain.Insight
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, insight_type AS type, category, title, description,
		        impact_score, confidence, actionable, actions, data,
		        generated_at, expires_at
		 FROM insights
		 ORDER BY generated_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&insights).Error
	if err != nil {
		return nil, err
	}
	return insights, nil
}

// InsertIfNotDuplicate relies on a partial unique index over unresolved
// alerts, so suppression holds under concurrent writers too.
func (s *AlertStore) InsertIfNotDuplicate(ctx context.Context, alert domain.Alert) (bool, error) {
	result := s.db.WithContext(ctx).Exec(
		`INSERT INTO alerts (
			id, alert_type, category, severity, title, message, business_id,
			data, created_at, acknowledged_at, resolved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL)
		ON CONFLICT (alert_type, category, business_id) WHERE resolved_at IS NULL
		DO NOTHING`,
		alert.ID,
		alert.Type,
		alert.Category,
		alert.Severity,
		alert.Title,
		alert.Message,
		alert.BusinessID,
		alert.Data,
		alert.CreatedAt,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *AlertStore) Acknowledge(ctx context.Context, id snowflake.ID) error {
	alert, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if alert == nil {
		return domain.ErrAlertNotFound
	}
	if alert.Resolved() {
		return domain.ErrAlertResolved
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE alerts
		 SET acknowledged_at = COALESCE(acknowledged_at, CURRENT_TIMESTAMP)
		 WHERE id = ? AND resolved_at IS NULL`,
		id,
	).Error
}

func (s *AlertStore) Resolve(ctx context.Context, id snowflake.ID) error {
	alert, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if alert == nil {
		return domain.ErrAlertNotFound
	}
	return s.db.WithContext(ctx).Exec(
		`UPDATE alerts
		 SET resolved_at = COALESCE(resolved_at, CURRENT_TIMESTAMP)
		 WHERE id = ?`,
		id,
	).Error
}

func (s *AlertStore) ListOpen(ctx context.Context, limit int) ([]domain.Alert, error) {
	if limit <= 0 {
		limit = 100
	}
	var alerts []domain.Alert
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, alert_type AS type, category, severity, title, message,
		        business_id, data, created_at, acknowledged_at, resolved_at
		 FROM alerts
		 WHERE resolved_at IS NULL
		 ORDER BY created_at DESC, id DESC
		 LIMIT ?`,
		limit,
	).Scan(&alerts).Error
	if err != nil {
		return nil, err
	}
	return alerts, nil
}

func (s *AlertStore) find(ctx context.Context, id snowflake.ID) (*domain.Alert, error) {
	var alert domain.Alert
	err := s.db.WithContext(ctx).Raw(
		`SELECT id, alert_type AS type, category, severity, title, message,
		        business_id, data, created_at, acknowledged_at, resolved_at
		 FROM alerts
		 WHERE id = ?`,
		id,
	).Scan(&alert).Error
	if err != nil {
		return nil, err
	}
	if alert.ID == 0 {
		return nil, nil
	}
	return &alert, nil
}
