// Package repository appends scoring results on gorm.
package repository

import (
	"context"

	"github.com/smallbiznis/pulse/internal/scoring/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

type Store struct {
	db *gorm.DB
}

type Params struct {
	fx.In

	DB *gorm.DB
}

func New(p Params) domain.Store {
	return &Store{db: p.DB}
}

func (s *Store) AppendChurn(ctx context.Context, prediction domain.ChurnPrediction) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO churn_predictions (
			id, business_id, probability, confidence, horizon_days,
			risk_factors, recommended_actions, generated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		prediction.ID,
		prediction.BusinessID,
		prediction.Probability,
		prediction.Confidence,
		prediction.HorizonDays,
		prediction.RiskFactors,
		prediction.RecommendedActions,
		prediction.GeneratedAt,
	).Error
}

func (s *Store) AppendForecast(ctx context.Context, forecast domain.RevenueForecast) error {
	return s.db.WithContext(ctx).Exec(
		`INSERT INTO revenue_forecasts (
			id, forecast_date, horizon_months, predicted_mrr, predicted_arr,
			confidence, interval_lower, interval_upper, growth_rate,
			assumptions, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		forecast.ID,
		forecast.ForecastDate,
		forecast.HorizonMonths,
		forecast.PredictedMRR,
		forecast.PredictedARR,
		forecast.Confidence,
		forecast.IntervalLower,
		forecast.IntervalUpper,
		forecast.GrowthRate,
		forecast.Assumptions,
		forecast.CreatedAt,
	).Error
}

func (s *Store) AppendOpportunities(ctx context.Context, opportunities []domain.ExpansionOpportunity) error {
	for _, opportunity := range opportunities {
		err := s.db.WithContext(ctx).Exec(
			`INSERT INTO expansion_opportunities (
				id, business_id, opportunity_type, current_plan,
				recommended_plan, potential_revenue_increase,
				conversion_probability, urgency_score, actions, generated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			opportunity.ID,
			opportunity.BusinessID,
			opportunity.Type,
			opportunity.CurrentPlan,
			opportunity.RecommendedPlan,
			opportunity.PotentialRevenueIncrease,
			opportunity.ConversionProbability,
			opportunity.UrgencyScore,
			opportunity.Actions,
			opportunity.GeneratedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}
