// Package service implements the churn, forecast, and expansion engine.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
	"github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Service struct {
	log       *zap.Logger
	repo      metricsdomain.Repository
	catalog   pricingdomain.Catalog
	snapshots snapshotdomain.Store
	genID     *snowflake.Node
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Repo      metricsdomain.Repository
	Catalog   pricingdomain.Catalog
	Snapshots snapshotdomain.Store
	GenID     *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("scoring.service"),
		repo:      p.Repo,
		catalog:   p.Catalog,
		snapshots: p.Snapshots,
		genID:     p.GenID,
	}
}

func (s *Service) PredictChurn(ctx context.Context, businessID snowflake.ID, horizonDays int, asOf time.Time) (domain.ChurnPrediction, error) {
	if horizonDays <= 0 {
		return domain.ChurnPrediction{}, domain.ErrInvalidHorizon
	}

	sig, err := s.collectSignals(ctx, businessID, asOf)
	if err != nil {
		return domain.ChurnPrediction{}, err
	}

	probability, factors, actions := scoreChurn(sig)
	return domain.ChurnPrediction{
		ID:                 s.genID.Generate(),
		BusinessID:         businessID,
		Probability:        probability,
		Confidence:         churnConfidence(sig),
		HorizonDays:        horizonDays,
		RiskFactors:        factors,
		RecommendedActions: actions,
		GeneratedAt:        asOf,
	}, nil
}

func (s *Service) AssessBusiness(ctx context.Context, businessID snowflake.ID, asOf time.Time) (domain.Assessment, error) {
	sig, err := s.collectSignals(ctx, businessID, asOf)
	if err != nil {
		return domain.Assessment{}, err
	}

	probability, _, _ := scoreChurn(sig)
	return domain.Assessment{
		ChurnProbability: probability,
		Confidence:       churnConfidence(sig),
		HealthScore:      healthScore(sig),
	}, nil
}

func (s *Service) ForecastRevenue(ctx context.Context, horizonMonths int, asOf time.Time) (domain.RevenueForecast, error) {
	if horizonMonths <= 0 {
		return domain.RevenueForecast{}, domain.ErrInvalidHorizon
	}

	history, err := s.snapshots.LatestSnapshots(ctx, forecastHistoryLimit)
	if err != nil {
		return domain.RevenueForecast{}, err
	}
	if len(history) == 0 {
		return domain.RevenueForecast{}, domain.ErrNoSnapshotHistory
	}

	predictedMRR, growthRate, confidence, assumptions := projectRevenue(history, horizonMonths, asOf)
	interval := int64(float64(predictedMRR) * (1 - confidence) * 0.5)

	return domain.RevenueForecast{
		ID:            s.genID.Generate(),
		ForecastDate:  asOf,
		HorizonMonths: horizonMonths,
		PredictedMRR:  predictedMRR,
		PredictedARR:  predictedMRR * 12,
		Confidence:    confidence,
		IntervalLower: predictedMRR - interval,
		IntervalUpper: predictedMRR + interval,
		GrowthRate:    growthRate,
		Assumptions:   assumptions,
		CreatedAt:     asOf,
	}, nil
}

func (s *Service) IdentifyExpansionOpportunities(ctx context.Context, businessID snowflake.ID, asOf time.Time) ([]domain.ExpansionOpportunity, error) {
	sig, err := s.collectSignals(ctx, businessID, asOf)
	if err != nil {
		return nil, err
	}
	opportunities, err := s.identifyOpportunities(ctx, businessID, sig, asOf)
	if err != nil {
		if errors.Is(err, pricingdomain.ErrInvalidPricing) {
			s.log.Warn("skipping expansion for unpriceable plan",
				zap.String("business_id", businessID.String()),
				zap.String("plan_id", sig.PlanID),
			)
			return nil, nil
		}
		return nil, err
	}
	return opportunities, nil
}
