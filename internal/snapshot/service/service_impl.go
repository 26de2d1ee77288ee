// Package service implements the MRR snapshot, LTV, and cohort engine.
package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// daysPerMonth is the fixed divisor for months_active. A calendar-aware
// value would shift records at month boundaries between runs.
const daysPerMonth = 30

// ltvAnnualizationMonths is the flat multiplier for predicted LTV. This is
// a documented simplification, not a discounted-cash-flow model.
const ltvAnnualizationMonths = 12

type Service struct {
	log      *zap.Logger
	repo     metricsdomain.Repository
	catalog  pricingdomain.Catalog
	assessor scoringdomain.Assessor
	clock    func() time.Time
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Repo     metricsdomain.Repository
	Catalog  pricingdomain.Catalog
	Assessor scoringdomain.Assessor
}

func New(p Params) snapshotdomain.Service {
	return &Service{
		log:      p.Log.Named("snapshot.service"),
		repo:     p.Repo,
		catalog:  p.Catalog,
		assessor: p.Assessor,
		clock:    func() time.Time { return time.Now().UTC() },
	}
}

func (s *Service) CalculateMRR(ctx context.Context, date time.Time) (snapshotdomain.MRRSnapshot, error) {
	date = truncateDay(date)
	previousDate := date.AddDate(0, -1, 0)

	current, err := s.repo.ActiveSubscriptions(ctx, date)
	if err != nil {
		return snapshotdomain.MRRSnapshot{}, err
	}
	previous, err := s.repo.ActiveSubscriptions(ctx, previousDate)
	if err != nil {
		return snapshotdomain.MRRSnapshot{}, err
	}

	currentByBiz := s.priceByBusiness(ctx, current)
	previousByBiz := s.priceByBusiness(ctx, previous)

	// Row identity is assigned at the store boundary so recomputing the
	// same date with identical data yields an identical snapshot.
	snapshot := snapshotdomain.MRRSnapshot{
		SnapshotDate: date,
	}

	snapshot.TotalCustomers = len(currentByBiz)
	for _, price := range currentByBiz {
		snapshot.TotalMRR += price
		if price > 0 {
			snapshot.PayingCustomers++
		}
	}

	for businessID, price := range currentByBiz {
		prior, existed := previousByBiz[businessID]
		if !existed {
			snapshot.NewBusinessMRR += price
			continue
		}
		switch {
		case price > prior:
			snapshot.ExpansionMRR += price - prior
		case price < prior:
			snapshot.ContractionMRR += prior - price
		}
	}

	for businessID, prior := range previousByBiz {
		if _, stillActive := currentByBiz[businessID]; !stillActive {
			snapshot.ChurnedMRR += prior
		}
	}

	snapshot.NetNewMRR = snapshot.NewBusinessMRR + snapshot.ExpansionMRR -
		snapshot.ContractionMRR - snapshot.ChurnedMRR

	if snapshot.PayingCustomers > 0 {
		snapshot.ARPU = snapshot.TotalMRR / int64(snapshot.PayingCustomers)
	}

	return snapshot, nil
}

func (s *Service) CalculateLTV(ctx context.Context, businessID snowflake.ID, asOf time.Time) (snapshotdomain.CustomerLTVRecord, error) {
	asOf = truncateDay(asOf)

	subs, err := s.repo.BusinessSubscriptions(ctx, businessID)
	if err != nil {
		if errors.Is(err, metricsdomain.ErrEntityNotFound) {
			return snapshotdomain.CustomerLTVRecord{}, snapshotdomain.ErrNoSubscriptions
		}
		return snapshotdomain.CustomerLTVRecord{}, err
	}

	first := subs[0].CreatedAt
	record := snapshotdomain.CustomerLTVRecord{
		BusinessID:            businessID,
		FirstSubscriptionDate: first,
		MonthsActive:          int(asOf.Sub(first).Hours() / 24 / daysPerMonth),
		UpdatedAt:             s.clock(),
	}

	for _, sub := range subs {
		if !sub.PeriodStart.After(asOf) && sub.PeriodEnd.After(asOf) {
			record.CurrentMRR += s.priceOrZero(ctx, sub.PlanID)
		}
	}
	record.PredictedLTV = record.CurrentMRR * ltvAnnualizationMonths

	payments, err := s.repo.PaymentEvents(ctx, businessID, metricsdomain.Window{Start: first, End: asOf})
	if err != nil {
		return snapshotdomain.CustomerLTVRecord{}, err
	}
	for _, payment := range payments {
		if payment.Status == metricsdomain.PaymentStatusSucceeded {
			record.TotalRevenue += payment.Amount
		}
	}

	usage, err := s.repo.UsageEvents(ctx, businessID, metricsdomain.Window{Start: first, End: asOf})
	if err != nil {
		return snapshotdomain.CustomerLTVRecord{}, err
	}
	if len(usage) > 0 {
		last := usage[len(usage)-1].OccurredAt
		record.LastActiveDate = &last
	}

	assessment, err := s.assessor.AssessBusiness(ctx, businessID, asOf)
	if err != nil {
		return snapshotdomain.CustomerLTVRecord{}, err
	}
	record.ChurnProbability = assessment.ChurnProbability
	record.HealthScore = assessment.HealthScore
	record.Segment = snapshotdomain.SegmentFor(assessment.HealthScore, assessment.ChurnProbability)

	return record, nil
}

func (s *Service) CohortAnalysis(ctx context.Context, asOf time.Time) ([]snapshotdomain.CohortEntry, error) {
	asOf = truncateDay(asOf)

	starts, err := s.repo.SubscriptionStarts(ctx)
	if err != nil {
		return nil, err
	}
	active, err := s.repo.ActiveSubscriptions(ctx, asOf)
	if err != nil {
		return nil, err
	}
	revenues, err := s.repo.RevenueTotals(ctx)
	if err != nil {
		return nil, err
	}

	activeSet := make(map[snowflake.ID]struct{}, len(active))
	for _, sub := range active {
		activeSet[sub.BusinessID] = struct{}{}
	}
	revenueByBiz := make(map[snowflake.ID]int64, len(revenues))
	for _, rev := range revenues {
		revenueByBiz[rev.BusinessID] = rev.Total
	}

	cohorts := make(map[time.Time]*snapshotdomain.CohortEntry)
	for _, start := range starts {
		month := monthOf(start.FirstAt)
		entry, ok := cohorts[month]
		if !ok {
			entry = &snapshotdomain.CohortEntry{
				CohortMonth:      month,
				MonthsSinceStart: monthsBetween(month, monthOf(asOf)),
			}
			cohorts[month] = entry
		}
		entry.InitialCustomers++
		entry.TotalRevenue += revenueByBiz[start.BusinessID]
		if _, stillActive := activeSet[start.BusinessID]; stillActive {
			entry.CustomersRemaining++
		}
	}

	out := make([]snapshotdomain.CohortEntry, 0, len(cohorts))
	for _, entry := range cohorts {
		if entry.InitialCustomers > 0 {
			entry.RetentionRate = float64(entry.CustomersRemaining) / float64(entry.InitialCustomers)
			entry.AvgRevenuePerCustomer = entry.TotalRevenue / int64(entry.InitialCustomers)
		}
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CohortMonth.Before(out[j].CohortMonth)
	})
	return out, nil
}

// priceByBusiness sums plan prices per business for one period's
// subscription set. Unknown plans price as zero.
func (s *Service) priceByBusiness(ctx context.Context, subs []metricsdomain.Subscription) map[snowflake.ID]int64 {
	prices := make(map[snowflake.ID]int64, len(subs))
	for _, sub := range subs {
		prices[sub.BusinessID] += s.priceOrZero(ctx, sub.PlanID)
	}
	return prices
}

func (s *Service) priceOrZero(ctx context.Context, planID string) int64 {
	price, err := s.catalog.PriceOf(ctx, planID)
	if err != nil {
		if errors.Is(err, pricingdomain.ErrInvalidPricing) {
			return 0
		}
		s.log.Warn("plan price lookup failed", zap.String("plan_id", planID), zap.Error(err))
		return 0
	}
	return price
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func monthOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthsBetween(from, to time.Time) int {
	months := (to.Year()-from.Year())*12 + int(to.Month()) - int(from.Month())
	if months < 0 {
		return 0
	}
	return months
}
