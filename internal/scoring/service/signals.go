package service

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	pricingdomain "github.com/smallbiznis/pulse/internal/pricing/domain"
	"github.com/smallbiznis/pulse/internal/scoring/domain"
)

// featureCatalogSize is the reference feature count for adoption ratios.
const featureCatalogSize = 8

// usageLookbackDays bounds the single usage query all signals derive from.
const usageLookbackDays = 365

// collectSignals derives every scoring feature from raw collaborator data.
// One usage query and two payment queries feed all windows, so a run reads
// each business a bounded number of times.
func (s *Service) collectSignals(ctx context.Context, businessID snowflake.ID, asOf time.Time) (domain.BusinessSignals, error) {
	subs, err := s.repo.BusinessSubscriptions(ctx, businessID)
	if err != nil {
		return domain.BusinessSignals{}, err
	}

	first := subs[0].CreatedAt
	sig := domain.BusinessSignals{
		SubscriptionAgeMonths: int(asOf.Sub(first).Hours() / 24 / 30),
		PlanID:                currentPlan(subs, asOf),
		PaymentReliability:    1,
	}

	rank, err := s.catalog.TierRank(ctx, sig.PlanID)
	if err == nil {
		sig.FreePlan = rank == 0
	} else if !errors.Is(err, pricingdomain.ErrInvalidPricing) {
		return domain.BusinessSignals{}, err
	}

	usage, err := s.repo.UsageEvents(ctx, businessID, metricsdomain.LastDays(asOf, usageLookbackDays))
	if err != nil {
		return domain.BusinessSignals{}, err
	}
	s.applyUsageSignals(ctx, &sig, usage, asOf, first)

	payments90, err := s.repo.PaymentEvents(ctx, businessID, metricsdomain.LastDays(asOf, 90))
	if err != nil {
		return domain.BusinessSignals{}, err
	}
	applyPaymentSignals(&sig, payments90)

	lifetime, err := s.repo.PaymentEvents(ctx, businessID, metricsdomain.Window{Start: first, End: asOf})
	if err != nil {
		return domain.BusinessSignals{}, err
	}
	for _, payment := range lifetime {
		if payment.Status == metricsdomain.PaymentStatusSucceeded {
			sig.TotalRevenue += payment.Amount
		}
	}

	return sig, nil
}

func (s *Service) applyUsageSignals(ctx context.Context, sig *domain.BusinessSignals, usage []metricsdomain.UsageEvent, asOf, firstSubscribed time.Time) {
	last30 := metricsdomain.LastDays(asOf, 30)
	prior30 := metricsdomain.Window{Start: asOf.AddDate(0, 0, -60), End: last30.Start}
	last7 := metricsdomain.LastDays(asOf, 7)
	prior21 := metricsdomain.Window{Start: asOf.AddDate(0, 0, -28), End: last7.Start}

	var count30, countPrior30, count7, countPrior21 int
	features := map[string]struct{}{}
	var lastActivity time.Time

	for _, event := range usage {
		if event.OccurredAt.After(lastActivity) {
			lastActivity = event.OccurredAt
		}
		if last30.Contains(event.OccurredAt) {
			count30++
			if event.Feature != "" {
				features[event.Feature] = struct{}{}
			}
			if event.Outcome == metricsdomain.UsageOutcomeError {
				sig.SupportEvents30d++
			}
		}
		if prior30.Contains(event.OccurredAt) {
			countPrior30++
		}
		if last7.Contains(event.OccurredAt) {
			count7++
		}
		if prior21.Contains(event.OccurredAt) {
			countPrior21++
		}
	}

	switch {
	case countPrior30 > 0:
		sig.UsageTrend30d = float64(count30-countPrior30) / float64(countPrior30)
	case count30 > 0:
		sig.UsageTrend30d = 1
	}

	weeklyBaseline := float64(countPrior21) / 3
	if weeklyBaseline > 0 {
		sig.LoginDecline = clamp01(1 - float64(count7)/weeklyBaseline)
	}

	sig.FeatureAdoption = clamp01(float64(len(features)) / featureCatalogSize)

	if lastActivity.IsZero() {
		lastActivity = firstSubscribed
	}
	sig.DaysSinceActivity = int(asOf.Sub(lastActivity).Hours() / 24)
	if sig.DaysSinceActivity < 0 {
		sig.DaysSinceActivity = 0
	}

	if limit, err := s.catalog.UsageLimit(ctx, sig.PlanID); err == nil && limit > 0 {
		sig.PlanUtilization = float64(count30) / float64(limit)
	}
}

func applyPaymentSignals(sig *domain.BusinessSignals, payments []metricsdomain.PaymentEvent) {
	var succeeded, failed int
	for _, payment := range payments {
		switch payment.Status {
		case metricsdomain.PaymentStatusSucceeded:
			succeeded++
		case metricsdomain.PaymentStatusFailed:
			failed++
		}
	}
	sig.PaymentFailures90d = failed
	if succeeded+failed > 0 {
		sig.PaymentReliability = float64(succeeded) / float64(succeeded+failed)
	}
}

// currentPlan picks the plan of the subscription covering asOf, falling
// back to the most recent one when no period covers it.
func currentPlan(subs []metricsdomain.Subscription, asOf time.Time) string {
	plan := subs[len(subs)-1].PlanID
	for _, sub := range subs {
		if !sub.PeriodStart.After(asOf) && sub.PeriodEnd.After(asOf) {
			plan = sub.PlanID
		}
	}
	return plan
}
