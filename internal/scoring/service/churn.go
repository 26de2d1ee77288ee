package service

import (
	"github.com/smallbiznis/pulse/internal/scoring/domain"
)

// Churn model constants. The model is an additive threshold system, kept
// explicit so every probability can be traced back to the rules that fired.
const (
	churnBaseRate   = 0.10
	churnFloor      = 0.01
	churnCeiling    = 0.95
	confidenceBase  = 0.80
	confidenceFloor = 0.30
	confidenceCap   = 0.95
)

// churnRule is one auditable scoring rule. The same predicate drives both
// the probability increment and the emitted risk factor, so a factor can
// never appear without its threshold actually being crossed.
type churnRule struct {
	name    string
	weight  float64
	crossed func(domain.BusinessSignals) bool
	factor  string
	action  string
}

var churnRules = []churnRule{
	{
		name:    "usage_decline",
		weight:  0.30,
		crossed: func(s domain.BusinessSignals) bool { return s.UsageTrend30d < -0.30 },
		factor:  "Usage dropped more than 30% over the last 30 days",
		action:  "Schedule a customer success check-in",
	},
	{
		name:    "payment_failures",
		weight:  0.25,
		crossed: func(s domain.BusinessSignals) bool { return s.PaymentFailures90d > 3 },
		factor:  "More than 3 failed payments in the last 90 days",
		action:  "Ask the customer to update billing details",
	},
	{
		name:    "inactivity",
		weight:  0.20,
		crossed: func(s domain.BusinessSignals) bool { return s.DaysSinceActivity > 30 },
		factor:  "No product activity for more than 30 days",
		action:  "Send a re-engagement campaign",
	},
	{
		name:    "support_pressure",
		weight:  0.15,
		crossed: func(s domain.BusinessSignals) bool { return s.SupportEvents30d > 5 },
		factor:  "Elevated error volume in the last 30 days",
		action:  "Open a proactive support ticket",
	},
	{
		name:    "low_adoption",
		weight:  0.10,
		crossed: func(s domain.BusinessSignals) bool { return s.FeatureAdoption < 0.30 },
		factor:  "Less than a third of product features adopted",
		action:  "Offer a guided onboarding session",
	},
	{
		name:    "login_decline",
		weight:  0.10,
		crossed: func(s domain.BusinessSignals) bool { return s.LoginDecline > 0.50 },
		factor:  "Weekly activity fell by more than half",
		action:  "Review recent product changes with the customer",
	},
	{
		name:    "low_utilization",
		weight:  0.10,
		crossed: func(s domain.BusinessSignals) bool { return !s.FreePlan && s.PlanUtilization < 0.20 },
		factor:  "Using under 20% of the plan allowance",
		action:  "Discuss right-sizing the plan",
	},
	{
		name:    "new_customer",
		weight:  0.10,
		crossed: func(s domain.BusinessSignals) bool { return s.SubscriptionAgeMonths < 1 },
		factor:  "Subscribed for less than one month",
		action:  "Monitor onboarding progress closely",
	},
	{
		name:    "free_plan",
		weight:  0.10,
		crossed: func(s domain.BusinessSignals) bool { return s.FreePlan },
		factor:  "On the free plan",
		action:  "Pitch a paid-tier trial",
	},
}

// scoreChurn runs every rule once, accumulating the probability and the
// matching factor/action labels in rule order.
func scoreChurn(sig domain.BusinessSignals) (probability float64, factors []string, actions []string) {
	probability = churnBaseRate
	for _, rule := range churnRules {
		if rule.crossed(sig) {
			probability += rule.weight
			factors = append(factors, rule.factor)
			actions = append(actions, rule.action)
		}
	}
	return clamp(probability, churnFloor, churnCeiling), factors, actions
}

// churnConfidence reduces the base confidence for thin data.
func churnConfidence(sig domain.BusinessSignals) float64 {
	confidence := confidenceBase
	if sig.SubscriptionAgeMonths < 1 {
		confidence -= 0.20
	}
	if sig.TotalRevenue == 0 {
		confidence -= 0.15
	}
	if sig.DaysSinceActivity > 60 {
		confidence -= 0.15
	}
	return clamp(confidence, confidenceFloor, confidenceCap)
}

// healthScore composes usage, payment reliability, and support pressure
// into a 0-100 score.
func healthScore(sig domain.BusinessSignals) float64 {
	score := 20.0
	score += 25 * clamp01(1-float64(sig.DaysSinceActivity)/60)
	score += 20 * clamp01(1+sig.UsageTrend30d)
	score += 25 * sig.PaymentReliability
	score += 10 * clamp01(sig.FeatureAdoption)
	score -= 15 * clamp01(float64(sig.SupportEvents30d)/10)
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp01(v float64) float64 {
	return clamp(v, 0, 1)
}
