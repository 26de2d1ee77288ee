package service

import (
	"fmt"
	"time"

	"github.com/smallbiznis/pulse/internal/insight/domain"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
	"gorm.io/datatypes"
)

// Insight thresholds.
const (
	growthInsightAt        = 0.20
	declineInsightAt       = -0.10
	expansionShareAt       = 0.10
	newBusinessShareAt     = 0.30
	seasonalVariancePoints = 15.0
)

// Alert thresholds.
const (
	mrrDeclineAlertAt    = 0.05
	mrrDeclineHighAt     = 0.10
	mrrDeclineCriticalAt = 0.15
	churnSpikeAlertAt    = 0.10
	churnSpikeHighAt     = 0.30
	churnSpikeCriticalAt = 0.50
	churnRiskAlertAt     = 0.70
	churnRiskCriticalAt  = 0.85
)

// buildInsights evaluates the insight thresholds for one snapshot pair and
// the trailing history. Pure; persistence happens in the caller.
func buildInsights(current, previous *snapshotdomain.MRRSnapshot, history []snapshotdomain.MRRSnapshot, asOf time.Time) []domain.Insight {
	var insights []domain.Insight
	if current == nil || previous == nil || previous.TotalMRR <= 0 {
		return insights
	}

	growth := float64(current.TotalMRR-previous.TotalMRR) / float64(previous.TotalMRR)

	if growth > growthInsightAt {
		insights = append(insights, domain.Insight{
			Type:        "mrr_growth",
			Category:    domain.CategoryGrowth,
			Title:       "Strong MRR growth",
			Description: fmt.Sprintf("MRR grew %.1f%% month over month.", growth*100),
			ImpactScore: 90,
			Confidence:  0.9,
			Actionable:  true,
			Actions:     datatypes.JSONSlice[string]{"Identify which channels drove the growth and double down"},
			Data:        datatypes.JSONMap{"growth": growth, "total_mrr": current.TotalMRR},
			GeneratedAt: asOf,
		})
	}

	if growth < declineInsightAt {
		insights = append(insights, domain.Insight{
			Type:        "mrr_decline",
			Category:    domain.CategoryRevenue,
			Title:       "MRR declining",
			Description: fmt.Sprintf("MRR fell %.1f%% month over month.", -growth*100),
			ImpactScore: 85,
			Confidence:  0.9,
			Actionable:  true,
			Actions:     datatypes.JSONSlice[string]{"Review churned and contracted accounts for a common cause"},
			Data:        datatypes.JSONMap{"growth": growth, "total_mrr": current.TotalMRR},
			GeneratedAt: asOf,
		})
	}

	if current.TotalMRR > 0 {
		if share := float64(current.ExpansionMRR) / float64(current.TotalMRR); share > expansionShareAt {
			insights = append(insights, domain.Insight{
				Type:        "expansion_momentum",
				Category:    domain.CategoryGrowth,
				Title:       "Expansion revenue momentum",
				Description: fmt.Sprintf("Expansion MRR is %.1f%% of total MRR.", share*100),
				ImpactScore: 70,
				Confidence:  0.8,
				Actionable:  true,
				Actions:     datatypes.JSONSlice[string]{"Prioritize upsell plays on similar accounts"},
				Data:        datatypes.JSONMap{"expansion_share": share},
				GeneratedAt: asOf,
			})
		}
		if share := float64(current.NewBusinessMRR) / float64(current.TotalMRR); share > newBusinessShareAt {
			insights = append(insights, domain.Insight{
				Type:        "new_business_momentum",
				Category:    domain.CategoryGrowth,
				Title:       "New business driving revenue",
				Description: fmt.Sprintf("New business MRR is %.1f%% of total MRR.", share*100),
				ImpactScore: 75,
				Confidence:  0.8,
				Actionable:  false,
				Data:        datatypes.JSONMap{"new_business_share": share},
				GeneratedAt: asOf,
			})
		}
	}

	if seasonal, ok := seasonalInsight(history, asOf); ok {
		insights = append(insights, seasonal)
	}

	return insights
}

// seasonalInsight fires when quarterly growth averages spread more than
// the variance threshold in percentage points.
func seasonalInsight(history []snapshotdomain.MRRSnapshot, asOf time.Time) (domain.Insight, bool) {
	if len(history) < 4 {
		return domain.Insight{}, false
	}

	var sums [4]float64
	var counts [4]int
	for i := 1; i < len(history); i++ {
		prev := history[i-1].TotalMRR
		if prev <= 0 {
			continue
		}
		quarter := (int(history[i].SnapshotDate.Month()) - 1) / 3
		sums[quarter] += float64(history[i].TotalMRR-prev) / float64(prev) * 100
		counts[quarter]++
	}

	best, worst := -1, -1
	for q := 0; q < 4; q++ {
		if counts[q] == 0 {
			continue
		}
		avg := sums[q] / float64(counts[q])
		sums[q] = avg
		if best == -1 || avg > sums[best] {
			best = q
		}
		if worst == -1 || avg < sums[worst] {
			worst = q
		}
	}
	if best == -1 || worst == -1 || best == worst {
		return domain.Insight{}, false
	}
	variance := sums[best] - sums[worst]
	if variance <= seasonalVariancePoints {
		return domain.Insight{}, false
	}

	return domain.Insight{
		Type:        "seasonal_pattern",
		Category:    domain.CategorySeasonal,
		Title:       "Seasonal revenue pattern",
		Description: fmt.Sprintf("Q%d outgrows Q%d by %.1f percentage points on average.", best+1, worst+1, variance),
		ImpactScore: 65,
		Confidence:  0.7,
		Actionable:  true,
		Actions:     datatypes.JSONSlice[string]{"Plan campaigns and capacity around the strong quarter"},
		Data:        datatypes.JSONMap{"strongest_quarter": best + 1, "weakest_quarter": worst + 1, "variance_points": variance},
		GeneratedAt: asOf,
	}, true
}

// buildAlerts evaluates the alert severity ladders. Pure; suppression is
// enforced by the store at insert time.
func buildAlerts(current, previous *snapshotdomain.MRRSnapshot, predictions []scoringdomain.ChurnPrediction, asOf time.Time) []domain.Alert {
	var alerts []domain.Alert

	if current != nil && previous != nil && previous.TotalMRR > 0 {
		decline := float64(previous.TotalMRR-current.TotalMRR) / float64(previous.TotalMRR)
		if decline > mrrDeclineAlertAt {
			severity := domain.SeverityMedium
			switch {
			case decline > mrrDeclineCriticalAt:
				severity = domain.SeverityCritical
			case decline > mrrDeclineHighAt:
				severity = domain.SeverityHigh
			}
			alerts = append(alerts, domain.Alert{
				Type:     "mrr_decline",
				Category: domain.CategoryRevenue,
				Severity: severity,
				Title:    "MRR declining",
				Message:  fmt.Sprintf("MRR dropped %.1f%% since the previous period.", decline*100),
				Data:     datatypes.JSONMap{"decline": decline, "total_mrr": current.TotalMRR},
				CreatedAt: asOf,
			})
		}

		currentRate := churnRate(current)
		previousRate := churnRate(previous)
		if spike, ok := churnSpike(currentRate, previousRate); ok {
			severity := domain.SeverityMedium
			switch {
			case spike > churnSpikeCriticalAt:
				severity = domain.SeverityCritical
			case spike > churnSpikeHighAt:
				severity = domain.SeverityHigh
			}
			alerts = append(alerts, domain.Alert{
				Type:     "churn_spike",
				Category: domain.CategoryChurn,
				Severity: severity,
				Title:    "Churn rate spiking",
				Message:  fmt.Sprintf("Churned MRR rate rose %.0f%% versus the previous period.", spike*100),
				Data:     datatypes.JSONMap{"churn_rate": currentRate, "previous_rate": previousRate},
				CreatedAt: asOf,
			})
		}
	}

	for _, prediction := range predictions {
		if prediction.Probability < churnRiskAlertAt {
			continue
		}
		severity := domain.SeverityHigh
		if prediction.Probability >= churnRiskCriticalAt {
			severity = domain.SeverityCritical
		}
		alerts = append(alerts, domain.Alert{
			Type:       "churn_risk",
			Category:   domain.CategoryCustomer,
			Severity:   severity,
			Title:      "Customer at high churn risk",
			Message:    fmt.Sprintf("Churn probability %.0f%% within %d days.", prediction.Probability*100, prediction.HorizonDays),
			BusinessID: prediction.BusinessID,
			Data:       datatypes.JSONMap{"probability": prediction.Probability, "confidence": prediction.Confidence},
			CreatedAt:  asOf,
		})
	}

	return alerts
}

func churnRate(s *snapshotdomain.MRRSnapshot) float64 {
	if s.TotalMRR <= 0 {
		return 0
	}
	return float64(s.ChurnedMRR) / float64(s.TotalMRR)
}

// churnSpike reports the relative increase of the churn rate. With no
// prior churn, any nontrivial rate counts as a full spike.
func churnSpike(current, previous float64) (float64, bool) {
	if previous > 0 {
		spike := (current - previous) / previous
		return spike, spike > churnSpikeAlertAt
	}
	if current > 0.05 {
		return 1, true
	}
	return 0, false
}
