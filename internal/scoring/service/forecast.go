package service

import (
	"fmt"
	"math"
	"time"

	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
)

// Forecast model constants.
const (
	forecastHistoryLimit = 12
	minimumGrowthRate    = 0.02
	churnTrendPenaltyAt  = 0.10
)

// seasonalMultiplier adjusts the growth rate by the quarter of the
// forecast date.
func seasonalMultiplier(t time.Time) float64 {
	switch (int(t.Month()) - 1) / 3 {
	case 0:
		return 0.95
	case 1:
		return 1.05
	case 2:
		return 1.02
	default:
		return 1.08
	}
}

// projectRevenue computes the seasonally-adjusted projection from the
// snapshot history, oldest first. Pure; all inputs are explicit.
func projectRevenue(history []snapshotdomain.MRRSnapshot, horizonMonths int, asOf time.Time) (predictedMRR int64, growthRate, confidence float64, assumptions []string) {
	latest := history[len(history)-1]

	var rates []float64
	for i := 1; i < len(history); i++ {
		prev := history[i-1].TotalMRR
		if prev > 0 {
			rates = append(rates, float64(history[i].TotalMRR-prev)/float64(prev))
		}
	}

	avgGrowth := minimumGrowthRate
	if len(rates) > 0 {
		var sum float64
		for _, rate := range rates {
			sum += rate
		}
		avgGrowth = sum / float64(len(rates))
		if avgGrowth < minimumGrowthRate {
			avgGrowth = minimumGrowthRate
			assumptions = append(assumptions, fmt.Sprintf("growth floored at %.0f%% minimum", minimumGrowthRate*100))
		}
	} else {
		assumptions = append(assumptions, "no month-over-month history, assuming minimum growth")
	}

	multiplier := seasonalMultiplier(asOf)
	growthRate = avgGrowth * multiplier
	assumptions = append(assumptions,
		fmt.Sprintf("average monthly growth %.2f%%", avgGrowth*100),
		fmt.Sprintf("seasonal multiplier %.2f for Q%d", multiplier, (int(asOf.Month())-1)/3+1),
	)

	predictedMRR = int64(math.Round(float64(latest.TotalMRR) * math.Pow(1+growthRate, float64(horizonMonths))))

	confidence = 0.50 + 0.05*float64(min(len(history), 6))
	if latest.TotalMRR > 0 {
		churnRate := float64(latest.ChurnedMRR) / float64(latest.TotalMRR)
		if churnRate > churnTrendPenaltyAt {
			confidence -= 0.10
			assumptions = append(assumptions, fmt.Sprintf("confidence reduced, churn rate %.1f%% exceeds %.0f%%", churnRate*100, churnTrendPenaltyAt*100))
		}
	}
	confidence = clamp(confidence, confidenceFloor, confidenceCap)

	return predictedMRR, growthRate, confidence, assumptions
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
