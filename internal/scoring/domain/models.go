// Package domain holds the churn, forecast, and expansion scoring entities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// OpportunityType enumerates expansion opportunity kinds.
type OpportunityType string

const (
	OpportunityUpgrade       OpportunityType = "upgrade"
	OpportunityUsageIncrease OpportunityType = "usage_increase"
	OpportunityAddon         OpportunityType = "addon"
)

// BusinessSignals are the collaborator-sourced features the scoring model
// reads. They are computed fresh each run and never persisted here.
type BusinessSignals struct {
	// UsageTrend30d is the fractional change of 30-day usage volume versus
	// the preceding 30 days. Negative means decline.
	UsageTrend30d float64
	// PaymentFailures90d counts failed charge attempts over 90 days.
	PaymentFailures90d int
	// PaymentReliability is the settled-to-total charge ratio over 90 days,
	// 1.0 when no charges were attempted.
	PaymentReliability float64
	// SupportEvents30d counts error-outcome usage events over 30 days.
	SupportEvents30d int
	// FeatureAdoption is the fraction of the feature catalog used in 30 days.
	FeatureAdoption float64
	// LoginDecline is the fractional drop of last-week activity versus the
	// trailing three-week average, clipped to [0, 1].
	LoginDecline float64
	// PlanUtilization is 30-day usage volume over the plan allowance.
	PlanUtilization float64
	// DaysSinceActivity counts days since the last usage event.
	DaysSinceActivity int
	// SubscriptionAgeMonths is whole months since the first subscription.
	SubscriptionAgeMonths int
	// PlanID is the current plan.
	PlanID string
	// FreePlan marks a zero-rank tier.
	FreePlan bool
	// TotalRevenue is lifetime settled revenue in minor units.
	TotalRevenue int64
}

// Assessment is the compact churn/health verdict for one business.
type Assessment struct {
	ChurnProbability float64
	Confidence       float64
	HealthScore      float64
}

// ChurnPrediction is one appended scoring result for later accuracy audits.
type ChurnPrediction struct {
	ID                 snowflake.ID                 `gorm:"primaryKey"`
	BusinessID         snowflake.ID                 `gorm:"not null;index"`
	Probability        float64                      `gorm:"not null"`
	Confidence         float64                      `gorm:"not null"`
	HorizonDays        int                          `gorm:"not null"`
	RiskFactors        datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	RecommendedActions datatypes.JSONSlice[string]  `gorm:"type:jsonb"`
	GeneratedAt        time.Time                    `gorm:"not null"`
}

// TableName sets the database table name.
func (ChurnPrediction) TableName() string { return "churn_predictions" }

// RevenueForecast is one appended seasonally-adjusted projection.
type RevenueForecast struct {
	ID            snowflake.ID                `gorm:"primaryKey"`
	ForecastDate  time.Time                   `gorm:"not null"`
	HorizonMonths int                         `gorm:"not null"`
	PredictedMRR  int64                       `gorm:"not null"`
	PredictedARR  int64                       `gorm:"not null"`
	Confidence    float64                     `gorm:"not null"`
	IntervalLower int64                       `gorm:"not null"`
	IntervalUpper int64                       `gorm:"not null"`
	GrowthRate    float64                     `gorm:"not null"`
	Assumptions   datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	CreatedAt     time.Time                   `gorm:"not null"`
}

// TableName sets the database table name.
func (RevenueForecast) TableName() string { return "revenue_forecasts" }

// ExpansionOpportunity is one upsell recommendation for a business.
type ExpansionOpportunity struct {
	ID                       snowflake.ID                `gorm:"primaryKey"`
	BusinessID               snowflake.ID                `gorm:"not null;index"`
	Type                     OpportunityType             `gorm:"type:text;not null"`
	CurrentPlan              string                      `gorm:"type:text;not null"`
	RecommendedPlan          string                      `gorm:"type:text"`
	PotentialRevenueIncrease int64                       `gorm:"not null"`
	ConversionProbability    float64                     `gorm:"not null"`
	UrgencyScore             int                         `gorm:"not null"`
	Actions                  datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	GeneratedAt              time.Time                   `gorm:"not null"`
}

// TableName sets the database table name.
func (ExpansionOpportunity) TableName() string { return "expansion_opportunities" }
