// Package domain holds the revenue snapshot entities the engine produces.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Segment buckets a customer by value and risk.
type Segment string

const (
	SegmentChampion Segment = "champion"
	SegmentLoyal    Segment = "loyal"
	SegmentAtRisk   Segment = "at_risk"
	SegmentCritical Segment = "critical"
)

// SegmentFor maps a health score and churn probability onto a segment.
// Thresholds are fixed so segmentation is reproducible run to run.
func SegmentFor(healthScore float64, churnProbability float64) Segment {
	switch {
	case healthScore >= 80 && churnProbability < 0.2:
		return SegmentChampion
	case healthScore >= 60 && churnProbability < 0.4:
		return SegmentLoyal
	case healthScore >= 40 && churnProbability < 0.7:
		return SegmentAtRisk
	default:
		return SegmentCritical
	}
}

// MRRSnapshot decomposes monthly recurring revenue for one calendar date.
// All monetary fields are minor-currency units.
type MRRSnapshot struct {
	ID              snowflake.ID `gorm:"primaryKey"`
	SnapshotDate    time.Time    `gorm:"not null;uniqueIndex"`
	TotalMRR        int64        `gorm:"not null"`
	NewBusinessMRR  int64        `gorm:"not null"`
	ExpansionMRR    int64        `gorm:"not null"`
	ContractionMRR  int64        `gorm:"not null"`
	ChurnedMRR      int64        `gorm:"not null"`
	NetNewMRR       int64        `gorm:"not null"`
	TotalCustomers  int          `gorm:"not null"`
	PayingCustomers int          `gorm:"not null"`
	ARPU            int64        `gorm:"not null"`
	CreatedAt       time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (MRRSnapshot) TableName() string { return "mrr_snapshots" }

// CustomerLTVRecord is the live value/risk record for one business.
type CustomerLTVRecord struct {
	BusinessID            snowflake.ID `gorm:"primaryKey"`
	FirstSubscriptionDate time.Time    `gorm:"not null"`
	LastActiveDate        *time.Time
	TotalRevenue          int64   `gorm:"not null"`
	MonthsActive          int     `gorm:"not null"`
	CurrentMRR            int64   `gorm:"not null"`
	PredictedLTV          int64   `gorm:"not null"`
	ChurnProbability      float64 `gorm:"not null"`
	HealthScore           float64 `gorm:"not null"`
	Segment               Segment `gorm:"type:text;not null"`
	UpdatedAt             time.Time
}

// TableName sets the database table name.
func (CustomerLTVRecord) TableName() string { return "customer_ltv_records" }

// CohortEntry is a derived retention aggregate for one signup month.
type CohortEntry struct {
	CohortMonth           time.Time
	MonthsSinceStart      int
	InitialCustomers      int
	CustomersRemaining    int
	TotalRevenue          int64
	AvgRevenuePerCustomer int64
	RetentionRate         float64
}
