// Package domain holds the insight and alert entities.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Severity ranks alert urgency.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Category groups insights and alerts by business concern.
type Category string

const (
	CategoryRevenue  Category = "revenue"
	CategoryGrowth   Category = "growth"
	CategoryChurn    Category = "churn"
	CategoryCustomer Category = "customer"
	CategorySeasonal Category = "seasonal"
)

// Insight is a derived, human-readable observation about the business.
type Insight struct {
	ID          snowflake.ID                `gorm:"primaryKey"`
	Type        string                      `gorm:"type:text;not null"`
	Category    Category                    `gorm:"type:text;not null"`
	Title       string                      `gorm:"type:text;not null"`
	Description string                      `gorm:"type:text;not null"`
	ImpactScore int                         `gorm:"not null"`
	Confidence  float64                     `gorm:"not null"`
	Actionable  bool                        `gorm:"not null"`
	Actions     datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Data        datatypes.JSONMap           `gorm:"type:jsonb"`
	GeneratedAt time.Time                   `gorm:"not null"`
	ExpiresAt   *time.Time
}

// TableName sets the database table name.
func (Insight) TableName() string { return "insights" }

// Alert is a severity-tagged anomaly notification. Its lifecycle is
// created -> acknowledged -> resolved; acknowledged is optional and
// resolved is terminal. BusinessID is zero for business-wide alerts.
type Alert struct {
	ID             snowflake.ID      `gorm:"primaryKey"`
	Type           string            `gorm:"type:text;not null"`
	Category       Category          `gorm:"type:text;not null"`
	Severity       Severity          `gorm:"type:text;not null"`
	Title          string            `gorm:"type:text;not null"`
	Message        string            `gorm:"type:text;not null"`
	BusinessID     snowflake.ID      `gorm:"not null;default:0"`
	Data           datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt      time.Time         `gorm:"not null"`
	AcknowledgedAt *time.Time
	ResolvedAt     *time.Time
}

// TableName sets the database table name.
func (Alert) TableName() string { return "alerts" }

// Resolved reports whether the alert reached its terminal state.
func (a Alert) Resolved() bool { return a.ResolvedAt != nil }
