// Package domain defines the read-only data feed the pipeline consumes.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Payment event statuses recorded by the billing system.
const (
	PaymentStatusSucceeded = "succeeded"
	PaymentStatusFailed    = "failed"
	PaymentStatusRefunded  = "refunded"
)

// Usage event outcomes.
const (
	UsageOutcomeSuccess = "success"
	UsageOutcomeError   = "error"
)

// Subscription is one billing-period row for a business.
type Subscription struct {
	BusinessID  snowflake.ID
	PlanID      string
	CreatedAt   time.Time
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// PaymentEvent is a settled or failed charge attempt.
type PaymentEvent struct {
	BusinessID  snowflake.ID
	Amount      int64
	Status      string
	ProcessedAt time.Time
}

// UsageEvent is one unit of product activity.
type UsageEvent struct {
	BusinessID snowflake.ID
	Feature    string
	Outcome    string
	OccurredAt time.Time
}

// SubscriptionStart is the first subscription date per business.
type SubscriptionStart struct {
	BusinessID snowflake.ID
	FirstAt    time.Time
}

// RevenueTotal is the lifetime settled revenue per business.
type RevenueTotal struct {
	BusinessID snowflake.ID
	Total      int64
}

// Window bounds a half-open [Start, End) time range.
type Window struct {
	Start time.Time
	End   time.Time
}

// LastDays returns the window covering the n days up to end.
func LastDays(end time.Time, n int) Window {
	return Window{Start: end.AddDate(0, 0, -n), End: end}
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && t.Before(w.End)
}
