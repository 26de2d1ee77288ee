package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

var (
	// ErrEntityNotFound means a business has no subscription history.
	ErrEntityNotFound = errors.New("entity_not_found")
	// ErrRepositoryUnavailable wraps exhausted-retry I/O failures.
	ErrRepositoryUnavailable = errors.New("repository_unavailable")
)

// Repository is the read side of the metrics pipeline. Implementations
// return raw records; all grouping, windowing, and delta math happens in
// the engines so it stays unit-testable without a live database.
type Repository interface {
	// ActiveSubscriptions returns subscriptions whose billing period covers asOf.
	ActiveSubscriptions(ctx context.Context, asOf time.Time) ([]Subscription, error)
	// BusinessSubscriptions returns all subscription rows for one business,
	// oldest first. Empty history yields ErrEntityNotFound.
	BusinessSubscriptions(ctx context.Context, businessID snowflake.ID) ([]Subscription, error)
	// PaymentEvents returns payment events for a business inside the window.
	PaymentEvents(ctx context.Context, businessID snowflake.ID, w Window) ([]PaymentEvent, error)
	// UsageEvents returns usage events for a business inside the window.
	UsageEvents(ctx context.Context, businessID snowflake.ID, w Window) ([]UsageEvent, error)
	// SubscriptionStarts returns the first subscription date per business.
	SubscriptionStarts(ctx context.Context) ([]SubscriptionStart, error)
	// RevenueTotals returns lifetime settled revenue per business.
	RevenueTotals(ctx context.Context) ([]RevenueTotal, error)
}
