package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
)

// InsightStore persists generated insights.
type InsightStore interface {
	Insert(ctx context.Context, insight Insight) error
	ListRecent(ctx context.Context, limit int) ([]Insight, error)
}

// AlertStore persists alerts and enforces the suppression invariant.
type AlertStore interface {
	// InsertIfNotDuplicate inserts the alert unless an unresolved alert
	// with the same (type, category, business_id) exists. Returns whether
	// a row was inserted.
	InsertIfNotDuplicate(ctx context.Context, alert Alert) (bool, error)
	// Acknowledge marks an open alert as seen. Resolved alerts reject it.
	Acknowledge(ctx context.Context, id snowflake.ID) error
	// Resolve moves an alert to its terminal state. Idempotent.
	Resolve(ctx context.Context, id snowflake.ID) error
	// ListOpen returns unresolved alerts, newest first.
	ListOpen(ctx context.Context, limit int) ([]Alert, error)
}
