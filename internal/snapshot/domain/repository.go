package domain

import (
	"context"
	"time"
)

// Store persists snapshots and LTV records with keyed, idempotent upserts.
type Store interface {
	// UpsertMRR writes the snapshot keyed by date; re-running a date
	// overwrites the existing row, never duplicates it.
	UpsertMRR(ctx context.Context, snapshot MRRSnapshot) error
	// UpsertLTV writes the record keyed by business id.
	UpsertLTV(ctx context.Context, record CustomerLTVRecord) error
	// LatestSnapshots returns up to limit snapshots, oldest first.
	LatestSnapshots(ctx context.Context, limit int) ([]MRRSnapshot, error)
	// SnapshotByDate returns the snapshot for one date, or nil.
	SnapshotByDate(ctx context.Context, date time.Time) (*MRRSnapshot, error)
}
