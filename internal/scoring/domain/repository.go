package domain

import "context"

// Store appends scoring results. All three tables are append-only, which
// keeps concurrent writers race-free and preserves history for audits.
type Store interface {
	AppendChurn(ctx context.Context, prediction ChurnPrediction) error
	AppendForecast(ctx context.Context, forecast RevenueForecast) error
	AppendOpportunities(ctx context.Context, opportunities []ExpansionOpportunity) error
}
