package events

// Pipeline event types published for downstream consumers.
const (
	EventSnapshotComputed = "pulse.snapshot_computed"
	EventForecastCreated  = "pulse.forecast_created"
	EventAlertCreated     = "pulse.alert_created"
	EventRunCompleted     = "pulse.run_completed"
)

// SnapshotComputedPayload carries the headline figures of a new snapshot.
type SnapshotComputedPayload struct {
	SnapshotDate    string `json:"snapshot_date"`
	TotalMRR        int64  `json:"total_mrr"`
	NetNewMRR       int64  `json:"net_new_mrr"`
	PayingCustomers int    `json:"paying_customers"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p SnapshotComputedPayload) ToMap() map[string]any {
	return map[string]any{
		"snapshot_date":    p.SnapshotDate,
		"total_mrr":        p.TotalMRR,
		"net_new_mrr":      p.NetNewMRR,
		"paying_customers": p.PayingCustomers,
	}
}

// RunCompletedPayload summarizes one finished pipeline run.
type RunCompletedPayload struct {
	RunID       string `json:"run_id"`
	AsOf        string `json:"as_of"`
	SnapshotOK  bool   `json:"snapshot_ok"`
	Failures    int    `json:"failures"`
	DurationMS  int64  `json:"duration_ms"`
}

// ToMap converts a payload into an outbox-friendly map.
func (p RunCompletedPayload) ToMap() map[string]any {
	return map[string]any{
		"run_id":      p.RunID,
		"as_of":       p.AsOf,
		"snapshot_ok": p.SnapshotOK,
		"failures":    p.Failures,
		"duration_ms": p.DurationMS,
	}
}
