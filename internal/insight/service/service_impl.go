// Package service implements insight and alert generation.
package service

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/pulse/internal/events"
	"github.com/smallbiznis/pulse/internal/insight/domain"
	"github.com/smallbiznis/pulse/internal/observability/metrics"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const insightHistoryLimit = 13

type Service struct {
	log       *zap.Logger
	snapshots snapshotdomain.Store
	insights  domain.InsightStore
	alerts    domain.AlertStore
	outbox    *events.Outbox
	genID     *snowflake.Node
}

type Params struct {
	fx.In

	Log       *zap.Logger
	Snapshots snapshotdomain.Store
	Insights  domain.InsightStore
	Alerts    domain.AlertStore
	Outbox    *events.Outbox `optional:"true"`
	GenID     *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		log:       p.Log.Named("insight.service"),
		snapshots: p.Snapshots,
		insights:  p.Insights,
		alerts:    p.Alerts,
		outbox:    p.Outbox,
		genID:     p.GenID,
	}
}

func (s *Service) GenerateInsights(ctx context.Context, asOf time.Time) (int, error) {
	current, previous, history, err := s.loadSnapshotPair(ctx)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, insight := range buildInsights(current, previous, history, asOf) {
		insight.ID = s.genID.Generate()
		if err := s.insights.Insert(ctx, insight); err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func (s *Service) GenerateAlerts(ctx context.Context, asOf time.Time, predictions []scoringdomain.ChurnPrediction) (int, int, error) {
	current, previous, _, err := s.loadSnapshotPair(ctx)
	if err != nil {
		return 0, 0, err
	}

	var created, suppressed int
	for _, alert := range buildAlerts(current, previous, predictions, asOf) {
		alert.ID = s.genID.Generate()
		inserted, err := s.alerts.InsertIfNotDuplicate(ctx, alert)
		if err != nil {
			return created, suppressed, err
		}
		if inserted {
			created++
			metrics.Pipeline().IncAlertCreated(string(alert.Severity))
			s.publishAlertCreated(ctx, alert)
			s.log.Info("alert created",
				zap.String("type", alert.Type),
				zap.String("severity", string(alert.Severity)),
				zap.String("business_id", alert.BusinessID.String()),
			)
		} else {
			suppressed++
			metrics.Pipeline().IncAlertSuppressed()
		}
	}
	return created, suppressed, nil
}

func (s *Service) publishAlertCreated(ctx context.Context, alert domain.Alert) {
	if s.outbox == nil {
		return
	}
	event := events.Event{
		Type:      events.EventAlertCreated,
		DedupeKey: events.EventAlertCreated + ":" + alert.ID.String(),
		Payload: map[string]any{
			"alert_id":    alert.ID.String(),
			"alert_type":  alert.Type,
			"category":    string(alert.Category),
			"severity":    string(alert.Severity),
			"business_id": alert.BusinessID.String(),
		},
	}
	if err := s.outbox.Publish(ctx, event); err != nil {
		s.log.Warn("publish alert event", zap.String("alert_id", alert.ID.String()), zap.Error(err))
	}
}

// loadSnapshotPair returns the newest snapshot, the one before it, and
// the trailing history oldest first. Either pointer may be nil when the
// history is too short.
func (s *Service) loadSnapshotPair(ctx context.Context) (*snapshotdomain.MRRSnapshot, *snapshotdomain.MRRSnapshot, []snapshotdomain.MRRSnapshot, error) {
	history, err := s.snapshots.LatestSnapshots(ctx, insightHistoryLimit)
	if err != nil {
		return nil, nil, nil, err
	}

	var current, previous *snapshotdomain.MRRSnapshot
	if len(history) >= 1 {
		current = &history[len(history)-1]
	}
	if len(history) >= 2 {
		previous = &history[len(history)-2]
	}
	return current, previous, history, nil
}
