package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/smallbiznis/pulse/internal/clock"
	"github.com/smallbiznis/pulse/internal/events"
	insightdomain "github.com/smallbiznis/pulse/internal/insight/domain"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	obscontext "github.com/smallbiznis/pulse/internal/observability/context"
	"github.com/smallbiznis/pulse/internal/observability/metrics"
	"github.com/smallbiznis/pulse/internal/observability/tracing"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
)

// Pipeline step names as they appear in run summaries and metrics labels.
const (
	StepSnapshot  = "snapshot"
	StepForecast  = "forecast"
	StepLTV       = "ltv"
	StepChurn     = "churn"
	StepExpansion = "expansion"
	StepInsights  = "insights"
	StepAlerts    = "alerts"
)

// ErrSnapshotFailed marks a run aborted because the global MRR snapshot
// could not be computed. Per-business steps never produce it.
var ErrSnapshotFailed = errors.New("pipeline_snapshot_failed")

// StepFailure records one failed unit of work within a run.
type StepFailure struct {
	Step       string       `json:"step"`
	BusinessID snowflake.ID `json:"business_id,omitempty"`
	Reason     string       `json:"reason"`
}

// RunSummary is the durable record of a single pipeline run.
type RunSummary struct {
	RunID      snowflake.ID
	AsOf       time.Time
	StartedAt  time.Time
	Duration   time.Duration
	SnapshotOK bool
	ForecastOK bool
	LTVOK      bool
	ChurnOK    bool
	InsightsOK bool
	AlertsOK   bool

	BusinessesTotal  int
	BusinessesFailed int
	AlertsCreated    int
	AlertsSuppressed int
	InsightsCreated  int

	Failures []StepFailure
}

// Succeeded reports whether every step completed without failures.
func (s RunSummary) Succeeded() bool {
	return s.SnapshotOK && s.ForecastOK && s.LTVOK && s.ChurnOK &&
		s.InsightsOK && s.AlertsOK && len(s.Failures) == 0
}

// Orchestrator sequences the daily analytics run: global MRR snapshot,
// revenue forecast, per-business scoring fan-out, then insight and alert
// generation. Only the snapshot step is fatal to the run.
type Orchestrator struct {
	log       *zap.Logger
	cfg       Config
	repo      metricsdomain.Repository
	snapshots snapshotdomain.Service
	snapStore snapshotdomain.Store
	scoring   scoringdomain.Service
	scoreRepo scoringdomain.Store
	insights  insightdomain.Service
	runs      RunStore
	outbox    *events.Outbox
	genID     *snowflake.Node
	clock     clock.Clock
}

// Params lists the orchestrator dependencies.
type Params struct {
	fx.In

	Log       *zap.Logger
	Cfg       Config
	Repo      metricsdomain.Repository
	Snapshots snapshotdomain.Service
	SnapStore snapshotdomain.Store
	Scoring   scoringdomain.Service
	ScoreRepo scoringdomain.Store
	Insights  insightdomain.Service
	Runs      RunStore
	Outbox    *events.Outbox
	GenID     *snowflake.Node
	Clock     clock.Clock
}

func New(p Params) *Orchestrator {
	return &Orchestrator{
		log:       p.Log.Named("pipeline.orchestrator"),
		cfg:       p.Cfg.withDefaults(),
		repo:      p.Repo,
		snapshots: p.Snapshots,
		snapStore: p.SnapStore,
		scoring:   p.Scoring,
		scoreRepo: p.ScoreRepo,
		insights:  p.Insights,
		runs:      p.Runs,
		outbox:    p.Outbox,
		genID:     p.GenID,
		clock:     p.Clock,
	}
}

// Run executes the full pipeline for asOf. When businessIDs is empty the
// per-business stages cover every business with an active subscription.
// The returned summary is persisted even when the run fails partway.
func (o *Orchestrator) Run(ctx context.Context, asOf time.Time, businessIDs []snowflake.ID) (RunSummary, error) {
	runID := o.genID.Generate()
	ctx = obscontext.WithRunID(ctx, runID.String())

	ctx, span := tracing.Tracer().Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("pulse.run_id", runID.String()),
		attribute.String("pulse.as_of", asOf.Format("2006-01-02")),
	)

	summary := RunSummary{
		RunID:     runID,
		AsOf:      asOf,
		StartedAt: o.clock.Now(),
	}
	log := o.log.With(zap.String("run_id", runID.String()), zap.Time("as_of", asOf))
	log.Info("pipeline run started")

	predictions, err := o.runSteps(ctx, log, asOf, businessIDs, &summary)

	summary.Duration = o.clock.Now().Sub(summary.StartedAt)
	metrics.Pipeline().ObserveRunDuration(summary.Duration, err == nil && summary.Succeeded())

	if storeErr := o.runs.Insert(ctx, summary); storeErr != nil {
		log.Error("persist run summary", zap.Error(storeErr))
	}
	o.publishRunCompleted(ctx, summary)

	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		log.Error("pipeline run aborted", zap.Error(err), zap.Duration("duration", summary.Duration))
		return summary, err
	}
	log.Info("pipeline run finished",
		zap.Duration("duration", summary.Duration),
		zap.Int("businesses", summary.BusinessesTotal),
		zap.Int("failed", summary.BusinessesFailed),
		zap.Int("alerts_created", summary.AlertsCreated),
		zap.Int("predictions", len(predictions)),
	)
	return summary, nil
}

func (o *Orchestrator) runSteps(ctx context.Context, log *zap.Logger, asOf time.Time, businessIDs []snowflake.ID, summary *RunSummary) ([]scoringdomain.ChurnPrediction, error) {
	if err := o.runSnapshot(ctx, asOf, summary); err != nil {
		summary.Failures = append(summary.Failures, StepFailure{Step: StepSnapshot, Reason: err.Error()})
		metrics.Pipeline().IncStep(StepSnapshot, "failure")
		return nil, fmt.Errorf("%w: %v", ErrSnapshotFailed, err)
	}
	summary.SnapshotOK = true
	metrics.Pipeline().IncStep(StepSnapshot, "success")

	if err := o.runForecast(ctx, asOf); err != nil {
		summary.Failures = append(summary.Failures, StepFailure{Step: StepForecast, Reason: err.Error()})
		metrics.Pipeline().IncStep(StepForecast, "failure")
		log.Warn("revenue forecast failed", zap.Error(err))
	} else {
		summary.ForecastOK = true
		metrics.Pipeline().IncStep(StepForecast, "success")
	}

	if len(businessIDs) == 0 {
		subs, err := o.repo.ActiveSubscriptions(ctx, asOf)
		if err != nil {
			summary.Failures = append(summary.Failures, StepFailure{Step: StepLTV, Reason: "list businesses: " + err.Error()})
			return nil, fmt.Errorf("%w: list businesses: %v", ErrSnapshotFailed, err)
		}
		businessIDs = distinctBusinesses(subs)
	}
	summary.BusinessesTotal = len(businessIDs)

	predictions := o.fanOut(ctx, log, asOf, businessIDs, summary)

	if created, err := o.insights.GenerateInsights(ctx, asOf); err != nil {
		summary.Failures = append(summary.Failures, StepFailure{Step: StepInsights, Reason: err.Error()})
		metrics.Pipeline().IncStep(StepInsights, "failure")
		log.Warn("insight generation failed", zap.Error(err))
	} else {
		summary.InsightsOK = true
		summary.InsightsCreated = created
		metrics.Pipeline().IncStep(StepInsights, "success")
	}

	if created, suppressed, err := o.insights.GenerateAlerts(ctx, asOf, predictions); err != nil {
		summary.Failures = append(summary.Failures, StepFailure{Step: StepAlerts, Reason: err.Error()})
		metrics.Pipeline().IncStep(StepAlerts, "failure")
		log.Warn("alert generation failed", zap.Error(err))
	} else {
		summary.AlertsOK = true
		summary.AlertsCreated = created
		summary.AlertsSuppressed = suppressed
		metrics.Pipeline().IncStep(StepAlerts, "success")
	}
	return predictions, nil
}

func (o *Orchestrator) runSnapshot(ctx context.Context, asOf time.Time, summary *RunSummary) error {
	snap, err := o.snapshots.CalculateMRR(ctx, asOf)
	if err != nil {
		return err
	}
	if err := o.snapStore.UpsertMRR(ctx, snap); err != nil {
		return err
	}
	metrics.Pipeline().SetSnapshotGauges(snap.TotalMRR, snap.PayingCustomers)
	day := snap.SnapshotDate.Format("2006-01-02")
	o.publish(ctx, events.EventSnapshotComputed, events.EventSnapshotComputed+":"+day,
		events.SnapshotComputedPayload{
			SnapshotDate:    day,
			TotalMRR:        snap.TotalMRR,
			NetNewMRR:       snap.NetNewMRR,
			PayingCustomers: snap.PayingCustomers,
		}.ToMap())
	return nil
}

func (o *Orchestrator) runForecast(ctx context.Context, asOf time.Time) error {
	forecast, err := o.scoring.ForecastRevenue(ctx, o.cfg.ForecastMonths, asOf)
	if err != nil {
		return err
	}
	if err := o.scoreRepo.AppendForecast(ctx, forecast); err != nil {
		return err
	}
	o.publish(ctx, events.EventForecastCreated, events.EventForecastCreated+":"+forecast.ID.String(), map[string]any{
		"forecast_id":    forecast.ID.String(),
		"horizon_months": forecast.HorizonMonths,
		"predicted_mrr":  forecast.PredictedMRR,
		"confidence":     forecast.Confidence,
	})
	return nil
}

// fanOut scores every business concurrently behind a weighted semaphore.
// A failure in one business never interrupts the others; every failure is
// recorded on the summary.
func (o *Orchestrator) fanOut(ctx context.Context, log *zap.Logger, asOf time.Time, businessIDs []snowflake.ID, summary *RunSummary) []scoringdomain.ChurnPrediction {
	var (
		mu          sync.Mutex
		wg          sync.WaitGroup
		predictions []scoringdomain.ChurnPrediction
		failed      = make(map[snowflake.ID]struct{})
		failedSteps = make(map[string]struct{})
	)
	sem := semaphore.NewWeighted(int64(o.cfg.FanOutLimit))

	record := func(id snowflake.ID, step, reason string) {
		mu.Lock()
		defer mu.Unlock()
		summary.Failures = append(summary.Failures, StepFailure{Step: step, BusinessID: id, Reason: reason})
		failed[id] = struct{}{}
		failedSteps[step] = struct{}{}
		metrics.Pipeline().IncBusinessFailure(step)
	}

	for _, id := range businessIDs {
		if err := sem.Acquire(ctx, 1); err != nil {
			record(id, StepLTV, "run cancelled: "+err.Error())
			continue
		}
		wg.Add(1)
		go func(id snowflake.ID) {
			defer wg.Done()
			defer sem.Release(1)

			ctx, span := tracing.Tracer().Start(ctx, "pipeline.business")
			defer span.End()
			span.SetAttributes(attribute.String("pulse.business_id", id.String()))

			if pred, ok := o.scoreBusiness(ctx, asOf, id, record); ok {
				mu.Lock()
				predictions = append(predictions, pred)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()

	summary.BusinessesFailed = len(failed)
	_, ltvFailed := failedSteps[StepLTV]
	_, churnFailed := failedSteps[StepChurn]
	summary.LTVOK = !ltvFailed
	summary.ChurnOK = !churnFailed
	sort.Slice(predictions, func(i, j int) bool { return predictions[i].BusinessID < predictions[j].BusinessID })
	return predictions
}

// scoreBusiness runs the three per-business stages. A business unknown to
// the data repository is skipped without marking the stage failed for the
// remaining stages.
func (o *Orchestrator) scoreBusiness(ctx context.Context, asOf time.Time, id snowflake.ID, record func(snowflake.ID, string, string)) (scoringdomain.ChurnPrediction, bool) {
	ltv, err := o.snapshots.CalculateLTV(ctx, id, asOf)
	switch {
	case errors.Is(err, metricsdomain.ErrEntityNotFound), errors.Is(err, snapshotdomain.ErrNoSubscriptions):
		o.log.Debug("business has no subscriptions, skipping", zap.String("business_id", id.String()))
		return scoringdomain.ChurnPrediction{}, false
	case err != nil:
		record(id, StepLTV, err.Error())
	default:
		if err := o.snapStore.UpsertLTV(ctx, ltv); err != nil {
			record(id, StepLTV, err.Error())
		} else {
			metrics.Pipeline().IncStep(StepLTV, "success")
		}
	}

	var (
		pred   scoringdomain.ChurnPrediction
		predOK bool
	)
	pred, err = o.scoring.PredictChurn(ctx, id, o.cfg.ChurnHorizonDays, asOf)
	switch {
	case errors.Is(err, metricsdomain.ErrEntityNotFound):
		return scoringdomain.ChurnPrediction{}, false
	case err != nil:
		record(id, StepChurn, err.Error())
	default:
		if err := o.scoreRepo.AppendChurn(ctx, pred); err != nil {
			record(id, StepChurn, err.Error())
		} else {
			predOK = true
			metrics.Pipeline().IncStep(StepChurn, "success")
		}
	}

	opps, err := o.scoring.IdentifyExpansionOpportunities(ctx, id, asOf)
	switch {
	case errors.Is(err, metricsdomain.ErrEntityNotFound):
		return pred, predOK
	case err != nil:
		record(id, StepExpansion, err.Error())
	case len(opps) > 0:
		if err := o.scoreRepo.AppendOpportunities(ctx, opps); err != nil {
			record(id, StepExpansion, err.Error())
		} else {
			metrics.Pipeline().IncStep(StepExpansion, "success")
		}
	}
	return pred, predOK
}

func (o *Orchestrator) publishRunCompleted(ctx context.Context, summary RunSummary) {
	payload := events.RunCompletedPayload{
		RunID:      summary.RunID.String(),
		AsOf:       summary.AsOf.Format("2006-01-02"),
		SnapshotOK: summary.SnapshotOK,
		Failures:   len(summary.Failures),
		DurationMS: summary.Duration.Milliseconds(),
	}
	o.publish(ctx, events.EventRunCompleted, events.EventRunCompleted+":"+summary.RunID.String(), payload.ToMap())
}

func (o *Orchestrator) publish(ctx context.Context, eventType, dedupeKey string, payload map[string]any) {
	if o.outbox == nil {
		return
	}
	event := events.Event{Type: eventType, Payload: payload, DedupeKey: dedupeKey}
	if err := o.outbox.Publish(ctx, event); err != nil {
		o.log.Warn("publish event", zap.String("event_type", eventType), zap.Error(err))
	}
}

func distinctBusinesses(subs []metricsdomain.Subscription) []snowflake.ID {
	seen := make(map[snowflake.ID]struct{}, len(subs))
	ids := make([]snowflake.ID, 0, len(subs))
	for _, sub := range subs {
		if _, ok := seen[sub.BusinessID]; ok {
			continue
		}
		seen[sub.BusinessID] = struct{}{}
		ids = append(ids, sub.BusinessID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
