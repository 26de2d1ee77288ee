package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"

	"github.com/smallbiznis/pulse/internal/clock"
	metricsdomain "github.com/smallbiznis/pulse/internal/metricsrepo/domain"
	scoringdomain "github.com/smallbiznis/pulse/internal/scoring/domain"
	snapshotdomain "github.com/smallbiznis/pulse/internal/snapshot/domain"
)

type fakeMetricsRepo struct {
	subs   []metricsdomain.Subscription
	listed bool
}

func (r *fakeMetricsRepo) ActiveSubscriptions(ctx context.Context, asOf time.Time) ([]metricsdomain.Subscription, error) {
	r.listed = true
	return r.subs, nil
}

func (r *fakeMetricsRepo) BusinessSubscriptions(ctx context.Context, businessID snowflake.ID) ([]metricsdomain.Subscription, error) {
	return nil, metricsdomain.ErrEntityNotFound
}

func (r *fakeMetricsRepo) PaymentEvents(ctx context.Context, businessID snowflake.ID, w metricsdomain.Window) ([]metricsdomain.PaymentEvent, error) {
	return nil, nil
}

func (r *fakeMetricsRepo) UsageEvents(ctx context.Context, businessID snowflake.ID, w metricsdomain.Window) ([]metricsdomain.UsageEvent, error) {
	return nil, nil
}

func (r *fakeMetricsRepo) SubscriptionStarts(ctx context.Context) ([]metricsdomain.SubscriptionStart, error) {
	return nil, nil
}

func (r *fakeMetricsRepo) RevenueTotals(ctx context.Context) ([]metricsdomain.RevenueTotal, error) {
	return nil, nil
}

type fakeSnapshotService struct {
	snapErr error
	ltvErr  map[snowflake.ID]error
}

func (s *fakeSnapshotService) CalculateMRR(ctx context.Context, date time.Time) (snapshotdomain.MRRSnapshot, error) {
	if s.snapErr != nil {
		return snapshotdomain.MRRSnapshot{}, s.snapErr
	}
	return snapshotdomain.MRRSnapshot{SnapshotDate: date, TotalMRR: 100000, PayingCustomers: 10}, nil
}

func (s *fakeSnapshotService) CalculateLTV(ctx context.Context, businessID snowflake.ID, asOf time.Time) (snapshotdomain.CustomerLTVRecord, error) {
	if err, ok := s.ltvErr[businessID]; ok {
		return snapshotdomain.CustomerLTVRecord{}, err
	}
	return snapshotdomain.CustomerLTVRecord{BusinessID: businessID, CurrentMRR: 2900}, nil
}

func (s *fakeSnapshotService) CohortAnalysis(ctx context.Context, asOf time.Time) ([]snapshotdomain.CohortEntry, error) {
	return nil, nil
}

type fakeSnapshotStore struct {
	mu       sync.Mutex
	mrrCount int
	ltvIDs   []snowflake.ID
}

func (s *fakeSnapshotStore) UpsertMRR(ctx context.Context, snapshot snapshotdomain.MRRSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.mrrCount++
	return nil
}

func (s *fakeSnapshotStore) UpsertLTV(ctx context.Context, record snapshotdomain.CustomerLTVRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ltvIDs = append(s.ltvIDs, record.BusinessID)
	return nil
}

func (s *fakeSnapshotStore) LatestSnapshots(ctx context.Context, limit int) ([]snapshotdomain.MRRSnapshot, error) {
	return nil, nil
}

func (s *fakeSnapshotStore) SnapshotByDate(ctx context.Context, date time.Time) (*snapshotdomain.MRRSnapshot, error) {
	return nil, nil
}

type fakeScoringService struct {
	churnErr map[snowflake.ID]error
}

func (s *fakeScoringService) PredictChurn(ctx context.Context, businessID snowflake.ID, horizonDays int, asOf time.Time) (scoringdomain.ChurnPrediction, error) {
	if err, ok := s.churnErr[businessID]; ok {
		return scoringdomain.ChurnPrediction{}, err
	}
	return scoringdomain.ChurnPrediction{BusinessID: businessID, Probability: 0.2, HorizonDays: horizonDays}, nil
}

func (s *fakeScoringService) ForecastRevenue(ctx context.Context, horizonMonths int, asOf time.Time) (scoringdomain.RevenueForecast, error) {
	return scoringdomain.RevenueForecast{HorizonMonths: horizonMonths, PredictedMRR: 120000, Confidence: 0.7}, nil
}

func (s *fakeScoringService) IdentifyExpansionOpportunities(ctx context.Context, businessID snowflake.ID, asOf time.Time) ([]scoringdomain.ExpansionOpportunity, error) {
	return nil, nil
}

func (s *fakeScoringService) AssessBusiness(ctx context.Context, businessID snowflake.ID, asOf time.Time) (scoringdomain.Assessment, error) {
	return scoringdomain.Assessment{}, nil
}

type fakeScoreStore struct {
	mu        sync.Mutex
	churnIDs  []snowflake.ID
	forecasts int
}

func (s *fakeScoreStore) AppendChurn(ctx context.Context, prediction scoringdomain.ChurnPrediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.churnIDs = append(s.churnIDs, prediction.BusinessID)
	return nil
}

func (s *fakeScoreStore) AppendForecast(ctx context.Context, forecast scoringdomain.RevenueForecast) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forecasts++
	return nil
}

func (s *fakeScoreStore) AppendOpportunities(ctx context.Context, opportunities []scoringdomain.ExpansionOpportunity) error {
	return nil
}

type fakeInsightService struct {
	predictions []scoringdomain.ChurnPrediction
}

func (s *fakeInsightService) GenerateInsights(ctx context.Context, asOf time.Time) (int, error) {
	return 2, nil
}

func (s *fakeInsightService) GenerateAlerts(ctx context.Context, asOf time.Time, predictions []scoringdomain.ChurnPrediction) (int, int, error) {
	s.predictions = predictions
	return 1, 1, nil
}

type fakeRunStore struct {
	summaries []RunSummary
}

func (s *fakeRunStore) Insert(ctx context.Context, summary RunSummary) error {
	s.summaries = append(s.summaries, summary)
	return nil
}

func (s *fakeRunStore) ListRecent(ctx context.Context, limit int) ([]RunSummary, error) {
	return s.summaries, nil
}

type orchestratorFixture struct {
	orchestrator *Orchestrator
	repo         *fakeMetricsRepo
	snapshots    *fakeSnapshotService
	snapStore    *fakeSnapshotStore
	scoring      *fakeScoringService
	scoreStore   *fakeScoreStore
	insights     *fakeInsightService
	runs         *fakeRunStore
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake node: %v", err)
	}
	f := &orchestratorFixture{
		repo:       &fakeMetricsRepo{},
		snapshots:  &fakeSnapshotService{ltvErr: map[snowflake.ID]error{}},
		snapStore:  &fakeSnapshotStore{},
		scoring:    &fakeScoringService{churnErr: map[snowflake.ID]error{}},
		scoreStore: &fakeScoreStore{},
		insights:   &fakeInsightService{},
		runs:       &fakeRunStore{},
	}
	f.orchestrator = &Orchestrator{
		log:       zap.NewNop(),
		cfg:       Config{}.withDefaults(),
		repo:      f.repo,
		snapshots: f.snapshots,
		snapStore: f.snapStore,
		scoring:   f.scoring,
		scoreRepo: f.scoreStore,
		insights:  f.insights,
		runs:      f.runs,
		genID:     node,
		clock:     clock.FixedClock{At: time.Date(2025, 6, 15, 4, 0, 0, 0, time.UTC)},
	}
	return f
}

func subscriptionFor(id snowflake.ID) metricsdomain.Subscription {
	return metricsdomain.Subscription{BusinessID: id, PlanID: "starter"}
}

func TestRunHappyPath(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.repo.subs = []metricsdomain.Subscription{subscriptionFor(2), subscriptionFor(1), subscriptionFor(2)}
	asOf := time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC)

	summary, err := f.orchestrator.Run(context.Background(), asOf, nil)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Succeeded() {
		t.Fatalf("expected clean run, got %+v", summary)
	}
	if summary.BusinessesTotal != 2 {
		t.Fatalf("BusinessesTotal = %d, want 2 (duplicates collapsed)", summary.BusinessesTotal)
	}
	if f.snapStore.mrrCount != 1 {
		t.Fatalf("mrr upserts = %d, want 1", f.snapStore.mrrCount)
	}
	if len(f.snapStore.ltvIDs) != 2 || len(f.scoreStore.churnIDs) != 2 {
		t.Fatalf("ltv=%d churn=%d, want 2 each", len(f.snapStore.ltvIDs), len(f.scoreStore.churnIDs))
	}
	if f.scoreStore.forecasts != 1 {
		t.Fatalf("forecasts = %d, want 1", f.scoreStore.forecasts)
	}
	if summary.AlertsCreated != 1 || summary.AlertsSuppressed != 1 || summary.InsightsCreated != 2 {
		t.Fatalf("alert/insight counts wrong: %+v", summary)
	}
	if len(f.insights.predictions) != 2 {
		t.Fatalf("alert generation saw %d predictions, want 2", len(f.insights.predictions))
	}
	if f.insights.predictions[0].BusinessID >= f.insights.predictions[1].BusinessID {
		t.Fatalf("predictions not sorted by business id")
	}
	if len(f.runs.summaries) != 1 {
		t.Fatalf("run summaries persisted = %d, want 1", len(f.runs.summaries))
	}
}

func TestRunSnapshotFailureAborts(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.snapshots.snapErr = errors.New("warehouse offline")
	f.repo.subs = []metricsdomain.Subscription{subscriptionFor(1)}

	summary, err := f.orchestrator.Run(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), nil)
	if !errors.Is(err, ErrSnapshotFailed) {
		t.Fatalf("expected ErrSnapshotFailed, got %v", err)
	}
	if summary.SnapshotOK {
		t.Fatalf("SnapshotOK must be false")
	}
	if len(f.scoreStore.churnIDs) != 0 {
		t.Fatalf("per-business scoring ran after fatal snapshot failure")
	}
	// The summary is written even for an aborted run.
	if len(f.runs.summaries) != 1 {
		t.Fatalf("run summaries persisted = %d, want 1", len(f.runs.summaries))
	}
	if len(f.runs.summaries[0].Failures) == 0 {
		t.Fatalf("aborted run must record the snapshot failure")
	}
}

func TestRunBusinessFailureIsolated(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.repo.subs = []metricsdomain.Subscription{subscriptionFor(1), subscriptionFor(2), subscriptionFor(3)}
	f.snapshots.ltvErr[2] = errors.New("ledger corrupted")

	summary, err := f.orchestrator.Run(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), nil)
	if err != nil {
		t.Fatalf("per-business failure must not abort the run: %v", err)
	}
	if summary.BusinessesFailed != 1 {
		t.Fatalf("BusinessesFailed = %d, want 1", summary.BusinessesFailed)
	}
	if summary.LTVOK {
		t.Fatalf("ltv step must be flagged after a business ltv failure")
	}
	if !summary.ChurnOK {
		t.Fatalf("churn step had no failures and must stay ok")
	}
	if summary.Succeeded() {
		t.Fatalf("a run with failures must not report success")
	}
	// The failing business still goes through churn scoring; only its LTV
	// stage is recorded as failed.
	if len(f.scoreStore.churnIDs) != 3 {
		t.Fatalf("churn predictions = %d, want 3", len(f.scoreStore.churnIDs))
	}
	var found bool
	for _, failure := range summary.Failures {
		if failure.Step == StepLTV && failure.BusinessID == 2 {
			found = true
		}
	}
	if !found {
		t.Fatalf("missing ltv failure for business 2: %+v", summary.Failures)
	}
}

func TestRunSkipsBusinessWithoutSubscriptions(t *testing.T) {
	f := newOrchestratorFixture(t)
	f.snapshots.ltvErr[7] = snapshotdomain.ErrNoSubscriptions

	summary, err := f.orchestrator.Run(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), []snowflake.ID{7, 8})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.BusinessesFailed != 0 {
		t.Fatalf("empty business must be skipped, not failed: %+v", summary.Failures)
	}
	if len(f.scoreStore.churnIDs) != 1 || f.scoreStore.churnIDs[0] != 8 {
		t.Fatalf("churn ids = %v, want [8]", f.scoreStore.churnIDs)
	}
}

func TestRunExplicitBusinessListSkipsDiscovery(t *testing.T) {
	f := newOrchestratorFixture(t)

	summary, err := f.orchestrator.Run(context.Background(), time.Date(2025, 6, 15, 0, 0, 0, 0, time.UTC), []snowflake.ID{4})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if f.repo.listed {
		t.Fatalf("explicit business list must not trigger discovery")
	}
	if summary.BusinessesTotal != 1 {
		t.Fatalf("BusinessesTotal = %d, want 1", summary.BusinessesTotal)
	}
}
