package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

type triggerRunRequest struct {
	AsOf        string   `json:"as_of"`
	BusinessIDs []string `json:"business_ids"`
}

type runSummaryResponse struct {
	RunID            string `json:"run_id"`
	AsOf             string `json:"as_of"`
	DurationMS       int64  `json:"duration_ms"`
	SnapshotOK       bool   `json:"snapshot_ok"`
	ForecastOK       bool   `json:"forecast_ok"`
	LTVOK            bool   `json:"ltv_ok"`
	ChurnOK          bool   `json:"churn_ok"`
	InsightsOK       bool   `json:"insights_ok"`
	AlertsOK         bool   `json:"alerts_ok"`
	BusinessesTotal  int    `json:"businesses_total"`
	BusinessesFailed int    `json:"businesses_failed"`
	AlertsCreated    int    `json:"alerts_created"`
	AlertsSuppressed int    `json:"alerts_suppressed"`
	InsightsCreated  int    `json:"insights_created"`
	Failures         any    `json:"failures,omitempty"`
}

// TriggerRun executes a pipeline run synchronously and returns its summary.
func (s *Server) TriggerRun(c *gin.Context) {
	if s.orchestrator == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	var req triggerRunRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
			return
		}
	}

	asOf := s.clock.Now().Truncate(24 * time.Hour)
	if req.AsOf != "" {
		parsed, err := time.Parse("2006-01-02", req.AsOf)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_as_of"})
			return
		}
		asOf = parsed.UTC()
	}

	businessIDs := make([]snowflake.ID, 0, len(req.BusinessIDs))
	for _, raw := range req.BusinessIDs {
		id, err := snowflake.ParseString(raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_business_id"})
			return
		}
		businessIDs = append(businessIDs, id)
	}

	summary, err := s.orchestrator.Run(c.Request.Context(), asOf, businessIDs)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := runSummaryResponse{
		RunID:            summary.RunID.String(),
		AsOf:             summary.AsOf.Format("2006-01-02"),
		DurationMS:       summary.Duration.Milliseconds(),
		SnapshotOK:       summary.SnapshotOK,
		ForecastOK:       summary.ForecastOK,
		LTVOK:            summary.LTVOK,
		ChurnOK:          summary.ChurnOK,
		InsightsOK:       summary.InsightsOK,
		AlertsOK:         summary.AlertsOK,
		BusinessesTotal:  summary.BusinessesTotal,
		BusinessesFailed: summary.BusinessesFailed,
		AlertsCreated:    summary.AlertsCreated,
		AlertsSuppressed: summary.AlertsSuppressed,
		InsightsCreated:  summary.InsightsCreated,
	}
	if len(summary.Failures) > 0 {
		resp.Failures = summary.Failures
	}
	c.JSON(http.StatusCreated, gin.H{"run": resp})
}

// ListRuns returns recent pipeline run summaries, newest first.
func (s *Server) ListRuns(c *gin.Context) {
	if s.runs == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit := parseLimit(c, 20)
	summaries, err := s.runs.ListRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	runs := make([]runSummaryResponse, 0, len(summaries))
	for _, summary := range summaries {
		runs = append(runs, runSummaryResponse{
			RunID:            summary.RunID.String(),
			AsOf:             summary.AsOf.Format("2006-01-02"),
			DurationMS:       summary.Duration.Milliseconds(),
			SnapshotOK:       summary.SnapshotOK,
			ForecastOK:       summary.ForecastOK,
			LTVOK:            summary.LTVOK,
			ChurnOK:          summary.ChurnOK,
			InsightsOK:       summary.InsightsOK,
			AlertsOK:         summary.AlertsOK,
			BusinessesTotal:  summary.BusinessesTotal,
			BusinessesFailed: summary.BusinessesFailed,
			AlertsCreated:    summary.AlertsCreated,
			AlertsSuppressed: summary.AlertsSuppressed,
			InsightsCreated:  summary.InsightsCreated,
		})
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

// ListSnapshots returns recent MRR snapshots, oldest first.
func (s *Server) ListSnapshots(c *gin.Context) {
	if s.snapshots == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit := parseLimit(c, 30)
	snapshots, err := s.snapshots.LatestSnapshots(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": snapshots})
}

// ListCohorts returns the retention breakdown by first-subscription month,
// computed as of today or an explicit as_of date.
func (s *Server) ListCohorts(c *gin.Context) {
	if s.cohorts == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	asOf := s.clock.Now().Truncate(24 * time.Hour)
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_as_of"})
			return
		}
		asOf = parsed.UTC()
	}

	cohorts, err := s.cohorts.CohortAnalysis(c.Request.Context(), asOf)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"cohorts": cohorts})
}

func parseLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return fallback
	}
	return limit
}
