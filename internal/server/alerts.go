package server

import (
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
)

// ListAlerts returns unresolved alerts, newest first.
func (s *Server) ListAlerts(c *gin.Context) {
	if s.alerts == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit := parseLimit(c, 50)
	alerts, err := s.alerts.ListOpen(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

// AcknowledgeAlert marks an open alert as seen.
func (s *Server) AcknowledgeAlert(c *gin.Context) {
	if s.alerts == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	id, ok := alertID(c)
	if !ok {
		return
	}
	if err := s.alerts.Acknowledge(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "acknowledged"})
}

// ResolveAlert moves an alert to its terminal state.
func (s *Server) ResolveAlert(c *gin.Context) {
	if s.alerts == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	id, ok := alertID(c)
	if !ok {
		return
	}
	if err := s.alerts.Resolve(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resolved"})
}

// ListInsights returns recently generated insights.
func (s *Server) ListInsights(c *gin.Context) {
	if s.insights == nil {
		AbortWithError(c, ErrServiceUnavailable)
		return
	}

	limit := parseLimit(c, 50)
	insights, err := s.insights.ListRecent(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"insights": insights})
}

func alertID(c *gin.Context) (snowflake.ID, bool) {
	id, err := snowflake.ParseString(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid_alert_id"})
		return 0, false
	}
	return id, true
}
