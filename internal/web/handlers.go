// internal/web/handlers.go
package web

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	defaultWindowHours  = 24
	maxWindowHours      = 24 * 90
	defaultIncidentRows = 50
)

func (s *Server) healthCheck(c *gin.Context) {
	if err := s.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now()})
}

func (s *Server) getHealthSummary(c *gin.Context) {
	summary, err := s.engine.GetSystemHealthSummary(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to build health summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build health summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getHealthReport(c *gin.Context) {
	report, err := s.engine.GetSystemHealthReport(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No report available yet"})
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) getServiceStates(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"services": s.engine.ServiceStates()})
}

func (s *Server) getAlerts(c *gin.Context) {
	alerts, err := s.engine.GetActiveAlerts(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to load alerts")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load alerts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"alerts": alerts, "count": len(alerts)})
}

type acknowledgeRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (s *Server) acknowledgeAlert(c *gin.Context) {
	var req acknowledgeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "user_id is required"})
		return
	}

	if !s.engine.AcknowledgeAlert(c.Request.Context(), c.Param("id"), req.UserID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Alert not found or already acknowledged"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"acknowledged": true, "timestamp": time.Now()})
}

func (s *Server) resolveAlert(c *gin.Context) {
	if !s.engine.ResolveAlert(c.Request.Context(), c.Param("id")) {
		c.JSON(http.StatusConflict, gin.H{"error": "Alert not found or already resolved"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"resolved": true, "timestamp": time.Now()})
}

func (s *Server) getUptimeSummary(c *gin.Context) {
	hours, ok := s.windowHours(c)
	if !ok {
		return
	}

	summary, err := s.engine.GetUptimeSummary(c.Request.Context(), hours)
	if err != nil {
		logrus.WithError(err).Error("Failed to compute uptime summary")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to compute uptime summary"})
		return
	}
	c.JSON(http.StatusOK, summary)
}

func (s *Server) getRecentIncidents(c *gin.Context) {
	hours, ok := s.windowHours(c)
	if !ok {
		return
	}

	limit := defaultIncidentRows
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = parsed
	}

	incidents, err := s.engine.GetRecentIncidents(c.Request.Context(), hours, limit)
	if err != nil {
		logrus.WithError(err).Error("Failed to load incidents")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load incidents"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"incidents": incidents, "count": len(incidents)})
}

// windowHours parses and bounds the hours query parameter. Invalid windows
// are rejected here, before they reach the calculator.
func (s *Server) windowHours(c *gin.Context) (int, bool) {
	hours := defaultWindowHours
	if raw := c.Query("hours"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return 0, false
		}
		hours = parsed
	}
	if hours > maxWindowHours {
		c.JSON(http.StatusBadRequest, gin.H{"error": "hours exceeds the maximum query window"})
		return 0, false
	}
	return hours, true
}
