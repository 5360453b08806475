// internal/web/admin_handlers.go - Administrative endpoints
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// POST /api/admin/check - trigger an immediate health check pass
func (s *Server) forceHealthCheck(c *gin.Context) {
	logrus.Info("Forced health check requested")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()

	s.engine.ForceHealthCheck(ctx)

	c.JSON(http.StatusOK, gin.H{
		"message":   "Health check completed",
		"timestamp": time.Now(),
	})
}

// GET /api/admin/stats - database size and entry counts
func (s *Server) getDatabaseStats(c *gin.Context) {
	stats, err := s.store.GetDatabaseStats(c.Request.Context())
	if err != nil {
		logrus.WithError(err).Error("Failed to get database stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get database stats"})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// POST /api/admin/purge - apply retention windows immediately
func (s *Server) purgeRetention(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 60*time.Second)
	defer cancel()

	if err := s.engine.PurgeRetention(ctx); err != nil {
		logrus.WithError(err).Error("Retention purge failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Retention purge failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Retention purge completed",
		"timestamp": time.Now(),
	})
}

// POST /api/admin/compact - rewrite the database file to reclaim space
func (s *Server) compactDatabase(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 120*time.Second)
	defer cancel()

	if err := s.store.CompactDatabase(ctx); err != nil {
		logrus.WithError(err).Error("Database compaction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Database compaction failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Database compaction completed",
		"timestamp": time.Now(),
	})
}
