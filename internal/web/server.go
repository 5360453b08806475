// internal/web/server.go
package web

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"argus/internal/config"
	"argus/internal/database"
	"argus/internal/metrics"
	"argus/internal/monitoring"
)

type Server struct {
	config  *config.Config
	store   database.ExtendedStore
	engine  *monitoring.Engine
	metrics *metrics.Collector
	hub     *Hub
	router  *gin.Engine
	server  *http.Server
}

func NewServer(cfg *config.Config, store database.ExtendedStore, engine *monitoring.Engine, metricsCollector *metrics.Collector, hub *Hub) *Server {
	if cfg.Logging.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	server := &Server{
		config:  cfg,
		store:   store,
		engine:  engine,
		metrics: metricsCollector,
		hub:     hub,
		router:  router,
	}

	server.setupRoutes()
	return server
}

func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:         s.config.Server.Port,
		Handler:      s.router,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	logrus.WithField("port", s.config.Server.Port).Info("Starting web server")

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("Failed to start server")
		}
	}()

	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) setupRoutes() {
	s.router.GET("/healthz", s.healthCheck)

	api := s.router.Group("/api")
	{
		api.GET("/health/summary", s.getHealthSummary)
		api.GET("/health/report", s.getHealthReport)
		api.GET("/health/services", s.getServiceStates)

		api.GET("/alerts", s.getAlerts)
		api.POST("/alerts/:id/acknowledge", s.acknowledgeAlert)
		api.POST("/alerts/:id/resolve", s.resolveAlert)

		api.GET("/uptime", s.getUptimeSummary)
		api.GET("/incidents", s.getRecentIncidents)

		admin := api.Group("/admin")
		{
			admin.POST("/check", s.forceHealthCheck)
			admin.GET("/stats", s.getDatabaseStats)
			admin.POST("/purge", s.purgeRetention)
			admin.POST("/compact", s.compactDatabase)
		}
	}

	// WebSocket endpoint
	s.router.GET("/ws", s.handleWebSocket)

	// Prometheus metrics
	if s.config.Prometheus.Enabled {
		s.router.GET(s.config.Prometheus.MetricsPath, gin.WrapH(promhttp.Handler()))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
