package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"argus/internal/config"
	"argus/internal/database"
	"argus/internal/metrics"
	"argus/internal/monitoring"
	"argus/internal/web"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	version := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *version {
		fmt.Printf("Argus SLA Monitoring v1.0.0\nBuild: %s\n", getBuildInfo())
		os.Exit(0)
	}

	// Load configuration
	cfg, err := config.Load(*configFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	// Setup logging
	setupLogging(cfg.Logging)

	logrus.WithFields(logrus.Fields{
		"config_file":    *configFile,
		"port":           cfg.Server.Port,
		"check_interval": cfg.Monitoring.CheckInterval,
		"services":       cfg.Monitoring.Services,
	}).Info("Starting Argus SLA monitoring")

	// Initialize database
	store, err := database.NewExtendedBoltStore(cfg.Database.Path)
	if err != nil {
		logrus.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Initialize metrics
	metricsCollector := metrics.NewCollector()

	// Initialize WebSocket hub
	hub := web.NewHub(metricsCollector)

	// Initialize monitoring engine
	engine := monitoring.NewEngine(cfg, store, metricsCollector, hub)

	// Initialize web server
	webServer := web.NewServer(cfg, store, engine, metricsCollector, hub)

	// Start services
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine.Start(ctx)

	go func() {
		if err := webServer.Start(ctx); err != nil {
			logrus.WithError(err).Error("Web server stopped")
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	logrus.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	cancel()
	engine.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := webServer.Stop(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("Web server shutdown error")
	}

	logrus.Info("Shutdown complete")
}

func setupLogging(cfg config.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if cfg.Format == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}
}

func getBuildInfo() string {
	return "dev-build" // This would be replaced by build system
}
