package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fincast/fincast/internal/config"
	"github.com/fincast/fincast/internal/database"
	"github.com/fincast/fincast/internal/modules/forecast"
	"github.com/fincast/fincast/internal/modules/ledger"
	"github.com/fincast/fincast/internal/modules/recommendations"
	"github.com/fincast/fincast/internal/modules/risk"
	"github.com/fincast/fincast/internal/scheduler"
	"github.com/fincast/fincast/internal/server"
	"github.com/fincast/fincast/pkg/logger"
)

func main() {
	// Initialize logger
	log := logger.New(logger.Config{
		Level:  "info",
		Pretty: true,
	})

	log.Info().Msg("Starting Fincast")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := ledger.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize schema")
	}

	// Wire repositories and analytics engines
	ledgerRepo := ledger.NewRepository(db.Conn(), log)
	forecastEngine := forecast.NewEngine(ledgerRepo, log)
	riskScorer := risk.NewScorer(ledgerRepo, forecastEngine, log)
	recsEngine := recommendations.NewEngine(ledgerRepo, forecastEngine, recommendations.English, log)

	// Initialize scheduler
	sched := scheduler.New(log)
	sched.Start()
	defer sched.Stop()

	qualityScan := ledger.NewQualityScanJob(ledgerRepo, log)
	if err := sched.AddJob(cfg.QualityScanSchedule, qualityScan); err != nil {
		log.Fatal().Err(err).Msg("Failed to register quality scan job")
	}

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:            cfg.Port,
		Log:             log,
		DevMode:         cfg.DevMode,
		Ledger:          ledger.NewHandler(ledgerRepo, log),
		Forecast:        forecast.NewHandler(forecastEngine, log),
		Risk:            risk.NewHandler(riskScorer, log),
		Recommendations: recommendations.NewHandler(recsEngine, log),
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
