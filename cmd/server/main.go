package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/bookbalance/backend/internal/arbiter"
	"github.com/bookbalance/backend/internal/config"
	cronrunner "github.com/bookbalance/backend/internal/cron"
	"github.com/bookbalance/backend/internal/db"
	"github.com/bookbalance/backend/internal/engine"
	httpapi "github.com/bookbalance/backend/internal/http"
	"github.com/bookbalance/backend/internal/service"
	"github.com/bookbalance/backend/internal/solver"
	"github.com/bookbalance/backend/internal/territory"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	zerolog.TimeFieldFormat = time.RFC3339
	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	logger := log.Level(level).With().Str("service", "bookbalance-backend").Logger()

	ctx := context.Background()
	store, err := db.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect db")
	}
	defer store.Close()

	mappings, err := config.LoadTerritoryMap(cfg.TerritoryMapPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load territory map")
	}

	var reviewer arbiter.Reviewer
	if cfg.ArbiterURL == "" {
		reviewer = arbiter.MockReviewer{}
		logger.Info().Msg("using mock arbiter")
	} else {
		reviewer = &arbiter.HTTPReviewer{BaseURL: cfg.ArbiterURL}
	}

	var optimizer engine.Optimizer
	if cfg.SolverURL != "" {
		optimizer = &solver.HTTPSolver{BaseURL: cfg.SolverURL}
	} else {
		logger.Info().Msg("no solver configured, variance optimization disabled")
	}

	var resolver territory.Resolver
	if cfg.TerritoryAIURL != "" {
		resolver = &territory.HTTPResolver{BaseURL: cfg.TerritoryAIURL}
	}

	router := httpapi.Router(cfg, store, reviewer, optimizer, resolver, mappings, logger)

	var runner *cronrunner.Runner
	if cfg.ProcessCron != "" {
		runner = cronrunner.New(logger, ctx)
		processor := service.ProcessingService{
			Store:             store,
			Arbiter:           reviewer,
			Solver:            optimizer,
			Cfg:               cfg,
			TerritoryMappings: mappings,
			Logger:            logger,
		}
		if _, err := runner.AddProcessJob(cfg.ProcessCron, store, processor); err != nil {
			logger.Fatal().Err(err).Str("spec", cfg.ProcessCron).Msg("invalid cron spec")
		}
		runner.Start()
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		logger.Info().Str("port", cfg.Port).Msg("server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	if runner != nil {
		runner.Stop()
	}
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctxShutdown)
	logger.Info().Msg("server stopped")
}
