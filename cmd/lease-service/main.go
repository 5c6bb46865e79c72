package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/nurpe/rental-contracts/internal/auth"
	"github.com/nurpe/rental-contracts/internal/clock"
	"github.com/nurpe/rental-contracts/internal/config"
	"github.com/nurpe/rental-contracts/internal/db"
	"github.com/nurpe/rental-contracts/internal/events"
	"github.com/nurpe/rental-contracts/internal/excel"
	httphandler "github.com/nurpe/rental-contracts/internal/http"
	"github.com/nurpe/rental-contracts/internal/http/middleware"
	"github.com/nurpe/rental-contracts/internal/logger"
	"github.com/nurpe/rental-contracts/internal/pdf"
	"github.com/nurpe/rental-contracts/internal/repository"
	"github.com/nurpe/rental-contracts/internal/service"
	"github.com/nurpe/rental-contracts/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Environment, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	repo, err := newRepository(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init repository")
	}
	files, err := newFileStorage(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init file storage")
	}

	clk := clock.Real()
	publisher := events.NewLogPublisher(log)

	matchService := service.NewMatchService(repo, publisher, clk, cfg, log)
	contractService := service.NewContractService(repo, publisher, clk, cfg, log)
	checklistService := service.NewChecklistService(repo, files, nil, publisher, clk, cfg, log)
	signingService := service.NewSigningService(repo, publisher, clk, log)
	reportService := service.NewReportService(repo, excel.NewGenerator(), pdf.NewGenerator(), clk, log)

	sweeper := service.NewSweeper(matchService, contractService, cfg.Workflow.SweepInterval, log)
	go sweeper.Run(ctx)

	tokenParser := auth.NewParser(cfg.Auth.AccessSecret)
	handler := httphandler.NewHandler(httphandler.Services{
		Matches:    matchService,
		Contracts:  contractService,
		Checklists: checklistService,
		Signings:   signingService,
		Reports:    reportService,
	}, log)
	authMiddleware := middleware.Auth(tokenParser)
	router := httphandler.NewRouter(handler, authMiddleware, cfg.Environment, cfg.HTTP.AllowedOrigins, log)

	addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
	server := &http.Server{Addr: addr, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("graceful shutdown failed")
		}
	}()

	log.Info().Str("addr", addr).Str("storage", cfg.StorageDriver).Str("files", cfg.Files.Driver).Msg("starting lease service")
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error().Err(err).Msg("server stopped")
		os.Exit(1)
	}
	log.Info().Msg("server stopped")
}

func newRepository(cfg *config.Config, log zerolog.Logger) (repository.Repository, error) {
	if cfg.StorageDriver == config.DriverMemory {
		log.Warn().Msg("using in-memory repository, data is lost on restart")
		return repository.NewMemoryRepository(), nil
	}
	database, err := db.New(cfg, log)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	return repository.NewPostgresRepository(database), nil
}

func newFileStorage(ctx context.Context, cfg *config.Config) (service.FileStorage, error) {
	if cfg.Files.Driver == config.DriverMemory {
		return storage.NewMemoryStore(), nil
	}
	store, err := storage.NewMinioStore(cfg.Files.Minio)
	if err != nil {
		return nil, err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("ensure bucket: %w", err)
	}
	return store, nil
}
