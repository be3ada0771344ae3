package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"postforge/internal/adapter/repo"
	"postforge/internal/artifact"
	"postforge/internal/domain"
	"postforge/internal/fetch"
	httpapi "postforge/internal/http"
	"postforge/internal/http/handlers"
	"postforge/internal/infra"
	"postforge/internal/pipeline"
	"postforge/internal/providers/genai"
	"postforge/internal/publish"
)

func main() {
	// .env is optional.
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Job repository: Postgres when DATABASE_URL is set, in-memory otherwise.
	var jobs domain.JobRepository
	if cfg.DatabaseURL != "" {
		pool, err := infra.NewDBPool(ctx, cfg)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to connect database")
		}
		defer pool.Close()
		pg, err := repo.NewJobRepository(ctx, pool)
		if err != nil {
			logger.Fatal().Err(err).Msg("failed to prepare job repository")
		}
		jobs = pg
	} else {
		logger.Warn().Msg("DATABASE_URL not set, using in-memory job repository")
		jobs = repo.NewJobRepositoryMem()
	}

	store, err := artifact.NewStore(cfg.ArtifactDir)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to prepare artifact store")
	}

	gemini, err := genai.NewClient(genai.Options{
		APIKey:  cfg.GeminiAPIKey,
		BaseURL: cfg.GeminiBaseURL,
		Model:   cfg.GeminiModel,
		Logger:  &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to build generation client")
	}

	fetcher := fetch.New(fetch.Options{})
	stages := pipeline.NewStages(gemini, gemini, logger)
	providers := domain.Providers{Text: cfg.GeminiModel, Image: cfg.GeminiModel}
	orch := pipeline.NewOrchestrator(jobs, store, fetcher, stages, providers, cfg.PublicBaseURL, logger)

	runner := pipeline.NewRunner(orch, cfg.PipelineWorkers, 64, logger)
	runner.Start(ctx)

	// Retention sweep for old job artifact directories.
	go func() {
		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				removed, err := store.Sweep(cfg.ArtifactMaxAge)
				if err != nil {
					logger.Error().Err(err).Msg("artifact sweep failed")
					continue
				}
				if removed > 0 {
					logger.Info().Int("removed", removed).Msg("artifact sweep removed expired job dirs")
				}
			}
		}
	}()

	app := handlers.NewApp(orch, runner, publish.NewLinkedInStub(logger), store, logger)
	router := httpapi.NewRouter(cfg, app, logger)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	cancel()
	runner.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}
