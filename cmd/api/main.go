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

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/handlers"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/auth"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/config"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/database"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/dbx"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/health"
	infraBQ "github.com/ManuSanchez02/telegram-expenses-bot/internal/infra/bigquery"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs/inmemory"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/metrics"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/notionsync"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/pipeline"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/apikeys"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/repomanager"
	"github.com/rs/zerolog"
)

const (
	jobBufferSize   = 100
	shutdownTimeout = 30 * time.Second
)

func main() {
	config.LoadDotEnv()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	log, err := newLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("Server stopped with error")
	}
	log.Info().Msg("Server exited")
}

func newLogger(cfg config.Config) (zerolog.Logger, error) {
	return logger.New(cfg.LoggerOptions())
}

func run(ctx context.Context, cfg config.Config, log zerolog.Logger) error {
	// Database
	scope := database.New(database.WithLogger(log))
	if err := scope.Initialize(ctx, cfg.DatabaseURL()); err != nil {
		return err
	}
	defer scope.Shutdown()

	repos := repomanager.NewPostgresRepositoryManager()

	db, err := scope.DB()
	if err != nil {
		return err
	}
	if err := repos.RunMigrations(ctx, db); err != nil {
		return err
	}

	if cfg.Bootstrap.CreateAPIKey {
		err := scope.Run(ctx, func(ctx context.Context) error {
			h, err := scope.Handle(ctx)
			if err != nil {
				return err
			}
			_, err = auth.EnsureBootstrapKey(ctx, repos.APIKeys(h), log)
			return err
		})
		if err != nil {
			return fmt.Errorf("bootstrap API key: %w", err)
		}
	}

	// Extraction
	gemini, err := pipeline.NewGeminiEngine(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	if err != nil {
		return err
	}
	engine := pipeline.NewRateLimitedEngine(gemini, cfg.Extraction.RatePerSecond, cfg.Extraction.Burst)
	extractor := pipeline.NewExpensePipeline(engine)

	// Observability
	m := metrics.New()

	monitor, err := health.NewMonitor(scope, m.DBUp, cfg.Health.ProbeInterval, log)
	if err != nil {
		return err
	}
	if err := monitor.Start(ctx); err != nil {
		return err
	}
	defer monitor.Stop()

	// Side effects
	dispatcher := jobs.NewDispatcher()
	var sideEffects []jobs.JobType

	if cfg.NotionEnabled() {
		syncer := notionsync.NewSyncer(notionsync.NewNotionDatabase(cfg.Notion.Token, cfg.Notion.DatabaseID), log)
		dispatcher.Register(jobs.JobTypeSyncExpense, syncer.HandleJob)
		sideEffects = append(sideEffects, jobs.JobTypeSyncExpense)
	} else {
		log.Warn().Msg("No Notion database configured - expense mirroring disabled")
	}

	if cfg.BigQueryEnabled() {
		outputs, err := infraBQ.NewModelOutputRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.CredentialsFile, log)
		if err != nil {
			return err
		}
		defer outputs.Close()
		dispatcher.Register(jobs.JobTypeRecordModelOutput, outputs.HandleJob)
		sideEffects = append(sideEffects, jobs.JobTypeRecordModelOutput)
	} else {
		log.Warn().Msg("No BigQuery project configured - model output audit disabled")
	}

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(jobBufferSize, jobStore,
		inmemory.WithWorkers(cfg.Jobs.Workers),
		inmemory.WithLogger(log),
		inmemory.WithObserver(func(job *jobs.Job) {
			m.JobsProcessed.WithLabelValues(string(job.Type), string(job.Status)).Inc()
		}),
	)

	workerCtx, cancelWorkers := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelWorkers()
	if err := jobQueue.Start(workerCtx, dispatcher.Handle); err != nil {
		return err
	}

	// HTTP
	gate := auth.NewGate(func(db dbx.DBTX) apikeys.Repository { return repos.APIKeys(db) }, log)

	srv := &server{
		health: handlers.NewHealthHandler(scope),
		parse: handlers.NewParseHandler(repos, extractor, m,
			handlers.WithSideEffects(jobQueue, sideEffects...),
			handlers.WithModelName(gemini.Model()),
		),
		expenses: handlers.NewExpensesHandler(repos),
		jobs:     handlers.NewJobsHandler(jobStore, log),
		auth:     middleware.Auth(middleware.ScopeUnitOfWork(scope), gate, m),
		metrics:  m,
		log:      log,
	}

	httpServer := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      srv.routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("Starting API server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	// Let in-flight jobs finish before the store goes away.
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}
	cancelWorkers()

	return nil
}
