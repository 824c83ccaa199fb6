package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/askdb/askdb/internal/api"
	"github.com/askdb/askdb/internal/assistant"
	"github.com/askdb/askdb/internal/auth"
	"github.com/askdb/askdb/internal/config"
	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query/sqldb"
	"github.com/askdb/askdb/internal/schema"
	s3store "github.com/askdb/askdb/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("askdb-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	if err := cfg.RequireDatabase(); err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, target, err := sqldb.Open(ctx, sqldb.DBConfig{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()
	logger.Info("database connected", slog.String("driver", target.Driver), slog.String("dialect", target.Dialect))

	executor := sqldb.NewExecutor(db, cfg.Query.Timeout)

	var schemaSource schema.Source
	switch cfg.Schema.Mode {
	case config.SchemaModeFile:
		fileSource, err := schema.NewFileSource(cfg.Schema.File, logger)
		if err != nil {
			logger.Error("failed to load schema file", slog.Any("error", err))
			os.Exit(1)
		}
		if err := fileSource.Watch(ctx); err != nil {
			logger.Warn("schema file will not be reloaded", slog.Any("error", err))
		}
		schemaSource = fileSource
	case config.SchemaModeIntrospect:
		schemaSource = schema.NewIntrospector(db, target.Driver, cfg.Schema.Name, cfg.Schema.CacheTTL)
	default:
		schemaSource = schema.Commerce()
	}

	var translator nl2sql.Translator
	if cfg.AI.APIKey != "" {
		translator, err = nl2sql.NewProviderTranslator(nl2sql.ProviderConfig{
			Provider:    cfg.AI.Provider,
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		})
		if err != nil {
			logger.Error("failed to initialize query translator", slog.Any("error", err))
			os.Exit(1)
		}
	} else {
		logger.Warn("language model API key is not set; /ask will answer 503")
	}

	readiness := []api.ReadinessCheck{api.PingDatabase(db)}
	recorder := history.Multi{history.LogRecorder{Logger: logger}}
	var archiver *history.Archiver
	if cfg.Archive.Enabled {
		objectStore, err := s3store.New(ctx, cfg.ObjectStore)
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		archiver = history.NewArchiver(objectStore, history.ArchiveConfig{
			Service:       cfg.Service.Name,
			BatchSize:     cfg.Archive.BatchSize,
			FlushInterval: cfg.Archive.FlushInterval,
		}, logger)
		recorder = append(recorder, archiver)
		readiness = append(readiness, objectStore.Ping)
	}

	service := &assistant.Service{
		Translator:     translator,
		Executor:       executor,
		Schema:         schemaSource,
		Dialect:        target.Dialect,
		ExposeDBErrors: cfg.Query.ExposeDBErrors,
		Recorder:       recorder,
		Logger:         logger,
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: 2 * time.Second,
		Assistant:         service,
		Executor:          executor,
		AskLimiter:        api.NewRateLimiter(cfg.RateLimit.AskPerSecond, cfg.RateLimit.AskBurst),
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.APIKeys = validator
	}

	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      api.NewHandler(cfg, deps),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	// The archiver outlives the server so answers still in flight are flushed.
	archiveCtx, stopArchive := context.WithCancel(context.WithoutCancel(ctx))
	defer stopArchive()

	group, groupCtx := errgroup.WithContext(ctx)
	if archiver != nil {
		group.Go(func() error {
			if err := archiver.Run(archiveCtx, 10*time.Second); err != nil {
				logger.Error("final history flush failed", slog.Any("error", err), slog.Int("pending", archiver.Pending()))
			}
			return nil
		})
	}
	group.Go(func() error {
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		defer stopArchive()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		logger.Info("shutting down api server")
		if err := server.Shutdown(shutdownCtx); err != nil {
			_ = server.Close()
			return err
		}
		return nil
	})

	if err := group.Wait(); err != nil {
		logger.Error("api server failed", slog.Any("error", err))
		os.Exit(1)
	}
}
