package main

import (
	"context"
	"errors"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	apihttp "ozzus/pm-tracker/internal/api/http"
	"ozzus/pm-tracker/internal/config"
	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/repository/kafka"
	"ozzus/pm-tracker/internal/service"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the report reconciler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadApp(cmd)
			if err != nil {
				return err
			}
			return serve(cmd.Context(), cfg.Env, log, cfg)
		},
	}
}

func serve(parent context.Context, env string, log *slog.Logger, cfg *config.Config) error {
	log.Info("starting application", slog.String("env", env), slog.String("version", version))

	if env == envProd {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	reviewStatuses, _ := cfg.GetReviewStatuses()

	photoSvc := service.NewPhotoService(a.store, cfg.Upload.MaxBytes, cfg.GetUploadTimeout(), log)
	sessionSvc := service.NewSessionService(a.templates, a.executionSvc, cfg.GetSessionTTL(), log)
	adminSvc := service.NewAdminService(a.pms, a.templates, a.store, cfg.GetUploadTimeout(), log)
	catalogSvc := service.NewCatalogService(a.pms, a.templates)
	reviewSvc := service.NewReviewService(a.pms, a.events, reviewStatuses, log)

	health := service.NewHealthService("pm-tracker", version)
	health.Register("database", service.CheckerFunc(func(ctx context.Context) error {
		return repository.Ping(ctx, a.db)
	}))
	health.Register("storage", service.CheckerFunc(a.store.Ping))

	workers := map[string]apihttp.StatusReporter{}

	var wg sync.WaitGroup

	if cfg.Reconciler.Enabled {
		queue := repository.NewSQLReportQueue(a.executions, 50)
		if cfg.Reconciler.Source == "kafka" {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.ReportPending, cfg.Kafka.GroupID, log)
			defer consumer.Close()
			health.Register("kafka", service.CheckerFunc(consumer.CheckConnection))
			queue = repository.NewKafkaReportQueue(consumer)
		}

		reconciler := service.NewReportReconciler(queue, a.executionSvc, cfg.GetReconcileInterval(), log)
		health.Register("reconciler", reconciler)
		workers["reconciler"] = reconciler

		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info("starting report reconciler", slog.String("source", cfg.Reconciler.Source))
			if err := reconciler.Start(ctx); err != nil {
				log.Error("report reconciler failed", sl.Err(err))
			}
		}()
	}

	photos := apihttp.NewPhotoController(photoSvc)
	router := apihttp.NewRouter(log, apihttp.Controllers{
		Health:     apihttp.NewHealthController(health, workers),
		Options:    apihttp.NewOptionsController(apihttp.Options{GLNames: cfg.Options.GLNames, PMTypes: cfg.Options.PMTypes}),
		Admin:      apihttp.NewAdminController(adminSvc),
		Catalog:    apihttp.NewCatalogController(catalogSvc),
		Photos:     photos,
		Sessions:   apihttp.NewSessionController(sessionSvc, photos),
		Executions: apihttp.NewExecutionController(a.executionSvc),
		Review:     apihttp.NewReviewController(reviewSvc),
	}, apihttp.RouterConfig{
		CORSOrigins: cfg.Server.CORSOrigins,
		FilesRoot:   a.filesRoot,
	})

	httpServer := &nethttp.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("starting http server", slog.String("port", cfg.Server.Port))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			log.Error("HTTP server failed", sl.Err(err))
			cancel()
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	log.Info("application started and ready", slog.String("port", cfg.Server.Port))

	select {
	case <-quit:
	case <-ctx.Done():
	}
	log.Info("shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server shutdown failed", sl.Err(err))
	}

	wg.Wait()
	log.Info("stopped gracefully")
	return nil
}
