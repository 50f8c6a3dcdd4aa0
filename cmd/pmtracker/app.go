package main

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"ozzus/pm-tracker/internal/config"
	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/photo"
	"ozzus/pm-tracker/internal/report"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/repository/kafka"
	"ozzus/pm-tracker/internal/service"
	"ozzus/pm-tracker/internal/storage"
	"ozzus/pm-tracker/internal/storage/azure"
	"ozzus/pm-tracker/internal/storage/local"
)

// app holds the wiring shared by every command.
type app struct {
	cfg *config.Config
	log *slog.Logger
	db  *sql.DB

	store     storage.BlobStore
	filesRoot string

	pms        repository.PMRepository
	templates  repository.TemplateRepository
	executions repository.ExecutionRepository
	events     repository.EventPublisher

	producers []*kafka.Producer

	executionSvc *service.ExecutionService
}

// loadApp reads configuration and sets up the logger only.
func loadApp(cmd *cobra.Command) (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	debug, _ := cmd.Flags().GetBool("debug")
	return cfg, setupLogger(cfg.Env, debug), nil
}

func newApp(ctx context.Context, cfg *config.Config, log *slog.Logger) (*app, error) {
	db, err := repository.OpenWithMigrations(cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		log:        log,
		db:         db,
		pms:        repository.NewSQLitePMRepository(db),
		templates:  repository.NewSQLiteTemplateRepository(db),
		executions: repository.NewSQLiteExecutionRepository(db),
	}

	if err := a.openStore(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.events = repository.NewLogEventPublisher(log)
	if cfg.Kafka.Enabled {
		topics := repository.EventTopics{
			Executions:    a.producer(cfg.Kafka.Topics.Executions),
			Status:        a.producer(cfg.Kafka.Topics.Status),
			ReportPending: a.producer(cfg.Kafka.Topics.ReportPending),
		}
		a.events = repository.NewKafkaEventPublisher(topics, log)
	}

	compiler, err := a.compiler()
	if err != nil {
		a.Close()
		return nil, err
	}

	a.executionSvc = service.NewExecutionService(service.ExecutionDeps{
		Executions:     a.executions,
		Templates:      a.templates,
		PMs:            a.pms,
		Compiler:       compiler,
		Store:          a.store,
		Events:         a.events,
		StorageTimeout: cfg.GetStorageTimeout(),
	}, log)

	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	switch a.cfg.Storage.Driver {
	case "azure":
		s, err := azure.New(ctx, azure.Config{
			ConnectionString: a.cfg.Storage.Azure.ConnectionString,
			AccountURL:       a.cfg.Storage.Azure.AccountURL,
			Container:        a.cfg.Storage.Azure.Container,
			CreateContainer:  a.cfg.Storage.Azure.CreateContainer,
		})
		if err != nil {
			return errors.Wrap(err, "open azure storage")
		}
		a.store = s
	default:
		base := strings.TrimSuffix(a.cfg.Server.PublicBaseURL, "/") + "/files"
		s, err := local.New(a.cfg.Storage.Local.Root, base)
		if err != nil {
			return errors.Wrap(err, "open local storage")
		}
		a.store = s
		a.filesRoot = s.Root()
	}
	a.log.Info("blob storage ready", slog.String("driver", a.cfg.Storage.Driver))
	return nil
}

func (a *app) producer(topic string) *kafka.Producer {
	p := kafka.NewProducer(a.cfg.Kafka.Brokers, topic)
	a.producers = append(a.producers, p)
	return p
}

func (a *app) compiler() (*report.Compiler, error) {
	loc, err := a.cfg.GetLocation()
	if err != nil {
		return nil, err
	}
	fetcher, err := photo.NewFetcher(a.cfg.Server.PublicBaseURL, a.store, a.cfg.GetFetchTimeout())
	if err != nil {
		return nil, err
	}
	return report.NewCompiler(a.log, fetcher, report.Options{
		Concurrency:  a.cfg.Report.Concurrency,
		FetchTimeout: a.cfg.GetFetchTimeout(),
		Location:     loc,
	}), nil
}

func (a *app) Close() {
	for _, p := range a.producers {
		if err := p.Close(); err != nil {
			a.log.Warn("failed to close producer", slog.String("topic", p.Topic()), sl.Err(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Warn("failed to close database", sl.Err(err))
		}
	}
}
