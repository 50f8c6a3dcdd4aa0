package repository

import (
	"context"
	"log/slog"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/repository/kafka"
)

// EventPublisher announces state changes to other systems.
type EventPublisher interface {
	Publish(ctx context.Context, event domain.Event) error
}

// EventTopics routes each event type to a producer.
type EventTopics struct {
	Executions    *kafka.Producer
	Status        *kafka.Producer
	ReportPending *kafka.Producer
}

type KafkaEventPublisher struct {
	topics EventTopics
	log    *slog.Logger
}

func NewKafkaEventPublisher(topics EventTopics, log *slog.Logger) EventPublisher {
	return &KafkaEventPublisher{topics: topics, log: log}
}

func (p *KafkaEventPublisher) Publish(ctx context.Context, event domain.Event) error {
	var producer *kafka.Producer
	switch event.Type {
	case domain.EventExecutionCompleted:
		producer = p.topics.Executions
	case domain.EventPMStatusChanged:
		producer = p.topics.Status
	case domain.EventReportPending:
		producer = p.topics.ReportPending
	}
	if producer == nil {
		return errors.Newf("no topic configured for event %s", event.Type)
	}

	if err := producer.PublishEvent(ctx, event.Key(), event); err != nil {
		return errors.Wrapf(err, "publish %s", event.Type)
	}

	p.log.Debug("event published",
		slog.String("type", string(event.Type)),
		slog.String("key", event.Key()),
		slog.String("topic", producer.Topic()),
	)
	return nil
}

// LogEventPublisher only logs events. It is used when no broker is configured.
type LogEventPublisher struct {
	log *slog.Logger
}

func NewLogEventPublisher(log *slog.Logger) EventPublisher {
	return &LogEventPublisher{log: log}
}

func (p *LogEventPublisher) Publish(_ context.Context, event domain.Event) error {
	p.log.Info("event",
		slog.String("type", string(event.Type)),
		slog.String("pm_id", event.PMID),
		slog.String("execution_id", event.ExecutionID),
		slog.String("status", string(event.Status)),
	)
	return nil
}
