package repository

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	kafkago "github.com/segmentio/kafka-go"

	"ozzus/pm-tracker/internal/domain"
	repokafka "ozzus/pm-tracker/internal/repository/kafka"
)

// ReportQueue hands out executions whose report still needs to be stored.
type ReportQueue interface {
	FetchPending(ctx context.Context) ([]string, error)
	Ack(ctx context.Context, executionID string) error
	Nack(executionID string)
}

const maxBatch = 100

// KafkaReportQueue reads report.pending events. A message is committed only
// after its report was stored.
type KafkaReportQueue struct {
	consumer *repokafka.Consumer

	mu       sync.Mutex
	messages map[string]kafkago.Message
}

func NewKafkaReportQueue(consumer *repokafka.Consumer) ReportQueue {
	return &KafkaReportQueue{
		consumer: consumer,
		messages: make(map[string]kafkago.Message),
	}
}

func (q *KafkaReportQueue) FetchPending(ctx context.Context) ([]string, error) {
	var ids []string

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for len(ids) < maxBatch {
		if timeoutCtx.Err() != nil {
			break
		}

		var event domain.Event
		msg, err := q.consumer.ReadEvent(timeoutCtx, &event)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				break
			}
			if msg.Topic != "" {
				// undecodable payload: skip it for good
				_ = q.consumer.CommitMessage(ctx, msg)
				continue
			}
			return nil, errors.Wrap(err, "read event")
		}

		if event.Type != domain.EventReportPending || event.ExecutionID == "" {
			_ = q.consumer.CommitMessage(ctx, msg)
			continue
		}

		q.mu.Lock()
		if _, seen := q.messages[event.ExecutionID]; !seen {
			ids = append(ids, event.ExecutionID)
		}
		q.messages[event.ExecutionID] = msg
		q.mu.Unlock()
	}

	return ids, nil
}

func (q *KafkaReportQueue) Ack(ctx context.Context, executionID string) error {
	q.mu.Lock()
	msg, ok := q.messages[executionID]
	q.mu.Unlock()

	if !ok {
		return nil
	}

	const maxRetries = 3

	var lastErr error

	for attempt := 0; attempt < maxRetries; attempt++ {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return ctx.Err()
			}
			if remaining < timeout {
				timeout = remaining
			}
		}

		commitCtx, cancel := context.WithTimeout(context.Background(), timeout)
		err := q.consumer.CommitMessage(commitCtx, msg)
		cancel()
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			time.Sleep(time.Duration(attempt+1) * 200 * time.Millisecond)
			continue
		}

		q.mu.Lock()
		delete(q.messages, executionID)
		q.mu.Unlock()
		return nil
	}

	return errors.Wrap(lastErr, "commit message")
}

func (q *KafkaReportQueue) Nack(executionID string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.messages, executionID)
}

// SQLReportQueue scans the executions table for pending reports. Ack and Nack
// are no-ops: storing the report clears the pending status itself.
type SQLReportQueue struct {
	executions ExecutionRepository
	batch      int
}

func NewSQLReportQueue(executions ExecutionRepository, batch int) ReportQueue {
	if batch <= 0 {
		batch = maxBatch
	}
	return &SQLReportQueue{executions: executions, batch: batch}
}

func (q *SQLReportQueue) FetchPending(ctx context.Context) ([]string, error) {
	return q.executions.ListReportPending(ctx, q.batch)
}

func (q *SQLReportQueue) Ack(context.Context, string) error { return nil }

func (q *SQLReportQueue) Nack(string) {}
