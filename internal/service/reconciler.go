package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/repository"
)

type reportRetrier interface {
	RetryReport(ctx context.Context, executionID string) (*FinishResult, error)
}

// ReportReconciler periodically stores reports that could not be stored when
// their execution finished.
type ReportReconciler struct {
	queue     repository.ReportQueue
	retrier   reportRetrier
	log       *slog.Logger
	interval  time.Duration
	isRunning atomic.Bool
	processed atomic.Int64
	failed    atomic.Int64
}

func NewReportReconciler(queue repository.ReportQueue, retrier reportRetrier, interval time.Duration, log *slog.Logger) *ReportReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &ReportReconciler{
		queue:    queue,
		retrier:  retrier,
		log:      log.With(slog.String("component", "report_reconciler")),
		interval: interval,
	}
}

func (r *ReportReconciler) Start(ctx context.Context) error {
	r.isRunning.Store(true)
	defer r.isRunning.Store(false)

	r.log.Info("reconciler started", slog.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := r.RunOnce(ctx); err != nil {
				r.log.Error("failed to reconcile reports", sl.Err(err))
			}
		case <-ctx.Done():
			r.log.Info("reconciler stopped")
			return nil
		}
	}
}

// RunOnce handles one batch of pending reports.
func (r *ReportReconciler) RunOnce(ctx context.Context) error {
	ids, err := r.queue.FetchPending(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch pending reports")
	}
	if len(ids) == 0 {
		return nil
	}

	var stored, skipped int
	for _, id := range ids {
		if _, err := r.retrier.RetryReport(ctx, id); err != nil {
			r.log.Warn("report still pending", slog.String("execution_id", id), sl.Err(err))
			r.queue.Nack(id)
			r.failed.Add(1)
			skipped++
			continue
		}

		if err := r.queue.Ack(ctx, id); err != nil {
			r.log.Error("failed to ack report", slog.String("execution_id", id), sl.Err(err))
		}
		r.processed.Add(1)
		stored++
	}

	r.log.Info("reconcile summary",
		slog.Int("total", len(ids)),
		slog.Int("stored", stored),
		slog.Int("skipped", skipped),
	)
	return nil
}

func (r *ReportReconciler) HealthCheck(context.Context) error {
	if !r.isRunning.Load() {
		return errors.New("reconciler is not running")
	}
	return nil
}

func (r *ReportReconciler) Status() map[string]interface{} {
	return map[string]interface{}{
		"is_running": r.isRunning.Load(),
		"interval":   r.interval.String(),
		"stored":     r.processed.Load(),
		"failed":     r.failed.Load(),
	}
}
