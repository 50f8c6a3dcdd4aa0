package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/report"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/storage"
	"ozzus/pm-tracker/internal/wizard"
)

type ReportCompiler interface {
	Compile(ctx context.Context, in report.Input) (*report.Report, error)
}

// FinishRequest carries a whole run in one piece, for clients that keep the
// wizard state themselves.
type FinishRequest struct {
	TemplateID string              `json:"template_id"`
	Team       domain.Team         `json:"team"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Results    []domain.TaskResult `json:"results"`
}

type FinishResult struct {
	ExecutionID   string       `json:"execution_id"`
	ReportURL     string       `json:"report_url,omitempty"`
	FileName      string       `json:"file_name,omitempty"`
	Pages         int          `json:"pages,omitempty"`
	MissingPhotos int          `json:"missing_photos,omitempty"`
	ReportPending bool         `json:"report_pending"`
	Tally         domain.Tally `json:"tally"`
	DurationMin   int64        `json:"duration_minutes"`
}

type ExecutionService struct {
	executions     repository.ExecutionRepository
	templates      repository.TemplateRepository
	pms            repository.PMRepository
	compiler       ReportCompiler
	store          storage.BlobStore
	events         repository.EventPublisher
	log            *slog.Logger
	storageTimeout time.Duration
	now            func() time.Time
}

type ExecutionDeps struct {
	Executions     repository.ExecutionRepository
	Templates      repository.TemplateRepository
	PMs            repository.PMRepository
	Compiler       ReportCompiler
	Store          storage.BlobStore
	Events         repository.EventPublisher
	StorageTimeout time.Duration
}

func NewExecutionService(deps ExecutionDeps, log *slog.Logger) *ExecutionService {
	if deps.StorageTimeout <= 0 {
		deps.StorageTimeout = 30 * time.Second
	}
	return &ExecutionService{
		executions:     deps.Executions,
		templates:      deps.Templates,
		pms:            deps.PMs,
		compiler:       deps.Compiler,
		store:          deps.Store,
		events:         deps.Events,
		log:            log,
		storageTimeout: deps.StorageTimeout,
		now:            time.Now,
	}
}

// Complete validates a stateless submission through the wizard rules and
// then persists it like a session finish.
func (s *ExecutionService) Complete(ctx context.Context, req FinishRequest) (*FinishResult, error) {
	tpl, err := s.templates.Get(ctx, req.TemplateID)
	if err != nil {
		return nil, err
	}

	session, err := wizard.Restore(*tpl, req.Results)
	if err != nil {
		return nil, err
	}

	exec, err := session.Finalize(req.Team, req.StartedAt, req.FinishedAt)
	if err != nil {
		return nil, err
	}

	return s.Persist(ctx, tpl, exec)
}

// Persist stores a finalized execution, then compiles and stores its report.
// The execution is kept when the report step fails: it is marked as having
// a pending report and the returned error (CompileError when rendering
// failed, StorageError when the upload did) comes with a result that carries
// the execution ID.
func (s *ExecutionService) Persist(ctx context.Context, tpl *domain.Template, exec *domain.Execution) (*FinishResult, error) {
	const op = "service.ExecutionService.Persist"
	log := s.log.With(slog.String("op", op), slog.String("template_id", tpl.ID))

	id, err := s.executions.Create(ctx, exec)
	if err != nil {
		return nil, errors.Wrap(err, "persist execution")
	}
	log = log.With(slog.String("execution_id", id))
	log.Info("execution stored",
		slog.Int("tasks", len(exec.Results)),
		slog.Int64("duration_minutes", exec.DurationMinutes()),
	)

	result := &FinishResult{
		ExecutionID: id,
		Tally:       exec.Tally(),
		DurationMin: exec.DurationMinutes(),
	}

	s.publish(ctx, domain.Event{
		Type:        domain.EventExecutionCompleted,
		PMID:        exec.PMID,
		ExecutionID: id,
		Status:      domain.PMCompleted,
	})

	rep, url, err := s.produceReport(ctx, tpl, exec)
	if err != nil {
		log.Error("report not stored", sl.Err(err))
		s.markPending(ctx, exec, err)
		result.ReportPending = true
		return result, err
	}

	fillReport(result, rep, url)
	return result, nil
}

// RetryReport recompiles and stores the report of an existing execution.
func (s *ExecutionService) RetryReport(ctx context.Context, executionID string) (*FinishResult, error) {
	exec, err := s.executions.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, exec.TemplateID)
	if err != nil {
		return nil, err
	}

	result := &FinishResult{
		ExecutionID: exec.ID,
		Tally:       exec.Tally(),
		DurationMin: exec.DurationMinutes(),
	}

	rep, url, err := s.produceReport(ctx, tpl, exec)
	if err != nil {
		s.markPending(ctx, exec, err)
		result.ReportPending = true
		return result, err
	}

	fillReport(result, rep, url)
	s.log.Info("report stored on retry", slog.String("execution_id", exec.ID), slog.String("url", url))
	return result, nil
}

// Render compiles the report of a stored execution without storing it.
func (s *ExecutionService) Render(ctx context.Context, executionID string) (*report.Report, error) {
	exec, err := s.executions.Get(ctx, executionID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.templates.Get(ctx, exec.TemplateID)
	if err != nil {
		return nil, err
	}
	return s.compiler.Compile(ctx, report.Input{Execution: *exec, Template: *tpl, SourceName: s.sourceName(ctx, exec)})
}

func (s *ExecutionService) Get(ctx context.Context, id string) (*domain.Execution, error) {
	return s.executions.Get(ctx, id)
}

// produceReport marks its error with the stage that failed: ErrCompile for
// rendering, ErrStorage for the upload or the report URL update.
func (s *ExecutionService) produceReport(ctx context.Context, tpl *domain.Template, exec *domain.Execution) (*report.Report, string, error) {
	rep, err := s.compiler.Compile(ctx, report.Input{
		Execution:  *exec,
		Template:   *tpl,
		SourceName: s.sourceName(ctx, exec),
	})
	if err != nil {
		return nil, "", domain.NewCompileError(err, "compile report for execution "+exec.ID)
	}

	putCtx, cancel := context.WithTimeout(ctx, s.storageTimeout)
	defer cancel()

	url, err := s.store.Put(putCtx, storage.ReportName(exec.ID, rep.FileName), "application/pdf", rep.Data)
	if err != nil {
		return nil, "", domain.NewStorageError(err, "upload report for execution "+exec.ID)
	}

	if err := s.executions.AttachReport(ctx, exec.ID, url); err != nil {
		return nil, "", domain.NewStorageError(err, "attach report to execution "+exec.ID)
	}
	exec.ReportURL = url
	exec.ReportStatus = domain.ReportStored
	return rep, url, nil
}

func (s *ExecutionService) sourceName(ctx context.Context, exec *domain.Execution) string {
	if exec.PMID == "" || s.pms == nil {
		return ""
	}
	pm, err := s.pms.Get(ctx, exec.PMID)
	if err != nil {
		s.log.Warn("pm lookup for report name failed", slog.String("pm_id", exec.PMID), sl.Err(err))
		return ""
	}
	return pm.FileName
}

func (s *ExecutionService) markPending(ctx context.Context, exec *domain.Execution, cause error) {
	if err := s.executions.MarkReportPending(ctx, exec.ID); err != nil {
		s.log.Error("failed to mark report pending", slog.String("execution_id", exec.ID), sl.Err(err))
	}
	exec.ReportStatus = domain.ReportPending
	s.publish(ctx, domain.Event{
		Type:        domain.EventReportPending,
		PMID:        exec.PMID,
		ExecutionID: exec.ID,
		Message:     cause.Error(),
	})
}

func (s *ExecutionService) publish(ctx context.Context, event domain.Event) {
	if s.events == nil {
		return
	}
	event.Timestamp = s.now().UTC()
	if err := s.events.Publish(ctx, event); err != nil {
		s.log.Warn("failed to publish event", slog.String("type", string(event.Type)), sl.Err(err))
	}
}

func fillReport(result *FinishResult, rep *report.Report, url string) {
	result.ReportURL = url
	result.FileName = rep.FileName
	result.Pages = rep.Pages
	result.MissingPhotos = rep.MissingPhotos
	result.ReportPending = false
}
