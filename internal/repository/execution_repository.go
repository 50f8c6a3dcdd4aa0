package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"ozzus/pm-tracker/internal/domain"
)

type ExecutionRepository interface {
	// Create persists a finalized execution and its results in one
	// transaction and marks the linked PM completed. It returns the new ID.
	Create(ctx context.Context, exec *domain.Execution) (string, error)
	Get(ctx context.Context, id string) (*domain.Execution, error)
	AttachReport(ctx context.Context, id, reportURL string) error
	MarkReportPending(ctx context.Context, id string) error
	ListReportPending(ctx context.Context, limit int) ([]string, error)
}

type SQLiteExecutionRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteExecutionRepository(db *sql.DB) ExecutionRepository {
	return &SQLiteExecutionRepository{db: db, now: time.Now}
}

func (r *SQLiteExecutionRepository) Create(ctx context.Context, exec *domain.Execution) (string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return "", errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	var pmID string
	err = tx.QueryRowContext(ctx, `SELECT COALESCE(pm_id, '') FROM pm_templates WHERE id = ?`, exec.TemplateID).Scan(&pmID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.NewNotFoundError("template %s not found", exec.TemplateID)
		}
		return "", errors.Wrap(err, "lookup template")
	}
	if exec.PMID == "" {
		exec.PMID = pmID
	}

	id := uuid.NewString()
	createdAt := r.now().UTC().Truncate(time.Millisecond)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pm_executions (id, template_id, pm_id, technician1, technician2, reviewer,
			started_at, finished_at, duration_ms, report_url, report_status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, '', '', ?)`,
		id, exec.TemplateID, nullString(exec.PMID),
		exec.Team.Technician1, exec.Team.Technician2, exec.Team.Reviewer,
		toMillis(exec.StartedAt), toMillis(exec.FinishedAt), exec.DurationMs, toMillis(createdAt),
	)
	if err != nil {
		return "", errors.Wrap(err, "insert execution")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pm_task_results (execution_id, task_id, position, status, comment, flagged, measurement, photos)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", errors.Wrap(err, "prepare result insert")
	}
	defer stmt.Close()

	for i, res := range exec.Results {
		photos := res.Photos
		if photos == nil {
			photos = []string{}
		}
		encoded, err := json.Marshal(photos)
		if err != nil {
			return "", errors.Wrap(err, "encode photos")
		}
		_, err = stmt.ExecContext(ctx, id, res.TaskID, i, string(res.Status), res.Comment, res.Flagged, res.Measurement, string(encoded))
		if err != nil {
			return "", errors.Wrapf(err, "insert result for task %s", res.TaskID)
		}
	}

	if exec.PMID != "" {
		res, err := tx.ExecContext(ctx, `UPDATE pm_files SET status = ? WHERE id = ?`, string(domain.PMCompleted), exec.PMID)
		if err != nil {
			return "", errors.Wrapf(err, "complete pm %s", exec.PMID)
		}
		if err := requireAffected(res, domain.NewNotFoundError("pm %s not found", exec.PMID)); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", errors.Wrap(err, "commit")
	}

	exec.ID = id
	exec.CreatedAt = createdAt
	return id, nil
}

func (r *SQLiteExecutionRepository) Get(ctx context.Context, id string) (*domain.Execution, error) {
	var (
		exec                           domain.Execution
		pmID                           sql.NullString
		reportStatus                   string
		startedAt, finishedAt, created int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, template_id, pm_id, technician1, technician2, reviewer,
			started_at, finished_at, duration_ms, report_url, report_status, created_at
		FROM pm_executions WHERE id = ?`, id).Scan(
		&exec.ID, &exec.TemplateID, &pmID, &exec.Team.Technician1, &exec.Team.Technician2, &exec.Team.Reviewer,
		&startedAt, &finishedAt, &exec.DurationMs, &exec.ReportURL, &reportStatus, &created,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("execution %s not found", id)
		}
		return nil, errors.Wrapf(err, "get execution %s", id)
	}
	exec.PMID = pmID.String
	exec.ReportStatus = domain.ReportStatus(reportStatus)
	exec.StartedAt = fromMillis(startedAt)
	exec.FinishedAt = fromMillis(finishedAt)
	exec.CreatedAt = fromMillis(created)

	rows, err := r.db.QueryContext(ctx, `
		SELECT task_id, status, comment, flagged, measurement, photos
		FROM pm_task_results
		WHERE execution_id = ?
		ORDER BY position`, id)
	if err != nil {
		return nil, errors.Wrap(err, "list results")
	}
	defer rows.Close()

	exec.Results = []domain.TaskResult{}
	for rows.Next() {
		var (
			res    domain.TaskResult
			status string
			photos string
		)
		if err := rows.Scan(&res.TaskID, &status, &res.Comment, &res.Flagged, &res.Measurement, &photos); err != nil {
			return nil, errors.Wrap(err, "scan result")
		}
		res.Status = domain.TaskStatus(status)
		if err := json.Unmarshal([]byte(photos), &res.Photos); err != nil {
			return nil, errors.Wrapf(err, "decode photos for task %s", res.TaskID)
		}
		if res.Photos == nil {
			res.Photos = []string{}
		}
		exec.Results = append(exec.Results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate results")
	}
	return &exec, nil
}

func (r *SQLiteExecutionRepository) AttachReport(ctx context.Context, id, reportURL string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE pm_executions SET report_url = ?, report_status = ? WHERE id = ?`,
		reportURL, string(domain.ReportStored), id)
	if err != nil {
		return errors.Wrapf(err, "attach report to %s", id)
	}
	return requireAffected(res, domain.NewNotFoundError("execution %s not found", id))
}

// MarkReportPending flags an execution whose report still has to be stored.
// Executions that already have a stored report are left alone.
func (r *SQLiteExecutionRepository) MarkReportPending(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE pm_executions SET report_status = ? WHERE id = ? AND report_status <> ?`,
		string(domain.ReportPending), id, string(domain.ReportStored))
	if err != nil {
		return errors.Wrapf(err, "mark report pending for %s", id)
	}
	return nil
}

func (r *SQLiteExecutionRepository) ListReportPending(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM pm_executions WHERE report_status = ? ORDER BY created_at LIMIT ?`,
		string(domain.ReportPending), limit)
	if err != nil {
		return nil, errors.Wrap(err, "list pending reports")
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Wrap(err, "scan id")
		}
		ids = append(ids, id)
	}
	return ids, errors.Wrap(rows.Err(), "iterate pending reports")
}
