package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"ozzus/pm-tracker/internal/domain"
)

type PMRepository interface {
	Create(ctx context.Context, req domain.RegisterPMRequest) (*domain.PM, error)
	Get(ctx context.Context, id string) (*domain.PM, error)
	List(ctx context.Context, filter domain.PMFilter) ([]domain.PMOverview, error)
	Deactivate(ctx context.Context, id string) error
	// Transition validates and applies a status change atomically.
	Transition(ctx context.Context, id string, to domain.PMStatus) (*domain.PM, error)
}

type SQLitePMRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLitePMRepository(db *sql.DB) PMRepository {
	return &SQLitePMRepository{db: db, now: time.Now}
}

const pmColumns = `p.id, p.file_name, p.blob_url, p.uploaded_by, p.gl_owner, p.pm_type, p.status, p.active, p.uploaded_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPM(row rowScanner, extra ...any) (*domain.PM, error) {
	var (
		pm         domain.PM
		status     string
		uploadedAt int64
	)
	dest := append([]any{
		&pm.ID, &pm.FileName, &pm.BlobURL, &pm.UploadedBy, &pm.GLOwner, &pm.PMType, &status, &pm.Active, &uploadedAt,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	pm.Status = domain.PMStatus(status)
	pm.UploadedAt = fromMillis(uploadedAt)
	return &pm, nil
}

func (r *SQLitePMRepository) Create(ctx context.Context, req domain.RegisterPMRequest) (*domain.PM, error) {
	pm := &domain.PM{
		ID:         uuid.NewString(),
		FileName:   req.FileName,
		BlobURL:    req.BlobURL,
		UploadedBy: req.UploadedBy,
		GLOwner:    req.GLOwner,
		PMType:     req.PMType,
		Status:     domain.PMOpen,
		Active:     true,
		UploadedAt: r.now().UTC().Truncate(time.Millisecond),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO pm_files (id, file_name, blob_url, uploaded_by, gl_owner, pm_type, status, active, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pm.ID, pm.FileName, pm.BlobURL, pm.UploadedBy, pm.GLOwner, pm.PMType, string(pm.Status), pm.Active, toMillis(pm.UploadedAt),
	)
	if err != nil {
		return nil, errors.Wrap(err, "insert pm")
	}
	return pm, nil
}

func (r *SQLitePMRepository) Get(ctx context.Context, id string) (*domain.PM, error) {
	return getPM(ctx, r.db, id)
}

func getPM(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id string) (*domain.PM, error) {
	row := q.QueryRowContext(ctx, `SELECT `+pmColumns+` FROM pm_files p WHERE p.id = ?`, id)
	pm, err := scanPM(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("pm %s not found", id)
		}
		return nil, errors.Wrapf(err, "get pm %s", id)
	}
	return pm, nil
}

// List returns PMs newest first, each joined with its template and its most
// recent execution. The owner filter is an exact match ignoring case.
func (r *SQLitePMRepository) List(ctx context.Context, filter domain.PMFilter) ([]domain.PMOverview, error) {
	var (
		where []string
		args  []any
	)
	if !filter.IncludeInactive {
		where = append(where, "p.active = 1")
	}
	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(s))
		}
		where = append(where, "p.status IN ("+strings.Join(marks, ", ")+")")
	}

	query := `
		SELECT ` + pmColumns + `,
			COALESCE(t.id, ''), COALESCE(t.pm_number, ''), COALESCE(t.name, ''),
			COALESCE(t.asset_code, ''), COALESCE(t.location, ''),
			COALESCE(e.id, ''), e.finished_at, COALESCE(e.report_url, '')
		FROM pm_files p
		LEFT JOIN pm_templates t ON t.pm_id = p.id
		LEFT JOIN pm_executions e ON e.id = (
			SELECT x.id FROM pm_executions x
			WHERE x.pm_id = p.id
			ORDER BY x.finished_at DESC, x.created_at DESC
			LIMIT 1
		)`
	if len(where) > 0 {
		query += "\n\t\tWHERE " + strings.Join(where, " AND ")
	}
	query += "\n\t\tORDER BY p.uploaded_at DESC, p.id"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "list pms")
	}
	defer rows.Close()

	owner := strings.TrimSpace(filter.Owner)
	out := []domain.PMOverview{}
	for rows.Next() {
		var (
			ov         domain.PMOverview
			finishedAt sql.NullInt64
		)
		pm, err := scanPM(rows,
			&ov.TemplateID, &ov.PMNumber, &ov.PMName, &ov.AssetCode, &ov.Location,
			&ov.LastExecutionID, &finishedAt, &ov.ReportURL,
		)
		if err != nil {
			return nil, errors.Wrap(err, "scan pm")
		}
		if owner != "" && !strings.EqualFold(strings.TrimSpace(pm.GLOwner), owner) {
			continue
		}
		ov.PM = *pm
		if finishedAt.Valid {
			t := fromMillis(finishedAt.Int64)
			ov.LastExecutedAt = &t
		}
		out = append(out, ov)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate pms")
	}
	return out, nil
}

// Deactivate hides a PM from listings. Its rows are kept.
func (r *SQLitePMRepository) Deactivate(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE pm_files SET active = 0 WHERE id = ?`, id)
	if err != nil {
		return errors.Wrapf(err, "deactivate pm %s", id)
	}
	return requireAffected(res, domain.NewNotFoundError("pm %s not found", id))
}

func (r *SQLitePMRepository) Transition(ctx context.Context, id string, to domain.PMStatus) (*domain.PM, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	pm, err := getPM(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	if err := domain.TransitionPM(pm.Status, to); err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE pm_files SET status = ? WHERE id = ?`, string(to), id); err != nil {
		return nil, errors.Wrapf(err, "update pm %s status", id)
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	pm.Status = to
	return pm, nil
}
