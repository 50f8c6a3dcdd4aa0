package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"ozzus/pm-tracker/internal/domain"
)

type TemplateRepository interface {
	// Create stores tpl and its tasks, assigning IDs that are still empty.
	Create(ctx context.Context, tpl *domain.Template) error
	Get(ctx context.Context, id string) (*domain.Template, error)
	GetByPM(ctx context.Context, pmID string) (*domain.Template, error)
}

type SQLiteTemplateRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewSQLiteTemplateRepository(db *sql.DB) TemplateRepository {
	return &SQLiteTemplateRepository{db: db, now: time.Now}
}

func (r *SQLiteTemplateRepository) Create(ctx context.Context, tpl *domain.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	if tpl.CreatedAt.IsZero() {
		tpl.CreatedAt = r.now().UTC().Truncate(time.Millisecond)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pm_templates (id, pm_id, pm_number, name, asset_code, location, pdf_file_name, base_pdf_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tpl.ID, nullString(tpl.PMID), tpl.PMNumber, tpl.Name, tpl.AssetCode, tpl.Location,
		tpl.PDFFileName, tpl.BasePDFURL, toMillis(tpl.CreatedAt),
	)
	if err != nil {
		return errors.Wrap(err, "insert template")
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO pm_template_tasks (id, template_id, sequence, task_order, title, key_points, rationale, has_image)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "prepare task insert")
	}
	defer stmt.Close()

	for i := range tpl.Tasks {
		t := &tpl.Tasks[i]
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		if _, err := stmt.ExecContext(ctx, t.ID, tpl.ID, t.Sequence, t.Order, t.Title, t.KeyPoints, t.Rationale, t.HasImage); err != nil {
			return errors.Wrapf(err, "insert task %d", t.Order)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "commit")
	}
	return nil
}

const templateColumns = `id, COALESCE(pm_id, ''), pm_number, name, asset_code, location, pdf_file_name, base_pdf_url, created_at`

func (r *SQLiteTemplateRepository) Get(ctx context.Context, id string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM pm_templates WHERE id = ?`, id)
	return r.load(ctx, row, "template "+id)
}

func (r *SQLiteTemplateRepository) GetByPM(ctx context.Context, pmID string) (*domain.Template, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+templateColumns+` FROM pm_templates WHERE pm_id = ?`, pmID)
	return r.load(ctx, row, "template for pm "+pmID)
}

func (r *SQLiteTemplateRepository) load(ctx context.Context, row *sql.Row, what string) (*domain.Template, error) {
	var (
		tpl       domain.Template
		createdAt int64
	)
	err := row.Scan(&tpl.ID, &tpl.PMID, &tpl.PMNumber, &tpl.Name, &tpl.AssetCode, &tpl.Location,
		&tpl.PDFFileName, &tpl.BasePDFURL, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.NewNotFoundError("%s not found", what)
		}
		return nil, errors.Wrapf(err, "get %s", what)
	}
	tpl.CreatedAt = fromMillis(createdAt)

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sequence, task_order, title, key_points, rationale, has_image
		FROM pm_template_tasks
		WHERE template_id = ?
		ORDER BY task_order, sequence`, tpl.ID)
	if err != nil {
		return nil, errors.Wrap(err, "list tasks")
	}
	defer rows.Close()

	tpl.Tasks = []domain.ChecklistTask{}
	for rows.Next() {
		var t domain.ChecklistTask
		if err := rows.Scan(&t.ID, &t.Sequence, &t.Order, &t.Title, &t.KeyPoints, &t.Rationale, &t.HasImage); err != nil {
			return nil, errors.Wrap(err, "scan task")
		}
		tpl.Tasks = append(tpl.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterate tasks")
	}
	return &tpl, nil
}
