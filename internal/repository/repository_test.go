package repository

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/pm-tracker/internal/domain"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := OpenWithMigrations(filepath.Join(t.TempDir(), "pm.db"), discard)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedTemplate(t *testing.T, db *sql.DB, pmID string, n int) *domain.Template {
	t.Helper()
	tpl := &domain.Template{PMID: pmID, PMNumber: "PM-100", Name: "Press", AssetCode: "PR-7"}
	for i := 0; i < n; i++ {
		tpl.Tasks = append(tpl.Tasks, domain.ChecklistTask{Sequence: (i + 1) * 10, Order: i + 1, Title: "Task"})
	}
	require.NoError(t, NewSQLiteTemplateRepository(db).Create(context.Background(), tpl))
	return tpl
}

func TestMigrate(t *testing.T) {
	db := setupTestDB(t)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 4, count)

	// idempotent
	require.NoError(t, Migrate(db, discard))
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count))
	assert.Equal(t, 4, count)
}

func TestPMRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewSQLitePMRepository(db)

	a, err := repo.Create(ctx, domain.RegisterPMRequest{FileName: "a.pdf", BlobURL: "u/a", GLOwner: "José Pérez", PMType: "Mensual"})
	require.NoError(t, err)
	b, err := repo.Create(ctx, domain.RegisterPMRequest{FileName: "b.pdf", BlobURL: "u/b", GLOwner: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, domain.PMOpen, a.Status)
	assert.True(t, a.Active)

	t.Run("get", func(t *testing.T) {
		got, err := repo.Get(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, "José Pérez", got.GLOwner)

		_, err = repo.Get(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("owner filter ignores case only", func(t *testing.T) {
		list, err := repo.List(ctx, domain.PMFilter{Owner: "josé pérez"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, a.ID, list[0].ID)

		list, err = repo.List(ctx, domain.PMFilter{Owner: "José"})
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("transitions", func(t *testing.T) {
		_, err := repo.Transition(ctx, a.ID, domain.PMClosed)
		assert.True(t, errors.Is(err, domain.ErrInvalidTransition), "open cannot be closed")

		_, err = db.Exec(`UPDATE pm_files SET status = 'completed' WHERE id = ?`, a.ID)
		require.NoError(t, err)

		pm, err := repo.Transition(ctx, a.ID, domain.PMClosed)
		require.NoError(t, err)
		assert.Equal(t, domain.PMClosed, pm.Status)

		pm, err = repo.Transition(ctx, a.ID, domain.PMCompleted)
		require.NoError(t, err)
		assert.Equal(t, domain.PMCompleted, pm.Status)

		_, err = repo.Transition(ctx, "missing", domain.PMClosed)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("status filter", func(t *testing.T) {
		list, err := repo.List(ctx, domain.PMFilter{Statuses: []domain.PMStatus{domain.PMCompleted, domain.PMClosed}})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, a.ID, list[0].ID)
	})

	t.Run("soft delete", func(t *testing.T) {
		require.NoError(t, repo.Deactivate(ctx, b.ID))

		list, err := repo.List(ctx, domain.PMFilter{})
		require.NoError(t, err)
		assert.Len(t, list, 1)

		list, err = repo.List(ctx, domain.PMFilter{IncludeInactive: true})
		require.NoError(t, err)
		assert.Len(t, list, 2)

		err = repo.Deactivate(ctx, "missing")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestTemplateRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	pm, err := NewSQLitePMRepository(db).Create(ctx, domain.RegisterPMRequest{FileName: "a.pdf", BlobURL: "u"})
	require.NoError(t, err)

	tpl := seedTemplate(t, db, pm.ID, 3)
	require.NotEmpty(t, tpl.ID)
	for _, task := range tpl.Tasks {
		assert.NotEmpty(t, task.ID)
	}

	repo := NewSQLiteTemplateRepository(db)
	got, err := repo.Get(ctx, tpl.ID)
	require.NoError(t, err)
	require.Len(t, got.Tasks, 3)
	assert.Equal(t, []int{1, 2, 3}, []int{got.Tasks[0].Order, got.Tasks[1].Order, got.Tasks[2].Order})
	assert.Equal(t, pm.ID, got.PMID)

	byPM, err := repo.GetByPM(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, tpl.ID, byPM.ID)

	_, err = repo.Get(ctx, "nope")
	assert.True(t, errors.Is(err, domain.ErrNotFound))

	standalone := seedTemplate(t, db, "", 1)
	got, err = repo.Get(ctx, standalone.ID)
	require.NoError(t, err)
	assert.Empty(t, got.PMID)
}

func TestExecutionRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	pms := NewSQLitePMRepository(db)
	pm, err := pms.Create(ctx, domain.RegisterPMRequest{FileName: "a.pdf", BlobURL: "u", GLOwner: "GL"})
	require.NoError(t, err)
	tpl := seedTemplate(t, db, pm.ID, 2)

	start := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	exec := &domain.Execution{
		TemplateID: tpl.ID,
		Team:       domain.Team{Technician1: "Ana", Reviewer: "GL"},
		StartedAt:  start,
		FinishedAt: start.Add(30 * time.Minute),
		DurationMs: (30 * time.Minute).Milliseconds(),
		Results: []domain.TaskResult{
			{TaskID: tpl.Tasks[0].ID, Status: domain.StatusPassed, Photos: []string{"p1", "p2"}},
			{TaskID: tpl.Tasks[1].ID, Status: domain.StatusFailed, Comment: "leak", Flagged: true},
		},
	}

	repo := NewSQLiteExecutionRepository(db)
	id, err := repo.Create(ctx, exec)
	require.NoError(t, err)
	assert.Equal(t, id, exec.ID)
	assert.Equal(t, pm.ID, exec.PMID, "pm is taken from the template")

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, start, got.StartedAt)
	assert.Equal(t, exec.DurationMs, got.DurationMs)
	require.Len(t, got.Results, 2)
	assert.Equal(t, []string{"p1", "p2"}, got.Results[0].Photos)
	assert.Equal(t, []string{}, got.Results[1].Photos)
	assert.True(t, got.Results[1].Flagged)
	assert.Equal(t, domain.ReportNone, got.ReportStatus)

	updated, err := pms.Get(ctx, pm.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.PMCompleted, updated.Status)

	t.Run("overview shows last execution", func(t *testing.T) {
		list, err := pms.List(ctx, domain.PMFilter{Owner: "gl"})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, id, list[0].LastExecutionID)
		require.NotNil(t, list[0].LastExecutedAt)
		assert.Equal(t, exec.FinishedAt, *list[0].LastExecutedAt)
		assert.Equal(t, "PM-100", list[0].PMNumber)
	})

	t.Run("pending report lifecycle", func(t *testing.T) {
		require.NoError(t, repo.MarkReportPending(ctx, id))
		ids, err := repo.ListReportPending(ctx, 10)
		require.NoError(t, err)
		assert.Equal(t, []string{id}, ids)

		require.NoError(t, repo.AttachReport(ctx, id, "https://blob/r.pdf"))
		ids, err = repo.ListReportPending(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, ids)

		require.NoError(t, repo.MarkReportPending(ctx, id))
		got, err := repo.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.ReportStored, got.ReportStatus, "stored report is not reset")
		assert.Equal(t, "https://blob/r.pdf", got.ReportURL)

		err = repo.AttachReport(ctx, "missing", "x")
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.Execution{TemplateID: "nope"})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("closed pm is completed again on a new run", func(t *testing.T) {
		_, err := pms.Transition(ctx, pm.ID, domain.PMClosed)
		require.NoError(t, err)

		again := *exec
		again.ID = ""
		_, err = repo.Create(ctx, &again)
		require.NoError(t, err)

		p, err := pms.Get(ctx, pm.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.PMCompleted, p.Status)
	})
}

func TestExecutionCreateRollsBack(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT COALESCE\(pm_id, ''\) FROM pm_templates`).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows([]string{"pm_id"}).AddRow("pm-1"))
	mock.ExpectExec(`INSERT INTO pm_executions`).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectPrepare(`INSERT INTO pm_task_results`)
	mock.ExpectExec(`UPDATE pm_files SET status`).
		WithArgs("completed", "pm-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	repo := NewSQLiteExecutionRepository(db)
	_, err = repo.Create(context.Background(), &domain.Execution{TemplateID: "tpl-1", Team: domain.Team{Technician1: "A", Reviewer: "B"}})
	assert.True(t, errors.Is(err, domain.ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeactivateStatement(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`UPDATE pm_files SET active = 0 WHERE id = \?`).
		WithArgs("pm-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewSQLitePMRepository(db).Deactivate(context.Background(), "pm-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
