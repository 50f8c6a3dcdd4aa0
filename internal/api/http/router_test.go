package http

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/photo"
	"ozzus/pm-tracker/internal/report"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/service"
	"ozzus/pm-tracker/internal/storage"
	"ozzus/pm-tracker/internal/storage/local"
)

const publicBase = "http://pm.example.test"

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func init() {
	gin.SetMode(gin.TestMode)
}

// reportOutage fails report uploads while set and passes everything else.
type reportOutage struct {
	storage.BlobStore
	down bool
}

func (s *reportOutage) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	if s.down && strings.HasPrefix(name, storage.PrefixReports) {
		return "", errors.New("container unavailable")
	}
	return s.BlobStore.Put(ctx, name, contentType, data)
}

type testServer struct {
	router *gin.Engine
	store  *reportOutage
	health *service.HealthService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	dir := t.TempDir()

	db, err := repository.OpenWithMigrations(filepath.Join(dir, "pm.db"), discard)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	files, err := local.New(filepath.Join(dir, "blobs"), publicBase+"/files")
	require.NoError(t, err)
	store := &reportOutage{BlobStore: files}

	pms := repository.NewSQLitePMRepository(db)
	templates := repository.NewSQLiteTemplateRepository(db)
	executions := repository.NewSQLiteExecutionRepository(db)
	events := repository.NewLogEventPublisher(discard)

	fetcher, err := photo.NewFetcher(publicBase, store, time.Second)
	require.NoError(t, err)
	compiler := report.NewCompiler(discard, fetcher, report.Options{})

	execSvc := service.NewExecutionService(service.ExecutionDeps{
		Executions: executions, Templates: templates, PMs: pms,
		Compiler: compiler, Store: store, Events: events,
	}, discard)
	photoSvc := service.NewPhotoService(store, 1<<20, time.Second, discard)

	health := service.NewHealthService("pm-tracker", "test")
	health.Register("database", service.CheckerFunc(func(ctx context.Context) error { return repository.Ping(ctx, db) }))

	photos := NewPhotoController(photoSvc)
	router := NewRouter(discard, Controllers{
		Health:     NewHealthController(health, nil),
		Options:    NewOptionsController(Options{GLNames: []string{"GL Perez"}}),
		Admin:      NewAdminController(service.NewAdminService(pms, templates, store, time.Second, discard)),
		Catalog:    NewCatalogController(service.NewCatalogService(pms, templates)),
		Photos:     photos,
		Sessions:   NewSessionController(service.NewSessionService(templates, execSvc, time.Hour, discard), photos),
		Executions: NewExecutionController(execSvc),
		Review:     NewReviewController(service.NewReviewService(pms, events, nil, discard)),
	}, RouterConfig{CORSOrigins: []string{"http://app.example.test"}, FilesRoot: files.Root()})

	return &testServer{router: router, store: store, health: health}
}

func (s *testServer) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, target, name string, data []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	fw, err := mw.CreateFormFile("file", name)
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func pngImage(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewGray(image.Rect(0, 0, 8, 6))))
	return buf.Bytes()
}

// seedTemplate registers a PM document and imports a template for it.
func (s *testServer) seedTemplate(t *testing.T) (domain.PM, domain.Template) {
	t.Helper()
	w := s.upload(t, "/api/admin/pms", "Prensa 7.pdf", []byte("%PDF-1.4\n%%EOF"), map[string]string{
		"uploaded_by": "admin", "gl_owner": "GL Perez", "pm_type": "Mechanical",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	pm := decode[domain.PM](t, w)

	w = s.do(t, http.MethodPost, "/api/admin/pms/"+pm.ID+"/template", domain.TemplateDraft{
		PMNumber: "PM-7",
		Name:     "Prensa hidraulica",
		Tasks: []domain.DraftTask{
			{Title: "Clean guard"},
			{Title: "Check hoses", KeyPoints: "No leaks"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return pm, decode[domain.Template](t, w)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, domain.HealthStatusHealthy, decode[domain.HealthResponse](t, w).Status)

	s.health.Register("storage", service.CheckerFunc(func(context.Context) error { return errors.New("down") }))
	w = s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	w = s.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	d := decode[domain.DetailedHealthResponse](t, w)
	assert.Equal(t, domain.HealthStatusDegraded, d.Status)
	assert.Len(t, d.Components, 2)

	w = s.do(t, http.MethodGet, "/info", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestExecutionFlow(t *testing.T) {
	s := newTestServer(t)
	pm, tpl := s.seedTemplate(t)

	w := s.do(t, http.MethodPost, "/api/sessions", map[string]any{
		"template_id": tpl.ID,
		"team":        domain.Team{Technician1: "Ana", Reviewer: "GL Perez"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sess := decode[service.SessionView](t, w)
	base := "/api/sessions/" + sess.ID

	w = s.do(t, http.MethodPatch, base+"/tasks/0", map[string]any{"status": "passed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.True(t, decode[service.SessionView](t, w).Tasks[0].CanAdvance)

	w = s.do(t, http.MethodPost, base+"/advance", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, decode[service.SessionView](t, w).Active)

	w = s.do(t, http.MethodPatch, base+"/tasks/1", map[string]any{"status": "failed", "comment": "hose cracked"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.upload(t, base+"/tasks/1/photos", "hose.png", pngImage(t), nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	photos := decode[service.SessionView](t, w).Tasks[1].Result.Photos
	require.Len(t, photos, 1)
	assert.True(t, strings.HasPrefix(photos[0], publicBase+"/files/pm-photos/"), photos[0])

	w = s.do(t, http.MethodPost, base+"/finish", nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	res := decode[service.FinishResult](t, w)
	assert.False(t, res.ReportPending)
	assert.Equal(t, domain.Tally{Total: 2, Passed: 1, Failed: 1}, res.Tally)
	assert.Zero(t, res.MissingPhotos)
	require.True(t, strings.HasPrefix(res.ReportURL, publicBase+"/files/"), res.ReportURL)

	w = s.do(t, http.MethodGet, strings.TrimPrefix(res.ReportURL, publicBase), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF-")))

	w = s.do(t, http.MethodGet, "/api/executions/"+res.ExecutionID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "EXEC_Prensa_7")

	w = s.do(t, http.MethodGet, base, nil)
	assert.Equal(t, http.StatusNotFound, w.Code, "finished session is gone")

	// GL review
	w = s.do(t, http.MethodGet, "/api/gl/pms?gl=gl%20perez", nil)
	require.Equal(t, http.StatusOK, w.Code)
	listed := decode[[]domain.PMOverview](t, w)
	require.Len(t, listed, 1)
	assert.Equal(t, domain.PMCompleted, listed[0].Status)
	assert.Equal(t, res.ExecutionID, listed[0].LastExecutionID)

	w = s.do(t, http.MethodPatch, "/api/gl/pms/"+pm.ID+"/status", map[string]string{"status": "closed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, domain.PMClosed, decode[domain.PM](t, w).Status)

	w = s.do(t, http.MethodPatch, "/api/gl/pms/"+pm.ID+"/status", map[string]string{"status": "open"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[ErrorResponse](t, w).Kind)
}

func TestFinishWithReportOutage(t *testing.T) {
	s := newTestServer(t)
	_, tpl := s.seedTemplate(t)
	s.store.down = true

	start := time.Now().Add(-30 * time.Minute).UTC()
	w := s.do(t, http.MethodPost, "/api/executions", service.FinishRequest{
		TemplateID: tpl.ID,
		Team:       domain.Team{Technician1: "Ana", Reviewer: "GL Perez"},
		StartedAt:  start,
		FinishedAt: start.Add(25 * time.Minute),
		Results: []domain.TaskResult{
			{TaskID: tpl.Tasks[0].ID, Status: domain.StatusPassed},
			{TaskID: tpl.Tasks[1].ID, Status: domain.StatusPassed},
		},
	})
	require.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "storage", body.Kind)
	require.NotEmpty(t, body.ExecutionID)

	w = s.do(t, http.MethodGet, "/api/executions/"+body.ExecutionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"report_status":"pending"`)

	s.store.down = false
	w = s.do(t, http.MethodPost, "/api/executions/"+body.ExecutionID+"/report", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode[service.FinishResult](t, w).ReportURL)
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)
	_, tpl := s.seedTemplate(t)

	w := s.do(t, http.MethodGet, "/api/templates/missing", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Kind)

	w = s.upload(t, "/api/photos", "notes.txt", []byte("plain text"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.upload(t, "/api/admin/pms", "doc.pdf", []byte("not a pdf"), nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodPost, "/api/sessions", map[string]any{"template_id": tpl.ID})
	require.Equal(t, http.StatusCreated, w.Code)
	id := decode[service.SessionView](t, w).ID

	w = s.do(t, http.MethodPatch, "/api/sessions/"+id+"/tasks/x", map[string]any{"status": "passed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPatch, "/api/sessions/"+id+"/tasks/9", map[string]any{"status": "passed"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = s.do(t, http.MethodPost, "/api/sessions/"+id+"/finish", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = s.do(t, http.MethodDelete, "/api/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(t, http.MethodGet, "/api/gl/pms", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code, "reviewer is required")
}

func TestPhotoUploadOutage(t *testing.T) {
	s := newTestServer(t)
	s.store.BlobStore = failingStore{}

	w := s.upload(t, "/api/photos", "a.png", pngImage(t), nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	body := decode[ErrorResponse](t, w)
	assert.Equal(t, "upload", body.Kind)
	assert.NotEmpty(t, body.Hints)
}

type failingStore struct{}

func (failingStore) Put(context.Context, string, string, []byte) (string, error) {
	return "", errors.New("network unreachable")
}

func (failingStore) Get(context.Context, string) ([]byte, error) { return nil, storage.ErrNotFound }

func (failingStore) Owns(string) bool { return false }

func (failingStore) Ping(context.Context) error { return nil }

func TestOptionsAndCORS(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodGet, "/api/options", nil)
	require.Equal(t, http.StatusOK, w.Code)
	opts := decode[Options](t, w)
	assert.Equal(t, []string{"GL Perez"}, opts.GLNames)
	assert.Equal(t, []string{}, opts.PMTypes)

	req := httptest.NewRequest(http.MethodOptions, "/api/sessions", nil)
	req.Header.Set("Origin", "http://app.example.test")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://app.example.test", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/options", nil)
	req.Header.Set("Origin", "http://evil.example.test")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
