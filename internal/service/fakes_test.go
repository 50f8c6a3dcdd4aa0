package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/report"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type fakePMs struct {
	mu  sync.Mutex
	pms map[string]*domain.PM
	seq int
}

func newFakePMs() *fakePMs { return &fakePMs{pms: map[string]*domain.PM{}} }

func (f *fakePMs) Create(_ context.Context, req domain.RegisterPMRequest) (*domain.PM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	pm := &domain.PM{ID: fmt.Sprintf("pm-%d", f.seq), FileName: req.FileName, BlobURL: req.BlobURL,
		GLOwner: req.GLOwner, PMType: req.PMType, UploadedBy: req.UploadedBy, Status: domain.PMOpen, Active: true}
	f.pms[pm.ID] = pm
	cp := *pm
	return &cp, nil
}

func (f *fakePMs) Get(_ context.Context, id string) (*domain.PM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.pms[id]
	if !ok {
		return nil, domain.NewNotFoundError("pm %s not found", id)
	}
	cp := *pm
	return &cp, nil
}

func (f *fakePMs) List(_ context.Context, filter domain.PMFilter) ([]domain.PMOverview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.PMOverview
	for _, pm := range f.pms {
		if !filter.IncludeInactive && !pm.Active {
			continue
		}
		if filter.Owner != "" && !strings.EqualFold(pm.GLOwner, filter.Owner) {
			continue
		}
		if len(filter.Statuses) > 0 {
			match := false
			for _, s := range filter.Statuses {
				match = match || s == pm.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, domain.PMOverview{PM: *pm})
	}
	return out, nil
}

func (f *fakePMs) Deactivate(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.pms[id]
	if !ok {
		return domain.NewNotFoundError("pm %s not found", id)
	}
	pm.Active = false
	return nil
}

func (f *fakePMs) Transition(_ context.Context, id string, to domain.PMStatus) (*domain.PM, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pm, ok := f.pms[id]
	if !ok {
		return nil, domain.NewNotFoundError("pm %s not found", id)
	}
	if err := domain.TransitionPM(pm.Status, to); err != nil {
		return nil, err
	}
	pm.Status = to
	cp := *pm
	return &cp, nil
}

func (f *fakePMs) status(id string) domain.PMStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pms[id].Status
}

type fakeTemplates struct {
	mu        sync.Mutex
	templates map[string]*domain.Template
	seq       int
}

func newFakeTemplates() *fakeTemplates {
	return &fakeTemplates{templates: map[string]*domain.Template{}}
}

func (f *fakeTemplates) Create(_ context.Context, tpl *domain.Template) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	if tpl.ID == "" {
		tpl.ID = fmt.Sprintf("tpl-%d", f.seq)
	}
	for i := range tpl.Tasks {
		if tpl.Tasks[i].ID == "" {
			tpl.Tasks[i].ID = fmt.Sprintf("%s-task-%d", tpl.ID, i)
		}
	}
	cp := *tpl
	f.templates[tpl.ID] = &cp
	return nil
}

func (f *fakeTemplates) Get(_ context.Context, id string) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	tpl, ok := f.templates[id]
	if !ok {
		return nil, domain.NewNotFoundError("template %s not found", id)
	}
	cp := *tpl
	return &cp, nil
}

func (f *fakeTemplates) GetByPM(_ context.Context, pmID string) (*domain.Template, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, tpl := range f.templates {
		if tpl.PMID == pmID {
			cp := *tpl
			return &cp, nil
		}
	}
	return nil, domain.NewNotFoundError("template for pm %s not found", pmID)
}

type fakeExecutions struct {
	mu        sync.Mutex
	execs     map[string]*domain.Execution
	pms       *fakePMs
	createErr error
	seq       int
}

func newFakeExecutions(pms *fakePMs) *fakeExecutions {
	return &fakeExecutions{execs: map[string]*domain.Execution{}, pms: pms}
}

func (f *fakeExecutions) Create(_ context.Context, exec *domain.Execution) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.seq++
	exec.ID = fmt.Sprintf("exec-%d", f.seq)
	cp := *exec
	f.execs[exec.ID] = &cp
	if exec.PMID != "" && f.pms != nil {
		f.pms.mu.Lock()
		if pm, ok := f.pms.pms[exec.PMID]; ok {
			pm.Status = domain.PMCompleted
		}
		f.pms.mu.Unlock()
	}
	return exec.ID, nil
}

func (f *fakeExecutions) Get(_ context.Context, id string) (*domain.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.execs[id]
	if !ok {
		return nil, domain.NewNotFoundError("execution %s not found", id)
	}
	cp := *e
	return &cp, nil
}

func (f *fakeExecutions) AttachReport(_ context.Context, id, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.execs[id]
	if !ok {
		return domain.NewNotFoundError("execution %s not found", id)
	}
	e.ReportURL = url
	e.ReportStatus = domain.ReportStored
	return nil
}

func (f *fakeExecutions) MarkReportPending(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if e, ok := f.execs[id]; ok && e.ReportStatus != domain.ReportStored {
		e.ReportStatus = domain.ReportPending
	}
	return nil
}

func (f *fakeExecutions) ListReportPending(context.Context, int) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for id, e := range f.execs {
		if e.ReportStatus == domain.ReportPending {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

type fakeStore struct {
	mu    sync.Mutex
	fail  error
	blobs map[string][]byte
}

func newFakeStore() *fakeStore { return &fakeStore{blobs: map[string][]byte{}} }

func (s *fakeStore) Put(_ context.Context, name, _ string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail != nil {
		return "", s.fail
	}
	ref := "mem://" + name
	s.blobs[ref] = data
	return ref, nil
}

func (s *fakeStore) Get(_ context.Context, ref string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.blobs[ref]
	if !ok {
		return nil, errors.New("missing")
	}
	return d, nil
}

func (s *fakeStore) Owns(ref string) bool { return strings.HasPrefix(ref, "mem://") }

func (s *fakeStore) Ping(context.Context) error { return nil }

func (s *fakeStore) setFail(err error) {
	s.mu.Lock()
	s.fail = err
	s.mu.Unlock()
}

type fakeCompiler struct {
	calls int
	err   error
}

func (c *fakeCompiler) Compile(_ context.Context, in report.Input) (*report.Report, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	t := in.Execution.Team
	return &report.Report{
		Data:     []byte("%PDF-1.3 fake"),
		FileName: report.FileName(in.SourceName, in.Template.PMNumber, t.Reviewer, t.Technician1, t.Technician2),
		Pages:    1,
		Tally:    in.Execution.Tally(),
	}, nil
}

type fakeEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeEvents) Publish(_ context.Context, e domain.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

func (f *fakeEvents) types() []domain.EventType {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.EventType, len(f.events))
	for i, e := range f.events {
		out[i] = e.Type
	}
	return out
}

// fixture wires every service over the fakes.
type fixture struct {
	pms        *fakePMs
	templates  *fakeTemplates
	executions *fakeExecutions
	store      *fakeStore
	compiler   *fakeCompiler
	events     *fakeEvents

	execSvc    *ExecutionService
	sessionSvc *SessionService
	adminSvc   *AdminService
	reviewSvc  *ReviewService
}

func newFixture() *fixture {
	f := &fixture{
		pms:       newFakePMs(),
		templates: newFakeTemplates(),
		store:     newFakeStore(),
		compiler:  &fakeCompiler{},
		events:    &fakeEvents{},
	}
	f.executions = newFakeExecutions(f.pms)
	f.execSvc = NewExecutionService(ExecutionDeps{
		Executions: f.executions,
		Templates:  f.templates,
		PMs:        f.pms,
		Compiler:   f.compiler,
		Store:      f.store,
		Events:     f.events,
	}, discard)
	f.sessionSvc = NewSessionService(f.templates, f.execSvc, 0, discard)
	f.adminSvc = NewAdminService(f.pms, f.templates, f.store, 0, discard)
	f.reviewSvc = NewReviewService(f.pms, f.events, nil, discard)
	return f
}

// seed registers a PM with a template of n plain tasks.
func (f *fixture) seed(n int) (*domain.PM, *domain.Template) {
	ctx := context.Background()
	pm, _ := f.pms.Create(ctx, domain.RegisterPMRequest{FileName: "Prensa 7.pdf", BlobURL: "mem://pm", GLOwner: "GL Perez"})
	draft := domain.TemplateDraft{PMNumber: "PM-7", Name: "Press"}
	for i := 0; i < n; i++ {
		draft.Tasks = append(draft.Tasks, domain.DraftTask{Title: fmt.Sprintf("Clean guard %d", i)})
	}
	tpl, _, err := f.adminSvc.ImportTemplate(ctx, pm.ID, draft)
	if err != nil {
		panic(err)
	}
	return pm, tpl
}

func (f *fakePMs) setStatus(id string, s domain.PMStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pms[id].Status = s
}
