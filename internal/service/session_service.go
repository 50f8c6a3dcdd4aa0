package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/wizard"
)

// TaskPatch updates the fields that are set.
type TaskPatch struct {
	Status      *domain.TaskStatus `json:"status"`
	Comment     *string            `json:"comment"`
	Measurement *string            `json:"measurement"`
}

type TaskView struct {
	Task       domain.ChecklistTask `json:"task"`
	Kind       wizard.TaskKind      `json:"kind"`
	Result     domain.TaskResult    `json:"result"`
	CanAdvance bool                 `json:"can_advance"`
}

type SessionView struct {
	ID          string           `json:"id"`
	TemplateID  string           `json:"template_id"`
	PMNumber    string           `json:"pm_number"`
	Name        string           `json:"name"`
	Team        domain.Team      `json:"team"`
	StartedAt   time.Time        `json:"started_at"`
	Active      int              `json:"active"`
	Tasks       []TaskView       `json:"tasks"`
	CanFinalize bool             `json:"can_finalize"`
	Problems    []wizard.Problem `json:"problems"`
	Tally       domain.Tally     `json:"tally"`
}

type sessionEntry struct {
	mu        sync.Mutex
	id        string
	template  *domain.Template
	wizard    *wizard.Session
	team      domain.Team
	startedAt time.Time
	touched   time.Time
}

// SessionService keeps in-progress wizards in memory, one per technician
// run. Sessions are never persisted; a discarded or expired one is gone.
type SessionService struct {
	templates  repository.TemplateRepository
	executions *ExecutionService
	log        *slog.Logger
	ttl        time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewSessionService(templates repository.TemplateRepository, executions *ExecutionService, ttl time.Duration, log *slog.Logger) *SessionService {
	return &SessionService{
		templates:  templates,
		executions: executions,
		log:        log,
		ttl:        ttl,
		now:        time.Now,
		sessions:   make(map[string]*sessionEntry),
	}
}

func (s *SessionService) Start(ctx context.Context, templateID string, team domain.Team) (*SessionView, error) {
	tpl, err := s.templates.Get(ctx, templateID)
	if err != nil {
		return nil, err
	}
	if len(tpl.Tasks) == 0 {
		return nil, domain.NewValidationError("template %s has no tasks", templateID)
	}

	now := s.now().UTC()
	e := &sessionEntry{
		id:        uuid.NewString(),
		template:  tpl,
		wizard:    wizard.New(*tpl),
		team:      team,
		startedAt: now,
		touched:   now,
	}

	s.mu.Lock()
	s.sweepLocked(now)
	s.sessions[e.id] = e
	s.mu.Unlock()

	s.log.Info("session started",
		slog.String("session_id", e.id),
		slog.String("template_id", templateID),
		slog.Int("tasks", len(tpl.Tasks)),
	)
	return view(e), nil
}

func (s *SessionService) Get(id string) (*SessionView, error) {
	var v *SessionView
	err := s.with(id, func(e *sessionEntry) error {
		v = view(e)
		return nil
	})
	return v, err
}

// Discard drops a session without persisting anything.
func (s *SessionService) Discard(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return domain.NewNotFoundError("session %s not found", id)
	}
	delete(s.sessions, id)
	s.log.Info("session discarded", slog.String("session_id", id))
	return nil
}

func (s *SessionService) UpdateTask(id string, index int, patch TaskPatch) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error {
		if patch.Status != nil {
			if err := w.SetResult(index, *patch.Status); err != nil {
				return err
			}
		}
		if patch.Comment != nil {
			if err := w.SetComment(index, *patch.Comment); err != nil {
				return err
			}
		}
		if patch.Measurement != nil {
			if err := w.SetMeasurement(index, *patch.Measurement); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *SessionService) ToggleFlag(id string, index int) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error { return w.ToggleFlag(index) })
}

func (s *SessionService) AddPhoto(id string, index int, ref string) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error { return w.AddPhoto(index, ref) })
}

func (s *SessionService) RemovePhoto(id string, index int, ref string) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error { return w.RemovePhoto(index, ref) })
}

// Advance moves forward when the active task is complete. An incomplete task
// is not an error: the view reports why through Problems.
func (s *SessionService) Advance(id string) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error {
		w.Advance()
		return nil
	})
}

func (s *SessionService) Retreat(id string) (*SessionView, error) {
	return s.mutate(id, func(w *wizard.Session) error {
		w.Retreat()
		return nil
	})
}

// Finish finalizes the wizard and runs the persistence pipeline. A non-empty
// team overrides the one given at start. The session is removed once the
// execution is stored, even if its report is still pending.
func (s *SessionService) Finish(ctx context.Context, id string, team *domain.Team) (*FinishResult, error) {
	var (
		tpl  *domain.Template
		exec *domain.Execution
	)
	err := s.with(id, func(e *sessionEntry) error {
		if team != nil {
			e.team = *team
		}
		var err error
		exec, err = e.wizard.Finalize(e.team, e.startedAt, s.now().UTC())
		tpl = e.template
		return err
	})
	if err != nil {
		return nil, err
	}

	result, err := s.executions.Persist(ctx, tpl, exec)
	if result == nil {
		// nothing was stored; let the technician retry from the same state
		s.reopen(id, tpl)
		return nil, err
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return result, err
}

// reopen replaces a finalized wizard with an editable copy of its results,
// keeping the technician on the task they finished from.
func (s *SessionService) reopen(id string, tpl *domain.Template) {
	_ = s.with(id, func(e *sessionEntry) error {
		w, err := wizard.Restore(*tpl, e.wizard.Results())
		if err != nil {
			return err
		}
		w.Seek(e.wizard.Active())
		e.wizard = w
		return nil
	})
}

func (s *SessionService) mutate(id string, fn func(w *wizard.Session) error) (*SessionView, error) {
	var v *SessionView
	err := s.with(id, func(e *sessionEntry) error {
		if err := fn(e.wizard); err != nil {
			return err
		}
		v = view(e)
		return nil
	})
	return v, err
}

// with runs fn on a live session. A session idle for longer than the TTL is
// dropped here and reported as not found.
func (s *SessionService) with(id string, fn func(e *sessionEntry) error) error {
	s.mu.Lock()
	e, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		return domain.NewNotFoundError("session %s not found", id)
	}

	e.mu.Lock()
	now := s.now().UTC()
	idle := now.Sub(e.touched)
	if s.ttl <= 0 || idle <= s.ttl {
		defer e.mu.Unlock()
		e.touched = now
		return fn(e)
	}
	e.mu.Unlock()

	// sweepLocked takes s.mu before e.mu, so e.mu is released first
	s.mu.Lock()
	if s.sessions[id] == e {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	s.log.Info("session expired", slog.String("session_id", id), slog.Duration("idle", idle))
	return domain.NewNotFoundError("session %s expired", id)
}

func (s *SessionService) sweepLocked(now time.Time) {
	if s.ttl <= 0 {
		return
	}
	for id, e := range s.sessions {
		e.mu.Lock()
		idle := now.Sub(e.touched)
		e.mu.Unlock()
		if idle > s.ttl {
			delete(s.sessions, id)
			s.log.Info("session expired", slog.String("session_id", id), slog.Duration("idle", idle))
		}
	}
}

func view(e *sessionEntry) *SessionView {
	w := e.wizard
	v := &SessionView{
		ID:          e.id,
		TemplateID:  e.template.ID,
		PMNumber:    e.template.PMNumber,
		Name:        e.template.Name,
		Team:        e.team,
		StartedAt:   e.startedAt,
		Active:      w.Active(),
		Tasks:       make([]TaskView, w.Len()),
		CanFinalize: w.CanFinalize(),
		Problems:    w.Problems(),
		Tally:       w.Tally(),
	}
	if v.Problems == nil {
		v.Problems = []wizard.Problem{}
	}
	results := w.Results()
	for i := range v.Tasks {
		task, _ := w.Task(i)
		v.Tasks[i] = TaskView{
			Task:       task,
			Kind:       w.Kind(i),
			Result:     results[i],
			CanAdvance: w.CanAdvance(i),
		}
	}
	return v
}
