// Package wizard drives a technician through a PM checklist one task at a
// time and decides when the run may advance or be finalized.
package wizard

import (
	"fmt"
	"strings"
	"time"

	"ozzus/pm-tracker/internal/domain"
)

const (
	ReasonPending            = "no result recorded"
	ReasonFlaggedNoComment   = "flagged task needs a comment"
	ReasonFailedNoComment    = "failed task needs a comment"
	ReasonMissingMeasurement = "measurement is required"
)

// Problem explains why a task blocks advancing or finalizing.
type Problem struct {
	Index    int    `json:"index"`
	TaskID   string `json:"task_id"`
	Sequence int    `json:"sequence"`
	Reason   string `json:"reason"`
}

// Session is the per-technician wizard state. It performs no I/O and is not
// safe for concurrent use.
type Session struct {
	templateID string
	pmID       string
	tasks      []domain.ChecklistTask
	kinds      []TaskKind
	results    []domain.TaskResult
	active     int
	finalized  bool
}

// New opens a wizard over tpl with every result pending.
func New(tpl domain.Template) *Session {
	s := &Session{
		templateID: tpl.ID,
		pmID:       tpl.PMID,
		tasks:      make([]domain.ChecklistTask, len(tpl.Tasks)),
		kinds:      make([]TaskKind, len(tpl.Tasks)),
		results:    make([]domain.TaskResult, len(tpl.Tasks)),
	}
	copy(s.tasks, tpl.Tasks)
	for i, t := range s.tasks {
		s.kinds[i] = Classify(t)
		s.results[i] = domain.NewTaskResult(t.ID)
	}
	return s
}

// Restore rebuilds a wizard from results submitted in one piece. Results are
// matched to tasks by task ID; tasks without a submitted result stay pending.
func Restore(tpl domain.Template, results []domain.TaskResult) (*Session, error) {
	s := New(tpl)
	index := make(map[string]int, len(s.tasks))
	for i, t := range s.tasks {
		index[t.ID] = i
	}

	for _, r := range results {
		i, ok := index[r.TaskID]
		if !ok {
			return nil, domain.NewValidationError("unknown task %q for template %s", r.TaskID, tpl.ID)
		}
		if r.Status == "" {
			r.Status = domain.StatusPending
		}
		if !r.Status.Valid() {
			return nil, domain.NewValidationError("invalid status %q for task %q", r.Status, r.TaskID)
		}
		r = r.Clone()
		if r.Photos == nil {
			r.Photos = []string{}
		}
		s.results[i] = r
	}

	return s, nil
}

func (s *Session) TemplateID() string { return s.templateID }

func (s *Session) Len() int { return len(s.tasks) }

func (s *Session) Active() int { return s.active }

func (s *Session) Finalized() bool { return s.finalized }

func (s *Session) Task(i int) (domain.ChecklistTask, error) {
	if err := s.checkIndex(i); err != nil {
		return domain.ChecklistTask{}, err
	}
	return s.tasks[i], nil
}

func (s *Session) Kind(i int) TaskKind {
	if i < 0 || i >= len(s.kinds) {
		return KindStandard
	}
	return s.kinds[i]
}

func (s *Session) Result(i int) (domain.TaskResult, error) {
	if err := s.checkIndex(i); err != nil {
		return domain.TaskResult{}, err
	}
	return s.results[i].Clone(), nil
}

func (s *Session) Results() []domain.TaskResult {
	out := make([]domain.TaskResult, len(s.results))
	for i, r := range s.results {
		out[i] = r.Clone()
	}
	return out
}

func (s *Session) Tally() domain.Tally {
	return domain.TallyResults(s.results)
}

func (s *Session) SetResult(i int, status domain.TaskStatus) error {
	if !status.Valid() {
		return domain.NewValidationError("invalid status %q", status)
	}
	return s.mutate(i, func(r *domain.TaskResult) {
		r.Status = status
	})
}

func (s *Session) SetMeasurement(i int, value string) error {
	return s.mutate(i, func(r *domain.TaskResult) {
		r.Measurement = value
	})
}

func (s *Session) SetComment(i int, text string) error {
	return s.mutate(i, func(r *domain.TaskResult) {
		r.Comment = text
	})
}

func (s *Session) ToggleFlag(i int) error {
	return s.mutate(i, func(r *domain.TaskResult) {
		r.Flagged = !r.Flagged
	})
}

// AddPhoto appends an already uploaded photo reference.
func (s *Session) AddPhoto(i int, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.NewValidationError("photo reference is empty")
	}
	return s.mutate(i, func(r *domain.TaskResult) {
		r.Photos = append(r.Photos, ref)
	})
}

// RemovePhoto drops every occurrence of ref.
func (s *Session) RemovePhoto(i int, ref string) error {
	return s.mutate(i, func(r *domain.TaskResult) {
		kept := r.Photos[:0]
		for _, p := range r.Photos {
			if p != ref {
				kept = append(kept, p)
			}
		}
		r.Photos = kept
	})
}

// CanAdvance reports whether task i satisfies every completion rule.
func (s *Session) CanAdvance(i int) bool {
	if i < 0 || i >= len(s.results) {
		return false
	}
	return s.problem(i) == ""
}

// Advance moves to the next task when the active one is complete. It returns
// whether the active index changed.
func (s *Session) Advance() bool {
	if len(s.tasks) == 0 || !s.CanAdvance(s.active) {
		return false
	}
	if s.active >= len(s.tasks)-1 {
		return false
	}
	s.active++
	return true
}

// Seek moves the active index to i, clamped to the task range.
func (s *Session) Seek(i int) {
	s.active = max(0, min(i, len(s.tasks)-1))
}

func (s *Session) Retreat() bool {
	if s.active <= 0 {
		return false
	}
	s.active--
	return true
}

// CanFinalize holds when CanAdvance holds for every task at once.
func (s *Session) CanFinalize() bool {
	if len(s.tasks) == 0 {
		return false
	}
	for i := range s.results {
		if s.problem(i) != "" {
			return false
		}
	}
	return true
}

func (s *Session) Problems() []Problem {
	var problems []Problem
	for i := range s.results {
		if reason := s.problem(i); reason != "" {
			problems = append(problems, Problem{
				Index:    i,
				TaskID:   s.tasks[i].ID,
				Sequence: s.tasks[i].Sequence,
				Reason:   reason,
			})
		}
	}
	return problems
}

// Finalize freezes the results into an Execution. The session rejects any
// further mutation afterwards.
func (s *Session) Finalize(team domain.Team, startedAt, finishedAt time.Time) (*domain.Execution, error) {
	if s.finalized {
		return nil, domain.NewValidationError("session already finalized")
	}
	if len(s.tasks) == 0 {
		return nil, domain.NewValidationError("template %s has no tasks", s.templateID)
	}
	if !s.CanFinalize() {
		return nil, domain.NewValidationError("execution is incomplete: %s", describe(s.Problems()))
	}
	if strings.TrimSpace(team.Technician1) == "" {
		return nil, domain.NewValidationError("first technician name is required")
	}
	if strings.TrimSpace(team.Reviewer) == "" {
		return nil, domain.NewValidationError("reviewer name is required")
	}
	if startedAt.IsZero() || finishedAt.IsZero() {
		return nil, domain.NewValidationError("start and end timestamps are required")
	}
	if finishedAt.Before(startedAt) {
		return nil, domain.NewValidationError("end %s is before start %s",
			finishedAt.Format(time.RFC3339), startedAt.Format(time.RFC3339))
	}

	s.finalized = true

	return &domain.Execution{
		TemplateID: s.templateID,
		PMID:       s.pmID,
		Team: domain.Team{
			Technician1: strings.TrimSpace(team.Technician1),
			Technician2: strings.TrimSpace(team.Technician2),
			Reviewer:    strings.TrimSpace(team.Reviewer),
		},
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DurationMs: finishedAt.Sub(startedAt).Milliseconds(),
		Results:    s.Results(),
	}, nil
}

func (s *Session) problem(i int) string {
	r := s.results[i]
	switch {
	case r.Status == domain.StatusPending:
		return ReasonPending
	case r.Flagged && !r.HasComment():
		return ReasonFlaggedNoComment
	case r.Status == domain.StatusFailed && !r.HasComment():
		return ReasonFailedNoComment
	case s.kinds[i] == KindMeasurement && !r.HasMeasurement():
		return ReasonMissingMeasurement
	}
	return ""
}

func (s *Session) mutate(i int, fn func(r *domain.TaskResult)) error {
	if s.finalized {
		return domain.NewValidationError("session already finalized")
	}
	if err := s.checkIndex(i); err != nil {
		return err
	}
	fn(&s.results[i])
	return nil
}

func (s *Session) checkIndex(i int) error {
	if i < 0 || i >= len(s.tasks) {
		return domain.NewValidationError("task index %d out of range [0,%d)", i, len(s.tasks))
	}
	return nil
}

func describe(problems []Problem) string {
	parts := make([]string, 0, len(problems))
	for _, p := range problems {
		parts = append(parts, fmt.Sprintf("task %d: %s", p.Sequence, p.Reason))
	}
	return strings.Join(parts, "; ")
}
