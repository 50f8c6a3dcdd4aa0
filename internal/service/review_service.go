package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/lib/logger/sl"
	"ozzus/pm-tracker/internal/repository"
)

// ReviewService serves the GL (shift leader) view: PMs owned by a reviewer
// and the close/reopen transitions.
type ReviewService struct {
	pms      repository.PMRepository
	events   repository.EventPublisher
	statuses []domain.PMStatus
	log      *slog.Logger
	now      func() time.Time
}

// NewReviewService takes the statuses listed by default; completed and
// closed when empty.
func NewReviewService(pms repository.PMRepository, events repository.EventPublisher, statuses []domain.PMStatus, log *slog.Logger) *ReviewService {
	if len(statuses) == 0 {
		statuses = []domain.PMStatus{domain.PMCompleted, domain.PMClosed}
	}
	return &ReviewService{pms: pms, events: events, statuses: statuses, log: log, now: time.Now}
}

// List returns the reviewer's PMs. rawStatus narrows the default status set
// to one status when given.
func (s *ReviewService) List(ctx context.Context, owner, rawStatus string) ([]domain.PMOverview, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, domain.NewValidationError("reviewer name is required")
	}

	statuses := s.statuses
	if strings.TrimSpace(rawStatus) != "" {
		st, ok := domain.ParsePMStatus(rawStatus)
		if !ok {
			return nil, domain.NewValidationError("unknown status %q", rawStatus)
		}
		statuses = []domain.PMStatus{st}
	}

	return s.pms.List(ctx, domain.PMFilter{Owner: owner, Statuses: statuses})
}

func (s *ReviewService) Transition(ctx context.Context, id, rawStatus string) (*domain.PM, error) {
	to, ok := domain.ParsePMStatus(rawStatus)
	if !ok {
		return nil, domain.NewValidationError("unknown status %q", rawStatus)
	}

	pm, err := s.pms.Transition(ctx, id, to)
	if err != nil {
		return nil, err
	}

	s.log.Info("pm status changed", slog.String("pm_id", id), slog.String("status", string(to)))

	if s.events != nil {
		event := domain.Event{
			Type:      domain.EventPMStatusChanged,
			PMID:      id,
			Status:    to,
			Timestamp: s.now().UTC(),
		}
		if err := s.events.Publish(ctx, event); err != nil {
			s.log.Warn("failed to publish event", slog.String("type", string(event.Type)), sl.Err(err))
		}
	}
	return pm, nil
}
