package service

import (
	"bytes"
	"context"
	"log/slog"
	"path"
	"strings"
	"time"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/repository"
	"ozzus/pm-tracker/internal/storage"
)

type UploadPMRequest struct {
	FileName   string
	Data       []byte
	UploadedBy string
	GLOwner    string
	PMType     string
}

// AdminService registers PM documents and their templates.
type AdminService struct {
	pms       repository.PMRepository
	templates repository.TemplateRepository
	store     storage.BlobStore
	log       *slog.Logger
	timeout   time.Duration
	now       func() time.Time
}

func NewAdminService(pms repository.PMRepository, templates repository.TemplateRepository, store storage.BlobStore, timeout time.Duration, log *slog.Logger) *AdminService {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &AdminService{pms: pms, templates: templates, store: store, log: log, timeout: timeout, now: time.Now}
}

var pdfMagic = []byte("%PDF-")

func (s *AdminService) Register(ctx context.Context, req UploadPMRequest) (*domain.PM, error) {
	req.FileName = strings.TrimSpace(req.FileName)
	if req.FileName == "" {
		return nil, domain.NewValidationError("file name is required")
	}
	if !strings.EqualFold(path.Ext(req.FileName), ".pdf") || !bytes.HasPrefix(req.Data, pdfMagic) {
		return nil, domain.NewValidationError("%s is not a PDF document", req.FileName)
	}

	name := storage.PMFileName(req.FileName, s.now())
	putCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	url, err := s.store.Put(putCtx, name, "application/pdf", req.Data)
	if err != nil {
		return nil, domain.NewUploadError(err, "upload pm document "+name)
	}

	pm, err := s.pms.Create(ctx, domain.RegisterPMRequest{
		FileName:   req.FileName,
		BlobURL:    url,
		UploadedBy: strings.TrimSpace(req.UploadedBy),
		GLOwner:    strings.TrimSpace(req.GLOwner),
		PMType:     strings.TrimSpace(req.PMType),
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("pm registered", slog.String("pm_id", pm.ID), slog.String("file", pm.FileName), slog.String("gl", pm.GLOwner))
	return pm, nil
}

func (s *AdminService) List(ctx context.Context, includeInactive bool) ([]domain.PMOverview, error) {
	return s.pms.List(ctx, domain.PMFilter{IncludeInactive: includeInactive})
}

// Delete hides the PM. Its document, template and executions stay.
func (s *AdminService) Delete(ctx context.Context, id string) error {
	if err := s.pms.Deactivate(ctx, id); err != nil {
		return err
	}
	s.log.Info("pm deactivated", slog.String("pm_id", id))
	return nil
}

// ImportTemplate attaches a task list to a PM. Importing again returns the
// existing template unchanged when it already has tasks; created reports
// whether a new one was stored.
func (s *AdminService) ImportTemplate(ctx context.Context, pmID string, draft domain.TemplateDraft) (tpl *domain.Template, created bool, err error) {
	pm, err := s.pms.Get(ctx, pmID)
	if err != nil {
		return nil, false, err
	}

	existing, err := s.templates.GetByPM(ctx, pmID)
	switch {
	case err == nil && len(existing.Tasks) > 0:
		return existing, false, nil
	case err == nil:
		return nil, false, domain.NewValidationError("pm %s already has an empty template %s", pmID, existing.ID)
	case domain.Kind(err) != domain.ErrNotFound:
		return nil, false, err
	}

	tpl, err = BuildTemplate(draft)
	if err != nil {
		return nil, false, err
	}
	tpl.PMID = pm.ID
	tpl.PDFFileName = pm.FileName
	tpl.BasePDFURL = pm.BlobURL

	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, false, err
	}

	s.log.Info("template imported", slog.String("pm_id", pmID), slog.String("template_id", tpl.ID), slog.Int("tasks", len(tpl.Tasks)))
	return tpl, true, nil
}

// BuildTemplate turns a draft into an ordered template. Strings are trimmed,
// order follows the draft and a missing sequence defaults to the order.
func BuildTemplate(draft domain.TemplateDraft) (*domain.Template, error) {
	tpl := &domain.Template{
		PMNumber:  strings.TrimSpace(draft.PMNumber),
		Name:      strings.TrimSpace(draft.Name),
		AssetCode: strings.TrimSpace(draft.AssetCode),
		Location:  strings.TrimSpace(draft.Location),
	}

	for i, d := range draft.Tasks {
		title := strings.TrimSpace(d.Title)
		if title == "" {
			return nil, domain.NewValidationError("task %d has no title", i+1)
		}
		seq := i + 1
		if d.Sequence != nil {
			seq = *d.Sequence
		}
		tpl.Tasks = append(tpl.Tasks, domain.ChecklistTask{
			Sequence:  seq,
			Order:     i + 1,
			Title:     title,
			KeyPoints: strings.TrimSpace(d.KeyPoints),
			Rationale: strings.TrimSpace(d.Rationale),
			HasImage:  d.HasImage,
		})
	}
	if len(tpl.Tasks) == 0 {
		return nil, domain.NewValidationError("template has no tasks")
	}
	return tpl, nil
}
