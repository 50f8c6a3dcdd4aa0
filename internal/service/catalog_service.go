package service

import (
	"context"

	"ozzus/pm-tracker/internal/domain"
	"ozzus/pm-tracker/internal/repository"
)

// CatalogService is the read side technicians use to pick a PM and load its
// template.
type CatalogService struct {
	pms       repository.PMRepository
	templates repository.TemplateRepository
}

func NewCatalogService(pms repository.PMRepository, templates repository.TemplateRepository) *CatalogService {
	return &CatalogService{pms: pms, templates: templates}
}

func (s *CatalogService) ListPMs(ctx context.Context, owner string) ([]domain.PMOverview, error) {
	return s.pms.List(ctx, domain.PMFilter{Owner: owner})
}

func (s *CatalogService) Template(ctx context.Context, id string) (*domain.Template, error) {
	return s.templates.Get(ctx, id)
}

// ImportStandalone stores a template that is not linked to any uploaded PM.
func (s *CatalogService) ImportStandalone(ctx context.Context, draft domain.TemplateDraft) (*domain.Template, error) {
	tpl, err := BuildTemplate(draft)
	if err != nil {
		return nil, err
	}
	if err := s.templates.Create(ctx, tpl); err != nil {
		return nil, err
	}
	return tpl, nil
}
