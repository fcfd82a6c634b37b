package service

import (
	"context"

	"github.com/haneulsoft/reserve-notify/internal/apperr"
	"github.com/haneulsoft/reserve-notify/internal/model"
	"github.com/haneulsoft/reserve-notify/internal/repo"
)

// TemplateService validates template content before it reaches storage.
// Token names are deliberately not checked here: unknown tokens are a
// dispatch-time concern and surface as failed deliveries, not as rejected
// templates.
type TemplateService struct {
	templates repo.TemplateRepository
}

func NewTemplateService(templates repo.TemplateRepository) *TemplateService {
	return &TemplateService{templates: templates}
}

func (s *TemplateService) Create(ctx context.Context, tpl *model.Template) error {
	if err := validateTemplate(tpl); err != nil {
		return err
	}
	return s.templates.Create(ctx, tpl)
}

func (s *TemplateService) Update(ctx context.Context, tpl *model.Template) error {
	if err := validateTemplate(tpl); err != nil {
		return err
	}
	return s.templates.Update(ctx, tpl)
}

func (s *TemplateService) Delete(ctx context.Context, ownerID, id int64) error {
	return s.templates.Delete(ctx, ownerID, id)
}

func (s *TemplateService) Get(ctx context.Context, ownerID, id int64) (*model.Template, error) {
	return s.templates.GetByID(ctx, ownerID, id)
}

func (s *TemplateService) List(ctx context.Context, ownerID int64) ([]model.Template, error) {
	return s.templates.ListByOwner(ctx, ownerID)
}

func validateTemplate(tpl *model.Template) error {
	if tpl.Name == "" {
		return apperr.NewValidation("name", "must not be empty")
	}
	if tpl.Content == "" {
		return apperr.NewValidation("content", "must not be empty")
	}
	return nil
}
