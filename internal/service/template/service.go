package template

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
)

const entityType = "treatment_template"

type Service struct {
	repo    repository.TemplateRepository
	auditor *audit.Service
}

func NewService(repo repository.TemplateRepository, auditor *audit.Service) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, req *model.CreateTemplateRequest) (*model.TreatmentTemplate, error) {
	if req.UnitCost.IsNegative() {
		return nil, apperrors.BadRequest("unit cost must not be negative", nil)
	}

	tmpl := &model.TreatmentTemplate{
		Base:              model.Base{ID: uuid.New()},
		Name:              req.Name,
		UnitCost:          req.UnitCost,
		TotalSessions:     req.TotalSessions,
		MinutesPerSession: req.MinutesPerSession,
		Active:            true,
	}
	if err := s.repo.Create(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to create treatment template: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, entityType, tmpl.ID, tmpl)
	return tmpl, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.TreatmentTemplate, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.TemplateFilters) ([]*model.TreatmentTemplate, error) {
	templates, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, err
	}
	if templates == nil {
		templates = []*model.TreatmentTemplate{}
	}
	return templates, nil
}

// Update edits the template. Plan items already created keep the unit cost
// they recorded.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdateTemplateRequest) (*model.TreatmentTemplate, error) {
	tmpl, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		tmpl.Name = *req.Name
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, apperrors.BadRequest("unit cost must not be negative", nil)
		}
		tmpl.UnitCost = *req.UnitCost
	}
	if req.TotalSessions != nil {
		tmpl.TotalSessions = *req.TotalSessions
	}
	if req.MinutesPerSession != nil {
		tmpl.MinutesPerSession = *req.MinutesPerSession
	}
	if req.Active != nil {
		tmpl.Active = *req.Active
	}

	if err := s.repo.Update(ctx, tmpl); err != nil {
		return nil, fmt.Errorf("failed to update treatment template: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, entityType, tmpl.ID, req)
	return tmpl, nil
}

// Deactivate hides the template from new plans.
func (s *Service) Deactivate(ctx context.Context, id uuid.UUID) (*model.TreatmentTemplate, error) {
	inactive := false
	return s.Update(ctx, id, &model.UpdateTemplateRequest{Active: &inactive})
}
