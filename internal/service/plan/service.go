package plan

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/finance"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

const entityType = "treatment_plan"

type Service struct {
	plans     repository.PlanRepository
	templates repository.TemplateRepository
	patients  repository.PatientRepository
	auditor   *audit.Service
	metrics   *metrics.Metrics
	logger    *logger.Logger
}

func NewService(
	plans repository.PlanRepository,
	templates repository.TemplateRepository,
	patients repository.PatientRepository,
	auditor *audit.Service,
	metrics *metrics.Metrics,
	logger *logger.Logger,
) *Service {
	return &Service{
		plans:     plans,
		templates: templates,
		patients:  patients,
		auditor:   auditor,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create builds a plan whose items record the current unit cost of their
// templates. An authorized amount above the resulting nominal cost is
// rejected, never clamped.
func (s *Service) Create(ctx context.Context, req *model.CreatePlanRequest) (*model.PlanWithFinancials, error) {
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}

	items, err := s.snapshotItems(ctx, nil, req.Items)
	if err != nil {
		return nil, err
	}

	plan := &model.TreatmentPlan{
		Base:             model.Base{ID: uuid.New()},
		PatientID:        req.PatientID,
		Description:      req.Description,
		AuthorizedAmount: req.AuthorizedAmount,
		Status:           model.PlanStatusActive,
		Version:          1,
		Items:            items,
	}

	fin, err := s.financials(plan)
	if err != nil {
		return nil, err
	}

	evt, err := event.ForPlan(model.EventPlanCreated, plan, fin)
	if err != nil {
		return nil, err
	}
	if err := s.plans.Create(ctx, plan, evt); err != nil {
		return nil, fmt.Errorf("failed to create treatment plan: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, entityType, plan.ID, plan)
	return &model.PlanWithFinancials{TreatmentPlan: plan, Financials: fin}, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.PlanWithFinancials, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.withFinancials(plan)
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.PlanWithFinancials, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	plans, err := s.plans.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	result := make([]*model.PlanWithFinancials, 0, len(plans))
	for _, p := range plans {
		pf, err := s.withFinancials(p)
		if err != nil {
			return nil, fmt.Errorf("plan %s: %w", p.ID, err)
		}
		result = append(result, pf)
	}
	return result, nil
}

// Update applies req to the plan at req.Version. Items listed in req replace
// the plan's items: an item whose template was already on the plan keeps its
// recorded unit cost, a new one records the template's current cost.
func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePlanRequest) (*model.PlanWithFinancials, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Version != req.Version {
		return nil, fmt.Errorf("treatment plan %s: %w", id, apperrors.ErrVersionConflict)
	}
	if plan.Status == model.PlanStatusCancelled {
		return nil, apperrors.Conflict("cancelled plans cannot be edited", nil)
	}

	if req.Description != nil {
		plan.Description = *req.Description
	}
	switch {
	case req.ClearAuthorized:
		plan.AuthorizedAmount = nil
	case req.AuthorizedAmount != nil:
		plan.AuthorizedAmount = req.AuthorizedAmount
	}

	replaceItems := req.Items != nil
	if replaceItems {
		plan.Items, err = s.snapshotItems(ctx, plan.Items, req.Items)
		if err != nil {
			return nil, err
		}
	}

	fin, err := s.financials(plan)
	if err != nil {
		return nil, err
	}

	// the event carries the version the update produces
	plan.Version++
	evt, err := event.ForPlan(model.EventPlanUpdated, plan, fin)
	plan.Version--
	if err != nil {
		return nil, err
	}
	if err := s.plans.Update(ctx, plan, replaceItems, evt); err != nil {
		return nil, fmt.Errorf("failed to update treatment plan: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, entityType, plan.ID, req)
	return &model.PlanWithFinancials{TreatmentPlan: plan, Financials: fin}, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PlanStatus) (*model.PlanWithFinancials, error) {
	plan, err := s.plans.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan.Status == status {
		return s.withFinancials(plan)
	}
	if !plan.Status.CanTransitionTo(status) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot move plan from %s to %s", plan.Status, status), nil)
	}

	previous := plan.Status
	plan.Status = status
	fin, err := finance.PlanFinancials(plan)
	if err != nil {
		return nil, err
	}

	plan.Version++
	evt, err := event.ForPlan(model.EventPlanStatus, plan, fin)
	plan.Version--
	if err != nil {
		return nil, err
	}
	if err := s.plans.UpdateStatus(ctx, plan, evt); err != nil {
		return nil, fmt.Errorf("failed to update treatment plan status: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionStatus, entityType, plan.ID, map[string]interface{}{
		"from": previous,
		"to":   status,
	})
	return &model.PlanWithFinancials{TreatmentPlan: plan, Financials: fin}, nil
}

// financials validates the plan's authorized amount against its items.
func (s *Service) financials(plan *model.TreatmentPlan) (model.PlanFinancials, error) {
	fin, err := finance.PlanFinancials(plan)
	if err != nil {
		if apperrors.Is(err, finance.ErrAmountExceedsNominalCost) {
			s.metrics.AuthorizationRejected.Inc()
			s.logger.Warn("authorized amount rejected",
				"plan_id", plan.ID.String(),
				"authorized", plan.AuthorizedAmount.String(),
			)
		}
		return model.PlanFinancials{}, err
	}
	return fin, nil
}

func (s *Service) withFinancials(plan *model.TreatmentPlan) (*model.PlanWithFinancials, error) {
	fin, err := finance.PlanFinancials(plan)
	if err != nil {
		return nil, err
	}
	return &model.PlanWithFinancials{TreatmentPlan: plan, Financials: fin}, nil
}

// snapshotItems resolves requested items to plan items. Each existing item
// can be matched once, by template, and carries over its recorded cost and
// name; unmatched requests need an active template.
func (s *Service) snapshotItems(ctx context.Context, existing []model.TreatmentPlanItem, reqs []model.PlanItemRequest) ([]model.TreatmentPlanItem, error) {
	kept := make(map[uuid.UUID][]model.TreatmentPlanItem)
	for _, item := range existing {
		kept[item.TreatmentTemplateID] = append(kept[item.TreatmentTemplateID], item)
	}

	var missing []uuid.UUID
	available := make(map[uuid.UUID]int, len(kept))
	for id, items := range kept {
		available[id] = len(items)
	}
	for _, r := range reqs {
		if available[r.TreatmentTemplateID] > 0 {
			available[r.TreatmentTemplateID]--
			continue
		}
		missing = append(missing, r.TreatmentTemplateID)
	}
	templates, err := s.templates.GetMany(ctx, missing)
	if err != nil {
		return nil, err
	}

	items := make([]model.TreatmentPlanItem, 0, len(reqs))
	for i, r := range reqs {
		if r.Quantity < 0 {
			return nil, &finance.ValidationError{Code: finance.CodeNegativeQuantity, Index: i, Err: finance.ErrNegativeQuantity}
		}

		if prev := kept[r.TreatmentTemplateID]; len(prev) > 0 {
			item := prev[0]
			kept[r.TreatmentTemplateID] = prev[1:]
			item.Quantity = r.Quantity
			items = append(items, item)
			continue
		}

		tmpl, ok := templates[r.TreatmentTemplateID]
		if !ok {
			return nil, apperrors.BadRequest(fmt.Sprintf("item %d: unknown treatment template %s", i, r.TreatmentTemplateID), nil)
		}
		if !tmpl.Active {
			return nil, apperrors.BadRequest(fmt.Sprintf("item %d: treatment template %q is inactive", i, tmpl.Name), nil)
		}
		items = append(items, model.TreatmentPlanItem{
			TreatmentTemplateID: tmpl.ID,
			Name:                tmpl.Name,
			Quantity:            r.Quantity,
			RecordedUnitCost:    tmpl.UnitCost,
		})
	}
	return items, nil
}
