package patient

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
)

const entityType = "patient"

type Service struct {
	repo    repository.PatientRepository
	auditor *audit.Service
}

func NewService(repo repository.PatientRepository, auditor *audit.Service) *Service {
	return &Service{repo: repo, auditor: auditor}
}

func (s *Service) Create(ctx context.Context, req *model.CreatePatientRequest) (*model.Patient, error) {
	status := model.PatientStatus(req.Status)
	if status == "" {
		status = model.PatientStatusActive
	}

	patient := &model.Patient{
		Base:   model.Base{ID: uuid.New()},
		Name:   req.Name,
		Email:  req.Email,
		Phone:  req.Phone,
		Status: status,
	}
	if err := s.repo.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, entityType, patient.ID, patient)
	return patient, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error) {
	patients, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	if patients == nil {
		patients = []*model.Patient{}
	}
	return patients, total, nil
}

func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, status model.PatientStatus) (*model.Patient, error) {
	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, err
	}

	s.auditor.Log(ctx, model.AuditActionStatus, entityType, id, map[string]interface{}{"status": status})
	return s.repo.Get(ctx, id)
}
