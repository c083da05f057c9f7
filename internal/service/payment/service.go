package payment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
)

const entityType = "payment"

type Service struct {
	payments repository.PaymentRepository
	patients repository.PatientRepository
	auditor  *audit.Service
}

func NewService(payments repository.PaymentRepository, patients repository.PatientRepository, auditor *audit.Service) *Service {
	return &Service{payments: payments, patients: patients, auditor: auditor}
}

// Record stores a payment against a patient. Negative amounts are refunds
// and are accepted as entered.
func (s *Service) Record(ctx context.Context, req *model.CreatePaymentRequest) (*model.PaymentRecord, error) {
	if !req.Method.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown payment method %q", req.Method), nil)
	}
	if _, err := s.patients.Get(ctx, req.PatientID); err != nil {
		return nil, err
	}

	payment := &model.PaymentRecord{
		Base:      model.Base{ID: uuid.New()},
		PatientID: req.PatientID,
		Amount:    req.Amount,
		Method:    req.Method,
		Notes:     req.Notes,
	}

	evt, err := event.ForPayment(model.EventPaymentRecorded, payment)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Create(ctx, payment, evt); err != nil {
		return nil, fmt.Errorf("failed to record payment: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionCreate, entityType, payment.ID, payment)
	return payment, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.PaymentRecord, error) {
	return s.payments.Get(ctx, id)
}

func (s *Service) Update(ctx context.Context, id uuid.UUID, req *model.UpdatePaymentRequest) (*model.PaymentRecord, error) {
	payment, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Amount != nil {
		payment.Amount = *req.Amount
	}
	if req.Method != nil {
		if !req.Method.Valid() {
			return nil, apperrors.BadRequest(fmt.Sprintf("unknown payment method %q", *req.Method), nil)
		}
		payment.Method = *req.Method
	}
	if req.Notes != nil {
		payment.Notes = *req.Notes
	}

	evt, err := event.ForPayment(model.EventPaymentUpdated, payment)
	if err != nil {
		return nil, err
	}
	if err := s.payments.Update(ctx, payment, evt); err != nil {
		return nil, fmt.Errorf("failed to update payment: %w", err)
	}

	s.auditor.Log(ctx, model.AuditActionUpdate, entityType, payment.ID, req)
	return payment, nil
}

func (s *Service) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.PaymentRecord, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	if payments == nil {
		payments = []*model.PaymentRecord{}
	}
	return payments, nil
}
