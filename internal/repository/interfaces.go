package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// All repository interfaces in one file. Mutating methods that accept
// outbox events write them in the same transaction as the entity.
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.PatientStatus) error
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, int, error)
		// ListByStatus returns every patient, or only those with status when
		// it is non-empty.
		ListByStatus(ctx context.Context, status model.PatientStatus) ([]*model.Patient, error)
	}

	TemplateRepository interface {
		Create(ctx context.Context, tmpl *model.TreatmentTemplate) error
		Get(ctx context.Context, id uuid.UUID) (*model.TreatmentTemplate, error)
		GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.TreatmentTemplate, error)
		Update(ctx context.Context, tmpl *model.TreatmentTemplate) error
		List(ctx context.Context, filters *model.TemplateFilters) ([]*model.TreatmentTemplate, error)
	}

	PlanRepository interface {
		Create(ctx context.Context, plan *model.TreatmentPlan, events ...*model.OutboxEvent) error
		// Get loads the plan with its items.
		Get(ctx context.Context, id uuid.UUID) (*model.TreatmentPlan, error)
		ListPlanItems(ctx context.Context, planID uuid.UUID) ([]model.TreatmentPlanItem, error)
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.TreatmentPlan, error)
		ListAll(ctx context.Context) ([]*model.TreatmentPlan, error)
		// Update writes plan fields, and replaces items when replaceItems is
		// set, only if the stored version still equals plan.Version. On
		// success plan.Version is incremented.
		Update(ctx context.Context, plan *model.TreatmentPlan, replaceItems bool, events ...*model.OutboxEvent) error
		UpdateStatus(ctx context.Context, plan *model.TreatmentPlan, events ...*model.OutboxEvent) error
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.PaymentRecord, events ...*model.OutboxEvent) error
		Get(ctx context.Context, id uuid.UUID) (*model.PaymentRecord, error)
		Update(ctx context.Context, payment *model.PaymentRecord, events ...*model.OutboxEvent) error
		ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.PaymentRecord, error)
		ListAll(ctx context.Context) ([]*model.PaymentRecord, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEvents(ctx context.Context, limit int) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error
		DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
	}

	AuditRepository interface {
		Create(ctx context.Context, log *model.AuditLog) error
		DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	}
)
