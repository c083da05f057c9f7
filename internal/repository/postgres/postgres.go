package postgres

import (
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-finance/internal/repository"
)

type patientRepository struct {
	BaseRepository
}

type templateRepository struct {
	BaseRepository
}

type planRepository struct {
	BaseRepository
}

type paymentRepository struct {
	BaseRepository
}

type outboxRepository struct {
	BaseRepository
}

type auditRepository struct {
	BaseRepository
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{NewBaseRepository(db)}
}

func NewTemplateRepository(db *sqlx.DB) repository.TemplateRepository {
	return &templateRepository{NewBaseRepository(db)}
}

func NewPlanRepository(db *sqlx.DB) repository.PlanRepository {
	return &planRepository{NewBaseRepository(db)}
}

func NewPaymentRepository(db *sqlx.DB) repository.PaymentRepository {
	return &paymentRepository{NewBaseRepository(db)}
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func NewAuditRepository(db *sqlx.DB) repository.AuditRepository {
	return &auditRepository{NewBaseRepository(db)}
}
