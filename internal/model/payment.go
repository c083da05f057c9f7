package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCash   PaymentMethod = "cash"
	PaymentMethodOnline PaymentMethod = "online"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCash || m == PaymentMethodOnline
}

// PaymentRecord is attributed to a patient, not to a plan. Negative amounts
// are refunds or adjustments.
type PaymentRecord struct {
	Base
	PatientID uuid.UUID       `db:"patient_id" json:"patient_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Method    PaymentMethod   `db:"method" json:"method"`
	Notes     string          `db:"notes" json:"notes,omitempty"`
}

type CreatePaymentRequest struct {
	PatientID uuid.UUID       `json:"patient_id" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"decimal_cents"`
	Method    PaymentMethod   `json:"method" binding:"required,payment_method"`
	Notes     string          `json:"notes" binding:"max=1000"`
}

type UpdatePaymentRequest struct {
	Amount *decimal.Decimal `json:"amount" binding:"omitempty,decimal_cents"`
	Method *PaymentMethod   `json:"method" binding:"omitempty,payment_method"`
	Notes  *string          `json:"notes" binding:"omitempty,max=1000"`
}
