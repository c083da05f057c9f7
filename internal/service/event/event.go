// Package event builds the finance events written to the outbox alongside
// the change they describe.
package event

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

type PlanPayload struct {
	PlanID              uuid.UUID        `json:"plan_id"`
	PatientID           uuid.UUID        `json:"patient_id"`
	Status              model.PlanStatus `json:"status"`
	Version             int              `json:"version"`
	NominalCost         decimal.Decimal  `json:"nominal_cost"`
	EffectiveAuthorized decimal.Decimal  `json:"effective_authorized"`
}

type PaymentPayload struct {
	PaymentID uuid.UUID           `json:"payment_id"`
	PatientID uuid.UUID           `json:"patient_id"`
	Amount    decimal.Decimal     `json:"amount"`
	Method    model.PaymentMethod `json:"method"`
}

type InvoicePayload struct {
	PlanID    uuid.UUID       `json:"plan_id"`
	PatientID uuid.UUID       `json:"patient_id"`
	Total     decimal.Decimal `json:"total"`
	Discount  decimal.Decimal `json:"discount"`
	Rescaled  bool            `json:"rescaled"`
	Emailed   bool            `json:"emailed"`
}

// New marshals payload into a pending outbox event of the given type.
func New(eventType string, payload interface{}) (*model.OutboxEvent, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventType, err)
	}
	return &model.OutboxEvent{
		ID:        uuid.New(),
		EventType: eventType,
		Payload:   b,
		Status:    model.OutboxStatusPending,
	}, nil
}

func ForPlan(eventType string, plan *model.TreatmentPlan, fin model.PlanFinancials) (*model.OutboxEvent, error) {
	return New(eventType, PlanPayload{
		PlanID:              plan.ID,
		PatientID:           plan.PatientID,
		Status:              plan.Status,
		Version:             plan.Version,
		NominalCost:         fin.NominalCost,
		EffectiveAuthorized: fin.EffectiveAuthorized,
	})
}

func ForPayment(eventType string, p *model.PaymentRecord) (*model.OutboxEvent, error) {
	return New(eventType, PaymentPayload{
		PaymentID: p.ID,
		PatientID: p.PatientID,
		Amount:    p.Amount,
		Method:    p.Method,
	})
}
