package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TreatmentTemplate is a billable treatment offered by the clinic. Plans read
// its unit cost only when an item is created; later edits do not reprice
// existing plan items.
type TreatmentTemplate struct {
	Base
	Name              string          `db:"name" json:"name"`
	UnitCost          decimal.Decimal `db:"unit_cost" json:"unit_cost"`
	TotalSessions     int             `db:"total_sessions" json:"total_sessions"`
	MinutesPerSession int             `db:"minutes_per_session" json:"minutes_per_session"`
	Active            bool            `db:"active" json:"active"`
}

type TemplateFilters struct {
	ActiveOnly bool `form:"active_only"`
}

type CreateTemplateRequest struct {
	Name              string          `json:"name" binding:"required"`
	UnitCost          decimal.Decimal `json:"unit_cost" binding:"decimal_nonneg,decimal_cents"`
	TotalSessions     int             `json:"total_sessions" binding:"gte=0"`
	MinutesPerSession int             `json:"minutes_per_session" binding:"gte=0"`
}

type UpdateTemplateRequest struct {
	Name              *string          `json:"name"`
	UnitCost          *decimal.Decimal `json:"unit_cost" binding:"omitempty,decimal_nonneg,decimal_cents"`
	TotalSessions     *int             `json:"total_sessions" binding:"omitempty,gte=0"`
	MinutesPerSession *int             `json:"minutes_per_session" binding:"omitempty,gte=0"`
	Active            *bool            `json:"active"`
}

type PlanStatus string

const (
	PlanStatusActive    PlanStatus = "active"
	PlanStatusCompleted PlanStatus = "completed"
	PlanStatusCancelled PlanStatus = "cancelled"
)

// CanTransitionTo reports whether a plan may move from s to next.
func (s PlanStatus) CanTransitionTo(next PlanStatus) bool {
	switch s {
	case PlanStatusActive:
		return next == PlanStatusCompleted || next == PlanStatusCancelled
	case PlanStatusCompleted:
		return next == PlanStatusActive
	}
	return false
}

// TreatmentPlanItem is owned by its plan. RecordedUnitCost is the template
// price captured when the item was added.
type TreatmentPlanItem struct {
	PlanID              uuid.UUID       `db:"plan_id" json:"plan_id"`
	TreatmentTemplateID uuid.UUID       `db:"treatment_template_id" json:"treatment_template_id"`
	Name                string          `db:"name" json:"name"`
	Quantity            int64           `db:"quantity" json:"quantity"`
	RecordedUnitCost    decimal.Decimal `db:"recorded_unit_cost" json:"recorded_unit_cost"`
}

type TreatmentPlan struct {
	Base
	PatientID        uuid.UUID           `db:"patient_id" json:"patient_id"`
	Description      string              `db:"description" json:"description"`
	AuthorizedAmount *decimal.Decimal    `db:"authorized_amount" json:"authorized_amount"`
	Status           PlanStatus          `db:"status" json:"status"`
	Version          int                 `db:"version" json:"version"`
	Items            []TreatmentPlanItem `db:"-" json:"items"`
}

type PlanItemRequest struct {
	TreatmentTemplateID uuid.UUID `json:"treatment_template_id" binding:"required"`
	Quantity            int64     `json:"quantity" binding:"gte=0"`
}

type CreatePlanRequest struct {
	PatientID        uuid.UUID         `json:"patient_id" binding:"required"`
	Description      string            `json:"description"`
	AuthorizedAmount *decimal.Decimal  `json:"authorized_amount" binding:"omitempty,decimal_nonneg,decimal_cents"`
	Items            []PlanItemRequest `json:"items" binding:"dive"`
}

// UpdatePlanRequest changes a plan. Items, when present, replace the plan's
// item list. ClearAuthorized resets the authorized amount to unset.
type UpdatePlanRequest struct {
	Version          int               `json:"version" binding:"gte=1"`
	Description      *string           `json:"description"`
	AuthorizedAmount *decimal.Decimal  `json:"authorized_amount" binding:"omitempty,decimal_nonneg,decimal_cents"`
	ClearAuthorized  bool              `json:"clear_authorized"`
	Items            []PlanItemRequest `json:"items" binding:"omitempty,dive"`
}

type UpdatePlanStatusRequest struct {
	Status PlanStatus `json:"status" binding:"required,oneof=active completed cancelled"`
}

// PlanFinancials is the derived money view of a plan.
type PlanFinancials struct {
	NominalCost         decimal.Decimal `json:"nominal_cost"`
	EffectiveAuthorized decimal.Decimal `json:"effective_authorized"`
	Discount            decimal.Decimal `json:"discount"`
}

type PlanWithFinancials struct {
	*TreatmentPlan
	Financials PlanFinancials `json:"financials"`
}
