package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type InvoiceLine struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Quantity    int64           `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
}

type GenerateInvoiceRequest struct {
	From       string           `json:"from"`
	To         string           `json:"to"`
	AmountPaid *decimal.Decimal `json:"amount_paid" binding:"omitempty,decimal_cents"`
	Notes      string           `json:"notes" binding:"max=2000"`
}

// InvoicePreview is what the renderer would receive for a plan.
type InvoicePreview struct {
	PlanID      uuid.UUID       `json:"plan_id"`
	Lines       []InvoiceLine   `json:"lines"`
	NominalCost decimal.Decimal `json:"nominal_cost"`
	Authorized  decimal.Decimal `json:"authorized"`
	Discount    decimal.Decimal `json:"discount"`
	Rescaled    bool            `json:"rescaled"`
	Discrepancy decimal.Decimal `json:"discrepancy"`
	Warnings    []string        `json:"warnings,omitempty"`
}

// OverdueSummary is derived from plans and payments and never stored.
type OverdueSummary struct {
	PatientID       uuid.UUID       `json:"patient_id"`
	AuthorizedTotal decimal.Decimal `json:"authorized_total"`
	PaidTotal       decimal.Decimal `json:"paid_total"`
	Outstanding     decimal.Decimal `json:"outstanding"`
}

type OverdueReportFilters struct {
	Status          PatientStatus `form:"status" binding:"omitempty,oneof=active completed"`
	OnlyOutstanding bool          `form:"only_outstanding"`
}

type OverdueReportRow struct {
	OverdueSummary
	PatientName   string        `json:"patient_name"`
	PatientStatus PatientStatus `json:"patient_status"`
}

type OverdueReport struct {
	Rows             []OverdueReportRow `json:"rows"`
	TotalOutstanding decimal.Decimal    `json:"total_outstanding"`
}
