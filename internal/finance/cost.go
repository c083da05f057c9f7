package finance

import (
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// NominalCost returns Σ quantity × recorded unit cost. It only reads the
// snapshot stored on each item; templates are never consulted, so a deleted
// or repriced template does not change an existing plan's cost.
func NominalCost(items []model.TreatmentPlanItem) (decimal.Decimal, error) {
	total := decimal.Zero
	for i, item := range items {
		if item.Quantity < 0 {
			return decimal.Zero, newValidationError(CodeNegativeQuantity, i, ErrNegativeQuantity)
		}
		if item.RecordedUnitCost.IsNegative() {
			return decimal.Zero, newValidationError(CodeInvalidCost, i, ErrInvalidCost)
		}
		total = total.Add(item.RecordedUnitCost.Mul(decimal.NewFromInt(item.Quantity)))
	}
	return total, nil
}

// LinesTotal is NominalCost for invoice lines.
func LinesTotal(lines []model.InvoiceLine) (decimal.Decimal, error) {
	total := decimal.Zero
	for i, line := range lines {
		if line.Quantity < 0 {
			return decimal.Zero, newValidationError(CodeNegativeQuantity, i, ErrNegativeQuantity)
		}
		if line.UnitCost.IsNegative() {
			return decimal.Zero, newValidationError(CodeInvalidCost, i, ErrInvalidCost)
		}
		total = total.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
	}
	return total, nil
}
