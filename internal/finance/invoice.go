package finance

import (
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// centPlaces is the precision rescaled unit costs are rounded to.
const centPlaces = 2

var halfCent = decimal.New(5, -3)

// Adjustment is the result of AdjustLines. Total is the post-rounding sum of
// the adjusted lines and Discrepancy is Total minus Target.
type Adjustment struct {
	Lines       []model.InvoiceLine
	Target      decimal.Decimal
	Total       decimal.Decimal
	Discrepancy decimal.Decimal
	Warnings    []Warning
}

// AdjustLines rescales every unit cost by target / current total so the
// invoice adds up to target, then rounds each unit cost to cents.
//
// Rounding means the adjusted total is only approximately target: each unit
// cost moves by at most half a cent, so the invoice can be off by up to
// RoundingTolerance(lines). The actual difference is returned in
// Discrepancy and is not corrected.
//
// The bound is often quoted as len(lines) × 0.005. That only holds when every
// quantity is 1: the half cent lands on the unit cost and is multiplied by
// the quantity, so the real bound is Σ quantity × 0.005.
//
// When the current total is zero there is no ratio to apply; target is split
// evenly so every line gets unit cost target / len(lines), and the result
// carries WarningZeroNominalCost.
func AdjustLines(lines []model.InvoiceLine, target decimal.Decimal) (*Adjustment, error) {
	if target.IsNegative() {
		return nil, newValidationError(CodeInvalidCost, -1, ErrInvalidCost)
	}
	current, err := LinesTotal(lines)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		if !target.IsZero() {
			return nil, newValidationError(CodeNoLineItems, -1, ErrNoLineItems)
		}
		return &Adjustment{Lines: []model.InvoiceLine{}, Target: target, Total: decimal.Zero, Discrepancy: decimal.Zero}, nil
	}

	adj := &Adjustment{
		Lines:  make([]model.InvoiceLine, len(lines)),
		Target: target,
	}
	copy(adj.Lines, lines)

	var share decimal.Decimal
	if current.IsZero() {
		share = target.Div(decimal.NewFromInt(int64(len(lines)))).Round(centPlaces)
		adj.Warnings = append(adj.Warnings, WarningZeroNominalCost)
	}

	adj.Total = decimal.Zero
	for i := range adj.Lines {
		line := &adj.Lines[i]
		if current.IsZero() {
			line.UnitCost = share
		} else {
			// multiply before dividing so the ratio keeps full precision
			line.UnitCost = line.UnitCost.Mul(target).Div(current).Round(centPlaces)
		}
		adj.Total = adj.Total.Add(line.UnitCost.Mul(decimal.NewFromInt(line.Quantity)))
	}
	adj.Discrepancy = adj.Total.Sub(target)
	return adj, nil
}

// RoundingTolerance is the largest |Discrepancy| proportional rescaling can
// produce for lines: half a cent per unit billed.
func RoundingTolerance(lines []model.InvoiceLine) decimal.Decimal {
	var units int64
	for _, line := range lines {
		if line.Quantity > 0 {
			units += line.Quantity
		}
	}
	return halfCent.Mul(decimal.NewFromInt(units))
}
