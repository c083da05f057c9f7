package finance

import (
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// ValidateAuthorized checks a staff-entered authorized amount against the
// plan's nominal cost. Amounts in [0, nominal] pass; the value is never
// clamped.
func ValidateAuthorized(authorized, nominal decimal.Decimal) error {
	if authorized.IsNegative() {
		return newValidationError(CodeInvalidCost, -1, ErrInvalidCost)
	}
	if authorized.GreaterThan(nominal) {
		return newValidationError(CodeAmountExceedsNominalCost, -1, ErrAmountExceedsNominalCost)
	}
	return nil
}

// EffectiveAuthorized returns the amount that downstream billing uses. An
// unset authorized amount means the nominal cost, not zero.
func EffectiveAuthorized(authorized *decimal.Decimal, nominal decimal.Decimal) (decimal.Decimal, error) {
	if authorized == nil {
		return nominal, nil
	}
	if err := ValidateAuthorized(*authorized, nominal); err != nil {
		return decimal.Zero, err
	}
	return *authorized, nil
}

// PlanFinancials derives nominal cost, effective authorized amount and
// discount for a plan with its items loaded.
func PlanFinancials(plan *model.TreatmentPlan) (model.PlanFinancials, error) {
	nominal, err := NominalCost(plan.Items)
	if err != nil {
		return model.PlanFinancials{}, err
	}
	effective, err := EffectiveAuthorized(plan.AuthorizedAmount, nominal)
	if err != nil {
		return model.PlanFinancials{}, err
	}
	return model.PlanFinancials{
		NominalCost:         nominal,
		EffectiveAuthorized: effective,
		Discount:            nominal.Sub(effective),
	}, nil
}
