package finance

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

// Outstanding computes Σ effective authorized amount over plans minus
// Σ payment amounts. The result is negative when the patient has overpaid;
// clamping for display is the caller's business. Plan and patient status are
// ignored: callers filter the inputs, never the arithmetic.
func Outstanding(patientID uuid.UUID, plans []*model.TreatmentPlan, payments []*model.PaymentRecord) (model.OverdueSummary, error) {
	authorized := decimal.Zero
	for _, plan := range plans {
		fin, err := PlanFinancials(plan)
		if err != nil {
			return model.OverdueSummary{}, fmt.Errorf("plan %s: %w", plan.ID, err)
		}
		authorized = authorized.Add(fin.EffectiveAuthorized)
	}

	paid := decimal.Zero
	for _, p := range payments {
		paid = paid.Add(p.Amount)
	}

	return model.OverdueSummary{
		PatientID:       patientID,
		AuthorizedTotal: authorized,
		PaidTotal:       paid,
		Outstanding:     authorized.Sub(paid),
	}, nil
}
