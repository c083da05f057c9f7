package finance

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func planItem(qty int64, cost string) model.TreatmentPlanItem {
	return model.TreatmentPlanItem{TreatmentTemplateID: uuid.New(), Quantity: qty, RecordedUnitCost: dec(cost)}
}

func plan(authorized *decimal.Decimal, items ...model.TreatmentPlanItem) *model.TreatmentPlan {
	p := &model.TreatmentPlan{AuthorizedAmount: authorized, Items: items}
	p.ID = uuid.New()
	return p
}

func payment(amount string) *model.PaymentRecord {
	return &model.PaymentRecord{Amount: dec(amount), Method: model.PaymentMethodCash}
}

func TestNominalCost(t *testing.T) {
	tests := []struct {
		name  string
		items []model.TreatmentPlanItem
		want  string
	}{
		{"empty", nil, "0"},
		{"single", []model.TreatmentPlanItem{planItem(3, "120")}, "360"},
		{"mixed", []model.TreatmentPlanItem{planItem(2, "500"), planItem(1, "300")}, "1300"},
		{"zero quantity", []model.TreatmentPlanItem{planItem(0, "999.99"), planItem(1, "10")}, "10"},
		{"cents stay exact", []model.TreatmentPlanItem{planItem(3, "0.1"), planItem(7, "19.99")}, "140.23"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NominalCost(tt.items)
			require.NoError(t, err)
			assertDecimal(t, tt.want, got)
		})
	}
}

func TestNominalCost_RejectsMalformedItems(t *testing.T) {
	_, err := NominalCost([]model.TreatmentPlanItem{planItem(1, "10"), planItem(-1, "10")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNegativeQuantity))

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, CodeNegativeQuantity, ve.Code)
	assert.Equal(t, 1, ve.Index)

	_, err = NominalCost([]model.TreatmentPlanItem{planItem(1, "-0.01")})
	assert.True(t, errors.Is(err, ErrInvalidCost))
}

func TestNominalCost_MatchesExactSum(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for n := 0; n < 200; n++ {
		var items []model.TreatmentPlanItem
		wantCents := int64(0)
		for i := 0; i < rng.Intn(8); i++ {
			qty := int64(rng.Intn(20))
			cents := int64(rng.Intn(1_000_000))
			wantCents += qty * cents
			items = append(items, model.TreatmentPlanItem{Quantity: qty, RecordedUnitCost: decimal.New(cents, -2)})
		}
		got, err := NominalCost(items)
		require.NoError(t, err)
		assert.True(t, decimal.New(wantCents, -2).Equal(got))
	}
}

func TestEffectiveAuthorized(t *testing.T) {
	nominal := dec("1300")

	got, err := EffectiveAuthorized(nil, nominal)
	require.NoError(t, err)
	assertDecimal(t, "1300", got)

	for _, amount := range []string{"0", "1", "999.99", "1300"} {
		got, err := EffectiveAuthorized(decPtr(amount), nominal)
		require.NoError(t, err, amount)
		assertDecimal(t, amount, got)
	}

	_, err = EffectiveAuthorized(decPtr("1300.01"), nominal)
	assert.True(t, errors.Is(err, ErrAmountExceedsNominalCost))

	_, err = EffectiveAuthorized(decPtr("-5"), nominal)
	assert.True(t, errors.Is(err, ErrInvalidCost))
}

func TestPlanFinancials(t *testing.T) {
	fin, err := PlanFinancials(plan(decPtr("1000"), planItem(2, "500"), planItem(1, "300")))
	require.NoError(t, err)
	assertDecimal(t, "1300", fin.NominalCost)
	assertDecimal(t, "1000", fin.EffectiveAuthorized)
	assertDecimal(t, "300", fin.Discount)
}

func TestOutstanding(t *testing.T) {
	patientID := uuid.New()
	plans := []*model.TreatmentPlan{
		plan(nil, planItem(2, "500")),
		plan(decPtr("500"), planItem(1, "800")),
	}
	payments := []*model.PaymentRecord{payment("-200"), payment("300"), payment("100")}

	summary, err := Outstanding(patientID, plans, payments)
	require.NoError(t, err)
	assert.Equal(t, patientID, summary.PatientID)
	assertDecimal(t, "1500", summary.AuthorizedTotal)
	assertDecimal(t, "200", summary.PaidTotal)
	assertDecimal(t, "1300", summary.Outstanding)
}

func TestOutstanding_CanGoNegative(t *testing.T) {
	summary, err := Outstanding(uuid.New(), []*model.TreatmentPlan{plan(nil, planItem(1, "100"))}, []*model.PaymentRecord{payment("250")})
	require.NoError(t, err)
	assertDecimal(t, "-150", summary.Outstanding)
}

func TestOutstanding_IsLinear(t *testing.T) {
	patientID := uuid.New()
	plans := []*model.TreatmentPlan{plan(nil, planItem(3, "75.50"))}
	payments := []*model.PaymentRecord{payment("40")}

	base, err := Outstanding(patientID, plans, payments)
	require.NoError(t, err)

	withPayment, err := Outstanding(patientID, plans, append(payments, payment("12.34")))
	require.NoError(t, err)
	assertDecimal(t, "12.34", base.Outstanding.Sub(withPayment.Outstanding))

	withPlan, err := Outstanding(patientID, append(plans, plan(decPtr("99.99"), planItem(1, "150"))), payments)
	require.NoError(t, err)
	assertDecimal(t, "99.99", withPlan.Outstanding.Sub(base.Outstanding))
}

func TestOutstanding_PropagatesPlanErrors(t *testing.T) {
	_, err := Outstanding(uuid.New(), []*model.TreatmentPlan{plan(decPtr("2000"), planItem(1, "100"))}, nil)
	assert.True(t, errors.Is(err, ErrAmountExceedsNominalCost))
}
