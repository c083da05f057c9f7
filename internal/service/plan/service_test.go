package plan_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/finance"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/memory"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/plan"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

type fixture struct {
	store   *memory.Store
	svc     *plan.Service
	metrics *metrics.Metrics
	patient *model.Patient
	tmplA   *model.TreatmentTemplate
	tmplB   *model.TreatmentTemplate
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.NewStore()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	log := logger.Nop()

	f := &fixture{
		store:   store,
		metrics: m,
		svc: plan.NewService(store.Plans(), store.Templates(), store.Patients(),
			audit.NewService(store.Audit(), log), m, log),
		patient: &model.Patient{Name: "Asha", Status: model.PatientStatusActive},
		tmplA:   &model.TreatmentTemplate{Name: "Physio", UnitCost: decimal.RequireFromString("500"), Active: true},
		tmplB:   &model.TreatmentTemplate{Name: "Massage", UnitCost: decimal.RequireFromString("300"), Active: true},
	}
	require.NoError(t, store.Patients().Create(ctx, f.patient))
	require.NoError(t, store.Templates().Create(ctx, f.tmplA))
	require.NoError(t, store.Templates().Create(ctx, f.tmplB))
	return f
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func (f *fixture) createPlan(t *testing.T, authorized *decimal.Decimal) *model.PlanWithFinancials {
	t.Helper()
	p, err := f.svc.Create(context.Background(), &model.CreatePlanRequest{
		PatientID:        f.patient.ID,
		Description:      "knee rehab",
		AuthorizedAmount: authorized,
		Items: []model.PlanItemRequest{
			{TreatmentTemplateID: f.tmplA.ID, Quantity: 1},
			{TreatmentTemplateID: f.tmplB.ID, Quantity: 2},
		},
	})
	require.NoError(t, err)
	return p
}

func TestCreatePlanSnapshotsTemplateCost(t *testing.T) {
	f := newFixture(t)

	p := f.createPlan(t, nil)

	require.Len(t, p.Items, 2)
	assert.True(t, p.Items[0].RecordedUnitCost.Equal(dec("500")))
	assert.True(t, p.Items[1].RecordedUnitCost.Equal(dec("300")))
	assert.Equal(t, "Massage", p.Items[1].Name)
	assert.True(t, p.Financials.NominalCost.Equal(dec("1100")))
	assert.True(t, p.Financials.EffectiveAuthorized.Equal(dec("1100")))
	assert.True(t, p.Financials.Discount.IsZero())
	assert.Equal(t, 1, p.Version)

	events := f.store.Events()
	require.Len(t, events, 1)
	assert.Equal(t, model.EventPlanCreated, events[0].EventType)
	assert.Len(t, f.store.AuditLogs(), 1)
}

func TestTemplateRepriceDoesNotTouchExistingPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, nil)

	f.tmplA.UnitCost = dec("900")
	require.NoError(t, f.store.Templates().Update(ctx, f.tmplA))

	got, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.True(t, got.Financials.NominalCost.Equal(dec("1100")))
}

func TestCreatePlanRejectsAuthorizedAboveNominal(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.CreatePlanRequest{
		PatientID:        f.patient.ID,
		AuthorizedAmount: decPtr("1100.01"),
		Items: []model.PlanItemRequest{
			{TreatmentTemplateID: f.tmplA.ID, Quantity: 1},
			{TreatmentTemplateID: f.tmplB.ID, Quantity: 2},
		},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, finance.ErrAmountExceedsNominalCost)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metrics.AuthorizationRejected))
	assert.Empty(t, f.store.Events())
}

func TestCreatePlanUnknownOrInactiveTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, &model.CreatePlanRequest{
		PatientID: f.patient.ID,
		Items:     []model.PlanItemRequest{{TreatmentTemplateID: uuid.New(), Quantity: 1}},
	})
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrBadRequest, appErr.Code)

	f.tmplB.Active = false
	require.NoError(t, f.store.Templates().Update(ctx, f.tmplB))
	_, err = f.svc.Create(ctx, &model.CreatePlanRequest{
		PatientID: f.patient.ID,
		Items:     []model.PlanItemRequest{{TreatmentTemplateID: f.tmplB.ID, Quantity: 1}},
	})
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Message, "inactive")
}

func TestCreatePlanUnknownPatient(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), &model.CreatePlanRequest{PatientID: uuid.New()})
	assert.ErrorIs(t, err, apperrors.ErrRecordNotFound)
}

func TestUpdatePlanKeepsSnapshotForKeptItems(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, nil)

	f.tmplA.UnitCost = dec("700")
	f.tmplB.UnitCost = dec("100")
	require.NoError(t, f.store.Templates().Update(ctx, f.tmplA))
	require.NoError(t, f.store.Templates().Update(ctx, f.tmplB))

	// tmplA kept with a new quantity, tmplB dropped then re-added as a second tmplA line
	updated, err := f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{
		Version: p.Version,
		Items: []model.PlanItemRequest{
			{TreatmentTemplateID: f.tmplA.ID, Quantity: 3},
			{TreatmentTemplateID: f.tmplA.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)

	require.Len(t, updated.Items, 2)
	assert.True(t, updated.Items[0].RecordedUnitCost.Equal(dec("500")))
	assert.Equal(t, int64(3), updated.Items[0].Quantity)
	assert.True(t, updated.Items[1].RecordedUnitCost.Equal(dec("700")))
	assert.True(t, updated.Financials.NominalCost.Equal(dec("2200")))
	assert.Equal(t, 2, updated.Version)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
	assert.True(t, stored.Financials.NominalCost.Equal(dec("2200")))
}

func TestUpdatePlanAuthorizedSetAndClear(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, nil)

	updated, err := f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{
		Version:          1,
		AuthorizedAmount: decPtr("1000"),
	})
	require.NoError(t, err)
	assert.True(t, updated.Financials.EffectiveAuthorized.Equal(dec("1000")))
	assert.True(t, updated.Financials.Discount.Equal(dec("100")))

	cleared, err := f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{
		Version:         2,
		ClearAuthorized: true,
	})
	require.NoError(t, err)
	assert.Nil(t, cleared.AuthorizedAmount)
	assert.True(t, cleared.Financials.EffectiveAuthorized.Equal(dec("1100")))
}

func TestUpdatePlanItemsBelowAuthorizedRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, decPtr("1000"))

	_, err := f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{
		Version: 1,
		Items:   []model.PlanItemRequest{{TreatmentTemplateID: f.tmplA.ID, Quantity: 1}},
	})
	assert.ErrorIs(t, err, finance.ErrAmountExceedsNominalCost)

	stored, err := f.svc.Get(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, 1, stored.Version)
}

func TestUpdatePlanStaleVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, nil)

	desc := "first"
	_, err := f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{Version: 1, Description: &desc})
	require.NoError(t, err)

	desc = "second"
	_, err = f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{Version: 1, Description: &desc})
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestUpdateStatusTransitions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	p := f.createPlan(t, nil)

	done, err := f.svc.UpdateStatus(ctx, p.ID, model.PlanStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.PlanStatusCompleted, done.Status)

	_, err = f.svc.UpdateStatus(ctx, p.ID, model.PlanStatusCancelled)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)

	reopened, err := f.svc.UpdateStatus(ctx, p.ID, model.PlanStatusActive)
	require.NoError(t, err)
	assert.Equal(t, 3, reopened.Version)

	cancelled, err := f.svc.UpdateStatus(ctx, p.ID, model.PlanStatusCancelled)
	require.NoError(t, err)

	desc := "late edit"
	_, err = f.svc.Update(ctx, p.ID, &model.UpdatePlanRequest{Version: cancelled.Version, Description: &desc})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrConflict, appErr.Code)
}
