package billing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/memory"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/billing"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/invoice"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/mailer"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

type fakeRenderer struct {
	requests []*invoice.Request
	err      error
}

func (r *fakeRenderer) Render(_ context.Context, req *invoice.Request) (*invoice.Document, error) {
	r.requests = append(r.requests, req)
	if r.err != nil {
		return nil, r.err
	}
	return &invoice.Document{ContentType: "application/pdf", Body: []byte("%PDF-1.4")}, nil
}

type fakeMailer struct {
	sent []*mailer.Message
}

func (m *fakeMailer) Send(msg *mailer.Message) error {
	m.sent = append(m.sent, msg)
	return nil
}

type BillingSuite struct {
	suite.Suite
	ctx      context.Context
	store    *memory.Store
	renderer *fakeRenderer
	mail     *fakeMailer
	metrics  *metrics.Metrics
	svc      *billing.Service
	patient  *model.Patient
}

func TestBillingSuite(t *testing.T) {
	suite.Run(t, new(BillingSuite))
}

func (s *BillingSuite) SetupTest() {
	s.ctx = context.Background()
	s.store = memory.NewStore()
	s.renderer = &fakeRenderer{}
	s.mail = &fakeMailer{}
	s.metrics = metrics.NewMetrics("test", prometheus.NewRegistry())
	log := logger.Nop()

	s.svc = billing.NewService(billing.Config{ClinicName: "Sunrise Physio"}, billing.Deps{
		Patients: s.store.Patients(),
		Plans:    s.store.Plans(),
		Payments: s.store.Payments(),
		Outbox:   s.store.Outbox(),
		Renderer: s.renderer,
		Mailer:   s.mail,
		Auditor:  audit.NewService(s.store.Audit(), log),
		Metrics:  s.metrics,
		Logger:   log,
	})
	s.patient = s.addPatient("Asha", "asha@example.com", model.PatientStatusActive)
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func decPtr(v string) *decimal.Decimal {
	d := dec(v)
	return &d
}

func (s *BillingSuite) assertDecimal(want string, got decimal.Decimal) {
	s.T().Helper()
	s.Truef(dec(want).Equal(got), "want %s, got %s", want, got)
}

func (s *BillingSuite) addPatient(name, email string, status model.PatientStatus) *model.Patient {
	p := &model.Patient{Name: name, Email: email, Status: status}
	s.Require().NoError(s.store.Patients().Create(s.ctx, p))
	return p
}

func item(name string, qty int64, cost string) model.TreatmentPlanItem {
	return model.TreatmentPlanItem{TreatmentTemplateID: uuid.New(), Name: name, Quantity: qty, RecordedUnitCost: dec(cost)}
}

func (s *BillingSuite) addPlan(patient *model.Patient, authorized *decimal.Decimal, items ...model.TreatmentPlanItem) *model.TreatmentPlan {
	p := &model.TreatmentPlan{PatientID: patient.ID, AuthorizedAmount: authorized, Items: items}
	s.Require().NoError(s.store.Plans().Create(s.ctx, p))
	return p
}

func (s *BillingSuite) addPayment(patient *model.Patient, amount string) {
	s.Require().NoError(s.store.Payments().Create(s.ctx, &model.PaymentRecord{
		PatientID: patient.ID,
		Amount:    dec(amount),
		Method:    model.PaymentMethodCash,
	}))
}

func (s *BillingSuite) standardPlan(authorized *decimal.Decimal) *model.TreatmentPlan {
	return s.addPlan(s.patient, authorized, item("Physio", 2, "500"), item("Massage", 1, "300"))
}

func (s *BillingSuite) TestPreviewWithoutDiscountLeavesLines() {
	p := s.standardPlan(nil)

	preview, err := s.svc.Preview(s.ctx, p.ID)
	s.Require().NoError(err)

	s.False(preview.Rescaled)
	s.assertDecimal("1300", preview.NominalCost)
	s.assertDecimal("1300", preview.Authorized)
	s.assertDecimal("0", preview.Discount)
	s.assertDecimal("500", preview.Lines[0].UnitCost)
	s.assertDecimal("300", preview.Lines[1].UnitCost)
}

func (s *BillingSuite) TestPreviewAtExactNominalIsUnchanged() {
	p := s.standardPlan(decPtr("1300"))

	preview, err := s.svc.Preview(s.ctx, p.ID)
	s.Require().NoError(err)
	s.False(preview.Rescaled)
	s.assertDecimal("500", preview.Lines[0].UnitCost)
}

func (s *BillingSuite) TestGenerateInvoiceRescalesToAuthorized() {
	p := s.standardPlan(decPtr("1000"))

	inv, err := s.svc.GenerateInvoice(s.ctx, p.ID, &model.GenerateInvoiceRequest{AmountPaid: decPtr("200")})
	s.Require().NoError(err)

	s.True(inv.Preview.Rescaled)
	s.assertDecimal("0.01", inv.Preview.Discrepancy)

	s.Require().Len(s.renderer.requests, 1)
	req := s.renderer.requests[0]
	s.Equal("Sunrise Physio", req.From)
	s.Equal("Asha", req.To)
	s.Require().Len(req.Items, 2)
	s.assertDecimal("384.62", req.Items[0].UnitCost)
	s.Equal(int64(2), req.Items[0].Quantity)
	s.assertDecimal("230.77", req.Items[1].UnitCost)
	s.Require().NotNil(req.Discounts)
	s.assertDecimal("300", *req.Discounts)
	s.assertDecimal("200", *req.AmountPaid)

	s.Equal(float64(1), testutil.ToFloat64(s.metrics.InvoicesGenerated.WithLabelValues("success", "true")))

	events := s.store.Events()
	s.Require().NotEmpty(events)
	s.Equal(model.EventInvoiceGenerated, events[len(events)-1].EventType)
}

func (s *BillingSuite) TestGenerateInvoiceRefusesInvalidAuthorized() {
	p := s.standardPlan(decPtr("1400"))

	_, err := s.svc.GenerateInvoice(s.ctx, p.ID, &model.GenerateInvoiceRequest{})
	s.Error(err)
	s.Empty(s.renderer.requests)
}

func (s *BillingSuite) TestGenerateInvoiceRendererFailure() {
	p := s.standardPlan(nil)
	s.renderer.err = errors.New("boom")

	_, err := s.svc.GenerateInvoice(s.ctx, p.ID, &model.GenerateInvoiceRequest{})

	var appErr *apperrors.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Equal(apperrors.ErrUpstream, appErr.Code)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.InvoicesGenerated.WithLabelValues("failed", "false")))
}

func (s *BillingSuite) TestZeroCostPlanIsFlagged() {
	p := s.addPlan(s.patient, nil, item("A", 1, "0"), item("B", 1, "0"), item("C", 1, "0"))

	preview, err := s.svc.Preview(s.ctx, p.ID)
	s.Require().NoError(err)

	s.Contains(preview.Warnings, "ZeroNominalCost")
	for _, l := range preview.Lines {
		s.assertDecimal("0", l.UnitCost)
	}
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.ZeroNominalCostPlans))
}

func (s *BillingSuite) TestEmailInvoice() {
	p := s.standardPlan(nil)

	_, err := s.svc.EmailInvoice(s.ctx, p.ID, &model.GenerateInvoiceRequest{})
	s.Require().NoError(err)

	s.Require().Len(s.mail.sent, 1)
	msg := s.mail.sent[0]
	s.Equal("asha@example.com", msg.To)
	s.Require().NotNil(msg.Attachment)
	s.Equal("application/pdf", msg.Attachment.ContentType)
}

func (s *BillingSuite) TestEmailInvoiceWithoutAddress() {
	noMail := s.addPatient("Ravi", "", model.PatientStatusActive)
	p := s.addPlan(noMail, nil, item("Physio", 1, "500"))

	_, err := s.svc.EmailInvoice(s.ctx, p.ID, &model.GenerateInvoiceRequest{})

	var appErr *apperrors.AppError
	s.Require().ErrorAs(err, &appErr)
	s.Equal(apperrors.ErrBadRequest, appErr.Code)
	s.Empty(s.mail.sent)
}

func (s *BillingSuite) TestPatientBalance() {
	s.addPlan(s.patient, decPtr("1000"), item("Physio", 3, "400"))
	s.addPlan(s.patient, nil, item("Massage", 1, "500"))
	s.addPayment(s.patient, "-200")
	s.addPayment(s.patient, "300")
	s.addPayment(s.patient, "100")

	summary, err := s.svc.PatientBalance(s.ctx, s.patient.ID)
	s.Require().NoError(err)

	s.assertDecimal("1500", summary.AuthorizedTotal)
	s.assertDecimal("200", summary.PaidTotal)
	s.assertDecimal("1300", summary.Outstanding)
}

func (s *BillingSuite) TestPatientBalanceSkipsCancelledPlans() {
	s.addPlan(s.patient, nil, item("Physio", 1, "500"))
	cancelled := s.addPlan(s.patient, nil, item("Massage", 1, "800"))
	cancelled.Status = model.PlanStatusCancelled
	s.Require().NoError(s.store.Plans().UpdateStatus(s.ctx, cancelled))
	s.addPayment(s.patient, "600")

	summary, err := s.svc.PatientBalance(s.ctx, s.patient.ID)
	s.Require().NoError(err)
	s.assertDecimal("-100", summary.Outstanding)
}

func (s *BillingSuite) TestPatientBalanceUnknownPatient() {
	_, err := s.svc.PatientBalance(s.ctx, uuid.New())
	s.ErrorIs(err, apperrors.ErrRecordNotFound)
}

func (s *BillingSuite) TestOverdueReport() {
	done := s.addPatient("Meera", "", model.PatientStatusCompleted)
	credit := s.addPatient("Zoya", "", model.PatientStatusActive)

	s.addPlan(s.patient, nil, item("Physio", 1, "500"))
	s.addPayment(s.patient, "100")
	s.addPlan(done, nil, item("Physio", 1, "700"))
	s.addPlan(credit, nil, item("Physio", 1, "100"))
	s.addPayment(credit, "150")

	all, err := s.svc.OverdueReport(s.ctx, &model.OverdueReportFilters{})
	s.Require().NoError(err)
	s.Len(all.Rows, 3)
	s.assertDecimal("1100", all.TotalOutstanding)

	completed, err := s.svc.OverdueReport(s.ctx, &model.OverdueReportFilters{Status: model.PatientStatusCompleted})
	s.Require().NoError(err)
	s.Require().Len(completed.Rows, 1)
	s.Equal("Meera", completed.Rows[0].PatientName)
	s.assertDecimal("700", completed.Rows[0].Outstanding)

	due, err := s.svc.OverdueReport(s.ctx, &model.OverdueReportFilters{
		Status:          model.PatientStatusActive,
		OnlyOutstanding: true,
	})
	s.Require().NoError(err)
	s.Require().Len(due.Rows, 1)
	s.Equal(s.patient.ID, due.Rows[0].PatientID)
}

func (s *BillingSuite) TestRefreshBalanceMetrics() {
	done := s.addPatient("Meera", "", model.PatientStatusCompleted)
	s.addPlan(s.patient, nil, item("Physio", 1, "500"))
	s.addPlan(done, nil, item("Physio", 1, "250"))

	s.Require().NoError(s.svc.RefreshBalanceMetrics(s.ctx))

	s.Equal(float64(500), testutil.ToFloat64(s.metrics.OutstandingBalance.WithLabelValues("active")))
	s.Equal(float64(250), testutil.ToFloat64(s.metrics.OutstandingBalance.WithLabelValues("completed")))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.PatientsWithBalanceDue.WithLabelValues("active")))
}
