// Package billing derives balances, overdue reports and invoices from plans
// and payments.
package billing

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"github.com/jwalitptl/clinic-finance/internal/finance"
	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/internal/service/audit"
	"github.com/jwalitptl/clinic-finance/internal/service/event"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
	"github.com/jwalitptl/clinic-finance/pkg/invoice"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
	"github.com/jwalitptl/clinic-finance/pkg/mailer"
	"github.com/jwalitptl/clinic-finance/pkg/metrics"
)

type Config struct {
	// ClinicName is the invoice sender when a request does not name one.
	ClinicName  string
	MailSubject string
}

type Service struct {
	cfg      Config
	patients repository.PatientRepository
	plans    repository.PlanRepository
	payments repository.PaymentRepository
	outbox   repository.OutboxRepository
	renderer invoice.Renderer
	mail     mailer.Sender
	auditor  *audit.Service
	metrics  *metrics.Metrics
	logger   *logger.Logger
}

type Deps struct {
	Patients repository.PatientRepository
	Plans    repository.PlanRepository
	Payments repository.PaymentRepository
	Outbox   repository.OutboxRepository
	Renderer invoice.Renderer
	Mailer   mailer.Sender
	Auditor  *audit.Service
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

func NewService(cfg Config, deps Deps) *Service {
	if cfg.MailSubject == "" {
		cfg.MailSubject = "Your invoice"
	}
	return &Service{
		cfg:      cfg,
		patients: deps.Patients,
		plans:    deps.Plans,
		payments: deps.Payments,
		outbox:   deps.Outbox,
		renderer: deps.Renderer,
		mail:     deps.Mailer,
		auditor:  deps.Auditor,
		metrics:  deps.Metrics,
		logger:   deps.Logger,
	}
}

// billable drops cancelled plans. The aggregator itself never looks at
// status.
func billable(plans []*model.TreatmentPlan) []*model.TreatmentPlan {
	return lo.Filter(plans, func(p *model.TreatmentPlan, _ int) bool {
		return p.Status != model.PlanStatusCancelled
	})
}

// PatientBalance is the patient's outstanding amount over all non-cancelled
// plans. A negative result means the patient is in credit.
func (s *Service) PatientBalance(ctx context.Context, patientID uuid.UUID) (*model.OverdueSummary, error) {
	if _, err := s.patients.Get(ctx, patientID); err != nil {
		return nil, err
	}
	plans, err := s.plans.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByPatient(ctx, patientID)
	if err != nil {
		return nil, err
	}

	summary, err := finance.Outstanding(patientID, billable(plans), payments)
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

// OverdueReport computes a balance row per patient. Filtering by patient
// status selects which patients are reported; OnlyOutstanding then hides
// rows that are settled or in credit. TotalOutstanding sums the positive
// balances only.
func (s *Service) OverdueReport(ctx context.Context, filters *model.OverdueReportFilters) (*model.OverdueReport, error) {
	patients, err := s.patients.ListByStatus(ctx, filters.Status)
	if err != nil {
		return nil, err
	}
	plans, err := s.plans.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	payments, err := s.payments.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	plansByPatient := lo.GroupBy(billable(plans), func(p *model.TreatmentPlan) uuid.UUID {
		return p.PatientID
	})
	paymentsByPatient := lo.GroupBy(payments, func(p *model.PaymentRecord) uuid.UUID {
		return p.PatientID
	})

	report := &model.OverdueReport{
		Rows:             []model.OverdueReportRow{},
		TotalOutstanding: decimal.Zero,
	}
	for _, patient := range patients {
		summary, err := finance.Outstanding(patient.ID, plansByPatient[patient.ID], paymentsByPatient[patient.ID])
		if err != nil {
			return nil, fmt.Errorf("patient %s: %w", patient.ID, err)
		}
		if filters.OnlyOutstanding && !summary.Outstanding.IsPositive() {
			continue
		}
		report.Rows = append(report.Rows, model.OverdueReportRow{
			OverdueSummary: summary,
			PatientName:    patient.Name,
			PatientStatus:  patient.Status,
		})
		if summary.Outstanding.IsPositive() {
			report.TotalOutstanding = report.TotalOutstanding.Add(summary.Outstanding)
		}
	}
	return report, nil
}

// RefreshBalanceMetrics publishes outstanding totals per patient status.
func (s *Service) RefreshBalanceMetrics(ctx context.Context) error {
	report, err := s.OverdueReport(ctx, &model.OverdueReportFilters{})
	if err != nil {
		return err
	}

	for _, status := range []model.PatientStatus{model.PatientStatusActive, model.PatientStatusCompleted} {
		rows := lo.Filter(report.Rows, func(r model.OverdueReportRow, _ int) bool {
			return r.PatientStatus == status && r.Outstanding.IsPositive()
		})
		total := lo.Reduce(rows, func(acc decimal.Decimal, r model.OverdueReportRow, _ int) decimal.Decimal {
			return acc.Add(r.Outstanding)
		}, decimal.Zero)

		s.metrics.OutstandingBalance.WithLabelValues(string(status)).Set(total.InexactFloat64())
		s.metrics.PatientsWithBalanceDue.WithLabelValues(string(status)).Set(float64(len(rows)))
	}
	return nil
}

// Preview builds the invoice lines for a plan. Lines are rescaled to the
// effective authorized amount only when it is below the nominal cost, or
// when every line is free so the even split can flag the plan.
func (s *Service) Preview(ctx context.Context, planID uuid.UUID) (*model.InvoicePreview, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	return s.preview(plan)
}

func (s *Service) preview(plan *model.TreatmentPlan) (*model.InvoicePreview, error) {
	fin, err := finance.PlanFinancials(plan)
	if err != nil {
		return nil, err
	}

	lines := lo.Map(plan.Items, func(item model.TreatmentPlanItem, _ int) model.InvoiceLine {
		return model.InvoiceLine{
			Name:     item.Name,
			Quantity: item.Quantity,
			UnitCost: item.RecordedUnitCost,
		}
	})

	preview := &model.InvoicePreview{
		PlanID:      plan.ID,
		Lines:       lines,
		NominalCost: fin.NominalCost,
		Authorized:  fin.EffectiveAuthorized,
		Discount:    fin.Discount,
		Discrepancy: decimal.Zero,
	}

	zeroCost := fin.NominalCost.IsZero() && len(lines) > 0
	if !fin.EffectiveAuthorized.LessThan(fin.NominalCost) && !zeroCost {
		return preview, nil
	}

	adj, err := finance.AdjustLines(lines, fin.EffectiveAuthorized)
	if err != nil {
		return nil, err
	}
	preview.Lines = adj.Lines
	preview.Rescaled = true
	preview.Discrepancy = adj.Discrepancy
	for _, w := range adj.Warnings {
		preview.Warnings = append(preview.Warnings, string(w))
		if w == finance.WarningZeroNominalCost {
			s.metrics.ZeroNominalCostPlans.Inc()
			s.logger.Warn("plan has zero nominal cost; amount split evenly across lines",
				"plan_id", plan.ID.String(),
				"lines", len(lines),
			)
		}
	}
	s.metrics.InvoiceRoundingDrift.Observe(adj.Discrepancy.Abs().InexactFloat64())
	return preview, nil
}

// Invoice is a rendered document together with the figures it was built from.
type Invoice struct {
	Document *invoice.Document
	Preview  *model.InvoicePreview
	Patient  *model.Patient
}

// GenerateInvoice renders the plan's invoice. The renderer receives the
// adjusted lines and, separately, the discount against nominal cost.
func (s *Service) GenerateInvoice(ctx context.Context, planID uuid.UUID, req *model.GenerateInvoiceRequest) (*Invoice, error) {
	inv, err := s.render(ctx, planID, req)
	if err != nil {
		return nil, err
	}
	s.recordInvoice(ctx, inv, false)
	return inv, nil
}

// EmailInvoice renders the plan's invoice and mails it to the patient.
func (s *Service) EmailInvoice(ctx context.Context, planID uuid.UUID, req *model.GenerateInvoiceRequest) (*Invoice, error) {
	inv, err := s.render(ctx, planID, req)
	if err != nil {
		return nil, err
	}
	if inv.Patient.Email == "" {
		return nil, apperrors.BadRequest("patient has no email address", nil)
	}

	err = s.mail.Send(&mailer.Message{
		To:      inv.Patient.Email,
		Subject: s.cfg.MailSubject,
		Body:    fmt.Sprintf("Dear %s,\n\nPlease find your invoice attached.\n\n%s", inv.Patient.Name, s.cfg.ClinicName),
		Attachment: &mailer.Attachment{
			Filename:    invoiceNumber(planID) + ".pdf",
			ContentType: inv.Document.ContentType,
			Body:        inv.Document.Body,
		},
	})
	if err != nil {
		return nil, apperrors.Upstream("failed to email invoice", err)
	}

	s.recordInvoice(ctx, inv, true)
	return inv, nil
}

func (s *Service) render(ctx context.Context, planID uuid.UUID, req *model.GenerateInvoiceRequest) (*Invoice, error) {
	plan, err := s.plans.Get(ctx, planID)
	if err != nil {
		return nil, err
	}
	patient, err := s.patients.Get(ctx, plan.PatientID)
	if err != nil {
		return nil, err
	}
	preview, err := s.preview(plan)
	if err != nil {
		return nil, err
	}

	rr := &invoice.Request{
		Number:     invoiceNumber(plan.ID),
		From:       lo.Ternary(req.From != "", req.From, s.cfg.ClinicName),
		To:         lo.Ternary(req.To != "", req.To, patient.Name),
		AmountPaid: req.AmountPaid,
		Notes:      req.Notes,
		Items: lo.Map(preview.Lines, func(l model.InvoiceLine, _ int) invoice.Item {
			return invoice.Item{
				Name:        l.Name,
				Quantity:    l.Quantity,
				UnitCost:    l.UnitCost,
				Description: l.Description,
			}
		}),
	}
	if preview.Discount.IsPositive() {
		rr.Discounts = &preview.Discount
	}

	start := time.Now()
	doc, err := s.renderer.Render(ctx, rr)
	s.metrics.InvoiceRenderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.InvoicesGenerated.WithLabelValues("failed", strconv.FormatBool(preview.Rescaled)).Inc()
		return nil, apperrors.Upstream("failed to render invoice", err)
	}
	s.metrics.InvoicesGenerated.WithLabelValues("success", strconv.FormatBool(preview.Rescaled)).Inc()

	return &Invoice{Document: doc, Preview: preview, Patient: patient}, nil
}

// recordInvoice writes the invoice event and audit entry. Rendering has no
// stored state to commit with, so the event goes straight to the outbox.
func (s *Service) recordInvoice(ctx context.Context, inv *Invoice, emailed bool) {
	total, _ := finance.LinesTotal(inv.Preview.Lines)
	evt, err := event.New(model.EventInvoiceGenerated, event.InvoicePayload{
		PlanID:    inv.Preview.PlanID,
		PatientID: inv.Patient.ID,
		Total:     total,
		Discount:  inv.Preview.Discount,
		Rescaled:  inv.Preview.Rescaled,
		Emailed:   emailed,
	})
	if err == nil {
		err = s.outbox.Create(ctx, evt)
	}
	if err != nil {
		s.logger.Error(err, "failed to record invoice event", "plan_id", inv.Preview.PlanID.String())
	}

	s.auditor.Log(ctx, model.AuditActionRender, "invoice", inv.Preview.PlanID, map[string]interface{}{
		"total":    total,
		"discount": inv.Preview.Discount,
		"emailed":  emailed,
	})
}

func invoiceNumber(planID uuid.UUID) string {
	return "INV-" + strings.ToUpper(planID.String()[:8])
}
