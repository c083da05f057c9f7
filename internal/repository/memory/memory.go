// Package memory holds map-backed repositories for service and handler
// tests. Stored values are copied on the way in and out so callers cannot
// mutate the store through a returned pointer.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
)

// Store backs every repository in this package. Outbox events written
// through entity mutations land in Events.
type Store struct {
	mu        sync.Mutex
	patients  map[uuid.UUID]model.Patient
	templates map[uuid.UUID]model.TreatmentTemplate
	plans     map[uuid.UUID]model.TreatmentPlan
	payments  map[uuid.UUID]model.PaymentRecord
	events    []*model.OutboxEvent
	audits    []*model.AuditLog
}

func NewStore() *Store {
	return &Store{
		patients:  make(map[uuid.UUID]model.Patient),
		templates: make(map[uuid.UUID]model.TreatmentTemplate),
		plans:     make(map[uuid.UUID]model.TreatmentPlan),
		payments:  make(map[uuid.UUID]model.PaymentRecord),
	}
}

func (s *Store) Patients() repository.PatientRepository   { return &patientRepo{s} }
func (s *Store) Templates() repository.TemplateRepository { return &templateRepo{s} }
func (s *Store) Plans() repository.PlanRepository         { return &planRepo{s} }
func (s *Store) Payments() repository.PaymentRepository   { return &paymentRepo{s} }
func (s *Store) Outbox() repository.OutboxRepository      { return &outboxRepo{s} }
func (s *Store) Audit() repository.AuditRepository        { return &auditRepo{s} }

// Events returns the outbox events written so far, oldest first.
func (s *Store) Events() []*model.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.OutboxEvent(nil), s.events...)
}

// AuditLogs returns the audit entries written so far.
func (s *Store) AuditLogs() []*model.AuditLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.AuditLog(nil), s.audits...)
}

func (s *Store) addEvents(events []*model.OutboxEvent) {
	now := time.Now().UTC()
	for _, e := range events {
		if e == nil {
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.Status = model.OutboxStatusPending
		e.CreatedAt = now
		e.UpdatedAt = now
		s.events = append(s.events, e)
	}
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, apperrors.ErrRecordNotFound)
}

type patientRepo struct{ s *Store }

func (r *patientRepo) Create(_ context.Context, p *model.Patient) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.s.patients[p.ID] = *p
	return nil
}

func (r *patientRepo) Get(_ context.Context, id uuid.UUID) (*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return nil, notFound("patient")
	}
	return &p, nil
}

func (r *patientRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.PatientStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.patients[id]
	if !ok {
		return notFound("patient")
	}
	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.s.patients[id] = p
	return nil
}

func (r *patientRepo) List(_ context.Context, f *model.PatientFilters) ([]*model.Patient, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*model.Patient
	term := strings.ToLower(f.SearchTerm)
	for _, p := range r.s.patients {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(p.Name), term) && !strings.Contains(strings.ToLower(p.Email), term) {
			continue
		}
		p := p
		all = append(all, &p)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })

	total := len(all)
	start := f.Offset()
	if start > total {
		start = total
	}
	end := start + f.Limit()
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (r *patientRepo) ListByStatus(_ context.Context, status model.PatientStatus) ([]*model.Patient, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Patient
	for _, p := range r.s.patients {
		if status != "" && p.Status != status {
			continue
		}
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type templateRepo struct{ s *Store }

func (r *templateRepo) Create(_ context.Context, t *model.TreatmentTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now().UTC()
	t.UpdatedAt = t.CreatedAt
	r.s.templates[t.ID] = *t
	return nil
}

func (r *templateRepo) Get(_ context.Context, id uuid.UUID) (*model.TreatmentTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.templates[id]
	if !ok {
		return nil, notFound("treatment template")
	}
	return &t, nil
}

func (r *templateRepo) GetMany(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.TreatmentTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[uuid.UUID]*model.TreatmentTemplate, len(ids))
	for _, id := range ids {
		if t, ok := r.s.templates[id]; ok {
			t := t
			out[id] = &t
		}
	}
	return out, nil
}

func (r *templateRepo) Update(_ context.Context, t *model.TreatmentTemplate) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.templates[t.ID]; !ok {
		return notFound("treatment template")
	}
	t.UpdatedAt = time.Now().UTC()
	r.s.templates[t.ID] = *t
	return nil
}

func (r *templateRepo) List(_ context.Context, f *model.TemplateFilters) ([]*model.TreatmentTemplate, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TreatmentTemplate
	for _, t := range r.s.templates {
		if f != nil && f.ActiveOnly && !t.Active {
			continue
		}
		t := t
		out = append(out, &t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

type planRepo struct{ s *Store }

func clonePlan(p model.TreatmentPlan) *model.TreatmentPlan {
	p.Items = append([]model.TreatmentPlanItem{}, p.Items...)
	if p.AuthorizedAmount != nil {
		a := *p.AuthorizedAmount
		p.AuthorizedAmount = &a
	}
	return &p
}

func (r *planRepo) Create(_ context.Context, p *model.TreatmentPlan, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if p.Status == "" {
		p.Status = model.PlanStatusActive
	}
	p.Version = 1
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	for i := range p.Items {
		p.Items[i].PlanID = p.ID
	}
	r.s.plans[p.ID] = *clonePlan(*p)
	r.s.addEvents(events)
	return nil
}

func (r *planRepo) Get(_ context.Context, id uuid.UUID) (*model.TreatmentPlan, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.plans[id]
	if !ok {
		return nil, notFound("treatment plan")
	}
	return clonePlan(p), nil
}

func (r *planRepo) ListPlanItems(_ context.Context, planID uuid.UUID) ([]model.TreatmentPlanItem, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.TreatmentPlanItem{}, r.s.plans[planID].Items...), nil
}

func (r *planRepo) list(keep func(model.TreatmentPlan) bool) []*model.TreatmentPlan {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.TreatmentPlan
	for _, p := range r.s.plans {
		if keep(p) {
			out = append(out, clonePlan(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (r *planRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.TreatmentPlan, error) {
	return r.list(func(p model.TreatmentPlan) bool { return p.PatientID == patientID }), nil
}

func (r *planRepo) ListAll(_ context.Context) ([]*model.TreatmentPlan, error) {
	return r.list(func(model.TreatmentPlan) bool { return true }), nil
}

func (r *planRepo) checkVersion(p *model.TreatmentPlan) (model.TreatmentPlan, error) {
	stored, ok := r.s.plans[p.ID]
	if !ok {
		return stored, notFound("treatment plan")
	}
	if stored.Version != p.Version {
		return stored, fmt.Errorf("treatment plan %s: %w", p.ID, apperrors.ErrVersionConflict)
	}
	return stored, nil
}

func (r *planRepo) Update(_ context.Context, p *model.TreatmentPlan, replaceItems bool, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, err := r.checkVersion(p)
	if err != nil {
		return err
	}
	stored.Description = p.Description
	stored.AuthorizedAmount = p.AuthorizedAmount
	if replaceItems {
		for i := range p.Items {
			p.Items[i].PlanID = p.ID
		}
		stored.Items = p.Items
	}
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	r.s.plans[p.ID] = *clonePlan(stored)
	r.s.addEvents(events)

	p.Version = stored.Version
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *planRepo) UpdateStatus(_ context.Context, p *model.TreatmentPlan, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, err := r.checkVersion(p)
	if err != nil {
		return err
	}
	stored.Status = p.Status
	stored.Version++
	stored.UpdatedAt = time.Now().UTC()
	r.s.plans[p.ID] = stored
	r.s.addEvents(events)

	p.Version = stored.Version
	p.UpdatedAt = stored.UpdatedAt
	return nil
}

type paymentRepo struct{ s *Store }

func (r *paymentRepo) Create(_ context.Context, p *model.PaymentRecord, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	r.s.payments[p.ID] = *p
	r.s.addEvents(events)
	return nil
}

func (r *paymentRepo) Get(_ context.Context, id uuid.UUID) (*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, notFound("payment")
	}
	return &p, nil
}

func (r *paymentRepo) Update(_ context.Context, p *model.PaymentRecord, events ...*model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payments[p.ID]; !ok {
		return notFound("payment")
	}
	p.UpdatedAt = time.Now().UTC()
	r.s.payments[p.ID] = *p
	r.s.addEvents(events)
	return nil
}

func (r *paymentRepo) list(keep func(model.PaymentRecord) bool) []*model.PaymentRecord {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.PaymentRecord
	for _, p := range r.s.payments {
		if keep(p) {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (r *paymentRepo) ListByPatient(_ context.Context, patientID uuid.UUID) ([]*model.PaymentRecord, error) {
	return r.list(func(p model.PaymentRecord) bool { return p.PatientID == patientID }), nil
}

func (r *paymentRepo) ListAll(_ context.Context) ([]*model.PaymentRecord, error) {
	return r.list(func(model.PaymentRecord) bool { return true }), nil
}

type outboxRepo struct{ s *Store }

func (r *outboxRepo) Create(_ context.Context, e *model.OutboxEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.addEvents([]*model.OutboxEvent{e})
	return nil
}

func (r *outboxRepo) GetPendingEvents(_ context.Context, limit int) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.OutboxEvent
	for _, e := range r.s.events {
		if e.Status == model.OutboxStatusPending && len(out) < limit {
			out = append(out, e)
		}
	}
	return out, nil
}

func (r *outboxRepo) UpdateStatus(_ context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.events {
		if e.ID != id {
			continue
		}
		e.Status = status
		e.ErrorMessage = errMsg
		e.UpdatedAt = time.Now().UTC()
		if status == model.OutboxStatusProcessed {
			now := e.UpdatedAt
			e.ProcessedAt = &now
		}
		if status == model.OutboxStatusFailed {
			e.RetryCount++
		}
		return nil
	}
	return notFound("outbox event")
}

func (r *outboxRepo) DeleteProcessedBefore(_ context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		kept    []*model.OutboxEvent
		removed int64
	)
	for _, e := range r.s.events {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	r.s.events = kept
	return removed, nil
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, l *model.AuditLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audits = append(r.s.audits, l)
	return nil
}

func (r *auditRepo) DeleteBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var (
		kept    []*model.AuditLog
		removed int64
	)
	for _, l := range r.s.audits {
		if l.CreatedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	r.s.audits = kept
	return removed, nil
}
