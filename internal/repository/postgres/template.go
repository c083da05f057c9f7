package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

const templateColumns = `id, name, unit_cost, total_sessions, minutes_per_session, active, created_at, updated_at`

func (r *templateRepository) Create(ctx context.Context, tmpl *model.TreatmentTemplate) error {
	query := `
		INSERT INTO treatment_templates (
			id, name, unit_cost, total_sessions, minutes_per_session, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if tmpl.ID == uuid.Nil {
		tmpl.ID = uuid.New()
	}
	tmpl.CreatedAt = time.Now().UTC()
	tmpl.UpdatedAt = tmpl.CreatedAt

	_, err := r.db.ExecContext(ctx, query,
		tmpl.ID,
		tmpl.Name,
		tmpl.UnitCost,
		tmpl.TotalSessions,
		tmpl.MinutesPerSession,
		tmpl.Active,
		tmpl.CreatedAt,
		tmpl.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create treatment template: %w", err)
	}
	return nil
}

func (r *templateRepository) Get(ctx context.Context, id uuid.UUID) (*model.TreatmentTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM treatment_templates WHERE id = $1`
	var tmpl model.TreatmentTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, id); err != nil {
		return nil, notFound(err, "treatment template")
	}
	return &tmpl, nil
}

func (r *templateRepository) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*model.TreatmentTemplate, error) {
	result := make(map[uuid.UUID]*model.TreatmentTemplate, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	keys := make(pq.StringArray, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}

	query := `SELECT ` + templateColumns + ` FROM treatment_templates WHERE id = ANY($1::uuid[])`
	var templates []*model.TreatmentTemplate
	if err := r.db.SelectContext(ctx, &templates, query, keys); err != nil {
		return nil, fmt.Errorf("failed to get treatment templates: %w", err)
	}
	for _, t := range templates {
		result[t.ID] = t
	}
	return result, nil
}

func (r *templateRepository) Update(ctx context.Context, tmpl *model.TreatmentTemplate) error {
	query := `
		UPDATE treatment_templates
		SET name = $1, unit_cost = $2, total_sessions = $3, minutes_per_session = $4,
			active = $5, updated_at = $6
		WHERE id = $7
	`
	tmpl.UpdatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, query,
		tmpl.Name,
		tmpl.UnitCost,
		tmpl.TotalSessions,
		tmpl.MinutesPerSession,
		tmpl.Active,
		tmpl.UpdatedAt,
		tmpl.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update treatment template: %w", err)
	}
	return requireRow(res, "treatment template")
}

func (r *templateRepository) List(ctx context.Context, filters *model.TemplateFilters) ([]*model.TreatmentTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM treatment_templates`
	if filters != nil && filters.ActiveOnly {
		query += ` WHERE active = TRUE`
	}
	query += ` ORDER BY name ASC`

	var templates []*model.TreatmentTemplate
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("failed to list treatment templates: %w", err)
	}
	return templates, nil
}
