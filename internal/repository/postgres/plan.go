package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/jwalitptl/clinic-finance/internal/model"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
)

const planColumns = `id, patient_id, description, authorized_amount, status, version, created_at, updated_at`

const itemColumns = `plan_id, treatment_template_id, name, quantity, recorded_unit_cost`

func (r *planRepository) Create(ctx context.Context, plan *model.TreatmentPlan, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO treatment_plans (
			id, patient_id, description, authorized_amount, status, version, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if plan.Status == "" {
		plan.Status = model.PlanStatusActive
	}
	plan.Version = 1
	plan.CreatedAt = time.Now().UTC()
	plan.UpdatedAt = plan.CreatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			plan.ID,
			plan.PatientID,
			plan.Description,
			plan.AuthorizedAmount,
			plan.Status,
			plan.Version,
			plan.CreatedAt,
			plan.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create treatment plan: %w", err)
		}
		if err := insertItems(ctx, tx, plan); err != nil {
			return err
		}
		return writeEvents(ctx, tx, events)
	})
}

func (r *planRepository) Get(ctx context.Context, id uuid.UUID) (*model.TreatmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM treatment_plans WHERE id = $1`
	var plan model.TreatmentPlan
	if err := r.db.GetContext(ctx, &plan, query, id); err != nil {
		return nil, notFound(err, "treatment plan")
	}

	items, err := r.ListPlanItems(ctx, id)
	if err != nil {
		return nil, err
	}
	plan.Items = items
	return &plan, nil
}

func (r *planRepository) ListPlanItems(ctx context.Context, planID uuid.UUID) ([]model.TreatmentPlanItem, error) {
	query := `SELECT ` + itemColumns + ` FROM treatment_plan_items WHERE plan_id = $1 ORDER BY position ASC`
	items := []model.TreatmentPlanItem{}
	if err := r.db.SelectContext(ctx, &items, query, planID); err != nil {
		return nil, fmt.Errorf("failed to list plan items: %w", err)
	}
	return items, nil
}

func (r *planRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.TreatmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM treatment_plans WHERE patient_id = $1 ORDER BY created_at ASC`
	var plans []*model.TreatmentPlan
	if err := r.db.SelectContext(ctx, &plans, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list treatment plans: %w", err)
	}
	return plans, r.attachItems(ctx, plans)
}

func (r *planRepository) ListAll(ctx context.Context) ([]*model.TreatmentPlan, error) {
	query := `SELECT ` + planColumns + ` FROM treatment_plans ORDER BY created_at ASC`
	var plans []*model.TreatmentPlan
	if err := r.db.SelectContext(ctx, &plans, query); err != nil {
		return nil, fmt.Errorf("failed to list treatment plans: %w", err)
	}
	return plans, r.attachItems(ctx, plans)
}

func (r *planRepository) Update(ctx context.Context, plan *model.TreatmentPlan, replaceItems bool, events ...*model.OutboxEvent) error {
	query := `
		UPDATE treatment_plans
		SET description = $1, authorized_amount = $2, version = version + 1, updated_at = $3
		WHERE id = $4 AND version = $5
	`
	now := time.Now().UTC()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			plan.Description,
			plan.AuthorizedAmount,
			now,
			plan.ID,
			plan.Version,
		)
		if err != nil {
			return fmt.Errorf("failed to update treatment plan: %w", err)
		}
		if err := r.checkVersion(ctx, tx, res, plan.ID); err != nil {
			return err
		}

		if replaceItems {
			if _, err := tx.ExecContext(ctx, `DELETE FROM treatment_plan_items WHERE plan_id = $1`, plan.ID); err != nil {
				return fmt.Errorf("failed to clear plan items: %w", err)
			}
			if err := insertItems(ctx, tx, plan); err != nil {
				return err
			}
		}
		return writeEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	plan.Version++
	plan.UpdatedAt = now
	return nil
}

func (r *planRepository) UpdateStatus(ctx context.Context, plan *model.TreatmentPlan, events ...*model.OutboxEvent) error {
	query := `
		UPDATE treatment_plans
		SET status = $1, version = version + 1, updated_at = $2
		WHERE id = $3 AND version = $4
	`
	now := time.Now().UTC()

	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query, plan.Status, now, plan.ID, plan.Version)
		if err != nil {
			return fmt.Errorf("failed to update treatment plan status: %w", err)
		}
		if err := r.checkVersion(ctx, tx, res, plan.ID); err != nil {
			return err
		}
		return writeEvents(ctx, tx, events)
	})
	if err != nil {
		return err
	}

	plan.Version++
	plan.UpdatedAt = now
	return nil
}

// checkVersion tells a missing plan apart from a stale version when an
// update matched no rows.
func (r *planRepository) checkVersion(ctx context.Context, tx *sqlx.Tx, res interface{ RowsAffected() (int64, error) }, id uuid.UUID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows > 0 {
		return nil
	}

	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM treatment_plans WHERE id = $1)`, id); err != nil {
		return fmt.Errorf("failed to check treatment plan: %w", err)
	}
	if !exists {
		return fmt.Errorf("treatment plan: %w", apperrors.ErrRecordNotFound)
	}
	return fmt.Errorf("treatment plan %s: %w", id, apperrors.ErrVersionConflict)
}

func insertItems(ctx context.Context, tx *sqlx.Tx, plan *model.TreatmentPlan) error {
	query := `
		INSERT INTO treatment_plan_items (
			plan_id, position, treatment_template_id, name, quantity, recorded_unit_cost
		) VALUES ($1, $2, $3, $4, $5, $6)
	`
	for i := range plan.Items {
		item := &plan.Items[i]
		item.PlanID = plan.ID
		if _, err := tx.ExecContext(ctx, query,
			item.PlanID,
			i,
			item.TreatmentTemplateID,
			item.Name,
			item.Quantity,
			item.RecordedUnitCost,
		); err != nil {
			return fmt.Errorf("failed to insert plan item: %w", err)
		}
	}
	return nil
}

func (r *planRepository) attachItems(ctx context.Context, plans []*model.TreatmentPlan) error {
	if len(plans) == 0 {
		return nil
	}

	ids := make(pq.StringArray, len(plans))
	byID := make(map[uuid.UUID]*model.TreatmentPlan, len(plans))
	for i, p := range plans {
		ids[i] = p.ID.String()
		p.Items = []model.TreatmentPlanItem{}
		byID[p.ID] = p
	}

	query := `SELECT ` + itemColumns + ` FROM treatment_plan_items
		WHERE plan_id = ANY($1::uuid[]) ORDER BY plan_id, position ASC`
	var items []model.TreatmentPlanItem
	if err := r.db.SelectContext(ctx, &items, query, ids); err != nil {
		return fmt.Errorf("failed to list plan items: %w", err)
	}
	for _, item := range items {
		if p, ok := byID[item.PlanID]; ok {
			p.Items = append(p.Items, item)
		}
	}
	return nil
}
