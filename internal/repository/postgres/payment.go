package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

const paymentColumns = `id, patient_id, amount, method, notes, created_at, updated_at`

func (r *paymentRepository) Create(ctx context.Context, payment *model.PaymentRecord, events ...*model.OutboxEvent) error {
	query := `
		INSERT INTO payments (id, patient_id, amount, method, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	payment.CreatedAt = time.Now().UTC()
	payment.UpdatedAt = payment.CreatedAt

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, query,
			payment.ID,
			payment.PatientID,
			payment.Amount,
			payment.Method,
			payment.Notes,
			payment.CreatedAt,
			payment.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to create payment: %w", err)
		}
		return writeEvents(ctx, tx, events)
	})
}

func (r *paymentRepository) Get(ctx context.Context, id uuid.UUID) (*model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	var payment model.PaymentRecord
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, notFound(err, "payment")
	}
	return &payment, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *model.PaymentRecord, events ...*model.OutboxEvent) error {
	query := `
		UPDATE payments SET amount = $1, method = $2, notes = $3, updated_at = $4
		WHERE id = $5
	`
	payment.UpdatedAt = time.Now().UTC()

	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, query,
			payment.Amount,
			payment.Method,
			payment.Notes,
			payment.UpdatedAt,
			payment.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}
		if err := requireRow(res, "payment"); err != nil {
			return err
		}
		return writeEvents(ctx, tx, events)
	})
}

func (r *paymentRepository) ListByPatient(ctx context.Context, patientID uuid.UUID) ([]*model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE patient_id = $1 ORDER BY created_at DESC`
	var payments []*model.PaymentRecord
	if err := r.db.SelectContext(ctx, &payments, query, patientID); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) ListAll(ctx context.Context) ([]*model.PaymentRecord, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments ORDER BY created_at DESC`
	var payments []*model.PaymentRecord
	if err := r.db.SelectContext(ctx, &payments, query); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}
