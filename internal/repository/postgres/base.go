package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-finance/internal/model"
	apperrors "github.com/jwalitptl/clinic-finance/pkg/errors"
)

// BaseRepository provides common functionality for all repositories
type BaseRepository struct {
	db *sqlx.DB
}

// NewBaseRepository creates a new base repository
func NewBaseRepository(db *sqlx.DB) BaseRepository {
	return BaseRepository{db: db}
}

// WithTx executes a function within a transaction
func (r *BaseRepository) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

const insertOutboxQuery = `
	INSERT INTO outbox_events (id, event_type, payload, status, retry_count, created_at, updated_at)
	VALUES ($1, $2, $3, $4, 0, $5, $5)
`

// writeEvents stores outbox events inside tx so they commit with the entity.
func writeEvents(ctx context.Context, tx *sqlx.Tx, events []*model.OutboxEvent) error {
	for _, e := range events {
		if e == nil {
			continue
		}
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.Status = model.OutboxStatusPending
		e.CreatedAt = time.Now().UTC()
		e.UpdatedAt = e.CreatedAt
		if _, err := tx.ExecContext(ctx, insertOutboxQuery, e.ID, e.EventType, jsonText(e.Payload), e.Status, e.CreatedAt); err != nil {
			return fmt.Errorf("failed to write outbox event %s: %w", e.EventType, err)
		}
	}
	return nil
}

// notFound converts sql.ErrNoRows into the shared not-found sentinel.
func notFound(err error, what string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, apperrors.ErrRecordNotFound)
	}
	return fmt.Errorf("failed to get %s: %w", what, err)
}

func requireRow(res sql.Result, what string) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", what, apperrors.ErrRecordNotFound)
	}
	return nil
}

// jsonText passes JSON to a jsonb column as text; lib/pq sends []byte as bytea.
func jsonText(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
