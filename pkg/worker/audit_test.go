package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository/memory"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
)

func TestAuditCleanupWorker_Run(t *testing.T) {
	store := memory.NewStore()
	repo := store.Audit()
	ctx := context.Background()

	now := time.Now().UTC()
	for _, age := range []time.Duration{0, 48 * time.Hour, 30 * 24 * time.Hour} {
		require.NoError(t, repo.Create(ctx, &model.AuditLog{
			ID:        uuid.New(),
			Action:    model.AuditActionCreate,
			CreatedAt: now.Add(-age),
		}))
	}

	NewAuditCleanupWorker(repo, 7, logger.Nop()).Run(ctx)
	assert.Len(t, store.AuditLogs(), 2)

	// a non-positive retention keeps everything
	NewAuditCleanupWorker(repo, 0, logger.Nop()).Run(ctx)
	assert.Len(t, store.AuditLogs(), 2)
}
