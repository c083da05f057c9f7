package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
)

// AuditCleanupWorker drops audit entries older than the retention window.
type AuditCleanupWorker struct {
	repo          repository.AuditRepository
	retentionDays int
	logger        *logger.Logger
}

func NewAuditCleanupWorker(repo repository.AuditRepository, retentionDays int, logger *logger.Logger) *AuditCleanupWorker {
	return &AuditCleanupWorker{
		repo:          repo,
		retentionDays: retentionDays,
		logger:        logger,
	}
}

func (w *AuditCleanupWorker) Run(ctx context.Context) {
	if w.retentionDays <= 0 {
		return
	}
	cutoff := time.Now().AddDate(0, 0, -w.retentionDays)
	n, err := w.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		w.logger.Error(err, "audit cleanup failed")
		return
	}
	w.logger.Info("audit cleanup finished", "deleted", n, "cutoff", cutoff)
}
