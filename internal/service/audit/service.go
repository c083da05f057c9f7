package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/clinic-finance/internal/model"
	"github.com/jwalitptl/clinic-finance/internal/repository"
	"github.com/jwalitptl/clinic-finance/pkg/auth"
	"github.com/jwalitptl/clinic-finance/pkg/logger"
)

type requestInfoKey struct{}

type requestInfo struct {
	ip        string
	requestID string
}

// WithRequestInfo attaches the client address and request id that audit
// entries written under ctx are stamped with.
func WithRequestInfo(ctx context.Context, ip, requestID string) context.Context {
	return context.WithValue(ctx, requestInfoKey{}, requestInfo{ip: ip, requestID: requestID})
}

type Service struct {
	repo   repository.AuditRepository
	logger *logger.Logger
}

func NewService(repo repository.AuditRepository, logger *logger.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Log records an audit entry. It runs after the audited change committed, so
// a failure is logged and not returned to the caller.
func (s *Service) Log(ctx context.Context, action, entityType string, entityID uuid.UUID, changes interface{}) {
	if err := s.LogSync(ctx, action, entityType, entityID, changes); err != nil {
		s.logger.Error(err, "failed to write audit log",
			"action", action,
			"entity_type", entityType,
			"entity_id", entityID.String(),
		)
	}
}

func (s *Service) LogSync(ctx context.Context, action, entityType string, entityID uuid.UUID, changes interface{}) error {
	var raw json.RawMessage
	if changes != nil {
		b, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		raw = b
	}

	info, _ := ctx.Value(requestInfoKey{}).(requestInfo)
	return s.repo.Create(ctx, &model.AuditLog{
		ID:         uuid.New(),
		ActorID:    auth.ActorID(ctx),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Changes:    raw,
		IPAddress:  info.ip,
		RequestID:  info.requestID,
		CreatedAt:  time.Now().UTC(),
	})
}
