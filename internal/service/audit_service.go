package service

import (
	"context"
	"encoding/json"
	"fmt"

	"orderfinance/internal/model"
	"orderfinance/internal/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

type AuditLogResponse struct {
	ID         string          `json:"id"`
	UserID     string          `json:"user_id"`
	Action     string          `json:"action"`
	EntityID   string          `json:"entity_id"`
	EntityName string          `json:"entity_name"`
	Details    json.RawMessage `json:"details" swaggertype:"object"`
	CreatedAt  string          `json:"created_at"`
}

type AuditFilter struct {
	Action   string
	EntityID string
}

type AuditService interface {
	GetAuditLogs(ctx context.Context, tenantID uuid.UUID, filter AuditFilter, page, limit int) ([]AuditLogResponse, int64, error)
	Record(ctx context.Context, tenantID uuid.UUID, userID, action, entityID, entityName string, details interface{})
}

type auditService struct {
	repo   repository.AuditRepository
	logger *zap.Logger
}

// NewAuditService creates a new AuditService instance
func NewAuditService(repo repository.AuditRepository, logger *zap.Logger) AuditService {
	return &auditService{repo: repo, logger: logger}
}

func (s *auditService) GetAuditLogs(ctx context.Context, tenantID uuid.UUID, filter AuditFilter, page, limit int) ([]AuditLogResponse, int64, error) {
	logs, total, err := s.repo.List(ctx, tenantID, repository.AuditFilter{Action: filter.Action, EntityID: filter.EntityID}, page, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to fetch audit logs: %w", err)
	}

	res := make([]AuditLogResponse, 0, len(logs))
	for _, l := range logs {
		userID := ""
		if l.UserID != nil {
			userID = l.UserID.String()
		}
		details := json.RawMessage(l.Details)
		if len(details) == 0 {
			details = json.RawMessage("null")
		}
		res = append(res, AuditLogResponse{
			ID:         l.ID.String(),
			UserID:     userID,
			Action:     l.Action,
			EntityID:   l.EntityID,
			EntityName: l.EntityName,
			Details:    details,
			CreatedAt:  l.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}

	return res, total, nil
}

// Record writes an audit row. Best-effort: failures are logged and never fail the operation.
func (s *auditService) Record(ctx context.Context, tenantID uuid.UUID, userID, action, entityID, entityName string, details interface{}) {
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		detailsJSON = nil
	}

	entry := model.AuditLog{
		TenantID:   tenantID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    datatypes.JSON(detailsJSON),
	}
	if userID != "" {
		if parsed, err := uuid.Parse(userID); err == nil {
			entry.UserID = &parsed
		}
	}

	if err := s.repo.Log(ctx, &entry); err != nil {
		s.logger.Warn("failed to write audit log",
			zap.String("tenant_id", tenantID.String()),
			zap.String("action", action),
			zap.String("entity_id", entityID),
			zap.Error(err))
	}
}
