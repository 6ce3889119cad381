package service

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"github.com/fos7a/institute-api/internal/models"
)

type auditRecorder interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// recordAudit writes an audit row. Failures are logged and never fail the caller.
func recordAudit(ctx context.Context, rec auditRecorder, logger *zap.Logger, actorID, action, resource, resourceID string, values interface{}) {
	if rec == nil {
		return
	}
	entry := &models.AuditLog{Action: action, Resource: resource}
	if actorID != "" {
		entry.UserID = &actorID
	}
	if resourceID != "" {
		entry.ResourceID = &resourceID
	}
	if values != nil {
		if raw, err := json.Marshal(values); err == nil {
			entry.NewValues = raw
		}
	}
	if err := rec.CreateAuditLog(ctx, entry); err != nil {
		logger.Warn("failed to record audit log", zap.String("action", action), zap.String("resource_id", resourceID), zap.Error(err))
	}
}
