package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/pkg/logger"
)

// AuditEntry captures a single registration-funnel event to persist.
type AuditEntry struct {
	AccountID *string
	Action    string
	Result    string
	IPAddress string
	UserAgent string
	Metadata  map[string]any
}

// AuditService persists and queries audit log entries.
type AuditService struct {
	db *gorm.DB
}

// NewAuditService constructs an AuditService.
func NewAuditService(db *gorm.DB) (*AuditService, error) {
	if db == nil {
		return nil, errors.New("audit service: db is required")
	}
	return &AuditService{db: db}, nil
}

// Record stores an audit entry, marshalling metadata into its JSON column.
func (s *AuditService) Record(ctx context.Context, entry AuditEntry) error {
	ctx = ensureContext(ctx)

	if strings.TrimSpace(entry.Action) == "" {
		return errors.New("audit service: action is required")
	}
	if strings.TrimSpace(entry.Result) == "" {
		return errors.New("audit service: result is required")
	}

	row := models.AuditLog{
		Action:    strings.TrimSpace(entry.Action),
		Result:    strings.TrimSpace(entry.Result),
		IPAddress: strings.TrimSpace(entry.IPAddress),
		UserAgent: strings.TrimSpace(entry.UserAgent),
	}

	if entry.Metadata != nil {
		encoded, err := json.Marshal(entry.Metadata)
		if err != nil {
			return fmt.Errorf("audit service: marshal metadata: %w", err)
		}
		row.Metadata = encoded
	}

	if entry.AccountID != nil && strings.TrimSpace(*entry.AccountID) != "" {
		id := strings.TrimSpace(*entry.AccountID)
		row.AccountID = &id
	}

	return s.db.WithContext(ctx).Create(&row).Error
}

// CleanupOlderThan removes audit logs past the retention horizon and returns
// the number of rows deleted.
func (s *AuditService) CleanupOlderThan(ctx context.Context, days int) (int64, error) {
	ctx = ensureContext(ctx)

	if days <= 0 {
		return 0, nil
	}

	cutoff := time.Now().AddDate(0, 0, -days)
	res := s.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&models.AuditLog{})
	return res.RowsAffected, res.Error
}

// recordAudit logs audit failures instead of failing the parent operation.
func recordAudit(audit *AuditService, ctx context.Context, entry AuditEntry) {
	if audit == nil {
		return
	}
	if err := audit.Record(ctx, entry); err != nil {
		logger.WithModule("audit").Warn("record audit entry failed",
			zap.String("action", entry.Action),
			zap.Error(err),
		)
	}
}
