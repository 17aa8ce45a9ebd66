package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/internal/services"
	"github.com/gamelaunch/prereg/pkg/logger"
)

const (
	defaultAuditRetentionDays = 90
	defaultOTPSpec            = "@every 1h"
	defaultAuditSpec          = "@daily"
)

// Cleaner coordinates background maintenance: clearing expired one-time
// codes, pruning stale audit logs, and purging dead rate-limit counters.
type Cleaner struct {
	db        *gorm.DB
	audit     *services.AuditService
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	retention int

	otpSchedule   string
	auditSchedule string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for expiry comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithAuditRetentionDays adjusts how long audit logs are retained.
func WithAuditRetentionDays(days int) Option {
	return func(cleaner *Cleaner) {
		if days > 0 {
			cleaner.retention = days
		}
	}
}

// WithOTPSchedule overrides the cron specification for the OTP sweep.
func WithOTPSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.otpSchedule = spec
		}
	}
}

// WithAuditSchedule overrides the cron specification for audit retention.
func WithAuditSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.auditSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. A nil audit service
// skips the audit retention job.
func NewCleaner(db *gorm.DB, audit *services.AuditService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		db:            db,
		audit:         audit,
		now:           time.Now,
		retention:     defaultAuditRetentionDays,
		otpSchedule:   defaultOTPSpec,
		auditSchedule: defaultAuditSpec,
		log:           logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	return cleaner
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.db == nil {
		return errors.New("maintenance: db is required")
	}

	if _, err := c.cron.AddFunc(c.otpSchedule, func() {
		ctx := context.Background()
		if _, err := SweepExpired(ctx, c.db, c.now()); err != nil {
			c.log.Warn("otp sweep failed", zap.Error(err))
		}
	}); err != nil {
		return err
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.auditSchedule, func() {
			ctx := context.Background()
			if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
				c.log.Warn("audit cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all cleanup routines sequentially. Used in tests and
// during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.db != nil {
		if _, err := SweepExpired(ctx, c.db, c.now()); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.audit != nil && c.retention > 0 {
		if _, err := c.audit.CleanupOlderThan(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}

// SweepStats captures the rows touched by a single sweep.
type SweepStats struct {
	ExpiredOTPCodes   int64
	ExpiredRateLimits int64
}

// SweepExpired clears one-time codes past their deadline and deletes expired
// rate-limit counters. Verified phone timestamps are left untouched.
func SweepExpired(ctx context.Context, db *gorm.DB, now time.Time) (SweepStats, error) {
	if db == nil {
		return SweepStats{}, errors.New("sweep: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	stats := SweepStats{}

	result := db.WithContext(ctx).Model(&models.Account{}).
		Where("phone_otp_expires_at < ?", now).
		Updates(map[string]any{
			"phone_otp_code":       nil,
			"phone_otp_expires_at": nil,
		})
	if result.Error != nil {
		return stats, fmt.Errorf("sweep: otp codes: %w", result.Error)
	}
	stats.ExpiredOTPCodes = result.RowsAffected

	result = db.WithContext(ctx).
		Where("expires_at < ?", now).
		Delete(&models.CacheEntry{})
	if result.Error != nil {
		return stats, fmt.Errorf("sweep: rate limit counters: %w", result.Error)
	}
	stats.ExpiredRateLimits = result.RowsAffected

	return stats, nil
}
