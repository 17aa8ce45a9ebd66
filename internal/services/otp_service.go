package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/internal/whatsapp"
	"github.com/gamelaunch/prereg/pkg/crypto"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/logger"
	"github.com/gamelaunch/prereg/pkg/metrics"
)

// OTPConfig tunes code generation and lifetime.
type OTPConfig struct {
	Digits int
	TTL    time.Duration
}

// DefaultOTPConfig returns the standard six-digit, ten-minute policy.
func DefaultOTPConfig() OTPConfig {
	return OTPConfig{Digits: 6, TTL: 10 * time.Minute}
}

// OTPService issues and checks one-time phone verification codes. Accounts
// are addressed by email, matching the public phone confirmation flow.
type OTPService struct {
	db     *gorm.DB
	sender whatsapp.Sender
	audit  *AuditService
	cfg    OTPConfig
	now    func() time.Time
	log    *zap.Logger
}

// NewOTPService constructs an OTPService. sender may be nil when WhatsApp
// delivery is disabled; IssueCode then stores the code without dispatching it.
func NewOTPService(db *gorm.DB, sender whatsapp.Sender, audit *AuditService, cfg OTPConfig) (*OTPService, error) {
	if db == nil {
		return nil, errors.New("otp service: db is required")
	}
	if cfg.Digits <= 0 {
		cfg.Digits = DefaultOTPConfig().Digits
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultOTPConfig().TTL
	}
	return &OTPService{
		db:     db,
		sender: sender,
		audit:  audit,
		cfg:    cfg,
		now:    time.Now,
		log:    logger.WithModule("otp"),
	}, nil
}

// IssueCode generates a fresh code for the account, persists it with an
// expiry, and dispatches it over WhatsApp. A new issuance overwrites any
// pending code. The code is stored before the send, so a delivery failure is
// reported to the caller while the code stays valid for a retried dispatch.
// phone carries the number in dialable form; digits only are stored.
func (s *OTPService) IssueCode(ctx context.Context, email, phone string) error {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)
	var account models.Account
	err := s.db.WithContext(ctx).Take(&account, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("otp service: load account: %w", err)
	}

	stored := digitsOnly(phone)
	if stored == "" {
		if account.PhoneNumber == nil || *account.PhoneNumber == "" {
			return apperrors.NewBadRequest("phone number is required")
		}
		stored = *account.PhoneNumber
	}
	dialable := phone
	if dialable == "" {
		dialable = stored
	}

	code, err := crypto.RandomDigits(s.cfg.Digits)
	if err != nil {
		return fmt.Errorf("otp service: generate code: %w", err)
	}
	expiresAt := s.now().Add(s.cfg.TTL)

	updates := map[string]any{
		"phone_number":         stored,
		"phone_otp_code":       code,
		"phone_otp_expires_at": expiresAt,
	}
	if err := s.db.WithContext(ctx).Model(&account).Updates(updates).Error; err != nil {
		return fmt.Errorf("otp service: store code: %w", err)
	}

	if s.sender == nil {
		metrics.OTPMessages.WithLabelValues("issue", "skipped").Inc()
		return nil
	}

	// Delivery runs after the write so no lock is held during the call.
	if err := s.sender.SendCode(ctx, dialable, code); err != nil {
		if errors.Is(err, whatsapp.ErrDisabled) {
			metrics.OTPMessages.WithLabelValues("issue", "skipped").Inc()
			return nil
		}
		metrics.OTPMessages.WithLabelValues("issue", "error").Inc()
		s.log.Warn("otp delivery failed", zap.String("account_id", account.ID), zap.Error(err))
		return apperrors.ErrExternalService
	}

	metrics.OTPMessages.WithLabelValues("issue", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		AccountID: &account.ID,
		Action:    "otp.send",
		Result:    "success",
	})
	return nil
}

// VerifyCode checks a submitted code against the pending one. A matching
// code stamps the phone as verified and is cleared so it cannot be replayed.
// The check-and-clear runs under a row lock; concurrent submissions of the
// same code consume it exactly once.
func (s *OTPService) VerifyCode(ctx context.Context, email, code string) error {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)

	var accountID string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var account models.Account
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&account, "email = ?", email).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("otp service: load account: %w", err)
		}
		accountID = account.ID

		if account.PhoneOTPCode == nil || account.PhoneOTPExpiresAt == nil {
			metrics.OTPMessages.WithLabelValues("verify", "missing").Inc()
			return apperrors.ErrNoPendingCode
		}
		if s.now().After(*account.PhoneOTPExpiresAt) {
			metrics.OTPMessages.WithLabelValues("verify", "expired").Inc()
			return apperrors.ErrExpiredCode
		}
		if !crypto.SecureCompare(*account.PhoneOTPCode, code) {
			metrics.OTPMessages.WithLabelValues("verify", "mismatch").Inc()
			return apperrors.ErrInvalidCode
		}

		verifiedAt := s.now()
		updates := map[string]any{
			"phone_otp_code":       nil,
			"phone_otp_expires_at": nil,
			"phone_verified_at":    verifiedAt,
		}
		if err := tx.Model(&account).Updates(updates).Error; err != nil {
			return fmt.Errorf("otp service: mark verified: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	metrics.OTPMessages.WithLabelValues("verify", "success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		AccountID: &accountID,
		Action:    "otp.verify",
		Result:    "success",
	})
	return nil
}
