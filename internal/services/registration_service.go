package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/pkg/crypto"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/logger"
	"github.com/gamelaunch/prereg/pkg/mail"
	"github.com/gamelaunch/prereg/pkg/metrics"
)

const (
	inviteCodeLength = 8

	// inviteCreateAttempts bounds the generate-then-insert loop: random
	// generation alone does not guarantee a unique invite code, so a
	// uniqueness violation triggers regeneration instead of failure.
	inviteCreateAttempts = 5
)

// RegisterInput describes the fields accepted when creating an account.
type RegisterInput struct {
	Name         string
	Email        string
	Phone        string
	Password     string
	ReferrerCode string
}

// RegistrationConfig carries the settings the registration flow needs.
type RegistrationConfig struct {
	// VerifyLinkBase is the URL prefix the verification token is appended to.
	VerifyLinkBase string
	// DeliveryTimeout bounds the confirmation email send.
	DeliveryTimeout time.Duration
}

// RegistrationService creates accounts, resolves referrers, and triggers the
// confirmation email.
type RegistrationService struct {
	db     *gorm.DB
	mailer mail.Mailer
	audit  *AuditService
	cfg    RegistrationConfig
	log    *zap.Logger
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(db *gorm.DB, mailer mail.Mailer, audit *AuditService, cfg RegistrationConfig) (*RegistrationService, error) {
	if db == nil {
		return nil, errors.New("registration service: db is required")
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 10 * time.Second
	}
	return &RegistrationService{
		db:     db,
		mailer: mailer,
		audit:  audit,
		cfg:    cfg,
		log:    logger.WithModule("registration"),
	}, nil
}

// Register persists a new account with zero points and dispatches the
// confirmation email best-effort. A referrer code that does not resolve is
// cleared rather than blocking the sign-up.
func (s *RegistrationService) Register(ctx context.Context, input RegisterInput) (*AccountSummary, error) {
	ctx = ensureContext(ctx)

	name := strings.TrimSpace(input.Name)
	if len(name) < 3 || len(name) > 32 {
		return nil, apperrors.NewBadRequest("nickname must be between 3 and 32 characters")
	}

	email := normalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewBadRequest("email is required")
	}

	if len(input.Password) < 6 {
		return nil, apperrors.NewBadRequest("password must be at least 6 characters")
	}

	phone := digitsOnly(input.Phone)
	if phone == "" {
		return nil, apperrors.NewBadRequest("phone number is required")
	}

	hashed, err := crypto.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("registration service: hash password: %w", err)
	}

	referrerCode, referrerName := s.resolveReferrer(ctx, input.ReferrerCode)

	account := &models.Account{
		Name:         name,
		Email:        email,
		PhoneNumber:  &phone,
		Password:     hashed,
		ReferrerCode: referrerCode,
		ReferrerName: referrerName,
		Points:       0,
	}

	if err := s.createWithFreshCodes(ctx, account); err != nil {
		if errors.Is(err, apperrors.ErrEmailTaken) {
			metrics.Registrations.WithLabelValues("conflict").Inc()
			return nil, apperrors.ErrEmailTaken
		}
		metrics.Registrations.WithLabelValues("error").Inc()
		return nil, err
	}

	metrics.Registrations.WithLabelValues("created").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		AccountID: &account.ID,
		Action:    "prereg.register",
		Result:    "success",
		Metadata: map[string]any{
			"email":       account.Email,
			"invite_code": account.InviteCode,
			"referred":    account.ReferrerCode != nil,
		},
	})

	s.sendConfirmationEmail(ctx, account)

	return NewAccountSummary(account), nil
}

// LookupByInviteCode returns the public profile behind an invite code.
func (s *RegistrationService) LookupByInviteCode(ctx context.Context, code string) (*PublicProfile, error) {
	ctx = ensureContext(ctx)

	normalized := normalizeInviteCode(code)
	if normalized == "" {
		return nil, apperrors.ErrNotFound
	}

	var account models.Account
	err := s.db.WithContext(ctx).Take(&account, "invite_code = ?", normalized).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("registration service: lookup invite code: %w", err)
	}

	return newPublicProfile(&account), nil
}

// resolveReferrer looks up the supplied invite code and snapshots the
// referrer's display name. Any failure clears the code: referral resolution
// must never block account creation.
func (s *RegistrationService) resolveReferrer(ctx context.Context, raw string) (*string, *string) {
	code := normalizeInviteCode(raw)
	if code == "" {
		return nil, nil
	}

	var referrer models.Account
	err := s.db.WithContext(ctx).Take(&referrer, "invite_code = ?", code).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.log.Info("referrer code did not resolve", zap.String("code", code))
		return nil, nil
	}
	if err != nil {
		s.log.Warn("referrer lookup failed", zap.String("code", code), zap.Error(err))
		return nil, nil
	}

	name := referrer.Name
	return &code, &name
}

// createWithFreshCodes inserts the account, regenerating the invite code and
// verification token when the store reports a uniqueness violation. An email
// conflict is terminal and never retried.
func (s *RegistrationService) createWithFreshCodes(ctx context.Context, account *models.Account) error {
	for attempt := 0; attempt < inviteCreateAttempts; attempt++ {
		invite, err := crypto.RandomInviteCode(inviteCodeLength)
		if err != nil {
			return fmt.Errorf("registration service: generate invite code: %w", err)
		}
		account.ID = ""
		account.InviteCode = invite
		account.VerificationToken = uuid.NewString()

		err = s.db.WithContext(ctx).Create(account).Error
		if err == nil {
			return nil
		}
		if !isUniqueConstraintError(err) {
			return fmt.Errorf("registration service: create account: %w", err)
		}

		if taken, checkErr := s.emailExists(ctx, account.Email); checkErr == nil && taken {
			return apperrors.ErrEmailTaken
		}

		s.log.Info("invite code collision, regenerating",
			zap.String("invite_code", invite),
			zap.Int("attempt", attempt+1),
		)
	}

	return apperrors.Wrap(errors.New("invite code generation exhausted retries"), "could not allocate invite code")
}

func (s *RegistrationService) emailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("email = ?", email).
		Count(&count).Error
	return count > 0, err
}

// sendConfirmationEmail dispatches the verification link. Failures are logged
// and swallowed: delivery problems never roll back a registration.
func (s *RegistrationService) sendConfirmationEmail(ctx context.Context, account *models.Account) {
	if s.mailer == nil {
		return
	}

	link := strings.TrimRight(s.cfg.VerifyLinkBase, "/") + "/" + account.VerificationToken

	sendCtx, cancel := context.WithTimeout(ensureContext(ctx), s.cfg.DeliveryTimeout)
	defer cancel()

	err := s.mailer.Send(sendCtx, mail.Message{
		To:      account.Email,
		Subject: "Confirm your email to finish pre-registration",
		Body: fmt.Sprintf(
			"Hi %s,\n\nConfirm your email to lock in your pre-registration and referral bonuses:\n\n%s\n\nIf you did not sign up, ignore this message.\n",
			account.Name, link,
		),
	})
	if err != nil && !errors.Is(err, mail.ErrSMTPDisabled) {
		s.log.Warn("confirmation email delivery failed",
			zap.String("account_id", account.ID),
			zap.Error(err),
		)
	}
}
