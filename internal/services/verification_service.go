package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gamelaunch/prereg/internal/models"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/metrics"
)

// ReferralConfig fixes the bonus amounts credited on email confirmation.
type ReferralConfig struct {
	PlayerBonus   int
	ReferrerBonus int
	GrandBonus    int
}

// DefaultReferralConfig returns the standard bonus tiers.
func DefaultReferralConfig() ReferralConfig {
	return ReferralConfig{
		PlayerBonus:   10,
		ReferrerBonus: 40,
		GrandBonus:    10,
	}
}

// VerificationResult reports the outcome of an email confirmation.
type VerificationResult struct {
	Account         *AccountSummary `json:"account"`
	AlreadyVerified bool            `json:"already_verified"`
}

// VerificationService confirms email ownership and distributes referral
// bonuses up the chain, at most two hops, exactly once per account.
type VerificationService struct {
	db    *gorm.DB
	audit *AuditService
	cfg   ReferralConfig
	now   func() time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(db *gorm.DB, audit *AuditService, cfg ReferralConfig) (*VerificationService, error) {
	if db == nil {
		return nil, errors.New("verification service: db is required")
	}
	if cfg.PlayerBonus <= 0 && cfg.ReferrerBonus <= 0 && cfg.GrandBonus <= 0 {
		cfg = DefaultReferralConfig()
	}
	return &VerificationService{
		db:    db,
		audit: audit,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

// ConfirmEmail verifies the account behind the token and credits bonuses.
//
// Repeated confirmations of the same token are idempotent: the first request
// awards points and stamps the account, every later one reports
// AlreadyVerified without touching the ledger. All mutations happen inside a
// single transaction; row locks are taken in chain order (own row, referrer,
// grand-referrer) so concurrent confirmations naming the same referrer
// serialize instead of losing updates.
func (s *VerificationService) ConfirmEmail(ctx context.Context, token string) (*VerificationResult, error) {
	ctx = ensureContext(ctx)

	token = strings.TrimSpace(token)
	if token == "" {
		metrics.Verifications.WithLabelValues("not_found").Inc()
		return nil, apperrors.ErrNotFound
	}

	var account models.Account
	err := s.db.WithContext(ctx).Take(&account, "verification_token = ?", token).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.Verifications.WithLabelValues("not_found").Inc()
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("verification service: lookup token: %w", err)
	}

	if account.EmailVerified() {
		metrics.Verifications.WithLabelValues("already_verified").Inc()
		return &VerificationResult{Account: NewAccountSummary(&account), AlreadyVerified: true}, nil
	}

	var (
		alreadyVerified bool
		awards          chainAwards
	)

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Re-read under an exclusive lock: a concurrent confirmation of the
		// same token must observe the verified stamp and award nothing.
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Take(&account, "verification_token = ?", token).Error; err != nil {
			return err
		}
		if account.EmailVerified() {
			alreadyVerified = true
			return nil
		}

		verifiedAt := s.now()
		account.EmailVerifiedAt = &verifiedAt
		account.Points += s.cfg.PlayerBonus
		if err := tx.Save(&account).Error; err != nil {
			return err
		}

		if account.ReferrerCode == nil {
			return nil
		}
		var chainErr error
		awards, chainErr = s.creditReferralChain(tx, &account)
		return chainErr
	})
	if err != nil {
		metrics.Verifications.WithLabelValues("error").Inc()
		return nil, apperrors.Wrap(err, "email verification failed")
	}

	if alreadyVerified {
		metrics.Verifications.WithLabelValues("already_verified").Inc()
		return &VerificationResult{Account: NewAccountSummary(&account), AlreadyVerified: true}, nil
	}

	metrics.Verifications.WithLabelValues("verified").Inc()
	metrics.PointsAwarded.WithLabelValues("player").Add(float64(s.cfg.PlayerBonus))
	if awards.referrer > 0 {
		metrics.PointsAwarded.WithLabelValues("referrer").Add(float64(awards.referrer))
	}
	if awards.grand > 0 {
		metrics.PointsAwarded.WithLabelValues("grand").Add(float64(awards.grand))
	}
	recordAudit(s.audit, ctx, AuditEntry{
		AccountID: &account.ID,
		Action:    "prereg.verify",
		Result:    "success",
		Metadata: map[string]any{
			"invite_code": account.InviteCode,
			"referred":    account.ReferrerCode != nil,
		},
	})

	return &VerificationResult{Account: NewAccountSummary(&account)}, nil
}

// chainAwards records what the referral walk actually credited, so metrics
// only count amounts a committed transaction applied.
type chainAwards struct {
	referrer int
	grand    int
}

// creditReferralChain awards the referrer bonus and, one hop further, the
// grand bonus. Traversal is bounded to two hops by construction; the identity
// check stops a two-account mutual-referral cycle from paying the verifying
// account for confirming itself indirectly.
func (s *VerificationService) creditReferralChain(tx *gorm.DB, account *models.Account) (chainAwards, error) {
	var awards chainAwards

	var referrer models.Account
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&referrer, "invite_code = ?", *account.ReferrerCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// Dangling referrer codes are tolerated everywhere.
		return awards, nil
	}
	if err != nil {
		return awards, err
	}

	referrer.Points += s.cfg.ReferrerBonus
	if err := tx.Save(&referrer).Error; err != nil {
		return awards, err
	}
	awards.referrer = s.cfg.ReferrerBonus

	if referrer.ReferrerCode == nil {
		return awards, nil
	}

	var grand models.Account
	err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Take(&grand, "invite_code = ?", *referrer.ReferrerCode).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return awards, nil
	}
	if err != nil {
		return awards, err
	}

	if grand.ID == account.ID {
		return awards, nil
	}

	grand.Points += s.cfg.GrandBonus
	if err := tx.Save(&grand).Error; err != nil {
		return awards, err
	}
	awards.grand = s.cfg.GrandBonus

	return awards, nil
}
