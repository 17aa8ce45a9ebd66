package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/auth"
	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/pkg/crypto"
	apperrors "github.com/gamelaunch/prereg/pkg/errors"
	"github.com/gamelaunch/prereg/pkg/metrics"
)

// LoginResult carries the issued token and the authenticated account.
type LoginResult struct {
	Token   string          `json:"token"`
	Account *AccountSummary `json:"account"`
}

// AuthService authenticates accounts with email and password.
type AuthService struct {
	db    *gorm.DB
	jwt   *auth.JWTService
	audit *AuditService
}

// NewAuthService constructs an AuthService.
func NewAuthService(db *gorm.DB, jwtService *auth.JWTService, audit *AuditService) (*AuthService, error) {
	if db == nil {
		return nil, errors.New("auth service: db is required")
	}
	if jwtService == nil {
		return nil, errors.New("auth service: jwt service is required")
	}
	return &AuthService{db: db, jwt: jwtService, audit: audit}, nil
}

// Login checks the credential pair and issues an access token. Unknown email
// and wrong password collapse into the same failure so the endpoint does not
// leak which emails exist. Unverified accounts cannot log in.
func (s *AuthService) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	ctx = ensureContext(ctx)

	email = normalizeEmail(email)
	var account models.Account
	err := s.db.WithContext(ctx).Take(&account, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("auth service: load account: %w", err)
	}

	if !crypto.VerifyPassword(account.Password, password) {
		metrics.LoginAttempts.WithLabelValues("rejected").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !account.EmailVerified() {
		metrics.LoginAttempts.WithLabelValues("unverified").Inc()
		return nil, apperrors.ErrEmailNotVerified
	}

	token, err := s.jwt.GenerateAccessToken(account.ID)
	if err != nil {
		return nil, fmt.Errorf("auth service: issue token: %w", err)
	}

	metrics.LoginAttempts.WithLabelValues("success").Inc()
	recordAudit(s.audit, ctx, AuditEntry{
		AccountID: &account.ID,
		Action:    "auth.login",
		Result:    "success",
	})

	return &LoginResult{Token: token, Account: NewAccountSummary(&account)}, nil
}
