package services

import (
	"time"

	"github.com/gamelaunch/prereg/internal/models"
)

// AccountSummary is the outward representation of an account. Credential,
// verification token, and one-time code fields are deliberately absent.
type AccountSummary struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	Email         string     `json:"email"`
	PhoneNumber   string     `json:"phone_number,omitempty"`
	InviteCode    string     `json:"invite_code"`
	ReferrerCode  string     `json:"referrer_code,omitempty"`
	ReferrerName  string     `json:"referrer_name,omitempty"`
	Points        int        `json:"points"`
	EmailVerified bool       `json:"email_verified"`
	PhoneVerified bool       `json:"phone_verified"`
	CreatedAt     time.Time  `json:"created_at"`
	VerifiedAt    *time.Time `json:"email_verified_at,omitempty"`
}

// PublicProfile is the reduced view served for invite-code lookups.
type PublicProfile struct {
	Name          string `json:"name"`
	InviteCode    string `json:"invite_code"`
	Points        int    `json:"points"`
	EmailVerified bool   `json:"email_verified"`
}

// NewAccountSummary maps an account row to its outward representation.
func NewAccountSummary(account *models.Account) *AccountSummary {
	summary := &AccountSummary{
		ID:            account.ID,
		Name:          account.Name,
		Email:         account.Email,
		InviteCode:    account.InviteCode,
		Points:        account.Points,
		EmailVerified: account.EmailVerified(),
		PhoneVerified: account.PhoneVerifiedAt != nil,
		CreatedAt:     account.CreatedAt,
		VerifiedAt:    account.EmailVerifiedAt,
	}

	if account.PhoneNumber != nil {
		summary.PhoneNumber = *account.PhoneNumber
	}
	if account.ReferrerCode != nil {
		summary.ReferrerCode = *account.ReferrerCode
	}
	if account.ReferrerName != nil {
		summary.ReferrerName = *account.ReferrerName
	}

	return summary
}

func newPublicProfile(account *models.Account) *PublicProfile {
	return &PublicProfile{
		Name:          account.Name,
		InviteCode:    account.InviteCode,
		Points:        account.Points,
		EmailVerified: account.EmailVerified(),
	}
}
