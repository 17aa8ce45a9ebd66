package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Account is a pre-registered player. A row is created at sign-up and mutated
// by email verification (points, verified timestamp) and phone confirmation
// (one-time code fields). Rows are never deleted by the registration core.
type Account struct {
	ID    string `gorm:"primaryKey;type:uuid" json:"id"`
	Name  string `gorm:"size:64;not null" json:"name"`
	Email string `gorm:"size:191;uniqueIndex;not null" json:"email"`

	// PhoneNumber holds digits only; nil until supplied or confirmed.
	PhoneNumber *string `gorm:"size:32" json:"phone_number,omitempty"`

	Password string `gorm:"not null" json:"-"`

	// VerificationToken authorises a single email confirmation action and is
	// never exposed in any outward representation.
	VerificationToken string `gorm:"size:64;uniqueIndex;not null" json:"-"`

	// InviteCode is this account's own referral key, upper-cased and trimmed.
	InviteCode string `gorm:"size:32;uniqueIndex;not null" json:"invite_code"`

	// ReferrerCode names the invite code of the referring account. It is a
	// value, not a foreign key, and may dangle if that code never resolves.
	ReferrerCode *string `gorm:"size:32;index" json:"referrer_code,omitempty"`

	// ReferrerName caches the referrer's display name at registration time.
	// It goes stale if the referrer later renames; that is accepted.
	ReferrerName *string `gorm:"size:64" json:"referrer_name,omitempty"`

	Points int `gorm:"not null;default:0" json:"points"`

	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`

	PhoneOTPCode      *string    `gorm:"size:10" json:"-"`
	PhoneOTPExpiresAt *time.Time `json:"-"`
	PhoneVerifiedAt   *time.Time `json:"phone_verified_at,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// EmailVerified reports whether the account confirmed its email address.
func (a *Account) EmailVerified() bool {
	return a.EmailVerifiedAt != nil
}

// BeforeCreate assigns a UUID identifier when none is set.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}
