package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AuditLog records a registration-funnel event (sign-up, verification,
// one-time code issue/consume, login) for operational forensics.
type AuditLog struct {
	ID        string  `gorm:"primaryKey;type:uuid" json:"id"`
	AccountID *string `gorm:"type:uuid;index" json:"account_id,omitempty"`

	Action string `gorm:"size:64;not null;index" json:"action"`
	Result string `gorm:"size:32;not null" json:"result"`

	IPAddress string `gorm:"size:64" json:"ip_address,omitempty"`
	UserAgent string `gorm:"size:256" json:"user_agent,omitempty"`

	Metadata datatypes.JSON `json:"metadata,omitempty"`

	CreatedAt time.Time `gorm:"index" json:"created_at"`
}

// BeforeCreate assigns a UUID identifier when none is set.
func (l *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = uuid.NewString()
	}
	return nil
}
