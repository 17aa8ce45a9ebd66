package models

import (
	"time"
)

// CacheEntry is a database-backed key/value row used for shared counters
// such as rate-limit windows.
type CacheEntry struct {
	Key       string    `gorm:"primaryKey;size:256"`
	Value     []byte    `gorm:"type:blob"`
	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
	UpdatedAt time.Time
}
