package services

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/models"
)

const defaultRankingLimit = 50

// RankingEntry is one leaderboard row. Position is the 1-based rank in a
// fully deterministic order: points descending, then earliest creation.
type RankingEntry struct {
	Position      int    `json:"position"`
	Name          string `json:"name"`
	Points        int    `json:"points"`
	EmailVerified bool   `json:"email_verified"`
}

// RankingSnapshot is the aggregate view served to the landing page.
type RankingSnapshot struct {
	TotalAccounts  int64          `json:"total_accounts"`
	TotalReferred  int64          `json:"total_referred"`
	ConversionRate float64        `json:"conversion_rate"`
	Entries        []RankingEntry `json:"entries"`
}

// RankingService produces the leaderboard and funnel statistics. Read-only.
type RankingService struct {
	db    *gorm.DB
	limit int
}

// NewRankingService constructs a RankingService. limit <= 0 selects the
// default of 50 entries.
func NewRankingService(db *gorm.DB, limit int) (*RankingService, error) {
	if db == nil {
		return nil, errors.New("ranking service: db is required")
	}
	if limit <= 0 {
		limit = defaultRankingLimit
	}
	return &RankingService{db: db, limit: limit}, nil
}

// Snapshot computes the current standings. Only verified accounts holding
// points appear on the board; the referred count tallies accounts that were
// both invited by someone and completed email verification.
func (s *RankingService) Snapshot(ctx context.Context) (*RankingSnapshot, error) {
	ctx = ensureContext(ctx)

	var total int64
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Count(&total).Error; err != nil {
		return nil, fmt.Errorf("ranking service: count accounts: %w", err)
	}

	var referred int64
	err := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("referrer_code IS NOT NULL AND email_verified_at IS NOT NULL").
		Count(&referred).Error
	if err != nil {
		return nil, fmt.Errorf("ranking service: count referred: %w", err)
	}

	var accounts []models.Account
	err = s.db.WithContext(ctx).
		Where("email_verified_at IS NOT NULL AND points > 0").
		Order("points DESC, created_at ASC").
		Limit(s.limit).
		Find(&accounts).Error
	if err != nil {
		return nil, fmt.Errorf("ranking service: load leaderboard: %w", err)
	}

	entries := make([]RankingEntry, 0, len(accounts))
	for i, account := range accounts {
		entries = append(entries, RankingEntry{
			Position:      i + 1,
			Name:          account.Name,
			Points:        account.Points,
			EmailVerified: account.EmailVerified(),
		})
	}

	rate := 0.0
	if total > 0 {
		rate = float64(referred) / float64(total)
	}

	return &RankingSnapshot{
		TotalAccounts:  total,
		TotalReferred:  referred,
		ConversionRate: rate,
		Entries:        entries,
	}, nil
}
