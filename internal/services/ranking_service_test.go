package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotEmptyStore(t *testing.T) {
	db, _ := newTestServices(t)
	svc, err := NewRankingService(db, 0)
	require.NoError(t, err)

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.Zero(t, snap.TotalAccounts)
	assert.Zero(t, snap.TotalReferred)
	assert.Zero(t, snap.ConversionRate)
	assert.Empty(t, snap.Entries)
}

func TestSnapshotFiltersAndOrders(t *testing.T) {
	db, _ := newTestServices(t)
	svc, err := NewRankingService(db, 50)
	require.NoError(t, err)

	top := seedAccount(t, db, "Top", "top@example.com", "TOPAAAAA", seedOptions{verified: true, points: 90})
	referral := top.InviteCode

	mid := seedAccount(t, db, "MidEarly", "mid1@example.com", "MIDAAAAA", seedOptions{
		verified: true, points: 50, referrerCode: &referral,
	})
	require.NoError(t, db.Model(mid).Update("created_at", testNow().Add(-time.Hour)).Error)
	late := seedAccount(t, db, "MidLate", "mid2@example.com", "MIDBBBBB", seedOptions{verified: true, points: 50})
	require.NoError(t, db.Model(late).Update("created_at", testNow()).Error)

	// Excluded from the board: zero points and unverified email.
	seedAccount(t, db, "Zero", "zero@example.com", "ZEROAAAA", seedOptions{verified: true})
	seedAccount(t, db, "Ghost", "ghost@example.com", "GHOSTAAA", seedOptions{points: 70, referrerCode: &referral})

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	assert.EqualValues(t, 5, snap.TotalAccounts)
	// Referred and verified: only MidEarly qualifies (Ghost is unverified).
	assert.EqualValues(t, 1, snap.TotalReferred)
	assert.InDelta(t, 1.0/5.0, snap.ConversionRate, 1e-9)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, []RankingEntry{
		{Position: 1, Name: "Top", Points: 90, EmailVerified: true},
		{Position: 2, Name: "MidEarly", Points: 50, EmailVerified: true},
		{Position: 3, Name: "MidLate", Points: 50, EmailVerified: true},
	}, snap.Entries)
}

func TestSnapshotHonorsLimit(t *testing.T) {
	db, _ := newTestServices(t)
	svc, err := NewRankingService(db, 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		seedAccount(t, db,
			fmt.Sprintf("Player%d", i),
			fmt.Sprintf("p%d@example.com", i),
			fmt.Sprintf("LIMIT%03d", i),
			seedOptions{verified: true, points: 10 * (i + 1)},
		)
	}

	snap, err := svc.Snapshot(context.Background())
	require.NoError(t, err)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, 50, snap.Entries[0].Points)
	assert.Equal(t, 3, snap.Entries[2].Position)

	seen := map[int]bool{}
	for _, entry := range snap.Entries {
		assert.False(t, seen[entry.Position], "positions must be unique")
		seen[entry.Position] = true
		assert.Greater(t, entry.Points, 0)
		assert.True(t, entry.EmailVerified)
	}
}
