package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	apperrors "github.com/gamelaunch/prereg/pkg/errors"
)

func newOTPService(t *testing.T, db *gorm.DB, sender *fakeSender) *OTPService {
	t.Helper()

	audit, err := NewAuditService(db)
	require.NoError(t, err)
	var s *OTPService
	if sender != nil {
		s, err = NewOTPService(db, sender, audit, DefaultOTPConfig())
	} else {
		s, err = NewOTPService(db, nil, audit, DefaultOTPConfig())
	}
	require.NoError(t, err)
	s.now = testNow
	return s
}

func TestIssueCodeStoresAndDispatches(t *testing.T) {
	db, _ := newTestServices(t)
	sender := &fakeSender{}
	svc := newOTPService(t, db, sender)
	account := seedAccount(t, db, "Hana", "hana@example.com", "HANACODE", seedOptions{})

	err := svc.IssueCode(context.Background(), "HANA@example.com", "+55 11 98888-7777")
	require.NoError(t, err)

	stored := reloadAccount(t, db, account.ID)
	require.NotNil(t, stored.PhoneOTPCode)
	require.NotNil(t, stored.PhoneOTPExpiresAt)
	assert.Len(t, *stored.PhoneOTPCode, 6)
	assert.WithinDuration(t, testNow().Add(10*time.Minute), *stored.PhoneOTPExpiresAt, time.Second)
	require.NotNil(t, stored.PhoneNumber)
	assert.Equal(t, "5511988887777", *stored.PhoneNumber)

	calls := sender.sentCodes()
	require.Len(t, calls, 1)
	assert.Equal(t, "+55 11 98888-7777", calls[0].To)
	assert.Equal(t, *stored.PhoneOTPCode, calls[0].Code)
}

func TestIssueCodeUnknownEmail(t *testing.T) {
	db, _ := newTestServices(t)
	svc := newOTPService(t, db, &fakeSender{})

	err := svc.IssueCode(context.Background(), "ghost@example.com", "5511999990000")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestIssueCodeOverwritesPendingCode(t *testing.T) {
	db, _ := newTestServices(t)
	sender := &fakeSender{}
	svc := newOTPService(t, db, sender)
	account := seedAccount(t, db, "Iris", "iris@example.com", "IRISCODE", seedOptions{})

	require.NoError(t, svc.IssueCode(context.Background(), "iris@example.com", "5511911110000"))
	first := *reloadAccount(t, db, account.ID).PhoneOTPCode

	require.NoError(t, svc.IssueCode(context.Background(), "iris@example.com", "5511911110000"))
	second := *reloadAccount(t, db, account.ID).PhoneOTPCode

	// Only the latest code is live.
	require.Len(t, sender.sentCodes(), 2)
	if first != second {
		err := svc.VerifyCode(context.Background(), "iris@example.com", first)
		require.ErrorIs(t, err, apperrors.ErrInvalidCode)
	}
	require.NoError(t, svc.VerifyCode(context.Background(), "iris@example.com", second))
}

func TestIssueCodeSurfacesDeliveryFailure(t *testing.T) {
	db, _ := newTestServices(t)
	sender := &fakeSender{fail: true}
	svc := newOTPService(t, db, sender)
	account := seedAccount(t, db, "Joao", "joao@example.com", "JOAOCODE", seedOptions{})

	err := svc.IssueCode(context.Background(), "joao@example.com", "5511922220000")
	require.ErrorIs(t, err, apperrors.ErrExternalService)

	// The code stays persisted and valid for a retried dispatch.
	stored := reloadAccount(t, db, account.ID)
	require.NotNil(t, stored.PhoneOTPCode)
	require.NoError(t, svc.VerifyCode(context.Background(), "joao@example.com", *stored.PhoneOTPCode))
}

func TestVerifyCodeLifecycle(t *testing.T) {
	db, _ := newTestServices(t)
	svc := newOTPService(t, db, nil)
	account := seedAccount(t, db, "Kira", "kira@example.com", "KIRACODE", seedOptions{})

	err := svc.VerifyCode(context.Background(), "kira@example.com", "123456")
	require.ErrorIs(t, err, apperrors.ErrNoPendingCode)

	require.NoError(t, svc.IssueCode(context.Background(), "kira@example.com", "5511933330000"))
	code := *reloadAccount(t, db, account.ID).PhoneOTPCode

	err = svc.VerifyCode(context.Background(), "kira@example.com", "000000")
	if code == "000000" {
		require.NoError(t, err)
		return
	}
	require.ErrorIs(t, err, apperrors.ErrInvalidCode)

	require.NoError(t, svc.VerifyCode(context.Background(), "kira@example.com", code))

	stored := reloadAccount(t, db, account.ID)
	assert.Nil(t, stored.PhoneOTPCode)
	assert.Nil(t, stored.PhoneOTPExpiresAt)
	require.NotNil(t, stored.PhoneVerifiedAt)

	// The consumed code cannot be replayed.
	err = svc.VerifyCode(context.Background(), "kira@example.com", code)
	require.ErrorIs(t, err, apperrors.ErrNoPendingCode)
}

func TestVerifyCodeConcurrentSubmissions(t *testing.T) {
	db, _ := newTestServices(t)
	svc := newOTPService(t, db, nil)
	account := seedAccount(t, db, "Mara", "mara@example.com", "MARACODE", seedOptions{})

	require.NoError(t, svc.IssueCode(context.Background(), "mara@example.com", "5511955550000"))
	code := *reloadAccount(t, db, account.ID).PhoneOTPCode

	const attempts = 6
	results := make(chan error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- svc.VerifyCode(context.Background(), "mara@example.com", code)
		}()
	}
	wg.Wait()
	close(results)

	// The locked re-read lets exactly one submission consume the code.
	var succeeded, noPending int
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, apperrors.ErrNoPendingCode):
			noPending++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, attempts-1, noPending)

	stored := reloadAccount(t, db, account.ID)
	assert.Nil(t, stored.PhoneOTPCode)
	require.NotNil(t, stored.PhoneVerifiedAt)
}

func TestVerifyCodeExpired(t *testing.T) {
	db, _ := newTestServices(t)
	svc := newOTPService(t, db, nil)
	account := seedAccount(t, db, "Lena", "lena@example.com", "LENACODE", seedOptions{})

	require.NoError(t, svc.IssueCode(context.Background(), "lena@example.com", "5511944440000"))
	code := *reloadAccount(t, db, account.ID).PhoneOTPCode

	svc.now = func() time.Time { return testNow().Add(10*time.Minute + time.Second) }
	err := svc.VerifyCode(context.Background(), "lena@example.com", code)
	require.ErrorIs(t, err, apperrors.ErrExpiredCode)
}
