package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/gamelaunch/prereg/internal/database/testutil"
	"github.com/gamelaunch/prereg/internal/models"
	"github.com/gamelaunch/prereg/pkg/mail"
)

func testNow() time.Time {
	return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC)
}

type seedOptions struct {
	referrerCode *string
	verified     bool
	points       int
}

func seedAccount(t *testing.T, db *gorm.DB, name, email, invite string, opts seedOptions) *models.Account {
	t.Helper()

	phone := "5511999990000"
	account := &models.Account{
		Name:              name,
		Email:             email,
		PhoneNumber:       &phone,
		Password:          "$2a$10$abcdefghijklmnopqrstuv",
		VerificationToken: "token-" + invite,
		InviteCode:        invite,
		ReferrerCode:      opts.referrerCode,
		Points:            opts.points,
	}
	if opts.verified {
		now := testNow()
		account.EmailVerifiedAt = &now
	}
	require.NoError(t, db.Create(account).Error)
	return account
}

func reloadAccount(t *testing.T, db *gorm.DB, id string) *models.Account {
	t.Helper()

	var account models.Account
	require.NoError(t, db.Take(&account, "id = ?", id).Error)
	return &account
}

func newTestServices(t *testing.T) (*gorm.DB, *AuditService) {
	t.Helper()

	db := testutil.MustOpenTestDB(t)
	audit, err := NewAuditService(db)
	require.NoError(t, err)
	return db, audit
}

// fakeMailer records sent messages and can be told to fail.
type fakeMailer struct {
	mu       sync.Mutex
	messages []mail.Message
	fail     bool
}

func (m *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("smtp unavailable")
	}
	m.messages = append(m.messages, msg)
	return nil
}

func (m *fakeMailer) sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

// fakeSender records dispatched OTP codes and can be told to fail.
type fakeSender struct {
	mu    sync.Mutex
	calls []sentCode
	fail  bool
}

type sentCode struct {
	To   string
	Code string
}

func (s *fakeSender) SendCode(_ context.Context, to, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("graph api unavailable")
	}
	s.calls = append(s.calls, sentCode{To: to, Code: code})
	return nil
}

func (s *fakeSender) sentCodes() []sentCode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]sentCode(nil), s.calls...)
}
