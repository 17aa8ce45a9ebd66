package services

import (
	"context"
	"strings"
)

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}

// digitsOnly strips every non-digit rune from a phone number.
func digitsOnly(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// normalizeInviteCode trims and upper-cases a referral code.
func normalizeInviteCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
