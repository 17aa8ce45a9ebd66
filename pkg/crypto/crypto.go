package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// inviteAlphabet is the character set used for player invite codes.
const inviteAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// HashPassword returns a bcrypt hash of the supplied password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// VerifyPassword reports whether the plaintext candidate matches the bcrypt hash.
func VerifyPassword(hashedPassword, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password)) == nil
}

// GenerateToken returns a random URL-safe token of the requested byte length.
func GenerateToken(length int) (string, error) {
	buffer := make([]byte, length)
	if _, err := rand.Read(buffer); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buffer), nil
}

// RandomInviteCode returns an upper-case alphanumeric code of the given length.
// Generation alone does not guarantee uniqueness; callers must retry on a
// store-level uniqueness violation.
func RandomInviteCode(length int) (string, error) {
	return randomFromAlphabet(inviteAlphabet, length)
}

// RandomDigits returns a numeric one-time code of the given length.
func RandomDigits(length int) (string, error) {
	return randomFromAlphabet("0123456789", length)
}

func randomFromAlphabet(alphabet string, length int) (string, error) {
	// Rejection sampling: discard bytes past the largest multiple of the
	// alphabet size so every symbol is equally likely.
	limit := 256 - 256%len(alphabet)

	out := make([]byte, 0, length)
	buffer := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			if int(b) >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}

// SecureCompare performs a fixed-time comparison of two strings. It is used
// for one-time codes so a mismatch cannot be probed via response timing.
func SecureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
