package services

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation   = "23505"
	mysqlDuplicateEntry = 1062
)

// isUniqueConstraintError reports whether err is a uniqueness violation,
// regardless of which database driver produced it. Registration relies on
// this to tell an email conflict from an invite-code collision.
func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	var myErr *mysql.MySQLError
	switch {
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return true
	case errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation:
		return true
	case errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry:
		return true
	}

	// SQLite has no typed driver error here, so fall back on the message.
	// Matching only "unique"/"duplicate" keeps other constraint failures,
	// NOT NULL among them, out of the retry path.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") ||
		strings.Contains(msg, "duplicate")
}
