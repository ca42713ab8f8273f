package sqlstore

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// pgUniqueViolation is SQLSTATE 23505.
const pgUniqueViolation = "23505"

// uniqueViolation reports which unique constraint err violated, as the
// constraint name from the migrations (e.g. "users_email_key"), or "" when
// err is not a unique violation.
//
// PostgreSQL reports the constraint name directly. SQLite only reports the
// columns ("UNIQUE constraint failed: users.email"), so they are mapped back.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == pgUniqueViolation {
			return pgErr.ConstraintName
		}
		return ""
	}

	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT {
		msg := liteErr.Error()
		if liteErr.Code() != sqlite3.SQLITE_CONSTRAINT_UNIQUE && !strings.Contains(msg, "UNIQUE") {
			return ""
		}
		switch {
		case strings.Contains(msg, "users.email"):
			return "users_email_key"
		case strings.Contains(msg, "users.username"):
			return "users_username_key"
		}
		return "unique"
	}

	return ""
}
