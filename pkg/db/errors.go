package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

// IsUniqueViolation reports whether err is a unique constraint violation. When
// targets are provided the violation must reference one of them: the
// constraint name on Postgres or the "table.column" pair SQLite reports.
func IsUniqueViolation(err error, targets ...string) bool {
	if err == nil {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != pgUniqueViolation {
			return false
		}
		if len(targets) == 0 {
			return true
		}
		return matchesAny(pgErr.ConstraintName+" "+pgErr.Detail+" "+pgErr.Message, targets)
	}

	msg := err.Error()
	if !strings.Contains(msg, "duplicate key value") && !strings.Contains(msg, "UNIQUE constraint failed") {
		return false
	}
	if len(targets) == 0 {
		return true
	}
	return matchesAny(msg, targets)
}

func matchesAny(haystack string, targets []string) bool {
	for _, target := range targets {
		if target != "" && strings.Contains(haystack, target) {
			return true
		}
	}
	return false
}
