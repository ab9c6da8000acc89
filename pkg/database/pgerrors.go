package database

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL SQLSTATE codes the repositories branch on.
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeNotNullViolation    = "23502"
	codeUndefinedTable      = "42P01"
)

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

func hasCode(err error, code string) bool {
	return err != nil && sqlState(err) == code
}

// IsUniqueViolation reports whether err is a duplicate-key error.
func IsUniqueViolation(err error) bool {
	return hasCode(err, codeUniqueViolation)
}

// IsUndefinedTable reports whether err means the relation does not exist.
func IsUndefinedTable(err error) bool {
	return hasCode(err, codeUndefinedTable)
}

// IsConstraintViolation reports whether err is any integrity constraint error.
func IsConstraintViolation(err error) bool {
	for _, code := range []string{codeUniqueViolation, codeForeignKeyViolation, codeCheckViolation, codeNotNullViolation} {
		if hasCode(err, code) {
			return true
		}
	}
	return false
}
