package errors

// Postgres helpers: SQLSTATE mapping and retry semantics for pgx errors

import (
	"context"
	stderrs "errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgErrUniqueViolation = "23505"
	pgErrSerialization   = "40001"
	pgErrDeadlock        = "40P01"
	pgErrLockUnavailable = "55P03"
)

// sqlStateCodes maps SQLSTATE codes onto ErrorCode; anything else from Postgres is ErrorCodeDB
var sqlStateCodes = map[string]ErrorCode{
	pgErrUniqueViolation: ErrorCodeDuplicateKey,
	"23503":              ErrorCodeInvalidArgument, // foreign key: input referenced a missing row
	"23502":              ErrorCodeValidation,      // not null
	"23514":              ErrorCodeValidation,      // check
	"22001":              ErrorCodeInvalidArgument, // string too long
	"22P02":              ErrorCodeInvalidArgument, // invalid text representation
	"25006":              ErrorCodeUnavailable,     // read only transaction
	"57P03":              ErrorCodeUnavailable,     // cannot connect now
}

// retryText matches the plain text pgx surfaces on commit or lock failures
var retryText = []string{
	"commit unexpectedly resulted in rollback",
	"deadlock detected",
	"could not serialize access",
	"serialization failure",
	"canceling statement due to statement timeout",
	"canceling statement due to lock timeout",
	"could not obtain lock on row",
	"terminating connection due to administrator command",
}

func pgError(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if stderrs.As(err, &pgErr) {
		return pgErr, true
	}
	return nil, false
}

// IsDuplicateKey reports whether the error is a unique constraint violation
func IsDuplicateKey(err error) bool {
	pgErr, ok := pgError(err)
	return ok && pgErr.Code == pgErrUniqueViolation
}

// DBErrorCode maps a Postgres error to an ErrorCode
// !ok means err wasn't a PgError
func DBErrorCode(err error) (ErrorCode, bool) {
	pgErr, ok := pgError(err)
	if !ok {
		return ErrorCodeUnknown, false
	}
	if c, ok := sqlStateCodes[pgErr.Code]; ok {
		return c, true
	}
	return ErrorCodeDB, true
}

// FromPostgres wraps a database error with its mapped ErrorCode; nil stays nil
func FromPostgres(err error, msg string) error {
	if err == nil {
		return nil
	}
	code, ok := DBErrorCode(err)
	if !ok {
		code = ErrorCodeDB
	}
	return Wrap(err, code, msg)
}

// FromPostgresf is the formatted variant of FromPostgres
func FromPostgresf(err error, format string, a ...any) error {
	if err == nil {
		return nil
	}
	return FromPostgres(err, fmt.Sprintf(format, a...))
}

// IsRetryable reports whether a database error is a transient contention failure.
// Local cancellation never retries.
func IsRetryable(err error) bool {
	if err == nil || stderrs.Is(err, context.Canceled) || stderrs.Is(err, context.DeadlineExceeded) {
		return false
	}
	root := Root(err)
	if pgErr, ok := pgError(root); ok {
		switch pgErr.Code {
		case pgErrSerialization, pgErrDeadlock, pgErrLockUnavailable:
			return true
		}
		return false
	}
	s := strings.ToLower(root.Error())
	for _, t := range retryText {
		if strings.Contains(s, t) {
			return true
		}
	}
	return false
}
