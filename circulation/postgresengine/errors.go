package postgresengine

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

const (
	sqlStateForeignKeyViolation = "23503"
	sqlStateUniqueViolation     = "23505"
)

// sqlState extracts the SQLSTATE from a pgx or lib/pq error.
func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}

	return ""
}

func isUniqueViolation(err error) bool {
	return sqlState(err) == sqlStateUniqueViolation
}

func isForeignKeyViolation(err error) bool {
	return sqlState(err) == sqlStateForeignKeyViolation
}

// translateExecError maps a failed statement onto the error the engine acts on.
// A lost insert race is a concurrency conflict, so the caller re-reads and finds the winner's row.
func translateExecError(err error, st statement) error {
	switch {
	case isUniqueViolation(err):
		return errors.Join(circulation.ErrConcurrencyConflict, fmt.Errorf("%s %s was inserted concurrently", st.entity, st.id))

	case isForeignKeyViolation(err) && st.encumberedCode != "":
		return circulation.Encumbered(st.encumberedCode, st.entity, st.id)

	default:
		return errors.Join(circulation.ErrApplyingChangesFailed, err)
	}
}

func versionConflict(st statement) error {
	return errors.Join(circulation.ErrConcurrencyConflict, fmt.Errorf("%s %s was changed concurrently", st.entity, st.id))
}

func unknownEnum(err error) error {
	return errors.Join(ErrUnknownEnumValue, err)
}
