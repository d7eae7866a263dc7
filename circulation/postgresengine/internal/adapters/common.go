package adapters

import (
	"context"
	"database/sql"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
)

func useReplica(ctx context.Context, hasReplica bool) bool {
	return hasReplica && circulation.GetConsistencyLevel(ctx) == circulation.EventualConsistency
}

func readCommitted() *sql.TxOptions {
	return &sql.TxOptions{Isolation: sql.LevelReadCommitted}
}

// stdRows wraps sql.Rows, which sqlx rows embed as well.
type stdRows struct {
	rows *sql.Rows
}

func (s *stdRows) Next() bool {
	return s.rows.Next()
}

func (s *stdRows) Scan(dest ...any) error {
	return s.rows.Scan(dest...)
}

func (s *stdRows) Err() error {
	return s.rows.Err()
}

func (s *stdRows) Close() error {
	return s.rows.Close()
}

type stdResult struct {
	result sql.Result
}

func (s *stdResult) RowsAffected() (int64, error) {
	return s.result.RowsAffected()
}

// stdTx wraps anything that behaves like sql.Tx. The context of Commit and Rollback is ignored,
// database/sql binds it at BeginTx.
type stdTx struct {
	exec     func(ctx context.Context, query string, args ...any) (sql.Result, error)
	commit   func() error
	rollback func() error
}

func (s *stdTx) Exec(ctx context.Context, query string) (DBResult, error) {
	result, err := s.exec(ctx, query)
	if err != nil {
		return nil, err
	}

	return &stdResult{result: result}, nil
}

func (s *stdTx) Commit(_ context.Context) error {
	return s.commit()
}

func (s *stdTx) Rollback(_ context.Context) error {
	return s.rollback()
}
