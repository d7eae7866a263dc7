package postgresengine

import (
	"context"
	_ "embed"
	"errors"
)

//go:embed schema.sql
var schema string

// Schema returns the DDL of every table the store reads or writes. It is idempotent.
func Schema() string {
	return schema
}

// CreateSchema runs Schema on the primary.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, schema); err != nil {
		s.logError(ctx, logMsgCreateSchemaFailed, err)
		return errors.Join(ErrCreatingSchemaFailed, err)
	}

	return nil
}
