package postgresengine

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Identifiers are rendered as text literals, Postgres casts them to uuid on comparison.
func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}

	return out
}

func nullableID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}

	return id.String()
}

func idOrNull(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}

	return id.String()
}

func timeOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func idPointer(n uuid.NullUUID) *uuid.UUID {
	if !n.Valid {
		return nil
	}

	id := n.UUID

	return &id
}

func timePointer(n sql.NullTime) *time.Time {
	if !n.Valid {
		return nil
	}

	t := n.Time

	return &t
}

// local converts t to the store's business timezone. Zero times stay zero.
func (s *Store) local(t time.Time) time.Time {
	if s.location == nil || t.IsZero() {
		return t
	}

	return t.In(s.location)
}

func (s *Store) localPointer(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	converted := s.local(*t)

	return &converted
}
