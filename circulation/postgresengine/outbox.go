package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine/internal/adapters"
)

const (
	castJsonb        = "?::jsonb"
	colSentAt        = "sent_at"
	colOccurredAt    = "occurred_at"
	operationOutbox  = "notification_outbox"
	operationPending = "pending_notifications"
)

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// OutboxEntry is a notification waiting in the outbox for delivery.
type OutboxEntry struct {
	ID           uuid.UUID
	Notification circulation.Notification
}

// Notify implements circulation.Notifier by writing the notification to the outbox table.
// A separate relay delivers and marks the rows.
func (s *Store) Notify(ctx context.Context, notification circulation.Notification) error {
	payload, marshalErr := jsonAPI.Marshal(notification)
	if marshalErr != nil {
		s.logError(ctx, logMsgOutboxWriteFailed, marshalErr, logAttrNotificationKind, string(notification.Kind))
		s.recordDatabaseError(ctx, operationOutbox, errorTypeMarshal)

		return errors.Join(circulation.ErrNotificationFailed, circulation.ErrMarshalingPayload, marshalErr)
	}

	occurredAt := notification.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	sqlQuery, _, toSQLErr := dialect().Insert(tableNotificationOutbox).Rows(goqu.Record{
		"id":          uuid.NewString(),
		"kind":        string(notification.Kind),
		"user_id":     notification.UserID.String(),
		"payload":     goqu.L(castJsonb, string(payload)),
		colOccurredAt: occurredAt,
	}).ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, spanAttrOperation, operationOutbox)
		return errors.Join(circulation.ErrNotificationFailed, circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	start := time.Now()
	_, execErr := s.db.Exec(ctx, sqlQuery)
	s.logQueryWithDuration(ctx, sqlQuery, operationOutbox, time.Since(start))

	if execErr != nil {
		s.logError(ctx, logMsgOutboxWriteFailed, execErr, logAttrNotificationKind, string(notification.Kind))
		s.recordDatabaseError(ctx, operationOutbox, errorTypeDatabaseExec)

		return errors.Join(circulation.ErrNotificationFailed, execErr)
	}

	s.incrementCounter(ctx, metricOutboxWrites, map[string]string{logAttrNotificationKind: string(notification.Kind)})

	return nil
}

// PendingNotifications returns up to limit undelivered notifications, oldest first.
func (s *Store) PendingNotifications(ctx context.Context, limit uint) ([]OutboxEntry, error) {
	stmt := dialect().From(tableNotificationOutbox).
		Select("id", "payload").
		Where(goqu.C(colSentAt).IsNull()).
		Order(goqu.C(colOccurredAt).Asc(), goqu.C(colID).Asc()).
		Limit(limit)

	return queryAll(circulation.WithStrongConsistency(ctx), s, operationPending, stmt, scanOutboxEntry)
}

// MarkNotificationsSent stamps the given outbox rows as delivered at sentAt.
func (s *Store) MarkNotificationsSent(ctx context.Context, ids []uuid.UUID, sentAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}

	sqlQuery, _, toSQLErr := dialect().Update(tableNotificationOutbox).
		Set(goqu.Record{colSentAt: sentAt}).
		Where(goqu.C(colID).In(idStrings(ids)), goqu.C(colSentAt).IsNull()).
		ToSQL()
	if toSQLErr != nil {
		return errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	if _, execErr := s.db.Exec(ctx, sqlQuery); execErr != nil {
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, sqlQuery)
		s.recordDatabaseError(ctx, operationOutbox, errorTypeDatabaseExec)

		return errors.Join(circulation.ErrApplyingChangesFailed, execErr)
	}

	return nil
}

func scanOutboxEntry(row adapters.DBRows) (OutboxEntry, error) {
	var entry OutboxEntry
	var payload []byte

	if err := row.Scan(&entry.ID, &payload); err != nil {
		return entry, err
	}

	if err := jsonAPI.Unmarshal(payload, &entry.Notification); err != nil {
		return entry, fmt.Errorf("outbox entry %s: %w", entry.ID, err)
	}

	return entry, nil
}
