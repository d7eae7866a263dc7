package postgresengine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine/internal/adapters"
)

// statement is one write of a ChangeSet.
// A versioned statement that affects no row lost its optimistic version check.
type statement struct {
	sql            string
	entity         string
	id             uuid.UUID
	versioned      bool
	encumberedCode circulation.Code
}

type sqlBuilder interface {
	ToSQL() (string, []any, error)
}

type statementList struct {
	statements []statement
	err        error
}

func (l *statementList) add(builder sqlBuilder, st statement) {
	if l.err != nil {
		return
	}

	sqlQuery, _, err := builder.ToSQL()
	if err != nil {
		l.err = fmt.Errorf("%s %s: %w", st.entity, st.id, err)
		return
	}

	st.sql = sqlQuery
	l.statements = append(l.statements, st)
}

func versionedUpdate(table string, id uuid.UUID, version circulation.Version, record goqu.Record) *goqu.UpdateDataset {
	record[colVersion] = version + 1

	return dialect().Update(table).
		Set(record).
		Where(goqu.C(colID).Eq(id.String()), goqu.C(colVersion).Eq(version))
}

// buildStatements renders every write of changes in the order they must run.
//
//nolint:funlen
func buildStatements(changes *circulation.ChangeSet) ([]statement, error) {
	var list statementList

	for _, nc := range changes.NewCopies {
		list.add(dialect().Insert(tableCopies).Rows(goqu.Record{
			"id":              nc.Copy.ID.String(),
			"catalog_item_id": nc.Copy.CatalogItemID.String(),
			"barcode":         nc.Copy.Barcode,
			"status":          nc.Copy.Status.String(),
			"is_deleted":      nc.Copy.IsDeleted,
			"version":         1,
		}), statement{entity: "copy", id: nc.Copy.ID})

		list.add(dialect().Insert(tableConditionHistory).Rows(goqu.Record{
			"id":          nc.Condition.ID.String(),
			"copy_id":     nc.Copy.ID.String(),
			"condition":   nc.Condition.Condition,
			"note":        nc.Condition.Note,
			"recorded_at": nc.Condition.RecordedAt,
		}), statement{entity: "condition history", id: nc.Condition.ID})
	}

	for _, c := range changes.CopyUpdates {
		list.add(versionedUpdate(tableCopies, c.ID, c.Version, goqu.Record{
			"status":     c.Status.String(),
			"is_deleted": c.IsDeleted,
			"barcode":    c.Barcode,
		}), statement{entity: "copy", id: c.ID, versioned: true})
	}

	for _, c := range changes.CopyDeletes {
		list.add(dialect().Delete(tableCopies).Where(
			goqu.C(colID).Eq(c.ID.String()),
			goqu.C(colVersion).Eq(c.Version),
		), statement{entity: "copy", id: c.ID, versioned: true, encumberedCode: circulation.CodeCopyEncumbered})
	}

	for _, r := range changes.NewInventoryRecords {
		list.add(dialect().Insert(tableInventoryRecords).Rows(goqu.Record{
			"catalog_item_id":  r.CatalogItemID.String(),
			"total_copies":     r.TotalCopies,
			"available_copies": r.AvailableCopies,
			"version":          1,
		}), statement{entity: "inventory record", id: r.CatalogItemID})
	}

	for _, r := range changes.InventoryUpdates {
		list.add(dialect().Update(tableInventoryRecords).
			Set(goqu.Record{
				"total_copies":     r.TotalCopies,
				"available_copies": r.AvailableCopies,
				"version":          r.Version + 1,
			}).
			Where(goqu.C(colCatalogItemID).Eq(r.CatalogItemID.String()), goqu.C(colVersion).Eq(r.Version)),
			statement{entity: "inventory record", id: r.CatalogItemID, versioned: true})
	}

	for _, f := range changes.CanBorrowFlags {
		list.add(dialect().Update(tableCatalogItems).
			Set(goqu.Record{"can_borrow": f.CanBorrow, colVersion: goqu.L(colVersion + " + 1")}).
			Where(goqu.C(colID).Eq(f.CatalogItemID.String())),
			statement{entity: "catalog item", id: f.CatalogItemID})
	}

	for _, c := range changes.CardUpdates {
		list.add(versionedUpdate(tableCards, c.ID, c.Version, goqu.Record{
			"user_id":              nullableID(c.UserID),
			"status":               c.Status.String(),
			"package_id":           idOrNull(c.PackageID),
			"transaction_code":     c.TransactionCode,
			"expiry_date":          timeOrNull(c.ExpiryDate),
			"suspension_end_date":  nullableTime(c.SuspensionEndDate),
			"suspension_reason":    c.SuspensionReason,
			"reject_reason":        c.RejectReason,
			"total_missed_pick_up": c.TotalMissedPickUp,
			"extension_count":      c.ExtensionCount,
			"is_archived":          c.IsArchived,
			"archive_reason":       c.ArchiveReason,
			"previous_user_id":     nullableID(c.PreviousUserID),
			"allow_borrow_more":    c.AllowBorrowMore,
			"max_item_once_time":   c.MaxItemOnceTime,
		}), statement{entity: "library card", id: c.ID, versioned: true})
	}

	for _, r := range changes.RequestUpdates {
		list.add(versionedUpdate(tableBorrowRequests, r.ID, r.Version, goqu.Record{
			"status":          r.Status.String(),
			"expiration_date": r.ExpirationDate,
		}), statement{entity: "borrow request", id: r.ID, versioned: true})
	}

	for _, tx := range changes.NewTransactions {
		list.add(dialect().Insert(tableTransactions).Rows(goqu.Record{
			"code":         tx.Code,
			"type":         tx.Type.String(),
			"status":       tx.Status.String(),
			"method":       tx.Method.String(),
			"user_id":      tx.UserID.String(),
			"reference_id": idOrNull(tx.ReferenceID),
			"amount":       tx.Amount,
			"borrow_days":  tx.BorrowDays,
			"token":        tx.Token,
			"created_at":   tx.CreatedAt,
		}), statement{entity: "transaction " + tx.Code})
	}

	for _, b := range changes.NewDigitalBorrows {
		list.add(dialect().Insert(tableDigitalBorrows).Rows(goqu.Record{
			"id":               b.ID.String(),
			"user_id":          b.UserID.String(),
			"resource_id":      b.ResourceID.String(),
			"resource_type":    b.ResourceType.String(),
			"status":           b.Status.String(),
			"borrow_date":      b.BorrowDate,
			"expiry_date":      b.ExpiryDate,
			"extension_count":  b.ExtensionCount,
			"is_extended":      b.IsExtended,
			"transaction_code": b.TransactionCode,
			"version":          1,
		}), statement{entity: "digital borrow", id: b.ID})
	}

	for _, b := range changes.DigitalBorrowUpdates {
		list.add(versionedUpdate(tableDigitalBorrows, b.ID, b.Version, goqu.Record{
			"status":          b.Status.String(),
			"expiry_date":     b.ExpiryDate,
			"extension_count": b.ExtensionCount,
			"is_extended":     b.IsExtended,
		}), statement{entity: "digital borrow", id: b.ID, versioned: true})
	}

	for _, e := range changes.NewExtensions {
		list.add(dialect().Insert(tableExtensionHistories).Rows(goqu.Record{
			"id":                   e.ID.String(),
			"digital_borrow_id":    e.DigitalBorrowID.String(),
			"transaction_code":     e.TransactionCode,
			"extended_at":          e.ExtendedAt,
			"previous_expiry_date": e.PreviousExpiryDate,
			"new_expiry_date":      e.NewExpiryDate,
			"extension_number":     e.ExtensionNumber,
		}), statement{entity: "extension", id: e.ID})
	}

	return list.statements, list.err
}

// Apply commits every write of changes in one transaction and returns the number of rows written.
// A stale version or a lost insert race rolls everything back with circulation.ErrConcurrencyConflict.
func (s *Store) Apply(ctx context.Context, changes *circulation.ChangeSet) (int64, error) {
	if changes.IsEmpty() {
		return 0, nil
	}

	statements, buildErr := buildStatements(changes)
	if buildErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, buildErr)
		s.recordDatabaseError(ctx, logActionApply, errorTypeBuildQuery)

		return 0, errors.Join(circulation.ErrBuildingQueryFailed, buildErr)
	}

	ctx, span := s.startSpan(ctx, spanNameApply, logActionApply)
	start := time.Now()

	rows, errorType, applyErr := s.applyInTx(ctx, statements)
	duration := time.Since(start)

	if applyErr != nil {
		s.recordDuration(ctx, metricApplyDuration, duration, logActionApply, statusError)
		s.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorType})

		return 0, applyErr
	}

	s.logOperation(ctx, logMsgChangesApplied,
		logAttrStatements, len(statements),
		logAttrRowsAffected, rows,
		logAttrDurationMS, toMilliseconds(duration),
	)
	s.recordDuration(ctx, metricApplyDuration, duration, logActionApply, statusSuccess)
	s.recordValue(ctx, metricRowsApplied, float64(rows), logActionApply)
	s.finishSpan(span, statusSuccess, map[string]string{
		spanAttrRowsAffected: fmt.Sprintf("%d", rows),
		spanAttrStatements:   fmt.Sprintf("%d", len(statements)),
	})

	return rows, nil
}

func (s *Store) applyInTx(ctx context.Context, statements []statement) (int64, string, error) {
	tx, beginErr := s.db.BeginTx(ctx)
	if beginErr != nil {
		s.logError(ctx, logMsgBeginTxFailed, beginErr)
		s.recordDatabaseError(ctx, logActionApply, errorTypeBeginTx)

		return 0, errorTypeBeginTx, errors.Join(circulation.ErrBeginningTxFailed, beginErr)
	}

	var rows int64

	for _, st := range statements {
		start := time.Now()
		result, execErr := tx.Exec(ctx, st.sql)
		s.logQueryWithDuration(ctx, st.sql, logActionApply, time.Since(start))

		if execErr != nil {
			s.rollback(ctx, tx)
			return s.execFailed(ctx, st, execErr)
		}

		affected, affectedErr := result.RowsAffected()
		if affectedErr != nil {
			s.rollback(ctx, tx)
			s.logError(ctx, logMsgDBExecFailed, affectedErr, logAttrQuery, st.sql)
			s.recordDatabaseError(ctx, logActionApply, errorTypeDatabaseExec)

			return 0, errorTypeDatabaseExec, errors.Join(circulation.ErrGettingRowsAffected, affectedErr)
		}

		if st.versioned && affected == 0 {
			s.rollback(ctx, tx)
			s.conflictDetected(ctx, st)

			return 0, errorTypeConcurrencyConflict, versionConflict(st)
		}

		rows += affected
	}

	if commitErr := tx.Commit(ctx); commitErr != nil {
		if isUniqueViolation(commitErr) {
			return 0, errorTypeConcurrencyConflict, errors.Join(circulation.ErrConcurrencyConflict, commitErr)
		}

		s.logError(ctx, logMsgCommitFailed, commitErr)
		s.recordDatabaseError(ctx, logActionApply, errorTypeCommit)

		return 0, errorTypeCommit, errors.Join(circulation.ErrCommittingTxFailed, commitErr)
	}

	return rows, "", nil
}

func (s *Store) execFailed(ctx context.Context, st statement, execErr error) (int64, string, error) {
	err := translateExecError(execErr, st)

	switch {
	case errors.Is(err, circulation.ErrConcurrencyConflict):
		s.conflictDetected(ctx, st)
		return 0, errorTypeConcurrencyConflict, err

	case errors.Is(err, circulation.ErrEncumbered):
		s.logOperation(ctx, logMsgDBExecFailed, logAttrEntity, st.entity, logAttrError, execErr.Error())
		return 0, errorTypeEncumbered, err

	default:
		s.logError(ctx, logMsgDBExecFailed, execErr, logAttrQuery, st.sql)
		s.recordDatabaseError(ctx, logActionApply, errorTypeDatabaseExec)

		return 0, errorTypeDatabaseExec, err
	}
}

func (s *Store) conflictDetected(ctx context.Context, st statement) {
	s.logOperation(ctx, logMsgConcurrencyConflict, logAttrEntity, st.entity)
	s.incrementCounter(ctx, metricConcurrencyConflicts, map[string]string{
		spanAttrOperation: logActionApply,
		logAttrEntity:     st.entity,
	})
}

// rollback runs even when ctx is already canceled, so the connection goes back to the pool clean.
func (s *Store) rollback(ctx context.Context, tx adapters.DBTx) {
	if err := tx.Rollback(context.WithoutCancel(ctx)); err != nil {
		s.log(ctx, levelWarn, logMsgRollbackFailed, logAttrError, err.Error())
	}
}
