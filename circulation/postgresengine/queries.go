package postgresengine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/google/uuid"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine/internal/adapters"
)

const (
	colID                = "id"
	colVersion           = "version"
	colStatus            = "status"
	colCatalogItemID     = "catalog_item_id"
	colCopyID            = "copy_id"
	colExpiryDate        = "expiry_date"
	colSuspensionEndDate = "suspension_end_date"
	colExpirationDate    = "expiration_date"
	colTransactionCode   = "transaction_code"
	colCode              = "code"

	aliasCopy = "c"
)

var (
	copyColumns = []any{
		goqu.I("c.id"), goqu.I("c.catalog_item_id"), goqu.I("c.barcode"),
		goqu.I("c.status"), goqu.I("c.is_deleted"), goqu.I("c.version"),
	}
	catalogItemColumns = []any{"id", "shelf_id", "can_borrow", "version"}
	inventoryColumns   = []any{"catalog_item_id", "total_copies", "available_copies", "version"}
	packageColumns     = []any{"id", "name", "duration_in_months", "price"}
	cardColumns        = []any{
		"id", "user_id", "status", "package_id", "transaction_code", "expiry_date", "suspension_end_date",
		"suspension_reason", "reject_reason", "total_missed_pick_up", "extension_count", "is_archived",
		"archive_reason", "previous_user_id", "allow_borrow_more", "max_item_once_time", "version",
	}
	requestColumns       = []any{"id", "copy_id", "library_card_id", "status", "expiration_date", "version"}
	resourceColumns      = []any{"id", "title", "type"}
	digitalBorrowColumns = []any{
		"id", "user_id", "resource_id", "resource_type", "status", "borrow_date", "expiry_date",
		"extension_count", "is_extended", "transaction_code", "version",
	}
	extensionColumns = []any{
		"id", "digital_borrow_id", "transaction_code", "extended_at", "previous_expiry_date", "new_expiry_date",
		"extension_number",
	}
	transactionColumns = []any{
		"code", "type", "status", "method", "user_id", "reference_id", "amount", "borrow_days", "token", "created_at",
	}
)

func dialect() goqu.DialectWrapper {
	return goqu.Dialect(dialectPostgres)
}

func (s *Store) CopiesByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.CopyView, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	openRecords := dialect().From(tableBorrowRecords).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.I(tableBorrowRecords+"."+colCopyID).Eq(goqu.I("c.id")),
			goqu.I(tableBorrowRecords+"."+colStatus).Neq(circulation.BorrowRecordReturned.String()),
		)

	openRequests := dialect().From(tableBorrowRequests).
		Select(goqu.COUNT(goqu.Star())).
		Where(
			goqu.I(tableBorrowRequests+"."+colCopyID).Eq(goqu.I("c.id")),
			goqu.I(tableBorrowRequests+"."+colStatus).NotIn(
				circulation.BorrowRequestRejected.String(),
				circulation.BorrowRequestCancelled.String(),
			),
		)

	conditions := dialect().From(tableConditionHistory).
		Select(goqu.COUNT(goqu.Star())).
		Where(goqu.I(tableConditionHistory + "." + colCopyID).Eq(goqu.I("c.id")))

	columns := append(append([]any{}, copyColumns...),
		openRecords.As("open_borrow_records"),
		openRequests.As("open_borrow_requests"),
		conditions.As("condition_entries"),
	)

	stmt := dialect().From(goqu.T(tableCopies).As(aliasCopy)).
		Select(columns...).
		Where(goqu.I("c.id").In(idStrings(ids))).
		Order(goqu.I("c.id").Asc())

	return queryAll(ctx, s, "copies_by_ids", stmt, scanCopyView)
}

func (s *Store) CopiesOfCatalogItem(ctx context.Context, catalogItemID uuid.UUID) ([]circulation.Copy, error) {
	stmt := dialect().From(goqu.T(tableCopies).As(aliasCopy)).
		Select(copyColumns...).
		Where(goqu.I("c." + colCatalogItemID).Eq(catalogItemID.String())).
		Order(goqu.I("c.id").Asc())

	return queryAll(ctx, s, "copies_of_catalog_item", stmt, scanCopy)
}

func (s *Store) CatalogItemsByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.CatalogItem, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt := dialect().From(tableCatalogItems).
		Select(catalogItemColumns...).
		Where(goqu.C(colID).In(idStrings(ids))).
		Order(goqu.C(colID).Asc())

	return queryAll(ctx, s, "catalog_items_by_ids", stmt, scanCatalogItem)
}

func (s *Store) InventoryRecordsByCatalogItems(
	ctx context.Context,
	catalogItemIDs []uuid.UUID,
) ([]circulation.InventoryRecord, error) {
	if len(catalogItemIDs) == 0 {
		return nil, nil
	}

	stmt := dialect().From(tableInventoryRecords).
		Select(inventoryColumns...).
		Where(goqu.C(colCatalogItemID).In(idStrings(catalogItemIDs))).
		Order(goqu.C(colCatalogItemID).Asc())

	return queryAll(ctx, s, "inventory_records", stmt, scanInventoryRecord)
}

func (s *Store) CardByID(ctx context.Context, id uuid.UUID) (circulation.LibraryCard, error) {
	stmt := dialect().From(tableCards).Select(cardColumns...).Where(goqu.C(colID).Eq(id.String()))

	return queryOne(ctx, s, "card_by_id", stmt, s.scanCard)
}

func (s *Store) CardsByIDs(ctx context.Context, ids []uuid.UUID) ([]circulation.LibraryCard, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	stmt := dialect().From(tableCards).
		Select(cardColumns...).
		Where(goqu.C(colID).In(idStrings(ids))).
		Order(goqu.C(colID).Asc())

	return queryAll(ctx, s, "cards_by_ids", stmt, s.scanCard)
}

func (s *Store) PackageByID(ctx context.Context, id uuid.UUID) (circulation.Package, error) {
	stmt := dialect().From(tablePackages).Select(packageColumns...).Where(goqu.C(colID).Eq(id.String()))

	return queryOne(ctx, s, "package_by_id", stmt, scanPackage)
}

func (s *Store) CardsDueForExpiry(ctx context.Context, now time.Time) ([]circulation.LibraryCard, error) {
	stmt := dialect().From(tableCards).
		Select(cardColumns...).
		Where(
			goqu.C(colStatus).Eq(circulation.CardActive.String()),
			goqu.C(colExpiryDate).IsNotNull(),
			goqu.C(colExpiryDate).Lte(now),
		).
		Order(goqu.C(colID).Asc())

	return queryAll(ctx, s, "cards_due_for_expiry", stmt, s.scanCard)
}

func (s *Store) CardsDueForUnsuspension(ctx context.Context, now time.Time) ([]circulation.LibraryCard, error) {
	stmt := dialect().From(tableCards).
		Select(cardColumns...).
		Where(
			goqu.C(colStatus).Eq(circulation.CardSuspended.String()),
			goqu.C(colSuspensionEndDate).Lte(now),
		).
		Order(goqu.C(colID).Asc())

	return queryAll(ctx, s, "cards_due_for_unsuspension", stmt, s.scanCard)
}

func (s *Store) RequestsDueForExpiry(ctx context.Context, now time.Time) ([]circulation.BorrowRequest, error) {
	stmt := dialect().From(tableBorrowRequests).
		Select(requestColumns...).
		Where(
			goqu.C(colStatus).Eq(circulation.BorrowRequestCreated.String()),
			goqu.C(colExpirationDate).Lte(now),
		).
		Order(goqu.C(colID).Asc())

	return queryAll(ctx, s, "requests_due_for_expiry", stmt, s.scanRequest)
}

func (s *Store) ResourceByID(ctx context.Context, id uuid.UUID) (circulation.DigitalResource, error) {
	stmt := dialect().From(tableResources).Select(resourceColumns...).Where(goqu.C(colID).Eq(id.String()))

	return queryOne(ctx, s, "resource_by_id", stmt, scanResource)
}

func (s *Store) DigitalBorrowByID(ctx context.Context, id uuid.UUID) (circulation.DigitalBorrow, error) {
	stmt := dialect().From(tableDigitalBorrows).
		Select(digitalBorrowColumns...).
		Where(goqu.C(colID).Eq(id.String()))

	return queryOne(ctx, s, "digital_borrow_by_id", stmt, s.scanDigitalBorrow)
}

func (s *Store) DigitalBorrowByTransactionCode(ctx context.Context, code string) (circulation.DigitalBorrow, error) {
	stmt := dialect().From(tableDigitalBorrows).
		Select(digitalBorrowColumns...).
		Where(goqu.C(colTransactionCode).Eq(code))

	return queryOne(ctx, s, "digital_borrow_by_transaction_code", stmt, s.scanDigitalBorrow)
}

func (s *Store) ExtensionByTransactionCode(ctx context.Context, code string) (circulation.ExtensionHistory, error) {
	stmt := dialect().From(tableExtensionHistories).
		Select(extensionColumns...).
		Where(goqu.C(colTransactionCode).Eq(code))

	return queryOne(ctx, s, "extension_by_transaction_code", stmt, s.scanExtension)
}

// queryAll runs stmt and scans every row. Reads go to the replica only for eventually consistent contexts.
func queryAll[T any](
	ctx context.Context,
	s *Store,
	operation string,
	stmt *goqu.SelectDataset,
	scan func(adapters.DBRows) (T, error),
) ([]T, error) {
	sqlQuery, _, toSQLErr := stmt.ToSQL()
	if toSQLErr != nil {
		s.logError(ctx, logMsgBuildQueryFailed, toSQLErr, spanAttrOperation, operation)
		s.recordDatabaseError(ctx, operation, errorTypeBuildQuery)

		return nil, errors.Join(circulation.ErrBuildingQueryFailed, toSQLErr)
	}

	ctx, span := s.startSpan(ctx, spanNameQuery, operation)
	start := time.Now()

	fail := func(message, errorType string, kind, err error) ([]T, error) {
		s.logError(ctx, message, err, spanAttrOperation, operation, logAttrQuery, sqlQuery)
		s.recordDatabaseError(ctx, operation, errorType)
		s.recordDuration(ctx, metricQueryDuration, time.Since(start), operation, statusError)
		s.finishSpan(span, statusError, map[string]string{spanAttrErrorType: errorType})

		return nil, errors.Join(kind, err)
	}

	rows, queryErr := s.db.Query(ctx, sqlQuery)
	if queryErr != nil {
		return fail(logMsgDBQueryFailed, errorTypeDatabaseQuery, circulation.ErrQueryingFailed, queryErr)
	}
	defer s.closeRows(ctx, rows)

	var result []T

	for rows.Next() {
		item, scanErr := scan(rows)
		if scanErr != nil {
			return fail(logMsgScanRowFailed, errorTypeRowScan, circulation.ErrScanningDBRowFailed, scanErr)
		}

		result = append(result, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		return fail(logMsgDBQueryFailed, errorTypeDatabaseQuery, circulation.ErrQueryingFailed, rowsErr)
	}

	duration := time.Since(start)
	s.logQueryWithDuration(ctx, sqlQuery, logActionQuery, duration)
	s.recordDuration(ctx, metricQueryDuration, duration, operation, statusSuccess)
	s.finishSpan(span, statusSuccess, map[string]string{logAttrRowCount: fmt.Sprintf("%d", len(result))})

	return result, nil
}

// queryOne is queryAll for a single row. It returns circulation.ErrNotFound when there is none.
func queryOne[T any](
	ctx context.Context,
	s *Store,
	operation string,
	stmt *goqu.SelectDataset,
	scan func(adapters.DBRows) (T, error),
) (T, error) {
	var zero T

	rows, err := queryAll(ctx, s, operation, stmt.Limit(1), scan)
	if err != nil {
		return zero, err
	}

	if len(rows) == 0 {
		return zero, circulation.ErrNotFound
	}

	return rows[0], nil
}

func (s *Store) closeRows(ctx context.Context, rows adapters.DBRows) {
	if closeErr := rows.Close(); closeErr != nil {
		s.log(ctx, levelWarn, logMsgCloseRowsFailed, logAttrError, closeErr.Error())
	}
}

func scanCopy(row adapters.DBRows) (circulation.Copy, error) {
	var c circulation.Copy
	var status string

	if err := row.Scan(&c.ID, &c.CatalogItemID, &c.Barcode, &status, &c.IsDeleted, &c.Version); err != nil {
		return c, err
	}

	return c, parseInto(&c.Status, circulation.ParseCopyStatus, status)
}

func scanCopyView(row adapters.DBRows) (circulation.CopyView, error) {
	var v circulation.CopyView
	var status string

	err := row.Scan(
		&v.ID, &v.CatalogItemID, &v.Barcode, &status, &v.IsDeleted, &v.Version,
		&v.OpenBorrowRecords, &v.OpenBorrowRequests, &v.ConditionEntries,
	)
	if err != nil {
		return v, err
	}

	return v, parseInto(&v.Status, circulation.ParseCopyStatus, status)
}

func scanCatalogItem(row adapters.DBRows) (circulation.CatalogItem, error) {
	var item circulation.CatalogItem
	var shelfID uuid.NullUUID

	if err := row.Scan(&item.ID, &shelfID, &item.CanBorrow, &item.Version); err != nil {
		return item, err
	}

	item.ShelfID = idPointer(shelfID)

	return item, nil
}

func scanInventoryRecord(row adapters.DBRows) (circulation.InventoryRecord, error) {
	var r circulation.InventoryRecord
	err := row.Scan(&r.CatalogItemID, &r.TotalCopies, &r.AvailableCopies, &r.Version)

	return r, err
}

func scanPackage(row adapters.DBRows) (circulation.Package, error) {
	var p circulation.Package
	err := row.Scan(&p.ID, &p.Name, &p.DurationInMonths, &p.Price)

	return p, err
}

func (s *Store) scanCard(row adapters.DBRows) (circulation.LibraryCard, error) {
	var c circulation.LibraryCard
	var status string
	var userID, packageID, previousUserID uuid.NullUUID
	var expiry, suspensionEnd sql.NullTime

	err := row.Scan(
		&c.ID, &userID, &status, &packageID, &c.TransactionCode, &expiry, &suspensionEnd,
		&c.SuspensionReason, &c.RejectReason, &c.TotalMissedPickUp, &c.ExtensionCount, &c.IsArchived,
		&c.ArchiveReason, &previousUserID, &c.AllowBorrowMore, &c.MaxItemOnceTime, &c.Version,
	)
	if err != nil {
		return c, err
	}

	c.UserID = idPointer(userID)
	c.PackageID = packageID.UUID
	c.PreviousUserID = idPointer(previousUserID)
	c.ExpiryDate = s.local(expiry.Time)
	c.SuspensionEndDate = s.localPointer(timePointer(suspensionEnd))

	return c, parseInto(&c.Status, circulation.ParseCardStatus, status)
}

func (s *Store) scanRequest(row adapters.DBRows) (circulation.BorrowRequest, error) {
	var r circulation.BorrowRequest
	var status string
	var cardID uuid.NullUUID

	if err := row.Scan(&r.ID, &r.CopyID, &cardID, &status, &r.ExpirationDate, &r.Version); err != nil {
		return r, err
	}

	r.LibraryCardID = cardID.UUID
	r.ExpirationDate = s.local(r.ExpirationDate)

	return r, parseInto(&r.Status, circulation.ParseBorrowRequestStatus, status)
}

func scanResource(row adapters.DBRows) (circulation.DigitalResource, error) {
	var r circulation.DigitalResource
	var resourceType string

	if err := row.Scan(&r.ID, &r.Title, &resourceType); err != nil {
		return r, err
	}

	return r, parseInto(&r.Type, circulation.ParseResourceType, resourceType)
}

func (s *Store) scanDigitalBorrow(row adapters.DBRows) (circulation.DigitalBorrow, error) {
	var b circulation.DigitalBorrow
	var resourceType, status string

	err := row.Scan(
		&b.ID, &b.UserID, &b.ResourceID, &resourceType, &status, &b.BorrowDate, &b.ExpiryDate,
		&b.ExtensionCount, &b.IsExtended, &b.TransactionCode, &b.Version,
	)
	if err != nil {
		return b, err
	}

	b.BorrowDate = s.local(b.BorrowDate)
	b.ExpiryDate = s.local(b.ExpiryDate)

	return b, errors.Join(
		parseInto(&b.ResourceType, circulation.ParseResourceType, resourceType),
		parseInto(&b.Status, circulation.ParseDigitalBorrowStatus, status),
	)
}

func (s *Store) scanExtension(row adapters.DBRows) (circulation.ExtensionHistory, error) {
	var e circulation.ExtensionHistory
	err := row.Scan(
		&e.ID, &e.DigitalBorrowID, &e.TransactionCode, &e.ExtendedAt, &e.PreviousExpiryDate, &e.NewExpiryDate,
		&e.ExtensionNumber,
	)

	e.ExtendedAt = s.local(e.ExtendedAt)
	e.PreviousExpiryDate = s.local(e.PreviousExpiryDate)
	e.NewExpiryDate = s.local(e.NewExpiryDate)

	return e, err
}

func (s *Store) scanTransaction(row adapters.DBRows) (circulation.Transaction, error) {
	var tx circulation.Transaction
	var txType, status, method string
	var referenceID uuid.NullUUID

	err := row.Scan(
		&tx.Code, &txType, &status, &method, &tx.UserID, &referenceID, &tx.Amount, &tx.BorrowDays, &tx.Token,
		&tx.CreatedAt,
	)
	if err != nil {
		return tx, err
	}

	tx.ReferenceID = referenceID.UUID
	tx.CreatedAt = s.local(tx.CreatedAt)

	return tx, errors.Join(
		parseInto(&tx.Type, circulation.ParseTransactionType, txType),
		parseInto(&tx.Status, circulation.ParseTransactionStatus, status),
		parseInto(&tx.Method, circulation.ParsePaymentMethod, method),
	)
}

func parseInto[T any](target *T, parse func(string) (T, error), name string) error {
	value, err := parse(name)
	if err != nil {
		return unknownEnum(err)
	}

	*target = value

	return nil
}
