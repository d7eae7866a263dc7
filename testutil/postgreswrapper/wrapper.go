package postgreswrapper

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // postgres dialect
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine"
	"github.com/AntonStoeckl/circulation-consistency-go/config"
)

// Environment variables selecting the test database.
const (
	EnvTestDSN     = "CIRCULATION_TEST_DSN"
	EnvAdapterType = "ADAPTER_TYPE"
)

var tables = []string{
	"notification_outbox", "extension_histories", "digital_borrows", "digital_resources",
	"payment_transactions", "borrow_requests", "borrow_records", "library_cards", "packages",
	"inventory_records", "condition_history", "book_copies", "catalog_items",
}

// Wrapper abstracts over the adapter types.
type Wrapper interface {
	Store() *postgresengine.Store
	Exec(ctx context.Context, query string) error
	Close()
}

// PGXPoolWrapper wraps pgxpool-based testing.
type PGXPoolWrapper struct {
	pool  *pgxpool.Pool
	store *postgresengine.Store
}

func (w *PGXPoolWrapper) Store() *postgresengine.Store {
	return w.store
}

func (w *PGXPoolWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.pool.Exec(ctx, query)
	return err
}

func (w *PGXPoolWrapper) Close() {
	w.pool.Close()
}

// SQLDBWrapper wraps sql.DB-based testing.
type SQLDBWrapper struct {
	db    *sql.DB
	store *postgresengine.Store
}

func (w *SQLDBWrapper) Store() *postgresengine.Store {
	return w.store
}

func (w *SQLDBWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLDBWrapper) Close() {
	_ = w.db.Close()
}

// SQLXWrapper wraps sqlx-based testing.
type SQLXWrapper struct {
	db    *sqlx.DB
	store *postgresengine.Store
}

func (w *SQLXWrapper) Store() *postgresengine.Store {
	return w.store
}

func (w *SQLXWrapper) Exec(ctx context.Context, query string) error {
	_, err := w.db.ExecContext(ctx, query)
	return err
}

func (w *SQLXWrapper) Close() {
	_ = w.db.Close()
}

// CreateWrapperWithTestConfig opens the adapter named by ADAPTER_TYPE, creates the schema and empties every table.
// It skips the test when CIRCULATION_TEST_DSN is not set.
func CreateWrapperWithTestConfig(t testing.TB, options ...postgresengine.Option) Wrapper {
	t.Helper()

	dsn := os.Getenv(EnvTestDSN)
	if dsn == "" {
		t.Skipf("%s is not set", EnvTestDSN)
	}

	ctx := context.Background()
	pg := config.DefaultPostgres()
	pg.MinConns = 1

	var wrapper Wrapper

	switch adapterType := strings.ToLower(os.Getenv(EnvAdapterType)); adapterType {
	case config.AdapterPGXPool, "":
		poolConfig, err := pg.PGXPoolConfig(dsn)
		require.NoError(t, err)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		require.NoError(t, err, "error connecting to DB pool in test setup")

		store, err := postgresengine.NewStoreFromPGXPool(pool, options...)
		require.NoError(t, err)

		wrapper = &PGXPoolWrapper{pool: pool, store: store}

	case config.AdapterSQLDB:
		db, err := pg.OpenSQLDB(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")

		store, err := postgresengine.NewStoreFromSQLDB(db, options...)
		require.NoError(t, err)

		wrapper = &SQLDBWrapper{db: db, store: store}

	case config.AdapterSQLX:
		db, err := pg.OpenSQLX(ctx, dsn)
		require.NoError(t, err, "error connecting to DB in test setup")

		store, err := postgresengine.NewStoreFromSQLX(db, options...)
		require.NoError(t, err)

		wrapper = &SQLXWrapper{db: db, store: store}

	default:
		panic(fmt.Sprintf("unsupported wrapper type from env: %s", adapterType))
	}

	require.NoError(t, wrapper.Store().CreateSchema(ctx), "error creating the schema")
	CleanUp(t, wrapper)
	t.Cleanup(wrapper.Close)

	return wrapper
}

// CleanUp empties every table of the schema.
func CleanUp(t testing.TB, wrapper Wrapper) {
	t.Helper()

	err := wrapper.Exec(context.Background(), "TRUNCATE TABLE "+strings.Join(tables, ", ")+" CASCADE")
	require.NoError(t, err, "error cleaning up the tables")
}

func insert(t testing.TB, wrapper Wrapper, table string, record goqu.Record) {
	t.Helper()

	query, _, err := goqu.Dialect("postgres").Insert(table).Rows(record).ToSQL()
	require.NoError(t, err)
	require.NoError(t, wrapper.Exec(context.Background(), query), "error seeding %s", table)
}

func idOrNull(id *uuid.UUID) any {
	if id == nil || *id == uuid.Nil {
		return nil
	}

	return id.String()
}

func timePointerOrNull(t *time.Time) any {
	if t == nil {
		return nil
	}

	return *t
}

func timeOrNull(t time.Time) any {
	if t.IsZero() {
		return nil
	}

	return t
}

// SeedCatalogItem inserts a catalog item.
func SeedCatalogItem(t testing.TB, wrapper Wrapper, item circulation.CatalogItem) {
	insert(t, wrapper, "catalog_items", goqu.Record{
		"id":         item.ID.String(),
		"shelf_id":   idOrNull(item.ShelfID),
		"can_borrow": item.CanBorrow,
		"version":    versionOrOne(item.Version),
	})
}

// SeedPackage inserts a membership package.
func SeedPackage(t testing.TB, wrapper Wrapper, pkg circulation.Package) {
	insert(t, wrapper, "packages", goqu.Record{
		"id":                 pkg.ID.String(),
		"name":               pkg.Name,
		"duration_in_months": pkg.DurationInMonths,
		"price":              pkg.Price,
	})
}

// SeedCard inserts a library card. Its package, if any, must be seeded first.
func SeedCard(t testing.TB, wrapper Wrapper, card circulation.LibraryCard) {
	insert(t, wrapper, "library_cards", goqu.Record{
		"id":                   card.ID.String(),
		"user_id":              idOrNull(card.UserID),
		"status":               card.Status.String(),
		"package_id":           idOrNull(&card.PackageID),
		"transaction_code":     card.TransactionCode,
		"expiry_date":          timeOrNull(card.ExpiryDate),
		"suspension_end_date":  timePointerOrNull(card.SuspensionEndDate),
		"suspension_reason":    card.SuspensionReason,
		"reject_reason":        card.RejectReason,
		"total_missed_pick_up": card.TotalMissedPickUp,
		"extension_count":      card.ExtensionCount,
		"is_archived":          card.IsArchived,
		"archive_reason":       card.ArchiveReason,
		"previous_user_id":     idOrNull(card.PreviousUserID),
		"allow_borrow_more":    card.AllowBorrowMore,
		"max_item_once_time":   card.MaxItemOnceTime,
		"version":              versionOrOne(card.Version),
	})
}

// SeedResource inserts a digital resource.
func SeedResource(t testing.TB, wrapper Wrapper, resource circulation.DigitalResource) {
	insert(t, wrapper, "digital_resources", goqu.Record{
		"id":    resource.ID.String(),
		"title": resource.Title,
		"type":  resource.Type.String(),
	})
}

// SeedBorrowRecord inserts a physical loan. Its copy and card must be seeded first.
func SeedBorrowRecord(t testing.TB, wrapper Wrapper, record circulation.BorrowRecord) {
	insert(t, wrapper, "borrow_records", goqu.Record{
		"id":              record.ID.String(),
		"copy_id":         record.CopyID.String(),
		"library_card_id": record.LibraryCardID.String(),
		"status":          record.Status.String(),
	})
}

// SeedBorrowRequest inserts a reservation. Its copy and card must be seeded first.
func SeedBorrowRequest(t testing.TB, wrapper Wrapper, request circulation.BorrowRequest) {
	insert(t, wrapper, "borrow_requests", goqu.Record{
		"id":              request.ID.String(),
		"copy_id":         request.CopyID.String(),
		"library_card_id": request.LibraryCardID.String(),
		"status":          request.Status.String(),
		"expiration_date": request.ExpirationDate,
		"version":         versionOrOne(request.Version),
	})
}

// Seed applies changes through the store itself, for everything the engine can insert on its own.
func Seed(t testing.TB, wrapper Wrapper, changes *circulation.ChangeSet) {
	t.Helper()

	_, err := wrapper.Store().Apply(context.Background(), changes)
	require.NoError(t, err, "error seeding via Apply")
}

func versionOrOne(version circulation.Version) circulation.Version {
	if version == 0 {
		return 1
	}

	return version
}
