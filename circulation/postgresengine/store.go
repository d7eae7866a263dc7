package postgresengine

import (
	"database/sql"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"

	"github.com/AntonStoeckl/circulation-consistency-go/circulation"
	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine/internal/adapters"
)

const (
	dialectPostgres = "postgres"

	tableCatalogItems       = "catalog_items"
	tableCopies             = "book_copies"
	tableConditionHistory   = "condition_history"
	tableInventoryRecords   = "inventory_records"
	tablePackages           = "packages"
	tableCards              = "library_cards"
	tableBorrowRecords      = "borrow_records"
	tableBorrowRequests     = "borrow_requests"
	tableTransactions       = "payment_transactions"
	tableResources          = "digital_resources"
	tableDigitalBorrows     = "digital_borrows"
	tableExtensionHistories = "extension_histories"
	tableNotificationOutbox = "notification_outbox"

	logMsgBuildQueryFailed    = "failed to build query"
	logMsgDBQueryFailed       = "database query execution failed"
	logMsgScanRowFailed       = "failed to scan database row"
	logMsgCloseRowsFailed     = "failed to close database rows"
	logMsgBeginTxFailed       = "failed to begin transaction"
	logMsgDBExecFailed        = "database execution failed while applying changes"
	logMsgCommitFailed        = "failed to commit transaction"
	logMsgRollbackFailed      = "failed to roll back transaction"
	logMsgCreateSchemaFailed  = "failed to create schema"
	logMsgOutboxWriteFailed   = "failed to write notification to outbox"
	logMsgChangesApplied      = "changes applied"
	logMsgConcurrencyConflict = "concurrency conflict detected"
	logMsgSQLExecuted         = "executed sql for: "
	logMsgOperation           = "circulation store operation: "
	logAttrError              = "error"
	logAttrQuery              = "query"
	logAttrRowCount           = "row_count"
	logAttrStatements         = "statements"
	logAttrRowsAffected       = "rows_affected"
	logAttrDurationMS         = "duration_ms"
	logAttrEntity             = "entity"
	logAttrNotificationKind   = "notification_kind"
	logActionQuery            = "query"
	logActionApply            = "apply"
)

var (
	// ErrCreatingSchemaFailed is returned when the DDL could not be executed.
	ErrCreatingSchemaFailed = errors.New("creating schema failed")

	// ErrUnknownEnumValue is returned when a persisted status or type name cannot be parsed.
	ErrUnknownEnumValue = errors.New("unknown persisted enum value")
)

// Store is the PostgreSQL implementation of circulation.Store, circulation.PaymentLookup, and circulation.Notifier.
type Store struct {
	db               adapters.DBAdapter
	logger           circulation.Logger
	contextualLogger circulation.ContextualLogger
	metricsCollector circulation.MetricsCollector
	tracingCollector circulation.TracingCollector
	location         *time.Location
}

// Option defines a functional option for configuring Store.
type Option func(*Store) error

// WithLogger sets the logger.
// Debug level receives every SQL statement with its timing, Info level row counts and
// concurrency conflicts, Error level failed statements.
func WithLogger(logger circulation.Logger) Option {
	return func(s *Store) error {
		s.logger = logger
		return nil
	}
}

// WithContextualLogger sets a context-aware logger, preferred over the plain one.
func WithContextualLogger(logger circulation.ContextualLogger) Option {
	return func(s *Store) error {
		s.contextualLogger = logger
		return nil
	}
}

// WithMetrics sets the metrics collector for query and apply durations, conflicts, and database errors.
func WithMetrics(collector circulation.MetricsCollector) Option {
	return func(s *Store) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracing sets the tracing collector. Every query and apply gets its own span.
func WithTracing(collector circulation.TracingCollector) Option {
	return func(s *Store) error {
		s.tracingCollector = collector
		return nil
	}
}

// WithLocation sets the business timezone every timestamp read from the database is converted to.
// Without it timestamps keep the location the driver returns them in.
func WithLocation(location *time.Location) Option {
	return func(s *Store) error {
		if location == nil {
			return circulation.ErrInvalidBusinessTZ
		}

		s.location = location

		return nil
	}
}

// NewStoreFromPGXPool creates a Store on a pgx pool.
func NewStoreFromPGXPool(db *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapter(db), options)
}

// NewStoreFromPGXPoolAndReplica creates a Store whose eventually consistent reads go to replica.
func NewStoreFromPGXPoolAndReplica(db *pgxpool.Pool, replica *pgxpool.Pool, options ...Option) (*Store, error) {
	if db == nil || replica == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewPGXAdapterWithReplica(db, replica), options)
}

// NewStoreFromSQLDB creates a Store on a sql.DB.
func NewStoreFromSQLDB(db *sql.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapter(db), options)
}

// NewStoreFromSQLDBAndReplica creates a Store on a sql.DB whose eventually consistent reads go to replica.
func NewStoreFromSQLDBAndReplica(db *sql.DB, replica *sql.DB, options ...Option) (*Store, error) {
	if db == nil || replica == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLAdapterWithReplica(db, replica), options)
}

// NewStoreFromSQLX creates a Store on a sqlx.DB.
func NewStoreFromSQLX(db *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapter(db), options)
}

// NewStoreFromSQLXAndReplica creates a Store on a sqlx.DB whose eventually consistent reads go to replica.
func NewStoreFromSQLXAndReplica(db *sqlx.DB, replica *sqlx.DB, options ...Option) (*Store, error) {
	if db == nil || replica == nil {
		return nil, circulation.ErrNilDatabaseConnection
	}

	return newStore(adapters.NewSQLXAdapterWithReplica(db, replica), options)
}

func newStore(db adapters.DBAdapter, options []Option) (*Store, error) {
	s := &Store{db: db}

	for _, option := range options {
		if err := option(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}
