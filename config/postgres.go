package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver

	"github.com/AntonStoeckl/circulation-consistency-go/circulation/postgresengine"
)

// Adapter types a Postgres store can run on.
const (
	AdapterPGXPool = "pgxpool"
	AdapterSQLDB   = "sqldb"
	AdapterSQLX    = "sqlx"
)

const driverPostgres = "postgres"

var (
	// ErrUnsupportedAdapter is returned for an adapter type that is not one of the known ones.
	ErrUnsupportedAdapter = errors.New("unsupported adapter type")

	// ErrMissingDSN is returned when no primary DSN is configured.
	ErrMissingDSN = errors.New("postgres DSN must not be empty")

	// ErrConnectingFailed is returned when the database cannot be reached.
	ErrConnectingFailed = errors.New("connecting to postgres failed")
)

// Postgres describes the primary database, an optional read replica, and the pool sizing.
type Postgres struct {
	DSN             string
	ReplicaDSN      string
	Adapter         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultPostgres returns the pool sizing used in production, without DSNs.
func DefaultPostgres() Postgres {
	return Postgres{
		Adapter:         AdapterPGXPool,
		MaxConns:        20,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// PGXPoolConfig parses dsn and applies the pool sizing.
func (p Postgres) PGXPoolConfig(dsn string) (*pgxpool.Config, error) {
	const defaultHealthCheckPeriod = time.Minute

	dbConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	dbConfig.MaxConns = p.MaxConns
	dbConfig.MinConns = p.MinConns
	dbConfig.MaxConnLifetime = p.MaxConnLifetime
	dbConfig.MaxConnIdleTime = p.MaxConnIdleTime
	dbConfig.HealthCheckPeriod = defaultHealthCheckPeriod
	dbConfig.ConnConfig.ConnectTimeout = p.ConnectTimeout

	return dbConfig, nil
}

// OpenSQLDB opens and pings a database/sql pool on the lib/pq driver.
func (p Postgres) OpenSQLDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open(driverPostgres, dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	p.configureSQLPool(db)

	if pingErr := p.ping(ctx, db.PingContext); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

// OpenSQLX opens and pings a sqlx pool on the lib/pq driver.
func (p Postgres) OpenSQLX(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(driverPostgres, dsn)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	p.configureSQLPool(db.DB)

	if pingErr := p.ping(ctx, db.PingContext); pingErr != nil {
		_ = db.Close()
		return nil, pingErr
	}

	return db, nil
}

func (p Postgres) configureSQLPool(db *sql.DB) {
	db.SetMaxOpenConns(int(p.MaxConns))
	db.SetMaxIdleConns(int(p.MinConns))
	db.SetConnMaxLifetime(p.MaxConnLifetime)
	db.SetConnMaxIdleTime(p.MaxConnIdleTime)
}

func (p Postgres) ping(ctx context.Context, ping func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, p.ConnectTimeout)
	defer cancel()

	if err := ping(ctx); err != nil {
		return errors.Join(ErrConnectingFailed, err)
	}

	return nil
}

// OpenStore connects with the configured adapter and returns the store together with a func closing every pool.
func (p Postgres) OpenStore(ctx context.Context, options ...postgresengine.Option) (*postgresengine.Store, func(), error) {
	if p.DSN == "" {
		return nil, nil, ErrMissingDSN
	}

	switch strings.ToLower(p.Adapter) {
	case AdapterPGXPool, "":
		return p.openPGXPoolStore(ctx, options)

	case AdapterSQLDB:
		return p.openSQLDBStore(ctx, options)

	case AdapterSQLX:
		return p.openSQLXStore(ctx, options)

	default:
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedAdapter, p.Adapter)
	}
}

func (p Postgres) openPGXPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolConfig, err := p.PGXPoolConfig(dsn)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Join(ErrConnectingFailed, err)
	}

	if pingErr := p.ping(ctx, pool.Ping); pingErr != nil {
		pool.Close()
		return nil, pingErr
	}

	return pool, nil
}

func (p Postgres) openPGXPoolStore(
	ctx context.Context,
	options []postgresengine.Option,
) (*postgresengine.Store, func(), error) {

	primary, err := p.openPGXPool(ctx, p.DSN)
	if err != nil {
		return nil, nil, err
	}

	if p.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromPGXPool(primary, options...)
		if storeErr != nil {
			primary.Close()
			return nil, nil, storeErr
		}

		return store, primary.Close, nil
	}

	replica, err := p.openPGXPool(ctx, p.ReplicaDSN)
	if err != nil {
		primary.Close()
		return nil, nil, err
	}

	closeAll := func() {
		replica.Close()
		primary.Close()
	}

	store, storeErr := postgresengine.NewStoreFromPGXPoolAndReplica(primary, replica, options...)
	if storeErr != nil {
		closeAll()
		return nil, nil, storeErr
	}

	return store, closeAll, nil
}

func (p Postgres) openSQLDBStore(
	ctx context.Context,
	options []postgresengine.Option,
) (*postgresengine.Store, func(), error) {

	primary, err := p.OpenSQLDB(ctx, p.DSN)
	if err != nil {
		return nil, nil, err
	}

	if p.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromSQLDB(primary, options...)
		if storeErr != nil {
			_ = primary.Close()
			return nil, nil, storeErr
		}

		return store, func() { _ = primary.Close() }, nil
	}

	replica, err := p.OpenSQLDB(ctx, p.ReplicaDSN)
	if err != nil {
		_ = primary.Close()
		return nil, nil, err
	}

	closeAll := func() {
		_ = replica.Close()
		_ = primary.Close()
	}

	store, storeErr := postgresengine.NewStoreFromSQLDBAndReplica(primary, replica, options...)
	if storeErr != nil {
		closeAll()
		return nil, nil, storeErr
	}

	return store, closeAll, nil
}

func (p Postgres) openSQLXStore(
	ctx context.Context,
	options []postgresengine.Option,
) (*postgresengine.Store, func(), error) {

	primary, err := p.OpenSQLX(ctx, p.DSN)
	if err != nil {
		return nil, nil, err
	}

	if p.ReplicaDSN == "" {
		store, storeErr := postgresengine.NewStoreFromSQLX(primary, options...)
		if storeErr != nil {
			_ = primary.Close()
			return nil, nil, storeErr
		}

		return store, func() { _ = primary.Close() }, nil
	}

	replica, err := p.OpenSQLX(ctx, p.ReplicaDSN)
	if err != nil {
		_ = primary.Close()
		return nil, nil, err
	}

	closeAll := func() {
		_ = replica.Close()
		_ = primary.Close()
	}

	store, storeErr := postgresengine.NewStoreFromSQLXAndReplica(primary, replica, options...)
	if storeErr != nil {
		closeAll()
		return nil, nil, storeErr
	}

	return store, closeAll, nil
}
