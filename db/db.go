//nolint:wrapcheck // Wrapper structs, no extra context needed
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/stellar/go-stellar-sdk/support/log"
)

// PoolConfig holds the tunables applied to the underlying sql.DB.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

var DefaultPoolConfig = PoolConfig{
	MaxOpenConns:    20,
	MaxIdleConns:    2,
	ConnMaxIdleTime: 10 * time.Second,
	ConnMaxLifetime: 5 * time.Minute,
}

// TenantPoolConfig is used for the short-lived pools opened against a single tenant schema.
var TenantPoolConfig = PoolConfig{
	MaxOpenConns:    2,
	MaxIdleConns:    1,
	ConnMaxIdleTime: 5 * time.Second,
	ConnMaxLifetime: time.Minute,
}

// SQLExecuter is satisfied by *sqlx.DB and *sqlx.Tx, so model methods can run inside or outside a transaction.
type SQLExecuter interface {
	DriverName() string
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	sqlx.PreparerContext
	sqlx.QueryerContext
	Rebind(query string) string
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

// DBTransaction wraps the *sqlx.Tx methods used across the code base.
type DBTransaction interface {
	SQLExecuter
	Rollback() error
	Commit() error
}

// DBConnectionPool wraps a *sqlx.DB.
type DBConnectionPool interface {
	SQLExecuter
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error)
	Close() error
	Ping(ctx context.Context) error
	SqlDB(ctx context.Context) (*sql.DB, error)
	DSN(ctx context.Context) (string, error)
}

type connectionPool struct {
	*sqlx.DB
	dataSourceName string
}

var (
	_ DBConnectionPool = (*connectionPool)(nil)
	_ DBTransaction    = (*sqlx.Tx)(nil)
	_ SQLExecuter      = (*sqlx.DB)(nil)
)

func (p *connectionPool) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	return p.DB.BeginTxx(ctx, opts)
}

func (p *connectionPool) Ping(ctx context.Context) error {
	return p.DB.PingContext(ctx)
}

func (p *connectionPool) SqlDB(_ context.Context) (*sql.DB, error) {
	if p.DB == nil || p.DB.DB == nil {
		return nil, fmt.Errorf("sql.DB is not initialized")
	}
	return p.DB.DB, nil
}

func (p *connectionPool) DSN(_ context.Context) (string, error) {
	return p.dataSourceName, nil
}

// NewConnectionPool wraps an already opened *sqlx.DB. Used by tests that drive the pool with a mocked driver.
func NewConnectionPool(sqlxDB *sqlx.DB, dataSourceName string) DBConnectionPool {
	return &connectionPool{DB: sqlxDB, dataSourceName: dataSourceName}
}

// OpenDBConnectionPoolWithConfig opens a postgres pool and pings it before returning.
func OpenDBConnectionPoolWithConfig(dataSourceName string, cfg PoolConfig) (DBConnectionPool, error) {
	sqlxDB, err := sqlx.Open("postgres", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("opening database connection pool: %w", err)
	}

	sqlxDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlxDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlxDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	sqlxDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err = sqlxDB.Ping(); err != nil {
		_ = sqlxDB.Close()
		return nil, fmt.Errorf("pinging database connection pool: %w", err)
	}

	return NewConnectionPool(sqlxDB, dataSourceName), nil
}

// OpenDBConnectionPool opens a pool with DefaultPoolConfig.
func OpenDBConnectionPool(dataSourceName string) (DBConnectionPool, error) {
	return OpenDBConnectionPoolWithConfig(dataSourceName, DefaultPoolConfig)
}

// CloseConnectionPoolIfNeeded closes the pool unless it is nil or already closed.
func CloseConnectionPoolIfNeeded(ctx context.Context, dbConnectionPool DBConnectionPool) error {
	if dbConnectionPool == nil {
		log.Ctx(ctx).Debug("NO-OP: closing a nil connection pool")
		return nil
	}

	//nolint:nilerr // a failed ping means the pool is already closed
	if err := dbConnectionPool.Ping(ctx); err != nil {
		log.Ctx(ctx).Debug("NO-OP: closing a connection pool that was already closed")
		return nil
	}

	return dbConnectionPool.Close()
}

// RunInTransactionWithResult runs atomicFunction inside a transaction, committing on success and rolling back on
// error.
func RunInTransactionWithResult[T any](ctx context.Context, dbConnectionPool DBConnectionPool, opts *sql.TxOptions, atomicFunction func(dbTx DBTransaction) (T, error)) (result T, err error) {
	dbTx, err := dbConnectionPool.BeginTxx(ctx, opts)
	if err != nil {
		return *new(T), fmt.Errorf("beginning transaction: %w", err)
	}

	defer func() {
		DBTxRollback(ctx, dbTx, err, "rolling back transaction due to error")
	}()

	result, err = atomicFunction(dbTx)
	if err != nil {
		return *new(T), NewTransactionExecutionError(err)
	}

	if err = dbTx.Commit(); err != nil {
		return *new(T), fmt.Errorf("committing transaction: %w", err)
	}

	return result, nil
}

// RunInTransaction is RunInTransactionWithResult for functions that only return an error.
func RunInTransaction(ctx context.Context, dbConnectionPool DBConnectionPool, opts *sql.TxOptions, atomicFunction func(dbTx DBTransaction) error) error {
	_, err := RunInTransactionWithResult(ctx, dbConnectionPool, opts, func(dbTx DBTransaction) (struct{}, error) {
		return struct{}{}, atomicFunction(dbTx)
	})
	return err
}

// DBTxRollback rolls the transaction back when err is not nil.
func DBTxRollback(ctx context.Context, dbTx DBTransaction, err error, logMessage string) {
	if err == nil {
		return
	}

	if IsTransactionExecutionError(err) {
		log.Ctx(ctx).Debugf("%s: %v", logMessage, err)
	} else {
		log.Ctx(ctx).Errorf("%s: %v", logMessage, err)
	}

	if errRollback := dbTx.Rollback(); errRollback != nil && !errors.Is(errRollback, sql.ErrTxDone) {
		log.Ctx(ctx).Errorf("rolling back transaction: %v", errRollback)
	}
}

// CloseRows closes rows and logs the failure, if any.
func CloseRows(ctx context.Context, rows *sqlx.Rows) {
	if err := rows.Close(); err != nil {
		log.Ctx(ctx).Errorf("closing rows: %v", err)
	}
}

// TransactionExecutionError marks errors returned by the atomic function, as opposed to errors from the transaction
// handling itself.
type TransactionExecutionError struct {
	err error
}

func NewTransactionExecutionError(err error) *TransactionExecutionError {
	return &TransactionExecutionError{err: err}
}

func (t *TransactionExecutionError) Error() string {
	return fmt.Sprintf("transaction execution error: %s", t.err.Error())
}

func (t *TransactionExecutionError) Unwrap() error {
	return t.err
}

func IsTransactionExecutionError(err error) bool {
	var txErr *TransactionExecutionError
	return errors.As(err, &txErr)
}
