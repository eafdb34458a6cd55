package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

type QueryType string

const (
	DeleteQueryType    QueryType = "DELETE"
	InsertQueryType    QueryType = "INSERT"
	SelectQueryType    QueryType = "SELECT"
	UpdateQueryType    QueryType = "UPDATE"
	UndefinedQueryType QueryType = "UNDEFINED"
)

func NewSQLExecuterWithMetrics(sqlExec SQLExecuter, monitorService monitor.MonitorServiceInterface) (*SQLExecuterWithMetrics, error) {
	if sqlExec == nil {
		return nil, errors.New("sqlExec cannot be nil")
	}
	if monitorService == nil {
		return nil, errors.New("monitorService cannot be nil")
	}
	return &SQLExecuterWithMetrics{SQLExecuter: sqlExec, monitorService: monitorService}, nil
}

// SQLExecuterWithMetrics records the duration of every query it runs, split by outcome and SQL verb.
type SQLExecuterWithMetrics struct {
	SQLExecuter
	monitorService monitor.MonitorServiceInterface
}

var _ SQLExecuter = (*SQLExecuterWithMetrics)(nil)

func (sqlExec *SQLExecuterWithMetrics) monitorQueryDuration(duration time.Duration, query string, err error) {
	tag := monitor.SuccessfulQueryDurationTag
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		tag = monitor.FailureQueryDurationTag
	}
	labels := monitor.DBQueryLabels{QueryType: string(getQueryType(query))}
	if metricErr := sqlExec.monitorService.MonitorDuration(duration, tag, labels.ToMap()); metricErr != nil {
		log.Errorf("monitoring db query duration: %v", metricErr)
	}
}

func (sqlExec *SQLExecuterWithMetrics) GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := sqlExec.SQLExecuter.GetContext(ctx, dest, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, err)
	return err
}

func (sqlExec *SQLExecuterWithMetrics) SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	then := time.Now()
	err := sqlExec.SQLExecuter.SelectContext(ctx, dest, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, err)
	return err
}

func (sqlExec *SQLExecuterWithMetrics) ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	then := time.Now()
	result, err := sqlExec.SQLExecuter.ExecContext(ctx, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, err)
	return result, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	then := time.Now()
	rows, err := sqlExec.SQLExecuter.QueryContext(ctx, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, err)
	return rows, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryxContext(ctx context.Context, query string, args ...interface{}) (*sqlx.Rows, error) {
	then := time.Now()
	rows, err := sqlExec.SQLExecuter.QueryxContext(ctx, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, err)
	return rows, err
}

func (sqlExec *SQLExecuterWithMetrics) QueryRowxContext(ctx context.Context, query string, args ...interface{}) *sqlx.Row {
	then := time.Now()
	row := sqlExec.SQLExecuter.QueryRowxContext(ctx, query, args...)
	sqlExec.monitorQueryDuration(time.Since(then), query, row.Err())
	return row
}

// getQueryType returns the leading SQL verb of query. CTEs and anything else are undefined.
func getQueryType(query string) QueryType {
	words := strings.Fields(query)
	if len(words) == 0 {
		return UndefinedQueryType
	}
	switch verb := QueryType(strings.ToUpper(words[0])); verb {
	case DeleteQueryType, InsertQueryType, SelectQueryType, UpdateQueryType:
		return verb
	default:
		return UndefinedQueryType
	}
}

// DBTransactionWithMetrics keeps recording query durations inside a transaction.
type DBTransactionWithMetrics struct {
	dbTransaction DBTransaction
	SQLExecuterWithMetrics
}

var _ DBTransaction = (*DBTransactionWithMetrics)(nil)

func NewDBTransactionWithMetrics(dbTransaction DBTransaction, monitorService monitor.MonitorServiceInterface) (*DBTransactionWithMetrics, error) {
	sqlExec, err := NewSQLExecuterWithMetrics(dbTransaction, monitorService)
	if err != nil {
		return nil, fmt.Errorf("creating SQLExecuterWithMetrics: %w", err)
	}
	return &DBTransactionWithMetrics{dbTransaction: dbTransaction, SQLExecuterWithMetrics: *sqlExec}, nil
}

func (dbTx *DBTransactionWithMetrics) Commit() error {
	return dbTx.dbTransaction.Commit()
}

func (dbTx *DBTransactionWithMetrics) Rollback() error {
	return dbTx.dbTransaction.Rollback()
}

// DBConnectionPoolWithMetrics wraps the catalog pool so queries and the transactions it opens are monitored.
type DBConnectionPoolWithMetrics struct {
	dbConnectionPool DBConnectionPool
	SQLExecuterWithMetrics
}

var _ DBConnectionPool = (*DBConnectionPoolWithMetrics)(nil)

func NewDBConnectionPoolWithMetrics(dbConnectionPool DBConnectionPool, monitorService monitor.MonitorServiceInterface) (*DBConnectionPoolWithMetrics, error) {
	sqlExec, err := NewSQLExecuterWithMetrics(dbConnectionPool, monitorService)
	if err != nil {
		return nil, fmt.Errorf("creating SQLExecuterWithMetrics: %w", err)
	}
	return &DBConnectionPoolWithMetrics{dbConnectionPool: dbConnectionPool, SQLExecuterWithMetrics: *sqlExec}, nil
}

func (dbc *DBConnectionPoolWithMetrics) BeginTxx(ctx context.Context, opts *sql.TxOptions) (DBTransaction, error) {
	dbTransaction, err := dbc.dbConnectionPool.BeginTxx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("starting a new transaction: %w", err)
	}
	return NewDBTransactionWithMetrics(dbTransaction, dbc.monitorService)
}

func (dbc *DBConnectionPoolWithMetrics) Close() error {
	return dbc.dbConnectionPool.Close()
}

func (dbc *DBConnectionPoolWithMetrics) Ping(ctx context.Context) error {
	return dbc.dbConnectionPool.Ping(ctx)
}

func (dbc *DBConnectionPoolWithMetrics) SqlDB(ctx context.Context) (*sql.DB, error) {
	return dbc.dbConnectionPool.SqlDB(ctx)
}

func (dbc *DBConnectionPoolWithMetrics) DSN(ctx context.Context) (string, error) {
	return dbc.dbConnectionPool.DSN(ctx)
}
