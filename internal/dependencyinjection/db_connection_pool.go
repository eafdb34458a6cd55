package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

const DBConnectionPoolInstanceName = "db_connection_pool_instance"

type DBConnectionPoolOptions struct {
	DatabaseURL string
	// PoolConfig falls back to db.DefaultPoolConfig when nil.
	PoolConfig *db.PoolConfig
	// MonitorService, when set, records the duration of every catalog query.
	MonitorService monitor.MonitorServiceInterface
}

// NewDBConnectionPool opens the catalog pool once. The API and the scheduler share it.
func NewDBConnectionPool(ctx context.Context, opts DBConnectionPoolOptions) (db.DBConnectionPool, error) {
	return getOrCreate(DBConnectionPoolInstanceName, "DBConnectionPool", func() (db.DBConnectionPool, error) {
		poolConfig := db.DefaultPoolConfig
		if opts.PoolConfig != nil {
			poolConfig = *opts.PoolConfig
		}

		log.Ctx(ctx).Infof("⚙️ Opening the catalog DBConnectionPool with at most %d connections", poolConfig.MaxOpenConns)
		pool, err := db.OpenDBConnectionPoolWithConfig(opts.DatabaseURL, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("opening DB connection pool: %w", err)
		}
		if opts.MonitorService == nil {
			return pool, nil
		}

		poolWithMetrics, err := db.NewDBConnectionPoolWithMetrics(pool, opts.MonitorService)
		if err != nil {
			return nil, fmt.Errorf("adding metrics to the DB connection pool: %w", err)
		}
		return poolWithMetrics, nil
	})
}
