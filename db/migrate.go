package db

import (
	"context"
	"fmt"

	migrate "github.com/rubenv/sql-migrate"

	"github.com/schoolhub/schoolhub-backend/db/migrations"
)

// Migrate opens a pool for dbURL and applies up to count migrations of the given router in direction dir. A count of
// zero applies all pending migrations.
func Migrate(dbURL string, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) (int, error) {
	dbConnectionPool, err := OpenDBConnectionPool(dbURL)
	if err != nil {
		return 0, fmt.Errorf("connecting to database %s: %w", RedactDSN(dbURL), err)
	}
	defer dbConnectionPool.Close()

	return MigrateWithPool(context.Background(), dbConnectionPool, dir, count, migrationRouter)
}

// MigrateWithPool is Migrate over an already opened pool. The provisioner uses it against tenant schemas.
func MigrateWithPool(ctx context.Context, dbConnectionPool DBConnectionPool, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) (int, error) {
	sqlDB, err := dbConnectionPool.SqlDB(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetching sql.DB: %w", err)
	}

	ms := migrate.MigrationSet{TableName: migrationRouter.TableName}
	source := migrate.HttpFileSystemMigrationSource{FileSystem: migrationRouter.FS}

	n, err := ms.ExecMaxContext(ctx, sqlDB, dbConnectionPool.DriverName(), source, dir, count)
	if err != nil {
		return n, fmt.Errorf("applying %s: %w", migrationRouter.TableName, err)
	}
	return n, nil
}

// LatestVersion returns the id of the newest migration known to the router, which the provisioner stamps on tenant
// schemas as their schema version.
func LatestVersion(migrationRouter migrations.MigrationRouter) (string, error) {
	source := migrate.HttpFileSystemMigrationSource{FileSystem: migrationRouter.FS}
	all, err := source.FindMigrations()
	if err != nil {
		return "", fmt.Errorf("listing %s: %w", migrationRouter.TableName, err)
	}
	if len(all) == 0 {
		return "", fmt.Errorf("no migrations found for %s", migrationRouter.TableName)
	}
	return all[len(all)-1].Id, nil
}
