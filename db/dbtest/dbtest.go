package dbtest

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/stellar/go-stellar-sdk/support/db/dbtest"

	"github.com/schoolhub/schoolhub-backend/db/migrations"
)

var (
	postgresOnce sync.Once
	postgresErr  error
)

// serverDSN points at the server the stellar dbtest package creates its throwaway databases on.
func serverDSN() string {
	user := os.Getenv("PGUSER")
	if user == "" {
		user = "postgres"
	}
	password := os.Getenv("PGPASSWORD")
	if password == "" {
		password = "postgres"
	}
	return fmt.Sprintf("postgres://%s:%s@localhost/?sslmode=disable", user, password)
}

func requirePostgres(t *testing.T) {
	t.Helper()

	postgresOnce.Do(func() {
		conn, err := sql.Open("postgres", serverDSN())
		if err != nil {
			postgresErr = err
			return
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		postgresErr = conn.PingContext(ctx)
	})
	if postgresErr != nil {
		t.Skipf("postgres is not reachable on localhost: %v", postgresErr)
	}
}

// OpenWithoutMigrations creates an empty throwaway database. The calling test is skipped when no postgres server
// answers on localhost.
func OpenWithoutMigrations(t *testing.T) *dbtest.DB {
	t.Helper()
	requirePostgres(t)
	return dbtest.Postgres(t)
}

func openWithMigrations(t *testing.T, routers ...migrations.MigrationRouter) *dbtest.DB {
	t.Helper()
	db := OpenWithoutMigrations(t)

	conn := db.Open()
	defer conn.Close()

	for _, router := range routers {
		ms := migrate.MigrationSet{TableName: router.TableName}
		source := migrate.HttpFileSystemMigrationSource{FileSystem: router.FS}
		if _, err := ms.ExecMax(conn.DB, "postgres", source, migrate.Up, 0); err != nil {
			t.Fatal(err)
		}
	}

	return db
}

// Open returns a database with the catalog schema.
func Open(t *testing.T) *dbtest.DB {
	return openWithMigrations(t, migrations.CatalogMigrationRouter)
}

// OpenWithTenantMigrationsOnly returns a database whose public schema looks like one school's tenant schema.
func OpenWithTenantMigrationsOnly(t *testing.T) *dbtest.DB {
	return openWithMigrations(t, migrations.TenantMigrationRouter)
}
