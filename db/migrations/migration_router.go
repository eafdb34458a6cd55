package migrations

import (
	"net/http"

	catalogmigrations "github.com/schoolhub/schoolhub-backend/db/migrations/catalog-migrations"
	tenantmigrations "github.com/schoolhub/schoolhub-backend/db/migrations/tenant-migrations"
)

type MigrationRouter struct {
	TableName string
	FS        http.FileSystem
}

var (
	// CatalogMigrationRouter applies the shared catalog schema.
	CatalogMigrationRouter = MigrationRouter{TableName: "catalog_migrations", FS: http.FS(catalogmigrations.FS)}
	// TenantMigrationRouter applies the schema of every school's isolated tenant schema.
	TenantMigrationRouter = MigrationRouter{TableName: "tenant_migrations", FS: http.FS(tenantmigrations.FS)}
)
