package db

import (
	"context"
	"fmt"
	"slices"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/db/migrations"
	"github.com/schoolhub/schoolhub-backend/db/router"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/provisioning"
)

const DBConfigOptionFlagName = "database-url"

type DatabaseCommand struct{}

func (c *DatabaseCommand) Command(globalOptions *utils.GlobalOptionsType) *cobra.Command {
	cmd := &cobra.Command{
		Use:              "db",
		Short:            "Database related commands",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	cmd.AddCommand(c.catalogMigrationsCmd(cmd.Context(), globalOptions)) // 'catalog migrate up|down'
	cmd.AddCommand(c.tenantMigrationsCmd(cmd.Context(), globalOptions))  // 'tenant migrate up|down'

	return cmd
}

// catalogMigrationsCmd returns a cobra.Command responsible for running the migrations of the `catalog-migrations`
// folder, that hold the shared catalog of inquiries, admins, tenants and schools.
func (c *DatabaseCommand) catalogMigrationsCmd(ctx context.Context, globalOptions *utils.GlobalOptionsType) *cobra.Command {
	catalogCmd := &cobra.Command{
		Use:              "catalog",
		Short:            "Catalog schema migration helpers. Will execute the migrations of the `catalog-migrations` folder and the migrations are tracked in the table `catalog_migrations`.",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	executeMigrationsFn := func(ctx context.Context, dir migrate.MigrationDirection, count int) error {
		if err := ExecuteMigrations(ctx, globalOptions.DatabaseURL, dir, count, migrations.CatalogMigrationRouter); err != nil {
			return fmt.Errorf("executing migrations for %s: %w", catalogCmd.Name(), err)
		}
		return nil
	}
	catalogCmd.AddCommand(MigrateCmd(ctx, executeMigrationsFn))

	return catalogCmd
}

// tenantMigrationsCmd returns a cobra.Command responsible for running the migrations of the `tenant-migrations`
// folder on the school schemas that already exist, according with the --all or --database-name configs.
func (c *DatabaseCommand) tenantMigrationsCmd(ctx context.Context, globalOptions *utils.GlobalOptionsType) *cobra.Command {
	opts := utils.SchoolRoutingOptions{}
	var configOptions config.ConfigOptions = utils.SchoolRoutingConfigOptions(&opts)

	tenantCmd := &cobra.Command{
		Use:   "tenant",
		Short: "Per-school schema migration helpers. Will execute the migrations of the `tenant-migrations` folder on the desired school schemas. The migrations are tracked in the table `tenant_migrations` of each schema.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			utils.PropagatePersistentPreRun(cmd, args)
			configOptions.Require()
			if err := configOptions.SetValues(); err != nil {
				log.Ctx(cmd.Context()).Fatalf("Error setting values of config options: %v", err)
			}
		},
		RunE: utils.CallHelpCommand,
	}

	executeMigrationsFn := func(ctx context.Context, dir migrate.MigrationDirection, count int) error {
		if err := opts.ValidateFlags(); err != nil {
			return err
		}

		catalogDBConnectionPool, err := db.OpenDBConnectionPool(globalOptions.DatabaseURL)
		if err != nil {
			return fmt.Errorf("opening catalog connection pool: %w", err)
		}
		defer catalogDBConnectionPool.Close()

		models, err := data.NewModels(catalogDBConnectionPool)
		if err != nil {
			return fmt.Errorf("creating models: %w", err)
		}

		provisioner, err := provisioning.NewProvisioner(catalogDBConnectionPool)
		if err != nil {
			return fmt.Errorf("creating tenant provisioner: %w", err)
		}

		if err := executeMigrationsPerSchool(ctx, models.Tenants, provisioner, globalOptions.DatabaseURL, opts, dir, count); err != nil {
			return fmt.Errorf("executing migrations for %s: %w", tenantCmd.Name(), err)
		}
		return nil
	}
	tenantCmd.AddCommand(MigrateCmd(ctx, executeMigrationsFn))

	if err := configOptions.Init(tenantCmd); err != nil {
		log.Ctx(ctx).Fatalf("initializing config options: %v", err)
	}

	return tenantCmd
}

type schoolDatabaseLister interface {
	DatabaseNames(ctx context.Context) ([]string, error)
}

type schemaVersionRecorder interface {
	SyncSchemaVersion(ctx context.Context, databaseName string) (string, error)
}

var executeTenantMigrations = func(ctx context.Context, dsn string, dir migrate.MigrationDirection, count int) error {
	return ExecuteMigrations(ctx, dsn, dir, count, migrations.TenantMigrationRouter)
}

// executeMigrationsPerSchool executes the tenant migrations on every known school schema, or on the one selected by
// --database-name, and records the resulting version on each provisioning marker.
func executeMigrationsPerSchool(
	ctx context.Context,
	lister schoolDatabaseLister,
	recorder schemaVersionRecorder,
	catalogDSN string,
	opts utils.SchoolRoutingOptions,
	dir migrate.MigrationDirection,
	count int,
) error {
	databaseNames, err := lister.DatabaseNames(ctx)
	if err != nil {
		return fmt.Errorf("getting school schemas: %w", err)
	}

	if opts.DatabaseName != "" {
		if !slices.Contains(databaseNames, opts.DatabaseName) {
			return fmt.Errorf("school schema %s does not exist", opts.DatabaseName)
		}
		databaseNames = []string{opts.DatabaseName}
	}

	for _, databaseName := range databaseNames {
		dsn, err := router.GetDSNForSchoolDatabase(catalogDSN, databaseName)
		if err != nil {
			return fmt.Errorf("getting DSN for school schema %s: %w", databaseName, err)
		}

		log.Ctx(ctx).Infof("Applying migrations on school schema %s", databaseName)
		if err = executeTenantMigrations(ctx, dsn, dir, count); err != nil {
			return fmt.Errorf("migrating school schema %s %s: %w", databaseName, migrationDirectionStr(dir), err)
		}

		version, err := recorder.SyncSchemaVersion(ctx, databaseName)
		if err != nil {
			return fmt.Errorf("recording schema version of %s: %w", databaseName, err)
		}
		if version != "" {
			log.Ctx(ctx).Infof("School schema %s is at version %s", databaseName, version)
		}
	}

	return nil
}
