package db

import (
	"context"
	"fmt"
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/db/migrations"
)

type executeMigrationsFunc func(ctx context.Context, dir migrate.MigrationDirection, count int) error

// MigrateCmd returns the `migrate up|down` pair. Going up without a count applies every pending migration, going down
// always needs an explicit count.
func MigrateCmd(ctx context.Context, executeMigrationsFn executeMigrationsFunc) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:              "migrate",
		Short:            "Schema migration helpers",
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE:             utils.CallHelpCommand,
	}

	migrateCmd.AddCommand(
		migrateDirectionCmd(migrate.Up, cobra.MaximumNArgs(1), executeMigrationsFn),
		migrateDirectionCmd(migrate.Down, cobra.ExactArgs(1), executeMigrationsFn),
	)
	return migrateCmd
}

func migrateDirectionCmd(dir migrate.MigrationDirection, args cobra.PositionalArgs, executeMigrationsFn executeMigrationsFunc) *cobra.Command {
	direction := migrationDirectionStr(dir)

	return &cobra.Command{
		Use:              direction + " [count]",
		Short:            fmt.Sprintf("Migrates the schema %s [count] migrations", direction),
		Args:             args,
		PersistentPreRun: utils.PropagatePersistentPreRun,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := parseMigrationCount(args)
			if err != nil {
				return err
			}

			if err := executeMigrationsFn(cmd.Context(), dir, count); err != nil {
				return fmt.Errorf("migrating %s: %w", direction, err)
			}
			return nil
		},
	}
}

func parseMigrationCount(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}

	count, err := strconv.Atoi(args[0])
	if err != nil || count < 0 {
		return 0, fmt.Errorf("invalid [count] argument %q: must be a non-negative integer", args[0])
	}
	return count, nil
}

// ExecuteMigrations applies the migrations of migrationRouter on dbURL and logs how many ran.
func ExecuteMigrations(ctx context.Context, dbURL string, dir migrate.MigrationDirection, count int, migrationRouter migrations.MigrationRouter) error {
	numMigrationsRun, err := db.Migrate(dbURL, dir, count, migrationRouter)
	if err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	if numMigrationsRun == 0 {
		log.Ctx(ctx).Infof("No %s migrations applied.", migrationRouter.TableName)
		return nil
	}
	log.Ctx(ctx).Infof("Applied %d %s migrations %s.", numMigrationsRun, migrationRouter.TableName, migrationDirectionStr(dir))
	return nil
}

func migrationDirectionStr(dir migrate.MigrationDirection) string {
	if dir == migrate.Up {
		return "up"
	}
	return "down"
}
