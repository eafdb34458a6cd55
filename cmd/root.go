package cmd

import (
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/cmd/db"
	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

// globalOptions holds the options shared by every subcommand.
var globalOptions cmdUtils.GlobalOptionsType

const (
	platformGroupID   = "platform"
	operationsGroupID = "operations"
)

func globalConfigOptions(opts *cmdUtils.GlobalOptionsType) config.ConfigOptions {
	return config.ConfigOptions{
		{
			Name:           "log-level",
			Usage:          `The log level used in this project. Options: "TRACE", "DEBUG", "INFO", "WARN", "ERROR", "FATAL", or "PANIC".`,
			OptType:        types.String,
			FlagDefault:    "TRACE",
			ConfigKey:      &opts.LogLevel,
			CustomSetValue: cmdUtils.SetConfigOptionLogLevel,
			Required:       true,
		},
		{
			Name:      "sentry-dsn",
			Usage:     "The DSN (client key) of the Sentry project. Only used with the SENTRY crash tracker.",
			OptType:   types.String,
			ConfigKey: &opts.SentryDSN,
			Required:  false,
		},
		{
			Name:        "environment",
			Usage:       `The environment where the application is running. Example: "development", "staging", "production".`,
			OptType:     types.String,
			FlagDefault: "development",
			ConfigKey:   &opts.Environment,
			Required:    true,
		},
		{
			Name:        db.DBConfigOptionFlagName,
			Usage:       `Postgres URL of the catalog database. School schemas live in the same database.`,
			OptType:     types.String,
			FlagDefault: "postgres://localhost:5432/schoolhub?sslmode=disable",
			ConfigKey:   &opts.DatabaseURL,
			Required:    true,
		},
		{
			Name:           "base-url",
			Usage:          "The platform base URL. Tenant login links are derived from it.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionURLString,
			ConfigKey:      &opts.BaseURL,
			FlagDefault:    "http://localhost:8000",
			Required:       true,
		},
	}
}

func rootCmd() *cobra.Command {
	configOpts := globalConfigOptions(&globalOptions)

	rootCmd := &cobra.Command{
		Use:     "schoolhub",
		Short:   "SchoolHub Platform",
		Long:    "SchoolHub hosts many schools on one platform. Each school gets its own tenant schema, domain and subscription.",
		Version: globalOptions.Version,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}
			log.DefaultLogger.WithFields(log.F{
				"version":     globalOptions.Version,
				"git_commit":  globalOptions.GitCommit,
				"environment": globalOptions.Environment,
			}).Infof("Running %s", cmd.CommandPath())
		},
		RunE: cmdUtils.CallHelpCommand,
	}

	if err := configOpts.Init(rootCmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}
	// Consumed by cmdUtils.LoadEnvFile before cobra parses the arguments.
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file loaded before the config options are read")

	rootCmd.AddGroup(
		&cobra.Group{ID: platformGroupID, Title: "Platform Commands:"},
		&cobra.Group{ID: operationsGroupID, Title: "Operations Commands:"},
	)

	return rootCmd
}

// SetupCLI returns the root command with every subcommand attached.
func SetupCLI(version, gitCommit string) *cobra.Command {
	globalOptions.Version = version
	globalOptions.GitCommit = gitCommit
	rootCmd := rootCmd()

	addToGroup := func(groupID string, cmds ...*cobra.Command) {
		for _, c := range cmds {
			c.GroupID = groupID
			rootCmd.AddCommand(c)
		}
	}
	addToGroup(platformGroupID,
		(&ServeCommand{}).Command(&ServerService{}, &monitor.MonitorService{}),
		(&db.DatabaseCommand{}).Command(&globalOptions),
		(&AuthCommand{}).Command(),
		(&MessageCommand{}).Command(&MessengerService{}),
	)
	addToGroup(operationsGroupID,
		(&SweepCommand{}).Command(&SweepService{}),
		(&ConversionsCommand{}).Command(&ConversionsService{}),
		(&InquiriesCommand{}).Command(&InquiriesService{}),
	)

	return rootCmd
}
