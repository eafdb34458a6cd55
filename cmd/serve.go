package cmd

import (
	"context"
	"fmt"
	"go/types"

	"github.com/spf13/cobra"
	"github.com/stellar/go-stellar-sdk/support/config"
	"github.com/stellar/go-stellar-sdk/support/log"

	cmdUtils "github.com/schoolhub/schoolhub-backend/cmd/utils"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	di "github.com/schoolhub/schoolhub-backend/internal/dependencyinjection"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
	"github.com/schoolhub/schoolhub-backend/internal/scheduler"
	"github.com/schoolhub/schoolhub-backend/internal/serve"
)

type ServeCommand struct{}

type ServerServiceInterface interface {
	StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface)
	StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface)
	GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions scheduler.SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error)
}

type ServerService struct{}

// Making sure that ServerService implements ServerServiceInterface
var _ ServerServiceInterface = (*ServerService)(nil)

func (s *ServerService) StartServe(opts serve.ServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.Serve(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting server: %s", err.Error())
	}
}

func (s *ServerService) StartMetricsServe(opts serve.MetricsServeOptions, httpServer serve.HTTPServerInterface) {
	err := serve.MetricsServe(opts, httpServer)
	if err != nil {
		log.Fatalf("Error starting metrics server: %s", err.Error())
	}
}

// GetSchedulerJobRegistrars builds the background jobs on top of the same catalog pool the API uses.
func (s *ServerService) GetSchedulerJobRegistrars(ctx context.Context, serveOpts serve.ServeOptions, schedulerOptions scheduler.SchedulerOptions) ([]scheduler.SchedulerJobRegisterOption, error) {
	dbConnectionPool, err := di.NewDBConnectionPool(ctx, di.DBConnectionPoolOptions{
		DatabaseURL:    serveOpts.DatabaseDSN,
		PoolConfig:     serveOpts.DBPoolConfig,
		MonitorService: serveOpts.MonitorService,
	})
	if err != nil {
		return nil, fmt.Errorf("getting DB connection in Job Scheduler: %w", err)
	}
	models, err := data.NewModels(dbConnectionPool)
	if err != nil {
		return nil, fmt.Errorf("creating models in Job Scheduler: %w", err)
	}

	sweeper, err := lifecycle.NewSweeper(models, serveOpts.MonitorService)
	if err != nil {
		return nil, fmt.Errorf("creating subscription sweeper: %w", err)
	}

	reaper, err := di.NewStaleConversionReaper(ctx, di.StaleConversionReaperOptions{
		Models:           models,
		MonitorService:   serveOpts.MonitorService,
		DomainMaxRetries: serveOpts.DomainMaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("creating stale conversion reaper: %w", err)
	}

	return []scheduler.SchedulerJobRegisterOption{
		scheduler.WithSubscriptionSweepJobOption(sweeper, schedulerOptions.SubscriptionSweepIntervalSeconds),
		scheduler.WithStaleConversionReaperJobOption(reaper, schedulerOptions.StaleConversionTimeout),
	}, nil
}

// serveFlags collects everything the serve command reads from flags and env vars.
type serveFlags struct {
	serve           serve.ServeOptions
	scheduler       scheduler.SchedulerOptions
	metrics         serve.MetricsServeOptions
	crashTracker    crashtracker.CrashTrackerOptions
	messenger       message.MessengerOptions
	dbPool          cmdUtils.DBPoolOptions
	emailSenderType message.MessengerType
	smsSenderType   message.MessengerType
	enableScheduler bool
}

func (f *serveFlags) configOptions() config.ConfigOptions {
	messengerTypeOption := func(name, usage string, key *message.MessengerType) *config.ConfigOption {
		return &config.ConfigOption{
			Name:           name,
			Usage:          usage,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMessengerType,
			ConfigKey:      key,
			FlagDefault:    string(message.MessengerTypeDryRun),
			Required:       true,
		}
	}

	opts := config.ConfigOptions{
		{
			Name:           "metrics-type",
			Usage:          `Metric monitor type. Options: "PROMETHEUS"`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionMetricType,
			ConfigKey:      &f.metrics.MetricType,
			FlagDefault:    string(monitor.MetricTypePrometheus),
			Required:       true,
		},
		{Name: "port", Usage: "Port of the API server", OptType: types.Int, ConfigKey: &f.serve.Port, FlagDefault: 8000, Required: true},
		{Name: "metrics-port", Usage: "Port of the metrics server", OptType: types.Int, ConfigKey: &f.metrics.Port, FlagDefault: 8002, Required: true},
		{
			Name:           "ec256-public-key",
			Usage:          "PEM encoded EC public key, P-256 or stronger, that verifies superadmin tokens.",
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetConfigOptionEC256PublicKey,
			ConfigKey:      &f.serve.EC256PublicKey,
			Required:       true,
		},
		{
			Name:           "cors-allowed-origins",
			Usage:          `Comma separated origins allowed to call the API`,
			OptType:        types.String,
			CustomSetValue: cmdUtils.SetCorsAllowedOrigins,
			ConfigKey:      &f.serve.CorsAllowedOrigins,
			Required:       true,
		},
		messengerTypeOption("email-sender-type",
			`Messenger that emails converted admins and approved schools. Options: "TWILIO_EMAIL", "AWS_EMAIL", "DRY_RUN"`,
			&f.emailSenderType),
		messengerTypeOption("sms-sender-type",
			`Messenger used for SMS notifications. Options: "TWILIO_SMS", "AWS_SMS", "DRY_RUN"`,
			&f.smsSenderType),
		cmdUtils.DurationConfigOption("provision-timeout",
			"Maximum time to create and migrate a tenant schema, e.g. 2m.",
			&f.serve.ProvisionTimeout, conversion.DefaultProvisionTimeout),
		cmdUtils.DurationConfigOption("grace-period",
			"How long a school keeps operating after its subscription ends, e.g. 168h.",
			&f.serve.GracePeriod, conversion.DefaultGracePeriod),
		cmdUtils.DurationConfigOption("form-fields-cache-ttl",
			"How long the public intake form definition is cached, e.g. 5m.",
			&f.serve.FormFieldsCacheTTL, serve.DefaultFormFieldsCacheTTL),
		{
			Name:        "public-rate-limit",
			Usage:       "Requests per minute an IP may send to the public intake routes.",
			OptType:     types.Int,
			ConfigKey:   &f.serve.PublicRateLimit,
			FlagDefault: serve.DefaultPublicRateLimit,
			Required:    false,
		},
		{
			Name:        "enable-scheduler",
			Usage:       "Run the subscription sweep and the stale conversion reaper in this process",
			OptType:     types.Bool,
			ConfigKey:   &f.enableScheduler,
			FlagDefault: false,
			Required:    false,
		},
		cmdUtils.CrashTrackerTypeConfigOption(&f.crashTracker.CrashTrackerType),
		cmdUtils.DomainMaxRetriesConfigOption(&f.serve.DomainMaxRetries),
	}
	opts = append(opts, cmdUtils.TwilioConfigOptions(&f.messenger)...)
	opts = append(opts, cmdUtils.AWSConfigOptions(&f.messenger)...)
	opts = append(opts, cmdUtils.SchedulerConfigOptions(&f.scheduler)...)
	return append(opts, cmdUtils.DBPoolConfigOptions(&f.dbPool)...)
}

// injectGlobals copies the root command options and the started monitor into the server options.
func (f *serveFlags) injectGlobals(monitorService monitor.MonitorServiceInterface) {
	globalOptions.PopulateCrashTrackerOptions(&f.crashTracker)

	f.serve.Environment = globalOptions.Environment
	f.serve.GitCommit = globalOptions.GitCommit
	f.serve.Version = globalOptions.Version
	f.serve.DatabaseDSN = globalOptions.DatabaseURL
	f.serve.BaseURL = globalOptions.BaseURL
	f.serve.MonitorService = monitorService
	poolConfig := f.dbPool.PoolConfig()
	f.serve.DBPoolConfig = &poolConfig

	f.metrics.MonitorService = monitorService
	f.metrics.Environment = globalOptions.Environment
}

func (c *ServeCommand) Command(serverService ServerServiceInterface, monitorService monitor.MonitorServiceInterface) *cobra.Command {
	flags := &serveFlags{crashTracker: crashtracker.CrashTrackerOptions{ServiceName: "schoolhub-api"}}
	configOpts := flags.configOptions()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the SchoolHub API",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmdUtils.PropagatePersistentPreRun(cmd, args)

			configOpts.Require()
			if err := configOpts.SetValues(); err != nil {
				log.Fatalf("Error setting values of config options: %s", err.Error())
			}

			err := monitorService.Start(monitor.MetricOptions{
				MetricType:  flags.metrics.MetricType,
				Environment: globalOptions.Environment,
			})
			if err != nil {
				log.Fatalf("Error creating monitor service: %s", err.Error())
			}

			flags.injectGlobals(monitorService)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			ctx := cmd.Context()

			crashTrackerClient, err := di.NewCrashTracker(ctx, flags.crashTracker)
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating crash tracker client: %s", err.Error())
			}
			flags.serve.CrashTrackerClient = crashTrackerClient

			flags.serve.MessageDispatcher, err = di.NewMessageDispatcher(ctx, di.MessageDispatcherOpts{
				EmailOpts: &di.EmailClientOptions{EmailType: flags.emailSenderType, MessengerOptions: &flags.messenger},
				SMSOpts:   &di.SMSClientOptions{SMSType: flags.smsSenderType, MessengerOptions: &flags.messenger},
			})
			if err != nil {
				log.Ctx(ctx).Fatalf("error creating message dispatcher: %s", err.Error())
			}

			if flags.enableScheduler {
				registrars, schedErr := serverService.GetSchedulerJobRegistrars(ctx, flags.serve, flags.scheduler)
				if schedErr != nil {
					log.Ctx(ctx).Fatalf("Error getting scheduler job registrars: %v", schedErr)
				}
				log.Ctx(ctx).Infof("Starting scheduler with %d job registrars", len(registrars))
				go scheduler.StartScheduler(context.WithoutCancel(ctx), crashTrackerClient.Clone(), registrars...)
			} else {
				log.Ctx(ctx).Warn("Scheduler is disabled, lapsed subscriptions are only swept by the sweep command.")
			}

			go serverService.StartMetricsServe(flags.metrics, &serve.HTTPServer{})
			serverService.StartServe(flags.serve, &serve.HTTPServer{})
		},
	}

	if err := configOpts.Init(cmd); err != nil {
		log.Fatalf("Error initializing a config option: %s", err.Error())
	}

	return cmd
}
