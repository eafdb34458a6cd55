package utils

import (
	"fmt"
	"go/types"
	"time"

	"github.com/stellar/go-stellar-sdk/support/config"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/scheduler"
	"github.com/schoolhub/schoolhub-backend/internal/scheduler/jobs"
)

// DBPoolOptions contains tunables for the PostgreSQL connection pool.
type DBPoolOptions struct {
	DBMaxOpenConns           int
	DBMaxIdleConns           int
	DBConnMaxIdleTimeSeconds int
	DBConnMaxLifetimeSeconds int
}

// PoolConfig converts the flags into the db package representation.
func (o DBPoolOptions) PoolConfig() db.PoolConfig {
	return db.PoolConfig{
		MaxOpenConns:    o.DBMaxOpenConns,
		MaxIdleConns:    o.DBMaxIdleConns,
		ConnMaxIdleTime: time.Duration(o.DBConnMaxIdleTimeSeconds) * time.Second,
		ConnMaxLifetime: time.Duration(o.DBConnMaxLifetimeSeconds) * time.Second,
	}
}

// DBPoolConfigOptions tunes every connection pool the process opens. Defaults come from db.DefaultPoolConfig.
func DBPoolConfigOptions(opts *DBPoolOptions) []*config.ConfigOption {
	d := db.DefaultPoolConfig
	intOption := func(name, usage string, key *int, def int) *config.ConfigOption {
		return &config.ConfigOption{Name: name, Usage: usage, OptType: types.Int, ConfigKey: key, FlagDefault: def, Required: false}
	}
	return []*config.ConfigOption{
		intOption("db-max-open-conns", "Maximum number of open connections per pool", &opts.DBMaxOpenConns, d.MaxOpenConns),
		intOption("db-max-idle-conns", "Maximum number of idle connections kept per pool", &opts.DBMaxIdleConns, d.MaxIdleConns),
		intOption("db-conn-max-idle-time-seconds", "Seconds a connection may stay idle before it is closed", &opts.DBConnMaxIdleTimeSeconds, int(d.ConnMaxIdleTime.Seconds())),
		intOption("db-conn-max-lifetime-seconds", "Seconds a connection may live before it is recycled", &opts.DBConnMaxLifetimeSeconds, int(d.ConnMaxLifetime.Seconds())),
	}
}

// optionalString is the shape shared by every messenger credential: a plain string that only the selected messenger
// type validates.
func optionalString(name, usage string, key *string) *config.ConfigOption {
	return &config.ConfigOption{Name: name, Usage: usage, OptType: types.String, ConfigKey: key, Required: false}
}

// TwilioConfigOptions holds the credentials used by the TWILIO_SMS and TWILIO_EMAIL messenger types.
func TwilioConfigOptions(opts *message.MessengerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		optionalString("twilio-account-sid", "Twilio account SID, used by TWILIO_SMS", &opts.TwilioAccountSID),
		optionalString("twilio-auth-token", "Twilio auth token, used by TWILIO_SMS", &opts.TwilioAuthToken),
		optionalString("twilio-service-sid", "Twilio messaging service SID that sends the SMS", &opts.TwilioServiceSID),
		optionalString("twilio-sendgrid-api-key", "SendGrid API key, used by TWILIO_EMAIL", &opts.TwilioSendGridAPIKey),
		optionalString("twilio-sendgrid-sender-address", "Sender address of the emails sent through SendGrid", &opts.TwilioSendGridSenderAddress),
	}
}

// AWSConfigOptions holds the credentials used by the AWS_SMS and AWS_EMAIL messenger types.
func AWSConfigOptions(opts *message.MessengerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		optionalString("aws-access-key-id", "AWS access key ID", &opts.AWSAccessKeyID),
		optionalString("aws-secret-access-key", "AWS secret access key", &opts.AWSSecretAccessKey),
		optionalString("aws-region", "AWS region of the SNS and SES clients", &opts.AWSRegion),
		optionalString("aws-sns-sender-id", "Sender ID shown on SMS sent through AWS SNS", &opts.AWSSNSSenderID),
		optionalString("aws-ses-sender-id", "Sender address of the emails sent through AWS SES", &opts.AWSSESSenderID),
	}
}

func CrashTrackerTypeConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           "crash-tracker-type",
		Usage:          `Crash tracker type. Options: "SENTRY", "DRY_RUN"`,
		OptType:        types.String,
		CustomSetValue: SetConfigOptionCrashTrackerType,
		ConfigKey:      targetPointer,
		FlagDefault:    string(crashtracker.CrashTrackerTypeDryRun),
		Required:       true,
	}
}

// DomainMaxRetriesConfigOption bounds the suffix attempts made when a proposed domain is already taken.
func DomainMaxRetriesConfigOption(targetPointer interface{}) *config.ConfigOption {
	return &config.ConfigOption{
		Name:        "domain-max-retries",
		Usage:       "How many numeric suffixes are tried when a tenant domain is already reserved.",
		OptType:     types.Int,
		ConfigKey:   targetPointer,
		FlagDefault: domainbinding.DefaultMaxRetries,
		Required:    false,
	}
}

// DurationConfigOption reads a Go duration string such as "90s" or "168h" into key.
func DurationConfigOption(name, usage string, key *time.Duration, flagDefault time.Duration) *config.ConfigOption {
	return &config.ConfigOption{
		Name:           name,
		Usage:          usage,
		OptType:        types.String,
		CustomSetValue: SetConfigOptionDuration,
		ConfigKey:      key,
		FlagDefault:    flagDefault.String(),
		Required:       false,
	}
}

func StaleConversionTimeoutConfigOption(targetPointer *time.Duration) *config.ConfigOption {
	return DurationConfigOption("stale-conversion-timeout",
		"How long a conversion may stay in progress before it is settled as stale, e.g. 30m.",
		targetPointer, conversion.DefaultStaleTimeout)
}

func SchedulerConfigOptions(opts *scheduler.SchedulerOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:        "scheduler-subscription-sweep-job-seconds",
			Usage:       fmt.Sprintf("The interval in seconds for the job that suspends schools with lapsed subscriptions. Must be at least %d seconds.", jobs.DefaultMinimumJobIntervalSeconds),
			OptType:     types.Int,
			ConfigKey:   &opts.SubscriptionSweepIntervalSeconds,
			FlagDefault: 3600,
			Required:    false,
		},
		StaleConversionTimeoutConfigOption(&opts.StaleConversionTimeout),
	}
}

type SchoolRoutingOptions struct {
	All          bool
	DatabaseName string
}

func (o *SchoolRoutingOptions) ValidateFlags() error {
	if !o.All && o.DatabaseName == "" {
		return fmt.Errorf(
			"invalid config. Please specify --all to run the command for all school schemas " +
				"or specify --database-name to run it for a single school schema",
		)
	}
	return nil
}

// SchoolRoutingConfigOptions returns the config options for commands that apply to all school schemas or to one.
func SchoolRoutingConfigOptions(opts *SchoolRoutingOptions) []*config.ConfigOption {
	return []*config.ConfigOption{
		{
			Name:        "all",
			Usage:       "Apply the command to all school schemas. Either --database-name or --all must be set, but the --all option will be ignored if --database-name is set.",
			OptType:     types.Bool,
			FlagDefault: false,
			ConfigKey:   &opts.All,
			Required:    false,
		},
		{
			Name:      "database-name",
			Usage:     `The school schema where the command will be applied, e.g. "school_greenwood".`,
			OptType:   types.String,
			ConfigKey: &opts.DatabaseName,
			Required:  false,
		},
	}
}
