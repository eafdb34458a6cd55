package crashtracker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"
)

// CrashTrackerClient logs errors and forwards them, with the tags of their context, to the error reporting backend.
// Clients are not safe for concurrent use: every goroutine reports through its own Clone.
type CrashTrackerClient interface {
	LogAndReportErrors(ctx context.Context, err error, msg string)
	LogAndReportMessages(ctx context.Context, msg string)
	FlushEvents(waitTime time.Duration) bool
	Recover()
	Clone() CrashTrackerClient
}

type CrashTrackerType string

const (
	CrashTrackerTypeSentry CrashTrackerType = "SENTRY"
	// CrashTrackerTypeDryRun only logs. Meant for development.
	CrashTrackerTypeDryRun CrashTrackerType = "DRY_RUN"
)

func ParseCrashTrackerType(crashTrackerTypeStr string) (CrashTrackerType, error) {
	ctType := CrashTrackerType(strings.ToUpper(strings.TrimSpace(crashTrackerTypeStr)))
	switch ctType {
	case CrashTrackerTypeSentry, CrashTrackerTypeDryRun:
		return ctType, nil
	default:
		return "", fmt.Errorf("invalid crash tracker type %q", ctType)
	}
}

type CrashTrackerOptions struct {
	CrashTrackerType CrashTrackerType
	Environment      string
	GitCommit        string
	SentryDSN        string
	// ServiceName tags every Sentry event so the API and the CLI jobs can be told apart.
	ServiceName string
}

func (o CrashTrackerOptions) Validate() error {
	if o.CrashTrackerType == CrashTrackerTypeSentry && strings.TrimSpace(o.SentryDSN) == "" {
		return errors.New("sentry DSN is required for the SENTRY crash tracker")
	}
	return nil
}

func GetClient(ctx context.Context, opts CrashTrackerOptions) (CrashTrackerClient, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating crash tracker options: %w", err)
	}

	switch opts.CrashTrackerType {
	case CrashTrackerTypeSentry:
		log.Ctx(ctx).Infof("Using %q crash tracker", opts.CrashTrackerType)
		return NewSentryClient(opts)
	case CrashTrackerTypeDryRun:
		log.Ctx(ctx).Warnf("Using %q crash tracker", opts.CrashTrackerType)
		return NewDryRunClient(), nil
	default:
		return nil, fmt.Errorf("unknown crash tracker type: %q", opts.CrashTrackerType)
	}
}
