package dependencyinjection

import (
	"context"
	"fmt"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
)

const CrashTrackerInstanceName = "crash_tracker_instance"

// NewCrashTracker keys the instance by type, so a Sentry and a dry-run client can coexist.
func NewCrashTracker(ctx context.Context, opts crashtracker.CrashTrackerOptions) (crashtracker.CrashTrackerClient, error) {
	instanceName := fmt.Sprintf("%s-%s", CrashTrackerInstanceName, opts.CrashTrackerType)
	return getOrCreate(instanceName, "crash tracker", func() (crashtracker.CrashTrackerClient, error) {
		client, err := crashtracker.GetClient(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("creating a new crash tracker instance: %w", err)
		}
		return client, nil
	})
}
