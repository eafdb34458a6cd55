package dependencyinjection

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
)

func Test_NewCrashTracker(t *testing.T) {
	ctx := context.Background()

	t.Run("creates and returns the same instance on the second call", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		opts := crashtracker.CrashTrackerOptions{CrashTrackerType: crashtracker.CrashTrackerTypeDryRun}

		gotClient, err := NewCrashTracker(ctx, opts)
		require.NoError(t, err)

		gotClientDuplicate, err := NewCrashTracker(ctx, opts)
		require.NoError(t, err)

		assert.Same(t, gotClient, gotClientDuplicate)
	})

	t.Run("returns an error on invalid options", func(t *testing.T) {
		ClearInstancesTestHelper(t)

		gotClient, err := NewCrashTracker(ctx, crashtracker.CrashTrackerOptions{})
		assert.Nil(t, gotClient)
		assert.EqualError(t, err, `creating a new crash tracker instance: unknown crash tracker type: ""`)
	})

	t.Run("returns an error when the stored instance has another type", func(t *testing.T) {
		ClearInstancesTestHelper(t)
		SetInstance("crash_tracker_instance-DRY_RUN", false)

		gotClient, err := NewCrashTracker(ctx, crashtracker.CrashTrackerOptions{CrashTrackerType: crashtracker.CrashTrackerTypeDryRun})
		assert.Nil(t, gotClient)
		assert.EqualError(t, err, "trying to cast pre-existing crash tracker for dependency injection")
	})
}
