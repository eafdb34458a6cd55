package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
)

func Test_GlobalOptionsType_PopulateCrashTrackerOptions(t *testing.T) {
	globalOptions := GlobalOptionsType{
		Environment: "staging",
		GitCommit:   "1234567890abcdef",
		SentryDSN:   "https://public@sentry.example/1",
		DatabaseURL: "postgres://localhost:5432/schoolhub?sslmode=disable",
	}

	testCases := []struct {
		name    string
		initial crashtracker.CrashTrackerOptions
		want    crashtracker.CrashTrackerOptions
	}{
		{
			name:    "dry run trackers never receive the DSN",
			initial: crashtracker.CrashTrackerOptions{CrashTrackerType: crashtracker.CrashTrackerTypeDryRun, ServiceName: "schoolhub-api"},
			want: crashtracker.CrashTrackerOptions{
				CrashTrackerType: crashtracker.CrashTrackerTypeDryRun,
				ServiceName:      "schoolhub-api",
				Environment:      "staging",
				GitCommit:        "1234567890abcdef",
			},
		},
		{
			name:    "sentry trackers receive the DSN and keep their service name",
			initial: crashtracker.CrashTrackerOptions{CrashTrackerType: crashtracker.CrashTrackerTypeSentry, ServiceName: "schoolhub-api"},
			want: crashtracker.CrashTrackerOptions{
				CrashTrackerType: crashtracker.CrashTrackerTypeSentry,
				ServiceName:      "schoolhub-api",
				Environment:      "staging",
				GitCommit:        "1234567890abcdef",
				SentryDSN:        "https://public@sentry.example/1",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got := tc.initial
			globalOptions.PopulateCrashTrackerOptions(&got)
			assert.Equal(t, tc.want, got)
		})
	}
}
