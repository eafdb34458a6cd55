package crashtracker

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockCrashTrackerClient records reports. Tests that only care about tags can read them from the ctx argument with
// TagsFromContext in a mock.MatchedBy.
type MockCrashTrackerClient struct {
	mock.Mock
}

var _ CrashTrackerClient = (*MockCrashTrackerClient)(nil)

func (m *MockCrashTrackerClient) LogAndReportErrors(ctx context.Context, err error, msg string) {
	m.Called(ctx, err, msg)
}

func (m *MockCrashTrackerClient) LogAndReportMessages(ctx context.Context, msg string) {
	m.Called(ctx, msg)
}

func (m *MockCrashTrackerClient) FlushEvents(waitTime time.Duration) bool {
	return m.Called(waitTime).Bool(0)
}

func (m *MockCrashTrackerClient) Recover() {
	m.Called()
}

func (m *MockCrashTrackerClient) Clone() CrashTrackerClient {
	return m.Called().Get(0).(CrashTrackerClient)
}
