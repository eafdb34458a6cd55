package jobs

import (
	"context"
	"sync"
	"time"
)

// MockJob counts its executions and returns Err from each of them.
type MockJob struct {
	Name       string
	Interval   time.Duration
	OnStart    bool
	Err        error
	executions int
	mu         sync.Mutex
}

var _ Job = (*MockJob)(nil)

func (m *MockJob) GetName() string {
	return m.Name
}

func (m *MockJob) GetInterval() time.Duration {
	return m.Interval
}

func (m *MockJob) RunOnStart() bool {
	return m.OnStart
}

func (m *MockJob) Execute(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executions++
	return m.Err
}

func (m *MockJob) GetExecutions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.executions
}
