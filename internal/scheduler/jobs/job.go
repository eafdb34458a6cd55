package jobs

import (
	"context"
	"time"
)

const DefaultMinimumJobIntervalSeconds = 5

// Job is periodic maintenance run by the scheduler workers.
type Job interface {
	Execute(context.Context) error
	GetInterval() time.Duration
	GetName() string
	// RunOnStart asks for one execution as soon as the scheduler starts, before the first tick. Jobs that settle work
	// left behind by a crashed process use it.
	RunOnStart() bool
}
