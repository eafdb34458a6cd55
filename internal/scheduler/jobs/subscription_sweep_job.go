package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
)

const (
	subscriptionSweepJobName            = "subscription_sweep_job"
	DefaultSubscriptionSweepJobInterval = time.Hour
)

type SubscriptionSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*data.SweepResult, error)
}

var _ SubscriptionSweeper = (*lifecycle.Sweeper)(nil)

type subscriptionSweepJob struct {
	sweeper  SubscriptionSweeper
	interval time.Duration
	now      func() time.Time
}

// NewSubscriptionSweepJob suspends expired schools every intervalSeconds.
func NewSubscriptionSweepJob(sweeper SubscriptionSweeper, intervalSeconds int) (Job, error) {
	if sweeper == nil {
		return nil, errors.New("sweeper cannot be nil")
	}
	if intervalSeconds < DefaultMinimumJobIntervalSeconds {
		return nil, fmt.Errorf("job interval is set to %d seconds, minimum is %d", intervalSeconds, DefaultMinimumJobIntervalSeconds)
	}
	return &subscriptionSweepJob{
		sweeper:  sweeper,
		interval: time.Duration(intervalSeconds) * time.Second,
		now:      time.Now,
	}, nil
}

func (j subscriptionSweepJob) Execute(ctx context.Context) error {
	result, err := j.sweeper.Sweep(ctx, j.now().UTC())
	if errors.Is(err, lifecycle.ErrSweepInProgress) {
		log.Ctx(ctx).Debug("skipping subscription sweep, another one is running")
		return nil
	}
	if err != nil {
		return fmt.Errorf("running subscription sweep: %w", err)
	}
	log.Ctx(ctx).Infof("subscription sweep examined %d schools, suspended %d, %d in grace", result.Examined, result.Suspended, result.GraceFlagged)
	return nil
}

func (j subscriptionSweepJob) GetInterval() time.Duration {
	return j.interval
}

func (j subscriptionSweepJob) GetName() string {
	return subscriptionSweepJobName
}

// RunOnStart catches up on schools that lapsed while the API was down.
func (j subscriptionSweepJob) RunOnStart() bool {
	return true
}

var _ Job = (*subscriptionSweepJob)(nil)
