package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/conversion"
)

const (
	staleConversionReaperJobName     = "stale_conversion_reaper_job"
	staleConversionReaperJobInterval = 5 * time.Minute
)

type StaleConversionReaper interface {
	ReapStaleConversions(ctx context.Context, olderThan time.Duration) (conversion.ReapResult, error)
}

var _ StaleConversionReaper = (*conversion.Reaper)(nil)

type staleConversionReaperJob struct {
	reaper    StaleConversionReaper
	olderThan time.Duration
}

func NewStaleConversionReaperJob(reaper StaleConversionReaper, olderThan time.Duration) (Job, error) {
	if reaper == nil {
		return nil, errors.New("reaper cannot be nil")
	}
	if olderThan <= 0 {
		return nil, fmt.Errorf("olderThan must be positive, got %s", olderThan)
	}
	return &staleConversionReaperJob{reaper: reaper, olderThan: olderThan}, nil
}

func (j staleConversionReaperJob) Execute(ctx context.Context) error {
	result, err := j.reaper.ReapStaleConversions(ctx, j.olderThan)
	if err != nil {
		return fmt.Errorf("reaping stale conversions: %w", err)
	}
	if result.Completed+result.Failed > 0 {
		log.Ctx(ctx).Warnf("settled stale conversions older than %s: %d completed, %d failed", j.olderThan, result.Completed, result.Failed)
	}
	return nil
}

func (j staleConversionReaperJob) GetInterval() time.Duration {
	return staleConversionReaperJobInterval
}

func (j staleConversionReaperJob) GetName() string {
	return staleConversionReaperJobName
}

func (j staleConversionReaperJob) RunOnStart() bool {
	return true
}

var _ Job = (*staleConversionReaperJob)(nil)
