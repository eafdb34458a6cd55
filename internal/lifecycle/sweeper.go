package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

// ErrSweepInProgress is returned when another sweep holds the lock, in this process or in another one.
var ErrSweepInProgress = errors.New("a subscription sweep is already running")

// sweepAdvisoryLockKey identifies the sweep among PostgreSQL advisory locks.
const sweepAdvisoryLockKey int64 = 0x5c4001

type Sweeper struct {
	models         *data.Models
	monitorService monitor.MonitorServiceInterface
	mu             sync.Mutex
}

func NewSweeper(models *data.Models, monitorService monitor.MonitorServiceInterface) (*Sweeper, error) {
	if models == nil {
		return nil, errors.New("models cannot be nil")
	}
	return &Sweeper{models: models, monitorService: monitorService}, nil
}

// Sweep classifies every active school at now, suspends the expired ones and refreshes the cached grace flag. Two
// sweeps never overlap: a concurrent call returns ErrSweepInProgress without touching any row.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (*data.SweepResult, error) {
	if !s.mu.TryLock() {
		return nil, ErrSweepInProgress
	}
	defer s.mu.Unlock()

	startedAt := time.Now()
	result, err := db.RunInTransactionWithResult(ctx, s.models.DBConnectionPool, nil, func(dbTx db.DBTransaction) (*data.SweepResult, error) {
		return s.sweep(ctx, dbTx, now)
	})
	if errors.Is(err, ErrSweepInProgress) {
		return nil, ErrSweepInProgress
	}

	outcome := "success"
	if err != nil {
		outcome = "error"
		s.recordFailure(ctx, now, err)
	}
	s.observe(time.Since(startedAt), outcome, result)

	if err != nil {
		return nil, fmt.Errorf("sweeping subscriptions: %w", err)
	}
	return result, nil
}

func (s *Sweeper) sweep(ctx context.Context, dbTx db.DBTransaction, now time.Time) (*data.SweepResult, error) {
	var acquired bool
	if err := dbTx.GetContext(ctx, &acquired, `SELECT pg_try_advisory_xact_lock($1)`, sweepAdvisoryLockKey); err != nil {
		return nil, fmt.Errorf("acquiring sweep lock: %w", err)
	}
	if !acquired {
		return nil, ErrSweepInProgress
	}

	watermark, err := s.models.SubscriptionSweeps.Start(ctx, dbTx, now)
	if err != nil {
		return nil, err
	}

	windows, err := s.models.Schools.ActiveSubscriptionWindows(ctx, dbTx)
	if err != nil {
		return nil, err
	}

	var expired, inGrace, clear []string
	for _, w := range windows {
		switch Classify(now, w.SubscriptionStartDate, w.SubscriptionEndDate, w.GracePeriodEndDate) {
		case StateExpired:
			expired = append(expired, w.ID)
		case StateInGrace:
			inGrace = append(inGrace, w.ID)
		default:
			if w.InGracePeriod {
				clear = append(clear, w.ID)
			}
		}
	}

	suspended, err := s.models.Schools.SuspendActive(ctx, dbTx, expired)
	if err != nil {
		return nil, err
	}
	flagged, err := s.models.Schools.SetGracePeriodFlag(ctx, dbTx, inGrace, true)
	if err != nil {
		return nil, err
	}
	if _, err = s.models.Schools.SetGracePeriodFlag(ctx, dbTx, clear, false); err != nil {
		return nil, err
	}

	result := &data.SweepResult{Examined: len(windows), Suspended: int(suspended), GraceFlagged: int(flagged)}
	if err = s.models.SubscriptionSweeps.Finish(ctx, dbTx, watermark.ID, *result, nil); err != nil {
		return nil, err
	}

	log.Ctx(ctx).Infof("subscription sweep at %s: examined=%d suspended=%d grace_flagged=%d",
		now.Format(time.RFC3339), result.Examined, result.Suspended, result.GraceFlagged)
	return result, nil
}

// recordFailure leaves a watermark for a failed run, outside of the rolled back transaction.
func (s *Sweeper) recordFailure(ctx context.Context, now time.Time, sweepErr error) {
	pool := s.models.DBConnectionPool
	watermark, err := s.models.SubscriptionSweeps.Start(ctx, pool, now)
	if err == nil {
		err = s.models.SubscriptionSweeps.Finish(ctx, pool, watermark.ID, data.SweepResult{}, sweepErr)
	}
	if err != nil {
		log.Ctx(ctx).Errorf("recording failed subscription sweep: %v", err)
	}
}

func (s *Sweeper) observe(elapsed time.Duration, outcome string, result *data.SweepResult) {
	if s.monitorService == nil {
		return
	}
	if err := s.monitorService.MonitorDuration(elapsed, monitor.SweepDurationTag, monitor.SweepLabels{Outcome: outcome}.ToMap()); err != nil {
		log.Errorf("monitoring sweep duration: %v", err)
	}
	if result != nil && result.Suspended > 0 {
		if err := s.monitorService.MonitorCounterAdd(float64(result.Suspended), monitor.SchoolsSuspendedCounterTag, nil); err != nil {
			log.Errorf("monitoring suspended schools: %v", err)
		}
	}
}
