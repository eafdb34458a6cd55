package conversion

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

// Deprovisioner drops schemas nobody owns.
type Deprovisioner interface {
	Deprovision(ctx context.Context, databaseName string) error
}

// Retirer gives reservations up for good. Retire fails with data.ErrReservationInUse when a tenant or school is bound.
type Retirer interface {
	Retire(ctx context.Context, domain string) error
}

var _ Retirer = (*domainbinding.Binder)(nil)

type ReaperOptions struct {
	Models         *data.Models
	Deprovisioner  Deprovisioner
	Retirer        Retirer
	MonitorService monitor.MonitorServiceInterface
}

// Reaper settles conversions abandoned by a crashed process and cleans the identifiers they left behind.
type Reaper struct {
	models         *data.Models
	deprovisioner  Deprovisioner
	retirer        Retirer
	monitorService monitor.MonitorServiceInterface
	now            func() time.Time
}

func NewReaper(opts ReaperOptions) (*Reaper, error) {
	if opts.Models == nil {
		return nil, errors.New("models cannot be nil")
	}
	return &Reaper{
		models:         opts.Models,
		deprovisioner:  opts.Deprovisioner,
		retirer:        opts.Retirer,
		monitorService: opts.MonitorService,
		now:            time.Now,
	}, nil
}

type ReapResult struct {
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Released  int64 `json:"released"`
}

// ReapStaleConversions settles initiated rows older than olderThan in both conversion tables. Rows whose bind made it
// to the catalog are completed, the others are failed and give their held reservation back.
func (r *Reaper) ReapStaleConversions(ctx context.Context, olderThan time.Duration) (ReapResult, error) {
	if olderThan <= 0 {
		return ReapResult{}, fmt.Errorf("olderThan must be positive, got %s", olderThan)
	}
	cutoff := r.now().Add(-olderThan)

	reapers := []struct {
		kind string
		reap func(context.Context, time.Time) (data.StaleConversions, error)
	}{
		{kind: kindAdmin, reap: r.models.AdminConversions.ReapStale},
		{kind: kindInquiry, reap: r.models.InquiryConversions.ReapStale},
	}

	var result ReapResult
	for _, reaper := range reapers {
		reaped, err := reaper.reap(ctx, cutoff)
		if err != nil {
			return result, fmt.Errorf("reaping stale %s conversions: %w", reaper.kind, err)
		}
		result.Completed += reaped.Completed
		result.Failed += reaped.Failed
		result.Released += reaped.Released
		r.countStale(reaper.kind, "completed", reaped.Completed)
		r.countStale(reaper.kind, "failed", reaped.Failed)
		if reaped.Completed+reaped.Failed > 0 {
			log.Ctx(ctx).Infof("reaped stale %s conversions: %d completed, %d failed, %d reservations released",
				reaper.kind, reaped.Completed, reaped.Failed, reaped.Released)
		}
	}
	return result, nil
}

func (r *Reaper) countStale(kind, outcome string, n int64) {
	if r.monitorService == nil || n == 0 {
		return
	}
	labels := monitor.ConversionLabels{Kind: kind, Outcome: outcome}.ToMap()
	if err := r.monitorService.MonitorCounterAdd(float64(n), monitor.StaleConversionsCounterTag, labels); err != nil {
		log.Errorf("monitoring stale conversions: %v", err)
	}
}

// Orphans lists identifiers allocated by failed conversions that no tenant or school owns.
func (r *Reaper) Orphans(ctx context.Context) ([]data.OrphanedIdentifiers, error) {
	adminOrphans, err := r.models.AdminConversions.Orphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing admin conversion orphans: %w", err)
	}
	inquiryOrphans, err := r.models.InquiryConversions.Orphans(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing inquiry conversion orphans: %w", err)
	}

	seen := make(map[string]bool, len(adminOrphans)+len(inquiryOrphans))
	orphans := make([]data.OrphanedIdentifiers, 0, len(adminOrphans)+len(inquiryOrphans))
	for _, o := range append(adminOrphans, inquiryOrphans...) {
		if seen[o.DatabaseName] {
			continue
		}
		seen[o.DatabaseName] = true
		orphans = append(orphans, o)
	}
	return orphans, nil
}

// CleanupOrphans retires the reservation of each orphan and drops its schema once the reservation can no longer be
// bound. Orphans that a retry bound in the meantime keep their schema. It keeps going past a failed orphan and returns
// the joined errors.
func (r *Reaper) CleanupOrphans(ctx context.Context, orphans []data.OrphanedIdentifiers) (int, error) {
	if r.deprovisioner == nil || r.retirer == nil {
		return 0, errors.New("cleanup needs a deprovisioner and a retirer")
	}

	var errs []error
	cleaned := 0
	for _, o := range orphans {
		if err := r.retirer.Retire(ctx, o.Domain); err != nil {
			if errors.Is(err, data.ErrReservationInUse) {
				log.Ctx(ctx).Warnf("domain %s is in use again, keeping schema %s", o.Domain, o.DatabaseName)
			}
			errs = append(errs, fmt.Errorf("retiring domain %s: %w", o.Domain, err))
			continue
		}
		if err := r.deprovisioner.Deprovision(ctx, o.DatabaseName); err != nil {
			errs = append(errs, fmt.Errorf("dropping schema %s: %w", o.DatabaseName, err))
			continue
		}
		log.Ctx(ctx).Infof("cleaned orphaned schema %s for domain %s", o.DatabaseName, o.Domain)
		cleaned++
	}
	return cleaned, errors.Join(errs...)
}
