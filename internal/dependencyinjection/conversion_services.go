package dependencyinjection

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/message"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
	"github.com/schoolhub/schoolhub-backend/internal/provisioning"
)

const (
	ConversionOrchestratorInstanceName = "conversion_orchestrator_instance"
	StaleConversionReaperInstanceName  = "stale_conversion_reaper_instance"
	tenantProvisionerInstanceName      = "tenant_provisioner_instance"
	domainBinderInstanceName           = "domain_binder_instance"
)

type ConversionOrchestratorOptions struct {
	Models *data.Models
	// MessageDispatcher is optional. Without it no notification is sent after a conversion.
	MessageDispatcher  message.MessageDispatcherInterface
	CrashTrackerClient crashtracker.CrashTrackerClient
	MonitorService     monitor.MonitorServiceInterface
	BaseURL            string
	ProvisionTimeout   time.Duration
	GracePeriod        time.Duration
	// DomainMaxRetries defaults to domainbinding.DefaultMaxRetries when zero.
	DomainMaxRetries int
}

// NewConversionOrchestrator assembles the orchestrator on top of the catalog. The binder and provisioner are shared
// with the stale conversion reaper.
func NewConversionOrchestrator(ctx context.Context, opts ConversionOrchestratorOptions) (*conversion.Orchestrator, error) {
	return getOrCreate(ConversionOrchestratorInstanceName, "conversion orchestrator", func() (*conversion.Orchestrator, error) {
		if opts.Models == nil {
			return nil, errors.New("models cannot be nil")
		}
		binder, provisioner, err := newSagaCollaborators(opts.Models, opts.DomainMaxRetries)
		if err != nil {
			return nil, err
		}

		orchestratorOpts, err := conversion.NewCatalogOptions(opts.Models, conversion.OrchestratorOptions{
			Allocator:          binder,
			Provisioner:        provisioner,
			CrashTrackerClient: opts.CrashTrackerClient,
			MonitorService:     opts.MonitorService,
			ProvisionTimeout:   opts.ProvisionTimeout,
			GracePeriod:        opts.GracePeriod,
		})
		if err != nil {
			return nil, fmt.Errorf("wiring catalog stores: %w", err)
		}

		if opts.MessageDispatcher == nil {
			log.Ctx(ctx).Warn("No message dispatcher configured, conversions will not be notified")
		} else {
			notifier, notifierErr := conversion.NewMessageNotifier(opts.MessageDispatcher, opts.BaseURL)
			if notifierErr != nil {
				return nil, fmt.Errorf("creating conversion notifier: %w", notifierErr)
			}
			orchestratorOpts.Notifier = notifier
		}

		orchestrator, err := conversion.NewOrchestrator(orchestratorOpts)
		if err != nil {
			return nil, fmt.Errorf("creating conversion orchestrator: %w", err)
		}
		return orchestrator, nil
	})
}

type StaleConversionReaperOptions struct {
	Models           *data.Models
	MonitorService   monitor.MonitorServiceInterface
	DomainMaxRetries int
}

// NewStaleConversionReaper creates the reaper that settles abandoned conversions.
func NewStaleConversionReaper(ctx context.Context, opts StaleConversionReaperOptions) (*conversion.Reaper, error) {
	return getOrCreate(StaleConversionReaperInstanceName, "stale conversion reaper", func() (*conversion.Reaper, error) {
		if opts.Models == nil {
			return nil, errors.New("models cannot be nil")
		}
		binder, provisioner, err := newSagaCollaborators(opts.Models, opts.DomainMaxRetries)
		if err != nil {
			return nil, err
		}

		reaper, err := conversion.NewReaper(conversion.ReaperOptions{
			Models:         opts.Models,
			Deprovisioner:  provisioner,
			Retirer:        binder,
			MonitorService: opts.MonitorService,
		})
		if err != nil {
			return nil, fmt.Errorf("creating stale conversion reaper: %w", err)
		}
		log.Ctx(ctx).Debug("stale conversion reaper ready")
		return reaper, nil
	})
}

func newSagaCollaborators(models *data.Models, maxRetries int) (*domainbinding.Binder, *provisioning.Provisioner, error) {
	binder, err := getOrCreate(domainBinderInstanceName, "domain binder", func() (*domainbinding.Binder, error) {
		if maxRetries == 0 {
			maxRetries = domainbinding.DefaultMaxRetries
		}
		b, err := domainbinding.NewBinder(models.DomainReservations, maxRetries)
		if err != nil {
			return nil, fmt.Errorf("creating domain binder: %w", err)
		}
		return b, nil
	})
	if err != nil {
		return nil, nil, err
	}

	provisioner, err := getOrCreate(tenantProvisionerInstanceName, "tenant provisioner", func() (*provisioning.Provisioner, error) {
		p, err := provisioning.NewProvisioner(models.DBConnectionPool)
		if err != nil {
			return nil, fmt.Errorf("creating tenant provisioner: %w", err)
		}
		return p, nil
	})
	if err != nil {
		return nil, nil, err
	}
	return binder, provisioner, nil
}
