package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

const (
	DefaultProvisionTimeout = 2 * time.Minute
	DefaultGracePeriod      = 7 * 24 * time.Hour
	DefaultStaleTimeout     = 30 * time.Minute

	kindAdmin   = "admin"
	kindInquiry = "inquiry"
)

type OrchestratorOptions struct {
	AdminStore         AdminStore
	InquiryStore       InquiryStore
	AdminAudit         AuditLog
	InquiryAudit       AuditLog
	Allocator          Allocator
	Provisioner        Provisioner
	Notifier           Notifier
	CrashTrackerClient crashtracker.CrashTrackerClient
	MonitorService     monitor.MonitorServiceInterface
	ProvisionTimeout   time.Duration
	GracePeriod        time.Duration
}

func (o OrchestratorOptions) Validate() error {
	switch {
	case o.AdminStore == nil:
		return errors.New("admin store cannot be nil")
	case o.InquiryStore == nil:
		return errors.New("inquiry store cannot be nil")
	case o.AdminAudit == nil || o.InquiryAudit == nil:
		return errors.New("audit logs cannot be nil")
	case o.Allocator == nil:
		return errors.New("allocator cannot be nil")
	case o.Provisioner == nil:
		return errors.New("provisioner cannot be nil")
	case o.CrashTrackerClient == nil:
		return errors.New("crash tracker client cannot be nil")
	case o.ProvisionTimeout < 0 || o.GracePeriod < 0:
		return errors.New("durations must not be negative")
	}
	return nil
}

// Orchestrator drives admins and school inquiries through the reserve, allocate, provision, bind and finalize steps.
// Each step is durable on its own and the audit row is the recovery log of the run.
type Orchestrator struct {
	adminStore         AdminStore
	inquiryStore       InquiryStore
	adminAudit         AuditLog
	inquiryAudit       AuditLog
	allocator          Allocator
	provisioner        Provisioner
	notifier           Notifier
	crashTrackerClient crashtracker.CrashTrackerClient
	monitorService     monitor.MonitorServiceInterface
	provisionTimeout   time.Duration
	gracePeriod        time.Duration

	locks         *keyedMutex
	now           func() time.Time
	newSchoolCode func(seed string) (string, error)
}

func NewOrchestrator(opts OrchestratorOptions) (*Orchestrator, error) {
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("validating orchestrator options: %w", err)
	}

	o := &Orchestrator{
		adminStore:         opts.AdminStore,
		inquiryStore:       opts.InquiryStore,
		adminAudit:         opts.AdminAudit,
		inquiryAudit:       opts.InquiryAudit,
		allocator:          opts.Allocator,
		provisioner:        opts.Provisioner,
		notifier:           opts.Notifier,
		crashTrackerClient: opts.CrashTrackerClient,
		monitorService:     opts.MonitorService,
		provisionTimeout:   opts.ProvisionTimeout,
		gracePeriod:        opts.GracePeriod,
		locks:              newKeyedMutex(),
		now:                time.Now,
		newSchoolCode:      generateSchoolCode,
	}
	if o.provisionTimeout == 0 {
		o.provisionTimeout = DefaultProvisionTimeout
	}
	if o.gracePeriod == 0 {
		o.gracePeriod = DefaultGracePeriod
	}
	return o, nil
}

// generateSchoolCode builds codes like "SCHGRE4821" out of the allocated domain.
func generateSchoolCode(seed string) (string, error) {
	prefix := strings.ToUpper(strings.ReplaceAll(seed, "-", ""))
	if len(prefix) > 3 {
		prefix = prefix[:3]
	}
	suffix, err := utils.RandomString(4, utils.NumberBytes)
	if err != nil {
		return "", fmt.Errorf("generating school code: %w", err)
	}
	return "SCH" + prefix + suffix, nil
}

// run tracks one saga execution so every failure path writes the audit row the same way.
type run struct {
	o            *Orchestrator
	kind         string
	conversionID string
	audit        AuditLog
}

// fail moves the audit row to failed and returns the StepError handed to the caller. Audit writes outlive the
// caller's cancellation so an aborted request still leaves a failed row.
func (r *run) fail(ctx context.Context, step Step, cause error) error {
	message := cause.Error()
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(cause, ctxErr) {
		message = fmt.Sprintf("%s: %v", step, ctxErr)
	}

	if err := r.audit.Fail(context.WithoutCancel(ctx), r.conversionID, message); err != nil {
		r.o.crashTrackerClient.LogAndReportErrors(ctx, err, fmt.Sprintf("recording failure of %s conversion %s", r.kind, r.conversionID))
	}
	log.Ctx(ctx).Warnf("%s conversion %s failed at %s: %s", r.kind, r.conversionID, step, message)
	r.o.countOutcome(r.kind, "failed")

	return &StepError{ConversionID: r.conversionID, Step: step, Message: message, Err: cause}
}

func (r *run) allocate(ctx context.Context, owner, seed string) (domainbinding.Allocation, error) {
	defer r.o.timeStep(r.kind, StepAllocate, time.Now())

	allocation, err := r.o.allocator.Allocate(ctx, owner, seed)
	if err != nil {
		return domainbinding.Allocation{}, err
	}
	if !allocation.Reused && r.o.monitorService != nil {
		if mErr := r.o.monitorService.MonitorHistogram(float64(allocation.Attempts), monitor.AllocationAttemptsTag, map[string]string{"kind": r.kind}); mErr != nil {
			log.Errorf("monitoring allocation attempts: %v", mErr)
		}
	}
	if err = r.audit.RecordIdentifiers(ctx, r.conversionID, allocation.DatabaseName, allocation.Domain); err != nil {
		return domainbinding.Allocation{}, fmt.Errorf("recording allocated identifiers: %w", err)
	}
	return allocation, nil
}

// provision runs the provisioner under the configured timeout. On failure the reservation is released so the next
// attempt starts from fresh identifiers and the partial schema stays behind for the orphan cleanup.
func (r *run) provision(ctx context.Context, allocation domainbinding.Allocation) error {
	defer r.o.timeStep(r.kind, StepProvision, time.Now())

	provisionCtx, cancel := context.WithTimeout(ctx, r.o.provisionTimeout)
	defer cancel()

	err := r.o.provisioner.Provision(provisionCtx, allocation.DatabaseName)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
		err = fmt.Errorf("provisioning %s timed out after %s: %w", allocation.DatabaseName, r.o.provisionTimeout, err)
	}

	if releaseErr := r.o.allocator.Release(context.WithoutCancel(ctx), allocation.Domain); releaseErr != nil {
		r.o.crashTrackerClient.LogAndReportErrors(ctx, releaseErr, fmt.Sprintf("releasing reservation %s", allocation.Domain))
	}
	return err
}

// finalize completes the audit row. The bind already committed, so a failure here is reported and left for the stale
// conversion reaper to reconcile instead of failing the call.
func (r *run) finalize(ctx context.Context, resultID string, at time.Time) {
	if err := r.audit.Complete(context.WithoutCancel(ctx), r.conversionID, resultID, at); err != nil {
		r.o.crashTrackerClient.LogAndReportErrors(ctx, err, fmt.Sprintf("completing %s conversion %s", r.kind, r.conversionID))
	}
	r.o.countOutcome(r.kind, "completed")
}

func (o *Orchestrator) timeStep(kind string, step Step, startedAt time.Time) {
	if o.monitorService == nil {
		return
	}
	labels := monitor.ConversionStepLabels{Kind: kind, Step: string(step)}.ToMap()
	if err := o.monitorService.MonitorDuration(time.Since(startedAt), monitor.ConversionStepDurationTag, labels); err != nil {
		log.Errorf("monitoring conversion step duration: %v", err)
	}
}

func (o *Orchestrator) countOutcome(kind, outcome string) {
	if o.monitorService == nil {
		return
	}
	labels := monitor.ConversionLabels{Kind: kind, Outcome: outcome}.ToMap()
	if err := o.monitorService.MonitorCounters(monitor.ConversionsCounterTag, labels); err != nil {
		log.Errorf("monitoring conversion outcome: %v", err)
	}
}
