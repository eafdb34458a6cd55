package conversion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
)

type ConvertOptions struct {
	// DomainHint replaces the admin's school name as the slug seed.
	DomainHint string
}

// ConvertAdminToTenant provisions an isolated schema for the admin and makes them the owner of the new tenant.
// Retrying after a failure is always allowed and writes a new audit row.
func (o *Orchestrator) ConvertAdminToTenant(ctx context.Context, principal *auth.Principal, adminID string, opts ConvertOptions) (*data.Tenant, error) {
	if err := auth.Authorize(principal, auth.CapabilitySuperadmin, o.now()); err != nil {
		return nil, err
	}

	owner := domainbinding.OwnerKey(kindAdmin, adminID)
	unlock, err := o.locks.Lock(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("waiting for the running conversion of admin %s: %w", adminID, err)
	}
	defer unlock()

	admin, err := o.adminStore.GetAdmin(ctx, adminID)
	if err != nil {
		return nil, fmt.Errorf("getting admin %s: %w", adminID, err)
	}
	if !admin.Status.IsConvertible() {
		return nil, &InvalidStateError{Entity: kindAdmin, ID: adminID, Status: string(admin.Status)}
	}

	// 1. Reserve
	conversionID, err := o.adminAudit.Initiate(ctx, adminID, principal.ID)
	if err != nil {
		if invalidErr := invalidStateFrom(err, kindAdmin, adminID, string(admin.Status)); invalidErr != nil {
			return nil, invalidErr
		}
		return nil, fmt.Errorf("reserving conversion of admin %s: %w", adminID, err)
	}
	r := &run{o: o, kind: kindAdmin, conversionID: conversionID, audit: o.adminAudit}
	ctx = crashtracker.WithTags(ctx, map[string]string{"conversion_kind": kindAdmin, "conversion_id": conversionID})
	log.Ctx(ctx).Infof("converting admin %s, conversion %s initiated by %s", adminID, conversionID, principal.ID)

	// 2. Allocate
	allocation, err := r.allocate(ctx, owner, adminSeed(admin, opts))
	if err != nil {
		return nil, r.fail(ctx, StepAllocate, err)
	}

	// 3. Provision
	if err = r.provision(ctx, allocation); err != nil {
		return nil, r.fail(ctx, StepProvision, err)
	}

	// 4. Bind
	if err = ctx.Err(); err != nil {
		return nil, r.fail(ctx, StepBind, err)
	}
	boundAt := o.now().UTC()
	bindStartedAt := time.Now()
	tenant, err := o.adminStore.BindTenant(ctx, TenantBinding{AdminID: adminID, Allocation: allocation, Owner: owner, At: boundAt})
	o.timeStep(kindAdmin, StepBind, bindStartedAt)
	if err != nil {
		if invalidErr := invalidStateFrom(err, kindAdmin, adminID, ""); invalidErr != nil {
			err = fmt.Errorf("%w: %w", invalidErr, err)
		}
		return nil, r.fail(ctx, StepBind, err)
	}

	// 5. Finalize
	r.finalize(ctx, tenant.ID, boundAt)
	log.Ctx(ctx).Infof("admin %s converted into tenant %s on %s", adminID, tenant.ID, tenant.DatabaseName)

	o.notifyTenantReady(ctx, admin, tenant)
	return tenant, nil
}

func adminSeed(admin *data.Admin, opts ConvertOptions) string {
	if hint := strings.TrimSpace(opts.DomainHint); hint != "" {
		return hint
	}
	if admin.SchoolName != nil && strings.TrimSpace(*admin.SchoolName) != "" {
		return *admin.SchoolName
	}
	return admin.Name
}

func (o *Orchestrator) notifyTenantReady(ctx context.Context, admin *data.Admin, tenant *data.Tenant) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.TenantReady(ctx, admin, tenant); err != nil {
		o.crashTrackerClient.LogAndReportErrors(ctx, err, fmt.Sprintf("notifying admin %s about tenant %s", admin.ID, tenant.ID))
	}
}
