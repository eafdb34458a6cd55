package conversion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
)

const schoolCodeAttempts = 5

type ApprovalRequest struct {
	PlanID string
	// Months is the length of the first subscription period. Zero uses the plan's billing cycle.
	Months     int
	DomainHint string
}

func (r ApprovalRequest) Validate() error {
	if strings.TrimSpace(r.PlanID) == "" {
		return errors.New("plan ID is required")
	}
	if r.Months < 0 {
		return fmt.Errorf("months must not be negative, got %d", r.Months)
	}
	return nil
}

// ApproveSchoolInquiry provisions a school out of an inquiry. The school row and the inquiry registration are written
// in the same transaction.
func (o *Orchestrator) ApproveSchoolInquiry(ctx context.Context, principal *auth.Principal, inquiryID string, req ApprovalRequest) (*data.School, error) {
	if err := auth.Authorize(principal, auth.CapabilitySuperadmin, o.now()); err != nil {
		return nil, err
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validating approval request: %w", err)
	}

	owner := domainbinding.OwnerKey(kindInquiry, inquiryID)
	unlock, err := o.locks.Lock(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("waiting for the running conversion of inquiry %s: %w", inquiryID, err)
	}
	defer unlock()

	inquiry, err := o.inquiryStore.GetInquiry(ctx, inquiryID)
	if err != nil {
		return nil, fmt.Errorf("getting inquiry %s: %w", inquiryID, err)
	}
	if !inquiry.Status.IsConvertible() {
		return nil, &InvalidStateError{Entity: kindInquiry, ID: inquiryID, Status: string(inquiry.Status)}
	}
	plan, err := o.inquiryStore.GetActivePlan(ctx, req.PlanID)
	if err != nil {
		return nil, fmt.Errorf("getting subscription plan %s: %w", req.PlanID, err)
	}

	// 1. Reserve
	conversionID, err := o.inquiryAudit.Initiate(ctx, inquiryID, principal.ID)
	if err != nil {
		if invalidErr := invalidStateFrom(err, kindInquiry, inquiryID, string(inquiry.Status)); invalidErr != nil {
			return nil, invalidErr
		}
		return nil, fmt.Errorf("reserving approval of inquiry %s: %w", inquiryID, err)
	}
	r := &run{o: o, kind: kindInquiry, conversionID: conversionID, audit: o.inquiryAudit}
	ctx = crashtracker.WithTags(ctx, map[string]string{"conversion_kind": kindInquiry, "conversion_id": conversionID})
	log.Ctx(ctx).Infof("approving inquiry %s, conversion %s initiated by %s", inquiryID, conversionID, principal.ID)

	// 2. Allocate
	allocation, err := r.allocate(ctx, owner, inquirySeed(inquiry, req))
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
	approvedAt := o.now().UTC()
	months := req.Months
	if months == 0 {
		months = plan.BillingCycle.Months()
	}
	end := approvedAt.AddDate(0, months, 0)
	binding := SchoolBinding{
		Inquiry:    inquiry,
		Allocation: allocation,
		Owner:      owner,
		PlanID:     plan.ID,
		Start:      approvedAt,
		End:        end,
		GraceEnd:   end.Add(o.gracePeriod),
		ApprovedBy: principal.ID,
	}

	bindStartedAt := time.Now()
	school, err := o.bindSchool(ctx, binding)
	o.timeStep(kindInquiry, StepBind, bindStartedAt)
	if err != nil {
		if invalidErr := invalidStateFrom(err, kindInquiry, inquiryID, ""); invalidErr != nil {
			err = fmt.Errorf("%w: %w", invalidErr, err)
		}
		return nil, r.fail(ctx, StepBind, err)
	}

	// 5. Finalize
	r.finalize(ctx, school.ID, approvedAt)
	log.Ctx(ctx).Infof("inquiry %s registered as school %s on %s", inquiryID, school.ID, school.DatabaseName)

	o.notifySchoolApproved(ctx, inquiry, school, plan)
	return school, nil
}

// bindSchool retries the bind transaction with a new school code while the generated one collides.
func (o *Orchestrator) bindSchool(ctx context.Context, binding SchoolBinding) (*data.School, error) {
	var school *data.School
	err := retry.Do(
		func() error {
			code, err := o.newSchoolCode(binding.Allocation.Domain)
			if err != nil {
				return retry.Unrecoverable(err)
			}
			binding.SchoolCode = code

			school, err = o.inquiryStore.BindSchool(ctx, binding)
			if errors.Is(err, data.ErrSchoolCodeTaken) {
				log.Ctx(ctx).Debugf("school code %s is taken", code)
				return err
			}
			if err != nil {
				return retry.Unrecoverable(err)
			}
			return nil
		},
		retry.Attempts(schoolCodeAttempts),
		retry.DelayType(retry.FixedDelay),
		retry.Delay(0),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
	)
	if err != nil {
		return nil, err
	}
	return school, nil
}

func inquirySeed(inquiry *data.SchoolInquiry, req ApprovalRequest) string {
	if hint := strings.TrimSpace(req.DomainHint); hint != "" {
		return hint
	}
	if inquiry.ProposedDomain != nil && strings.TrimSpace(*inquiry.ProposedDomain) != "" {
		return *inquiry.ProposedDomain
	}
	return inquiry.SchoolName
}

func (o *Orchestrator) notifySchoolApproved(ctx context.Context, inquiry *data.SchoolInquiry, school *data.School, plan *data.SubscriptionPlan) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.SchoolApproved(ctx, inquiry, school, plan); err != nil {
		o.crashTrackerClient.LogAndReportErrors(ctx, err, fmt.Sprintf("notifying school %s about its approval", school.ID))
	}
}
