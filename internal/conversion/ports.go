package conversion

import (
	"context"
	"time"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
)

// AuditLog records conversion attempts. Only initiated rows may be updated, and every attempt gets its own row.
type AuditLog interface {
	// Initiate inserts the initiated row with a snapshot of the subject. It fails with data.ErrConversionInProgress
	// while another attempt is initiated and data.ErrRecordNotFound when the subject does not exist.
	Initiate(ctx context.Context, subjectID, initiatedBy string) (string, error)
	RecordIdentifiers(ctx context.Context, id, databaseName, domain string) error
	Fail(ctx context.Context, id, message string) error
	Complete(ctx context.Context, id, resultID string, at time.Time) error
}

type AdminStore interface {
	GetAdmin(ctx context.Context, id string) (*data.Admin, error)
	// BindTenant creates the tenant, converts the admin and binds the reservation in one transaction.
	BindTenant(ctx context.Context, binding TenantBinding) (*data.Tenant, error)
}

type TenantBinding struct {
	AdminID    string
	Allocation domainbinding.Allocation
	Owner      string
	At         time.Time
}

type InquiryStore interface {
	GetInquiry(ctx context.Context, id string) (*data.SchoolInquiry, error)
	GetActivePlan(ctx context.Context, planID string) (*data.SubscriptionPlan, error)
	// BindSchool creates the school, registers the inquiry and binds the reservation in one transaction. A taken
	// school code fails with data.ErrSchoolCodeTaken and a plan deactivated since GetActivePlan with
	// data.ErrPlanInactive. Nothing is written in either case.
	BindSchool(ctx context.Context, binding SchoolBinding) (*data.School, error)
}

type SchoolBinding struct {
	Inquiry    *data.SchoolInquiry
	Allocation domainbinding.Allocation
	Owner      string
	SchoolCode string
	PlanID     string
	Start      time.Time
	End        time.Time
	GraceEnd   time.Time
	ApprovedBy string
}

type Allocator interface {
	Allocate(ctx context.Context, owner, seed string) (domainbinding.Allocation, error)
	Release(ctx context.Context, domain string) error
}

var _ Allocator = (*domainbinding.Binder)(nil)

type Provisioner interface {
	Provision(ctx context.Context, databaseName string) error
}

// Notifier is told about conversions after they are committed.
type Notifier interface {
	TenantReady(ctx context.Context, admin *data.Admin, tenant *data.Tenant) error
	SchoolApproved(ctx context.Context, inquiry *data.SchoolInquiry, school *data.School, plan *data.SubscriptionPlan) error
}
