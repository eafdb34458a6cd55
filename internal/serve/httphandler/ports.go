package httphandler

import (
	"context"
	"time"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// ConversionOrchestrator runs the conversion sagas behind the superadmin routes.
type ConversionOrchestrator interface {
	ConvertAdminToTenant(ctx context.Context, principal *auth.Principal, adminID string, opts conversion.ConvertOptions) (*data.Tenant, error)
	ApproveSchoolInquiry(ctx context.Context, principal *auth.Principal, inquiryID string, req conversion.ApprovalRequest) (*data.School, error)
}

var _ ConversionOrchestrator = (*conversion.Orchestrator)(nil)

type SubscriptionSweeper interface {
	Sweep(ctx context.Context, now time.Time) (*data.SweepResult, error)
}
