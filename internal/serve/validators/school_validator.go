package validators

import (
	"strings"

	"github.com/schoolhub/schoolhub-backend/internal/conversion"
)

const maxSubscriptionMonths = 120

type ApproveSchoolRequest struct {
	InquiryID  string `json:"inquiry_id"`
	PlanID     string `json:"plan_id"`
	Months     int    `json:"months"`
	DomainHint string `json:"domain_hint"`
}

type RenewSubscriptionRequest struct {
	// PlanID switches the school to another plan. Empty keeps the current one.
	PlanID string `json:"plan_id"`
	Months int    `json:"months"`
}

type SchoolValidator struct {
	*Validator
}

func NewSchoolValidator() *SchoolValidator {
	return &SchoolValidator{Validator: NewValidator()}
}

// ValidateApproval returns the orchestrator request of a valid approval.
func (sv *SchoolValidator) ValidateApproval(req *ApproveSchoolRequest) conversion.ApprovalRequest {
	sv.Check(req != nil, "body", "request body is empty")
	if sv.HasErrors() {
		return conversion.ApprovalRequest{}
	}

	req.InquiryID = strings.TrimSpace(req.InquiryID)
	req.PlanID = strings.TrimSpace(req.PlanID)
	req.DomainHint = strings.TrimSpace(req.DomainHint)

	sv.Check(req.InquiryID != "", "inquiry_id", "inquiry_id is required")
	sv.Check(req.PlanID != "", "plan_id", "plan_id is required")
	sv.Check(req.Months >= 0 && req.Months <= maxSubscriptionMonths, "months", "months must be between 0 and 120")

	return conversion.ApprovalRequest{PlanID: req.PlanID, Months: req.Months, DomainHint: req.DomainHint}
}

func (sv *SchoolValidator) ValidateRenewal(req *RenewSubscriptionRequest) {
	sv.Check(req != nil, "body", "request body is empty")
	if sv.HasErrors() {
		return
	}

	req.PlanID = strings.TrimSpace(req.PlanID)
	sv.Check(req.Months >= 1 && req.Months <= maxSubscriptionMonths, "months", "months must be between 1 and 120")
}
