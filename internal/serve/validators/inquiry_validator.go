package validators

import (
	"strings"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

const (
	maxSchoolNameLength  = 255
	maxReviewNotesLength = 2000
)

// InquirySubmissionRequest is the body of the public intake form. FormData holds the registry-defined fields.
type InquirySubmissionRequest struct {
	SchoolName     string                 `json:"school_name"`
	SchoolEmail    string                 `json:"school_email"`
	ProposedDomain string                 `json:"proposed_domain"`
	FormData       map[string]interface{} `json:"form_data"`
}

type InquiryStatusRequest struct {
	Status data.InquiryStatus `json:"status"`
	Notes  string             `json:"notes"`
}

type InquiryValidator struct {
	*Validator
}

func NewInquiryValidator() *InquiryValidator {
	return &InquiryValidator{Validator: NewValidator()}
}

// ValidateSubmission checks the fixed columns of a submission and normalizes them in place.
func (iv *InquiryValidator) ValidateSubmission(req *InquirySubmissionRequest) {
	iv.Check(req != nil, "body", "request body is empty")
	if iv.HasErrors() {
		return
	}

	req.SchoolName = strings.TrimSpace(req.SchoolName)
	req.SchoolEmail = strings.ToLower(strings.TrimSpace(req.SchoolEmail))
	req.ProposedDomain = strings.ToLower(strings.TrimSpace(req.ProposedDomain))

	iv.Check(req.SchoolName != "", "school_name", "school_name is required")
	iv.CheckMaxLength(req.SchoolName, "school_name", maxSchoolNameLength)
	iv.CheckError(utils.ValidateEmail(req.SchoolEmail), "school_email", "school_email must be a valid email")

	if req.ProposedDomain != "" {
		slug, err := domainbinding.Slugify(req.ProposedDomain)
		iv.Check(err == nil && slug == req.ProposedDomain, "proposed_domain", "proposed_domain must only contain lowercase letters, digits and dashes")
	}
	if req.FormData == nil {
		req.FormData = map[string]interface{}{}
	}
}

// ValidateStatusUpdate checks a manual review transition. Registration only happens through a school approval.
func (iv *InquiryValidator) ValidateStatusUpdate(req *InquiryStatusRequest) {
	iv.Check(req != nil, "body", "request body is empty")
	if iv.HasErrors() {
		return
	}

	req.Status = data.InquiryStatus(strings.ToLower(strings.TrimSpace(string(req.Status))))
	req.Notes = strings.TrimSpace(req.Notes)

	iv.CheckError(req.Status.Validate(), "status", "")
	iv.Check(req.Status != data.InquiryStatusRegistered, "status", "inquiries are registered by approving a school")
	iv.CheckMaxLength(req.Notes, "notes", maxReviewNotesLength)
}
