package validators

import (
	"strings"
	"unicode/utf8"

	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

const minPasswordLength = 12

type CreateAdminRequest struct {
	Name       string `json:"name"`
	Email      string `json:"email"`
	Password   string `json:"password"`
	SchoolName string `json:"school_name"`
}

type ConvertAdminRequest struct {
	DomainHint string `json:"domain_hint"`
}

type AdminValidator struct {
	*Validator
}

func NewAdminValidator() *AdminValidator {
	return &AdminValidator{Validator: NewValidator()}
}

func (av *AdminValidator) ValidateCreate(req *CreateAdminRequest) {
	av.Check(req != nil, "body", "request body is empty")
	if av.HasErrors() {
		return
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.SchoolName = strings.TrimSpace(req.SchoolName)

	av.Check(req.Name != "", "name", "name is required")
	av.CheckError(utils.ValidateEmail(req.Email), "email", "email must be a valid email")
	av.Check(utf8.RuneCountInString(req.Password) >= minPasswordLength, "password", "password must have at least 12 characters")
	av.CheckMaxLength(req.SchoolName, "school_name", maxSchoolNameLength)
}
