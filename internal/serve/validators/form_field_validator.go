package validators

import (
	"regexp"
	"strings"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
)

var rxFormFieldName = regexp.MustCompile(`^[a-z][a-z0-9_]{0,62}$`)

type CreateFormFieldRequest struct {
	Name            string               `json:"name"`
	Label           string               `json:"label"`
	FieldType       data.FieldType       `json:"field_type"`
	IsRequired      bool                 `json:"is_required"`
	ValidationRules data.ValidationRules `json:"validation_rules"`
}

type UpdateFormFieldRequest struct {
	Label           *string               `json:"label"`
	FieldType       *data.FieldType       `json:"field_type"`
	IsRequired      *bool                 `json:"is_required"`
	IsActive        *bool                 `json:"is_active"`
	ValidationRules *data.ValidationRules `json:"validation_rules"`
}

type ReorderFormFieldsRequest struct {
	IDs []string `json:"ids"`
}

type FormFieldValidator struct {
	*Validator
}

func NewFormFieldValidator() *FormFieldValidator {
	return &FormFieldValidator{Validator: NewValidator()}
}

func (fv *FormFieldValidator) ValidateCreate(req *CreateFormFieldRequest) data.FormFieldInsert {
	fv.Check(req != nil, "body", "request body is empty")
	if fv.HasErrors() {
		return data.FormFieldInsert{}
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Label = strings.TrimSpace(req.Label)

	fv.Check(rxFormFieldName.MatchString(req.Name), "name", "name must be snake_case, start with a letter and have at most 63 characters")
	fv.Check(req.Label != "", "label", "label is required")
	if err := req.FieldType.Validate(); err != nil {
		fv.CheckError(err, "field_type", "")
	} else {
		fv.CheckError(formfields.ValidateRules(req.FieldType, req.ValidationRules), "validation_rules", "")
	}

	return data.FormFieldInsert{
		Name:            req.Name,
		Label:           req.Label,
		FieldType:       req.FieldType,
		IsRequired:      req.IsRequired,
		ValidationRules: req.ValidationRules,
	}
}

// ValidateUpdate only checks the attributes in isolation. Type and rules are checked together by the registry, since
// either may come from the stored field.
func (fv *FormFieldValidator) ValidateUpdate(req *UpdateFormFieldRequest) data.FormFieldUpdate {
	fv.Check(req != nil && *req != UpdateFormFieldRequest{}, "body", "request body is empty")
	if fv.HasErrors() {
		return data.FormFieldUpdate{}
	}

	if req.Label != nil {
		label := strings.TrimSpace(*req.Label)
		req.Label = &label
		fv.Check(label != "", "label", "label cannot be set to empty")
	}
	if req.FieldType != nil {
		fv.CheckError(req.FieldType.Validate(), "field_type", "")
	}

	return data.FormFieldUpdate{
		Label:           req.Label,
		FieldType:       req.FieldType,
		IsRequired:      req.IsRequired,
		IsActive:        req.IsActive,
		ValidationRules: req.ValidationRules,
	}
}

func (fv *FormFieldValidator) ValidateReorder(req *ReorderFormFieldsRequest) {
	fv.Check(req != nil && len(req.IDs) > 0, "ids", "ids must list every form field")
	if fv.HasErrors() {
		return
	}

	seen := make(map[string]bool, len(req.IDs))
	for _, id := range req.IDs {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			fv.addError("ids", "ids must be unique and not empty")
			return
		}
		seen[id] = true
	}
}
