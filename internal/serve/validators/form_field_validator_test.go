package validators

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

func Test_FormFieldValidator_ValidateCreate(t *testing.T) {
	testCases := []struct {
		name           string
		req            *CreateFormFieldRequest
		expectedErrors map[string]interface{}
	}{
		{
			name: "valid select field",
			req: &CreateFormFieldRequest{
				Name: "school_type", Label: "School type", FieldType: data.FieldTypeSelect,
				ValidationRules: data.ValidationRules{Options: []string{"public", "private"}},
			},
			expectedErrors: map[string]interface{}{},
		},
		{
			name:           "invalid name and missing label",
			req:            &CreateFormFieldRequest{Name: "School Type", FieldType: data.FieldTypeText},
			expectedErrors: map[string]interface{}{"name": "name must be snake_case, start with a letter and have at most 63 characters", "label": "label is required"},
		},
		{
			name:           "unknown type",
			req:            &CreateFormFieldRequest{Name: "motto", Label: "Motto", FieldType: "color"},
			expectedErrors: map[string]interface{}{"field_type": "invalid field type: color"},
		},
		{
			name:           "rules that do not fit the type",
			req:            &CreateFormFieldRequest{Name: "school_type", Label: "School type", FieldType: data.FieldTypeSelect},
			expectedErrors: map[string]interface{}{"validation_rules": "invalid validation rules: select fields need options"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fv := NewFormFieldValidator()
			fv.ValidateCreate(tc.req)
			assert.Equal(t, tc.expectedErrors, fv.Errors)
		})
	}
}

func Test_FormFieldValidator_ValidateUpdate(t *testing.T) {
	fv := NewFormFieldValidator()
	fv.ValidateUpdate(&UpdateFormFieldRequest{})
	assert.Equal(t, map[string]interface{}{"body": "request body is empty"}, fv.Errors)

	fv = NewFormFieldValidator()
	blank := "  "
	fv.ValidateUpdate(&UpdateFormFieldRequest{Label: &blank})
	assert.Equal(t, map[string]interface{}{"label": "label cannot be set to empty"}, fv.Errors)

	fv = NewFormFieldValidator()
	label, active := " Motto ", false
	update := fv.ValidateUpdate(&UpdateFormFieldRequest{Label: &label, IsActive: &active})
	assert.Empty(t, fv.Errors)
	assert.Equal(t, "Motto", *update.Label)
	assert.False(t, *update.IsActive)
}

func Test_FormFieldValidator_ValidateReorder(t *testing.T) {
	fv := NewFormFieldValidator()
	fv.ValidateReorder(&ReorderFormFieldsRequest{})
	assert.Equal(t, map[string]interface{}{"ids": "ids must list every form field"}, fv.Errors)

	fv = NewFormFieldValidator()
	fv.ValidateReorder(&ReorderFormFieldsRequest{IDs: []string{"ff-1", "ff-2", "ff-1"}})
	assert.Equal(t, map[string]interface{}{"ids": "ids must be unique and not empty"}, fv.Errors)

	fv = NewFormFieldValidator()
	fv.ValidateReorder(&ReorderFormFieldsRequest{IDs: []string{"ff-2", "ff-1"}})
	assert.Empty(t, fv.Errors)
}
