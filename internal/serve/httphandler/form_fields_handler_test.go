package httphandler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
)

func newFormFieldsHandler(t *testing.T) (FormFieldsHandler, *formfields.MockStore) {
	t.Helper()

	store := &formfields.MockStore{}
	t.Cleanup(func() { store.AssertExpectations(t) })
	registry, err := formfields.NewRegistry(store, time.Minute)
	require.NoError(t, err)

	return FormFieldsHandler{Registry: registry}, store
}

func Test_FormFieldsHandler_GetActiveFormFields(t *testing.T) {
	handler, store := newFormFieldsHandler(t)
	store.On("List", mock.Anything, true).Return(defaultFormFields(), nil).Once()

	// The second request is served from the cache.
	for i := 0; i < 2; i++ {
		rr := serveRequest(t, http.MethodGet, "/form-fields", "/form-fields", "", nil, handler.GetActiveFormFields)

		require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
		var fields []data.FormField
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &fields))
		assert.Len(t, fields, 4)
	}
}

func Test_FormFieldsHandler_PostFormField(t *testing.T) {
	t.Run("invalid body", func(t *testing.T) {
		handler, _ := newFormFieldsHandler(t)

		body := `{"name": "Mascot Name", "label": "", "field_type": "text", "validation_rules": {"options": ["owl"]}}`
		rr := serveRequest(t, http.MethodPost, "/form-fields", "/form-fields", body, testSuperadmin, handler.PostFormField)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		var httpErr struct {
			Extras map[string]string `json:"extras"`
		}
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &httpErr))
		assert.Contains(t, httpErr.Extras, "name")
		assert.Contains(t, httpErr.Extras, "label")
		assert.Contains(t, httpErr.Extras, "validation_rules")
	})

	t.Run("🎉 creates the field", func(t *testing.T) {
		handler, store := newFormFieldsHandler(t)
		insert := data.FormFieldInsert{
			Name:            "student_count",
			Label:           "Number of students",
			FieldType:       data.FieldTypeNumber,
			IsRequired:      true,
			ValidationRules: data.ValidationRules{},
		}
		store.On("Insert", mock.Anything, insert).
			Return(&data.FormField{ID: "f5", Name: "student_count", Label: "Number of students", FieldType: data.FieldTypeNumber, IsRequired: true, IsActive: true}, nil).
			Once()

		body := `{"name": "student_count", "label": " Number of students ", "field_type": "number", "is_required": true}`
		rr := serveRequest(t, http.MethodPost, "/form-fields", "/form-fields", body, testSuperadmin, handler.PostFormField)

		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
		assert.Contains(t, rr.Body.String(), `"id":"f5"`)
	})
}

func Test_FormFieldsHandler_PatchFormField(t *testing.T) {
	handler, store := newFormFieldsHandler(t)
	store.On("List", mock.Anything, false).Return(defaultFormFields(), nil).Once()

	body := `{"field_type": "select"}`
	rr := serveRequest(t, http.MethodPatch, "/form-fields/{id}", "/form-fields/f1", body, testSuperadmin, handler.PatchFormField)

	// school_name has no options to pick from.
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{
		"error": "invalid validation rules: select fields need options",
		"error_code": "400_0"
	}`, rr.Body.String())
}

func Test_FormFieldsHandler_DeleteFormField(t *testing.T) {
	t.Run("default fields are kept", func(t *testing.T) {
		handler, store := newFormFieldsHandler(t)
		store.On("Delete", mock.Anything, "f1").Return(data.ErrDefaultFormField).Once()

		rr := serveRequest(t, http.MethodDelete, "/form-fields/{id}", "/form-fields/f1", "", testSuperadmin, handler.DeleteFormField)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.JSONEq(t, `{"error": "default form fields cannot be deleted", "error_code": "400_0"}`, rr.Body.String())
	})

	t.Run("🎉 deletes", func(t *testing.T) {
		handler, store := newFormFieldsHandler(t)
		store.On("Delete", mock.Anything, "f5").Return(nil).Once()

		rr := serveRequest(t, http.MethodDelete, "/form-fields/{id}", "/form-fields/f5", "", testSuperadmin, handler.DeleteFormField)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func Test_FormFieldsHandler_PutFormFieldsOrder(t *testing.T) {
	t.Run("duplicated ids", func(t *testing.T) {
		handler, _ := newFormFieldsHandler(t)

		rr := serveRequest(t, http.MethodPut, "/form-fields/order", "/form-fields/order", `{"ids": ["f1", "f1"]}`, testSuperadmin, handler.PutFormFieldsOrder)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "ids must be unique and not empty")
	})

	t.Run("🎉 reorders", func(t *testing.T) {
		handler, store := newFormFieldsHandler(t)
		ids := []string{"f4", "f3", "f2", "f1"}
		store.On("Reorder", mock.Anything, ids).Return(nil).Once()
		store.On("List", mock.Anything, false).Return(defaultFormFields(), nil).Once()

		rr := serveRequest(t, http.MethodPut, "/form-fields/order", "/form-fields/order", `{"ids": ["f4", "f3", "f2", "f1"]}`, testSuperadmin, handler.PutFormFieldsOrder)

		assert.Equal(t, http.StatusOK, rr.Code)
	})
}
