package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/formfields"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
)

type FormFieldsHandler struct {
	Registry *formfields.Registry
}

// GetActiveFormFields is the public schema of the inquiry form.
func (h FormFieldsHandler) GetActiveFormFields(rw http.ResponseWriter, req *http.Request) {
	h.renderFields(rw, req, true)
}

func (h FormFieldsHandler) GetAllFormFields(rw http.ResponseWriter, req *http.Request) {
	h.renderFields(rw, req, false)
}

func (h FormFieldsHandler) renderFields(rw http.ResponseWriter, req *http.Request, activeOnly bool) {
	ctx := req.Context()

	fields, err := h.Registry.Fields(ctx, activeOnly)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve form fields", err, nil).Render(rw)
		return
	}

	httpjson.Render(rw, fields, httpjson.JSON)
}

func (h FormFieldsHandler) PostFormField(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.CreateFormFieldRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewFormFieldValidator()
	fieldInsert := validator.ValidateCreate(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	field, err := h.Registry.Create(ctx, fieldInsert)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusCreated, field, httpjson.JSON)
}

func (h FormFieldsHandler) PatchFormField(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.UpdateFormFieldRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewFormFieldValidator()
	fieldUpdate := validator.ValidateUpdate(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	field, err := h.Registry.Update(ctx, chi.URLParam(req, "id"), fieldUpdate)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.Render(rw, field, httpjson.JSON)
}

func (h FormFieldsHandler) DeleteFormField(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if err := h.Registry.Delete(ctx, chi.URLParam(req, "id")); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusNoContent, nil, httpjson.JSON)
}

// PutFormFieldsOrder rewrites the display order. The body must list every field.
func (h FormFieldsHandler) PutFormFieldsOrder(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.ReorderFormFieldsRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewFormFieldValidator()
	validator.ValidateReorder(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	if err := h.Registry.Reorder(ctx, reqBody.IDs); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	fields, err := h.Registry.Fields(ctx, false)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve form fields", err, nil).Render(rw)
		return
	}
	httpjson.Render(rw, fields, httpjson.JSON)
}
