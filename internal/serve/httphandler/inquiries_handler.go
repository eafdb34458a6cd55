package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httpresponse"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
)

type InquiriesHandler struct {
	Models     *data.Models
	FormFields *formfields.Registry
}

// PostInquiry stores a public intake submission. The fixed columns are checked first, then every value, fixed ones
// included, is checked against the active form fields.
func (h InquiriesHandler) PostInquiry(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.InquirySubmissionRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewInquiryValidator()
	validator.ValidateSubmission(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	values := make(map[string]any, len(reqBody.FormData)+3)
	for name, value := range reqBody.FormData {
		values[name] = value
	}
	values["school_name"] = reqBody.SchoolName
	values["school_email"] = reqBody.SchoolEmail
	if reqBody.ProposedDomain != "" {
		values["proposed_domain"] = reqBody.ProposedDomain
	}

	formData, err := h.FormFields.ValidateSubmission(ctx, values)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	inquiry, err := h.Models.Inquiries.Insert(ctx, data.SchoolInquiryInsert{
		SchoolName:     reqBody.SchoolName,
		SchoolEmail:    reqBody.SchoolEmail,
		ProposedDomain: reqBody.ProposedDomain,
		FormData:       formData,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	log.Ctx(ctx).Infof("school inquiry %s submitted", inquiry.ID)
	httpjson.RenderStatus(rw, http.StatusCreated, inquiry, httpjson.JSON)
}

func (h InquiriesHandler) GetInquiries(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	validator := validators.QueryValidator{
		Validator:         validators.NewValidator(),
		DefaultSortField:  data.SortFieldSubmittedAt,
		DefaultSortOrder:  data.SortOrderDESC,
		AllowedSortFields: []data.SortField{data.SortFieldSubmittedAt, data.SortFieldName, data.SortFieldCreatedAt},
		AllowedFilters: map[data.FilterKey]validators.FilterParser{
			data.FilterKeyStatus: validators.InquiryStatusFilter,
			data.FilterKeySearch: nil,
		},
	}
	queryParams := validator.ParseParametersFromRequest(req)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).WithErrorCode(httperror.Code400_2).Render(rw)
		return
	}

	total, err := h.Models.Inquiries.Count(ctx, *queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot count school inquiries", err, nil).Render(rw)
		return
	}

	if total == 0 {
		httpjson.Render(rw, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
		return
	}

	inquiries, err := h.Models.Inquiries.List(ctx, *queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve school inquiries", err, nil).Render(rw)
		return
	}

	response, err := httpresponse.NewPaginatedResponse(req, inquiries, *queryParams, total)
	if err != nil {
		httperror.InternalError(ctx, "Cannot write paginated response", err, nil).Render(rw)
		return
	}
	httpjson.Render(rw, response, httpjson.JSON)
}

type InquiryDetails struct {
	*data.SchoolInquiry
	Conversions []data.InquiryConversion `json:"conversions"`
}

func (h InquiriesHandler) GetInquiry(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	inquiryID := chi.URLParam(req, "id")

	inquiry, err := h.Models.Inquiries.Get(ctx, h.Models.DBConnectionPool, inquiryID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	conversions, err := h.Models.InquiryConversions.ListByInquiry(ctx, inquiryID)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve inquiry conversions", err, nil).Render(rw)
		return
	}

	httpjson.Render(rw, InquiryDetails{SchoolInquiry: inquiry, Conversions: conversions}, httpjson.JSON)
}

// PatchInquiryStatus applies a review transition on behalf of the calling superadmin.
func (h InquiriesHandler) PatchInquiryStatus(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	principal, err := auth.GetPrincipalFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).WithErrorCode(httperror.Code401_0).Render(rw)
		return
	}

	var reqBody *validators.InquiryStatusRequest
	if err = httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewInquiryValidator()
	validator.ValidateStatusUpdate(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	inquiry, err := h.Models.Inquiries.Review(ctx, chi.URLParam(req, "id"), reqBody.Status, principal.ID, reqBody.Notes)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.Render(rw, inquiry, httpjson.JSON)
}
