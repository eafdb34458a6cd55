package httphandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
	"github.com/schoolhub/schoolhub-backend/internal/utils"
)

type PlansHandler struct {
	Models *data.Models
}

// GetPlans lists the plans. ?active=true hides the ones that cannot be assigned.
func (h PlansHandler) GetPlans(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	activeOnly, err := utils.ParseBoolQueryParam(req, "active")
	if err != nil {
		extras := map[string]interface{}{"active": "invalid 'active' parameter value"}
		httperror.BadRequest("Request invalid", err, extras).WithErrorCode(httperror.Code400_2).Render(rw)
		return
	}

	plans, err := h.Models.Plans.List(ctx, activeOnly != nil && *activeOnly)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve subscription plans", err, nil).Render(rw)
		return
	}

	httpjson.Render(rw, plans, httpjson.JSON)
}

func (h PlansHandler) PostPlan(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.CreatePlanRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewPlanValidator()
	planInsert := validator.ValidateCreate(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	plan, err := h.Models.Plans.Insert(ctx, planInsert)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusCreated, plan, httpjson.JSON)
}

// DeletePlan tombstones a plan no live school references.
func (h PlansHandler) DeletePlan(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	if err := h.Models.Plans.SoftDelete(ctx, h.Models.Schools, chi.URLParam(req, "id")); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusNoContent, nil, httpjson.JSON)
}
