package httphandler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httpresponse"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
)

type SchoolsHandler struct {
	Models       *data.Models
	Orchestrator ConversionOrchestrator
	GracePeriod  time.Duration
}

// SchoolResponse is a school with its subscription flags computed at read time. InGracePeriod shadows the cached
// column of the same name.
type SchoolResponse struct {
	*data.School
	OperatingState lifecycle.OperatingState `json:"operating_state"`
	IsExpired      bool                     `json:"is_expired"`
	InGracePeriod  bool                     `json:"in_grace_period"`
}

func NewSchoolResponse(school *data.School, now time.Time) SchoolResponse {
	evaluation := lifecycle.Evaluate(school, now)
	return SchoolResponse{
		School:         school,
		OperatingState: evaluation.OperatingState,
		IsExpired:      evaluation.IsExpired,
		InGracePeriod:  evaluation.InGracePeriod,
	}
}

// PostSchool approves a school inquiry and provisions the school.
func (h SchoolsHandler) PostSchool(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	principal, err := auth.GetPrincipalFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).WithErrorCode(httperror.Code401_0).Render(rw)
		return
	}

	var reqBody *validators.ApproveSchoolRequest
	if err = httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewSchoolValidator()
	approval := validator.ValidateApproval(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	school, err := h.Orchestrator.ApproveSchoolInquiry(ctx, principal, reqBody.InquiryID, approval)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusCreated, NewSchoolResponse(school, time.Now()), httpjson.JSON)
}

func (h SchoolsHandler) GetSchools(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	validator := validators.QueryValidator{
		Validator:         validators.NewValidator(),
		DefaultSortField:  data.SortFieldCreatedAt,
		DefaultSortOrder:  data.SortOrderDESC,
		AllowedSortFields: []data.SortField{data.SortFieldName, data.SortFieldCreatedAt, data.SortFieldEndDate},
		AllowedFilters: map[data.FilterKey]validators.FilterParser{
			data.FilterKeyStatus: validators.SchoolStatusFilter,
			data.FilterKeyPlanID: validators.UUIDFilter,
			data.FilterKeySearch: nil,
		},
	}
	queryParams := validator.ParseParametersFromRequest(req)
	if validator.HasErrors() {
		httperror.BadRequest("Request invalid", nil, validator.Errors).WithErrorCode(httperror.Code400_2).Render(rw)
		return
	}

	total, err := h.Models.Schools.Count(ctx, *queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot count schools", err, nil).Render(rw)
		return
	}
	if total == 0 {
		httpjson.Render(rw, httpresponse.NewEmptyPaginatedResponse(), httpjson.JSON)
		return
	}

	schools, err := h.Models.Schools.List(ctx, *queryParams)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve schools", err, nil).Render(rw)
		return
	}

	now := time.Now()
	responses := make([]SchoolResponse, 0, len(schools))
	for i := range schools {
		responses = append(responses, NewSchoolResponse(&schools[i], now))
	}

	response, err := httpresponse.NewPaginatedResponse(req, responses, *queryParams, total)
	if err != nil {
		httperror.InternalError(ctx, "Cannot write paginated response", err, nil).Render(rw)
		return
	}
	httpjson.Render(rw, response, httpjson.JSON)
}

func (h SchoolsHandler) GetSchool(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	school, err := h.Models.Schools.Get(ctx, chi.URLParam(req, "id"))
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.Render(rw, NewSchoolResponse(school, time.Now()), httpjson.JSON)
}

func (h SchoolsHandler) SuspendSchool(rw http.ResponseWriter, req *http.Request) {
	h.updateStatus(rw, req, data.SchoolStatusSuspended)
}

// ActivateSchool reactivates a school. An expired subscription is activated as asked and suspended again by the next
// sweep.
func (h SchoolsHandler) ActivateSchool(rw http.ResponseWriter, req *http.Request) {
	h.updateStatus(rw, req, data.SchoolStatusActive)
}

func (h SchoolsHandler) updateStatus(rw http.ResponseWriter, req *http.Request, status data.SchoolStatus) {
	ctx := req.Context()
	schoolID := chi.URLParam(req, "id")
	now := time.Now()

	school, err := h.Models.Schools.UpdateStatus(ctx, schoolID, status)
	if errors.Is(err, data.ErrSchoolTerminated) {
		httperror.Conflict("Terminated schools cannot change status.", err, nil).WithErrorCode(httperror.Code409_6).Render(rw)
		return
	}
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}
	if status == data.SchoolStatusActive && lifecycle.Evaluate(school, now).IsExpired {
		log.Ctx(ctx).Warnf("school %s was activated with an expired subscription, the next sweep suspends it again", schoolID)
	}

	log.Ctx(ctx).Infof("school %s is now %s", schoolID, status)
	httpjson.Render(rw, NewSchoolResponse(school, now), httpjson.JSON)
}

// PatchSubscription extends the subscription by the requested number of months, counting from the current end when
// it is still in the future.
func (h SchoolsHandler) PatchSubscription(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	schoolID := chi.URLParam(req, "id")

	var reqBody *validators.RenewSubscriptionRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewSchoolValidator()
	validator.ValidateRenewal(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	school, err := h.Models.Schools.Get(ctx, schoolID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	if reqBody.PlanID != "" {
		if _, err = h.Models.Plans.GetActive(ctx, reqBody.PlanID); err != nil {
			if errors.Is(err, data.ErrRecordNotFound) {
				err = fmt.Errorf("plan %s: %w", reqBody.PlanID, data.ErrInvalidPlanReference)
			}
			httperror.FromDomainError(ctx, err).Render(rw)
			return
		}
	}

	now := time.Now()
	end, graceEnd := renewalWindow(school, now, reqBody.Months, h.GracePeriod)

	school, err = h.Models.Schools.RenewSubscription(ctx, schoolID, reqBody.PlanID, end, graceEnd)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	log.Ctx(ctx).Infof("school %s subscription renewed until %s", schoolID, end.Format(time.RFC3339))
	httpjson.Render(rw, NewSchoolResponse(school, now), httpjson.JSON)
}

func renewalWindow(school *data.School, now time.Time, months int, gracePeriod time.Duration) (end, graceEnd time.Time) {
	base := now
	if school.SubscriptionEndDate != nil && school.SubscriptionEndDate.After(now) {
		base = *school.SubscriptionEndDate
	}
	end = base.AddDate(0, months, 0)
	return end, end.Add(gracePeriod)
}

// DeleteSchool tombstones a school that no longer operates. The tenant schema is kept.
func (h SchoolsHandler) DeleteSchool(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	schoolID := chi.URLParam(req, "id")

	school, err := h.Models.Schools.Get(ctx, schoolID)
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}
	if school.Status != data.SchoolStatusTerminated && school.Status != data.SchoolStatusSuspended {
		err = fmt.Errorf("school %s is %s: %w", schoolID, school.Status, data.ErrInvalidTransition)
		httperror.Conflict("Only suspended or terminated schools can be deleted.", err, nil).WithErrorCode(httperror.Code409_6).Render(rw)
		return
	}

	if err = h.Models.Schools.SoftDelete(ctx, schoolID); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	log.Ctx(ctx).Infof("school %s deleted", schoolID)
	httpjson.RenderStatus(rw, http.StatusNoContent, nil, httpjson.JSON)
}
