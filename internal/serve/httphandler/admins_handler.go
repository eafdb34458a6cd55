package httphandler

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/stellar/go-stellar-sdk/support/http/httpdecode"
	"github.com/stellar/go-stellar-sdk/support/log"
	"github.com/stellar/go-stellar-sdk/support/render/httpjson"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/serve/httperror"
	"github.com/schoolhub/schoolhub-backend/internal/serve/validators"
)

type AdminsHandler struct {
	Models       *data.Models
	Orchestrator ConversionOrchestrator
}

type AdminDetails struct {
	*data.Admin
	Tenant *data.Tenant `json:"tenant,omitempty"`
}

func (h AdminsHandler) PostAdmin(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	var reqBody *validators.CreateAdminRequest
	if err := httpdecode.DecodeJSON(req, &reqBody); err != nil {
		httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	validator := validators.NewAdminValidator()
	validator.ValidateCreate(reqBody)
	if validator.HasErrors() {
		httperror.BadRequest("", nil, validator.Errors).WithErrorCode(httperror.Code400_0).Render(rw)
		return
	}

	admin, err := h.Models.Admins.Insert(ctx, data.AdminInsert{
		Name:       reqBody.Name,
		Email:      reqBody.Email,
		Password:   reqBody.Password,
		SchoolName: reqBody.SchoolName,
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	log.Ctx(ctx).Infof("admin %s created", admin.ID)
	httpjson.RenderStatus(rw, http.StatusCreated, admin, httpjson.JSON)
}

// GetAdmin returns the admin along with the tenant it owns, if converted.
func (h AdminsHandler) GetAdmin(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	admin, err := h.Models.Admins.Get(ctx, h.Models.DBConnectionPool, chi.URLParam(req, "id"))
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	details := AdminDetails{Admin: admin}
	if admin.TenantID != nil {
		if details.Tenant, err = h.Models.Tenants.Get(ctx, *admin.TenantID); err != nil {
			httperror.InternalError(ctx, "Cannot retrieve the admin tenant", err, nil).Render(rw)
			return
		}
	}

	httpjson.Render(rw, details, httpjson.JSON)
}

// ConvertAdmin turns the admin into the owner of a freshly provisioned tenant.
func (h AdminsHandler) ConvertAdmin(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()

	principal, err := auth.GetPrincipalFromContext(ctx)
	if err != nil {
		httperror.Unauthorized("", err, nil).WithErrorCode(httperror.Code401_0).Render(rw)
		return
	}

	// The body is optional.
	var reqBody validators.ConvertAdminRequest
	if req.ContentLength != 0 {
		if err = httpdecode.DecodeJSON(req, &reqBody); err != nil {
			httperror.BadRequest("", err, nil).WithErrorCode(httperror.Code400_0).Render(rw)
			return
		}
	}

	tenant, err := h.Orchestrator.ConvertAdminToTenant(ctx, principal, chi.URLParam(req, "id"), conversion.ConvertOptions{
		DomainHint: strings.TrimSpace(reqBody.DomainHint),
	})
	if err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	httpjson.RenderStatus(rw, http.StatusCreated, tenant, httpjson.JSON)
}

func (h AdminsHandler) GetAdminConversions(rw http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	adminID := chi.URLParam(req, "id")

	if _, err := h.Models.Admins.Get(ctx, h.Models.DBConnectionPool, adminID); err != nil {
		httperror.FromDomainError(ctx, err).Render(rw)
		return
	}

	conversions, err := h.Models.AdminConversions.ListByAdmin(ctx, adminID)
	if err != nil {
		httperror.InternalError(ctx, "Cannot retrieve admin conversions", err, nil).Render(rw)
		return
	}

	httpjson.Render(rw, conversions, httpjson.JSON)
}
