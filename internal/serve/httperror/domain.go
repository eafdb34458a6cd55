package httperror

import (
	"context"
	"errors"
	"net/http"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/formfields"
	"github.com/schoolhub/schoolhub-backend/internal/lifecycle"
	"github.com/schoolhub/schoolhub-backend/internal/provisioning"
)

var conflictSentinels = []error{
	data.ErrAdminEmailTaken,
	data.ErrPlanNameTaken,
	data.ErrFormFieldNameTaken,
	data.ErrInquiryEmailTaken,
	data.ErrInquiryDomainTaken,
	data.ErrSchoolDomainTaken,
	data.ErrTenantDomainTaken,
	data.ErrDomainTaken,
	data.ErrRecordAlreadyExists,
}

var badRequestSentinels = []error{
	data.ErrMissingInput,
	data.ErrDefaultFormField,
	data.ErrFormFieldOrder,
	data.ErrPlanInactive,
	data.ErrInvalidPlanReference,
	domainbinding.ErrInvalidSeed,
	formfields.ErrInvalidRules,
}

// FromDomainError maps the errors returned by the domain packages to the HTTP error rendered to the client. Errors it
// does not know are reported as internal errors.
func FromDomainError(ctx context.Context, err error) *HTTPError {
	var hErr *HTTPError
	if errors.As(err, &hErr) {
		return hErr
	}

	var authErr *auth.AuthorizationError
	if errors.As(err, &authErr) {
		if authErr.Unauthenticated() {
			return Unauthorized("", err, nil).WithErrorCode(Code401_0)
		}
		return Forbidden("", err, nil).WithErrorCode(Code403_0)
	}

	var stepErr *conversion.StepError
	if errors.As(err, &stepErr) {
		return fromStepError(ctx, stepErr)
	}

	var invalidStateErr *conversion.InvalidStateError
	if errors.As(err, &invalidStateErr) {
		return Conflict(invalidStateErr.Error(), err, nil).WithErrorCode(Code409_0)
	}

	var fieldErrs formfields.FieldErrors
	if errors.As(err, &fieldErrs) {
		extras := make(map[string]interface{}, len(fieldErrs))
		for name, msg := range fieldErrs {
			extras[name] = msg
		}
		return BadRequest("The form data is invalid.", err, extras).WithErrorCode(Code400_1)
	}

	switch {
	case errors.Is(err, data.ErrRecordNotFound):
		return NotFound("", err, nil).WithErrorCode(Code404_0)
	case errors.Is(err, data.ErrConversionInProgress):
		return Conflict("A conversion is already in progress.", err, nil).WithErrorCode(Code409_1)
	case errors.Is(err, data.ErrPlanInUse):
		return Conflict("The subscription plan is still used by a school.", err, nil).WithErrorCode(Code409_5)
	case errors.Is(err, data.ErrInvalidTransition), errors.Is(err, data.ErrInquiryStatusConflict):
		return Conflict(err.Error(), err, nil).WithErrorCode(Code409_6)
	case errors.Is(err, lifecycle.ErrSweepInProgress):
		return Conflict("A subscription sweep is already running.", err, nil).WithErrorCode(Code409_7)
	}
	for _, sentinel := range conflictSentinels {
		if errors.Is(err, sentinel) {
			return Conflict(sentinel.Error(), err, nil).WithErrorCode(Code409_4)
		}
	}
	for _, sentinel := range badRequestSentinels {
		if errors.Is(err, sentinel) {
			return BadRequest(err.Error(), err, nil).WithErrorCode(Code400_0)
		}
	}

	return InternalError(ctx, "", err, nil).WithErrorCode(Code500_0)
}

// fromStepError renders a failed conversion. The message is the one written on the audit row, the cause only
// decides the status code.
func fromStepError(ctx context.Context, stepErr *conversion.StepError) *HTTPError {
	extras := map[string]interface{}{
		"conversion_id": stepErr.ConversionID,
		"step":          string(stepErr.Step),
	}

	var (
		invalidStateErr *conversion.InvalidStateError
		exhaustedErr    *domainbinding.AllocationExhaustedError
		conflictErr     *provisioning.ProvisioningConflictError
		migrationErr    *provisioning.MigrationFailedError
		seedErr         *provisioning.SeedFailedError
	)
	switch {
	case errors.As(stepErr, &invalidStateErr):
		return NewHTTPError(http.StatusConflict, stepErr.Message, stepErr, extras).WithErrorCode(Code409_0)
	case errors.As(stepErr, &exhaustedErr):
		return NewHTTPError(http.StatusConflict, stepErr.Message, stepErr, extras).WithErrorCode(Code409_2)
	case errors.As(stepErr, &conflictErr):
		return NewHTTPError(http.StatusConflict, stepErr.Message, stepErr, extras).WithErrorCode(Code409_3)
	case errors.As(stepErr, &migrationErr):
		return InternalError(ctx, stepErr.Message, stepErr, extras).WithErrorCode(Code500_1)
	case errors.As(stepErr, &seedErr):
		return InternalError(ctx, stepErr.Message, stepErr, extras).WithErrorCode(Code500_2)
	default:
		return InternalError(ctx, stepErr.Message, stepErr, extras).WithErrorCode(Code500_3)
	}
}
