package conversion

import (
	"errors"
	"fmt"

	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// InvalidStateError is returned when the admin or inquiry is not in a status the operation can start from. It is
// never retried.
type InvalidStateError struct {
	Entity string
	ID     string
	Status string
}

func (e *InvalidStateError) Error() string {
	if e.Status == "" {
		return fmt.Sprintf("%s %s cannot be converted", e.Entity, e.ID)
	}
	return fmt.Sprintf("%s %s cannot be converted from status %q", e.Entity, e.ID, e.Status)
}

// StepError reports the saga step that failed together with the message written on the audit row.
type StepError struct {
	ConversionID string
	Step         Step
	Message      string
	Err          error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("conversion %s failed at %s: %s", e.ConversionID, e.Step, e.Message)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

type Step string

const (
	StepReserve   Step = "reserve"
	StepAllocate  Step = "allocate"
	StepProvision Step = "provision"
	StepBind      Step = "bind"
	StepFinalize  Step = "finalize"
)

// invalidStateFrom maps the catalog sentinels that mean "not eligible" to an InvalidStateError.
func invalidStateFrom(err error, entity, id, status string) error {
	switch {
	case errors.Is(err, data.ErrAlreadyConverted),
		errors.Is(err, data.ErrAdminNotConvertible),
		errors.Is(err, data.ErrAdminTenantAlreadySet),
		errors.Is(err, data.ErrInquiryNotConvertible):
		return &InvalidStateError{Entity: entity, ID: id, Status: status}
	default:
		return nil
	}
}
