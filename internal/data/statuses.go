package data

import (
	"fmt"
	"strings"
)

type AdminStatus string

const (
	AdminStatusPending   AdminStatus = "pending"
	AdminStatusActive    AdminStatus = "active"
	AdminStatusSettingUp AdminStatus = "setting_up"
	AdminStatusConverted AdminStatus = "converted"
	AdminStatusSuspended AdminStatus = "suspended"
)

// ConvertibleAdminStatuses are the statuses an admin may be converted from.
func ConvertibleAdminStatuses() []AdminStatus {
	return []AdminStatus{AdminStatusPending, AdminStatusActive, AdminStatusSettingUp}
}

func (status AdminStatus) IsConvertible() bool {
	for _, s := range ConvertibleAdminStatuses() {
		if s == status {
			return true
		}
	}
	return false
}

func (status AdminStatus) Validate() error {
	switch status {
	case AdminStatusPending, AdminStatusActive, AdminStatusSettingUp, AdminStatusConverted, AdminStatusSuspended:
		return nil
	default:
		return fmt.Errorf("invalid admin status: %s", status)
	}
}

type SchoolStatus string

const (
	SchoolStatusActive     SchoolStatus = "active"
	SchoolStatusInactive   SchoolStatus = "inactive"
	SchoolStatusSuspended  SchoolStatus = "suspended"
	SchoolStatusTerminated SchoolStatus = "terminated"
)

func ToSchoolStatus(s string) (SchoolStatus, error) {
	status := SchoolStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case SchoolStatusActive, SchoolStatusInactive, SchoolStatusSuspended, SchoolStatusTerminated:
		return status, nil
	default:
		return "", fmt.Errorf("invalid school status: %s", s)
	}
}

type TenantStatus string

const (
	TenantStatusActive    TenantStatus = "active"
	TenantStatusSuspended TenantStatus = "suspended"
	TenantStatusInactive  TenantStatus = "inactive"
)

// ConversionStatus is the outcome of one conversion attempt. Only initiated rows are ever updated.
type ConversionStatus string

const (
	ConversionStatusInitiated ConversionStatus = "initiated"
	ConversionStatusCompleted ConversionStatus = "completed"
	ConversionStatusFailed    ConversionStatus = "failed"
)

func ConversionStateMachineWithInitialState(initialState ConversionStatus) *StateMachine {
	return NewStateMachine(State(initialState), []StateTransition{
		{From: State(ConversionStatusInitiated), To: State(ConversionStatusCompleted)},
		{From: State(ConversionStatusInitiated), To: State(ConversionStatusFailed)},
	})
}

func (status ConversionStatus) TransitionTo(targetState ConversionStatus) error {
	return ConversionStateMachineWithInitialState(status).TransitionTo(State(targetState))
}

type BillingCycle string

const (
	BillingCycleMonthly   BillingCycle = "monthly"
	BillingCycleQuarterly BillingCycle = "quarterly"
	BillingCycleYearly    BillingCycle = "yearly"
)

func (c BillingCycle) Validate() error {
	switch c {
	case BillingCycleMonthly, BillingCycleQuarterly, BillingCycleYearly:
		return nil
	default:
		return fmt.Errorf("invalid billing cycle: %s", c)
	}
}

// Months is the length of one billing period.
func (c BillingCycle) Months() int {
	switch c {
	case BillingCycleQuarterly:
		return 3
	case BillingCycleYearly:
		return 12
	default:
		return 1
	}
}
