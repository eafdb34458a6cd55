package data

import (
	"fmt"
	"strings"
)

type InquiryStatus string

const (
	InquiryStatusPending     InquiryStatus = "pending"
	InquiryStatusUnderReview InquiryStatus = "under_review"
	InquiryStatusApproved    InquiryStatus = "approved"
	InquiryStatusRejected    InquiryStatus = "rejected"
	InquiryStatusRegistered  InquiryStatus = "registered"
	InquiryStatusArchived    InquiryStatus = "archived"
)

func InquiryStatuses() []InquiryStatus {
	return []InquiryStatus{
		InquiryStatusPending, InquiryStatusUnderReview, InquiryStatusApproved,
		InquiryStatusRejected, InquiryStatusRegistered, InquiryStatusArchived,
	}
}

// InquiryStateMachineWithInitialState returns the review workflow of a school inquiry.
func InquiryStateMachineWithInitialState(initialState InquiryStatus) *StateMachine {
	transitions := []StateTransition{
		{From: InquiryStatusPending.State(), To: InquiryStatusUnderReview.State()},
		{From: InquiryStatusPending.State(), To: InquiryStatusApproved.State()},
		{From: InquiryStatusPending.State(), To: InquiryStatusRejected.State()},
		{From: InquiryStatusPending.State(), To: InquiryStatusArchived.State()},
		{From: InquiryStatusUnderReview.State(), To: InquiryStatusApproved.State()},
		{From: InquiryStatusUnderReview.State(), To: InquiryStatusRejected.State()},
		{From: InquiryStatusApproved.State(), To: InquiryStatusArchived.State()},
		{From: InquiryStatusRejected.State(), To: InquiryStatusArchived.State()},
		// provisioning a school out of the inquiry
		{From: InquiryStatusPending.State(), To: InquiryStatusRegistered.State()},
		{From: InquiryStatusUnderReview.State(), To: InquiryStatusRegistered.State()},
		{From: InquiryStatusApproved.State(), To: InquiryStatusRegistered.State()},
	}
	return NewStateMachine(initialState.State(), transitions)
}

func (status InquiryStatus) TransitionTo(targetState InquiryStatus) error {
	return InquiryStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// SourceStatuses lists the statuses an inquiry can be in to move to status.
func (status InquiryStatus) SourceStatuses() []InquiryStatus {
	sm := InquiryStateMachineWithInitialState(InquiryStatusPending)
	sources := []InquiryStatus{}
	for _, s := range InquiryStatuses() {
		if sm.Transitions[s.State()][status.State()] {
			sources = append(sources, s)
		}
	}
	return sources
}

// IsConvertible reports whether a school can be provisioned from an inquiry in this status.
func (status InquiryStatus) IsConvertible() bool {
	return InquiryStateMachineWithInitialState(status).CanTransitionTo(InquiryStatusRegistered.State())
}

func (status InquiryStatus) Validate() error {
	for _, s := range InquiryStatuses() {
		if s == status {
			return nil
		}
	}
	return fmt.Errorf("invalid inquiry status: %s", status)
}

func ToInquiryStatus(s string) (InquiryStatus, error) {
	status := InquiryStatus(strings.ToLower(strings.TrimSpace(s)))
	if err := status.Validate(); err != nil {
		return "", err
	}
	return status, nil
}

func (status InquiryStatus) State() State {
	return State(status)
}
