package auth

import (
	"fmt"
	"slices"
	"time"
)

type Capability string

const CapabilitySuperadmin Capability = "superadmin"

// Principal is the authenticated caller. It is passed explicitly to every privileged operation.
type Principal struct {
	ID           string       `json:"id"`
	Capabilities []Capability `json:"capabilities"`
	ExpiresAt    time.Time    `json:"expires_at"`
	Active       bool         `json:"active"`
}

func (p *Principal) HasCapability(capability Capability) bool {
	return slices.Contains(p.Capabilities, capability)
}

type AuthorizationFailure string

const (
	FailureMissingPrincipal  AuthorizationFailure = "missing principal"
	FailureInactive          AuthorizationFailure = "principal is not active"
	FailureExpired           AuthorizationFailure = "credential expired"
	FailureMissingCapability AuthorizationFailure = "missing capability"
)

type AuthorizationError struct {
	PrincipalID string
	Capability  Capability
	Failure     AuthorizationFailure
}

func (e *AuthorizationError) Error() string {
	if e.Failure == FailureMissingCapability {
		return fmt.Sprintf("not authorized: %s %q", e.Failure, e.Capability)
	}
	return fmt.Sprintf("not authorized: %s", e.Failure)
}

// Unauthenticated reports whether the failure is about the credential itself rather than its scope.
func (e *AuthorizationError) Unauthenticated() bool {
	return e.Failure != FailureMissingCapability
}

// Authorize checks that principal may exercise capability at now. It has no side effects.
func Authorize(principal *Principal, capability Capability, now time.Time) error {
	if principal == nil {
		return &AuthorizationError{Capability: capability, Failure: FailureMissingPrincipal}
	}

	authErr := &AuthorizationError{PrincipalID: principal.ID, Capability: capability}
	switch {
	case !principal.Active:
		authErr.Failure = FailureInactive
	case !principal.ExpiresAt.IsZero() && !now.Before(principal.ExpiresAt):
		authErr.Failure = FailureExpired
	case !principal.HasCapability(capability):
		authErr.Failure = FailureMissingCapability
	default:
		return nil
	}
	return authErr
}
