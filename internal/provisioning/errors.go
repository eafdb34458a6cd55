package provisioning

import "fmt"

// ProvisioningConflictError is returned when the target schema exists but is not a complete provisioning of the
// current tenant schema version. It is never resolved automatically.
type ProvisioningConflictError struct {
	DatabaseName string
	Reason       string
}

func (e *ProvisioningConflictError) Error() string {
	return fmt.Sprintf("tenant database %s is in a conflicting state: %s", e.DatabaseName, e.Reason)
}

type MigrationFailedError struct {
	DatabaseName string
	Err          error
}

func (e *MigrationFailedError) Error() string {
	return fmt.Sprintf("applying tenant migrations on %s: %v", e.DatabaseName, e.Err)
}

func (e *MigrationFailedError) Unwrap() error {
	return e.Err
}

type SeedFailedError struct {
	DatabaseName string
	Err          error
}

func (e *SeedFailedError) Error() string {
	return fmt.Sprintf("seeding reference data on %s: %v", e.DatabaseName, e.Err)
}

func (e *SeedFailedError) Unwrap() error {
	return e.Err
}
