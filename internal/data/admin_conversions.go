package data

import (
	"context"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

// AdminTenantConversion is one attempt at turning an admin into the owner of a tenant. Rows are only updated while
// initiated.
type AdminTenantConversion struct {
	ID               string           `json:"id" csv:"id" db:"id"`
	AdminID          string           `json:"admin_id" csv:"admin_id" db:"admin_id"`
	TenantID         *string          `json:"tenant_id,omitempty" csv:"tenant_id" db:"tenant_id"`
	OldAdminData     JSONMap          `json:"old_admin_data" csv:"-" db:"old_admin_data"`
	ConversionStatus ConversionStatus `json:"conversion_status" csv:"conversion_status" db:"conversion_status"`
	ErrorMessage     *string          `json:"error_message,omitempty" csv:"error_message" db:"error_message"`
	DatabaseName     *string          `json:"database_name,omitempty" csv:"database_name" db:"database_name"`
	Domain           *string          `json:"domain,omitempty" csv:"domain" db:"domain"`
	InitiatedBy      string           `json:"initiated_by" csv:"initiated_by" db:"initiated_by"`
	CreatedAt        time.Time        `json:"created_at" csv:"created_at" db:"created_at"`
	ConvertedAt      *time.Time       `json:"converted_at,omitempty" csv:"converted_at" db:"converted_at"`
}

type AdminConversionModel struct {
	dbConnectionPool db.DBConnectionPool
}

// Initiate inserts the initiated row together with a full snapshot of the admin. A concurrent attempt for the same
// admin fails with ErrConversionInProgress.
func (m *AdminConversionModel) Initiate(ctx context.Context, adminID, initiatedBy string) (*AdminTenantConversion, error) {
	return initiateConversion[AdminTenantConversion](ctx, m.dbConnectionPool, adminConversionTable, adminID, initiatedBy)
}

func (m *AdminConversionModel) RecordIdentifiers(ctx context.Context, id, databaseName, domain string) error {
	return recordConversionIdentifiers(ctx, m.dbConnectionPool, adminConversionTable, id, databaseName, domain)
}

func (m *AdminConversionModel) Fail(ctx context.Context, id, message string) error {
	return failConversion(ctx, m.dbConnectionPool, adminConversionTable, id, message)
}

func (m *AdminConversionModel) Complete(ctx context.Context, id, tenantID string, at time.Time) error {
	return completeConversion(ctx, m.dbConnectionPool, adminConversionTable, id, tenantID, at)
}

// ListByAdmin returns every attempt for the admin, newest first. An empty adminID lists all attempts.
func (m *AdminConversionModel) ListByAdmin(ctx context.Context, adminID string) ([]AdminTenantConversion, error) {
	return listConversions[AdminTenantConversion](ctx, m.dbConnectionPool, adminConversionTable, adminID)
}

func (m *AdminConversionModel) ReapStale(ctx context.Context, cutoff time.Time) (StaleConversions, error) {
	return reapStaleConversions(ctx, m.dbConnectionPool, adminConversionTable, cutoff)
}

func (m *AdminConversionModel) Orphans(ctx context.Context) ([]OrphanedIdentifiers, error) {
	return orphanedConversionIdentifiers(ctx, m.dbConnectionPool, adminConversionTable)
}
