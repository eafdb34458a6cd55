package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrTenantDomainTaken       = errors.New("a tenant with this domain already exists")
	ErrTenantDatabaseNameTaken = errors.New("a tenant with this database name already exists")
	ErrTenantOwnerTaken        = errors.New("this admin already owns a tenant")
)

// Tenant is the catalog pointer to an isolated school schema owned by a converted admin.
type Tenant struct {
	ID           string       `json:"id" db:"id"`
	Domain       string       `json:"domain" db:"domain"`
	DatabaseName string       `json:"database_name" db:"database_name"`
	OwnerAdminID string       `json:"owner_admin_id" db:"owner_admin_id"`
	Status       TenantStatus `json:"status" db:"status"`
	Settings     JSONMap      `json:"settings" db:"settings"`
	CreatedAt    time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at" db:"updated_at"`
}

type TenantInsert struct {
	Domain       string
	DatabaseName string
	OwnerAdminID string
	Settings     JSONMap
}

type TenantModel struct {
	dbConnectionPool db.DBConnectionPool
}

const tenantColumns = `id, domain, database_name, owner_admin_id, status, settings, created_at, updated_at`

var tenantConstraintErrMap = map[string]error{
	"idx_unique_tenant_domain":        ErrTenantDomainTaken,
	"idx_unique_tenant_database_name": ErrTenantDatabaseNameTaken,
	"idx_unique_tenant_owner":         ErrTenantOwnerTaken,
}

func (m *TenantModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, ti TenantInsert) (*Tenant, error) {
	if ti.Domain == "" || ti.DatabaseName == "" || ti.OwnerAdminID == "" {
		return nil, ErrMissingInput
	}

	query := `
		INSERT INTO tenants (domain, database_name, owner_admin_id, settings)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + tenantColumns

	var t Tenant
	if err := sqlExec.GetContext(ctx, &t, query, ti.Domain, ti.DatabaseName, ti.OwnerAdminID, ti.Settings); err != nil {
		if mapped := mapConstraintError(err, tenantConstraintErrMap); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting tenant: %w", err)
	}
	return &t, nil
}

func (m *TenantModel) Get(ctx context.Context, id string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE id = $1`

	var t Tenant
	if err := m.dbConnectionPool.GetContext(ctx, &t, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting tenant %s: %w", id, err)
	}
	return &t, nil
}

func (m *TenantModel) GetByDomain(ctx context.Context, domain string) (*Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE domain = $1`

	var t Tenant
	if err := m.dbConnectionPool.GetContext(ctx, &t, query, domain); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting tenant by domain %s: %w", domain, err)
	}
	return &t, nil
}

func (m *TenantModel) UpdateStatus(ctx context.Context, id string, status TenantStatus) (*Tenant, error) {
	query := `UPDATE tenants SET status = $2 WHERE id = $1 RETURNING ` + tenantColumns

	var t Tenant
	if err := m.dbConnectionPool.GetContext(ctx, &t, query, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating tenant %s status: %w", id, err)
	}
	return &t, nil
}

// DatabaseNames returns the schema names referenced by a tenant or a school, which the orphan cleanup must never
// drop.
func (m *TenantModel) DatabaseNames(ctx context.Context) ([]string, error) {
	query := `
		SELECT database_name FROM tenants
		UNION
		SELECT database_name FROM schools
	`
	names := []string{}
	if err := m.dbConnectionPool.SelectContext(ctx, &names, query); err != nil {
		return nil, fmt.Errorf("listing bound database names: %w", err)
	}
	return names, nil
}
