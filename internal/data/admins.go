package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrAdminEmailTaken       = errors.New("an admin with this email already exists")
	ErrAdminNotConvertible   = errors.New("admin is not in a convertible status")
	ErrAdminTenantAlreadySet = errors.New("admin already owns a tenant")
)

// Admin is a catalog-side administrative identity that can later be converted into the owner of a tenant.
type Admin struct {
	ID           string      `json:"id" db:"id"`
	Name         string      `json:"name" db:"name"`
	Email        string      `json:"email" db:"email"`
	PasswordHash string      `json:"-" db:"password_hash"`
	SchoolName   *string     `json:"school_name,omitempty" db:"school_name"`
	Status       AdminStatus `json:"status" db:"status"`
	TenantID     *string     `json:"tenant_id,omitempty" db:"tenant_id"`
	ConvertedAt  *time.Time  `json:"converted_at,omitempty" db:"converted_at"`
	CreatedAt    time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at" db:"updated_at"`
}

type AdminInsert struct {
	Name       string
	Email      string
	Password   string
	SchoolName string
}

func (ai AdminInsert) Validate() error {
	if strings.TrimSpace(ai.Name) == "" || strings.TrimSpace(ai.Email) == "" || ai.Password == "" {
		return ErrMissingInput
	}
	return nil
}

type AdminModel struct {
	dbConnectionPool db.DBConnectionPool
}

const adminColumns = `
	id, name, email, password_hash, school_name, status, tenant_id, converted_at, created_at, updated_at
`

func (m *AdminModel) Insert(ctx context.Context, ai AdminInsert) (*Admin, error) {
	if err := ai.Validate(); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(ai.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hashing admin password: %w", err)
	}

	query := `
		INSERT INTO admins (name, email, password_hash, school_name)
		VALUES ($1, $2, $3, NULLIF($4, ''))
		RETURNING ` + adminColumns

	var admin Admin
	err = m.dbConnectionPool.GetContext(ctx, &admin, query, strings.TrimSpace(ai.Name), strings.ToLower(strings.TrimSpace(ai.Email)), string(hash), strings.TrimSpace(ai.SchoolName))
	if err != nil {
		if mapped := mapConstraintError(err, map[string]error{"idx_unique_admin_email": ErrAdminEmailTaken}); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting admin: %w", err)
	}
	return &admin, nil
}

func (m *AdminModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*Admin, error) {
	query := `SELECT ` + adminColumns + ` FROM admins WHERE id = $1`

	var admin Admin
	if err := sqlExec.GetContext(ctx, &admin, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting admin %s: %w", id, err)
	}
	return &admin, nil
}

// CheckPassword reports whether password matches the stored hash.
func (a *Admin) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) == nil
}

// MarkConverted moves the admin to converted and links it to tenantID. The update only applies while the admin is
// still in a convertible status, so two racing binds cannot both succeed.
func (m *AdminModel) MarkConverted(ctx context.Context, sqlExec db.SQLExecuter, id, tenantID string, convertedAt time.Time) (*Admin, error) {
	query := `
		UPDATE admins
		SET status = 'converted', tenant_id = $2, converted_at = $3
		WHERE id = $1 AND status = ANY($4) AND tenant_id IS NULL
		RETURNING ` + adminColumns

	statuses := make([]string, 0, len(ConvertibleAdminStatuses()))
	for _, s := range ConvertibleAdminStatuses() {
		statuses = append(statuses, string(s))
	}

	var admin Admin
	err := sqlExec.GetContext(ctx, &admin, query, id, tenantID, convertedAt, pq.Array(statuses))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAdminNotConvertible
		}
		if mapped := mapConstraintError(err, map[string]error{"idx_unique_admin_tenant_id": ErrAdminTenantAlreadySet}); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("marking admin %s as converted: %w", id, err)
	}
	return &admin, nil
}

// UpdateStatus sets a manual status. Conversion goes through MarkConverted and converted admins are frozen.
func (m *AdminModel) UpdateStatus(ctx context.Context, id string, status AdminStatus) (*Admin, error) {
	if err := status.Validate(); err != nil {
		return nil, err
	}
	if status == AdminStatusConverted {
		return nil, fmt.Errorf("admins can only become %s through a conversion", AdminStatusConverted)
	}

	query := `
		UPDATE admins SET status = $2
		WHERE id = $1 AND status <> 'converted'
		RETURNING ` + adminColumns

	var admin Admin
	if err := m.dbConnectionPool.GetContext(ctx, &admin, query, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating admin %s status: %w", id, err)
	}
	return &admin, nil
}
