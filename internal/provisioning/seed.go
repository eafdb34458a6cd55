package provisioning

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"github.com/schoolhub/schoolhub-backend/db"
)

type RoleSeed struct {
	Name        string
	Description string
	Permissions []string
}

type PermissionSeed struct {
	Name        string
	Description string
}

type LookupSeed struct {
	Category string
	Code     string
	Label    string
}

// Seed is the baseline reference data every tenant schema starts with.
type Seed struct {
	Permissions []PermissionSeed
	Roles       []RoleSeed
	Lookups     []LookupSeed
}

var DefaultSeed = Seed{
	Permissions: []PermissionSeed{
		{Name: "users.manage", Description: "Create, edit and deactivate school users"},
		{Name: "settings.manage", Description: "Edit the school settings"},
		{Name: "students.view", Description: "View student records"},
		{Name: "students.manage", Description: "Create and edit student records"},
		{Name: "classes.manage", Description: "Manage classes, sections and subjects"},
		{Name: "attendance.manage", Description: "Record attendance"},
		{Name: "exams.manage", Description: "Manage exams and marks"},
		{Name: "books.manage", Description: "Manage the library circulation"},
		{Name: "expenses.manage", Description: "Record school expenses"},
		{Name: "notices.manage", Description: "Publish notices"},
	},
	Roles: []RoleSeed{
		{
			Name:        "school_admin",
			Description: "Owner of the school account",
			Permissions: []string{
				"users.manage", "settings.manage", "students.view", "students.manage", "classes.manage",
				"attendance.manage", "exams.manage", "books.manage", "expenses.manage", "notices.manage",
			},
		},
		{Name: "teacher", Description: "Teaching staff", Permissions: []string{"students.view", "attendance.manage", "exams.manage"}},
		{Name: "accountant", Description: "Finance staff", Permissions: []string{"students.view", "expenses.manage"}},
		{Name: "librarian", Description: "Library staff", Permissions: []string{"students.view", "books.manage"}},
		{Name: "student", Description: "Enrolled student"},
		{Name: "parent", Description: "Parent or guardian"},
	},
	Lookups: []LookupSeed{
		{Category: "gender", Code: "female", Label: "Female"},
		{Category: "gender", Code: "male", Label: "Male"},
		{Category: "gender", Code: "other", Label: "Other"},
		{Category: "attendance_status", Code: "present", Label: "Present"},
		{Category: "attendance_status", Code: "absent", Label: "Absent"},
		{Category: "attendance_status", Code: "late", Label: "Late"},
		{Category: "attendance_status", Code: "excused", Label: "Excused"},
		{Category: "blood_group", Code: "a_pos", Label: "A+"},
		{Category: "blood_group", Code: "a_neg", Label: "A-"},
		{Category: "blood_group", Code: "b_pos", Label: "B+"},
		{Category: "blood_group", Code: "b_neg", Label: "B-"},
		{Category: "blood_group", Code: "ab_pos", Label: "AB+"},
		{Category: "blood_group", Code: "ab_neg", Label: "AB-"},
		{Category: "blood_group", Code: "o_pos", Label: "O+"},
		{Category: "blood_group", Code: "o_neg", Label: "O-"},
		{Category: "expense_category", Code: "salaries", Label: "Salaries"},
		{Category: "expense_category", Code: "utilities", Label: "Utilities"},
		{Category: "expense_category", Code: "supplies", Label: "Supplies"},
		{Category: "expense_category", Code: "maintenance", Label: "Maintenance"},
	},
}

// Apply inserts the seed in one transaction. Rows that already exist are left alone so a retried seed is harmless.
func (s Seed) Apply(ctx context.Context, tenantPool db.DBConnectionPool) error {
	return db.RunInTransaction(ctx, tenantPool, nil, func(dbTx db.DBTransaction) error {
		for _, p := range s.Permissions {
			if _, err := dbTx.ExecContext(ctx, `
				INSERT INTO permissions (name, description) VALUES ($1, $2)
				ON CONFLICT (name) DO NOTHING
			`, p.Name, p.Description); err != nil {
				return fmt.Errorf("inserting permission %s: %w", p.Name, err)
			}
		}

		for _, r := range s.Roles {
			if _, err := dbTx.ExecContext(ctx, `
				INSERT INTO roles (name, description, is_system) VALUES ($1, $2, true)
				ON CONFLICT (name) DO NOTHING
			`, r.Name, r.Description); err != nil {
				return fmt.Errorf("inserting role %s: %w", r.Name, err)
			}
			if len(r.Permissions) == 0 {
				continue
			}
			if _, err := dbTx.ExecContext(ctx, `
				INSERT INTO role_permissions (role_id, permission_id)
				SELECT r.id, p.id FROM roles r, permissions p
				WHERE r.name = $1 AND p.name = ANY($2)
				ON CONFLICT DO NOTHING
			`, r.Name, pq.Array(r.Permissions)); err != nil {
				return fmt.Errorf("granting permissions to role %s: %w", r.Name, err)
			}
		}

		for i, l := range s.Lookups {
			if _, err := dbTx.ExecContext(ctx, `
				INSERT INTO lookups (category, code, label, sort_order) VALUES ($1, $2, $3, $4)
				ON CONFLICT (category, code) DO NOTHING
			`, l.Category, l.Code, l.Label, i+1); err != nil {
				return fmt.Errorf("inserting lookup %s/%s: %w", l.Category, l.Code, err)
			}
		}
		return nil
	})
}
