package data

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrFormFieldNameTaken = errors.New("a form field with this name already exists")
	ErrDefaultFormField   = errors.New("default form fields cannot be deleted")
	ErrFormFieldOrder     = errors.New("the new order must list every form field exactly once")
)

type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeTextarea FieldType = "textarea"
	FieldTypeEmail    FieldType = "email"
	FieldTypePhone    FieldType = "phone"
	FieldTypeURL      FieldType = "url"
	FieldTypeNumber   FieldType = "number"
	FieldTypeDate     FieldType = "date"
	FieldTypeSelect   FieldType = "select"
	FieldTypeCheckbox FieldType = "checkbox"
)

func (ft FieldType) Validate() error {
	switch ft {
	case FieldTypeText, FieldTypeTextarea, FieldTypeEmail, FieldTypePhone, FieldTypeURL,
		FieldTypeNumber, FieldTypeDate, FieldTypeSelect, FieldTypeCheckbox:
		return nil
	default:
		return fmt.Errorf("invalid field type: %s", ft)
	}
}

// ValidationRules is the rule descriptor interpreted by the form field registry.
type ValidationRules struct {
	MinLength *int     `json:"min_length,omitempty"`
	MaxLength *int     `json:"max_length,omitempty"`
	Pattern   string   `json:"pattern,omitempty"`
	Options   []string `json:"options,omitempty"`
	Min       *float64 `json:"min,omitempty"`
	Max       *float64 `json:"max,omitempty"`
}

func (r ValidationRules) Value() (driver.Value, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshalling validation rules: %w", err)
	}
	return b, nil
}

func (r *ValidationRules) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*r = ValidationRules{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ValidationRules", src)
	}
	if err := json.Unmarshal(raw, r); err != nil {
		return fmt.Errorf("unmarshalling validation rules: %w", err)
	}
	return nil
}

// FormField defines one entry of the public inquiry form.
type FormField struct {
	ID              string          `json:"id" db:"id"`
	Name            string          `json:"name" db:"name"`
	Label           string          `json:"label" db:"label"`
	FieldType       FieldType       `json:"field_type" db:"field_type"`
	IsRequired      bool            `json:"is_required" db:"is_required"`
	IsDefault       bool            `json:"is_default" db:"is_default"`
	ValidationRules ValidationRules `json:"validation_rules" db:"validation_rules"`
	SortOrder       int             `json:"sort_order" db:"sort_order"`
	IsActive        bool            `json:"is_active" db:"is_active"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

type FormFieldInsert struct {
	Name            string
	Label           string
	FieldType       FieldType
	IsRequired      bool
	ValidationRules ValidationRules
}

// FormFieldUpdate holds the editable attributes. Nil pointers are left untouched.
type FormFieldUpdate struct {
	Label           *string
	FieldType       *FieldType
	IsRequired      *bool
	IsActive        *bool
	ValidationRules *ValidationRules
}

type FormFieldModel struct {
	dbConnectionPool db.DBConnectionPool
}

const formFieldColumns = `
	id, name, label, field_type, is_required, is_default, validation_rules, sort_order, is_active, created_at, updated_at
`

func (m *FormFieldModel) Insert(ctx context.Context, fi FormFieldInsert) (*FormField, error) {
	if strings.TrimSpace(fi.Name) == "" || strings.TrimSpace(fi.Label) == "" {
		return nil, ErrMissingInput
	}
	if err := fi.FieldType.Validate(); err != nil {
		return nil, err
	}

	query := `
		INSERT INTO form_fields (name, label, field_type, is_required, validation_rules, sort_order)
		VALUES ($1, $2, $3, $4, $5, (SELECT COALESCE(MAX(sort_order), 0) + 1 FROM form_fields))
		RETURNING ` + formFieldColumns

	var field FormField
	err := m.dbConnectionPool.GetContext(ctx, &field, query, strings.TrimSpace(fi.Name), strings.TrimSpace(fi.Label), fi.FieldType, fi.IsRequired, fi.ValidationRules)
	if err != nil {
		if mapped := mapConstraintError(err, map[string]error{"idx_unique_form_field_name": ErrFormFieldNameTaken}); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting form field: %w", err)
	}
	return &field, nil
}

func (m *FormFieldModel) List(ctx context.Context, activeOnly bool) ([]FormField, error) {
	qb := NewQueryBuilder(`SELECT ` + formFieldColumns + ` FROM form_fields f`)
	if activeOnly {
		qb.AddCondition("f.is_active")
	}
	qb.AddSorting("sort_order", SortOrderASC, "f")
	query, params := qb.BuildAndRebind(m.dbConnectionPool)

	fields := []FormField{}
	if err := m.dbConnectionPool.SelectContext(ctx, &fields, query, params...); err != nil {
		return nil, fmt.Errorf("listing form fields: %w", err)
	}
	return fields, nil
}

func (m *FormFieldModel) Update(ctx context.Context, id string, fu FormFieldUpdate) (*FormField, error) {
	if fu.FieldType != nil {
		if err := fu.FieldType.Validate(); err != nil {
			return nil, err
		}
	}

	query := `
		UPDATE form_fields SET
			label = COALESCE($2, label),
			field_type = COALESCE($3, field_type),
			is_required = COALESCE($4, is_required),
			is_active = COALESCE($5, is_active),
			validation_rules = COALESCE($6, validation_rules)
		WHERE id = $1
		RETURNING ` + formFieldColumns

	var rules any
	if fu.ValidationRules != nil {
		rules = *fu.ValidationRules
	}

	var field FormField
	if err := m.dbConnectionPool.GetContext(ctx, &field, query, id, fu.Label, fu.FieldType, fu.IsRequired, fu.IsActive, rules); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("updating form field %s: %w", id, err)
	}
	return &field, nil
}

// Delete removes a custom form field. Default fields are refused.
func (m *FormFieldModel) Delete(ctx context.Context, id string) error {
	return db.RunInTransaction(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		var isDefault bool
		if err := dbTx.GetContext(ctx, &isDefault, `SELECT is_default FROM form_fields WHERE id = $1 FOR UPDATE`, id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("getting form field %s: %w", id, err)
		}
		if isDefault {
			return ErrDefaultFormField
		}
		if _, err := dbTx.ExecContext(ctx, `DELETE FROM form_fields WHERE id = $1`, id); err != nil {
			return fmt.Errorf("deleting form field %s: %w", id, err)
		}
		return nil
	})
}

// Reorder assigns sort_order following the position of each id in orderedIDs.
func (m *FormFieldModel) Reorder(ctx context.Context, orderedIDs []string) error {
	return db.RunInTransaction(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		var total int
		if err := dbTx.GetContext(ctx, &total, `SELECT COUNT(*) FROM form_fields`); err != nil {
			return fmt.Errorf("counting form fields: %w", err)
		}

		seen := make(map[string]bool, len(orderedIDs))
		for _, id := range orderedIDs {
			seen[id] = true
		}
		if len(seen) != total || len(orderedIDs) != total {
			return ErrFormFieldOrder
		}

		for position, id := range orderedIDs {
			res, err := dbTx.ExecContext(ctx, `UPDATE form_fields SET sort_order = $2 WHERE id = $1`, id, position+1)
			if err != nil {
				return fmt.Errorf("reordering form field %s: %w", id, err)
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return ErrFormFieldOrder
			}
		}
		return nil
	})
}
