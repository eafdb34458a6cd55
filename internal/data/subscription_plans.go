package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrPlanNameTaken = errors.New("a subscription plan with this name already exists")
	ErrPlanInUse     = errors.New("subscription plan is referenced by at least one school")
	ErrPlanInactive  = errors.New("subscription plan is not active")
)

// SubscriptionPlan is a priced feature bundle schools subscribe to.
type SubscriptionPlan struct {
	ID           string          `json:"id" db:"id"`
	Name         string          `json:"name" db:"name"`
	Price        decimal.Decimal `json:"price" db:"price"`
	Currency     string          `json:"currency" db:"currency"`
	BillingCycle BillingCycle    `json:"billing_cycle" db:"billing_cycle"`
	Features     pq.StringArray  `json:"features" db:"features"`
	MaxUsers     *int            `json:"max_users,omitempty" db:"max_users"`
	MaxStorageMB *int            `json:"max_storage_mb,omitempty" db:"max_storage_mb"`
	IsActive     bool            `json:"is_active" db:"is_active"`
	IsDefault    bool            `json:"is_default" db:"is_default"`
	CreatedAt    time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at" db:"updated_at"`
	DeletedAt    *time.Time      `json:"deleted_at,omitempty" db:"deleted_at"`
}

type SubscriptionPlanInsert struct {
	Name         string
	Price        decimal.Decimal
	Currency     string
	BillingCycle BillingCycle
	Features     []string
	MaxUsers     *int
	MaxStorageMB *int
	IsDefault    bool
}

func (pi SubscriptionPlanInsert) Validate() error {
	if strings.TrimSpace(pi.Name) == "" {
		return ErrMissingInput
	}
	if pi.Price.IsNegative() {
		return fmt.Errorf("price must not be negative")
	}
	if len(pi.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter ISO code")
	}
	return pi.BillingCycle.Validate()
}

type SubscriptionPlanModel struct {
	dbConnectionPool db.DBConnectionPool
}

const planColumns = `
	id, name, price, currency, billing_cycle, features, max_users, max_storage_mb,
	is_active, is_default, created_at, updated_at, deleted_at
`

func (m *SubscriptionPlanModel) Insert(ctx context.Context, pi SubscriptionPlanInsert) (*SubscriptionPlan, error) {
	if err := pi.Validate(); err != nil {
		return nil, err
	}

	return db.RunInTransactionWithResult(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*SubscriptionPlan, error) {
		if pi.IsDefault {
			if _, err := dbTx.ExecContext(ctx, `UPDATE subscription_plans SET is_default = false WHERE is_default`); err != nil {
				return nil, fmt.Errorf("clearing default subscription plan: %w", err)
			}
		}

		query := `
			INSERT INTO subscription_plans (name, price, currency, billing_cycle, features, max_users, max_storage_mb, is_default)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING ` + planColumns

		var plan SubscriptionPlan
		err := dbTx.GetContext(ctx, &plan, query,
			strings.TrimSpace(pi.Name), pi.Price, strings.ToUpper(pi.Currency), pi.BillingCycle,
			pq.Array(pi.Features), pi.MaxUsers, pi.MaxStorageMB, pi.IsDefault,
		)
		if err != nil {
			if mapped := mapConstraintError(err, map[string]error{"idx_unique_plan_name": ErrPlanNameTaken}); mapped != nil {
				return nil, mapped
			}
			return nil, fmt.Errorf("inserting subscription plan: %w", err)
		}
		return &plan, nil
	})
}

func (m *SubscriptionPlanModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*SubscriptionPlan, error) {
	query := `SELECT ` + planColumns + ` FROM subscription_plans WHERE id = $1 AND deleted_at IS NULL`

	var plan SubscriptionPlan
	if err := sqlExec.GetContext(ctx, &plan, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting subscription plan %s: %w", id, err)
	}
	return &plan, nil
}

// GetActive returns the plan only if it can be assigned to new schools.
func (m *SubscriptionPlanModel) GetActive(ctx context.Context, id string) (*SubscriptionPlan, error) {
	plan, err := m.Get(ctx, m.dbConnectionPool, id)
	if err != nil {
		return nil, err
	}
	if !plan.IsActive {
		return nil, ErrPlanInactive
	}
	return plan, nil
}

// LockActive share-locks an assignable plan until sqlExec's transaction ends, so it cannot be deactivated or deleted
// while a school is being bound to it.
func (m *SubscriptionPlanModel) LockActive(ctx context.Context, sqlExec db.SQLExecuter, id string) error {
	var lockedID string
	err := sqlExec.GetContext(ctx, &lockedID, `
		SELECT id FROM subscription_plans
		WHERE id = $1 AND deleted_at IS NULL AND is_active
		FOR SHARE
	`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrPlanInactive
		}
		return fmt.Errorf("locking subscription plan %s: %w", id, err)
	}
	return nil
}

func (m *SubscriptionPlanModel) List(ctx context.Context, activeOnly bool) ([]SubscriptionPlan, error) {
	qb := NewQueryBuilder(`SELECT ` + planColumns + ` FROM subscription_plans p`)
	qb.AddCondition("p.deleted_at IS NULL")
	if activeOnly {
		qb.AddCondition("p.is_active")
	}
	qb.AddSorting("price", SortOrderASC, "p")
	query, params := qb.BuildAndRebind(m.dbConnectionPool)

	plans := []SubscriptionPlan{}
	if err := m.dbConnectionPool.SelectContext(ctx, &plans, query, params...); err != nil {
		return nil, fmt.Errorf("listing subscription plans: %w", err)
	}
	return plans, nil
}

// SoftDelete tombstones a plan unless a non-deleted school still references it. The check and the update run in one
// transaction that locks the plan row.
func (m *SubscriptionPlanModel) SoftDelete(ctx context.Context, schools *SchoolModel, id string) error {
	return db.RunInTransaction(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) error {
		var lockedID string
		err := dbTx.GetContext(ctx, &lockedID, `SELECT id FROM subscription_plans WHERE id = $1 AND deleted_at IS NULL FOR UPDATE`, id)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrRecordNotFound
			}
			return fmt.Errorf("locking subscription plan %s: %w", id, err)
		}

		count, err := schools.CountByPlan(ctx, dbTx, id)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrPlanInUse
		}

		if _, err = dbTx.ExecContext(ctx, `UPDATE subscription_plans SET deleted_at = NOW(), is_active = false, is_default = false WHERE id = $1`, id); err != nil {
			return fmt.Errorf("soft deleting subscription plan %s: %w", id, err)
		}
		return nil
	})
}
