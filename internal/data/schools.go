package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrSchoolDomainTaken       = errors.New("a school with this domain already exists")
	ErrSchoolCodeTaken         = errors.New("a school with this code already exists")
	ErrSchoolDatabaseNameTaken = errors.New("a school with this database name already exists")
	ErrInvalidPlanReference    = errors.New("subscription plan does not exist")
	ErrSchoolTerminated        = fmt.Errorf("school is terminated: %w", ErrInvalidTransition)
)

// School is the catalog record of an onboarded school and its isolated schema.
type School struct {
	ID                    string       `json:"id" db:"id"`
	Name                  string       `json:"name" db:"name"`
	Email                 string       `json:"email" db:"email"`
	Domain                string       `json:"domain" db:"domain"`
	SchoolCode            string       `json:"school_code" db:"school_code"`
	DatabaseName          string       `json:"database_name" db:"database_name"`
	SubscriptionPlanID    string       `json:"subscription_plan_id" db:"subscription_plan_id"`
	Status                SchoolStatus `json:"status" db:"status"`
	SubscriptionStartDate *time.Time   `json:"subscription_start_date,omitempty" db:"subscription_start_date"`
	SubscriptionEndDate   *time.Time   `json:"subscription_end_date,omitempty" db:"subscription_end_date"`
	InGracePeriod         bool         `json:"in_grace_period" db:"in_grace_period"`
	GracePeriodEndDate    *time.Time   `json:"grace_period_end_date,omitempty" db:"grace_period_end_date"`
	ApprovedBy            *string      `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt            *time.Time   `json:"approved_at,omitempty" db:"approved_at"`
	CreatedAt             time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt             time.Time    `json:"updated_at" db:"updated_at"`
	DeletedAt             *time.Time   `json:"deleted_at,omitempty" db:"deleted_at"`
}

type SchoolInsert struct {
	Name                  string
	Email                 string
	Domain                string
	SchoolCode            string
	DatabaseName          string
	SubscriptionPlanID    string
	SubscriptionStartDate time.Time
	SubscriptionEndDate   time.Time
	GracePeriodEndDate    time.Time
	ApprovedBy            string
	ApprovedAt            time.Time
}

type SchoolModel struct {
	dbConnectionPool db.DBConnectionPool
}

const schoolColumns = `
	id, name, email, domain, school_code, database_name, subscription_plan_id, status,
	subscription_start_date, subscription_end_date, in_grace_period, grace_period_end_date,
	approved_by, approved_at, created_at, updated_at, deleted_at
`

var schoolConstraintErrMap = map[string]error{
	"idx_unique_school_domain":        ErrSchoolDomainTaken,
	"idx_unique_school_code":          ErrSchoolCodeTaken,
	"idx_unique_school_database_name": ErrSchoolDatabaseNameTaken,
}

func (m *SchoolModel) Insert(ctx context.Context, sqlExec db.SQLExecuter, si SchoolInsert) (*School, error) {
	if si.Name == "" || si.Domain == "" || si.DatabaseName == "" || si.SchoolCode == "" || si.SubscriptionPlanID == "" {
		return nil, ErrMissingInput
	}

	query := `
		INSERT INTO schools (
			name, email, domain, school_code, database_name, subscription_plan_id,
			subscription_start_date, subscription_end_date, grace_period_end_date, approved_by, approved_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + schoolColumns

	var s School
	err := sqlExec.GetContext(ctx, &s, query,
		si.Name, si.Email, si.Domain, si.SchoolCode, si.DatabaseName, si.SubscriptionPlanID,
		si.SubscriptionStartDate, si.SubscriptionEndDate, si.GracePeriodEndDate, si.ApprovedBy, si.ApprovedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "schools_subscription_plan_id_fkey" {
			return nil, ErrInvalidPlanReference
		}
		if mapped := mapConstraintError(err, schoolConstraintErrMap); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting school: %w", err)
	}
	return &s, nil
}

func (m *SchoolModel) Get(ctx context.Context, id string) (*School, error) {
	query := `SELECT ` + schoolColumns + ` FROM schools WHERE id = $1 AND deleted_at IS NULL`

	var s School
	if err := m.dbConnectionPool.GetContext(ctx, &s, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting school %s: %w", id, err)
	}
	return &s, nil
}

var allowedSchoolSortFields = map[SortField]bool{SortFieldName: true, SortFieldCreatedAt: true, SortFieldEndDate: true}

func (m *SchoolModel) List(ctx context.Context, qp QueryParams) ([]School, error) {
	qp = qp.Normalized(SortFieldCreatedAt)
	if !allowedSchoolSortFields[qp.SortBy] {
		qp.SortBy = SortFieldCreatedAt
	}

	qb := newSchoolQuery(`SELECT `+schoolColumns+` FROM schools s`, qp)
	qb.AddSorting(qp.SortBy, qp.SortOrder, "s")
	qb.AddPagination(qp.Page, qp.PageLimit)
	query, params := qb.BuildAndRebind(m.dbConnectionPool)

	schools := []School{}
	if err := m.dbConnectionPool.SelectContext(ctx, &schools, query, params...); err != nil {
		return nil, fmt.Errorf("listing schools: %w", err)
	}
	return schools, nil
}

// Count returns how many schools match the filters of qp, ignoring pagination.
func (m *SchoolModel) Count(ctx context.Context, qp QueryParams) (int, error) {
	query, params := newSchoolQuery(`SELECT COUNT(*) FROM schools s`, qp).BuildAndRebind(m.dbConnectionPool)

	var count int
	if err := m.dbConnectionPool.GetContext(ctx, &count, query, params...); err != nil {
		return 0, fmt.Errorf("counting schools: %w", err)
	}
	return count, nil
}

func newSchoolQuery(baseQuery string, qp QueryParams) *QueryBuilder {
	qb := NewQueryBuilder(baseQuery)
	qb.AddCondition("s.deleted_at IS NULL")
	if status := qp.Filters[FilterKeyStatus]; status != "" {
		qb.AddCondition("s.status = ?", status)
	}
	if planID := qp.Filters[FilterKeyPlanID]; planID != "" {
		qb.AddCondition("s.subscription_plan_id = ?", planID)
	}
	if q := qp.Filters[FilterKeySearch]; q != "" {
		like := "%" + q + "%"
		qb.AddCondition("(s.name ILIKE ? OR s.domain ILIKE ? OR s.school_code ILIKE ?)", like, like, like)
	}
	return qb
}

// UpdateStatus applies a manual suspend/activate. It never touches deleted schools.
func (m *SchoolModel) UpdateStatus(ctx context.Context, id string, status SchoolStatus) (*School, error) {
	query := `
		UPDATE schools SET status = $2
		WHERE id = $1 AND deleted_at IS NULL AND status <> 'terminated'
		RETURNING ` + schoolColumns

	var s School
	err := m.dbConnectionPool.GetContext(ctx, &s, query, id, status)
	if err == nil {
		return &s, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("updating school %s status: %w", id, err)
	}

	var exists bool
	err = m.dbConnectionPool.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM schools WHERE id = $1 AND deleted_at IS NULL)", id)
	if err != nil {
		return nil, fmt.Errorf("looking up school %s: %w", id, err)
	}
	if exists {
		return nil, ErrSchoolTerminated
	}
	return nil, ErrRecordNotFound
}

// RenewSubscription moves the subscription window and clears the cached grace flag.
func (m *SchoolModel) RenewSubscription(ctx context.Context, id, planID string, end, graceEnd time.Time) (*School, error) {
	query := `
		UPDATE schools
		SET subscription_end_date = $2,
			grace_period_end_date = $3,
			subscription_plan_id = COALESCE(NULLIF($4, ''), subscription_plan_id),
			in_grace_period = false
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + schoolColumns

	var s School
	if err := m.dbConnectionPool.GetContext(ctx, &s, query, id, end, graceEnd, planID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Constraint == "schools_subscription_plan_id_fkey" {
			return nil, ErrInvalidPlanReference
		}
		return nil, fmt.Errorf("renewing school %s subscription: %w", id, err)
	}
	return &s, nil
}

func (m *SchoolModel) SoftDelete(ctx context.Context, id string) error {
	res, err := m.dbConnectionPool.ExecContext(ctx, `UPDATE schools SET deleted_at = NOW() WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("soft deleting school %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting soft deleted schools: %w", err)
	}
	if n == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// SubscriptionWindow is the slice of a school row the lifecycle sweep needs.
type SubscriptionWindow struct {
	ID                    string     `db:"id"`
	InGracePeriod         bool       `db:"in_grace_period"`
	SubscriptionStartDate *time.Time `db:"subscription_start_date"`
	SubscriptionEndDate   *time.Time `db:"subscription_end_date"`
	GracePeriodEndDate    *time.Time `db:"grace_period_end_date"`
}

// ActiveSubscriptionWindows lists the windows of every active, non-deleted school.
func (m *SchoolModel) ActiveSubscriptionWindows(ctx context.Context, sqlExec db.SQLExecuter) ([]SubscriptionWindow, error) {
	query := `
		SELECT id, in_grace_period, subscription_start_date, subscription_end_date, grace_period_end_date
		FROM schools
		WHERE status = 'active' AND deleted_at IS NULL
		ORDER BY id
	`
	windows := []SubscriptionWindow{}
	if err := sqlExec.SelectContext(ctx, &windows, query); err != nil {
		return nil, fmt.Errorf("listing active subscription windows: %w", err)
	}
	return windows, nil
}

// SuspendActive suspends the given schools if they are still active, returning how many rows changed.
func (m *SchoolModel) SuspendActive(ctx context.Context, sqlExec db.SQLExecuter, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE schools SET status = 'suspended', in_grace_period = false
		WHERE id = ANY($1) AND status = 'active' AND deleted_at IS NULL
	`
	res, err := sqlExec.ExecContext(ctx, query, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("suspending expired schools: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting suspended schools: %w", err)
	}
	return n, nil
}

// SetGracePeriodFlag writes the cached in_grace_period flag of the given active schools.
func (m *SchoolModel) SetGracePeriodFlag(ctx context.Context, sqlExec db.SQLExecuter, ids []string, inGrace bool) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	query := `
		UPDATE schools SET in_grace_period = $2
		WHERE id = ANY($1) AND status = 'active' AND in_grace_period <> $2
	`
	res, err := sqlExec.ExecContext(ctx, query, pq.Array(ids), inGrace)
	if err != nil {
		return 0, fmt.Errorf("updating grace period flags: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting grace period updates: %w", err)
	}
	return n, nil
}

// CountByPlan counts non-deleted schools referencing planID.
func (m *SchoolModel) CountByPlan(ctx context.Context, sqlExec db.SQLExecuter, planID string) (int, error) {
	var count int
	if err := sqlExec.GetContext(ctx, &count, `SELECT COUNT(*) FROM schools WHERE subscription_plan_id = $1 AND deleted_at IS NULL`, planID); err != nil {
		return 0, fmt.Errorf("counting schools of plan %s: %w", planID, err)
	}
	return count, nil
}
