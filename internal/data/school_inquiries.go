package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/schoolhub/schoolhub-backend/db"
)

var (
	ErrInquiryEmailTaken     = errors.New("an inquiry with this school email already exists")
	ErrInquiryDomainTaken    = errors.New("an inquiry with this proposed domain already exists")
	ErrInquiryStatusConflict = errors.New("inquiry status changed concurrently")
	ErrInquiryNotConvertible = errors.New("inquiry is not in a convertible status")
)

// SchoolInquiry is a prospective school's intake submission.
type SchoolInquiry struct {
	ID                string        `json:"id" db:"id"`
	SchoolName        string        `json:"school_name" db:"school_name"`
	SchoolEmail       string        `json:"school_email" db:"school_email"`
	ProposedDomain    *string       `json:"proposed_domain,omitempty" db:"proposed_domain"`
	FormData          JSONMap       `json:"form_data" db:"form_data"`
	Status            InquiryStatus `json:"status" db:"status"`
	SubmittedAt       time.Time     `json:"submitted_at" db:"submitted_at"`
	ReviewedAt        *time.Time    `json:"reviewed_at,omitempty" db:"reviewed_at"`
	ReviewedBy        *string       `json:"reviewed_by,omitempty" db:"reviewed_by"`
	ReviewNotes       *string       `json:"review_notes,omitempty" db:"review_notes"`
	ConvertedSchoolID *string       `json:"converted_school_id,omitempty" db:"converted_school_id"`
	CreatedAt         time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time     `json:"updated_at" db:"updated_at"`
	DeletedAt         *time.Time    `json:"deleted_at,omitempty" db:"deleted_at"`
}

type SchoolInquiryInsert struct {
	SchoolName     string
	SchoolEmail    string
	ProposedDomain string
	FormData       JSONMap
}

type SchoolInquiryModel struct {
	dbConnectionPool db.DBConnectionPool
}

const inquiryColumns = `
	id, school_name, school_email, proposed_domain, form_data, status, submitted_at,
	reviewed_at, reviewed_by, review_notes, converted_school_id, created_at, updated_at, deleted_at
`

var inquiryConstraintErrMap = map[string]error{
	"idx_unique_inquiry_school_email":    ErrInquiryEmailTaken,
	"idx_unique_inquiry_proposed_domain": ErrInquiryDomainTaken,
}

func (m *SchoolInquiryModel) Insert(ctx context.Context, ii SchoolInquiryInsert) (*SchoolInquiry, error) {
	if strings.TrimSpace(ii.SchoolName) == "" || strings.TrimSpace(ii.SchoolEmail) == "" {
		return nil, ErrMissingInput
	}

	query := `
		INSERT INTO school_inquiries (school_name, school_email, proposed_domain, form_data)
		VALUES ($1, $2, NULLIF($3, ''), $4)
		RETURNING ` + inquiryColumns

	var inquiry SchoolInquiry
	err := m.dbConnectionPool.GetContext(ctx, &inquiry, query,
		strings.TrimSpace(ii.SchoolName),
		strings.ToLower(strings.TrimSpace(ii.SchoolEmail)),
		strings.ToLower(strings.TrimSpace(ii.ProposedDomain)),
		ii.FormData,
	)
	if err != nil {
		if mapped := mapConstraintError(err, inquiryConstraintErrMap); mapped != nil {
			return nil, mapped
		}
		return nil, fmt.Errorf("inserting school inquiry: %w", err)
	}
	return &inquiry, nil
}

func (m *SchoolInquiryModel) Get(ctx context.Context, sqlExec db.SQLExecuter, id string) (*SchoolInquiry, error) {
	query := `SELECT ` + inquiryColumns + ` FROM school_inquiries WHERE id = $1 AND deleted_at IS NULL`

	var inquiry SchoolInquiry
	if err := sqlExec.GetContext(ctx, &inquiry, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("getting school inquiry %s: %w", id, err)
	}
	return &inquiry, nil
}

var allowedInquirySortFields = map[SortField]bool{SortFieldSubmittedAt: true, SortFieldCreatedAt: true}

func (m *SchoolInquiryModel) List(ctx context.Context, qp QueryParams) ([]SchoolInquiry, error) {
	qp = qp.Normalized(SortFieldSubmittedAt)
	if !allowedInquirySortFields[qp.SortBy] {
		qp.SortBy = SortFieldSubmittedAt
	}

	qb := newInquiryQuery(`SELECT `+inquiryColumns+` FROM school_inquiries i`, qp)
	qb.AddSorting(qp.SortBy, qp.SortOrder, "i")
	qb.AddPagination(qp.Page, qp.PageLimit)
	query, params := qb.BuildAndRebind(m.dbConnectionPool)

	inquiries := []SchoolInquiry{}
	if err := m.dbConnectionPool.SelectContext(ctx, &inquiries, query, params...); err != nil {
		return nil, fmt.Errorf("listing school inquiries: %w", err)
	}
	return inquiries, nil
}

// Count returns how many inquiries match the filters of qp, ignoring pagination.
func (m *SchoolInquiryModel) Count(ctx context.Context, qp QueryParams) (int, error) {
	query, params := newInquiryQuery(`SELECT COUNT(*) FROM school_inquiries i`, qp).BuildAndRebind(m.dbConnectionPool)

	var count int
	if err := m.dbConnectionPool.GetContext(ctx, &count, query, params...); err != nil {
		return 0, fmt.Errorf("counting school inquiries: %w", err)
	}
	return count, nil
}

func newInquiryQuery(baseQuery string, qp QueryParams) *QueryBuilder {
	qb := NewQueryBuilder(baseQuery)
	qb.AddCondition("i.deleted_at IS NULL")
	if status := qp.Filters[FilterKeyStatus]; status != "" {
		qb.AddCondition("i.status = ?", status)
	}
	if q := qp.Filters[FilterKeySearch]; q != "" {
		like := "%" + q + "%"
		qb.AddCondition("(i.school_name ILIKE ? OR i.school_email ILIKE ?)", like, like)
	}
	return qb
}

// Review moves an inquiry along its review workflow. Registration is reserved to MarkRegistered.
func (m *SchoolInquiryModel) Review(ctx context.Context, id string, target InquiryStatus, reviewerID, notes string) (*SchoolInquiry, error) {
	if target == InquiryStatusRegistered {
		return nil, fmt.Errorf("inquiries can only become %s by provisioning a school", InquiryStatusRegistered)
	}

	return db.RunInTransactionWithResult(ctx, m.dbConnectionPool, nil, func(dbTx db.DBTransaction) (*SchoolInquiry, error) {
		current, err := m.Get(ctx, dbTx, id)
		if err != nil {
			return nil, err
		}
		if err = current.Status.TransitionTo(target); err != nil {
			return nil, err
		}

		query := `
			UPDATE school_inquiries
			SET status = $3, reviewed_at = NOW(), reviewed_by = $4, review_notes = NULLIF($5, '')
			WHERE id = $1 AND status = $2
			RETURNING ` + inquiryColumns

		var updated SchoolInquiry
		if err = dbTx.GetContext(ctx, &updated, query, id, current.Status, target, reviewerID, notes); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, ErrInquiryStatusConflict
			}
			return nil, fmt.Errorf("reviewing school inquiry %s: %w", id, err)
		}
		return &updated, nil
	})
}

// MarkRegistered links the inquiry to the school provisioned out of it. converted_school_id is written once.
func (m *SchoolInquiryModel) MarkRegistered(ctx context.Context, sqlExec db.SQLExecuter, id, schoolID, reviewerID string) (*SchoolInquiry, error) {
	sources := []string{}
	for _, s := range InquiryStatusRegistered.SourceStatuses() {
		sources = append(sources, string(s))
	}

	query := `
		UPDATE school_inquiries
		SET status = 'registered', converted_school_id = $2, reviewed_at = NOW(), reviewed_by = $3
		WHERE id = $1 AND status = ANY($4) AND converted_school_id IS NULL AND deleted_at IS NULL
		RETURNING ` + inquiryColumns

	var inquiry SchoolInquiry
	if err := sqlExec.GetContext(ctx, &inquiry, query, id, schoolID, reviewerID, pq.Array(sources)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInquiryNotConvertible
		}
		return nil, fmt.Errorf("marking school inquiry %s as registered: %w", id, err)
	}
	return &inquiry, nil
}
