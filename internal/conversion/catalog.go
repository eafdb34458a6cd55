package conversion

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/data"
)

// bindTxOptions is the isolation of the bind transaction. The conditional updates and unique indexes arbitrate races,
// so read committed is enough.
var bindTxOptions = &sql.TxOptions{Isolation: sql.LevelReadCommitted}

// Catalog backs the orchestrator stores with the catalog database.
type Catalog struct {
	models *data.Models
}

func NewCatalog(models *data.Models) (*Catalog, error) {
	if models == nil {
		return nil, errors.New("models cannot be nil")
	}
	return &Catalog{models: models}, nil
}

func (c *Catalog) GetAdmin(ctx context.Context, id string) (*data.Admin, error) {
	return c.models.Admins.Get(ctx, c.models.DBConnectionPool, id)
}

func (c *Catalog) BindTenant(ctx context.Context, b TenantBinding) (*data.Tenant, error) {
	return db.RunInTransactionWithResult(ctx, c.models.DBConnectionPool, bindTxOptions, func(dbTx db.DBTransaction) (*data.Tenant, error) {
		tenant, err := c.models.Tenants.Insert(ctx, dbTx, data.TenantInsert{
			Domain:       b.Allocation.Domain,
			DatabaseName: b.Allocation.DatabaseName,
			OwnerAdminID: b.AdminID,
			Settings:     data.JSONMap{},
		})
		if err != nil {
			return nil, err
		}
		if _, err = c.models.Admins.MarkConverted(ctx, dbTx, b.AdminID, tenant.ID, b.At); err != nil {
			return nil, err
		}
		if err = c.models.DomainReservations.Bind(ctx, dbTx, b.Allocation.Domain, b.Owner); err != nil {
			return nil, err
		}
		return tenant, nil
	})
}

func (c *Catalog) GetInquiry(ctx context.Context, id string) (*data.SchoolInquiry, error) {
	return c.models.Inquiries.Get(ctx, c.models.DBConnectionPool, id)
}

func (c *Catalog) GetActivePlan(ctx context.Context, planID string) (*data.SubscriptionPlan, error) {
	return c.models.Plans.GetActive(ctx, planID)
}

func (c *Catalog) BindSchool(ctx context.Context, b SchoolBinding) (*data.School, error) {
	return db.RunInTransactionWithResult(ctx, c.models.DBConnectionPool, bindTxOptions, func(dbTx db.DBTransaction) (*data.School, error) {
		if err := c.models.Plans.LockActive(ctx, dbTx, b.PlanID); err != nil {
			return nil, err
		}
		school, err := c.models.Schools.Insert(ctx, dbTx, data.SchoolInsert{
			Name:                  b.Inquiry.SchoolName,
			Email:                 b.Inquiry.SchoolEmail,
			Domain:                b.Allocation.Domain,
			SchoolCode:            b.SchoolCode,
			DatabaseName:          b.Allocation.DatabaseName,
			SubscriptionPlanID:    b.PlanID,
			SubscriptionStartDate: b.Start,
			SubscriptionEndDate:   b.End,
			GracePeriodEndDate:    b.GraceEnd,
			ApprovedBy:            b.ApprovedBy,
			ApprovedAt:            b.Start,
		})
		if err != nil {
			return nil, err
		}
		if _, err = c.models.Inquiries.MarkRegistered(ctx, dbTx, b.Inquiry.ID, school.ID, b.ApprovedBy); err != nil {
			return nil, err
		}
		if err = c.models.DomainReservations.Bind(ctx, dbTx, b.Allocation.Domain, b.Owner); err != nil {
			return nil, err
		}
		return school, nil
	})
}

var (
	_ AdminStore   = (*Catalog)(nil)
	_ InquiryStore = (*Catalog)(nil)
)

// AdminAuditLog adapts the admin conversion model to the AuditLog the orchestrator writes to.
type AdminAuditLog struct {
	Model *data.AdminConversionModel
}

func (a AdminAuditLog) Initiate(ctx context.Context, adminID, initiatedBy string) (string, error) {
	conversion, err := a.Model.Initiate(ctx, adminID, initiatedBy)
	if err != nil {
		return "", err
	}
	return conversion.ID, nil
}

func (a AdminAuditLog) RecordIdentifiers(ctx context.Context, id, databaseName, domain string) error {
	return a.Model.RecordIdentifiers(ctx, id, databaseName, domain)
}

func (a AdminAuditLog) Fail(ctx context.Context, id, message string) error {
	return a.Model.Fail(ctx, id, message)
}

func (a AdminAuditLog) Complete(ctx context.Context, id, tenantID string, at time.Time) error {
	return a.Model.Complete(ctx, id, tenantID, at)
}

type InquiryAuditLog struct {
	Model *data.InquiryConversionModel
}

func (a InquiryAuditLog) Initiate(ctx context.Context, inquiryID, initiatedBy string) (string, error) {
	conversion, err := a.Model.Initiate(ctx, inquiryID, initiatedBy)
	if err != nil {
		return "", err
	}
	return conversion.ID, nil
}

func (a InquiryAuditLog) RecordIdentifiers(ctx context.Context, id, databaseName, domain string) error {
	return a.Model.RecordIdentifiers(ctx, id, databaseName, domain)
}

func (a InquiryAuditLog) Fail(ctx context.Context, id, message string) error {
	return a.Model.Fail(ctx, id, message)
}

func (a InquiryAuditLog) Complete(ctx context.Context, id, schoolID string, at time.Time) error {
	return a.Model.Complete(ctx, id, schoolID, at)
}

var (
	_ AuditLog = AdminAuditLog{}
	_ AuditLog = InquiryAuditLog{}
)

// NewCatalogOptions fills the catalog backed collaborators of the orchestrator options.
func NewCatalogOptions(models *data.Models, opts OrchestratorOptions) (OrchestratorOptions, error) {
	catalog, err := NewCatalog(models)
	if err != nil {
		return opts, fmt.Errorf("creating catalog: %w", err)
	}
	opts.AdminStore = catalog
	opts.InquiryStore = catalog
	opts.AdminAudit = AdminAuditLog{Model: models.AdminConversions}
	opts.InquiryAudit = InquiryAuditLog{Model: models.InquiryConversions}
	return opts, nil
}
