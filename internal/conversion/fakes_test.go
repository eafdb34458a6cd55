package conversion

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
)

// fakeCatalog keeps the catalog in memory and mirrors the conditional updates and unique constraints the bind
// transactions rely on.
type fakeCatalog struct {
	mu sync.Mutex

	admins       map[string]*data.Admin
	inquiries    map[string]*data.SchoolInquiry
	plans        map[string]*data.SubscriptionPlan
	tenants      []*data.Tenant
	schools      []*data.School
	reservations map[string]*data.DomainReservation
	dbNames      map[string]bool

	// bindErr fails the next bind transaction without writing anything.
	bindErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{
		admins:       map[string]*data.Admin{},
		inquiries:    map[string]*data.SchoolInquiry{},
		plans:        map[string]*data.SubscriptionPlan{},
		reservations: map[string]*data.DomainReservation{},
		dbNames:      map[string]bool{},
	}
}

func (c *fakeCatalog) addAdmin(id, name, schoolName string, status data.AdminStatus) *data.Admin {
	c.mu.Lock()
	defer c.mu.Unlock()
	a := &data.Admin{ID: id, Name: name, Email: id + "@schools.test", Status: status}
	if schoolName != "" {
		a.SchoolName = &schoolName
	}
	c.admins[id] = a
	return a
}

func (c *fakeCatalog) addInquiry(id, schoolName string, status data.InquiryStatus, formData data.JSONMap) *data.SchoolInquiry {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := &data.SchoolInquiry{ID: id, SchoolName: schoolName, SchoolEmail: id + "@schools.test", Status: status, FormData: formData}
	c.inquiries[id] = i
	return i
}

func (c *fakeCatalog) addPlan(id, name string, cycle data.BillingCycle, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[id] = &data.SubscriptionPlan{ID: id, Name: name, BillingCycle: cycle, IsActive: active}
}

func (c *fakeCatalog) deactivatePlan(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.plans[id].IsActive = false
}

func (c *fakeCatalog) admin(id string) data.Admin {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.admins[id]
}

func (c *fakeCatalog) inquiry(id string) data.SchoolInquiry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return *c.inquiries[id]
}

func (c *fakeCatalog) tenantCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.tenants)
}

func (c *fakeCatalog) schoolCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.schools)
}

func (c *fakeCatalog) reservation(domain string) (data.DomainReservation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, ok := c.reservations[domain]
	if !ok {
		return data.DomainReservation{}, false
	}
	return *r, true
}

func (c *fakeCatalog) GetAdmin(_ context.Context, id string) (*data.Admin, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	a, ok := c.admins[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (c *fakeCatalog) GetInquiry(_ context.Context, id string) (*data.SchoolInquiry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.inquiries[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	copied := *i
	return &copied, nil
}

func (c *fakeCatalog) GetActivePlan(_ context.Context, id string) (*data.SubscriptionPlan, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.plans[id]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	if !p.IsActive {
		return nil, data.ErrPlanInactive
	}
	copied := *p
	return &copied, nil
}

func (c *fakeCatalog) takeBindErr() error {
	err := c.bindErr
	c.bindErr = nil
	return err
}

func (c *fakeCatalog) BindTenant(_ context.Context, b TenantBinding) (*data.Tenant, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeBindErr(); err != nil {
		return nil, err
	}
	admin, ok := c.admins[b.AdminID]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	if !admin.Status.IsConvertible() {
		return nil, data.ErrAdminNotConvertible
	}
	for _, t := range c.tenants {
		if t.Domain == b.Allocation.Domain {
			return nil, data.ErrTenantDomainTaken
		}
	}
	r, ok := c.reservations[b.Allocation.Domain]
	if !ok || r.OwnerKey != b.Owner || r.Bound || r.ReleasedAt != nil {
		return nil, data.ErrReservationNotBound
	}

	tenant := &data.Tenant{
		ID:           fmt.Sprintf("tenant-%d", len(c.tenants)+1),
		Domain:       b.Allocation.Domain,
		DatabaseName: b.Allocation.DatabaseName,
		OwnerAdminID: b.AdminID,
		Status:       data.TenantStatusActive,
		CreatedAt:    b.At,
	}
	c.tenants = append(c.tenants, tenant)
	admin.Status = data.AdminStatusConverted
	admin.TenantID = &tenant.ID
	at := b.At
	admin.ConvertedAt = &at
	r.Bound = true

	copied := *tenant
	return &copied, nil
}

func (c *fakeCatalog) BindSchool(_ context.Context, b SchoolBinding) (*data.School, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.takeBindErr(); err != nil {
		return nil, err
	}
	if p, ok := c.plans[b.PlanID]; !ok || !p.IsActive {
		return nil, data.ErrPlanInactive
	}
	for _, s := range c.schools {
		if s.SchoolCode == b.SchoolCode {
			return nil, data.ErrSchoolCodeTaken
		}
		if s.Domain == b.Allocation.Domain {
			return nil, data.ErrSchoolDomainTaken
		}
	}
	inquiry, ok := c.inquiries[b.Inquiry.ID]
	if !ok {
		return nil, data.ErrRecordNotFound
	}
	if !inquiry.Status.IsConvertible() {
		return nil, data.ErrInquiryNotConvertible
	}
	r, ok := c.reservations[b.Allocation.Domain]
	if !ok || r.OwnerKey != b.Owner || r.Bound || r.ReleasedAt != nil {
		return nil, data.ErrReservationNotBound
	}

	start, end, graceEnd, approvedAt := b.Start, b.End, b.GraceEnd, b.Start
	approvedBy := b.ApprovedBy
	school := &data.School{
		ID:                    fmt.Sprintf("school-%d", len(c.schools)+1),
		Name:                  b.Inquiry.SchoolName,
		Email:                 b.Inquiry.SchoolEmail,
		Domain:                b.Allocation.Domain,
		SchoolCode:            b.SchoolCode,
		DatabaseName:          b.Allocation.DatabaseName,
		SubscriptionPlanID:    b.PlanID,
		Status:                data.SchoolStatusActive,
		SubscriptionStartDate: &start,
		SubscriptionEndDate:   &end,
		GracePeriodEndDate:    &graceEnd,
		ApprovedBy:            &approvedBy,
		ApprovedAt:            &approvedAt,
	}
	c.schools = append(c.schools, school)
	inquiry.Status = data.InquiryStatusRegistered
	inquiry.ConvertedSchoolID = &school.ID
	r.Bound = true

	copied := *school
	return &copied, nil
}

// Reserve, GetHeldByOwner and Release make the catalog the reservation store of a real domainbinding.Binder.
func (c *fakeCatalog) Reserve(_ context.Context, domain, databaseName, owner string) (*data.DomainReservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.reservations[domain] != nil || c.dbNames[databaseName] {
		return nil, data.ErrDomainTaken
	}
	r := &data.DomainReservation{Domain: domain, DatabaseName: databaseName, OwnerKey: owner, ReservedAt: time.Now()}
	c.reservations[domain] = r
	c.dbNames[databaseName] = true
	return r, nil
}

func (c *fakeCatalog) GetHeldByOwner(_ context.Context, owner string) (*data.DomainReservation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range c.reservations {
		if r.OwnerKey == owner && !r.Bound && r.ReleasedAt == nil {
			copied := *r
			return &copied, nil
		}
	}
	return nil, data.ErrRecordNotFound
}

func (c *fakeCatalog) Release(_ context.Context, domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.reservations[domain]
	if r == nil || r.Bound || r.ReleasedAt != nil {
		return data.ErrRecordNotFound
	}
	now := time.Now()
	r.ReleasedAt = &now
	return nil
}

func (c *fakeCatalog) Retire(_ context.Context, domain string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := c.reservations[domain]
	if r == nil || r.Bound {
		return data.ErrReservationInUse
	}
	if r.ReleasedAt == nil {
		now := time.Now()
		r.ReleasedAt = &now
	}
	return nil
}

var (
	_ AdminStore                     = (*fakeCatalog)(nil)
	_ InquiryStore                   = (*fakeCatalog)(nil)
	_ domainbinding.ReservationStore = (*fakeCatalog)(nil)
)

type auditRow struct {
	ID           string
	SubjectID    string
	InitiatedBy  string
	Status       string
	Message      string
	DatabaseName string
	Domain       string
	ResultID     string
}

// fakeAudit enforces one initiated row per subject and no attempt after a completed one.
type fakeAudit struct {
	mu          sync.Mutex
	prefix      string
	rows        []*auditRow
	completeErr error
}

func (a *fakeAudit) Initiate(_ context.Context, subjectID, initiatedBy string) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.rows {
		if r.SubjectID != subjectID {
			continue
		}
		switch r.Status {
		case "initiated":
			return "", data.ErrConversionInProgress
		case "completed":
			return "", data.ErrAlreadyConverted
		}
	}
	row := &auditRow{ID: fmt.Sprintf("%s-%d", a.prefix, len(a.rows)+1), SubjectID: subjectID, InitiatedBy: initiatedBy, Status: "initiated"}
	a.rows = append(a.rows, row)
	return row.ID, nil
}

func (a *fakeAudit) update(id string, f func(*auditRow)) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, r := range a.rows {
		if r.ID == id {
			if r.Status != "initiated" {
				return data.ErrConversionNotInitiated
			}
			f(r)
			return nil
		}
	}
	return data.ErrRecordNotFound
}

func (a *fakeAudit) RecordIdentifiers(_ context.Context, id, databaseName, domain string) error {
	return a.update(id, func(r *auditRow) { r.DatabaseName, r.Domain = databaseName, domain })
}

func (a *fakeAudit) Fail(_ context.Context, id, message string) error {
	return a.update(id, func(r *auditRow) { r.Status, r.Message = "failed", message })
}

func (a *fakeAudit) Complete(_ context.Context, id, resultID string, _ time.Time) error {
	a.mu.Lock()
	err := a.completeErr
	a.mu.Unlock()
	if err != nil {
		return err
	}
	return a.update(id, func(r *auditRow) { r.Status, r.ResultID = "completed", resultID })
}

func (a *fakeAudit) snapshot() []auditRow {
	a.mu.Lock()
	defer a.mu.Unlock()
	rows := make([]auditRow, len(a.rows))
	for i, r := range a.rows {
		rows[i] = *r
	}
	return rows
}

func (a *fakeAudit) countByStatus(status string) int {
	n := 0
	for _, r := range a.snapshot() {
		if r.Status == status {
			n++
		}
	}
	return n
}

var _ AuditLog = (*fakeAudit)(nil)

// fakeProvisioner records provisioned schemas. failures are consumed one per call for the matching database name.
type fakeProvisioner struct {
	mu       sync.Mutex
	complete map[string]bool
	calls    []string
	failures map[string][]error
	// block makes Provision wait for the context when set. started, if not nil, receives the database name once
	// Provision blocks.
	block   bool
	started chan string
}

func newFakeProvisioner() *fakeProvisioner {
	return &fakeProvisioner{complete: map[string]bool{}, failures: map[string][]error{}}
}

func (p *fakeProvisioner) failNext(databaseName string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures[databaseName] = append(p.failures[databaseName], err)
}

func (p *fakeProvisioner) Provision(ctx context.Context, databaseName string) error {
	p.mu.Lock()
	p.calls = append(p.calls, databaseName)
	block, started := p.block, p.started
	var failure error
	if queued := p.failures[databaseName]; len(queued) > 0 {
		failure, p.failures[databaseName] = queued[0], queued[1:]
	}
	p.mu.Unlock()

	if block {
		if started != nil {
			started <- databaseName
		}
		<-ctx.Done()
		return fmt.Errorf("creating schema %s: %w", databaseName, ctx.Err())
	}
	if failure != nil {
		return failure
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.complete[databaseName] = true
	return nil
}

func (p *fakeProvisioner) isComplete(databaseName string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.complete[databaseName]
}

var _ Provisioner = (*fakeProvisioner)(nil)

type provisionerFunc func(ctx context.Context, databaseName string) error

func (f provisionerFunc) Provision(ctx context.Context, databaseName string) error {
	return f(ctx, databaseName)
}

type fakeNotifier struct {
	mu             sync.Mutex
	tenantsReady   []string
	schoolsApprove []string
	err            error
}

func (n *fakeNotifier) TenantReady(_ context.Context, _ *data.Admin, tenant *data.Tenant) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tenantsReady = append(n.tenantsReady, tenant.ID)
	return n.err
}

func (n *fakeNotifier) SchoolApproved(_ context.Context, _ *data.SchoolInquiry, school *data.School, _ *data.SubscriptionPlan) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.schoolsApprove = append(n.schoolsApprove, school.ID)
	return n.err
}

var _ Notifier = (*fakeNotifier)(nil)

// sequenceCodes returns the given school codes in order and fails once they run out.
func sequenceCodes(codes ...string) func(string) (string, error) {
	var mu sync.Mutex
	return func(string) (string, error) {
		mu.Lock()
		defer mu.Unlock()
		if len(codes) == 0 {
			return "", errors.New("no more codes")
		}
		code := codes[0]
		codes = slices.Delete(codes, 0, 1)
		return code, nil
	}
}
