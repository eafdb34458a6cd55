package conversion

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/crashtracker"
	"github.com/schoolhub/schoolhub-backend/internal/data"
	"github.com/schoolhub/schoolhub-backend/internal/domainbinding"
	"github.com/schoolhub/schoolhub-backend/internal/monitor"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func superadmin() *auth.Principal {
	return &auth.Principal{
		ID:           "root",
		Capabilities: []auth.Capability{auth.CapabilitySuperadmin},
		ExpiresAt:    testNow.Add(time.Hour),
		Active:       true,
	}
}

type fixture struct {
	catalog      *fakeCatalog
	adminAudit   *fakeAudit
	inquiryAudit *fakeAudit
	provisioner  *fakeProvisioner
	notifier     *fakeNotifier
	opts         OrchestratorOptions
}

func newFixture(t *testing.T, maxRetries int) *fixture {
	t.Helper()

	f := &fixture{
		catalog:      newFakeCatalog(),
		adminAudit:   &fakeAudit{prefix: "conv"},
		inquiryAudit: &fakeAudit{prefix: "inq-conv"},
		provisioner:  newFakeProvisioner(),
		notifier:     &fakeNotifier{},
	}
	binder, err := domainbinding.NewBinder(f.catalog, maxRetries)
	require.NoError(t, err)

	f.opts = OrchestratorOptions{
		AdminStore:         f.catalog,
		InquiryStore:       f.catalog,
		AdminAudit:         f.adminAudit,
		InquiryAudit:       f.inquiryAudit,
		Allocator:          binder,
		Provisioner:        f.provisioner,
		Notifier:           f.notifier,
		CrashTrackerClient: crashtracker.NewDryRunClient(),
	}
	return f
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(f.opts)
	require.NoError(t, err)
	o.now = func() time.Time { return testNow }
	return o
}

func Test_NewOrchestrator(t *testing.T) {
	f := newFixture(t, 5)

	t.Run("missing collaborators", func(t *testing.T) {
		opts := f.opts
		opts.AdminStore = nil
		_, err := NewOrchestrator(opts)
		assert.EqualError(t, err, "validating orchestrator options: admin store cannot be nil")

		opts = f.opts
		opts.Provisioner = nil
		_, err = NewOrchestrator(opts)
		assert.EqualError(t, err, "validating orchestrator options: provisioner cannot be nil")

		opts = f.opts
		opts.CrashTrackerClient = nil
		_, err = NewOrchestrator(opts)
		assert.EqualError(t, err, "validating orchestrator options: crash tracker client cannot be nil")
	})

	t.Run("negative durations", func(t *testing.T) {
		opts := f.opts
		opts.ProvisionTimeout = -time.Second
		_, err := NewOrchestrator(opts)
		assert.EqualError(t, err, "validating orchestrator options: durations must not be negative")
	})

	t.Run("defaults", func(t *testing.T) {
		o, err := NewOrchestrator(f.opts)
		require.NoError(t, err)
		assert.Equal(t, DefaultProvisionTimeout, o.provisionTimeout)
		assert.Equal(t, DefaultGracePeriod, o.gracePeriod)
	})
}

func Test_ConvertAdminToTenant_success(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	o := f.orchestrator(t)

	tenant, err := o.ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)

	assert.Equal(t, "greenwood-high", tenant.Domain)
	assert.Equal(t, "school_greenwood_high", tenant.DatabaseName)
	assert.Equal(t, "adm-1", tenant.OwnerAdminID)

	admin := f.catalog.admin("adm-1")
	assert.Equal(t, data.AdminStatusConverted, admin.Status)
	require.NotNil(t, admin.TenantID)
	assert.Equal(t, tenant.ID, *admin.TenantID)
	require.NotNil(t, admin.ConvertedAt)
	assert.Equal(t, testNow, *admin.ConvertedAt)

	rows := f.adminAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, auditRow{
		ID:           "conv-1",
		SubjectID:    "adm-1",
		InitiatedBy:  "root",
		Status:       "completed",
		DatabaseName: "school_greenwood_high",
		Domain:       "greenwood-high",
		ResultID:     tenant.ID,
	}, rows[0])

	assert.True(t, f.provisioner.isComplete("school_greenwood_high"))
	reservation, ok := f.catalog.reservation("greenwood-high")
	require.True(t, ok)
	assert.True(t, reservation.Bound)
	assert.Equal(t, "admin:adm-1", reservation.OwnerKey)
	assert.Equal(t, []string{tenant.ID}, f.notifier.tenantsReady)
}

func Test_ConvertAdminToTenant_seeds(t *testing.T) {
	testCases := []struct {
		name       string
		adminName  string
		schoolName string
		opts       ConvertOptions
		wantDomain string
	}{
		{name: "school name", adminName: "Jane Doe", schoolName: "St. Mary's Academy", wantDomain: "st-mary-s-academy"},
		{name: "falls back to the admin name", adminName: "Jane Doe", wantDomain: "jane-doe"},
		{name: "domain hint wins", adminName: "Jane Doe", schoolName: "Greenwood High", opts: ConvertOptions{DomainHint: "gwh"}, wantDomain: "gwh"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5)
			f.catalog.addAdmin("adm-1", tc.adminName, tc.schoolName, data.AdminStatusPending)

			tenant, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", tc.opts)
			require.NoError(t, err)
			assert.Equal(t, tc.wantDomain, tenant.Domain)
			assert.Equal(t, domainbinding.DatabaseNameFor(tc.wantDomain), tenant.DatabaseName)
		})
	}
}

func Test_ConvertAdminToTenant_domainCollision(t *testing.T) {
	f := newFixture(t, 5)
	_, err := f.catalog.Reserve(context.Background(), "greenwood-high", "school_greenwood_high", "admin:someone-else")
	require.NoError(t, err)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)

	tenant, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "greenwood-high-2", tenant.Domain)
	assert.Equal(t, "school_greenwood_high_2", tenant.DatabaseName)
	assert.Equal(t, []string{"school_greenwood_high_2"}, f.provisioner.calls)
}

func Test_ConvertAdminToTenant_allocationExhausted(t *testing.T) {
	f := newFixture(t, 1)
	ctx := context.Background()
	_, err := f.catalog.Reserve(ctx, "greenwood-high", "school_greenwood_high", "admin:a")
	require.NoError(t, err)
	_, err = f.catalog.Reserve(ctx, "greenwood-high-2", "school_greenwood_high_2", "admin:b")
	require.NoError(t, err)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)

	_, err = f.orchestrator(t).ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepAllocate, stepErr.Step)
	var exhaustedErr *domainbinding.AllocationExhaustedError
	require.ErrorAs(t, err, &exhaustedErr)
	assert.Equal(t, 2, exhaustedErr.Attempts)

	assert.Empty(t, f.provisioner.calls)
	assert.Equal(t, 1, f.adminAudit.countByStatus("failed"))
	assert.Equal(t, data.AdminStatusActive, f.catalog.admin("adm-1").Status)
}

func Test_ConvertAdminToTenant_provisionFailure(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	migrationErr := errors.New("running tenant migrations: relation \"classes\" already exists")
	f.provisioner.failNext("school_greenwood_high", migrationErr)
	o := f.orchestrator(t)
	ctx := context.Background()

	_, err := o.ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepProvision, stepErr.Step)
	assert.Equal(t, "conv-1", stepErr.ConversionID)
	assert.ErrorIs(t, err, migrationErr)

	rows := f.adminAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Status)
	assert.Equal(t, migrationErr.Error(), rows[0].Message)
	assert.Equal(t, "greenwood-high", rows[0].Domain)

	admin := f.catalog.admin("adm-1")
	assert.Equal(t, data.AdminStatusActive, admin.Status)
	assert.Nil(t, admin.TenantID)
	assert.Zero(t, f.catalog.tenantCount())

	reservation, ok := f.catalog.reservation("greenwood-high")
	require.True(t, ok)
	assert.NotNil(t, reservation.ReleasedAt)
	assert.False(t, reservation.Bound)

	t.Run("retry allocates fresh identifiers", func(t *testing.T) {
		tenant, err := o.ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
		require.NoError(t, err)
		assert.Equal(t, "greenwood-high-2", tenant.Domain)

		rows := f.adminAudit.snapshot()
		require.Len(t, rows, 2)
		assert.Equal(t, "failed", rows[0].Status)
		assert.Equal(t, "completed", rows[1].Status)
		assert.Equal(t, tenant.ID, rows[1].ResultID)
	})
}

func Test_ConvertAdminToTenant_bindFailureKeepsReservation(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	f.catalog.bindErr = errors.New("connection reset by peer")
	o := f.orchestrator(t)
	ctx := context.Background()

	_, err := o.ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepBind, stepErr.Step)
	assert.Equal(t, "connection reset by peer", stepErr.Message)

	reservation, ok := f.catalog.reservation("greenwood-high")
	require.True(t, ok)
	assert.Nil(t, reservation.ReleasedAt)
	assert.False(t, reservation.Bound)

	tenant, err := o.ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "greenwood-high", tenant.Domain)
	assert.Equal(t, []string{"school_greenwood_high", "school_greenwood_high"}, f.provisioner.calls)
	assert.Equal(t, 1, f.adminAudit.countByStatus("failed"))
	assert.Equal(t, 1, f.adminAudit.countByStatus("completed"))
}

func Test_ConvertAdminToTenant_bindLosesRace(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	f.catalog.bindErr = data.ErrAdminNotConvertible

	_, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepBind, stepErr.Step)
	var invalidErr *InvalidStateError
	assert.ErrorAs(t, err, &invalidErr)
	assert.ErrorIs(t, err, data.ErrAdminNotConvertible)
}

func Test_ConvertAdminToTenant_rejectedBeforeReserve(t *testing.T) {
	expired := superadmin()
	expired.ExpiresAt = testNow.Add(-time.Minute)
	inactive := superadmin()
	inactive.Active = false
	noCapability := superadmin()
	noCapability.Capabilities = nil

	testCases := []struct {
		name        string
		principal   *auth.Principal
		adminID     string
		status      data.AdminStatus
		wantFailure auth.AuthorizationFailure
		wantStatus  string
		wantErrIs   error
	}{
		{name: "missing principal", principal: nil, adminID: "adm-1", status: data.AdminStatusActive, wantFailure: auth.FailureMissingPrincipal},
		{name: "inactive principal", principal: inactive, adminID: "adm-1", status: data.AdminStatusActive, wantFailure: auth.FailureInactive},
		{name: "expired credential", principal: expired, adminID: "adm-1", status: data.AdminStatusActive, wantFailure: auth.FailureExpired},
		{name: "missing capability", principal: noCapability, adminID: "adm-1", status: data.AdminStatusActive, wantFailure: auth.FailureMissingCapability},
		{name: "already converted", principal: superadmin(), adminID: "adm-1", status: data.AdminStatusConverted, wantStatus: "converted"},
		{name: "suspended", principal: superadmin(), adminID: "adm-1", status: data.AdminStatusSuspended, wantStatus: "suspended"},
		{name: "unknown admin", principal: superadmin(), adminID: "adm-404", status: data.AdminStatusActive, wantErrIs: data.ErrRecordNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5)
			f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", tc.status)

			_, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), tc.principal, tc.adminID, ConvertOptions{})
			require.Error(t, err)

			switch {
			case tc.wantFailure != "":
				var authErr *auth.AuthorizationError
				require.ErrorAs(t, err, &authErr)
				assert.Equal(t, tc.wantFailure, authErr.Failure)
			case tc.wantStatus != "":
				var invalidErr *InvalidStateError
				require.ErrorAs(t, err, &invalidErr)
				assert.Equal(t, tc.wantStatus, invalidErr.Status)
			default:
				assert.ErrorIs(t, err, tc.wantErrIs)
			}

			assert.Empty(t, f.adminAudit.snapshot())
			assert.Empty(t, f.provisioner.calls)
			_, reserved := f.catalog.reservation("greenwood-high")
			assert.False(t, reserved)
		})
	}
}

func Test_ConvertAdminToTenant_existingAuditRows(t *testing.T) {
	t.Run("another process holds the conversion", func(t *testing.T) {
		f := newFixture(t, 5)
		f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
		_, err := f.adminAudit.Initiate(context.Background(), "adm-1", "other-root")
		require.NoError(t, err)

		_, err = f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
		assert.ErrorIs(t, err, data.ErrConversionInProgress)
		assert.Len(t, f.adminAudit.snapshot(), 1)
		assert.Empty(t, f.provisioner.calls)
	})

	t.Run("a completed row exists", func(t *testing.T) {
		f := newFixture(t, 5)
		f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
		f.adminAudit.rows = []*auditRow{{ID: "conv-1", SubjectID: "adm-1", Status: "completed", ResultID: "tenant-9"}}

		_, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
		var invalidErr *InvalidStateError
		require.ErrorAs(t, err, &invalidErr)
		assert.Equal(t, "adm-1", invalidErr.ID)
		assert.Empty(t, f.provisioner.calls)
	})
}

func Test_ConvertAdminToTenant_concurrentSameAdmin(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	// Two orchestrators stand for two processes: only the catalog arbitrates between them.
	orchestrators := []*Orchestrator{f.orchestrator(t), f.orchestrator(t)}

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = orchestrators[i%2].ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
			continue
		}
		var invalidErr *InvalidStateError
		if !errors.As(err, &invalidErr) {
			assert.ErrorIs(t, err, data.ErrConversionInProgress)
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.catalog.tenantCount())
	assert.Equal(t, 1, f.adminAudit.countByStatus("completed"))
	assert.Zero(t, f.adminAudit.countByStatus("initiated"))
}

func Test_ConvertAdminToTenant_waitingCallerHonoursItsDeadline(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	f.provisioner.block = true
	f.provisioner.started = make(chan string, 1)
	o := f.orchestrator(t)

	firstCtx, cancelFirst := context.WithCancel(context.Background())
	defer cancelFirst()
	firstDone := make(chan error, 1)
	go func() {
		_, err := o.ConvertAdminToTenant(firstCtx, superadmin(), "adm-1", ConvertOptions{})
		firstDone <- err
	}()
	<-f.provisioner.started

	secondCtx, cancelSecond := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancelSecond()
	started := time.Now()
	_, err := o.ConvertAdminToTenant(secondCtx, superadmin(), "adm-1", ConvertOptions{})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), time.Second)
	assert.Len(t, f.adminAudit.snapshot(), 1)

	cancelFirst()
	require.ErrorIs(t, <-firstDone, context.Canceled)
	rows := f.adminAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Status)
}

func Test_ConvertAdminToTenant_concurrentSameSchoolName(t *testing.T) {
	f := newFixture(t, 5)
	adminIDs := []string{"adm-1", "adm-2", "adm-3", "adm-4"}
	for _, id := range adminIDs {
		f.catalog.addAdmin(id, "Admin "+id, "Greenwood High", data.AdminStatusActive)
	}
	o := f.orchestrator(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	var domains []string
	for _, id := range adminIDs {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			tenant, err := o.ConvertAdminToTenant(context.Background(), superadmin(), id, ConvertOptions{})
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			domains = append(domains, tenant.Domain)
			mu.Unlock()
		}(id)
	}
	wg.Wait()

	assert.ElementsMatch(t, []string{"greenwood-high", "greenwood-high-2", "greenwood-high-3", "greenwood-high-4"}, domains)
	assert.Equal(t, len(adminIDs), f.catalog.tenantCount())
}

func Test_ConvertAdminToTenant_cancelledDuringProvision(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	f.provisioner.block = true
	f.provisioner.started = make(chan string, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-f.provisioner.started
		cancel()
	}()

	_, err := f.orchestrator(t).ConvertAdminToTenant(ctx, superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepProvision, stepErr.Step)
	assert.ErrorIs(t, err, context.Canceled)

	rows := f.adminAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Status)
	assert.Equal(t, "provision: context canceled", rows[0].Message)

	reservation, ok := f.catalog.reservation("greenwood-high")
	require.True(t, ok)
	assert.NotNil(t, reservation.ReleasedAt)
	assert.Equal(t, data.AdminStatusActive, f.catalog.admin("adm-1").Status)
}

func Test_ConvertAdminToTenant_provisionTimeout(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	f.provisioner.block = true
	f.opts.ProvisionTimeout = 20 * time.Millisecond

	_, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepProvision, stepErr.Step)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, stepErr.Message, "provisioning school_greenwood_high timed out after 20ms")

	rows := f.adminAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, stepErr.Message, rows[0].Message)
}

func Test_ConvertAdminToTenant_finalizeFailureIsReported(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	completeErr := errors.New("connection closed")
	f.adminAudit.completeErr = completeErr

	crashTracker := &crashtracker.MockCrashTrackerClient{}
	taggedWithConversion := mock.MatchedBy(func(ctx context.Context) bool {
		return crashtracker.TagsFromContext(ctx)["conversion_id"] == "conv-1"
	})
	crashTracker.On("LogAndReportErrors", taggedWithConversion, completeErr, "completing admin conversion conv-1").Once()
	defer crashTracker.AssertExpectations(t)
	f.opts.CrashTrackerClient = crashTracker

	tenant, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, data.AdminStatusConverted, f.catalog.admin("adm-1").Status)
	assert.Equal(t, []string{tenant.ID}, f.notifier.tenantsReady)
	// left initiated for the stale conversion reaper
	assert.Equal(t, 1, f.adminAudit.countByStatus("initiated"))
}

func Test_ConvertAdminToTenant_notifierFailureIsReported(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)
	notifyErr := errors.New("sending notification: no supported channel")
	f.notifier.err = notifyErr

	crashTracker := &crashtracker.MockCrashTrackerClient{}
	crashTracker.On("LogAndReportErrors", mock.Anything, notifyErr, "notifying admin adm-1 about tenant tenant-1").Once()
	defer crashTracker.AssertExpectations(t)
	f.opts.CrashTrackerClient = crashTracker

	tenant, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", tenant.ID)
	assert.Equal(t, 1, f.adminAudit.countByStatus("completed"))
}

func Test_ConvertAdminToTenant_metrics(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addAdmin("adm-1", "Jane Doe", "Greenwood High", data.AdminStatusActive)

	monitorService := &monitor.MockMonitorService{}
	monitorService.On("MonitorDuration", mock.AnythingOfType("time.Duration"), monitor.ConversionStepDurationTag, mock.Anything).Return(nil).Times(3)
	monitorService.On("MonitorHistogram", float64(1), monitor.AllocationAttemptsTag, map[string]string{"kind": "admin"}).Return(nil).Once()
	monitorService.On("MonitorCounters", monitor.ConversionsCounterTag, map[string]string{"kind": "admin", "outcome": "completed"}).Return(nil).Once()
	defer monitorService.AssertExpectations(t)
	f.opts.MonitorService = monitorService

	_, err := f.orchestrator(t).ConvertAdminToTenant(context.Background(), superadmin(), "adm-1", ConvertOptions{})
	require.NoError(t, err)
}

func Test_ApproveSchoolInquiry_success(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleYearly, true)
	f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusUnderReview, data.JSONMap{"contact_phone": "+14155555555"})
	o := f.orchestrator(t)
	o.newSchoolCode = sequenceCodes("SCHGRE0001")

	school, err := o.ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic", Months: 6})
	require.NoError(t, err)

	assert.Equal(t, "greenwood-high", school.Domain)
	assert.Equal(t, "school_greenwood_high", school.DatabaseName)
	assert.Equal(t, "SCHGRE0001", school.SchoolCode)
	assert.Equal(t, "plan-basic", school.SubscriptionPlanID)
	require.NotNil(t, school.SubscriptionStartDate)
	assert.Equal(t, testNow, *school.SubscriptionStartDate)
	require.NotNil(t, school.SubscriptionEndDate)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), *school.SubscriptionEndDate)
	require.NotNil(t, school.GracePeriodEndDate)
	assert.Equal(t, time.Date(2026, 9, 9, 9, 0, 0, 0, time.UTC), *school.GracePeriodEndDate)
	require.NotNil(t, school.ApprovedBy)
	assert.Equal(t, "root", *school.ApprovedBy)

	inquiry := f.catalog.inquiry("inq-1")
	assert.Equal(t, data.InquiryStatusRegistered, inquiry.Status)
	require.NotNil(t, inquiry.ConvertedSchoolID)
	assert.Equal(t, school.ID, *inquiry.ConvertedSchoolID)

	rows := f.inquiryAudit.snapshot()
	require.Len(t, rows, 1)
	assert.Equal(t, "inq-conv-1", rows[0].ID)
	assert.Equal(t, "completed", rows[0].Status)
	assert.Equal(t, school.ID, rows[0].ResultID)
	assert.Empty(t, f.adminAudit.snapshot())

	reservation, ok := f.catalog.reservation("greenwood-high")
	require.True(t, ok)
	assert.Equal(t, "inquiry:inq-1", reservation.OwnerKey)
	assert.True(t, reservation.Bound)
	assert.Equal(t, []string{school.ID}, f.notifier.schoolsApprove)
}

func Test_ApproveSchoolInquiry_planDeactivatedBeforeBind(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleYearly, true)
	f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusApproved, nil)
	f.opts.Provisioner = provisionerFunc(func(context.Context, string) error {
		f.catalog.deactivatePlan("plan-basic")
		return nil
	})

	_, err := f.orchestrator(t).ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic"})
	var stepErr *StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, StepBind, stepErr.Step)
	require.ErrorIs(t, err, data.ErrPlanInactive)

	assert.Zero(t, f.catalog.schoolCount())
	assert.Equal(t, data.InquiryStatusApproved, f.catalog.inquiry("inq-1").Status)
	assert.Equal(t, 1, f.inquiryAudit.countByStatus("failed"))
}

func Test_ApproveSchoolInquiry_periodFromBillingCycle(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-q", "Quarterly", data.BillingCycleQuarterly, true)
	f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusPending, nil)
	f.opts.GracePeriod = 3 * 24 * time.Hour
	o := f.orchestrator(t)
	o.newSchoolCode = sequenceCodes("SCHGRE0001")

	school, err := o.ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-q"})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 6, 2, 9, 0, 0, 0, time.UTC), *school.SubscriptionEndDate)
	assert.Equal(t, time.Date(2026, 6, 5, 9, 0, 0, 0, time.UTC), *school.GracePeriodEndDate)
}

func Test_ApproveSchoolInquiry_domainSeed(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
	inquiry := f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusApproved, nil)
	proposed := "Greenwood"
	inquiry.ProposedDomain = &proposed
	f.catalog.addInquiry("inq-2", "Greenwood High", data.InquiryStatusApproved, nil)
	o := f.orchestrator(t)
	o.newSchoolCode = sequenceCodes("SCHGRE0001", "SCHGRE0002")
	ctx := context.Background()

	school, err := o.ApproveSchoolInquiry(ctx, superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic"})
	require.NoError(t, err)
	assert.Equal(t, "greenwood", school.Domain)

	school, err = o.ApproveSchoolInquiry(ctx, superadmin(), "inq-2", ApprovalRequest{PlanID: "plan-basic", DomainHint: "Greenwood"})
	require.NoError(t, err)
	assert.Equal(t, "greenwood-2", school.Domain)
}

func Test_ApproveSchoolInquiry_schoolCodeCollision(t *testing.T) {
	t.Run("retries with a new code", func(t *testing.T) {
		f := newFixture(t, 5)
		f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
		f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusPending, nil)
		f.catalog.schools = append(f.catalog.schools, &data.School{ID: "school-0", Domain: "other", SchoolCode: "SCHGRE0001"})
		o := f.orchestrator(t)
		o.newSchoolCode = sequenceCodes("SCHGRE0001", "SCHGRE0002")

		school, err := o.ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic"})
		require.NoError(t, err)
		assert.Equal(t, "SCHGRE0002", school.SchoolCode)
	})

	t.Run("gives up after every attempt collided", func(t *testing.T) {
		f := newFixture(t, 5)
		f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
		f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusPending, nil)
		f.catalog.schools = append(f.catalog.schools, &data.School{ID: "school-0", Domain: "other", SchoolCode: "SCHGRE0001"})
		o := f.orchestrator(t)
		codes := make([]string, schoolCodeAttempts)
		for i := range codes {
			codes[i] = "SCHGRE0001"
		}
		o.newSchoolCode = sequenceCodes(codes...)

		_, err := o.ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic"})
		var stepErr *StepError
		require.ErrorAs(t, err, &stepErr)
		assert.Equal(t, StepBind, stepErr.Step)
		assert.ErrorIs(t, err, data.ErrSchoolCodeTaken)
		assert.Equal(t, data.InquiryStatusPending, f.catalog.inquiry("inq-1").Status)
		assert.Equal(t, 1, f.inquiryAudit.countByStatus("failed"))
	})
}

func Test_ApproveSchoolInquiry_rejectedBeforeReserve(t *testing.T) {
	testCases := []struct {
		name      string
		status    data.InquiryStatus
		req       ApprovalRequest
		wantErr   string
		wantErrIs error
		wantState bool
	}{
		{name: "missing plan", status: data.InquiryStatusPending, req: ApprovalRequest{}, wantErr: "validating approval request: plan ID is required"},
		{name: "negative months", status: data.InquiryStatusPending, req: ApprovalRequest{PlanID: "plan-basic", Months: -1}, wantErr: "validating approval request: months must not be negative, got -1"},
		{name: "inactive plan", status: data.InquiryStatusPending, req: ApprovalRequest{PlanID: "plan-old"}, wantErrIs: data.ErrPlanInactive},
		{name: "unknown plan", status: data.InquiryStatusPending, req: ApprovalRequest{PlanID: "plan-404"}, wantErrIs: data.ErrRecordNotFound},
		{name: "rejected inquiry", status: data.InquiryStatusRejected, req: ApprovalRequest{PlanID: "plan-basic"}, wantState: true},
		{name: "registered inquiry", status: data.InquiryStatusRegistered, req: ApprovalRequest{PlanID: "plan-basic"}, wantState: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t, 5)
			f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
			f.catalog.addPlan("plan-old", "Legacy", data.BillingCycleMonthly, false)
			f.catalog.addInquiry("inq-1", "Greenwood High", tc.status, nil)

			_, err := f.orchestrator(t).ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", tc.req)
			require.Error(t, err)
			switch {
			case tc.wantErr != "":
				assert.EqualError(t, err, tc.wantErr)
			case tc.wantErrIs != nil:
				assert.ErrorIs(t, err, tc.wantErrIs)
			case tc.wantState:
				var invalidErr *InvalidStateError
				require.ErrorAs(t, err, &invalidErr)
				assert.Equal(t, string(tc.status), invalidErr.Status)
			}

			assert.Empty(t, f.inquiryAudit.snapshot())
			assert.Empty(t, f.provisioner.calls)
			assert.Zero(t, f.catalog.schoolCount())
		})
	}
}

func Test_ApproveSchoolInquiry_unauthorized(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
	f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusPending, nil)
	principal := superadmin()
	principal.Capabilities = []auth.Capability{"teacher"}

	_, err := f.orchestrator(t).ApproveSchoolInquiry(context.Background(), principal, "inq-1", ApprovalRequest{PlanID: "plan-basic"})
	var authErr *auth.AuthorizationError
	require.ErrorAs(t, err, &authErr)
	assert.False(t, authErr.Unauthenticated())
	assert.Empty(t, f.inquiryAudit.snapshot())
}

func Test_ApproveSchoolInquiry_concurrentApprovals(t *testing.T) {
	f := newFixture(t, 5)
	f.catalog.addPlan("plan-basic", "Basic", data.BillingCycleMonthly, true)
	f.catalog.addInquiry("inq-1", "Greenwood High", data.InquiryStatusPending, nil)
	orchestrators := []*Orchestrator{f.orchestrator(t), f.orchestrator(t)}
	codes := sequenceCodes("SCHGRE0001", "SCHGRE0002", "SCHGRE0003", "SCHGRE0004", "SCHGRE0005", "SCHGRE0006")
	for _, o := range orchestrators {
		o.newSchoolCode = codes
	}

	const callers = 6
	var wg sync.WaitGroup
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = orchestrators[i%2].ApproveSchoolInquiry(context.Background(), superadmin(), "inq-1", ApprovalRequest{PlanID: "plan-basic"})
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range errs {
		if err == nil {
			successes++
		}
	}
	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, f.catalog.schoolCount())
	assert.Equal(t, 1, f.inquiryAudit.countByStatus("completed"))
}

func Test_generateSchoolCode(t *testing.T) {
	testCases := []struct {
		seed    string
		pattern string
	}{
		{seed: "greenwood-high", pattern: `^SCHGRE\d{4}$`},
		{seed: "ab", pattern: `^SCHAB\d{4}$`},
		{seed: "a-b-c-d", pattern: `^SCHABC\d{4}$`},
	}

	for _, tc := range testCases {
		t.Run(tc.seed, func(t *testing.T) {
			code, err := generateSchoolCode(tc.seed)
			require.NoError(t, err)
			assert.Regexp(t, regexp.MustCompile(tc.pattern), code)
		})
	}
}
