package httphandler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/schoolhub-backend/db"
	"github.com/schoolhub/schoolhub-backend/internal/auth"
	"github.com/schoolhub/schoolhub-backend/internal/conversion"
	"github.com/schoolhub/schoolhub-backend/internal/data"
)

func newMockedModels(t *testing.T) (*data.Models, sqlmock.Sqlmock) {
	t.Helper()

	mockDB, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	pool := db.NewConnectionPool(sqlx.NewDb(mockDB, "postgres"), "postgres://localhost/schoolhub")
	models, err := data.NewModels(pool)
	require.NoError(t, err)

	return models, sqlMock
}

var testSuperadmin = &auth.Principal{
	ID:           "sa-1",
	Capabilities: []auth.Capability{auth.CapabilitySuperadmin},
	ExpiresAt:    time.Now().Add(time.Hour),
	Active:       true,
}

// serveRequest routes a single request through a chi router, so URL params resolve. A nil principal leaves the
// request unauthenticated.
func serveRequest(t *testing.T, method, pattern, target, body string, principal *auth.Principal, handlerFn http.HandlerFunc) *httptest.ResponseRecorder {
	t.Helper()

	r := chi.NewRouter()
	r.MethodFunc(method, pattern, handlerFn)

	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if principal != nil {
		req = req.WithContext(auth.SetPrincipalInContext(req.Context(), principal))
	}

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) ConvertAdminToTenant(ctx context.Context, principal *auth.Principal, adminID string, opts conversion.ConvertOptions) (*data.Tenant, error) {
	args := m.Called(ctx, principal, adminID, opts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.Tenant), args.Error(1)
}

func (m *mockOrchestrator) ApproveSchoolInquiry(ctx context.Context, principal *auth.Principal, inquiryID string, req conversion.ApprovalRequest) (*data.School, error) {
	args := m.Called(ctx, principal, inquiryID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.School), args.Error(1)
}

var _ ConversionOrchestrator = (*mockOrchestrator)(nil)

type mockSweeper struct {
	mock.Mock
}

func (m *mockSweeper) Sweep(ctx context.Context, now time.Time) (*data.SweepResult, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*data.SweepResult), args.Error(1)
}

var _ SubscriptionSweeper = (*mockSweeper)(nil)
